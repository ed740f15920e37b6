package models

import "time"

// Deployment is the domain record written by the "deployment" topic handler.
type Deployment struct {
	ID          string    `json:"id"`
	System      string    `json:"system"`
	Environment string    `json:"environment"`
	Status      string    `json:"status"`
	Version     string    `json:"version,omitempty"`
	EventID     string    `json:"event_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Incident is the domain record written by the "incident" topic handler.
type Incident struct {
	ID          string    `json:"id"`
	System      string    `json:"system"`
	Environment string    `json:"environment"`
	Severity    string    `json:"severity"`
	Status      string    `json:"status"`
	Title       string    `json:"title"`
	EventID     string    `json:"event_id"`
	CreatedAt   time.Time `json:"created_at"`
}
