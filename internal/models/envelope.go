package models

import "time"

// Envelope carries one inbound webhook through the pipeline. It is built once
// per request and discarded when the pipeline terminates.
//
// RawBody is the request body byte-for-byte as received; signature schemes are
// computed over it, so it must never be re-serialized before verification.
type Envelope struct {
	Source         string            `json:"source"`
	EventID        string            `json:"event_id"`
	Topic          string            `json:"topic"`
	Action         string            `json:"action"`
	RawBody        []byte            `json:"raw_body"`
	Headers        map[string]string `json:"headers"`
	Payload        map[string]any    `json:"payload"`
	SourceIP       string            `json:"source_ip"`
	SignatureValid bool              `json:"signature_valid"`
	ReceivedAt     time.Time         `json:"received_at"`
}

// Claim is the durable idempotency row for one event ID. The unique constraint
// on EventID is the only cross-request synchronization in the system: the first
// insert to succeed owns the event, all later inserts observe a duplicate.
// Rows are never updated or deleted.
type Claim struct {
	EventID     string    `json:"event_id"`
	Topic       string    `json:"topic"`
	Action      string    `json:"action"`
	Source      string    `json:"source"`
	PayloadHash string    `json:"payload_hash"`
	ClaimedAt   time.Time `json:"claimed_at"`
}

// AuditRecord is one append-only ledger row. A record exists for every claimed
// event regardless of whether routing later succeeded.
type AuditRecord struct {
	ID         string         `json:"id"`
	Topic      string         `json:"topic"`
	Action     string         `json:"action"`
	Actor      string         `json:"actor"`
	Payload    map[string]any `json:"payload"`
	RecordedAt time.Time      `json:"recorded_at"`
}

// DeadLetter preserves the original payload of an accepted event whose
// post-claim processing failed, keyed by a machine-readable reason so replay
// tooling can pick the right remediation.
type DeadLetter struct {
	ID         int64     `json:"id"`
	EventID    string    `json:"event_id"`
	Reason     string    `json:"reason"`
	Payload    []byte    `json:"payload"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Dead-letter reasons. ValidationError and RouteError reasons are suffixed
// with ":<topic>".
const (
	ReasonClaimFailed    = "claim_failed"
	ReasonAuditFailed    = "audit_failed"
	ReasonInvalidPayload = "invalid_payload"
	ReasonRouteFailed    = "route_failed"
)
