package models

// WebhookResponse is the JSON body returned to webhook providers.
// Error codes are stable and machine-readable; internal details never leak.
type WebhookResponse struct {
	OK    bool   `json:"ok"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

// Stable response codes returned in WebhookResponse.Code.
const (
	CodeUnauthorized   = "unauthorized"
	CodeMalformed      = "malformed_request"
	CodeUnknownSource  = "unknown_source"
	CodeRateLimited    = "rate_limited"
	CodeClaimFailed    = "claim_failed"
	CodeAuditFailed    = "audit_failed"
	CodeInvalidPayload = "invalid_payload"
	CodeRouteFailed    = "route_failed"
)

// DLQStats summarizes dead-letter volume by reason for the admin API.
type DLQStats struct {
	Total    int64            `json:"total"`
	ByReason map[string]int64 `json:"by_reason"`
}
