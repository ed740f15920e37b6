package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/hookbridge/hookbridge/internal/models"
)

// Handler validates and writes the domain record for one topic. Handlers are
// independently pluggable: new topics register here without touching the
// verifier, guard, or ledger.
type Handler interface {
	// Topic is the declared event category this handler owns.
	Topic() string

	// Handle validates the payload shape and performs the domain write.
	// Shape failures return a *ValidationError; anything else is a write
	// failure.
	Handle(ctx context.Context, env *models.Envelope) error
}

// ValidationError reports a known topic whose payload is missing required
// fields. The event is already claimed by the time validation runs, so the
// caller dead-letters it rather than rejecting at the door.
type ValidationError struct {
	Topic   string
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("topic %s: missing required fields: %s", e.Topic, strings.Join(e.Missing, ", "))
}

// Registry maps topic names to handlers.
type Registry struct {
	handlers map[string]Handler
}

func NewRegistry(handlers ...Handler) *Registry {
	r := &Registry{handlers: make(map[string]Handler, len(handlers))}
	for _, h := range handlers {
		r.handlers[h.Topic()] = h
	}
	return r
}

// Find returns the handler for a topic, or nil when none is registered.
// Unknown topics are not errors: the caller accepts them as audited-only.
func (r *Registry) Find(topic string) Handler {
	return r.handlers[topic]
}

// Topics lists the registered topic names.
func (r *Registry) Topics() []string {
	out := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	return out
}

// requireFields collects the named fields as non-empty strings, returning a
// *ValidationError listing everything absent or blank.
func requireFields(topic string, payload map[string]any, names ...string) (map[string]string, error) {
	fields := make(map[string]string, len(names))
	var missing []string
	for _, name := range names {
		v, ok := payload[name].(string)
		if !ok || v == "" {
			missing = append(missing, name)
			continue
		}
		fields[name] = v
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Topic: topic, Missing: missing}
	}
	return fields, nil
}

// optionalField returns the named field when present as a non-empty string.
func optionalField(payload map[string]any, name string) string {
	if v, ok := payload[name].(string); ok {
		return v
	}
	return ""
}
