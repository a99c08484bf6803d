package kafka

import (
	"encoding/json"
	"time"

	"github.com/Ramsey-B/arbor/pkg/models"
)

// IncomingMessage wraps a raw Kafka message with parsed headers
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string

	// Trace context (extracted from Kafka headers)
	TraceParent string
	TraceState  string

	// Parsed content
	Envelope *models.EventEnvelope
}

// ParseEnvelope parses the message value as an endpoint-event envelope
func (m *IncomingMessage) ParseEnvelope() error {
	var env models.EventEnvelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	m.Envelope = &env
	return nil
}

// GetEntityID returns the entity ID from the envelope, falling back to the
// message key when the envelope has not been parsed.
func (m *IncomingMessage) GetEntityID() string {
	if m.Envelope != nil && m.Envelope.EntityID != "" {
		return m.Envelope.EntityID
	}
	return m.Key
}

// GetEndpointID returns the reporting endpoint ID, if any.
func (m *IncomingMessage) GetEndpointID() string {
	if m.Envelope != nil {
		return m.Envelope.EndpointID
	}
	return m.Headers["endpoint_id"]
}
