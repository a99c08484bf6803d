// Package cursor encodes opaque pagination tokens over the event store's
// (occurred_at, event_id) ordering.
package cursor

import (
	"encoding/base64"
	"encoding/json"
	"time"
)

// Version is the current token layout version. Decoding tolerates unknown
// fields so newer tokens keep working against older readers.
const Version = 1

// Cursor identifies the last-seen document in a paginated scan.
type Cursor struct {
	Version   int       `json:"v"`
	Timestamp time.Time `json:"ts"`
	EventID   string    `json:"id"`
}

// Encode builds an opaque token for the given position. Deterministic and
// reversible.
func Encode(timestamp time.Time, eventID string) string {
	c := Cursor{
		Version:   Version,
		Timestamp: timestamp.UTC(),
		EventID:   eventID,
	}
	data, err := json.Marshal(c)
	if err != nil {
		// Cursor has no unmarshalable fields; kept for completeness.
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

// Decode parses a token. A missing or malformed token yields nil, which
// callers treat as "start from the beginning" - never an error. A valid
// token pointing past the actual data is still returned as-is; the scan it
// resumes simply comes back empty.
func Decode(token string) *Cursor {
	if token == "" {
		return nil
	}

	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil
	}

	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil
	}

	if c.Version < 1 || c.EventID == "" || c.Timestamp.IsZero() {
		return nil
	}

	return &c
}
