package cursor

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	token := Encode(ts, "event-42")
	require.NotEmpty(t, token)

	c := Decode(token)
	require.NotNil(t, c)
	assert.Equal(t, Version, c.Version)
	assert.True(t, c.Timestamp.Equal(ts))
	assert.Equal(t, "event-42", c.EventID)
}

func TestEncode_Deterministic(t *testing.T) {
	ts := time.Now().UTC()
	assert.Equal(t, Encode(ts, "a"), Encode(ts, "a"))
	assert.NotEqual(t, Encode(ts, "a"), Encode(ts, "b"))
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "not base64", token: "!!not-a-cursor!!"},
		{name: "base64 but not json", token: base64.RawURLEncoding.EncodeToString([]byte("blah"))},
		{name: "json but wrong shape", token: base64.RawURLEncoding.EncodeToString([]byte(`{"foo":1}`))},
		{name: "missing event id", token: base64.RawURLEncoding.EncodeToString([]byte(`{"v":1,"ts":"2026-01-01T00:00:00Z"}`))},
		{name: "zero timestamp", token: base64.RawURLEncoding.EncodeToString([]byte(`{"v":1,"id":"x"}`))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, Decode(tt.token))
		})
	}
}

func TestDecode_ToleratesUnknownFields(t *testing.T) {
	// A future writer may add fields; older readers must still parse.
	raw := `{"v":2,"ts":"2026-01-01T00:00:00Z","id":"e1","shard":"s-7"}`
	c := Decode(base64.RawURLEncoding.EncodeToString([]byte(raw)))
	require.NotNil(t, c)
	assert.Equal(t, "e1", c.EventID)
	assert.Equal(t, 2, c.Version)
}
