package decision

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrMalformed wraps every Parse failure.
var ErrMalformed = errors.New("malformed decision frame")

// envelope is the canonical wire shape: {"type", "timestamp", "payload"}.
type envelope struct {
	Type      MessageType     `json:"type"`
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

func (o *Outcome) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decision: %w", err)
	}
	parsed, err := ParseOutcome(s)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// Parse decodes one text frame.
func Parse(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return Event{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}

	e := Event{Type: env.Type}

	ts, err := parseTimestamp(env.Timestamp)
	if err != nil {
		return Event{}, fmt.Errorf("%w: timestamp: %v", ErrMalformed, err)
	}
	e.Timestamp = ts

	if raw := bytes.TrimSpace(env.Payload); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		if raw[0] != '{' {
			return Event{}, fmt.Errorf("%w: payload is not an object", ErrMalformed)
		}
		if err := json.Unmarshal(raw, &e.Payload); err != nil {
			return Event{}, fmt.Errorf("%w: payload: %v", ErrMalformed, err)
		}
	}
	return e, nil
}

// parseTimestamp accepts an RFC 3339 string or Unix milliseconds.
func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, err
		}
		if s == "" {
			return time.Time{}, nil
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, err
		}
		return t, nil
	}
	ms, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}

// Encode renders e in the canonical envelope.
func Encode(e Event) ([]byte, error) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, err
	}
	env := envelope{Type: e.Type, Payload: payload}
	if !e.Timestamp.IsZero() {
		ts, err := json.Marshal(e.Timestamp.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return nil, err
		}
		env.Timestamp = ts
	}
	return json.Marshal(env)
}
