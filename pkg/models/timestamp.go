package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DisplayLayout renders DateAdded. It is for people only and never parsed for ordering.
const DisplayLayout = "1/2/2006, 3:04:05 PM"

// Legacy display layouts the jobs backend has been seen to emit. Month comes first (en-US).
var legacyLayouts = []string{
	DisplayLayout,
	"1/2/2006, 3:04 PM",
	"1/2/2006 3:04:05 PM",
	"1/2/2006",
}

// Timestamp is the canonical sortable time of a job record. It accepts RFC 3339 or the legacy
// locale strings on input and always writes RFC 3339 in UTC.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t as a UTC Timestamp.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC()}
}

// ParseTimestamp parses raw as RFC 3339 first and then as each legacy layout.
// An empty string yields the zero Timestamp.
func ParseTimestamp(raw string) (Timestamp, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Timestamp{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return NewTimestamp(t), nil
	}
	for _, layout := range legacyLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return NewTimestamp(t), nil
		}
	}
	return Timestamp{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*t = Timestamp{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParseTimestamp(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
