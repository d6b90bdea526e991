package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Timestamp is the only temporal type exposed by the API. It is always stored
// in UTC and serialized as RFC 3339 with millisecond precision.
type Timestamp struct {
	time.Time
}

// WireFormat is the canonical JSON representation of a Timestamp.
const WireFormat = "2006-01-02T15:04:05.000Z07:00"

// NewTimestamp converts t to a UTC Timestamp.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC()}
}

// Now returns the current time as a Timestamp.
func Now() Timestamp {
	return NewTimestamp(time.Now())
}

// ParseTimestamp accepts RFC 3339 (with or without fractional seconds) or a bare date (YYYY-MM-DD, midnight UTC).
func ParseTimestamp(s string) (Timestamp, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return NewTimestamp(t), nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return NewTimestamp(t), nil
	}
	return Timestamp{}, fmt.Errorf("invalid timestamp %q", s)
}

// Ptr returns a pointer to t.
func (t Timestamp) Ptr() *Timestamp { return &t }

func (t Timestamp) String() string {
	return t.UTC().Format(WireFormat)
}

// MarshalJSON writes the canonical wire format, or null for the zero value.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts anything ParseTimestamp accepts, or null.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ScanTimestamptz implements pgtype.TimestamptzScanner.
func (t *Timestamp) ScanTimestamptz(v pgtype.Timestamptz) error {
	if !v.Valid {
		*t = Timestamp{}
		return nil
	}
	*t = NewTimestamp(v.Time)
	return nil
}

// TimestamptzValue implements pgtype.TimestamptzValuer. The zero value encodes as NULL.
func (t Timestamp) TimestamptzValue() (pgtype.Timestamptz, error) {
	if t.IsZero() {
		return pgtype.Timestamptz{}, nil
	}
	return pgtype.Timestamptz{Time: t.UTC(), Valid: true}, nil
}

// Scan implements sql.Scanner.
func (t *Timestamp) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*t = Timestamp{}
	case time.Time:
		*t = NewTimestamp(v)
	default:
		return fmt.Errorf("cannot scan %T into Timestamp", src)
	}
	return nil
}

// Value implements driver.Valuer.
func (t Timestamp) Value() (driver.Value, error) {
	if t.IsZero() {
		return nil, nil
	}
	return t.UTC(), nil
}
