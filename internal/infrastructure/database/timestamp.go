package database

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// timestampLayouts are the text forms SQLite timestamps are read from,
// most specific first.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Timestamp scans a TIMESTAMP column regardless of driver.
// The cgo driver hands back time.Time for TIMESTAMP columns while the pure
// Go driver and expression columns may yield text.
type Timestamp struct {
	time.Time
}

// Scan implements sql.Scanner.
func (t *Timestamp) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case time.Time:
		t.Time = v.UTC()
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	default:
		return fmt.Errorf("scanning timestamp: unsupported type %T", src)
	}
}

// Value implements driver.Valuer, writing UTC RFC 3339 with milliseconds.
func (t Timestamp) Value() (driver.Value, error) {
	if t.IsZero() {
		return nil, nil
	}
	return t.UTC().Format("2006-01-02T15:04:05.000Z"), nil
}

func (t *Timestamp) parse(s string) error {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("scanning timestamp: unrecognised format %q", s)
}
