// Package calendar works with contract dates as calendar days. A Date carries
// no time of day and no zone, so "2025-03-10" is the same day on every server.
package calendar

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"
)

const layoutDate = "2006-01-02"

var (
	ErrInvalidRange = errors.New("invalid date range")
	ErrInvalidDate  = errors.New("invalid date")
)

var parseLayouts = []string{
	layoutDate,
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// Date is a calendar day anchored at midnight UTC.
type Date struct {
	t time.Time
}

// Normalize keeps the year, month and day the value shows in its own location
// and drops everything else.
func Normalize(t time.Time) Date {
	if t.IsZero() {
		return Date{}
	}
	y, m, d := t.Date()
	return Date{t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// New builds a date from its parts.
func New(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// Parse reads the date portion of raw as written. Offsets in RFC3339 input do
// not shift the day.
func Parse(raw string) (Date, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Date{}, fmt.Errorf("%w: empty value", ErrInvalidDate)
	}
	for _, layout := range parseLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return Normalize(parsed), nil
		}
	}
	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
}

func AddDays(d Date, n int) Date {
	return Date{t: d.t.AddDate(0, 0, n)}
}

// InclusiveSpanDays counts the days in [start, end] with both ends included.
func InclusiveSpanDays(start, end Date) (int, error) {
	if end.Before(start) {
		return 0, fmt.Errorf("%w: %s is before %s", ErrInvalidRange, end, start)
	}
	return int(end.t.Sub(start.t)/(24*time.Hour)) + 1, nil
}

func (d Date) IsZero() bool {
	return d.t.IsZero()
}

func (d Date) Before(other Date) bool {
	return d.t.Before(other.t)
}

func (d Date) After(other Date) bool {
	return d.t.After(other.t)
}

func (d Date) Equal(other Date) bool {
	return d.t.Equal(other.t)
}

// Time returns the midnight-UTC instant of the day.
func (d Date) Time() time.Time {
	return d.t
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(layoutDate)
}

// Value renders the day as a plain DATE literal.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

// Scan accepts DATE columns as returned by pgx and textual dates.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = Normalize(v)
		return nil
	case string:
		parsed, err := Parse(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case []byte:
		parsed, err := Parse(string(v))
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	default:
		return fmt.Errorf("%w: unsupported source %T", ErrInvalidDate, src)
	}
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "" || raw == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// FromPtr normalizes an optional timestamp.
func FromPtr(t *time.Time) *Date {
	if t == nil || t.IsZero() {
		return nil
	}
	d := Normalize(*t)
	return &d
}
