package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// Date layouts used by NSE files and by storage.
const (
	NSEDateLayout = "02-Jan-2006"
	ISODateLayout = "2006-01-02"
)

// Date is a calendar date without a time of day. The zero value is "no date".
type Date struct {
	t time.Time
}

// NewDate returns the date for year, month, day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	if t.IsZero() {
		return Date{}
	}
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseDate parses s with layout and drops any time component.
func ParseDate(layout, s string) (Date, error) {
	t, err := time.Parse(layout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

// ParseAnyDate accepts the NSE layout or the ISO layout.
func ParseAnyDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if d, err := ParseDate(NSEDateLayout, s); err == nil {
		return d, nil
	}
	if d, err := ParseDate(ISODateLayout, s); err == nil {
		return d, nil
	}
	if len(s) >= len(ISODateLayout) {
		// Timestamps such as 2024-03-01T00:00:00Z or 2024-03-01 00:00:00+00:00.
		if d, err := ParseDate(ISODateLayout, s[:len(ISODateLayout)]); err == nil {
			return d, nil
		}
	}
	return Date{}, fmt.Errorf("unrecognised date %q", s)
}

// MustParseDate is ParseAnyDate for literals known to be valid.
func MustParseDate(s string) Date {
	d, err := ParseAnyDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// IsZero reports whether d is unset.
func (d Date) IsZero() bool { return d.t.IsZero() }

// Time returns midnight UTC of d.
func (d Date) Time() time.Time { return d.t }

func (d Date) Year() int             { return d.t.Year() }
func (d Date) Month() time.Month     { return d.t.Month() }
func (d Date) Day() int              { return d.t.Day() }
func (d Date) Weekday() time.Weekday { return d.t.Weekday() }

// AddDays returns d shifted by n calendar days.
func (d Date) AddDays(n int) Date {
	return Date{t: d.t.AddDate(0, 0, n)}
}

func (d Date) Before(o Date) bool { return d.t.Before(o.t) }
func (d Date) After(o Date) bool  { return d.t.After(o.t) }
func (d Date) Equal(o Date) bool  { return d.t.Equal(o.t) }

// Compare returns -1, 0 or 1.
func (d Date) Compare(o Date) int {
	switch {
	case d.t.Before(o.t):
		return -1
	case d.t.After(o.t):
		return 1
	default:
		return 0
	}
}

// DaysUntil returns the number of calendar days from d to o.
func (d Date) DaysUntil(o Date) int {
	return int(o.t.Sub(d.t).Hours() / 24)
}

// ISOWeek returns the ISO year and week of d.
func (d Date) ISOWeek() (int, int) { return d.t.ISOWeek() }

// String formats d in the NSE layout.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(NSEDateLayout)
}

// ISO formats d as YYYY-MM-DD.
func (d Date) ISO() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(ISODateLayout)
}

// MarshalJSON encodes d in the NSE layout.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON accepts NSE or ISO dates and null.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseAnyDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.ISO(), nil
}

// Scan implements sql.Scanner.
func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = DateOf(v.UTC())
		return nil
	case string:
		parsed, err := ParseAnyDate(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case []byte:
		parsed, err := ParseAnyDate(string(v))
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}

// DatePtr returns a pointer to d, or nil for the zero date.
func DatePtr(d Date) *Date {
	if d.IsZero() {
		return nil
	}
	return &d
}

// MonthStart returns the first day of year/month.
func MonthStart(year int, month time.Month) Date {
	return NewDate(year, month, 1)
}

// MonthEnd returns the last day of year/month.
func MonthEnd(year int, month time.Month) Date {
	return NewDate(year, month+1, 1).AddDays(-1)
}
