package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ClockTime is a wall-clock time of day stored as seconds after midnight.
type ClockTime int

const secondsPerDay = 24 * 60 * 60

// ParseClock accepts HH:MM or HH:MM:SS.
func ParseClock(value string) (ClockTime, error) {
	value = strings.TrimSpace(value)
	var layout string
	switch strings.Count(value, ":") {
	case 1:
		layout = "15:04"
	case 2:
		layout = "15:04:05"
	default:
		return 0, fmt.Errorf("invalid clock time %q", value)
	}
	t, err := time.Parse(layout, value)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q", value)
	}
	return ClockTime(t.Hour()*3600 + t.Minute()*60 + t.Second()), nil
}

// ClockOf returns the time of day of t in t's location.
func ClockOf(t time.Time) ClockTime {
	return ClockTime(t.Hour()*3600 + t.Minute()*60 + t.Second())
}

// String renders HH:MM, appending seconds only when non-zero.
func (c ClockTime) String() string {
	h, m, s := int(c)/3600, (int(c)%3600)/60, int(c)%60
	if s != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}

// Valid reports whether c lies within a single day.
func (c ClockTime) Valid() bool {
	return c >= 0 && c < secondsPerDay
}

// Value implements driver.Valuer.
func (c ClockTime) Value() (driver.Value, error) {
	h, m, s := int(c)/3600, (int(c)%3600)/60, int(c)%60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s), nil
}

// Scan implements sql.Scanner for TIME columns.
func (c *ClockTime) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return c.scanString(string(v))
	case string:
		return c.scanString(v)
	case time.Time:
		*c = ClockOf(v)
		return nil
	case nil:
		*c = 0
		return nil
	default:
		return fmt.Errorf("unsupported clock time source %T", src)
	}
}

func (c *ClockTime) scanString(v string) error {
	if idx := strings.IndexByte(v, '.'); idx >= 0 {
		v = v[:idx]
	}
	parsed, err := ParseClock(v)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// MarshalJSON renders the clock as a string.
func (c ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON parses HH:MM or HH:MM:SS strings.
func (c *ClockTime) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("clock time must be a string: %w", err)
	}
	parsed, err := ParseClock(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
