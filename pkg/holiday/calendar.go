// Package holiday reads the institution calendar that marks non-working days.
package holiday

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const dateLayout = "2006-01-02"

// Scope distinguishes statutory holidays from institute specific closures.
type Scope string

const (
	ScopePublic    Scope = "public"
	ScopeInstitute Scope = "institute"
)

// Entry is a single non-working day.
type Entry struct {
	Date  time.Time `json:"date"`
	Name  string    `json:"name"`
	Scope Scope     `json:"scope"`
}

type fileEntry struct {
	Date  string `yaml:"date"`
	Name  string `yaml:"name"`
	Scope string `yaml:"scope"`
}

type fileLayout struct {
	Holidays []fileEntry `yaml:"holidays"`
}

// Calendar is an immutable, date indexed set of holidays.
type Calendar struct {
	entries []Entry
	byDate  map[string][]Entry
}

// Load parses the YAML calendar at path.
func Load(path string) (*Calendar, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read holiday calendar: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a YAML calendar document.
func Parse(raw []byte) (*Calendar, error) {
	var doc fileLayout
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode holiday calendar: %w", err)
	}
	entries := make([]Entry, 0, len(doc.Holidays))
	for i, item := range doc.Holidays {
		date, err := time.Parse(dateLayout, strings.TrimSpace(item.Date))
		if err != nil {
			return nil, fmt.Errorf("holiday %d: invalid date %q", i+1, item.Date)
		}
		scope := Scope(strings.ToLower(strings.TrimSpace(item.Scope)))
		if scope == "" {
			scope = ScopePublic
		}
		if scope != ScopePublic && scope != ScopeInstitute {
			return nil, fmt.Errorf("holiday %d: unknown scope %q", i+1, item.Scope)
		}
		entries = append(entries, Entry{Date: date, Name: strings.TrimSpace(item.Name), Scope: scope})
	}
	return New(entries), nil
}

// New builds a calendar from entries.
func New(entries []Entry) *Calendar {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	byDate := make(map[string][]Entry, len(sorted))
	for _, e := range sorted {
		key := e.Date.Format(dateLayout)
		byDate[key] = append(byDate[key], e)
	}
	return &Calendar{entries: sorted, byDate: byDate}
}

// Between returns entries whose date lies within [from, to], ordered by date.
func (c *Calendar) Between(_ context.Context, from, to time.Time) ([]Entry, error) {
	if c == nil {
		return nil, nil
	}
	fromKey := from.Format(dateLayout)
	toKey := to.Format(dateLayout)
	result := make([]Entry, 0)
	for _, e := range c.entries {
		key := e.Date.Format(dateLayout)
		if key >= fromKey && key <= toKey {
			result = append(result, e)
		}
	}
	return result, nil
}

// IsHoliday reports whether date (compared by calendar day) is a holiday.
func (c *Calendar) IsHoliday(date time.Time) bool {
	if c == nil {
		return false
	}
	_, ok := c.byDate[date.Format(dateLayout)]
	return ok
}

// Len reports the number of entries.
func (c *Calendar) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}
