package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Todo represents a todo item.
type Todo struct {
	ID          int64      `json:"id" gorm:"primaryKey;autoIncrement"`
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Completed   bool       `json:"completed" gorm:"not null;default:false"`
	DeadlineAt  *time.Time `json:"deadline_at" gorm:"index"`
}

// MarshalJSON always emits all five keys; the deadline is rendered in UTC.
func (t Todo) MarshalJSON() ([]byte, error) {
	var deadline *string
	if t.DeadlineAt != nil {
		s := t.DeadlineAt.UTC().Format(time.RFC3339Nano)
		deadline = &s
	}
	return json.Marshal(struct {
		ID          int64   `json:"id"`
		Title       *string `json:"title"`
		Description *string `json:"description"`
		Completed   bool    `json:"completed"`
		DeadlineAt  *string `json:"deadline_at"`
	}{t.ID, t.Title, t.Description, t.Completed, deadline})
}

// Clone returns a deep copy so callers can't mutate a store's record through shared pointers.
func (t *Todo) Clone() *Todo {
	c := *t
	if t.Title != nil {
		v := *t.Title
		c.Title = &v
	}
	if t.Description != nil {
		v := *t.Description
		c.Description = &v
	}
	if t.DeadlineAt != nil {
		v := *t.DeadlineAt
		c.DeadlineAt = &v
	}
	return &c
}

// Accepted ISO-8601 shapes. Layouts without an offset are read as UTC.
var deadlineLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02T15",
	"2006-01-02",
}

// ParseDeadline parses an ISO-8601 date or date-time. A space may replace the 'T'
// separator. The result is normalised to UTC.
func ParseDeadline(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if len(s) > 10 && s[10] == ' ' {
		s = s[:10] + "T" + s[11:]
	}
	if strings.HasSuffix(s, "z") {
		s = s[:len(s)-1] + "Z"
	}
	for _, layout := range deadlineLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if t, err := time.Parse("2006-01-02T15:04:05.999999999-0700", s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid ISO-8601 deadline %q", raw)
}
