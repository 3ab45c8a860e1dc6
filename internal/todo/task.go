// Package todo holds the task entity, the in-memory list store and the
// display ordering used by the notepad.
package todo

import (
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
)

// DateLayout is the calendar-day format exchanged with the model.
const DateLayout = "2006-01-02"

type Task struct {
	ID        string
	Text      string
	Completed bool
	Due       sql.NullTime
}

// State tracks where an entry is in its removal lifecycle.
type State int

const (
	StateActive State = iota
	StatePendingRemoval
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StatePendingRemoval:
		return "pending-removal"
	default:
		return "unknown"
	}
}

// Item is a snapshot of one stored task together with its lifecycle state.
type Item struct {
	Task
	State State
}

func (it Item) Deleting() bool {
	return it.State == StatePendingRemoval
}

func NewID() string {
	return uuid.NewString()
}

// ParseDate reads a YYYY-MM-DD value. Empty or malformed input is undated.
func ParseDate(v string) sql.NullTime {
	v = strings.TrimSpace(v)
	if v == "" {
		return sql.NullTime{}
	}
	t, err := time.Parse(DateLayout, v)
	if err != nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func FormatDate(t sql.NullTime) string {
	if !t.Valid {
		return ""
	}
	return t.Time.Format(DateLayout)
}

// TextKey is the comparison key used for de-duplication: trimmed and
// case-folded.
func TextKey(text string) string {
	return cases.Fold().String(strings.TrimSpace(text))
}
