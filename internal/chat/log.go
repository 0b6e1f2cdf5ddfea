// Package chat holds the conversation log. A Log is a value owned by whoever
// drives the conversation; operations return a new Log instead of mutating.
package chat

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	UserRole Role = "user"
	BotRole  Role = "bot"
)

type Turn struct {
	Role Role
	Text string

	// Raw is the unsanitized model output for bot turns.
	Raw     string
	Flagged bool

	CreatedAt time.Time
}

type Log struct {
	ID    string
	Turns []Turn
}

func New() Log {
	return Log{ID: uuid.NewString()}
}

// Append returns a copy of the log with turns added at the end.
func (l Log) Append(turns ...Turn) Log {
	next := make([]Turn, 0, len(l.Turns)+len(turns))
	next = append(next, l.Turns...)
	next = append(next, turns...)
	return Log{ID: l.ID, Turns: next}
}

// Last returns the most recent turn with the given role.
func (l Log) Last(role Role) (Turn, bool) {
	for i := len(l.Turns) - 1; i >= 0; i-- {
		if l.Turns[i].Role == role {
			return l.Turns[i], true
		}
	}
	return Turn{}, false
}

// Recent returns at most n of the latest turns, oldest first.
func (l Log) Recent(n int) []Turn {
	if n <= 0 {
		return nil
	}
	if n > len(l.Turns) {
		n = len(l.Turns)
	}
	return l.Turns[len(l.Turns)-n:]
}

func (l Log) Len() int {
	return len(l.Turns)
}
