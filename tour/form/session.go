// Package form implements the three-question tour intake: the per-user
// session store and the conversation state machine on top of it.
package form

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/tourbot/core/telegram/state"
)

// NoUsername replaces a missing Telegram username.
const NoUsername = "нет"

// Field names one answer of the form.
type Field string

const (
	FieldDirection Field = "direction"
	FieldDates     Field = "dates"
	FieldBudget    Field = "budget"
)

// Steps is the number of questions in the form.
const Steps = 3

var stepFields = [Steps + 1]Field{1: FieldDirection, 2: FieldDates, 3: FieldBudget}

var (
	// ErrNoActiveSession reports that the user has no form in progress.
	ErrNoActiveSession = errors.New("form: no active session")
	// ErrFieldMismatch reports an answer for a field other than the current step's.
	ErrFieldMismatch = errors.New("form: field does not match current step")
)

// FieldForStep returns the field answered at step, or "" outside 1..3.
func FieldForStep(step int) Field {
	if step < 1 || step > Steps {
		return ""
	}
	return stepFields[step]
}

// Session is one user's in-progress form.
type Session struct {
	UserID    int64
	Step      int
	FirstName string
	Username  string
	Direction string
	Dates     string
	Budget    string
	// Completed is set once the last answer was recorded.
	Completed bool
}

func (s *Session) set(f Field, v string) {
	switch f {
	case FieldDirection:
		s.Direction = v
	case FieldDates:
		s.Dates = v
	case FieldBudget:
		s.Budget = v
	}
}

// Record is the read-only snapshot of a completed form handed to the operator.
type Record struct {
	ID          uuid.UUID
	UserID      int64
	FirstName   string
	Username    string
	Direction   string
	Dates       string
	Budget      string
	CompletedAt time.Time
}

// Record snapshots the session under the given id.
func (s Session) Record(id uuid.UUID, at time.Time) Record {
	return Record{
		ID:          id,
		UserID:      s.UserID,
		FirstName:   s.FirstName,
		Username:    s.Username,
		Direction:   s.Direction,
		Dates:       s.Dates,
		Budget:      s.Budget,
		CompletedAt: at,
	}
}

// Store keeps sessions keyed by Telegram user id.
type Store interface {
	Start(userID int64, firstName, username string) Session
	Get(userID int64) (Session, bool)
	Advance(userID int64, field Field, value string) (Session, error)
	Finish(userID int64) (Session, error)
	Len() int
}

// MemoryStore is the process-local Store. Sessions are lost on restart.
type MemoryStore struct {
	items *state.Memory[Session]
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: state.NewMemory[Session]()}
}

// Start creates or overwrites the user's session at step 1 with no answers.
func (m *MemoryStore) Start(userID int64, firstName, username string) Session {
	if username == "" {
		username = NoUsername
	}
	s := Session{
		UserID:    userID,
		Step:      1,
		FirstName: firstName,
		Username:  username,
	}
	m.items.Set(userID, s)
	return s
}

// Get returns the user's session.
func (m *MemoryStore) Get(userID int64) (Session, bool) {
	return m.items.Get(userID)
}

// Advance records the answer for the current step and moves to the next one.
// The last step marks the session completed instead of moving past it.
func (m *MemoryStore) Advance(userID int64, field Field, value string) (Session, error) {
	var err error
	s, _ := m.items.Update(userID, func(cur Session, ok bool) (Session, bool) {
		if !ok {
			err = ErrNoActiveSession
			return cur, false
		}
		if cur.Completed {
			err = fmt.Errorf("%w: form already completed", ErrFieldMismatch)
			return cur, true
		}
		if want := FieldForStep(cur.Step); want != field {
			err = fmt.Errorf("%w: step %d expects %q, got %q", ErrFieldMismatch, cur.Step, want, field)
			return cur, true
		}
		cur.set(field, value)
		if cur.Step < Steps {
			cur.Step++
		} else {
			cur.Completed = true
		}
		return cur, true
	})
	if err != nil {
		return Session{}, err
	}
	return s, nil
}

// Finish removes and returns the user's session.
func (m *MemoryStore) Finish(userID int64) (Session, error) {
	s, ok := m.items.Delete(userID)
	if !ok {
		return Session{}, ErrNoActiveSession
	}
	return s, nil
}

// Len returns the number of forms in progress.
func (m *MemoryStore) Len() int {
	return m.items.Len()
}
