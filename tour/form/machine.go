package form

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/tourbot/core/logger"
	"github.com/m3rciful/tourbot/core/telegram/state"
)

// Notifier forwards a completed application to the operator.
type Notifier interface {
	Notify(ctx context.Context, rec Record) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, rec Record) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, rec Record) error {
	return f(ctx, rec)
}

// Reply sends one scripted text back to the user.
type Reply func(text string) error

// User is the identity captured when a form starts.
type User struct {
	ID        int64
	FirstName string
	Username  string
}

// Machine drives the form: Step1 -> Step2 -> Step3 -> completed.
// Events of one user are handled one at a time; replies are issued while the
// user's lock is held so they leave in the order the events arrived.
type Machine struct {
	store    Store
	locks    *state.Locker
	notifier Notifier
	now      func() time.Time
	newID    func() uuid.UUID
}

// Option customises a Machine.
type Option func(*Machine)

// WithClock overrides the completion timestamp source.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithIDs overrides the application id generator.
func WithIDs(gen func() uuid.UUID) Option {
	return func(m *Machine) { m.newID = gen }
}

// NewMachine wires a state machine over store that hands finished forms to notifier.
func NewMachine(store Store, notifier Notifier, opts ...Option) *Machine {
	m := &Machine{
		store:    store,
		locks:    state.NewLocker(),
		notifier: notifier,
		now:      time.Now,
		newID:    uuid.New,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Active reports whether the user has a form in progress.
func (m *Machine) Active(userID int64) bool {
	_, ok := m.store.Get(userID)
	return ok
}

// Sessions returns the number of forms in progress.
func (m *Machine) Sessions() int {
	return m.store.Len()
}

// Start (re)opens the form at question 1. Unfinished answers are discarded.
func (m *Machine) Start(ctx context.Context, u User, reply Reply) error {
	unlock := m.locks.Lock(u.ID)
	defer unlock()

	_, restarted := m.store.Get(u.ID)
	m.store.Start(u.ID, u.FirstName, u.Username)
	logger.Info(ctx, "service.form", "form.start",
		slog.String("status", "ok"),
		slog.Int64("user_id", u.ID),
		slog.Bool("restarted", restarted),
	)
	return reply(prompts[1])
}

// Answer records text for the current question. Without an active form the
// user is nudged to start one and nothing changes. The third answer completes
// the form: the user is thanked, the operator notified and the session removed,
// whatever the notification outcome.
func (m *Machine) Answer(ctx context.Context, userID int64, text string, reply Reply) error {
	unlock := m.locks.Lock(userID)
	defer unlock()

	cur, ok := m.store.Get(userID)
	if !ok {
		logger.Debug(ctx, "service.form", "form.no_session",
			slog.String("status", "skip"),
			slog.Int64("user_id", userID),
		)
		return reply(TextStartFirst)
	}

	field := FieldForStep(cur.Step)
	s, err := m.store.Advance(userID, field, text)
	if err != nil {
		if errors.Is(err, ErrNoActiveSession) {
			return reply(TextStartFirst)
		}
		return err
	}
	logger.Debug(ctx, "service.form", "form.answer",
		slog.String("status", "ok"),
		slog.Int64("user_id", userID),
		slog.Int("step", cur.Step),
		slog.String("field", string(field)),
	)

	if !s.Completed {
		return reply(prompts[s.Step])
	}
	return m.complete(ctx, s, reply)
}

func (m *Machine) complete(ctx context.Context, s Session, reply Reply) error {
	rec := s.Record(m.newID(), m.now())
	ctx = logger.WithApplication(ctx, rec.ID.String())

	replyErr := reply(TextAccepted)

	if m.notifier != nil {
		// failures are recorded by the notifier; the user already got the confirmation
		_ = m.notifier.Notify(ctx, rec)
	}
	if _, err := m.store.Finish(s.UserID); err != nil && !errors.Is(err, ErrNoActiveSession) {
		return err
	}
	logger.Info(ctx, "service.form", "form.complete",
		slog.String("status", "ok"),
		slog.Int64("user_id", s.UserID),
	)
	return replyErr
}
