// Package journal keeps an append-only log of completed applications and
// the outcome of their delivery to the operator chat.
package journal

import (
	"context"
	"time"

	"github.com/m3rciful/tourbot/tour/form"
)

// Status is the delivery outcome of one application.
type Status string

const (
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
)

// StatusOf maps a delivery error to its status.
func StatusOf(err error) Status {
	if err != nil {
		return StatusFailed
	}
	return StatusDelivered
}

// Entry is one journaled delivery attempt.
type Entry struct {
	Record form.Record
	Status Status
	Error  string
}

// Stats summarizes the journal.
type Stats struct {
	Total     int
	Delivered int
	Failed    int
	// Last is the completion time of the newest application; zero when empty.
	Last time.Time
}

// Journal stores delivery attempts.
type Journal interface {
	Append(ctx context.Context, e Entry) error
	Stats(ctx context.Context) (Stats, error)
}

// Nop discards entries. It is used when no database is configured.
type Nop struct{}

// Append does nothing.
func (Nop) Append(context.Context, Entry) error { return nil }

// Stats always reports an empty journal.
func (Nop) Stats(context.Context) (Stats, error) { return Stats{}, nil }
