package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tourbot/core/logger"
	"github.com/m3rciful/tourbot/core/telegram/sender"
	"github.com/m3rciful/tourbot/tour/form"
	"github.com/m3rciful/tourbot/tour/journal"
)

var (
	// ErrDeliveryFailed matches every DeliveryError.
	ErrDeliveryFailed = errors.New("notify: delivery failed")
	// ErrNoOperatorChat reports that no operator chat is configured.
	ErrNoOperatorChat = errors.New("operator chat is not configured")
	// ErrNotBound reports that Notify ran before a bot was bound.
	ErrNotBound = errors.New("sender is not bound")
)

// DeliveryError wraps the cause of a failed operator notification.
type DeliveryError struct {
	ApplicationID string
	Cause         error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("notify: deliver application %s: %v", e.ApplicationID, e.Cause)
}

func (e *DeliveryError) Unwrap() error { return e.Cause }

// Is makes errors.Is(err, ErrDeliveryFailed) true.
func (e *DeliveryError) Is(target error) bool { return target == ErrDeliveryFailed }

// Sender is the part of tele.Bot used to reach the operator.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

type boundSender struct{ Sender }

// Notifier sends completed applications to one fixed chat. Failures are
// logged with the whole record and journaled; they are never retried.
type Notifier struct {
	chatID  int64
	journal journal.Journal
	sender  atomic.Pointer[boundSender]
}

// New creates a Notifier for chatID. A nil journal discards entries.
func New(chatID int64, j journal.Journal) *Notifier {
	if j == nil {
		j = journal.Nop{}
	}
	return &Notifier{chatID: chatID, journal: j}
}

// Bind sets the sender. The bot exists only once the runtime has started,
// so binding happens after construction.
func (n *Notifier) Bind(s Sender) {
	if s == nil {
		n.sender.Store(nil)
		return
	}
	n.sender.Store(&boundSender{s})
}

// Notify delivers rec to the operator chat.
func (n *Notifier) Notify(ctx context.Context, rec form.Record) error {
	start := time.Now()
	err := n.deliver(rec)

	entry := journal.Entry{Record: rec, Status: journal.StatusOf(err)}
	if err != nil {
		entry.Error = sender.SanitizeError(err)
	}
	if jerr := n.journal.Append(ctx, entry); jerr != nil {
		logger.Warn(ctx, "service.notify", "notify.journal",
			slog.String("status", "fail"),
			slog.String("err", jerr.Error()),
		)
	}

	if err != nil {
		derr := &DeliveryError{ApplicationID: rec.ID.String(), Cause: err}
		logger.Error(ctx, "service.notify", "notify.send",
			slog.String("status", "fail"),
			slog.Int64("chat_id", n.chatID),
			slog.String("err", sender.SanitizeError(err)),
			slog.Duration("duration", logger.RoundMS(time.Since(start))),
			recordAttr(rec),
		)
		return derr
	}
	logger.Info(ctx, "service.notify", "notify.send",
		slog.String("status", "ok"),
		slog.Int64("chat_id", n.chatID),
		slog.Int64("user_id", rec.UserID),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return nil
}

func (n *Notifier) deliver(rec form.Record) error {
	if n.chatID == 0 {
		return ErrNoOperatorChat
	}
	bound := n.sender.Load()
	if bound == nil {
		return ErrNotBound
	}
	text, markup := Render(rec)
	_, err := bound.Send(tele.ChatID(n.chatID), text, &tele.SendOptions{
		ParseMode:             tele.ModeMarkdownV2,
		DisableWebPagePreview: true,
		ReplyMarkup:           markup,
	})
	return err
}

// recordAttr carries the full application so it can be recovered from logs.
func recordAttr(rec form.Record) slog.Attr {
	return slog.Group("record",
		slog.String("id", rec.ID.String()),
		slog.Int64("user_id", rec.UserID),
		slog.String("first_name", rec.FirstName),
		slog.String("username", rec.Username),
		slog.String("direction", rec.Direction),
		slog.String("dates", rec.Dates),
		slog.String("budget", rec.Budget),
		slog.Time("completed_at", rec.CompletedAt),
	)
}
