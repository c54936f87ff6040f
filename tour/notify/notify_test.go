package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tourbot/tour/form"
	"github.com/m3rciful/tourbot/tour/journal"
)

type fakeSender struct {
	to   tele.Recipient
	what interface{}
	opts []interface{}
	err  error
	n    int
}

func (f *fakeSender) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.n++
	f.to, f.what, f.opts = to, what, opts
	if f.err != nil {
		return nil, f.err
	}
	return &tele.Message{ID: 1}, nil
}

type memJournal struct {
	mu      sync.Mutex
	entries []journal.Entry
}

func (j *memJournal) Append(_ context.Context, e journal.Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
	return nil
}

func (j *memJournal) Stats(context.Context) (journal.Stats, error) { return journal.Stats{}, nil }

func sampleRecord() form.Record {
	return form.Record{
		ID:          uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
		UserID:      42,
		FirstName:   "Ann",
		Username:    form.NoUsername,
		Direction:   "Turkey",
		Dates:       "01-15 Aug",
		Budget:      "100000 RUB",
		CompletedAt: time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRender(t *testing.T) {
	text, markup := Render(sampleRecord())
	want := "🚀 *Новая заявка на тур\\!*\n\n" +
		"👤 *Клиент:* [Ann](tg://user?id=42)\n" +
		"📱 @нет\n\n" +
		"📍 *Направление:* Turkey\n" +
		"📅 *Даты:* 01\\-15 Aug\n" +
		"💰 *Бюджет:* 100000 RUB"
	if text != want {
		t.Fatalf("text:\n%s\nwant:\n%s", text, want)
	}
	if len(markup.InlineKeyboard) != 1 || len(markup.InlineKeyboard[0]) != 1 {
		t.Fatalf("keyboard = %+v", markup.InlineKeyboard)
	}
	btn := markup.InlineKeyboard[0][0]
	if btn.Text != WriteButtonText || btn.URL != "tg://user?id=42" {
		t.Fatalf("button = %+v", btn)
	}
}

func TestRenderEscapesUserInput(t *testing.T) {
	rec := sampleRecord()
	rec.FirstName = "A_n]n"
	rec.Username = "a_b"
	rec.Budget = "1.000 (max)"
	text, _ := Render(rec)
	for _, frag := range []string{"[A\\_n\\]n](tg://user?id=42)", "@a\\_b", "1\\.000 \\(max\\)"} {
		if !strings.Contains(text, frag) {
			t.Errorf("missing %q in %q", frag, text)
		}
	}
}

func TestNotifySends(t *testing.T) {
	s := &fakeSender{}
	j := &memJournal{}
	n := New(-100500, j)
	n.Bind(s)

	if err := n.Notify(context.Background(), sampleRecord()); err != nil {
		t.Fatal(err)
	}
	if s.n != 1 {
		t.Fatalf("sends = %d", s.n)
	}
	if s.to.Recipient() != "-100500" {
		t.Fatalf("recipient = %q", s.to.Recipient())
	}
	opts, ok := s.opts[0].(*tele.SendOptions)
	if !ok || opts.ParseMode != tele.ModeMarkdownV2 || !opts.DisableWebPagePreview || opts.ReplyMarkup == nil {
		t.Fatalf("options = %+v", s.opts)
	}
	if len(j.entries) != 1 || j.entries[0].Status != journal.StatusDelivered {
		t.Fatalf("journal = %+v", j.entries)
	}
}

func TestNotifyFailures(t *testing.T) {
	cause := errors.New("telegram: chat not found (400)")
	tests := []struct {
		name   string
		chatID int64
		sender Sender
		cause  error
	}{
		{"send error", 1, &fakeSender{err: cause}, cause},
		{"no operator chat", 0, &fakeSender{}, ErrNoOperatorChat},
		{"unbound", 1, nil, ErrNotBound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := &memJournal{}
			n := New(tt.chatID, j)
			n.Bind(tt.sender)

			err := n.Notify(context.Background(), sampleRecord())
			if !errors.Is(err, ErrDeliveryFailed) {
				t.Fatalf("err = %v, want ErrDeliveryFailed", err)
			}
			if !errors.Is(err, tt.cause) {
				t.Fatalf("cause lost: %v", err)
			}
			var derr *DeliveryError
			if !errors.As(err, &derr) || derr.ApplicationID != sampleRecord().ID.String() {
				t.Fatalf("not a DeliveryError: %v", err)
			}
			if len(j.entries) != 1 || j.entries[0].Status != journal.StatusFailed || j.entries[0].Error == "" {
				t.Fatalf("journal = %+v", j.entries)
			}
		})
	}
}

func TestNotifyDoesNotRetry(t *testing.T) {
	s := &fakeSender{err: errors.New("timeout")}
	n := New(1, nil)
	n.Bind(s)
	_ = n.Notify(context.Background(), sampleRecord())
	if s.n != 1 {
		t.Fatalf("sends = %d, want 1", s.n)
	}
}
