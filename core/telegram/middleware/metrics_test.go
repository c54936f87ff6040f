package middleware

import (
	"errors"
	"testing"

	tele "gopkg.in/telebot.v4"
)

type replyContext struct {
	senderContext
	fail bool
}

func (c *replyContext) Send(interface{}, ...interface{}) error {
	if c.fail {
		return errors.New("blocked")
	}
	return nil
}

func (c *replyContext) Edit(interface{}, ...interface{}) error { return nil }

func TestMessageMetricsMiddleware(t *testing.T) {
	c := &replyContext{senderContext: senderContext{user: &tele.User{ID: 1}}}
	h := MessageMetricsMiddleware(func(c tele.Context) error {
		_ = c.Send("one")
		_ = c.Edit("two", &tele.SendOptions{ReplyMarkup: &tele.ReplyMarkup{}})
		return nil
	})
	if err := h(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if n, kb := GetCounters(c); n != 2 || !kb {
		t.Fatalf("counters = %d, %v", n, kb)
	}

	c = &replyContext{senderContext: senderContext{user: &tele.User{ID: 1}}, fail: true}
	h = MessageMetricsMiddleware(func(c tele.Context) error { return c.Send("lost") })
	_ = h(c)
	if n, kb := GetCounters(c); n != 0 || kb {
		t.Fatalf("failed sends counted: %d, %v", n, kb)
	}
}

func TestGetCountersWithoutMiddleware(t *testing.T) {
	if n, kb := GetCounters(&senderContext{user: &tele.User{ID: 1}}); n != 0 || kb {
		t.Fatalf("counters = %d, %v", n, kb)
	}
}
