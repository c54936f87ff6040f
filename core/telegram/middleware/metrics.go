package middleware

import (
	"sync/atomic"

	tele "gopkg.in/telebot.v4"
)

const counterKey = "reply_counter"

// replyCounter tallies the replies of one update. Replies may leave from the
// sender workers after the handler returned, hence the atomics.
type replyCounter struct {
	messages atomic.Int32
	keyboard atomic.Bool
}

// countingContext counts successful sends and edits made through it.
type countingContext struct {
	tele.Context
	n *replyCounter
}

func (c countingContext) track(err error, opts []interface{}) error {
	if err != nil {
		return err
	}
	c.n.messages.Add(1)
	if hasMarkup(opts) {
		c.n.keyboard.Store(true)
	}
	return nil
}

func hasMarkup(opts []interface{}) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

func (c countingContext) Send(what interface{}, opts ...interface{}) error {
	return c.track(c.Context.Send(what, opts...), opts)
}

func (c countingContext) Reply(what interface{}, opts ...interface{}) error {
	return c.track(c.Context.Reply(what, opts...), opts)
}

func (c countingContext) Edit(what interface{}, opts ...interface{}) error {
	return c.track(c.Context.Edit(what, opts...), opts)
}

func (c countingContext) EditOrSend(what interface{}, opts ...interface{}) error {
	return c.track(c.Context.EditOrSend(what, opts...), opts)
}

func (c countingContext) EditOrReply(what interface{}, opts ...interface{}) error {
	return c.track(c.Context.EditOrReply(what, opts...), opts)
}

// MessageMetricsMiddleware counts what handlers send back so the handler
// summary line can report it.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		n := &replyCounter{}
		c.Set(counterKey, n)
		return next(countingContext{Context: c, n: n})
	}
}

// GetCounters returns how many replies were sent so far and whether any of
// them carried a keyboard.
func GetCounters(c tele.Context) (int, bool) {
	n, ok := c.Get(counterKey).(*replyCounter)
	if !ok {
		return 0, false
	}
	return int(n.messages.Load()), n.keyboard.Load()
}
