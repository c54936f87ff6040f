package faq

import (
	"testing"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/tourbot/core/telegram"
)

type editContext struct {
	tele.Context
	user   *tele.User
	edited string
	opts   []interface{}
}

func (c *editContext) Edit(what interface{}, opts ...interface{}) error {
	c.edited, _ = what.(string)
	c.opts = opts
	return nil
}

func (c *editContext) Sender() *tele.User { return c.user }

func TestAnswerIsFixed(t *testing.T) {
	want, ok := Answer(TagPay)
	if !ok || want == "" {
		t.Fatal("faq_pay has no answer")
	}
	for i := 0; i < 3; i++ {
		if got, _ := Answer(TagPay); got != want {
			t.Fatalf("faq_pay answer changed: %q", got)
		}
	}
	if _, ok := Answer("faq_unknown"); ok {
		t.Fatal("unknown tag must have no answer")
	}
}

func TestMenu(t *testing.T) {
	m := Menu()
	tags := Tags()
	if len(m.InlineKeyboard) != len(tags) {
		t.Fatalf("rows = %d", len(m.InlineKeyboard))
	}
	for i, row := range m.InlineKeyboard {
		if len(row) != 1 {
			t.Fatalf("row %d has %d buttons", i, len(row))
		}
		if row[0].Unique != "" || row[0].Data != tags[i] {
			t.Fatalf("row %d carries %q/%q, want bare %q", i, row[0].Unique, row[0].Data, tags[i])
		}
	}
}

func TestRegisterEditsInPlace(t *testing.T) {
	reg := tg.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatal(err)
	}
	for _, tag := range Tags() {
		h, ok := reg.GetCallback(tag)
		if !ok {
			t.Fatalf("%s not registered", tag)
		}
		// the answer must not depend on who pressed the button
		for _, uid := range []int64{1, 2} {
			c := &editContext{user: &tele.User{ID: uid}}
			if err := h(c); err != nil {
				t.Fatal(err)
			}
			want, _ := Answer(tag)
			if c.edited != want {
				t.Fatalf("%s edited to %q", tag, c.edited)
			}
			opts, ok := c.opts[0].(*tele.SendOptions)
			if !ok || opts.ParseMode != tele.ModeMarkdownV2 {
				t.Fatalf("%s options = %+v", tag, c.opts)
			}
		}
	}
	if err := Register(reg); err == nil {
		t.Fatal("second registration must fail on duplicates")
	}
}
