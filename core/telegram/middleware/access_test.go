package middleware

import (
	"testing"

	tele "gopkg.in/telebot.v4"
)

type senderContext struct {
	tele.Context
	user  *tele.User
	store map[string]any
}

func (c *senderContext) Sender() *tele.User  { return c.user }
func (c *senderContext) Chat() *tele.Chat    { return &tele.Chat{ID: c.user.ID} }
func (c *senderContext) Update() tele.Update { return tele.Update{ID: 1} }
func (c *senderContext) Get(key string) any  { return c.store[key] }
func (c *senderContext) Set(key string, v any) {
	if c.store == nil {
		c.store = map[string]any{}
	}
	c.store[key] = v
}

func TestAdminOnlyMiddleware(t *testing.T) {
	tests := []struct {
		name    string
		adminID int64
		userID  int64
		want    bool
	}{
		{"admin passes", 10, 10, true},
		{"stranger rejected", 10, 11, false},
		{"no admin configured", 0, 10, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called, rejected := false, false
			mw := AdminOnlyMiddleware(AdminOptions{
				AdminID: tt.adminID,
				OnReject: func(tele.Context) error {
					rejected = true
					return nil
				},
			})
			h := mw(func(tele.Context) error {
				called = true
				return nil
			})
			if err := h(&senderContext{user: &tele.User{ID: tt.userID}}); err != nil {
				t.Fatalf("handler: %v", err)
			}
			if called != tt.want || rejected == tt.want {
				t.Fatalf("called=%v rejected=%v, want called=%v", called, rejected, tt.want)
			}
		})
	}
}
