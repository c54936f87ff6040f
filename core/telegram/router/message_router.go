package router

import (
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/tourbot/core/telegram"
	"github.com/m3rciful/tourbot/core/telegram/middleware"
)

// FSM defines the minimal interface for a conversation state machine.
type FSM interface {
	InProgress(userID int64) bool
	ManagerHandler(c tele.Context) error
}

// TextOptions controls fallback behaviour for text updates.
type TextOptions struct {
	// UnknownText runs for plain text while no conversation is active.
	UnknownText tele.HandlerFunc
}

// TextRoutes builds the handler for plain text messages.
// Text that looks like a command is resolved through the registry (aliases
// included) and otherwise dropped, so it never reaches the FSM.
func TextRoutes(fsmMgr FSM, reg *tg.Registry, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		text := strings.TrimSpace(c.Text())

		if strings.HasPrefix(text, "/") {
			if reg != nil {
				if key, cmd, ok := reg.LookupCommand(strings.Fields(text)[0]); ok && cmd.Handler != nil && !cmd.AdminOnly {
					name := normalizeHandlerName(key)
					return summary{handler: name, start: start}.run(c, func() error {
						return cmd.Handler(c)
					})
				}
			}
			summary{handler: "unknown_command", start: start, skipped: true}.log(c, nil)
			return nil
		}

		if fsmMgr != nil && c.Sender() != nil && fsmMgr.InProgress(c.Sender().ID) {
			return summary{handler: "fsm", start: start}.run(c, func() error {
				return fsmMgr.ManagerHandler(c)
			})
		}

		if opts.UnknownText != nil {
			return summary{handler: "unknown_text", start: start}.run(c, func() error {
				return opts.UnknownText(c)
			})
		}

		summary{handler: "unknown_text", start: start, skipped: true}.log(c, nil)
		return nil
	}

	return []tg.Route{
		{
			Endpoint: tele.OnText,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
		},
	}
}
