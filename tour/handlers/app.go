// Package handlers wires the tour intake onto the Telegram runtime: the
// command table, the free-text FSM route and the FAQ callbacks.
package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/tourbot/core/config"
	"github.com/m3rciful/tourbot/core/logger"
	tg "github.com/m3rciful/tourbot/core/telegram"
	"github.com/m3rciful/tourbot/core/telegram/helpers"
	"github.com/m3rciful/tourbot/core/telegram/router"
	tgsender "github.com/m3rciful/tourbot/core/telegram/sender"
	"github.com/m3rciful/tourbot/tour/faq"
	"github.com/m3rciful/tourbot/tour/form"
	"github.com/m3rciful/tourbot/tour/journal"
	"github.com/m3rciful/tourbot/tour/notify"
)

// App holds the tour bot components shared by all handlers.
type App struct {
	cfg      *coreconfig.Config
	machine  *form.Machine
	notifier *notify.Notifier
	journal  journal.Journal

	dispatcher atomic.Pointer[tgsender.Dispatcher]
}

// New builds the application. A nil journal disables the journal.
func New(cfg *coreconfig.Config, j journal.Journal) *App {
	if j == nil {
		j = journal.Nop{}
	}
	n := notify.New(cfg.Telegram.OperatorChatID, j)
	return &App{
		cfg:      cfg,
		machine:  form.NewMachine(form.NewMemoryStore(), n),
		notifier: n,
		journal:  j,
	}
}

// Machine exposes the form state machine.
func (a *App) Machine() *form.Machine { return a.machine }

// Notifier exposes the operator notifier.
func (a *App) Notifier() *notify.Notifier { return a.notifier }

// Register fills reg with the commands and callbacks of the bot.
func (a *App) Register(reg *tg.Registry) error {
	cmds := []struct {
		name string
		cmd  tg.Command
	}{
		{"/start", tg.Command{Description: "Приветствие", Handler: a.Start}},
		{"/tour", tg.Command{Description: "Подобрать тур", Handler: a.Tour}},
		{"/faq", tg.Command{Description: "Частые вопросы", Handler: faq.ShowMenu}},
		{"/stats", tg.Command{Description: "Статистика заявок", Handler: a.Stats, Hidden: true, AdminOnly: true}},
	}
	for _, c := range cmds {
		if err := reg.RegisterCommand(c.name, c.cmd); err != nil {
			return err
		}
	}
	return faq.Register(reg)
}

// Routes builds the full handler table for reg.
func (a *App) Routes(reg *tg.Registry) []tg.Route {
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{AdminID: a.cfg.Telegram.AdminID})
	routes = append(routes, router.TextRoutes(a, reg, router.TextOptions{UnknownText: a.Nudge})...)
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	return routes
}

// TelegramRunOptions assembles the runtime options of the bot.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	reg := tg.NewRegistry()
	if err := a.Register(reg); err != nil {
		return tg.RunOptions{}, fmt.Errorf("handlers: register: %w", err)
	}
	return tg.RunOptions{
		Config:   a.cfg,
		Registry: reg,
		DispatcherOptions: tgsender.Options{
			QueueSize:   a.cfg.Sender.QueueSize,
			Workers:     a.cfg.Sender.Workers,
			MaxDuration: time.Duration(a.cfg.Sender.TimeoutMS) * time.Millisecond,
		},
		Middlewares: tg.DefaultMiddlewares(a.cfg, nil),
		Routes:      a.Routes(reg),
		OnStart: func(ctx context.Context, rt tg.Runtime) error {
			a.notifier.Bind(rt.Bot)
			a.dispatcher.Store(rt.Dispatcher)
			if a.cfg.Telegram.OperatorChatID == 0 {
				logger.Warn(ctx, "service.notify", "notify.config",
					slog.String("status", "skip"),
					slog.String("reason", "operator_chat_id_missing"),
				)
			}
			return nil
		},
		OnStop: func(ctx context.Context, rt tg.Runtime) error {
			a.notifier.Bind(nil)
			a.dispatcher.Store(nil)
			logger.Info(ctx, "service.form", "sessions.dropped",
				slog.Int("count", a.machine.Sessions()),
			)
			return nil
		},
	}, nil
}

func replier(c tele.Context) form.Reply {
	return func(text string) error {
		return helpers.SendText(c, text)
	}
}

func userOf(c tele.Context) form.User {
	u := c.Sender()
	if u == nil {
		return form.User{}
	}
	return form.User{ID: u.ID, FirstName: u.FirstName, Username: u.Username}
}

// Start greets the user.
func (a *App) Start(c tele.Context) error {
	return helpers.SendText(c, form.TextWelcome)
}

// Tour (re)starts the form.
func (a *App) Tour(c tele.Context) error {
	if c.Sender() == nil {
		return nil
	}
	return a.machine.Start(helpers.BuildContext(c), userOf(c), replier(c))
}

// Nudge asks the user to start the form first.
func (a *App) Nudge(c tele.Context) error {
	return helpers.SendText(c, form.TextStartFirst)
}

// InProgress reports whether userID is filling in the form.
func (a *App) InProgress(userID int64) bool {
	return a.machine.Active(userID)
}

// ManagerHandler feeds a text message to the form.
func (a *App) ManagerHandler(c tele.Context) error {
	if c.Sender() == nil {
		return nil
	}
	return a.machine.Answer(helpers.BuildContext(c), c.Sender().ID, c.Text(), replier(c))
}

// Stats reports journal totals and runtime counters.
func (a *App) Stats(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	st, err := a.journal.Stats(ctx)
	if err != nil {
		logger.Error(ctx, "service.journal", "journal.stats",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return helpers.SendText(c, "stats unavailable")
	}
	return helpers.SendText(c, a.formatStats(st))
}

func (a *App) formatStats(st journal.Stats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "applications: %d (delivered %d, failed %d)\n", st.Total, st.Delivered, st.Failed)
	if !st.Last.IsZero() {
		fmt.Fprintf(&b, "last: %s\n", st.Last.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "active forms: %d", a.machine.Sessions())
	if d := a.dispatcher.Load(); d != nil {
		fmt.Fprintf(&b, "\nreplies sent: %d, failed: %d", d.DoneCount(), d.ErrorCount())
	}
	return b.String()
}
