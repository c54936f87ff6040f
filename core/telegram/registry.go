package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tourbot/core/logger"
)

// ErrBadRegistration reports an unusable command or callback definition.
var ErrBadRegistration = errors.New("telegram: bad registration")

// Command describes one slash command of the bot.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// AdminOnly commands run only for the configured admin.
	AdminOnly bool
	// Hidden commands stay out of the Telegram command menu.
	Hidden  bool
	Aliases []string
}

// Registry maps command names and callback keys to handlers. Commands are
// registered during wiring only; callbacks may be looked up concurrently.
type Registry struct {
	commands map[string]Command

	mu        sync.RWMutex
	callbacks map[string]tele.HandlerFunc
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		commands:  make(map[string]Command),
		callbacks: make(map[string]tele.HandlerFunc),
	}
}

// RegisterCommand adds cmd under name, which must start with a slash.
func (r *Registry) RegisterCommand(name string, cmd Command) error {
	switch {
	case !strings.HasPrefix(name, "/") || len(name) < 2:
		return fmt.Errorf("%w: command %q needs a slash prefix", ErrBadRegistration, name)
	case cmd.Handler == nil || cmd.Description == "":
		return fmt.Errorf("%w: command %s needs a handler and a description", ErrBadRegistration, name)
	}
	if _, dup := r.commands[name]; dup {
		return fmt.Errorf("%w: command %s registered twice", ErrBadRegistration, name)
	}
	r.commands[name] = cmd
	return nil
}

// Commands returns the registered commands by name.
func (r *Registry) Commands() map[string]Command {
	return r.commands
}

// ListCommands returns the commands sorted by name. With visibleOnly the
// hidden and admin-only ones are left out.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	list := make([]tele.Command, 0, len(r.commands))
	for name, cmd := range r.commands {
		if visibleOnly && (cmd.Hidden || cmd.AdminOnly) {
			continue
		}
		list = append(list, tele.Command{Text: name, Description: cmd.Description})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Text < list[j].Text })
	return list
}

// LookupCommand resolves name, with or without the slash, directly or
// through an alias, and returns the canonical name.
func (r *Registry) LookupCommand(name string) (string, Command, bool) {
	name = "/" + strings.TrimPrefix(name, "/")
	if cmd, ok := r.commands[name]; ok {
		return name, cmd, true
	}
	for key, cmd := range r.commands {
		for _, alias := range cmd.Aliases {
			if "/"+strings.TrimPrefix(alias, "/") == name {
				return key, cmd, true
			}
		}
	}
	return "", Command{}, false
}

// RegisterCallback binds handler to a callback key.
func (r *Registry) RegisterCallback(key string, handler tele.HandlerFunc) error {
	if key == "" || handler == nil {
		return fmt.Errorf("%w: callback %q needs a key and a handler", ErrBadRegistration, key)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.callbacks[key]; dup {
		return fmt.Errorf("%w: callback %s registered twice", ErrBadRegistration, key)
	}
	r.callbacks[key] = handler
	return nil
}

// GetCallback returns the handler bound to key.
func (r *Registry) GetCallback(key string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// ListCallbacks returns the registered keys, sorted.
func (r *Registry) ListCallbacks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.callbacks))
	for k := range r.callbacks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CommandSetter is the part of tele.Bot that publishes the command menu.
type CommandSetter interface {
	SetCommands(opts ...interface{}) error
}

// SetupCommands publishes the visible commands as the Telegram command
// menu. A failure is logged; the bot works without the menu.
func SetupCommands(bot CommandSetter, reg *Registry) {
	if bot == nil || reg == nil {
		return
	}
	list := reg.ListCommands(true)
	if len(list) == 0 {
		return
	}
	ctx := context.Background()
	if err := bot.SetCommands(list); err != nil {
		logger.Error(ctx, "tg.wire", "set_commands",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return
	}
	logger.Debug(ctx, "tg.wire", "set_commands",
		slog.String("status", "ok"),
		slog.Int("count", len(list)),
	)
}
