package logger

import (
	"context"
	"log/slog"
)

type metaKey struct{}

// meta is the per-update correlation data carried through a context.
type meta struct {
	rid         string
	updateID    int
	userID      int64
	chatID      int64
	handler     string
	application string
}

func (m meta) attrs() []slog.Attr {
	out := make([]slog.Attr, 0, 6)
	if m.rid != "" {
		out = append(out, slog.String("rid", m.rid))
	}
	if m.updateID != 0 {
		out = append(out, slog.Int("update_id", m.updateID))
	}
	if m.userID != 0 {
		out = append(out, slog.Int64("user_id", m.userID))
	}
	if m.chatID != 0 {
		out = append(out, slog.Int64("chat_id", m.chatID))
	}
	if m.handler != "" {
		out = append(out, slog.String("handler", m.handler))
	}
	if m.application != "" {
		out = append(out, slog.String("application_id", m.application))
	}
	return out
}

func metaFrom(ctx context.Context) (meta, bool) {
	if ctx == nil {
		return meta{}, false
	}
	m, ok := ctx.Value(metaKey{}).(meta)
	return m, ok
}

func withMeta(ctx context.Context, set func(*meta)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	m, _ := metaFrom(ctx)
	set(&m)
	return context.WithValue(ctx, metaKey{}, m)
}

// WithRID attaches a request correlation id.
func WithRID(ctx context.Context, rid string) context.Context {
	return withMeta(ctx, func(m *meta) { m.rid = rid })
}

// WithUpdateMeta attaches the update, user and chat identifiers.
func WithUpdateMeta(ctx context.Context, updateID int, userID, chatID int64) context.Context {
	return withMeta(ctx, func(m *meta) {
		m.updateID = updateID
		m.userID = userID
		m.chatID = chatID
	})
}

// WithHandler names the handler serving the update.
func WithHandler(ctx context.Context, handler string) context.Context {
	if handler == "" {
		return ctx
	}
	return withMeta(ctx, func(m *meta) { m.handler = handler })
}

// WithApplication attaches the intake application id so every line about it
// can be correlated with the operator message and the journal row.
func WithApplication(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return withMeta(ctx, func(m *meta) { m.application = id })
}

// RIDFrom returns the correlation id, if any.
func RIDFrom(ctx context.Context) string {
	m, _ := metaFrom(ctx)
	return m.rid
}

// UpdateIDFrom returns the update id, if any.
func UpdateIDFrom(ctx context.Context) int {
	m, _ := metaFrom(ctx)
	return m.updateID
}

// UserIDFrom returns the Telegram user id, if any.
func UserIDFrom(ctx context.Context) int64 {
	m, _ := metaFrom(ctx)
	return m.userID
}

// ChatIDFrom returns the chat id, if any.
func ChatIDFrom(ctx context.Context) int64 {
	m, _ := metaFrom(ctx)
	return m.chatID
}

// HandlerFrom returns the handler name, if any.
func HandlerFrom(ctx context.Context) string {
	m, _ := metaFrom(ctx)
	return m.handler
}

// ApplicationFrom returns the application id, if any.
func ApplicationFrom(ctx context.Context) string {
	m, _ := metaFrom(ctx)
	return m.application
}
