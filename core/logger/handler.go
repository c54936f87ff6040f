package logger

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

type format string

const (
	formatJSON    format = "json"
	formatKV      format = "kv"
	formatClassic format = "classic"

	componentKey = "component"

	timeLayout        = "2006-01-02T15:04:05.000Z07:00"
	timeLayoutClassic = "2006-01-02 15:04:05,000"
)

// newHandler builds the handler chain for f. Every chain stamps update
// metadata from the context onto the record first.
func newHandler(f format, w io.Writer, level slog.Leveler) slog.Handler {
	var next slog.Handler
	switch f {
	case formatJSON:
		next = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level, ReplaceAttr: replaceAttr})
	case formatKV:
		next = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level, ReplaceAttr: replaceAttr})
	default:
		next = &classicHandler{w: w, level: level, mu: &sync.Mutex{}}
	}
	return contextHandler{next: next}
}

// contextHandler copies the request metadata stored by WithUpdateMeta and
// friends onto each record.
type contextHandler struct {
	next slog.Handler
}

func (h contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if m, ok := metaFrom(ctx); ok {
		r.AddAttrs(m.attrs()...)
	}
	return h.next.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{next: h.next.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{next: h.next.WithGroup(name)}
}

// replaceAttr renames the built-in keys to ts/event, prints durations as
// whole milliseconds under a *_ms key and flattens errors to their text.
func replaceAttr(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 {
		switch a.Key {
		case slog.TimeKey:
			if a.Value.Kind() == slog.KindTime {
				return slog.String("ts", a.Value.Time().UTC().Format(timeLayout))
			}
		case slog.MessageKey:
			a.Key = "event"
			return a
		}
	}
	return normalize(a)
}

func normalize(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindDuration:
		return slog.Int64(durationKey(a.Key), RoundMS(a.Value.Duration()).Milliseconds())
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			return slog.String(a.Key, err.Error())
		}
	}
	return a
}

func durationKey(key string) string {
	switch {
	case key == "duration":
		return "duration_ms"
	case strings.HasSuffix(key, "_ms"):
		return key
	}
	return key + "_ms"
}

// classicHandler writes "ts - component - LEVEL - event k=v ..." lines.
type classicHandler struct {
	w     io.Writer
	level slog.Leveler
	mu    *sync.Mutex

	component string
	prefix    string
	preset    []byte
}

func (h *classicHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *classicHandler) Handle(_ context.Context, r slog.Record) error {
	component := h.component
	var tail bytes.Buffer
	tail.Write(h.preset)
	r.Attrs(func(a slog.Attr) bool {
		if h.prefix == "" && a.Key == componentKey {
			component = a.Value.String()
			return true
		}
		appendKV(&tail, h.prefix, a)
		return true
	})
	if component == "" {
		component = "app"
	}

	var line bytes.Buffer
	line.WriteString(r.Time.UTC().Format(timeLayoutClassic))
	line.WriteString(" - ")
	line.WriteString(component)
	line.WriteString(" - ")
	line.WriteString(r.Level.String())
	line.WriteString(" - ")
	line.WriteString(r.Message)
	line.Write(tail.Bytes())
	line.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(line.Bytes())
	return err
}

func (h *classicHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	var preset bytes.Buffer
	preset.Write(h.preset)
	for _, a := range attrs {
		if h.prefix == "" && a.Key == componentKey {
			clone.component = a.Value.String()
			continue
		}
		appendKV(&preset, h.prefix, a)
	}
	clone.preset = preset.Bytes()
	return &clone
}

func (h *classicHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}

func appendKV(buf *bytes.Buffer, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Value.Kind() == slog.KindGroup {
		sub := prefix
		if a.Key != "" {
			sub = prefix + a.Key + "."
		}
		for _, child := range a.Value.Group() {
			appendKV(buf, sub, child)
		}
		return
	}
	if a.Key == "" {
		return
	}
	a = normalize(a)

	var val string
	switch a.Value.Kind() {
	case slog.KindString:
		val = strings.TrimSpace(a.Value.String())
		if val == "" {
			return
		}
	case slog.KindTime:
		val = a.Value.Time().UTC().Format(time.RFC3339Nano)
	default:
		val = fmt.Sprint(a.Value.Any())
	}
	buf.WriteByte(' ')
	buf.WriteString(prefix)
	buf.WriteString(a.Key)
	buf.WriteByte('=')
	if strings.IndexFunc(val, needsQuote) >= 0 {
		val = strconv.Quote(val)
	}
	buf.WriteString(val)
}

func needsQuote(r rune) bool {
	return r <= ' ' || r == '=' || r == '"'
}
