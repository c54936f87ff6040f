package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/m3rciful/tourbot/core/buildinfo"
	coreconfig "github.com/m3rciful/tourbot/core/config"
)

var (
	initOnce sync.Once

	closeMu sync.Mutex
	closed  bool

	out      *asyncWriter
	files    []io.Closer
	levelVar slog.LevelVar

	// L is the process logger. It stays nil until InitLogger runs, and every
	// helper in this package is a no-op while it is nil.
	L *slog.Logger
)

// InitLogger configures the process logger. Only the first call has effect.
func InitLogger(cfg *coreconfig.Config) error {
	var initErr error
	initOnce.Do(func() {
		f, err := parseFormat(cfg)
		if err != nil {
			initErr = err
			return
		}
		levelVar.Set(parseLevel(cfg))

		writers, closers := openSinks(cfg)
		files = closers
		out = newAsyncWriter(writers, 64*1024)

		L = slog.New(newHandler(f, out, &levelVar))
		slog.SetDefault(L)

		startup := []slog.Attr{
			slog.String("go_version", runtime.Version()),
			slog.String("build_version", buildinfo.Version),
			slog.String("build_commit", buildinfo.Commit),
		}
		if cfg != nil {
			startup = append(startup,
				slog.String("profile", profileOf(cfg)),
				slog.String("mode", cfg.Telegram.RunMode),
			)
		}
		Info(context.Background(), "app", "startup", startup...)
	})
	return initErr
}

// Shutdown drains pending lines and closes the log files. Safe to call twice.
func Shutdown() error {
	closeMu.Lock()
	defer closeMu.Unlock()
	if closed {
		return nil
	}
	closed = true

	var errs []error
	if out != nil {
		errs = append(errs, out.Close())
	}
	for _, f := range files {
		errs = append(errs, f.Close())
	}
	return errors.Join(errs...)
}

// Debug logs a debug event for component.
func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	emit(ctx, slog.LevelDebug, component, event, attrs)
}

// Info logs an info event for component.
func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	emit(ctx, slog.LevelInfo, component, event, attrs)
}

// Warn logs a warning event for component.
func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	emit(ctx, slog.LevelWarn, component, event, attrs)
}

// Error logs an error event for component.
func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	emit(ctx, slog.LevelError, component, event, attrs)
}

func emit(ctx context.Context, level slog.Level, component, event string, attrs []slog.Attr) {
	l := L
	if l == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.Enabled(ctx, level) {
		return
	}
	if component = strings.TrimSpace(component); component == "" {
		component = "app"
	}
	all := make([]slog.Attr, 0, len(attrs)+1)
	all = append(all, slog.String(componentKey, component))
	all = append(all, attrs...)
	l.LogAttrs(ctx, level, event, all...)
}

func parseFormat(cfg *coreconfig.Config) (format, error) {
	if cfg == nil {
		return formatClassic, nil
	}
	switch raw := strings.ToLower(strings.TrimSpace(cfg.Logging.Format)); raw {
	case "json":
		return formatJSON, nil
	case "kv", "text", "pretty":
		return formatKV, nil
	case "classic", "line":
		return formatClassic, nil
	case "":
	default:
		return "", fmt.Errorf("logger: unknown format %q", raw)
	}
	// without an explicit format the profile decides
	switch profileOf(cfg) {
	case "json":
		return formatJSON, nil
	case "debug", "dev":
		return formatKV, nil
	}
	return formatClassic, nil
}

func parseLevel(cfg *coreconfig.Config) slog.Level {
	if cfg == nil {
		return slog.LevelInfo
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func profileOf(cfg *coreconfig.Config) string {
	if p := strings.ToLower(strings.TrimSpace(cfg.Logging.Profile)); p != "" {
		return p
	}
	return "prod"
}

// openSinks always logs to stdout. The log file is added when configured;
// failing to open it is reported on stderr and does not stop the bot.
func openSinks(cfg *coreconfig.Config) ([]io.Writer, []io.Closer) {
	writers := []io.Writer{os.Stdout}
	if cfg == nil {
		return writers, nil
	}
	dir := strings.TrimSpace(cfg.Logging.Dir)
	name := strings.TrimSpace(cfg.Logging.BotFile)
	if dir == "" || name == "" {
		return writers, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "logger: create %s: %v\n", dir, err)
		return writers, nil
	}
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: open log file: %v\n", err)
		return writers, nil
	}
	return append(writers, f), []io.Closer{f}
}
