package router

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tourbot/core/logger"
	tghelpers "github.com/m3rciful/tourbot/core/telegram/helpers"
	"github.com/m3rciful/tourbot/core/telegram/middleware"
)

// summary is the handler.handled line written once per routed update.
type summary struct {
	handler string
	start   time.Time
	skipped bool
	extras  []slog.Attr
}

// run names the handler on the update context, runs fn and logs the result.
func (s summary) run(c tele.Context, fn func() error) error {
	tghelpers.WithHandler(c, s.handler)
	err := fn()
	s.log(c, err)
	return err
}

func (s summary) log(c tele.Context, err error) {
	ctx := tghelpers.WithHandler(c, s.handler)
	msgs, kb := middleware.GetCounters(c)

	status := "ok"
	switch {
	case err != nil:
		status = "fail"
	case s.skipped:
		status = "skip"
	}
	attrs := append([]slog.Attr{
		slog.String("status", status),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Duration("duration", logger.Took(s.start)),
	}, s.extras...)

	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", errorCode(err)),
		)
		logger.Warn(ctx, "tg", "handler.handled", attrs...)
		return
	}
	logger.Info(ctx, "tg", "handler.handled", attrs...)
}

// normalizeHandlerName turns "/Tour Now" into "tour_now".
func normalizeHandlerName(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	if name == "" {
		return "unknown"
	}
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}

// errorCode prefers an explicit Code() and falls back to the error's type name.
func errorCode(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		if code := strings.TrimSpace(coded.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	name := strings.TrimPrefix(fmt.Sprintf("%T", err), "*")
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return strings.ToUpper(name)
}
