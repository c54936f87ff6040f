package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/tourbot/core/config"
	"github.com/m3rciful/tourbot/core/logger"
	"github.com/m3rciful/tourbot/core/telegram/dedupe"
	tghelpers "github.com/m3rciful/tourbot/core/telegram/helpers"
	tgsender "github.com/m3rciful/tourbot/core/telegram/sender"
	"github.com/m3rciful/tourbot/core/telegram/webhook"
)

// Middleware describes a global bot middleware to be registered via bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route declares a single bot handler bound to an arbitrary endpoint.
// Endpoint values are passed directly to tele.Bot.Handle.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions controls the behaviour of RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry

	DispatcherOptions tgsender.Options
	Dispatcher        *tgsender.Dispatcher

	Middlewares []Middleware
	Routes      []Route

	// Dedupe filters redelivered webhook updates; nil means a process-local guard.
	Dedupe dedupe.Guard

	DisableWebhookCleanup      bool
	DisableWebhookRegistration bool
	DisableHelperDispatcher    bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime exposes runtime components to lifecycle hooks.
type Runtime struct {
	Bot        *tele.Bot
	Dispatcher *tgsender.Dispatcher
	Registry   *Registry
}

// NewBot creates a bot client for the configured token. Webhook mode runs
// handlers synchronously so an HTTP request is acknowledged only after its
// update was handled.
func NewBot(cfg *coreconfig.Config) (*tele.Bot, error) {
	if cfg == nil {
		return nil, fmt.Errorf("telegram: nil config provided")
	}
	settings := tele.Settings{
		Token: cfg.Telegram.Token,
		Poller: BuildPoller(PollerOptions{
			RunMode:                cfg.Telegram.RunMode,
			LongPollTimeoutSeconds: cfg.Telegram.LongPollTimeoutSeconds,
		}),
		Client:      BuildHTTPClient(),
		Synchronous: cfg.Telegram.RunMode == coreconfig.RunModeWebhook,
		OnError:     logHandlerError,
	}
	bot, err := tele.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("telegram: bot initialization failed: %w", err)
	}
	return bot, nil
}

// RunTelegram composes and runs a Telegram bot until the provided context is done.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Config == nil {
		return fmt.Errorf("telegram: nil config provided")
	}

	cfg := opts.Config
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}

	buildStart := time.Now()
	bot, err := NewBot(cfg)
	if err != nil {
		return err
	}
	buildTook := time.Since(buildStart)

	dispatcher := opts.Dispatcher
	if dispatcher == nil {
		dispatcher = tgsender.NewDispatcher(opts.DispatcherOptions)
	}
	useHelperDispatcher := !opts.DisableHelperDispatcher
	if useHelperDispatcher {
		tghelpers.SetDispatcher(dispatcher)
	}

	rt := Runtime{
		Bot:        bot,
		Dispatcher: dispatcher,
		Registry:   reg,
	}

	var server *webhook.Server
	if cfg.Telegram.RunMode == coreconfig.RunModeWebhook {
		logger.Info(ctx, "tg", "mode",
			slog.String("mode", "webhook"),
			slog.String("listen", cfg.Webhook.ListenAddr()),
			slog.String("public_url", cfg.Webhook.URL),
			slog.Duration("duration", logger.RoundMS(buildTook)),
		)
		if !opts.DisableWebhookRegistration {
			if err := RegisterWebhook(bot, cfg.Webhook); err != nil {
				dispatcher.Close()
				return err
			}
		}
		guard := opts.Dedupe
		if guard == nil {
			guard = dedupe.NewMemory(time.Duration(cfg.Webhook.DedupeTTLSeconds) * time.Second)
		}
		server = webhook.NewServer(cfg.Webhook.ListenAddr(), webhook.NewHandler(bot, webhook.Options{
			Secret:      cfg.Webhook.Secret,
			HeaderToken: cfg.Webhook.HeaderToken,
			Dedupe:      guard,
		}))
	} else {
		timeoutSec := 10
		if cfg.Telegram.LongPollTimeoutSeconds > 0 {
			timeoutSec = cfg.Telegram.LongPollTimeoutSeconds
		}
		logger.Info(ctx, "tg", "mode",
			slog.String("mode", "polling"),
			slog.Int("timeout_seconds", timeoutSec),
			slog.Duration("duration", logger.RoundMS(buildTook)),
		)

		if !opts.DisableWebhookCleanup {
			// a leftover webhook makes getUpdates fail with 409
			if err := bot.RemoveWebhook(false); err != nil {
				logger.Warn(ctx, "tg", "delete_webhook",
					slog.String("status", "fail"),
					slog.String("err", tgsender.SanitizeError(err)),
				)
			} else {
				logger.Info(ctx, "tg", "delete_webhook",
					slog.String("status", "ok"),
				)
			}
		}
	}

	for _, mw := range opts.Middlewares {
		if mw.Use == nil {
			continue
		}
		bot.Use(mw.Use)
	}

	for _, route := range opts.Routes {
		if route.Endpoint == nil || route.Handler == nil {
			continue
		}
		bot.Handle(route.Endpoint, route.Handler)
	}

	SetupCommands(bot, reg)

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			dispatcher.Close()
			if useHelperDispatcher {
				tghelpers.SetDispatcher(nil)
			}
			return err
		}
	}

	runDone := make(chan struct{})
	go func() {
		bot.Start()
		close(runDone)
	}()

	serveCtx, stopServe := context.WithCancel(ctx)
	defer stopServe()
	serveDone := make(chan error, 1)
	if server != nil {
		go func() { serveDone <- server.Run(serveCtx) }()
	}

	var (
		runErr        error
		serverStopped bool
	)

	select {
	case <-ctx.Done():
		runErr = ctx.Err()
	case runErr = <-serveDone:
		serverStopped = true
	case <-runDone:
	}

	// the HTTP server goes first so no request reaches a stopping bot
	stopServe()
	if server != nil && !serverStopped {
		if err := <-serveDone; err != nil && runErr == nil {
			runErr = err
		}
	}
	select {
	case <-runDone:
	default:
		bot.Stop()
		<-runDone
	}

	var stopErr error
	if opts.OnStop != nil {
		stopErr = opts.OnStop(context.WithoutCancel(ctx), rt)
	}

	dispatcher.Close()
	if useHelperDispatcher {
		tghelpers.SetDispatcher(nil)
	}

	if stopErr != nil {
		return stopErr
	}
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return nil
		}
		return runErr
	}

	return nil
}

// RegisterWebhook points Telegram at WEBHOOK_URL/WEBHOOK_SECRET.
func RegisterWebhook(bot *tele.Bot, cfg coreconfig.WebhookConfig) error {
	hook := &tele.Webhook{
		Endpoint:    &tele.WebhookEndpoint{PublicURL: cfg.EndpointURL()},
		SecretToken: cfg.HeaderToken,
	}
	if err := bot.SetWebhook(hook); err != nil {
		logger.Error(context.Background(), "tg", "set_webhook",
			slog.String("status", "fail"),
			slog.String("err", tgsender.SanitizeError(err)),
		)
		return fmt.Errorf("telegram: set webhook: %w", err)
	}
	logger.Info(context.Background(), "tg", "set_webhook",
		slog.String("status", "ok"),
		slog.String("public_url", cfg.URL),
	)
	return nil
}

func logHandlerError(err error, c tele.Context) {
	ctx := context.Background()
	if c != nil {
		ctx = tghelpers.BuildContext(c)
	}
	logger.Error(ctx, "tg", "handler.error",
		slog.String("status", "fail"),
		slog.String("err", tgsender.SanitizeError(err)),
	)
}
