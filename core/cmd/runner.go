package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	coreconfig "github.com/m3rciful/tourbot/core/config"
	"github.com/m3rciful/tourbot/core/logger"
	coretelegram "github.com/m3rciful/tourbot/core/telegram"
)

// TelegramApp is the minimal interface required to run a Telegram bot.
type TelegramApp interface {
	TelegramRunOptions() (coretelegram.RunOptions, error)
}

// Options describe how to load configuration, bootstrap the app, and run the bot.
type Options struct {
	// ConfigPath wins over ConfigEnvVar when set.
	ConfigPath   string
	ConfigEnvVar string
	// EnvFiles are loaded into the environment first; missing files are skipped.
	EnvFiles []string

	LoadConfig func(path string) (*coreconfig.Config, error)
	Bootstrap  func(cfg *coreconfig.Config) (TelegramApp, error)

	// InitLogger is used only to report a missing token before exiting;
	// nil means logger.InitLogger.
	InitLogger     func(cfg *coreconfig.Config) error
	ShutdownLogger func() error
	RunTelegram    func(ctx context.Context, opts coretelegram.RunOptions) error
	// Signals overrides the shutdown signals; nil means SIGINT and SIGTERM.
	Signals []os.Signal
}

// LoadEnvFiles loads dotenv files without overriding variables already set.
func LoadEnvFiles(paths ...string) error {
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("cmd: load %s: %w", p, err)
		}
	}
	return nil
}

// ResolveConfigPath returns the explicit path, else the value of envVar
// (CONFIG_PATH by default). An empty result means environment-only config.
func ResolveConfigPath(explicit, envVar string) string {
	if strings.TrimSpace(explicit) != "" {
		return explicit
	}
	if envVar == "" {
		envVar = "CONFIG_PATH"
	}
	return os.Getenv(envVar)
}

// LoadConfig reads dotenv files and then the configuration.
func LoadConfig(opts Options) (*coreconfig.Config, error) {
	if err := LoadEnvFiles(opts.EnvFiles...); err != nil {
		return nil, err
	}
	load := opts.LoadConfig
	if load == nil {
		load = coreconfig.Load
	}
	cfgPath := ResolveConfigPath(opts.ConfigPath, opts.ConfigEnvVar)
	if cfgPath != "" {
		log.Printf("loading config: %s", cfgPath)
	}
	cfg, err := load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("cmd: failed to load config: %w", err)
	}
	return cfg, nil
}

// Run loads configuration, bootstraps the Telegram app, and runs the bot
// until a shutdown signal arrives.
func Run(opts Options) error {
	if opts.Bootstrap == nil {
		return fmt.Errorf("cmd: Bootstrap is required")
	}

	cfg, err := LoadConfig(opts)
	if err != nil {
		if errors.Is(err, coreconfig.ErrTokenMissing) {
			reportMissingToken(opts, err)
		}
		return err
	}

	application, err := opts.Bootstrap(cfg)
	if err != nil {
		return fmt.Errorf("cmd: bootstrap failed: %w", err)
	}

	shutdownLogger := opts.ShutdownLogger
	if shutdownLogger == nil {
		shutdownLogger = logger.Shutdown
	}
	defer func() {
		if err := shutdownLogger(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()

	runOpts, err := application.TelegramRunOptions()
	if err != nil {
		return fmt.Errorf("cmd: telegram options build failed: %w", err)
	}

	startedAt := time.Now()
	prevStart := runOpts.OnStart
	runOpts.OnStart = func(ctx context.Context, rt coretelegram.Runtime) error {
		if prevStart != nil {
			if err := prevStart(ctx, rt); err != nil {
				return err
			}
		}
		logger.Info(ctx, "app", "ready",
			slog.Duration("startup_duration", logger.RoundMS(time.Since(startedAt))),
		)
		return nil
	}

	prevStop := runOpts.OnStop
	runOpts.OnStop = func(ctx context.Context, rt coretelegram.Runtime) error {
		logger.Info(ctx, "app", "shutdown")
		if prevStop != nil {
			return prevStop(ctx, rt)
		}
		return nil
	}

	signals := opts.Signals
	if signals == nil {
		signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	ctx, cancel := signal.NotifyContext(context.Background(), signals...)
	defer cancel()

	run := opts.RunTelegram
	if run == nil {
		run = coretelegram.RunTelegram
	}

	return run(ctx, runOpts)
}

// reportMissingToken writes the fatal config error to the regular log sinks,
// configured from the environment alone.
func reportMissingToken(opts Options, err error) {
	initLogger := opts.InitLogger
	if initLogger == nil {
		initLogger = logger.InitLogger
	}
	shutdown := opts.ShutdownLogger
	if shutdown == nil {
		shutdown = logger.Shutdown
	}
	if initErr := initLogger(&coreconfig.Config{Logging: coreconfig.LoggingFromEnv()}); initErr != nil {
		log.Printf("logger init error: %v", initErr)
		return
	}
	logger.Error(context.Background(), "app", "config.missing",
		slog.String("env", "BOT_TOKEN"),
		slog.String("err", err.Error()),
	)
	if err := shutdown(); err != nil {
		log.Printf("logger shutdown error: %v", err)
	}
}
