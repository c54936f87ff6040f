package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/m3rciful/tourbot/core/bootstrap"
	corecmd "github.com/m3rciful/tourbot/core/cmd"
	coreconfig "github.com/m3rciful/tourbot/core/config"
	coretelegram "github.com/m3rciful/tourbot/core/telegram"
	"github.com/m3rciful/tourbot/core/telegram/dedupe"
	"github.com/m3rciful/tourbot/tour/handlers"
	"github.com/m3rciful/tourbot/tour/journal"
)

func newRunCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the bot (long polling or webhook, per TELEGRAM_RUN_MODE)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(flags)
		},
	}
}

func runBot(flags *globalFlags) error {
	opts := flags.cmdOptions()
	opts.Bootstrap = bootstrapApp
	return corecmd.Run(opts)
}

// tourApp hands the bootstrap infrastructure to the runtime and closes it
// after the bot stopped.
type tourApp struct {
	*handlers.App
	cfg   *coreconfig.Config
	infra *bootstrap.Result
}

func (a tourApp) TelegramRunOptions() (coretelegram.RunOptions, error) {
	opts, err := a.App.TelegramRunOptions()
	if err != nil {
		return opts, err
	}
	if a.infra.Redis != nil {
		ttl := time.Duration(a.cfg.Webhook.DedupeTTLSeconds) * time.Second
		opts.Dedupe = dedupe.NewRedis(a.infra.Redis, a.cfg.Redis.Prefix, ttl)
	}
	prevStop := opts.OnStop
	opts.OnStop = func(ctx context.Context, rt coretelegram.Runtime) error {
		var stopErr error
		if prevStop != nil {
			stopErr = prevStop(ctx, rt)
		}
		return errors.Join(stopErr, a.infra.Close())
	}
	return opts, nil
}

func bootstrapApp(cfg *coreconfig.Config) (corecmd.TelegramApp, error) {
	res, err := bootstrap.Run(bootstrap.Options{Config: cfg})
	if err != nil {
		return nil, err
	}
	var j journal.Journal = journal.Nop{}
	if res.DB != nil {
		j = journal.NewPostgres(res.DB)
	}
	return tourApp{App: handlers.New(cfg, j), cfg: cfg, infra: res}, nil
}
