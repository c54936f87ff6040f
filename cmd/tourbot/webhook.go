package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	corecmd "github.com/m3rciful/tourbot/core/cmd"
	coreconfig "github.com/m3rciful/tourbot/core/config"
	"github.com/m3rciful/tourbot/core/logger"
	coretelegram "github.com/m3rciful/tourbot/core/telegram"
)

func newWebhookCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Manage the Telegram webhook registration",
	}

	set := &cobra.Command{
		Use:   "set",
		Short: "Register WEBHOOK_URL/WEBHOOK_SECRET with Telegram",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadForWebhook(flags)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Shutdown() }()
			if cfg.Webhook.URL == "" || cfg.Webhook.Secret == "" {
				return fmt.Errorf("webhook set: WEBHOOK_URL and WEBHOOK_SECRET are required")
			}
			bot, err := coretelegram.NewBot(cfg)
			if err != nil {
				return err
			}
			if err := coretelegram.RegisterWebhook(bot, cfg.Webhook); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "webhook set:", cfg.Webhook.URL)
			return nil
		},
	}

	var dropPending bool
	del := &cobra.Command{
		Use:   "delete",
		Short: "Remove the webhook so long polling can be used",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadForWebhook(flags)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Shutdown() }()
			bot, err := coretelegram.NewBot(cfg)
			if err != nil {
				return err
			}
			if err := bot.RemoveWebhook(dropPending); err != nil {
				return fmt.Errorf("webhook delete: %w", err)
			}
			logger.Info(context.Background(), "tg", "delete_webhook",
				slog.String("status", "ok"),
				slog.Bool("drop_pending", dropPending),
			)
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "webhook deleted")
			return nil
		},
	}
	del.Flags().BoolVar(&dropPending, "drop-pending", false, "Also drop updates Telegram queued for the bot.")

	cmd.AddCommand(set, del)
	return cmd
}

func loadForWebhook(flags *globalFlags) (*coreconfig.Config, error) {
	cfg, err := corecmd.LoadConfig(flags.cmdOptions())
	if err != nil {
		return nil, err
	}
	if err := logger.InitLogger(cfg); err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	return cfg, nil
}
