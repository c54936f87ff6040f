package telegram

import (
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/tourbot/core/config"
)

// PollerOptions configures BuildPoller.
type PollerOptions struct {
	RunMode                string
	LongPollTimeoutSeconds int
}

// BuildPoller returns a Telebot poller based on provided options.
// In webhook mode updates are pushed through the webhook HTTP server,
// so the poller only keeps the bot loop alive until it is stopped.
func BuildPoller(opts PollerOptions) tele.Poller {
	runMode := strings.ToLower(strings.TrimSpace(opts.RunMode))
	if runMode == coreconfig.RunModeWebhook {
		return pushPoller{}
	}

	timeoutSec := opts.LongPollTimeoutSeconds
	if timeoutSec <= 0 {
		timeoutSec = 10
	}
	return &tele.LongPoller{Timeout: time.Duration(timeoutSec) * time.Second}
}

// pushPoller never fetches updates itself.
type pushPoller struct{}

// Poll blocks until the bot is stopped.
func (pushPoller) Poll(_ *tele.Bot, _ chan tele.Update, stop chan struct{}) {
	<-stop
}
