package telegram

import (
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

func TestBuildPoller(t *testing.T) {
	lp, ok := BuildPoller(PollerOptions{RunMode: "longpoll"}).(*tele.LongPoller)
	if !ok {
		t.Fatal("longpoll mode must build a LongPoller")
	}
	if lp.Timeout != 10*time.Second {
		t.Fatalf("default timeout = %v", lp.Timeout)
	}
	lp = BuildPoller(PollerOptions{RunMode: "longpoll", LongPollTimeoutSeconds: 30}).(*tele.LongPoller)
	if lp.Timeout != 30*time.Second {
		t.Fatalf("timeout = %v", lp.Timeout)
	}

	p := BuildPoller(PollerOptions{RunMode: " Webhook "})
	if _, ok := p.(pushPoller); !ok {
		t.Fatalf("webhook mode built %T", p)
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		p.Poll(nil, nil, stop)
		close(done)
	}()
	close(stop)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("push poller did not return after stop")
	}
}
