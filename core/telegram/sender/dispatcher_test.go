package sender

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

func TestDispatcherKeepsOrderPerKey(t *testing.T) {
	d := NewDispatcher(Options{Workers: 4, QueueSize: 32})

	var (
		mu  sync.Mutex
		got = map[int64][]int{}
	)
	for i := 0; i < 20; i++ {
		for _, key := range []int64{1, 2, -3} {
			key, i := key, i
			err := d.Enqueue(context.Background(), key, "send.text", "sendMessage", func() error {
				mu.Lock()
				got[key] = append(got[key], i)
				mu.Unlock()
				return nil
			})
			if err != nil {
				t.Fatalf("enqueue: %v", err)
			}
		}
	}
	d.Close()

	for key, seq := range got {
		if len(seq) != 20 {
			t.Fatalf("key %d ran %d jobs", key, len(seq))
		}
		for i, v := range seq {
			if v != i {
				t.Fatalf("key %d out of order: %v", key, seq)
			}
		}
	}
	if d.DoneCount() != 60 {
		t.Fatalf("done = %d", d.DoneCount())
	}
}

func TestDispatcherCountsFailuresWithoutRetry(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1})
	calls := 0
	err := d.Enqueue(context.Background(), 5, "send.text", "sendMessage", func() error {
		calls++
		return errors.New("boom")
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	d.Close()

	if calls != 1 {
		t.Fatalf("job ran %d times, want exactly once", calls)
	}
	if d.ErrorCount() != 1 {
		t.Fatalf("errors = %d", d.ErrorCount())
	}
}

func TestDispatcherTimeoutKeepsOrder(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxDuration: 20 * time.Millisecond})
	release := make(chan struct{})

	var (
		mu    sync.Mutex
		order []string
	)
	record := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}
	_ = d.Enqueue(context.Background(), 1, "send.text", "sendMessage", func() error {
		<-release
		record("slow")
		return nil
	})
	_ = d.Enqueue(context.Background(), 1, "send.text", "sendMessage", func() error {
		record("next")
		return nil
	})

	deadline := time.Now().Add(time.Second)
	for d.ErrorCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if d.ErrorCount() != 1 {
		t.Fatalf("timed out job should count as failure, errors = %d", d.ErrorCount())
	}
	mu.Lock()
	early := len(order)
	mu.Unlock()
	if early != 0 {
		t.Fatalf("next job ran while the slow one was still sending: %v", order)
	}

	close(release)
	d.Close()
	if fmt.Sprint(order) != "[slow next]" {
		t.Fatalf("order = %v", order)
	}
	if d.ErrorCount() != 1 {
		t.Fatalf("errors = %d", d.ErrorCount())
	}
}

// fillShard occupies the only worker with a blocked job and the only queue
// slot with a second one.
func fillShard(t *testing.T, d *Dispatcher, block chan struct{}, record func(string)) {
	t.Helper()
	if err := d.Enqueue(context.Background(), 1, "a", "", func() error { <-block; record("a"); return nil }); err != nil {
		t.Fatalf("enqueue a: %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for len(d.shards[0]) != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if err := d.Enqueue(context.Background(), 1, "b", "", func() error { record("b"); return nil }); err != nil {
		t.Fatalf("enqueue b: %v", err)
	}
}

func TestEnqueueWait(t *testing.T) {
	t.Run("waits for a slot", func(t *testing.T) {
		d := NewDispatcher(Options{Workers: 1, QueueSize: 1, MaxDuration: time.Second})
		block := make(chan struct{})
		var (
			mu    sync.Mutex
			order []string
		)
		record := func(s string) {
			mu.Lock()
			order = append(order, s)
			mu.Unlock()
		}
		fillShard(t, d, block, record)

		errc := make(chan error, 1)
		go func() {
			errc <- d.EnqueueWait(context.Background(), 1, "c", "", func() error { record("c"); return nil })
		}()
		select {
		case err := <-errc:
			t.Fatalf("EnqueueWait returned early: %v", err)
		case <-time.After(20 * time.Millisecond):
		}

		close(block)
		if err := <-errc; err != nil {
			t.Fatalf("EnqueueWait: %v", err)
		}
		d.Close()
		if fmt.Sprint(order) != "[a b c]" {
			t.Fatalf("order = %v", order)
		}
	})

	t.Run("gives up after MaxDuration", func(t *testing.T) {
		d := NewDispatcher(Options{Workers: 1, QueueSize: 1, MaxDuration: 20 * time.Millisecond})
		block := make(chan struct{})
		fillShard(t, d, block, func(string) {})

		err := d.EnqueueWait(context.Background(), 1, "c", "", func() error { return nil })
		close(block)
		d.Close()
		if !errors.Is(err, ErrQueueFull) {
			t.Fatalf("expected ErrQueueFull, got %v", err)
		}
	})

	t.Run("stops on cancel", func(t *testing.T) {
		d := NewDispatcher(Options{Workers: 1, QueueSize: 1, MaxDuration: time.Second})
		block := make(chan struct{})
		fillShard(t, d, block, func(string) {})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := d.EnqueueWait(ctx, 1, "c", "", func() error { return nil })
		close(block)
		d.Close()
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})
}

func TestDispatcherRejects(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, QueueSize: 1})
	block := make(chan struct{})

	if err := d.Enqueue(context.Background(), 1, "a", "", func() error { <-block; return nil }); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	// wait until the worker picked the first job so the queue slot is free again
	deadline := time.Now().Add(time.Second)
	for len(d.shards[0]) != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if err := d.Enqueue(context.Background(), 1, "b", "", func() error { return nil }); err != nil {
		t.Fatalf("second enqueue: %v", err)
	}
	if err := d.Enqueue(context.Background(), 1, "c", "", func() error { return nil }); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if err := d.Enqueue(context.Background(), 1, "d", "", nil); err == nil {
		t.Fatal("nil run must be rejected")
	}

	close(block)
	d.Close()
	if err := d.Enqueue(context.Background(), 1, "e", "", func() error { return nil }); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{context.DeadlineExceeded, "timeout"},
		{fmt.Errorf("send: %w", context.DeadlineExceeded), "timeout"},
		{&tele.Error{Code: 400, Description: "Bad Request: chat not found"}, "http_4xx"},
		{errors.New("telegram: internal error (502)"), "http_5xx"},
		{errors.New("opaque"), "unknown"},
	}
	for _, tt := range tests {
		if got := ClassifyError(tt.err); got != tt.want {
			t.Fatalf("ClassifyError(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestSanitizeErrorRedactsToken(t *testing.T) {
	err := errors.New(`Post "https://api.telegram.org/bot123456:AAE-x_y/sendMessage": dial tcp: timeout`)
	got := SanitizeError(err)
	if got != `Post "https://api.telegram.org/bot<redacted>/sendMessage": dial tcp: timeout` {
		t.Fatalf("sanitized = %q", got)
	}
}
