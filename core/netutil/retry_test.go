package netutil

import (
	"context"
	"errors"
	"net"
	"net/url"
	"testing"
	"time"
)

func TestTransient(t *testing.T) {
	dial := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("bad request"), false},
		{"dial", dial, true},
		{"wrapped dial", &url.Error{Op: "Post", URL: "https://api.telegram.org", Err: dial}, true},
		{"dns timeout", &net.DNSError{Err: "timeout", IsTimeout: true}, true},
		{"cancelled", context.Canceled, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Transient(tt.err); got != tt.want {
				t.Fatalf("Transient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRetry(t *testing.T) {
	boom := errors.New("boom")

	calls := 0
	err := Retry(context.Background(), Policy{Attempts: 3}, func(int) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) || calls != 3 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}

	calls = 0
	err = Retry(context.Background(), Policy{Attempts: 5, Retryable: Transient}, func(int) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) || calls != 1 {
		t.Fatalf("non-transient error retried: calls=%d", calls)
	}

	calls = 0
	err = Retry(context.Background(), Policy{Attempts: 3}, func(attempt int) error {
		calls++
		if attempt < 2 {
			return boom
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, Policy{Attempts: 3, Backoff: Constant(time.Hour)}, func(int) error {
		return errors.New("down")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

func TestBackoff(t *testing.T) {
	if Linear(time.Second)(3) != 3*time.Second || Constant(time.Second)(3) != time.Second {
		t.Fatal("unexpected backoff")
	}
}
