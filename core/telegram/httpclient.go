package telegram

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/m3rciful/tourbot/core/netutil"
)

const (
	apiTimeout       = 30 * time.Second
	pollRetries      = 3
	pollRetryBackoff = 2 * time.Second
)

// BuildHTTPClient returns the client for Bot API calls. The connection
// phases get short deadlines. Response headers get none because a long poll
// only answers when its timeout expires.
func BuildHTTPClient() *http.Client {
	dialer := &net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}
	return &http.Client{
		Timeout: apiTimeout,
		Transport: &retryTransport{
			base: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           dialer.DialContext,
				ForceAttemptHTTP2:     true,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       30 * time.Second,
				TLSHandshakeTimeout:   5 * time.Second,
				ExpectContinueTimeout: time.Second,
			},
			maxRetries: pollRetries,
			backoff:    pollRetryBackoff,
		},
	}
}

// retryTransport retries transient network failures of getUpdates only.
// Outbound messages are never resent: a failed delivery is reported once.
type retryTransport struct {
	base       http.RoundTripper
	maxRetries int
	backoff    time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	policy := netutil.Policy{
		Attempts:  1,
		Backoff:   netutil.Linear(t.backoff),
		Retryable: netutil.Transient,
	}
	// a body that cannot be rewound is sent once
	if retryable(req) && (req.Body == nil || req.GetBody != nil) {
		policy.Attempts = t.maxRetries + 1
	}

	var resp *http.Response
	err := netutil.Retry(req.Context(), policy, func(attempt int) error {
		r := req
		if attempt > 1 {
			r = req.Clone(req.Context())
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return err
				}
				r.Body = body
			}
		}
		var err error
		resp, err = base.RoundTrip(r)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func retryable(req *http.Request) bool {
	return req != nil && req.URL != nil && strings.HasSuffix(req.URL.Path, "/getUpdates")
}
