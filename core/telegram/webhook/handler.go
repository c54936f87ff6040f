// Package webhook receives Telegram updates over HTTP and hands them to the
// same processing entry point the long poller uses.
package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tourbot/core/logger"
	"github.com/m3rciful/tourbot/core/telegram/dedupe"
)

// SecretTokenHeader carries the token registered through setWebhook.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

const (
	defaultGreeting = "Hello from tourbot!"
	defaultMaxBody  = 1 << 20
)

// Processor handles one decoded update. *tele.Bot satisfies it.
type Processor interface {
	ProcessUpdate(u tele.Update)
}

// Options configures the webhook handler.
type Options struct {
	// Secret is the single path segment updates are posted to.
	Secret string
	// HeaderToken, when set, must match the secret token header of every update.
	HeaderToken string
	// Greeting is served on GET /.
	Greeting     string
	MaxBodyBytes int64
	// Dedupe, when set, acknowledges redelivered updates without handling them.
	Dedupe dedupe.Guard
}

type handler struct {
	proc Processor
	opts Options
}

// NewHandler builds the HTTP handler: POST /{secret} for updates and GET / for
// a static greeting. Every other path is answered with 404.
func NewHandler(proc Processor, opts Options) http.Handler {
	if opts.Greeting == "" {
		opts.Greeting = defaultGreeting
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBody
	}
	h := &handler{proc: proc, opts: opts}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.index)
	if secret := strings.Trim(opts.Secret, "/"); secret != "" {
		mux.HandleFunc("POST /"+secret, h.update)
	}
	return mux
}

func (h *handler) index(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, h.opts.Greeting)
}

func (h *handler) update(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	if h.opts.HeaderToken != "" {
		got := r.Header.Get(SecretTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.opts.HeaderToken)) != 1 {
			logger.Warn(ctx, "http.webhook", "webhook.rejected",
				slog.String("status", "fail"),
				slog.String("remote", r.RemoteAddr),
				slog.Int("http_code", http.StatusForbidden),
			)
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
	}

	var upd tele.Update
	body := http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(&upd); err != nil {
		code := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			code = http.StatusRequestEntityTooLarge
		}
		logger.Warn(ctx, "http.webhook", "webhook.malformed",
			slog.String("status", "fail"),
			slog.String("remote", r.RemoteAddr),
			slog.Int("http_code", code),
			slog.String("err", err.Error()),
		)
		http.Error(w, "malformed update", code)
		return
	}

	ctx = logger.WithUpdateMeta(ctx, upd.ID, 0, 0)
	if h.opts.Dedupe != nil {
		first, err := h.opts.Dedupe.FirstSeen(ctx, upd.ID)
		switch {
		case err != nil:
			// an unavailable guard must not drop updates
			logger.Warn(ctx, "http.webhook", "webhook.dedupe",
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
		case !first:
			logger.Info(ctx, "http.webhook", "webhook.duplicate",
				slog.String("status", "skip"),
				slog.Int("http_code", http.StatusOK),
			)
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			_, _ = io.WriteString(w, "ok")
			return
		}
	}
	h.proc.ProcessUpdate(upd)

	logger.Debug(ctx, "http.webhook", "webhook.update",
		slog.String("status", "ok"),
		slog.Int("http_code", http.StatusOK),
		slog.Duration("duration", logger.Took(start)),
	)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok")
}

// Server runs the webhook handler until its context is cancelled.
type Server struct {
	srv *http.Server
}

// NewServer prepares an HTTP server bound to addr.
func NewServer(addr string, h http.Handler) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// Run serves until ctx is done and then shuts the server down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "http.webhook", "webhook.listen",
			slog.String("listen", s.srv.Addr),
		)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
