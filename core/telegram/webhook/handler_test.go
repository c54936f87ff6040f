package webhook

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tourbot/core/telegram/dedupe"
)

type recorder struct {
	mu      sync.Mutex
	updates []tele.Update
}

func (r *recorder) ProcessUpdate(u tele.Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates)
}

const sampleUpdate = `{"update_id":1001,"message":{"message_id":5,"from":{"id":42,"first_name":"Ann"},"chat":{"id":42,"type":"private"},"date":1700000000,"text":"Turkey"}}`

func TestHandlerRoutes(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		header   string
		wantCode int
		wantBody string
		wantSeen int
	}{
		{"greeting", http.MethodGet, "/", "", "", http.StatusOK, "Hello from tourbot!", 0},
		{"update accepted", http.MethodPost, "/s3cr3t", sampleUpdate, "tok", http.StatusOK, "ok", 1},
		{"wrong secret path", http.MethodPost, "/other", sampleUpdate, "tok", http.StatusNotFound, "", 0},
		{"nested path", http.MethodPost, "/s3cr3t/x", sampleUpdate, "tok", http.StatusNotFound, "", 0},
		{"missing header token", http.MethodPost, "/s3cr3t", sampleUpdate, "", http.StatusForbidden, "", 0},
		{"malformed body", http.MethodPost, "/s3cr3t", `{"update_id":`, "tok", http.StatusBadRequest, "", 0},
		{"unknown page", http.MethodGet, "/favicon.ico", "", "", http.StatusNotFound, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			h := NewHandler(rec, Options{Secret: "s3cr3t", HeaderToken: "tok"})

			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.header != "" {
				req.Header.Set(SecretTokenHeader, tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d", w.Code, tt.wantCode)
			}
			if tt.wantBody != "" && w.Body.String() != tt.wantBody {
				t.Fatalf("body = %q, want %q", w.Body.String(), tt.wantBody)
			}
			if rec.count() != tt.wantSeen {
				t.Fatalf("processed %d updates, want %d", rec.count(), tt.wantSeen)
			}
		})
	}
}

func TestHandlerDecodesUpdate(t *testing.T) {
	rec := &recorder{}
	h := NewHandler(rec, Options{Secret: "s3cr3t"})
	req := httptest.NewRequest(http.MethodPost, "/s3cr3t", strings.NewReader(sampleUpdate))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("code = %d", w.Code)
	}
	upd := rec.updates[0]
	if upd.ID != 1001 || upd.Message == nil || upd.Message.Text != "Turkey" || upd.Message.Sender.ID != 42 {
		t.Fatalf("unexpected update: %+v", upd)
	}
}

type failingGuard struct{}

func (failingGuard) FirstSeen(context.Context, int) (bool, error) {
	return false, errors.New("redis down")
}

func TestHandlerDedupe(t *testing.T) {
	rec := &recorder{}
	h := NewHandler(rec, Options{Secret: "s", Dedupe: dedupe.NewMemory(0)})
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/s", strings.NewReader(sampleUpdate)))
		if w.Code != http.StatusOK {
			t.Fatalf("delivery %d: code = %d", i, w.Code)
		}
	}
	if rec.count() != 1 {
		t.Fatalf("redelivered update processed %d times", rec.count())
	}

	rec = &recorder{}
	h = NewHandler(rec, Options{Secret: "s", Dedupe: failingGuard{}})
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/s", strings.NewReader(sampleUpdate)))
	if rec.count() != 1 {
		t.Fatal("a failing guard must not drop updates")
	}
}

func TestHandlerBodyLimit(t *testing.T) {
	rec := &recorder{}
	h := NewHandler(rec, Options{Secret: "s", MaxBodyBytes: 16})
	req := httptest.NewRequest(http.MethodPost, "/s", strings.NewReader(sampleUpdate))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("code = %d", w.Code)
	}
}

func TestServerRunStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	srv := NewServer(addr, NewHandler(&recorder{}, Options{Secret: "s"}))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	var resp *http.Response
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		resp, err = http.Get("http://" + addr + "/")
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("server never came up: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
