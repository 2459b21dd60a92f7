package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/lonnen/jansky/adapter"
)

func testEvent() *adapter.CrashProcessedEvent {
	return &adapter.CrashProcessedEvent{
		EventType:  "crash_processed",
		CrashID:    "de1bb258-cbbf-4589-a673-34f800160918",
		Product:    "Firefox",
		Version:    "12.0",
		Signature:  "nsTerminator.cpp",
		Success:    true,
		NotesCount: 2,
		Timestamp:  "2016-09-18T12:00:00+00:00",
		Partition:  "20160912",
		DurationMs: 850,
	}
}

func TestPublishSuccess(t *testing.T) {
	var got adapter.CrashProcessedEvent
	var idempotencyKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %s", ct)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sekrit" {
			t.Errorf("authorization = %s", auth)
		}
		idempotencyKey = r.Header.Get("Idempotency-Key")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a, err := New(Config{
		URL:     srv.URL,
		Headers: map[string]string{"Authorization": "Bearer sekrit"},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = a.Close() }()

	if err := a.Publish(context.Background(), testEvent()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if got.CrashID != "de1bb258-cbbf-4589-a673-34f800160918" {
		t.Errorf("crash_id = %s", got.CrashID)
	}
	if got.EventType != "crash_processed" {
		t.Errorf("event_type = %s", got.EventType)
	}
	// receivers deduplicate redelivered crashes by this key
	if idempotencyKey != got.CrashID {
		t.Errorf("Idempotency-Key = %q", idempotencyKey)
	}
}

func TestPublishRetriesOn5xx(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a, err := New(Config{URL: srv.URL, Retries: 3})
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = a.Close() }()

	if err := a.Publish(context.Background(), testEvent()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestPublishDoesNotRetryOn4xx(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	a, err := New(Config{URL: srv.URL, Retries: 3})
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = a.Close() }()

	if err := a.Publish(context.Background(), testEvent()); err == nil {
		t.Fatal("Publish succeeded on 400")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestPublishConflictMeansDelivered(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		// the receiver has seen this crash id before
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	a, err := New(Config{URL: srv.URL, Retries: 3})
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = a.Close() }()

	if err := a.Publish(context.Background(), testEvent()); err != nil {
		t.Fatalf("Publish on 409: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestPublishRetriesOn429(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a, err := New(Config{URL: srv.URL, Retries: 1})
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = a.Close() }()

	if err := a.Publish(context.Background(), testEvent()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestParseRetryAfter(t *testing.T) {
	cases := []struct {
		in   string
		want int // seconds
	}{
		{"", 0},
		{"5", 5},
		{"-3", 0},
		{"Wed, 21 Oct 2015 07:28:00 GMT", 0},
	}
	for _, c := range cases {
		if got := parseRetryAfter(c.in); got.Seconds() != float64(c.want) {
			t.Errorf("parseRetryAfter(%q) = %v, want %ds", c.in, got, c.want)
		}
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("accepted empty URL")
	}
	if _, err := New(Config{URL: "http://example.com", Retries: -1}); err == nil {
		t.Error("accepted negative retries")
	}
}
