package collector

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != userAgent {
			t.Errorf("user agent = %q, want %q", got, userAgent)
		}
		if r.URL.Path != "/v1/thing" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"value": 42}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 100, 5*time.Second, nil)
	var out struct {
		Value int `json:"value"`
	}
	if err := c.GetJSON(context.Background(), "/v1/thing", nil, &out); err != nil {
		t.Fatal(err)
	}
	if out.Value != 42 {
		t.Fatalf("value = %d, want 42", out.Value)
	}
}

func TestClientRejectsNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 100, 5*time.Second, nil)
	if _, err := c.Get(context.Background(), "/anything", nil); err == nil {
		t.Fatal("expected error for 429 response")
	}
}

func TestClientHonorsContextCancel(t *testing.T) {
	c := NewClient("http://localhost:1", 0.001, time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Limiter allows one immediate request; burn it, then the next call
	// must fail on the cancelled context instead of waiting.
	_, _ = c.Get(context.Background(), "/", nil)
	if _, err := c.Get(ctx, "/", nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

type stubStatus struct {
	successes []string
	failures  []string
}

func (s *stubStatus) MarkSuccess(_ context.Context, collector string, _ int64) error {
	s.successes = append(s.successes, collector)
	return nil
}

func (s *stubStatus) MarkFailure(_ context.Context, collector string, _ int64, _ error) error {
	s.failures = append(s.failures, collector)
	return nil
}

type stubCollector struct {
	name string
	err  error
	runs int
}

func (c *stubCollector) Name() string { return c.name }

func (c *stubCollector) Collect(context.Context) error {
	c.runs++
	return c.err
}

func TestRunnerContinuesPastFailures(t *testing.T) {
	status := &stubStatus{}
	broken := &stubCollector{name: "broken", err: errors.New("upstream down")}
	healthy := &stubCollector{name: "healthy"}

	err := NewRunner(status, nil).RunAll(context.Background(), broken, healthy)
	if err == nil {
		t.Fatal("expected joined failure error")
	}
	if healthy.runs != 1 {
		t.Fatal("healthy collector must still run after a failure")
	}
	if len(status.failures) != 1 || status.failures[0] != "broken" {
		t.Fatalf("failures = %v", status.failures)
	}
	if len(status.successes) != 1 || status.successes[0] != "healthy" {
		t.Fatalf("successes = %v", status.successes)
	}
}

func TestRunnerStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := &stubCollector{name: "never"}
	err := NewRunner(&stubStatus{}, nil).RunAll(ctx, c)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if c.runs != 0 {
		t.Fatal("collector must not run after cancellation")
	}
}
