package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"vidgen-pipeline/config"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	cfg, err := config.Load("nonexistent.yaml")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Paths.Output = t.TempDir()
	return New(cfg)
}

func TestHealth(t *testing.T) {
	s := testServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/health", nil)
	s.engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Fatalf("body = %v", body)
	}
}

func TestGenerateRequiresScript(t *testing.T) {
	s := testServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/generate", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	s.engine.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestGenerateRequiresAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	s := testServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/generate", strings.NewReader(`{"script":"a story"}`))
	req.Header.Set("Content-Type", "application/json")
	s.engine.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}

func TestRunStatusUnknown(t *testing.T) {
	s := testServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/runs/nope", nil)
	s.engine.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestRunEventReplay(t *testing.T) {
	r := &run{id: "abc", subs: make(map[chan ProgressEvent]struct{})}
	r.publish(ProgressEvent{RunID: "abc", Stage: "expanding_script", Percent: 10})
	r.publish(ProgressEvent{RunID: "abc", Stage: "done", Percent: 100, Done: true})

	replay, ch := r.subscribe()
	if len(replay) != 2 {
		t.Fatalf("replay has %d events", len(replay))
	}
	if ch != nil {
		t.Fatal("finished run should not hand out a live channel")
	}
}

func TestRunLiveSubscription(t *testing.T) {
	r := &run{id: "abc", subs: make(map[chan ProgressEvent]struct{})}

	replay, ch := r.subscribe()
	if len(replay) != 0 || ch == nil {
		t.Fatalf("fresh run: %d replayed events, ch=%v", len(replay), ch)
	}

	r.publish(ProgressEvent{RunID: "abc", Stage: "assembling", Percent: 90})
	ev := <-ch
	if ev.Stage != "assembling" {
		t.Fatalf("event = %+v", ev)
	}
	r.unsubscribe(ch)
}
