package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mistlabs/coreshell/internal/journal"
	"github.com/mistlabs/coreshell/internal/journal/memory"
	"github.com/mistlabs/coreshell/internal/process"
	"github.com/mistlabs/coreshell/internal/supervisor"
)

func init() { gin.SetMode(gin.TestMode) }

func newTestServer(t *testing.T, sup *supervisor.Supervisor, recent *memory.Sink) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewRouter(sup, recent).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestHealthzReflectsCoreState(t *testing.T) {
	sup := supervisor.New(supervisor.Config{
		Enabled: true,
		Process: process.Spec{Name: "diag-core", Command: "sleep", Args: []string{"10"}},
	})
	defer sup.Shutdown()
	srv := newTestServer(t, sup, nil)

	var h healthResp
	if code := getJSON(t, srv.URL+"/healthz", &h); code != http.StatusServiceUnavailable {
		t.Fatalf("healthz before start = %d", code)
	}
	if h.Core != "stopped" {
		t.Fatalf("core state = %q", h.Core)
	}

	if err := sup.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if code := getJSON(t, srv.URL+"/healthz", &h); code != http.StatusOK {
		t.Fatalf("healthz while running = %d", code)
	}
	if h.Core != "running" || h.Shell != "ok" {
		t.Fatalf("health body = %+v", h)
	}
	sup.Stop(time.Second)
}

func TestStatusEndpoint(t *testing.T) {
	sup := supervisor.New(supervisor.Config{
		Enabled: true,
		Process: process.Spec{Name: "diag-core", Command: "sleep", Args: []string{"10"}},
	})
	defer sup.Shutdown()
	srv := newTestServer(t, sup, nil)

	if err := sup.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	var st statusResp
	if code := getJSON(t, srv.URL+"/status", &st); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if st.State != "running" || !st.Running || st.PID == 0 || st.Name != "diag-core" {
		t.Fatalf("status body = %+v", st)
	}
	sup.Stop(time.Second)
}

func TestEventsEndpoint(t *testing.T) {
	sup := supervisor.New(supervisor.Config{Enabled: false})
	defer sup.Shutdown()
	recent := memory.New(16)
	for i := 0; i < 3; i++ {
		_ = recent.Send(context.Background(), journal.NewEntry(journal.KindReady, "diag-core", 100+i, ""))
	}
	srv := newTestServer(t, sup, recent)

	var body struct {
		Events []journal.Entry `json:"events"`
	}
	if code := getJSON(t, srv.URL+"/events?n=2", &body); code != http.StatusOK {
		t.Fatalf("events = %d", code)
	}
	if len(body.Events) != 2 {
		t.Fatalf("got %d events, want 2", len(body.Events))
	}

	if code := getJSON(t, srv.URL+"/events?n=bogus", nil); code != http.StatusBadRequest {
		t.Fatalf("bad n accepted: %d", code)
	}
	if code := getJSON(t, srv.URL+"/events?n=10000", nil); code != http.StatusBadRequest {
		t.Fatalf("oversized n accepted: %d", code)
	}
}

func TestEventsEndpointWithoutSink(t *testing.T) {
	sup := supervisor.New(supervisor.Config{Enabled: false})
	defer sup.Shutdown()
	srv := newTestServer(t, sup, nil)

	var body struct {
		Events []journal.Entry `json:"events"`
	}
	if code := getJSON(t, srv.URL+"/events", &body); code != http.StatusOK {
		t.Fatalf("events = %d", code)
	}
	if len(body.Events) != 0 {
		t.Fatalf("expected no events, got %d", len(body.Events))
	}
}

func TestMetricsEndpoint(t *testing.T) {
	sup := supervisor.New(supervisor.Config{Enabled: false})
	defer sup.Shutdown()
	srv := newTestServer(t, sup, nil)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics = %d", resp.StatusCode)
	}
}
