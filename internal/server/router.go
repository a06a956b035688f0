package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mistlabs/coreshell/internal/journal/memory"
	"github.com/mistlabs/coreshell/internal/metrics"
	"github.com/mistlabs/coreshell/internal/supervisor"
)

// Router exposes local-only diagnostics for the shell:
//
//	GET /healthz  liveness of shell and core
//	GET /status   supervisor status JSON
//	GET /events   recent lifecycle events (query: n)
//	GET /metrics  prometheus
//
// This is diagnostics only; the UI<->core protocol does not pass through
// here.
type Router struct {
	sup    *supervisor.Supervisor
	recent *memory.Sink
}

func NewRouter(sup *supervisor.Supervisor, recent *memory.Sink) *Router {
	return &Router{sup: sup, recent: recent}
}

// Handler returns the gin-powered http.Handler.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	g.GET("/healthz", r.handleHealthz)
	g.GET("/status", r.handleStatus)
	g.GET("/events", r.handleEvents)
	g.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer starts a standalone diagnostics server on addr. Shut it down
// via the returned http.Server.
func NewServer(addr string, sup *supervisor.Supervisor, recent *memory.Sink) *http.Server {
	r := NewRouter(sup, recent)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}

type healthResp struct {
	Shell string `json:"shell"`
	Core  string `json:"core"`
}

func (r *Router) handleHealthz(c *gin.Context) {
	state := r.sup.PollHealth()
	code := http.StatusOK
	if state != supervisor.StateRunning {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, healthResp{Shell: "ok", Core: state.String()})
}

type statusResp struct {
	State      string  `json:"state"`
	Name       string  `json:"name"`
	Running    bool    `json:"running"`
	PID        int     `json:"pid"`
	Restarts   int     `json:"restarts"`
	StartedAt  string  `json:"started_at,omitempty"`
	StoppedAt  string  `json:"stopped_at,omitempty"`
	ExitStatus int     `json:"exit_status"`
	CPUPercent float64 `json:"cpu_percent,omitempty"`
	RSSBytes   uint64  `json:"rss_bytes,omitempty"`
}

func (r *Router) handleStatus(c *gin.Context) {
	st, state := r.sup.Status()
	resp := statusResp{
		State:      state.String(),
		Name:       st.Name,
		Running:    st.Running,
		PID:        st.PID,
		Restarts:   st.Restarts,
		ExitStatus: st.ExitStatus(),
		CPUPercent: st.CPUPercent,
		RSSBytes:   st.RSSBytes,
	}
	if !st.StartedAt.IsZero() {
		resp.StartedAt = st.StartedAt.UTC().Format(time.RFC3339)
	}
	if !st.StoppedAt.IsZero() {
		resp.StoppedAt = st.StoppedAt.UTC().Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, resp)
}

func (r *Router) handleEvents(c *gin.Context) {
	if r.recent == nil {
		c.JSON(http.StatusOK, gin.H{"events": []any{}})
		return
	}
	n := 50
	if q := c.Query("n"); q != "" {
		parsed, err := strconv.Atoi(q)
		if err != nil || parsed <= 0 || parsed > 1000 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "n must be an integer in 1..1000"})
			return
		}
		n = parsed
	}
	c.JSON(http.StatusOK, gin.H{"events": r.recent.Recent(n)})
}
