package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/54b3r/meetmind/internal/logging"
)

// probeTimeout bounds each dependency probe in a readiness check.
const probeTimeout = 5 * time.Second

// Pinger is a dependency that can report its own reachability. Ping is
// called concurrently with other Pingers.
type Pinger interface {
	Ping(ctx context.Context) error
	// Name labels the dependency in readiness output, e.g. "qdrant".
	Name() string
}

// readyCheck is one dependency's line in the readiness report.
type readyCheck struct {
	Name      string `json:"name"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// readyResponse is the body of GET /api/ready. Checks follow the order the
// Pingers were configured in.
type readyResponse struct {
	Ready  bool         `json:"ready"`
	Checks []readyCheck `json:"checks"`
}

// probe runs one Pinger under probeTimeout.
func probe(ctx context.Context, p Pinger) readyCheck {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	start := time.Now()
	err := p.Ping(ctx)
	c := readyCheck{Name: p.Name(), OK: err == nil, LatencyMS: time.Since(start).Milliseconds()}
	if err != nil {
		c.Error = err.Error()
	}
	return c
}

// handleReady handles GET /api/ready: 200 when every dependency answers,
// 503 otherwise. A hung dependency costs at most probeTimeout because the
// probes run in parallel.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	resp := readyResponse{Ready: true, Checks: make([]readyCheck, len(s.pingers))}
	var wg sync.WaitGroup
	for i, p := range s.pingers {
		wg.Go(func() { resp.Checks[i] = probe(r.Context(), p) })
	}
	wg.Wait()

	status := http.StatusOK
	for _, c := range resp.Checks {
		if c.OK {
			continue
		}
		resp.Ready = false
		status = http.StatusServiceUnavailable
		log.Warn("readiness probe failed",
			slog.String("dependency", c.Name),
			slog.String("error", c.Error),
			slog.Int64("latency_ms", c.LatencyMS),
		)
	}
	writeJSON(w, r, status, resp)
}
