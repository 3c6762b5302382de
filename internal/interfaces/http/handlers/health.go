package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/sawpanic/fundboard/internal/analytics"
)

const backendProbeTimeout = 2 * time.Second

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string                 `json:"status"` // "healthy" or "degraded"
	Timestamp time.Time              `json:"timestamp"`
	Uptime    string                 `json:"uptime"`
	Version   string                 `json:"version"`
	System    SystemInfo             `json:"system"`
	Checks    map[string]CheckResult `json:"checks"`
	Guards    *analytics.GuardStatus `json:"guards,omitempty"`
}

// guardReporter is implemented by sources that expose their request guards
type guardReporter interface {
	Guards() analytics.GuardStatus
}

// SystemInfo provides system-level information
type SystemInfo struct {
	GoVersion     string `json:"go_version"`
	NumGoroutines int    `json:"num_goroutines"`
	MemAlloc      uint64 `json:"mem_alloc_bytes"`
	NumGC         uint32 `json:"num_gc"`
}

// CheckResult represents individual health check results
type CheckResult struct {
	Status   string `json:"status"` // "pass" or "fail"
	Message  string `json:"message"`
	Duration string `json:"duration"`
}

// Health reports liveness plus a probe of the analytics service. A failing
// backend degrades the status; the reply is still 200.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Version:   h.opts.Version,
		System:    systemInfo(),
		Checks:    map[string]CheckResult{"analytics_api": h.probeBackend(r.Context())},
	}
	if gr, ok := h.opts.Source.(guardReporter); ok {
		gs := gr.Guards()
		resp.Guards = &gs
		resp.Checks["analytics_circuit"] = circuitCheck(gs.Circuit)
	}
	for _, c := range resp.Checks {
		if c.Status != "pass" {
			resp.Status = "degraded"
		}
	}

	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) probeBackend(ctx context.Context) CheckResult {
	if h.opts.Source == nil {
		return CheckResult{Status: "fail", Message: "no analytics source configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, backendProbeTimeout)
	defer cancel()

	start := time.Now()
	_, err := h.opts.Source.Fetch(ctx, analytics.EndpointHealth, nil)
	res := CheckResult{Status: "pass", Message: "analytics service reachable", Duration: time.Since(start).String()}
	if err != nil {
		res.Status = "fail"
		res.Message = err.Error()
	}
	return res
}

func circuitCheck(state string) CheckResult {
	if state == "open" {
		return CheckResult{Status: "fail", Message: "circuit open, analytics calls are short-circuited"}
	}
	return CheckResult{Status: "pass", Message: "circuit " + state}
}

func systemInfo() SystemInfo {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return SystemInfo{
		GoVersion:     runtime.Version(),
		NumGoroutines: runtime.NumGoroutine(),
		MemAlloc:      mem.Alloc,
		NumGC:         mem.NumGC,
	}
}
