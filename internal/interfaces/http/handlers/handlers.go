package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/fundboard/internal/analytics"
	"github.com/sawpanic/fundboard/internal/dashboard"
	"github.com/sawpanic/fundboard/internal/metrics"
)

type ctxKey int

const requestIDKey ctxKey = iota

// WithRequestID stores the request id on ctx
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the id stored by WithRequestID, or "unknown"
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		return id
	}
	return "unknown"
}

// Options are the dependencies shared by every handler
type Options struct {
	Source        analytics.Source
	Metrics       *metrics.Registry
	Defaults      analytics.Selection
	Strategies    []string
	SettleTimeout time.Duration // How long page and fragment renders wait for panels
	LiveUpdates   bool
	AllowOrigin   string // "*" accepts websocket connections from any origin
	Version       string
}

// Handlers manages all HTTP endpoint handlers
type Handlers struct {
	opts      Options
	startTime time.Time
}

// NewHandlers creates a new handlers instance
func NewHandlers(opts Options) *Handlers {
	opts.Defaults = opts.Defaults.WithDefaults()
	if len(opts.Strategies) == 0 {
		opts.Strategies = []string{opts.Defaults.Strategy}
	}
	return &Handlers{opts: opts, startTime: time.Now()}
}

// ErrorResponse is the JSON body of every error reply
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Code      string    `json:"code"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// writeJSON writes JSON response with proper error handling
func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes standardized error response
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	h.writeJSON(w, status, ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Code:      code,
		RequestID: RequestID(r.Context()),
		Timestamp: time.Now().UTC(),
	})
}

// NotFound handles 404 responses
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, r, http.StatusNotFound, "endpoint_not_found",
		"The requested endpoint does not exist")
}

// selectionFrom reads ?symbol= and ?strategy=, falling back to the defaults
func (h *Handlers) selectionFrom(r *http.Request) analytics.Selection {
	q := r.URL.Query()
	sel := analytics.Selection{
		Symbol:   strings.TrimSpace(q.Get("symbol")),
		Strategy: strings.TrimSpace(q.Get("strategy")),
	}
	if sel.Symbol == "" {
		sel.Symbol = h.opts.Defaults.Symbol
	}
	if sel.Strategy == "" {
		sel.Strategy = h.opts.Defaults.Strategy
	}
	return sel
}

// mount creates a shell bound to the request and waits up to the settle timeout
func (h *Handlers) mount(r *http.Request, sel analytics.Selection, kind string, opts ...dashboard.Option) *dashboard.Shell {
	opts = append([]dashboard.Option{dashboard.WithMetrics(h.opts.Metrics), dashboard.WithKind(kind)}, opts...)
	shell := dashboard.New(r.Context(), h.opts.Source, sel, opts...)

	if h.opts.SettleTimeout > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), h.opts.SettleTimeout)
		defer cancel()
		if err := shell.Settle(ctx); err != nil {
			log.Debug().
				Str("request_id", RequestID(r.Context())).
				Str("session", shell.ID()).
				Err(err).
				Msg("Rendering with panels still loading")
		}
	}
	return shell
}
