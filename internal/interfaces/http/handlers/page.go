package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/fundboard/internal/dashboard"
	"github.com/sawpanic/fundboard/internal/render"
)

// Page renders the full dashboard for the selection in the query string
func (h *Handlers) Page(w http.ResponseWriter, r *http.Request) {
	sel := h.selectionFrom(r)
	shell := h.mount(r, sel, "page")
	defer shell.Close()

	panels, err := render.PagePanels(shell.Views())
	if err != nil {
		log.Error().Err(err).Str("request_id", RequestID(r.Context())).Msg("Failed to render panels")
		h.writeError(w, r, http.StatusInternalServerError, "render_failed", "The dashboard could not be rendered")
		return
	}

	strategies := h.opts.Strategies
	if !contains(strategies, sel.Strategy) {
		strategies = append(append([]string{}, strategies...), sel.Strategy)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := render.WritePageHTML(w, render.PageData{
		Selection:   sel,
		Strategies:  strategies,
		Panels:      panels,
		LiveUpdates: h.opts.LiveUpdates,
	}); err != nil {
		log.Error().Err(err).Str("request_id", RequestID(r.Context())).Msg("Failed to write page")
	}
}

// Panel renders one panel. The default is an HTML fragment; ?format=json
// returns the display tree instead.
func (h *Handlers) Panel(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["panel"]
	if !contains(render.Panels, name) {
		h.writeError(w, r, http.StatusNotFound, "panel_not_found", "Unknown panel "+name)
		return
	}

	shell := h.mount(r, h.selectionFrom(r), "fragment", dashboard.WithPanels(name))
	defer shell.Close()

	v, _ := shell.View(name)

	switch r.URL.Query().Get("format") {
	case "json":
		h.writeJSON(w, http.StatusOK, v)
	case "", "html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		if err := render.WritePanelHTML(w, v); err != nil {
			log.Error().Err(err).Str("panel", name).Msg("Failed to write panel")
		}
	default:
		h.writeError(w, r, http.StatusBadRequest, "invalid_format", "format must be html or json")
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
