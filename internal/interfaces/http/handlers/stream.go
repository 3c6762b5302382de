package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/fundboard/internal/analytics"
	"github.com/sawpanic/fundboard/internal/dashboard"
	"github.com/sawpanic/fundboard/internal/render"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// SelectionMessage is sent by the browser whenever the user changes the selection
type SelectionMessage struct {
	Symbol   string `json:"symbol"`
	Strategy string `json:"strategy"`
}

// PanelMessage is pushed for every panel whose state changed
type PanelMessage struct {
	Panel string `json:"panel"`
	State string `json:"state"`
	HTML  string `json:"html"`
}

func (h *Handlers) upgrader() websocket.Upgrader {
	allow := h.opts.AllowOrigin
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 16 * 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if allow == "*" || origin == "" || origin == allow {
				return true
			}
			u, err := url.Parse(origin)
			return err == nil && strings.EqualFold(u.Host, r.Host)
		},
	}
}

// Stream upgrades to a websocket and mounts one shell for the connection.
// Selection messages from the client drive the P&L panel; every committed
// panel state is pushed back as a rendered fragment.
func (h *Handlers) Stream(w http.ResponseWriter, r *http.Request) {
	up := h.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("request_id", RequestID(r.Context())).Msg("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	shell := dashboard.New(ctx, h.opts.Source, h.selectionFrom(r),
		dashboard.WithMetrics(h.opts.Metrics),
		dashboard.WithKind("websocket"))
	defer shell.Close()

	logger := log.With().Str("session", shell.ID()).Logger()
	logger.Debug().Str("remote", r.RemoteAddr).Msg("WebSocket session opened")

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		h.readSelections(conn, shell)
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	sent := make(map[string]uint64, len(render.Panels))
	for {
		wake := shell.Updates()
		revs := shell.Revisions()
		for _, name := range render.Panels {
			if revs[name] == sent[name] {
				continue
			}
			if err := writePanel(conn, shell, name); err != nil {
				logger.Debug().Err(err).Msg("WebSocket write failed")
				return
			}
			sent[name] = revs[name]
		}

		select {
		case <-wake:
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-readerDone:
			logger.Debug().Msg("WebSocket session closed")
			return
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return
		}
	}
}

func (h *Handlers) readSelections(conn *websocket.Conn, shell *dashboard.Shell) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg SelectionMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("session", shell.ID()).Msg("WebSocket read failed")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		shell.SetSelection(analytics.Selection{
			Symbol:   strings.TrimSpace(msg.Symbol),
			Strategy: strings.TrimSpace(msg.Strategy),
		})
	}
}

func writePanel(conn *websocket.Conn, shell *dashboard.Shell, name string) error {
	v, _ := shell.View(name)
	html, err := render.PanelHTML(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(PanelMessage{Panel: name, State: v.State, HTML: string(html)})
}
