package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"jammertime/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Send/receive timing configuration and message size limits.
const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxMsgSize       = 1 << 12 // 4 KB
	defaultInterval  = 1 * time.Second
	maxInterval      = 10 * time.Second
	maxIntervalMilli = 10_000 // 10s in ms
)

// Envelope types on the run stream.
const (
	wsTypeProgress = "progress"
	wsTypeDone     = "done"
	wsTypeError    = "error"
)

type wsEnvelope struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// wsProgress is the payload of a progress envelope.
type wsProgress struct {
	ID       string           `json:"id"`
	Status   models.RunStatus `json:"status"`
	Progress float64          `json:"progress"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict origins once the dashboard host is fixed
}

// wsRunProgress streams progress envelopes for one run until it reaches a
// terminal status, then sends a done (or error) envelope and closes.
func (h *Handler) wsRunProgress(c *gin.Context) {
	id := c.Param("id")
	interval := h.parseInterval(c)

	if _, err := h.services.Runs.Get(c.Request.Context(), id); err != nil {
		h.respondError(c, "failed to load run", "ws_run_lookup_failed", err, "id", id)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	go h.startReader(conn, done)

	ticker := time.NewTicker(interval)
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ping.Stop()
	}()

	ctx := c.Request.Context()
	if finished, err := h.sendRun(ctx, conn, id); err != nil || finished {
		if err != nil && h.log != nil {
			h.log.Infow("ws_write_failed_initial", "err", err)
		}
		h.closeNormally(conn)
		return
	}

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if h.log != nil {
					h.log.Infow("ws_ping_failed", "err", err)
				}
				return
			}
		case <-ticker.C:
			finished, err := h.sendRun(ctx, conn, id)
			if err != nil {
				if h.log != nil {
					h.log.Infow("ws_write_failed", "err", err)
				}
				return
			}
			if finished {
				h.closeNormally(conn)
				return
			}
		}
	}
}

// parseInterval reads ?interval=2s or ?interval_ms=2000 with bounds.
func (h *Handler) parseInterval(c *gin.Context) time.Duration {
	if s := c.Query("interval"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 && d <= maxInterval {
			return d
		}
	}
	if ms := c.Query("interval_ms"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil && v > 0 && v <= maxIntervalMilli {
			return time.Duration(v) * time.Millisecond
		}
	}
	return defaultInterval
}

// startReader drains incoming messages to handle control frames and detect closure.
func (h *Handler) startReader(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if h.log != nil {
				h.log.Infow("ws_read_closed", "err", err)
			}
			return
		}
	}
}

// sendRun writes the current run state and reports whether the run is over.
func (h *Handler) sendRun(ctx context.Context, conn *websocket.Conn, id string) (bool, error) {
	run, err := h.services.Runs.Get(ctx, id)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_get_run_failed", "id", id, "err", err)
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return true, conn.WriteJSON(wsEnvelope{Type: wsTypeError, Error: err.Error()})
	}

	msg := wsEnvelope{Type: wsTypeProgress, Data: wsProgress{ID: run.ID, Status: run.Status, Progress: run.Progress}}
	switch run.Status {
	case models.RunSucceeded:
		run.Summary = nil
		msg = wsEnvelope{Type: wsTypeDone, Data: run}
	case models.RunFailed, models.RunCanceled:
		msg = wsEnvelope{Type: wsTypeError, Data: wsProgress{ID: run.ID, Status: run.Status, Progress: run.Progress}, Error: run.Error}
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return run.Status.Terminal(), conn.WriteJSON(msg)
}

func (h *Handler) closeNormally(conn *websocket.Conn) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}
