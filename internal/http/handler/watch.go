package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"lattice.dev/lattice/graph"
	"lattice.dev/lattice/internal/metrics"
)

const (
	watchBuffer     = 64
	watchWriteWait  = 10 * time.Second
	watchPingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The watch feed is read-only operator tooling; origin policy is
	// left to the deployment's proxy.
	CheckOrigin: func(*http.Request) bool { return true },
}

// WatchHandler streams dispatched graph events over a websocket.
type WatchHandler struct {
	dispatcher *graph.Dispatcher
}

func NewWatchHandler(dispatcher *graph.Dispatcher) *WatchHandler {
	return &WatchHandler{dispatcher: dispatcher}
}

// Watch upgrades the request and forwards events whose origin label
// matches ?label= (empty matches all) until the client disconnects.
// The listener never blocks or fails a mutation: events overflowing the
// session buffer are dropped and counted.
func (h *WatchHandler) Watch(c *gin.Context) {
	ctx := c.Request.Context()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.WarnContext(ctx, "websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	metrics.WatchSessions.Inc()
	defer metrics.WatchSessions.Dec()

	feed := make(chan graph.Event, watchBuffer)
	unsubscribe := h.dispatcher.Subscribe(c.Query("label"), func(_ context.Context, ev graph.Event) error {
		select {
		case feed <- ev:
		default:
			metrics.WatchEventsDropped.Inc()
		}
		return nil
	})
	defer unsubscribe()

	// Reader goroutine notices the peer going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(watchPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			return
		case <-ctx.Done():
			return
		case ev := <-feed:
			conn.SetWriteDeadline(time.Now().Add(watchWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				slog.DebugContext(ctx, "watch session write failed", "error", err)
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(watchWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
