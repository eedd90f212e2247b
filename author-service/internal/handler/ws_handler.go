package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	pkglog "github.com/weiawesome/wes-auction/pkg/log"
	"github.com/weiawesome/wes-auction/pkg/pubsub"
	"github.com/weiawesome/wes-auction/pkg/response"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// EventSubscriber streams events published on a channel until ctx is done.
type EventSubscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan *pubsub.Event, error)
}

// WSHandler pushes follow events of one author to WebSocket clients.
type WSHandler struct {
	subscriber EventSubscriber
	channel    string
	upgrader   websocket.Upgrader
}

// NewWSHandler creates a new WebSocket handler reading events from channel.
func NewWSHandler(subscriber EventSubscriber, channel string) *WSHandler {
	return &WSHandler{
		subscriber: subscriber,
		channel:    channel,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// RegisterRoutes registers GET /api/v1/authors/:author_id/events.
func (h *WSHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/api/v1/authors/:author_id/events", h.StreamFollowEvents)
}

// StreamFollowEvents upgrades the connection and forwards follow events for the author.
func (h *WSHandler) StreamFollowEvents(c *gin.Context) {
	authorID, err := strconv.ParseUint(c.Param("author_id"), 10, 64)
	if err != nil || authorID == 0 {
		response.BadRequest(c, "invalid author_id")
		return
	}
	key := strconv.FormatUint(authorID, 10)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	l := pkglog.Ctx(ctx)

	events, err := h.subscriber.Subscribe(ctx, h.channel)
	if err != nil {
		l.Error().Err(err).Msg("subscribe to follow events failed")
		response.InternalError(c, "failed to subscribe")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	go readPump(conn, cancel)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
				return
			}
			if event.Key != key {
				continue
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client messages and cancels once the peer goes away.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
