package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/mantonx/playra/internal/events"
	"github.com/mantonx/playra/internal/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Local app, same trust domain as the CORS policy above.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
	wsSendBuffer   = 64
)

// handleEventsSocket streams bus events to a websocket client. Filters come
// from query parameters: ?types=session.phase,progress.saved
func (s *Server) handleEventsSocket(c *gin.Context) {
	var filter events.EventFilter
	for _, raw := range c.QueryArray("types") {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				filter.Types = append(filter.Types, events.EventType(t))
			}
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed: %v", err)
		return
	}

	// The bus handler must never block; a slow client gets dropped events
	// rather than stalling the bus. The send channel is never closed: the
	// bus snapshots matching subscriptions before invoking handlers, so a
	// handler can fire after Unsubscribe. Shutdown is signalled on done.
	send := make(chan events.Event, wsSendBuffer)
	done := make(chan struct{})
	sub, err := s.eventBus.Subscribe(filter, func(event events.Event) error {
		select {
		case send <- event:
		default:
		}
		return nil
	})
	if err != nil {
		conn.Close()
		return
	}

	logger.Debug("event socket connected: %s", conn.RemoteAddr())
	go s.writeEvents(conn, send, done)

	// Reads are discarded; the read loop only notices disconnects.
	go func() {
		defer func() {
			s.eventBus.Unsubscribe(sub.ID)
			close(done)
			logger.Debug("event socket disconnected: %s", conn.RemoteAddr())
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) writeEvents(conn *websocket.Conn, send <-chan events.Event, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case <-done:
			conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteTimeout))
			return
		case event := <-send:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		}
	}
}
