package apihandlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"voiceeval/internal/progress"
)

// ProgressWSHandler upgrades the request to a WebSocket and streams every progress
// event until the client goes away. Messages from the client are ignored.
func (h *APIHandler) ProgressWSHandler(c *gin.Context) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(h.App.Config.Server.AllowedOrigins, r.Header.Get("Origin"))
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warnf("progress websocket upgrade failed: %v", err)
		return
	}

	sink := &wsSink{conn: conn}
	sub := h.App.Broadcaster.Subscribe(sink)
	defer func() {
		h.App.Broadcaster.Unsubscribe(sub)
		sink.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithField("subscriber", sub.ID).Debugf("progress websocket closed: %v", err)
			}
			return
		}
	}
}

// wsSink adapts a WebSocket connection to progress.Sink. gorilla allows one
// concurrent writer, hence the mutex.
type wsSink struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

var _ progress.Sink = (*wsSink)(nil)

func (s *wsSink) Send(ctx context.Context, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(10 * time.Second)
	}
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *wsSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return s.conn.Close()
}
