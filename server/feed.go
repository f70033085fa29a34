package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type feedClient struct {
	conn   *websocket.Conn
	events <-chan Event
	log    *logrus.Entry
}

func (s *Server) handleFeed(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	id, events := s.hub.Register()
	client := &feedClient{conn: conn, events: events, log: s.log.WithField("subscriber", id)}
	client.log.Debug("feed subscriber connected")

	go client.writePump()
	client.readPump()
	s.hub.Unregister(id)
}

// readPump only drains control frames, the feed is one way.
func (f *feedClient) readPump() {
	f.conn.SetReadLimit(maxMessageSize)
	if err := f.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		f.log.WithError(err).Warn("failed to set read deadline")
	}
	f.conn.SetPongHandler(func(string) error {
		return f.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := f.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				f.log.WithError(err).Warn("feed read error")
			}
			return
		}
	}
}

func (f *feedClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := f.conn.Close(); err != nil {
			f.log.WithError(err).Debug("failed to close websocket connection")
		}
	}()

	for {
		select {
		case event, ok := <-f.events:
			if err := f.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				f.log.WithError(err).Warn("failed to set write deadline")
			}
			if !ok {
				if err := f.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					f.log.WithError(err).Debug("write close message failed")
				}
				return
			}
			if err := f.conn.WriteJSON(event); err != nil {
				f.log.WithError(err).Debug("write json message failed")
				return
			}
		case <-ticker.C:
			if err := f.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				f.log.WithError(err).Warn("failed to set ping write deadline")
			}
			if err := f.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				f.log.WithError(err).Debug("ping failed")
				return
			}
		}
	}
}
