package broadcast

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeTimeout = 5 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = (pongWait * 9) / 10
	readLimit    = 1 << 16
)

// Conn serves one duplex-socket subscriber connection end to end: upgrade,
// read pump for inbound commands, write pump draining the Hub-assigned
// outbound queue.
type Conn struct {
	hub      *Hub
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewConn builds a websocket connection handler bound to hub.
func NewConn(hub *Hub, log zerolog.Logger) *Conn {
	return &Conn{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(_ *http.Request) bool { return true },
		},
		log: log.With().Str("component", "broadcast").Logger(),
	}
}

// ServeHTTP upgrades the request and serves the subscriber until the
// socket closes.
func (c *Conn) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	sub := c.hub.Register()
	defer c.hub.Unregister(sub)

	c.log.Info().Str("subscriber", sub.ID).Msg("subscriber connected")

	done := make(chan struct{})
	go c.writePump(ws, sub, done)
	c.readPump(ws, sub)
	close(done)

	c.log.Info().Str("subscriber", sub.ID).Msg("subscriber disconnected")
}

func (c *Conn) readPump(ws *websocket.Conn, sub *Subscriber) {
	defer ws.Close()
	ws.SetReadLimit(readLimit)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return
		}
		if err := c.hub.Command(sub, raw); err != nil {
			c.log.Debug().Err(err).Str("subscriber", sub.ID).Msg("bad inbound command")
		}
	}
}

func (c *Conn) writePump(ws *websocket.Conn, sub *Subscriber, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case <-done:
			return
		case reason, ok := <-sub.ClosedReason():
			if ok {
				_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
				_ = ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason))
			}
			return
		case msg := <-sub.Outbound():
			_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			kind := websocket.TextMessage
			if msg.binary {
				kind = websocket.BinaryMessage
			}
			if err := ws.WriteMessage(kind, msg.data); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
