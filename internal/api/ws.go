package api

import (
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"fieldops-gateway/internal/broker"
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
	// Dashboards are served from a different origin in dev.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsMessage is the frame format delivered to websocket dashboards: the same
// event name + payload pairs the SSE stream carries.
type wsMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// wsClient bridges one websocket connection to a broker subscription.
type wsClient struct {
	conn   *websocket.Conn
	sub    *broker.Subscriber
	broker *broker.Broker
	log    zerolog.Logger
}

// HandleWS upgrades the connection and streams broker events over it.
func (h *Handler) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &wsClient{
		conn:   conn,
		sub:    h.broker.Subscribe(),
		broker: h.broker,
		log:    h.log,
	}
	go client.writePump()
	go client.readPump()
}

// writePump forwards subscribed events to the peer and pings it on an
// interval. It owns all writes to the connection.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.broker.Unsubscribe(c.sub)
		c.conn.Close()
	}()

	for {
		select {
		case evt := <-c.sub.Events():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			payload, err := json.Marshal(wsMessage{Event: evt.Name, Data: evt.Data})
			if err != nil {
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound frames; it exists to process control messages
// and to notice the peer going away.
func (c *wsClient) readPump() {
	defer func() {
		c.broker.Unsubscribe(c.sub)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Debug().Err(err).Msg("websocket read closed")
			}
			return
		}
	}
}
