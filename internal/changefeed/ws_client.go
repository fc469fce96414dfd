package changefeed

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// WebSocketClient streams matching events to one browser connection.
// The connection subscribes on Run and unsubscribes when it closes.
type WebSocketClient struct {
	ClientID string
	Scope    Filter
	Conn     *websocket.Conn
	Hub      *Hub
	Send     chan Event
}

// NewWebSocketClient wraps an upgraded connection.
func NewWebSocketClient(id string, filter Filter, conn *websocket.Conn, hub *Hub, buffer int) *WebSocketClient {
	return &WebSocketClient{
		ClientID: id,
		Scope:    filter,
		Conn:     conn,
		Hub:      hub,
		Send:     make(chan Event, buffer),
	}
}

func (c *WebSocketClient) ID() string                { return c.ClientID }
func (c *WebSocketClient) Filter() Filter            { return c.Scope }
func (c *WebSocketClient) SendChannel() chan<- Event { return c.Send }

// Close closes Send, which stops writePump.
func (c *WebSocketClient) Close() {
	close(c.Send)
}

// Run registers the client and starts the pumps.
func (c *WebSocketClient) Run() {
	if !c.Hub.Subscribe(c) {
		c.Conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

// readPump only watches for the peer going away; viewers send nothing.
func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.Unsubscribe(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("error reading from change feed client %s: %v", c.ClientID, err)
			}
			return
		}
	}
}

// writePump writes events from Send to the connection, one JSON message each.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case evt, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(evt)
			if err != nil {
				log.Printf("Error encoding change event for client %s: %v", c.ClientID, err)
				continue
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
