package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"geodrop/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

// Bridge upgrades HTTP requests to websockets and streams feed events to
// them. Clients only listen; anything they send is discarded.
type Bridge struct {
	feed     *Feed
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewBridge(feed *Feed, allowedOrigins []string, log zerolog.Logger) *Bridge {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &Bridge{
		feed: feed,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
		log: log.With().Str("component", "realtime_bridge").Logger(),
	}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	entities, err := ParseEntities(r.URL.Query().Get("entity"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub, err := b.feed.Subscribe(ctx, entities, func(event models.ChangeEvent) {
		payload, err := json.Marshal(event)
		if err != nil {
			return
		}
		select {
		case c.send <- payload:
		default:
			// Slow reader: drop the connection rather than skip events.
			b.log.Warn().Msg("websocket client too slow, disconnecting")
			_ = c.conn.Close()
		}
	})
	if err != nil {
		b.log.Error().Err(err).Msg("subscribe change feed")
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "feed unavailable"))
		_ = conn.Close()
		return
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump()
	}()

	c.readPump()

	sub.Unsubscribe()
	close(c.send)
	<-writerDone
}

// readPump only exists to process control frames and notice disconnects.
func (c *client) readPump() {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
