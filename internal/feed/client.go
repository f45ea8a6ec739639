package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Send pings to peer with this period
	pingPeriod = 30 * time.Second

	// Listeners only receive, anything larger is a protocol error
	maxMessageSize = 512
)

// Client represents a single feed connection
type Client struct {
	contributorID uuid.UUID
	conn          *websocket.Conn
	hub           *Hub
	send          chan []byte
	log           *slog.Logger
}

func newClient(contributorID uuid.UUID, conn *websocket.Conn, hub *Hub, log *slog.Logger) *Client {
	conn.SetReadLimit(maxMessageSize)
	return &Client{
		contributorID: contributorID,
		conn:          conn,
		hub:           hub,
		send:          make(chan []byte, 64),
		log:           log,
	}
}

// readPump only detects disconnects, listeners never send frames
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.leave(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || ctx.Err() != nil {
				c.log.Debug("feed client disconnected", "contributor_id", c.contributorID)
			} else {
				c.log.Warn("feed read error", "contributor_id", c.contributorID, "error", err)
			}
			return
		}
	}
}

// writePump pumps messages from the hub to the connection
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				c.conn.Close(websocket.StatusGoingAway, "feed closed")
				return
			}

			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, data)
			cancel()

			if err != nil {
				c.log.Warn("failed to write message", "contributor_id", c.contributorID, "error", err)
				c.conn.Close(websocket.StatusInternalError, "write failed")
				return
			}

		case <-ticker.C:
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(writeCtx)
			cancel()

			if err != nil {
				c.log.Warn("failed to send ping", "contributor_id", c.contributorID, "error", err)
				c.conn.Close(websocket.StatusPolicyViolation, "ping failed")
				return
			}

		case <-ctx.Done():
			return
		}
	}
}
