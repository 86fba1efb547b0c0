package chathub

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"

	"marketchat/backend/internal/models"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	maxFrameSize = 8192
)

var validate = validator.New()

// frameHandlers is the dispatch table for inbound frames: one typed handler
// per operation kind, no string matching on payload fields.
var frameHandlers = map[models.FrameKind]func(*WebSocketClient, json.RawMessage) error{
	models.KindSubscribe: (*WebSocketClient).handleSubscribe,
	models.KindSend:      (*WebSocketClient).handleSend,
	models.KindMarkRead:  (*WebSocketClient).handleMarkRead,
	models.KindTyping:    (*WebSocketClient).handleTyping,
}

// WebSocketClient implements the chathub.Client interface over one
// gorilla/websocket connection.
type WebSocketClient struct {
	ConnID      string
	UserID      string
	DisplayName string
	Conn        *websocket.Conn
	Hub         *Hub
	Router      *Router
	Presence    *Presence
	Send        chan models.Event

	// mu guards closed. The hub may close Send from its own goroutine while
	// readPump is still handling frames, so every local send on the channel
	// must check the flag under the lock.
	mu     sync.Mutex
	closed bool
}

func (c *WebSocketClient) GetConnID() string                   { return c.ConnID }
func (c *WebSocketClient) GetUserID() string                   { return c.UserID }
func (c *WebSocketClient) GetDisplayName() string              { return c.DisplayName }
func (c *WebSocketClient) GetSendChannel() chan<- models.Event { return c.Send }

// Run starts the client's pumps.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close closes the Send channel, which stops the write pump. Safe to call
// more than once; readPump stops on its own once Conn.Close() runs in its
// defer.
func (c *WebSocketClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.UnregisterCh <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxFrameSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("error reading frame: %v", err)
			}
			break
		}

		var frame models.Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			log.Printf("Error decoding frame from conn %s: %v", c.ConnID, err)
			c.sendError("bad_frame", "malformed frame")
			continue
		}

		handler, ok := frameHandlers[frame.Kind]
		if !ok {
			c.sendError("unknown_kind", "unknown frame kind: "+string(frame.Kind))
			continue
		}
		if err := handler(c, frame.Payload); err != nil {
			c.sendError(errorCode(err), err.Error())
		}
	}
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Channel closed by the hub.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.writeEvent(event); err != nil {
				return
			}

			// Drain whatever else is queued before the next poll.
			n := len(c.Send)
			for i := 0; i < n; i++ {
				if err := c.writeEvent(<-c.Send); err != nil {
					return
				}
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WebSocketClient) writeEvent(event models.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error encoding event for conn %s: %v", c.ConnID, err)
		return nil
	}
	return c.Conn.WriteMessage(websocket.TextMessage, data)
}

func (c *WebSocketClient) sendError(code, message string) {
	event := models.Event{
		Kind:  models.KindError,
		Error: &models.ErrorEvent{Code: code, Message: message},
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.Send <- event:
	default:
	}
}

func (c *WebSocketClient) handleSubscribe(payload json.RawMessage) error {
	var pl models.SubscribePayload
	if err := json.Unmarshal(payload, &pl); err != nil {
		return err
	}
	if err := validate.Struct(pl); err != nil {
		return err
	}
	if _, err := c.Router.RoomForParticipant(pl.RoomID, c.UserID); err != nil {
		return err
	}
	c.Hub.Subscribe(c, pl.RoomID)
	return nil
}

func (c *WebSocketClient) handleSend(payload json.RawMessage) error {
	var pl models.SendPayload
	if err := json.Unmarshal(payload, &pl); err != nil {
		return err
	}
	if err := validate.Struct(pl); err != nil {
		return err
	}
	_, err := c.Router.Send(pl.RoomID, c.UserID, pl.Body, pl.IdempotencyKey)
	return err
}

func (c *WebSocketClient) handleMarkRead(payload json.RawMessage) error {
	var pl models.MarkReadPayload
	if err := json.Unmarshal(payload, &pl); err != nil {
		return err
	}
	if err := validate.Struct(pl); err != nil {
		return err
	}
	_, err := c.Router.MarkRead(pl.RoomID, c.UserID)
	return err
}

func (c *WebSocketClient) handleTyping(payload json.RawMessage) error {
	var pl models.TypingPayload
	if err := json.Unmarshal(payload, &pl); err != nil {
		return err
	}
	if err := validate.Struct(pl); err != nil {
		return err
	}
	c.Presence.SignalTyping(pl.RoomID, c.UserID, c.DisplayName)
	return nil
}

// errorCode maps operation errors onto stable wire codes.
func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return "room_not_found"
	case errors.Is(err, ErrNotParticipant):
		return "forbidden"
	case errors.Is(err, ErrSelfChat), errors.Is(err, ErrUnknownUser),
		errors.Is(err, ErrEmptyBody), errors.Is(err, ErrBodyTooLong):
		return "validation"
	default:
		return "internal"
	}
}
