package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/cutflow/cutflow-backend/internal/goroutine"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	sendBuffer     = 32

	msgSubscribeOrder   = "subscribe_order"
	msgUnsubscribeOrder = "unsubscribe_order"
)

var (
	ErrForbidden = errors.New("ws: нет доступа к заказу")
	ErrClosed    = errors.New("ws: соединение закрыто")
)

// inbound сообщение клиента.
type inbound struct {
	Type    string `json:"type"`
	OrderID string `json:"order_id"`
}

// Client представляет одно подключение WebSocket.
type Client struct {
	conn   *websocket.Conn
	hub    *Hub
	userID uuid.UUID
	role   string
	send   chan []byte
	// rooms изменяется только под блокировкой хаба
	rooms map[uuid.UUID]struct{}

	closeOnce sync.Once
	done      chan struct{}
}

// NewClient создаёт нового клиента.
func NewClient(conn *websocket.Conn, hub *Hub, userID uuid.UUID, role string) *Client {
	return &Client{
		conn:   conn,
		hub:    hub,
		userID: userID,
		role:   role,
		send:   make(chan []byte, sendBuffer),
		rooms:  make(map[uuid.UUID]struct{}),
		done:   make(chan struct{}),
	}
}

// Run регистрирует клиента и обрабатывает сообщения до закрытия соединения.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	goroutine.SafeGo("ws_write_pump", c.writePump)
	c.readPump(ctx)
}

// Close закрывает соединение.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.hub.Unregister(c)
		_ = c.conn.Close()
	})
}

// enqueue ставит сообщение в очередь. Медленный клиент отключается.
func (c *Client) enqueue(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		c.hub.log.WithField("user_id", c.userID).Warn("очередь клиента переполнена, соединение закрывается")
		goroutine.SafeGo("ws_close_slow_client", c.Close)
		return false
	}
}

func (c *Client) readPump(ctx context.Context) {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.WithFields(logrus.Fields{"user_id": c.userID, "error": err.Error()}).Debug("соединение прервано")
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		c.handle(ctx, raw)
	}
}

func (c *Client) handle(ctx context.Context, raw []byte) {
	var msg inbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.reply("error", map[string]string{"message": "некорректное сообщение"})
		return
	}
	orderID, err := uuid.Parse(msg.OrderID)
	if err != nil {
		c.reply("error", map[string]string{"message": "некорректный order_id"})
		return
	}

	switch msg.Type {
	case msgSubscribeOrder:
		if err := c.hub.Subscribe(ctx, c, orderID); err != nil {
			if !errors.Is(err, ErrForbidden) {
				c.hub.log.WithFields(logrus.Fields{"user_id": c.userID, "order_id": orderID, "error": err.Error()}).Warn("подписка не удалась")
			}
			c.reply("error", map[string]string{"message": "нет доступа к заказу", "order_id": orderID.String()})
			return
		}
		c.reply("subscribed", map[string]string{"order_id": orderID.String()})
	case msgUnsubscribeOrder:
		c.hub.Unsubscribe(c, orderID)
		c.reply("unsubscribed", map[string]string{"order_id": orderID.String()})
	default:
		c.reply("error", map[string]string{"message": "неизвестный тип сообщения"})
	}
}

func (c *Client) reply(event string, data any) {
	if payload, ok := c.hub.encode(event, data); ok {
		c.enqueue(payload)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(writeWait))
			return
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
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
