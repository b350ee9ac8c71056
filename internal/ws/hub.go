package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cutflow/cutflow-backend/internal/logger"
)

// AccessChecker проверяет, может ли пользователь подписаться на события заказа.
type AccessChecker interface {
	CanAccessOrder(ctx context.Context, userID uuid.UUID, role string, orderID uuid.UUID) (bool, error)
}

// Envelope сообщение сервера клиенту: type содержит имя события, data полезную нагрузку.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub управляет подключениями: личный канал пользователя и комнаты заказов.
type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]map[*Client]struct{}
	rooms   map[uuid.UUID]map[*Client]struct{}
	access  AccessChecker
	log     *logrus.Entry
}

// NewHub создаёт новый хаб. access может быть nil, тогда подписки на заказы запрещены.
func NewHub(access AccessChecker) *Hub {
	return &Hub{
		clients: make(map[uuid.UUID]map[*Client]struct{}),
		rooms:   make(map[uuid.UUID]map[*Client]struct{}),
		access:  access,
		log:     logger.Component("ws_hub"),
	}
}

// SetAccess задаёт проверку подписок. Нужен, когда проверяющий сервис сам зависит от хаба.
func (h *Hub) SetAccess(access AccessChecker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.access = access
}

// Register добавляет клиента.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.userID]; !ok {
		h.clients[client.userID] = make(map[*Client]struct{})
	}
	h.clients[client.userID][client] = struct{}{}
}

// Unregister удаляет клиента из личного канала и всех комнат. Повторный вызов безопасен.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[client.userID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.clients, client.userID)
		}
	}
	for orderID := range client.rooms {
		h.leaveLocked(client, orderID)
	}
}

// Subscribe подписывает клиента на события заказа, если он участник.
func (h *Hub) Subscribe(ctx context.Context, client *Client, orderID uuid.UUID) error {
	h.mu.RLock()
	access := h.access
	h.mu.RUnlock()
	if access == nil {
		return ErrForbidden
	}
	ok, err := access.CanAccessOrder(ctx, client.userID, client.role, orderID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, registered := h.clients[client.userID][client]; !registered {
		return ErrClosed
	}
	if _, ok := h.rooms[orderID]; !ok {
		h.rooms[orderID] = make(map[*Client]struct{})
	}
	h.rooms[orderID][client] = struct{}{}
	client.rooms[orderID] = struct{}{}
	return nil
}

// Unsubscribe отписывает клиента от заказа.
func (h *Hub) Unsubscribe(client *Client, orderID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(client, orderID)
}

func (h *Hub) leaveLocked(client *Client, orderID uuid.UUID) {
	delete(client.rooms, orderID)
	if members, ok := h.rooms[orderID]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, orderID)
		}
	}
}

// SendToUser отправляет событие во все подключения пользователя.
// Возвращает false, если пользователь не подключён.
func (h *Hub) SendToUser(userID uuid.UUID, event string, data any) bool {
	payload, ok := h.encode(event, data)
	if !ok {
		return false
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := false
	for client := range h.clients[userID] {
		if client.enqueue(payload) {
			delivered = true
		}
	}
	return delivered
}

// SendToOrder отправляет событие подписчикам заказа и возвращает число получателей.
func (h *Hub) SendToOrder(orderID uuid.UUID, event string, data any) int {
	payload, ok := h.encode(event, data)
	if !ok {
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	sent := 0
	for client := range h.rooms[orderID] {
		if client.enqueue(payload) {
			sent++
		}
	}
	return sent
}

// Online возвращает число подключений пользователя.
func (h *Hub) Online(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (h *Hub) encode(event string, data any) ([]byte, bool) {
	raw, err := json.Marshal(Envelope{Type: event, Data: data})
	if err != nil {
		h.log.WithFields(logrus.Fields{"event": event, "error": err.Error()}).Error("не удалось сериализовать сообщение")
		return nil, false
	}
	return raw, true
}
