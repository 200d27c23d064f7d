package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"potholytics/internal/logger"
	"potholytics/internal/model"

	"github.com/gorilla/websocket"
)

const broadcastBuffer = 64

type message struct {
	requestID string
	payload   []byte
}

type subscription struct {
	conn      *websocket.Conn
	requestID string
}

// HubService fans pipeline events out to connected viewers. A viewer may
// follow a single request or every request.
type HubService struct {
	clients    map[*websocket.Conn]string
	broadcast  chan message
	register   chan subscription
	unregister chan *websocket.Conn
	done       chan struct{}
	stopOnce   sync.Once
	mutex      sync.RWMutex
	logger     *logger.Logger
}

func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*websocket.Conn]string),
		broadcast:  make(chan message, broadcastBuffer),
		register:   make(chan subscription),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves registrations and broadcasts until ctx ends, then closes every
// viewer. Later registrations are refused.
func (h *HubService) Run(ctx context.Context) {
	defer h.stopOnce.Do(func() { close(h.done) })

	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return

		case sub := <-h.register:
			h.mutex.Lock()
			h.clients[sub.conn] = sub.requestID
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer connected. Total: %d", count)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer disconnected. Total: %d", count)

		case msg := <-h.broadcast:
			h.mutex.Lock()
			for client, filter := range h.clients {
				if filter != "" && filter != msg.requestID {
					continue
				}
				if err := client.WriteMessage(websocket.TextMessage, msg.payload); err != nil {
					h.logger.Error("Error sending message: %v", err)
					delete(h.clients, client)
					client.Close()
				}
			}
			h.mutex.Unlock()
		}
	}
}

// Register subscribes client to events of requestID, or of all requests when
// empty. Once the hub has stopped the client is closed and false returned.
func (h *HubService) Register(client *websocket.Conn, requestID string) bool {
	select {
	case h.register <- subscription{conn: client, requestID: requestID}:
		return true
	case <-h.done:
		client.Close()
		return false
	}
}

func (h *HubService) Unregister(client *websocket.Conn) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish queues an event for every matching viewer. Events are dropped
// when the queue is full.
func (h *HubService) Publish(event model.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Error encoding event: %v", err)
		return
	}

	select {
	case h.broadcast <- message{requestID: event.RequestID, payload: payload}:
	default:
		h.logger.Warning("Viewer queue full, dropping %s event for %s", event.Type, event.RequestID)
	}
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
