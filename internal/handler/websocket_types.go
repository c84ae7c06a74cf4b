// internal/handler/websocket_types.go
package handler

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"label-service/internal/model"
)

// Client represents a WebSocket client
type Client struct {
	ID          string          `json:"id"`
	Connection  *websocket.Conn `json:"-"`
	Send        chan []byte     `json:"-"`
	Printer     *string         `json:"printer,omitempty"`
	UserAgent   string          `json:"user_agent"`
	RemoteAddr  string          `json:"remote_addr"`
	ConnectedAt time.Time       `json:"connected_at"`

	mu sync.Mutex
	// subscriptions holds event types; empty means every type.
	subscriptions map[model.EventType]bool
}

// Subscribe limits the client to the given event type in addition to any
// earlier subscriptions
func (c *Client) Subscribe(eventType model.EventType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subscriptions == nil {
		c.subscriptions = make(map[model.EventType]bool)
	}
	c.subscriptions[eventType] = true
}

// Unsubscribe removes an event type subscription
func (c *Client) Unsubscribe(eventType model.EventType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subscriptions, eventType)
}

// Wants reports whether the event should be delivered to this client
func (c *Client) Wants(event model.PrintEvent) bool {
	if c.Printer != nil && *c.Printer != event.PrinterName {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subscriptions) == 0 || c.subscriptions[event.EventType]
}

// WebSocketMessage represents a WebSocket message
type WebSocketMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// ConnectionManager manages WebSocket connections
type ConnectionManager struct {
	clients  map[string]*Client
	stopped  bool
	stopOnce sync.Once
	mutex    sync.RWMutex
}

// NewConnectionManager creates a new connection manager
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		clients: make(map[string]*Client),
	}
}

// Register registers a new client. After Stop the client's Send channel is
// closed immediately.
func (cm *ConnectionManager) Register(client *Client) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	if cm.stopped {
		close(client.Send)
		return
	}
	cm.clients[client.ID] = client
}

// Unregister removes a client and closes its Send channel
func (cm *ConnectionManager) Unregister(client *Client) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	if _, ok := cm.clients[client.ID]; ok {
		delete(cm.clients, client.ID)
		close(client.Send)
	}
}

// Stop disconnects every client
func (cm *ConnectionManager) Stop() {
	cm.stopOnce.Do(func() {
		cm.mutex.Lock()
		defer cm.mutex.Unlock()
		cm.stopped = true
		for id, client := range cm.clients {
			delete(cm.clients, id)
			close(client.Send)
		}
	})
}

// SendTo queues message for one registered client. It reports false when the
// client is gone or its buffer is full.
func (cm *ConnectionManager) SendTo(client *Client, message []byte) bool {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	if cm.clients[client.ID] != client {
		return false
	}
	select {
	case client.Send <- message:
		return true
	default:
		return false
	}
}

// Broadcast queues message for every client that wants the event. Sends
// happen under the read lock so a client's channel cannot be closed mid-send.
func (cm *ConnectionManager) Broadcast(event model.PrintEvent, message []byte) (delivered int, dropped []string) {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	for _, client := range cm.clients {
		if !client.Wants(event) {
			continue
		}
		select {
		case client.Send <- message:
			delivered++
		default:
			dropped = append(dropped, client.ID)
		}
	}
	return delivered, dropped
}

// GetStats returns connection statistics
func (cm *ConnectionManager) GetStats() *ConnectionStats {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	stats := &ConnectionStats{
		TotalConnections: len(cm.clients),
		ByPrinter:        make(map[string]int),
		Clients:          make([]*Client, 0, len(cm.clients)),
	}

	for _, client := range cm.clients {
		key := "*"
		if client.Printer != nil {
			key = *client.Printer
		}
		stats.ByPrinter[key]++
		stats.Clients = append(stats.Clients, client)
	}

	return stats
}

// ConnectionStats represents connection statistics
type ConnectionStats struct {
	TotalConnections int            `json:"total_connections"`
	ByPrinter        map[string]int `json:"by_printer"`
	Clients          []*Client      `json:"clients"`
}
