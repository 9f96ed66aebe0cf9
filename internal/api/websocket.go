// internal/api/websocket.go
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket upgrader configuration
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// production deployments should restrict this
		return true
	},
}

// WebSocketClient is one client connection subscribed to a task's progress
type WebSocketClient struct {
	conn      WebSocketConnection
	taskID    string
	userID    string
	send      chan []byte
	closed    int32 // atomic flag, 0=open, 1=closed
	lastPing  time.Time
	createdAt time.Time
}

// WebSocketManager manages all WebSocket connections grouped by task
type WebSocketManager struct {
	connections   map[string]map[WebSocketConnection]*WebSocketClient // taskID -> connections
	broadcast     chan []byte
	register      chan *WebSocketClient
	unregister    chan *WebSocketClient
	cleanup       chan bool
	mutex         sync.RWMutex
	pingTimeout   time.Duration
	cleanupTicker *time.Ticker
}

// Global WebSocket manager
var wsManager = &WebSocketManager{
	connections: make(map[string]map[WebSocketConnection]*WebSocketClient),
	broadcast:   make(chan []byte, 256),
	register:    make(chan *WebSocketClient, 256),
	unregister:  make(chan *WebSocketClient, 256),
	cleanup:     make(chan bool, 1),
	pingTimeout: 60 * time.Second,
}

// WebSocketConnection is the connection interface, satisfied by
// *websocket.Conn and by test fakes
type WebSocketConnection interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
}

// WebSocketConnWrapper wraps a real websocket.Conn
type WebSocketConnWrapper struct {
	*websocket.Conn
}

func init() {
	go wsManager.run()
}

// Close shuts the client connection down safely
func (client *WebSocketClient) Close() {
	if atomic.CompareAndSwapInt32(&client.closed, 0, 1) {
		// only flip the flag; the send channel is closed by the write pump
		if client.conn != nil {
			client.conn.Close()
		}
	}
}

// IsClosed reports whether the connection has been closed
func (client *WebSocketClient) IsClosed() bool {
	return atomic.LoadInt32(&client.closed) == 1
}

// UpdatePing records the last ping time
func (client *WebSocketClient) UpdatePing() {
	client.lastPing = time.Now()
}

// IsExpired reports whether the connection has gone quiet past the timeout
func (client *WebSocketClient) IsExpired(timeout time.Duration) bool {
	if timeout <= 0 {
		return true
	}

	return time.Since(client.lastPing) > timeout
}

// SendMessage queues a message for the client without blocking
func (client *WebSocketClient) SendMessage(message map[string]interface{}) error {
	if client.IsClosed() {
		return nil
	}

	msgBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	if client.IsClosed() {
		return nil
	}

	select {
	case client.send <- msgBytes:
		return nil
	default:
		log.Printf("client %s message queue full, message dropped", client.userID)
		return nil
	}
}

// SendError sends an error message to the client
func (client *WebSocketClient) SendError(errorMsg string) {
	client.SendMessage(map[string]interface{}{
		"type":      "error",
		"error":     errorMsg,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// run is the manager main loop
func (manager *WebSocketManager) run() {
	manager.cleanupTicker = time.NewTicker(30 * time.Second)
	defer manager.cleanupTicker.Stop()

	for {
		select {
		case client := <-manager.register:
			manager.registerClient(client)

		case client := <-manager.unregister:
			manager.unregisterClient(client)

		case <-manager.cleanupTicker.C:
			manager.cleanupExpiredConnections()

		case message := <-manager.broadcast:
			manager.broadcastMessage(message)

		case <-manager.cleanup:
			manager.shutdown()
			return
		}
	}
}

func (manager *WebSocketManager) registerClient(client *WebSocketClient) {
	if client == nil {
		return
	}

	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	if manager.connections[client.taskID] == nil {
		manager.connections[client.taskID] = make(map[WebSocketConnection]*WebSocketClient)
	}

	manager.connections[client.taskID][client.conn] = client
	client.UpdatePing()

	log.Printf("WebSocket client connected to task %s (user: %s)", client.taskID, client.userID)
}

func (manager *WebSocketManager) unregisterClient(client *WebSocketClient) {
	if client == nil {
		return
	}

	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	if connections, exists := manager.connections[client.taskID]; exists {
		delete(connections, client.conn)

		if len(connections) == 0 {
			delete(manager.connections, client.taskID)
		}
	}

	if !client.IsClosed() {
		client.Close()
	}

	log.Printf("WebSocket client disconnected (task: %s, user: %s)", client.taskID, client.userID)
}

// cleanupExpiredConnections drops closed and stale connections
func (manager *WebSocketManager) cleanupExpiredConnections() {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	for taskID, connections := range manager.connections {
		for conn, client := range connections {
			if client.IsClosed() || client.IsExpired(manager.pingTimeout) {
				delete(connections, conn)
				if !client.IsClosed() {
					client.Close()
				}
			}
		}
		if len(connections) == 0 {
			delete(manager.connections, taskID)
		}
	}
}

// CleanupExpiredConnections closes connections idle longer than timeout and
// returns how many were removed
func (manager *WebSocketManager) CleanupExpiredConnections(timeout time.Duration) int {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	cleaned := 0
	for taskID, connections := range manager.connections {
		for conn, client := range connections {
			if client.IsClosed() || client.IsExpired(timeout) {
				delete(connections, conn)
				if !client.IsClosed() {
					client.Close()
				}
				cleaned++
			}
		}
		if len(connections) == 0 {
			delete(manager.connections, taskID)
		}
	}
	return cleaned
}

func (manager *WebSocketManager) broadcastMessage(message []byte) {
	manager.mutex.RLock()
	allClients := make([]*WebSocketClient, 0)
	for _, connections := range manager.connections {
		for _, client := range connections {
			if !client.IsClosed() {
				allClients = append(allClients, client)
			}
		}
	}
	manager.mutex.RUnlock()

	if len(allClients) > 0 {
		manager.processBatch(allClients, message)
	}
}

func (manager *WebSocketManager) processBatch(clients []*WebSocketClient, message []byte) {
	failedCount := 0
	for _, client := range clients {
		if client.IsClosed() {
			continue
		}

		select {
		case client.send <- message:
		default:
			// queue full
			failedCount++
			if failedCount <= 5 {
				go func(c *WebSocketClient) {
					c.Close()
					select {
					case manager.unregister <- c:
					case <-time.After(50 * time.Millisecond):
					}
				}(client)
			} else {
				client.Close()
			}
		}
	}
}

func (manager *WebSocketManager) shutdown() {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	for _, connections := range manager.connections {
		for _, client := range connections {
			client.Close()
		}
	}

	manager.connections = make(map[string]map[WebSocketConnection]*WebSocketClient)
}

// GetStatus reports the manager state
func (manager *WebSocketManager) GetStatus() map[string]interface{} {
	manager.mutex.RLock()
	defer manager.mutex.RUnlock()

	tasks := make(map[string]interface{})
	totalConnections := 0

	for taskID, connections := range manager.connections {
		activeConnections := 0
		users := make([]interface{}, 0)

		for _, client := range connections {
			if client != nil && !client.IsClosed() {
				activeConnections++
				users = append(users, map[string]interface{}{
					"user_id":      client.userID,
					"task_id":      client.taskID,
					"connected_at": client.createdAt.Format(time.RFC3339),
					"last_ping":    client.lastPing.Format(time.RFC3339),
				})
			}
		}

		tasks[taskID] = map[string]interface{}{
			"client_count": activeConnections,
			"users":        users,
		}
		totalConnections += activeConnections
	}

	return map[string]interface{}{
		"total_tasks":       len(manager.connections),
		"total_connections": totalConnections,
		"tasks":             tasks,
	}
}

// BroadcastToTask sends a message to every client watching a task
func (manager *WebSocketManager) BroadcastToTask(taskID string, message map[string]interface{}) {
	msgBytes, err := json.Marshal(message)
	if err != nil {
		log.Printf("failed to serialize broadcast message: %v", err)
		return
	}

	manager.mutex.RLock()
	connections, exists := manager.connections[taskID]
	if !exists {
		manager.mutex.RUnlock()
		return
	}

	clientConnections := make([]*WebSocketClient, 0, len(connections))
	for _, client := range connections {
		if !client.IsClosed() {
			clientConnections = append(clientConnections, client)
		}
	}
	manager.mutex.RUnlock()

	if len(clientConnections) > 0 {
		manager.processBatch(clientConnections, msgBytes)
	}
}

// ReadJSON reads a JSON message, for handlers and tests
func (w *WebSocketConnWrapper) ReadJSON(v interface{}) error {
	return w.Conn.ReadJSON(v)
}

// WriteJSON writes a JSON message, for handlers and tests
func (w *WebSocketConnWrapper) WriteJSON(v interface{}) error {
	return w.Conn.WriteJSON(v)
}
