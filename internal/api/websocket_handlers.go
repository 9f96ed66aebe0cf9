// internal/api/websocket_handlers.go
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/aulanotes/AulaNotes/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// WebSocketHandler serves the progress streaming endpoint
type WebSocketHandler struct {
	progressService *services.ProgressService
}

// NewWebSocketHandler creates a WebSocket handler
func NewWebSocketHandler(progressService *services.ProgressService) *WebSocketHandler {
	return &WebSocketHandler{
		progressService: progressService,
	}
}

// ProgressWebSocket streams a task's progress updates over a WebSocket
// connection until the task finishes or the client disconnects
func (wh *WebSocketHandler) ProgressWebSocket(c *gin.Context) {
	taskID := c.Param("taskID")
	if taskID == "" {
		http.Error(c.Writer, "task ID missing", http.StatusBadRequest)
		return
	}

	tracker, exists := wh.progressService.GetTracker(taskID)
	if !exists {
		http.Error(c.Writer, "task not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("progress WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	userID := c.DefaultQuery("user_id", "anonymous")

	client := &WebSocketClient{
		conn:      &WebSocketConnWrapper{conn},
		taskID:    taskID,
		userID:    userID,
		send:      make(chan []byte, 256),
		closed:    0,
		lastPing:  time.Now(),
		createdAt: time.Now(),
	}

	select {
	case wsManager.register <- client:
	default:
		log.Printf("cannot register WebSocket client, register channel full")
		return
	}

	defer func() {
		done := make(chan bool, 1)
		go func() {
			wsManager.unregister <- client
			done <- true
		}()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			log.Printf("WebSocket client unregister timed out")
		}
	}()

	go wh.handleWebSocketWrites(client)
	go wh.handleWebSocketReads(client)

	client.SendMessage(map[string]interface{}{
		"type":      "connected",
		"task_id":   taskID,
		"user_id":   userID,
		"timestamp": time.Now().Format(time.RFC3339),
	})

	// bridge tracker updates onto the socket
	updates := tracker.Subscribe()
	defer tracker.Unsubscribe(updates)

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			client.SendMessage(map[string]interface{}{
				"type":     "progress",
				"task_id":  taskID,
				"progress": update.Progress,
				"message":  update.Message,
				"status":   update.Status,
			})
			if update.Status == "completed" || update.Status == "failed" {
				return
			}

		case <-tracker.Done:
			return

		case <-c.Request.Context().Done():
			return
		}
	}
}

// handleWebSocketReads drains client messages and keeps the ping state fresh
func (wh *WebSocketHandler) handleWebSocketReads(client *WebSocketClient) {
	defer func() {
		if !client.IsClosed() {
			select {
			case wsManager.unregister <- client:
			case <-time.After(1 * time.Second):
			}
		}
	}()

	client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.conn.SetPongHandler(func(string) error {
		client.UpdatePing()
		client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if client.IsClosed() {
			break
		}

		client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		_, messageBytes, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			break
		}

		var message map[string]interface{}
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			continue
		}

		client.UpdatePing()

		if msgType, _ := message["type"].(string); msgType == "ping" {
			client.SendMessage(map[string]interface{}{
				"type":      "pong",
				"timestamp": time.Now().Unix(),
			})
		}
	}
}

// handleWebSocketWrites pumps queued messages out and pings on an interval
func (wh *WebSocketHandler) handleWebSocketWrites(client *WebSocketClient) {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		atomic.CompareAndSwapInt32(&client.closed, 0, 1)
		func() {
			defer func() {
				recover() // channel may already be closed
			}()
			close(client.send)
		}()
		client.conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			if client.IsClosed() {
				return
			}

			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			if client.IsClosed() {
				return
			}

			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			client.UpdatePing()
		}
	}
}
