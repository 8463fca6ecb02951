package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

// MessageType defines the type of live feed message
type MessageType string

const (
	// MessageTypeContactUpdate indicates a contact was created, updated, or deleted
	MessageTypeContactUpdate MessageType = "contact_update"

	// MessageTypeStats carries the current aggregate statistics
	MessageTypeStats MessageType = "stats"
)

// Actions reported in ContactUpdateData.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// Message represents a live feed broadcast message
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ContactUpdateData contains contact change information
type ContactUpdateData struct {
	ContactID string `json:"contactId"`
	Action    string `json:"action"`
	Name      string `json:"name,omitempty"`
}

// ContactChanged records a change in the metrics and broadcasts it, followed
// by fresh statistics, to every live feed client. Changes made outside the
// HTTP handlers (file imports) are reported through it too.
func (s *Server) ContactChanged(ctx context.Context, action, contactID, name string) {
	s.metrics.mutations.WithLabelValues(action).Inc()

	data, err := json.Marshal(ContactUpdateData{ContactID: contactID, Action: action, Name: name})
	if err != nil {
		s.logger.Printf("Failed to marshal contact update: %v", err)
		return
	}
	s.Broadcast(Message{Type: MessageTypeContactUpdate, Timestamp: time.Now(), Data: data})

	if msg, ok := s.statsMessage(ctx); ok {
		s.Broadcast(msg)
	}
}

func (s *Server) statsMessage(ctx context.Context) (Message, bool) {
	stats, err := s.query.Stats(ctx)
	if err != nil {
		s.logger.Printf("Failed to compute stats: %v", err)
		return Message{}, false
	}
	data, err := json.Marshal(stats)
	if err != nil {
		s.logger.Printf("Failed to marshal stats: %v", err)
		return Message{}, false
	}
	return Message{Type: MessageTypeStats, Timestamp: time.Now(), Data: data}, true
}

// Broadcast sends a message to all connected clients
func (s *Server) Broadcast(msg Message) {
	select {
	case s.broadcast <- msg:
	case <-s.ctx.Done():
		return
	default:
		s.logger.Println("Warning: broadcast channel full, dropping message")
	}
}

// broadcastLoop handles message broadcasting to all clients
func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case msg := <-s.broadcast:
			if msg.Timestamp.IsZero() {
				msg.Timestamp = time.Now()
			}

			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Printf("Failed to marshal message: %v", err)
				continue
			}

			s.clientsMu.RLock()
			clients := make([]*websocket.Conn, 0, len(s.clients))
			for conn := range s.clients {
				clients = append(clients, conn)
			}
			s.clientsMu.RUnlock()

			for _, conn := range clients {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()

				if err != nil {
					s.logger.Printf("Failed to send to client: %v", err)
					s.removeClient(conn)
				}
			}
		}
	}
}

// handleWebSocket upgrades HTTP connections to WebSocket
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	// Send current stats before the client becomes visible to broadcasts,
	// so the welcome message is always the first one it reads.
	welcome, ok := s.statsMessage(r.Context())
	if !ok {
		welcome = Message{Type: MessageTypeStats, Timestamp: time.Now()}
	}
	welcomeData, _ := json.Marshal(welcome)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	_ = conn.Write(ctx, websocket.MessageText, welcomeData)
	cancel()

	s.clientsMu.Lock()
	s.clients[conn] = true
	clientCount := len(s.clients)
	s.clientsMu.Unlock()

	s.logger.Printf("Client connected (total: %d)", clientCount)

	// Keep connection alive (read loop)
	go s.readLoop(conn)
}

// readLoop keeps the WebSocket connection alive and handles client disconnects
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)

	for {
		if _, _, err := conn.Read(s.ctx); err != nil {
			return
		}
	}
}

// removeClient safely removes a client connection
func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	if _, exists := s.clients[conn]; exists {
		delete(s.clients, conn)
		clientCount := len(s.clients)
		s.clientsMu.Unlock()

		_ = conn.Close(websocket.StatusNormalClosure, "")
		s.logger.Printf("Client disconnected (total: %d)", clientCount)
	} else {
		s.clientsMu.Unlock()
	}
}
