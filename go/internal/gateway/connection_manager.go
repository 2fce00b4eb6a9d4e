// Package gateway fans session updates out over WebSocket to every
// device viewing a game and feeds inbound gestures and actions back
// into the engine.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/sidelinehq/sideline/go/internal/engine"
	"github.com/sidelinehq/sideline/go/internal/placement"
	"github.com/sidelinehq/sideline/go/internal/session"
)

// ConnectionManager manages WebSocket connections for session updates
type ConnectionManager struct {
	// Connection pools organized by session ID
	sessionConnections map[uuid.UUID]map[*Connection]bool
	mu                 sync.RWMutex

	// Upgrader for WebSocket connections
	upgrader websocket.Upgrader

	// Connection configuration
	config ConnectionConfig

	clock    clockwork.Clock
	sessions *engine.Manager

	// Event broadcasting
	broadcastCh chan BroadcastMessage
}

// Connection represents a WebSocket connection to one coach device
type Connection struct {
	ID        string
	DeviceID  string
	SessionID uuid.UUID
	Conn      *websocket.Conn
	Send      chan []byte
	Manager   *ConnectionManager

	// Pointer gestures are per-connection transient state; only the
	// completed gesture reaches the session reducer.
	gestures *placement.Manager

	// Connection metadata
	ConnectedAt time.Time
	LastPing    time.Time
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// BroadcastMessage represents a message to broadcast to connections
type BroadcastMessage struct {
	SessionID uuid.UUID
	Event     *ServerEvent
	DeviceID  string // Optional: if set, only send to this device
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  16 * 1024, // command envelopes stay small; strokes are the ceiling
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig, clock clockwork.Clock) *ConnectionManager {
	cm := &ConnectionManager{
		sessionConnections: make(map[uuid.UUID]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		clock:       clock,
		broadcastCh: make(chan BroadcastMessage, 1000), // Buffer for bursty gesture traffic
	}

	return cm
}

// Bind attaches the session manager. Wiring is two-phase because the
// session manager takes the gateway as its notifier.
func (cm *ConnectionManager) Bind(sessions *engine.Manager) {
	cm.sessions = sessions
}

// Start begins processing broadcast messages
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, deviceID string, sessionID uuid.UUID) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	// Create connection object
	connection := &Connection{
		ID:          uuid.New().String(),
		DeviceID:    deviceID,
		SessionID:   sessionID,
		Conn:        conn,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
	}
	connection.gestures = placement.NewManager(deviceID, cm.clock, connection.dispatch)

	// Register the connection
	cm.registerConnection(connection)

	// Start connection handlers
	go connection.writePump()
	go connection.readPump()

	// Late joiners get the current snapshot immediately.
	cm.sendSnapshot(connection)

	log.Info().
		Str("connection_id", connection.ID).
		Str("device_id", deviceID).
		Str("session_id", sessionID.String()).
		Msg("WebSocket connection established")

	return nil
}

// sendSnapshot pushes the current session state to a single connection.
func (cm *ConnectionManager) sendSnapshot(conn *Connection) {
	sess, ok := cm.sessions.Get(conn.SessionID)
	if !ok {
		return
	}
	snap := sess.Engine.Snapshot()
	event := cm.newEvent(conn.SessionID, EventTypeSnapshot, SnapshotPayload{
		Snapshot:   snap,
		SyncStatus: sess.Engine.SyncStatus(),
		CanUndo:    sess.Engine.CanUndo(),
		CanRedo:    sess.Engine.CanRedo(),
	})
	if event == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	select {
	case conn.Send <- data:
	default:
	}
}

// registerConnection adds a connection to the manager
func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.sessionConnections[conn.SessionID] == nil {
		cm.sessionConnections[conn.SessionID] = make(map[*Connection]bool)
	}
	cm.sessionConnections[conn.SessionID][conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Str("session_id", conn.SessionID.String()).
		Int("total_connections", len(cm.sessionConnections[conn.SessionID])).
		Msg("connection registered")
}

// unregisterConnection removes a connection from the manager
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if connections, exists := cm.sessionConnections[conn.SessionID]; exists {
		if _, exists := connections[conn]; exists {
			delete(connections, conn)
			close(conn.Send)

			// Clean up empty session connection pools
			if len(connections) == 0 {
				delete(cm.sessionConnections, conn.SessionID)
			}

			log.Info().
				Str("connection_id", conn.ID).
				Str("device_id", conn.DeviceID).
				Str("session_id", conn.SessionID.String()).
				Msg("connection unregistered")
		}
	}
}

// BroadcastToSession sends an event to all connections for a session
func (cm *ConnectionManager) BroadcastToSession(sessionID uuid.UUID, event *ServerEvent) {
	select {
	case cm.broadcastCh <- BroadcastMessage{SessionID: sessionID, Event: event}:
	default:
		log.Warn().Str("session_id", sessionID.String()).Msg("broadcast channel full, dropping message")
	}
}

// BroadcastToDevice sends an event to a specific device in a session
func (cm *ConnectionManager) BroadcastToDevice(sessionID uuid.UUID, deviceID string, event *ServerEvent) {
	select {
	case cm.broadcastCh <- BroadcastMessage{SessionID: sessionID, Event: event, DeviceID: deviceID}:
	default:
		log.Warn().
			Str("session_id", sessionID.String()).
			Str("device_id", deviceID).
			Msg("broadcast channel full, dropping device message")
	}
}

// handleBroadcast processes a broadcast message
func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	cm.mu.RLock()
	connections, exists := cm.sessionConnections[message.SessionID]
	if !exists {
		cm.mu.RUnlock()
		return
	}

	// Create a snapshot of connections to avoid holding lock during broadcast
	var targetConnections []*Connection
	for conn := range connections {
		// Filter by device if specified
		if message.DeviceID != "" && conn.DeviceID != message.DeviceID {
			continue
		}
		targetConnections = append(targetConnections, conn)
	}
	cm.mu.RUnlock()

	// Marshal the event once
	eventData, err := json.Marshal(message.Event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	// Send to all target connections
	for _, conn := range targetConnections {
		select {
		case conn.Send <- eventData:
		default:
			// Connection is slow/dead, close it
			log.Warn().
				Str("connection_id", conn.ID).
				Str("device_id", conn.DeviceID).
				Msg("connection send buffer full, closing connection")
			cm.unregisterConnection(conn)
			conn.Conn.Close()
		}
	}

	log.Debug().
		Str("event_type", string(message.Event.Type)).
		Str("session_id", message.SessionID.String()).
		Int("connections", len(targetConnections)).
		Msg("event broadcasted")
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() map[string]interface{} {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	totalConnections := 0
	sessionCounts := make(map[string]int)

	for sessionID, connections := range cm.sessionConnections {
		count := len(connections)
		totalConnections += count
		sessionCounts[sessionID.String()] = count
	}

	return map[string]interface{}{
		"total_connections":   totalConnections,
		"active_sessions":     len(cm.sessionConnections),
		"session_connections": sessionCounts,
	}
}

func (cm *ConnectionManager) newEvent(sessionID uuid.UUID, eventType EventType, payload interface{}) *ServerEvent {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to marshal event payload")
		return nil
	}
	return &ServerEvent{
		ID:        uuid.New().String(),
		SessionID: sessionID.String(),
		Type:      eventType,
		Timestamp: cm.clock.Now(),
		Data:      data,
	}
}

// dispatch routes a completed gesture into the open session.
func (c *Connection) dispatch(action session.Action) error {
	sess, ok := c.Manager.sessions.Get(c.SessionID)
	if !ok {
		return fmt.Errorf("session %s is not open", c.SessionID)
	}
	_, err := sess.Dispatch(action)
	return err
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				// Channel was closed
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
			c.LastPing = time.Now()
		}
	}
}

// readPump handles reading messages from the WebSocket connection
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.LastPing = time.Now()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
