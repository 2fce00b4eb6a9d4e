package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sidelinehq/sideline/go/internal/engine"
)

// WebSocketHandler handles WebSocket upgrade requests for session
// connections plus the HTTP surface around them. roster is nil when
// the server runs without a database.
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	sessions          *engine.Manager
	roster            RosterStore
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(cm *ConnectionManager, sessions *engine.Manager, roster RosterStore) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		sessions:          sessions,
		roster:            roster,
	}
}

// HandleSessionConnection handles WebSocket connections for a specific
// session, opening it from the store on first attach.
func (h *WebSocketHandler) HandleSessionConnection(w http.ResponseWriter, r *http.Request) {
	sessionIDStr := r.URL.Query().Get("session_id")
	if sessionIDStr == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}

	sessionID, err := uuid.Parse(sessionIDStr)
	if err != nil {
		http.Error(w, "invalid session_id format", http.StatusBadRequest)
		return
	}

	// Extract device ID from query parameter or header
	// In production, this would come from JWT token or session
	deviceID := r.URL.Query().Get("device_id")
	if deviceID == "" {
		deviceID = "anonymous"
	}

	if _, err := h.sessions.Open(r.Context(), sessionID); err != nil {
		log.Error().
			Err(err).
			Str("session_id", sessionID.String()).
			Msg("failed to open session for connection")
		http.Error(w, "failed to open session", http.StatusNotFound)
		return
	}

	// Upgrade the connection
	if err := h.connectionManager.UpgradeConnection(w, r, deviceID, sessionID); err != nil {
		log.Error().
			Err(err).
			Str("session_id", sessionID.String()).
			Str("device_id", deviceID).
			Msg("failed to upgrade WebSocket connection")
		http.Error(w, "failed to upgrade connection", http.StatusInternalServerError)
		return
	}

	// Connection is now handled by the connection manager
}

// HandleCreateSession creates a brand-new session for a team and
// returns its ID. Devices then connect over WebSocket.
func (h *WebSocketHandler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	teamIDStr := r.URL.Query().Get("team_id")
	teamID, err := uuid.Parse(teamIDStr)
	if err != nil {
		http.Error(w, "invalid team_id format", http.StatusBadRequest)
		return
	}

	sess, err := h.sessions.Create(r.Context(), teamID)
	if err != nil {
		log.Error().Err(err).Str("team_id", teamID.String()).Msg("failed to create session")
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}

	snap := sess.Engine.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"session_id": snap.ID.String()})
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	stats := h.connectionManager.GetConnectionStats()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(stats)
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/session", h.HandleSessionConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
	mux.HandleFunc("/sessions", h.HandleCreateSession)
	mux.HandleFunc("/roster", h.HandleRoster)
	mux.HandleFunc("/roster/settings", h.HandleRosterSettings)
}
