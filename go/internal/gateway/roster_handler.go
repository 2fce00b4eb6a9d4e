package gateway

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sidelinehq/sideline/go/internal/roster"
)

// RosterStore manages the master roster behind the bench bar.
type RosterStore interface {
	Players(ctx context.Context, teamID uuid.UUID) ([]roster.Player, error)
	UpsertPlayer(ctx context.Context, p roster.Player) error
	SaveSettings(ctx context.Context, teamID uuid.UUID, periodMinutes, periods int) error
}

// rosterSettingsRequest is the body for saving period configuration.
type rosterSettingsRequest struct {
	PeriodDurationMinutes int `json:"period_duration_minutes"`
	NumberOfPeriods       int `json:"number_of_periods"`
}

// HandleRoster serves the bench bar: GET lists a team's active
// players, POST creates or updates one.
func (h *WebSocketHandler) HandleRoster(w http.ResponseWriter, r *http.Request) {
	if h.roster == nil {
		http.Error(w, "roster store not configured", http.StatusServiceUnavailable)
		return
	}

	switch r.Method {
	case http.MethodGet:
		teamID, err := uuid.Parse(r.URL.Query().Get("team_id"))
		if err != nil {
			http.Error(w, "invalid team_id format", http.StatusBadRequest)
			return
		}
		players, err := h.roster.Players(r.Context(), teamID)
		if err != nil {
			log.Error().Err(err).Str("team_id", teamID.String()).Msg("failed to load players")
			http.Error(w, "failed to load players", http.StatusInternalServerError)
			return
		}
		if players == nil {
			players = []roster.Player{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(players)

	case http.MethodPost:
		var p roster.Player
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			http.Error(w, "invalid player payload", http.StatusBadRequest)
			return
		}
		if p.ID == uuid.Nil || p.TeamID == uuid.Nil || p.Name == "" {
			http.Error(w, "id, team_id and name are required", http.StatusBadRequest)
			return
		}
		if err := h.roster.UpsertPlayer(r.Context(), p); err != nil {
			log.Error().Err(err).Str("player_id", p.ID.String()).Msg("failed to save player")
			http.Error(w, "failed to save player", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleRosterSettings stores a team's period configuration. Sessions
// pick it up at creation; running sessions are not touched.
func (h *WebSocketHandler) HandleRosterSettings(w http.ResponseWriter, r *http.Request) {
	if h.roster == nil {
		http.Error(w, "roster store not configured", http.StatusServiceUnavailable)
		return
	}
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	teamID, err := uuid.Parse(r.URL.Query().Get("team_id"))
	if err != nil {
		http.Error(w, "invalid team_id format", http.StatusBadRequest)
		return
	}
	var body rosterSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid settings payload", http.StatusBadRequest)
		return
	}
	if body.PeriodDurationMinutes <= 0 || body.NumberOfPeriods <= 0 {
		http.Error(w, "period_duration_minutes and number_of_periods must be positive", http.StatusBadRequest)
		return
	}

	if err := h.roster.SaveSettings(r.Context(), teamID, body.PeriodDurationMinutes, body.NumberOfPeriods); err != nil {
		log.Error().Err(err).Str("team_id", teamID.String()).Msg("failed to save team settings")
		http.Error(w, "failed to save settings", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
