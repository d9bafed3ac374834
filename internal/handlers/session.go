package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/jason-s-yu/crowdpick/internal/game"
	"github.com/jason-s-yu/crowdpick/internal/models"
)

type createSessionResponse struct {
	SessionID string            `json:"sessionId"`
	Rules     game.SessionRules `json:"rules"`
	State     game.PublicState  `json:"state"`
}

// CreateSessionHandler creates an in-memory session owned by the caller.
// The optional JSON body holds rule overrides, e.g. {"totalRounds": 10, "allowCardCombos": true}.
func CreateSessionHandler(srv *SessionServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		userID, err := EnsureEphemeralUser(w, r)
		if err != nil {
			srv.Logger.WithError(err).Warn("failed to identify user")
			http.Error(w, "authentication failed", http.StatusUnauthorized)
			return
		}

		overrides := map[string]interface{}{}
		if err := json.NewDecoder(r.Body).Decode(&overrides); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "bad session request payload", http.StatusBadRequest)
			return
		}
		rules, err := game.ParseRules(overrides, game.DefaultRules())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		sess := srv.NewSession(r.Context(), userID, rules)
		writeJSON(w, http.StatusOK, createSessionResponse{
			SessionID: sess.ID.String(),
			Rules:     sess.Rules,
			State:     sess.PublicState(),
		})
	}
}

type sessionSummary struct {
	SessionID    string     `json:"sessionId"`
	Mode         game.Mode  `json:"mode,omitempty"`
	Phase        game.Phase `json:"phase"`
	CurrentRound int        `json:"currentRound"`
	TotalRounds  int        `json:"totalRounds"`
}

// ListSessionsHandler lists the caller's live sessions so a client can reconnect.
func ListSessionsHandler(srv *SessionServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authenticatedUser(r)
		if err != nil {
			http.Error(w, "invalid token", http.StatusForbidden)
			return
		}
		out := []sessionSummary{}
		for _, sess := range srv.Sessions.GetSessionsByOwner(userID) {
			st := sess.State()
			out = append(out, sessionSummary{
				SessionID:    sess.ID.String(),
				Mode:         st.Mode,
				Phase:        st.Phase,
				CurrentRound: st.CurrentRound,
				TotalRounds:  st.TotalRounds,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// ListPanelsHandler returns the panels a solo player may pick from.
func ListPanelsHandler(srv *SessionServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		panels := srv.Panels
		if panels == nil {
			panels = []models.Panel{}
		}
		writeJSON(w, http.StatusOK, panels)
	}
}
