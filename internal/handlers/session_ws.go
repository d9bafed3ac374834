// internal/handlers/session_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/crowdpick/internal/game"
	"github.com/jason-s-yu/crowdpick/internal/middleware"
	"github.com/jason-s-yu/crowdpick/internal/models"
	"github.com/sirupsen/logrus"
)

const sessionSubprotocol = "session"

// SessionMessage is an incoming command frame. Only the fields relevant to
// Type are read.
type SessionMessage struct {
	Type    string `json:"type"`
	PanelID string `json:"panelId,omitempty"`
	Layer   string `json:"layer,omitempty"`
	Mode    string `json:"mode,omitempty"`
	Index   *int   `json:"index,omitempty"`
	Card    string `json:"card,omitempty"`
}

// SessionWSHandler upgrades /session/ws/{session_id} to a websocket, sends the
// current public state and then routes the client's commands to the engine.
func SessionWSHandler(logger logrus.FieldLogger, srv *SessionServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idStr := strings.Trim(strings.TrimPrefix(r.URL.Path, "/session/ws/"), "/")
		if idStr == "" {
			http.Error(w, "missing session_id in path (/session/ws/{session_id})", http.StatusBadRequest)
			return
		}
		sessionID, err := uuid.Parse(idStr)
		if err != nil {
			http.Error(w, "invalid session_id format", http.StatusBadRequest)
			return
		}
		sess, ok := srv.Sessions.GetSession(sessionID)
		if !ok {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}

		userID, err := EnsureEphemeralUser(w, r)
		if err != nil {
			logger.Warnf("user authentication failed for session %s: %v", sessionID, err)
			http.Error(w, "authentication failed", http.StatusUnauthorized)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{sessionSubprotocol},
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			logger.Warnf("websocket accept error for session %s: %v", sessionID, err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "internal server error during handler exit")

		if c.Subprotocol() != sessionSubprotocol {
			c.Close(BadSubprotocolError, "client must use the 'session' subprotocol")
			return
		}
		if _, still := srv.Sessions.GetSession(sessionID); !still {
			c.Close(InvalidSessionIDError, "session no longer exists")
			return
		}

		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)
		h := srv.hubFor(sessionID)
		cl := h.join(c, userID)
		pub := sess.PublicState()
		h.sendTo(cl, game.SessionEvent{Type: game.EventSyncState, State: &pub})

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		err = readSessionMessages(ctx, c, srv, sess, h, cl, logger)

		h.leave(cl)
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, err)
	}
}

// readSessionMessages blocks until the connection closes. A normal closure returns nil.
func readSessionMessages(ctx context.Context, c *websocket.Conn, srv *SessionServer, sess *game.Session, h *hub, cl *client, logger logrus.FieldLogger) error {
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if msgType != websocket.MessageText {
			logger.Warnf("ignoring non-text message from user %s in session %s", cl.userID, sess.ID)
			continue
		}

		var msg SessionMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			sendWsError(h, cl, "invalid JSON format")
			continue
		}
		handleSessionMessage(srv, sess, h, cl, msg)
	}
}

// handleSessionMessage applies one command. State-changing commands are
// followed by a sync_state broadcast so every client converges.
func handleSessionMessage(srv *SessionServer, sess *game.Session, h *hub, cl *client, msg SessionMessage) {
	switch msg.Type {
	case "ping":
		h.sendTo(cl, map[string]string{"type": "pong"})
		return

	case "get_state":
		pub := sess.PublicState()
		h.sendTo(cl, game.SessionEvent{Type: game.EventSyncState, State: &pub})
		return

	case "set_panel":
		panel, ok := srv.Panel(msg.PanelID)
		if !ok {
			sendWsError(h, cl, "unknown panel")
			return
		}
		sess.SetSelectedPanel(panel)

	case "set_layer":
		layer, err := models.ParseAnswerLayer(msg.Layer)
		if err != nil {
			sendWsError(h, cl, err.Error())
			return
		}
		sess.SetSelectedLayer(layer)

	case "start_game":
		mode, err := game.ParseMode(msg.Mode)
		if err != nil {
			sendWsError(h, cl, err.Error())
			return
		}
		if _, err := sess.StartGame(mode); err != nil {
			sendWsError(h, cl, err.Error())
			return
		}

	case "select_option":
		if msg.Index == nil {
			sendWsError(h, cl, "select_option requires an index")
			return
		}
		sess.SelectOption(*msg.Index)

	case "next_round":
		if _, err := sess.NextRound(); err != nil {
			// The session has already completed; clients still get the final state below.
			sendWsError(h, cl, err.Error())
		}

	case "use_power_card":
		kind, err := models.ParsePowerCardKind(msg.Card)
		if err != nil {
			sendWsError(h, cl, err.Error())
			return
		}
		sess.UsePowerCard(kind)

	case "reset_game":
		sess.ResetGame()

	default:
		sendWsError(h, cl, "unknown message type: "+msg.Type)
		return
	}

	pub := sess.PublicState()
	h.broadcast(game.EncodeEvent(game.SessionEvent{Type: game.EventSyncState, State: &pub}))
}

func sendWsError(h *hub, cl *client, errorMsg string) {
	h.sendTo(cl, map[string]interface{}{
		"type":    "error",
		"message": errorMsg,
	})
}
