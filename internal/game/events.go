// internal/game/events.go
package game

import (
	"github.com/jason-s-yu/crowdpick/internal/models"
)

// SessionEventType is an enum-like type for broadcasting session changes.
type SessionEventType string

const (
	EventSessionStart  SessionEventType = "session_start"   // mode chosen, first question drawn
	EventRoundStart    SessionEventType = "round_start"     // a new question is live
	EventRoundTimer    SessionEventType = "round_timer"     // countdown armed, carries the deadline
	EventRoundResult   SessionEventType = "round_result"    // answer or timeout recorded
	EventPowerCardUsed SessionEventType = "power_card_used" // a card was consumed
	EventTeamTurn      SessionEventType = "team_turn"       // party mode: whose turn it is now
	EventSessionEnd    SessionEventType = "session_end"     // final totals, grade and coins
	EventSessionReset  SessionEventType = "session_reset"   // state returned to defaults
	EventSyncState     SessionEventType = "sync_state"      // full public state on connect
	EventQuestionsOut  SessionEventType = "questions_exhausted"
)

// SessionEvent holds data about an event broadcast to the clients of a session.
type SessionEvent struct {
	Type   SessionEventType  `json:"type"`
	Round  int               `json:"round,omitempty"`
	Team   Team              `json:"team,omitempty"`
	Card   *models.PowerCard `json:"card,omitempty"`
	Result *RoundResult      `json:"result,omitempty"`

	Payload map[string]interface{} `json:"payload,omitempty"`

	State *PublicState `json:"state,omitempty"`
}
