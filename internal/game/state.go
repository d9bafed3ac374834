// internal/game/state.go
package game

import (
	"fmt"

	"github.com/jason-s-yu/crowdpick/internal/models"
)

// Mode is the play style of a session, fixed at StartGame.
type Mode string

const (
	ModeSolo  Mode = "solo"
	ModeParty Mode = "party"
)

// ParseMode converts a raw string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeSolo, ModeParty:
		return m, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// Team is one side of a party-mode session.
type Team string

const (
	TeamRed  Team = "red"
	TeamBlue Team = "blue"
)

// Other returns the opposing team.
func (t Team) Other() Team {
	if t == TeamRed {
		return TeamBlue
	}
	return TeamRed
}

// Phase is the round lifecycle position of a session.
type Phase string

const (
	PhaseNotStarted Phase = "not_started"
	PhaseUnanswered Phase = "unanswered"
	PhaseAnswered   Phase = "answered"
	PhaseComplete   Phase = "complete"
)

// NoAnswer is the option index recorded when time ran out.
const NoAnswer = -1

// RoundResult is computed once per round when an answer or timeout is recorded.
type RoundResult struct {
	Correct       bool   `json:"correct"`
	Points        int    `json:"points"`
	CorrectAnswer string `json:"correctAnswer"`
	TimedOut      bool   `json:"timedOut"`
	Multiplier    int    `json:"multiplier"`
}

// StealHint is what the steal card reveals about the current answer.
type StealHint struct {
	Layer   models.AnswerLayer `json:"layer"`
	PanelID string             `json:"panelId"`
	Initial string             `json:"initial"`
	Length  int                `json:"length"`
}

// GameState is the mutable root of a session. Values handed out by the
// engine are deep copies.
type GameState struct {
	Mode  Mode  `json:"mode,omitempty"`
	Phase Phase `json:"phase"`

	CurrentRound    int              `json:"currentRound"`
	TotalRounds     int              `json:"totalRounds"`
	CurrentQuestion *models.Question `json:"currentQuestion"`

	SelectedPanel *models.Panel      `json:"selectedPanel"`
	SelectedLayer models.AnswerLayer `json:"selectedLayer"`

	SelectedOptionIndex *int         `json:"selectedOptionIndex"`
	ShowResults         bool         `json:"showResults"`
	LastResult          *RoundResult `json:"lastResult"`

	Score  int `json:"score"`
	Streak int `json:"streak"`

	RedScore    int  `json:"redScore"`
	BlueScore   int  `json:"blueScore"`
	CurrentTeam Team `json:"currentTeam"`

	PowerCards []models.PowerCard `json:"powerCards"`

	// round-scoped power card effects
	MutedOptions     []int      `json:"mutedOptions"`
	Hint             *StealHint `json:"hint"`
	DoubleBluffArmed bool       `json:"doubleBluffArmed"`
}

// Active reports whether a round is in progress.
func (s GameState) Active() bool {
	return s.Phase == PhaseUnanswered || s.Phase == PhaseAnswered
}

// Card returns the inventory entry for kind, or nil.
func (s *GameState) Card(kind models.PowerCardKind) *models.PowerCard {
	for i := range s.PowerCards {
		if s.PowerCards[i].ID == kind {
			return &s.PowerCards[i]
		}
	}
	return nil
}

// IsMuted reports whether option idx was struck by the mute card this round.
func (s GameState) IsMuted(idx int) bool {
	for _, m := range s.MutedOptions {
		if m == idx {
			return true
		}
	}
	return false
}

func (s GameState) clone() GameState {
	c := s
	c.CurrentQuestion = s.CurrentQuestion.Clone()
	if s.SelectedPanel != nil {
		p := *s.SelectedPanel
		c.SelectedPanel = &p
	}
	if s.SelectedOptionIndex != nil {
		idx := *s.SelectedOptionIndex
		c.SelectedOptionIndex = &idx
	}
	if s.LastResult != nil {
		r := *s.LastResult
		c.LastResult = &r
	}
	if s.Hint != nil {
		h := *s.Hint
		c.Hint = &h
	}
	c.PowerCards = append([]models.PowerCard(nil), s.PowerCards...)
	c.MutedOptions = append([]int{}, s.MutedOptions...)
	return c
}

// defaultState is the pre-session state for the given rules.
func defaultState(rules SessionRules) GameState {
	return GameState{
		Phase:         PhaseNotStarted,
		TotalRounds:   rules.TotalRounds,
		SelectedLayer: models.LayerCommon,
		CurrentTeam:   TeamRed,
		PowerCards:    rules.StartingCards(),
		MutedOptions:  []int{},
	}
}

// clearRound drops everything scoped to the current round.
func (s *GameState) clearRound() {
	s.SelectedOptionIndex = nil
	s.ShowResults = false
	s.LastResult = nil
	s.MutedOptions = []int{}
	s.Hint = nil
	s.DoubleBluffArmed = false
}
