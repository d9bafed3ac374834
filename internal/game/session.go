// internal/game/session.go
package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/crowdpick/internal/cache"
	"github.com/jason-s-yu/crowdpick/internal/grading"
	"github.com/jason-s-yu/crowdpick/internal/models"
	"github.com/jason-s-yu/crowdpick/internal/questions"
	"github.com/sirupsen/logrus"
)

var (
	// ErrPanelRequired is returned by StartGame in solo mode when no panel was selected.
	ErrPanelRequired = errors.New("a panel must be selected before starting a solo game")

	// ErrNoQuestionsAvailable is returned when the question source cannot supply an unused question.
	ErrNoQuestionsAvailable = questions.ErrNoQuestionsAvailable
)

// QuestionSource supplies questions for rounds. It must return
// questions.ErrNoQuestionsAvailable (possibly wrapped) once nothing unused matches.
type QuestionSource interface {
	Next(q questions.Query) (*models.Question, error)
}

// ActionPublisher receives every session action for the historian.
type ActionPublisher interface {
	PublishSessionAction(ctx context.Context, record cache.SessionActionRecord) error
}

// RoundOutcome is emitted once per resolved round for profile persistence.
type RoundOutcome struct {
	SessionID  uuid.UUID `json:"session_id"`
	PlayerID   uuid.UUID `json:"player_id"`
	Mode       Mode      `json:"mode"`
	Round      int       `json:"round"`
	QuestionID string    `json:"question_id"`
	Team       Team      `json:"team,omitempty"`
	Correct    bool      `json:"correct"`
	TimedOut   bool      `json:"timed_out"`
	Points     int       `json:"points"`
}

// SessionOutcome is emitted once when a session completes.
type SessionOutcome struct {
	SessionID    uuid.UUID     `json:"session_id"`
	PlayerID     uuid.UUID     `json:"player_id"`
	Mode         Mode          `json:"mode"`
	TotalRounds  int           `json:"total_rounds"`
	RoundsPlayed int           `json:"rounds_played"`
	Score        int           `json:"score"`
	RedScore     int           `json:"red_score"`
	BlueScore    int           `json:"blue_score"`
	Winner       Team          `json:"winner,omitempty"` // empty on a party tie and in solo
	Grade        grading.Grade `json:"grade"`
	Coins        int           `json:"coins"`
	EndedEarly   bool          `json:"ended_early"`
}

// Session is one game round engine. It owns its GameState; every exported
// command takes the lock, so callers never hold it themselves.
type Session struct {
	ID      uuid.UUID
	OwnerID uuid.UUID
	Rules   SessionRules

	// RoundDuration is how long a round may stay unanswered. Zero disables the timer.
	RoundDuration time.Duration

	// BroadcastFn is used to send events to the session's clients. If nil, no broadcast is done.
	BroadcastFn func(ev SessionEvent)

	// OnRoundResolved and OnSessionEnd hand outcomes to the persistence layer.
	OnRoundResolved func(RoundOutcome)
	OnSessionEnd    func(SessionOutcome)

	// Publisher receives the action log. If nil, actions are only logged locally.
	Publisher ActionPublisher

	mu     sync.Mutex
	source QuestionSource
	log    logrus.FieldLogger
	rng    *rand.Rand

	state       GameState
	used        map[string]struct{}
	// panelCycle holds the panels party mode has drawn from since the rotation last wrapped.
	panelCycle map[string]struct{}
	cardsPlayed map[models.PowerCardKind]bool

	// roundToken increments on every round transition and never resets, so a
	// timer armed for an earlier round can always tell it is stale.
	roundToken  uint64
	roundTimer  *time.Timer
	actionIndex int
	lastSeen    time.Time
}

// NewSession builds an engine in the NotStarted state.
func NewSession(source QuestionSource, rules SessionRules, logger logrus.FieldLogger) *Session {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	id, _ := uuid.NewRandom()
	s := &Session{
		ID:            id,
		Rules:         rules,
		RoundDuration: time.Duration(rules.RoundTimerSec) * time.Second,
		source:        source,
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
		lastSeen:      time.Now(),
	}
	s.log = logger.WithField("session_id", id)
	s.resetLocked()
	return s
}

// Seed replaces the random source used by the mute card.
func (s *Session) Seed(seed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng = rand.New(rand.NewSource(seed))
}

// State returns a snapshot of the current state.
func (s *Session) State() GameState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// LastSeen is when the session last received a command.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// SetSelectedPanel chooses the panel for solo play. Ignored while a session is active.
func (s *Session) SetSelectedPanel(panel models.Panel) GameState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.state.Active() {
		s.log.Debugf("ignoring panel change to %s while a round is active", panel.ID)
		return s.state.clone()
	}
	s.state.SelectedPanel = &panel
	s.logAction("set_panel", map[string]interface{}{"panelId": panel.ID})
	return s.state.clone()
}

// SetSelectedLayer chooses the targeted answer layer. Ignored while a session is active
// or when the layer is unknown.
func (s *Session) SetSelectedLayer(layer models.AnswerLayer) GameState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.state.Active() || !layer.Valid() {
		s.log.Debugf("ignoring layer change to %q", layer)
		return s.state.clone()
	}
	s.state.SelectedLayer = layer
	s.logAction("set_layer", map[string]interface{}{"layer": layer})
	return s.state.clone()
}

// StartGame begins a new session in the given mode and draws the first question.
// On failure the previous state is left untouched.
func (s *Session) StartGame(mode Mode) (GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if _, err := ParseMode(string(mode)); err != nil {
		return s.state.clone(), err
	}
	if mode == ModeSolo && s.state.SelectedPanel == nil {
		return s.state.clone(), ErrPanelRequired
	}

	next := defaultState(s.Rules)
	next.Mode = mode
	next.SelectedPanel = s.state.SelectedPanel
	next.SelectedLayer = s.state.SelectedLayer

	used := make(map[string]struct{})
	q, err := s.draw(next, used, nil)
	if err != nil {
		s.log.Warnf("cannot start %s session: %v", mode, err)
		return s.state.clone(), err
	}

	s.stopRoundTimer()
	s.state = next
	s.used = used
	s.used[q.ID] = struct{}{}
	s.panelCycle = map[string]struct{}{q.PanelID: {}}
	s.cardsPlayed = make(map[models.PowerCardKind]bool)
	s.state.CurrentRound = 1
	s.state.CurrentQuestion = q
	s.state.Phase = PhaseUnanswered
	s.roundToken++

	s.log.Infof("%s session started with %d rounds", mode, s.state.TotalRounds)
	s.logAction(string(EventSessionStart), map[string]interface{}{
		"mode":        mode,
		"totalRounds": s.state.TotalRounds,
		"layer":       s.state.SelectedLayer,
	})
	s.fireEvent(SessionEvent{Type: EventSessionStart, Round: 1, Team: s.teamForEvent()})
	s.beginRound()
	return s.state.clone(), nil
}

// SelectOption records the answer for the current round. NoAnswer (-1) means the
// time limit elapsed. A second call in the same round is a no-op.
func (s *Session) SelectOption(index int) GameState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.resolveRound(index)
	return s.state.clone()
}

// NextRound advances past a resolved round. At the last round the session
// completes instead. If the question source runs dry the session also completes
// and ErrNoQuestionsAvailable is returned.
func (s *Session) NextRound() (GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.state.Phase != PhaseAnswered {
		s.log.Debugf("next round ignored in phase %s", s.state.Phase)
		return s.state.clone(), nil
	}
	if s.state.CurrentRound >= s.state.TotalRounds {
		s.completeSession(false)
		return s.state.clone(), nil
	}

	q, err := s.draw(s.state, s.used, s.panelCycle)
	if err != nil {
		s.log.Warnf("ending session after round %d: %v", s.state.CurrentRound, err)
		s.fireEvent(SessionEvent{Type: EventQuestionsOut, Round: s.state.CurrentRound})
		s.completeSession(true)
		return s.state.clone(), err
	}

	s.used[q.ID] = struct{}{}
	if _, wrapped := s.panelCycle[q.PanelID]; wrapped {
		s.panelCycle = make(map[string]struct{})
	}
	s.panelCycle[q.PanelID] = struct{}{}
	s.cardsPlayed = make(map[models.PowerCardKind]bool)
	s.state.clearRound()
	s.state.CurrentRound++
	s.state.CurrentQuestion = q
	s.state.Phase = PhaseUnanswered
	s.roundToken++
	if s.state.Mode == ModeParty {
		s.state.CurrentTeam = s.state.CurrentTeam.Other()
		s.fireEvent(SessionEvent{Type: EventTeamTurn, Round: s.state.CurrentRound, Team: s.state.CurrentTeam})
	}
	s.beginRound()
	return s.state.clone(), nil
}

// ResetGame abandons any session in progress and restores the freshly constructed state.
func (s *Session) ResetGame() GameState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	s.resetLocked()
	s.logAction(string(EventSessionReset), nil)
	s.fireEvent(SessionEvent{Type: EventSessionReset})
	return s.state.clone()
}

// Close stops the round timer. The session must not be used afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopRoundTimer()
	s.roundToken++
}

// resetLocked assumes the lock is held (or the session is not shared yet).
func (s *Session) resetLocked() {
	s.stopRoundTimer()
	s.roundToken++
	s.state = defaultState(s.Rules)
	s.used = make(map[string]struct{})
	s.panelCycle = make(map[string]struct{})
	s.cardsPlayed = make(map[models.PowerCardKind]bool)
}

// draw fetches the next question for st, excluding ids already used.
// Solo draws filter by panel and layer. Party draws filter by layer and rotate:
// panels already in cycle are avoided until every panel has had a turn, and a
// new cycle never opens on the previous question's panel if another is left.
func (s *Session) draw(st GameState, used, cycle map[string]struct{}) (*models.Question, error) {
	if s.source == nil {
		return nil, fmt.Errorf("session has no question source: %w", ErrNoQuestionsAvailable)
	}
	query := questions.Query{Layer: st.SelectedLayer, Exclude: used}
	if st.Mode == ModeSolo && st.SelectedPanel != nil {
		query.PanelID = st.SelectedPanel.ID
	}
	party := st.Mode == ModeParty && st.CurrentQuestion != nil
	if party {
		query.AvoidPanels = cycle
	}

	q, err := s.source.Next(query)
	if err == nil && q != nil && party {
		if _, wrapped := cycle[q.PanelID]; wrapped {
			query.AvoidPanels = map[string]struct{}{st.CurrentQuestion.PanelID: {}}
			q, err = s.source.Next(query)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("drawing question for round %d: %w", st.CurrentRound+1, err)
	}
	if q == nil {
		return nil, fmt.Errorf("question source returned nothing: %w", ErrNoQuestionsAvailable)
	}
	if _, dup := used[q.ID]; dup {
		return nil, fmt.Errorf("question %s was already used this session: %w", q.ID, ErrNoQuestionsAvailable)
	}
	return q.Clone(), nil
}

// beginRound announces the live question and arms the countdown.
// Assumes lock is held.
func (s *Session) beginRound() {
	q := s.state.CurrentQuestion
	s.logAction(string(EventRoundStart), map[string]interface{}{
		"round":      s.state.CurrentRound,
		"questionId": q.ID,
		"team":       s.teamForEvent(),
	})
	pub := s.publicStateLocked()
	s.fireEvent(SessionEvent{Type: EventRoundStart, Round: s.state.CurrentRound, Team: s.teamForEvent(), State: &pub})
	s.armRoundTimer()
}

// resolveRound scores index against the current question exactly once per round.
// Assumes lock is held.
func (s *Session) resolveRound(index int) {
	if s.state.Phase != PhaseUnanswered {
		s.log.Debugf("answer %d ignored in phase %s", index, s.state.Phase)
		return
	}
	s.stopRoundTimer()

	q := s.state.CurrentQuestion
	timedOut := index == NoAnswer
	if index < 0 || index >= len(q.Options) {
		if !timedOut {
			s.log.Warnf("option index %d out of range for question %s, scoring as incorrect", index, q.ID)
		}
		index = NoAnswer
	}
	correct := index >= 0 && q.Options[index].IsCorrect

	multiplier := 1
	if s.state.DoubleBluffArmed {
		multiplier = 2
	}
	points := 0
	if correct {
		layer := q.Layer
		if !layer.Valid() {
			layer = s.state.SelectedLayer
		}
		points = layer.BasePoints() * multiplier
	}

	switch s.state.Mode {
	case ModeParty:
		if s.state.CurrentTeam == TeamRed {
			s.state.RedScore += points
		} else {
			s.state.BlueScore += points
		}
	default:
		s.state.Score += points
		if correct {
			s.state.Streak++
		} else {
			s.state.Streak = 0
		}
	}

	result := RoundResult{
		Correct:       correct,
		Points:        points,
		CorrectAnswer: q.CorrectAnswer(),
		TimedOut:      timedOut,
		Multiplier:    multiplier,
	}
	s.state.SelectedOptionIndex = &index
	s.state.LastResult = &result
	s.state.DoubleBluffArmed = false
	s.state.ShowResults = true
	s.state.Phase = PhaseAnswered

	s.logAction(string(EventRoundResult), map[string]interface{}{
		"round":      s.state.CurrentRound,
		"questionId": q.ID,
		"option":     index,
		"correct":    correct,
		"points":     points,
		"timedOut":   timedOut,
	})
	resCopy := result
	s.fireEvent(SessionEvent{Type: EventRoundResult, Round: s.state.CurrentRound, Team: s.teamForEvent(), Result: &resCopy})

	if s.OnRoundResolved != nil {
		s.OnRoundResolved(RoundOutcome{
			SessionID:  s.ID,
			PlayerID:   s.OwnerID,
			Mode:       s.state.Mode,
			Round:      s.state.CurrentRound,
			QuestionID: q.ID,
			Team:       s.teamForEvent(),
			Correct:    correct,
			TimedOut:   timedOut,
			Points:     points,
		})
	}
}

// completeSession moves to the terminal state and emits the session outcome.
// Assumes lock is held.
func (s *Session) completeSession(early bool) {
	s.stopRoundTimer()
	s.roundToken++
	out := s.outcome(early)

	s.state.clearRound()
	s.state.CurrentQuestion = nil
	s.state.Phase = PhaseComplete

	s.log.Infof("session complete after %d rounds (early: %v)", out.RoundsPlayed, early)
	s.logAction(string(EventSessionEnd), map[string]interface{}{
		"score":     out.Score,
		"redScore":  out.RedScore,
		"blueScore": out.BlueScore,
		"grade":     out.Grade,
		"coins":     out.Coins,
		"early":     early,
	})
	s.fireEvent(SessionEvent{
		Type:  EventSessionEnd,
		Round: s.state.CurrentRound,
		Team:  out.Winner,
		Payload: map[string]interface{}{
			"score":     out.Score,
			"redScore":  out.RedScore,
			"blueScore": out.BlueScore,
			"grade":     out.Grade,
			"coins":     out.Coins,
			"early":     early,
		},
	})
	if s.OnSessionEnd != nil {
		s.OnSessionEnd(out)
	}
}

// outcome summarizes the running totals. Assumes lock is held.
func (s *Session) outcome(early bool) SessionOutcome {
	st := s.state
	out := SessionOutcome{
		SessionID:    s.ID,
		PlayerID:     s.OwnerID,
		Mode:         st.Mode,
		TotalRounds:  st.TotalRounds,
		RoundsPlayed: st.CurrentRound,
		Score:        st.Score,
		RedScore:     st.RedScore,
		BlueScore:    st.BlueScore,
		EndedEarly:   early,
	}
	if st.Mode == ModeParty {
		switch {
		case st.RedScore > st.BlueScore:
			out.Winner = TeamRed
		case st.BlueScore > st.RedScore:
			out.Winner = TeamBlue
		}
		out.Coins = grading.CoinsEarned(st.RedScore + st.BlueScore)
		out.Grade = grading.Compute(st.RedScore+st.BlueScore, st.TotalRounds)
		return out
	}
	out.Coins = grading.CoinsEarned(st.Score)
	out.Grade = grading.Compute(st.Score, st.TotalRounds)
	return out
}

// teamForEvent is the active team in party mode and empty otherwise.
func (s *Session) teamForEvent() Team {
	if s.state.Mode == ModeParty {
		return s.state.CurrentTeam
	}
	return ""
}

func (s *Session) touch() {
	s.lastSeen = time.Now()
}

// fireEvent broadcasts an event to the session's clients.
// Assumes lock is held.
func (s *Session) fireEvent(ev SessionEvent) {
	if s.BroadcastFn != nil {
		s.BroadcastFn(ev)
	}
}

// logAction sends the action details to the historian via the publisher.
// Assumes lock is held.
func (s *Session) logAction(actionType string, payload map[string]interface{}) {
	s.actionIndex++
	if payload == nil {
		payload = make(map[string]interface{})
	}
	s.log.WithField("action", actionType).WithField("index", s.actionIndex).Debug("session action")
	if s.Publisher == nil {
		return
	}
	record := cache.SessionActionRecord{
		SessionID:     s.ID,
		ActionIndex:   s.actionIndex,
		ActorUserID:   s.OwnerID,
		ActionType:    actionType,
		ActionPayload: payload,
		Timestamp:     time.Now().UnixMilli(),
	}
	pub := s.Publisher
	logger := s.log
	go func(rec cache.SessionActionRecord) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := pub.PublishSessionAction(ctx, rec); err != nil {
			logger.Errorf("failed to publish action %d: %v", rec.ActionIndex, err)
		}
	}(record)
}
