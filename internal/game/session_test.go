// internal/game/session_test.go
package game

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jason-s-yu/crowdpick/internal/grading"
	"github.com/jason-s-yu/crowdpick/internal/models"
	"github.com/jason-s-yu/crowdpick/internal/questions"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockBroadcaster collects events instead of sending them over WS.
type mockBroadcaster struct {
	mu     sync.Mutex
	events []SessionEvent
}

func (mb *mockBroadcaster) broadcastFn(ev SessionEvent) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.events = append(mb.events, ev)
}

func (mb *mockBroadcaster) ofType(t SessionEventType) []SessionEvent {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	var out []SessionEvent
	for _, ev := range mb.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

var testPanel = models.Panel{ID: "gen-z", Name: "Gen Z"}

// buildQuestions makes n questions per layer for the panel. The correct option is always index 0,
// followed by three decoys.
func buildQuestions(panelID string, n int) []models.Question {
	var qs []models.Question
	for _, layer := range models.Layers {
		for i := 0; i < n; i++ {
			qs = append(qs, models.Question{
				ID:      fmt.Sprintf("%s-%s-%d", panelID, layer, i),
				Text:    fmt.Sprintf("Question %d", i),
				PanelID: panelID,
				Layer:   layer,
				Options: []models.Option{
					{Text: "pizza", IsCorrect: true},
					{Text: "salad"},
					{Text: "soup"},
					{Text: "toast"},
				},
			})
		}
	}
	return qs
}

const (
	correctIdx = 0
	wrongIdx   = 1
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

// setupTestSession builds a session with the timer disabled and a mock broadcaster.
func setupTestSession(t *testing.T, rounds int, layer models.AnswerLayer) (*Session, *mockBroadcaster) {
	t.Helper()
	rules := DefaultRules()
	rules.TotalRounds = rounds
	rules.RoundTimerSec = 0

	s := NewSession(questions.NewBank(buildQuestions(testPanel.ID, 10)), rules, quietLogger())
	mb := &mockBroadcaster{}
	s.BroadcastFn = mb.broadcastFn
	s.SetSelectedPanel(testPanel)
	s.SetSelectedLayer(layer)
	return s, mb
}

func startSolo(t *testing.T, s *Session) GameState {
	t.Helper()
	st, err := s.StartGame(ModeSolo)
	require.NoError(t, err)
	require.Equal(t, PhaseUnanswered, st.Phase)
	return st
}

func TestStartGameInitializesSession(t *testing.T) {
	s, mb := setupTestSession(t, 5, models.LayerHonest)
	st := startSolo(t, s)

	assert.Equal(t, ModeSolo, st.Mode)
	assert.Equal(t, 1, st.CurrentRound)
	assert.Equal(t, 5, st.TotalRounds)
	require.NotNil(t, st.CurrentQuestion)
	assert.Equal(t, testPanel.ID, st.CurrentQuestion.PanelID)
	assert.Equal(t, models.LayerHonest, st.CurrentQuestion.Layer)
	assert.Nil(t, st.SelectedOptionIndex)
	assert.False(t, st.ShowResults)
	assert.Nil(t, st.LastResult)
	assert.Equal(t, TeamRed, st.CurrentTeam)
	for _, c := range st.PowerCards {
		assert.Equal(t, 1, c.Count, "card %s should start at its allotment", c.ID)
	}

	assert.Len(t, mb.ofType(EventSessionStart), 1)
	assert.Len(t, mb.ofType(EventRoundStart), 1)
}

func TestStartGameSoloRequiresPanel(t *testing.T) {
	rules := DefaultRules()
	rules.RoundTimerSec = 0
	s := NewSession(questions.NewBank(buildQuestions(testPanel.ID, 2)), rules, quietLogger())

	st, err := s.StartGame(ModeSolo)
	assert.ErrorIs(t, err, ErrPanelRequired)
	assert.Equal(t, PhaseNotStarted, st.Phase)
	assert.Nil(t, st.CurrentQuestion)

	// party mode does not need a panel
	st, err = s.StartGame(ModeParty)
	require.NoError(t, err)
	assert.Equal(t, PhaseUnanswered, st.Phase)
}

func TestStartGameRejectsUnknownMode(t *testing.T) {
	s, _ := setupTestSession(t, 3, models.LayerCommon)
	st, err := s.StartGame(Mode("coop"))
	assert.Error(t, err)
	assert.Equal(t, PhaseNotStarted, st.Phase)
}

func TestStartGameSurfacesExhaustion(t *testing.T) {
	rules := DefaultRules()
	rules.RoundTimerSec = 0
	s := NewSession(questions.NewBank(nil), rules, quietLogger())
	s.SetSelectedPanel(testPanel)

	st, err := s.StartGame(ModeSolo)
	assert.True(t, errors.Is(err, ErrNoQuestionsAvailable))
	assert.Equal(t, PhaseNotStarted, st.Phase)
	assert.Equal(t, 0, st.CurrentRound)
}

func TestSelectOptionIsIdempotent(t *testing.T) {
	for idx := NoAnswer; idx < 4; idx++ {
		t.Run(fmt.Sprintf("index %d", idx), func(t *testing.T) {
			s, mb := setupTestSession(t, 3, models.LayerCommon)
			startSolo(t, s)

			first := s.SelectOption(idx)
			require.True(t, first.ShowResults)
			require.NotNil(t, first.SelectedOptionIndex)
			assert.Equal(t, idx, *first.SelectedOptionIndex)

			// a duplicate tap or timer expiry must not re-score
			second := s.SelectOption(correctIdx)
			assert.Equal(t, first, second)
			third := s.SelectOption(NoAnswer)
			assert.Equal(t, first, third)
			assert.Len(t, mb.ofType(EventRoundResult), 1)
		})
	}
}

func TestSelectOptionBeforeStartIsNoop(t *testing.T) {
	s, _ := setupTestSession(t, 3, models.LayerCommon)
	before := s.State()
	after := s.SelectOption(correctIdx)
	assert.Equal(t, before, after)
}

func TestOutOfRangeIndexScoresIncorrect(t *testing.T) {
	s, _ := setupTestSession(t, 3, models.LayerCommon)
	startSolo(t, s)
	s.SelectOption(correctIdx)
	s.NextRound()
	require.Equal(t, 1, s.State().Streak)

	st := s.SelectOption(99)
	require.NotNil(t, st.LastResult)
	assert.False(t, st.LastResult.Correct)
	assert.False(t, st.LastResult.TimedOut)
	assert.Equal(t, 0, st.LastResult.Points)
	assert.Equal(t, NoAnswer, *st.SelectedOptionIndex)
	assert.Equal(t, 0, st.Streak)
	assert.Equal(t, "pizza", st.LastResult.CorrectAnswer)
}

func TestStreakAndScoreProgression(t *testing.T) {
	s, _ := setupTestSession(t, 6, models.LayerCommon)
	startSolo(t, s)

	answers := []int{correctIdx, correctIdx, wrongIdx, correctIdx, NoAnswer, correctIdx}
	wantStreak := []int{1, 2, 0, 1, 0, 1}
	prevScore := 0
	for i, a := range answers {
		st := s.SelectOption(a)
		assert.Equal(t, wantStreak[i], st.Streak, "round %d", i+1)
		assert.GreaterOrEqual(t, st.Score, prevScore, "score must never decrease")
		prevScore = st.Score
		_, err := s.NextRound()
		require.NoError(t, err)
	}
	assert.Equal(t, 400, prevScore)
}

func TestNextRoundRequiresResolvedRound(t *testing.T) {
	s, _ := setupTestSession(t, 3, models.LayerCommon)
	st := startSolo(t, s)

	after, err := s.NextRound()
	require.NoError(t, err)
	assert.Equal(t, st, after, "advancing an unanswered round must be a no-op")
}

func TestNextRoundDrawsUniqueQuestions(t *testing.T) {
	s, _ := setupTestSession(t, 10, models.LayerCommon)
	st := startSolo(t, s)

	seen := map[string]bool{st.CurrentQuestion.ID: true}
	for round := 2; round <= 10; round++ {
		s.SelectOption(wrongIdx)
		st, err := s.NextRound()
		require.NoError(t, err)
		assert.Equal(t, round, st.CurrentRound)
		assert.False(t, st.ShowResults)
		assert.Nil(t, st.SelectedOptionIndex)
		assert.Nil(t, st.LastResult)
		require.NotNil(t, st.CurrentQuestion)
		assert.False(t, seen[st.CurrentQuestion.ID], "question %s repeated", st.CurrentQuestion.ID)
		seen[st.CurrentQuestion.ID] = true
	}
}

func TestNextRoundAtLastRoundCompletes(t *testing.T) {
	s, mb := setupTestSession(t, 2, models.LayerEmbarrassing)
	var outcome *SessionOutcome
	s.OnSessionEnd = func(o SessionOutcome) { outcome = &o }
	startSolo(t, s)

	s.SelectOption(correctIdx)
	_, err := s.NextRound()
	require.NoError(t, err)
	s.SelectOption(correctIdx)

	st, err := s.NextRound()
	require.NoError(t, err)
	assert.Equal(t, PhaseComplete, st.Phase)
	assert.Equal(t, 2, st.CurrentRound)
	assert.Nil(t, st.CurrentQuestion)
	assert.Nil(t, st.SelectedOptionIndex)
	assert.Equal(t, 600, st.Score)

	require.NotNil(t, outcome)
	assert.Equal(t, 600, outcome.Score)
	assert.Equal(t, grading.GradeS, outcome.Grade)
	assert.Equal(t, 60, outcome.Coins)
	assert.False(t, outcome.EndedEarly)
	assert.Len(t, mb.ofType(EventSessionEnd), 1)

	// the terminal state does not loop back
	again, err := s.NextRound()
	require.NoError(t, err)
	assert.Equal(t, st, again)
	assert.Len(t, mb.ofType(EventSessionEnd), 1)
}

func TestNextRoundExhaustionEndsSession(t *testing.T) {
	rules := DefaultRules()
	rules.TotalRounds = 5
	rules.RoundTimerSec = 0
	bank := questions.NewBank(buildQuestions(testPanel.ID, 2))
	s := NewSession(bank, rules, quietLogger())
	s.SetSelectedPanel(testPanel)
	var outcome *SessionOutcome
	s.OnSessionEnd = func(o SessionOutcome) { outcome = &o }
	startSolo(t, s)

	s.SelectOption(correctIdx)
	_, err := s.NextRound()
	require.NoError(t, err)
	s.SelectOption(correctIdx)

	st, err := s.NextRound()
	assert.ErrorIs(t, err, ErrNoQuestionsAvailable)
	assert.Equal(t, PhaseComplete, st.Phase)
	assert.Nil(t, st.CurrentQuestion)
	require.NotNil(t, outcome)
	assert.True(t, outcome.EndedEarly)
	assert.Equal(t, 2, outcome.RoundsPlayed)
	assert.Equal(t, 200, outcome.Score)
}

func TestResetGameMatchesFreshSession(t *testing.T) {
	s, _ := setupTestSession(t, 4, models.LayerHonest)
	startSolo(t, s)
	s.UsePowerCard(models.CardDoubleBluff)
	s.SelectOption(correctIdx)
	s.NextRound()
	s.UsePowerCard(models.CardMute)

	rules := s.Rules
	fresh := NewSession(questions.NewBank(nil), rules, quietLogger())

	reset := s.ResetGame()
	assert.Equal(t, fresh.State(), reset)
	assert.Equal(t, fresh.State(), s.ResetGame(), "reset must be idempotent")

	// a new session after reset starts with a full inventory again
	s.SetSelectedPanel(testPanel)
	st := startSolo(t, s)
	for _, c := range st.PowerCards {
		assert.Equal(t, 1, c.Count)
	}
}

func TestSetupSettersIgnoredWhileActive(t *testing.T) {
	s, _ := setupTestSession(t, 3, models.LayerCommon)
	startSolo(t, s)

	st := s.SetSelectedPanel(models.Panel{ID: "boomers"})
	assert.Equal(t, testPanel.ID, st.SelectedPanel.ID)
	st = s.SetSelectedLayer(models.LayerEmbarrassing)
	assert.Equal(t, models.LayerCommon, st.SelectedLayer)

	s.ResetGame()
	st = s.SetSelectedLayer(models.AnswerLayer("spicy"))
	assert.Equal(t, models.LayerCommon, st.SelectedLayer, "unknown layers are ignored")
}

func TestStateIsACopy(t *testing.T) {
	s, _ := setupTestSession(t, 3, models.LayerCommon)
	st := startSolo(t, s)
	st.CurrentQuestion.Options[0].IsCorrect = false
	st.PowerCards[0].Count = 99

	fresh := s.State()
	assert.True(t, fresh.CurrentQuestion.Options[0].IsCorrect)
	assert.Equal(t, 1, fresh.PowerCards[0].Count)
}

func TestRoundOutcomeEmitted(t *testing.T) {
	s, _ := setupTestSession(t, 3, models.LayerHonest)
	var outcomes []RoundOutcome
	s.OnRoundResolved = func(o RoundOutcome) { outcomes = append(outcomes, o) }
	st := startSolo(t, s)

	s.SelectOption(correctIdx)
	s.SelectOption(correctIdx)
	require.Len(t, outcomes, 1)
	assert.Equal(t, st.CurrentQuestion.ID, outcomes[0].QuestionID)
	assert.True(t, outcomes[0].Correct)
	assert.Equal(t, 200, outcomes[0].Points)
	assert.Equal(t, s.ID, outcomes[0].SessionID)
}

func TestRoundTimerExpiresRound(t *testing.T) {
	s, mb := setupTestSession(t, 3, models.LayerCommon)
	s.RoundDuration = 20 * time.Millisecond
	startSolo(t, s)
	require.Len(t, mb.ofType(EventRoundTimer), 1)

	require.Eventually(t, func() bool {
		return s.State().ShowResults
	}, time.Second, 5*time.Millisecond)

	st := s.State()
	require.NotNil(t, st.LastResult)
	assert.True(t, st.LastResult.TimedOut)
	assert.Equal(t, NoAnswer, *st.SelectedOptionIndex)
	assert.Equal(t, 0, st.Score)

	// a late tap after the expiry is ignored
	assert.Equal(t, st, s.SelectOption(correctIdx))
}

func TestRoundTimerStaleAfterAnswer(t *testing.T) {
	s, mb := setupTestSession(t, 3, models.LayerCommon)
	s.RoundDuration = 30 * time.Millisecond
	startSolo(t, s)

	st := s.SelectOption(correctIdx)
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, st, s.State(), "timer must not fire after the round was answered")
	assert.Len(t, mb.ofType(EventRoundResult), 1)
}

func TestStaleTokenIgnoredAfterReset(t *testing.T) {
	s, _ := setupTestSession(t, 3, models.LayerCommon)
	startSolo(t, s)

	s.mu.Lock()
	token := s.roundToken
	s.mu.Unlock()

	s.ResetGame()
	s.SetSelectedPanel(testPanel)
	startSolo(t, s)

	s.expireRound(token)
	assert.False(t, s.State().ShowResults, "timer from the abandoned session must not resolve the new round")
}

// Scenario A: five correct honest answers score 1000 and grade A.
func TestScenarioAllHonestCorrect(t *testing.T) {
	s, _ := setupTestSession(t, 5, models.LayerHonest)
	startSolo(t, s)

	for i := 0; i < 5; i++ {
		s.SelectOption(correctIdx)
		_, err := s.NextRound()
		require.NoError(t, err)
	}
	st := s.State()
	assert.Equal(t, PhaseComplete, st.Phase)
	assert.Equal(t, 1000, st.Score)
	assert.Equal(t, 5, st.Streak)
	assert.Equal(t, grading.GradeA, grading.Compute(st.Score, st.TotalRounds))
}

// Scenario B: timing out every round scores nothing and grades D.
func TestScenarioAllTimeouts(t *testing.T) {
	s, _ := setupTestSession(t, 5, models.LayerHonest)
	startSolo(t, s)

	for i := 0; i < 5; i++ {
		st := s.SelectOption(NoAnswer)
		assert.Equal(t, 0, st.Score)
		assert.Equal(t, 0, st.Streak)
		_, err := s.NextRound()
		require.NoError(t, err)
	}
	st := s.State()
	assert.Equal(t, 0, st.Score)
	assert.Equal(t, grading.GradeD, grading.Compute(st.Score, st.TotalRounds))
}

// Scenario C: party turns alternate strictly and credit the active team.
func TestScenarioPartyAlternation(t *testing.T) {
	s, mb := setupTestSession(t, 4, models.LayerHonest)
	_, err := s.StartGame(ModeParty)
	require.NoError(t, err)

	plan := []struct {
		team   Team
		answer int
	}{
		{TeamRed, correctIdx},
		{TeamBlue, correctIdx},
		{TeamRed, correctIdx},
		{TeamBlue, wrongIdx},
	}
	for i, p := range plan {
		st := s.State()
		assert.Equal(t, p.team, st.CurrentTeam, "round %d", i+1)
		st = s.SelectOption(p.answer)
		assert.Equal(t, 0, st.Score, "party mode has no solo score")
		assert.Equal(t, 0, st.Streak, "streak tracking is solo-only")
		if i < len(plan)-1 {
			_, err := s.NextRound()
			require.NoError(t, err)
		}
	}

	st := s.State()
	assert.Equal(t, 400, st.RedScore)
	assert.Equal(t, 200, st.BlueScore)
	assert.Equal(t, TeamBlue, st.CurrentTeam)
	assert.Len(t, mb.ofType(EventTeamTurn), 3)

	var outcome *SessionOutcome
	s.OnSessionEnd = func(o SessionOutcome) { outcome = &o }
	st, err = s.NextRound()
	require.NoError(t, err)
	assert.Equal(t, PhaseComplete, st.Phase)
	require.NotNil(t, outcome)
	assert.Equal(t, TeamRed, outcome.Winner)
	assert.Equal(t, 60, outcome.Coins)
}

func TestPartyDrawsIgnorePanel(t *testing.T) {
	rules := DefaultRules()
	rules.RoundTimerSec = 0
	qs := append(buildQuestions("gen-z", 1), buildQuestions("boomers", 1)...)
	s := NewSession(questions.NewBank(qs), rules, quietLogger())
	s.SetSelectedPanel(testPanel)

	_, err := s.StartGame(ModeParty)
	require.NoError(t, err)
	s.SelectOption(correctIdx)
	st, err := s.NextRound()
	require.NoError(t, err)
	assert.Equal(t, "boomers", st.CurrentQuestion.PanelID)
}

func TestPartyDrawsRotatePanels(t *testing.T) {
	rules := DefaultRules()
	rules.RoundTimerSec = 0
	rules.TotalRounds = 6
	var qs []models.Question
	for _, panel := range []string{"gen-z", "boomers", "parents"} {
		qs = append(qs, buildQuestions(panel, 3)...)
	}
	s := NewSession(questions.NewBank(qs), rules, quietLogger())

	st, err := s.StartGame(ModeParty)
	require.NoError(t, err)
	seen := map[string]int{st.CurrentQuestion.PanelID: 1}
	prev := st.CurrentQuestion.PanelID
	for round := 2; round <= rules.TotalRounds; round++ {
		s.SelectOption(correctIdx)
		st, err = s.NextRound()
		require.NoError(t, err)
		panel := st.CurrentQuestion.PanelID
		assert.NotEqual(t, prev, panel, "round %d repeats the previous panel", round)
		seen[panel]++
		prev = panel
	}
	assert.Len(t, seen, 3, "every panel gets a turn")
	for panel, n := range seen {
		assert.Equal(t, 2, n, "panel %s over two full cycles", panel)
	}
}
