package game

import (
	"testing"

	"github.com/jason-s-yu/crowdpick/internal/models"
	"github.com/jason-s-yu/crowdpick/internal/questions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cardCount(st GameState, kind models.PowerCardKind) int {
	c := st.Card(kind)
	if c == nil {
		return -1
	}
	return c.Count
}

// Scenario D: double-bluff doubles a correct common answer.
func TestDoubleBluffDoublesPoints(t *testing.T) {
	s, mb := setupTestSession(t, 3, models.LayerCommon)
	startSolo(t, s)

	st := s.UsePowerCard(models.CardDoubleBluff)
	assert.True(t, st.DoubleBluffArmed)
	assert.Equal(t, 0, cardCount(st, models.CardDoubleBluff))
	require.Len(t, mb.ofType(EventPowerCardUsed), 1)

	st = s.SelectOption(correctIdx)
	require.NotNil(t, st.LastResult)
	assert.Equal(t, 200, st.LastResult.Points)
	assert.Equal(t, 2, st.LastResult.Multiplier)
	assert.Equal(t, 200, st.Score)
	assert.False(t, st.DoubleBluffArmed, "multiplier is consumed by the answer")

	// the next round is back to 1x
	s.NextRound()
	st = s.SelectOption(correctIdx)
	assert.Equal(t, 100, st.LastResult.Points)
}

func TestDoubleBluffOnWrongAnswerScoresZero(t *testing.T) {
	s, _ := setupTestSession(t, 3, models.LayerEmbarrassing)
	startSolo(t, s)
	s.UsePowerCard(models.CardDoubleBluff)
	st := s.SelectOption(wrongIdx)
	assert.Equal(t, 0, st.LastResult.Points)
	assert.Equal(t, 0, st.Score)
}

// Scenario E: a card with no charges left does nothing.
func TestMuteWithZeroCountIsNoop(t *testing.T) {
	s, mb := setupTestSession(t, 3, models.LayerCommon)
	s.Rules.MuteCards = 0
	s.ResetGame()
	s.SetSelectedPanel(testPanel)
	before := startSolo(t, s)
	require.Equal(t, 0, cardCount(before, models.CardMute))

	after := s.UsePowerCard(models.CardMute)
	assert.Equal(t, before, after)
	assert.Empty(t, after.MutedOptions)
	assert.Equal(t, 0, cardCount(after, models.CardMute))
	assert.Empty(t, mb.ofType(EventPowerCardUsed))
}

func TestMuteStrikesAnIncorrectOption(t *testing.T) {
	s, _ := setupTestSession(t, 3, models.LayerCommon)
	s.Seed(7)
	startSolo(t, s)

	st := s.UsePowerCard(models.CardMute)
	require.Len(t, st.MutedOptions, 1)
	muted := st.MutedOptions[0]
	assert.NotEqual(t, correctIdx, muted)
	assert.False(t, st.CurrentQuestion.Options[muted].IsCorrect)
	assert.Equal(t, 0, cardCount(st, models.CardMute))

	// muting changes nothing about correctness bookkeeping
	st = s.SelectOption(correctIdx)
	assert.True(t, st.LastResult.Correct)

	s.NextRound()
	assert.Empty(t, s.State().MutedOptions, "mute is round-scoped")
}

func TestMuteNotConsumedWithoutIncorrectOptions(t *testing.T) {
	rules := DefaultRules()
	rules.RoundTimerSec = 0
	bank := questions.NewBank([]models.Question{{
		ID: "only", PanelID: testPanel.ID, Layer: models.LayerCommon,
		Options: []models.Option{{Text: "yes", IsCorrect: true}},
	}})
	s := NewSession(bank, rules, quietLogger())
	s.SetSelectedPanel(testPanel)
	startSolo(t, s)

	st := s.UsePowerCard(models.CardMute)
	assert.Equal(t, 1, cardCount(st, models.CardMute))
	assert.Empty(t, st.MutedOptions)
}

func TestStealRevealsHint(t *testing.T) {
	s, _ := setupTestSession(t, 3, models.LayerHonest)
	startSolo(t, s)

	st := s.UsePowerCard(models.CardSteal)
	require.NotNil(t, st.Hint)
	assert.Equal(t, "P", st.Hint.Initial)
	assert.Equal(t, 5, st.Hint.Length)
	assert.Equal(t, models.LayerHonest, st.Hint.Layer)
	assert.Equal(t, testPanel.ID, st.Hint.PanelID)
	assert.Equal(t, 0, cardCount(st, models.CardSteal))

	s.SelectOption(correctIdx)
	s.NextRound()
	assert.Nil(t, s.State().Hint)
}

func TestOneCardPerRoundByDefault(t *testing.T) {
	s, _ := setupTestSession(t, 3, models.LayerCommon)
	startSolo(t, s)

	s.UsePowerCard(models.CardMute)
	st := s.UsePowerCard(models.CardDoubleBluff)
	assert.False(t, st.DoubleBluffArmed)
	assert.Equal(t, 1, cardCount(st, models.CardDoubleBluff))

	// next round the other card is allowed again
	s.SelectOption(correctIdx)
	s.NextRound()
	st = s.UsePowerCard(models.CardDoubleBluff)
	assert.True(t, st.DoubleBluffArmed)
}

func TestCardCombosAllowedByRule(t *testing.T) {
	s, _ := setupTestSession(t, 3, models.LayerCommon)
	s.Rules.AllowCardCombos = true
	s.Rules.MuteCards = 3
	s.ResetGame()
	s.SetSelectedPanel(testPanel)
	startSolo(t, s)

	s.UsePowerCard(models.CardMute)
	st := s.UsePowerCard(models.CardDoubleBluff)
	assert.True(t, st.DoubleBluffArmed)
	assert.Len(t, st.MutedOptions, 1)

	// the same kind is still limited to once per round
	st = s.UsePowerCard(models.CardMute)
	assert.Len(t, st.MutedOptions, 1)
	assert.Equal(t, 2, cardCount(st, models.CardMute))
}

func TestPowerCardAfterAnswerIsNoop(t *testing.T) {
	s, _ := setupTestSession(t, 3, models.LayerCommon)
	startSolo(t, s)
	before := s.SelectOption(correctIdx)
	after := s.UsePowerCard(models.CardDoubleBluff)
	assert.Equal(t, before, after)

	s.ResetGame()
	st := s.UsePowerCard(models.CardSteal)
	assert.Equal(t, 1, cardCount(st, models.CardSteal), "cards can't be used before a session starts")
}

func TestCardCountsNeverIncreaseOrGoNegative(t *testing.T) {
	s, _ := setupTestSession(t, 6, models.LayerCommon)
	s.Rules.AllowCardCombos = true
	s.Rules.MuteCards = 2
	s.ResetGame()
	s.SetSelectedPanel(testPanel)
	st := startSolo(t, s)

	prev := map[models.PowerCardKind]int{}
	for _, c := range st.PowerCards {
		prev[c.ID] = c.Count
	}
	for round := 0; round < 6; round++ {
		for _, kind := range models.PowerCardKinds {
			s.UsePowerCard(kind)
			st = s.UsePowerCard(kind) // second use in the same round is refused
			for _, c := range st.PowerCards {
				assert.GreaterOrEqual(t, c.Count, 0)
				assert.LessOrEqual(t, c.Count, prev[c.ID])
				prev[c.ID] = c.Count
			}
		}
		s.SelectOption(correctIdx)
		s.NextRound()
	}
	for _, kind := range models.PowerCardKinds {
		assert.Equal(t, 0, prev[kind])
	}
}
