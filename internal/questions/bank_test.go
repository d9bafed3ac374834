package questions

import (
	"errors"
	"strings"
	"testing"

	"github.com/jason-s-yu/crowdpick/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleQuestions() []models.Question {
	return []models.Question{
		{ID: "q1", PanelID: "gen-z", Layer: models.LayerCommon, Options: []models.Option{{Text: "a", IsCorrect: true}, {Text: "b"}}},
		{ID: "q2", PanelID: "gen-z", Layer: models.LayerHonest, Options: []models.Option{{Text: "a", IsCorrect: true}, {Text: "b"}}},
		{ID: "q3", PanelID: "boomers", Layer: models.LayerHonest, Options: []models.Option{{Text: "a", IsCorrect: true}, {Text: "b"}}},
	}
}

func TestBankNextFiltersAndExcludes(t *testing.T) {
	b := NewBank(sampleQuestions())
	require.Equal(t, 3, b.Len())

	q, err := b.Next(Query{PanelID: "gen-z", Layer: models.LayerHonest})
	require.NoError(t, err)
	assert.Equal(t, "q2", q.ID)

	q, err = b.Next(Query{Layer: models.LayerHonest, Exclude: map[string]struct{}{"q2": {}}})
	require.NoError(t, err)
	assert.Equal(t, "q3", q.ID)

	_, err = b.Next(Query{PanelID: "boomers", Exclude: map[string]struct{}{"q3": {}}})
	assert.True(t, errors.Is(err, ErrNoQuestionsAvailable))
}

func TestBankAvoidPanelPrefersOthers(t *testing.T) {
	b := NewBank(sampleQuestions())

	q, err := b.Next(Query{Layer: models.LayerHonest, AvoidPanels: map[string]struct{}{"gen-z": {}}})
	require.NoError(t, err)
	assert.Equal(t, "q3", q.ID, "another panel wins over list order")

	// only the avoided panel has a match left, so it is still handed out
	q, err = b.Next(Query{Layer: models.LayerHonest, AvoidPanels: map[string]struct{}{"gen-z": {}}, Exclude: map[string]struct{}{"q3": {}}})
	require.NoError(t, err)
	assert.Equal(t, "q2", q.ID)

	shuffled := NewBank(sampleQuestions(), WithShuffle(7))
	for i := 0; i < 20; i++ {
		q, err := shuffled.Next(Query{Layer: models.LayerHonest, AvoidPanels: map[string]struct{}{"boomers": {}}})
		require.NoError(t, err)
		assert.Equal(t, "gen-z", q.PanelID)
	}
}

func TestBankReturnsCopies(t *testing.T) {
	b := NewBank(sampleQuestions())
	q, err := b.Next(Query{})
	require.NoError(t, err)
	q.Options[0].Text = "mutated"

	again, err := b.Next(Query{})
	require.NoError(t, err)
	assert.Equal(t, "a", again.Options[0].Text)
}

func TestBankShuffleStaysWithinMatches(t *testing.T) {
	b := NewBank(sampleQuestions(), WithShuffle(42))
	for i := 0; i < 20; i++ {
		q, err := b.Next(Query{PanelID: "gen-z"})
		require.NoError(t, err)
		assert.Equal(t, "gen-z", q.PanelID)
	}
}

func TestDecodeCatalog(t *testing.T) {
	raw := `{"panels":[{"id":"gen-z","name":"Gen Z"}],
		"questions":[{"id":"q1","text":"Best snack?","panelId":"gen-z","layer":"common",
		"options":[{"text":"chips","isCorrect":true},{"text":"kale"}]}]}`
	c, err := DecodeCatalog(strings.NewReader(raw))
	require.NoError(t, err)
	require.Len(t, c.Panels, 1)
	require.Len(t, c.Questions, 1)
	assert.Equal(t, "chips", c.Questions[0].CorrectAnswer())

	_, err = DecodeCatalog(strings.NewReader(`{"questions":[{"id":"q1","layer":"spicy"}]}`))
	assert.Error(t, err)
}
