// Package questions supplies questions to game sessions.
package questions

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/jason-s-yu/crowdpick/internal/models"
)

// ErrNoQuestionsAvailable is returned when no unused question matches a query.
var ErrNoQuestionsAvailable = errors.New("no questions available")

// Query narrows the next question. Empty PanelID or Layer match anything.
// AvoidPanels is a preference, not a filter: a question from any other panel
// wins when one matches, otherwise the avoided panels are still eligible.
type Query struct {
	PanelID     string
	Layer       models.AnswerLayer
	Exclude     map[string]struct{}
	AvoidPanels map[string]struct{}
}

func (q Query) matches(c *models.Question) bool {
	if q.PanelID != "" && c.PanelID != q.PanelID {
		return false
	}
	if q.Layer != "" && c.Layer != q.Layer {
		return false
	}
	if _, used := q.Exclude[c.ID]; used {
		return false
	}
	return true
}

// Bank is an in-memory question source over an ordered list.
// By default it hands out the first match in list order.
type Bank struct {
	mu        sync.Mutex
	questions []models.Question
	rng       *rand.Rand
}

// BankOption configures a Bank.
type BankOption func(*Bank)

// WithShuffle picks a random match on every draw instead of the first one.
// A zero seed uses the current time.
func WithShuffle(seed int64) BankOption {
	return func(b *Bank) {
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		b.rng = rand.New(rand.NewSource(seed))
	}
}

// NewBank builds a bank over a copy of qs.
func NewBank(qs []models.Question, opts ...BankOption) *Bank {
	b := &Bank{questions: make([]models.Question, 0, len(qs))}
	for _, o := range opts {
		o(b)
	}
	b.Add(qs...)
	return b
}

// Add appends questions to the bank.
func (b *Bank) Add(qs ...models.Question) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range qs {
		b.questions = append(b.questions, *qs[i].Clone())
	}
}

// Len is the number of questions held.
func (b *Bank) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.questions)
}

// Next returns a copy of an unused question matching q, or ErrNoQuestionsAvailable.
func (b *Bank) Next(q Query) (*models.Question, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var preferred, fallback []int
	for i := range b.questions {
		c := &b.questions[i]
		if !q.matches(c) {
			continue
		}
		if _, avoid := q.AvoidPanels[c.PanelID]; avoid {
			fallback = append(fallback, i)
			continue
		}
		if b.rng == nil {
			return c.Clone(), nil
		}
		preferred = append(preferred, i)
	}
	candidates := preferred
	if len(candidates) == 0 {
		candidates = fallback
	}
	if len(candidates) == 0 {
		return nil, ErrNoQuestionsAvailable
	}
	if b.rng == nil {
		return b.questions[candidates[0]].Clone(), nil
	}
	return b.questions[candidates[b.rng.Intn(len(candidates))]].Clone(), nil
}
