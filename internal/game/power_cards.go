// internal/game/power_cards.go
package game

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/jason-s-yu/crowdpick/internal/models"
)

// UsePowerCard plays one card against the current round. It is a no-op when the
// round is already resolved, the card is used up, the effect has nothing to act
// on, or the per-round card limit is reached.
func (s *Session) UsePowerCard(kind models.PowerCardKind) GameState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.state.Phase != PhaseUnanswered {
		s.log.Debugf("power card %s ignored in phase %s", kind, s.state.Phase)
		return s.state.clone()
	}
	card := s.state.Card(kind)
	if card == nil || card.Count <= 0 {
		s.log.Debugf("power card %s unavailable", kind)
		return s.state.clone()
	}
	if s.cardsPlayed[kind] || (!s.Rules.AllowCardCombos && len(s.cardsPlayed) > 0) {
		s.log.Debugf("power card %s ignored: round card limit reached", kind)
		return s.state.clone()
	}

	var applied bool
	payload := map[string]interface{}{"card": kind, "round": s.state.CurrentRound}
	switch kind {
	case models.CardMute:
		var idx int
		idx, applied = s.applyMute()
		payload["muted"] = idx
	case models.CardSteal:
		applied = s.applySteal()
		if applied {
			payload["hint"] = *s.state.Hint
		}
	case models.CardDoubleBluff:
		s.state.DoubleBluffArmed = true
		applied = true
		payload["multiplier"] = 2
	}
	if !applied {
		s.log.Debugf("power card %s had no effect, not consumed", kind)
		return s.state.clone()
	}

	card.Count--
	s.cardsPlayed[kind] = true

	s.logAction(string(EventPowerCardUsed), payload)
	used := *card
	s.fireEvent(SessionEvent{
		Type:    EventPowerCardUsed,
		Round:   s.state.CurrentRound,
		Team:    s.teamForEvent(),
		Card:    &used,
		Payload: payload,
	})
	return s.state.clone()
}

// applyMute strikes one random incorrect option that is not already muted.
// Assumes lock is held.
func (s *Session) applyMute() (int, bool) {
	var candidates []int
	for i, o := range s.state.CurrentQuestion.Options {
		if !o.IsCorrect && !s.state.IsMuted(i) {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return NoAnswer, false
	}
	idx := candidates[s.rng.Intn(len(candidates))]
	s.state.MutedOptions = append(s.state.MutedOptions, idx)
	sort.Ints(s.state.MutedOptions)
	return idx, true
}

// applySteal reveals the shape of the correct answer.
// Assumes lock is held.
func (s *Session) applySteal() bool {
	q := s.state.CurrentQuestion
	answer := q.CorrectAnswer()
	if answer == "" {
		return false
	}
	first, _ := utf8.DecodeRuneInString(answer)
	s.state.Hint = &StealHint{
		Layer:   q.Layer,
		PanelID: q.PanelID,
		Initial: strings.ToUpper(string(first)),
		Length:  utf8.RuneCountInString(answer),
	}
	return true
}
