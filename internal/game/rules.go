// internal/game/rules.go
package game

import (
	"fmt"
	"math"

	"github.com/jason-s-yu/crowdpick/internal/models"
)

// SessionRules defines the session length, timer and power card allotment.
type SessionRules struct {
	TotalRounds      int  `json:"totalRounds"`      // fixed number of rounds in a session; default is 5
	RoundTimerSec    int  `json:"roundTimerSec"`    // seconds to answer before the round times out; 0 disables the timer
	MuteCards        int  `json:"muteCards"`        // starting mute cards
	StealCards       int  `json:"stealCards"`       // starting steal cards
	DoubleBluffCards int  `json:"doubleBluffCards"` // starting double-bluff cards
	AllowCardCombos  bool `json:"allowCardCombos"`  // allow different cards in the same round; a single kind is still limited to once per round
}

// Upper bounds accepted by Update.
const (
	MaxTotalRounds   = 100
	MaxRoundTimerSec = 3600
	MaxCardsPerKind  = 99
)

// DefaultRules returns the standard session configuration.
func DefaultRules() SessionRules {
	return SessionRules{
		TotalRounds:      5,
		RoundTimerSec:    30,
		MuteCards:        1,
		StealCards:       1,
		DoubleBluffCards: 1,
	}
}

// StartingCards builds a fresh power card inventory.
func (rules SessionRules) StartingCards() []models.PowerCard {
	return []models.PowerCard{
		models.NewPowerCard(models.CardMute, rules.MuteCards),
		models.NewPowerCard(models.CardSteal, rules.StealCards),
		models.NewPowerCard(models.CardDoubleBluff, rules.DoubleBluffCards),
	}
}

// Update will update the rules with the new values provided.
// Keys that are absent or null are ignored and the old value persists.
func (rules *SessionRules) Update(newRules map[string]interface{}) error {
	assignBool := func(field *bool, key string) error {
		val, exists := newRules[key]
		if !exists || val == nil {
			return nil
		}
		b, ok := val.(bool)
		if !ok {
			return fmt.Errorf("invalid type for %s", key)
		}
		*field = b
		return nil
	}

	assignInt := func(field *int, key string, minVal, maxVal int) error {
		val, exists := newRules[key]
		if !exists || val == nil {
			return nil
		}
		var n int
		switch v := val.(type) {
		case float64: // JSON numbers
			if v != math.Trunc(v) {
				return fmt.Errorf("%s must be a whole number", key)
			}
			if v < float64(minVal) || v > float64(maxVal) {
				return fmt.Errorf("%s must be between %d and %d", key, minVal, maxVal)
			}
			n = int(v)
		case int:
			n = v
		default:
			return fmt.Errorf("invalid type for %s", key)
		}
		if n < minVal || n > maxVal {
			return fmt.Errorf("%s must be between %d and %d", key, minVal, maxVal)
		}
		*field = n
		return nil
	}

	if err := assignInt(&rules.TotalRounds, "totalRounds", 1, MaxTotalRounds); err != nil {
		return err
	}
	if err := assignInt(&rules.RoundTimerSec, "roundTimerSec", 0, MaxRoundTimerSec); err != nil {
		return err
	}
	if err := assignInt(&rules.MuteCards, "muteCards", 0, MaxCardsPerKind); err != nil {
		return err
	}
	if err := assignInt(&rules.StealCards, "stealCards", 0, MaxCardsPerKind); err != nil {
		return err
	}
	if err := assignInt(&rules.DoubleBluffCards, "doubleBluffCards", 0, MaxCardsPerKind); err != nil {
		return err
	}
	return assignBool(&rules.AllowCardCombos, "allowCardCombos")
}

// ParseRules applies a map of rules on top of current. current is left untouched.
func ParseRules(rules map[string]interface{}, current SessionRules) (SessionRules, error) {
	r := current
	err := r.Update(rules)
	return r, err
}
