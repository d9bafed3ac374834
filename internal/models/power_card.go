// internal/models/power_card.go
package models

import "fmt"

// PowerCardKind identifies one of the consumable power cards.
type PowerCardKind string

const (
	CardMute        PowerCardKind = "mute"
	CardSteal       PowerCardKind = "steal"
	CardDoubleBluff PowerCardKind = "double-bluff"
)

// PowerCardKinds lists every card kind in inventory order.
var PowerCardKinds = []PowerCardKind{CardMute, CardSteal, CardDoubleBluff}

// PowerCard is a limited-use consumable. Count never goes below zero.
type PowerCard struct {
	ID    PowerCardKind `json:"id"`
	Name  string        `json:"name"`
	Icon  string        `json:"icon"`
	Count int           `json:"count"`
}

// NewPowerCard builds a card of the given kind with its display data filled in.
func NewPowerCard(kind PowerCardKind, count int) PowerCard {
	if count < 0 {
		count = 0
	}
	c := PowerCard{ID: kind, Count: count}
	switch kind {
	case CardMute:
		c.Name, c.Icon = "Mute", "volume-x"
	case CardSteal:
		c.Name, c.Icon = "Steal", "hand"
	case CardDoubleBluff:
		c.Name, c.Icon = "Double Bluff", "dice"
	}
	return c
}

// ParsePowerCardKind converts a raw id into a card kind.
func ParsePowerCardKind(s string) (PowerCardKind, error) {
	switch k := PowerCardKind(s); k {
	case CardMute, CardSteal, CardDoubleBluff:
		return k, nil
	}
	return "", fmt.Errorf("unknown power card %q", s)
}
