// internal/models/layer.go
package models

import "fmt"

// AnswerLayer is the targeted answer tier of a question.
type AnswerLayer string

const (
	LayerCommon       AnswerLayer = "common"
	LayerHonest       AnswerLayer = "honest"
	LayerEmbarrassing AnswerLayer = "embarrassing"
)

// MaxBasePoints is the highest per-round value any layer can award before modifiers.
const MaxBasePoints = 300

// Layers lists every layer in ascending risk order.
var Layers = []AnswerLayer{LayerCommon, LayerHonest, LayerEmbarrassing}

// layerInfo is the data carried by each layer variant.
type layerInfo struct {
	points int
	risk   int
	label  string
}

func (l AnswerLayer) info() (layerInfo, bool) {
	switch l {
	case LayerCommon:
		return layerInfo{points: 100, risk: 1, label: "Most Common"}, true
	case LayerHonest:
		return layerInfo{points: 200, risk: 2, label: "Brutally Honest"}, true
	case LayerEmbarrassing:
		return layerInfo{points: 300, risk: 3, label: "Most Embarrassing"}, true
	}
	return layerInfo{}, false
}

// Valid reports whether l is a known layer.
func (l AnswerLayer) Valid() bool {
	_, ok := l.info()
	return ok
}

// BasePoints is the score awarded for a correct answer on this layer. Unknown layers score 0.
func (l AnswerLayer) BasePoints() int {
	i, _ := l.info()
	return i.points
}

// Risk is the display ordering of the layer (1 = safest).
func (l AnswerLayer) Risk() int {
	i, _ := l.info()
	return i.risk
}

// Label is the human readable layer name.
func (l AnswerLayer) Label() string {
	i, ok := l.info()
	if !ok {
		return string(l)
	}
	return i.label
}

// ParseAnswerLayer converts a raw string into a layer.
func ParseAnswerLayer(s string) (AnswerLayer, error) {
	l := AnswerLayer(s)
	if !l.Valid() {
		return "", fmt.Errorf("unknown answer layer %q", s)
	}
	return l, nil
}
