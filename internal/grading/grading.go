// Package grading turns a finished session's score into a letter grade and a coin reward.
package grading

import "github.com/jason-s-yu/crowdpick/internal/models"

// Grade is a discrete letter grade.
type Grade string

const (
	GradeS Grade = "S"
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
)

// thresholds in descending order; the first one met wins.
var thresholds = []struct {
	min   float64
	grade Grade
}{
	{80, GradeS},
	{60, GradeA},
	{40, GradeB},
	{20, GradeC},
}

// CoinDivisor converts score into coins.
const CoinDivisor = 10

// Percentage is score as a share of the best possible total for totalRounds,
// where every round is worth at most models.MaxBasePoints.
func Percentage(score, totalRounds int) float64 {
	if totalRounds <= 0 {
		return 0
	}
	return float64(score) / float64(totalRounds*models.MaxBasePoints) * 100
}

// ForPercentage maps a percentage to its grade.
func ForPercentage(pct float64) Grade {
	for _, t := range thresholds {
		if pct >= t.min {
			return t.grade
		}
	}
	return GradeD
}

// Compute grades a final score.
func Compute(score, totalRounds int) Grade {
	return ForPercentage(Percentage(score, totalRounds))
}

// CoinsEarned is floor(score / 10). Negative scores earn nothing.
func CoinsEarned(score int) int {
	if score <= 0 {
		return 0
	}
	return score / CoinDivisor
}
