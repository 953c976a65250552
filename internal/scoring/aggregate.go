package scoring

import (
	"github.com/classlens/classlens/internal/domain"
)

// Color is the roster traffic-light classification of a 0-100 score.
type Color string

const (
	ColorGreen  Color = "green"
	ColorYellow Color = "yellow"
	ColorRed    Color = "red"

	// ColorNone marks a metric nothing fed. HasData is false alongside.
	ColorNone Color = "none"
)

// Thresholds are the lower bounds of the green and yellow bands on the
// 0-100 scale. Anything below YellowMin is red.
type Thresholds struct {
	GreenMin  float64
	YellowMin float64
}

// ColorFor classifies a 0-100 score.
func ColorFor(score float64, th Thresholds) Color {
	switch {
	case score >= th.GreenMin:
		return ColorGreen
	case score >= th.YellowMin:
		return ColorYellow
	default:
		return ColorRed
	}
}

// Input is one score feeding an aggregation, already normalized to 0-100.
type Input struct {
	Score  float64
	Weight float64
}

// Metric is an aggregated score with its classification. HasData is false
// when nothing fed the aggregation; callers render that as "no data"
// rather than a zero score.
type Metric struct {
	Score   float64 `json:"score"`
	Color   Color   `json:"color"`
	HasData bool    `json:"has_data"`
	Count   int     `json:"count"`
}

// Aggregate collapses a set of scores into one metric under the template's
// aggregation mode.
//
// weighted: weight-averaged score, classified by thresholds.
// worst: the minimum score, classified by thresholds.
// majority: the most common color across inputs; a tie falls back to the
// color of the weighted average. The reported score is always the
// weighted average so roster sorting stays stable across modes.
func Aggregate(mode domain.AggregationMode, inputs []Input, th Thresholds) Metric {
	if len(inputs) == 0 {
		return Metric{Color: ColorNone}
	}

	var weightedSum, weightTotal, min float64
	min = inputs[0].Score
	for _, in := range inputs {
		w := in.Weight
		if w <= 0 {
			w = 1
		}
		weightedSum += in.Score * w
		weightTotal += w
		if in.Score < min {
			min = in.Score
		}
	}
	weightedAvg := weightedSum / weightTotal

	m := Metric{HasData: true, Count: len(inputs)}
	switch mode {
	case domain.AggregationWorst:
		m.Score = min
		m.Color = ColorFor(min, th)
	case domain.AggregationMajority:
		m.Score = weightedAvg
		m.Color = majorityColor(inputs, weightedAvg, th)
	default:
		m.Score = weightedAvg
		m.Color = ColorFor(weightedAvg, th)
	}
	return m
}

func majorityColor(inputs []Input, weightedAvg float64, th Thresholds) Color {
	counts := make(map[Color]int, 3)
	for _, in := range inputs {
		counts[ColorFor(in.Score, th)]++
	}

	best := -1
	var winner Color
	tied := false
	for _, c := range []Color{ColorGreen, ColorYellow, ColorRed} {
		switch {
		case counts[c] > best:
			best = counts[c]
			winner = c
			tied = false
		case counts[c] == best:
			tied = true
		}
	}
	if tied {
		return ColorFor(weightedAvg, th)
	}
	return winner
}
