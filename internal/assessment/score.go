package assessment

import "math"

// CategoryScores holds per-category percentages in [0,100].
type CategoryScores struct {
	MCQPercent      float64 `json:"mcqPercent"`
	OneLinerPercent float64 `json:"oneLinerPercent"`
	CodingPercent   float64 `json:"codingPercent"`
	HasCoding       bool    `json:"hasCoding"`
}

// Aggregate computes category percentages from a graded evaluation. An
// empty category scores 0.
func Aggregate(eval Evaluation) CategoryScores {
	scores := CategoryScores{HasCoding: len(eval.Coding) > 0}

	if n := len(eval.MCQ); n > 0 {
		correct := 0
		for _, g := range eval.MCQ {
			if g.Correct {
				correct++
			}
		}
		scores.MCQPercent = float64(correct) / float64(n) * 100
	}
	if n := len(eval.OneLiners); n > 0 {
		correct := 0
		for _, g := range eval.OneLiners {
			if g.Correct {
				correct++
			}
		}
		scores.OneLinerPercent = float64(correct) / float64(n) * 100
	}
	if n := len(eval.Coding); n > 0 {
		sum := 0
		for _, g := range eval.Coding {
			sum += g.Score
		}
		scores.CodingPercent = float64(sum) / float64(n)
	}
	return scores
}

// Composite folds the categories into a single 0-100 integer. With a
// coding section the weights are 50/25/25; without one they stay at the
// literal 65/35 split, so an MCQ-only quiz cannot reach 100 on multiple
// choice alone.
func Composite(scores CategoryScores) int {
	var composite float64
	if scores.HasCoding {
		composite = scores.MCQPercent*0.50 + scores.OneLinerPercent*0.25 + scores.CodingPercent*0.25
	} else {
		composite = scores.MCQPercent*0.65 + scores.OneLinerPercent*0.35
	}
	return int(math.Round(composite))
}

// WeakAreas lists the categories scoring below the threshold, in the fixed
// order multiple-choice, short-answer, coding.
func WeakAreas(scores CategoryScores, threshold int) []string {
	var weak []string
	t := float64(threshold)
	if scores.MCQPercent < t {
		weak = append(weak, "multiple-choice")
	}
	if scores.OneLinerPercent < t {
		weak = append(weak, "short-answer")
	}
	if scores.HasCoding && scores.CodingPercent < t {
		weak = append(weak, "coding")
	}
	return weak
}
