package engine

import "github.com/nvbf/tournament-desk/models"

const (
	setsToWin     = 2
	maxSets       = 3
	pointsPerSet  = 21
	pointsLastSet = 15
	winningMargin = 2
)

// matchResult is the per-set score and the number of sets each side won.
type matchResult struct {
	Sets   []models.SetScore
	Result models.SetScore
}

func tallySets(sets []models.SetScore) matchResult {
	var result models.SetScore
	for _, set := range sets {
		if set.Side1 > set.Side2 {
			result.Side1++
		} else if set.Side2 > set.Side1 {
			result.Side2++
		}
	}
	return matchResult{Sets: sets, Result: result}
}

// validateScore checks a best-of-three result: sets to 21, a deciding set to 15, won by two.
// No set may be played once a side has won the match.
func validateScore(m matchResult) bool {
	if len(m.Sets) == 0 || len(m.Sets) > maxSets {
		return false
	}
	side1, side2 := 0, 0
	for i, set := range m.Sets {
		if side1 == setsToWin || side2 == setsToWin {
			return false
		}
		target := pointsPerSet
		if i == maxSets-1 {
			target = pointsLastSet
		}
		if !validSet(set, target) {
			return false
		}
		if set.Side1 > set.Side2 {
			side1++
		} else {
			side2++
		}
	}
	if side1 != setsToWin && side2 != setsToWin {
		return false
	}
	return side1 == m.Result.Side1 && side2 == m.Result.Side2
}

func validSet(set models.SetScore, target int) bool {
	high, low := set.Side1, set.Side2
	if low > high {
		high, low = low, high
	}
	if high < target || low < 0 {
		return false
	}
	if low <= target-winningMargin {
		return high == target
	}
	return high-low == winningMargin
}
