package services

import "fmt"

// HouseEdge is the multiplicative discount applied to every fair payout
// ratio. All settlement math routes through this package so the number a
// player sees is the number the wallet pays.
const HouseEdge = 0.99

// combinations computes C(n, r) iteratively, multiplying and dividing in
// lock-step so intermediate values stay small enough for float64 on any
// realistic board size.
func combinations(n, r int) float64 {
	if r < 0 || r > n {
		return 0
	}
	if r > n/2 {
		r = n - r
	}

	result := 1.0
	for i := 1; i <= r; i++ {
		result = result * float64(n-i+1) / float64(i)
	}
	return result
}

// MinefieldMultiplier returns the payout multiplier after house edge for a
// board of boardSize tiles with hazardCount hazards and revealedCount safe
// tiles already revealed.
//
// The fair ratio is C(boardSize, revealedCount) / C(safeTiles, revealedCount):
// the inverse of the probability that revealedCount uniformly chosen tiles
// are all safe. Zero reveals carry no exposure, so no edge is applied and the
// multiplier is exactly 1.0.
func MinefieldMultiplier(boardSize, hazardCount, revealedCount int) (float64, error) {
	if hazardCount < 1 || hazardCount > boardSize-1 {
		return 0, fmt.Errorf("%w: hazard count %d out of range [1, %d]", ErrInvalidConfiguration, hazardCount, boardSize-1)
	}
	if revealedCount == 0 {
		return 1.0, nil
	}
	if revealedCount < 0 || revealedCount > boardSize-hazardCount {
		// Callers must special-case a cleared board before asking for odds.
		return 0, fmt.Errorf("%w: revealed count %d exceeds %d safe tiles", ErrInvalidConfiguration, revealedCount, boardSize-hazardCount)
	}

	total := combinations(boardSize, revealedCount)
	successful := combinations(boardSize-hazardCount, revealedCount)

	return total / successful * HouseEdge, nil
}

// DiceMultiplier returns the payout multiplier for a roll strictly above
// rollOver on a [0, 100) roll. Win chance is (100 - rollOver)%, so the fair
// multiplier is 100/(100-rollOver), discounted by the house edge.
func DiceMultiplier(rollOver float64) (float64, error) {
	if rollOver < 1 || rollOver > 99 {
		return 0, fmt.Errorf("%w: roll over %.2f out of range [1, 99]", ErrInvalidConfiguration, rollOver)
	}
	return 100 / (100 - rollOver) * HouseEdge, nil
}
