package bingo

import (
	"github.com/samber/lo"

	"bingoduel/backend/internal/models"
)

// Lines returns the 12 winning lines of a card: each lettered column,
// each index across the five columns, and both diagonals.
// It returns nil for a malformed card.
func Lines(card models.BingoCard) [][]int {
	cols := card.Columns()
	for _, col := range cols {
		if len(col) != CardSize {
			return nil
		}
	}

	lines := make([][]int, 0, 2*CardSize+2)
	for _, col := range cols {
		lines = append(lines, col)
	}
	for i := 0; i < CardSize; i++ {
		across := make([]int, CardSize)
		for c, col := range cols {
			across[c] = col[i]
		}
		lines = append(lines, across)
	}

	down := make([]int, CardSize)
	up := make([]int, CardSize)
	for c, col := range cols {
		down[c] = col[c]
		up[c] = col[CardSize-1-c]
	}
	return append(lines, down, up)
}

// HasWin reports whether every number of at least one line is marked.
func HasWin(marked []int, card models.BingoCard) bool {
	if len(marked) < CardSize {
		return false
	}
	set := lo.Keyify(marked)
	for _, line := range Lines(card) {
		if lo.EveryBy(line, func(n int) bool {
			_, ok := set[n]
			return ok
		}) {
			return true
		}
	}
	return false
}
