// Package bingo holds the pure 75-ball game rules: card generation,
// line detection and drawing the next number.
package bingo

import (
	"math/rand/v2"

	"bingoduel/backend/internal/models"
)

const (
	// MaxNumber is the size of the ball universe, 1..MaxNumber.
	MaxNumber = 75
	// ColumnSpan is how many numbers each lettered column draws from.
	ColumnSpan = 15
	// CardSize is the number of cells per column and per row.
	CardSize = 5
)

// Source is the randomness the generators draw from.
type Source interface {
	IntN(n int) int
}

type globalSource struct{}

func (globalSource) IntN(n int) int { return rand.IntN(n) }

// DefaultSource draws from math/rand/v2's goroutine-safe global generator.
var DefaultSource Source = globalSource{}

// ColumnRange returns the inclusive bounds of column i (0 = B ... 4 = O).
func ColumnRange(i int) (lo, hi int) {
	return i*ColumnSpan + 1, (i + 1) * ColumnSpan
}

// GenerateCard draws five distinct numbers per column by rejection
// sampling. Ranges are disjoint, so all 25 numbers on a card are distinct.
func GenerateCard(src Source) models.BingoCard {
	if src == nil {
		src = DefaultSource
	}
	var cols [CardSize][]int
	for i := range cols {
		cols[i] = generateColumn(src, i)
	}
	return models.BingoCard{B: cols[0], I: cols[1], N: cols[2], G: cols[3], O: cols[4]}
}

func generateColumn(src Source, col int) []int {
	low, high := ColumnRange(col)
	seen := make(map[int]struct{}, CardSize)
	out := make([]int, 0, CardSize)
	for len(out) < CardSize {
		n := low + src.IntN(high-low+1)
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
