package bingo

import "github.com/samber/lo"

// Remaining lists the numbers of 1..MaxNumber not yet in called, ascending.
func Remaining(called []int) []int {
	seen := lo.Keyify(called)
	out := make([]int, 0, MaxNumber-len(seen))
	for n := 1; n <= MaxNumber; n++ {
		if _, ok := seen[n]; !ok {
			out = append(out, n)
		}
	}
	return out
}

// NextNumber picks uniformly among the uncalled numbers.
// ok is false once all MaxNumber numbers have been called.
func NextNumber(called []int, src Source) (n int, ok bool) {
	if src == nil {
		src = DefaultSource
	}
	remaining := Remaining(called)
	if len(remaining) == 0 {
		return 0, false
	}
	return remaining[src.IntN(len(remaining))], true
}

// ValidNumber reports whether n is a ball of the game.
func ValidNumber(n int) bool {
	return n >= 1 && n <= MaxNumber
}
