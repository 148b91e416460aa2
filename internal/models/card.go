package models

// Letters are the card's column names in order.
var Letters = [5]string{"B", "I", "N", "G", "O"}

// BingoCard is a 5x5 card stored column by column.
type BingoCard struct {
	B []int `json:"B"`
	I []int `json:"I"`
	N []int `json:"N"`
	G []int `json:"G"`
	O []int `json:"O"`
}

// Columns returns the five named columns in B, I, N, G, O order.
func (c BingoCard) Columns() [5][]int {
	return [5][]int{c.B, c.I, c.N, c.G, c.O}
}

// Numbers flattens the card column by column.
func (c BingoCard) Numbers() []int {
	out := make([]int, 0, 25)
	for _, col := range c.Columns() {
		out = append(out, col...)
	}
	return out
}

// Contains reports whether n is printed anywhere on the card.
func (c BingoCard) Contains(n int) bool {
	for _, col := range c.Columns() {
		for _, v := range col {
			if v == n {
				return true
			}
		}
	}
	return false
}

func (c BingoCard) Clone() BingoCard {
	return BingoCard{
		B: append([]int(nil), c.B...),
		I: append([]int(nil), c.I...),
		N: append([]int(nil), c.N...),
		G: append([]int(nil), c.G...),
		O: append([]int(nil), c.O...),
	}
}
