package chess

import "fmt"

// Square is a board coordinate encoded as rank*8 + file, so a1 is 0 and h8 is 63.
type Square int8

// NoSquare marks the absence of a square, e.g. no en passant target.
const NoSquare Square = -1

// NewSquare builds a square from a file and rank in 0..7.
func NewSquare(file, rank int) (Square, bool) {
	if file < 0 || file > 7 || rank < 0 || rank > 7 {
		return NoSquare, false
	}
	return Square(rank*8 + file), true
}

// ParseSquare parses algebraic notation such as "e4".
func ParseSquare(s string) (Square, error) {
	if len(s) != 2 {
		return NoSquare, fmt.Errorf("invalid square %q", s)
	}
	sq, ok := NewSquare(int(s[0])-'a', int(s[1])-'1')
	if !ok {
		return NoSquare, fmt.Errorf("invalid square %q", s)
	}
	return sq, nil
}

func (s Square) File() int { return int(s) & 7 }

func (s Square) Rank() int { return int(s) >> 3 }

// Valid reports whether s lies on the board.
func (s Square) Valid() bool {
	return s >= 0 && s < 64
}

// Offset returns the square df files and dr ranks away, or false when it
// falls off the board.
func (s Square) Offset(df, dr int) (Square, bool) {
	return NewSquare(s.File()+df, s.Rank()+dr)
}

// Light reports whether s is a light square.
func (s Square) Light() bool {
	return (s.File()+s.Rank())%2 == 1
}

func (s Square) String() string {
	if !s.Valid() {
		return "-"
	}
	return string([]byte{byte('a' + s.File()), byte('1' + s.Rank())})
}
