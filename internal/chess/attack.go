package chess

type offset struct{ df, dr int }

var (
	knightOffsets = []offset{{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2}}
	kingOffsets   = []offset{{0, 1}, {1, 1}, {1, 0}, {1, -1}, {0, -1}, {-1, -1}, {-1, 0}, {-1, 1}}
	rookDirs      = []offset{{0, 1}, {1, 0}, {0, -1}, {-1, 0}}
	bishopDirs    = []offset{{1, 1}, {1, -1}, {-1, -1}, {-1, 1}}
)

func pawnDir(c Color) int {
	if c == White {
		return 1
	}
	return -1
}

// IsSquareAttacked reports whether any piece of color by attacks sq. It reads
// only the board value it is given.
func IsSquareAttacked(b Board, sq Square, by Color) bool {
	// A pawn of color by attacks sq from one rank behind it, diagonally.
	for _, df := range []int{-1, 1} {
		if from, ok := sq.Offset(df, -pawnDir(by)); ok && b.squares[from] == (Piece{Pawn, by}) {
			return true
		}
	}
	for _, o := range knightOffsets {
		if from, ok := sq.Offset(o.df, o.dr); ok && b.squares[from] == (Piece{Knight, by}) {
			return true
		}
	}
	for _, o := range kingOffsets {
		if from, ok := sq.Offset(o.df, o.dr); ok && b.squares[from] == (Piece{King, by}) {
			return true
		}
	}
	if rayAttacked(b, sq, by, rookDirs, Rook) || rayAttacked(b, sq, by, bishopDirs, Bishop) {
		return true
	}
	return false
}

// rayAttacked walks each direction until the first occupied square and checks
// for a slider of kind slider (or a queen) belonging to by.
func rayAttacked(b Board, sq Square, by Color, dirs []offset, slider PieceKind) bool {
	for _, d := range dirs {
		cur := sq
		for {
			next, ok := cur.Offset(d.df, d.dr)
			if !ok {
				break
			}
			p := b.squares[next]
			if !p.IsEmpty() {
				if p.Color == by && (p.Kind == slider || p.Kind == Queen) {
					return true
				}
				break
			}
			cur = next
		}
	}
	return false
}

// IsInCheck reports whether color's king is attacked.
func IsInCheck(b Board, color Color) bool {
	k := b.KingSquare(color)
	if k == NoSquare {
		return false
	}
	return IsSquareAttacked(b, k, color.Other())
}

// InCheck reports whether the side to move is in check.
func (b Board) InCheck() bool {
	return IsInCheck(b, b.turn)
}
