package chess

import "fmt"

// MoveKind tags how a move changes the board beyond relocating one piece.
type MoveKind uint8

const (
	MoveNormal MoveKind = iota
	MoveCapture
	MoveEnPassant
	MoveCastleKingside
	MoveCastleQueenside
	MoveDoublePawnPush
)

var moveKindNames = [...]string{"normal", "capture", "en-passant", "castle-kingside", "castle-queenside", "double-pawn-push"}

func (k MoveKind) String() string {
	if int(k) < len(moveKindNames) {
		return moveKindNames[k]
	}
	return "unknown"
}

// Move is a single half-move. Kind is filled in by the generator; moves
// parsed from client input carry MoveNormal until Validate resolves them.
type Move struct {
	From      Square
	To        Square
	Promotion PieceKind
	Kind      MoveKind
}

// Matches compares the client-visible part of two moves: squares and
// promotion piece.
func (m Move) Matches(o Move) bool {
	return m.From == o.From && m.To == o.To && m.Promotion == o.Promotion
}

// IsCapture reports whether the move removes an enemy piece.
func (m Move) IsCapture() bool {
	return m.Kind == MoveCapture || m.Kind == MoveEnPassant
}

// String renders the move in UCI coordinate notation, e.g. "e7e8q".
func (m Move) String() string {
	s := m.From.String() + m.To.String()
	if m.Promotion != NoPieceKind {
		s += string(m.Promotion.Letter())
	}
	return s
}

// ParseMove parses UCI coordinate notation ("e2e4", "e7e8q").
func ParseMove(uci string) (Move, error) {
	if len(uci) != 4 && len(uci) != 5 {
		return Move{}, fmt.Errorf("invalid move %q", uci)
	}
	from, err := ParseSquare(uci[0:2])
	if err != nil {
		return Move{}, fmt.Errorf("invalid move %q: %w", uci, err)
	}
	to, err := ParseSquare(uci[2:4])
	if err != nil {
		return Move{}, fmt.Errorf("invalid move %q: %w", uci, err)
	}
	m := Move{From: from, To: to}
	if len(uci) == 5 {
		if m.Promotion, err = promotionPiece(uci[4:]); err != nil {
			return Move{}, fmt.Errorf("invalid move %q: %w", uci, err)
		}
	}
	return m, nil
}

// NewMove builds a move descriptor from algebraic squares and an optional
// promotion letter.
func NewMove(from, to, promotion string) (Move, error) {
	f, err := ParseSquare(from)
	if err != nil {
		return Move{}, err
	}
	t, err := ParseSquare(to)
	if err != nil {
		return Move{}, err
	}
	m := Move{From: f, To: t}
	if promotion != "" {
		if m.Promotion, err = promotionPiece(promotion); err != nil {
			return Move{}, err
		}
	}
	return m, nil
}

// promotionPiece accepts any piece letter so that a pawn or king promotion
// reaches Validate and is rejected there with ReasonInvalidPromotion. Only
// text that names no piece at all is a parse error.
func promotionPiece(letter string) (PieceKind, error) {
	if len(letter) == 1 {
		if p, ok := pieceFromFEN(letter[0]); ok {
			return p.Kind, nil
		}
	}
	return NoPieceKind, fmt.Errorf("unknown promotion piece %q", letter)
}

// ParsePromotion maps a promotion letter to a piece kind. Anything other than
// q, r, b, n (either case) yields NoPieceKind.
func ParsePromotion(p string) PieceKind {
	switch p {
	case "q", "Q":
		return Queen
	case "r", "R":
		return Rook
	case "b", "B":
		return Bishop
	case "n", "N":
		return Knight
	default:
		return NoPieceKind
	}
}
