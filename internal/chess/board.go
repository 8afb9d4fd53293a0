package chess

import "fmt"

// CastlingRights is a bit set of the four castling permissions.
type CastlingRights uint8

const (
	WhiteKingside CastlingRights = 1 << iota
	WhiteQueenside
	BlackKingside
	BlackQueenside

	NoCastling  CastlingRights = 0
	AllCastling                = WhiteKingside | WhiteQueenside | BlackKingside | BlackQueenside
)

// Has reports whether every right in r2 is present in r.
func (r CastlingRights) Has(r2 CastlingRights) bool {
	return r&r2 == r2
}

func (r CastlingRights) String() string {
	if r == NoCastling {
		return "-"
	}
	s := ""
	for _, c := range []struct {
		right  CastlingRights
		letter string
	}{{WhiteKingside, "K"}, {WhiteQueenside, "Q"}, {BlackKingside, "k"}, {BlackQueenside, "q"}} {
		if r.Has(c.right) {
			s += c.letter
		}
	}
	return s
}

func kingsideRight(c Color) CastlingRights {
	if c == White {
		return WhiteKingside
	}
	return BlackKingside
}

func queensideRight(c Color) CastlingRights {
	if c == White {
		return WhiteQueenside
	}
	return BlackQueenside
}

// Corner squares whose rooks carry castling rights.
const (
	sqA1 Square = 0
	sqE1 Square = 4
	sqH1 Square = 7
	sqA8 Square = 56
	sqE8 Square = 60
	sqH8 Square = 63
)

// Board is an immutable chess position. Every transform returns a new value,
// so earlier boards held in a game history are never aliased.
type Board struct {
	squares   [64]Piece
	turn      Color
	castling  CastlingRights
	epSquare  Square
	halfMoves int
	fullMoves int
}

// StartingPosition returns the standard initial position.
func StartingPosition() Board {
	b, err := ParseFEN(StartFEN)
	if err != nil {
		panic(err)
	}
	return b
}

// PieceAt returns the piece on sq, if any.
func (b Board) PieceAt(sq Square) (Piece, bool) {
	if !sq.Valid() {
		return Piece{}, false
	}
	p := b.squares[sq]
	return p, !p.IsEmpty()
}

// Turn is the side to move.
func (b Board) Turn() Color { return b.turn }

func (b Board) CastlingRights() CastlingRights { return b.castling }

// EnPassant returns the en passant target square set by the last double pawn push.
func (b Board) EnPassant() (Square, bool) {
	return b.epSquare, b.epSquare != NoSquare
}

// HalfMoveClock counts half-moves since the last capture or pawn move.
func (b Board) HalfMoveClock() int { return b.halfMoves }

func (b Board) FullMoveNumber() int { return b.fullMoves }

// KingSquare returns the square of c's king, or NoSquare when absent.
func (b Board) KingSquare(c Color) Square {
	for sq := Square(0); sq < 64; sq++ {
		if p := b.squares[sq]; p.Kind == King && p.Color == c {
			return sq
		}
	}
	return NoSquare
}

// Apply returns the board that results from playing m. The receiver is left
// untouched. Callers are expected to pass moves produced by LegalMoves or
// Validate; an origin that is empty or belongs to the wrong side is reported
// as an IllegalStateError.
func (b Board) Apply(m Move) (Board, error) {
	if !m.From.Valid() || !m.To.Valid() {
		return b, &IllegalStateError{Msg: fmt.Sprintf("move %s has off-board squares", m)}
	}
	p := b.squares[m.From]
	if p.IsEmpty() {
		return b, &IllegalStateError{Msg: fmt.Sprintf("no piece on %s", m.From)}
	}
	if p.Color != b.turn {
		return b, &IllegalStateError{Msg: fmt.Sprintf("piece on %s belongs to %s, %s to move", m.From, p.Color, b.turn)}
	}
	return b.apply(m), nil
}

// apply performs the transform without the origin checks. b is a copy, so
// the writes below never reach the caller's board.
func (b Board) apply(m Move) Board {
	mover := b.squares[m.From]
	captured := !b.squares[m.To].IsEmpty()

	b.squares[m.From] = Piece{}
	placed := mover
	if m.Promotion != NoPieceKind && mover.Kind == Pawn {
		placed.Kind = m.Promotion
	}
	b.squares[m.To] = placed

	switch m.Kind {
	case MoveEnPassant:
		victim, _ := NewSquare(m.To.File(), m.From.Rank())
		b.squares[victim] = Piece{}
		captured = true
	case MoveCastleKingside:
		rookFrom, _ := NewSquare(7, m.From.Rank())
		rookTo, _ := NewSquare(5, m.From.Rank())
		b.squares[rookTo] = b.squares[rookFrom]
		b.squares[rookFrom] = Piece{}
	case MoveCastleQueenside:
		rookFrom, _ := NewSquare(0, m.From.Rank())
		rookTo, _ := NewSquare(3, m.From.Rank())
		b.squares[rookTo] = b.squares[rookFrom]
		b.squares[rookFrom] = Piece{}
	}

	if mover.Kind == King {
		b.castling &^= kingsideRight(mover.Color) | queensideRight(mover.Color)
	}
	b.castling &^= cornerRight(m.From) | cornerRight(m.To)

	b.epSquare = NoSquare
	if m.Kind == MoveDoublePawnPush {
		b.epSquare, _ = NewSquare(m.From.File(), (m.From.Rank()+m.To.Rank())/2)
	}

	if mover.Kind == Pawn || captured {
		b.halfMoves = 0
	} else {
		b.halfMoves++
	}
	if b.turn == Black {
		b.fullMoves++
	}
	b.turn = b.turn.Other()
	return b
}

// cornerRight is the castling right lost when a piece leaves or lands on sq.
func cornerRight(sq Square) CastlingRights {
	switch sq {
	case sqA1:
		return WhiteQueenside
	case sqH1:
		return WhiteKingside
	case sqA8:
		return BlackQueenside
	case sqH8:
		return BlackKingside
	}
	return NoCastling
}

// Signature is the canonical key used for repetition detection: placement,
// side to move, castling rights, and the en passant square only when an en
// passant capture is actually available.
func (b Board) Signature() string {
	ep := "-"
	if b.epSquare != NoSquare && b.hasEnPassantCapture() {
		ep = b.epSquare.String()
	}
	return fmt.Sprintf("%s %s %s %s", b.placement(), b.turnLetter(), b.castling, ep)
}

func (b Board) hasEnPassantCapture() bool {
	for _, m := range LegalMoves(b) {
		if m.Kind == MoveEnPassant {
			return true
		}
	}
	return false
}

func (b Board) turnLetter() string {
	if b.turn == White {
		return "w"
	}
	return "b"
}

func (b Board) String() string {
	return b.FEN()
}
