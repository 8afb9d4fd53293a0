package chess

import (
	"fmt"
	"strconv"
	"strings"
)

// StartFEN is the standard starting position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// ParseFEN parses a FEN string. The half-move and full-move fields may be
// omitted, which makes a board signature a valid input too.
func ParseFEN(fen string) (Board, error) {
	fields := strings.Fields(fen)
	if len(fields) != 4 && len(fields) != 6 {
		return Board{}, fmt.Errorf("%w: expected 4 or 6 fields, got %d", ErrInvalidFEN, len(fields))
	}

	b := Board{epSquare: NoSquare, fullMoves: 1}

	ranks := strings.Split(fields[0], "/")
	if len(ranks) != 8 {
		return Board{}, fmt.Errorf("%w: expected 8 ranks, got %d", ErrInvalidFEN, len(ranks))
	}
	for i, row := range ranks {
		rank := 7 - i
		file := 0
		for j := 0; j < len(row); j++ {
			c := row[j]
			if c >= '1' && c <= '8' {
				file += int(c - '0')
				continue
			}
			p, ok := pieceFromFEN(c)
			if !ok {
				return Board{}, fmt.Errorf("%w: unknown piece %q", ErrInvalidFEN, c)
			}
			sq, ok := NewSquare(file, rank)
			if !ok {
				return Board{}, fmt.Errorf("%w: rank %d overflows", ErrInvalidFEN, rank+1)
			}
			b.squares[sq] = p
			file++
		}
		if file != 8 {
			return Board{}, fmt.Errorf("%w: rank %d has %d files", ErrInvalidFEN, rank+1, file)
		}
	}

	switch fields[1] {
	case "w":
		b.turn = White
	case "b":
		b.turn = Black
	default:
		return Board{}, fmt.Errorf("%w: bad side to move %q", ErrInvalidFEN, fields[1])
	}

	if fields[2] != "-" {
		for _, c := range fields[2] {
			switch c {
			case 'K':
				b.castling |= WhiteKingside
			case 'Q':
				b.castling |= WhiteQueenside
			case 'k':
				b.castling |= BlackKingside
			case 'q':
				b.castling |= BlackQueenside
			default:
				return Board{}, fmt.Errorf("%w: bad castling field %q", ErrInvalidFEN, fields[2])
			}
		}
	}

	if fields[3] != "-" {
		sq, err := ParseSquare(fields[3])
		if err != nil || (sq.Rank() != 2 && sq.Rank() != 5) {
			return Board{}, fmt.Errorf("%w: bad en passant square %q", ErrInvalidFEN, fields[3])
		}
		b.epSquare = sq
	}

	if len(fields) == 6 {
		hm, err := strconv.Atoi(fields[4])
		if err != nil || hm < 0 {
			return Board{}, fmt.Errorf("%w: bad half-move clock %q", ErrInvalidFEN, fields[4])
		}
		fm, err := strconv.Atoi(fields[5])
		if err != nil || fm < 1 {
			return Board{}, fmt.Errorf("%w: bad full-move number %q", ErrInvalidFEN, fields[5])
		}
		b.halfMoves, b.fullMoves = hm, fm
	}

	for _, c := range []Color{White, Black} {
		if n := b.countPieces(Piece{King, c}); n != 1 {
			return Board{}, fmt.Errorf("%w: %s has %d kings", ErrInvalidFEN, c, n)
		}
	}
	return b, nil
}

func (b Board) countPieces(p Piece) int {
	n := 0
	for _, q := range b.squares {
		if q == p {
			n++
		}
	}
	return n
}

// FEN renders the board in Forsyth–Edwards Notation.
func (b Board) FEN() string {
	return fmt.Sprintf("%s %s %s %s %d %d", b.placement(), b.turnLetter(), b.castling, b.epSquare, b.halfMoves, b.fullMoves)
}

func (b Board) placement() string {
	var sb strings.Builder
	for rank := 7; rank >= 0; rank-- {
		empty := 0
		for file := 0; file < 8; file++ {
			p := b.squares[rank*8+file]
			if p.IsEmpty() {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteByte(byte('0' + empty))
				empty = 0
			}
			sb.WriteByte(p.FENLetter())
		}
		if empty > 0 {
			sb.WriteByte(byte('0' + empty))
		}
		if rank > 0 {
			sb.WriteByte('/')
		}
	}
	return sb.String()
}
