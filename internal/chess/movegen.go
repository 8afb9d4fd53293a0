package chess

var promotionKinds = []PieceKind{Queen, Rook, Bishop, Knight}

// LegalMoves returns every legal move for the side to move. The order is
// deterministic: origin squares a1..h8, and for each piece a fixed sequence of
// move shapes.
func LegalMoves(b Board) []Move {
	pseudo := pseudoLegalMoves(b)
	legal := pseudo[:0]
	for _, m := range pseudo {
		if !leavesKingInCheck(b, m) {
			legal = append(legal, m)
		}
	}
	return legal
}

func leavesKingInCheck(b Board, m Move) bool {
	return IsInCheck(b.apply(m), b.turn)
}

func pseudoLegalMoves(b Board) []Move {
	moves := make([]Move, 0, 48)
	for sq := Square(0); sq < 64; sq++ {
		p := b.squares[sq]
		if p.IsEmpty() || p.Color != b.turn {
			continue
		}
		switch p.Kind {
		case Pawn:
			moves = genPawn(b, sq, moves)
		case Knight:
			moves = genSteps(b, sq, knightOffsets, moves)
		case Bishop:
			moves = genSlides(b, sq, bishopDirs, moves)
		case Rook:
			moves = genSlides(b, sq, rookDirs, moves)
		case Queen:
			moves = genSlides(b, sq, rookDirs, moves)
			moves = genSlides(b, sq, bishopDirs, moves)
		case King:
			moves = genSteps(b, sq, kingOffsets, moves)
			moves = genCastles(b, sq, moves)
		}
	}
	return moves
}

func appendPawnMove(moves []Move, from, to Square, kind MoveKind, promote bool) []Move {
	if !promote {
		return append(moves, Move{From: from, To: to, Kind: kind})
	}
	for _, k := range promotionKinds {
		moves = append(moves, Move{From: from, To: to, Kind: kind, Promotion: k})
	}
	return moves
}

func genPawn(b Board, from Square, moves []Move) []Move {
	c := b.turn
	dir := pawnDir(c)
	startRank, lastRank := 1, 7
	if c == Black {
		startRank, lastRank = 6, 0
	}

	if one, ok := from.Offset(0, dir); ok && b.squares[one].IsEmpty() {
		moves = appendPawnMove(moves, from, one, MoveNormal, one.Rank() == lastRank)
		if from.Rank() == startRank {
			if two, ok := one.Offset(0, dir); ok && b.squares[two].IsEmpty() {
				moves = append(moves, Move{From: from, To: two, Kind: MoveDoublePawnPush})
			}
		}
	}

	for _, df := range []int{-1, 1} {
		to, ok := from.Offset(df, dir)
		if !ok {
			continue
		}
		target := b.squares[to]
		switch {
		case !target.IsEmpty() && target.Color != c:
			moves = appendPawnMove(moves, from, to, MoveCapture, to.Rank() == lastRank)
		case target.IsEmpty() && to == b.epSquare && b.enPassantVictim(to):
			moves = append(moves, Move{From: from, To: to, Kind: MoveEnPassant})
		}
	}
	return moves
}

// enPassantVictim checks that the pawn which just double-pushed past ep is
// still standing next to it.
func (b Board) enPassantVictim(ep Square) bool {
	victim, ok := ep.Offset(0, -pawnDir(b.turn))
	return ok && b.squares[victim] == Piece{Pawn, b.turn.Other()}
}

func genSteps(b Board, from Square, offsets []offset, moves []Move) []Move {
	for _, o := range offsets {
		to, ok := from.Offset(o.df, o.dr)
		if !ok {
			continue
		}
		target := b.squares[to]
		switch {
		case target.IsEmpty():
			moves = append(moves, Move{From: from, To: to, Kind: MoveNormal})
		case target.Color != b.turn:
			moves = append(moves, Move{From: from, To: to, Kind: MoveCapture})
		}
	}
	return moves
}

func genSlides(b Board, from Square, dirs []offset, moves []Move) []Move {
	for _, d := range dirs {
		cur := from
		for {
			to, ok := cur.Offset(d.df, d.dr)
			if !ok {
				break
			}
			target := b.squares[to]
			if target.IsEmpty() {
				moves = append(moves, Move{From: from, To: to, Kind: MoveNormal})
				cur = to
				continue
			}
			if target.Color != b.turn {
				moves = append(moves, Move{From: from, To: to, Kind: MoveCapture})
			}
			break
		}
	}
	return moves
}

func genCastles(b Board, from Square, moves []Move) []Move {
	if m, ok := castleMove(b, from, true); ok {
		moves = append(moves, m)
	}
	if m, ok := castleMove(b, from, false); ok {
		moves = append(moves, m)
	}
	return moves
}

// castleMove checks every castling precondition: the right flag, king and
// rook on their home squares, empty squares between them, and a king that is
// not in check and neither crosses nor lands on an attacked square.
func castleMove(b Board, from Square, kingside bool) (Move, bool) {
	c := b.turn
	home := sqE1
	if c == Black {
		home = sqE8
	}
	if from != home {
		return Move{}, false
	}

	right, rookFile, kind := queensideRight(c), 0, MoveCastleQueenside
	between := []int{1, 2, 3}
	crossing := []int{3, 2}
	if kingside {
		right, rookFile, kind = kingsideRight(c), 7, MoveCastleKingside
		between = []int{5, 6}
		crossing = []int{5, 6}
	}
	if !b.castling.Has(right) {
		return Move{}, false
	}

	rank := home.Rank()
	rookSq, _ := NewSquare(rookFile, rank)
	if b.squares[rookSq] != (Piece{Rook, c}) {
		return Move{}, false
	}
	for _, f := range between {
		sq, _ := NewSquare(f, rank)
		if !b.squares[sq].IsEmpty() {
			return Move{}, false
		}
	}
	enemy := c.Other()
	if IsSquareAttacked(b, from, enemy) {
		return Move{}, false
	}
	for _, f := range crossing {
		sq, _ := NewSquare(f, rank)
		if IsSquareAttacked(b, sq, enemy) {
			return Move{}, false
		}
	}
	to, _ := NewSquare(crossing[1], rank)
	return Move{From: from, To: to, Kind: kind}, true
}
