package chess

// Validate accepts candidate iff it matches one of LegalMoves(b) on origin,
// destination, and promotion piece. The returned move is the generated one,
// so its Kind is authoritative. Rejections carry a reason describing the
// first rule the candidate broke.
func Validate(b Board, candidate Move) (Move, error) {
	reject := func(r IllegalMoveReason) (Move, error) {
		return Move{}, &IllegalMoveError{Move: candidate, Reason: r}
	}

	if !candidate.From.Valid() || !candidate.To.Valid() || candidate.From == candidate.To {
		return reject(ReasonMalformed)
	}
	switch candidate.Promotion {
	case NoPieceKind, Knight, Bishop, Rook, Queen:
	default:
		return reject(ReasonInvalidPromotion)
	}

	p := b.squares[candidate.From]
	if p.IsEmpty() {
		return reject(ReasonNoPiece)
	}
	if p.Color != b.turn {
		return reject(ReasonWrongSide)
	}

	legal := LegalMoves(b)
	sameSquares := false
	for _, m := range legal {
		if m.Matches(candidate) {
			return m, nil
		}
		if m.From == candidate.From && m.To == candidate.To {
			sameSquares = true
		}
	}
	if sameSquares {
		if candidate.Promotion == NoPieceKind {
			return reject(ReasonMissingPromotion)
		}
		return reject(ReasonUnexpectedPromo)
	}

	for _, m := range pseudoLegalMoves(b) {
		if m.From == candidate.From && m.To == candidate.To {
			return reject(ReasonLeavesKingInCheck)
		}
	}
	return reject(diagnose(b, p, candidate))
}

// diagnose explains why a move that is not even pseudo-legal was rejected.
func diagnose(b Board, p Piece, m Move) IllegalMoveReason {
	df := m.To.File() - m.From.File()
	dr := m.To.Rank() - m.From.Rank()

	if p.Kind == King && dr == 0 && (df == 2 || df == -2) {
		return ReasonCastlingNotAllowed
	}
	if target := b.squares[m.To]; !target.IsEmpty() && target.Color == p.Color {
		return ReasonOwnPiece
	}

	var stepF, stepR int
	switch p.Kind {
	case Pawn:
		dir := pawnDir(p.Color)
		if df == 0 && dr == 2*dir {
			mid, _ := m.From.Offset(0, dir)
			if !b.squares[mid].IsEmpty() || !b.squares[m.To].IsEmpty() {
				return ReasonBlockedPath
			}
		}
		if df == 0 && dr == dir && !b.squares[m.To].IsEmpty() {
			return ReasonBlockedPath
		}
		return ReasonInvalidMovement
	case Rook:
		if df != 0 && dr != 0 {
			return ReasonInvalidMovement
		}
	case Bishop:
		if abs(df) != abs(dr) {
			return ReasonInvalidMovement
		}
	case Queen:
		if df != 0 && dr != 0 && abs(df) != abs(dr) {
			return ReasonInvalidMovement
		}
	default:
		return ReasonInvalidMovement
	}
	stepF, stepR = sign(df), sign(dr)
	for cur, _ := m.From.Offset(stepF, stepR); cur != m.To; cur, _ = cur.Offset(stepF, stepR) {
		if !b.squares[cur].IsEmpty() {
			return ReasonBlockedPath
		}
	}
	return ReasonInvalidMovement
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func sign(x int) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}
