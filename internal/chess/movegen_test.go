package chess

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerft(t *testing.T) {
	tests := []struct {
		name  string
		fen   string
		nodes []uint64 // indexed by depth-1
	}{
		{"start", StartFEN, []uint64{20, 400, 8902}},
		{"kiwipete", "r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1", []uint64{48, 2039, 97862}},
		{"rook endgame", "8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1", []uint64{14, 191, 2812}},
		{"promotions", "r3k2r/Pppp1ppp/1b3nbN/nP6/BBP1P3/q4N2/Pp1P2PP/R2Q1RK1 w kq - 0 1", []uint64{6, 264, 9467}},
		{"discovered checks", "rnbq1k1r/pp1Pbppp/2p5/8/2B5/8/PPP1NnPP/RNBQK2R w KQ - 1 8", []uint64{44, 1486, 62379}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := ParseFEN(tt.fen)
			require.NoError(t, err)
			for i, want := range tt.nodes {
				depth := i + 1
				if depth == 3 && testing.Short() {
					continue
				}
				assert.Equal(t, want, Perft(b, depth), "depth %d", depth)
			}
		})
	}
}

func TestDivideSumsToPerft(t *testing.T) {
	b := StartingPosition()
	div := Divide(b, 2)
	require.Len(t, div, 20)

	var total uint64
	for _, n := range div {
		total += n
	}
	assert.Equal(t, uint64(400), total)
	assert.Equal(t, uint64(20), div["e2e4"])
}

func TestValidateReasons(t *testing.T) {
	e2, e4 := mustSquare(t, "e2"), mustSquare(t, "e4")

	tests := []struct {
		name   string
		fen    string
		move   Move
		reason IllegalMoveReason
	}{
		{"same square", StartFEN, Move{From: e2, To: e2}, ReasonMalformed},
		{"off board", StartFEN, Move{From: e2, To: NoSquare}, ReasonMalformed},
		{"king promotion", StartFEN, Move{From: e2, To: e4, Promotion: King}, ReasonInvalidPromotion},
		{"empty origin", StartFEN, uci(t, "e3e4"), ReasonNoPiece},
		{"opponent piece", StartFEN, uci(t, "e7e5"), ReasonWrongSide},
		{"own piece", StartFEN, uci(t, "d1d2"), ReasonOwnPiece},
		{"rook blocked", StartFEN, uci(t, "a1a3"), ReasonBlockedPath},
		{"knight shape", StartFEN, uci(t, "g1g3"), ReasonInvalidMovement},
		{"pawn triple push", StartFEN, uci(t, "e2e5"), ReasonInvalidMovement},
		{"castle through pieces", StartFEN, uci(t, "e1g1"), ReasonCastlingNotAllowed},
		{"promotion on quiet push", StartFEN, uci(t, "e2e4q"), ReasonUnexpectedPromo},
		{"pinned rook", "4r1k1/8/8/8/8/8/4R3/4K3 w - - 0 1", uci(t, "e2d2"), ReasonLeavesKingInCheck},
		{"pawn blocked", "4k3/8/8/8/8/4n3/4P3/4K3 w - - 0 1", uci(t, "e2e3"), ReasonBlockedPath},
		{"double push blocked", "4k3/8/8/8/8/4n3/4P3/4K3 w - - 0 1", uci(t, "e2e4"), ReasonBlockedPath},
		{"castle through check", "4kr2/8/8/8/8/8/8/R3K2R w KQ - 0 1", uci(t, "e1g1"), ReasonCastlingNotAllowed},
		{"castle out of check", "4k3/8/8/8/8/8/4r3/R3K2R w KQ - 0 1", uci(t, "e1c1"), ReasonCastlingNotAllowed},
		{"castle without right", "4k3/8/8/8/8/8/8/R3K2R w Q - 0 1", uci(t, "e1g1"), ReasonCastlingNotAllowed},
		{"castle onto attacked square", "4k1r1/8/8/8/8/8/8/R3K2R w KQ - 0 1", uci(t, "e1g1"), ReasonCastlingNotAllowed},
		{"promotion missing", "8/P6k/8/8/8/8/8/K7 w - - 0 1", uci(t, "a7a8"), ReasonMissingPromotion},
		{"promotion to king", "8/P6k/8/8/8/8/8/K7 w - - 0 1", uci(t, "a7a8k"), ReasonInvalidPromotion},
		{"promotion to pawn", "8/P6k/8/8/8/8/8/K7 w - - 0 1", uci(t, "a7a8p"), ReasonInvalidPromotion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := ParseFEN(tt.fen)
			require.NoError(t, err)

			_, err = Validate(b, tt.move)
			var ime *IllegalMoveError
			require.True(t, errors.As(err, &ime), "expected IllegalMoveError, got %v", err)
			assert.Equal(t, tt.reason, ime.Reason)
		})
	}
}

func TestValidateReturnsGeneratedKind(t *testing.T) {
	b, err := ParseFEN("r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1")
	require.NoError(t, err)

	m, err := Validate(b, uci(t, "e1g1"))
	require.NoError(t, err)
	assert.Equal(t, MoveCastleKingside, m.Kind)

	m, err = Validate(b, uci(t, "e1c1"))
	require.NoError(t, err)
	assert.Equal(t, MoveCastleQueenside, m.Kind)

	m, err = Validate(b, uci(t, "a1a8"))
	require.NoError(t, err)
	assert.Equal(t, MoveCapture, m.Kind)
}

func TestCastlingMovesRook(t *testing.T) {
	b, err := ParseFEN("r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1")
	require.NoError(t, err)

	m, err := Validate(b, uci(t, "e1g1"))
	require.NoError(t, err)
	after := b.apply(m)
	assert.Equal(t, "r3k2r/8/8/8/8/8/8/R4RK1 b kq - 1 1", after.FEN())

	m, err = Validate(after, uci(t, "e8c8"))
	require.NoError(t, err)
	assert.Equal(t, "2kr3r/8/8/8/8/8/8/R4RK1 w - - 2 2", after.apply(m).FEN())
}

func TestEnPassantOnlyImmediately(t *testing.T) {
	engine := NewEngine()
	for _, m := range []string{"e2e4", "a7a6", "e4e5", "d7d5"} {
		_, err := engine.MakeMoveUCI(m)
		require.NoError(t, err, m)
	}

	// Capture is available right after the double push.
	b := engine.Board()
	m, err := Validate(b, uci(t, "e5d6"))
	require.NoError(t, err)
	assert.Equal(t, MoveEnPassant, m.Kind)
	assert.Equal(t, "exd6", SAN(b, m))

	after := b.apply(m)
	p, _ := after.PieceAt(mustSquare(t, "d5"))
	assert.True(t, p.IsEmpty(), "captured pawn should be removed from d5")

	// One tempo later it is gone.
	for _, mv := range []string{"h2h3", "a6a5"} {
		_, err := engine.MakeMoveUCI(mv)
		require.NoError(t, err, mv)
	}
	_, err = engine.MakeMoveUCI("e5d6")
	assert.True(t, IsIllegalMove(err), "late en passant must be rejected, got %v", err)
}

func TestEnPassantRequiresAdjacentPawn(t *testing.T) {
	// FEN claims e3 but no white pawn sits on e4.
	b, err := ParseFEN("4k3/8/8/8/3p4/8/8/4K3 b - e3 0 1")
	require.NoError(t, err)
	for _, m := range LegalMoves(b) {
		assert.NotEqual(t, MoveEnPassant, m.Kind, m.String())
	}
}

func TestCastlingRightsLostOnRookCapture(t *testing.T) {
	b, err := ParseFEN("r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1")
	require.NoError(t, err)

	m, err := Validate(b, uci(t, "a1a8"))
	require.NoError(t, err)
	after := b.apply(m)
	assert.Equal(t, "R3k2r/8/8/8/8/8/8/4K2R b Kk - 0 1", after.FEN())
	assert.True(t, after.InCheck())
}

func TestParseMoveRejectsUnknownPromotionLetter(t *testing.T) {
	for _, s := range []string{"e7e8x", "e7e8?", "e7e8 "} {
		_, err := ParseMove(s)
		assert.Error(t, err, s)
	}
	_, err := NewMove("e7", "e8", "queen")
	assert.Error(t, err)

	m, err := NewMove("e7", "e8", "K")
	require.NoError(t, err)
	assert.Equal(t, King, m.Promotion)
}

func uci(t *testing.T, s string) Move {
	t.Helper()
	m, err := ParseMove(s)
	require.NoError(t, err, s)
	return m
}
