package chess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFENRoundTrip(t *testing.T) {
	fens := []string{
		StartFEN,
		"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
		"rnbqkbnr/ppp1pppp/8/3pP3/8/8/PPPP1PPP/RNBQKBNR w KQkq d6 0 3",
		"8/8/8/4k3/8/3K4/8/8 b - - 57 112",
	}
	for _, fen := range fens {
		b, err := ParseFEN(fen)
		require.NoError(t, err, fen)
		assert.Equal(t, fen, b.FEN())
	}
}

func TestParseFENShortForm(t *testing.T) {
	b, err := ParseFEN("4k3/8/8/8/8/8/8/4K3 w - -")
	require.NoError(t, err)
	assert.Equal(t, 0, b.HalfMoveClock())
	assert.Equal(t, 1, b.FullMoveNumber())
}

func TestBoardAccessors(t *testing.T) {
	b := StartingPosition()

	assert.Equal(t, White, b.Turn())
	assert.Equal(t, AllCastling, b.CastlingRights())
	_, ok := b.EnPassant()
	assert.False(t, ok)
	assert.Equal(t, "e1", b.KingSquare(White).String())
	assert.Equal(t, "e8", b.KingSquare(Black).String())

	p, ok := b.PieceAt(mustSquare(t, "d8"))
	require.True(t, ok)
	assert.Equal(t, Piece{Queen, Black}, p)

	_, ok = b.PieceAt(mustSquare(t, "d4"))
	assert.False(t, ok)
}

func TestApplyTracksClocksAndEnPassant(t *testing.T) {
	b := StartingPosition()

	b, err := b.Apply(mustMove(t, b, "g1f3"))
	require.NoError(t, err)
	assert.Equal(t, 1, b.HalfMoveClock())
	assert.Equal(t, 1, b.FullMoveNumber())

	b, err = b.Apply(mustMove(t, b, "e7e5"))
	require.NoError(t, err)
	assert.Equal(t, 0, b.HalfMoveClock())
	assert.Equal(t, 2, b.FullMoveNumber())
	ep, ok := b.EnPassant()
	require.True(t, ok)
	assert.Equal(t, "e6", ep.String())

	b, err = b.Apply(mustMove(t, b, "b1c3"))
	require.NoError(t, err)
	_, ok = b.EnPassant()
	assert.False(t, ok)
}

func TestKingMoveDropsBothRights(t *testing.T) {
	b, err := ParseFEN("r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1")
	require.NoError(t, err)

	b, err = b.Apply(mustMove(t, b, "e1e2"))
	require.NoError(t, err)
	assert.Equal(t, BlackKingside|BlackQueenside, b.CastlingRights())

	b, err = b.Apply(mustMove(t, b, "h8h7"))
	require.NoError(t, err)
	assert.Equal(t, BlackQueenside, b.CastlingRights())
}

func TestSquareParsing(t *testing.T) {
	sq, err := ParseSquare("e4")
	require.NoError(t, err)
	assert.Equal(t, 4, sq.File())
	assert.Equal(t, 3, sq.Rank())
	assert.Equal(t, "e4", sq.String())
	assert.True(t, mustSquare(t, "h1").Light())
	assert.False(t, mustSquare(t, "a1").Light())

	for _, bad := range []string{"", "e", "i1", "a9", "e44"} {
		_, err := ParseSquare(bad)
		assert.Error(t, err, bad)
	}
	assert.Equal(t, "-", NoSquare.String())
}

func mustMove(t *testing.T, b Board, s string) Move {
	t.Helper()
	m, err := Validate(b, uci(t, s))
	require.NoError(t, err, s)
	return m
}
