package chess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrawDetection(t *testing.T) {
	tests := []struct {
		name string
		fen  string
		want GameResult
	}{
		{
			name: "Stalemate position",
			fen:  "7k/5Q2/6K1/8/8/8/8/8 b - - 0 1",
			want: GameResult{Kind: Stalemate},
		},
		{
			name: "Insufficient material - King vs King",
			fen:  "8/8/8/4k3/8/3K4/8/8 w - - 0 1",
			want: DrawResult(DrawInsufficientMaterial),
		},
		{
			name: "Insufficient material - King and Bishop vs King",
			fen:  "8/8/8/4k3/8/3KB3/8/8 w - - 0 1",
			want: DrawResult(DrawInsufficientMaterial),
		},
		{
			name: "Insufficient material - King and Knight vs King",
			fen:  "8/8/8/4k3/8/3KN3/8/8 w - - 0 1",
			want: DrawResult(DrawInsufficientMaterial),
		},
		{
			name: "Insufficient material - same colored bishops",
			fen:  "5b2/8/8/4k3/8/3K4/8/2B5 w - - 0 1",
			want: DrawResult(DrawInsufficientMaterial),
		},
		{
			name: "Opposite colored bishops can still mate",
			fen:  "2b5/8/8/4k3/8/3K4/8/2B5 w - - 0 1",
			want: OngoingResult,
		},
		{
			name: "Two knights are not automatically drawn",
			fen:  "8/8/8/4k3/8/3K4/8/1N4N1 w - - 0 1",
			want: OngoingResult,
		},
		{
			name: "A single pawn keeps the game alive",
			fen:  "8/8/8/4k3/8/3K4/4P3/8 w - - 0 1",
			want: OngoingResult,
		},
		{
			name: "Fifty-move rule from the half-move clock",
			fen:  "8/8/8/3k4/8/3K4/8/R6R w - - 100 80",
			want: DrawResult(DrawFiftyMove),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := ParseFEN(tt.fen)
			require.NoError(t, err)
			assert.Equal(t, tt.want, TerminalStatus(b, nil))
		})
	}
}

func TestCheckmateTakesPrecedenceOverFiftyMoveRule(t *testing.T) {
	// Back-rank mate delivered with the half-move clock already past 100.
	b, err := ParseFEN("R5k1/5ppp/8/8/8/8/8/6K1 b - - 120 90")
	require.NoError(t, err)
	assert.Equal(t, CheckmateResult(White), TerminalStatus(b, nil))
}

func TestFoolsMate(t *testing.T) {
	engine := NewEngine()
	var last *MoveResult
	for _, uci := range []string{"f2f3", "e7e5", "g2g4", "d8h4"} {
		var err error
		last, err = engine.MakeMoveUCI(uci)
		require.NoError(t, err, uci)
	}

	assert.Equal(t, CheckmateResult(Black), TerminalStatus(engine.Board(), nil))
	assert.Equal(t, CheckmateResult(Black), engine.Result())
	assert.Equal(t, StatusBlackWon, engine.GetStatus())
	assert.True(t, last.Checkmate)
	assert.True(t, last.GameOver)
	assert.Equal(t, "Qh4#", last.SAN)
	assert.Equal(t, "0-1", last.Result)

	_, err := engine.MakeMoveUCI("e1f2")
	assert.ErrorIs(t, err, ErrGameOver)
}

func TestThreefoldRepetition(t *testing.T) {
	engine := NewEngine()

	// Knights moving back and forth; the start position recurs after plies 4 and 8.
	moves := []string{
		"g1f3", "g8f6", "f3g1", "f6g8",
		"g1f3", "g8f6", "f3g1", "f6g8",
	}

	var reps []int
	for i, uci := range moves {
		res, err := engine.MakeMoveUCI(uci)
		require.NoError(t, err, uci)
		if i < len(moves)-1 {
			require.False(t, res.GameOver, "game ended early at ply %d", i+1)
		}
		reps = append(reps, res.Repetitions)
	}
	assert.Equal(t, []int{1, 1, 1, 2, 2, 2, 2, 3}, reps)

	assert.Equal(t, DrawResult(DrawRepetition), engine.Result())
	assert.Equal(t, StatusDraw, engine.GetStatus())
	assert.Equal(t, "1/2-1/2", engine.Result().Notation())
}

func TestRepetitionIgnoresUnusableEnPassantSquare(t *testing.T) {
	after, err := ParseFEN("rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1")
	require.NoError(t, err)
	without, err := ParseFEN("rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1")
	require.NoError(t, err)
	assert.Equal(t, without.Signature(), after.Signature())

	usable, err := ParseFEN("rnbqkbnr/ppp1pppp/8/8/3pP3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 3")
	require.NoError(t, err)
	assert.Contains(t, usable.Signature(), " e3")
}

func TestFiftyMoveRuleAfterHundredQuietPlies(t *testing.T) {
	b, err := ParseFEN("r3k2r/8/8/8/8/8/8/R3K2R w - - 0 1")
	require.NoError(t, err)

	history := PositionHistory{}
	history.Record(b)
	seen := map[string]bool{b.Signature(): true}

	for ply := 1; ply <= 100; ply++ {
		var next Board
		found := false
		for _, m := range LegalMoves(b) {
			if m.IsCapture() {
				continue
			}
			n := b.apply(m)
			if seen[n.Signature()] || n.InCheck() || len(LegalMoves(n)) == 0 {
				continue
			}
			next, found = n, true
			break
		}
		require.True(t, found, "no fresh quiet move at ply %d", ply)

		b = next
		seen[b.Signature()] = true
		history.Record(b)

		status := TerminalStatus(b, history)
		if ply < 100 {
			require.True(t, status.IsOngoing(), "ply %d: %s", ply, status)
		} else {
			assert.Equal(t, DrawResult(DrawFiftyMove), status)
		}
	}
	assert.Equal(t, 100, b.HalfMoveClock())
}

func TestGameResultStatusMapping(t *testing.T) {
	tests := []struct {
		result   GameResult
		status   GameStatus
		notation string
	}{
		{OngoingResult, StatusActive, "*"},
		{CheckmateResult(White), StatusWhiteWon, "1-0"},
		{ResignedResult(Black), StatusBlackWon, "0-1"},
		{TimeoutResult(White), StatusWhiteWon, "1-0"},
		{GameResult{Kind: Stalemate}, StatusDraw, "1/2-1/2"},
		{DrawResult(DrawAgreement), StatusDraw, "1/2-1/2"},
		{GameResult{Kind: Abandoned}, StatusAbandoned, "*"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.status, tt.result.Status(), tt.result.String())
		assert.Equal(t, tt.notation, tt.result.Notation(), tt.result.String())
	}
}
