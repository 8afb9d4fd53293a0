package chess

import (
	"fmt"
)

// Engine is the rules-side record of one game: the current board, every
// board reached so far, the applied moves and their SAN, and the signature
// counts used for repetition. It is not safe for concurrent use; the owning
// session serializes access.
type Engine struct {
	initial   Board
	board     Board
	moves     []Move
	sans      []string
	boards    []Board
	positions PositionHistory
	result    GameResult
}

func NewEngine() *Engine {
	return newEngine(StartingPosition())
}

func NewEngineFromFEN(fen string) (*Engine, error) {
	b, err := ParseFEN(fen)
	if err != nil {
		return nil, fmt.Errorf("invalid FEN: %w", err)
	}
	return newEngine(b), nil
}

func newEngine(b Board) *Engine {
	e := &Engine{
		initial:   b,
		board:     b,
		boards:    []Board{b},
		positions: PositionHistory{},
	}
	e.positions.Record(b)
	e.result = TerminalStatus(b, e.positions)
	return e
}

// MakeMove validates candidate against the current position and, if legal,
// applies it. On error nothing changes.
func (e *Engine) MakeMove(candidate Move) (*MoveResult, error) {
	if !e.result.IsOngoing() || e.positions == nil {
		return nil, fmt.Errorf("%w: %s", ErrGameOver, e.result)
	}
	m, err := Validate(e.board, candidate)
	if err != nil {
		return nil, err
	}
	next, err := e.board.Apply(m)
	if err != nil {
		return nil, err
	}
	san := SAN(e.board, m)

	e.board = next
	e.moves = append(e.moves, m)
	e.sans = append(e.sans, san)
	e.boards = append(e.boards, next)
	reps := e.positions.Record(next)
	e.result = TerminalStatus(next, e.positions)
	if !e.result.IsOngoing() {
		e.positions = nil
	}

	return &MoveResult{
		From:      m.From.String(),
		To:        m.To.String(),
		UCI:       m.String(),
		SAN:       san,
		FEN:       next.FEN(),
		Check:     next.InCheck(),
		Checkmate: e.result.Kind == Checkmate,
		Draw:      e.result.Status() == StatusDraw,
		GameOver:  !e.result.IsOngoing(),
		Result:    e.result.Notation(),

		Repetitions: reps,
	}, nil
}

// MakeMoveUCI is MakeMove for coordinate notation input.
func (e *Engine) MakeMoveUCI(uci string) (*MoveResult, error) {
	m, err := ParseMove(uci)
	if err != nil {
		return nil, err
	}
	return e.MakeMove(m)
}

// Board returns the current position.
func (e *Engine) Board() Board { return e.board }

// InitialBoard returns the position the game started from.
func (e *Engine) InitialBoard() Board { return e.initial }

// LastMove returns the most recently applied move.
func (e *Engine) LastMove() (Move, bool) {
	if len(e.moves) == 0 {
		return Move{}, false
	}
	return e.moves[len(e.moves)-1], true
}

// Moves returns a copy of the applied moves.
func (e *Engine) Moves() []Move {
	return append([]Move(nil), e.moves...)
}

// SANs returns a copy of the applied moves in SAN.
func (e *Engine) SANs() []string {
	return append([]string(nil), e.sans...)
}

// BoardAt returns the board after ply half-moves; BoardAt(0) is the initial
// position.
func (e *Engine) BoardAt(ply int) (Board, bool) {
	if ply < 0 || ply >= len(e.boards) {
		return Board{}, false
	}
	return e.boards[ply], true
}

// Ply is the number of half-moves played.
func (e *Engine) Ply() int { return len(e.moves) }

// Result is the rules verdict on the current position.
func (e *Engine) Result() GameResult { return e.result }

// Finish drops the repetition table once the game has been decided outside
// the rules (resignation, timeout, agreement, abandonment).
func (e *Engine) Finish() {
	e.positions = nil
}

func (e *Engine) LegalMoves() []Move {
	if !e.result.IsOngoing() {
		return nil
	}
	return LegalMoves(e.board)
}

func (e *Engine) GetFEN() string {
	return e.board.FEN()
}

func (e *Engine) GetPGN(tags map[string]string, result GameResult) string {
	return PGN(e.initial, e.sans, result, tags)
}

func (e *Engine) GetStatus() GameStatus {
	return e.result.Status()
}

func (e *Engine) GetActiveColor() string {
	return e.board.Turn().String()
}

func (e *Engine) GetMaterialCount() MaterialCount {
	return Material(e.board)
}
