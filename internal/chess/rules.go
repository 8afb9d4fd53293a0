package chess

import (
	"encoding/json"
	"fmt"
)

// ResultKind classifies how a game stands or ended.
type ResultKind uint8

const (
	Ongoing ResultKind = iota
	Checkmate
	Stalemate
	Draw
	Resigned
	Timeout
	Abandoned
)

var resultKindNames = [...]string{"ongoing", "checkmate", "stalemate", "draw", "resigned", "timeout", "abandoned"}

func (k ResultKind) String() string {
	if int(k) < len(resultKindNames) {
		return resultKindNames[k]
	}
	return "unknown"
}

// DrawReason qualifies a Draw result.
type DrawReason string

const (
	DrawNone                 DrawReason = ""
	DrawRepetition           DrawReason = "repetition"
	DrawFiftyMove            DrawReason = "fifty-move"
	DrawInsufficientMaterial DrawReason = "insufficient-material"
	DrawAgreement            DrawReason = "agreement"
)

// GameResult is the outcome of a game. Winner is meaningful only for
// Checkmate, Resigned and Timeout.
type GameResult struct {
	Kind   ResultKind
	Winner Color
	Reason DrawReason
}

var OngoingResult = GameResult{Kind: Ongoing}

func CheckmateResult(winner Color) GameResult { return GameResult{Kind: Checkmate, Winner: winner} }

func ResignedResult(winner Color) GameResult { return GameResult{Kind: Resigned, Winner: winner} }

func TimeoutResult(winner Color) GameResult { return GameResult{Kind: Timeout, Winner: winner} }

func DrawResult(reason DrawReason) GameResult { return GameResult{Kind: Draw, Reason: reason} }

func (r GameResult) IsOngoing() bool { return r.Kind == Ongoing }

// HasWinner reports whether the result names a winning side.
func (r GameResult) HasWinner() bool {
	return r.Kind == Checkmate || r.Kind == Resigned || r.Kind == Timeout
}

// Status maps the result onto the transport-facing status.
func (r GameResult) Status() GameStatus {
	switch {
	case r.Kind == Ongoing:
		return StatusActive
	case r.Kind == Abandoned:
		return StatusAbandoned
	case r.HasWinner() && r.Winner == White:
		return StatusWhiteWon
	case r.HasWinner():
		return StatusBlackWon
	default:
		return StatusDraw
	}
}

// Notation is the PGN result token.
func (r GameResult) Notation() string {
	switch r.Status() {
	case StatusWhiteWon:
		return "1-0"
	case StatusBlackWon:
		return "0-1"
	case StatusDraw:
		return "1/2-1/2"
	}
	return "*"
}

func (r GameResult) String() string {
	switch {
	case r.HasWinner():
		return fmt.Sprintf("%s (%s wins)", r.Kind, r.Winner)
	case r.Kind == Draw:
		return fmt.Sprintf("draw (%s)", r.Reason)
	}
	return r.Kind.String()
}

type resultJSON struct {
	Kind   string     `json:"kind"`
	Winner string     `json:"winner,omitempty"`
	Reason DrawReason `json:"reason,omitempty"`
}

func (r GameResult) MarshalJSON() ([]byte, error) {
	out := resultJSON{Kind: r.Kind.String(), Reason: r.Reason}
	if r.HasWinner() {
		out.Winner = r.Winner.String()
	}
	return json.Marshal(out)
}

func (r *GameResult) UnmarshalJSON(data []byte) error {
	var in resultJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	kind := -1
	for i, name := range resultKindNames {
		if name == in.Kind {
			kind = i
		}
	}
	if kind < 0 {
		return fmt.Errorf("unknown result kind %q", in.Kind)
	}
	res := GameResult{Kind: ResultKind(kind), Reason: in.Reason}
	if res.HasWinner() {
		w, ok := ParseColor(in.Winner)
		if !ok {
			return fmt.Errorf("result %q needs a winner, got %q", in.Kind, in.Winner)
		}
		res.Winner = w
	}
	*r = res
	return nil
}

// PositionHistory counts how often each board signature has occurred.
type PositionHistory map[string]int

// Record adds one occurrence of b and returns the new count.
func (h PositionHistory) Record(b Board) int {
	sig := b.Signature()
	h[sig]++
	return h[sig]
}

// Count returns how often b's signature has been recorded.
func (h PositionHistory) Count(b Board) int {
	return h[b.Signature()]
}

// TerminalStatus evaluates b. Positions without legal moves are decided
// first (checkmate or stalemate); then threefold repetition, the fifty-move
// rule and insufficient material each yield a draw. history may be nil.
func TerminalStatus(b Board, history PositionHistory) GameResult {
	if len(LegalMoves(b)) == 0 {
		if b.InCheck() {
			return CheckmateResult(b.turn.Other())
		}
		return GameResult{Kind: Stalemate}
	}
	if history != nil && history.Count(b) >= 3 {
		return DrawResult(DrawRepetition)
	}
	if b.halfMoves >= 100 {
		return DrawResult(DrawFiftyMove)
	}
	if InsufficientMaterial(b) {
		return DrawResult(DrawInsufficientMaterial)
	}
	return OngoingResult
}

// InsufficientMaterial reports positions where no sequence of legal moves can
// produce checkmate: bare kings, a single minor piece, or any number of
// bishops that all stand on squares of one color (which includes king and
// bishop against king and bishop on the same color).
func InsufficientMaterial(b Board) bool {
	knights := 0
	var light, dark int
	for sq := Square(0); sq < 64; sq++ {
		p := b.squares[sq]
		switch p.Kind {
		case Pawn, Rook, Queen:
			return false
		case Knight:
			knights++
		case Bishop:
			if sq.Light() {
				light++
			} else {
				dark++
			}
		}
	}
	bishops := light + dark
	switch {
	case knights == 0 && bishops == 0:
		return true
	case knights+bishops == 1:
		return true
	case knights == 0 && (light == 0 || dark == 0):
		return true
	}
	return false
}
