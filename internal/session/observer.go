package session

import (
	"github.com/chessdream/chessd/internal/chess"
)

// MoveApplied describes one accepted move as seen by observers.
type MoveApplied struct {
	Player    string           `json:"player"`
	Move      chess.Move       `json:"-"`
	UCI       string           `json:"uci"`
	SAN       string           `json:"san"`
	FEN       string           `json:"fen"`
	Signature string           `json:"signature"`
	Check     bool             `json:"check"`
	Result    chess.GameResult `json:"result"`
	Status    chess.GameStatus `json:"status"`
	Clocks    ClockView        `json:"clocks"`
	Ply       int              `json:"ply"`

	// Repetitions counts occurrences of the resulting position, this one
	// included.
	Repetitions int `json:"repetitions"`
}

// Observer receives session notifications. Calls happen after the session
// mutex is released and arrive in the order the changes were made. An
// observer may call back into the session; its own notifications are
// delivered after the current one returns.
type Observer interface {
	OnMoveApplied(gameID string, ev MoveApplied)
	OnGameTerminated(gameID string, result chess.GameResult)
}

// DrawOfferObserver is implemented by observers that also want to hear about
// draw offers.
type DrawOfferObserver interface {
	OnDrawOffered(gameID string, by chess.Color)
}

type nopObserver struct{}

func (nopObserver) OnMoveApplied(string, MoveApplied)         {}
func (nopObserver) OnGameTerminated(string, chess.GameResult) {}
