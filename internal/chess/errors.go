package chess

import (
	"errors"
	"fmt"
)

// IllegalMoveReason says why a candidate move was rejected.
type IllegalMoveReason string

const (
	ReasonMalformed          IllegalMoveReason = "malformed move"
	ReasonNoPiece            IllegalMoveReason = "no piece at origin"
	ReasonWrongSide          IllegalMoveReason = "wrong side to move"
	ReasonOwnPiece           IllegalMoveReason = "destination occupied by own piece"
	ReasonBlockedPath        IllegalMoveReason = "blocked path"
	ReasonInvalidMovement    IllegalMoveReason = "piece cannot move that way"
	ReasonCastlingNotAllowed IllegalMoveReason = "castling not allowed"
	ReasonLeavesKingInCheck  IllegalMoveReason = "would leave king in check"
	ReasonMissingPromotion   IllegalMoveReason = "missing promotion piece"
	ReasonInvalidPromotion   IllegalMoveReason = "invalid promotion piece"
	ReasonUnexpectedPromo    IllegalMoveReason = "promotion not allowed for this move"
)

// IllegalMoveError is returned when a submitted move is not legal in the
// current position. The board is never modified when it is returned.
type IllegalMoveError struct {
	Move   Move
	Reason IllegalMoveReason
}

func (e *IllegalMoveError) Error() string {
	return fmt.Sprintf("illegal move %s: %s", e.Move, e.Reason)
}

// IllegalStateError signals a broken internal invariant, such as applying a
// move whose origin does not hold a piece of the side to move.
type IllegalStateError struct {
	Msg string
}

func (e *IllegalStateError) Error() string {
	return "illegal state: " + e.Msg
}

// IsIllegalMove reports whether err wraps an *IllegalMoveError.
func IsIllegalMove(err error) bool {
	var ime *IllegalMoveError
	return errors.As(err, &ime)
}

var ErrInvalidFEN = errors.New("invalid FEN")

// ErrGameOver is returned by Engine.MakeMove once the game has been decided.
var ErrGameOver = errors.New("game is over")
