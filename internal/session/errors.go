package session

import "errors"

var (
	// ErrNotYourTurn is returned when the submitting player is not bound to
	// the side to move. Strangers get it too.
	ErrNotYourTurn = errors.New("not your turn")

	// ErrGameAlreadyTerminated is returned for any action on a decided game.
	ErrGameAlreadyTerminated = errors.New("game already terminated")

	ErrNotParticipant = errors.New("not a participant in this game")
	ErrNoDrawOffer    = errors.New("no draw offer to respond to")
	ErrGameNotFound   = errors.New("game not found")

	// ErrInvalidPlayers rejects pairings with an empty or repeated player id.
	ErrInvalidPlayers = errors.New("invalid players")
)
