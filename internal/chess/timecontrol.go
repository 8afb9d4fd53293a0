package chess

import (
	"errors"
	"fmt"
	"time"
)

// Bounds accepted for timed games, in seconds.
const (
	MinInitialSeconds   = 30
	MaxInitialSeconds   = 10800
	MaxIncrementSeconds = 60
)

var ErrInvalidTimeControl = errors.New("invalid time control")

// TimeControl represents the time control settings for a game. A zero
// Initial means the game is untimed.
type TimeControl struct {
	Initial   int `json:"initial"`   // seconds per side
	Increment int `json:"increment"` // seconds credited after each move
}

// Untimed reports whether the game runs without clocks.
func (tc TimeControl) Untimed() bool {
	return tc.Initial == 0
}

// Validate enforces 30s..3h initial time and at most 60s increment.
func (tc TimeControl) Validate() error {
	if tc.Untimed() {
		if tc.Increment != 0 {
			return fmt.Errorf("%w: increment without initial time", ErrInvalidTimeControl)
		}
		return nil
	}
	if tc.Initial < MinInitialSeconds || tc.Initial > MaxInitialSeconds {
		return fmt.Errorf("%w: initial time %ds outside %d..%d", ErrInvalidTimeControl, tc.Initial, MinInitialSeconds, MaxInitialSeconds)
	}
	if tc.Increment < 0 || tc.Increment > MaxIncrementSeconds {
		return fmt.Errorf("%w: increment %ds outside 0..%d", ErrInvalidTimeControl, tc.Increment, MaxIncrementSeconds)
	}
	return nil
}

func (tc TimeControl) InitialDuration() time.Duration {
	return time.Duration(tc.Initial) * time.Second
}

func (tc TimeControl) IncrementDuration() time.Duration {
	return time.Duration(tc.Increment) * time.Second
}

func (tc TimeControl) String() string {
	if tc.Untimed() {
		return "untimed"
	}
	if tc.Initial%60 != 0 {
		return fmt.Sprintf("%ds+%d", tc.Initial, tc.Increment)
	}
	return fmt.Sprintf("%d+%d", tc.Initial/60, tc.Increment)
}

// FormatTimeRemaining formats time remaining in a human-readable way
func FormatTimeRemaining(remaining time.Duration) string {
	if remaining <= 0 {
		return "Time expired"
	}

	hours := int(remaining.Hours())
	minutes := int(remaining.Minutes()) % 60
	seconds := int(remaining.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%d:%02d", minutes, seconds)
	}
	tenths := int(remaining.Milliseconds()/100) % 10
	return fmt.Sprintf("0:%02d.%d", seconds, tenths)
}
