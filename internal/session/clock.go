package session

import (
	"time"

	"github.com/chessdream/chessd/internal/chess"
)

// TimeSource abstracts wall time and timers so clocks can be driven by tests.
type TimeSource interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is the part of *time.Timer a session needs.
type Timer interface {
	Stop() bool
}

type systemTime struct{}

func (systemTime) Now() time.Time { return time.Now() }

func (systemTime) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemTime is the real clock.
var SystemTime TimeSource = systemTime{}

// Clock is one side's time budget. Remaining is what was left at LastUpdate;
// while that side is to move the budget drains from LastUpdate onwards.
type Clock struct {
	Remaining  time.Duration
	LastUpdate time.Time
}

// ClockView is the time-sync message: both budgets evaluated at one instant.
// The display strings are empty for untimed games.
type ClockView struct {
	WhiteMS      int64  `json:"white_time_ms"`
	BlackMS      int64  `json:"black_time_ms"`
	WhiteDisplay string `json:"white_display,omitempty"`
	BlackDisplay string `json:"black_display,omitempty"`
	Turn         string `json:"turn"`
	Running      bool   `json:"running"`
	Untimed      bool   `json:"untimed,omitempty"`
}

// Remaining returns the budget of c from the view.
func (v ClockView) Remaining(c chess.Color) time.Duration {
	if c == chess.White {
		return time.Duration(v.WhiteMS) * time.Millisecond
	}
	return time.Duration(v.BlackMS) * time.Millisecond
}

// ClockRecord is the serialized form of a Clock.
type ClockRecord struct {
	RemainingMS int64     `json:"remaining_ms"`
	LastUpdate  time.Time `json:"last_update"`
}

func (c Clock) record() ClockRecord {
	return ClockRecord{RemainingMS: c.Remaining.Milliseconds(), LastUpdate: c.LastUpdate}
}

func (r ClockRecord) clock() Clock {
	return Clock{Remaining: time.Duration(r.RemainingMS) * time.Millisecond, LastUpdate: r.LastUpdate}
}
