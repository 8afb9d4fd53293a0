package chess

import (
	"errors"
	"testing"
	"time"
)

func TestTimeControlValidate(t *testing.T) {
	tests := []struct {
		name    string
		tc      TimeControl
		wantErr bool
	}{
		{"untimed", TimeControl{}, false},
		{"blitz", TimeControl{Initial: 180, Increment: 2}, false},
		{"minimum", TimeControl{Initial: 30}, false},
		{"maximum", TimeControl{Initial: 10800, Increment: 60}, false},
		{"too short", TimeControl{Initial: 29}, true},
		{"too long", TimeControl{Initial: 10801}, true},
		{"negative increment", TimeControl{Initial: 60, Increment: -1}, true},
		{"increment too large", TimeControl{Initial: 60, Increment: 61}, true},
		{"increment without initial", TimeControl{Increment: 5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tc.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTimeControl) {
					t.Errorf("Expected ErrInvalidTimeControl, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestTimeControlDurations(t *testing.T) {
	tc := TimeControl{Initial: 300, Increment: 3}
	if tc.InitialDuration() != 5*time.Minute {
		t.Errorf("Expected 5m, got %v", tc.InitialDuration())
	}
	if tc.IncrementDuration() != 3*time.Second {
		t.Errorf("Expected 3s, got %v", tc.IncrementDuration())
	}
	if tc.String() != "5+3" {
		t.Errorf("Expected 5+3, got %s", tc.String())
	}
	if (TimeControl{Initial: 90}).String() != "90s+0" {
		t.Errorf("Expected 90s+0, got %s", TimeControl{Initial: 90}.String())
	}
}

func TestFormatTimeRemaining(t *testing.T) {
	tests := []struct {
		remaining time.Duration
		expected  string
	}{
		{0, "Time expired"},
		{-time.Second, "Time expired"},
		{90*time.Minute + 5*time.Second, "1:30:05"},
		{3*time.Minute + 7*time.Second, "3:07"},
		{9*time.Second + 400*time.Millisecond, "0:09.4"},
	}

	for _, tt := range tests {
		if got := FormatTimeRemaining(tt.remaining); got != tt.expected {
			t.Errorf("FormatTimeRemaining(%v) = %q, expected %q", tt.remaining, got, tt.expected)
		}
	}
}
