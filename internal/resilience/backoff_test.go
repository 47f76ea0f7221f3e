package resilience

import (
	"testing"
	"time"
)

func TestDelay(t *testing.T) {
	tests := []struct {
		initial time.Duration
		attempt int
		want    time.Duration
	}{
		{1 * time.Second, 1, 1 * time.Second},
		{1 * time.Second, 2, 2 * time.Second},
		{1 * time.Second, 3, 4 * time.Second},
		{1 * time.Second, 4, 8 * time.Second},
		{2 * time.Second, 1, 2 * time.Second},
		{2 * time.Second, 3, 8 * time.Second},
		{500 * time.Millisecond, 2, 1 * time.Second},
		{1 * time.Second, 0, 1 * time.Second}, // clamped to attempt 1
	}

	for _, tt := range tests {
		if got := Delay(tt.initial, tt.attempt); got != tt.want {
			t.Errorf("Delay(%v, %d) = %v, want %v", tt.initial, tt.attempt, got, tt.want)
		}
	}
}
