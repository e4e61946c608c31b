package model

import (
	"testing"
	"time"
)

func TestDropAlert_OnCooldown(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	past := func(d time.Duration) *time.Time {
		ts := now.Add(-d)
		return &ts
	}

	tests := []struct {
		name   string
		alert  DropAlert
		window time.Duration
		want   bool
	}{
		{
			name:   "発火履歴なしはクールダウン外",
			alert:  DropAlert{LastTriggeredAt: nil},
			window: time.Hour,
			want:   false,
		},
		{
			name:   "ウィンドウ内はクールダウン中",
			alert:  DropAlert{LastTriggeredAt: past(10 * time.Minute)},
			window: time.Hour,
			want:   true,
		},
		{
			name:   "ウィンドウ経過後はクールダウン外",
			alert:  DropAlert{LastTriggeredAt: past(2 * time.Hour)},
			window: time.Hour,
			want:   false,
		},
		{
			name:   "ウィンドウちょうどはクールダウン外",
			alert:  DropAlert{LastTriggeredAt: past(time.Hour)},
			window: time.Hour,
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.alert.OnCooldown(now, tt.window); got != tt.want {
				t.Errorf("OnCooldown() = %v, want %v", got, tt.want)
			}
		})
	}
}
