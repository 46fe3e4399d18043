package person

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScore(t *testing.T) {
	now := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		signals Signals
		want    int
	}{
		{
			name:    "empty signals",
			signals: Signals{},
			want:    0,
		},
		{
			name:    "launches and votes",
			signals: Signals{LaunchCount: 3, TotalVotes: 250},
			want:    55,
		},
		{
			name:    "verified handles",
			signals: Signals{HasTwitter: true, HasGitHub: true, HasLinkedIn: true},
			want:    15,
		},
		{
			name:    "recent launch bonus",
			signals: Signals{LaunchCount: 1, LastLaunch: now.AddDate(0, 0, -30)},
			want:    20,
		},
		{
			name:    "stale launch gets no bonus",
			signals: Signals{LaunchCount: 1, LastLaunch: now.AddDate(-1, 0, 0)},
			want:    10,
		},
		{
			name:    "fragment count capped",
			signals: Signals{FragmentCount: 500},
			want:    20,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(tt.signals, now))
		})
	}
}
