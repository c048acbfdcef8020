package sampler

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func TestReporter(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 123_000_000, time.UTC)

	tests := []struct {
		name     string
		level    int
		expected string
	}{
		{
			name:     "silent",
			level:    0,
			expected: "",
		},
		{
			name:     "fetches only",
			level:    1,
			expected: "2024-03-01T12:00:00.123Z gate BTC_USDT 100 101\n",
		},
		{
			name:  "fetches and failures",
			level: 2,
			expected: "2024-03-01T12:00:00.123Z gate BTC_USDT 100 101\n" +
				"2024-03-01T12:00:00.123Z bybit BTC_USDT error: boom\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			r := newReporter(&buf, tt.level)

			r.fetch(ts, "gate", "BTC_USDT", "100 101")
			r.failure(ts, "bybit", "BTC_USDT", errors.New("boom"))

			if buf.String() != tt.expected {
				t.Errorf("output = %q, expected %q", buf.String(), tt.expected)
			}
		})
	}
}

func TestBackoff(t *testing.T) {
	b := backoff{policy: RetryPolicy{InitialBackoff: 100 * time.Millisecond, MaxBackoff: 300 * time.Millisecond, BackoffFactor: 2}}

	expected := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond, 300 * time.Millisecond}
	for i, want := range expected {
		if got := b.Next(); got != want {
			t.Errorf("Next() #%d = %v, expected %v", i, got, want)
		}
	}

	b.Reset()
	if got := b.Next(); got != 100*time.Millisecond {
		t.Errorf("Next() after Reset = %v, expected 100ms", got)
	}
}
