package scheduler

import (
	"log"
	"os"
	"testing"
	"time"
)

func TestNextRun(t *testing.T) {
	loc := time.UTC
	cases := []struct {
		name string
		now  time.Time
		hour int
		want time.Time
	}{
		{
			name: "before the mark fires today",
			now:  time.Date(2026, 8, 28, 1, 30, 0, 0, loc),
			hour: 3,
			want: time.Date(2026, 8, 28, 3, 0, 0, 0, loc),
		},
		{
			name: "after the mark fires tomorrow",
			now:  time.Date(2026, 8, 28, 4, 0, 0, 0, loc),
			hour: 3,
			want: time.Date(2026, 8, 29, 3, 0, 0, 0, loc),
		},
		{
			name: "exactly at the mark fires tomorrow",
			now:  time.Date(2026, 8, 28, 3, 0, 0, 0, loc),
			hour: 3,
			want: time.Date(2026, 8, 29, 3, 0, 0, 0, loc),
		},
		{
			name: "month rollover",
			now:  time.Date(2026, 8, 31, 23, 59, 0, 0, loc),
			hour: 3,
			want: time.Date(2026, 9, 1, 3, 0, 0, 0, loc),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := nextRun(tc.now, tc.hour)
			if !got.Equal(tc.want) {
				t.Fatalf("nextRun(%s, %d) = %s, want %s", tc.now, tc.hour, got, tc.want)
			}
		})
	}
}

func TestNewDaily_Validation(t *testing.T) {
	logger := log.New(os.Stderr, "[test] ", 0)

	if _, err := NewDaily(24, "UTC", logger, nil); err == nil {
		t.Fatalf("hour 24 must be rejected")
	}
	if _, err := NewDaily(-1, "UTC", logger, nil); err == nil {
		t.Fatalf("hour -1 must be rejected")
	}
	if _, err := NewDaily(3, "Not/AZone", logger, nil); err == nil {
		t.Fatalf("unknown time zone must be rejected")
	}
	if _, err := NewDaily(3, "UTC", logger, nil); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}
