package passcode

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddMonthsClamped(t *testing.T) {
	tests := []struct {
		name   string
		start  string
		months int
		want   string
	}{
		{"plain month", "2024-03-15", 1, "2024-04-15"},
		{"jan 31 into leap february clamps to 29", "2024-01-31", 1, "2024-02-29"},
		{"jan 31 into plain february clamps to 28", "2023-01-31", 1, "2023-02-28"},
		{"mar 31 clamps to apr 30", "2024-03-31", 1, "2024-04-30"},
		{"full year keeps the day", "2024-05-10", 12, "2025-05-10"},
		{"year rollover", "2024-11-15", 3, "2025-02-15"},
		{"leap day plus a year clamps", "2024-02-29", 12, "2025-02-28"},
		{"zero months", "2024-06-01", 0, "2024-06-01"},
		{"six months", "2024-08-31", 6, "2025-02-28"},
		{"negative month", "2024-03-31", -1, "2024-02-29"},
		{"negative across year boundary", "2024-01-15", -2, "2023-11-15"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, err := ParseDate(tt.start)
			require.NoError(t, err)

			got := AddMonthsClamped(start, tt.months)
			assert.Equal(t, tt.want, got.Format(DateLayout))
		})
	}
}

func TestAddMonthsClampedTruncatesToMidnightUTC(t *testing.T) {
	start := time.Date(2024, 1, 31, 17, 45, 12, 0, time.UTC)
	got := AddMonthsClamped(start, 1)

	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), got)
}

func TestParseDateRejectsGarbage(t *testing.T) {
	_, err := ParseDate("not-a-date")
	assert.Error(t, err)
}
