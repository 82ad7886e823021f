package discovery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var testNow = time.Date(2024, 5, 20, 15, 30, 0, 0, time.UTC)

// TestTimeWindow_Cutoff verifies the cutoff is midnight daysBack days ago
func TestTimeWindow_Cutoff(t *testing.T) {
	w := NewTimeWindow(testNow, 7)

	assert.Equal(t, time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC), w.Cutoff())
}

// TestTimeWindow_Contains verifies the inclusive boundary
func TestTimeWindow_Contains(t *testing.T) {
	w := NewTimeWindow(testNow, 7)

	tests := []struct {
		name string
		date time.Time
		want bool
	}{
		{"today", time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC), true},
		{"exactly cutoff", time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC), true},
		{"cutoff late in the day", time.Date(2024, 5, 13, 23, 59, 0, 0, time.UTC), true},
		{"one day before cutoff", time.Date(2024, 5, 12, 0, 0, 0, 0, time.UTC), false},
		{"ten days ago", time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), false},
		{"zero date", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.Contains(tt.date))
		})
	}
}

// TestTimeWindow_ZeroDays verifies a zero window admits only today
func TestTimeWindow_ZeroDays(t *testing.T) {
	w := NewTimeWindow(testNow, 0)

	assert.True(t, w.Contains(time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)))
	assert.False(t, w.Contains(time.Date(2024, 5, 19, 0, 0, 0, 0, time.UTC)))
}

// TestTimeWindow_NegativeDays verifies negative values clamp to zero
func TestTimeWindow_NegativeDays(t *testing.T) {
	w := NewTimeWindow(testNow, -3)

	assert.Equal(t, 0, w.DaysBack)
}

// TestTimeWindow_Location verifies cutoff follows the clock's location
func TestTimeWindow_Location(t *testing.T) {
	shanghai := time.FixedZone("CST", 8*3600)
	now := time.Date(2024, 5, 20, 1, 0, 0, 0, shanghai)
	w := NewTimeWindow(now, 1)

	assert.Equal(t, time.Date(2024, 5, 19, 0, 0, 0, 0, shanghai), w.Cutoff())
	// A list date parsed without a zone is compared by calendar date.
	assert.True(t, w.Contains(time.Date(2024, 5, 19, 0, 0, 0, 0, time.UTC)))
}
