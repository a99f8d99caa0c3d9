package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeakTracker_FlagsSustainedGrowth(t *testing.T) {
	tracker := newLeakTracker(100) // 100 objects/min threshold

	base := time.Now()
	report := tracker.record("Session", 100, 1024, base)
	assert.Nil(t, report, "single window is not enough to judge growth")

	report = tracker.record("Session", 400, 1024, base.Add(time.Minute))
	require.NotNil(t, report)
	assert.Equal(t, "Session", report.TypeName)
	assert.Equal(t, 400, report.Count)
	assert.InDelta(t, 300, report.GrowthPerMinute, 1)
}

func TestLeakTracker_IgnoresSlowGrowth(t *testing.T) {
	tracker := newLeakTracker(1000)

	base := time.Now()
	tracker.record("Widget", 10, 64, base)
	report := tracker.record("Widget", 20, 64, base.Add(time.Minute))
	assert.Nil(t, report)
}

func TestLeakSeverity(t *testing.T) {
	tests := []struct {
		name  string
		bytes int64
		want  string
	}{
		{"small", 1 << 20, "low"},
		{"medium", 16 << 20, "medium"},
		{"high", 128 << 20, "high"},
		{"critical", 512 << 20, "critical"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, leakSeverity(tt.bytes))
		})
	}
}
