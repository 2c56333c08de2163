package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdaptiveLimit(t *testing.T) {
	tests := []struct {
		name string
		load LoadSignals
		base int
		want int
	}{
		{"no pressure, not fully healthy", LoadSignals{CPUPercent: 60, MemoryPercent: 60, ErrorRate: 2}, 100, 100},
		{"healthy system grows", LoadSignals{CPUPercent: 20, MemoryPercent: 30, ErrorRate: 0.5}, 100, 120},
		{"cpu pressure", LoadSignals{CPUPercent: 85}, 100, 70},
		{"memory pressure", LoadSignals{MemoryPercent: 90}, 100, 80},
		{"error rate pressure", LoadSignals{ErrorRate: 6}, 100, 60},
		{"cpu and memory compound", LoadSignals{CPUPercent: 85, MemoryPercent: 90}, 100, 56},
		{"all three compound", LoadSignals{CPUPercent: 85, MemoryPercent: 90, ErrorRate: 6}, 100, 33},
		{"floor of one", LoadSignals{CPUPercent: 85, MemoryPercent: 90, ErrorRate: 6}, 2, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AdaptiveLimit(tt.base, tt.load))
		})
	}
}

func TestLoadSignals_Healthy(t *testing.T) {
	assert.True(t, LoadSignals{CPUPercent: 49, MemoryPercent: 69, ErrorRate: 0.9}.Healthy())
	assert.False(t, LoadSignals{CPUPercent: 50, MemoryPercent: 30, ErrorRate: 0}.Healthy())
	assert.False(t, LoadSignals{CPUPercent: 20, MemoryPercent: 70, ErrorRate: 0}.Healthy())
	assert.False(t, LoadSignals{CPUPercent: 20, MemoryPercent: 30, ErrorRate: 1}.Healthy())
}
