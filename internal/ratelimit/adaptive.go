package ratelimit

// LoadSignals is an immutable snapshot of current system load used for
// adaptive limiting.
type LoadSignals struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	ErrorRate     float64 `json:"error_rate"` // percent of failed operations
}

// Healthy reports whether all three signals are simultaneously below
// their comfortable thresholds.
func (l LoadSignals) Healthy() bool {
	return l.CPUPercent < 50 && l.MemoryPercent < 70 && l.ErrorRate < 1
}

// AdaptiveLimit applies a load-derived multiplier to a base limit.
// Pressure reductions compound multiplicatively; the limit only grows
// when every signal is healthy at once.
func AdaptiveLimit(base int, load LoadSignals) int {
	multiplier := 1.0

	if load.CPUPercent > 80 {
		multiplier *= 0.7
	}
	if load.MemoryPercent > 85 {
		multiplier *= 0.8
	}
	if load.ErrorRate > 5 {
		multiplier *= 0.6
	}

	if multiplier == 1.0 && load.Healthy() {
		multiplier = 1.2
	}

	limit := int(float64(base) * multiplier)
	if limit < 1 {
		limit = 1
	}
	return limit
}
