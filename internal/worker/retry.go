package worker

import "time"

// RetryPolicy задает экспоненциальную выдержку между повторными попытками.
// Zero-value fields fall back to a one second delay doubling per attempt.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// NextDelay returns how long to wait before the given attempt (1-based).
// Delays grow by BackoffFactor per attempt and clamp at MaxDelay.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	delay := r.InitialDelay
	if delay <= 0 {
		delay = time.Second
	}
	factor := r.BackoffFactor
	if factor <= 0 {
		factor = 2
	}

	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * factor)
		if r.MaxDelay > 0 && delay >= r.MaxDelay {
			return r.MaxDelay
		}
	}
	if delay <= 0 {
		return time.Second
	}
	return delay
}
