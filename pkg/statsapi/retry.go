package statsapi

import "time"

// RetryPolicy applies uniformly to every request regardless of error type.
type RetryPolicy struct {
	// Retries is the number of extra attempts after the first failure.
	Retries int
	Delay   time.Duration
	// Timeout bounds each attempt.
	Timeout time.Duration
}

// DefaultRetryPolicy retries three times, 100ms apart, with a 5s timeout per attempt.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Retries: 3,
		Delay:   100 * time.Millisecond,
		Timeout: 5 * time.Second,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.Retries < 0 {
		p.Retries = 0
	}
	if p.Delay < 0 {
		p.Delay = 0
	}
	return p
}
