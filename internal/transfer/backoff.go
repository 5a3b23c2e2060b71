package transfer

import "time"

const (
	// MaxAttempts is the default attempt budget per download and its ceiling.
	MaxAttempts = 3

	// BaseBackoff is the delay before the second attempt.
	BaseBackoff = 250 * time.Millisecond

	// MaxBackoff caps the delay between attempts.
	MaxBackoff = 1500 * time.Millisecond

	// maxBackoffShift caps the exponent so the doubling stays bounded.
	maxBackoffShift = 4
)

// RetryPolicy bounds the attempt loop of a download.
type RetryPolicy struct {
	MaxAttempts uint32        // MaxAttempts is the total number of attempts, including the first
	BaseBackoff time.Duration // BaseBackoff is the delay before attempt 2
	MaxBackoff  time.Duration // MaxBackoff caps any single delay
}

// DefaultRetryPolicy returns 3 attempts with 250ms doubling backoff capped at 1.5s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: MaxAttempts,
		BaseBackoff: BaseBackoff,
		MaxBackoff:  MaxBackoff,
	}
}

// normalized fills zero fields with defaults and caps the budget at MaxAttempts.
func (p RetryPolicy) normalized() RetryPolicy {
	def := DefaultRetryPolicy()

	if p.MaxAttempts == 0 || p.MaxAttempts > MaxAttempts {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.BaseBackoff <= 0 {
		p.BaseBackoff = def.BaseBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = def.MaxBackoff
	}

	return p
}

// Delay returns how long to wait before the given 1-based attempt.
// Attempt 1 never waits, attempt 2 waits BaseBackoff, and each later attempt
// doubles it (at most 4 doublings), capped at MaxBackoff.
func (p RetryPolicy) Delay(attempt uint32) time.Duration {
	if attempt <= 1 {
		return 0
	}

	shift := min(attempt-2, maxBackoffShift)
	delay := p.BaseBackoff << shift

	// A huge base can overflow the shift; treat that as the cap.
	if delay < p.BaseBackoff || delay > p.MaxBackoff {
		return p.MaxBackoff
	}

	return delay
}

// BackoffDelay returns the default policy's delay before attempt.
func BackoffDelay(attempt uint32) time.Duration {
	return DefaultRetryPolicy().Delay(attempt)
}
