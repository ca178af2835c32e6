package fetch

import (
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for retry operations.
var (
	fetchRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fetch_retries_total",
		Help: "Total number of retry attempts by failure class",
	}, []string{"class"})

	fetchRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fetch_retry_backoff_seconds",
		Help:    "Backoff duration applied before retries by failure class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"class"})

	fetchRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fetch_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by failure class",
	}, []string{"class"})
)

// BackoffPolicy configures the retry loop. It is an immutable value, supplied
// per call or defaulted at manager construction.
//
// MaxAttempts counts total attempts including the first: attempt 0 is the
// initial try, not a retry.
type BackoffPolicy struct {
	// MaxAttempts is the total number of attempts (>= 1).
	MaxAttempts int

	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the applied delay, jitter included.
	MaxDelay time.Duration

	// Multiplier is the exponential growth factor per attempt.
	Multiplier float64

	// Jitter, when set, returns an additive random component for an attempt.
	// Nil selects the default bounded jitter (up to 20% of the raw delay).
	Jitter func(attempt int) time.Duration

	// ShouldRetry, when set, decides whether a failure at the given attempt
	// index is retried. Nil selects DefaultShouldRetry. Cancellation bypasses
	// the predicate entirely.
	ShouldRetry func(err *Error, attempt int) bool
}

// DefaultBackoffPolicy returns the default policy: 3 total attempts,
// exponential base 2 from 1s, jittered, capped at 60s.
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
	}
}

// DefaultShouldRetry retries everything except failures that cannot become
// productive on a second try: cancellation, invalid targets, authentication
// demands, decode failures, and client-error HTTP statuses. Rate limiting is
// retry-eligible.
func DefaultShouldRetry(err *Error, _ int) bool {
	switch err.Kind {
	case KindCancelled, KindInvalidTarget, KindAuthRequired, KindDecode:
		return false
	case KindHTTPStatus:
		return err.StatusCode >= 500
	default:
		return true
	}
}

// retry reports whether the failure at attempt should be retried.
func (p BackoffPolicy) retry(err *Error, attempt int) bool {
	if err.Kind == KindCancelled {
		return false
	}
	if p.ShouldRetry != nil {
		return p.ShouldRetry(err, attempt)
	}
	return DefaultShouldRetry(err, attempt)
}

// delay computes the wait before the retry that follows the given attempt:
// exponential delay plus jitter, capped at MaxDelay and clamped to >= 0.
// A server-requested Retry-After raises the raw delay when it is larger.
func (p BackoffPolicy) delay(attempt int, err *Error) time.Duration {
	d := p.InitialDelay
	multiplier := p.Multiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}
	for i := 0; i < attempt; i++ {
		d = time.Duration(float64(d) * multiplier)
		if p.MaxDelay > 0 && d > p.MaxDelay {
			d = p.MaxDelay
			break
		}
	}

	if err != nil && err.RetryAfter > d {
		d = err.RetryAfter
	}

	if p.Jitter != nil {
		d += p.Jitter(attempt)
	} else {
		d += time.Duration(rand.Float64() * 0.2 * float64(d))
	}

	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	if d < 0 {
		d = 0
	}
	return d
}
