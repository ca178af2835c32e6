// Package fetch provides the request coordination engine: fingerprint-keyed
// deduplication of concurrent calls, transparent payload caching, and
// policy-driven retry with capped, jittered backoff over an opaque transport.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/fetchkit/fetchkit/internal/flight"
	"github.com/fetchkit/fetchkit/pkg/cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

// Prometheus metrics for fetch operations.
var (
	fetchRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fetch_requests_total",
		Help: "Total fetch calls by endpoint and outcome",
	}, []string{"endpoint", "outcome"})

	fetchRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fetch_request_duration_seconds",
		Help:    "Fetch duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	fetchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fetch_errors_total",
		Help: "Total normalized failures by class",
	}, []string{"class"})

	fetchDedupAttachedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fetch_dedup_attached_total",
		Help: "Total callers that attached to an in-flight operation instead of starting one",
	})
)

// Manager is the coordination engine. It resolves fingerprints, consults the
// cache tiers, deduplicates concurrent callers through the in-flight
// registry, and drives the retry loop over the transport.
type Manager struct {
	transport    Transport
	store        *cache.Store
	shared       *cache.SharedStore
	flight       *flight.Group[[]byte]
	sem          *semaphore.Weighted
	interceptors chain
	cacheability cache.CacheabilityPolicy
	config       Config
	logger       zerolog.Logger
}

// Config holds the manager configuration. Everything is supplied at
// construction; there is no hidden global state.
type Config struct {
	// Transport performs the network I/O. Nil selects NewHTTPTransport with
	// RequestTimeout.
	Transport Transport

	// Redis, when set, enables the shared cache tier behind the in-memory one.
	Redis *redis.Client

	// Caching
	CacheCapacity int           // max in-memory entries
	CacheTTL      time.Duration // in-memory and shared tier TTL

	// Backoff is the default policy for calls that don't carry their own.
	Backoff BackoffPolicy

	// MaxConcurrency bounds simultaneous transport operations (0 = unlimited).
	MaxConcurrency int

	// Interceptors run on every attempt, in order.
	Interceptors []Interceptor

	// Cacheability decides which responses may be stored. A zero value
	// selects DefaultCacheabilityPolicy.
	Cacheability cache.CacheabilityPolicy

	// RequestTimeout is the default transport timeout.
	RequestTimeout time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		CacheCapacity:  cache.DefaultCapacity,
		CacheTTL:       cache.DefaultTTL,
		Backoff:        DefaultBackoffPolicy(),
		MaxConcurrency: 0,
		Cacheability:   cache.DefaultCacheabilityPolicy(),
		RequestTimeout: 30 * time.Second,
	}
}

// New creates a manager.
func New(cfg Config) (*Manager, error) {
	if cfg.CacheCapacity < 0 {
		return nil, fmt.Errorf("cache capacity must be >= 0 (got %d)", cfg.CacheCapacity)
	}
	if cfg.Backoff.MaxAttempts == 0 {
		cfg.Backoff = DefaultBackoffPolicy()
	}
	if cfg.Backoff.MaxAttempts < 1 {
		return nil, fmt.Errorf("backoff max attempts must be >= 1 (got %d)", cfg.Backoff.MaxAttempts)
	}
	if len(cfg.Cacheability.SafeMethods) == 0 {
		cfg.Cacheability = DefaultConfig().Cacheability
	}
	if cfg.Transport == nil {
		cfg.Transport = NewHTTPTransport(cfg.RequestTimeout)
	}

	logger := log.With().Str("component", "fetch-manager").Logger()

	m := &Manager{
		transport:    cfg.Transport,
		store:        cache.NewStore(cfg.CacheCapacity, cfg.CacheTTL),
		flight:       flight.NewGroup[[]byte](),
		interceptors: chain(cfg.Interceptors),
		cacheability: cfg.Cacheability,
		config:       cfg,
		logger:       logger,
	}
	if cfg.Redis != nil {
		m.shared = cache.NewSharedStore(cfg.Redis, cfg.CacheTTL)
	}
	if cfg.MaxConcurrency > 0 {
		m.sem = semaphore.NewWeighted(int64(cfg.MaxConcurrency))
	}
	return m, nil
}

// FetchOptions carries the per-call overrides.
type FetchOptions struct {
	// CacheKey overrides the derived fingerprint.
	CacheKey string

	// Backoff overrides the manager's default policy.
	Backoff *BackoffPolicy
}

// Fetch returns the payload for the request, serving it from cache when a
// live entry exists, attaching to an in-flight operation for the same
// fingerprint when one is outstanding, and otherwise driving the retry loop
// through the transport. On failure the returned error is always a normalized
// *Error; intermediate attempt failures are never surfaced.
func (m *Manager) Fetch(ctx context.Context, req *Request) ([]byte, error) {
	return m.FetchWith(ctx, req, FetchOptions{})
}

// FetchWith is Fetch with per-call overrides.
func (m *Manager) FetchWith(ctx context.Context, req *Request, opts FetchOptions) ([]byte, error) {
	endpoint := endpointLabel(req.URL)

	startTime := time.Now()
	defer func() {
		fetchRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	// Step 1: Resolve fingerprint
	key := opts.CacheKey
	if key == "" {
		key = req.Fingerprint()
	}

	// Step 2: Memory cache lookup - a hit returns without touching the
	// registry or the transport
	if payload, ok := m.store.Get(key); ok {
		m.logger.Debug().
			Str("endpoint", endpoint).
			Str("key", key).
			Msg("Cache hit")
		fetchRequestsTotal.WithLabelValues(endpoint, "cache_hit").Inc()
		return payload, nil
	}

	policy := m.config.Backoff
	if opts.Backoff != nil {
		policy = *opts.Backoff
		// An attempt cap below 1 is invalid; fall back to the manager's
		// default cap, matching the validation in New.
		if policy.MaxAttempts < 1 {
			policy.MaxAttempts = m.config.Backoff.MaxAttempts
		}
	}

	// Step 3: Coalesce with any in-flight operation for this fingerprint.
	// The first caller owns the operation; the owner's context is its
	// cancellation signal. The registry entry is removed exactly once when
	// the operation resolves, however it resolves.
	payload, attached, err := m.flight.Do(ctx, key, func(ctx context.Context) ([]byte, error) {
		return m.run(ctx, req, key, endpoint, policy)
	})
	if attached {
		fetchDedupAttachedTotal.Inc()
		m.logger.Debug().
			Str("endpoint", endpoint).
			Str("key", key).
			Msg("Attached to in-flight operation")
	}
	if err != nil {
		return nil, Normalize(err)
	}
	return payload, nil
}

// FetchJSON fetches the payload and decodes it into v. Decode failures are
// normalized to KindDecode with the offending path and expected type.
func (m *Manager) FetchJSON(ctx context.Context, req *Request, v any) error {
	payload, err := m.Fetch(ctx, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return Normalize(err)
	}
	return nil
}

// run is the owner side of one in-flight operation: shared-tier lookup, then
// the retry loop. Exactly one run is active per fingerprint.
func (m *Manager) run(ctx context.Context, req *Request, key, endpoint string, policy BackoffPolicy) ([]byte, error) {
	// Concurrency gate across fingerprints
	if m.sem != nil {
		if err := m.sem.Acquire(ctx, 1); err != nil {
			return nil, Normalize(err)
		}
		defer m.sem.Release(1)
	}

	// Shared tier lookup (owner only, so Redis sees one probe per stampede)
	if m.shared != nil {
		payload, err := m.shared.Get(ctx, key)
		if err == nil {
			m.store.Set(key, payload)
			m.logger.Debug().
				Str("endpoint", endpoint).
				Str("key", key).
				Msg("Shared cache hit, promoted to memory")
			fetchRequestsTotal.WithLabelValues(endpoint, "shared_hit").Inc()
			return payload, nil
		}
		if err != cache.ErrSharedMiss {
			m.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Shared cache get error")
		}
	}

	var lastErr *Error

	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		// Interceptors run on a fresh clone each attempt so prior mutations
		// never leak into the next one.
		sent := m.interceptors.beforeSend(req.Clone())

		resp, sendErr := m.transport.Send(ctx, sent)
		m.interceptors.afterReceive(resp, sendErr)

		var ferr *Error
		switch {
		case sendErr != nil:
			ferr = Normalize(sendErr)
		case resp.StatusCode >= 400:
			ferr = statusError(resp)
		default:
			if attempt > 0 {
				m.logger.Info().
					Str("endpoint", endpoint).
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			fetchRequestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()
			if m.cacheability.Storable(sent.Method, sent.Headers, resp.StatusCode, resp.Headers) {
				m.storePayload(ctx, key, endpoint, resp.Body)
			}
			return resp.Body, nil
		}

		fetchErrorsTotal.WithLabelValues(ferr.Class()).Inc()

		// Cancellation bypasses backoff and the retry predicate
		if ferr.Kind == KindCancelled {
			m.logger.Debug().Str("endpoint", endpoint).Msg("Operation cancelled")
			fetchRequestsTotal.WithLabelValues(endpoint, "cancelled").Inc()
			return nil, ferr
		}

		lastErr = ferr
		m.logger.Warn().
			Str("endpoint", endpoint).
			Str("class", ferr.Class()).
			Int("attempt", attempt).
			Msg("Attempt failed")

		if !policy.retry(ferr, attempt) {
			fetchRequestsTotal.WithLabelValues(endpoint, "failed").Inc()
			break
		}
		if attempt+1 >= policy.MaxAttempts {
			fetchRetryExhaustedTotal.WithLabelValues(ferr.Class()).Inc()
			fetchRequestsTotal.WithLabelValues(endpoint, "exhausted").Inc()
			m.logger.Warn().
				Str("endpoint", endpoint).
				Int("max_attempts", policy.MaxAttempts).
				Msg("Retry attempts exhausted")
			break
		}

		delay := policy.delay(attempt, ferr)
		fetchRetriesTotal.WithLabelValues(ferr.Class()).Inc()
		fetchRetryBackoffSeconds.WithLabelValues(ferr.Class()).Observe(delay.Seconds())
		m.logger.Debug().
			Str("endpoint", endpoint).
			Str("class", ferr.Class()).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("Retrying request after backoff")

		select {
		case <-ctx.Done():
			fetchRequestsTotal.WithLabelValues(endpoint, "cancelled").Inc()
			return nil, Normalize(ctx.Err())
		case <-time.After(delay):
		}
	}

	// Surface the last observed failure, not a synthetic "exhausted" one,
	// so callers retain full diagnostic context.
	return nil, lastErr
}

// storePayload writes a cacheable payload to both tiers.
func (m *Manager) storePayload(ctx context.Context, key, endpoint string, payload []byte) {
	m.store.Set(key, payload)
	if m.shared != nil {
		if err := m.shared.Set(ctx, key, payload); err != nil {
			m.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Shared cache set error")
		}
	}
	m.logger.Debug().
		Str("endpoint", endpoint).
		Str("key", key).
		Msg("Cached response payload")
}

// Invalidate removes the cached payload for a request from both tiers.
func (m *Manager) Invalidate(ctx context.Context, req *Request) {
	key := req.Fingerprint()
	m.store.Remove(key)
	if m.shared != nil {
		if err := m.shared.Delete(ctx, key); err != nil {
			m.logger.Warn().Err(err).Msg("Shared cache delete error")
		}
	}
}

// Store returns the in-memory cache tier (for maintenance and testing).
func (m *Manager) Store() *cache.Store {
	return m.store
}

// endpointLabel reduces a URL to its path for metric labels, keeping
// cardinality bounded.
func endpointLabel(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}
