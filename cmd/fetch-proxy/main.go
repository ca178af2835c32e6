package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/fetchkit/fetchkit/pkg/fetch"
	"github.com/fetchkit/fetchkit/pkg/logging"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Configuration from environment
	port := getEnv("PORT", "8080")
	redisURL := getEnv("REDIS_URL", "")
	capacity, _ := strconv.Atoi(getEnv("CACHE_CAPACITY", "512"))
	ttl, _ := time.ParseDuration(getEnv("CACHE_TTL", "5m"))
	logLevel := getEnv("LOG_LEVEL", "info")

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(logLevel),
		Output: os.Stderr,
	})
	logger = logger.With().Str("component", "fetch-proxy").Logger()

	cfg := fetch.DefaultConfig()
	cfg.CacheCapacity = capacity
	cfg.CacheTTL = ttl

	// Optional shared cache tier
	if redisURL != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr: redisURL,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Fatal().Err(err).Str("addr", redisURL).Msg("Failed to connect to Redis")
		}
		cfg.Redis = redisClient
		logger.Info().Str("addr", redisURL).Msg("Shared cache tier enabled")
	}

	manager, err := fetch.New(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create fetch manager")
	}

	// Periodic expiry sweep; the request path only does amortized cleanup
	go func() {
		ticker := time.NewTicker(ttl)
		defer ticker.Stop()
		for range ticker.C {
			if removed := manager.Store().SweepExpired(); removed > 0 {
				logger.Debug().Int("removed", removed).Msg("Swept expired cache entries")
			}
		}
	}()

	http.HandleFunc("/health", healthHandler)
	http.HandleFunc("/fetch", fetchHandler(manager))
	http.Handle("/metrics", promhttp.Handler())

	addr := ":" + port
	logger.Info().Str("addr", addr).Msg("Starting fetch proxy")

	if err := http.ListenAndServe(addr, nil); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// fetchHandler proxies GET /fetch?url=<target> through the manager, so
// repeated and concurrent requests for the same target share one upstream
// call and a cached payload.
func fetchHandler(manager *fetch.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target := r.URL.Query().Get("url")
		if target == "" {
			http.Error(w, "missing url parameter", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		payload, err := manager.Fetch(ctx, &fetch.Request{
			Method: http.MethodGet,
			URL:    target,
		})
		if err != nil {
			ferr := fetch.Normalize(err)
			if ferr.StatusCode > 0 {
				w.WriteHeader(ferr.StatusCode)
				w.Write(ferr.Body)
				return
			}
			http.Error(w, fmt.Sprintf("fetch failed: %v", err), http.StatusBadGateway)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(payload)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
