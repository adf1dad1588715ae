package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	idempotencyHeader   = "Idempotency-Key"
	idempotencyLockTTL  = 30 * time.Second
	idempotencyCacheTTL = 24 * time.Hour
)

type cachedResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// responseRecorder buffers the downstream handler's output so a successful
// response can be replayed for a retried key.
type responseRecorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// Idempotency deduplicates mutating requests carrying an Idempotency-Key
// header. The first request takes a short Redis lock, runs, and caches its
// response; a concurrent duplicate is rejected and a later retry replays the
// cached response without re-executing the handler.
func Idempotency(redisClient *redis.Client) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(idempotencyHeader)
			if key == "" || redisClient == nil || r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			cacheKey := fmt.Sprintf("idempotency:response:%s", key)
			lockKey := fmt.Sprintf("idempotency:lock:%s", key)

			if data, err := redisClient.Get(ctx, cacheKey).Bytes(); err == nil {
				var cached cachedResponse
				if err := json.Unmarshal(data, &cached); err == nil {
					w.Header().Set("Content-Type", "application/json")
					w.Header().Set("X-Idempotency-Replayed", "true")
					w.WriteHeader(cached.Status)
					w.Write(cached.Body)
					return
				}
			}

			locked, err := redisClient.SetNX(ctx, lockKey, "1", idempotencyLockTTL).Result()
			if err != nil {
				log.Printf("[IDEMPOTENCY] Lock failed for key %s: %v", key, err)
				next.ServeHTTP(w, r)
				return
			}
			if !locked {
				http.Error(w, "Request with this idempotency key is already in progress", http.StatusConflict)
				return
			}
			defer redisClient.Del(ctx, lockKey)

			recorder := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)

			// Only settled outcomes are worth replaying. Server errors should
			// be retried for real.
			if recorder.status < http.StatusInternalServerError {
				cached, err := json.Marshal(cachedResponse{
					Status: recorder.status,
					Body:   recorder.body.Bytes(),
				})
				if err == nil {
					if err := redisClient.Set(ctx, cacheKey, cached, idempotencyCacheTTL).Err(); err != nil {
						log.Printf("[IDEMPOTENCY] Cache store failed for key %s: %v", key, err)
					}
				}
			}
		})
	}
}
