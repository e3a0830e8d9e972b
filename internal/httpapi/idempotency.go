package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	idempotencyHeader    = "Idempotency-Key"
	idempotencyHitHeader = "X-Idempotency-Hit"
	idempotencyPrefix    = "idempotency:tickets:"
	idempotencyLockTTL   = 30 * time.Second
	maxIdempotencyKeyLen = 255
)

// Idempotency replays the first successful response stored for an Idempotency-Key.
type Idempotency struct {
	client redis.Cmdable
	ttl    time.Duration
}

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

type recordingWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (w *recordingWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *recordingWriter) Write(p []byte) (int, error) {
	w.body.Write(p)
	return w.ResponseWriter.Write(p)
}

func NewIdempotency(client redis.Cmdable, ttl time.Duration) *Idempotency {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Idempotency{client: client, ttl: ttl}
}

func (i *Idempotency) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}
		if len(key) > maxIdempotencyKeyLen {
			writeError(w, http.StatusBadRequest, "invalid_request", "Idempotency-Key is too long")
			return
		}

		ctx := r.Context()
		logger := LoggerFromContext(ctx).WithField("idempotency_key", key)
		cacheKey := idempotencyPrefix + key
		lockKey := cacheKey + ":lock"

		raw, err := i.client.Get(ctx, cacheKey).Bytes()
		switch {
		case err == nil:
			var stored storedResponse
			if err := json.Unmarshal(raw, &stored); err == nil {
				replay(w, stored)
				return
			}
			logger.Warn("discarding unreadable idempotent response")
		case !errors.Is(err, redis.Nil):
			logger.WithError(err).Warn("idempotency store unavailable")
			next.ServeHTTP(w, r)
			return
		}

		acquired, err := i.client.SetNX(ctx, lockKey, "1", idempotencyLockTTL).Result()
		if err != nil {
			logger.WithError(err).Warn("idempotency store unavailable")
			next.ServeHTTP(w, r)
			return
		}
		if !acquired {
			writeError(w, http.StatusConflict, "request_in_progress", "a request with this Idempotency-Key is in progress")
			return
		}
		defer func() {
			if err := i.client.Del(context.WithoutCancel(ctx), lockKey).Err(); err != nil {
				logger.WithError(err).Warn("release idempotency lock")
			}
		}()

		rec := &recordingWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if rec.status < http.StatusOK || rec.status >= http.StatusMultipleChoices {
			return
		}

		payload, err := json.Marshal(storedResponse{
			Status:      rec.status,
			ContentType: rec.Header().Get("Content-Type"),
			Body:        rec.body.Bytes(),
		})
		if err != nil {
			return
		}
		if err := i.client.Set(context.WithoutCancel(ctx), cacheKey, payload, i.ttl).Err(); err != nil {
			logger.WithError(err).Warn("store idempotent response")
		}
	})
}

func replay(w http.ResponseWriter, stored storedResponse) {
	if stored.ContentType != "" {
		w.Header().Set("Content-Type", stored.ContentType)
	}
	w.Header().Set(idempotencyHitHeader, "true")
	w.WriteHeader(stored.Status)
	_, _ = w.Write(stored.Body)
}
