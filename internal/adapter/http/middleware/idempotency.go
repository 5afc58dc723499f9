package middleware

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	maxIdempotencyKeyLen = 255
	HeaderReplayed       = "Idempotent-Replayed"
)

// captureWriter tees the response body so it can be stored.
type captureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency makes mutating requests safe to retry. The first request with a
// given Idempotency-Key runs and its response is stored for ttl; repeats get the
// stored response, or 409 while the first one is still running. 5xx outcomes are
// not stored so the client can retry them. It must run after JWTAuth.
func Idempotency(store ports.IdempotencyStore, ttl time.Duration, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientKey := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
		if clientKey == "" {
			response.Error(c, apperror.ErrIdempotencyKeyMissing())
			c.Abort()
			return
		}
		if len(clientKey) > maxIdempotencyKeyLen {
			response.Error(c, apperror.Validation("Idempotency-Key is too long"))
			c.Abort()
			return
		}

		userID, _ := UserID(c)
		key := domain.BuildIdempotencyKey(userID, c.FullPath(), clientKey)
		ctx := c.Request.Context()

		reserved, err := store.Reserve(ctx, key, ttl)
		if err != nil {
			log.Error().Err(err).Str("key", key).Msg("idempotency reserve failed")
			response.Error(c, apperror.InternalError(err))
			c.Abort()
			return
		}

		if !reserved {
			replay(c, store, key, log)
			return
		}

		w := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()

		// The request context may already be cancelled by now.
		bg := context.WithoutCancel(ctx)
		status := w.Status()
		if status >= http.StatusInternalServerError {
			if err := store.Release(bg, key); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("idempotency release failed")
			}
			return
		}

		saved := &domain.IdempotentResponse{
			StatusCode: status,
			Body:       w.body.Bytes(),
			CreatedAt:  time.Now().UTC(),
		}
		if err := store.Save(bg, key, saved, ttl); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("idempotency save failed")
		}
	}
}

func replay(c *gin.Context, store ports.IdempotencyStore, key string, log zerolog.Logger) {
	saved, inProgress, err := store.Get(c.Request.Context(), key)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("idempotency lookup failed")
		response.Error(c, apperror.InternalError(err))
		c.Abort()
		return
	}
	if inProgress || saved == nil {
		response.Error(c, apperror.ErrRequestInProgress())
		c.Abort()
		return
	}

	c.Header(HeaderReplayed, "true")
	c.Data(saved.StatusCode, "application/json; charset=utf-8", saved.Body)
	c.Abort()
}
