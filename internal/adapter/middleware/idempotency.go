package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// How long a reservation lives if the handler never finishes.
	provisionalLockTTL = 60 * time.Second
	// Allowed client/server clock skew for Ax-Request-At.
	maxClockSkew = 10 * time.Minute
	storeTimeout = 2 * time.Second
)

type respRecorder struct {
	w    http.ResponseWriter
	buf  *bytes.Buffer
	code int
}

func (r *respRecorder) Header() http.Header { return r.w.Header() }
func (r *respRecorder) Write(b []byte) (int, error) {
	r.buf.Write(b)
	return r.w.Write(b)
}
func (r *respRecorder) WriteHeader(statusCode int) { r.code = statusCode; r.w.WriteHeader(statusCode) }

// IdempotencyMiddleware makes mutating requests safe to retry. The key is method, route,
// actor and request id; a finished response is replayed, a different body is a 409.
// 5xx responses are not stored so the client may retry with the same request id.
func IdempotencyMiddleware(rdb *redis.Client, ttl time.Duration, log *zap.Logger) echo.MiddlewareFunc {
	if log == nil {
		log = zap.NewNop()
	}
	st := store{rdb: rdb, lockTTL: provisionalLockTTL}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			switch req.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return next(c)
			}

			hdr, err := parseHeaders(req.Header, nowUTC())
			if err != nil {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
			}

			var body []byte
			if req.Body != nil {
				body, _ = io.ReadAll(req.Body)
			}
			req.Body = io.NopCloser(bytes.NewReader(body))
			bhash := bodyHash(body)

			key := hdr.key(req.Method, c.Path())
			ctx, cancel := context.WithTimeout(req.Context(), storeTimeout)
			defer cancel()

			base := record{
				BodySHA256:  bhash,
				RequestID:   hdr.RequestID,
				RequestAtMS: hdr.RequestAt.UnixMilli(),
			}
			pending := base
			pending.InProgress = true
			pending.CreatedAt = nowUTC()

			ok, err := st.reserve(ctx, key, pending)
			if err != nil {
				log.Error("idempotency: reserve failed", zap.String("key", key), zap.Error(err))
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "idempotency store unavailable"})
			}
			if !ok {
				cur, err := st.load(ctx, key)
				if err != nil {
					log.Warn("idempotency: load failed", zap.String("key", key), zap.Error(err))
				}
				if cur.BodySHA256 != "" && cur.BodySHA256 != bhash {
					return c.JSON(http.StatusConflict, map[string]string{"error": HeaderRequestID + " reused with different body"})
				}
				if cur.replayable() {
					log.Debug("idempotency: replay", zap.String("key", key), zap.Int("status", cur.Code))
					return c.Blob(cur.Code, echo.MIMEApplicationJSON, cur.Body)
				}
				return c.JSON(http.StatusConflict, map[string]string{"error": "request is already in progress"})
			}

			rec := &respRecorder{w: c.Response().Writer, buf: &bytes.Buffer{}, code: http.StatusOK}
			c.Response().Writer = rec
			if err := next(c); err != nil {
				c.Error(err)
			}

			// outlives the request context
			sctx, scancel := context.WithTimeout(context.Background(), storeTimeout)
			defer scancel()
			if rec.code >= http.StatusInternalServerError {
				if err := st.release(sctx, key); err != nil {
					log.Warn("idempotency: release failed", zap.String("key", key), zap.Error(err))
				}
				return nil
			}
			done := base
			done.Code = rec.code
			done.Body = rec.buf.Bytes()
			done.CreatedAt = nowUTC()
			if err := st.finish(sctx, key, done, ttl); err != nil {
				log.Warn("idempotency: save failed", zap.String("key", key), zap.Error(err))
			}
			return nil
		}
	}
}
