package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyHeader    = "Idempotency-Key"
	idempotencyReplayHeader = "Idempotency-Replayed"
	idempotencyPrefix       = "idempotency:v1"
	inProgressMarker        = "__in_progress__"
)

// moneyOutcome is the persisted result of a completed money operation. Only
// the JSON payload and status are kept; a replay reconstructs the response
// from these alone.
type moneyOutcome struct {
	Status int    `json:"status"`
	Body   string `json:"body"`
}

// idempotencyCacheKey scopes a client-supplied key to the authenticated user
// and the exact operation. The same key on a different account route, or from
// a different user, is a different operation and must not replay.
func idempotencyCacheKey(c *fiber.Ctx, clientKey string) string {
	userID, _ := c.Locals("user_id").(string)
	return fmt.Sprintf("%s:%s:%s:%s:%s", idempotencyPrefix, userID, c.Method(), c.Path(), clientKey)
}

// Idempotency makes money-moving requests safe to retry. Unsafe methods must
// carry an Idempotency-Key; the first successful outcome under a key is
// persisted in Redis and replayed verbatim for duplicates, so a client that
// resends a transfer after a network timeout cannot move the funds twice.
// Failed outcomes release the key, letting the client retry with the same one.
func Idempotency(cache *redis.Client, ttl time.Duration, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		switch strings.ToUpper(c.Method()) {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}

		clientKey := c.Get(idempotencyKeyHeader)
		if clientKey == "" {
			return fiber.NewError(fiber.StatusBadRequest, "missing Idempotency-Key header")
		}
		cacheKey := idempotencyCacheKey(c, clientKey)

		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		cached, err := cache.Get(ctx, cacheKey).Result()
		switch {
		case err == nil:
			if cached == inProgressMarker {
				return fiber.NewError(fiber.StatusConflict, "request with this Idempotency-Key is still processing")
			}
			var outcome moneyOutcome
			if err := json.Unmarshal([]byte(cached), &outcome); err != nil {
				logger.Warn("stored idempotent outcome is unreadable", slog.String("key", clientKey), slog.Any("error", err))
				return fiber.NewError(fiber.StatusConflict, "duplicate request")
			}
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			c.Set(idempotencyReplayHeader, "true")
			return c.Status(outcome.Status).SendString(outcome.Body)
		case err != redis.Nil:
			logger.Error("idempotency lookup failed", slog.String("key", clientKey), slog.Any("error", err))
			return fiber.NewError(fiber.StatusInternalServerError, "idempotency store failure")
		}

		claimed, err := cache.SetNX(ctx, cacheKey, inProgressMarker, ttl).Result()
		if err != nil {
			logger.Error("idempotency claim failed", slog.String("key", clientKey), slog.Any("error", err))
			return fiber.NewError(fiber.StatusInternalServerError, "idempotency store failure")
		}
		if !claimed {
			// Lost the race to a concurrent duplicate.
			return fiber.NewError(fiber.StatusConflict, "request with this Idempotency-Key is still processing")
		}

		release := func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			cache.Del(releaseCtx, cacheKey)
		}

		if err := c.Next(); err != nil {
			release()
			return err
		}

		status := c.Response().StatusCode()
		if status < 200 || status > 299 {
			// The money did not move; the client may retry under the same key.
			release()
			return nil
		}

		payload, err := json.Marshal(moneyOutcome{Status: status, Body: string(c.Response().Body())})
		if err != nil {
			logger.Error("failed to encode idempotent outcome", slog.String("key", clientKey), slog.Any("error", err))
			release()
			return nil
		}

		persistCtx, persistCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer persistCancel()
		if err := cache.Set(persistCtx, cacheKey, payload, ttl).Err(); err != nil {
			logger.Error("failed to persist idempotent outcome", slog.String("key", clientKey), slog.Any("error", err))
			release()
		}
		return nil
	}
}
