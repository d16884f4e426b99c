package handler

import (
	"context"
	"time"

	"github.com/erp/billing/internal/domain/shared"
	"github.com/erp/billing/internal/infrastructure/logger"
	"github.com/erp/billing/internal/interfaces/http/dto"
	"github.com/erp/billing/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ReplayedHeader is set on responses served from a completed idempotency key
const ReplayedHeader = "Idempotent-Replayed"

// idempotencyGuard makes a resource-creating request safe to retry under the same key.
// Store failures are logged and the request proceeds unguarded.
type idempotencyGuard struct {
	store shared.IdempotencyStore
	ttl   time.Duration
}

// createFunc performs the operation and returns the ID that identifies its result
type createFunc func(ctx context.Context) (resourceID string, body any, err error)

// replayFunc rebuilds the response of an already completed operation
type replayFunc func(ctx context.Context, resourceID string) (any, error)

func (g *idempotencyGuard) serve(c *gin.Context, h *BaseHandler, scope string, status int, create createFunc, replay replayFunc) {
	ctx := c.Request.Context()
	key := middleware.GetIdempotencyKey(c)
	if g == nil || g.store == nil || key == "" {
		g.run(c, h, status, create, "")
		return
	}

	fullKey := scope + ":" + middleware.GetJWTUserID(c) + ":" + key
	log := logger.L(ctx).With(zap.String("idempotency_key", key), zap.String("scope", scope))

	resourceID, found, err := g.store.Lookup(ctx, fullKey)
	switch {
	case err != nil:
		log.Warn("Idempotency lookup failed, proceeding without replay protection", zap.Error(err))
		g.run(c, h, status, create, "")
		return
	case found && resourceID == "":
		h.Error(c, dto.ErrCodeIdempotencyConflict, "A request with this Idempotency-Key is still in progress")
		return
	case found:
		body, err := replay(ctx, resourceID)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		c.Header(ReplayedHeader, "true")
		c.JSON(status, dto.NewSuccessResponse(body))
		return
	}

	claimed, err := g.store.Claim(ctx, fullKey, g.ttl)
	if err != nil {
		log.Warn("Idempotency claim failed, proceeding without replay protection", zap.Error(err))
		g.run(c, h, status, create, "")
		return
	}
	if !claimed {
		h.Error(c, dto.ErrCodeIdempotencyConflict, "A request with this Idempotency-Key is still in progress")
		return
	}

	g.run(c, h, status, create, fullKey)
}

func (g *idempotencyGuard) run(c *gin.Context, h *BaseHandler, status int, create createFunc, claimedKey string) {
	ctx := c.Request.Context()
	resourceID, body, err := create(ctx)
	if err != nil {
		if claimedKey != "" {
			if relErr := g.store.Release(context.WithoutCancel(ctx), claimedKey); relErr != nil {
				logger.L(ctx).Warn("Failed to release idempotency key", zap.Error(relErr))
			}
		}
		h.HandleError(c, err)
		return
	}
	if claimedKey != "" {
		if err := g.store.Complete(context.WithoutCancel(ctx), claimedKey, resourceID, g.ttl); err != nil {
			logger.L(ctx).Warn("Failed to record idempotency key", zap.Error(err))
		}
	}
	c.JSON(status, dto.NewSuccessResponse(body))
}
