package handler

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pyrelog/pyre/internal/app/model"
	"github.com/pyrelog/pyre/internal/app/repository"
	"github.com/pyrelog/pyre/internal/app/service"
	"go.uber.org/zap"
)

// CronDeps groups dependencies for the externally scheduled endpoints.
type CronDeps struct {
	Logger  *zap.Logger
	Worries service.WorryService
	Events  repository.LifecycleEventRepository
	Secret  string
}

// CronHandler exposes the sweep trigger and the lifetime stats for the
// external scheduler. The in-process sweeper covers steady state; the
// cleanup endpoint exists so a platform cron can force a sweep and observe
// the purge count.
type CronHandler struct {
	logger  *zap.Logger
	worries service.WorryService
	events  repository.LifecycleEventRepository
	secret  string
}

// NewCronHandler creates a cron handler with the provided dependencies.
func NewCronHandler(deps CronDeps) *CronHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CronHandler{
		logger:  logger,
		worries: deps.Worries,
		events:  deps.Events,
		secret:  deps.Secret,
	}
}

// Register wires the cron routes onto the provided router.
func (h *CronHandler) Register(router fiber.Router) {
	router.Get("/cron/cleanup", h.Cleanup)
	router.Get("/cron/stats", h.Stats)
}

// Cleanup handles GET /cron/cleanup. Safe to trigger concurrently with
// itself: the purge is idempotent, so overlapping schedules cannot
// double-count.
func (h *CronHandler) Cleanup(c *fiber.Ctx) error {
	if !h.authorized(c.Get("Authorization")) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "missing or invalid cron secret",
		})
	}

	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}

	purged, err := h.worries.Sweep(ctx)
	if err != nil {
		h.logger.Error("cron sweep failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "db_error",
			"message": "cleanup failed",
		})
	}

	h.logger.Info("cron sweep completed", zap.Int64("deleted", purged))
	return c.JSON(fiber.Map{
		"success":      true,
		"deletedCount": purged,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Stats handles GET /cron/stats: lifetime totals per lifecycle kind from
// the audit table. Counts stay at zero when events are disabled, since
// nothing then writes the table.
func (h *CronHandler) Stats(c *fiber.Ctx) error {
	if !h.authorized(c.Get("Authorization")) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "missing or invalid cron secret",
		})
	}
	if h.events == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "not_found",
			"message": "stats are not enabled",
		})
	}

	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}

	stats := fiber.Map{}
	for field, kind := range map[string]string{
		"created": model.EventWorryCreated,
		"burned":  model.EventWorryBurned,
		"patted":  model.EventWorryPatted,
		"swept":   model.EventSweepPurged,
	} {
		count, err := h.events.CountByKind(ctx, kind)
		if err != nil {
			h.logger.Error("failed to count lifecycle events",
				zap.String("kind", kind), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "db_error",
				"message": "failed to load stats",
			})
		}
		stats[field] = count
	}

	return c.JSON(stats)
}

func (h *CronHandler) authorized(header string) bool {
	if h.secret == "" {
		return false
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.secret)) == 1
}
