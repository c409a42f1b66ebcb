package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pyrelog/pyre/internal/app/repository"
	"github.com/pyrelog/pyre/internal/app/service"
	"github.com/pyrelog/pyre/internal/http/middleware"
	httpUtil "github.com/pyrelog/pyre/internal/http/util"
	"github.com/pyrelog/pyre/internal/screen"
	"go.uber.org/zap"
)

// WorryDeps groups dependencies required by the record endpoints.
type WorryDeps struct {
	Logger       *zap.Logger
	Worries      service.WorryService
	Screen       *screen.Screen
	Helplines    []screen.Helpline
	Certificates *httpUtil.CertificateSigner
	RateLimit    fiber.Handler
	BaseURL      string
}

// WorryHandler implements the record lifecycle endpoints.
type WorryHandler struct {
	logger       *zap.Logger
	worries      service.WorryService
	screen       *screen.Screen
	helplines    []screen.Helpline
	certificates *httpUtil.CertificateSigner
	rateLimit    fiber.Handler
	baseURL      string
}

// NewWorryHandler creates the handler with the provided dependencies.
func NewWorryHandler(deps WorryDeps) *WorryHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	scr := deps.Screen
	if scr == nil {
		scr = screen.New(nil)
	}
	rl := deps.RateLimit
	if rl == nil {
		rl = func(c *fiber.Ctx) error { return c.Next() }
	}
	return &WorryHandler{
		logger:       logger,
		worries:      deps.Worries,
		screen:       scr,
		helplines:    deps.Helplines,
		certificates: deps.Certificates,
		rateLimit:    rl,
		baseURL:      deps.BaseURL,
	}
}

// Register wires the record routes onto the provided router. The static
// /records/random route registers before the /:id parameter route. Pat
// and certificate verification skip the rate limiter: a pat follows a
// view that already spent quota, and dedup is enforced by the ledger.
func (h *WorryHandler) Register(router fiber.Router) {
	router.Get("/", h.Health)
	router.Get("/health", h.Health)

	router.Post("/screen", h.rateLimit, h.ScreenContent)

	records := router.Group("/records")
	{
		records.Post("/", h.rateLimit, h.CreateRecord)
		records.Get("/random", h.rateLimit, h.PeekRecord)
		records.Get("/:id", h.rateLimit, h.GetRecord)
		records.Delete("/:id", h.rateLimit, h.BurnRecord)
		records.Post("/:id/pat", h.PatRecord)
		records.Get("/:id/certificate", h.VerifyCertificate)
	}
}

// Health is a simple root endpoint so we know the service is running.
func (h *WorryHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "pyre",
		"status":  "ok",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// CreateRecordRequest is the body for POST /records.
type CreateRecordRequest struct {
	Content string `json:"content"`
}

// CreateRecord handles POST /records.
func (h *WorryHandler) CreateRecord(c *fiber.Ctx) error {
	var req CreateRecordRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "empty_content",
			"message": "request body must be JSON with a content field",
		})
	}

	worry, err := h.worries.CreateWorry(h.userContext(c), req.Content)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyContent):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "empty_content",
				"message": "content must not be empty",
			})
		case errors.Is(err, service.ErrContentTooLong):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "content_too_long",
				"message": "content must be at most 500 characters",
			})
		case errors.Is(err, service.ErrSensitiveContent):
			// Deliberately a 200: the client renders a supportive modal
			// instead of an error path.
			return c.Status(fiber.StatusOK).JSON(fiber.Map{
				"error":     "sensitive_content",
				"message":   "sensitive content detected",
				"helplines": h.helplines,
			})
		default:
			h.logger.Error("failed to create worry", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "db_error",
				"message": "failed to save",
			})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":        worry.ID,
		"secretUrl": fmt.Sprintf("%s/burn/%s", h.baseURL, worry.ID),
		"expiresAt": worry.ExpiresAt.UnixMilli(),
	})
}

// GetRecord handles GET /records/:id.
func (h *WorryHandler) GetRecord(c *fiber.Ctx) error {
	id := c.Params("id")

	worry, err := h.worries.GetWorry(h.userContext(c), id)
	if err != nil {
		return h.lookupError(c, err)
	}

	return c.JSON(fiber.Map{
		"content":   worry.Content,
		"createdAt": worry.CreatedAt.UnixMilli(),
		"expiresAt": worry.ExpiresAt.UnixMilli(),
		"isBurned":  worry.IsBurned,
		"patCount":  worry.PatCount,
	})
}

// BurnRecord handles DELETE /records/:id.
func (h *WorryHandler) BurnRecord(c *fiber.Ctx) error {
	id := c.Params("id")

	result, err := h.worries.BurnWorry(h.userContext(c), id)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyBurned) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "already_burned",
				"message": "this worry was already burned",
			})
		}
		return h.lookupError(c, err)
	}

	resp := fiber.Map{
		"success":  true,
		"burnedAt": result.BurnedAt.UnixMilli(),
	}
	if result.Certificate != "" {
		resp["certificate"] = result.Certificate
	}
	return c.JSON(resp)
}

// PatRecord handles POST /records/:id/pat.
func (h *WorryHandler) PatRecord(c *fiber.Ctx) error {
	id := c.Params("id")
	origin := middleware.OriginKey(c)

	result, err := h.worries.RegisterPat(h.userContext(c), id, origin)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrAlreadyBurned):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "already_burned",
				"message": "this worry was already burned",
			})
		case errors.Is(err, service.ErrPatNotCounted):
			h.logger.Error("pat registered but not counted",
				zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "db_error",
				"message": "failed to save",
			})
		default:
			return h.lookupError(c, err)
		}
	}

	if !result.Registered {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":    "already_patted",
			"message":  "this origin already patted this worry",
			"patCount": result.PatCount,
		})
	}
	return c.JSON(fiber.Map{
		"patCount": result.PatCount,
	})
}

// PeekRecord handles GET /records/random.
func (h *WorryHandler) PeekRecord(c *fiber.Ctx) error {
	worry, err := h.worries.Peek(h.userContext(c))
	if err != nil {
		if errors.Is(err, repository.ErrNoLiveWorries) {
			return c.JSON(fiber.Map{
				"worry":   nil,
				"message": "nothing to peek at right now",
			})
		}
		h.logger.Error("failed to pick random worry", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "db_error",
			"message": "failed to load",
		})
	}

	return c.JSON(fiber.Map{
		"worry": fiber.Map{
			"id":        worry.ID,
			"content":   worry.Content,
			"createdAt": worry.CreatedAt.UnixMilli(),
			"expiresAt": worry.ExpiresAt.UnixMilli(),
			"patCount":  worry.PatCount,
		},
	})
}

// VerifyCertificate handles GET /records/:id/certificate?token=.
func (h *WorryHandler) VerifyCertificate(c *fiber.Ctx) error {
	if h.certificates == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "not_found",
			"message": "certificates are not enabled",
		})
	}

	id := c.Params("id")
	token := c.Query("token")
	if token == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "invalid_certificate",
			"message": "token query parameter is required",
		})
	}

	burnedAt, err := h.certificates.Validate(id, token)
	if err != nil {
		return c.JSON(fiber.Map{
			"valid": false,
		})
	}
	return c.JSON(fiber.Map{
		"valid":    true,
		"burnedAt": burnedAt.UnixMilli(),
	})
}

// ScreenContentRequest is the body for POST /screen.
type ScreenContentRequest struct {
	Content string `json:"content"`
}

// ScreenContent handles POST /screen, the edge pre-submission check. It
// runs the same classifier as the authoritative check inside create.
func (h *WorryHandler) ScreenContent(c *fiber.Ctx) error {
	var req ScreenContentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.JSON(fiber.Map{"flagged": false})
	}

	if !h.screen.Flags(req.Content) {
		return c.JSON(fiber.Map{"flagged": false})
	}
	return c.JSON(fiber.Map{
		"flagged":   true,
		"matches":   h.screen.Matches(req.Content),
		"helplines": h.helplines,
	})
}

// lookupError maps shape and lookup failures uniformly. Purged records and
// fabricated ids are indistinguishable, which keeps existence unprobeable.
func (h *WorryHandler) lookupError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidID):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "invalid_id",
			"message": "this is not a valid link",
		})
	case errors.Is(err, repository.ErrWorryNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "not_found",
			"message": "this worry is already gone",
		})
	default:
		h.logger.Error("worry lookup failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "internal_error",
			"message": "something went wrong",
		})
	}
}

func (h *WorryHandler) userContext(c *fiber.Ctx) context.Context {
	if ctx := c.UserContext(); ctx != nil {
		return ctx
	}
	return context.Background()
}
