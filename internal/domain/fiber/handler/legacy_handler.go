package handler

import (
	"errors"
	"time"

	"github.com/fadilmartias/questy/internal/apperr"
	"github.com/fadilmartias/questy/internal/gate"
	"github.com/fadilmartias/questy/internal/middleware"
	"github.com/fadilmartias/questy/internal/realm"
	"github.com/fadilmartias/questy/internal/usecase"
	"github.com/fadilmartias/questy/internal/util"
	"github.com/gofiber/fiber/v2"
)

var legacyEndpoints = []string{"/api/health", "/api/verify-student", "/api/verify-recruiter", "/api/register", "/api/login"}

// LegacyHandler serves the flat pre-realm endpoints kept for older clients.
type LegacyHandler struct {
	uc   *usecase.AuthUsecase
	gate *gate.Gate
	now  func() time.Time
}

func NewLegacyHandler(uc *usecase.AuthUsecase, g *gate.Gate) *LegacyHandler {
	return &LegacyHandler{uc: uc, gate: g, now: time.Now}
}

func (h *LegacyHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/api/health", h.Health)
	router.Head("/api/health", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	router.Get("/api/verify-student", middleware.RequireRole(h.gate, realm.RoleStudent), h.verify(realm.RoleStudent))
	router.Get("/api/verify-recruiter", middleware.RequireRole(h.gate, realm.RoleRecruiter), h.verify(realm.RoleRecruiter))
	router.Post("/api/register", middleware.RateLimiter(10, time.Minute), h.Register)
	router.Post("/api/login", middleware.RateLimiter(20, time.Minute), h.Login)
}

func (h *LegacyHandler) Health(c *fiber.Ctx) error {
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    fiber.StatusOK,
		Message: "API server is running",
		Data: fiber.Map{
			"status":    "healthy",
			"timestamp": h.now().UTC().Format(time.RFC3339),
			"endpoints": legacyEndpoints,
		},
	})
}

func (h *LegacyHandler) verify(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return util.SuccessResponse(c, util.SuccessResponseFormat{
			Code:    fiber.StatusOK,
			Message: role + " endpoint accessible",
			Data: fiber.Map{
				"role":      role,
				"timestamp": h.now().UTC().Format(time.RFC3339),
				"user":      middleware.Identity(c),
			},
		})
	}
}

func (h *LegacyHandler) Register(c *fiber.Ctx) error {
	user, err := h.uc.LegacyRegister(c.UserContext(), c.Body())
	var missing *usecase.MissingFieldsError
	switch {
	case errors.As(err, &missing):
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    fiber.StatusBadRequest,
			Message: missing.Error(),
			Details: missing.Details,
		})
	case apperr.Is(err, apperr.KindValidation), apperr.Is(err, apperr.KindConflict), apperr.Is(err, apperr.KindRateLimited):
		return util.HandleError(c, err)
	case err != nil:
		e, _ := apperr.As(err)
		msg := "Registration failed"
		if e != nil {
			msg = e.Message
		}
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    fiber.StatusInternalServerError,
			Message: msg,
		}, err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    fiber.StatusCreated,
		Message: "User registered successfully.",
		Data:    fiber.Map{"user": user},
	})
}

func (h *LegacyHandler) Login(c *fiber.Ctx) error {
	var in usecase.LoginInput
	if err := c.BodyParser(&in); err != nil {
		return util.HandleError(c, apperr.Validation("Invalid request body", nil))
	}
	res, err := h.uc.LegacyLogin(c.UserContext(), in.Email, in.Password)
	if err != nil {
		return util.HandleError(c, err)
	}
	msg := "Login successful"
	if res.Demo {
		msg = "Login successful (demo mode)"
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    fiber.StatusOK,
		Message: msg,
		Data:    res,
	})
}
