package handler

import (
	"time"

	"github.com/fadilmartias/questy/internal/apperr"
	"github.com/fadilmartias/questy/internal/gate"
	"github.com/fadilmartias/questy/internal/middleware"
	"github.com/fadilmartias/questy/internal/realm"
	"github.com/fadilmartias/questy/internal/usecase"
	"github.com/fadilmartias/questy/internal/util"
	"github.com/gofiber/fiber/v2"
)

type AuthHandler struct {
	uc   *usecase.AuthUsecase
	gate *gate.Gate
}

func NewAuthHandler(uc *usecase.AuthUsecase, g *gate.Gate) *AuthHandler {
	return &AuthHandler{uc: uc, gate: g}
}

func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	auth := router.Group("/api/auth/:role", h.checkRole)
	auth.Post("/register", middleware.RateLimiter(10, time.Minute), h.Register)
	auth.Post("/login", middleware.RateLimiter(20, time.Minute), h.Login)
	auth.Post("/logout", h.Logout)
	auth.Get("/session", h.Session)
}

func (h *AuthHandler) checkRole(c *fiber.Ctx) error {
	switch c.Params("role") {
	case realm.RoleStudent, realm.RoleRecruiter:
		return c.Next()
	}
	return util.HandleError(c, apperr.NotFound("Unknown role"))
}

type sessionView struct {
	User      realm.Identity `json:"user"`
	Role      string         `json:"role"`
	ExpiresAt time.Time      `json:"expires_at"`
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var in usecase.RegisterInput
	if err := c.BodyParser(&in); err != nil {
		return util.HandleError(c, apperr.Validation("Invalid request body", nil))
	}
	identity, err := h.uc.Register(c.UserContext(), middleware.Store(c), c.Params("role"), in)
	if err != nil {
		return util.HandleError(c, err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    fiber.StatusCreated,
		Message: "Registration successful",
		Data:    fiber.Map{"user": identity},
	})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var in usecase.LoginInput
	if err := c.BodyParser(&in); err != nil {
		return util.HandleError(c, apperr.Validation("Invalid request body", nil))
	}
	session, err := h.uc.Login(c.UserContext(), middleware.Store(c), c.Params("role"), in)
	if err != nil {
		return util.HandleError(c, err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    fiber.StatusOK,
		Message: "Login successful",
		Data: sessionView{
			User:      session.Identity,
			Role:      session.Identity.Metadata.Role,
			ExpiresAt: session.ExpiresAt,
		},
	})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if err := h.uc.Logout(c.UserContext(), middleware.Store(c), c.Params("role")); err != nil {
		return util.HandleError(c, err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    fiber.StatusOK,
		Message: "Logged out",
	})
}

// Session reports the gate decision for the role without rejecting the call,
// so clients can follow the redirect themselves.
func (h *AuthHandler) Session(c *fiber.Ctx) error {
	d, err := h.gate.CheckAccess(c.UserContext(), middleware.Store(c), c.Params("role"), c.Query("from"))
	if err != nil {
		return util.HandleError(c, err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    fiber.StatusOK,
		Message: string(d.State),
		Data:    d,
	})
}
