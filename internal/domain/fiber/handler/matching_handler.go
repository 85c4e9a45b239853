package handler

import (
	"github.com/fadilmartias/questy/internal/apperr"
	"github.com/fadilmartias/questy/internal/dto"
	"github.com/fadilmartias/questy/internal/gate"
	"github.com/fadilmartias/questy/internal/middleware"
	"github.com/fadilmartias/questy/internal/realm"
	"github.com/fadilmartias/questy/internal/usecase"
	"github.com/fadilmartias/questy/internal/util"
	"github.com/gofiber/fiber/v2"
)

type MatchingHandler struct {
	uc   *usecase.MatchingUsecase
	gate *gate.Gate
}

func NewMatchingHandler(uc *usecase.MatchingUsecase, g *gate.Gate) *MatchingHandler {
	return &MatchingHandler{uc: uc, gate: g}
}

func (h *MatchingHandler) RegisterRoutes(router fiber.Router) {
	r := router.Group("/api/matching", middleware.RequireRole(h.gate, realm.RoleRecruiter))
	r.Post("/search", h.Search)
	r.Get("/workspace", h.Workspace)
	r.Get("/history", h.History)
	r.Post("/history/:id/select", h.Select)
	r.Post("/new", h.NewSearch)
	r.Post("/unlock", h.Unlock)
}

func workspaceResponse(c *fiber.Ctx, msg string, view usecase.WorkspaceView) error {
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    fiber.StatusOK,
		Message: msg,
		Data:    view,
	})
}

func (h *MatchingHandler) Search(c *fiber.Ctx) error {
	var in dto.SearchRequestDTO
	if err := c.BodyParser(&in); err != nil {
		return util.HandleError(c, apperr.Validation("Invalid request body", nil))
	}
	view, err := h.uc.Search(c.UserContext(), middleware.Identity(c).ID, in.RequirementsText)
	if err != nil {
		return util.HandleError(c, err)
	}
	return workspaceResponse(c, "Search completed", view)
}

func (h *MatchingHandler) Workspace(c *fiber.Ctx) error {
	return workspaceResponse(c, "Workspace", h.uc.Workspace(middleware.Identity(c).ID))
}

func (h *MatchingHandler) History(c *fiber.Ctx) error {
	records, page, err := h.uc.History(c.UserContext(), middleware.Identity(c).ID,
		c.QueryInt("page", 1), c.QueryInt("page_size", 10))
	if err != nil {
		return util.HandleError(c, err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:       fiber.StatusOK,
		Message:    "Search history",
		Data:       records,
		Pagination: page,
	})
}

func (h *MatchingHandler) Select(c *fiber.Ctx) error {
	view, err := h.uc.Select(c.UserContext(), middleware.Identity(c).ID, c.Params("id"))
	if err != nil {
		return util.HandleError(c, err)
	}
	return workspaceResponse(c, "Search selected", view)
}

func (h *MatchingHandler) NewSearch(c *fiber.Ctx) error {
	return workspaceResponse(c, "New search", h.uc.NewSearch(middleware.Identity(c).ID))
}

func (h *MatchingHandler) Unlock(c *fiber.Ctx) error {
	var in dto.UnlockRequestDTO
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return util.HandleError(c, apperr.Validation("Invalid request body", nil))
		}
	}
	unlocked, err := h.uc.UnlockTop(c.UserContext(), middleware.Identity(c).ID, in.N)
	msg := "Candidates unlocked"
	if e, ok := apperr.As(err); ok && e.Kind == apperr.KindPartialFailure {
		msg = e.Message
	} else if err != nil {
		return util.HandleError(c, err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    fiber.StatusOK,
		Message: msg,
		Data:    unlocked,
	})
}
