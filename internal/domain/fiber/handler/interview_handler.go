package handler

import (
	"fmt"
	"io"

	"github.com/fadilmartias/questy/internal/apperr"
	"github.com/fadilmartias/questy/internal/dto"
	"github.com/fadilmartias/questy/internal/gate"
	"github.com/fadilmartias/questy/internal/interview"
	"github.com/fadilmartias/questy/internal/middleware"
	"github.com/fadilmartias/questy/internal/realm"
	"github.com/fadilmartias/questy/internal/usecase"
	"github.com/fadilmartias/questy/internal/util"
	"github.com/gofiber/fiber/v2"
)

type InterviewHandler struct {
	uc   *usecase.InterviewUsecase
	gate *gate.Gate
}

func NewInterviewHandler(uc *usecase.InterviewUsecase, g *gate.Gate) *InterviewHandler {
	return &InterviewHandler{uc: uc, gate: g}
}

func (h *InterviewHandler) RegisterRoutes(router fiber.Router) {
	r := router.Group("/api/interview", middleware.RequireRole(h.gate, realm.RoleStudent))
	r.Get("/", h.State)
	r.Post("/start", h.Start)
	r.Post("/answer", h.Answer)
	r.Delete("/", h.Teardown)
}

func (h *InterviewHandler) reply(c *fiber.Ctx, msg string, st interview.State, err error) error {
	if err != nil {
		return util.HandleError(c, err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    fiber.StatusOK,
		Message: msg,
		Data:    st,
	})
}

func (h *InterviewHandler) State(c *fiber.Ctx) error {
	st, err := h.uc.State(c.UserContext(), middleware.Identity(c).ID)
	return h.reply(c, "Interview state", st, err)
}

func (h *InterviewHandler) Start(c *fiber.Ctx) error {
	var in dto.InterviewStartDTO
	if err := c.BodyParser(&in); err != nil {
		return util.HandleError(c, apperr.Validation("Invalid request body", nil))
	}
	cv, err := h.processFile(c, "cv")
	if err != nil {
		return util.HandleError(c, err)
	}
	st, err := h.uc.Start(c.UserContext(), middleware.Identity(c).ID, middleware.AccessToken(c), in.Name, in.Phone, cv)
	return h.reply(c, "Interview started", st, err)
}

// processFile reads an optional upload; a missing file yields nil so the
// session reports it alongside the other missing fields.
func (h *InterviewHandler) processFile(c *fiber.Ctx, fieldName string) (*interview.CV, error) {
	file, err := c.FormFile(fieldName)
	if err != nil {
		return nil, nil
	}
	f, err := file.Open()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, fmt.Sprintf("cannot read %s file", fieldName), err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, fmt.Sprintf("cannot read %s file", fieldName), err)
	}
	return &interview.CV{
		Filename:    file.Filename,
		ContentType: file.Header.Get(fiber.HeaderContentType),
		Data:        data,
	}, nil
}

func (h *InterviewHandler) Answer(c *fiber.Ctx) error {
	var in dto.InterviewAnswerDTO
	if err := c.BodyParser(&in); err != nil {
		return util.HandleError(c, apperr.Validation("Invalid request body", nil))
	}
	st, err := h.uc.Answer(c.UserContext(), middleware.Identity(c).ID, in.Answer)
	return h.reply(c, "Answer submitted", st, err)
}

func (h *InterviewHandler) Teardown(c *fiber.Ctx) error {
	h.uc.Teardown(middleware.Identity(c).ID)
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    fiber.StatusOK,
		Message: "Interview closed",
	})
}
