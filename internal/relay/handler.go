package relay

import (
	"fmt"
	"strings"

	"github.com/fadilmartias/questy/internal/config"
	"github.com/fadilmartias/questy/pkg/log"
	"github.com/gofiber/fiber/v2"
	"github.com/tidwall/gjson"
)

// Handler exposes the relay endpoints. Replies are plain JSON objects since
// the workflow and the gateway read fields at the top level.
type Handler struct {
	queue     Queue
	forwarder *Forwarder
	cfg       *config.RelayConfig
	logger    log.Logger
}

func NewHandler(queue Queue, forwarder *Forwarder, cfg *config.RelayConfig, logger log.Logger) *Handler {
	return &Handler{queue: queue, forwarder: forwarder, cfg: cfg, logger: logger}
}

func (h *Handler) RegisterRoutes(app *fiber.App) {
	app.Post("/receive-question", h.ReceiveQuestion)
	app.Post("/start-interview", h.StartInterview)
	app.Post("/receive-answer", h.ReceiveAnswer)
	app.Get("/api/latest-question", h.LatestQuestion)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func truthy(r gjson.Result) bool {
	return r.Type == gjson.True || (r.Type == gjson.String && r.Str == "true")
}

// ReceiveQuestion is called by the workflow with the next question or the
// stop signal for a student.
func (h *Handler) ReceiveQuestion(c *fiber.Ctx) error {
	body := gjson.ParseBytes(c.Body())
	studentID := body.Get("student_id").String()
	if studentID == "" {
		return badRequest(c, "Missing student_id in request body")
	}
	ctx := c.UserContext()

	if truthy(body.Get("stop_interview")) {
		if err := h.queue.Stop(ctx, studentID); err != nil {
			return err
		}
		h.logger.Info().Str("student_id", studentID).Msg("stop_interview received")
		return c.JSON(fiber.Map{"success": true})
	}

	question := strings.TrimSpace(body.Get("question").String())
	if question == "" {
		return badRequest(c, "Missing question in request body")
	}
	if err := h.queue.Push(ctx, studentID, question); err != nil {
		return err
	}
	h.logger.Info().Str("student_id", studentID).Msg("question queued")
	return c.JSON(fiber.Map{"success": true})
}

// StartInterview accepts {body:{student_id,name,phone}} or the flat object.
func (h *Handler) StartInterview(c *fiber.Ctx) error {
	root := gjson.ParseBytes(c.Body())
	body := root.Get("body")
	if !body.IsObject() {
		body = root
	}
	studentID := body.Get("student_id").String()
	name := body.Get("name").String()
	if studentID == "" || name == "" {
		return badRequest(c, "Missing student_id or name in request body")
	}

	ctx := c.UserContext()
	if err := h.queue.Open(ctx, studentID); err != nil {
		return err
	}
	payload := map[string]string{
		"student_id": studentID,
		"name":       name,
		"phone":      body.Get("phone").String(),
	}
	if err := h.forwarder.Post(ctx, h.cfg.StartWebhookURL, payload); err != nil {
		h.logger.Error().Err(err).Str("student_id", studentID).Msg("could not notify workflow of interview start")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to notify interview workflow"})
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *Handler) ReceiveAnswer(c *fiber.Ctx) error {
	body := gjson.ParseBytes(c.Body())
	name := body.Get("name").String()
	studentID := body.Get("student_id").String()
	stop := truthy(body.Get("stop_interview"))

	if stop {
		h.logger.Info().Str("student_id", studentID).Msg("interview completed")
		return c.JSON(fiber.Map{
			"message": fmt.Sprintf("Thank you %s! You have completed the interview. We appreciate your time and effort.", name),
		})
	}

	question := body.Get("question").String()
	answer := body.Get("answer").String()
	if question == "" || answer == "" || name == "" || studentID == "" {
		return badRequest(c, "Missing required fields in request body")
	}

	ctx := c.UserContext()
	if err := h.queue.Answered(ctx, studentID, question); err != nil {
		return err
	}
	payload := map[string]any{
		"question":       question,
		"answer":         answer,
		"name":           name,
		"student_id":     studentID,
		"stop_interview": stop,
	}
	if err := h.forwarder.Post(ctx, h.cfg.AnswerWebhookURL, payload); err != nil {
		h.logger.Error().Err(err).Str("student_id", studentID).Msg("could not forward answer")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to forward answer to interview workflow"})
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *Handler) LatestQuestion(c *fiber.Ctx) error {
	c.Set(fiber.HeaderCacheControl, "no-store")
	studentID := c.Query("student_id")
	if studentID == "" {
		return c.JSON(fiber.Map{"question": ""})
	}
	next, err := h.queue.Next(c.UserContext(), studentID)
	if err != nil {
		return err
	}
	if next.Stop {
		return c.JSON(fiber.Map{"stop_interview": true})
	}
	return c.JSON(fiber.Map{"question": next.Question})
}
