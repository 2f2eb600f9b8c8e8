package httpapi

import (
	"crypto/subtle"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/mikey/deadline-triage/internal/core"
)

const secretHeader = "X-Apps-Script-Secret"

func (s *Server) routes() {
	s.app.Get("/health", s.health)
	s.app.Post("/sync", s.sync)
	s.app.Post("/feedback", s.feedback)
	s.app.Post("/auth/exchange", s.exchange)
	s.app.Post("/apps/ingest", s.ingest)
}

type syncResponse struct {
	Status            string           `json:"status"`
	NewDeadlinesFound int              `json:"new_deadlines_found"`
	Deadlines         []*core.Deadline `json:"deadlines"`
}

type feedbackRequest struct {
	EmailID     string `json:"email_id"`
	Subject     string `json:"subject"`
	Snippet     string `json:"snippet"`
	IsSpam      *bool  `json:"is_spam"`
	IsImportant *bool  `json:"is_important"`
}

type feedbackResponse struct {
	Status string `json:"status"`
	User   string `json:"user"`
}

type exchangeRequest struct {
	Code string `json:"code"`
}

type ingestMessage struct {
	EmailID  string `json:"email_id"`
	Subject  string `json:"subject"`
	Snippet  string `json:"snippet"`
	ThreadID string `json:"thread_id"`
}

type ingestRequest struct {
	Messages []ingestMessage `json:"messages"`
}

type ingestResponse struct {
	Status    string            `json:"status"`
	Processed int               `json:"processed"`
	Items     []core.IngestItem `json:"items"`
}

type healthResponse struct {
	Status           string    `json:"status"`
	PendingReminders int       `json:"pending_reminders"`
	Time             time.Time `json:"time"`
}

func (s *Server) health(c *fiber.Ctx) error {
	resp := healthResponse{Status: "ok", Time: time.Now().UTC()}
	if s.pending != nil {
		resp.PendingReminders = s.pending.Pending()
	}
	return c.JSON(resp)
}

func (s *Server) sync(c *fiber.Ctx) error {
	token, err := bearerToken(c)
	if err != nil {
		return err
	}

	report, err := s.service.Sync(c.UserContext(), token)
	if err != nil {
		return err
	}

	deadlines := report.Deadlines
	if deadlines == nil {
		deadlines = []*core.Deadline{}
	}
	return c.JSON(syncResponse{
		Status:            "success",
		NewDeadlinesFound: len(deadlines),
		Deadlines:         deadlines,
	})
}

func (s *Server) feedback(c *fiber.Ctx) error {
	token, err := bearerToken(c)
	if err != nil {
		return err
	}

	var body feedbackRequest
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid feedback body")
	}

	// is_important wins when both labels are sent
	var important bool
	switch {
	case body.IsImportant != nil:
		important = *body.IsImportant
	case body.IsSpam != nil:
		important = !*body.IsSpam
	default:
		return fiber.NewError(fiber.StatusBadRequest, "Feedback needs is_spam or is_important")
	}

	owner, err := s.service.Feedback(c.UserContext(), token, &core.FeedbackRequest{
		MessageID: body.EmailID,
		Subject:   body.Subject,
		Snippet:   body.Snippet,
		Important: important,
	})
	if err != nil {
		return err
	}
	return c.JSON(feedbackResponse{Status: "learned", User: owner})
}

func (s *Server) exchange(c *fiber.Ctx) error {
	var body exchangeRequest
	if err := c.BodyParser(&body); err != nil || strings.TrimSpace(body.Code) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Missing authorization code")
	}

	token, err := s.service.ExchangeCode(c.UserContext(), body.Code)
	if err != nil {
		return err
	}
	return c.JSON(token)
}

func (s *Server) ingest(c *fiber.Ctx) error {
	given := c.Get(secretHeader)
	if s.config.IngestSecret == "" ||
		subtle.ConstantTimeCompare([]byte(given), []byte(s.config.IngestSecret)) != 1 {
		return fiber.NewError(fiber.StatusUnauthorized, "Unauthorized")
	}

	var body ingestRequest
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid ingest body")
	}

	messages := make([]core.IngestMessage, 0, len(body.Messages))
	for _, m := range body.Messages {
		messages = append(messages, core.IngestMessage{
			MessageID: m.EmailID,
			Subject:   m.Subject,
			Snippet:   m.Snippet,
			ThreadID:  m.ThreadID,
		})
	}

	report := s.service.Ingest(c.UserContext(), messages)
	items := report.Items
	if items == nil {
		items = []core.IngestItem{}
	}
	return c.JSON(ingestResponse{Status: "ok", Processed: len(items), Items: items})
}

// bearerToken reads the credential from "Authorization: Bearer <token>"
func bearerToken(c *fiber.Ctx) (string, error) {
	parts := strings.Fields(c.Get(fiber.HeaderAuthorization))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", fiber.NewError(fiber.StatusUnauthorized, "Missing Token")
	}
	return parts[1], nil
}
