package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/bayardlab/bayard-gateway/internal/gateway"
	"github.com/bayardlab/bayard-gateway/internal/search/corpus"
	"github.com/bayardlab/bayard-gateway/pkg/logger"
)

// Pipeline is the query pipeline behind the endpoint.
type Pipeline interface {
	Process(ctx context.Context, req gateway.Request) (*gateway.Outcome, error)
}

type QueryHandler struct {
	pipeline Pipeline
}

func NewQueryHandler(pipeline Pipeline) *QueryHandler {
	return &QueryHandler{
		pipeline: pipeline,
	}
}

type searchResponse struct {
	RunID          string            `json:"run_id"`
	Timestamp      string            `json:"timestamp"`
	InputText      string            `json:"input_text"`
	Reflection     string            `json:"search_quality_reflection"`
	Score          *int              `json:"search_quality_score"`
	Documents      []corpus.Document `json:"documents"`
	ModelOutput    string            `json:"model_output"`
	FeedbackID     string            `json:"feedback_id"`
	ConversationID string            `json:"conversation_id"`
}

func (h *QueryHandler) ProcessQuery(c *fiber.Ctx) error {
	var req struct {
		InputText      string   `json:"input_text"`
		FeedbackRating *float64 `json:"feedback_rating"`
		ConversationID string   `json:"conversation_id"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Input text is required",
		})
	}

	outcome, err := h.pipeline.Process(c.Context(), gateway.Request{
		InputText:      req.InputText,
		FeedbackRating: req.FeedbackRating,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		if errors.Is(err, gateway.ErrEmptyInput) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Input text is required",
			})
		}
		logger.Error("Failed to process query", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Failed to process query",
		})
	}

	if outcome.Conversation != nil {
		return c.JSON(fiber.Map{
			"model_output": outcome.Conversation.ModelOutput,
		})
	}

	s := outcome.Search
	docs := s.Documents
	if docs == nil {
		docs = []corpus.Document{}
	}
	return c.JSON(searchResponse{
		RunID:          s.RunID,
		Timestamp:      s.Timestamp,
		InputText:      s.InputText,
		Reflection:     s.Reflection,
		Score:          s.Score,
		Documents:      docs,
		ModelOutput:    s.ModelOutput,
		FeedbackID:     s.FeedbackID,
		ConversationID: s.ConversationID,
	})
}
