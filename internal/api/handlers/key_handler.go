package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/bayardlab/bayard-gateway/internal/metrics"
	"github.com/bayardlab/bayard-gateway/pkg/keys"
	"github.com/bayardlab/bayard-gateway/pkg/logger"
)

// KeyStore persists issued API keys.
type KeyStore interface {
	InsertKey(ctx context.Context, key string) error
}

type KeyHandler struct {
	store KeyStore
}

func NewKeyHandler(store KeyStore) *KeyHandler {
	return &KeyHandler{
		store: store,
	}
}

func (h *KeyHandler) GenerateKey(c *fiber.Ctx) error {
	key, err := keys.Generate()
	if err != nil {
		logger.Error("Failed to generate API key", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate API key",
		})
	}

	if err := h.store.InsertKey(c.Context(), key); err != nil {
		logger.Error("Failed to store API key", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate API key",
		})
	}

	metrics.KeysIssued.Inc()
	return c.JSON(fiber.Map{
		"api_key": key,
	})
}
