// Package v1 exposes the public ingestion API that chat runtimes call to
// append message turns to the conversation event log.
package v1

import (
	"errors"
	"net/http"
	"time"

	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"gorm.io/gorm"

	"chatlytics/internal/chatbots"
	"chatlytics/internal/conversations"
)

const (
	msgMessageRecorded = "Message recorded successfully"
	errInvalidRequest  = "Invalid request"
	errInvalidAPIKey   = "Invalid API key"
)

// CreateConversationParams is the ingestion payload. The API key may arrive
// in the body or in the X-API-Key header; the header wins.
type CreateConversationParams struct {
	APIKey         string                 `json:"apiKey"`
	UserID         string                 `json:"userId"`
	MessageRole    string                 `json:"messageRole"`
	MessageContent string                 `json:"messageContent"`
	Metadata       map[string]interface{} `json:"metadata"`
	Timestamp      time.Time              `json:"timestamp"`
}

// CreateConversationPublicAPIHandler handles POST /x/api/v1/conversations.
func CreateConversationPublicAPIHandler(ctx *cartridge.Context) error {
	var params CreateConversationParams
	if err := ctx.BodyParser(&params); err != nil {
		ctx.Logger.Debug("Failed to parse conversation request", slog.Any("error", err))
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": errInvalidRequest})
	}

	if headerKey := ctx.Get("X-API-Key"); headerKey != "" {
		params.APIKey = headerKey
	}
	if params.APIKey == "" {
		return ctx.Status(http.StatusForbidden).JSON(fiber.Map{"error": errInvalidAPIKey})
	}

	if params.UserID == "" || params.MessageContent == "" {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": errInvalidRequest})
	}

	db := ctx.DB()
	if _, err := chatbots.GetChatbotByAPIKey(db, params.APIKey); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.Logger.Debug("Unknown API key on ingestion", slog.String("apiKey", params.APIKey))
			return ctx.Status(http.StatusForbidden).JSON(fiber.Map{"error": errInvalidAPIKey})
		}
		ctx.Logger.Error("Failed to look up API key", slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to record message",
			"code":  "INGESTION_ERROR",
		})
	}

	input := &conversations.RecordMessageInput{
		APIKey:         params.APIKey,
		UserID:         params.UserID,
		MessageRole:    params.MessageRole,
		MessageContent: params.MessageContent,
		Metadata:       params.Metadata,
		Timestamp:      params.Timestamp,
	}

	if _, err := conversations.RecordMessage(ctx.Logger, db, input); err != nil {
		if errors.Is(err, conversations.ErrInvalidRole) {
			return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		ctx.Logger.Error("Failed to record conversation message", slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to record message",
			"code":  "INGESTION_ERROR",
		})
	}

	return ctx.Status(http.StatusAccepted).JSON(fiber.Map{
		"message": msgMessageRecorded,
		"status":  http.StatusAccepted,
	})
}
