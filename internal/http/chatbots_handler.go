package http

import (
	"errors"

	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"chatlytics/internal/chatbots"
	"chatlytics/internal/users"
)

// ChatbotsIndexAction lists the chatbots visible to the session user: their
// own for clients, every registered chatbot for admins.
func ChatbotsIndexAction(ctx *cartridge.Context) error {
	user, err := sessionUser(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	db := ctx.DB()
	var list []chatbots.Chatbot
	if user.IsAdmin() {
		list, err = chatbots.GetAllChatbots(db)
	} else {
		list, err = chatbots.GetChatbotsForUser(db, user.ID)
	}
	if err != nil {
		ctx.Logger.Error("Failed to list chatbots", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.JSON(fiber.Map{"chatbots": list})
}

// ChatbotCreateAction registers a new chatbot owned by the session user.
func ChatbotCreateAction(ctx *cartridge.Context) error {
	user, err := sessionUser(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var body struct {
		Name string `json:"name"`
	}
	if err := ctx.BodyParser(&body); err != nil || body.Name == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Chatbot name is required"})
	}

	chatbot := &chatbots.Chatbot{
		UserID: user.ID,
		Name:   body.Name,
	}
	if err := chatbots.CreateChatbot(ctx.Logger, ctx.DB(), chatbot); err != nil {
		ctx.Logger.Error("Failed to create chatbot", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.Status(fiber.StatusCreated).JSON(chatbot)
}

// ChatbotRegenerateKeyAction rotates a chatbot's API key. Old conversation
// rows stay under the previous key and drop out of future dashboards.
func ChatbotRegenerateKeyAction(ctx *cartridge.Context) error {
	user, err := sessionUser(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	id, err := ctx.ParamsInt("id")
	if err != nil || id <= 0 {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Chatbot not found"})
	}

	db := ctx.DB()
	if !user.IsAdmin() {
		owned, err := chatbots.ValidateOwnership(db, uint(id), user.ID)
		if err != nil {
			ctx.Logger.Error("Failed to validate chatbot ownership", slog.Any("error", err))
			return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		if !owned {
			return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Chatbot not found"})
		}
	}

	apiKey, err := chatbots.RegenerateAPIKey(ctx.Logger, db, uint(id))
	if err != nil {
		var notFound *chatbots.ChatbotNotFoundError
		if errors.As(err, &notFound) {
			return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Chatbot not found"})
		}
		ctx.Logger.Error("Failed to regenerate api key", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.JSON(fiber.Map{"api_key": apiKey})
}

// sessionUser loads the authenticated user for the current request.
func sessionUser(ctx *cartridge.Context) (*users.User, error) {
	userID, isAuthenticated := ctx.Session.GetUserID(ctx.Ctx)
	if !isAuthenticated {
		return nil, errors.New("not authenticated")
	}
	return users.FindByID(ctx.DB(), userID)
}
