package http

import (
	"errors"
	"strconv"
	"time"

	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"chatlytics/internal/analytics"
	"chatlytics/internal/chatbots"
	"chatlytics/internal/config"
	"chatlytics/internal/conversations"
	"chatlytics/internal/insights"
	"chatlytics/internal/timeframe"
	"chatlytics/internal/users"
)

// ChatbotAnalyticsResponse is the single-chatbot dashboard payload:
// aggregates plus the heuristic layers computed from the same window.
type ChatbotAnalyticsResponse struct {
	Analytics        *analytics.ChatbotAnalytics `json:"analytics"`
	Insights         []insights.Insight          `json:"insights"`
	ConversationFlow []insights.FlowStep         `json:"conversation_flow"`
}

// AnalyticsIndexAction serves GET /api/analytics. The response shape depends
// on who asks: a chatbotId parameter scopes to one chatbot (admins may reach
// any, clients only their own), an admin without chatbotId gets the platform
// view, and a client without chatbotId gets the fan-out across their fleet.
func AnalyticsIndexAction(ctx *cartridge.Context) error {
	userID, isAuthenticated := ctx.Session.GetUserID(ctx.Ctx)
	if !isAuthenticated {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	db := ctx.DB()
	user, err := users.FindByID(db, userID)
	if err != nil {
		ctx.Logger.Error("Failed to load session user", slog.Any("error", err))
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	cfg := config.GetConfig()
	days := timeframe.ParseDays(ctx.Query("timeRange"), cfg.DefaultTimeRangeDays)
	tf, err := timeframe.NewTrailingDays(days, time.Now())
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	if chatbotParam := ctx.Query("chatbotId"); chatbotParam != "" {
		return serveChatbotAnalytics(ctx, user, chatbotParam, tf)
	}

	if user.IsAdmin() {
		result, err := analytics.GetAdminAnalytics(db, tf)
		if err != nil {
			ctx.Logger.Error("Failed to compute admin analytics", slog.Any("error", err))
			return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		return ctx.JSON(result)
	}

	result, err := analytics.GetClientAnalytics(ctx.Logger, db, user.ID, tf)
	if err != nil {
		ctx.Logger.Error("Failed to compute client analytics",
			slog.Uint64("userId", uint64(user.ID)), slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(result)
}

func serveChatbotAnalytics(ctx *cartridge.Context, user *users.User, chatbotParam string, tf *timeframe.TimeFrame) error {
	db := ctx.DB()

	chatbotID, err := strconv.Atoi(chatbotParam)
	if err != nil || chatbotID <= 0 {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Chatbot not found"})
	}

	chatbot, err := chatbots.GetChatbotByID(db, uint(chatbotID))
	if err != nil {
		var notFound *chatbots.ChatbotNotFoundError
		if errors.As(err, &notFound) {
			return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Chatbot not found"})
		}
		ctx.Logger.Error("Failed to load chatbot", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	// Admins may inspect any chatbot. For clients a foreign chatbot is
	// indistinguishable from a missing one.
	if !user.IsAdmin() {
		owned, err := chatbots.ValidateOwnership(db, chatbot.ID, user.ID)
		if err != nil {
			ctx.Logger.Error("Failed to validate chatbot ownership", slog.Any("error", err))
			return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		if !owned {
			return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Chatbot not found"})
		}
	}

	params := analytics.NewChatbotScopedQueryParams(tf, chatbot.APIKey)
	result, err := analytics.GetChatbotAnalytics(db, params)
	if err != nil {
		ctx.Logger.Error("Failed to compute chatbot analytics",
			slog.Uint64("chatbotId", uint64(chatbot.ID)), slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	if err := analytics.UpsertSummary(ctx.Logger, db, chatbot.ID, result); err != nil {
		ctx.Logger.Error("Failed to refresh analytics summary",
			slog.Uint64("chatbotId", uint64(chatbot.ID)), slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	// The heuristics read the entire history on purpose: flow and insight
	// detection is not windowed, and action metadata rides on assistant turns
	messages, err := conversations.GetAllMessages(db, chatbot.APIKey)
	if err != nil {
		ctx.Logger.Error("Failed to load messages for insights", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.JSON(ChatbotAnalyticsResponse{
		Analytics:        result,
		Insights:         insights.AnalyzeIntentInsights(messages),
		ConversationFlow: insights.AnalyzeConversationFlow(messages),
	})
}
