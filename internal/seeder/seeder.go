package seeder

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"log/slog"

	"github.com/karloscodes/cartridge"
	"gorm.io/gorm"

	"chatlytics/internal/analytics"
	"chatlytics/internal/chatbots"
	"chatlytics/internal/conversations"
	"chatlytics/internal/timeframe"
	"chatlytics/internal/users"
)

// Seeder populates the database with demo users, chatbots and conversation
// history so that dashboards have something to show in development.
type Seeder struct {
	DBManager cartridge.DBManager
	Logger    *slog.Logger
	// Number of conversation sessions to generate across all chatbots
	SessionCount int
}

// NewSeeder creates a new seeder instance
func NewSeeder(dbManager cartridge.DBManager, logger *slog.Logger, sessionCount int) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		DBManager:    dbManager,
		Logger:       logger,
		SessionCount: sessionCount,
	}
}

// conversationTurn is one scripted message in a demo session
type conversationTurn struct {
	role     string
	content  string
	metadata map[string]interface{}
}

// Run executes the seeding process
func (s *Seeder) Run(ctx context.Context) error {
	start := time.Now()
	s.Logger.Info("Starting database seeding...", slog.Int("sessionCount", s.SessionCount))

	admin, err := s.seedUser("admin@example.com", users.RoleAdmin)
	if err != nil {
		return fmt.Errorf("failed to seed admin user: %w", err)
	}

	client, err := s.seedUser("client@example.com", users.RoleClient)
	if err != nil {
		return fmt.Errorf("failed to seed client user: %w", err)
	}

	bots, err := s.seedChatbots(admin.ID, client.ID)
	if err != nil {
		return fmt.Errorf("failed to seed chatbots: %w", err)
	}

	for _, chatbot := range bots {
		s.Logger.Info("Generating conversations for chatbot", slog.String("name", chatbot.Name))
		if err := s.generateConversations(ctx, chatbot); err != nil {
			return fmt.Errorf("failed to generate conversations for %s: %w", chatbot.Name, err)
		}
	}

	// Warm the analytics summary cache so admin averages are available
	// immediately after seeding
	if err := s.refreshSummaries(bots); err != nil {
		return fmt.Errorf("failed to refresh summaries: %w", err)
	}

	s.Logger.Info("Seeding completed successfully", slog.Duration("elapsed", time.Since(start)))
	return nil
}

// seedUser ensures a demo user with the given role exists
func (s *Seeder) seedUser(email, role string) (*users.User, error) {
	db := s.DBManager.GetConnection()
	user, err := users.FindByEmail(db, email)

	// If user exists, return it
	if err == nil {
		s.Logger.Info("User already exists", slog.String("email", user.Email))
		return user, nil
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check for existing user: %w", err)
	}

	s.Logger.Info("Creating user", slog.String("email", email), slog.String("role", role))
	if err := users.CreateUser(db, email, "password", role); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	newUser, err := users.FindByEmail(db, email)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch newly created user: %w", err)
	}

	s.Logger.Info("User created successfully", slog.Uint64("id", uint64(newUser.ID)))
	return newUser, nil
}

// seedChatbots creates a handful of chatbots split across the demo users
func (s *Seeder) seedChatbots(adminID, clientID uint) ([]*chatbots.Chatbot, error) {
	db := s.DBManager.GetConnection()

	definitions := []struct {
		name   string
		userID uint
	}{
		{"Storefront Assistant", clientID},
		{"Support Bot", clientID},
		{"Outlet Concierge", clientID},
		{"Internal QA Bot", adminID},
	}

	var list []*chatbots.Chatbot
	for _, def := range definitions {
		var chatbot chatbots.Chatbot
		if err := db.Where("name = ? AND user_id = ?", def.name, def.userID).First(&chatbot).Error; err == nil {
			s.Logger.Info("Chatbot already exists", slog.String("name", chatbot.Name))
			list = append(list, &chatbot)
			continue
		}

		chatbot = chatbots.Chatbot{
			UserID: def.userID,
			Name:   def.name,
		}
		if err := chatbots.CreateChatbot(s.Logger, db, &chatbot); err != nil {
			return nil, fmt.Errorf("failed to create chatbot %s: %w", def.name, err)
		}

		s.Logger.Info("Chatbot created successfully",
			slog.Uint64("id", uint64(chatbot.ID)),
			slog.String("name", chatbot.Name))
		list = append(list, &chatbot)
	}

	return list, nil
}

// generateConversations plays scripted shopper sessions against a chatbot
func (s *Seeder) generateConversations(ctx context.Context, chatbot *chatbots.Chatbot) error {
	db := s.DBManager.GetConnection()
	scripts := sessionScripts()

	numSessions := s.SessionCount / 4
	if numSessions < 10 {
		numSessions = 10
	}

	messagesCreated := 0
	for session := 0; session < numSessions; session++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		script := scripts[rand.IntN(len(scripts))]
		userID := fmt.Sprintf("visitor-%d", rand.IntN(200)+1)

		// Base timestamp for this session (random time in last 30 days)
		baseTime := time.Now().UTC().Add(-time.Duration(rand.IntN(30*24*60*60)) * time.Second)
		cumulative := time.Duration(0)

		for turnIndex, turn := range script {
			if turnIndex > 0 {
				// A few seconds to a minute between turns
				cumulative += time.Duration(rand.IntN(55)+5) * time.Second
			}

			input := &conversations.RecordMessageInput{
				APIKey:         chatbot.APIKey,
				UserID:         userID,
				MessageRole:    turn.role,
				MessageContent: turn.content,
				Metadata:       turn.metadata,
				Timestamp:      baseTime.Add(cumulative),
			}
			if _, err := conversations.RecordMessage(s.Logger, db, input); err != nil {
				s.Logger.Error("Failed to record message during seeding", slog.Any("error", err))
			} else {
				messagesCreated++
			}
		}
	}

	s.Logger.Info("Generated conversations for chatbot",
		slog.String("name", chatbot.Name),
		slog.Int("sessions", numSessions),
		slog.Int("totalMessages", messagesCreated))
	return nil
}

// refreshSummaries computes and stores the analytics summary for each chatbot
func (s *Seeder) refreshSummaries(bots []*chatbots.Chatbot) error {
	db := s.DBManager.GetConnection()

	tf, err := timeframe.NewTrailingDays(30, time.Now())
	if err != nil {
		return err
	}

	for _, chatbot := range bots {
		params := analytics.NewChatbotScopedQueryParams(tf, chatbot.APIKey)
		result, err := analytics.GetChatbotAnalytics(db, params)
		if err != nil {
			return fmt.Errorf("failed to compute analytics for %s: %w", chatbot.Name, err)
		}
		if err := analytics.UpsertSummary(s.Logger, db, chatbot.ID, result); err != nil {
			return fmt.Errorf("failed to store summary for %s: %w", chatbot.Name, err)
		}
	}

	s.Logger.Info("Analytics summaries refreshed", slog.Int("chatbots", len(bots)))
	return nil
}

// sessionScripts returns scripted shopper sessions. Each script is a coherent
// conversation with the metadata a real chat runtime would attach.
func sessionScripts() [][]conversationTurn {
	intentMeta := func(intent string) map[string]interface{} {
		return map[string]interface{}{
			"intentAnalysis": map[string]interface{}{
				"primaryIntent": intent,
				"confidence":    0.9,
			},
		}
	}
	cartMeta := func(operation, productID, productName string) map[string]interface{} {
		return map[string]interface{}{
			"action": map[string]interface{}{
				"type":        "cart",
				"operation":   operation,
				"productId":   productID,
				"productName": productName,
			},
		}
	}
	navMeta := func(pageName, path string) map[string]interface{} {
		return map[string]interface{}{
			"navigationAction": map[string]interface{}{
				"type":     "navigate",
				"pageName": pageName,
				"path":     path,
			},
		}
	}
	purchaseMeta := func(productID, productName string) map[string]interface{} {
		return map[string]interface{}{
			"action": map[string]interface{}{
				"type":        "purchase",
				"productId":   productID,
				"productName": productName,
			},
		}
	}

	return [][]conversationTurn{
		// Browse, ask, add to cart, buy
		{
			{role: "user", content: "Hello, I'm looking for running shoes"},
			{role: "assistant", content: "Hi! We have several running shoes in stock. Would you like to see our bestsellers?"},
			{role: "user", content: "Show me the Trail Runner X", metadata: intentMeta("product_view")},
			{role: "assistant", content: "Here is the Trail Runner X, a lightweight trail shoe for $89."},
			{role: "user", content: "Add it to my cart", metadata: cartMeta("add", "sku-101", "Trail Runner X")},
			{role: "assistant", content: "Added Trail Runner X to your cart."},
			{role: "user", content: "Take me to the checkout page", metadata: navMeta("Checkout", "/checkout")},
			{role: "assistant", content: "Taking you to checkout now.", metadata: purchaseMeta("sku-101", "Trail Runner X")},
		},
		// Question-heavy session, no purchase
		{
			{role: "user", content: "Hi there"},
			{role: "assistant", content: "Hello! How can I help you today?"},
			{role: "user", content: "What is the return policy?", metadata: intentMeta("question")},
			{role: "assistant", content: "You can return any item within 30 days for a full refund."},
			{role: "user", content: "How long does shipping take?", metadata: intentMeta("question")},
			{role: "assistant", content: "Standard shipping takes 3 to 5 business days."},
		},
		// Cart add then remove
		{
			{role: "user", content: "Tell me about the Canvas Tote", metadata: intentMeta("product_view")},
			{role: "assistant", content: "The Canvas Tote is a durable everyday bag for $35."},
			{role: "user", content: "I want to add this to cart", metadata: cartMeta("add", "sku-202", "Canvas Tote")},
			{role: "assistant", content: "Added Canvas Tote to your cart."},
			{role: "user", content: "Actually remove it from my cart", metadata: cartMeta("remove", "sku-202", "Canvas Tote")},
			{role: "assistant", content: "Removed Canvas Tote from your cart."},
		},
		// Navigation-only session
		{
			{role: "user", content: "Go to the sale section", metadata: navMeta("Sale", "/sale")},
			{role: "assistant", content: "Here is the sale section."},
			{role: "user", content: "Take me to new arrivals", metadata: navMeta("New Arrivals", "/new")},
			{role: "assistant", content: "Showing new arrivals."},
		},
		// Product browsing ending in an add without purchase
		{
			{role: "user", content: "Show me information about the Alpine Jacket", metadata: intentMeta("product_view")},
			{role: "assistant", content: "The Alpine Jacket is a waterproof shell for $149."},
			{role: "user", content: "Can you tell me if it comes in blue?", metadata: intentMeta("question")},
			{role: "assistant", content: "Yes, the Alpine Jacket is available in blue, red and black."},
			{role: "user", content: "Great, add it to cart", metadata: cartMeta("add", "sku-303", "Alpine Jacket")},
			{role: "assistant", content: "Added Alpine Jacket to your cart."},
		},
	}
}
