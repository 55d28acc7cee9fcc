package chatbots

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"log/slog"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

// ChatbotNotFoundError represents an error when a chatbot is not found
type ChatbotNotFoundError struct {
	ID uint
}

func (e *ChatbotNotFoundError) Error() string {
	return fmt.Sprintf("chatbot not found: %d", e.ID)
}

// NewChatbotNotFoundError creates a new ChatbotNotFoundError
func NewChatbotNotFoundError(id uint) *ChatbotNotFoundError {
	return &ChatbotNotFoundError{ID: id}
}

// Chatbot represents a registered chatbot. The APIKey joins it to the
// conversation event log.
type Chatbot struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	APIKey    string    `gorm:"uniqueIndex;not null" json:"api_key"`
	Name      string    `gorm:"not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// GenerateAPIKey produces a random 32-hex-char API key.
func GenerateAPIKey() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate api key: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// GetChatbotByID retrieves a chatbot by its ID
func GetChatbotByID(db *gorm.DB, id uint) (*Chatbot, error) {
	var chatbot Chatbot
	if err := db.First(&chatbot, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewChatbotNotFoundError(id)
		}
		return nil, fmt.Errorf("unexpected error querying chatbot: %w", err)
	}
	return &chatbot, nil
}

// GetChatbotByAPIKey retrieves a chatbot by its API key
func GetChatbotByAPIKey(db *gorm.DB, apiKey string) (*Chatbot, error) {
	var chatbot Chatbot
	if err := db.Where("api_key = ?", apiKey).First(&chatbot).Error; err != nil {
		return nil, err
	}
	return &chatbot, nil
}

// GetChatbotsForUser retrieves all chatbots owned by a user
func GetChatbotsForUser(db *gorm.DB, userID uint) ([]Chatbot, error) {
	var chatbots []Chatbot
	if err := db.Where("user_id = ?", userID).Order("id ASC").Find(&chatbots).Error; err != nil {
		return nil, fmt.Errorf("failed to get chatbots for user: %w", err)
	}
	return chatbots, nil
}

// GetAllChatbots retrieves all registered chatbots
func GetAllChatbots(db *gorm.DB) ([]Chatbot, error) {
	var chatbots []Chatbot
	if err := db.Order("id ASC").Find(&chatbots).Error; err != nil {
		return nil, fmt.Errorf("failed to get chatbots: %w", err)
	}
	return chatbots, nil
}

// CountChatbots returns the total number of registered chatbots
func CountChatbots(db *gorm.DB) (int64, error) {
	var count int64
	if err := db.Model(&Chatbot{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count chatbots: %w", err)
	}
	return count, nil
}

// ValidateOwnership reports whether the chatbot belongs to the given user.
func ValidateOwnership(db *gorm.DB, chatbotID, userID uint) (bool, error) {
	var count int64
	err := db.Model(&Chatbot{}).
		Where("id = ? AND user_id = ?", chatbotID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to validate chatbot ownership: %w", err)
	}
	return count > 0, nil
}

// CreateChatbot creates a new chatbot, generating an API key if none is set.
func CreateChatbot(logger *slog.Logger, db *gorm.DB, chatbot *Chatbot) error {
	if chatbot.Name == "" {
		return errors.New("chatbot name cannot be empty")
	}
	if chatbot.UserID == 0 {
		return errors.New("chatbot must have an owner")
	}

	if chatbot.APIKey == "" {
		apiKey, err := GenerateAPIKey()
		if err != nil {
			return err
		}
		chatbot.APIKey = apiKey
	}
	chatbot.CreatedAt = time.Now().UTC()

	return sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.Create(chatbot).Error
	})
}

// RegenerateAPIKey replaces a chatbot's API key and returns the new key.
// Conversation rows recorded under the old key stay attributed to it.
func RegenerateAPIKey(logger *slog.Logger, db *gorm.DB, chatbotID uint) (string, error) {
	chatbot, err := GetChatbotByID(db, chatbotID)
	if err != nil {
		return "", err
	}

	apiKey, err := GenerateAPIKey()
	if err != nil {
		return "", err
	}

	err = sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.Model(chatbot).Update("api_key", apiKey).Error
	})
	if err != nil {
		return "", fmt.Errorf("failed to regenerate api key: %w", err)
	}

	return apiKey, nil
}
