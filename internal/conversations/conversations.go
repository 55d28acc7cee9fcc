// Package conversations holds the append-only conversation event log that all
// analytics are computed from. Each row is a single message turn keyed by the
// chatbot API key and the end-user session that produced it.
package conversations

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Conversation is one message turn in the event log. Rows are append-only;
// analytics never mutates them.
type Conversation struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	APIKey         string    `gorm:"index:idx_conversations_api_key_created_at;not null" json:"api_key"`
	UserID         string    `gorm:"not null" json:"user_id"`
	MessageRole    string    `gorm:"not null" json:"message_role"`
	MessageContent string    `gorm:"not null" json:"message_content"`
	Metadata       string    `gorm:"type:text" json:"metadata"`
	CreatedAt      time.Time `gorm:"index:idx_conversations_api_key_created_at" json:"created_at"`
}

// ActionDetail is the structured action a chatbot attached to a message,
// e.g. a cart mutation or a navigation command.
type ActionDetail struct {
	Type        string `json:"type"`
	Operation   string `json:"operation"`
	ProductName string `json:"productName"`
	PageName    string `json:"pageName"`
	Path        string `json:"path"`
}

// IntentAnalysis carries the intent the chatbot's own model assigned upstream.
type IntentAnalysis struct {
	PrimaryIntent string  `json:"primaryIntent"`
	Confidence    float64 `json:"confidence"`
	Reasoning     string  `json:"reasoning"`
}

// AnalysisEntities holds the entities an upstream NLU pass extracted.
type AnalysisEntities struct {
	Product string `json:"product"`
}

// Analysis is the looser NLU result block some chat runtimes attach instead
// of (or alongside) intentAnalysis.
type Analysis struct {
	UserIntents []string          `json:"user_intents"`
	Entities    *AnalysisEntities `json:"entities"`
}

// Metadata is the parsed JSON bag stored alongside a message. All fields are
// optional; chat runtimes attach whatever their pipeline produced.
type Metadata struct {
	IntentAnalysis   *IntentAnalysis `json:"intentAnalysis"`
	Analysis         *Analysis       `json:"analysis"`
	Action           *ActionDetail   `json:"action"`
	NavigationAction *ActionDetail   `json:"navigationAction"`
}

// ParseMetadata decodes the metadata column. Empty or malformed JSON yields
// nil so callers can treat messages without metadata uniformly.
func ParseMetadata(raw string) *Metadata {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "{}" || trimmed == "null" {
		return nil
	}

	var meta Metadata
	if err := json.Unmarshal([]byte(trimmed), &meta); err != nil {
		return nil
	}
	return &meta
}

// RecordMessageInput is the payload accepted by the public ingestion API.
type RecordMessageInput struct {
	APIKey         string
	UserID         string
	MessageRole    string
	MessageContent string
	Metadata       map[string]interface{}
	Timestamp      time.Time
}

// ErrInvalidRole is returned when a message role is neither user nor assistant.
var ErrInvalidRole = errors.New("message role must be user or assistant")

// RecordMessage validates and appends a message turn to the event log.
func RecordMessage(logger *slog.Logger, db *gorm.DB, input *RecordMessageInput) (*Conversation, error) {
	if input.MessageRole != RoleUser && input.MessageRole != RoleAssistant {
		return nil, ErrInvalidRole
	}
	if input.UserID == "" {
		return nil, errors.New("userId cannot be empty")
	}
	if input.MessageContent == "" {
		return nil, errors.New("messageContent cannot be empty")
	}

	timestamp := input.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	row := &Conversation{
		APIKey:         input.APIKey,
		UserID:         input.UserID,
		MessageRole:    input.MessageRole,
		MessageContent: input.MessageContent,
		Metadata:       metadataToJSON(input.Metadata),
		CreatedAt:      timestamp.UTC(),
	}

	err := sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.Create(row).Error
	})
	if err != nil {
		return nil, fmt.Errorf("error recording conversation message: %w", err)
	}

	return row, nil
}

// GetAllMessages fetches every message for one chatbot in chronological
// order, both roles, entire history. The insight heuristics operate on this
// slice: action metadata often rides on assistant turns.
func GetAllMessages(db *gorm.DB, apiKey string) ([]Conversation, error) {
	var messages []Conversation
	err := db.Where("api_key = ?", apiKey).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching messages: %w", err)
	}
	return messages, nil
}

// GetHistory fetches the full message history for one end-user session.
func GetHistory(db *gorm.DB, apiKey, userID string) ([]Conversation, error) {
	var messages []Conversation
	err := db.Where("api_key = ? AND user_id = ?", apiKey, userID).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching conversation history: %w", err)
	}
	return messages, nil
}

func metadataToJSON(metadata map[string]interface{}) string {
	if len(metadata) == 0 {
		return ""
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return ""
	}
	return string(data)
}
