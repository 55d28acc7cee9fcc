package analytics

import (
	"fmt"

	"gorm.io/gorm"

	"chatlytics/internal/conversations"
)

// GetConversationCountInTimeFrame counts distinct end-user sessions. Every
// distinct user_id under the chatbot's API key is one conversation.
func GetConversationCountInTimeFrame(db *gorm.DB, params ChatbotScopedQueryParams) (int64, error) {
	var result struct {
		Count int64
	}

	query := `
    SELECT COUNT(DISTINCT user_id) as count
    FROM conversations
    WHERE api_key = ?
    AND created_at BETWEEN ? AND ?
    `

	err := db.Raw(query,
		params.APIKey,
		params.TimeFrame.From.UTC(),
		params.TimeFrame.To.UTC(),
	).Scan(&result).Error
	if err != nil {
		return 0, fmt.Errorf("error counting conversations: %w", err)
	}

	return result.Count, nil
}

// GetMessageCountInTimeFrame counts all message turns for the chatbot.
func GetMessageCountInTimeFrame(db *gorm.DB, params ChatbotScopedQueryParams) (int64, error) {
	var result struct {
		Count int64
	}

	query := `
    SELECT COUNT(*) as count
    FROM conversations
    WHERE api_key = ?
    AND created_at BETWEEN ? AND ?
    `

	err := db.Raw(query,
		params.APIKey,
		params.TimeFrame.From.UTC(),
		params.TimeFrame.To.UTC(),
	).Scan(&result).Error
	if err != nil {
		return 0, fmt.Errorf("error counting messages: %w", err)
	}

	return result.Count, nil
}

// GetAverageResponseTimeInTimeFrame calculates the mean latency between a
// user message and the assistant reply that directly follows it within the
// same end-user session. Pairs with any interposed message are excluded, so
// out-of-order client retries skip pairing rather than producing bogus
// latencies. Returns 0 when no pairs exist.
func GetAverageResponseTimeInTimeFrame(db *gorm.DB, params ChatbotScopedQueryParams) (float64, error) {
	var result struct {
		AverageSeconds float64
	}

	query := `
    SELECT COALESCE(AVG((JULIANDAY(a.created_at) - JULIANDAY(u.created_at)) * 86400), 0) as average_seconds
    FROM conversations u
    JOIN conversations a
        ON a.api_key = u.api_key
        AND a.user_id = u.user_id
        AND a.message_role = ?
        AND a.created_at > u.created_at
    WHERE u.api_key = ?
    AND u.message_role = ?
    AND u.created_at BETWEEN ? AND ?
    AND NOT EXISTS (
        SELECT 1
        FROM conversations m
        WHERE m.api_key = u.api_key
        AND m.user_id = u.user_id
        AND m.created_at > u.created_at
        AND m.created_at < a.created_at
    )
    `

	err := db.Raw(query,
		conversations.RoleAssistant,
		params.APIKey,
		conversations.RoleUser,
		params.TimeFrame.From.UTC(),
		params.TimeFrame.To.UTC(),
	).Scan(&result).Error
	if err != nil {
		return 0, fmt.Errorf("error calculating average response time: %w", err)
	}

	return result.AverageSeconds, nil
}

// GetConversionCountInTimeFrame counts cart-add actions. A conversion is any
// message whose metadata carries action.type=cart with operation=add.
func GetConversionCountInTimeFrame(db *gorm.DB, params ChatbotScopedQueryParams) (int64, error) {
	var result struct {
		Count int64
	}

	query := `
    SELECT COUNT(*) as count
    FROM conversations
    WHERE api_key = ?
    AND created_at BETWEEN ? AND ?
    AND json_extract(metadata, '$.action.type') = 'cart'
    AND json_extract(metadata, '$.action.operation') = 'add'
    `

	err := db.Raw(query,
		params.APIKey,
		params.TimeFrame.From.UTC(),
		params.TimeFrame.To.UTC(),
	).Scan(&result).Error
	if err != nil {
		return 0, fmt.Errorf("error counting conversions: %w", err)
	}

	return result.Count, nil
}

// ConversionRate derives the percentage of conversations that converted.
// Exactly 0 when there are no conversations.
func ConversionRate(conversions, conversationCount int64) float64 {
	if conversationCount == 0 {
		return 0
	}
	return float64(conversions) / float64(conversationCount) * 100
}
