package analytics

import (
	"time"

	"chatlytics/internal/timeframe"
)

// Default result limits for the dashboard queries
const (
	DefaultTopLimit             = 10
	TopQueriesLimit             = 5
	DetailedCartOperationsLimit = 15
	LeaderboardLimit            = 5
)

// ChatbotScopedQueryParams contains common parameters for chatbot-scoped queries
type ChatbotScopedQueryParams struct {
	TimeFrame *timeframe.TimeFrame
	APIKey    string
	Limit     int // Number of records to return
}

// NewChatbotScopedQueryParams creates a new query params object with the specified time frame and API key
func NewChatbotScopedQueryParams(timeFrame *timeframe.TimeFrame, apiKey string) ChatbotScopedQueryParams {
	// Ensure timeFrame is not nil to prevent panics
	if timeFrame == nil {
		now := time.Now().UTC()
		timeFrame = &timeframe.TimeFrame{
			From: now.AddDate(0, 0, -30),
			To:   now,
			Days: 30,
		}
	}

	return ChatbotScopedQueryParams{
		TimeFrame: timeFrame,
		APIKey:    apiKey,
		Limit:     DefaultTopLimit,
	}
}

// WithLimit returns a copy of the params with a different result limit.
func (p ChatbotScopedQueryParams) WithLimit(limit int) ChatbotScopedQueryParams {
	p.Limit = limit
	return p
}
