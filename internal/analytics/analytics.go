// Package analytics computes dashboard aggregates over the conversation
// event log and maintains the denormalized per-chatbot summary cache.
//
// The package is organized into focused modules:
//   - analytics.go: summary cache model and shared result types
//   - totals.go: scalar aggregates (conversations, messages, latency, conversions)
//   - series.go: daily time series
//   - metrics.go: top-N histogram queries over message metadata
//   - aggregator.go: the sequential per-chatbot aggregation entry point
//   - client.go: per-owner fan-out with histogram merging
//   - admin.go: platform-wide totals and leaderboards
package analytics

import (
	"time"
)

// MetricCountResult represents a generic key-count pair for query results
type MetricCountResult struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// CartOperationDetail is one row of the detailed cart-operation breakdown.
type CartOperationDetail struct {
	ProductName string `json:"product_name"`
	Operation   string `json:"operation"`
	Count       int64  `json:"count"`
}

// Summary is the denormalized per-chatbot analytics cache. One row per
// chatbot, upserted after every aggregation run. It is never consulted to
// short-circuit a live aggregation; only the admin averages read it.
type Summary struct {
	ID                uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ChatbotID         uint      `gorm:"uniqueIndex;not null" json:"chatbot_id"`
	ConversationCount int64     `gorm:"not null;default:0" json:"conversation_count"`
	MessageCount      int64     `gorm:"not null;default:0" json:"message_count"`
	AvgResponseTime   float64   `gorm:"not null;default:0" json:"avg_response_time"`
	ConversionRate    float64   `gorm:"not null;default:0" json:"conversion_rate"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TableName keeps the summary cache under the analytics table.
func (Summary) TableName() string {
	return "analytics"
}
