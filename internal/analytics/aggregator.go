package analytics

import (
	"fmt"
	"time"

	"log/slog"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"chatlytics/internal/timeframe"
)

// ChatbotAnalytics is the full dashboard payload for one chatbot over one
// time window.
type ChatbotAnalytics struct {
	ConversationCount      int64                 `json:"conversation_count"`
	MessageCount           int64                 `json:"message_count"`
	AvgResponseTime        float64               `json:"avg_response_time"`
	Conversions            int64                 `json:"conversions"`
	ConversionRate         float64               `json:"conversion_rate"`
	DailyStats             []timeframe.DateStat  `json:"daily_stats"`
	TopQueries             []MetricCountResult   `json:"top_queries"`
	IntentDistribution     []MetricCountResult   `json:"intent_distribution"`
	CartOperations         []MetricCountResult   `json:"cart_operations"`
	NavigationTargets      []MetricCountResult   `json:"navigation_targets"`
	TopProducts            []MetricCountResult   `json:"top_products"`
	DetailedCartOperations []CartOperationDetail `json:"detailed_cart_operations"`
	Purchases              []MetricCountResult   `json:"purchases"`
}

// GetChatbotAnalytics runs the full per-chatbot aggregation. Queries run
// strictly sequentially; SQLite under WAL serves them fine and the single
// connection in tests stays deterministic. The result is a pure function of
// the event log and the window.
func GetChatbotAnalytics(db *gorm.DB, params ChatbotScopedQueryParams) (*ChatbotAnalytics, error) {
	conversationCount, err := GetConversationCountInTimeFrame(db, params)
	if err != nil {
		return nil, err
	}

	messageCount, err := GetMessageCountInTimeFrame(db, params)
	if err != nil {
		return nil, err
	}

	avgResponseTime, err := GetAverageResponseTimeInTimeFrame(db, params)
	if err != nil {
		return nil, err
	}

	conversions, err := GetConversionCountInTimeFrame(db, params)
	if err != nil {
		return nil, err
	}

	dailyStats, err := GetDailyConversationStats(db, params)
	if err != nil {
		return nil, err
	}

	topQueries, err := GetTopQueriesInTimeFrame(db, params.WithLimit(TopQueriesLimit))
	if err != nil {
		return nil, err
	}

	intents, err := GetIntentDistributionInTimeFrame(db, params.WithLimit(DefaultTopLimit))
	if err != nil {
		return nil, err
	}

	cartOps, err := GetCartOperationsInTimeFrame(db, params.WithLimit(DefaultTopLimit))
	if err != nil {
		return nil, err
	}

	navigationTargets, err := GetNavigationTargetsInTimeFrame(db, params.WithLimit(DefaultTopLimit))
	if err != nil {
		return nil, err
	}

	topProducts, err := GetTopProductsInTimeFrame(db, params.WithLimit(DefaultTopLimit))
	if err != nil {
		return nil, err
	}

	detailedCartOps, err := GetDetailedCartOperationsInTimeFrame(db, params.WithLimit(DetailedCartOperationsLimit))
	if err != nil {
		return nil, err
	}

	purchases, err := GetCompletedPurchasesInTimeFrame(db, params.WithLimit(DefaultTopLimit))
	if err != nil {
		return nil, err
	}

	return &ChatbotAnalytics{
		ConversationCount:      conversationCount,
		MessageCount:           messageCount,
		AvgResponseTime:        avgResponseTime,
		Conversions:            conversions,
		ConversionRate:         ConversionRate(conversions, conversationCount),
		DailyStats:             dailyStats,
		TopQueries:             topQueries,
		IntentDistribution:     intents,
		CartOperations:         cartOps,
		NavigationTargets:      navigationTargets,
		TopProducts:            topProducts,
		DetailedCartOperations: detailedCartOps,
		Purchases:              purchases,
	}, nil
}

// UpsertSummary writes the aggregation result into the per-chatbot summary
// cache. Running it twice over an unchanged log leaves the row identical
// except for updated_at.
func UpsertSummary(logger *slog.Logger, db *gorm.DB, chatbotID uint, result *ChatbotAnalytics) error {
	err := sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.Exec(`
            INSERT INTO analytics (chatbot_id, conversation_count, message_count, avg_response_time, conversion_rate, updated_at)
            VALUES (?, ?, ?, ?, ?, ?)
            ON CONFLICT(chatbot_id) DO UPDATE SET
                conversation_count = excluded.conversation_count,
                message_count = excluded.message_count,
                avg_response_time = excluded.avg_response_time,
                conversion_rate = excluded.conversion_rate,
                updated_at = excluded.updated_at
        `, chatbotID, result.ConversationCount, result.MessageCount,
			result.AvgResponseTime, result.ConversionRate, time.Now().UTC()).Error
	})
	if err != nil {
		return fmt.Errorf("error upserting analytics summary: %w", err)
	}
	return nil
}
