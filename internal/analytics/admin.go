package analytics

import (
	"fmt"

	"gorm.io/gorm"

	"chatlytics/internal/timeframe"
)

// ChatbotLeaderboardEntry is one row of an admin leaderboard.
type ChatbotLeaderboardEntry struct {
	ChatbotID uint   `json:"chatbot_id"`
	Name      string `json:"name"`
	Count     int64  `json:"count"`
}

// ChatbotRateEntry is one row of the conversion-rate leaderboard.
type ChatbotRateEntry struct {
	ChatbotID      uint    `json:"chatbot_id"`
	Name           string  `json:"name"`
	ConversionRate float64 `json:"conversion_rate"`
}

// AdminAnalytics is the platform-wide dashboard payload.
type AdminAnalytics struct {
	TotalUsers                  int64                     `json:"total_users"`
	TotalChatbots               int64                     `json:"total_chatbots"`
	TotalConversations          int64                     `json:"total_conversations"`
	TotalMessages               int64                     `json:"total_messages"`
	CartActions                 int64                     `json:"cart_actions"`
	Purchases                   int64                     `json:"purchases"`
	AvgResponseTime             float64                   `json:"avg_response_time"`
	AvgConversionRate           float64                   `json:"avg_conversion_rate"`
	DailyStats                  []timeframe.DateStat      `json:"daily_stats"`
	IntentDistribution          []MetricCountResult       `json:"intent_distribution"`
	TopChatbotsByUsers          []ChatbotLeaderboardEntry `json:"top_chatbots_by_users"`
	TopChatbotsByConversionRate []ChatbotRateEntry        `json:"top_chatbots_by_conversion_rate"`
	TopProducts                 []MetricCountResult       `json:"top_products"`
	DetailedCartOperations      []CartOperationDetail     `json:"detailed_cart_operations"`
}

// GetAdminAnalytics computes platform-wide totals and leaderboards. Platform
// conversations are keyed by end-user session and API key combined, so the
// same user id under two chatbots counts twice. The latency and conversion
// averages come from the summary cache, not from a live scan.
func GetAdminAnalytics(db *gorm.DB, tf *timeframe.TimeFrame) (*AdminAnalytics, error) {
	result := &AdminAnalytics{}

	if err := db.Raw(`SELECT COUNT(*) FROM users`).Scan(&result.TotalUsers).Error; err != nil {
		return nil, fmt.Errorf("error counting users: %w", err)
	}
	if err := db.Raw(`SELECT COUNT(*) FROM chatbots`).Scan(&result.TotalChatbots).Error; err != nil {
		return nil, fmt.Errorf("error counting chatbots: %w", err)
	}

	from, to := tf.From.UTC(), tf.To.UTC()

	err := db.Raw(`
    SELECT COUNT(DISTINCT user_id || api_key) FROM conversations
    WHERE created_at BETWEEN ? AND ?
    `, from, to).Scan(&result.TotalConversations).Error
	if err != nil {
		return nil, fmt.Errorf("error counting platform conversations: %w", err)
	}

	err = db.Raw(`
    SELECT COUNT(*) FROM conversations
    WHERE created_at BETWEEN ? AND ?
    `, from, to).Scan(&result.TotalMessages).Error
	if err != nil {
		return nil, fmt.Errorf("error counting platform messages: %w", err)
	}

	err = db.Raw(`
    SELECT COUNT(*) FROM conversations
    WHERE created_at BETWEEN ? AND ?
    AND json_extract(metadata, '$.action.type') = 'cart'
    `, from, to).Scan(&result.CartActions).Error
	if err != nil {
		return nil, fmt.Errorf("error counting cart actions: %w", err)
	}

	err = db.Raw(`
    SELECT COUNT(*) FROM conversations
    WHERE created_at BETWEEN ? AND ?
    AND json_extract(metadata, '$.action.type') = 'purchase'
    `, from, to).Scan(&result.Purchases).Error
	if err != nil {
		return nil, fmt.Errorf("error counting purchases: %w", err)
	}

	var averages struct {
		AvgResponseTime   float64
		AvgConversionRate float64
	}
	err = db.Raw(`
    SELECT
        COALESCE(AVG(avg_response_time), 0) as avg_response_time,
        COALESCE(AVG(conversion_rate), 0) as avg_conversion_rate
    FROM analytics
    `).Scan(&averages).Error
	if err != nil {
		return nil, fmt.Errorf("error averaging summary cache: %w", err)
	}
	result.AvgResponseTime = averages.AvgResponseTime
	result.AvgConversionRate = averages.AvgConversionRate

	dailyStats, err := GetGlobalDailyConversationStats(db, tf)
	if err != nil {
		return nil, err
	}
	result.DailyStats = dailyStats

	err = db.Raw(`
    SELECT
        json_extract(metadata, '$.intentAnalysis.primaryIntent') as name,
        COUNT(*) as count
    FROM conversations
    WHERE created_at BETWEEN ? AND ?
    AND json_extract(metadata, '$.intentAnalysis.primaryIntent') IS NOT NULL
    GROUP BY name
    ORDER BY count DESC
    LIMIT ?
    `, from, to, DefaultTopLimit).Scan(&result.IntentDistribution).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching platform intent distribution: %w", err)
	}

	err = db.Raw(`
    SELECT
        c.id as chatbot_id,
        c.name as name,
        COUNT(DISTINCT v.user_id) as count
    FROM chatbots c
    LEFT JOIN conversations v
        ON v.api_key = c.api_key
        AND v.created_at BETWEEN ? AND ?
    GROUP BY c.id, c.name
    ORDER BY count DESC
    LIMIT ?
    `, from, to, LeaderboardLimit).Scan(&result.TopChatbotsByUsers).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching chatbot user leaderboard: %w", err)
	}

	err = db.Raw(`
    SELECT
        c.id as chatbot_id,
        c.name as name,
        a.conversion_rate as conversion_rate
    FROM analytics a
    JOIN chatbots c ON c.id = a.chatbot_id
    ORDER BY a.conversion_rate DESC
    LIMIT ?
    `, LeaderboardLimit).Scan(&result.TopChatbotsByConversionRate).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching conversion rate leaderboard: %w", err)
	}

	topProducts, err := getGlobalTopProducts(db, tf, DefaultTopLimit)
	if err != nil {
		return nil, err
	}
	result.TopProducts = topProducts

	err = db.Raw(`
    SELECT
        COALESCE(json_extract(metadata, '$.action.productName'), 'Unknown') as product_name,
        json_extract(metadata, '$.action.operation') as operation,
        COUNT(*) as count
    FROM conversations
    WHERE created_at BETWEEN ? AND ?
    AND json_extract(metadata, '$.action.type') = 'cart'
    AND json_extract(metadata, '$.action.operation') IS NOT NULL
    GROUP BY product_name, operation
    ORDER BY count DESC
    LIMIT ?
    `, from, to, DetailedCartOperationsLimit).Scan(&result.DetailedCartOperations).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching platform cart operations: %w", err)
	}

	return result, nil
}

// getGlobalTopProducts is the cross-tenant variant of the two-pass product
// resolution: grouping is platform-wide, and names resolve over the entire
// platform history.
func getGlobalTopProducts(db *gorm.DB, tf *timeframe.TimeFrame, limit int) ([]MetricCountResult, error) {
	var counted []struct {
		ProductID string
		Count     int64
	}

	err := db.Raw(`
    SELECT
        CAST(json_extract(metadata, '$.action.productId') AS TEXT) as product_id,
        COUNT(*) as count
    FROM conversations
    WHERE created_at BETWEEN ? AND ?
    AND json_extract(metadata, '$.action.type') = 'cart'
    AND json_extract(metadata, '$.action.operation') = 'add'
    AND json_extract(metadata, '$.action.productId') IS NOT NULL
    GROUP BY product_id
    ORDER BY count DESC
    LIMIT ?
    `, tf.From.UTC(), tf.To.UTC(), limit).Scan(&counted).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching platform top products: %w", err)
	}

	if len(counted) == 0 {
		return []MetricCountResult{}, nil
	}

	productIDs := make([]string, len(counted))
	for i, row := range counted {
		productIDs[i] = row.ProductID
	}

	var named []struct {
		ProductID   string
		ProductName string
	}
	err = db.Raw(`
    SELECT
        CAST(json_extract(metadata, '$.action.productId') AS TEXT) as product_id,
        json_extract(metadata, '$.action.productName') as product_name
    FROM conversations
    WHERE CAST(json_extract(metadata, '$.action.productId') AS TEXT) IN (?)
    AND json_extract(metadata, '$.action.productName') IS NOT NULL
    `, productIDs).Scan(&named).Error
	if err != nil {
		return nil, fmt.Errorf("error resolving platform product names: %w", err)
	}

	names := make(map[string]string, len(named))
	for _, row := range named {
		names[row.ProductID] = row.ProductName
	}

	results := make([]MetricCountResult, len(counted))
	for i, row := range counted {
		name, ok := names[row.ProductID]
		if !ok || name == "" {
			name = fmt.Sprintf("Product ID: %s", row.ProductID)
		}
		results[i] = MetricCountResult{Name: name, Count: row.Count}
	}

	return results, nil
}
