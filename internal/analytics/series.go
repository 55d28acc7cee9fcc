package analytics

import (
	"fmt"

	"gorm.io/gorm"

	"chatlytics/internal/timeframe"
)

// GetDailyConversationStats returns one point per day of the window with the
// number of distinct end-user sessions active that day. Days without traffic
// are zero-filled.
func GetDailyConversationStats(db *gorm.DB, params ChatbotScopedQueryParams) ([]timeframe.DateStat, error) {
	var grouped []timeframe.DateStat

	query := fmt.Sprintf(`
    SELECT %s as date, COUNT(DISTINCT user_id) as count
    FROM conversations
    WHERE api_key = ?
    AND created_at BETWEEN ? AND ?
    GROUP BY date
    ORDER BY date ASC
    `, timeframe.SQLiteDayExpression("created_at"))

	err := db.Raw(query,
		params.APIKey,
		params.TimeFrame.From.UTC(),
		params.TimeFrame.To.UTC(),
	).Scan(&grouped).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching daily conversation stats: %w", err)
	}

	return params.TimeFrame.BuildDailySeries(grouped), nil
}

// GetGlobalDailyConversationStats is the admin variant across all chatbots.
// A conversation is keyed by end-user session and API key combined so the
// same user id under two chatbots counts twice.
func GetGlobalDailyConversationStats(db *gorm.DB, tf *timeframe.TimeFrame) ([]timeframe.DateStat, error) {
	var grouped []timeframe.DateStat

	query := fmt.Sprintf(`
    SELECT %s as date, COUNT(DISTINCT user_id || api_key) as count
    FROM conversations
    WHERE created_at BETWEEN ? AND ?
    GROUP BY date
    ORDER BY date ASC
    `, timeframe.SQLiteDayExpression("created_at"))

	err := db.Raw(query, tf.From.UTC(), tf.To.UTC()).Scan(&grouped).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching global daily conversation stats: %w", err)
	}

	return tf.BuildDailySeries(grouped), nil
}
