package analytics

import (
	"sort"

	"log/slog"

	"gorm.io/gorm"

	"chatlytics/internal/chatbots"
	"chatlytics/internal/conversations"
	"chatlytics/internal/insights"
	"chatlytics/internal/timeframe"
)

// insightSampleThreshold bounds how many chatbots get the full heuristics
// pass during a fan-out. Above it only the first chatbot is analyzed; the
// statistical aggregates still cover every chatbot.
const insightSampleThreshold = 3

// ClientAnalytics is the merged dashboard payload across every chatbot a
// client owns.
type ClientAnalytics struct {
	TotalChatbots          int                   `json:"total_chatbots"`
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
	Insights               []insights.Insight    `json:"insights"`
	ConversationFlow       []insights.FlowStep   `json:"conversation_flow"`
}

// GetClientAnalytics fans the per-chatbot aggregation out over every chatbot
// the user owns and merges the results: counts sum, nonzero latencies
// average, the conversion rate is re-derived from the merged totals, and
// histograms merge by key. Each chatbot's summary cache row is refreshed as
// a side effect.
func GetClientAnalytics(logger *slog.Logger, db *gorm.DB, userID uint, tf *timeframe.TimeFrame) (*ClientAnalytics, error) {
	owned, err := chatbots.GetChatbotsForUser(db, userID)
	if err != nil {
		return nil, err
	}

	merged := &ClientAnalytics{
		TotalChatbots:          len(owned),
		DailyStats:             tf.BuildDailySeries(nil),
		TopQueries:             []MetricCountResult{},
		IntentDistribution:     []MetricCountResult{},
		CartOperations:         []MetricCountResult{},
		NavigationTargets:      []MetricCountResult{},
		TopProducts:            []MetricCountResult{},
		DetailedCartOperations: []CartOperationDetail{},
		Purchases:              []MetricCountResult{},
		Insights:               []insights.Insight{},
		ConversationFlow:       []insights.FlowStep{},
	}
	if len(owned) == 0 {
		return merged, nil
	}

	dailyTotals := make(map[string]int)
	var latencySum float64
	var latencyCount int

	queryCounts := make(map[string]int64)
	intentCounts := make(map[string]int64)
	cartOpCounts := make(map[string]int64)
	navCounts := make(map[string]int64)
	productCounts := make(map[string]int64)
	purchaseCounts := make(map[string]int64)
	type cartDetailKey struct {
		product, operation string
	}
	cartDetailCounts := make(map[cartDetailKey]int64)

	for _, chatbot := range owned {
		params := NewChatbotScopedQueryParams(tf, chatbot.APIKey)
		result, err := GetChatbotAnalytics(db, params)
		if err != nil {
			return nil, err
		}

		merged.ConversationCount += result.ConversationCount
		merged.MessageCount += result.MessageCount
		merged.Conversions += result.Conversions
		if result.AvgResponseTime > 0 {
			latencySum += result.AvgResponseTime
			latencyCount++
		}

		for _, point := range result.DailyStats {
			dailyTotals[point.Date] += point.Count
		}
		accumulateCounts(queryCounts, result.TopQueries)
		accumulateCounts(intentCounts, result.IntentDistribution)
		accumulateCounts(cartOpCounts, result.CartOperations)
		accumulateCounts(navCounts, result.NavigationTargets)
		accumulateCounts(productCounts, result.TopProducts)
		accumulateCounts(purchaseCounts, result.Purchases)
		for _, detail := range result.DetailedCartOperations {
			cartDetailCounts[cartDetailKey{detail.ProductName, detail.Operation}] += detail.Count
		}

		if err := UpsertSummary(logger, db, chatbot.ID, result); err != nil {
			return nil, err
		}
	}

	if latencyCount > 0 {
		merged.AvgResponseTime = latencySum / float64(latencyCount)
	}
	merged.ConversionRate = ConversionRate(merged.Conversions, merged.ConversationCount)

	grouped := make([]timeframe.DateStat, 0, len(dailyTotals))
	for date, count := range dailyTotals {
		grouped = append(grouped, timeframe.DateStat{Date: date, Count: count})
	}
	merged.DailyStats = tf.BuildDailySeries(grouped)

	merged.TopQueries = sortedCounts(queryCounts, TopQueriesLimit)
	merged.IntentDistribution = sortedCounts(intentCounts, DefaultTopLimit)
	merged.CartOperations = sortedCounts(cartOpCounts, DefaultTopLimit)
	merged.NavigationTargets = sortedCounts(navCounts, DefaultTopLimit)
	merged.TopProducts = sortedCounts(productCounts, DefaultTopLimit)
	merged.Purchases = sortedCounts(purchaseCounts, DefaultTopLimit)

	details := make([]CartOperationDetail, 0, len(cartDetailCounts))
	for key, count := range cartDetailCounts {
		details = append(details, CartOperationDetail{
			ProductName: key.product,
			Operation:   key.operation,
			Count:       count,
		})
	}
	sort.SliceStable(details, func(i, j int) bool {
		if details[i].Count != details[j].Count {
			return details[i].Count > details[j].Count
		}
		if details[i].ProductName != details[j].ProductName {
			return details[i].ProductName < details[j].ProductName
		}
		return details[i].Operation < details[j].Operation
	})
	if len(details) > DetailedCartOperationsLimit {
		details = details[:DetailedCartOperationsLimit]
	}
	merged.DetailedCartOperations = details

	merged.Insights, merged.ConversationFlow = sampleInsights(db, owned)

	return merged, nil
}

// sampleInsights applies the fan-out sampling rule: with few chatbots each
// one is analyzed and the first non-empty result wins, with many only the
// first chatbot is analyzed at all. The heuristics read each chatbot's
// entire history, not the reporting window.
func sampleInsights(db *gorm.DB, owned []chatbots.Chatbot) ([]insights.Insight, []insights.FlowStep) {
	candidates := owned
	if len(owned) > insightSampleThreshold {
		candidates = owned[:1]
	}

	for _, chatbot := range candidates {
		messages, err := conversations.GetAllMessages(db, chatbot.APIKey)
		if err != nil {
			continue
		}
		statements := insights.AnalyzeIntentInsights(messages)
		if len(statements) == 0 {
			continue
		}
		return statements, insights.AnalyzeConversationFlow(messages)
	}

	return []insights.Insight{}, []insights.FlowStep{}
}

func accumulateCounts(dst map[string]int64, src []MetricCountResult) {
	for _, item := range src {
		dst[item.Name] += item.Count
	}
}

func sortedCounts(counts map[string]int64, limit int) []MetricCountResult {
	results := make([]MetricCountResult, 0, len(counts))
	for name, count := range counts {
		results = append(results, MetricCountResult{Name: name, Count: count})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Count != results[j].Count {
			return results[i].Count > results[j].Count
		}
		return results[i].Name < results[j].Name
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}
