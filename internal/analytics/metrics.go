package analytics

import (
	"fmt"

	"gorm.io/gorm"

	"chatlytics/internal/conversations"
)

// GetTopQueriesInTimeFrame fetches the most repeated user messages.
func GetTopQueriesInTimeFrame(db *gorm.DB, params ChatbotScopedQueryParams) ([]MetricCountResult, error) {
	var results []MetricCountResult

	query := `
    SELECT
        message_content as name,
        COUNT(*) as count
    FROM conversations
    WHERE api_key = ?
    AND message_role = ?
    AND created_at BETWEEN ? AND ?
    GROUP BY message_content
    ORDER BY count DESC
    LIMIT ?
    `

	err := db.Raw(query,
		params.APIKey,
		conversations.RoleUser,
		params.TimeFrame.From.UTC(),
		params.TimeFrame.To.UTC(),
		params.Limit,
	).Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching top queries: %w", err)
	}

	return results, nil
}

// GetIntentDistributionInTimeFrame fetches the histogram of upstream-assigned
// primary intents. Messages without an intentAnalysis block are skipped.
func GetIntentDistributionInTimeFrame(db *gorm.DB, params ChatbotScopedQueryParams) ([]MetricCountResult, error) {
	var results []MetricCountResult

	query := `
    SELECT
        json_extract(metadata, '$.intentAnalysis.primaryIntent') as name,
        COUNT(*) as count
    FROM conversations
    WHERE api_key = ?
    AND created_at BETWEEN ? AND ?
    AND json_extract(metadata, '$.intentAnalysis.primaryIntent') IS NOT NULL
    GROUP BY name
    ORDER BY count DESC
    LIMIT ?
    `

	err := db.Raw(query,
		params.APIKey,
		params.TimeFrame.From.UTC(),
		params.TimeFrame.To.UTC(),
		params.Limit,
	).Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching intent distribution: %w", err)
	}

	return results, nil
}

// GetCartOperationsInTimeFrame fetches the histogram of cart operation kinds
// (add, remove, update) across all cart actions.
func GetCartOperationsInTimeFrame(db *gorm.DB, params ChatbotScopedQueryParams) ([]MetricCountResult, error) {
	var results []MetricCountResult

	query := `
    SELECT
        json_extract(metadata, '$.action.operation') as name,
        COUNT(*) as count
    FROM conversations
    WHERE api_key = ?
    AND created_at BETWEEN ? AND ?
    AND json_extract(metadata, '$.action.type') = 'cart'
    AND json_extract(metadata, '$.action.operation') IS NOT NULL
    GROUP BY name
    ORDER BY count DESC
    LIMIT ?
    `

	err := db.Raw(query,
		params.APIKey,
		params.TimeFrame.From.UTC(),
		params.TimeFrame.To.UTC(),
		params.Limit,
	).Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching cart operations: %w", err)
	}

	return results, nil
}

// GetNavigationTargetsInTimeFrame fetches where the chatbot sent its users.
// The target label falls through page name, then product name, on either the
// action or navigationAction block, ending at 'Unknown' so keys are never null.
func GetNavigationTargetsInTimeFrame(db *gorm.DB, params ChatbotScopedQueryParams) ([]MetricCountResult, error) {
	var results []MetricCountResult

	query := `
    SELECT
        COALESCE(
            json_extract(metadata, '$.action.pageName'),
            json_extract(metadata, '$.navigationAction.pageName'),
            json_extract(metadata, '$.action.productName'),
            json_extract(metadata, '$.navigationAction.productName'),
            'Unknown'
        ) as name,
        COUNT(*) as count
    FROM conversations
    WHERE api_key = ?
    AND created_at BETWEEN ? AND ?
    AND (
        json_extract(metadata, '$.action.type') = 'navigate'
        OR json_extract(metadata, '$.navigationAction') IS NOT NULL
    )
    GROUP BY name
    ORDER BY count DESC
    LIMIT ?
    `

	err := db.Raw(query,
		params.APIKey,
		params.TimeFrame.From.UTC(),
		params.TimeFrame.To.UTC(),
		params.Limit,
	).Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching navigation targets: %w", err)
	}

	return results, nil
}

// GetTopProductsInTimeFrame fetches the most cart-added products using
// two-pass name resolution: cart adds are grouped by product id within the
// window, then names are resolved over the chatbot's entire history so a
// product added this week under an id-only payload still picks up the name
// it carried months ago. Ids that never carried a name get a
// 'Product ID: <id>' label.
func GetTopProductsInTimeFrame(db *gorm.DB, params ChatbotScopedQueryParams) ([]MetricCountResult, error) {
	var counted []struct {
		ProductID string
		Count     int64
	}

	countQuery := `
    SELECT
        CAST(json_extract(metadata, '$.action.productId') AS TEXT) as product_id,
        COUNT(*) as count
    FROM conversations
    WHERE api_key = ?
    AND created_at BETWEEN ? AND ?
    AND json_extract(metadata, '$.action.type') = 'cart'
    AND json_extract(metadata, '$.action.operation') = 'add'
    AND json_extract(metadata, '$.action.productId') IS NOT NULL
    GROUP BY product_id
    ORDER BY count DESC
    LIMIT ?
    `

	err := db.Raw(countQuery,
		params.APIKey,
		params.TimeFrame.From.UTC(),
		params.TimeFrame.To.UTC(),
		params.Limit,
	).Scan(&counted).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching top products: %w", err)
	}

	if len(counted) == 0 {
		return []MetricCountResult{}, nil
	}

	productIDs := make([]string, len(counted))
	for i, row := range counted {
		productIDs[i] = row.ProductID
	}

	// Name lookup deliberately ignores the window
	var named []struct {
		ProductID   string
		ProductName string
	}

	nameQuery := `
    SELECT
        CAST(json_extract(metadata, '$.action.productId') AS TEXT) as product_id,
        json_extract(metadata, '$.action.productName') as product_name
    FROM conversations
    WHERE api_key = ?
    AND CAST(json_extract(metadata, '$.action.productId') AS TEXT) IN (?)
    AND json_extract(metadata, '$.action.productName') IS NOT NULL
    `

	err = db.Raw(nameQuery, params.APIKey, productIDs).Scan(&named).Error
	if err != nil {
		return nil, fmt.Errorf("error resolving product names: %w", err)
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

// GetDetailedCartOperationsInTimeFrame fetches cart activity broken down by
// product and operation.
func GetDetailedCartOperationsInTimeFrame(db *gorm.DB, params ChatbotScopedQueryParams) ([]CartOperationDetail, error) {
	var results []CartOperationDetail

	query := `
    SELECT
        COALESCE(json_extract(metadata, '$.action.productName'), 'Unknown') as product_name,
        json_extract(metadata, '$.action.operation') as operation,
        COUNT(*) as count
    FROM conversations
    WHERE api_key = ?
    AND created_at BETWEEN ? AND ?
    AND json_extract(metadata, '$.action.type') = 'cart'
    AND json_extract(metadata, '$.action.operation') IS NOT NULL
    GROUP BY product_name, operation
    ORDER BY count DESC
    LIMIT ?
    `

	err := db.Raw(query,
		params.APIKey,
		params.TimeFrame.From.UTC(),
		params.TimeFrame.To.UTC(),
		params.Limit,
	).Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching detailed cart operations: %w", err)
	}

	return results, nil
}

// GetCompletedPurchasesInTimeFrame fetches completed purchase actions grouped
// by product.
func GetCompletedPurchasesInTimeFrame(db *gorm.DB, params ChatbotScopedQueryParams) ([]MetricCountResult, error) {
	var results []MetricCountResult

	query := `
    SELECT
        COALESCE(
            json_extract(metadata, '$.action.productName'),
            'Product ID: ' || CAST(json_extract(metadata, '$.action.productId') AS TEXT),
            'Unknown'
        ) as name,
        COUNT(*) as count
    FROM conversations
    WHERE api_key = ?
    AND created_at BETWEEN ? AND ?
    AND json_extract(metadata, '$.action.type') = 'purchase'
    GROUP BY name
    ORDER BY count DESC
    LIMIT ?
    `

	err := db.Raw(query,
		params.APIKey,
		params.TimeFrame.From.UTC(),
		params.TimeFrame.To.UTC(),
		params.Limit,
	).Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching completed purchases: %w", err)
	}

	return results, nil
}
