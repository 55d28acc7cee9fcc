package analytics_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatlytics/internal/analytics"
	"chatlytics/internal/conversations"
	"chatlytics/internal/testsupport"
)

func TestGetTopQueriesInTimeFrame(t *testing.T) {
	dbManager, _, chatbot := testsupport.SetupTestDBManagerWithChatbot(t, "Queries Bot")
	db := dbManager.GetConnection()
	tf := setupTimeFrame(t)
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		testsupport.CreateTestMessage(t, db, chatbot.APIKey, "visitor-1", conversations.RoleUser, "what is the return policy?", "", now.Add(-time.Duration(i+1)*time.Minute))
	}
	testsupport.CreateTestMessage(t, db, chatbot.APIKey, "visitor-2", conversations.RoleUser, "do you ship to Canada?", "", now.Add(-time.Hour))
	// Assistant replies never count as queries
	testsupport.CreateTestMessage(t, db, chatbot.APIKey, "visitor-1", conversations.RoleAssistant, "what is the return policy?", "", now.Add(-time.Hour))

	params := analytics.NewChatbotScopedQueryParams(tf, chatbot.APIKey)
	results, err := analytics.GetTopQueriesInTimeFrame(db, params.WithLimit(analytics.TopQueriesLimit))
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "what is the return policy?", results[0].Name)
	assert.Equal(t, int64(3), results[0].Count)
	assert.Equal(t, "do you ship to Canada?", results[1].Name)
	assert.Equal(t, int64(1), results[1].Count)
}

func TestGetIntentDistributionInTimeFrame(t *testing.T) {
	dbManager, _, chatbot := testsupport.SetupTestDBManagerWithChatbot(t, "Intent Bot")
	db := dbManager.GetConnection()
	tf := setupTimeFrame(t)
	now := time.Now().UTC()

	cartIntent := `{"intentAnalysis":{"primaryIntent":"cart_add","confidence":0.9}}`
	questionIntent := `{"intentAnalysis":{"primaryIntent":"question","confidence":0.8}}`

	testsupport.CreateTestMessage(t, db, chatbot.APIKey, "visitor-1", conversations.RoleUser, "add it", cartIntent, now.Add(-time.Hour))
	testsupport.CreateTestMessage(t, db, chatbot.APIKey, "visitor-1", conversations.RoleUser, "add more", cartIntent, now.Add(-30*time.Minute))
	testsupport.CreateTestMessage(t, db, chatbot.APIKey, "visitor-2", conversations.RoleUser, "how much?", questionIntent, now.Add(-20*time.Minute))
	// Messages without intent metadata are skipped entirely
	testsupport.CreateTestMessage(t, db, chatbot.APIKey, "visitor-2", conversations.RoleUser, "thanks", "", now.Add(-10*time.Minute))

	params := analytics.NewChatbotScopedQueryParams(tf, chatbot.APIKey)
	results, err := analytics.GetIntentDistributionInTimeFrame(db, params)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "cart_add", results[0].Name)
	assert.Equal(t, int64(2), results[0].Count)
	assert.Equal(t, "question", results[1].Name)
	assert.Equal(t, int64(1), results[1].Count)
}

func TestGetNavigationTargetsInTimeFrame(t *testing.T) {
	dbManager, _, chatbot := testsupport.SetupTestDBManagerWithChatbot(t, "Nav Bot")
	db := dbManager.GetConnection()
	tf := setupTimeFrame(t)
	now := time.Now().UTC()

	pageNav := `{"navigationAction":{"type":"navigate","pageName":"Checkout","path":"/checkout"}}`
	productNav := `{"action":{"type":"navigate","productName":"Trail Runner X"}}`
	bareNav := `{"navigationAction":{"type":"navigate"}}`

	testsupport.CreateTestMessage(t, db, chatbot.APIKey, "visitor-1", conversations.RoleUser, "go to checkout", pageNav, now.Add(-time.Hour))
	testsupport.CreateTestMessage(t, db, chatbot.APIKey, "visitor-1", conversations.RoleUser, "go to checkout", pageNav, now.Add(-50*time.Minute))
	testsupport.CreateTestMessage(t, db, chatbot.APIKey, "visitor-2", conversations.RoleUser, "show that shoe", productNav, now.Add(-40*time.Minute))
	testsupport.CreateTestMessage(t, db, chatbot.APIKey, "visitor-2", conversations.RoleUser, "go somewhere", bareNav, now.Add(-30*time.Minute))

	params := analytics.NewChatbotScopedQueryParams(tf, chatbot.APIKey)
	results, err := analytics.GetNavigationTargetsInTimeFrame(db, params)
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, "Checkout", results[0].Name)
	assert.Equal(t, int64(2), results[0].Count)

	names := map[string]int64{}
	for _, r := range results {
		names[r.Name] = r.Count
	}
	assert.Equal(t, int64(1), names["Trail Runner X"])
	// Target metadata with no usable label falls back to Unknown
	assert.Equal(t, int64(1), names["Unknown"])
}

func TestGetTopProductsResolvesNamesAcrossHistory(t *testing.T) {
	dbManager, _, chatbot := testsupport.SetupTestDBManagerWithChatbot(t, "Products Bot")
	db := dbManager.GetConnection()
	tf := setupTimeFrame(t)
	now := time.Now().UTC()

	// The name was only ever recorded outside the window
	oldNamed := `{"action":{"type":"cart","operation":"add","productId":"sku-1","productName":"Trail Runner X"}}`
	testsupport.CreateTestMessage(t, db, chatbot.APIKey, "visitor-0", conversations.RoleUser, "add it", oldNamed, now.AddDate(0, 0, -60))

	// In-window adds carry only the id
	idOnly := `{"action":{"type":"cart","operation":"add","productId":"sku-1"}}`
	testsupport.CreateTestMessage(t, db, chatbot.APIKey, "visitor-1", conversations.RoleUser, "add it", idOnly, now.Add(-time.Hour))
	testsupport.CreateTestMessage(t, db, chatbot.APIKey, "visitor-2", conversations.RoleUser, "add it", idOnly, now.Add(-30*time.Minute))

	// A product whose name never appears anywhere
	anonymous := `{"action":{"type":"cart","operation":"add","productId":"sku-9"}}`
	testsupport.CreateTestMessage(t, db, chatbot.APIKey, "visitor-3", conversations.RoleUser, "add that", anonymous, now.Add(-20*time.Minute))

	params := analytics.NewChatbotScopedQueryParams(tf, chatbot.APIKey)
	results, err := analytics.GetTopProductsInTimeFrame(db, params)
	require.NoError(t, err)

	require.Len(t, results, 2)
	// Window-scoped count (2), history-resolved name
	assert.Equal(t, "Trail Runner X", results[0].Name)
	assert.Equal(t, int64(2), results[0].Count)
	assert.Equal(t, "Product ID: sku-9", results[1].Name)
	assert.Equal(t, int64(1), results[1].Count)
}

func TestGetTopProductsNumericIDs(t *testing.T) {
	dbManager, _, chatbot := testsupport.SetupTestDBManagerWithChatbot(t, "Numeric Bot")
	db := dbManager.GetConnection()
	tf := setupTimeFrame(t)
	now := time.Now().UTC()

	// productId arrives as a JSON number from some runtimes
	numeric := `{"action":{"type":"cart","operation":"add","productId":42,"productName":"Canvas Tote"}}`
	testsupport.CreateTestMessage(t, db, chatbot.APIKey, "visitor-1", conversations.RoleUser, "add it", numeric, now.Add(-time.Hour))

	params := analytics.NewChatbotScopedQueryParams(tf, chatbot.APIKey)
	results, err := analytics.GetTopProductsInTimeFrame(db, params)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "Canvas Tote", results[0].Name)
	assert.Equal(t, int64(1), results[0].Count)
}

func TestGetTopProductsEmpty(t *testing.T) {
	dbManager, _, chatbot := testsupport.SetupTestDBManagerWithChatbot(t, "No Products Bot")
	db := dbManager.GetConnection()

	params := analytics.NewChatbotScopedQueryParams(setupTimeFrame(t), chatbot.APIKey)
	results, err := analytics.GetTopProductsInTimeFrame(db, params)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestGetDetailedCartOperationsInTimeFrame(t *testing.T) {
	dbManager, _, chatbot := testsupport.SetupTestDBManagerWithChatbot(t, "Cart Detail Bot")
	db := dbManager.GetConnection()
	tf := setupTimeFrame(t)
	now := time.Now().UTC()

	addTote := `{"action":{"type":"cart","operation":"add","productId":"sku-2","productName":"Canvas Tote"}}`
	removeTote := `{"action":{"type":"cart","operation":"remove","productId":"sku-2","productName":"Canvas Tote"}}`
	addNameless := `{"action":{"type":"cart","operation":"add","productId":"sku-3"}}`

	testsupport.CreateTestMessage(t, db, chatbot.APIKey, "visitor-1", conversations.RoleUser, "add", addTote, now.Add(-time.Hour))
	testsupport.CreateTestMessage(t, db, chatbot.APIKey, "visitor-2", conversations.RoleUser, "add", addTote, now.Add(-50*time.Minute))
	testsupport.CreateTestMessage(t, db, chatbot.APIKey, "visitor-1", conversations.RoleUser, "remove", removeTote, now.Add(-40*time.Minute))
	testsupport.CreateTestMessage(t, db, chatbot.APIKey, "visitor-3", conversations.RoleUser, "add", addNameless, now.Add(-30*time.Minute))

	params := analytics.NewChatbotScopedQueryParams(tf, chatbot.APIKey)
	results, err := analytics.GetDetailedCartOperationsInTimeFrame(db, params.WithLimit(analytics.DetailedCartOperationsLimit))
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, "Canvas Tote", results[0].ProductName)
	assert.Equal(t, "add", results[0].Operation)
	assert.Equal(t, int64(2), results[0].Count)

	type key struct{ name, op string }
	byKey := map[key]int64{}
	for _, r := range results {
		byKey[key{r.ProductName, r.Operation}] = r.Count
	}
	assert.Equal(t, int64(1), byKey[key{"Canvas Tote", "remove"}])
	assert.Equal(t, int64(1), byKey[key{"Unknown", "add"}])
}

func TestGetCompletedPurchasesInTimeFrame(t *testing.T) {
	dbManager, _, chatbot := testsupport.SetupTestDBManagerWithChatbot(t, "Purchases Bot")
	db := dbManager.GetConnection()
	tf := setupTimeFrame(t)
	now := time.Now().UTC()

	named := `{"action":{"type":"purchase","productId":"sku-1","productName":"Trail Runner X"}}`
	idOnly := `{"action":{"type":"purchase","productId":"sku-7"}}`

	testsupport.CreateTestMessage(t, db, chatbot.APIKey, "visitor-1", conversations.RoleAssistant, "order placed", named, now.Add(-time.Hour))
	testsupport.CreateTestMessage(t, db, chatbot.APIKey, "visitor-2", conversations.RoleAssistant, "order placed", named, now.Add(-50*time.Minute))
	testsupport.CreateTestMessage(t, db, chatbot.APIKey, "visitor-3", conversations.RoleAssistant, "order placed", idOnly, now.Add(-40*time.Minute))

	params := analytics.NewChatbotScopedQueryParams(tf, chatbot.APIKey)
	results, err := analytics.GetCompletedPurchasesInTimeFrame(db, params)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "Trail Runner X", results[0].Name)
	assert.Equal(t, int64(2), results[0].Count)
	assert.Equal(t, "Product ID: sku-7", results[1].Name)
	assert.Equal(t, int64(1), results[1].Count)
}
