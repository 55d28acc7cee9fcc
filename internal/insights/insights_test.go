package insights

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatlytics/internal/conversations"
)

func userMsg(userID, content string) conversations.Conversation {
	return conversations.Conversation{
		UserID:         userID,
		MessageRole:    conversations.RoleUser,
		MessageContent: content,
	}
}

func assistantMsg(userID, content string) conversations.Conversation {
	return conversations.Conversation{
		UserID:         userID,
		MessageRole:    conversations.RoleAssistant,
		MessageContent: content,
	}
}

func TestAnalyzeIntentInsightsEmpty(t *testing.T) {
	assert.Equal(t, []Insight{}, AnalyzeIntentInsights(nil))
	assert.Equal(t, []Insight{}, AnalyzeIntentInsights([]conversations.Conversation{}))

	// Assistant-only logs carry no customer intent
	onlyAssistant := []conversations.Conversation{
		assistantMsg("u1", "Hello! How can I help?"),
	}
	assert.Equal(t, []Insight{}, AnalyzeIntentInsights(onlyAssistant))
}

func TestAnalyzeIntentInsightsMostCommonIntent(t *testing.T) {
	// 40 cart_add out of 100 messages, the rest spread thin
	var messages []conversations.Conversation
	for i := 0; i < 40; i++ {
		messages = append(messages, userMsg("u1", "add this to my cart"))
	}
	for i := 0; i < 60; i++ {
		messages = append(messages, userMsg("u1", fmt.Sprintf("thanks %d", i)))
	}

	result := AnalyzeIntentInsights(messages)
	require.NotEmpty(t, result)

	// 60% "other" dominates here, so flip the ratio for the cart assertion
	assert.Equal(t, "60% of customer interactions are Other Requests", result[0].Insight)
	assert.Equal(t, ImportanceHigh, result[0].Importance)
	assert.InDelta(t, 0.6, result[0].Confidence, 0.001)
}

func TestAnalyzeIntentInsightsImportanceThreshold(t *testing.T) {
	// Exactly 50% is medium; the high band needs a strict majority
	half := []conversations.Conversation{
		userMsg("u1", "add this to my cart"),
		userMsg("u1", "thanks"),
	}
	result := AnalyzeIntentInsights(half)
	require.NotEmpty(t, result)
	assert.Equal(t, ImportanceMedium, result[0].Importance)

	majority := []conversations.Conversation{
		userMsg("u1", "add this to my cart"),
		userMsg("u1", "buy it now"),
		userMsg("u1", "thanks"),
	}
	result = AnalyzeIntentInsights(majority)
	require.NotEmpty(t, result)
	assert.Equal(t, "67% of customer interactions are Add to Cart", result[0].Insight)
	assert.Equal(t, ImportanceHigh, result[0].Importance)
}

func TestAnalyzeIntentInsightsPluralityWithoutMajority(t *testing.T) {
	// cart_add leads at 40% but without a majority, so importance stays medium
	var messages []conversations.Conversation
	for i := 0; i < 40; i++ {
		messages = append(messages, userMsg("u1", "add this to my cart"))
	}
	for i := 0; i < 30; i++ {
		messages = append(messages, userMsg("u1", "what is the return policy?"))
	}
	for i := 0; i < 30; i++ {
		messages = append(messages, userMsg("u1", "take me to the sale page"))
	}

	result := AnalyzeIntentInsights(messages)
	require.NotEmpty(t, result)
	assert.Equal(t, "40% of customer interactions are Add to Cart", result[0].Insight)
	assert.Equal(t, ImportanceMedium, result[0].Importance)
	assert.InDelta(t, 0.4, result[0].Confidence, 0.001)
}

func TestAnalyzeIntentInsightsQuestionShare(t *testing.T) {
	messages := []conversations.Conversation{
		userMsg("u1", "what is the return policy?"),
		userMsg("u1", "how long does shipping take?"),
		userMsg("u1", "thanks"),
		userMsg("u1", "thanks again"),
	}

	result := AnalyzeIntentInsights(messages)

	var questionInsight *Insight
	for i := range result {
		if result[i].Insight == "50% of customers ask product questions" {
			questionInsight = &result[i]
		}
	}
	require.NotNil(t, questionInsight)
	assert.Equal(t, ImportanceMedium, questionInsight.Importance)
	assert.InDelta(t, 0.5, questionInsight.Confidence, 0.001)
}

func TestAnalyzeIntentInsightsTransition(t *testing.T) {
	messages := []conversations.Conversation{
		userMsg("u1", "show me the trail runner"),
		userMsg("u1", "add it to my cart please"),
		userMsg("u2", "show me the canvas tote"),
		userMsg("u2", "add it to my cart right away"),
	}

	result := AnalyzeIntentInsights(messages)

	var transition *Insight
	for i := range result {
		if result[i].Insight == "Customers often go from View Product to Add to Cart" {
			transition = &result[i]
		}
	}
	require.NotNil(t, transition)
	// Example messages come from the first occurrence and are truncated to 30 chars
	assert.Contains(t, transition.Explanation, `"show me the trail runner"`)
	assert.Contains(t, transition.Explanation, `"add it to my cart please"`)
}

func TestAnalyzeIntentInsightsTransitionIgnoresOtherUsers(t *testing.T) {
	// The only adjacent different-intent pair spans two users, so no
	// transition insight should be produced
	messages := []conversations.Conversation{
		userMsg("u1", "show me the trail runner"),
		userMsg("u2", "add it to my cart please"),
	}

	result := AnalyzeIntentInsights(messages)
	for _, insight := range result {
		assert.NotContains(t, insight.Insight, "Customers often go from")
	}
}

func TestAnalyzeIntentInsightsTransitionTruncatesExamples(t *testing.T) {
	long := "show me absolutely everything you have in stock today"
	messages := []conversations.Conversation{
		userMsg("u1", long),
		userMsg("u1", "add it to my cart"),
	}

	result := AnalyzeIntentInsights(messages)

	var transition *Insight
	for i := range result {
		if result[i].Insight == "Customers often go from View Product to Add to Cart" {
			transition = &result[i]
		}
	}
	require.NotNil(t, transition)
	assert.Contains(t, transition.Explanation, `show me absolutely everything ...`)
	assert.NotContains(t, transition.Explanation, long)
}

func TestAnalyzeIntentInsightsCartActivityFromMetadata(t *testing.T) {
	// Cart detection works without any cart keywords when metadata is present
	messages := []conversations.Conversation{
		{
			UserID:         "u1",
			MessageRole:    conversations.RoleUser,
			MessageContent: "yes that one",
			Metadata:       `{"action":{"type":"cart","operation":"add","productId":"sku-1","productName":"Tote"}}`,
		},
		userMsg("u1", "thanks"),
	}

	result := AnalyzeIntentInsights(messages)

	found := false
	for _, insight := range result {
		if insight.Insight == "Customers actively manage their shopping carts through the assistant" {
			found = true
			assert.Contains(t, insight.Explanation, "50% of messages involved cart activity")
			assert.Equal(t, ImportanceHigh, insight.Importance)
		}
	}
	assert.True(t, found)
}

func TestAnalyzeIntentInsightsAssistantMetadataVisible(t *testing.T) {
	// Chat runtimes attach action payloads to assistant turns; cart and
	// navigation detection must see them
	messages := []conversations.Conversation{
		userMsg("u1", "yes please"),
		{
			UserID:         "u1",
			MessageRole:    conversations.RoleAssistant,
			MessageContent: "Added to your cart.",
			Metadata:       `{"action":{"type":"cart","operation":"add","productId":"sku-1","productName":"Tote"}}`,
		},
		{
			UserID:         "u1",
			MessageRole:    conversations.RoleAssistant,
			MessageContent: "Taking you there now.",
			Metadata:       `{"navigationAction":{"type":"navigate","pageName":"Sale","path":"/sale"}}`,
		},
	}

	result := AnalyzeIntentInsights(messages)

	var cart, nav *Insight
	for i := range result {
		switch result[i].Insight {
		case "Customers actively manage their shopping carts through the assistant":
			cart = &result[i]
		case "Customers rely on the assistant to move around the store":
			nav = &result[i]
		}
	}
	require.NotNil(t, cart)
	assert.Contains(t, cart.Explanation, "33% of messages involved cart activity")
	assert.Equal(t, ImportanceHigh, cart.Importance)
	require.NotNil(t, nav)
	assert.Contains(t, nav.Explanation, "33% of messages")
}

func TestAnalyzeIntentInsightsRepeatedIntentTransition(t *testing.T) {
	// A run of same-intent messages still counts as a transition
	messages := []conversations.Conversation{
		userMsg("u1", "what is the return policy?"),
		userMsg("u1", "how long does shipping take"),
		userMsg("u1", "what about exchanges?"),
	}

	result := AnalyzeIntentInsights(messages)

	found := false
	for _, insight := range result {
		if insight.Insight == "Customers often go from Product Questions to Product Questions" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestAnalyzeIntentInsightsNavigationReliance(t *testing.T) {
	messages := []conversations.Conversation{
		userMsg("u1", "take me to the sale section"),
		userMsg("u1", "thanks"),
		userMsg("u1", "thanks again"),
		userMsg("u1", "bye"),
	}

	result := AnalyzeIntentInsights(messages)

	found := false
	for _, insight := range result {
		if insight.Insight == "Customers rely on the assistant to move around the store" {
			found = true
			assert.Contains(t, insight.Explanation, "25% of messages")
		}
	}
	assert.True(t, found)
}
