package insights

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatlytics/internal/conversations"
)

func TestAnalyzeConversationFlowEmpty(t *testing.T) {
	assert.Equal(t, []FlowStep{}, AnalyzeConversationFlow(nil))
	assert.Equal(t, []FlowStep{}, AnalyzeConversationFlow([]conversations.Conversation{}))

	// Assistant chatter without action metadata maps to no stage
	assert.Equal(t, []FlowStep{}, AnalyzeConversationFlow([]conversations.Conversation{
		assistantMsg("u1", "Hello! How can I help?"),
	}))
}

func TestAnalyzeConversationFlowNoStageMatches(t *testing.T) {
	// A message matching no funnel stage yields no steps
	result := AnalyzeConversationFlow([]conversations.Conversation{
		userMsg("u1", "thanks"),
	})
	assert.Equal(t, []FlowStep{}, result)
}

func TestAnalyzeConversationFlowSingleStage(t *testing.T) {
	result := AnalyzeConversationFlow([]conversations.Conversation{
		userMsg("u1", "please sign in for me"),
		userMsg("u1", "thanks"),
	})

	require.Len(t, result, 1)
	assert.Equal(t, "Login Request", result[0].Name)
	assert.Equal(t, 100, result[0].Percentage)
	assert.Equal(t, "#3b82f6", result[0].Color)
}

func TestAnalyzeConversationFlowLoginDetection(t *testing.T) {
	// Login requests form their own funnel stage, by keyword or by the
	// /auth/login navigation path
	result := AnalyzeConversationFlow([]conversations.Conversation{
		userMsg("u1", "I want to login to my account"),
		userMsg("u1", "sign in please"),
		userMsg("u1", "checkout now"),
	})

	require.Len(t, result, 2)
	assert.Equal(t, "Login Request", result[0].Name)
	assert.Equal(t, "Checkout Process", result[1].Name)
	assert.Greater(t, result[0].Percentage, result[1].Percentage)
	assert.Equal(t, 100, result[0].Percentage+result[1].Percentage)

	byPath := AnalyzeConversationFlow([]conversations.Conversation{
		userMsg("u1", "take my account"),
		{
			UserID:         "u1",
			MessageRole:    conversations.RoleAssistant,
			MessageContent: "Taking you there now.",
			Metadata:       `{"navigationAction":{"type":"navigate","pageName":"Login","path":"/auth/login"}}`,
		},
	})
	require.Len(t, byPath, 1)
	assert.Equal(t, "Login Request", byPath[0].Name)
	assert.Equal(t, 100, byPath[0].Percentage)
}

func TestAnalyzeConversationFlowPercentagesSumToHundred(t *testing.T) {
	messages := []conversations.Conversation{
		userMsg("u1", "tell me about the trail runner"),
		userMsg("u1", "what sizes are there"),
		userMsg("u1", "is this one available in blue"),
		userMsg("u1", "add to cart"),
		userMsg("u1", "view cart please"),
		userMsg("u1", "checkout"),
		userMsg("u1", "log in first"),
	}

	result := AnalyzeConversationFlow(messages)
	require.Len(t, result, 6)

	sum := 0
	for _, step := range result {
		sum += step.Percentage
		assert.NotEmpty(t, step.Color)
	}
	assert.Equal(t, 100, sum)

	// Steps are sorted by share descending
	for i := 1; i < len(result); i++ {
		assert.GreaterOrEqual(t, result[i-1].Percentage, result[i].Percentage)
	}
	assert.Equal(t, "Product Inquiry", result[0].Name)
}

func TestAnalyzeConversationFlowColorsCycleInOrder(t *testing.T) {
	messages := []conversations.Conversation{
		userMsg("u1", "tell me about the tote"),
		userMsg("u1", "what colors does it come in"),
		userMsg("u1", "this one looks good"),
	}

	result := AnalyzeConversationFlow(messages)
	require.Len(t, result, 2)

	// Colors follow sorted position, not stage identity
	assert.Equal(t, "Product Inquiry", result[0].Name)
	assert.Equal(t, "#3b82f6", result[0].Color)
	assert.Equal(t, "Specific Product Questions", result[1].Name)
	assert.Equal(t, "#8b5cf6", result[1].Color)
}

func TestAnalyzeConversationFlowAssistantMetadataDetection(t *testing.T) {
	// Action metadata rides on assistant turns; cart and view-cart stages
	// must see it even when the user never typed a matching keyword
	messages := []conversations.Conversation{
		userMsg("u1", "ok"),
		{
			UserID:         "u1",
			MessageRole:    conversations.RoleAssistant,
			MessageContent: "Added to your cart.",
			Metadata:       `{"action":{"type":"cart","operation":"add","productId":"sku-1","productName":"Tote"}}`,
		},
		{
			UserID:         "u1",
			MessageRole:    conversations.RoleAssistant,
			MessageContent: "Here is your cart.",
			Metadata:       `{"navigationAction":{"type":"navigate","pageName":"Cart","path":"/cart"}}`,
		},
	}

	result := AnalyzeConversationFlow(messages)
	require.Len(t, result, 2)

	names := []string{result[0].Name, result[1].Name}
	assert.Contains(t, names, "Add to Cart")
	assert.Contains(t, names, "View Cart")
	assert.Equal(t, 100, result[0].Percentage+result[1].Percentage)
}

func TestAnalyzeConversationFlowProductEntityMetadata(t *testing.T) {
	// The NLU analysis block marks specific-product questions without keywords
	messages := []conversations.Conversation{
		{
			UserID:         "u1",
			MessageRole:    conversations.RoleUser,
			MessageContent: "does it run small",
			Metadata:       `{"analysis":{"user_intents":["question"],"entities":{"product":"Trail Runner X"}}}`,
		},
	}

	result := AnalyzeConversationFlow(messages)
	require.Len(t, result, 1)
	assert.Equal(t, "Specific Product Questions", result[0].Name)
	assert.Equal(t, 100, result[0].Percentage)
}

func TestAnalyzeConversationFlowRareStageFloored(t *testing.T) {
	// One checkout among many inquiries still shows up, floored at 5% before
	// renormalization
	messages := []conversations.Conversation{userMsg("u1", "checkout please")}
	for i := 0; i < 49; i++ {
		messages = append(messages, userMsg("u1", "tell me about the tote"))
	}

	result := AnalyzeConversationFlow(messages)
	require.Len(t, result, 2)
	assert.Equal(t, "Product Inquiry", result[0].Name)
	assert.Equal(t, "Checkout Process", result[1].Name)
	assert.GreaterOrEqual(t, result[1].Percentage, 4)
	assert.Equal(t, 100, result[0].Percentage+result[1].Percentage)
}
