package insights

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"chatlytics/internal/conversations"
)

func TestInferIntent(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected Intent
	}{
		{"add to cart phrase", "I want to add this to cart", IntentCartAdd},
		{"buy keyword", "I'd like to buy the blue one", IntentCartAdd},
		{"purchase keyword", "purchase two of these please", IntentCartAdd},
		{"split add and cart", "add the jacket to my cart", IntentCartAdd},
		{"remove from cart", "please remove the shoes from my cart", IntentCartRemove},
		{"show me", "Show me the Trail Runner X", IntentProductView},
		{"tell me about", "tell me about the canvas tote", IntentProductView},
		{"information", "I need more information on sizing", IntentProductView},
		{"take me to", "take me to the checkout page", IntentNavigate},
		{"go to", "go to the sale section", IntentNavigate},
		{"question mark", "what is the return policy?", IntentQuestion},
		{"how keyword", "how long does shipping take", IntentQuestion},
		{"can you", "can you gift wrap this", IntentQuestion},
		{"fallback", "thanks", IntentOther},
		{"empty message", "", IntentOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, InferIntent(tt.content))
		})
	}
}

func TestInferIntentOrdering(t *testing.T) {
	// Cart phrasing wins over the question mark
	assert.Equal(t, IntentCartAdd, InferIntent("can I buy this?"))
	// Remove+cart wins over navigation keywords
	assert.Equal(t, IntentCartRemove, InferIntent("go ahead and remove it from the cart"))
}

func TestMessageIntentPrefersMetadata(t *testing.T) {
	msg := conversations.Conversation{
		MessageRole:    conversations.RoleUser,
		MessageContent: "what is the return policy?",
		Metadata:       `{"intentAnalysis":{"primaryIntent":"cart_add","confidence":0.95}}`,
	}
	assert.Equal(t, IntentCartAdd, MessageIntent(msg))
}

func TestMessageIntentUsesAnalysisUserIntents(t *testing.T) {
	// The looser analysis block is consulted when intentAnalysis is missing
	msg := conversations.Conversation{
		MessageRole:    conversations.RoleUser,
		MessageContent: "what is the return policy?",
		Metadata:       `{"analysis":{"user_intents":["cart_add","question"]}}`,
	}
	assert.Equal(t, IntentCartAdd, MessageIntent(msg))

	// intentAnalysis still wins when both blocks are present
	msg.Metadata = `{"intentAnalysis":{"primaryIntent":"navigate"},"analysis":{"user_intents":["cart_add"]}}`
	assert.Equal(t, IntentNavigate, MessageIntent(msg))

	// Empty intent lists fall through to keywords
	msg.Metadata = `{"analysis":{"user_intents":[]}}`
	assert.Equal(t, IntentQuestion, MessageIntent(msg))
}

func TestMessageIntentFallsBackToKeywords(t *testing.T) {
	tests := []struct {
		name     string
		metadata string
	}{
		{"no metadata", ""},
		{"empty object", "{}"},
		{"null", "null"},
		{"malformed", "{not json"},
		{"empty intent", `{"intentAnalysis":{"primaryIntent":""}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := conversations.Conversation{
				MessageRole:    conversations.RoleUser,
				MessageContent: "take me to the checkout page",
				Metadata:       tt.metadata,
			}
			assert.Equal(t, IntentNavigate, MessageIntent(msg))
		})
	}
}

func TestFormatIntentName(t *testing.T) {
	assert.Equal(t, "Add to Cart", FormatIntentName(IntentCartAdd))
	assert.Equal(t, "Remove from Cart", FormatIntentName(IntentCartRemove))
	assert.Equal(t, "View Product", FormatIntentName(IntentProductView))
	assert.Equal(t, "Navigation", FormatIntentName(IntentNavigate))
	assert.Equal(t, "Product Questions", FormatIntentName(IntentQuestion))
	assert.Equal(t, "Other Requests", FormatIntentName(IntentOther))

	// Unknown upstream intents get title-cased
	assert.Equal(t, "Order Status", FormatIntentName(Intent("order_status")))
}
