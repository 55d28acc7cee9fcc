// Package insights derives human-readable observations from raw conversation
// logs: keyword intent inference, insight statements, and canonical
// conversation-flow steps. Everything here is pure; the database never
// appears below this line.
package insights

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"chatlytics/internal/conversations"
)

// Intent classifies what a customer message was trying to do.
type Intent string

const (
	IntentCartAdd     Intent = "cart_add"
	IntentCartRemove  Intent = "cart_remove"
	IntentProductView Intent = "product_view"
	IntentNavigate    Intent = "navigate"
	IntentQuestion    Intent = "question"
	IntentOther       Intent = "other"
)

// InferIntent classifies a message by keywords. The checks are ordered from
// most to least specific; the first match wins. It is only consulted when the
// message metadata carries no upstream intent.
func InferIntent(content string) Intent {
	msg := strings.ToLower(content)

	switch {
	case strings.Contains(msg, "add to cart") ||
		strings.Contains(msg, "buy") ||
		strings.Contains(msg, "purchase") ||
		(strings.Contains(msg, "add") && strings.Contains(msg, "cart")):
		return IntentCartAdd
	case strings.Contains(msg, "remove") && strings.Contains(msg, "cart"):
		return IntentCartRemove
	case strings.Contains(msg, "show me") ||
		strings.Contains(msg, "view") ||
		strings.Contains(msg, "tell me about") ||
		strings.Contains(msg, "information"):
		return IntentProductView
	case strings.Contains(msg, "take me to") ||
		strings.Contains(msg, "navigate") ||
		strings.Contains(msg, "go to"):
		return IntentNavigate
	case strings.Contains(msg, "?") ||
		strings.Contains(msg, "what") ||
		strings.Contains(msg, "how") ||
		strings.Contains(msg, "when") ||
		strings.Contains(msg, "can you"):
		return IntentQuestion
	default:
		return IntentOther
	}
}

// MessageIntent resolves the intent of a message, preferring the intent the
// chatbot's own pipeline assigned over keyword inference. Runtimes that ship
// the looser analysis block instead of intentAnalysis are consulted second.
func MessageIntent(msg conversations.Conversation) Intent {
	if meta := conversations.ParseMetadata(msg.Metadata); meta != nil {
		if meta.IntentAnalysis != nil && meta.IntentAnalysis.PrimaryIntent != "" {
			return Intent(meta.IntentAnalysis.PrimaryIntent)
		}
		if meta.Analysis != nil && len(meta.Analysis.UserIntents) > 0 &&
			meta.Analysis.UserIntents[0] != "" {
			return Intent(meta.Analysis.UserIntents[0])
		}
	}
	return InferIntent(msg.MessageContent)
}

var intentTitler = cases.Title(language.English)

// FormatIntentName renders an intent as a dashboard display name. Unknown
// upstream intents fall back to title-cased words.
func FormatIntentName(intent Intent) string {
	switch intent {
	case IntentCartAdd:
		return "Add to Cart"
	case IntentCartRemove:
		return "Remove from Cart"
	case IntentProductView:
		return "View Product"
	case IntentNavigate:
		return "Navigation"
	case IntentQuestion:
		return "Product Questions"
	case IntentOther:
		return "Other Requests"
	default:
		return intentTitler.String(strings.ReplaceAll(string(intent), "_", " "))
	}
}
