package insights

import (
	"fmt"
	"math"
	"strings"

	"chatlytics/internal/conversations"
)

// Insight importance levels
const (
	ImportanceHigh   = "high"
	ImportanceMedium = "medium"
)

// Insight is one human-readable observation about customer behavior.
type Insight struct {
	Insight     string  `json:"insight"`
	Explanation string  `json:"explanation"`
	Importance  string  `json:"importance"`
	Confidence  float64 `json:"confidence"`
}

const exampleTruncateLen = 30

// AnalyzeIntentInsights produces insight statements from a chatbot's full
// message history, chronologically ordered. Intent statistics come from the
// user-authored messages; cart and navigation metadata is considered on both
// roles since chat runtimes attach action payloads to assistant turns. An
// empty log yields an empty slice, never placeholder text.
func AnalyzeIntentInsights(messages []conversations.Conversation) []Insight {
	if len(messages) == 0 {
		return []Insight{}
	}

	userMessages := filterUserMessages(messages)
	result := []Insight{}

	if len(userMessages) > 0 {
		intents := make([]Intent, len(userMessages))
		counts := make(map[Intent]int)
		var seen []Intent
		for i, msg := range userMessages {
			intent := MessageIntent(msg)
			intents[i] = intent
			if counts[intent] == 0 {
				seen = append(seen, intent)
			}
			counts[intent]++
		}

		total := len(userMessages)

		// Most common intent. Ties break in first-seen order for determinism.
		var topIntent Intent
		topCount := 0
		for _, intent := range seen {
			if counts[intent] > topCount {
				topIntent = intent
				topCount = counts[intent]
			}
		}
		topShare := float64(topCount) / float64(total) * 100
		importance := ImportanceMedium
		if topShare > 50 {
			importance = ImportanceHigh
		}
		result = append(result, Insight{
			Insight: fmt.Sprintf("%d%% of customer interactions are %s",
				int(math.Round(topShare)), FormatIntentName(topIntent)),
			Explanation: fmt.Sprintf("The most common intent across %d analyzed messages is %s",
				total, FormatIntentName(topIntent)),
			Importance: importance,
			Confidence: roundConfidence(topShare / 100),
		})

		// Question share
		if questionCount := counts[IntentQuestion]; questionCount > 0 {
			questionShare := float64(questionCount) / float64(total) * 100
			result = append(result, Insight{
				Insight: fmt.Sprintf("%d%% of customers ask product questions",
					int(math.Round(questionShare))),
				Explanation: fmt.Sprintf("%d of %d messages were questions about products or policies",
					questionCount, total),
				Importance: ImportanceMedium,
				Confidence: roundConfidence(questionShare / 100),
			})
		}

		// Most frequent intent transition between consecutive messages
		if transition := mostFrequentTransition(userMessages, intents); transition != nil {
			result = append(result, *transition)
		}
	}

	// Cart activity, detected through metadata on either role or keywords on
	// user messages. The redundancy is deliberate: chat runtimes without
	// action metadata still surface here.
	cartCount := 0
	for _, msg := range messages {
		if messageTouchesCart(msg) {
			cartCount++
		}
	}
	if cartCount > 0 {
		cartShare := float64(cartCount) / float64(len(messages)) * 100
		result = append(result, Insight{
			Insight: "Customers actively manage their shopping carts through the assistant",
			Explanation: fmt.Sprintf("%d%% of messages involved cart activity",
				int(math.Round(cartShare))),
			Importance: ImportanceHigh,
			Confidence: roundConfidence(cartShare / 100),
		})
	}

	// Navigation reliance, same metadata-or-keyword detection
	navCount := 0
	for _, msg := range messages {
		if messageNavigates(msg) {
			navCount++
		}
	}
	if navCount > 0 {
		navShare := float64(navCount) / float64(len(messages)) * 100
		result = append(result, Insight{
			Insight: "Customers rely on the assistant to move around the store",
			Explanation: fmt.Sprintf("%d%% of messages asked the assistant to navigate somewhere",
				int(math.Round(navShare))),
			Importance: ImportanceMedium,
			Confidence: roundConfidence(navShare / 100),
		})
	}

	return result
}

func mostFrequentTransition(userMessages []conversations.Conversation, intents []Intent) *Insight {
	type pair struct {
		from, to Intent
	}

	pairCounts := make(map[pair]int)
	examples := make(map[pair][2]string)
	totalPairs := 0

	for i := 1; i < len(userMessages); i++ {
		// Transitions are only meaningful within one end-user session
		if userMessages[i].UserID != userMessages[i-1].UserID {
			continue
		}
		p := pair{from: intents[i-1], to: intents[i]}
		if pairCounts[p] == 0 {
			examples[p] = [2]string{
				truncateExample(userMessages[i-1].MessageContent),
				truncateExample(userMessages[i].MessageContent),
			}
		}
		pairCounts[p]++
		totalPairs++
	}

	if totalPairs == 0 {
		return nil
	}

	var top pair
	topCount := 0
	for p, count := range pairCounts {
		if count > topCount || (count == topCount && lessPair(p.from, p.to, top.from, top.to)) {
			top = p
			topCount = count
		}
	}

	example := examples[top]
	return &Insight{
		Insight: fmt.Sprintf("Customers often go from %s to %s",
			FormatIntentName(top.from), FormatIntentName(top.to)),
		Explanation: fmt.Sprintf("Most frequent transition, e.g. %q followed by %q",
			example[0], example[1]),
		Importance: ImportanceMedium,
		Confidence: roundConfidence(float64(topCount) / float64(totalPairs)),
	}
}

// lessPair gives map iteration a stable winner on equal counts.
func lessPair(fromA, toA, fromB, toB Intent) bool {
	if fromA != fromB {
		return fromA < fromB
	}
	return toA < toB
}

func messageTouchesCart(msg conversations.Conversation) bool {
	if meta := conversations.ParseMetadata(msg.Metadata); meta != nil &&
		meta.Action != nil && meta.Action.Type == "cart" {
		return true
	}
	if msg.MessageRole != conversations.RoleUser {
		return false
	}
	content := strings.ToLower(msg.MessageContent)
	return strings.Contains(content, "cart") || strings.Contains(content, "buy")
}

func messageNavigates(msg conversations.Conversation) bool {
	if meta := conversations.ParseMetadata(msg.Metadata); meta != nil {
		if meta.NavigationAction != nil {
			return true
		}
		if meta.Action != nil && meta.Action.Type == "navigate" {
			return true
		}
	}
	if msg.MessageRole != conversations.RoleUser {
		return false
	}
	content := strings.ToLower(msg.MessageContent)
	return strings.Contains(content, "go to") || strings.Contains(content, "take me to")
}

func filterUserMessages(messages []conversations.Conversation) []conversations.Conversation {
	filtered := make([]conversations.Conversation, 0, len(messages))
	for _, msg := range messages {
		if msg.MessageRole == conversations.RoleUser {
			filtered = append(filtered, msg)
		}
	}
	return filtered
}

func truncateExample(content string) string {
	runes := []rune(content)
	if len(runes) <= exampleTruncateLen {
		return content
	}
	return string(runes[:exampleTruncateLen]) + "..."
}

func roundConfidence(v float64) float64 {
	return math.Round(v*100) / 100
}
