package insights

import (
	"math"
	"sort"
	"strings"

	"chatlytics/internal/conversations"
)

// FlowStep is one stage of the canonical shopping conversation funnel.
type FlowStep struct {
	Name       string `json:"name"`
	Percentage int    `json:"percentage"`
	Color      string `json:"color"`
}

// flowPalette is the fixed dashboard color wheel. Steps take colors by their
// sorted position modulo the palette length.
var flowPalette = []string{
	"#3b82f6", "#8b5cf6", "#10b981", "#f97316",
	"#ef4444", "#6366f1", "#ec4899", "#14b8a6",
}

type flowStage struct {
	name string
	// matchUser runs against user-authored messages only
	matchUser func(content string, meta *conversations.Metadata) bool
	// matchMeta runs against structured metadata on any row, either role.
	// Cart mutations and navigation events usually ride on assistant turns.
	matchMeta func(meta *conversations.Metadata) bool
}

// metaPath reports whether the message's structured action points at the
// given storefront path.
func metaPath(meta *conversations.Metadata, path string) bool {
	if meta == nil {
		return false
	}
	if meta.NavigationAction != nil && meta.NavigationAction.Path == path {
		return true
	}
	return meta.Action != nil && meta.Action.Path == path
}

func containsAny(content string, needles ...string) bool {
	for _, needle := range needles {
		if strings.Contains(content, needle) {
			return true
		}
	}
	return false
}

// The canonical funnel stages: inquiry through login, each detected through
// keyword checks on user messages plus metadata checks across the whole log.
var flowStages = []flowStage{
	{
		name: "Product Inquiry",
		matchUser: func(content string, meta *conversations.Metadata) bool {
			return containsAny(content, "product", "what", "how", "tell me about")
		},
	},
	{
		name: "Specific Product Questions",
		matchUser: func(content string, meta *conversations.Metadata) bool {
			if meta != nil && meta.Analysis != nil &&
				meta.Analysis.Entities != nil && meta.Analysis.Entities.Product != "" {
				return true
			}
			return containsAny(content, "iphone", "macbook", "this one")
		},
	},
	{
		name: "Add to Cart",
		matchUser: func(content string, meta *conversations.Metadata) bool {
			return containsAny(content, "add to cart", "buy")
		},
		matchMeta: func(meta *conversations.Metadata) bool {
			return meta != nil && meta.Action != nil &&
				meta.Action.Type == "cart" && meta.Action.Operation == "add"
		},
	},
	{
		name: "View Cart",
		matchUser: func(content string, meta *conversations.Metadata) bool {
			return containsAny(content, "view cart", "show cart", "see cart")
		},
		matchMeta: func(meta *conversations.Metadata) bool {
			return metaPath(meta, "/cart")
		},
	},
	{
		name: "Checkout Process",
		matchUser: func(content string, meta *conversations.Metadata) bool {
			return containsAny(content, "checkout", "purchase")
		},
		matchMeta: func(meta *conversations.Metadata) bool {
			return metaPath(meta, "/checkout")
		},
	},
	{
		name: "Login Request",
		matchUser: func(content string, meta *conversations.Metadata) bool {
			return containsAny(content, "login", "log in", "sign in")
		},
		matchMeta: func(meta *conversations.Metadata) bool {
			return metaPath(meta, "/auth/login")
		},
	},
}

// minStagePercentage keeps detected stages visible on the dashboard chart.
const minStagePercentage = 5.0

// AnalyzeConversationFlow maps a chatbot's full message history onto the
// canonical funnel stages. Keyword checks consider user messages only while
// metadata checks span both roles; percentages are relative to user-authored
// messages. Stages with no matches are omitted entirely. Detected stage
// percentages are floored at 5, sorted descending, and rescaled so they sum
// to exactly 100; a single detected stage is always 100.
func AnalyzeConversationFlow(messages []conversations.Conversation) []FlowStep {
	if len(messages) == 0 {
		return []FlowStep{}
	}

	userMessages := filterUserMessages(messages)
	total := float64(len(userMessages))
	if total == 0 {
		total = 1
	}

	type scoredStage struct {
		name string
		pct  float64
	}

	var detected []scoredStage
	for _, stage := range flowStages {
		count := 0
		for _, msg := range messages {
			meta := conversations.ParseMetadata(msg.Metadata)
			if stage.matchMeta != nil && stage.matchMeta(meta) {
				count++
			}
			if msg.MessageRole == conversations.RoleUser &&
				stage.matchUser(strings.ToLower(msg.MessageContent), meta) {
				count++
			}
		}
		if count == 0 {
			continue
		}
		pct := float64(count) / total * 100
		if pct < minStagePercentage {
			pct = minStagePercentage
		}
		detected = append(detected, scoredStage{name: stage.name, pct: pct})
	}

	if len(detected) == 0 {
		return []FlowStep{}
	}

	sort.SliceStable(detected, func(i, j int) bool {
		return detected[i].pct > detected[j].pct
	})

	steps := make([]FlowStep, len(detected))
	if len(detected) == 1 {
		steps[0] = FlowStep{Name: detected[0].name, Percentage: 100, Color: flowPalette[0]}
		return steps
	}

	sum := 0.0
	for _, s := range detected {
		sum += s.pct
	}

	scaledSum := 0
	for i, s := range detected {
		scaled := int(math.Round(s.pct / sum * 100))
		steps[i] = FlowStep{
			Name:       s.name,
			Percentage: scaled,
			Color:      flowPalette[i%len(flowPalette)],
		}
		scaledSum += scaled
	}

	// Rounding drift lands on the largest step
	steps[0].Percentage += 100 - scaledSum

	return steps
}
