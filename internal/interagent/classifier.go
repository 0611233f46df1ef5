// Package interagent implements trigger classification and message routing
// between the two personas.
package interagent

import (
	"strings"

	"github.com/familyconnect/familyconnect/internal/core"
)

// Keyword sets for the classification ladder. Matching is case-insensitive
// substring matching; a word appearing inside another word still counts.
var (
	careKeywords = []string{
		"doctor", "appointment", "medication", "pain", "sick", "hospital", "emergency",
	}
	emotionalKeywords = []string{
		"sad", "lonely", "worried", "scared", "confused", "frustrated",
	}
	familyKeywords = []string{
		"family", "visit", "call", "children", "grandchildren", "daughter", "son",
	}
)

// Classification is the outcome of analyzing one user interaction.
type Classification struct {
	Triggered bool
	Type      core.TriggerType
	Priority  core.Priority
}

// Classify decides whether a user interaction warrants notifying the other
// agent. Pure function; the rule ladder is ordered so medical signals
// dominate emotional ones, which dominate informational ones. First match
// wins regardless of how many sets the text hits.
func Classify(agent core.AgentID, userText, emotionalState string, suggestedActions []string) Classification {
	text := strings.ToLower(userText)

	if containsAny(text, careKeywords) {
		return Classification{Triggered: true, Type: core.TriggerCareNeeded, Priority: core.PriorityHigh}
	}
	if emotionalState == core.EmotionalDistressed || emotionalState == core.EmotionalAnxious {
		return Classification{Triggered: true, Type: core.TriggerUserConcern, Priority: core.PriorityHigh}
	}
	if containsAny(text, emotionalKeywords) {
		return Classification{Triggered: true, Type: core.TriggerUserConcern, Priority: core.PriorityMedium}
	}
	if containsAny(text, familyKeywords) {
		return Classification{Triggered: true, Type: core.TriggerFamilyUpdate, Priority: core.PriorityMedium}
	}
	if agent == core.AgentGrace && containsAction(suggestedActions, "routine_check") {
		return Classification{Triggered: true, Type: core.TriggerRoutineCheck, Priority: core.PriorityLow}
	}
	return Classification{}
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func containsAction(actions []string, want string) bool {
	for _, a := range actions {
		if a == want {
			return true
		}
	}
	return false
}
