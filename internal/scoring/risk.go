package scoring

import "strings"

// RiskLevel classifies the blast radius of a permitted action.
type RiskLevel string

const (
	RiskHigh   RiskLevel = "HIGH"
	RiskMedium RiskLevel = "MEDIUM"
	RiskLow    RiskLevel = "LOW"
)

// highPrefixes are operation prefixes that indicate destructive operations.
var highPrefixes = []string{"Delete", "Terminate"}

// lowPrefixes are operation prefixes that indicate read-only operations.
var lowPrefixes = []string{"Describe", "List", "Get"}

var mediumPrefixes = []string{"Create", "Put", "Modify", "Update", "Attach", "Detach"}

// ClassifyAction returns the risk level for one "<service>:<operation>" action.
func ClassifyAction(action string) RiskLevel {
	op := action
	if _, rest, ok := strings.Cut(action, ":"); ok {
		op = rest
	}

	// Wildcards are conservatively medium
	if op == "*" || strings.HasSuffix(op, "*") {
		return RiskMedium
	}

	for _, prefix := range highPrefixes {
		if strings.HasPrefix(op, prefix) {
			return RiskHigh
		}
	}
	for _, prefix := range lowPrefixes {
		if strings.HasPrefix(op, prefix) {
			return RiskLow
		}
	}
	for _, prefix := range mediumPrefixes {
		if strings.HasPrefix(op, prefix) {
			return RiskMedium
		}
	}
	return RiskMedium
}

// ClassifySet returns the highest risk level across a set of actions.
// An empty set is LOW.
func ClassifySet(actions []string) RiskLevel {
	level := RiskLow
	for _, action := range actions {
		switch ClassifyAction(action) {
		case RiskHigh:
			return RiskHigh
		case RiskMedium:
			level = RiskMedium
		}
	}
	return level
}
