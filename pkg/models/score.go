package models

// RoleMetrics holds the per-role usage metrics extracted from the graph.
type RoleMetrics struct {
	TotalAllowedActions int `json:"total_allowed_actions"`
	UsedActions         int `json:"used_actions"`
	DaysSinceLastUse    int `json:"days_since_last_use"`
}

// Score is the Identity Exposure Index result for one role.
// IEI is the sum of the two weighted sub-scores, each rounded to two decimals:
// PB (privilege breadth, unused-permission ratio) and UI (usage inactivity,
// staleness of last observed use).
type Score struct {
	IEI float64 `json:"iei_score"`
	PB  float64 `json:"pb_score"`
	UI  float64 `json:"ui_score"`
}

// ScoreRecord is one scoring-pass result as delivered to the metrics sink.
// Timestamp is RFC 3339 in UTC, set at emission time.
type ScoreRecord struct {
	ARN       string  `json:"arn" dynamodbav:"arn"`
	IEIScore  float64 `json:"iei_score" dynamodbav:"iei_score"`
	PBScore   float64 `json:"pb_score" dynamodbav:"pb_score"`
	UIScore   float64 `json:"ui_score" dynamodbav:"ui_score"`
	Timestamp string  `json:"timestamp" dynamodbav:"timestamp"`
}
