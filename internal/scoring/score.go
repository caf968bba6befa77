// Package scoring derives the Identity Exposure Index from the materialized
// identity graph.
package scoring

import (
	"math"

	"github.com/org/exposuregraph/pkg/models"
)

const (
	// LookbackWindowDays is the fixed usage observation window.
	LookbackWindowDays = 90
	// SubScoreMax is the weight of each sub-score; the composite scale is
	// 0-100 when inactivity stays inside the window.
	SubScoreMax = 50
)

// Score computes the Identity Exposure Index for a set of role metrics.
// Pure and deterministic.
//
// Privilege breadth is zero both when nothing is permitted and when every
// permitted action is used: neither carries excess privilege. Usage
// inactivity is deliberately not capped: a role whose last use predates the
// window scores UI above SubScoreMax, pushing IEI past 100.
func Score(m models.RoleMetrics) models.Score {
	taa := float64(m.TotalAllowedActions)
	ua := float64(m.UsedActions)

	var pb float64
	if m.TotalAllowedActions != 0 && m.TotalAllowedActions != m.UsedActions {
		pb = SubScoreMax * (taa - ua) / taa
	}

	ui := SubScoreMax * float64(m.DaysSinceLastUse) / LookbackWindowDays

	return models.Score{
		IEI: round2(pb + ui),
		PB:  round2(pb),
		UI:  round2(ui),
	}
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
