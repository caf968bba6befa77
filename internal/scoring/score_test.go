package scoring

import (
	"testing"

	"github.com/org/exposuregraph/pkg/models"
)

func TestScoreBoundaries(t *testing.T) {
	cases := []struct {
		name    string
		metrics models.RoleMetrics
		wantPB  float64
		wantUI  float64
	}{
		{
			name:    "no permissions",
			metrics: models.RoleMetrics{TotalAllowedActions: 0, UsedActions: 0, DaysSinceLastUse: 0},
			wantPB:  0, wantUI: 0,
		},
		{
			name:    "fully used",
			metrics: models.RoleMetrics{TotalAllowedActions: 10, UsedActions: 10, DaysSinceLastUse: 0},
			wantPB:  0, wantUI: 0,
		},
		{
			name:    "fully unused",
			metrics: models.RoleMetrics{TotalAllowedActions: 10, UsedActions: 0, DaysSinceLastUse: 0},
			wantPB:  50, wantUI: 0,
		},
		{
			name:    "stale for the whole window",
			metrics: models.RoleMetrics{TotalAllowedActions: 10, UsedActions: 10, DaysSinceLastUse: 90},
			wantPB:  0, wantUI: 50,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Score(tc.metrics)
			if got.PB != tc.wantPB {
				t.Errorf("PB: expected %v got %v", tc.wantPB, got.PB)
			}
			if got.UI != tc.wantUI {
				t.Errorf("UI: expected %v got %v", tc.wantUI, got.UI)
			}
			if got.IEI != tc.wantPB+tc.wantUI {
				t.Errorf("IEI: expected %v got %v", tc.wantPB+tc.wantUI, got.IEI)
			}
		})
	}
}

func TestScoreWorkedExample(t *testing.T) {
	// 3 permitted, 1 used, last used 5 days ago.
	got := Score(models.RoleMetrics{TotalAllowedActions: 3, UsedActions: 1, DaysSinceLastUse: 5})
	if got.PB != 33.33 {
		t.Errorf("PB: expected 33.33 got %v", got.PB)
	}
	if got.UI != 2.78 {
		t.Errorf("UI: expected 2.78 got %v", got.UI)
	}
	if got.IEI != 36.11 {
		t.Errorf("IEI: expected 36.11 got %v", got.IEI)
	}
}

func TestScoreInactivityNotCapped(t *testing.T) {
	// Usage never observed and the role predates the window: UI exceeds the
	// sub-score weight and IEI exceeds 100.
	got := Score(models.RoleMetrics{TotalAllowedActions: 4, UsedActions: 0, DaysSinceLastUse: 180})
	if got.UI != 100 {
		t.Errorf("UI: expected 100 got %v", got.UI)
	}
	if got.IEI != 150 {
		t.Errorf("IEI: expected 150 got %v", got.IEI)
	}
}
