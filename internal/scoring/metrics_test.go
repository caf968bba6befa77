package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/org/exposuregraph/internal/graph"
	"github.com/org/exposuregraph/internal/ingest"
	"github.com/org/exposuregraph/pkg/models"
)

const testRoleARN = "arn:aws:iam::123456789012:role/app"

// buildGraph materializes one role with three permitted s3 actions, of which
// one was used 5 days before `now`.
func buildGraph(t *testing.T, now time.Time) *graph.MemoryStore {
	t.Helper()
	store := graph.NewMemoryStore()
	ctx := context.Background()

	u := ingest.NewUpserter(store)
	_, err := u.UpsertIdentityGraph(ctx, []models.RoleRecord{{
		ARN: testRoleARN, Name: "app", AccountID: "123456789012",
		Policies: []models.PolicyRecord{{
			ARN: "arn:aws:iam::aws:policy/S3Crud", Name: "S3Crud", Type: models.PolicyTypeManaged,
			Document: json.RawMessage(`{"Version":"2012-10-17","Statement":[
				{"Effect":"Allow","Action":["s3:GetObject","s3:PutObject","s3:DeleteObject"]}
			]}`),
		}},
	}})
	if err != nil {
		t.Fatal(err)
	}

	a := ingest.NewAnnotatorAt(store, func() time.Time { return now.Add(-5 * 24 * time.Hour) })
	if _, err := a.AnnotateUsage(ctx, map[string][]string{testRoleARN: {"s3:GetObject"}}, now.Add(-90*24*time.Hour)); err != nil {
		t.Fatal(err)
	}
	return store
}

func TestExtractMetrics(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	store := buildGraph(t, now)

	e := NewExtractor(store)
	e.now = func() time.Time { return now }

	m, err := e.ExtractMetrics(context.Background(), testRoleARN)
	if err != nil {
		t.Fatal(err)
	}
	if m.TotalAllowedActions != 3 {
		t.Errorf("TotalAllowedActions: expected 3 got %d", m.TotalAllowedActions)
	}
	if m.UsedActions != 1 {
		t.Errorf("UsedActions: expected 1 got %d", m.UsedActions)
	}
	if m.DaysSinceLastUse != 5 {
		t.Errorf("DaysSinceLastUse: expected 5 got %d", m.DaysSinceLastUse)
	}
}

func TestExtractMetricsDistinctAcrossPolicies(t *testing.T) {
	store := graph.NewMemoryStore()
	ctx := context.Background()

	// Two policies both permitting s3:GetObject: it counts once.
	u := ingest.NewUpserter(store)
	doc := json.RawMessage(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Action":"s3:GetObject"}]}`)
	_, err := u.UpsertIdentityGraph(ctx, []models.RoleRecord{{
		ARN: testRoleARN, Name: "app", AccountID: "123456789012",
		Policies: []models.PolicyRecord{
			{ARN: "arn:aws:iam::aws:policy/A", Name: "A", Type: models.PolicyTypeManaged, Document: doc},
			{ARN: "arn:aws:iam::aws:policy/B", Name: "B", Type: models.PolicyTypeManaged, Document: doc},
		},
	}})
	if err != nil {
		t.Fatal(err)
	}

	m, err := NewExtractor(store).ExtractMetrics(ctx, testRoleARN)
	if err != nil {
		t.Fatal(err)
	}
	if m.TotalAllowedActions != 1 {
		t.Errorf("expected set semantics, got %d", m.TotalAllowedActions)
	}
}

func TestExtractMetricsNoUsage(t *testing.T) {
	store := graph.NewMemoryStore()
	ctx := context.Background()
	u := ingest.NewUpserter(store)
	if _, err := u.UpsertIdentityGraph(ctx, []models.RoleRecord{{
		ARN: testRoleARN, Name: "app", AccountID: "123456789012",
	}}); err != nil {
		t.Fatal(err)
	}

	m, err := NewExtractor(store).ExtractMetrics(ctx, testRoleARN)
	if err != nil {
		t.Fatal(err)
	}
	// Never used within the window: staleness is the full lookback.
	if m.DaysSinceLastUse != LookbackWindowDays {
		t.Errorf("DaysSinceLastUse: expected %d got %d", LookbackWindowDays, m.DaysSinceLastUse)
	}
	if m.UsedActions != 0 {
		t.Errorf("UsedActions: expected 0 got %d", m.UsedActions)
	}
}

func TestExtractMetricsUnknownRole(t *testing.T) {
	e := NewExtractor(graph.NewMemoryStore())
	if _, err := e.ExtractMetrics(context.Background(), "arn:aws:iam::1:role/none"); !errors.Is(err, graph.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
