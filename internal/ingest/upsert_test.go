package ingest

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/org/exposuregraph/internal/graph"
	"github.com/org/exposuregraph/pkg/models"
)

func doc(t *testing.T, s string) json.RawMessage {
	t.Helper()
	if !json.Valid([]byte(s)) {
		t.Fatalf("invalid test document: %s", s)
	}
	return json.RawMessage(s)
}

func sampleRole(t *testing.T) models.RoleRecord {
	return models.RoleRecord{
		ARN:       "arn:aws:iam::123456789012:role/app",
		Name:      "app",
		AccountID: "123456789012",
		Policies: []models.PolicyRecord{
			{
				ARN:  "arn:aws:iam::aws:policy/S3Access",
				Name: "S3Access",
				Type: models.PolicyTypeManaged,
				Document: doc(t, `{"Version":"2012-10-17","Statement":[
					{"Effect":"Allow","Action":["s3:GetObject","s3:PutObject"]},
					{"Effect":"Deny","Action":"s3:DeleteBucket"}
				]}`),
			},
		},
	}
}

func TestUpsertIdentityGraphIdempotent(t *testing.T) {
	store := graph.NewMemoryStore()
	u := NewUpserter(store)
	ctx := context.Background()
	records := []models.RoleRecord{sampleRole(t)}

	n, err := u.UpsertIdentityGraph(ctx, records)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 role processed, got %d", n)
	}
	nodes, edges := store.NodeCount(), store.EdgeCount()
	// 1 role + 1 policy + 2 actions; 1 HAS_POLICY + 2 PERMITS
	if nodes != 4 || edges != 3 {
		t.Errorf("expected 4 nodes / 3 edges, got %d / %d", nodes, edges)
	}

	if _, err := u.UpsertIdentityGraph(ctx, records); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if store.NodeCount() != nodes || store.EdgeCount() != edges {
		t.Errorf("re-upsert changed counts: %d / %d", store.NodeCount(), store.EdgeCount())
	}
}

func TestUpsertExcludesDenyStatements(t *testing.T) {
	store := graph.NewMemoryStore()
	u := NewUpserter(store)
	ctx := context.Background()

	if _, err := u.UpsertIdentityGraph(ctx, []models.RoleRecord{sampleRole(t)}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.FindNode(ctx, graph.NodeAction, "s3:DeleteBucket"); err != graph.ErrNotFound {
		t.Errorf("deny-statement action must not be materialized, err=%v", err)
	}
}

func TestUpsertWildcardExclusion(t *testing.T) {
	store := graph.NewMemoryStore()
	u := NewUpserter(store)
	ctx := context.Background()

	role := models.RoleRecord{
		ARN:       "arn:aws:iam::123456789012:role/admin",
		Name:      "admin",
		AccountID: "123456789012",
		Policies: []models.PolicyRecord{{
			ARN:      "arn:aws:iam::aws:policy/AdministratorAccess",
			Name:     "AdministratorAccess",
			Type:     models.PolicyTypeManaged,
			Document: doc(t, `{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Action":["*","s3:Get*"]}]}`),
		}},
	}
	if _, err := u.UpsertIdentityGraph(ctx, []models.RoleRecord{role}); err != nil {
		t.Fatal(err)
	}

	actions, err := store.NodeKeysByLabel(ctx, graph.NodeAction)
	if err != nil {
		t.Fatal(err)
	}
	if len(actions) != 0 {
		t.Errorf("wildcard actions must produce no Action nodes, got %v", actions)
	}
	// Role, policy, and HAS_POLICY edge are still created.
	if store.NodeCount() != 2 || store.EdgeCount() != 1 {
		t.Errorf("expected 2 nodes / 1 edge, got %d / %d", store.NodeCount(), store.EdgeCount())
	}
}

func TestUpsertMalformedDocumentSkipped(t *testing.T) {
	store := graph.NewMemoryStore()
	u := NewUpserter(store)
	ctx := context.Background()

	role := models.RoleRecord{
		ARN:       "arn:aws:iam::123456789012:role/broken",
		Name:      "broken",
		AccountID: "123456789012",
		Policies: []models.PolicyRecord{
			{
				ARN:      "arn:aws:iam::123456789012:role/broken/policy/bad",
				Name:     "bad",
				Type:     models.PolicyTypeInline,
				Document: json.RawMessage(`{"Statement":"not-a-list"}`),
			},
			{
				ARN:      "arn:aws:iam::aws:policy/Good",
				Name:     "Good",
				Type:     models.PolicyTypeManaged,
				Document: doc(t, `{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Action":"ec2:DescribeInstances"}]}`),
			},
		},
	}
	n, err := u.UpsertIdentityGraph(ctx, []models.RoleRecord{role})
	if err != nil {
		t.Fatalf("malformed document must not abort the batch: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 role processed, got %d", n)
	}
	// The good policy's action landed despite the bad sibling.
	if _, err := store.FindNode(ctx, graph.NodeAction, "ec2:DescribeInstances"); err != nil {
		t.Errorf("expected action from valid policy: %v", err)
	}
	// The bad policy node itself is still materialized with its snapshot.
	if _, err := store.FindNode(ctx, graph.NodePolicy, "arn:aws:iam::123456789012:role/broken/policy/bad"); err != nil {
		t.Errorf("expected policy node for malformed document: %v", err)
	}
}

func TestUpsertRoleAttributesImmutable(t *testing.T) {
	store := graph.NewMemoryStore()
	u := NewUpserter(store)
	ctx := context.Background()

	first := sampleRole(t)
	if _, err := u.UpsertIdentityGraph(ctx, []models.RoleRecord{first}); err != nil {
		t.Fatal(err)
	}
	renamed := first
	renamed.Name = "renamed"
	if _, err := u.UpsertIdentityGraph(ctx, []models.RoleRecord{renamed}); err != nil {
		t.Fatal(err)
	}
	n, err := store.FindNode(ctx, graph.NodeRole, first.ARN)
	if err != nil {
		t.Fatal(err)
	}
	if n.Props[graph.PropName] != "app" {
		t.Errorf("re-upsert must not overwrite role attributes, got name=%q", n.Props[graph.PropName])
	}
}
