package graph

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested node or edge does not exist.
var ErrNotFound = errors.New("not found")

// Node labels. Natural keys: roles and policies are keyed by ARN, actions by
// their "<service>:<operation>" name.
const (
	NodeRole   = "role"
	NodePolicy = "policy"
	NodeAction = "action"
)

// Edge labels.
const (
	EdgeHasPolicy  = "HAS_POLICY"
	EdgePermits    = "PERMITS"
	EdgeUsedAction = "USED_ACTION"
)

// Node property names.
const (
	PropARN       = "arn"
	PropName      = "name"
	PropAccountID = "account_id"
	PropType      = "type"
	PropDocument  = "document"
)

// Edge property names for USED_ACTION edges. Timestamps are RFC 3339 strings;
// lookback_start is set once at edge creation, last_seen on every observation.
const (
	PropLookbackStart = "lookback_start"
	PropLastSeen      = "last_seen"
)

// Node is a graph vertex identified by (Label, Key).
type Node struct {
	Label string
	Key   string
	Props map[string]string
}

// Ref identifies a node by its label and natural key.
type Ref struct {
	Label string
	Key   string
}

// Edge is a directed relationship between two nodes. At most one edge exists
// per (source, target, label) triple.
type Edge struct {
	Src   Ref
	Dst   Ref
	Label string
	Props map[string]string
}

// Store is the graph query capability set the engine requires. Any backend
// exposing these operations is compatible.
//
// CreateNode and CreateEdge are conditional inserts: if an entity with the
// same natural key (or the same (source, target, label) triple) already
// exists, the existing entity is returned unchanged and no duplicate is
// created. Backends must enforce this under concurrent writers, either with
// a uniqueness constraint or by serializing mutation per key.
type Store interface {
	FindNode(ctx context.Context, label, key string) (*Node, error)
	CreateNode(ctx context.Context, label, key string, props map[string]string) (*Node, error)

	FindEdge(ctx context.Context, src, dst Ref, label string) (*Edge, error)
	CreateEdge(ctx context.Context, src, dst Ref, label string, props map[string]string) (*Edge, error)
	SetEdgeProperty(ctx context.Context, src, dst Ref, label, name, value string) error

	// NodeKeysByLabel lists the natural keys of all nodes with the label.
	NodeKeysByLabel(ctx context.Context, label string) ([]string, error)
	// Neighbors traverses outgoing edges with the given label from src and
	// returns the target nodes.
	Neighbors(ctx context.Context, src Ref, edgeLabel string) ([]*Node, error)

	Close()
}
