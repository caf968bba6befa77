package graph

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store for development and tests. A single
// mutex serializes all mutation, so conditional inserts cannot race.
type MemoryStore struct {
	mu    sync.Mutex
	nodes map[Ref]*Node
	edges map[edgeKey]*Edge
}

type edgeKey struct {
	src   Ref
	dst   Ref
	label string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes: map[Ref]*Node{},
		edges: map[edgeKey]*Edge{},
	}
}

func (m *MemoryStore) FindNode(_ context.Context, label, key string) (*Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[Ref{Label: label, Key: key}]
	if !ok {
		return nil, ErrNotFound
	}
	return copyNode(n), nil
}

func (m *MemoryStore) CreateNode(_ context.Context, label, key string, props map[string]string) (*Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref := Ref{Label: label, Key: key}
	if existing, ok := m.nodes[ref]; ok {
		return copyNode(existing), nil
	}
	n := &Node{Label: label, Key: key, Props: copyProps(props)}
	m.nodes[ref] = n
	return copyNode(n), nil
}

func (m *MemoryStore) FindEdge(_ context.Context, src, dst Ref, label string) (*Edge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.edges[edgeKey{src: src, dst: dst, label: label}]
	if !ok {
		return nil, ErrNotFound
	}
	return copyEdge(e), nil
}

func (m *MemoryStore) CreateEdge(_ context.Context, src, dst Ref, label string, props map[string]string) (*Edge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.nodes[src]; !ok {
		return nil, ErrNotFound
	}
	if _, ok := m.nodes[dst]; !ok {
		return nil, ErrNotFound
	}
	k := edgeKey{src: src, dst: dst, label: label}
	if existing, ok := m.edges[k]; ok {
		return copyEdge(existing), nil
	}
	e := &Edge{Src: src, Dst: dst, Label: label, Props: copyProps(props)}
	m.edges[k] = e
	return copyEdge(e), nil
}

func (m *MemoryStore) SetEdgeProperty(_ context.Context, src, dst Ref, label, name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.edges[edgeKey{src: src, dst: dst, label: label}]
	if !ok {
		return ErrNotFound
	}
	if e.Props == nil {
		e.Props = map[string]string{}
	}
	e.Props[name] = value
	return nil
}

func (m *MemoryStore) NodeKeysByLabel(_ context.Context, label string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for ref := range m.nodes {
		if ref.Label == label {
			keys = append(keys, ref.Key)
		}
	}
	return keys, nil
}

func (m *MemoryStore) Neighbors(_ context.Context, src Ref, edgeLabel string) ([]*Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Node
	for k := range m.edges {
		if k.src == src && k.label == edgeLabel {
			if n, ok := m.nodes[k.dst]; ok {
				out = append(out, copyNode(n))
			}
		}
	}
	return out, nil
}

func (m *MemoryStore) Close() {}

// NodeCount and EdgeCount support idempotence assertions in tests.

func (m *MemoryStore) NodeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.nodes)
}

func (m *MemoryStore) EdgeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.edges)
}

func copyProps(props map[string]string) map[string]string {
	out := make(map[string]string, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}

func copyNode(n *Node) *Node {
	return &Node{Label: n.Label, Key: n.Key, Props: copyProps(n.Props)}
}

func copyEdge(e *Edge) *Edge {
	return &Edge{Src: e.Src, Dst: e.Dst, Label: e.Label, Props: copyProps(e.Props)}
}
