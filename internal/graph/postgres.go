package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a Store backed by PostgreSQL. Node uniqueness is enforced
// by a UNIQUE (label, key) constraint and edge uniqueness by the
// (src_id, dst_id, label) primary key, so conditional inserts are safe under
// concurrent writers without application-level locking.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore opens a pgxpool connection and returns a ready store.
func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Close() {
	p.pool.Close()
}

func (p *PostgresStore) FindNode(ctx context.Context, label, key string) (*Node, error) {
	var propsJSON []byte
	err := p.pool.QueryRow(ctx,
		`SELECT props FROM graph_nodes WHERE label = $1 AND key = $2`,
		label, key,
	).Scan(&propsJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding node %s/%s: %w", label, key, err)
	}
	props, err := decodeProps(propsJSON)
	if err != nil {
		return nil, err
	}
	return &Node{Label: label, Key: key, Props: props}, nil
}

func (p *PostgresStore) CreateNode(ctx context.Context, label, key string, props map[string]string) (*Node, error) {
	propsJSON, err := json.Marshal(props)
	if err != nil {
		return nil, fmt.Errorf("encoding node props: %w", err)
	}
	// ON CONFLICT DO NOTHING keeps the first writer's attributes; a re-upsert
	// of an existing key is a no-op.
	_, err = p.pool.Exec(ctx,
		`INSERT INTO graph_nodes (label, key, props) VALUES ($1, $2, $3)
		 ON CONFLICT (label, key) DO NOTHING`,
		label, key, propsJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("creating node %s/%s: %w", label, key, err)
	}
	return p.FindNode(ctx, label, key)
}

func (p *PostgresStore) FindEdge(ctx context.Context, src, dst Ref, label string) (*Edge, error) {
	var propsJSON []byte
	err := p.pool.QueryRow(ctx,
		`SELECT e.props
		   FROM graph_edges e
		   JOIN graph_nodes s ON s.id = e.src_id
		   JOIN graph_nodes d ON d.id = e.dst_id
		  WHERE s.label = $1 AND s.key = $2
		    AND d.label = $3 AND d.key = $4
		    AND e.label = $5`,
		src.Label, src.Key, dst.Label, dst.Key, label,
	).Scan(&propsJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding edge %s: %w", label, err)
	}
	props, err := decodeProps(propsJSON)
	if err != nil {
		return nil, err
	}
	return &Edge{Src: src, Dst: dst, Label: label, Props: props}, nil
}

func (p *PostgresStore) CreateEdge(ctx context.Context, src, dst Ref, label string, props map[string]string) (*Edge, error) {
	propsJSON, err := json.Marshal(props)
	if err != nil {
		return nil, fmt.Errorf("encoding edge props: %w", err)
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO graph_edges (src_id, dst_id, label, props)
		 SELECT s.id, d.id, $5, $6
		   FROM graph_nodes s, graph_nodes d
		  WHERE s.label = $1 AND s.key = $2
		    AND d.label = $3 AND d.key = $4
		 ON CONFLICT (src_id, dst_id, label) DO NOTHING`,
		src.Label, src.Key, dst.Label, dst.Key, label, propsJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("creating edge %s: %w", label, err)
	}
	// Missing endpoints insert zero rows; FindEdge reports that as ErrNotFound.
	return p.FindEdge(ctx, src, dst, label)
}

func (p *PostgresStore) SetEdgeProperty(ctx context.Context, src, dst Ref, label, name, value string) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE graph_edges e
		    SET props = e.props || jsonb_build_object($6::text, $7::text)
		   FROM graph_nodes s, graph_nodes d
		  WHERE e.src_id = s.id AND e.dst_id = d.id
		    AND s.label = $1 AND s.key = $2
		    AND d.label = $3 AND d.key = $4
		    AND e.label = $5`,
		src.Label, src.Key, dst.Label, dst.Key, label, name, value,
	)
	if err != nil {
		return fmt.Errorf("setting edge property %s: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) NodeKeysByLabel(ctx context.Context, label string) ([]string, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT key FROM graph_nodes WHERE label = $1 ORDER BY key`, label)
	if err != nil {
		return nil, fmt.Errorf("listing %s nodes: %w", label, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (p *PostgresStore) Neighbors(ctx context.Context, src Ref, edgeLabel string) ([]*Node, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT d.label, d.key, d.props
		   FROM graph_edges e
		   JOIN graph_nodes s ON s.id = e.src_id
		   JOIN graph_nodes d ON d.id = e.dst_id
		  WHERE s.label = $1 AND s.key = $2 AND e.label = $3`,
		src.Label, src.Key, edgeLabel,
	)
	if err != nil {
		return nil, fmt.Errorf("traversing %s edges: %w", edgeLabel, err)
	}
	defer rows.Close()

	var out []*Node
	for rows.Next() {
		var (
			label, key string
			propsJSON  []byte
		)
		if err := rows.Scan(&label, &key, &propsJSON); err != nil {
			return nil, err
		}
		props, err := decodeProps(propsJSON)
		if err != nil {
			return nil, err
		}
		out = append(out, &Node{Label: label, Key: key, Props: props})
	}
	return out, rows.Err()
}

func decodeProps(data []byte) (map[string]string, error) {
	props := map[string]string{}
	if len(data) == 0 {
		return props, nil
	}
	if err := json.Unmarshal(data, &props); err != nil {
		return nil, fmt.Errorf("decoding props: %w", err)
	}
	return props, nil
}
