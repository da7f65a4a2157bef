// Package store persists built relationship graphs to PostgreSQL so a
// fetched snapshot can be reloaded without another round of gateway queries.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Lscheinman/odata/api/schemas"
	"github.com/Lscheinman/odata/internal/odata"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// DBPool abstracts the pgxpool.Pool methods we need, so tests can swap in a
// mock pool.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store is the PostgreSQL snapshot store.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{pool: pool, log: logger.Named("store")}, nil
}

// SaveGraph persists a graph under a fresh snapshot ID inside one
// transaction and returns that ID.
func (s *Store) SaveGraph(ctx context.Context, rootID string, g *schemas.Graph) (string, error) {
	snapshotID := uuid.NewString()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && rollbackErr != pgx.ErrTxClosed {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	now := time.Now()
	if _, err := tx.Exec(ctx, `
        INSERT INTO graph_snapshots (id, root_id, node_count, edge_count, created_at)
        VALUES ($1, $2, $3, $4, $5);
    `, snapshotID, rootID, len(g.Nodes), len(g.Edges), now); err != nil {
		return "", fmt.Errorf("failed to insert snapshot %s: %w", snapshotID, err)
	}

	for _, n := range g.Nodes {
		record := n.Record
		if record == nil {
			record = schemas.Record{}
		}
		props, err := json.Marshal(record)
		if err != nil {
			return "", fmt.Errorf("failed to marshal record for node %s: %w", n.ID, err)
		}
		if _, err := tx.Exec(ctx, `
        INSERT INTO graph_nodes (snapshot_id, id, record)
        VALUES ($1, $2, $3)
        ON CONFLICT (snapshot_id, id) DO UPDATE SET
            record = EXCLUDED.record;
    `, snapshotID, n.ID, props); err != nil {
			return "", fmt.Errorf("failed to insert node %s: %w", n.ID, err)
		}
	}

	for _, e := range g.Edges {
		if _, err := tx.Exec(ctx, `
        INSERT INTO graph_edges (snapshot_id, source_id, target_id, rel)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (snapshot_id, source_id, target_id, rel) DO NOTHING;
    `, snapshotID, e.Source, e.Target, e.Rel); err != nil {
			return "", fmt.Errorf("failed to insert edge %s -> %s: %w", e.Source, e.Target, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.Info("Graph snapshot saved",
		zap.String("snapshot_id", snapshotID),
		zap.String("root", rootID),
		zap.Int("nodes", len(g.Nodes)),
		zap.Int("edges", len(g.Edges)))
	return snapshotID, nil
}

// LoadGraph reads a snapshot back into a graph.
func (s *Store) LoadGraph(ctx context.Context, snapshotID string) (*schemas.Graph, error) {
	g := &schemas.Graph{}

	rows, err := s.pool.Query(ctx, `
        SELECT id, record FROM graph_nodes WHERE snapshot_id = $1 ORDER BY id ASC;
    `, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var props []byte
		if err := rows.Scan(&id, &props); err != nil {
			return nil, fmt.Errorf("failed to scan node row: %w", err)
		}
		var record schemas.Record
		if err := json.Unmarshal(props, &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record for node %s: %w", id, err)
		}
		g.Nodes = append(g.Nodes, schemas.GraphNode{ID: id, Record: record})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during node iteration: %w", err)
	}

	edgeRows, err := s.pool.Query(ctx, `
        SELECT source_id, target_id, rel FROM graph_edges WHERE snapshot_id = $1 ORDER BY source_id, target_id, rel;
    `, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer edgeRows.Close()
	for edgeRows.Next() {
		var e schemas.GraphEdge
		if err := edgeRows.Scan(&e.Source, &e.Target, &e.Rel); err != nil {
			return nil, fmt.Errorf("failed to scan edge row: %w", err)
		}
		g.Edges = append(g.Edges, e)
	}
	if err := edgeRows.Err(); err != nil {
		return nil, fmt.Errorf("error during edge iteration: %w", err)
	}

	if len(g.Nodes) == 0 && len(g.Edges) == 0 {
		return nil, &odata.NotFoundError{Resource: "snapshot", Key: snapshotID}
	}
	return g, nil
}
