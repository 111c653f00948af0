package ontologystore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/schemalens/schemalens-go/pkg/models"
)

// SQLiteStore provides SQLite-based ontology persistence
type SQLiteStore struct {
	db *sql.DB

	// Serializes writers; readers go straight to the database so they are
	// never blocked longer than one write transaction.
	writeMu sync.Mutex
}

// NewSQLiteStore creates a new SQLite-based ontology store
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Writes are serialized by SQLite anyway, keep the pool small
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// initSchema creates the database schema if it doesn't exist
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_nodes (
		entity_name TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		fields TEXT NOT NULL,
		key_fields TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS schema_edges (
		source_entity TEXT NOT NULL,
		source_field TEXT NOT NULL,
		target_entity TEXT NOT NULL,
		target_field TEXT NOT NULL,
		kind TEXT NOT NULL,
		cardinality_min INTEGER NOT NULL,
		cardinality_max TEXT NOT NULL,
		confidence REAL NOT NULL,
		method TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (source_entity, source_field, target_entity, target_field)
	);

	CREATE TABLE IF NOT EXISTS ontology_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	INSERT OR IGNORE INTO ontology_meta (key, value) VALUES ('version', '0');
	`

	_, err := s.db.Exec(schema)
	return err
}

// retryOnBusy retries a write once with exponential backoff when the
// database is locked, then surfaces the conflict as fatal
func (s *SQLiteStore) retryOnBusy(operation func() error) error {
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		err = operation()
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "SQLITE_BUSY") && !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		time.Sleep(time.Duration(50*(1<<uint(attempt))) * time.Millisecond)
	}
	return fmt.Errorf("%w: %v", models.ErrWriteConflict, err)
}

// Upsert merges nodes and edges into the store as a single transaction.
// The version bumps only when the stored set changes by full value;
// identical upserts are no-ops so downstream snapshots stay valid.
func (s *SQLiteStore) Upsert(ctx context.Context, nodes []models.SchemaNode, edges []models.SchemaEdge) (int64, error) {
	for i := range edges {
		if err := edges[i].Validate(); err != nil {
			return 0, fmt.Errorf("invalid edge %s: %w", edges[i].Key(), err)
		}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var version int64
	err := s.retryOnBusy(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		existingEdges, err := readEdges(ctx, tx)
		if err != nil {
			return err
		}
		existingNodes, err := readNodes(ctx, tx)
		if err != nil {
			return err
		}

		byKey := make(map[models.EdgeKey]models.SchemaEdge, len(existingEdges))
		for _, edge := range existingEdges {
			byKey[edge.Key()] = edge
		}

		now := time.Now().UTC()
		changed := false

		for _, edge := range edges {
			existing, found := byKey[edge.Key()]
			if found {
				// Curator decisions outrank automated rediscovery
				if existing.Method == models.MethodManuallyVerified && edge.Method != models.MethodManuallyVerified {
					continue
				}
				if existing.ValueEquals(&edge) {
					continue
				}
				edge.CreatedAt = existing.CreatedAt
			} else {
				edge.CreatedAt = now
			}
			edge.UpdatedAt = now

			if err := writeEdge(ctx, tx, &edge); err != nil {
				return err
			}
			changed = true
		}

		nodesChanged := !models.NodesEqual(existingNodes, nodes)
		if nodesChanged {
			if _, err := tx.ExecContext(ctx, "DELETE FROM schema_nodes"); err != nil {
				return fmt.Errorf("failed to clear nodes: %w", err)
			}
			for position, node := range nodes {
				if err := writeNode(ctx, tx, &node, position); err != nil {
					return err
				}
			}
			changed = true
		}

		version, err = readVersion(ctx, tx)
		if err != nil {
			return err
		}
		if changed {
			version++
			if err := writeVersion(ctx, tx, version); err != nil {
				return err
			}
		}

		return tx.Commit()
	})
	if err != nil {
		return 0, err
	}

	return version, nil
}

// GetAll returns all nodes, edges, and the current version
func (s *SQLiteStore) GetAll(ctx context.Context) ([]models.SchemaNode, []models.SchemaEdge, int64, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, nil, 0, fmt.Errorf("failed to begin read transaction: %w", err)
	}
	defer tx.Rollback()

	nodes, err := readNodes(ctx, tx)
	if err != nil {
		return nil, nil, 0, err
	}
	edges, err := readEdges(ctx, tx)
	if err != nil {
		return nil, nil, 0, err
	}
	version, err := readVersion(ctx, tx)
	if err != nil {
		return nil, nil, 0, err
	}

	return nodes, edges, version, nil
}

// CurrentVersion returns the current ontology version
func (s *SQLiteStore) CurrentVersion(ctx context.Context) (int64, error) {
	var raw string
	if err := s.db.QueryRowContext(ctx, "SELECT value FROM ontology_meta WHERE key = 'version'").Scan(&raw); err != nil {
		return 0, fmt.Errorf("failed to read version: %w", err)
	}
	var version int64
	if _, err := fmt.Sscanf(raw, "%d", &version); err != nil {
		return 0, fmt.Errorf("corrupt version value %q: %w", raw, err)
	}
	return version, nil
}

// IsValid reports whether at least one node and one edge exist
func (s *SQLiteStore) IsValid(ctx context.Context) (bool, error) {
	var nodeCount, edgeCount int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_nodes").Scan(&nodeCount); err != nil {
		return false, fmt.Errorf("failed to count nodes: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_edges").Scan(&edgeCount); err != nil {
		return false, fmt.Errorf("failed to count edges: %w", err)
	}
	return nodeCount > 0 && edgeCount > 0, nil
}

// Override marks an edge as manually verified with the given kind
func (s *SQLiteStore) Override(ctx context.Context, key models.EdgeKey, kind models.RelationshipKind, force bool) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if kind != models.KindReference && kind != models.KindOwnership {
		return fmt.Errorf("invalid relationship kind %q", kind)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.retryOnBusy(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		existing, err := readEdge(ctx, tx, key)
		if err != nil {
			return err
		}
		if existing == nil {
			return fmt.Errorf("override %s: %w", key, models.ErrEdgeNotFound)
		}

		if existing.Method == models.MethodManuallyVerified && existing.Kind != kind && !force {
			return fmt.Errorf("override %s: %w", key, models.ErrManualOverride)
		}

		if existing.Method == models.MethodManuallyVerified && existing.Kind == kind && existing.Confidence == 1.0 {
			return tx.Commit() // nothing to change, keep the version stable
		}

		existing.Kind = kind
		existing.Confidence = 1.0
		existing.Method = models.MethodManuallyVerified
		existing.UpdatedAt = time.Now().UTC()

		if err := writeEdge(ctx, tx, existing); err != nil {
			return err
		}

		version, err := readVersion(ctx, tx)
		if err != nil {
			return err
		}
		if err := writeVersion(ctx, tx, version+1); err != nil {
			return err
		}

		return tx.Commit()
	})
}

// Reset deletes all ontology data and bumps the version so any cached
// snapshot derived from the old ontology becomes unservable
func (s *SQLiteStore) Reset(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.retryOnBusy(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx, "DELETE FROM schema_nodes"); err != nil {
			return fmt.Errorf("failed to delete nodes: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM schema_edges"); err != nil {
			return fmt.Errorf("failed to delete edges: %w", err)
		}

		version, err := readVersion(ctx, tx)
		if err != nil {
			return err
		}
		if err := writeVersion(ctx, tx, version+1); err != nil {
			return err
		}

		return tx.Commit()
	})
}

// readVersion reads the version counter inside a transaction
func readVersion(ctx context.Context, tx *sql.Tx) (int64, error) {
	var raw string
	if err := tx.QueryRowContext(ctx, "SELECT value FROM ontology_meta WHERE key = 'version'").Scan(&raw); err != nil {
		return 0, fmt.Errorf("failed to read version: %w", err)
	}
	var version int64
	if _, err := fmt.Sscanf(raw, "%d", &version); err != nil {
		return 0, fmt.Errorf("corrupt version value %q: %w", raw, err)
	}
	return version, nil
}

// writeVersion updates the version counter inside a transaction
func writeVersion(ctx context.Context, tx *sql.Tx, version int64) error {
	if _, err := tx.ExecContext(ctx, "UPDATE ontology_meta SET value = ? WHERE key = 'version'", fmt.Sprintf("%d", version)); err != nil {
		return fmt.Errorf("failed to write version: %w", err)
	}
	return nil
}

const edgeColumns = "source_entity, source_field, target_entity, target_field, kind, cardinality_min, cardinality_max, confidence, method, created_at, updated_at"

// readEdges returns all edges in deterministic order
func readEdges(ctx context.Context, tx *sql.Tx) ([]models.SchemaEdge, error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf(
		"SELECT %s FROM schema_edges ORDER BY source_entity, source_field, target_entity, target_field", edgeColumns))
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()

	var edges []models.SchemaEdge
	for rows.Next() {
		edge, err := scanEdge(rows)
		if err != nil {
			return nil, err
		}
		edges = append(edges, *edge)
	}
	return edges, rows.Err()
}

// readEdge returns the edge at key, nil when absent
func readEdge(ctx context.Context, tx *sql.Tx, key models.EdgeKey) (*models.SchemaEdge, error) {
	row := tx.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT %s FROM schema_edges WHERE source_entity = ? AND source_field = ? AND target_entity = ? AND target_field = ?", edgeColumns),
		key.SourceEntity, key.SourceField, key.TargetEntity, key.TargetField)

	edge, err := scanEdge(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return edge, nil
}

// rowScanner covers both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEdge(row rowScanner) (*models.SchemaEdge, error) {
	var edge models.SchemaEdge
	var kind, method string
	err := row.Scan(&edge.SourceEntity, &edge.SourceField, &edge.TargetEntity, &edge.TargetField,
		&kind, &edge.CardinalityMin, &edge.CardinalityMax, &edge.Confidence, &method,
		&edge.CreatedAt, &edge.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan edge: %w", err)
	}
	edge.Kind = models.RelationshipKind(kind)
	edge.Method = models.DiscoveryMethod(method)
	return &edge, nil
}

// writeEdge inserts or replaces one edge inside a transaction
func writeEdge(ctx context.Context, tx *sql.Tx, edge *models.SchemaEdge) error {
	_, err := tx.ExecContext(ctx, fmt.Sprintf(`
		INSERT OR REPLACE INTO schema_edges (%s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, edgeColumns),
		edge.SourceEntity, edge.SourceField, edge.TargetEntity, edge.TargetField,
		string(edge.Kind), edge.CardinalityMin, edge.CardinalityMax, edge.Confidence, string(edge.Method),
		edge.CreatedAt, edge.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to write edge %s: %w", edge.Key(), err)
	}
	return nil
}

// readNodes returns all nodes in their stored order
func readNodes(ctx context.Context, tx *sql.Tx) ([]models.SchemaNode, error) {
	rows, err := tx.QueryContext(ctx, "SELECT entity_name, fields, key_fields FROM schema_nodes ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	var nodes []models.SchemaNode
	for rows.Next() {
		var node models.SchemaNode
		var fieldsJSON, keyFieldsJSON string
		if err := rows.Scan(&node.EntityName, &fieldsJSON, &keyFieldsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		if err := json.Unmarshal([]byte(fieldsJSON), &node.Fields); err != nil {
			return nil, fmt.Errorf("corrupt fields for node %s: %w", node.EntityName, err)
		}
		if err := json.Unmarshal([]byte(keyFieldsJSON), &node.KeyFields); err != nil {
			return nil, fmt.Errorf("corrupt key fields for node %s: %w", node.EntityName, err)
		}
		nodes = append(nodes, node)
	}
	return nodes, rows.Err()
}

// writeNode inserts or replaces one node inside a transaction
func writeNode(ctx context.Context, tx *sql.Tx, node *models.SchemaNode, position int) error {
	fieldsJSON, err := json.Marshal(node.Fields)
	if err != nil {
		return fmt.Errorf("failed to marshal fields for node %s: %w", node.EntityName, err)
	}
	keyFieldsJSON, err := json.Marshal(node.KeyFields)
	if err != nil {
		return fmt.Errorf("failed to marshal key fields for node %s: %w", node.EntityName, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO schema_nodes (entity_name, position, fields, key_fields)
		VALUES (?, ?, ?, ?)`,
		node.EntityName, position, string(fieldsJSON), string(keyFieldsJSON))
	if err != nil {
		return fmt.Errorf("failed to write node %s: %w", node.EntityName, err)
	}
	return nil
}
