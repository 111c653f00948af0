package snapshotcache

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/schemalens/schemalens-go/pkg/models"
	"github.com/schemalens/schemalens-go/utils"
)

// SQLiteCache is the default snapshot cache backend: a flat key-value
// table in SQLite, sharing the durability model of the ontology store
type SQLiteCache struct {
	db       *sql.DB
	versions VersionSource
	logger   *utils.Logger

	writeMu sync.Mutex
}

// NewSQLiteCache creates a SQLite-backed snapshot cache. The version
// source is consulted on every Get to reject stale snapshots.
func NewSQLiteCache(dbPath string, versions VersionSource) (*SQLiteCache, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS graph_snapshots (
		cache_key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteCache{
		db:       db,
		versions: versions,
		logger:   utils.GetLogger(),
	}, nil
}

// Close closes the database connection
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

// Get returns the snapshot for a mode, reporting a miss when absent,
// incomplete, or derived from a different ontology version
func (c *SQLiteCache) Get(ctx context.Context, mode models.GraphMode) (*models.GraphSnapshot, bool, error) {
	rows, err := c.db.QueryContext(ctx,
		"SELECT cache_key, value FROM graph_snapshots WHERE cache_key IN (?, ?, ?, ?)",
		artifactKey(mode, artifactNodes),
		artifactKey(mode, artifactEdges),
		artifactKey(mode, artifactUpdatedAt),
		artifactKey(mode, artifactOntologyVersion))
	if err != nil {
		return nil, false, fmt.Errorf("failed to query snapshot: %w", err)
	}
	defer rows.Close()

	docs := make(map[string]string, len(artifacts))
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, false, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		for _, artifact := range artifacts {
			if key == artifactKey(mode, artifact) {
				docs[artifact] = value
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}

	if len(docs) < len(artifacts) {
		return nil, false, nil
	}

	snapshot, err := decodeSnapshot(mode, docs)
	if err != nil {
		// A corrupt entry behaves like a miss so the caller rebuilds
		c.logger.Warn("discarding corrupt snapshot entry", utils.Component("snapshot-cache"),
			utils.String("mode", string(mode)), utils.Error(err))
		return nil, false, nil
	}

	current, err := c.versions.CurrentVersion(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to check ontology version: %w", err)
	}
	if snapshot.OntologyVersion != current {
		c.logger.Debug("snapshot version mismatch, treating as miss",
			utils.Component("snapshot-cache"),
			utils.String("mode", string(mode)),
			utils.Int64("snapshot_version", snapshot.OntologyVersion),
			utils.Int64("ontology_version", current))
		return nil, false, nil
	}

	return snapshot, true, nil
}

// Put stores a snapshot, writing all four artifact keys in one transaction
func (c *SQLiteCache) Put(ctx context.Context, mode models.GraphMode, snapshot *models.GraphSnapshot) error {
	docs, err := encodeSnapshot(snapshot)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for artifact, value := range docs {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO graph_snapshots (cache_key, value) VALUES (?, ?)",
			artifactKey(mode, artifact), value); err != nil {
			return fmt.Errorf("failed to write artifact %s: %w", artifact, err)
		}
	}

	return tx.Commit()
}

// Invalidate removes the snapshot for a mode, or for all modes when
// mode is empty
func (c *SQLiteCache) Invalidate(ctx context.Context, mode models.GraphMode) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if mode == "" {
		if _, err := c.db.ExecContext(ctx, "DELETE FROM graph_snapshots"); err != nil {
			return fmt.Errorf("failed to invalidate all snapshots: %w", err)
		}
		return nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, artifact := range artifacts {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM graph_snapshots WHERE cache_key = ?", artifactKey(mode, artifact)); err != nil {
			return fmt.Errorf("failed to invalidate artifact %s: %w", artifact, err)
		}
	}

	return tx.Commit()
}
