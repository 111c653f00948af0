package snapshotcache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/schemalens/schemalens-go/pkg/models"
)

// VersionSource supplies the current ontology version for freshness
// checks on read. The ontology store satisfies this.
type VersionSource interface {
	CurrentVersion(ctx context.Context) (int64, error)
}

// SnapshotCache is the interface for the durable snapshot tier: fully
// realized, render-ready graphs keyed by graph mode. Storage is a flat
// key-to-JSON-document mapping with one key per (mode, artifact) pair;
// a Put writes all artifacts of a mode atomically so a snapshot can
// never be served with nodes and edges from two different builds.
//
// Get validates the stored ontology version against the live ontology
// store; a mismatch is reported as a miss, never an error, so callers
// fall through to a rebuild.
type SnapshotCache interface {
	Get(ctx context.Context, mode models.GraphMode) (*models.GraphSnapshot, bool, error)
	Put(ctx context.Context, mode models.GraphMode, snapshot *models.GraphSnapshot) error

	// Invalidate marks the given mode's snapshot unusable; an empty mode
	// invalidates every mode
	Invalidate(ctx context.Context, mode models.GraphMode) error

	Close() error
}

// Artifact names of the per-mode key quadruple
const (
	artifactNodes           = "nodes"
	artifactEdges           = "edges"
	artifactUpdatedAt       = "updated_at"
	artifactOntologyVersion = "ontology_version"
)

var artifacts = []string{artifactNodes, artifactEdges, artifactUpdatedAt, artifactOntologyVersion}

// cacheModes are the graph modes with an independent cache lifecycle
var cacheModes = []models.GraphMode{models.ModeSchema, models.ModeData}

// artifactKey builds the storage key for one (mode, artifact) pair
func artifactKey(mode models.GraphMode, artifact string) string {
	return fmt.Sprintf("%s:%s", mode, artifact)
}

// freshnessDoc is the JSON document stored under the updated_at key
type freshnessDoc struct {
	BuiltAt time.Time `json:"built_at"`
	ID      string    `json:"id"`
}

// encodeSnapshot serializes a snapshot into its four artifact documents
func encodeSnapshot(snapshot *models.GraphSnapshot) (map[string]string, error) {
	if err := snapshot.Validate(); err != nil {
		return nil, fmt.Errorf("refusing to cache inconsistent snapshot: %w", err)
	}

	nodesJSON, err := json.Marshal(snapshot.Nodes)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal nodes: %w", err)
	}
	edgesJSON, err := json.Marshal(snapshot.Edges)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal edges: %w", err)
	}
	freshJSON, err := json.Marshal(freshnessDoc{BuiltAt: snapshot.BuiltAt, ID: snapshot.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal freshness: %w", err)
	}

	return map[string]string{
		artifactNodes:           string(nodesJSON),
		artifactEdges:           string(edgesJSON),
		artifactUpdatedAt:       string(freshJSON),
		artifactOntologyVersion: strconv.FormatInt(snapshot.OntologyVersion, 10),
	}, nil
}

// decodeSnapshot rebuilds a snapshot from its artifact documents.
// All four artifacts must be present.
func decodeSnapshot(mode models.GraphMode, docs map[string]string) (*models.GraphSnapshot, error) {
	for _, artifact := range artifacts {
		if _, ok := docs[artifact]; !ok {
			return nil, fmt.Errorf("snapshot for mode %s is missing artifact %s", mode, artifact)
		}
	}

	snapshot := &models.GraphSnapshot{Mode: mode}

	if err := json.Unmarshal([]byte(docs[artifactNodes]), &snapshot.Nodes); err != nil {
		return nil, fmt.Errorf("corrupt nodes document: %w", err)
	}
	if err := json.Unmarshal([]byte(docs[artifactEdges]), &snapshot.Edges); err != nil {
		return nil, fmt.Errorf("corrupt edges document: %w", err)
	}

	var fresh freshnessDoc
	if err := json.Unmarshal([]byte(docs[artifactUpdatedAt]), &fresh); err != nil {
		return nil, fmt.Errorf("corrupt freshness document: %w", err)
	}
	snapshot.BuiltAt = fresh.BuiltAt
	snapshot.ID = fresh.ID

	version, err := strconv.ParseInt(docs[artifactOntologyVersion], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt ontology version document: %w", err)
	}
	snapshot.OntologyVersion = version

	snapshot.ComputeStats()
	return snapshot, nil
}
