package snapshotcache

import (
	"context"
	"testing"
	"time"

	"github.com/schemalens/schemalens-go/pkg/models"
)

// fakeVersions is a VersionSource pinned to a settable version
type fakeVersions struct {
	version int64
}

func (f *fakeVersions) CurrentVersion(ctx context.Context) (int64, error) {
	return f.version, nil
}

func newTestCache(t *testing.T, versions VersionSource) *SQLiteCache {
	t.Helper()
	cache, err := NewSQLiteCache(":memory:", versions)
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	t.Cleanup(func() { cache.Close() })
	return cache
}

func testSnapshot(version int64) *models.GraphSnapshot {
	snapshot := &models.GraphSnapshot{
		ID:   "build-1",
		Mode: models.ModeSchema,
		Nodes: []models.GraphNode{
			{ID: "Supplier", Label: "Supplier", Group: "entity"},
			{ID: "PurchaseOrder", Label: "PurchaseOrder", Group: "entity"},
		},
		Edges: []models.GraphEdge{
			{Source: "PurchaseOrder", Target: "Supplier", Label: "SupplierID", Kind: "reference", Confidence: 0.6},
		},
		BuiltAt:         time.Now().UTC().Truncate(time.Second),
		OntologyVersion: version,
	}
	snapshot.ComputeStats()
	return snapshot
}

func TestPutGet_RoundTrip(t *testing.T) {
	versions := &fakeVersions{version: 3}
	cache := newTestCache(t, versions)
	ctx := context.Background()

	put := testSnapshot(3)
	if err := cache.Put(ctx, models.ModeSchema, put); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, found, err := cache.Get(ctx, models.ModeSchema)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found {
		t.Fatal("Expected cache hit")
	}

	if len(got.Nodes) != len(put.Nodes) {
		t.Fatalf("Node count mismatch: %d != %d", len(got.Nodes), len(put.Nodes))
	}
	for i := range put.Nodes {
		if got.Nodes[i].ID != put.Nodes[i].ID || got.Nodes[i].Label != put.Nodes[i].Label {
			t.Errorf("Node %d mismatch: %+v != %+v", i, got.Nodes[i], put.Nodes[i])
		}
	}
	if len(got.Edges) != 1 || got.Edges[0].Source != "PurchaseOrder" {
		t.Errorf("Edges did not round-trip: %+v", got.Edges)
	}
	if got.OntologyVersion != 3 {
		t.Errorf("Expected ontology version 3, got %d", got.OntologyVersion)
	}
	if got.ID != "build-1" {
		t.Errorf("Expected build id to round-trip, got %q", got.ID)
	}
	if got.Stats.NodeCount != 2 || got.Stats.EdgeCount != 1 {
		t.Errorf("Stats not recomputed: %+v", got.Stats)
	}
}

func TestGet_MissOnEmptyCache(t *testing.T) {
	cache := newTestCache(t, &fakeVersions{version: 1})

	_, found, err := cache.Get(context.Background(), models.ModeSchema)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if found {
		t.Error("Expected miss on empty cache")
	}
}

func TestGet_MissAfterVersionBump(t *testing.T) {
	versions := &fakeVersions{version: 1}
	cache := newTestCache(t, versions)
	ctx := context.Background()

	if err := cache.Put(ctx, models.ModeSchema, testSnapshot(1)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if _, found, _ := cache.Get(ctx, models.ModeSchema); !found {
		t.Fatal("Expected hit before version bump")
	}

	// The ontology moves on; the snapshot must now read as not-found
	versions.version = 2

	_, found, err := cache.Get(ctx, models.ModeSchema)
	if err != nil {
		t.Fatalf("Version mismatch must not be an error: %v", err)
	}
	if found {
		t.Error("Stale snapshot must be a miss")
	}
}

func TestInvalidate_SingleMode(t *testing.T) {
	versions := &fakeVersions{version: 1}
	cache := newTestCache(t, versions)
	ctx := context.Background()

	if err := cache.Put(ctx, models.ModeSchema, testSnapshot(1)); err != nil {
		t.Fatalf("Put schema failed: %v", err)
	}
	data := testSnapshot(1)
	data.Mode = models.ModeData
	if err := cache.Put(ctx, models.ModeData, data); err != nil {
		t.Fatalf("Put data failed: %v", err)
	}

	if err := cache.Invalidate(ctx, models.ModeSchema); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}

	if _, found, _ := cache.Get(ctx, models.ModeSchema); found {
		t.Error("Invalidated mode must miss")
	}
	if _, found, _ := cache.Get(ctx, models.ModeData); !found {
		t.Error("Other mode must be unaffected")
	}
}

func TestInvalidate_AllModes(t *testing.T) {
	versions := &fakeVersions{version: 1}
	cache := newTestCache(t, versions)
	ctx := context.Background()

	if err := cache.Put(ctx, models.ModeSchema, testSnapshot(1)); err != nil {
		t.Fatalf("Put schema failed: %v", err)
	}
	data := testSnapshot(1)
	data.Mode = models.ModeData
	if err := cache.Put(ctx, models.ModeData, data); err != nil {
		t.Fatalf("Put data failed: %v", err)
	}

	if err := cache.Invalidate(ctx, ""); err != nil {
		t.Fatalf("Invalidate all failed: %v", err)
	}

	if _, found, _ := cache.Get(ctx, models.ModeSchema); found {
		t.Error("Schema mode must miss after invalidate-all")
	}
	if _, found, _ := cache.Get(ctx, models.ModeData); found {
		t.Error("Data mode must miss after invalidate-all")
	}
}

func TestPut_RejectsInconsistentSnapshot(t *testing.T) {
	cache := newTestCache(t, &fakeVersions{version: 1})

	snapshot := testSnapshot(1)
	snapshot.Edges = append(snapshot.Edges, models.GraphEdge{Source: "PurchaseOrder", Target: "Ghost"})
	snapshot.ComputeStats()

	if err := cache.Put(context.Background(), models.ModeSchema, snapshot); err == nil {
		t.Error("Expected Put to reject an edge referencing an unknown node")
	}
}
