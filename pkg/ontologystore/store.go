package ontologystore

import (
	"context"

	"github.com/schemalens/schemalens-go/pkg/models"
)

// OntologyStore is the interface for durable ontology persistence: the
// discovered schema-level nodes and confidence-scored edges, stamped with
// a monotonically increasing version. The version bumps only when an
// upsert actually changes the stored node/edge set; it is the sole
// invalidation trigger for downstream snapshot caches.
type OntologyStore interface {
	// Upsert merges a discovery result into the store as one transaction.
	// Edge identity is (source_entity, source_field, target_entity,
	// target_field); manually-verified edges are never overwritten by
	// lower-provenance data. Returns the store version after the write.
	Upsert(ctx context.Context, nodes []models.SchemaNode, edges []models.SchemaEdge) (int64, error)

	// GetAll returns all nodes, all edges, and the current version
	GetAll(ctx context.Context) ([]models.SchemaNode, []models.SchemaEdge, int64, error)

	// CurrentVersion returns the current ontology version
	CurrentVersion(ctx context.Context) (int64, error)

	// IsValid reports whether the store holds at least one node and one edge
	IsValid(ctx context.Context) (bool, error)

	// Override marks an edge as manually verified with confidence 1.0 and
	// the given kind. Changing the kind of an edge that is already
	// manually verified requires force.
	Override(ctx context.Context, key models.EdgeKey, kind models.RelationshipKind, force bool) error

	// Reset deletes all ontology data. This is the only deletion path.
	Reset(ctx context.Context) error

	// Close releases the underlying storage
	Close() error
}
