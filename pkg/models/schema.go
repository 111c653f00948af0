package models

import (
	"fmt"
	"time"
)

// RelationshipKind classifies the semantics of a discovered relationship
type RelationshipKind string

const (
	// KindReference is a loose association between two entities
	KindReference RelationshipKind = "reference"
	// KindOwnership is a composition relationship with cascade semantics
	KindOwnership RelationshipKind = "ownership"
)

// DiscoveryMethod records how a relationship was found
type DiscoveryMethod string

const (
	MethodStructuralKeyMatch DiscoveryMethod = "structural-key-match"
	MethodAnnotationDeclared DiscoveryMethod = "annotation-declared"
	MethodManuallyVerified   DiscoveryMethod = "manually-verified"
)

// GraphMode identifies a graph variant with its own cache lifecycle
type GraphMode string

const (
	ModeSchema GraphMode = "schema"
	ModeData   GraphMode = "data"
)

// CardinalityUnbounded is the max-cardinality marker for "many"
const CardinalityUnbounded = "*"

// Field describes a single column/attribute of a schema entity.
// Annotations are an open key-value map; only a recognized subset is
// interpreted by discovery, unrecognized keys are preserved but ignored.
type Field struct {
	Name        string            `json:"name"`
	Type        string            `json:"type"`
	IsKey       bool              `json:"is_key"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

// Entity is a named schema-level object (table/type) with ordered fields
type Entity struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// KeyFields returns the names of the entity's key fields in declaration order
func (e *Entity) KeyFields() []string {
	var keys []string
	for _, f := range e.Fields {
		if f.IsKey {
			keys = append(keys, f.Name)
		}
	}
	return keys
}

// EdgeKey is the upsert identity of a SchemaEdge
type EdgeKey struct {
	SourceEntity string `json:"source_entity"`
	SourceField  string `json:"source_field"`
	TargetEntity string `json:"target_entity"`
	TargetField  string `json:"target_field"`
}

// String renders the key in source.field->target.field form for logs
func (k EdgeKey) String() string {
	return fmt.Sprintf("%s.%s->%s.%s", k.SourceEntity, k.SourceField, k.TargetEntity, k.TargetField)
}

// Validate checks the EdgeKey is fully specified
func (k EdgeKey) Validate() error {
	if k.SourceEntity == "" || k.SourceField == "" {
		return fmt.Errorf("edge key source is incomplete")
	}
	if k.TargetEntity == "" || k.TargetField == "" {
		return fmt.Errorf("edge key target is incomplete")
	}
	return nil
}

// SchemaEdge is a directed, confidence-scored relationship between two entities
type SchemaEdge struct {
	SourceEntity   string           `json:"source_entity"`
	SourceField    string           `json:"source_field"`
	TargetEntity   string           `json:"target_entity"`
	TargetField    string           `json:"target_field"`
	Kind           RelationshipKind `json:"relationship_kind"`
	CardinalityMin int              `json:"cardinality_min"`
	CardinalityMax string           `json:"cardinality_max"` // integer string or "*"
	Confidence     float64          `json:"confidence"`
	Method         DiscoveryMethod  `json:"discovery_method"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// Key returns the edge's upsert identity
func (e *SchemaEdge) Key() EdgeKey {
	return EdgeKey{
		SourceEntity: e.SourceEntity,
		SourceField:  e.SourceField,
		TargetEntity: e.TargetEntity,
		TargetField:  e.TargetField,
	}
}

// Validate checks if the SchemaEdge is valid
func (e *SchemaEdge) Validate() error {
	if err := e.Key().Validate(); err != nil {
		return err
	}
	if e.Kind != KindReference && e.Kind != KindOwnership {
		return fmt.Errorf("relationship_kind must be one of: reference, ownership")
	}
	if e.Method != MethodStructuralKeyMatch && e.Method != MethodAnnotationDeclared && e.Method != MethodManuallyVerified {
		return fmt.Errorf("discovery_method must be one of: structural-key-match, annotation-declared, manually-verified")
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return fmt.Errorf("confidence must be in [0,1], got %f", e.Confidence)
	}
	if e.Method == MethodManuallyVerified && e.Confidence != 1.0 {
		return fmt.Errorf("manually-verified edges must have confidence 1.0")
	}
	if e.CardinalityMin < 0 {
		return fmt.Errorf("cardinality_min must be non-negative")
	}
	return nil
}

// ValueEquals compares two edges by full value, ignoring timestamps.
// Used by the ontology store to decide whether an upsert changed anything.
func (e *SchemaEdge) ValueEquals(other *SchemaEdge) bool {
	return e.Key() == other.Key() &&
		e.Kind == other.Kind &&
		e.CardinalityMin == other.CardinalityMin &&
		e.CardinalityMax == other.CardinalityMax &&
		e.Confidence == other.Confidence &&
		e.Method == other.Method
}

// SchemaNode is a denormalized description of one entity for fast lookup
type SchemaNode struct {
	EntityName string   `json:"entity_name"`
	Fields     []Field  `json:"fields"`
	KeyFields  []string `json:"key_fields"`
}

// NodeFromEntity builds the denormalized SchemaNode for an entity
func NodeFromEntity(e *Entity) SchemaNode {
	return SchemaNode{
		EntityName: e.Name,
		Fields:     e.Fields,
		KeyFields:  e.KeyFields(),
	}
}

// NodesEqual compares two node sets by full value, order-sensitive
func NodesEqual(a, b []SchemaNode) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].EntityName != b[i].EntityName {
			return false
		}
		if len(a[i].Fields) != len(b[i].Fields) {
			return false
		}
		for j := range a[i].Fields {
			af, bf := a[i].Fields[j], b[i].Fields[j]
			if af.Name != bf.Name || af.Type != bf.Type || af.IsKey != bf.IsKey {
				return false
			}
		}
	}
	return true
}
