package graphbuilder

import (
	"encoding/json"
	"testing"

	"github.com/schemalens/schemalens-go/pkg/models"
)

func sampleOntology() ([]models.SchemaNode, []models.SchemaEdge) {
	nodes := []models.SchemaNode{
		{
			EntityName: "Supplier",
			Fields: []models.Field{
				{Name: "SupplierID", Type: "string", IsKey: true},
				{Name: "Name", Type: "string"},
			},
			KeyFields: []string{"SupplierID"},
		},
		{
			EntityName: "PurchaseOrder",
			Fields: []models.Field{
				{Name: "OrderID", Type: "string", IsKey: true},
				{Name: "SupplierID", Type: "string"},
			},
			KeyFields: []string{"OrderID"},
		},
	}
	edges := []models.SchemaEdge{
		{
			SourceEntity: "PurchaseOrder", SourceField: "SupplierID",
			TargetEntity: "Supplier", TargetField: "SupplierID",
			Kind: models.KindReference, CardinalityMin: 0, CardinalityMax: models.CardinalityUnbounded,
			Confidence: 0.6, Method: models.MethodStructuralKeyMatch,
		},
	}
	return nodes, edges
}

func TestBuildSnapshot_SchemaMode(t *testing.T) {
	nodes, edges := sampleOntology()

	snapshot, err := BuildSnapshot(models.ModeSchema, nodes, edges, 3)
	if err != nil {
		t.Fatalf("BuildSnapshot failed: %v", err)
	}

	if snapshot.Mode != models.ModeSchema {
		t.Errorf("Expected schema mode, got %s", snapshot.Mode)
	}
	if snapshot.OntologyVersion != 3 {
		t.Errorf("Expected ontology version 3, got %d", snapshot.OntologyVersion)
	}
	if snapshot.ID == "" {
		t.Error("Expected a build id")
	}
	if len(snapshot.Nodes) != 2 {
		t.Fatalf("Expected one node per entity, got %d", len(snapshot.Nodes))
	}
	// Entities sorted by name
	if snapshot.Nodes[0].ID != "PurchaseOrder" || snapshot.Nodes[1].ID != "Supplier" {
		t.Errorf("Unexpected node order: %s, %s", snapshot.Nodes[0].ID, snapshot.Nodes[1].ID)
	}
	if len(snapshot.Edges) != 1 {
		t.Fatalf("Expected 1 edge, got %d", len(snapshot.Edges))
	}
	edge := snapshot.Edges[0]
	if edge.Source != "PurchaseOrder" || edge.Target != "Supplier" {
		t.Errorf("Unexpected edge endpoints: %s -> %s", edge.Source, edge.Target)
	}
	if edge.Style["dashes"] != true {
		t.Errorf("Reference edges render dashed, got style %+v", edge.Style)
	}
	if snapshot.Stats.NodeCount != 2 || snapshot.Stats.EdgeCount != 1 {
		t.Errorf("Stats mismatch: %+v", snapshot.Stats)
	}
	if snapshot.Stats.MeanConfidence != 0.6 {
		t.Errorf("Expected mean confidence 0.6, got %f", snapshot.Stats.MeanConfidence)
	}
}

func TestBuildSnapshot_DataModeAddsFieldNodes(t *testing.T) {
	nodes, edges := sampleOntology()

	snapshot, err := BuildSnapshot(models.ModeData, nodes, edges, 1)
	if err != nil {
		t.Fatalf("BuildSnapshot failed: %v", err)
	}

	// 2 entity nodes + 4 field nodes
	if len(snapshot.Nodes) != 6 {
		t.Fatalf("Expected 6 nodes, got %d", len(snapshot.Nodes))
	}
	// 4 has_field edges + 1 relationship edge
	if len(snapshot.Edges) != 5 {
		t.Fatalf("Expected 5 edges, got %d", len(snapshot.Edges))
	}

	groups := map[string]int{}
	for _, node := range snapshot.Nodes {
		groups[node.Group]++
	}
	if groups["entity"] != 2 || groups["field"] != 4 {
		t.Errorf("Unexpected node groups: %+v", groups)
	}

	// The relationship edge connects field nodes in data mode
	last := snapshot.Edges[len(snapshot.Edges)-1]
	if last.Source != "PurchaseOrder.SupplierID" || last.Target != "Supplier.SupplierID" {
		t.Errorf("Unexpected data-mode edge endpoints: %s -> %s", last.Source, last.Target)
	}
}

func TestBuildSnapshot_OwnershipSolid(t *testing.T) {
	nodes, edges := sampleOntology()
	edges[0].Kind = models.KindOwnership
	edges[0].Confidence = 1.0
	edges[0].Method = models.MethodAnnotationDeclared

	snapshot, err := BuildSnapshot(models.ModeSchema, nodes, edges, 1)
	if err != nil {
		t.Fatalf("BuildSnapshot failed: %v", err)
	}
	if snapshot.Edges[0].Style["dashes"] != false {
		t.Errorf("Ownership edges render solid, got style %+v", snapshot.Edges[0].Style)
	}
}

func TestBuildSnapshot_UnknownMode(t *testing.T) {
	nodes, edges := sampleOntology()
	if _, err := BuildSnapshot(models.GraphMode("3d"), nodes, edges, 1); err == nil {
		t.Error("Expected error for unknown mode")
	}
}

func TestBuildSnapshot_DeterministicApartFromIdentity(t *testing.T) {
	nodes, edges := sampleOntology()

	first, err := BuildSnapshot(models.ModeSchema, nodes, edges, 1)
	if err != nil {
		t.Fatalf("First build failed: %v", err)
	}
	// Same input in reversed node order
	reversed := []models.SchemaNode{nodes[1], nodes[0]}
	second, err := BuildSnapshot(models.ModeSchema, reversed, edges, 1)
	if err != nil {
		t.Fatalf("Second build failed: %v", err)
	}

	second.ID = first.ID
	second.BuiltAt = first.BuiltAt
	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Error("Snapshot content must not depend on input order")
	}
}
