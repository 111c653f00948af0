package models

import (
	"testing"
	"time"
)

func validEdge() SchemaEdge {
	return SchemaEdge{
		SourceEntity: "PurchaseOrder", SourceField: "SupplierID",
		TargetEntity: "Supplier", TargetField: "SupplierID",
		Kind: KindReference, CardinalityMin: 0, CardinalityMax: CardinalityUnbounded,
		Confidence: 0.6, Method: MethodStructuralKeyMatch,
	}
}

func TestSchemaEdgeValidate(t *testing.T) {
	edge := validEdge()
	if err := edge.Validate(); err != nil {
		t.Errorf("Expected valid edge, got %v", err)
	}

	bad := validEdge()
	bad.Kind = "friendship"
	if err := bad.Validate(); err == nil {
		t.Error("Expected error for unknown kind")
	}

	bad = validEdge()
	bad.Confidence = 1.2
	if err := bad.Validate(); err == nil {
		t.Error("Expected error for confidence above 1")
	}

	bad = validEdge()
	bad.SourceField = ""
	if err := bad.Validate(); err == nil {
		t.Error("Expected error for missing source field")
	}
}

func TestSchemaEdgeValidate_ManuallyVerifiedConfidence(t *testing.T) {
	edge := validEdge()
	edge.Method = MethodManuallyVerified
	edge.Confidence = 0.6
	if err := edge.Validate(); err == nil {
		t.Error("Manually verified edges must require confidence 1.0")
	}

	edge.Confidence = 1.0
	if err := edge.Validate(); err != nil {
		t.Errorf("Expected valid edge, got %v", err)
	}
}

func TestSchemaEdgeValueEquals_IgnoresTimestamps(t *testing.T) {
	a := validEdge()
	b := validEdge()
	b.CreatedAt = time.Now()
	b.UpdatedAt = time.Now().Add(time.Hour)

	if !a.ValueEquals(&b) {
		t.Error("Timestamps must not affect value equality")
	}

	b.Confidence = 0.9
	if a.ValueEquals(&b) {
		t.Error("Confidence change must break value equality")
	}
}

func TestEdgeKeyString(t *testing.T) {
	edge := validEdge()
	want := "PurchaseOrder.SupplierID->Supplier.SupplierID"
	if got := edge.Key().String(); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestEntityKeyFields(t *testing.T) {
	entity := Entity{
		Name: "Supplier",
		Fields: []Field{
			{Name: "SupplierID", Type: "string", IsKey: true},
			{Name: "Name", Type: "string"},
			{Name: "Region", Type: "string", IsKey: true},
		},
	}

	keys := entity.KeyFields()
	if len(keys) != 2 || keys[0] != "SupplierID" || keys[1] != "Region" {
		t.Errorf("Expected key fields in declaration order, got %v", keys)
	}

	node := NodeFromEntity(&entity)
	if node.EntityName != "Supplier" || len(node.KeyFields) != 2 {
		t.Errorf("Unexpected node: %+v", node)
	}
}

func TestGraphSnapshotComputeStats(t *testing.T) {
	snapshot := GraphSnapshot{
		Mode:  ModeSchema,
		Nodes: []GraphNode{{ID: "a"}, {ID: "b"}},
		Edges: []GraphEdge{
			{Source: "a", Target: "b", Confidence: 0.6},
			{Source: "b", Target: "a", Confidence: 1.0},
		},
	}
	snapshot.ComputeStats()

	if snapshot.Stats.NodeCount != 2 || snapshot.Stats.EdgeCount != 2 {
		t.Errorf("Unexpected counts: %+v", snapshot.Stats)
	}
	if snapshot.Stats.MeanConfidence != 0.8 {
		t.Errorf("Expected mean 0.8, got %f", snapshot.Stats.MeanConfidence)
	}
	if snapshot.Stats.ConfidenceStdDev <= 0 {
		t.Errorf("Expected positive stddev, got %f", snapshot.Stats.ConfidenceStdDev)
	}

	if err := snapshot.Validate(); err != nil {
		t.Errorf("Expected valid snapshot, got %v", err)
	}
}

func TestGraphSnapshotComputeStats_Empty(t *testing.T) {
	snapshot := GraphSnapshot{Mode: ModeData}
	snapshot.ComputeStats()

	if snapshot.Stats.MeanConfidence != 0 || snapshot.Stats.ConfidenceStdDev != 0 {
		t.Errorf("Empty snapshot stats must be zero, got %+v", snapshot.Stats)
	}
}

func TestGraphSnapshotValidate_DanglingEdge(t *testing.T) {
	snapshot := GraphSnapshot{
		Mode:  ModeSchema,
		Nodes: []GraphNode{{ID: "a"}},
		Edges: []GraphEdge{{Source: "a", Target: "ghost"}},
	}
	snapshot.ComputeStats()

	if err := snapshot.Validate(); err == nil {
		t.Error("Expected error for edge to unknown node")
	}
}
