package models

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"
)

// GraphNode is a render-ready node in a visualization snapshot
type GraphNode struct {
	ID         string         `json:"id"`
	Label      string         `json:"label"`
	Group      string         `json:"group"`
	Style      map[string]any `json:"style,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

// GraphEdge is a render-ready edge in a visualization snapshot
type GraphEdge struct {
	Source     string         `json:"source"`
	Target     string         `json:"target"`
	Label      string         `json:"label"`
	Kind       string         `json:"kind"`
	Confidence float64        `json:"confidence"`
	Style      map[string]any `json:"style,omitempty"`
}

// SnapshotStats provides summary statistics about a snapshot
type SnapshotStats struct {
	NodeCount         int     `json:"node_count"`
	EdgeCount         int     `json:"edge_count"`
	MeanConfidence    float64 `json:"mean_confidence"`
	ConfidenceStdDev  float64 `json:"confidence_std_dev"`
}

// GraphSnapshot is an immutable, fully-built visualization payload for
// one graph mode, tagged with the ontology version it was derived from.
// A snapshot is only servable while its OntologyVersion matches the
// ontology store's current version.
type GraphSnapshot struct {
	ID              string        `json:"id"`
	Mode            GraphMode     `json:"mode"`
	Nodes           []GraphNode   `json:"nodes"`
	Edges           []GraphEdge   `json:"edges"`
	Stats           SnapshotStats `json:"stats"`
	BuiltAt         time.Time     `json:"built_at"`
	OntologyVersion int64         `json:"ontology_version"`
}

// ComputeStats fills in the snapshot's summary statistics from its
// current node and edge collections
func (s *GraphSnapshot) ComputeStats() {
	s.Stats = SnapshotStats{
		NodeCount: len(s.Nodes),
		EdgeCount: len(s.Edges),
	}
	if len(s.Edges) == 0 {
		return
	}
	confidences := make([]float64, len(s.Edges))
	for i, e := range s.Edges {
		confidences[i] = e.Confidence
	}
	s.Stats.MeanConfidence = stat.Mean(confidences, nil)
	if len(confidences) > 1 {
		s.Stats.ConfidenceStdDev = stat.StdDev(confidences, nil)
	}
}

// Validate checks if the GraphSnapshot is internally consistent
func (s *GraphSnapshot) Validate() error {
	if s.Mode != ModeSchema && s.Mode != ModeData {
		return fmt.Errorf("mode must be one of: schema, data")
	}
	if s.Stats.NodeCount != len(s.Nodes) {
		return fmt.Errorf("stats node_count %d does not match %d nodes", s.Stats.NodeCount, len(s.Nodes))
	}
	if s.Stats.EdgeCount != len(s.Edges) {
		return fmt.Errorf("stats edge_count %d does not match %d edges", s.Stats.EdgeCount, len(s.Edges))
	}
	ids := make(map[string]bool, len(s.Nodes))
	for _, n := range s.Nodes {
		if n.ID == "" {
			return fmt.Errorf("snapshot node with empty id")
		}
		ids[n.ID] = true
	}
	for _, e := range s.Edges {
		if !ids[e.Source] || !ids[e.Target] {
			return fmt.Errorf("snapshot edge %s->%s references unknown node", e.Source, e.Target)
		}
	}
	return nil
}

// BuildDiagnostics reports observability data for one BuildGraph call
type BuildDiagnostics struct {
	CacheUsed       bool    `json:"cache_used"`
	BuildTimeMS     float64 `json:"build_time_ms"`
	OntologyVersion int64   `json:"ontology_version"`
	// CacheWriteFailed reports that the rebuilt snapshot could not be
	// written back to the cache and was served uncached
	CacheWriteFailed bool `json:"cache_write_failed,omitempty"`
}
