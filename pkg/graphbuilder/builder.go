// Package graphbuilder assembles render-ready graph snapshots from
// ontology nodes and edges.
package graphbuilder

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/schemalens/schemalens-go/pkg/models"
)

const (
	groupEntity = "entity"
	groupField  = "field"

	edgeColorOwnership = "#2b7ce9"
	edgeColorReference = "#848484"
)

// BuildSnapshot renders ontology data into a GraphSnapshot for the given
// mode. Schema mode emits one node per entity; data mode additionally
// emits a node per field, linked to its entity. Output ordering is
// deterministic for equal input.
func BuildSnapshot(mode models.GraphMode, nodes []models.SchemaNode, edges []models.SchemaEdge, version int64) (*models.GraphSnapshot, error) {
	switch mode {
	case models.ModeSchema, models.ModeData:
	default:
		return nil, fmt.Errorf("unknown graph mode %q", mode)
	}

	sortedNodes := make([]models.SchemaNode, len(nodes))
	copy(sortedNodes, nodes)
	sort.Slice(sortedNodes, func(i, j int) bool {
		return sortedNodes[i].EntityName < sortedNodes[j].EntityName
	})

	sortedEdges := make([]models.SchemaEdge, len(edges))
	copy(sortedEdges, edges)
	sort.Slice(sortedEdges, func(i, j int) bool {
		return sortedEdges[i].Key().String() < sortedEdges[j].Key().String()
	})

	snapshot := &models.GraphSnapshot{
		ID:              uuid.New().String(),
		Mode:            mode,
		BuiltAt:         time.Now().UTC(),
		OntologyVersion: version,
	}

	for _, node := range sortedNodes {
		snapshot.Nodes = append(snapshot.Nodes, entityNode(node))
		if mode == models.ModeData {
			for _, field := range node.Fields {
				snapshot.Nodes = append(snapshot.Nodes, fieldNode(node.EntityName, field))
				snapshot.Edges = append(snapshot.Edges, fieldEdge(node.EntityName, field.Name))
			}
		}
	}

	for _, edge := range sortedEdges {
		rendered, err := relationshipEdge(mode, edge)
		if err != nil {
			return nil, err
		}
		snapshot.Edges = append(snapshot.Edges, rendered)
	}

	snapshot.ComputeStats()
	if err := snapshot.Validate(); err != nil {
		return nil, fmt.Errorf("built snapshot is inconsistent: %w", err)
	}
	return snapshot, nil
}

func entityNode(node models.SchemaNode) models.GraphNode {
	return models.GraphNode{
		ID:    node.EntityName,
		Label: node.EntityName,
		Group: groupEntity,
		Properties: map[string]any{
			"field_count": len(node.Fields),
			"key_fields":  node.KeyFields,
		},
	}
}

func fieldNodeID(entityName, fieldName string) string {
	return entityName + "." + fieldName
}

func fieldNode(entityName string, field models.Field) models.GraphNode {
	return models.GraphNode{
		ID:    fieldNodeID(entityName, field.Name),
		Label: field.Name,
		Group: groupField,
		Properties: map[string]any{
			"type":   field.Type,
			"is_key": field.IsKey,
		},
	}
}

// fieldEdge attaches a field node to its owning entity
func fieldEdge(entityName, fieldName string) models.GraphEdge {
	return models.GraphEdge{
		Source:     entityName,
		Target:     fieldNodeID(entityName, fieldName),
		Label:      "has_field",
		Kind:       string(models.KindOwnership),
		Confidence: 1.0,
		Style:      map[string]any{"dashes": false, "color": edgeColorOwnership, "width": 1},
	}
}

func relationshipEdge(mode models.GraphMode, edge models.SchemaEdge) (models.GraphEdge, error) {
	source, target := edge.SourceEntity, edge.TargetEntity
	if mode == models.ModeData {
		// Data mode connects the concrete field nodes instead of entities
		source = fieldNodeID(edge.SourceEntity, edge.SourceField)
		target = fieldNodeID(edge.TargetEntity, edge.TargetField)
	}

	var style map[string]any
	switch edge.Kind {
	case models.KindOwnership:
		style = map[string]any{"dashes": false, "color": edgeColorOwnership, "width": 2}
	case models.KindReference:
		style = map[string]any{"dashes": true, "color": edgeColorReference, "width": 1}
	default:
		return models.GraphEdge{}, fmt.Errorf("unknown relationship kind %q on edge %s", edge.Kind, edge.Key())
	}

	return models.GraphEdge{
		Source:     source,
		Target:     target,
		Label:      edgeLabel(edge),
		Kind:       string(edge.Kind),
		Confidence: edge.Confidence,
		Style:      style,
	}, nil
}

func edgeLabel(edge models.SchemaEdge) string {
	return fmt.Sprintf("%s (%d..%s)", edge.SourceField, edge.CardinalityMin, edge.CardinalityMax)
}
