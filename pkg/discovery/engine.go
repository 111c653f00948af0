package discovery

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/schemalens/schemalens-go/pkg/models"
	"github.com/schemalens/schemalens-go/utils"
)

// Warning reports a non-fatal condition encountered during discovery
type Warning struct {
	Kind    string `json:"kind"`
	Source  string `json:"source"`
	Message string `json:"message"`
}

const warningDanglingReference = "dangling-reference"

// Engine discovers typed, confidence-scored relationships between schema
// entities from structural and annotation metadata. An Engine holds no
// state beyond its rule set; Discover is deterministic for a given input.
type Engine struct {
	rules  RuleSet
	logger *utils.Logger
}

// NewEngine creates a discovery engine with the given rule set
func NewEngine(rules RuleSet) *Engine {
	return &Engine{
		rules:  rules,
		logger: utils.GetLogger(),
	}
}

// Discover evaluates the annotation and structural detectors for every
// field of every entity and returns the deduplicated, deterministically
// ordered edge set. Edges whose target entity is absent from the input
// are dropped with a dangling-reference warning. An empty or nil input
// fails fast with models.ErrNoEntities.
func (e *Engine) Discover(ctx context.Context, entities []models.Entity) ([]models.SchemaEdge, []Warning, error) {
	if len(entities) == 0 {
		return nil, nil, models.ErrNoEntities
	}

	index := buildEntityIndex(entities)

	var warnings []Warning
	edges := make(map[models.EdgeKey]models.SchemaEdge)

	for i := range entities {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		entity := &entities[i]
		if entity.Name == "" {
			continue
		}

		for _, field := range entity.Fields {
			if field.Name == "" {
				continue
			}

			if edge, ok := e.annotationDetector(entity, field, index); ok {
				if _, exists := index.byLowerName[strings.ToLower(edge.TargetEntity)]; !exists {
					warnings = append(warnings, Warning{
						Kind:    warningDanglingReference,
						Source:  edge.Key().String(),
						Message: fmt.Sprintf("annotation on %s.%s references unknown entity %s", entity.Name, field.Name, edge.TargetEntity),
					})
					e.logger.Warn("dropping dangling reference",
						utils.Component("discovery"),
						utils.String("edge", edge.Key().String()))
				} else if resolved, exists := index.fieldName(edge.TargetEntity, edge.TargetField); !exists {
					warnings = append(warnings, Warning{
						Kind:    warningDanglingReference,
						Source:  edge.Key().String(),
						Message: fmt.Sprintf("annotation on %s.%s references missing field %s.%s", entity.Name, field.Name, edge.TargetEntity, edge.TargetField),
					})
					e.logger.Warn("dropping dangling reference",
						utils.Component("discovery"),
						utils.String("edge", edge.Key().String()))
				} else {
					// Annotation-declared provenance wins over any structural
					// duplicate for the same edge key
					edge.TargetField = resolved
					edges[edge.Key()] = edge
				}
			}

			for _, edge := range e.structuralDetector(entity, field, index) {
				key := edge.Key()
				if _, exists := edges[key]; !exists {
					edges[key] = edge
				}
			}
		}
	}

	result := make([]models.SchemaEdge, 0, len(edges))
	for _, edge := range edges {
		result = append(result, edge)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].SourceEntity != result[j].SourceEntity {
			return result[i].SourceEntity < result[j].SourceEntity
		}
		if result[i].SourceField != result[j].SourceField {
			return result[i].SourceField < result[j].SourceField
		}
		if result[i].TargetEntity != result[j].TargetEntity {
			return result[i].TargetEntity < result[j].TargetEntity
		}
		return result[i].TargetField < result[j].TargetField
	})

	return result, warnings, nil
}

// annotationDetector produces an edge for a field carrying a recognized
// target-entity annotation. The second return value is false when the
// field has no such annotation or it cannot be interpreted.
func (e *Engine) annotationDetector(entity *models.Entity, field models.Field, index *entityIndex) (models.SchemaEdge, bool) {
	if len(field.Annotations) == 0 {
		return models.SchemaEdge{}, false
	}

	var declared string
	for _, key := range e.rules.TargetKeys {
		if v, ok := field.Annotations[key]; ok && v != "" {
			declared = v
			break
		}
	}
	if declared == "" {
		return models.SchemaEdge{}, false
	}

	// The declaration is either "Entity" or "Entity.Field"
	targetEntity := declared
	targetField := ""
	if idx := strings.Index(declared, "."); idx > 0 {
		targetEntity = declared[:idx]
		targetField = declared[idx+1:]
	}

	edge := models.SchemaEdge{
		SourceEntity:   entity.Name,
		SourceField:    field.Name,
		TargetEntity:   targetEntity,
		TargetField:    targetField,
		Kind:           models.KindReference,
		CardinalityMin: 0,
		CardinalityMax: models.CardinalityUnbounded,
		Confidence:     0.9,
		Method:         models.MethodAnnotationDeclared,
	}

	// Resolve the target against the input set so casing and the default
	// target field follow the declared entity, not the annotation text.
	if target, ok := index.byLowerName[strings.ToLower(targetEntity)]; ok {
		edge.TargetEntity = target.Name
		if edge.TargetField == "" {
			if keys := target.KeyFields(); len(keys) > 0 {
				edge.TargetField = keys[0]
			} else {
				edge.TargetField = field.Name
			}
		}
	} else if edge.TargetField == "" {
		edge.TargetField = field.Name
	}

	if kind, ok := field.Annotations[e.rules.KindKey]; ok && kind != "" {
		if e.rules.isOwnershipValue(strings.ToLower(kind)) {
			edge.Kind = models.KindOwnership
		}
		edge.Confidence = 1.0 // kind explicitly declared
	}

	if raw, ok := field.Annotations[e.rules.ConfidenceKey]; ok {
		if weight, err := strconv.ParseFloat(raw, 64); err == nil && weight >= 0 && weight <= 1 {
			edge.Confidence = weight
		}
	}

	if raw, ok := field.Annotations[e.rules.CardinalityKey]; ok {
		if min, max, err := parseCardinality(raw); err == nil {
			edge.CardinalityMin = min
			edge.CardinalityMax = max
		}
	}

	return edge, true
}

// structuralDetector matches a field against other entities' key fields.
// A case-insensitive exact or singular/plural-insensitive name match
// yields a reference edge at the structural confidence score.
func (e *Engine) structuralDetector(entity *models.Entity, field models.Field, index *entityIndex) []models.SchemaEdge {
	var edges []models.SchemaEdge

	normalized := normalizeName(field.Name)
	for _, candidate := range index.ordered {
		for _, keyField := range candidate.KeyFields() {
			if !namesMatch(normalized, normalizeName(keyField)) {
				continue
			}
			// A key matching itself is not a relationship
			if candidate.Name == entity.Name && strings.EqualFold(keyField, field.Name) {
				continue
			}
			edges = append(edges, models.SchemaEdge{
				SourceEntity:   entity.Name,
				SourceField:    field.Name,
				TargetEntity:   candidate.Name,
				TargetField:    keyField,
				Kind:           models.KindReference,
				CardinalityMin: 0,
				CardinalityMax: models.CardinalityUnbounded,
				Confidence:     e.rules.StructuralConfidence,
				Method:         models.MethodStructuralKeyMatch,
			})
		}
	}

	return edges
}

// parseCardinality parses a "min..max" declaration, max being an integer or "*"
func parseCardinality(raw string) (int, string, error) {
	parts := strings.SplitN(raw, "..", 2)
	if len(parts) != 2 {
		return 0, "", fmt.Errorf("cardinality %q is not in min..max form", raw)
	}

	min, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || min < 0 {
		return 0, "", fmt.Errorf("invalid cardinality minimum %q", parts[0])
	}

	max := strings.TrimSpace(parts[1])
	if max != models.CardinalityUnbounded {
		n, err := strconv.Atoi(max)
		if err != nil || n < min {
			return 0, "", fmt.Errorf("invalid cardinality maximum %q", parts[1])
		}
		max = strconv.Itoa(n)
	}

	return min, max, nil
}

// normalizeName lowercases a field name for comparison
func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// namesMatch reports whether two normalized names are equal directly or
// after reducing either to its singular form
func namesMatch(a, b string) bool {
	if a == b {
		return true
	}
	return singular(a) == singular(b)
}

// singular strips a common English plural suffix from a normalized name
func singular(name string) string {
	switch {
	case strings.HasSuffix(name, "ies") && len(name) > 3:
		return name[:len(name)-3] + "y"
	case strings.HasSuffix(name, "ses") && len(name) > 3:
		return name[:len(name)-2]
	case strings.HasSuffix(name, "s") && !strings.HasSuffix(name, "ss") && len(name) > 1:
		return name[:len(name)-1]
	}
	return name
}

// entityIndex provides entity lookup by case-insensitive name while
// preserving input order
type entityIndex struct {
	ordered     []*models.Entity
	byLowerName map[string]*models.Entity
}

func buildEntityIndex(entities []models.Entity) *entityIndex {
	index := &entityIndex{
		byLowerName: make(map[string]*models.Entity, len(entities)),
	}
	for i := range entities {
		entity := &entities[i]
		if entity.Name == "" {
			continue
		}
		index.ordered = append(index.ordered, entity)
		index.byLowerName[strings.ToLower(entity.Name)] = entity
	}
	return index
}

// fieldName resolves a field of the named entity case-insensitively and
// returns the field's declared casing.
func (idx *entityIndex) fieldName(entityName, fieldName string) (string, bool) {
	entity, ok := idx.byLowerName[strings.ToLower(entityName)]
	if !ok {
		return "", false
	}
	lower := strings.ToLower(fieldName)
	for _, field := range entity.Fields {
		if strings.ToLower(field.Name) == lower {
			return field.Name, true
		}
	}
	return "", false
}
