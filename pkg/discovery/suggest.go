package discovery

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/schemalens/schemalens-go/pkg/models"
)

// Suggestion is a near-miss field/key name pairing that did not qualify
// as a structural match but scores above the suggestion threshold.
// Suggestions are surfaced to curators and never written to the ontology.
type Suggestion struct {
	SourceEntity string  `json:"source_entity"`
	SourceField  string  `json:"source_field"`
	TargetEntity string  `json:"target_entity"`
	TargetField  string  `json:"target_field"`
	Score        float64 `json:"score"`
}

// Suggest scans for field names that nearly match another entity's key
// field name. Exact and plural-insensitive matches are excluded since the
// structural detector already covers them.
func (e *Engine) Suggest(entities []models.Entity) []Suggestion {
	index := buildEntityIndex(entities)

	var suggestions []Suggestion
	for _, entity := range index.ordered {
		for _, field := range entity.Fields {
			if field.Name == "" {
				continue
			}
			normalized := normalizeName(field.Name)

			for _, candidate := range index.ordered {
				if candidate.Name == entity.Name {
					continue
				}
				for _, keyField := range candidate.KeyFields() {
					candidateName := normalizeName(keyField)
					if namesMatch(normalized, candidateName) {
						continue
					}
					score := nameSimilarity(normalized, candidateName)
					if score < e.rules.SuggestionThreshold {
						continue
					}
					suggestions = append(suggestions, Suggestion{
						SourceEntity: entity.Name,
						SourceField:  field.Name,
						TargetEntity: candidate.Name,
						TargetField:  keyField,
						Score:        score,
					})
				}
			}
		}
	}

	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].Score != suggestions[j].Score {
			return suggestions[i].Score > suggestions[j].Score
		}
		if suggestions[i].SourceEntity != suggestions[j].SourceEntity {
			return suggestions[i].SourceEntity < suggestions[j].SourceEntity
		}
		return suggestions[i].SourceField < suggestions[j].SourceField
	})

	return suggestions
}

// nameSimilarity scores two normalized names on [0,1] using Levenshtein distance
func nameSimilarity(a, b string) float64 {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == b {
		return 1.0
	}

	distance := levenshtein.ComputeDistance(a, b)
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 0.0
	}

	return 1.0 - (float64(distance) / float64(maxLen))
}
