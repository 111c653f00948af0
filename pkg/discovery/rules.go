package discovery

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RuleSet defines the recognized annotation vocabulary and scoring
// parameters for a discovery run. Discovery is a pure function of the
// input entities and one RuleSet.
type RuleSet struct {
	// TargetKeys are annotation names whose value declares the target entity
	TargetKeys []string `yaml:"target_keys"`
	// KindKey is the annotation name declaring the relationship kind
	KindKey string `yaml:"kind_key"`
	// CardinalityKey is the annotation name declaring "min..max" cardinality
	CardinalityKey string `yaml:"cardinality_key"`
	// ConfidenceKey is the annotation name carrying an explicit weight
	ConfidenceKey string `yaml:"confidence_key"`
	// OwnershipValues are KindKey values that mark strong parent/child semantics
	OwnershipValues []string `yaml:"ownership_values"`
	// StructuralConfidence is the score assigned to structural key matches
	StructuralConfidence float64 `yaml:"structural_confidence"`
	// SuggestionThreshold is the minimum name similarity for near-miss suggestions
	SuggestionThreshold float64 `yaml:"suggestion_threshold"`
}

// DefaultRules returns the built-in rule set
func DefaultRules() RuleSet {
	return RuleSet{
		TargetKeys:           []string{"references", "target"},
		KindKey:              "relationship",
		CardinalityKey:       "cardinality",
		ConfidenceKey:        "confidence",
		OwnershipValues:      []string{"ownership", "owns", "parent-child", "composition"},
		StructuralConfidence: 0.6,
		SuggestionThreshold:  0.8,
	}
}

// LoadRules loads a rule set from a YAML file, filling unset fields
// from the defaults
func LoadRules(path string) (RuleSet, error) {
	rules := DefaultRules()

	data, err := os.ReadFile(path)
	if err != nil {
		return rules, fmt.Errorf("failed to read rules file: %w", err)
	}

	if err := yaml.Unmarshal(data, &rules); err != nil {
		return rules, fmt.Errorf("failed to parse rules file: %w", err)
	}

	if err := rules.Validate(); err != nil {
		return rules, fmt.Errorf("invalid rules file %s: %w", path, err)
	}

	return rules, nil
}

// Validate checks the rule set is usable
func (r *RuleSet) Validate() error {
	if len(r.TargetKeys) == 0 {
		return fmt.Errorf("at least one target annotation key is required")
	}
	if r.StructuralConfidence <= 0 || r.StructuralConfidence > 1 {
		return fmt.Errorf("structural_confidence must be in (0,1], got %f", r.StructuralConfidence)
	}
	if r.SuggestionThreshold <= 0 || r.SuggestionThreshold > 1 {
		return fmt.Errorf("suggestion_threshold must be in (0,1], got %f", r.SuggestionThreshold)
	}
	return nil
}

// isOwnershipValue reports whether a KindKey value declares ownership semantics
func (r *RuleSet) isOwnershipValue(value string) bool {
	for _, v := range r.OwnershipValues {
		if v == value {
			return true
		}
	}
	return false
}
