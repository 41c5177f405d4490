package types

type ConceptImportance string

const (
	ConceptCore       ConceptImportance = "core"
	ConceptSupporting ConceptImportance = "supporting"
	ConceptPeripheral ConceptImportance = "peripheral"
)

type ConceptDifficulty string

const (
	DifficultyBasic        ConceptDifficulty = "basic"
	DifficultyIntermediate ConceptDifficulty = "intermediate"
	DifficultyAdvanced     ConceptDifficulty = "advanced"
)

type RelationshipType string

const (
	RelationPrerequisite RelationshipType = "prerequisite"
	RelationRelated      RelationshipType = "related"
	RelationExample      RelationshipType = "example"
	RelationOpposite     RelationshipType = "opposite"
)

type Concept struct {
	// Unique key within a ConceptMap.
	Name string `json:"name"`

	Definition string   `json:"definition"`
	Aliases    []string `json:"aliases,omitempty"`

	// Sorted; every timestamp at which the name or an alias appears.
	Timestamps []float64 `json:"timestamps"`

	RelatedConcepts []string `json:"related_concepts,omitempty"`

	Importance ConceptImportance `json:"importance"`
	Difficulty ConceptDifficulty `json:"difficulty"`

	// Sorted timestamps of frames that illustrate the concept.
	VisualAids []float64 `json:"visual_aids,omitempty"`
}

type ConceptRelationship struct {
	From     string           `json:"from"`
	To       string           `json:"to"`
	Type     RelationshipType `json:"type"`
	Strength float64          `json:"strength"`
}

type ConceptMap struct {
	Concepts      []Concept             `json:"concepts"`
	Relationships []ConceptRelationship `json:"relationships"`

	// Concept names grouped by prerequisite depth: level 0 has no prerequisites
	// inside the map, level n depends only on earlier levels.
	HierarchyLevels [][]string `json:"hierarchy_levels"`
}

// HasConcept matches case-insensitively on name and aliases.
func (m *ConceptMap) HasConcept(name string) bool {
	return m.FindConcept(name) != nil
}

func (m *ConceptMap) FindConcept(name string) *Concept {
	if m == nil {
		return nil
	}
	folded := foldName(name)
	for i := range m.Concepts {
		if foldName(m.Concepts[i].Name) == folded {
			return &m.Concepts[i]
		}
		for _, alias := range m.Concepts[i].Aliases {
			if foldName(alias) == folded {
				return &m.Concepts[i]
			}
		}
	}
	return nil
}

func foldName(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		case r == ' ' || r == '\t':
			if len(out) > 0 && out[len(out)-1] != ' ' {
				out = append(out, ' ')
			}
		default:
			out = append(out, r)
		}
	}
	for len(out) > 0 && out[len(out)-1] == ' ' {
		out = out[:len(out)-1]
	}
	return string(out)
}

type StudyQuestion struct {
	Question     string            `json:"question"`
	Answer       string            `json:"answer,omitempty"`
	ConceptNames []string          `json:"concept_names,omitempty"`
	Difficulty   ConceptDifficulty `json:"difficulty,omitempty"`
}

type KeyTimestamp struct {
	Timestamp   float64 `json:"timestamp"`
	Label       string  `json:"label"`
	Description string  `json:"description,omitempty"`
	ConceptName string  `json:"concept_name,omitempty"`
}
