package services

import (
	"context"
	"strings"
	"testing"

	"github.com/yungbote/videonotes-backend/internal/types"
)

func conceptTranscript() *types.FullTranscript {
	return &types.FullTranscript{
		TotalDuration: 120,
		Segments: []types.TranscriptSegment{
			{StartTime: 0, EndTime: 30, Text: "arrays are the simple basics of storage", Confidence: 0.9},
			{StartTime: 30, EndTime: 60, Text: "pointers reference arrays in memory", Confidence: 0.9},
			{StartTime: 60, EndTime: 90, Text: "linked lists use pointers between nodes", Confidence: 0.9},
			{StartTime: 90, EndTime: 120, Text: "arrays versus linked lists is a classic tradeoff", Confidence: 0.9},
		},
	}
}

const conceptJSON = `[
	{"name": "Arrays", "definition": "Contiguous storage.", "aliases": ["array"], "difficulty": "basic"},
	{"name": "Pointers", "definition": "Memory references.", "aliases": [], "difficulty": "intermediate"},
	{"name": "Linked Lists", "definition": "Node chains.", "aliases": ["linked list"], "difficulty": "intermediate"}
]`

func TestExtractConcepts_FoldsAliasesAndAttachesTimestamps(t *testing.T) {
	ai := newFakeAI()
	ai.responses["concepts"] = conceptJSON + `` // plus a duplicate to fold
	ai.responses["relationships"] = `[]`
	svc := NewConceptService(testLog(t), ai)

	res, err := svc.ExtractConcepts(context.Background(), "vid-1", conceptTranscript(), nil, nil)
	if err != nil {
		t.Fatalf("ExtractConcepts: %v", err)
	}
	if len(res.Map.Concepts) != 3 {
		t.Fatalf("concept count = %d, want 3", len(res.Map.Concepts))
	}

	arrays := res.Map.FindConcept("Arrays")
	if arrays == nil {
		t.Fatalf("Arrays concept missing")
	}
	if len(arrays.Timestamps) != 3 {
		t.Fatalf("Arrays timestamps = %v, want mentions at 0, 30 and 90", arrays.Timestamps)
	}
	// Alias lookup is case-insensitive.
	if !res.Map.HasConcept("arrays") {
		t.Fatalf("case-insensitive concept lookup failed")
	}
}

func TestExtractConcepts_DropsInvalidRelationshipEndpoints(t *testing.T) {
	ai := newFakeAI()
	ai.responses["concepts"] = conceptJSON
	ai.responses["relationships"] = `[
		{"from": "Arrays", "to": "Pointers", "type": "related", "strength": 0.7},
		{"from": "Quantum Physics", "to": "Arrays", "type": "prerequisite", "strength": 0.9},
		{"from": "Arrays", "to": "Arrays", "type": "related", "strength": 0.5}
	]`
	svc := NewConceptService(testLog(t), ai)

	res, err := svc.ExtractConcepts(context.Background(), "vid-2", conceptTranscript(), nil, nil)
	if err != nil {
		t.Fatalf("ExtractConcepts: %v", err)
	}
	if len(res.Map.Relationships) != 1 {
		t.Fatalf("relationships = %v, want only the valid edge", res.Map.Relationships)
	}
	if res.Map.Relationships[0].From != "Arrays" || res.Map.Relationships[0].To != "Pointers" {
		t.Fatalf("kept the wrong edge: %+v", res.Map.Relationships[0])
	}
	// Two dropped edges, two integrity warnings.
	integrity := 0
	for _, w := range res.Warnings {
		if strings.Contains(w, "concept graph integrity") {
			integrity++
		}
	}
	if integrity != 2 {
		t.Fatalf("integrity warnings = %d (%v), want 2", integrity, res.Warnings)
	}
}

func TestExtractConcepts_BreaksPrerequisiteCycles(t *testing.T) {
	ai := newFakeAI()
	ai.responses["concepts"] = conceptJSON
	ai.responses["relationships"] = `[
		{"from": "Arrays", "to": "Pointers", "type": "prerequisite", "strength": 0.9},
		{"from": "Pointers", "to": "Linked Lists", "type": "prerequisite", "strength": 0.8},
		{"from": "Linked Lists", "to": "Arrays", "type": "prerequisite", "strength": 0.2}
	]`
	svc := NewConceptService(testLog(t), ai)

	res, err := svc.ExtractConcepts(context.Background(), "vid-3", conceptTranscript(), nil, nil)
	if err != nil {
		t.Fatalf("ExtractConcepts: %v", err)
	}
	if len(res.Map.Relationships) != 2 {
		t.Fatalf("cycle not broken: %d edges remain", len(res.Map.Relationships))
	}
	for _, rel := range res.Map.Relationships {
		if rel.From == "Linked Lists" && rel.To == "Arrays" {
			t.Fatalf("lowest-strength cycle edge should have been dropped")
		}
	}
	cycleWarned := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "cycle") {
			cycleWarned = true
		}
	}
	if !cycleWarned {
		t.Fatalf("cycle break must surface a warning, got %v", res.Warnings)
	}

	// Hierarchy is a valid topological layering over remaining edges.
	level := map[string]int{}
	for depth, names := range res.Map.HierarchyLevels {
		for _, name := range names {
			level[name] = depth
		}
	}
	if !(level["Arrays"] < level["Pointers"] && level["Pointers"] < level["Linked Lists"]) {
		t.Fatalf("hierarchy levels not topological: %v", res.Map.HierarchyLevels)
	}
}

func TestExtractConcepts_FallbackOnMalformedBackend(t *testing.T) {
	ai := newFakeAI()
	ai.responses["concepts"] = "not json at all"
	ai.responses["relationships"] = `[]`
	svc := NewConceptService(testLog(t), ai)

	res, err := svc.ExtractConcepts(context.Background(), "vid-4", conceptTranscript(), nil, nil)
	if err != nil {
		t.Fatalf("malformed output must not fail extraction: %v", err)
	}
	if len(res.Map.Concepts) == 0 {
		t.Fatalf("fallback should still produce frequency-based concepts")
	}
	warned := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "fell back") {
			warned = true
		}
	}
	if !warned {
		t.Fatalf("fallback must be flagged in warnings, got %v", res.Warnings)
	}
}

func TestExtractConcepts_SuggestionsReferenceRealConcepts(t *testing.T) {
	ai := newFakeAI()
	ai.responses["concepts"] = conceptJSON
	ai.responses["relationships"] = `[{"from": "Pointers", "to": "Linked Lists", "type": "prerequisite", "strength": 0.8}]`
	svc := NewConceptService(testLog(t), ai)

	structure := &types.ContentStructure{Chapters: []types.ContentChapter{
		{Title: "All of it", StartTime: 0, EndTime: 120, Importance: types.ImportanceHigh},
	}}
	res, err := svc.ExtractConcepts(context.Background(), "vid-5", conceptTranscript(), structure, nil)
	if err != nil {
		t.Fatalf("ExtractConcepts: %v", err)
	}
	for _, q := range res.SuggestedQuestions {
		for _, name := range q.ConceptNames {
			if !res.Map.HasConcept(name) {
				t.Fatalf("suggested question references unknown concept %q", name)
			}
		}
	}
	for _, kt := range res.KeyTimestamps {
		if kt.ConceptName != "" && !res.Map.HasConcept(kt.ConceptName) {
			t.Fatalf("key timestamp references unknown concept %q", kt.ConceptName)
		}
	}
}
