package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/yungbote/videonotes-backend/internal/apperr"
	"github.com/yungbote/videonotes-backend/internal/logger"
	"github.com/yungbote/videonotes-backend/internal/types"
)

// ConceptService derives the concept map: concepts with definitions, aliases
// and timestamps, typed/weighted relationships over the extracted set only,
// and dependency-depth hierarchy levels.
type ConceptService interface {
	ExtractConcepts(ctx context.Context, videoID string, transcript *types.FullTranscript, structure *types.ContentStructure, visual *types.VisualAnalysis) (*ConceptExtractionResult, error)
}

type ConceptExtractionResult struct {
	Map                types.ConceptMap
	SuggestedQuestions []types.StudyQuestion
	KeyTimestamps      []types.KeyTimestamp
	Warnings           []string
}

type conceptService struct {
	log *logger.Logger
	ai  AIClient

	maxConcepts int
}

func NewConceptService(log *logger.Logger, ai AIClient) ConceptService {
	return &conceptService{
		log:         log.With("service", "ConceptService"),
		ai:          ai,
		maxConcepts: 24,
	}
}

type parsedConcept struct {
	Name       string   `json:"name"`
	Definition string   `json:"definition"`
	Aliases    []string `json:"aliases"`
	Difficulty string   `json:"difficulty"`
}

type parsedRelationship struct {
	From     string  `json:"from"`
	To       string  `json:"to"`
	Type     string  `json:"type"`
	Strength float64 `json:"strength"`
}

func (s *conceptService) ExtractConcepts(ctx context.Context, videoID string, transcript *types.FullTranscript, structure *types.ContentStructure, visual *types.VisualAnalysis) (*ConceptExtractionResult, error) {
	res := &ConceptExtractionResult{}

	candidates, err := s.extractCandidates(ctx, videoID, transcript, visual)
	if err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("concept extraction fell back to frequency heuristics: %v", err))
		candidates = fallbackCandidates(transcript, visual, s.maxConcepts)
	}
	concepts := foldCandidates(candidates, s.maxConcepts)

	attachTimestamps(concepts, transcript, visual)
	assignImportance(concepts, structure)
	assignDifficulty(concepts, transcript)

	relationships, relWarnings := s.extractRelationships(ctx, videoID, concepts)
	res.Warnings = append(res.Warnings, relWarnings...)

	fillRelatedConcepts(concepts, relationships)

	levels, cycleWarnings := buildHierarchy(concepts, &relationships, s.log)
	res.Warnings = append(res.Warnings, cycleWarnings...)

	res.Map = types.ConceptMap{
		Concepts:        dereference(concepts),
		Relationships:   relationships,
		HierarchyLevels: levels,
	}
	res.SuggestedQuestions = suggestQuestions(res.Map)
	res.KeyTimestamps = keyTimestamps(res.Map, structure)
	return res, nil
}

func (s *conceptService) extractCandidates(ctx context.Context, videoID string, transcript *types.FullTranscript, visual *types.VisualAnalysis) ([]parsedConcept, error) {
	if s.ai == nil {
		return nil, fmt.Errorf("no backend configured")
	}

	source := contentSample(transcript, visual, 6000)
	if strings.TrimSpace(source) == "" {
		return nil, fmt.Errorf("no content to extract concepts from")
	}

	prompt := "Extract the distinct concepts taught in this video content. Return ONLY a JSON array:\n" +
		`[{"name":"","definition":"","aliases":[""],"difficulty":"basic|intermediate|advanced"}]` +
		"\nUse at most " + fmt.Sprintf("%d", s.maxConcepts) + " concepts. Content:\n\n" + source

	completion, err := s.ai.Chat(ctx, []AIMessage{
		{Role: "system", Content: "You extract a concept glossary from educational content. Respond with JSON only."},
		{Role: "user", Content: prompt},
	}, &AIOptions{Purpose: "concepts", VideoID: videoID, Temperature: 0.2})
	if err != nil {
		return nil, err
	}

	block, ok := extractJSONBlock(completion.Content)
	if !ok {
		s.log.Warn("Malformed concept output from backend", "video_id", videoID, "raw", truncate(completion.Content, 2000))
		return nil, apperr.NewBackendError(apperr.BackendMalformedOutput, "concepts", fmt.Errorf("no JSON in output"))
	}
	var parsed []parsedConcept
	if err := json.Unmarshal([]byte(block), &parsed); err != nil {
		s.log.Warn("Malformed concept output from backend", "video_id", videoID, "error", err, "raw", truncate(completion.Content, 2000))
		return nil, apperr.NewBackendError(apperr.BackendMalformedOutput, "concepts", err)
	}
	if len(parsed) == 0 {
		return nil, apperr.NewBackendError(apperr.BackendMalformedOutput, "concepts", fmt.Errorf("empty concept list"))
	}
	return parsed, nil
}

// extractRelationships asks the backend for edges among the extracted set
// only. Edges referencing names outside the set are dropped with a warning,
// never silently kept.
func (s *conceptService) extractRelationships(ctx context.Context, videoID string, concepts []*types.Concept) ([]types.ConceptRelationship, []string) {
	var warnings []string
	if s.ai == nil || len(concepts) < 2 {
		return nil, nil
	}

	names := make([]string, 0, len(concepts))
	for _, c := range concepts {
		names = append(names, c.Name)
	}

	prompt := "Given ONLY these concepts:\n- " + strings.Join(names, "\n- ") +
		"\nReturn a JSON array of relationships between them. Use only names from the list.\n" +
		`[{"from":"","to":"","type":"prerequisite|related|example|opposite","strength":0.5}]`

	completion, err := s.ai.Chat(ctx, []AIMessage{
		{Role: "system", Content: "You map relationships in a concept glossary. Respond with JSON only."},
		{Role: "user", Content: prompt},
	}, &AIOptions{Purpose: "relationships", VideoID: videoID, Temperature: 0.2})
	if err != nil {
		return nil, []string{fmt.Sprintf("relationship extraction failed: %v", err)}
	}

	block, ok := extractJSONBlock(completion.Content)
	if !ok {
		s.log.Warn("Malformed relationship output from backend", "video_id", videoID, "raw", truncate(completion.Content, 2000))
		return nil, []string{"relationship output was not JSON; concept map has no edges"}
	}
	var parsed []parsedRelationship
	if err := json.Unmarshal([]byte(block), &parsed); err != nil {
		s.log.Warn("Malformed relationship output from backend", "video_id", videoID, "error", err, "raw", truncate(completion.Content, 2000))
		return nil, []string{"relationship output was not JSON; concept map has no edges"}
	}

	canonical := map[string]string{}
	for _, c := range concepts {
		canonical[foldTerm(c.Name)] = c.Name
		for _, alias := range c.Aliases {
			canonical[foldTerm(alias)] = c.Name
		}
	}

	var out []types.ConceptRelationship
	seen := map[string]bool{}
	for _, rel := range parsed {
		from, okFrom := canonical[foldTerm(rel.From)]
		to, okTo := canonical[foldTerm(rel.To)]
		if !okFrom || !okTo || from == to {
			integrityErr := &apperr.ConceptGraphIntegrityError{Reason: "relationship endpoint outside concept set", From: rel.From, To: rel.To}
			s.log.Warn("Dropping invalid relationship", "video_id", videoID, "error", integrityErr)
			warnings = append(warnings, integrityErr.Error())
			continue
		}
		relType := types.RelationshipType(strings.ToLower(rel.Type))
		switch relType {
		case types.RelationPrerequisite, types.RelationRelated, types.RelationExample, types.RelationOpposite:
		default:
			relType = types.RelationRelated
		}
		key := from + "|" + to + "|" + string(relType)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, types.ConceptRelationship{
			From:     from,
			To:       to,
			Type:     relType,
			Strength: clamp01(rel.Strength),
		})
	}
	return out, warnings
}

// foldTerm lowercases, collapses whitespace, and strips trivial suffixes so
// "Neural Networks" and "neural network" fold together.
func foldTerm(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = stemWord(w)
	}
	return strings.Join(words, " ")
}

func stemWord(w string) string {
	switch {
	case len(w) > 5 && strings.HasSuffix(w, "ies"):
		return w[:len(w)-3] + "y"
	case len(w) > 4 && strings.HasSuffix(w, "es"):
		return w[:len(w)-2]
	case len(w) > 3 && strings.HasSuffix(w, "s"):
		return w[:len(w)-1]
	default:
		return w
	}
}

func foldCandidates(candidates []parsedConcept, max int) []*types.Concept {
	byKey := map[string]*types.Concept{}
	var order []string
	for _, cand := range candidates {
		name := strings.TrimSpace(cand.Name)
		if name == "" {
			continue
		}
		key := foldTerm(name)
		existing, ok := byKey[key]
		if !ok {
			// Check alias collisions against already-folded concepts.
			for _, alias := range cand.Aliases {
				if hit, found := byKey[foldTerm(alias)]; found {
					existing, ok = hit, true
					break
				}
			}
		}
		if ok && existing != nil {
			existing.Aliases = mergeAliases(existing.Aliases, append(cand.Aliases, name), existing.Name)
			if existing.Definition == "" {
				existing.Definition = strings.TrimSpace(cand.Definition)
			}
			continue
		}
		c := &types.Concept{
			Name:       name,
			Definition: strings.TrimSpace(cand.Definition),
			Aliases:    mergeAliases(nil, cand.Aliases, name),
			Importance: types.ConceptPeripheral,
			Difficulty: parseDifficulty(cand.Difficulty),
		}
		byKey[key] = c
		order = append(order, key)
		if len(order) >= max {
			break
		}
	}
	out := make([]*types.Concept, 0, len(order))
	for _, key := range order {
		out = append(out, byKey[key])
	}
	return out
}

func mergeAliases(existing, extra []string, canonicalName string) []string {
	seen := map[string]bool{foldTerm(canonicalName): true}
	var out []string
	for _, a := range append(existing, extra...) {
		a = strings.TrimSpace(a)
		key := foldTerm(a)
		if a == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, a)
	}
	return out
}

func parseDifficulty(s string) types.ConceptDifficulty {
	switch types.ConceptDifficulty(strings.ToLower(strings.TrimSpace(s))) {
	case types.DifficultyBasic, types.DifficultyIntermediate, types.DifficultyAdvanced:
		return types.ConceptDifficulty(strings.ToLower(strings.TrimSpace(s)))
	default:
		return types.DifficultyIntermediate
	}
}

// attachTimestamps records every segment start at which a concept's name or an
// alias appears, and frame timestamps as visual aids.
func attachTimestamps(concepts []*types.Concept, transcript *types.FullTranscript, visual *types.VisualAnalysis) {
	for _, c := range concepts {
		terms := append([]string{c.Name}, c.Aliases...)
		var folded []string
		for _, t := range terms {
			folded = append(folded, foldTerm(t))
		}

		if transcript != nil {
			for _, seg := range transcript.Segments {
				segFolded := foldTerm(seg.Text)
				for _, term := range folded {
					if term != "" && strings.Contains(segFolded, term) {
						c.Timestamps = append(c.Timestamps, seg.StartTime)
						break
					}
				}
			}
		}
		if visual != nil {
			for _, frame := range visual.KeyFrames {
				frameFolded := foldTerm(frame.Description + " " + frame.ExtractedText)
				for _, term := range folded {
					if term != "" && strings.Contains(frameFolded, term) {
						c.VisualAids = append(c.VisualAids, frame.Timestamp)
						if transcript.Empty() {
							c.Timestamps = append(c.Timestamps, frame.Timestamp)
						}
						break
					}
				}
			}
		}
		sort.Float64s(c.Timestamps)
		sort.Float64s(c.VisualAids)
	}
}

// assignImportance weights mention frequency by the importance of the chapter
// each mention lands in.
func assignImportance(concepts []*types.Concept, structure *types.ContentStructure) {
	chapterWeight := func(at float64) float64 {
		if structure == nil {
			return 1
		}
		for _, ch := range structure.Chapters {
			if at >= ch.StartTime && at < ch.EndTime {
				switch ch.Importance {
				case types.ImportanceHigh:
					return 3
				case types.ImportanceLow:
					return 1
				default:
					return 2
				}
			}
		}
		return 1
	}

	for _, c := range concepts {
		var score float64
		for _, ts := range c.Timestamps {
			score += chapterWeight(ts)
		}
		switch {
		case score >= 6:
			c.Importance = types.ConceptCore
		case score >= 3:
			c.Importance = types.ConceptSupporting
		default:
			c.Importance = types.ConceptPeripheral
		}
	}
}

var advancedVocab = []string{"theorem", "asymptotic", "stochastic", "derivative", "gradient", "complexity", "optimization", "formally", "proof", "invariant"}
var basicVocab = []string{"simply", "basics", "introduction", "beginner", "easy", "start", "simple", "first step", "overview"}

// assignDifficulty refines backend difficulty by co-occurrence with basic vs.
// advanced vocabulary markers in segments that mention the concept.
func assignDifficulty(concepts []*types.Concept, transcript *types.FullTranscript) {
	if transcript == nil {
		return
	}
	for _, c := range concepts {
		advanced, basic := 0, 0
		folded := foldTerm(c.Name)
		for _, seg := range transcript.Segments {
			lower := strings.ToLower(seg.Text)
			if !strings.Contains(foldTerm(seg.Text), folded) {
				continue
			}
			if containsAny(lower, advancedVocab) {
				advanced++
			}
			if containsAny(lower, basicVocab) {
				basic++
			}
		}
		if advanced > basic && advanced > 0 {
			c.Difficulty = types.DifficultyAdvanced
		} else if basic > advanced && basic > 0 {
			c.Difficulty = types.DifficultyBasic
		}
	}
}

func fillRelatedConcepts(concepts []*types.Concept, relationships []types.ConceptRelationship) {
	related := map[string]map[string]bool{}
	add := func(a, b string) {
		if related[a] == nil {
			related[a] = map[string]bool{}
		}
		related[a][b] = true
	}
	for _, rel := range relationships {
		add(rel.From, rel.To)
		add(rel.To, rel.From)
	}
	for _, c := range concepts {
		names := make([]string, 0, len(related[c.Name]))
		for name := range related[c.Name] {
			names = append(names, name)
		}
		sort.Strings(names)
		c.RelatedConcepts = names
	}
}

// buildHierarchy computes dependency-depth levels over prerequisite edges via
// a topological pass. A cycle is broken by dropping its lowest-strength edge
// and logging a structural warning; the result is always a valid DAG.
func buildHierarchy(concepts []*types.Concept, relationships *[]types.ConceptRelationship, log *logger.Logger) ([][]string, []string) {
	var warnings []string

	for {
		cycle := findPrerequisiteCycle(concepts, *relationships)
		if len(cycle) == 0 {
			break
		}
		dropIdx := -1
		for i, rel := range *relationships {
			if rel.Type != types.RelationPrerequisite {
				continue
			}
			if !cycleContainsEdge(cycle, rel.From, rel.To) {
				continue
			}
			if dropIdx < 0 || rel.Strength < (*relationships)[dropIdx].Strength {
				dropIdx = i
			}
		}
		if dropIdx < 0 {
			break
		}
		dropped := (*relationships)[dropIdx]
		warning := (&apperr.ConceptGraphIntegrityError{
			Reason: fmt.Sprintf("prerequisite cycle broken by dropping lowest-strength edge (strength %.2f)", dropped.Strength),
			From:   dropped.From,
			To:     dropped.To,
		}).Error()
		if log != nil {
			log.Warn("Concept graph cycle broken", "from", dropped.From, "to", dropped.To, "strength", dropped.Strength)
		}
		warnings = append(warnings, warning)
		*relationships = append((*relationships)[:dropIdx], (*relationships)[dropIdx+1:]...)
	}

	// Depth = 1 + max depth of prerequisites; nodes with none sit at level 0.
	prereqs := map[string][]string{}
	for _, rel := range *relationships {
		if rel.Type == types.RelationPrerequisite {
			prereqs[rel.To] = append(prereqs[rel.To], rel.From)
		}
	}
	depth := map[string]int{}
	var depthOf func(name string, guard map[string]bool) int
	depthOf = func(name string, guard map[string]bool) int {
		if d, ok := depth[name]; ok {
			return d
		}
		if guard[name] {
			return 0
		}
		guard[name] = true
		d := 0
		for _, p := range prereqs[name] {
			if pd := depthOf(p, guard) + 1; pd > d {
				d = pd
			}
		}
		delete(guard, name)
		depth[name] = d
		return d
	}

	maxDepth := 0
	for _, c := range concepts {
		if d := depthOf(c.Name, map[string]bool{}); d > maxDepth {
			maxDepth = d
		}
	}
	levels := make([][]string, maxDepth+1)
	for _, c := range concepts {
		d := depth[c.Name]
		levels[d] = append(levels[d], c.Name)
	}
	for _, level := range levels {
		sort.Strings(level)
	}
	return levels, warnings
}

// findPrerequisiteCycle returns the node names on one directed cycle over
// prerequisite edges, or nil.
func findPrerequisiteCycle(concepts []*types.Concept, relationships []types.ConceptRelationship) []string {
	adj := map[string][]string{}
	for _, rel := range relationships {
		if rel.Type == types.RelationPrerequisite {
			adj[rel.From] = append(adj[rel.From], rel.To)
		}
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := map[string]int{}
	parent := map[string]string{}

	var cycle []string
	var visit func(name string) bool
	visit = func(name string) bool {
		color[name] = gray
		for _, next := range adj[name] {
			if color[next] == gray {
				// Unwind the gray path into an explicit cycle.
				cycle = []string{next}
				for cur := name; cur != next; cur = parent[cur] {
					cycle = append(cycle, cur)
				}
				return true
			}
			if color[next] == white {
				parent[next] = name
				if visit(next) {
					return true
				}
			}
		}
		color[name] = black
		return false
	}

	for _, c := range concepts {
		if color[c.Name] == white && visit(c.Name) {
			return cycle
		}
	}
	return nil
}

func cycleContainsEdge(cycle []string, from, to string) bool {
	inCycle := map[string]bool{}
	for _, name := range cycle {
		inCycle[name] = true
	}
	return inCycle[from] && inCycle[to]
}

func dereference(concepts []*types.Concept) []types.Concept {
	out := make([]types.Concept, 0, len(concepts))
	for _, c := range concepts {
		out = append(out, *c)
	}
	return out
}

func suggestQuestions(m types.ConceptMap) []types.StudyQuestion {
	var out []types.StudyQuestion
	for _, c := range m.Concepts {
		if c.Importance != types.ConceptCore {
			continue
		}
		out = append(out, types.StudyQuestion{
			Question:     fmt.Sprintf("What is %s and why does it matter here?", c.Name),
			ConceptNames: []string{c.Name},
			Difficulty:   c.Difficulty,
		})
		if len(out) >= 5 {
			break
		}
	}
	for _, rel := range m.Relationships {
		if rel.Type != types.RelationPrerequisite || len(out) >= 8 {
			continue
		}
		out = append(out, types.StudyQuestion{
			Question:     fmt.Sprintf("Why is %s needed before %s?", rel.From, rel.To),
			ConceptNames: []string{rel.From, rel.To},
		})
	}
	return out
}

func keyTimestamps(m types.ConceptMap, structure *types.ContentStructure) []types.KeyTimestamp {
	var out []types.KeyTimestamp
	for _, c := range m.Concepts {
		if c.Importance != types.ConceptCore || len(c.Timestamps) == 0 {
			continue
		}
		out = append(out, types.KeyTimestamp{
			Timestamp:   c.Timestamps[0],
			Label:       c.Name + " introduced",
			ConceptName: c.Name,
		})
	}
	if structure != nil {
		for _, ch := range structure.Chapters {
			if ch.Importance == types.ImportanceHigh {
				out = append(out, types.KeyTimestamp{
					Timestamp: ch.StartTime,
					Label:     ch.Title,
				})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}

// fallbackCandidates extracts rough concepts by term frequency when the
// backend is unavailable or malformed. Smaller and less precise, never empty
// when any content exists.
func fallbackCandidates(transcript *types.FullTranscript, visual *types.VisualAnalysis, max int) []parsedConcept {
	counts := map[string]int{}
	display := map[string]string{}

	feed := func(text string) {
		for _, word := range strings.Fields(text) {
			word = strings.Trim(word, ".,!?;:()[]\"'")
			if len(word) < 5 || stopWords[strings.ToLower(word)] {
				continue
			}
			key := foldTerm(word)
			counts[key]++
			if _, ok := display[key]; !ok {
				display[key] = word
			}
		}
	}
	if transcript != nil {
		for _, seg := range transcript.Segments {
			feed(seg.Text)
		}
	}
	if visual != nil {
		for _, frame := range visual.KeyFrames {
			feed(frame.Description)
			feed(frame.ExtractedText)
		}
	}

	type scored struct {
		key   string
		count int
	}
	var ranked []scored
	for key, count := range counts {
		if count >= 2 {
			ranked = append(ranked, scored{key, count})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].key < ranked[j].key
	})

	var out []parsedConcept
	for _, r := range ranked {
		out = append(out, parsedConcept{Name: display[r.key]})
		if len(out) >= max/2 {
			break
		}
	}
	return out
}

var stopWords = map[string]bool{
	"about": true, "after": true, "again": true, "because": true, "before": true,
	"being": true, "between": true, "could": true, "every": true, "going": true,
	"really": true, "right": true, "something": true, "there": true, "these": true,
	"thing": true, "things": true, "think": true, "those": true, "through": true,
	"today": true, "until": true, "using": true, "where": true, "which": true,
	"while": true, "would": true, "yourself": true, "actually": true, "basically": true,
}
