package services

import (
	"strconv"
	"strings"

	"github.com/yungbote/videonotes-backend/internal/apperr"
	"github.com/yungbote/videonotes-backend/internal/types"
)

// GroundingInput is everything a citation may legally reference.
type GroundingInput struct {
	Transcript *types.FullTranscript
	ConceptMap *types.ConceptMap

	// Notes-only mode: no analysis exists, so timestamp citations have
	// nothing to ground against and are always violations.
	NotesOnly bool
	NoteText  string
}

// GroundCitations validates every citation against the supplied context and
// splits them into groundable citations and violations. It is pure and runs
// on every produced citation before a response leaves the Q&A engine.
func GroundCitations(citations []types.Citation, in GroundingInput) ([]types.Citation, []apperr.CitationGroundingViolation) {
	var valid []types.Citation
	var violations []apperr.CitationGroundingViolation

	for _, c := range citations {
		if reason := groundOne(c, in); reason != "" {
			violations = append(violations, apperr.CitationGroundingViolation{
				CitationType: string(c.Type),
				Value:        c.Value,
				Reason:       reason,
			})
			continue
		}
		valid = append(valid, c)
	}
	return valid, violations
}

func groundOne(c types.Citation, in GroundingInput) string {
	switch c.Type {
	case types.CitationTimestamp:
		if in.NotesOnly || in.Transcript == nil {
			return "timestamp citations are not groundable without a transcript"
		}
		seconds, ok := parseTimestampValue(c.Value)
		if !ok {
			return "unparseable timestamp"
		}
		if seconds < 0 || seconds > in.Transcript.TotalDuration {
			return "timestamp outside transcript bounds"
		}
		return ""

	case types.CitationConcept:
		if in.ConceptMap == nil || !in.ConceptMap.HasConcept(c.Value) {
			return "concept not present in the concept map"
		}
		return ""

	case types.CitationTranscript:
		var haystack string
		if in.NotesOnly {
			haystack = in.NoteText
		} else if in.Transcript != nil {
			haystack = in.Transcript.Text()
		}
		if !containsNormalized(haystack, c.Value) {
			return "excerpt is not a substring of the source text"
		}
		return ""

	default:
		return "unknown citation type"
	}
}

// parseTimestampValue accepts plain seconds ("312", "312.5") and clock forms
// ("5:12", "1:05:12").
func parseTimestampValue(value string) (float64, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.ParseFloat(value, 64); err == nil {
		return seconds, true
	}
	parts := strings.Split(value, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}
	var total float64
	for _, part := range parts {
		n, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil || n < 0 {
			return 0, false
		}
		total = total*60 + n
	}
	return total, true
}

func containsNormalized(haystack, needle string) bool {
	h := normalizeSpace(haystack)
	n := normalizeSpace(needle)
	if n == "" {
		return false
	}
	return strings.Contains(h, n)
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
