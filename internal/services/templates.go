package services

import (
	"fmt"
	"strings"
	"sync"

	"github.com/yungbote/videonotes-backend/internal/types"
)

// NoteTemplate is one named rendering strategy. Templates live in a registry
// lookup table; the open-ended set grows by registration, not inheritance.
type NoteTemplate interface {
	ID() string
	DisplayName() string

	// StandardPrompt builds the single backend prompt for the standard tier.
	StandardPrompt(a *types.EnhancedVideoAnalysis) string
}

type TemplateRegistry struct {
	mu        sync.RWMutex
	templates map[string]NoteTemplate
	order     []string
}

func NewTemplateRegistry() *TemplateRegistry {
	r := &TemplateRegistry{templates: map[string]NoteTemplate{}}
	for _, t := range builtinTemplates() {
		r.Register(t)
	}
	return r
}

func (r *TemplateRegistry) Register(t NoteTemplate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.templates[t.ID()]; !exists {
		r.order = append(r.order, t.ID())
	}
	r.templates[t.ID()] = t
}

func (r *TemplateRegistry) Get(id string) (NoteTemplate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[id]
	return t, ok
}

func (r *TemplateRegistry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

type promptTemplate struct {
	id          string
	displayName string
	instruction string
}

func (t *promptTemplate) ID() string          { return t.id }
func (t *promptTemplate) DisplayName() string { return t.displayName }

func (t *promptTemplate) StandardPrompt(a *types.EnhancedVideoAnalysis) string {
	var sb strings.Builder
	sb.WriteString(t.instruction)
	sb.WriteString("\n\nUse markdown headings. Video analysis:\n\n")
	sb.WriteString(artifactDigest(a, 7000))
	return sb.String()
}

func builtinTemplates() []NoteTemplate {
	return []NoteTemplate{
		&promptTemplate{
			id:          "basic-summary",
			displayName: "Basic Summary",
			instruction: "Write a concise prose summary of this video: what it covers, the main argument or skill taught, and the takeaways.",
		},
		&promptTemplate{
			id:          "study-notes",
			displayName: "Study Notes",
			instruction: "Write structured study notes for this video: one section per chapter, with definitions, key points, and worked examples where the content has them.",
		},
		&promptTemplate{
			id:          "detailed-outline",
			displayName: "Detailed Outline",
			instruction: "Write a hierarchical outline of this video: nested bullet points following the chapter structure, each bullet a single fact or step.",
		},
		&promptTemplate{
			id:          "flashcards",
			displayName: "Flashcards",
			instruction: "Write question/answer flashcards for this video, one per concept, formatted as 'Q:' and 'A:' pairs under a heading per chapter.",
		},
		&promptTemplate{
			id:          "key-concepts",
			displayName: "Key Concepts",
			instruction: "Write a glossary-style note for this video: one section per core concept with its definition, where it appears, and how it relates to the other concepts.",
		},
	}
}

// artifactDigest flattens the analysis into prompt context, bounded in size.
func artifactDigest(a *types.EnhancedVideoAnalysis, maxLen int) string {
	if a == nil {
		return ""
	}
	var sb strings.Builder
	if a.Title != "" {
		sb.WriteString("Title: " + a.Title + "\n")
	}
	sb.WriteString(fmt.Sprintf("Duration: %s\n", formatTimestamp(a.Duration())))
	if a.DegradedMode {
		sb.WriteString("Note: no transcript was available; analysis is visual-only.\n")
	}

	sb.WriteString("\nChapters:\n")
	for _, ch := range a.Structure.Chapters {
		sb.WriteString(fmt.Sprintf("- [%s-%s] %s: %s\n", formatTimestamp(ch.StartTime), formatTimestamp(ch.EndTime), ch.Title, ch.Summary))
		for _, kp := range ch.KeyPoints {
			sb.WriteString("  - " + kp + "\n")
		}
	}

	sb.WriteString("\nConcepts:\n")
	for _, c := range a.ConceptMap.Concepts {
		sb.WriteString(fmt.Sprintf("- %s (%s/%s): %s\n", c.Name, c.Importance, c.Difficulty, c.Definition))
	}

	if a.Transcript != nil && !a.Transcript.Empty() {
		sb.WriteString("\nTranscript sample:\n")
		sb.WriteString(contentSample(a.Transcript, nil, maxLen-sb.Len()))
	} else {
		sb.WriteString("\nVisual notes:\n")
		for _, f := range a.Visual.KeyFrames {
			sb.WriteString(fmt.Sprintf("- [%s] %s %s\n", formatTimestamp(f.Timestamp), f.Description, f.ExtractedText))
			if sb.Len() >= maxLen {
				break
			}
		}
	}

	out := sb.String()
	if len(out) > maxLen {
		out = out[:maxLen]
	}
	return out
}

// contentSample joins transcript (or failing that frame) text up to maxLen.
func contentSample(transcript *types.FullTranscript, visual *types.VisualAnalysis, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	var sb strings.Builder
	if transcript != nil {
		for _, seg := range transcript.Segments {
			if sb.Len() > 0 {
				sb.WriteString(" ")
			}
			sb.WriteString(seg.Text)
			if sb.Len() >= maxLen {
				break
			}
		}
	}
	if sb.Len() == 0 && visual != nil {
		for _, frame := range visual.KeyFrames {
			if sb.Len() > 0 {
				sb.WriteString(" ")
			}
			sb.WriteString(frame.Description)
			if frame.ExtractedText != "" {
				sb.WriteString(" " + frame.ExtractedText)
			}
			if sb.Len() >= maxLen {
				break
			}
		}
	}
	out := sb.String()
	if len(out) > maxLen {
		out = out[:maxLen]
	}
	return out
}
