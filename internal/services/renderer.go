package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/yungbote/videonotes-backend/internal/logger"
	"github.com/yungbote/videonotes-backend/internal/types"
)

// RendererService produces every requested format's standard text with exactly
// one backend call per format, then derives brief and comprehensive tiers
// locally. Switching verbosity after generation never reaches the backend:
// all three tiers come out of allTemplateOutputs.
type RendererService interface {
	RenderAll(ctx context.Context, analysis *types.EnhancedVideoAnalysis, formats []string) (map[string]types.TemplateOutput, []FormatFailure)
}

type FormatFailure struct {
	Format string `json:"format"`
	Reason string `json:"reason"`
}

type rendererService struct {
	log      *logger.Logger
	ai       AIClient
	registry *TemplateRegistry

	// Bounded fan-out sized to the backend's rate limit.
	limiter       *rate.Limiter
	maxConcurrent int
}

func NewRendererService(log *logger.Logger, ai AIClient, registry *TemplateRegistry, callsPerSecond float64, maxConcurrent int) RendererService {
	if callsPerSecond <= 0 {
		callsPerSecond = 2
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &rendererService{
		log:           log.With("service", "RendererService"),
		ai:            ai,
		registry:      registry,
		limiter:       rate.NewLimiter(rate.Limit(callsPerSecond), maxConcurrent),
		maxConcurrent: maxConcurrent,
	}
}

func (s *rendererService) RenderAll(ctx context.Context, analysis *types.EnhancedVideoAnalysis, formats []string) (map[string]types.TemplateOutput, []FormatFailure) {
	outputs := map[string]types.TemplateOutput{}
	var failures []FormatFailure
	var mu sync.Mutex

	// Render goroutines never return errors into the group, so one format's
	// failure cannot cancel the siblings through gctx.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)

	for _, format := range formats {
		format := format
		template, ok := s.registry.Get(format)
		if !ok {
			mu.Lock()
			failures = append(failures, FormatFailure{Format: format, Reason: "unknown format"})
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			output, err := s.renderOne(gctx, analysis, template)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// One format's failure never aborts the others.
				s.log.Warn("Format render failed", "format", format, "video_id", analysis.VideoID, "error", err)
				failures = append(failures, FormatFailure{Format: format, Reason: err.Error()})
				return nil
			}
			outputs[format] = *output
			return nil
		})
	}
	_ = g.Wait()

	sort.SliceStable(failures, func(i, j int) bool { return failures[i].Format < failures[j].Format })
	return outputs, failures
}

func (s *rendererService) renderOne(ctx context.Context, analysis *types.EnhancedVideoAnalysis, template NoteTemplate) (*types.TemplateOutput, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	completion, err := s.ai.Chat(ctx, []AIMessage{
		{Role: "system", Content: "You turn video analyses into well-structured markdown notes."},
		{Role: "user", Content: template.StandardPrompt(analysis)},
	}, &AIOptions{Purpose: "render:" + template.ID(), VideoID: analysis.VideoID, Temperature: 0.4})
	if err != nil {
		return nil, err
	}

	standard := strings.TrimSpace(completion.Content)
	if standard == "" {
		return nil, fmt.Errorf("backend returned empty note")
	}

	return &types.TemplateOutput{
		Content: standard,
		VerbosityLevels: types.VerbosityVersions{
			Brief:         DeriveBrief(standard),
			Standard:      standard,
			Comprehensive: DeriveComprehensive(standard, analysis),
		},
	}, nil
}

// DeriveBrief compresses standard text to roughly 30%: headings survive, each
// section keeps its first sentence. Deterministic, no backend call.
func DeriveBrief(standard string) string {
	lines := strings.Split(standard, "\n")
	var out []string
	var section []string

	flush := func() {
		if len(section) == 0 {
			return
		}
		body := strings.TrimSpace(strings.Join(section, " "))
		if body != "" {
			out = append(out, firstSentence(body, 240))
		}
		section = nil
	}

	sawHeading := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			flush()
			out = append(out, trimmed)
			sawHeading = true
			continue
		}
		if trimmed == "" {
			continue
		}
		section = append(section, trimmed)
	}
	flush()

	if !sawHeading {
		// No headings to anchor on: keep the first ~30% of sentences.
		sentences := splitSentences(standard)
		keep := len(sentences) * 3 / 10
		if keep < 1 {
			keep = 1
		}
		return strings.TrimSpace(strings.Join(sentences[:keep], " "))
	}
	return strings.Join(out, "\n")
}

// DeriveComprehensive expands the standard tier with per-concept elaboration
// pulled from the artifact. Deterministic, no backend call.
func DeriveComprehensive(standard string, analysis *types.EnhancedVideoAnalysis) string {
	var sb strings.Builder
	sb.WriteString(standard)

	if analysis != nil && len(analysis.ConceptMap.Concepts) > 0 {
		sb.WriteString("\n\n## Concept deep dive\n")
		for _, c := range analysis.ConceptMap.Concepts {
			sb.WriteString("\n### " + c.Name + "\n")
			if c.Definition != "" {
				sb.WriteString(c.Definition + "\n")
			}
			if len(c.Timestamps) > 0 {
				var marks []string
				for _, ts := range c.Timestamps {
					marks = append(marks, formatTimestamp(ts))
				}
				sb.WriteString("Mentioned at: " + strings.Join(marks, ", ") + "\n")
			}
			if len(c.RelatedConcepts) > 0 {
				sb.WriteString("Related: " + strings.Join(c.RelatedConcepts, ", ") + "\n")
			}
		}
	}

	if analysis != nil && len(analysis.KeyTimestamps) > 0 {
		sb.WriteString("\n## Key moments\n")
		for _, kt := range analysis.KeyTimestamps {
			sb.WriteString(fmt.Sprintf("- %s: %s\n", formatTimestamp(kt.Timestamp), kt.Label))
		}
	}
	return sb.String()
}

func splitSentences(text string) []string {
	var out []string
	var cur strings.Builder
	for _, r := range text {
		cur.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(cur.String()); s != "" {
				out = append(out, s)
			}
			cur.Reset()
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		out = append(out, s)
	}
	return out
}
