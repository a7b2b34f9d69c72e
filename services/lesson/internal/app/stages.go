package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"lessonforge/pkg/ai"
	"lessonforge/pkg/domain"
)

// LessonPlan is the outline produced by the plan stage and consumed by the
// section writing stage.
type LessonPlan struct {
	Title      string
	Objectives []string
	Items      []domain.PlanItem
}

// PlanGenerator produces the lesson outline for a normalized request.
type PlanGenerator interface {
	GeneratePlan(ctx context.Context, ledger *ai.Ledger, req domain.NormalizedRequest) (LessonPlan, error)
}

// SectionWriter produces the body text for every plan item, in plan order.
type SectionWriter interface {
	WriteSections(ctx context.Context, ledger *ai.Ledger, req domain.NormalizedRequest, plan LessonPlan) ([]domain.Section, error)
}

// Response token caps per stage. Content grows with the requested duration;
// the plan stays compact regardless.
const planResponseTokens = 400

var contentResponseTokens = map[domain.LessonDuration]int{
	domain.DurationShort:  800,
	domain.DurationMedium: 1000,
	domain.DurationLong:   1200,
}

var audienceTone = map[domain.Audience]string{
	domain.AudienceChild: "a curious 8-year-old: very short sentences, everyday words, playful examples",
	domain.AudienceTeen:  "a high-school student: clear sentences, concrete examples, no jargon without explanation",
	domain.AudienceAdult: "an adult learner: precise vocabulary and a structured, efficient progression",
}

var durationShape = map[domain.LessonDuration]string{
	domain.DurationShort:  "a short lesson of 2 or 3 sections",
	domain.DurationMedium: "a medium lesson of 3 or 4 sections",
	domain.DurationLong:   "a longer lesson of 4 to 6 sections",
}

// aiPlanGenerator implements PlanGenerator on the budgeted provider client.
type aiPlanGenerator struct {
	client *ai.Client
}

func (g *aiPlanGenerator) GeneratePlan(ctx context.Context, ledger *ai.Ledger, req domain.NormalizedRequest) (LessonPlan, error) {
	system := "You design lesson outlines. Answer with a single JSON object and nothing else: " +
		`{"title": string, "objectives": [string, ...], "plan": [{"title": string, "keyPoints": [string, ...]}, ...]}. ` +
		"At least two plan entries and at least two objectives."
	user := fmt.Sprintf("Outline %s about %q for %s. Write in the language of the subject.",
		durationShape[req.Duration], req.Subject, audienceTone[req.Audience])

	completion, err := g.client.Do(ctx, ledger, ai.Call{
		Stage:             "plan",
		System:            system,
		User:              user,
		MaxResponseTokens: planResponseTokens,
		Temperature:       0.7,
		Validate: func(text string) error {
			_, err := parsePlan(text)
			return err
		},
	})
	if err != nil {
		return LessonPlan{}, err
	}
	return parsePlan(completion.Text)
}

// aiSectionWriter implements SectionWriter with one provider call covering
// every section, keeping the token ledger auditable: two calls per lesson.
type aiSectionWriter struct {
	client *ai.Client
}

func (w *aiSectionWriter) WriteSections(ctx context.Context, ledger *ai.Ledger, req domain.NormalizedRequest, plan LessonPlan) ([]domain.Section, error) {
	outline, _ := json.Marshal(plan.Items)
	system := "You write lesson content. Answer with a single JSON object and nothing else: " +
		`{"sections": [{"title": string, "bodyText": string}, ...]}. ` +
		"One section per outline entry, in the same order, each body a few paragraphs of plain prose."
	user := fmt.Sprintf("Write the sections of a lesson titled %q about %q for %s. Outline: %s. Write in the language of the subject.",
		plan.Title, req.Subject, audienceTone[req.Audience], outline)

	completion, err := w.client.Do(ctx, ledger, ai.Call{
		Stage:             "content",
		System:            system,
		User:              user,
		MaxResponseTokens: contentResponseTokens[req.Duration],
		Temperature:       0.7,
		Validate: func(text string) error {
			_, err := parseSections(text, len(plan.Items))
			return err
		},
	})
	if err != nil {
		return nil, err
	}
	sections, err := parseSections(completion.Text, len(plan.Items))
	if err != nil {
		return nil, err
	}
	// Titles follow the plan; the model's copies can drift.
	for i := range sections {
		sections[i].Title = plan.Items[i].Title
	}
	return sections, nil
}

type planPayload struct {
	Title      string            `json:"title"`
	Objectives []string          `json:"objectives"`
	Plan       []domain.PlanItem `json:"plan"`
}

func parsePlan(text string) (LessonPlan, error) {
	var payload planPayload
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &payload); err != nil {
		return LessonPlan{}, fmt.Errorf("plan payload not valid JSON: %w", err)
	}
	if strings.TrimSpace(payload.Title) == "" {
		return LessonPlan{}, fmt.Errorf("plan payload missing title")
	}
	if len(payload.Objectives) == 0 {
		return LessonPlan{}, fmt.Errorf("plan payload missing objectives")
	}
	if len(payload.Plan) < 2 {
		return LessonPlan{}, fmt.Errorf("plan payload has %d entries, want at least 2", len(payload.Plan))
	}
	for i, item := range payload.Plan {
		if strings.TrimSpace(item.Title) == "" {
			return LessonPlan{}, fmt.Errorf("plan entry %d missing title", i+1)
		}
	}
	return LessonPlan{
		Title:      strings.TrimSpace(payload.Title),
		Objectives: payload.Objectives,
		Items:      payload.Plan,
	}, nil
}

type sectionsPayload struct {
	Sections []domain.Section `json:"sections"`
}

func parseSections(text string, want int) ([]domain.Section, error) {
	var payload sectionsPayload
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &payload); err != nil {
		return nil, fmt.Errorf("sections payload not valid JSON: %w", err)
	}
	if len(payload.Sections) != want {
		return nil, fmt.Errorf("sections payload has %d entries, want %d", len(payload.Sections), want)
	}
	for i, section := range payload.Sections {
		if strings.TrimSpace(section.BodyText) == "" {
			return nil, fmt.Errorf("section %d has empty body", i+1)
		}
	}
	return payload.Sections, nil
}

// stripCodeFence unwraps a ```json fenced block some models insist on.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if idx := strings.Index(text, "\n"); idx >= 0 {
		text = text[idx+1:]
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}
