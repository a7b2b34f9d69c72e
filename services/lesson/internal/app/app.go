package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"lessonforge/internal/genlock"
	"lessonforge/internal/util"
	"lessonforge/pkg/ai"
	"lessonforge/pkg/domain"
	"lessonforge/pkg/events"
	"lessonforge/pkg/readability"
	"lessonforge/pkg/storage"
	"lessonforge/pkg/store"
)

// Config holds runtime configuration for the orchestration core. Everything
// is injected at construction so tests can substitute fakes.
type Config struct {
	Store       store.Store
	Client      *ai.Client
	TokenBudget int

	// Optional stage overrides; defaults are built on Client.
	Planner PlanGenerator
	Writer  SectionWriter
	// Optional evaluator override; defaults to readability.Evaluate.
	Evaluate func(text string, audience domain.Audience) domain.QualityReport

	// Optional collaborators.
	Lock           *genlock.Mutex
	Events         events.Publisher
	Artifacts      storage.ArtifactStore
	ArtifactExpiry time.Duration
}

// App orchestrates lesson generation: normalize, dedup, generate, evaluate,
// assemble, persist. One request is processed end-to-end per call; the only
// long suspension points are the two provider calls.
type App struct {
	store          store.Store
	planner        PlanGenerator
	writer         SectionWriter
	evaluate       func(string, domain.Audience) domain.QualityReport
	budget         int
	lock           *genlock.Mutex
	events         events.Publisher
	artifacts      storage.ArtifactStore
	artifactExpiry time.Duration
	group          singleflight.Group
}

// New constructs the orchestrator.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, errors.New("app requires a store")
	}
	planner := cfg.Planner
	writer := cfg.Writer
	if planner == nil || writer == nil {
		if cfg.Client == nil {
			return nil, errors.New("app requires a provider client or stage overrides")
		}
		if planner == nil {
			planner = &aiPlanGenerator{client: cfg.Client}
		}
		if writer == nil {
			writer = &aiSectionWriter{client: cfg.Client}
		}
	}
	evaluate := cfg.Evaluate
	if evaluate == nil {
		evaluate = readability.Evaluate
	}
	budget := cfg.TokenBudget
	if budget <= 0 {
		budget = ai.DefaultTokenBudget
	}
	pub := cfg.Events
	if pub == nil {
		pub = events.NopPublisher{}
	}
	artifactExpiry := cfg.ArtifactExpiry
	if artifactExpiry <= 0 {
		artifactExpiry = 15 * time.Minute
	}
	return &App{
		store:          cfg.Store,
		planner:        planner,
		writer:         writer,
		evaluate:       evaluate,
		budget:         budget,
		lock:           cfg.Lock,
		events:         pub,
		artifacts:      cfg.Artifacts,
		artifactExpiry: artifactExpiry,
	}, nil
}

// GenerateOrFetch returns the lesson for the request, generating it when the
// fingerprint is new. The bool reports whether the lesson came from the
// idempotency path. Same input always yields the same stored lesson.
func (a *App) GenerateOrFetch(ctx context.Context, subject, audience, duration string) (domain.Lesson, bool, error) {
	norm, err := domain.Normalize(subject, audience, duration)
	if err != nil {
		return domain.Lesson{}, false, err
	}
	logger := util.LoggerFromContext(ctx).With("fingerprint", norm.Fingerprint)

	lesson, ok, err := a.store.FindLessonByFingerprint(ctx, norm.Fingerprint)
	if err != nil {
		return domain.Lesson{}, false, err
	}
	if ok {
		logger.Info("lesson served from idempotency path", "lesson_id", lesson.ID)
		return lesson, true, nil
	}

	type generated struct {
		lesson domain.Lesson
		dedup  bool
	}
	// Concurrent identical requests in this process collapse onto one
	// generation; across processes the fingerprint unique index decides.
	v, err, shared := a.group.Do(norm.Fingerprint, func() (any, error) {
		lesson, dedup, err := a.generate(ctx, norm)
		if err != nil {
			return nil, err
		}
		return generated{lesson: lesson, dedup: dedup}, nil
	})
	if err != nil {
		return domain.Lesson{}, false, err
	}
	result := v.(generated)
	return result.lesson, result.dedup || shared, nil
}

// Fetch returns a stored lesson by id.
func (a *App) Fetch(ctx context.Context, id string) (domain.Lesson, error) {
	lesson, ok, err := a.store.GetLesson(ctx, id)
	if err != nil {
		return domain.Lesson{}, err
	}
	if !ok {
		return domain.Lesson{}, domain.ErrNotFound
	}
	return lesson, nil
}

// ListLessons returns a page of stored lessons, newest first, plus the
// total count.
func (a *App) ListLessons(ctx context.Context, limit, offset int) ([]domain.Lesson, int64, error) {
	return a.store.ListLessons(ctx, limit, offset)
}

// DownloadURL returns a pre-signed URL and filename for the lesson document.
func (a *App) DownloadURL(ctx context.Context, id string) (string, string, error) {
	if a.artifacts == nil {
		return "", "", ErrArtifactsDisabled
	}
	lesson, err := a.Fetch(ctx, id)
	if err != nil {
		return "", "", err
	}
	key, err := a.artifacts.PutMarkdown(ctx, lesson.ID, []byte(lesson.Markdown))
	if err != nil {
		return "", "", fmt.Errorf("export lesson document: %w", err)
	}
	url, err := a.artifacts.PresignDownload(ctx, key, a.artifactExpiry)
	if err != nil {
		return "", "", fmt.Errorf("presign lesson document: %w", err)
	}
	return url, documentFilename(lesson.Title), nil
}

func (a *App) generate(ctx context.Context, norm domain.NormalizedRequest) (domain.Lesson, bool, error) {
	logger := util.LoggerFromContext(ctx).With("fingerprint", norm.Fingerprint)

	if a.lock != nil {
		if release, ok := a.lock.TryAcquire(ctx, norm.Fingerprint); ok {
			defer release()
		} else {
			// Another instance may be generating; the unique index will
			// resolve whoever finishes second.
			logger.Debug("fingerprint lock not acquired, proceeding")
		}
	}

	request := domain.LessonRequest{
		ID:          uuid.NewString(),
		Subject:     norm.Subject,
		Audience:    norm.Audience,
		Duration:    norm.Duration,
		Fingerprint: norm.Fingerprint,
		Status:      domain.StatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	ledger := ai.NewLedger(a.budget)

	plan, err := a.planner.GeneratePlan(ctx, ledger, norm)
	if err != nil {
		return domain.Lesson{}, false, a.failRequest(ctx, request, err)
	}
	sections, err := a.writer.WriteSections(ctx, ledger, norm, plan)
	if err != nil {
		return domain.Lesson{}, false, a.failRequest(ctx, request, err)
	}

	// Quality is computed from the final combined text, never from drafts.
	bodies := make([]string, 0, len(sections))
	for _, section := range sections {
		bodies = append(bodies, section.BodyText)
	}
	quality := a.evaluate(strings.Join(bodies, "\n\n"), norm.Audience)
	if !quality.AudienceAppropriate {
		// Advisory in this version: recorded and logged, never blocking.
		logger.Warn("lesson readability outside audience range",
			"score", quality.Score, "level", quality.Level, "audience", norm.Audience)
	}

	now := time.Now().UTC()
	lesson := domain.Lesson{
		ID:         uuid.NewString(),
		RequestID:  request.ID,
		Title:      plan.Title,
		Objectives: plan.Objectives,
		Plan:       plan.Items,
		Sections:   sections,
		Quality:    quality,
		TokensUsed: ledger.Spent(),
		CreatedAt:  now,
	}
	lesson.Markdown = BuildMarkdown(lesson.Title, lesson.Objectives, lesson.Plan, lesson.Sections, quality)
	request.Status = domain.StatusCompleted

	// Persist detached from caller cancellation: tokens are spent, so an
	// aborted caller must not discard the finished lesson.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := a.store.CreateLesson(persistCtx, request, lesson); err != nil {
		if errors.Is(err, domain.ErrDuplicateFingerprint) {
			// Lost the persistence race: return the winner.
			winner, ok, findErr := a.store.FindLessonByFingerprint(persistCtx, norm.Fingerprint)
			if findErr != nil {
				return domain.Lesson{}, false, findErr
			}
			if !ok {
				return domain.Lesson{}, false, fmt.Errorf("%w: duplicate fingerprint vanished", domain.ErrStorage)
			}
			logger.Info("lost persistence race, returning stored lesson", "lesson_id", winner.ID)
			return winner, true, nil
		}
		return domain.Lesson{}, false, err
	}

	logger.Info("lesson generated",
		"lesson_id", lesson.ID, "tokens_used", lesson.TokensUsed,
		"sections", len(lesson.Sections), "score", quality.Score)

	if a.artifacts != nil {
		if _, err := a.artifacts.PutMarkdown(persistCtx, lesson.ID, []byte(lesson.Markdown)); err != nil {
			logger.Warn("lesson artifact upload failed", "err", err)
		}
	}
	if err := a.events.LessonCompleted(persistCtx, events.LessonCompletedEvent{
		LessonID:    lesson.ID,
		RequestID:   request.ID,
		Fingerprint: norm.Fingerprint,
		Subject:     norm.Subject,
		Audience:    string(norm.Audience),
		TokensUsed:  lesson.TokensUsed,
		CreatedAt:   now,
	}); err != nil {
		logger.Warn("lesson completed event publish failed", "err", err)
	}
	return lesson, false, nil
}

// failRequest records a terminal generation failure and returns the typed
// error unchanged. Only classified generation failures reach here;
// validation errors never touch storage.
func (a *App) failRequest(ctx context.Context, request domain.LessonRequest, cause error) error {
	logger := util.LoggerFromContext(ctx).With("fingerprint", request.Fingerprint)
	if ctx.Err() != nil {
		// Caller abandoned the request; nothing terminal to record.
		return cause
	}
	request.Status = domain.StatusFailed
	request.FailureKind = failureKind(cause)
	request.ErrorMessage = cause.Error()

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := a.store.SaveFailedRequest(persistCtx, request); err != nil {
		logger.Error("failed request not recorded", "err", err)
	}
	if err := a.events.LessonFailed(persistCtx, events.LessonFailedEvent{
		RequestID:   request.ID,
		Fingerprint: request.Fingerprint,
		Subject:     request.Subject,
		FailureKind: request.FailureKind,
		CreatedAt:   request.CreatedAt,
	}); err != nil {
		logger.Warn("lesson failed event publish failed", "err", err)
	}
	logger.Warn("lesson generation failed", "kind", request.FailureKind, "err", cause)
	return cause
}

func failureKind(err error) domain.FailureKind {
	switch {
	case errors.Is(err, domain.ErrBudgetExceeded):
		return domain.FailureBudget
	case errors.Is(err, domain.ErrGenerationTimeout):
		return domain.FailureTimeout
	case errors.Is(err, domain.ErrStorage):
		return domain.FailureStorage
	default:
		return domain.FailureUpstream
	}
}

func documentFilename(title string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	name := strings.Trim(b.String(), "-")
	if name == "" {
		name = "lesson"
	}
	return name + ".md"
}
