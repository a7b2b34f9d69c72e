package events

import (
	"context"
	"time"

	"lessonforge/pkg/domain"
)

// LessonCompletedEvent announces a newly persisted lesson.
type LessonCompletedEvent struct {
	LessonID    string    `json:"lessonId"`
	RequestID   string    `json:"requestId"`
	Fingerprint string    `json:"fingerprint"`
	Subject     string    `json:"subject"`
	Audience    string    `json:"audience"`
	TokensUsed  int       `json:"tokensUsed"`
	CreatedAt   time.Time `json:"createdAt"`
}

// LessonFailedEvent announces a terminally failed generation attempt.
type LessonFailedEvent struct {
	RequestID   string             `json:"requestId"`
	Fingerprint string             `json:"fingerprint"`
	Subject     string             `json:"subject"`
	FailureKind domain.FailureKind `json:"failureKind"`
	CreatedAt   time.Time          `json:"createdAt"`
}

// Publisher emits lesson lifecycle events. Publishing is best-effort: the
// orchestrator logs failures and never surfaces them to callers.
type Publisher interface {
	LessonCompleted(ctx context.Context, event LessonCompletedEvent) error
	LessonFailed(ctx context.Context, event LessonFailedEvent) error
}

// NopPublisher drops all events, for deployments without a broker.
type NopPublisher struct{}

func (NopPublisher) LessonCompleted(context.Context, LessonCompletedEvent) error { return nil }
func (NopPublisher) LessonFailed(context.Context, LessonFailedEvent) error       { return nil }
