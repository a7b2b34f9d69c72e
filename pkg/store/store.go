package store

import (
	"context"

	"lessonforge/pkg/domain"
)

// Store defines persistence for lesson requests and their lessons.
//
// CreateLesson writes the completed request and its lesson in one
// transaction; a unique-constraint violation on the lesson fingerprint
// surfaces as domain.ErrDuplicateFingerprint so the caller can resolve the
// race by re-reading. Lookups return (zero, false, nil) when absent.
type Store interface {
	FindLessonByFingerprint(ctx context.Context, fingerprint string) (domain.Lesson, bool, error)
	CreateLesson(ctx context.Context, req domain.LessonRequest, lesson domain.Lesson) error
	SaveFailedRequest(ctx context.Context, req domain.LessonRequest) error
	GetLesson(ctx context.Context, id string) (domain.Lesson, bool, error)
	GetRequest(ctx context.Context, id string) (domain.LessonRequest, bool, error)
	ListLessons(ctx context.Context, limit, offset int) ([]domain.Lesson, int64, error)
	ListRequestsByFingerprint(ctx context.Context, fingerprint string) ([]domain.LessonRequest, error)
}
