package store

import (
	"context"
	"sync"

	"lessonforge/pkg/domain"
)

// MemoryStore keeps lessons in-process for tests and local runs without
// Postgres. It enforces the same fingerprint uniqueness as the database.
type MemoryStore struct {
	mu            sync.RWMutex
	requests      map[string]domain.LessonRequest
	lessons       map[string]domain.Lesson
	byFingerprint map[string]string // fingerprint -> lesson ID
	order         []string          // lesson IDs, insertion order
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		requests:      make(map[string]domain.LessonRequest),
		lessons:       make(map[string]domain.Lesson),
		byFingerprint: make(map[string]string),
	}
}

// FindLessonByFingerprint resolves the idempotency key to a stored lesson.
func (m *MemoryStore) FindLessonByFingerprint(_ context.Context, fingerprint string) (domain.Lesson, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byFingerprint[fingerprint]
	if !ok {
		return domain.Lesson{}, false, nil
	}
	return m.lessons[id], true, nil
}

// CreateLesson writes the completed request and its lesson, enforcing
// fingerprint uniqueness like the database unique index does.
func (m *MemoryStore) CreateLesson(_ context.Context, req domain.LessonRequest, lesson domain.Lesson) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byFingerprint[req.Fingerprint]; exists {
		return domain.ErrDuplicateFingerprint
	}
	m.requests[req.ID] = req
	m.lessons[lesson.ID] = lesson
	m.byFingerprint[req.Fingerprint] = lesson.ID
	m.order = append(m.order, lesson.ID)
	return nil
}

// SaveFailedRequest records a terminal failure.
func (m *MemoryStore) SaveFailedRequest(_ context.Context, req domain.LessonRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[req.ID] = req
	return nil
}

// GetLesson retrieves a lesson by id.
func (m *MemoryStore) GetLesson(_ context.Context, id string) (domain.Lesson, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lesson, ok := m.lessons[id]
	return lesson, ok, nil
}

// GetRequest retrieves a lesson request by id.
func (m *MemoryStore) GetRequest(_ context.Context, id string) (domain.LessonRequest, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	req, ok := m.requests[id]
	return req, ok, nil
}

// ListLessons returns lessons newest first plus the total count. Like the
// database store, a negative limit means no limit and a negative offset
// means no offset.
func (m *MemoryStore) ListLessons(_ context.Context, limit, offset int) ([]domain.Lesson, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := int64(len(m.order))
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = len(m.order)
	}
	lessons := make([]domain.Lesson, 0, limit)
	for i := len(m.order) - 1 - offset; i >= 0 && len(lessons) < limit; i-- {
		lessons = append(lessons, m.lessons[m.order[i]])
	}
	return lessons, total, nil
}

// ListRequestsByFingerprint returns the attempt history for a fingerprint.
func (m *MemoryStore) ListRequestsByFingerprint(_ context.Context, fingerprint string) ([]domain.LessonRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var requests []domain.LessonRequest
	for _, req := range m.requests {
		if req.Fingerprint == fingerprint {
			requests = append(requests, req)
		}
	}
	return requests, nil
}
