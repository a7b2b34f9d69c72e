package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"lessonforge/pkg/domain"
)

const migrateLockID int64 = 42114211

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations under an advisory lock
// so concurrent instances never race on schema changes.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLog,
		// Surfaces unique violations as gorm.ErrDuplicatedKey.
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&LessonRequestModel{}, &LessonModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// FindLessonByFingerprint resolves the idempotency key to a stored lesson.
func (s *GormStore) FindLessonByFingerprint(ctx context.Context, fingerprint string) (domain.Lesson, bool, error) {
	var model LessonModel
	if err := s.db.WithContext(ctx).Where("fingerprint = ?", fingerprint).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Lesson{}, false, nil
		}
		return domain.Lesson{}, false, storageErr("find lesson by fingerprint", err)
	}
	return lessonFromModel(model), true, nil
}

// CreateLesson writes the completed request and its lesson atomically.
func (s *GormStore) CreateLesson(ctx context.Context, req domain.LessonRequest, lesson domain.Lesson) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		requestModel := requestToModel(req)
		if err := tx.Create(&requestModel).Error; err != nil {
			return err
		}
		lessonModel := lessonToModel(lesson, req.Fingerprint)
		return tx.Create(&lessonModel).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrDuplicateFingerprint
		}
		return storageErr("create lesson", err)
	}
	return nil
}

// SaveFailedRequest records a terminal failure. No lesson row is written.
func (s *GormStore) SaveFailedRequest(ctx context.Context, req domain.LessonRequest) error {
	model := requestToModel(req)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return storageErr("save failed request", err)
	}
	return nil
}

// GetLesson retrieves a lesson by id.
func (s *GormStore) GetLesson(ctx context.Context, id string) (domain.Lesson, bool, error) {
	var model LessonModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Lesson{}, false, nil
		}
		return domain.Lesson{}, false, storageErr("get lesson", err)
	}
	return lessonFromModel(model), true, nil
}

// GetRequest retrieves a lesson request by id.
func (s *GormStore) GetRequest(ctx context.Context, id string) (domain.LessonRequest, bool, error) {
	var model LessonRequestModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.LessonRequest{}, false, nil
		}
		return domain.LessonRequest{}, false, storageErr("get request", err)
	}
	return requestFromModel(model), true, nil
}

// ListLessons returns lessons newest first plus the total count.
func (s *GormStore) ListLessons(ctx context.Context, limit, offset int) ([]domain.Lesson, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&LessonModel{}).Count(&total).Error; err != nil {
		return nil, 0, storageErr("count lessons", err)
	}
	var models []LessonModel
	if err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&models).Error; err != nil {
		return nil, 0, storageErr("list lessons", err)
	}
	lessons := make([]domain.Lesson, 0, len(models))
	for _, model := range models {
		lessons = append(lessons, lessonFromModel(model))
	}
	return lessons, total, nil
}

// ListRequestsByFingerprint returns the attempt history for a fingerprint,
// oldest first.
func (s *GormStore) ListRequestsByFingerprint(ctx context.Context, fingerprint string) ([]domain.LessonRequest, error) {
	var models []LessonRequestModel
	if err := s.db.WithContext(ctx).
		Where("fingerprint = ?", fingerprint).
		Order("created_at ASC").
		Find(&models).Error; err != nil {
		return nil, storageErr("list requests", err)
	}
	requests := make([]domain.LessonRequest, 0, len(models))
	for _, model := range models {
		requests = append(requests, requestFromModel(model))
	}
	return requests, nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrStorage, op, err)
}
