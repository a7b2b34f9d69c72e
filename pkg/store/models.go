package store

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"lessonforge/pkg/domain"
)

// GORM models used for persistence.
//
// The lessons table carries the fingerprint column and its unique index:
// that constraint is the authoritative idempotency guard. Failed request
// rows keep their fingerprint under a plain index so a failed attempt never
// blocks a later retry of the same input.
type LessonRequestModel struct {
	ID           string `gorm:"primaryKey"`
	Subject      string `gorm:"not null"`
	Audience     string `gorm:"not null"`
	Duration     string `gorm:"not null"`
	Fingerprint  string `gorm:"not null;index"`
	Status       string `gorm:"not null"`
	FailureKind  string
	ErrorMessage string
	CreatedAt    time.Time `gorm:"not null"`
}

type LessonModel struct {
	ID                  string         `gorm:"primaryKey"`
	RequestID           string         `gorm:"not null;index"`
	Fingerprint         string         `gorm:"uniqueIndex;not null"`
	Title               string         `gorm:"not null"`
	Objectives          datatypes.JSON `gorm:"type:jsonb"`
	Plan                datatypes.JSON `gorm:"type:jsonb"`
	Sections            datatypes.JSON `gorm:"type:jsonb"`
	Markdown            string         `gorm:"type:text;not null"`
	QualityScore        float64        `gorm:"not null"`
	QualityLevel        string         `gorm:"not null"`
	WordCount           int            `gorm:"not null"`
	AudienceAppropriate bool           `gorm:"not null"`
	TokensUsed          int            `gorm:"not null"`
	CreatedAt           time.Time      `gorm:"not null;index"`
}

func requestToModel(req domain.LessonRequest) LessonRequestModel {
	return LessonRequestModel{
		ID:           req.ID,
		Subject:      req.Subject,
		Audience:     string(req.Audience),
		Duration:     string(req.Duration),
		Fingerprint:  req.Fingerprint,
		Status:       string(req.Status),
		FailureKind:  string(req.FailureKind),
		ErrorMessage: req.ErrorMessage,
		CreatedAt:    req.CreatedAt,
	}
}

func requestFromModel(m LessonRequestModel) domain.LessonRequest {
	return domain.LessonRequest{
		ID:           m.ID,
		Subject:      m.Subject,
		Audience:     domain.Audience(m.Audience),
		Duration:     domain.LessonDuration(m.Duration),
		Fingerprint:  m.Fingerprint,
		Status:       domain.RequestStatus(m.Status),
		FailureKind:  domain.FailureKind(m.FailureKind),
		ErrorMessage: m.ErrorMessage,
		CreatedAt:    m.CreatedAt,
	}
}

func lessonToModel(lesson domain.Lesson, fingerprint string) LessonModel {
	objectives, _ := json.Marshal(lesson.Objectives)
	plan, _ := json.Marshal(lesson.Plan)
	sections, _ := json.Marshal(lesson.Sections)
	return LessonModel{
		ID:                  lesson.ID,
		RequestID:           lesson.RequestID,
		Fingerprint:         fingerprint,
		Title:               lesson.Title,
		Objectives:          objectives,
		Plan:                plan,
		Sections:            sections,
		Markdown:            lesson.Markdown,
		QualityScore:        lesson.Quality.Score,
		QualityLevel:        string(lesson.Quality.Level),
		WordCount:           lesson.Quality.WordCount,
		AudienceAppropriate: lesson.Quality.AudienceAppropriate,
		TokensUsed:          lesson.TokensUsed,
		CreatedAt:           lesson.CreatedAt,
	}
}

func lessonFromModel(m LessonModel) domain.Lesson {
	var objectives []string
	var plan []domain.PlanItem
	var sections []domain.Section
	_ = json.Unmarshal(m.Objectives, &objectives)
	_ = json.Unmarshal(m.Plan, &plan)
	_ = json.Unmarshal(m.Sections, &sections)
	return domain.Lesson{
		ID:         m.ID,
		RequestID:  m.RequestID,
		Title:      m.Title,
		Objectives: objectives,
		Plan:       plan,
		Sections:   sections,
		Markdown:   m.Markdown,
		Quality: domain.QualityReport{
			Score:               m.QualityScore,
			Level:               domain.ReadingLevel(m.QualityLevel),
			WordCount:           m.WordCount,
			AudienceAppropriate: m.AudienceAppropriate,
		},
		TokensUsed: m.TokensUsed,
		CreatedAt:  m.CreatedAt,
	}
}
