package domain

import "time"

type Audience string

const (
	AudienceChild Audience = "child"
	AudienceTeen  Audience = "teen"
	AudienceAdult Audience = "adult"
)

type LessonDuration string

const (
	DurationShort  LessonDuration = "short"
	DurationMedium LessonDuration = "medium"
	DurationLong   LessonDuration = "long"
)

type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusCompleted RequestStatus = "completed"
	StatusFailed    RequestStatus = "failed"
)

// FailureKind records why a request ended in StatusFailed.
type FailureKind string

const (
	FailureTimeout  FailureKind = "timeout"
	FailureUpstream FailureKind = "upstream"
	FailureBudget   FailureKind = "budget"
	FailureStorage  FailureKind = "storage"
)

type ReadingLevel string

const (
	LevelEasy   ReadingLevel = "easy"
	LevelMedium ReadingLevel = "medium"
	LevelHard   ReadingLevel = "hard"
)

type LessonRequest struct {
	ID           string         `json:"id"`
	Subject      string         `json:"subject"`
	Audience     Audience       `json:"audience"`
	Duration     LessonDuration `json:"duration"`
	Fingerprint  string         `json:"fingerprint"`
	Status       RequestStatus  `json:"status"`
	FailureKind  FailureKind    `json:"failureKind,omitempty"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

type PlanItem struct {
	Title     string   `json:"title"`
	KeyPoints []string `json:"keyPoints"`
}

type Section struct {
	Title    string `json:"title"`
	BodyText string `json:"bodyText"`
}

type QualityReport struct {
	Score               float64      `json:"score"`
	Level               ReadingLevel `json:"level"`
	WordCount           int          `json:"wordCount"`
	AudienceAppropriate bool         `json:"audienceAppropriate"`
}

type Lesson struct {
	ID         string        `json:"id"`
	RequestID  string        `json:"requestId"`
	Title      string        `json:"title"`
	Objectives []string      `json:"objectives"`
	Plan       []PlanItem    `json:"plan"`
	Sections   []Section     `json:"sections"`
	Markdown   string        `json:"markdown"`
	Quality    QualityReport `json:"quality"`
	TokensUsed int           `json:"tokensUsed"`
	CreatedAt  time.Time     `json:"createdAt"`
}
