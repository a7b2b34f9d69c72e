package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	minSubjectChars = 2
	maxSubjectChars = 200
)

// NormalizedRequest is the canonical form of raw lesson input. Subject keeps
// its display casing; the fingerprint is computed over the case-folded form.
type NormalizedRequest struct {
	Subject     string
	Audience    Audience
	Duration    LessonDuration
	Fingerprint string
}

// Normalize validates raw input and derives the request fingerprint.
// Pure: identical input always yields an identical result.
func Normalize(subject, audience, duration string) (NormalizedRequest, error) {
	trimmed := strings.TrimSpace(subject)
	if n := len([]rune(trimmed)); n < minSubjectChars || n > maxSubjectChars {
		return NormalizedRequest{}, &ValidationError{
			Field:  "subject",
			Reason: fmt.Sprintf("must be between %d and %d characters", minSubjectChars, maxSubjectChars),
		}
	}
	aud, ok := ParseAudience(audience)
	if !ok {
		return NormalizedRequest{}, &ValidationError{
			Field:  "audience",
			Reason: "must be one of child, teen, adult",
		}
	}
	dur, ok := ParseDuration(duration)
	if !ok {
		return NormalizedRequest{}, &ValidationError{
			Field:  "duration",
			Reason: "must be one of short, medium, long",
		}
	}
	return NormalizedRequest{
		Subject:     trimmed,
		Audience:    aud,
		Duration:    dur,
		Fingerprint: Fingerprint(trimmed, aud, dur),
	}, nil
}

// Fingerprint hashes the canonical request form. The subject is trimmed and
// lowercased so casing and surrounding whitespace never split the idempotency
// key; the field order in the hashed document is fixed.
func Fingerprint(subject string, audience Audience, duration LessonDuration) string {
	canonical := struct {
		Audience string `json:"audience"`
		Duration string `json:"duration"`
		Subject  string `json:"subject"`
	}{
		Audience: string(audience),
		Duration: string(duration),
		Subject:  strings.ToLower(strings.TrimSpace(subject)),
	}
	raw, _ := json.Marshal(canonical)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// ParseAudience maps a raw string onto the closed audience enum.
func ParseAudience(raw string) (Audience, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(AudienceChild):
		return AudienceChild, true
	case string(AudienceTeen):
		return AudienceTeen, true
	case string(AudienceAdult):
		return AudienceAdult, true
	default:
		return "", false
	}
}

// ParseDuration maps a raw string onto the closed duration enum.
func ParseDuration(raw string) (LessonDuration, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(DurationShort):
		return DurationShort, true
	case string(DurationMedium):
		return DurationMedium, true
	case string(DurationLong):
		return DurationLong, true
	default:
		return "", false
	}
}
