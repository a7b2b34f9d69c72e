package readability

import (
	"strings"
	"unicode"

	"lessonforge/pkg/domain"
)

// Audience-acceptable score ranges, inclusive. Younger audiences need
// simpler text, which scores higher on the Flesch scale.
var audienceRanges = map[domain.Audience][2]float64{
	domain.AudienceChild: {80, 100},
	domain.AudienceTeen:  {60, 80},
	domain.AudienceAdult: {40, 70},
}

const (
	levelEasyMin   = 60
	levelMediumMin = 40
)

// Evaluate scores text for audience fit using a Flesch reading-ease index.
// Deterministic: identical text and audience always yield an identical
// report. The check is advisory; callers record the result but never reject
// a lesson over it.
func Evaluate(text string, audience domain.Audience) domain.QualityReport {
	words := splitWords(cleanMarkdown(text))
	if len(words) == 0 {
		return domain.QualityReport{Level: domain.LevelHard}
	}

	sentences := countSentences(text)
	syllables := 0
	for _, word := range words {
		syllables += countSyllables(word)
	}

	score := 207 - 1.015*(float64(len(words))/float64(sentences)) - 84.6*(float64(syllables)/float64(len(words)))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	acceptable := audienceRanges[audience]
	return domain.QualityReport{
		Score:               score,
		Level:               levelForScore(score),
		WordCount:           len(words),
		AudienceAppropriate: score >= acceptable[0] && score <= acceptable[1],
	}
}

func levelForScore(score float64) domain.ReadingLevel {
	switch {
	case score >= levelEasyMin:
		return domain.LevelEasy
	case score >= levelMediumMin:
		return domain.LevelMedium
	default:
		return domain.LevelHard
	}
}

// cleanMarkdown strips heading markers and light inline markup so formatting
// characters never count as words.
func cleanMarkdown(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch r {
		case '#', '*', '_', '`', '[', ']', '(', ')', '>':
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// splitWords returns runs of two or more letters. Accented Latin letters are
// included so French subject matter is counted correctly.
func splitWords(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	words := make([]string, 0, len(fields))
	for _, field := range fields {
		if len([]rune(field)) >= 2 {
			words = append(words, field)
		}
	}
	return words
}

// countSentences splits on terminator runs and keeps segments longer than
// two characters, with a floor of one.
func countSentences(text string) int {
	segments := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	count := 0
	for _, segment := range segments {
		if len(strings.TrimSpace(segment)) > 2 {
			count++
		}
	}
	if count == 0 {
		return 1
	}
	return count
}

func isVowel(r rune) bool {
	switch unicode.ToLower(r) {
	case 'a', 'e', 'i', 'o', 'u', 'y',
		'à', 'â', 'ä', 'é', 'è', 'ê', 'ë', 'î', 'ï', 'ô', 'ö', 'ù', 'û', 'ü':
		return true
	}
	return false
}

// countSyllables approximates syllables as consecutive-vowel groups, with a
// floor of one per word.
func countSyllables(word string) int {
	count := 0
	inGroup := false
	for _, r := range word {
		if isVowel(r) {
			if !inGroup {
				count++
				inGroup = true
			}
			continue
		}
		inGroup = false
	}
	if count == 0 {
		return 1
	}
	return count
}
