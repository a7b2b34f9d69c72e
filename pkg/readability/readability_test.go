package readability

import (
	"testing"

	"lessonforge/pkg/domain"
)

func TestEvaluateDeterministic(t *testing.T) {
	text := "La photosynthèse transforme la lumière en énergie. Les plantes utilisent le soleil. C'est un processus vital."
	first := Evaluate(text, domain.AudienceTeen)
	second := Evaluate(text, domain.AudienceTeen)
	if first != second {
		t.Fatalf("evaluate not deterministic: %+v vs %+v", first, second)
	}
	if first.WordCount == 0 {
		t.Fatalf("word count = 0, want > 0")
	}
	if first.Score < 0 || first.Score > 100 {
		t.Fatalf("score %f outside [0,100]", first.Score)
	}
}

func TestEvaluateSimpleTextScoresEasy(t *testing.T) {
	text := "Le chat dort. Le chien court. Il fait beau. Tout va bien."
	report := Evaluate(text, domain.AudienceChild)
	if report.Level != domain.LevelEasy {
		t.Fatalf("level = %s, want easy (score %f)", report.Level, report.Score)
	}
	if !report.AudienceAppropriate {
		t.Fatalf("short simple sentences should fit a child audience (score %f)", report.Score)
	}
}

func TestEvaluateDenseTextScoresHarder(t *testing.T) {
	text := "La caractérisation phénoménologique des interactions électromagnétiques fondamentales nécessite une formalisation mathématique particulièrement sophistiquée, impliquant des représentations irréductibles des groupes de symétrie continus considérés."
	report := Evaluate(text, domain.AudienceChild)
	if report.Level == domain.LevelEasy {
		t.Fatalf("dense academic text scored easy (score %f)", report.Score)
	}
	if report.AudienceAppropriate {
		t.Fatalf("dense academic text should not fit a child audience (score %f)", report.Score)
	}
}

func TestEvaluateEmptyText(t *testing.T) {
	report := Evaluate("", domain.AudienceAdult)
	if report.Score != 0 || report.WordCount != 0 {
		t.Fatalf("empty text report = %+v, want zero score and word count", report)
	}
	if report.AudienceAppropriate {
		t.Fatalf("empty text must not be audience appropriate")
	}
}

func TestEvaluateIgnoresMarkdownMarkup(t *testing.T) {
	plain := Evaluate("Le chat dort. Le chien court.", domain.AudienceChild)
	marked := Evaluate("## Le chat dort. **Le chien** court.", domain.AudienceChild)
	if plain.WordCount != marked.WordCount {
		t.Fatalf("markup changed word count: %d vs %d", plain.WordCount, marked.WordCount)
	}
}

func TestCountSyllables(t *testing.T) {
	cases := []struct {
		word string
		want int
	}{
		{"chat", 1},
		{"photosynthèse", 5},
		{"eau", 1},
		{"bzz", 1},
		{"énergie", 3},
	}
	for _, tc := range cases {
		if got := countSyllables(tc.word); got != tc.want {
			t.Fatalf("countSyllables(%q) = %d, want %d", tc.word, got, tc.want)
		}
	}
}
