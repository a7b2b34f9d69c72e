package app

import (
	"strings"
	"testing"
)

func TestParsePlan(t *testing.T) {
	plan, err := parsePlan(planJSON)
	if err != nil {
		t.Fatalf("parse plan: %v", err)
	}
	if plan.Title != "La photosynthèse" {
		t.Fatalf("title = %q", plan.Title)
	}
	if len(plan.Objectives) != 2 || len(plan.Items) != 2 {
		t.Fatalf("objectives/items = %d/%d, want 2/2", len(plan.Objectives), len(plan.Items))
	}
	if plan.Items[0].Title != "Introduction" || len(plan.Items[0].KeyPoints) != 2 {
		t.Fatalf("unexpected first plan item: %+v", plan.Items[0])
	}
}

func TestParsePlanRejectsThinOutlines(t *testing.T) {
	cases := []struct {
		name string
		text string
	}{
		{"not json", "here is your outline!"},
		{"missing title", `{"objectives":["a"],"plan":[{"title":"x"},{"title":"y"}]}`},
		{"no objectives", `{"title":"t","objectives":[],"plan":[{"title":"x"},{"title":"y"}]}`},
		{"single entry", `{"title":"t","objectives":["a"],"plan":[{"title":"x"}]}`},
		{"untitled entry", `{"title":"t","objectives":["a"],"plan":[{"title":"x"},{"title":" "}]}`},
	}
	for _, tc := range cases {
		if _, err := parsePlan(tc.text); err == nil {
			t.Fatalf("%s: expected parse error", tc.name)
		}
	}
}

func TestParsePlanStripsCodeFence(t *testing.T) {
	fenced := "```json\n" + planJSON + "\n```"
	plan, err := parsePlan(fenced)
	if err != nil {
		t.Fatalf("parse fenced plan: %v", err)
	}
	if plan.Title != "La photosynthèse" {
		t.Fatalf("title = %q", plan.Title)
	}
}

func TestParseSections(t *testing.T) {
	sections, err := parseSections(sectionsJSON, 2)
	if err != nil {
		t.Fatalf("parse sections: %v", err)
	}
	if len(sections) != 2 {
		t.Fatalf("sections = %d, want 2", len(sections))
	}
	if !strings.Contains(sections[1].BodyText, "chlorophylle") {
		t.Fatalf("unexpected second section body: %q", sections[1].BodyText)
	}
}

func TestParseSectionsRejectsMismatch(t *testing.T) {
	if _, err := parseSections(sectionsJSON, 3); err == nil {
		t.Fatalf("expected error for section count mismatch")
	}
	empty := `{"sections":[{"title":"a","bodyText":"ok"},{"title":"b","bodyText":"  "}]}`
	if _, err := parseSections(empty, 2); err == nil {
		t.Fatalf("expected error for empty section body")
	}
}
