package validators

import (
	"testing"
	"unicode/utf8"
)

func TestSanitizeStringTrimsAndCaps(t *testing.T) {
	if got := SanitizeString("  fever  ", 0); got != "fever" {
		t.Fatalf("expected trimmed value, got %q", got)
	}
	if got := SanitizeString("headache", 4); got != "head" {
		t.Fatalf("expected byte cap, got %q", got)
	}
}

func TestSanitizeStringKeepsRunesWhole(t *testing.T) {
	// "é" is two bytes; a cap of 2 lands inside it.
	got := SanitizeString("aé clinic", 2)
	if got != "a" {
		t.Fatalf("expected rune-aligned cut, got %q", got)
	}
	got = SanitizeString("naïve", 3)
	if !utf8.ValidString(got) || got != "na" {
		t.Fatalf("expected valid utf-8 prefix, got %q", got)
	}
	if got := SanitizeString("ïï", 4); got != "ïï" {
		t.Fatalf("expected exact fit to be kept, got %q", got)
	}
}
