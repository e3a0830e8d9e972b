package store

import (
	"testing"
	"time"
)

func TestFormatTicketCode(t *testing.T) {
	day := time.Date(2024, 9, 17, 22, 30, 0, 0, time.UTC)
	got := FormatTicketCode(day, 1)
	if got != "TK240917001" {
		t.Fatalf("expected TK240917001, got %s", got)
	}
	if len(got) != 11 {
		t.Fatalf("expected length 11, got %d", len(got))
	}
	if !ValidTicketCode(got) {
		t.Fatalf("generated code %s does not match format", got)
	}
	if got := FormatTicketCode(day, 42); got != "TK240917042" {
		t.Fatalf("expected TK240917042, got %s", got)
	}
	if got := FormatTicketCode(day, MaxDailySequence); !ValidTicketCode(got) {
		t.Fatalf("last code of the day %s does not match format", got)
	}
}

func TestValidTicketCode(t *testing.T) {
	cases := map[string]bool{
		"TK240917001":  true,
		"TK2409170001": false,
		"TK24091701":   false,
		"tk240917001":  false,
		"XX240917001":  false,
		"TK24091700a":  false,
		"":             false,
	}
	for code, want := range cases {
		if got := ValidTicketCode(code); got != want {
			t.Fatalf("ValidTicketCode(%q)=%v, want %v", code, got, want)
		}
	}
}

func TestCodePrefix(t *testing.T) {
	day := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	if got := CodePrefix(day); got != "TK250105" {
		t.Fatalf("expected TK250105, got %s", got)
	}
}
