package normalize

import (
	"testing"
	"time"

	"github.com/surgidocs/opreport-tracker/internal/extract"
)

var testClock = func() time.Time {
	return time.Date(2024, 6, 1, 15, 4, 5, 0, time.UTC)
}

func TestOpIDForDate(t *testing.T) {
	d := time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC)
	if got := OpIDForDate(d); got != "OP-2024-03-07" {
		t.Fatalf("op id = %q, want OP-2024-03-07", got)
	}
}

func TestDateOverrideWinsOverCorpus(t *testing.T) {
	n := New(testClock)
	extracted := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	op := n.Build(Input{
		Date:   "2024-03-07",
		Fields: extract.Fields{Date: &extracted},
	})
	if op.OpID != "OP-2024-03-07" {
		t.Fatalf("op id = %q, override date must win", op.OpID)
	}
	if !op.Date.Equal(time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("date = %v", op.Date)
	}
}

func TestDateFallsBackToExtractorThenClock(t *testing.T) {
	n := New(testClock)
	extracted := time.Date(2023, 12, 24, 0, 0, 0, 0, time.UTC)
	op := n.Build(Input{Fields: extract.Fields{Date: &extracted}})
	if !op.Date.Equal(extracted) {
		t.Fatalf("date = %v, want extractor value", op.Date)
	}

	op = n.Build(Input{})
	want := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	if !op.Date.Equal(want) {
		t.Fatalf("date = %v, want clock date %v", op.Date, want)
	}
	if op.OpID != "OP-2024-06-01" {
		t.Fatalf("op id = %q", op.OpID)
	}
}

func TestMalformedDateOverrideFallsThrough(t *testing.T) {
	n := New(testClock)
	op := n.Build(Input{Date: "not-a-date"})
	if op.OpID != "OP-2024-06-01" {
		t.Fatalf("op id = %q, malformed override must fall back to clock", op.OpID)
	}
}

func TestExplicitOpIDWins(t *testing.T) {
	n := New(testClock)
	op := n.Build(Input{OpID: "OP-2020-01-01", Date: "2024-03-07"})
	if op.OpID != "OP-2020-01-01" {
		t.Fatalf("op id = %q, explicit key must win", op.OpID)
	}
}

func TestPatientPseudonymization(t *testing.T) {
	n := New(testClock)
	a := n.Build(Input{PatientID: "PAT-1234"})
	b := n.Build(Input{PatientID: "PAT-1234"})
	c := n.Build(Input{PatientID: "PAT-5678"})

	if a.PatientRef == nil || b.PatientRef == nil || c.PatientRef == nil {
		t.Fatalf("patient refs missing")
	}
	if *a.PatientRef != *b.PatientRef {
		t.Fatalf("pseudonym not deterministic: %q vs %q", *a.PatientRef, *b.PatientRef)
	}
	if *a.PatientRef == *c.PatientRef {
		t.Fatalf("different identifiers collided")
	}
	if *a.PatientRef == "PAT-1234" {
		t.Fatalf("raw identifier leaked into record")
	}

	if op := n.Build(Input{}); op.PatientRef != nil {
		t.Fatalf("absent identifier must yield nil ref, got %q", *op.PatientRef)
	}
}

func TestBuildDefaultsShape(t *testing.T) {
	n := New(testClock)
	op := n.Build(Input{})
	if op.Team == nil || op.Materials == nil || op.TimePhases == nil || op.Media == nil || op.ICDCodes == nil {
		t.Fatalf("collection fields must be empty, not nil: %+v", op)
	}
	if op.DurationMin != 0 || op.BloodLossML != nil || op.Diagnosis != "" {
		t.Fatalf("scalar defaults wrong: %+v", op)
	}
	if op.Complete {
		t.Fatalf("normalizer must not set the complete flag")
	}
}
