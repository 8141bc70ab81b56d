package extract

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestDate(t *testing.T) {
	d, ok := Date("OP-Bericht vom 07.03.2024, Beginn 08:15")
	if !ok {
		t.Fatalf("expected a date match")
	}
	want := time.Date(2024, time.March, 7, 0, 0, 0, 0, time.UTC)
	if !d.Equal(want) {
		t.Fatalf("date = %v, want %v", d, want)
	}
}

func TestDateNoMatch(t *testing.T) {
	if _, ok := Date("kein Datum vorhanden"); ok {
		t.Fatalf("expected no date match")
	}
}

func TestDateSkipsImpossibleCalendarDates(t *testing.T) {
	d, ok := Date("korrigiert am 31.02.2024, tatsächlich am 01.03.2024")
	if !ok {
		t.Fatalf("expected a date match")
	}
	want := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	if !d.Equal(want) {
		t.Fatalf("date = %v, want %v", d, want)
	}
}

func TestDiagnosisLabels(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Diagnose: Akute Appendizitis K35.8\nweiterer Text", "Akute Appendizitis K35.8"},
		{"Indikation: Cholezystolithiasis", "Cholezystolithiasis"},
		{"diagnose: kleingeschrieben", "kleingeschrieben"},
		{"kein Label", ""},
	}
	for _, tt := range tests {
		if got := Diagnosis(tt.text); got != tt.want {
			t.Fatalf("Diagnosis(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestDiagnosisPrecedence(t *testing.T) {
	// "Diagnose" wins over "Indikation" regardless of position.
	text := "Indikation: zweite Wahl\nDiagnose: erste Wahl"
	if got := Diagnosis(text); got != "erste Wahl" {
		t.Fatalf("Diagnosis = %q, want %q", got, "erste Wahl")
	}
}

func TestAnesthesia(t *testing.T) {
	if got := Anesthesia("Anästhesie: ITN"); got != "ITN" {
		t.Fatalf("Anesthesia = %q, want ITN", got)
	}
	if got := Anesthesia("Narkose: Spinalanästhesie"); got != "Spinalanästhesie" {
		t.Fatalf("Anesthesia = %q, want Spinalanästhesie", got)
	}
	if got := Anesthesia("nichts dergleichen"); got != "" {
		t.Fatalf("Anesthesia = %q, want empty", got)
	}
}

func TestPositioningOptional(t *testing.T) {
	if got := Positioning("Lagerung: Rückenlage"); got == nil || *got != "Rückenlage" {
		t.Fatalf("Positioning = %v, want Rückenlage", got)
	}
	if got := Positioning("ohne Angabe"); got != nil {
		t.Fatalf("Positioning = %v, want nil", got)
	}
}

func TestTeamDedupAndOrder(t *testing.T) {
	text := "Dr. Müller M. und Dr. Müller M. sowie Dr. Müller M. assistiert von Prof. Weber K."
	team := Team(text)
	if len(team) != 2 {
		t.Fatalf("team = %v, want 2 distinct entries", team)
	}
	if !strings.Contains(team[0], "Müller") {
		t.Fatalf("team[0] = %q, want first mention first", team[0])
	}
}

func TestTeamCap(t *testing.T) {
	var b strings.Builder
	surnames := []string{"Alber", "Braun", "Clauss", "Dreyer", "Ehrlich", "Falk", "Gruber"}
	for i, s := range surnames {
		fmt.Fprintf(&b, "Dr. %s %c. ", s, 'A'+i)
	}
	team := Team(b.String())
	if len(team) != 5 {
		t.Fatalf("team has %d entries, want cap of 5", len(team))
	}
}

func TestNarrativeBoundaries(t *testing.T) {
	text := "OP-Verlauf: Schnitt, Präparation\nund Verschluss.\n\nNachbemerkung"
	n := Narrative(text)
	if n == nil {
		t.Fatalf("expected narrative match")
	}
	if strings.Contains(*n, "Nachbemerkung") {
		t.Fatalf("narrative crossed blank-line boundary: %q", *n)
	}

	text = "Verlauf: unauffällig bis Pathologie: Befund folgt"
	n = Narrative(text)
	if n == nil || strings.Contains(*n, "Befund") {
		t.Fatalf("narrative crossed Pathologie boundary: %v", n)
	}
}

func TestPathology(t *testing.T) {
	p := Pathology("Histologie: chronische Entzündung\n\nRest")
	if p == nil || *p != "chronische Entzündung" {
		t.Fatalf("Pathology = %v, want chronische Entzündung", p)
	}
	if Pathology("nichts") != nil {
		t.Fatalf("expected nil pathology")
	}
}

func TestDurationMin(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"Dauer: 95 min", 95},
		{"OP-Dauer: 120", 120},
		{"Eingriff über 45 Minuten", 45},
		{"keine Angabe", 0},
	}
	for _, tt := range tests {
		if got := DurationMin(tt.text); got != tt.want {
			t.Fatalf("DurationMin(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestBloodLossBothOrders(t *testing.T) {
	if got := BloodLossML("Blutverlust: 200 ml"); got == nil || *got != 200 {
		t.Fatalf("BloodLossML = %v, want 200", got)
	}
	if got := BloodLossML("ca. 150 ml Blutverlust"); got == nil || *got != 150 {
		t.Fatalf("BloodLossML = %v, want 150", got)
	}
}

func TestBloodLossZeroVersusAbsent(t *testing.T) {
	// A documented zero is a value; an absent mention is nil.
	got := BloodLossML("Blutverlust: 0 ml")
	if got == nil || *got != 0 {
		t.Fatalf("BloodLossML = %v, want recorded 0", got)
	}
	if BloodLossML("unblutig") != nil {
		t.Fatalf("expected nil for undocumented blood loss")
	}
}

func TestMaterials(t *testing.T) {
	ms := Materials("Verschluss mit Vicryl 2-0, Faszie PDS II 3/0")
	if len(ms) != 2 {
		t.Fatalf("materials = %v, want 2 entries", ms)
	}
	for _, m := range ms {
		if m.Quantity != 1 || m.Lot != "" {
			t.Fatalf("material defaults wrong: %+v", m)
		}
	}
}

func TestTimePhases(t *testing.T) {
	ps := TimePhases("Schnitt 08:15 - 09:30, Naht 09:30–09:45")
	if len(ps) != 2 {
		t.Fatalf("phases = %v, want 2", ps)
	}
	if ps[0].Start != "08:15" || ps[0].End != "09:30" {
		t.Fatalf("phase[0] = %+v", ps[0])
	}
	if ps[0].Label != "Phase" {
		t.Fatalf("phase label = %q, want generic placeholder", ps[0].Label)
	}
}

func TestICDCodes(t *testing.T) {
	codes := ICDCodes("Akute Appendizitis K35.8, V.a. Peritonitis K65.0, erneut K35.8")
	if len(codes) != 2 {
		t.Fatalf("codes = %v, want 2 deduplicated", codes)
	}
}

func TestICDCodesScanDiagnosisOnly(t *testing.T) {
	// The corpus mentions a code outside the diagnosis line; it must
	// not leak into the result.
	corpus := "Diagnose: Appendizitis K35.8\nNebenbefund C18.9 im Vorbericht"
	f := All(corpus)
	for _, c := range f.ICDCodes {
		if c == "C18.9" {
			t.Fatalf("code from outside the diagnosis leaked: %v", f.ICDCodes)
		}
	}
	if len(f.ICDCodes) != 1 || f.ICDCodes[0] != "K35.8" {
		t.Fatalf("codes = %v, want [K35.8]", f.ICDCodes)
	}
}

func TestAllOnEmptyCorpus(t *testing.T) {
	f := All("")
	if f.Date != nil || f.Diagnosis != "" || f.AnesthesiaType != "" ||
		f.Positioning != nil || len(f.Team) != 0 || f.Narrative != nil ||
		f.Pathology != nil || f.DurationMin != 0 || f.BloodLossML != nil ||
		len(f.Materials) != 0 || len(f.TimePhases) != 0 || len(f.ICDCodes) != 0 {
		t.Fatalf("expected all defaults on empty corpus, got %+v", f)
	}
}
