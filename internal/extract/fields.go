// Package extract turns raw OCR text into typed clinical fields.
//
// Every extractor is a total function over the full corpus: no match
// yields the field's default (empty string, nil, 0 or empty slice),
// never an error. Each rule is independent and keeps its own ordered
// pattern list; the first matching pattern wins.
package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/surgidocs/opreport-tracker/constants"
	"github.com/surgidocs/opreport-tracker/internal/entity"
)

// Fields bundles the output of all extractors over one corpus.
type Fields struct {
	Date           *time.Time
	Diagnosis      string
	AnesthesiaType string
	Positioning    *string
	Team           []string
	Narrative      *string
	Pathology      *string
	DurationMin    int
	BloodLossML    *int
	Materials      []entity.Material
	TimePhases     []entity.TimePhase
	ICDCodes       []string
}

// All runs every extractor against the corpus. ICD codes are scanned
// from the extracted diagnosis line only, not the whole corpus.
func All(corpus string) Fields {
	f := Fields{
		Diagnosis:      Diagnosis(corpus),
		AnesthesiaType: Anesthesia(corpus),
		Positioning:    Positioning(corpus),
		Team:           Team(corpus),
		Narrative:      Narrative(corpus),
		Pathology:      Pathology(corpus),
		DurationMin:    DurationMin(corpus),
		BloodLossML:    BloodLossML(corpus),
		Materials:      Materials(corpus),
		TimePhases:     TimePhases(corpus),
	}
	if d, ok := Date(corpus); ok {
		f.Date = &d
	}
	f.ICDCodes = ICDCodes(f.Diagnosis)
	return f
}

var reDate = regexp.MustCompile(`(\d{1,2})\.(\d{1,2})\.(\d{4})`)

// Date finds the first D.M.YYYY occurrence that forms a valid calendar
// date. The caller decides the fallback (explicit override or clock);
// no wall-clock time is read here.
func Date(text string) (time.Time, bool) {
	for _, m := range reDate.FindAllStringSubmatch(text, -1) {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if month < 1 || month > 12 || day < 1 || day > 31 {
			continue
		}
		d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		if d.Day() != day || d.Month() != time.Month(month) {
			continue // e.g. 31.02.2024
		}
		return d, true
	}
	return time.Time{}, false
}

var diagnosisPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Diagnose[:\s]+([^\n]+)`),
	regexp.MustCompile(`(?i)Indikation[:\s]+([^\n]+)`),
}

// Diagnosis returns the rest of the first "Diagnose:" or "Indikation:"
// line, trimmed. Empty string when neither label occurs.
func Diagnosis(text string) string {
	return firstLineMatch(text, diagnosisPatterns)
}

var anesthesiaPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Anästhesie[:\s]+([^\n]+)`),
	regexp.MustCompile(`(?i)Narkose[:\s]+([^\n]+)`),
}

// Anesthesia returns the rest of the first "Anästhesie:" or "Narkose:"
// line, trimmed.
func Anesthesia(text string) string {
	return firstLineMatch(text, anesthesiaPatterns)
}

var rePositioning = regexp.MustCompile(`(?i)Lagerung[:\s]+([^\n]+)`)

// Positioning is optional: nil when the "Lagerung:" label is absent.
func Positioning(text string) *string {
	if m := rePositioning.FindStringSubmatch(text); m != nil {
		v := strings.TrimSpace(m[1])
		return &v
	}
	return nil
}

var reTeamName = regexp.MustCompile(`(Dr\.|Prof\.)?\s*([A-ZÄÖÜ][a-zäöüß]+)\s+([A-ZÄÖÜ]\.?)`)

// Team scans the corpus for name-shaped tokens (optional title,
// capitalized surname, capital initial) in order of appearance,
// deduplicated by exact match and capped at MaxTeamMembers.
func Team(text string) []string {
	var team []string
	seen := make(map[string]struct{})
	for _, m := range reTeamName.FindAllString(text, -1) {
		name := strings.TrimSpace(m)
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		team = append(team, name)
		if len(team) == constants.MaxTeamMembers {
			break
		}
	}
	return team
}

var narrativePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)OP-Verlauf[:\s]+(.+?)(?:\n\n|Pathologie|Material|$)`),
	regexp.MustCompile(`(?is)Verlauf[:\s]+(.+?)(?:\n\n|Pathologie|Material|$)`),
}

// Narrative captures the operative course after "OP-Verlauf:" or
// "Verlauf:" up to the next blank line, a "Pathologie"/"Material"
// section, or end of text.
func Narrative(text string) *string {
	return firstBlockMatch(text, narrativePatterns)
}

var pathologyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)Pathologie[:\s]+(.+?)(?:\n\n|Material|$)`),
	regexp.MustCompile(`(?is)Histologie[:\s]+(.+?)(?:\n\n|Material|$)`),
}

// Pathology captures the pathology/histology finding with the same
// boundary rule as Narrative.
func Pathology(text string) *string {
	return firstBlockMatch(text, pathologyPatterns)
}

var durationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Dauer[:\s]+(\d+)\s*min`),
	regexp.MustCompile(`(?i)OP-Dauer[:\s]+(\d+)`),
	regexp.MustCompile(`(?i)(\d+)\s*Minuten`),
}

// DurationMin returns the documented duration in minutes, 0 when not
// found. Zero is indistinguishable from "not recorded" by design.
func DurationMin(text string) int {
	for _, re := range durationPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			n, err := strconv.Atoi(m[1])
			if err == nil {
				return n
			}
		}
	}
	return 0
}

var bloodLossPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Blutverlust[:\s]+(\d+)\s*ml`),
	regexp.MustCompile(`(?i)(\d+)\s*ml\s+Blutverlust`),
}

// BloodLossML returns the documented blood loss in ml. nil means "not
// documented" and is distinct from a recorded zero.
func BloodLossML(text string) *int {
	for _, re := range bloodLossPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			n, err := strconv.Atoi(m[1])
			if err == nil {
				return &n
			}
		}
	}
	return nil
}

// materialBrands is the closed vocabulary of suture/material brand
// tokens. Extend the list to recognize more brands; the result shape
// stays the same.
var materialBrands = []string{
	`PDS\s+II`,
	`Vicryl`,
	`Prolene`,
}

var materialPatterns = func() []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(materialBrands))
	for i, b := range materialBrands {
		res[i] = regexp.MustCompile(`(?i)` + b + `\s+[\d\-/]+`)
	}
	return res
}()

// Materials scans for known brand tokens followed by a size code.
// Quantity defaults to 1 and lot to empty; both are editable later.
func Materials(text string) []entity.Material {
	var out []entity.Material
	for _, re := range materialPatterns {
		for _, m := range re.FindAllString(text, -1) {
			out = append(out, entity.Material{Name: m, Quantity: 1, Lot: ""})
		}
	}
	return out
}

var reTimeRange = regexp.MustCompile(`(\d{1,2}):(\d{2})\s*[-–]\s*(\d{1,2}):(\d{2})`)

// TimePhases collects HH:MM-HH:MM ranges in document order. Labels are
// the generic "Phase" placeholder; contextual labeling is a known gap.
func TimePhases(text string) []entity.TimePhase {
	var out []entity.TimePhase
	for _, m := range reTimeRange.FindAllStringSubmatch(text, -1) {
		out = append(out, entity.TimePhase{
			Label: "Phase",
			Start: m[1] + ":" + m[2],
			End:   m[3] + ":" + m[4],
		})
	}
	return out
}

var reICD = regexp.MustCompile(`[A-Z]\d{2}\.?\d*`)

// ICDCodes scans the diagnosis text (not the full corpus) for ICD-10
// shaped tokens and returns them deduplicated, in order of appearance.
func ICDCodes(diagnosis string) []string {
	var codes []string
	seen := make(map[string]struct{})
	for _, c := range reICD.FindAllString(diagnosis, -1) {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		codes = append(codes, c)
	}
	return codes
}

func firstLineMatch(text string, patterns []*regexp.Regexp) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

func firstBlockMatch(text string, patterns []*regexp.Regexp) *string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(text); m != nil {
			v := strings.TrimSpace(m[1])
			return &v
		}
	}
	return nil
}
