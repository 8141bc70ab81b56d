// Package normalize assembles extractor output and caller overrides
// into a complete candidate record.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/surgidocs/opreport-tracker/constants"
	"github.com/surgidocs/opreport-tracker/internal/entity"
	"github.com/surgidocs/opreport-tracker/internal/extract"
)

// Input carries everything one submission contributes to a candidate
// record. OpID, Date and PatientID are caller overrides and may be
// empty.
type Input struct {
	Fields    extract.Fields
	OpID      string // explicit business key; derived from the date when empty
	Date      string // explicit procedure date, YYYY-MM-DD
	PatientID string // raw patient identifier; pseudonymized, never stored
	Media     []entity.MediaFile
	RawOCR    map[string]json.RawMessage
}

// Normalizer builds candidate records. The clock is injected so date
// defaulting stays deterministic under test; extractors themselves
// never read wall-clock time.
type Normalizer struct {
	clock func() time.Time
}

func New(clock func() time.Time) *Normalizer {
	if clock == nil {
		clock = time.Now
	}
	return &Normalizer{clock: clock}
}

// Build resolves the procedure date (override, then extractor, then
// clock), derives the business key when not supplied, pseudonymizes
// the patient identifier and maps every extracted field onto the
// record with its explicit default. Complete is left false; the
// reconciler owns that flag.
func (n *Normalizer) Build(in Input) *entity.Operation {
	date := n.resolveDate(in)

	opID := strings.TrimSpace(in.OpID)
	if opID == "" {
		opID = OpIDForDate(date)
	}

	var patientRef *string
	if in.PatientID != "" {
		ref := HashPatientID(in.PatientID)
		patientRef = &ref
	}

	f := in.Fields
	op := &entity.Operation{
		OpID:           opID,
		Date:           date,
		PatientRef:     patientRef,
		Diagnosis:      f.Diagnosis,
		AnesthesiaType: f.AnesthesiaType,
		Positioning:    f.Positioning,
		Team:           emptyIfNil(f.Team),
		Narrative:      f.Narrative,
		Pathology:      f.Pathology,
		DurationMin:    f.DurationMin,
		BloodLossML:    f.BloodLossML,
		Materials:      f.Materials,
		TimePhases:     f.TimePhases,
		Media:          in.Media,
		RawOCR:         in.RawOCR,
		ICDCodes:       emptyIfNil(f.ICDCodes),
	}
	if op.Materials == nil {
		op.Materials = []entity.Material{}
	}
	if op.TimePhases == nil {
		op.TimePhases = []entity.TimePhase{}
	}
	if op.Media == nil {
		op.Media = []entity.MediaFile{}
	}
	return op
}

// resolveDate applies the override chain. A malformed override is not
// an error; it falls through to the next source.
func (n *Normalizer) resolveDate(in Input) time.Time {
	if s := strings.TrimSpace(in.Date); s != "" {
		if d, err := time.ParseInLocation("2006-01-02", s, time.UTC); err == nil {
			return d
		}
		if d, err := time.Parse(time.RFC3339, s); err == nil {
			return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
		}
	}
	if in.Fields.Date != nil {
		return *in.Fields.Date
	}
	now := n.clock().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// HashPatientID is the pseudonymization step: a one-way SHA-256 digest
// of the raw identifier, hex encoded. The same input always yields the
// same reference and nothing downstream can invert it.
func HashPatientID(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// OpIDForDate derives the business key from a procedure date.
func OpIDForDate(d time.Time) string {
	return d.Format(constants.OpIDFormat)
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
