// Package completeness decides which clinically mandatory fields a
// record is still missing. The rule order is fixed and part of the
// contract: consumers display the list as returned.
package completeness

import (
	"github.com/surgidocs/opreport-tracker/constants"
	"github.com/surgidocs/opreport-tracker/internal/entity"
)

// Evaluate returns the ordered list of missing mandatory fields. An
// empty result means the record is complete. The function is pure and
// must be re-run after every write; the stored Complete flag is always
// its result, never caller input.
func Evaluate(op *entity.Operation) []string {
	var missing []string
	if op.Date.IsZero() {
		missing = append(missing, constants.FieldProcedureDate)
	}
	if op.Diagnosis == "" {
		missing = append(missing, constants.FieldDiagnosis)
	}
	if op.AnesthesiaType == "" {
		missing = append(missing, constants.FieldAnesthesiaType)
	}
	// Zero duration counts as "not recorded"; the extractor cannot
	// distinguish the two.
	if op.DurationMin == 0 {
		missing = append(missing, constants.FieldDurationMin)
	}
	if op.Pathology == nil {
		missing = append(missing, constants.FieldPathology)
	}
	// A recorded zero blood loss is a value; only nil is missing.
	if op.BloodLossML == nil {
		missing = append(missing, constants.FieldBloodLossML)
	}
	return missing
}

// IsComplete reports whether Evaluate would return an empty list.
func IsComplete(op *entity.Operation) bool {
	return len(Evaluate(op)) == 0
}
