package constants

// Canonical names for the clinically mandatory fields. The order of
// MandatoryFields is the order the completeness evaluator reports
// missing fields in; consumers render the list as-is.
const (
	FieldProcedureDate  = "procedure_date"
	FieldDiagnosis      = "diagnosis"
	FieldAnesthesiaType = "anesthesia_type"
	FieldDurationMin    = "duration_min"
	FieldPathology      = "pathology_finding"
	FieldBloodLossML    = "blood_loss_ml"
)

var MandatoryFields = []string{
	FieldProcedureDate,
	FieldDiagnosis,
	FieldAnesthesiaType,
	FieldDurationMin,
	FieldPathology,
	FieldBloodLossML,
}

// OpIDFormat is the business-key layout: "OP-" + zero-padded
// year-month-day of the procedure date.
const OpIDFormat = "OP-2006-01-02"

// MaxTeamMembers caps the team list extracted from a report.
const MaxTeamMembers = 5

// MaxUploadFiles caps the number of pages/files per submission.
const MaxUploadFiles = 10
