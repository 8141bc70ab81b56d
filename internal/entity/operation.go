package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Operation is the canonical record for one surgical procedure. It is
// keyed internally by ID and externally by OpID (the business key).
type Operation struct {
	ID             uuid.UUID                  `json:"id"`
	OpID           string                     `json:"op_id"`
	Date           time.Time                  `json:"date"`
	PatientRef     *string                    `json:"patient_ref,omitempty"`
	Diagnosis      string                     `json:"diagnosis"`
	AnesthesiaType string                     `json:"anesthesia_type"`
	Positioning    *string                    `json:"positioning,omitempty"`
	Team           []string                   `json:"team"`
	Narrative      *string                    `json:"narrative,omitempty"`
	Pathology      *string                    `json:"pathology_finding,omitempty"`
	DurationMin    int                        `json:"duration_min"`
	BloodLossML    *int                       `json:"blood_loss_ml,omitempty"`
	Materials      []Material                 `json:"materials"`
	TimePhases     []TimePhase                `json:"time_phases"`
	Media          []MediaFile                `json:"media"`
	RawOCR         map[string]json.RawMessage `json:"raw_ocr,omitempty"`
	ICDCodes       []string                   `json:"icd_codes"`
	Complete       bool                       `json:"complete"`
	CreatedAt      time.Time                  `json:"created_at"`
	UpdatedAt      time.Time                  `json:"updated_at"`
}

// Material is one suture or implant entry recognized in the report.
type Material struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Lot      string `json:"lot"`
}

// TimePhase is one HH:MM-HH:MM interval from the operative course.
// Label association by context is not implemented; Label is a generic
// placeholder.
type TimePhase struct {
	Label string `json:"label"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// MediaFile describes one uploaded page of a submission. Page is
// 1-based and follows upload order.
type MediaFile struct {
	StoredName   string `json:"stored_name"`
	OriginalName string `json:"original_name"`
	Page         int    `json:"page"`
}
