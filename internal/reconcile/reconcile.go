// Package reconcile decides how a candidate record meets the store:
// create on a new business key, full overwrite on an existing one,
// completeness recomputed after every mutation.
package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/surgidocs/opreport-tracker/internal/completeness"
	"github.com/surgidocs/opreport-tracker/internal/entity"
	"github.com/surgidocs/opreport-tracker/internal/normalize"
)

// Store is the record-store collaborator boundary. FindByOpID returns
// (nil, nil) when no record exists under the key.
type Store interface {
	FindByOpID(ctx context.Context, opID string) (*entity.Operation, error)
	Insert(ctx context.Context, op *entity.Operation) (*entity.Operation, error)
	Update(ctx context.Context, id uuid.UUID, op *entity.Operation) (*entity.Operation, error)
	SetComplete(ctx context.Context, id uuid.UUID, complete bool) (*entity.Operation, error)
}

type Reconciler struct {
	store  Store
	logger *slog.Logger
}

func New(store Store, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{store: store, logger: logger}
}

// Upsert persists the candidate under its business key. An existing
// record is fully overwritten: fields absent in the candidate are
// lost, by policy, not by accident. A field-level keep-old-on-default
// merge was considered and deliberately not implemented.
//
// The write is two-phase: record body first, then the derived
// completeness flag. A crash between the two leaves the flag stale
// relative to the body; readers that suspect staleness can recompute
// via completeness.Evaluate. Concurrent submissions for one key race
// with last-writer-wins semantics; no lock is taken.
func (r *Reconciler) Upsert(ctx context.Context, candidate *entity.Operation) (*entity.Operation, []string, error) {
	existing, err := r.store.FindByOpID(ctx, candidate.OpID)
	if err != nil {
		return nil, nil, err
	}

	var persisted *entity.Operation
	if existing != nil {
		persisted, err = r.store.Update(ctx, existing.ID, candidate)
		if err != nil {
			return nil, nil, err
		}
		r.logger.Info("reconcile.overwrite", "op_id", candidate.OpID, "id", existing.ID)
	} else {
		persisted, err = r.store.Insert(ctx, candidate)
		if err != nil {
			return nil, nil, err
		}
		r.logger.Info("reconcile.create", "op_id", candidate.OpID, "id", persisted.ID)
	}

	missing := completeness.Evaluate(persisted)
	persisted, err = r.store.SetComplete(ctx, persisted.ID, len(missing) == 0)
	if err != nil {
		return nil, nil, err
	}
	return persisted, missing, nil
}

// Patch carries a direct field edit. Nil pointers leave the stored
// value untouched. RawPatientID is the raw identifier from the caller;
// it is pseudonymized here and never written as-is.
type Patch struct {
	Date           *string
	Diagnosis      *string
	AnesthesiaType *string
	Positioning    *string
	Team           []string
	Narrative      *string
	Pathology      *string
	DurationMin    *int
	BloodLossML    *int
	Materials      []entity.Material
	TimePhases     []entity.TimePhase
	RawPatientID   *string
}

// Edit applies a partial update to the record with the given internal
// id, then recomputes completeness with the same two-phase write as
// Upsert. The business key is immutable and cannot be patched.
func (r *Reconciler) Edit(ctx context.Context, current *entity.Operation, p Patch) (*entity.Operation, []string, error) {
	applyPatch(current, p)

	persisted, err := r.store.Update(ctx, current.ID, current)
	if err != nil {
		return nil, nil, err
	}

	missing := completeness.Evaluate(persisted)
	persisted, err = r.store.SetComplete(ctx, persisted.ID, len(missing) == 0)
	if err != nil {
		return nil, nil, err
	}
	r.logger.Info("reconcile.edit", "op_id", persisted.OpID, "id", persisted.ID, "missing", len(missing))
	return persisted, missing, nil
}

func applyPatch(op *entity.Operation, p Patch) {
	if p.Date != nil {
		if d, err := parseYMD(*p.Date); err == nil {
			op.Date = d
		}
	}
	if p.Diagnosis != nil {
		op.Diagnosis = *p.Diagnosis
	}
	if p.AnesthesiaType != nil {
		op.AnesthesiaType = *p.AnesthesiaType
	}
	if p.Positioning != nil {
		op.Positioning = p.Positioning
	}
	if p.Team != nil {
		op.Team = p.Team
	}
	if p.Narrative != nil {
		op.Narrative = p.Narrative
	}
	if p.Pathology != nil {
		op.Pathology = p.Pathology
	}
	if p.DurationMin != nil && *p.DurationMin >= 0 {
		op.DurationMin = *p.DurationMin
	}
	if p.BloodLossML != nil && *p.BloodLossML >= 0 {
		op.BloodLossML = p.BloodLossML
	}
	if p.Materials != nil {
		op.Materials = p.Materials
	}
	if p.TimePhases != nil {
		op.TimePhases = p.TimePhases
	}
	if p.RawPatientID != nil && *p.RawPatientID != "" {
		ref := normalize.HashPatientID(*p.RawPatientID)
		op.PatientRef = &ref
	}
}

func parseYMD(s string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s, time.UTC)
}
