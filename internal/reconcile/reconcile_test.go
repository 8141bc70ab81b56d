package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/surgidocs/opreport-tracker/internal/entity"
)

// fakeStore round-trips records through JSON so tests catch anything
// that would not survive a real store.
type fakeStore struct {
	byID            map[uuid.UUID]*entity.Operation
	failSetComplete bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{byID: make(map[uuid.UUID]*entity.Operation)}
}

func clone(op *entity.Operation) *entity.Operation {
	b, _ := json.Marshal(op)
	var out entity.Operation
	_ = json.Unmarshal(b, &out)
	return &out
}

func (s *fakeStore) FindByOpID(_ context.Context, opID string) (*entity.Operation, error) {
	for _, op := range s.byID {
		if op.OpID == opID {
			return clone(op), nil
		}
	}
	return nil, nil
}

func (s *fakeStore) Insert(_ context.Context, op *entity.Operation) (*entity.Operation, error) {
	stored := clone(op)
	stored.ID = uuid.New()
	stored.CreatedAt = time.Now().UTC()
	stored.UpdatedAt = stored.CreatedAt
	s.byID[stored.ID] = stored
	return clone(stored), nil
}

func (s *fakeStore) Update(_ context.Context, id uuid.UUID, op *entity.Operation) (*entity.Operation, error) {
	old, ok := s.byID[id]
	if !ok {
		return nil, errors.New("not found")
	}
	stored := clone(op)
	stored.ID = id
	stored.OpID = old.OpID // business key immutable
	stored.CreatedAt = old.CreatedAt
	stored.UpdatedAt = time.Now().UTC()
	s.byID[id] = stored
	return clone(stored), nil
}

func (s *fakeStore) SetComplete(_ context.Context, id uuid.UUID, complete bool) (*entity.Operation, error) {
	if s.failSetComplete {
		return nil, errors.New("flag write failed")
	}
	op, ok := s.byID[id]
	if !ok {
		return nil, errors.New("not found")
	}
	op.Complete = complete
	return clone(op), nil
}

func intPtr(n int) *int       { return &n }
func strPtr(s string) *string { return &s }

func candidate() *entity.Operation {
	return &entity.Operation{
		OpID:           "OP-2024-03-07",
		Date:           time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC),
		Diagnosis:      "Akute Appendizitis",
		AnesthesiaType: "ITN",
		DurationMin:    95,
		Pathology:      strPtr("Befund"),
		BloodLossML:    intPtr(50),
		Team:           []string{"Dr. Müller M."},
	}
}

func TestUpsertCreatesAndStampsComplete(t *testing.T) {
	store := newFakeStore()
	r := New(store, nil)

	persisted, missing, err := r.Upsert(context.Background(), candidate())
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if len(missing) != 0 {
		t.Fatalf("missing = %v, want none", missing)
	}
	if !persisted.Complete {
		t.Fatalf("complete flag not stamped")
	}
	if persisted.ID == uuid.Nil {
		t.Fatalf("no internal id assigned")
	}
}

func TestUpsertOverwritesExistingBody(t *testing.T) {
	store := newFakeStore()
	r := New(store, nil)

	first := candidate()
	first.Narrative = strPtr("nur in der ersten Einreichung")
	if _, _, err := r.Upsert(context.Background(), first); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	second := candidate()
	second.Narrative = nil
	second.Pathology = nil
	persisted, missing, err := r.Upsert(context.Background(), second)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	// Full overwrite: the narrative from the first submission is gone.
	if persisted.Narrative != nil {
		t.Fatalf("narrative survived overwrite: %q", *persisted.Narrative)
	}
	if persisted.Complete {
		t.Fatalf("record with nil pathology must be incomplete")
	}
	if !reflect.DeepEqual(missing, []string{"pathology_finding"}) {
		t.Fatalf("missing = %v", missing)
	}
	if len(store.byID) != 1 {
		t.Fatalf("second submission created a new record")
	}
}

func TestUpsertIncompleteIsNotAnError(t *testing.T) {
	store := newFakeStore()
	r := New(store, nil)

	empty := &entity.Operation{
		OpID: "OP-2024-06-01",
		Date: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	persisted, missing, err := r.Upsert(context.Background(), empty)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	want := []string{"diagnosis", "anesthesia_type", "duration_min", "pathology_finding", "blood_loss_ml"}
	if !reflect.DeepEqual(missing, want) {
		t.Fatalf("missing = %v, want %v", missing, want)
	}
	if persisted.Complete {
		t.Fatalf("incomplete record stamped complete")
	}
}

func TestUpsertFlagWriteFailureLeavesBody(t *testing.T) {
	store := newFakeStore()
	store.failSetComplete = true
	r := New(store, nil)

	if _, _, err := r.Upsert(context.Background(), candidate()); err == nil {
		t.Fatalf("expected error from failed flag write")
	}
	// The body write already happened: this is the documented
	// inconsistency window of the two-phase write.
	if len(store.byID) != 1 {
		t.Fatalf("body write should have persisted, store has %d records", len(store.byID))
	}
	for _, op := range store.byID {
		if op.Complete {
			t.Fatalf("flag must still be stale after failed second phase")
		}
	}
}

func TestEditRehashesPatientID(t *testing.T) {
	store := newFakeStore()
	r := New(store, nil)

	persisted, _, err := r.Upsert(context.Background(), candidate())
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	raw := "PAT-1234"
	updated, _, err := r.Edit(context.Background(), persisted, Patch{RawPatientID: &raw})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if updated.PatientRef == nil || *updated.PatientRef == raw {
		t.Fatalf("raw patient id reached storage: %v", updated.PatientRef)
	}
	if len(*updated.PatientRef) != 64 {
		t.Fatalf("patient ref is not a sha-256 hex digest: %q", *updated.PatientRef)
	}
}

func TestEditRecomputesCompleteness(t *testing.T) {
	store := newFakeStore()
	r := New(store, nil)

	persisted, _, err := r.Upsert(context.Background(), candidate())
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if !persisted.Complete {
		t.Fatalf("precondition: record complete")
	}

	empty := ""
	updated, missing, err := r.Edit(context.Background(), persisted, Patch{Diagnosis: &empty})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if updated.Complete {
		t.Fatalf("flag not recomputed after edit")
	}
	if !reflect.DeepEqual(missing, []string{"diagnosis"}) {
		t.Fatalf("missing = %v", missing)
	}
}
