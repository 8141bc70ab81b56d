package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/surgidocs/opreport-tracker/internal/entity"
)

func openTestRepo(t *testing.T) OperationRepository {
	t.Helper()
	repo, db, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return repo
}

func sample(opID string, date time.Time) *entity.Operation {
	loss := 50
	return &entity.Operation{
		OpID:           opID,
		Date:           date,
		Diagnosis:      "Akute Appendizitis",
		AnesthesiaType: "ITN",
		DurationMin:    95,
		BloodLossML:    &loss,
		Team:           []string{"Dr. Müller M."},
		Materials:      []entity.Material{},
		TimePhases:     []entity.TimePhase{},
		Media:          []entity.MediaFile{},
	}
}

func TestInsertAndFindByOpID(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	inserted, err := repo.Insert(ctx, sample("OP-2024-03-07", time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if inserted.ID == uuid.Nil {
		t.Fatalf("no id assigned")
	}

	found, err := repo.FindByOpID(ctx, "OP-2024-03-07")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found == nil || found.ID != inserted.ID {
		t.Fatalf("found = %+v", found)
	}
	if found.Diagnosis != "Akute Appendizitis" {
		t.Fatalf("payload did not round-trip: %+v", found)
	}
}

func TestFindByOpIDAbsentIsNilNil(t *testing.T) {
	repo := openTestRepo(t)

	found, err := repo.FindByOpID(context.Background(), "OP-1999-01-01")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found != nil {
		t.Fatalf("expected nil for absent key, got %+v", found)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	repo := openTestRepo(t)

	if _, err := repo.GetByID(context.Background(), uuid.New()); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdatePreservesKeyAndCreatedAt(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	inserted, err := repo.Insert(ctx, sample("OP-2024-03-07", time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	replacement := sample("OP-9999-12-31", inserted.Date)
	replacement.Diagnosis = "Revision"
	updated, err := repo.Update(ctx, inserted.ID, replacement)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.OpID != "OP-2024-03-07" {
		t.Fatalf("business key changed to %q", updated.OpID)
	}
	if !updated.CreatedAt.Equal(inserted.CreatedAt) {
		t.Fatalf("created_at changed: %v -> %v", inserted.CreatedAt, updated.CreatedAt)
	}
	if updated.Diagnosis != "Revision" {
		t.Fatalf("body not replaced: %q", updated.Diagnosis)
	}
}

func TestSetCompleteFlagOnly(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	inserted, err := repo.Insert(ctx, sample("OP-2024-03-07", time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	flagged, err := repo.SetComplete(ctx, inserted.ID, true)
	if err != nil {
		t.Fatalf("set complete: %v", err)
	}
	if !flagged.Complete {
		t.Fatalf("flag not set")
	}
	if flagged.Diagnosis != inserted.Diagnosis {
		t.Fatalf("body changed by flag write")
	}

	found, err := repo.GetByID(ctx, inserted.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !found.Complete {
		t.Fatalf("flag not persisted")
	}
}

func TestListFiltersAndOrder(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	dates := []time.Time{
		time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 8, 20, 0, 0, 0, 0, time.UTC),
	}
	for _, d := range dates {
		op, err := repo.Insert(ctx, sample("OP-"+d.Format("2006-01-02"), d))
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
		if d.Year() == 2024 {
			if _, err := repo.SetComplete(ctx, op.ID, true); err != nil {
				t.Fatalf("set complete: %v", err)
			}
		}
	}

	all, err := repo.List(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d", len(all))
	}
	if !all[0].Date.After(all[1].Date) || !all[1].Date.After(all[2].Date) {
		t.Fatalf("not ordered by date desc: %v %v %v", all[0].Date, all[1].Date, all[2].Date)
	}

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	recent, err := repo.List(ctx, ListFilter{From: &from})
	if err != nil {
		t.Fatalf("list from: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("from filter returned %d records", len(recent))
	}

	incomplete := false
	open, err := repo.List(ctx, ListFilter{Complete: &incomplete})
	if err != nil {
		t.Fatalf("list incomplete: %v", err)
	}
	if len(open) != 1 || open[0].Date.Year() != 2023 {
		t.Fatalf("complete filter returned %+v", open)
	}
}

func TestDelete(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	inserted, err := repo.Insert(ctx, sample("OP-2024-03-07", time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := repo.Delete(ctx, inserted.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.Delete(ctx, inserted.ID); err != ErrNotFound {
		t.Fatalf("second delete err = %v, want ErrNotFound", err)
	}
	if found, err := repo.FindByOpID(ctx, "OP-2024-03-07"); err != nil || found != nil {
		t.Fatalf("record still findable: %+v, %v", found, err)
	}
}
