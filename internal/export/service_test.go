package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/surgidocs/opreport-tracker/internal/entity"
	"github.com/surgidocs/opreport-tracker/internal/repository"
)

func seededRepo(t *testing.T) repository.OperationRepository {
	t.Helper()
	repo, db, err := repository.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	loss := 50
	pathology := "Entzündlich verändert"
	ops := []*entity.Operation{
		{
			OpID:           "OP-2024-03-07",
			Date:           time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC),
			Diagnosis:      "Akute Appendizitis",
			ICDCodes:       []string{"K35.8"},
			AnesthesiaType: "ITN",
			DurationMin:    95,
			BloodLossML:    &loss,
			Team:           []string{"Dr. Müller M.", "Prof. Weber K."},
			Pathology:      &pathology,
			Complete:       true,
		},
		{
			OpID:      "OP-2023-05-01",
			Date:      time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC),
			Diagnosis: "Cholezystolithiasis",
			ICDCodes:  []string{"K80.2"},
		},
	}
	for _, op := range ops {
		inserted, err := repo.Insert(context.Background(), op)
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
		if op.Complete {
			if _, err := repo.SetComplete(context.Background(), inserted.ID, true); err != nil {
				t.Fatalf("set complete: %v", err)
			}
		}
	}
	return repo
}

func TestExportCSV(t *testing.T) {
	svc := NewService(seededRepo(t), nil)

	data, err := svc.ExportCSV(context.Background(), repository.ListFilter{})
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d", len(rows))
	}
	if rows[0][0] != "OP-ID" || rows[0][9] != "Vollständig" {
		t.Fatalf("header = %v", rows[0])
	}
	// Newest first.
	if rows[1][0] != "OP-2024-03-07" {
		t.Fatalf("first row = %v", rows[1])
	}
	if rows[1][3] != "K35.8" || rows[1][5] != "95" || rows[1][6] != "50" || rows[1][9] != "ja" {
		t.Fatalf("row values = %v", rows[1])
	}
	// Undocumented blood loss exports as empty, not zero.
	if rows[2][6] != "" || rows[2][9] != "nein" {
		t.Fatalf("row values = %v", rows[2])
	}
}

func TestExportCSVFiltered(t *testing.T) {
	svc := NewService(seededRepo(t), nil)

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	data, err := svc.ExportCSV(context.Background(), repository.ListFilter{From: &from})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 2 || rows[1][0] != "OP-2024-03-07" {
		t.Fatalf("rows = %v", rows)
	}
}

func TestExportXLSX(t *testing.T) {
	svc := NewService(seededRepo(t), nil)

	data, err := svc.ExportXLSX(context.Background(), repository.ListFilter{})
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	wb, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer func() { _ = wb.Close() }()

	const sheet = "Operationen"
	header, err := wb.GetCellValue(sheet, "A1")
	if err != nil || header != "OP-ID" {
		t.Fatalf("A1 = %q, err = %v", header, err)
	}
	opID, _ := wb.GetCellValue(sheet, "A2")
	if opID != "OP-2024-03-07" {
		t.Fatalf("A2 = %q", opID)
	}
	team, _ := wb.GetCellValue(sheet, "H2")
	if team != "Dr. Müller M., Prof. Weber K." {
		t.Fatalf("H2 = %q", team)
	}
}
