// Package export renders operation records as CSV or XLSX downloads.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/surgidocs/opreport-tracker/internal/entity"
	"github.com/surgidocs/opreport-tracker/internal/repository"
)

// Service is a tiny façade over the repository that produces export
// bytes. Both formats share one column layout.
type Service struct {
	repo   repository.OperationRepository
	logger *slog.Logger
}

func NewService(repo repository.OperationRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

var headers = []string{
	"OP-ID",
	"Datum",
	"Diagnose",
	"ICD-Codes",
	"Anästhesie",
	"Dauer (min)",
	"Blutverlust (ml)",
	"Team",
	"Pathologie",
	"Vollständig",
}

// ExportCSV returns the filtered records as UTF-8 CSV.
func (s *Service) ExportCSV(ctx context.Context, f repository.ListFilter) ([]byte, error) {
	start := time.Now()
	recs, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("query operations: %w", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(headers); err != nil {
		return nil, err
	}
	for _, op := range recs {
		if err := w.Write(record(op)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	s.logger.Info("export.csv.ok", "rows", len(recs), "elapsed_ms", time.Since(start).Milliseconds())
	return buf.Bytes(), nil
}

// ExportXLSX returns the filtered records as an XLSX workbook.
func (s *Service) ExportXLSX(ctx context.Context, f repository.ListFilter) ([]byte, error) {
	start := time.Now()
	recs, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("query operations: %w", err)
	}

	wb := excelize.NewFile()
	const sheet = "Operationen"
	index, err := wb.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	wb.SetActiveSheet(index)
	if err := wb.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = wb.SetCellValue(sheet, cell, h)
	}
	for rowIdx, op := range recs {
		for col, v := range record(op) {
			cell, _ := excelize.CoordinatesToCellName(col+1, rowIdx+2)
			_ = wb.SetCellValue(sheet, cell, v)
		}
	}

	_ = wb.SetColWidth(sheet, "A", "A", 16) // op id
	_ = wb.SetColWidth(sheet, "B", "B", 12) // date
	_ = wb.SetColWidth(sheet, "C", "C", 40) // diagnosis
	_ = wb.SetColWidth(sheet, "D", "E", 16) // icd, anesthesia
	_ = wb.SetColWidth(sheet, "H", "H", 36) // team
	_ = wb.SetColWidth(sheet, "I", "I", 48) // pathology

	buf, err := wb.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok", "rows", len(recs), "elapsed_ms", time.Since(start).Milliseconds())
	return buf.Bytes(), nil
}

func record(op *entity.Operation) []string {
	date := ""
	if !op.Date.IsZero() {
		date = op.Date.Format("2006-01-02")
	}
	bloodLoss := ""
	if op.BloodLossML != nil {
		bloodLoss = strconv.Itoa(*op.BloodLossML)
	}
	pathology := ""
	if op.Pathology != nil {
		pathology = truncate(*op.Pathology, 140)
	}
	complete := "nein"
	if op.Complete {
		complete = "ja"
	}
	return []string{
		op.OpID,
		date,
		op.Diagnosis,
		strings.Join(op.ICDCodes, ", "),
		op.AnesthesiaType,
		strconv.Itoa(op.DurationMin),
		bloodLoss,
		strings.Join(op.Team, ", "),
		pathology,
		complete,
	}
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
