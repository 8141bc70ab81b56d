// opreport-batch processes a directory of scanned report pages as one
// submission against a local record store, without the HTTP server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/surgidocs/opreport-tracker/constants"
	"github.com/surgidocs/opreport-tracker/internal/blob"
	"github.com/surgidocs/opreport-tracker/internal/common"
	"github.com/surgidocs/opreport-tracker/internal/export"
	"github.com/surgidocs/opreport-tracker/internal/normalize"
	"github.com/surgidocs/opreport-tracker/internal/ocr"
	"github.com/surgidocs/opreport-tracker/internal/pipeline"
	"github.com/surgidocs/opreport-tracker/internal/reconcile"
	"github.com/surgidocs/opreport-tracker/internal/repository"
)

func main() {
	var (
		dir       string
		opID      string
		date      string
		patientID string
		csvOut    string
	)

	rootCmd := &cobra.Command{
		Use:   "opreport-batch",
		Short: "Submit a directory of report pages to the record store",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}))
			slog.SetDefault(logger)
			return run(cmd.Context(), logger, dir, opID, date, patientID, csvOut)
		},
	}
	rootCmd.Flags().StringVar(&dir, "dir", "", "directory with page scans (required)")
	rootCmd.Flags().StringVar(&opID, "op-id", "", "explicit business key (OP-YYYY-MM-DD)")
	rootCmd.Flags().StringVar(&date, "date", "", "explicit procedure date (YYYY-MM-DD)")
	rootCmd.Flags().StringVar(&patientID, "patient-id", "", "raw patient identifier, pseudonymized before storage")
	rootCmd.Flags().StringVar(&csvOut, "export-csv", "", "write a CSV export of all records after processing")
	_ = rootCmd.MarkFlagRequired("dir")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, dir, opID, date, patientID, csvOut string) error {
	if opID != "" {
		v := common.NewValidator()
		v.Field("op-id", opID, common.OpID)
		if v.HasErrors() {
			return fmt.Errorf("%s", v.ErrorMessage())
		}
	}

	cfg := common.LoadConfig()

	files, err := collectPages(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no supported page files in %s", dir)
	}
	if len(files) > constants.MaxUploadFiles {
		return fmt.Errorf("at most %d pages per submission, found %d", constants.MaxUploadFiles, len(files))
	}

	repo, db, err := repository.NewSQLiteRepository(cfg.Database.SQLitePath, logger)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	media, err := blob.NewFilesystem(cfg.Blob.FSRoot)
	if err != nil {
		return err
	}

	rec := reconcile.New(repo, logger)
	proc := pipeline.NewProcessor(
		pipeline.NewAggregator(
			ocr.NewClient(cfg.OCR.BaseURL, &http.Client{Timeout: cfg.OCR.Timeout}, logger),
			logger,
			pipeline.WithWorkers(cfg.OCR.MaxConcurrency),
			pipeline.WithPageTimeout(cfg.OCR.Timeout),
		),
		normalize.New(nil),
		rec,
		media,
		logger,
	)

	persisted, missing, err := proc.Process(ctx, pipeline.Submission{
		Files:     files,
		OpID:      opID,
		Date:      date,
		PatientID: patientID,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Record %s persisted (%d pages)\n", persisted.OpID, len(persisted.Media))
	if len(missing) > 0 {
		fmt.Printf("Missing mandatory fields: %s\n", strings.Join(missing, ", "))
	} else {
		fmt.Println("Record is complete.")
	}

	if csvOut != "" {
		data, err := export.NewService(repo, logger).ExportCSV(ctx, repository.ListFilter{})
		if err != nil {
			return err
		}
		if err := os.WriteFile(csvOut, data, 0o644); err != nil {
			return err
		}
		fmt.Printf("Export written to %s\n", csvOut)
	}
	return nil
}

// collectPages gathers supported scan files in lexical order; the
// order defines page numbers.
func collectPages(dir string) ([]pipeline.UploadFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := constants.NormalizeExt(filepath.Ext(e.Name()))
		if _, ok := constants.AllowedExtensions[ext]; ok {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var files []pipeline.UploadFile
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		files = append(files, pipeline.UploadFile{
			OriginalName: name,
			Data:         data,
		})
	}
	return files, nil
}
