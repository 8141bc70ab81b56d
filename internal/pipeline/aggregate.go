// Package pipeline turns an uploaded batch of report pages into one
// persisted operation record.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/surgidocs/opreport-tracker/internal/entity"
	"github.com/surgidocs/opreport-tracker/internal/metrics"
	"github.com/surgidocs/opreport-tracker/internal/ocr"
)

// UploadFile is one page of a submission as received from the caller.
type UploadFile struct {
	OriginalName string
	ContentType  string
	Data         []byte
}

// Recognizer is the OCR collaborator boundary, satisfied by ocr.Client.
type Recognizer interface {
	Recognize(ctx context.Context, filename, contentType string, data []byte) (ocr.Result, error)
}

// Corpus is the aggregation result for one submission. Text holds the
// page texts joined in upload order; a failed page contributes an empty
// string and still occupies its slot, so page order is stable. Raw is
// keyed page-N; media stored names are filled in once the business key
// is known.
type Corpus struct {
	Text     string
	Media    []entity.MediaFile
	Raw      map[string]json.RawMessage
	Failures int
}

type Aggregator struct {
	rec     Recognizer
	logger  *slog.Logger
	workers int
	timeout time.Duration
}

type AggregatorOption func(*Aggregator)

func WithWorkers(n int) AggregatorOption {
	return func(a *Aggregator) {
		if n > 0 {
			a.workers = n
		}
	}
}

func WithPageTimeout(d time.Duration) AggregatorOption {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

func NewAggregator(rec Recognizer, logger *slog.Logger, opts ...AggregatorOption) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Aggregator{
		rec:     rec,
		logger:  logger,
		workers: 4,
		timeout: 30 * time.Second,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Aggregate runs OCR over every page with bounded concurrency and
// builds the submission corpus. OCR failures never fail the batch:
// the page is logged, counted, and contributes empty text.
func (a *Aggregator) Aggregate(ctx context.Context, files []UploadFile) Corpus {
	texts := make([]string, len(files))
	raws := make([]json.RawMessage, len(files))

	sem := make(chan struct{}, a.workers)
	var wg sync.WaitGroup
	for i, f := range files {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, f UploadFile) {
			defer wg.Done()
			defer func() { <-sem }()

			pageCtx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()

			res, err := a.rec.Recognize(pageCtx, f.OriginalName, f.ContentType, f.Data)
			if err != nil {
				a.logger.Warn("pipeline.ocr.page_failed",
					"file", f.OriginalName, "page", i+1, "error", err)
				metrics.OCRFailuresTotal.Inc()
				return
			}
			texts[i] = res.Text
			raws[i] = res.Raw
		}(i, f)
	}
	wg.Wait()

	c := Corpus{
		Media: make([]entity.MediaFile, 0, len(files)),
		Raw:   make(map[string]json.RawMessage, len(files)),
	}
	for i, f := range files {
		c.Media = append(c.Media, entity.MediaFile{
			OriginalName: f.OriginalName,
			Page:         i + 1,
		})
		if raws[i] != nil {
			c.Raw[fmt.Sprintf("page-%d", i+1)] = raws[i]
		} else {
			c.Failures++
		}
	}
	c.Text = strings.Join(texts, "\n")
	return c
}
