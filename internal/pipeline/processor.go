package pipeline

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"github.com/surgidocs/opreport-tracker/internal/blob"
	"github.com/surgidocs/opreport-tracker/internal/entity"
	"github.com/surgidocs/opreport-tracker/internal/extract"
	"github.com/surgidocs/opreport-tracker/internal/metrics"
	"github.com/surgidocs/opreport-tracker/internal/normalize"
	"github.com/surgidocs/opreport-tracker/internal/reconcile"
)

// Submission is one upload batch plus the caller's overrides. OpID,
// Date and PatientID may be empty; the normalizer resolves defaults.
type Submission struct {
	Files     []UploadFile
	OpID      string
	Date      string
	PatientID string
}

// Processor coordinates the stages: aggregate OCR text, extract typed
// fields, normalize into a candidate record, persist the page media,
// reconcile with the store. A nil media store skips the media step.
type Processor struct {
	agg    *Aggregator
	norm   *normalize.Normalizer
	rec    *reconcile.Reconciler
	media  blob.Store
	logger *slog.Logger
}

func NewProcessor(agg *Aggregator, norm *normalize.Normalizer, rec *reconcile.Reconciler, media blob.Store, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{agg: agg, norm: norm, rec: rec, media: media, logger: logger}
}

// Process runs one submission end to end and returns the persisted
// record plus the names of any mandatory fields still missing. Only
// store errors fail a submission; OCR trouble degrades to empty text.
func (p *Processor) Process(ctx context.Context, sub Submission) (*entity.Operation, []string, error) {
	start := time.Now()
	metrics.SubmissionsTotal.Inc()

	corpus := p.agg.Aggregate(ctx, sub.Files)
	p.logger.Info("processor.aggregate.ok",
		"pages", len(sub.Files),
		"failed_pages", corpus.Failures,
		"corpus_bytes", len(corpus.Text),
	)

	fields := extract.All(corpus.Text)

	candidate := p.norm.Build(normalize.Input{
		Fields:    fields,
		OpID:      sub.OpID,
		Date:      sub.Date,
		PatientID: sub.PatientID,
		Media:     corpus.Media,
		RawOCR:    corpus.Raw,
	})

	if err := p.storeMedia(ctx, candidate, sub.Files); err != nil {
		p.logger.Error("processor.media.failed", "op_id", candidate.OpID, "error", err)
		return nil, nil, err
	}

	persisted, missing, err := p.rec.Upsert(ctx, candidate)
	if err != nil {
		p.logger.Error("processor.reconcile.failed", "op_id", candidate.OpID, "error", err)
		return nil, nil, err
	}

	if len(missing) > 0 {
		metrics.IncompleteRecordsTotal.Inc()
	}
	metrics.ProcessingSeconds.Observe(time.Since(start).Seconds())

	p.logger.Info("processor.submission.ok",
		"op_id", persisted.OpID,
		"id", persisted.ID,
		"complete", persisted.Complete,
		"missing", len(missing),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return persisted, missing, nil
}

// storeMedia writes every page under <op-id>/<page>-<name> and records
// the key on the candidate. The business key is known at this point, so
// resubmitting a record overwrites its pages in place.
func (p *Processor) storeMedia(ctx context.Context, candidate *entity.Operation, files []UploadFile) error {
	if p.media == nil {
		return nil
	}
	for i, f := range files {
		key := blob.MediaKey(candidate.OpID, i+1, f.OriginalName)
		if _, err := p.media.Put(ctx, key, bytes.NewReader(f.Data), blob.PutOptions{ContentType: f.ContentType}); err != nil {
			return err
		}
		candidate.Media[i].StoredName = key
	}
	return nil
}
