// Package stats aggregates the record store for the dashboard.
package stats

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/surgidocs/opreport-tracker/internal/repository"
)

// Bucket is one aggregation row. Buckets are sorted by descending
// count, ties broken by key, so output is stable.
type Bucket struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Summary is the dashboard aggregate over the filtered records.
type Summary struct {
	Total          int      `json:"total"`
	Complete       int      `json:"complete"`
	AvgDurationMin float64  `json:"avg_duration_min"`
	ByYear         []Bucket `json:"by_year"`
	ByDiagnosis    []Bucket `json:"by_diagnosis"`
	ByICD          []Bucket `json:"by_icd"`
}

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

// Compute aggregates in memory over the filtered list. Records with a
// zero duration are excluded from the average; they mean "not
// documented", not "instantaneous".
func (s *Service) Compute(ctx context.Context, f repository.ListFilter) (Summary, error) {
	start := time.Now()
	recs, err := s.repo.List(ctx, f)
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{Total: len(recs)}
	years := make(map[string]int)
	diagnoses := make(map[string]int)
	icds := make(map[string]int)

	var durationSum, durationN int
	for _, op := range recs {
		if op.Complete {
			sum.Complete++
		}
		if op.DurationMin > 0 {
			durationSum += op.DurationMin
			durationN++
		}
		if !op.Date.IsZero() {
			years[strconv.Itoa(op.Date.Year())]++
		}
		if op.Diagnosis != "" {
			diagnoses[op.Diagnosis]++
		}
		for _, c := range op.ICDCodes {
			icds[c]++
		}
	}
	if durationN > 0 {
		sum.AvgDurationMin = float64(durationSum) / float64(durationN)
	}
	sum.ByYear = buckets(years)
	sum.ByDiagnosis = buckets(diagnoses)
	sum.ByICD = buckets(icds)

	s.logger.Debug("stats.computed", "records", len(recs), "elapsed_ms", time.Since(start).Milliseconds())
	return sum, nil
}

func buckets(m map[string]int) []Bucket {
	out := make([]Bucket, 0, len(m))
	for k, n := range m {
		out = append(out, Bucket{Key: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}
