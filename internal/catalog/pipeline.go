package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"moviescout/internal/domain"
	"moviescout/internal/metrics"
)

// Run searches every term, deduplicates the hits and resolves each unique hit to a
// detail record. An empty result is reported through Report.Empty, not as an error.
func (s *Service) Run(ctx context.Context, terms []string, noCache bool) (domain.RunReport, error) {
	return s.run(ctx, terms, noCache, 0)
}

func (s *Service) run(ctx context.Context, terms []string, noCache bool, generation uint64) (domain.RunReport, error) {
	terms = normalizeTerms(terms)
	if len(terms) == 0 {
		return domain.RunReport{}, ErrNoTerms
	}

	report := domain.RunReport{
		RunID:      s.newRunID(),
		Generation: generation,
		Terms:      terms,
		StartedAt:  s.now(),
	}

	ctx, span := s.tracer.Start(ctx, "catalog.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("run.id", report.RunID),
		attribute.Int("run.terms", len(terms)),
		attribute.Int64("run.generation", int64(generation)),
	)

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	searchCtx, searchSpan := s.tracer.Start(runCtx, "catalog.search")
	report.Searches, report.Unique = s.searchTerms(searchCtx, terms, noCache)
	report.RawHits = len(report.Unique)
	failedTerms := countFailed(report.Searches)
	searchSpan.SetAttributes(attribute.Int("hits.raw", report.RawHits), attribute.Int("terms.failed", failedTerms))
	searchSpan.End()
	s.emit(ctx, domain.StageEvent{RunID: report.RunID, Stage: StageSearchSettled, Count: report.RawHits, Failed: failedTerms})

	if err := ctx.Err(); err != nil {
		return s.abort(span, report, err)
	}

	report.Unique = Dedupe(report.Unique)
	s.emit(ctx, domain.StageEvent{RunID: report.RunID, Stage: StageDedupeDone, Count: len(report.Unique)})

	if len(report.Unique) == 0 {
		return s.finishEmpty(ctx, span, report, domain.EmptyReasonNoHits), nil
	}

	detailCtx, detailSpan := s.tracer.Start(runCtx, "catalog.resolve")
	report.Details, report.Records = s.resolveDetails(detailCtx, report.Unique, noCache)
	failedDetails := countFailed(report.Details)
	detailSpan.SetAttributes(attribute.Int("records.resolved", len(report.Records)), attribute.Int("records.failed", failedDetails))
	detailSpan.End()
	s.emit(ctx, domain.StageEvent{RunID: report.RunID, Stage: StageDetailSettled, Count: len(report.Records), Failed: failedDetails})

	if err := ctx.Err(); err != nil {
		return s.abort(span, report, err)
	}

	if len(report.Records) == 0 {
		return s.finishEmpty(ctx, span, report, domain.EmptyReasonNoDetails), nil
	}

	report.Elapsed = s.now().Sub(report.StartedAt)
	metrics.PipelineRunsTotal.WithLabelValues("ok").Inc()
	metrics.ResolvedRecords.Observe(float64(len(report.Records)))
	s.emit(ctx, domain.StageEvent{RunID: report.RunID, Stage: StageRunDone, Count: len(report.Records)})
	slog.Info("catalog run completed",
		slog.String("runId", report.RunID),
		slog.Int("terms", len(terms)),
		slog.Int("rawHits", report.RawHits),
		slog.Int("unique", len(report.Unique)),
		slog.Int("resolved", len(report.Records)),
		slog.Int64("elapsedMs", report.Elapsed.Milliseconds()),
	)
	return report, nil
}

func (s *Service) finishEmpty(ctx context.Context, span trace.Span, report domain.RunReport, reason domain.EmptyReason) domain.RunReport {
	report.Empty = true
	report.EmptyReason = reason
	report.Records = []domain.DetailRecord{}
	report.Elapsed = s.now().Sub(report.StartedAt)
	span.SetAttributes(attribute.String("run.empty", string(reason)))

	metrics.PipelineRunsTotal.WithLabelValues("empty").Inc()
	metrics.ResolvedRecords.Observe(0)
	s.emit(ctx, domain.StageEvent{RunID: report.RunID, Stage: StageRunEmpty, Message: string(reason)})
	s.emit(ctx, domain.StageEvent{RunID: report.RunID, Stage: StageRunDone})
	slog.Info("catalog run produced no records",
		slog.String("runId", report.RunID),
		slog.String("reason", string(reason)),
		slog.Int("terms", len(report.Terms)),
	)
	return report
}

func (s *Service) abort(span trace.Span, report domain.RunReport, err error) (domain.RunReport, error) {
	report.Elapsed = s.now().Sub(report.StartedAt)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	metrics.PipelineRunsTotal.WithLabelValues("cancelled").Inc()
	return report, fmt.Errorf("catalog run %s: %w", report.RunID, err)
}

// Search runs the pipeline for request.Terms and builds the requested view.
func (s *Service) Search(ctx context.Context, request domain.SearchRequest) (domain.SearchResponse, error) {
	report, err := s.Run(ctx, request.Terms, request.NoCache)
	if err != nil {
		return domain.SearchResponse{}, err
	}
	return domain.SearchResponse{
		Run:  report.Summary(),
		View: BuildView(report.Records, request.Criteria, request.SortKey),
	}, nil
}

func countFailed[T any](outcomes []domain.Outcome[T]) int {
	failed := 0
	for _, outcome := range outcomes {
		if !outcome.OK() {
			failed++
		}
	}
	return failed
}
