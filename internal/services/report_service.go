package services

import (
	"context"
	"fmt"

	"tesouraria/internal/log"
	"tesouraria/internal/statement"
)

// ReportService builds period statements: the aggregator reads, the
// compiler lays out.
type ReportService struct {
	aggregator *Aggregator
	compiler   *statement.Compiler
	logger     *log.Logger
}

func NewReportService(aggregator *Aggregator, compiler *statement.Compiler, logger *log.Logger) *ReportService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &ReportService{
		aggregator: aggregator,
		compiler:   compiler,
		logger:     logger.WithComponent(log.ComponentReport),
	}
}

// Compile validates the request and returns the statement document.
func (s *ReportService) Compile(ctx context.Context, req ReportRequest) (statement.Document, error) {
	period, previous, err := req.period()
	if err != nil {
		return statement.Document{}, err
	}

	summary, rows, err := s.aggregator.AggregateWithRows(ctx, period, previous)
	if err != nil {
		return statement.Document{}, fmt.Errorf("aggregate %s: %w", period, err)
	}

	doc := s.compiler.Compile(period, previous, rows.Inflows, rows.Outflows)
	if !doc.Summary.Balance.Equal(summary.Balance) {
		// Both sides use core.Summarize over the same rows.
		return statement.Document{}, fmt.Errorf("statement balance %s does not match aggregate %s", doc.Summary.Balance, summary.Balance)
	}

	fields := log.NewFields().WithPeriod(period.Year, int(period.Month))
	fields["inflows"] = len(rows.Inflows)
	fields["outflows"] = len(rows.Outflows)
	fields["balance"] = summary.Balance.String()
	s.logger.InfoContext(ctx, "Statement compiled", fields.ToSlice()...)

	return doc, nil
}
