package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"tesouraria/internal/core"
	"tesouraria/internal/log"
)

// PeriodReader is the read side of the ledger the aggregator needs.
type PeriodReader interface {
	ListConfirmedTransactions(ctx context.Context, period core.Period) ([]core.TransactionView, error)
	ListExpensesInPeriod(ctx context.Context, period core.Period) ([]core.Expense, error)
}

// PeriodRows are the rows a period aggregate was computed from.
type PeriodRows struct {
	Inflows  []core.TransactionView
	Outflows []core.Expense
}

// Aggregator computes monthly inflow, outflow and balance.
//
// The two reads are independent queries, not one snapshot: a confirmation
// landing between them may or may not be counted.
type Aggregator struct {
	store  PeriodReader
	loc    *time.Location
	now    func() time.Time
	logger *log.Logger
}

func NewAggregator(store PeriodReader, loc *time.Location, logger *log.Logger) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Aggregator{
		store:  store,
		loc:    loc,
		now:    time.Now,
		logger: logger.WithComponent(log.ComponentLedger),
	}
}

// Aggregate returns previous + inflow - outflow for the period.
func (a *Aggregator) Aggregate(ctx context.Context, period core.Period, previous core.Money) (core.Summary, error) {
	summary, _, err := a.AggregateWithRows(ctx, period, previous)
	return summary, err
}

// AggregateWithRows also returns the rows, for callers that itemize them.
func (a *Aggregator) AggregateWithRows(ctx context.Context, period core.Period, previous core.Money) (core.Summary, PeriodRows, error) {
	if err := period.Validate(); err != nil {
		return core.Summary{}, PeriodRows{}, err
	}

	rows, err := a.load(ctx, period)
	if err != nil {
		return core.Summary{}, PeriodRows{}, err
	}

	inflows := make([]core.Money, len(rows.Inflows))
	for i, tx := range rows.Inflows {
		inflows[i] = tx.Amount
	}
	outflows := make([]core.Money, len(rows.Outflows))
	for i, e := range rows.Outflows {
		outflows[i] = e.Amount
	}
	summary := core.Summarize(period, previous, inflows, outflows)

	a.logger.DebugContext(ctx, "Period aggregated",
		log.FieldYear, period.Year,
		log.FieldMonth, int(period.Month),
		"inflow", summary.Inflow.String(),
		"outflow", summary.Outflow.String(),
		"balance", summary.Balance.String())

	return summary, rows, nil
}

// CurrentSnapshot aggregates the current calendar month from a zero
// previous balance. The result is the month's net movement, flagged as a
// snapshot so it is never mistaken for a carried balance.
func (a *Aggregator) CurrentSnapshot(ctx context.Context) (core.Summary, error) {
	summary, err := a.Aggregate(ctx, a.CurrentPeriod(), core.Zero)
	if err != nil {
		return core.Summary{}, err
	}
	summary.Snapshot = true
	return summary, nil
}

// CurrentPeriod is the month of now in the ledger time zone.
func (a *Aggregator) CurrentPeriod() core.Period {
	return core.PeriodOf(a.now(), a.loc)
}

func (a *Aggregator) load(ctx context.Context, period core.Period) (PeriodRows, error) {
	var rows PeriodRows
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		txs, err := a.store.ListConfirmedTransactions(gctx, period)
		if err != nil {
			return fmt.Errorf("list confirmed transactions: %w", err)
		}
		rows.Inflows = txs
		return nil
	})
	g.Go(func() error {
		expenses, err := a.store.ListExpensesInPeriod(gctx, period)
		if err != nil {
			return fmt.Errorf("list expenses: %w", err)
		}
		rows.Outflows = expenses
		return nil
	})
	if err := g.Wait(); err != nil {
		return PeriodRows{}, err
	}
	return rows, nil
}
