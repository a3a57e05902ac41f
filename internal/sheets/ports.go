package sheets

import (
	"context"
	"fmt"
	"time"

	"tesouraria/internal/core"
	"tesouraria/internal/statement"
)

// Ports for outbound adapters.
type (
	// StatementWriter publishes a compiled statement as its own tab.
	StatementWriter interface {
		ExportStatement(ctx context.Context, doc statement.Document) (ref string, err error)
	}

	// JournalWriter appends one row per ledger event to a running log.
	JournalWriter interface {
		AppendJournal(ctx context.Context, entry JournalEntry) (ref string, err error)
	}
)

// JournalEntry is one ledger event as mirrored to the spreadsheet journal.
type JournalEntry struct {
	EventID       string
	Event         string
	At            time.Time
	TransactionID int64
	Payer         string
	Category      core.Category
	Amount        core.Money
}

// Values is the row written for the entry, dates in loc.
func (e JournalEntry) Values(loc *time.Location) []string {
	if loc == nil {
		loc = time.UTC
	}
	category := ""
	if e.Category != "" {
		category = e.Category.Label()
	}
	return []string{
		e.At.In(loc).Format("02/01/2006 15:04"),
		e.Event,
		fmt.Sprint(e.TransactionID),
		e.Payer,
		category,
		e.Amount.String(),
		e.EventID,
	}
}

// JournalHeader names the journal columns.
var JournalHeader = []string{"Data", "Evento", "Transacao", "Pagador", "Tipo", "Valor", "ID"}

// TabName is the tab a statement for period is written to.
func TabName(p core.Period) string {
	return fmt.Sprintf("Relatorio %s", p)
}
