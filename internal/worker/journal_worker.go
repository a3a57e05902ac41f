package worker

import (
	"context"
	"fmt"

	"tesouraria/internal/amqp"
	"tesouraria/internal/log"
	"tesouraria/internal/sheets"
)

// JournalWorker mirrors ledger events from the bus into the spreadsheet
// journal. The ledger is the source of truth; the journal is a read-only
// copy for the treasury team.
type JournalWorker struct {
	journal sheets.JournalWriter
	logger  *log.Logger
}

func NewJournalWorker(journal sheets.JournalWriter, logger *log.Logger) *JournalWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &JournalWorker{
		journal: journal,
		logger:  logger.WithComponent(log.ComponentSheets),
	}
}

// HandleEvent appends one journal row for a ledger event. Unknown event
// types are acknowledged and skipped.
func (w *JournalWorker) HandleEvent(ctx context.Context, event *amqp.Event) error {
	entry, ok, err := journalEntry(event)
	if err != nil {
		// A payload that does not decode will never decode; retrying is pointless.
		w.logger.ErrorContext(ctx, "Dropping undecodable event",
			"event_id", event.ID,
			"type", event.Type,
			log.FieldError, err)
		return nil
	}
	if !ok {
		w.logger.DebugContext(ctx, "Skipping event", "event_id", event.ID, "type", event.Type)
		return nil
	}

	ref, err := w.journal.AppendJournal(ctx, entry)
	if err != nil {
		return fmt.Errorf("append journal: %w", err)
	}

	w.logger.InfoContext(ctx, "Event mirrored to journal",
		"event_id", event.ID,
		"type", event.Type,
		log.FieldTransactionID, entry.TransactionID,
		"sheets_ref", ref)
	return nil
}

func journalEntry(event *amqp.Event) (sheets.JournalEntry, bool, error) {
	entry := sheets.JournalEntry{EventID: event.ID, Event: event.Type, At: event.OccurredAt}
	switch event.Type {
	case amqp.EventTransactionReceived:
		var p amqp.TransactionReceived
		if err := event.Decode(&p); err != nil {
			return entry, false, err
		}
		entry.TransactionID = p.TransactionID
		entry.Payer = p.PayerName
		entry.Amount = p.Amount
	case amqp.EventTransactionConfirmed:
		var p amqp.TransactionConfirmed
		if err := event.Decode(&p); err != nil {
			return entry, false, err
		}
		entry.TransactionID = p.TransactionID
		entry.Category = p.Category
		entry.Amount = p.Amount
	default:
		return entry, false, nil
	}
	return entry, true, nil
}
