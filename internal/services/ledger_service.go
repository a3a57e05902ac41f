package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tesouraria/internal/amqp"
	"tesouraria/internal/core"
	"tesouraria/internal/log"
	"tesouraria/internal/storage"
)

// EventPublisher sends ledger events. The AMQP client implements it.
type EventPublisher interface {
	Publish(ctx context.Context, event *amqp.Event) error
}

// LedgerService runs operator actions against the store and announces
// confirmations on the event bus.
type LedgerService struct {
	store     storage.Ledger
	publisher EventPublisher
	logger    *log.Logger
	loc       *time.Location
	now       func() time.Time
	onChange  []func()
}

func NewLedgerService(store storage.Ledger, publisher EventPublisher, loc *time.Location, logger *log.Logger) *LedgerService {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &LedgerService{
		store:     store,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentLedger),
		loc:       loc,
		now:       time.Now,
	}
}

// OnChange registers fn to run after every successful write.
func (s *LedgerService) OnChange(fn func()) {
	s.onChange = append(s.onChange, fn)
}

func (s *LedgerService) changed() {
	for _, fn := range s.onChange {
		fn()
	}
}

func (s *LedgerService) CreateMember(ctx context.Context, req CreateMemberRequest) (core.Member, error) {
	m, err := req.toMember()
	if err != nil {
		return core.Member{}, err
	}
	created, err := s.store.CreateMember(ctx, m)
	if err != nil {
		return core.Member{}, fmt.Errorf("create member: %w", err)
	}
	return created, nil
}

func (s *LedgerService) ListMembers(ctx context.Context) ([]core.Member, error) {
	return s.store.ListMembers(ctx)
}

func (s *LedgerService) DeleteMember(ctx context.Context, id int64) error {
	if err := s.store.DeleteMember(ctx, id); err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	s.changed()
	return nil
}

// RecordManualTransaction stores an operator-entered inflow, confirmed at
// creation.
func (s *LedgerService) RecordManualTransaction(ctx context.Context, req ManualTransactionRequest) (core.TransactionView, error) {
	tx, err := req.toTransaction(s.now(), s.loc)
	if err != nil {
		return core.TransactionView{}, err
	}
	id, err := s.store.CreateManualTransaction(ctx, tx)
	if err != nil {
		return core.TransactionView{}, fmt.Errorf("record manual transaction: %w", err)
	}
	s.changed()
	s.logger.InfoContext(ctx, "Manual transaction recorded",
		log.FieldTransactionID, id,
		log.FieldAmount, tx.Amount.String(),
		"category", string(*tx.Category))
	return s.store.GetTransaction(ctx, id)
}

// ConfirmTransaction classifies a pending transaction. Confirming twice is
// an error (core.ErrAlreadyConfirmed).
func (s *LedgerService) ConfirmTransaction(ctx context.Context, id int64, req ConfirmRequest) (core.TransactionView, error) {
	category, err := core.ParseCategory(req.Category)
	if err != nil {
		return core.TransactionView{}, core.Invalid("type", err)
	}
	if err := s.store.ConfirmTransaction(ctx, id, category); err != nil {
		if !errors.Is(err, core.ErrNotFound) && !errors.Is(err, core.ErrAlreadyConfirmed) {
			s.logger.ErrorContext(ctx, "Confirm transaction failed", log.FieldTransactionID, id, log.FieldError, err)
		}
		return core.TransactionView{}, err
	}
	s.changed()

	tx, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return core.TransactionView{}, err
	}
	s.logger.InfoContext(ctx, "Transaction confirmed",
		log.FieldTransactionID, id,
		"category", string(category))

	if err := s.publish(ctx, amqp.EventTransactionConfirmed, amqp.TransactionConfirmed{
		TransactionID: id,
		Category:      category,
		Amount:        tx.Amount,
	}); err != nil {
		// Don't fail the request - the confirmation is stored.
		s.logger.ErrorContext(ctx, "Failed to publish confirmation event", log.FieldTransactionID, id, log.FieldError, err)
	}
	return tx, nil
}

// ListTransactions lists transactions newest first, optionally by status.
func (s *LedgerService) ListTransactions(ctx context.Context, status string, limit int) ([]core.TransactionView, error) {
	filter := storage.TransactionFilter{Limit: limit}
	switch core.Status(status) {
	case "":
	case core.StatusPending, core.StatusConfirmed:
		filter.Status = core.Status(status)
	default:
		return nil, &core.ValidationError{Field: "status", Reason: "expected pending or confirmed"}
	}
	return s.store.ListTransactions(ctx, filter)
}

func (s *LedgerService) CreateExpense(ctx context.Context, req CreateExpenseRequest) (core.Expense, error) {
	e, err := req.toExpense()
	if err != nil {
		return core.Expense{}, err
	}
	created, err := s.store.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	s.changed()
	return created, nil
}

func (s *LedgerService) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	return s.store.ListExpenses(ctx)
}

func (s *LedgerService) DeleteExpense(ctx context.Context, id int64) error {
	if err := s.store.DeleteExpense(ctx, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	s.changed()
	return nil
}

func (s *LedgerService) publish(ctx context.Context, eventType string, payload any) error {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP client not available, skipping event", "type", eventType)
		return nil
	}
	event, err := amqp.NewEvent(eventType, payload)
	if err != nil {
		return err
	}
	return s.publisher.Publish(ctx, event)
}
