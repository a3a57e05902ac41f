package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tesouraria/internal/amqp"
	"tesouraria/internal/core"
	"tesouraria/internal/log"
	"tesouraria/internal/storage/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e *amqp.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func newService(t *testing.T, pub EventPublisher) (*LedgerService, *memory.Store) {
	t.Helper()
	store := memory.New(brt)
	svc := NewLedgerService(store, pub, brt, log.Discard())
	svc.now = func() time.Time { return time.Date(2025, 3, 15, 10, 0, 0, 0, brt) }
	return svc, store
}

func TestConfirmTransaction(t *testing.T) {
	pub := &recordingPublisher{}
	svc, store := newService(t, pub)
	changes := 0
	svc.OnChange(func() { changes++ })

	id, _, err := store.InsertTransactionIfAbsent(context.Background(), core.Transaction{
		ExternalID: ptr("pay_1"),
		Amount:     core.NewMoneyFromCents(10000),
		OccurredAt: time.Date(2025, 3, 10, 9, 0, 0, 0, brt),
		Status:     core.StatusPending,
		Origin:     core.OriginElectronic,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	tx, err := svc.ConfirmTransaction(context.Background(), id, ConfirmRequest{Category: "Dizimo"})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if tx.Status != core.StatusConfirmed || *tx.Category != core.CategoryTithe {
		t.Fatalf("unexpected transaction %+v", tx)
	}
	if changes != 1 {
		t.Fatalf("expected one change notification, got %d", changes)
	}
	if len(pub.events) != 1 || pub.events[0].Type != amqp.EventTransactionConfirmed {
		t.Fatalf("expected a confirmation event, got %+v", pub.events)
	}

	_, err = svc.ConfirmTransaction(context.Background(), id, ConfirmRequest{Category: "oferta"})
	if !errors.Is(err, core.ErrAlreadyConfirmed) {
		t.Fatalf("expected ErrAlreadyConfirmed, got %v", err)
	}
	if _, err := svc.ConfirmTransaction(context.Background(), id, ConfirmRequest{Category: "gift"}); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.ConfirmTransaction(context.Background(), 999, ConfirmRequest{Category: "tithe"}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if changes != 1 {
		t.Fatalf("failed confirmations must not notify, got %d", changes)
	}
}

func TestConfirmSurvivesPublishFailure(t *testing.T) {
	svc, store := newService(t, &recordingPublisher{err: errors.New("broker down")})
	id, _, _ := store.InsertTransactionIfAbsent(context.Background(), core.Transaction{
		ExternalID: ptr("pay_1"),
		Amount:     core.NewMoneyFromCents(10000),
		OccurredAt: time.Date(2025, 3, 10, 9, 0, 0, 0, brt),
		Status:     core.StatusPending,
		Origin:     core.OriginElectronic,
	})
	if _, err := svc.ConfirmTransaction(context.Background(), id, ConfirmRequest{Category: "tithe"}); err != nil {
		t.Fatalf("confirm must not fail on publish error: %v", err)
	}
}

func TestRecordManualTransaction(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	tx, err := svc.RecordManualTransaction(ctx, ManualTransactionRequest{
		PayerName: "Oferta do culto",
		Amount:    ptr(core.NewMoneyFromCents(15050)),
		Category:  "offering",
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if tx.Origin != core.OriginManual || tx.Status != core.StatusConfirmed || tx.ExternalID != nil {
		t.Fatalf("unexpected transaction %+v", tx)
	}
	if !tx.OccurredAt.Equal(time.Date(2025, 3, 15, 10, 0, 0, 0, brt)) {
		t.Fatalf("default timestamp should be now, got %v", tx.OccurredAt)
	}

	dated, err := svc.RecordManualTransaction(ctx, ManualTransactionRequest{
		PayerName:  "Caixa",
		Amount:     ptr(core.NewMoneyFromCents(100)),
		Category:   "tithe",
		OccurredAt: "2025-02-01",
	})
	if err != nil {
		t.Fatalf("record dated: %v", err)
	}
	if got := dated.OccurredAt.In(brt); got.Day() != 1 || got.Month() != time.February {
		t.Fatalf("date should be local midnight, got %v", got)
	}

	bad := []ManualTransactionRequest{
		{PayerName: "x", Category: "tithe"},
		{PayerName: "x", Amount: ptr(core.Zero), Category: "tithe"},
		{PayerName: "x", Amount: ptr(core.NewMoneyFromCents(1)), Category: ""},
		{PayerName: "", Amount: ptr(core.NewMoneyFromCents(1)), Category: "tithe"},
		{PayerName: "x", Amount: ptr(core.NewMoneyFromCents(1)), Category: "tithe", OccurredAt: "yesterday"},
	}
	for i, req := range bad {
		if _, err := svc.RecordManualTransaction(ctx, req); !errors.Is(err, core.ErrValidation) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestMembersAndExpenses(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	m, err := svc.CreateMember(ctx, CreateMemberRequest{Code: "M01", FullName: "Maria Souza", BirthDate: "1990-02-03"})
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	if _, err := svc.CreateMember(ctx, CreateMemberRequest{Code: "M01", FullName: "Outra"}); !errors.Is(err, core.ErrMemberCodeTaken) {
		t.Fatalf("expected ErrMemberCodeTaken, got %v", err)
	}
	if _, err := svc.CreateMember(ctx, CreateMemberRequest{Code: "M02", FullName: "Ana", BirthDate: "03/02/1990"}); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error for bad birth date, got %v", err)
	}
	if err := svc.DeleteMember(ctx, m.ID); err != nil {
		t.Fatalf("delete member: %v", err)
	}
	if err := svc.DeleteMember(ctx, m.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	e, err := svc.CreateExpense(ctx, CreateExpenseRequest{Description: "Energia", Category: "Contas", Amount: ptr(core.NewMoneyFromCents(12000)), Date: "2025-03-05"})
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}
	if _, err := svc.CreateExpense(ctx, CreateExpenseRequest{Description: "Energia", Amount: ptr(core.NewMoneyFromCents(1)), Date: ""}); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := svc.DeleteExpense(ctx, e.ID); err != nil {
		t.Fatalf("delete expense: %v", err)
	}

	if _, err := svc.ListTransactions(ctx, "archived", 0); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error for unknown status, got %v", err)
	}
}
