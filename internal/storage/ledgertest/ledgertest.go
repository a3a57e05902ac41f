// Package ledgertest holds the behaviour every storage.Ledger backend must
// share. Backends run it from their own tests with a factory.
package ledgertest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"tesouraria/internal/core"
	"tesouraria/internal/storage"
)

// Factory returns an empty ledger whose period filters use loc.
type Factory func(t *testing.T, loc *time.Location) storage.Ledger

// Location is the zone the suite runs in; it is not UTC so month
// boundaries are exercised.
var Location = time.FixedZone("BRT", -3*3600)

func Run(t *testing.T, newLedger Factory) {
	t.Helper()
	tests := []struct {
		name string
		fn   func(t *testing.T, l storage.Ledger)
	}{
		{"InsertIfAbsentIsIdempotent", testInsertIfAbsentIsIdempotent},
		{"ConcurrentDuplicateDeliveries", testConcurrentDuplicateDeliveries},
		{"ConfirmIsOneWay", testConfirmIsOneWay},
		{"ConfirmUnknown", testConfirmUnknown},
		{"ListConfirmedTransactionsInPeriod", testListConfirmedTransactionsInPeriod},
		{"ManualTransactions", testManualTransactions},
		{"UnknownMemberIsNotFound", testUnknownMemberIsNotFound},
		{"ListTransactionsNewestFirst", testListTransactionsNewestFirst},
		{"Members", testMembers},
		{"DeleteMemberUnlinksTransactions", testDeleteMemberUnlinksTransactions},
		{"Expenses", testExpenses},
		{"RejectsInvalidRecords", testRejectsInvalidRecords},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newLedger(t, Location)
			t.Cleanup(func() { _ = l.Close() })
			tt.fn(t, l)
		})
	}
}

func electronic(ext string, cents int64, at time.Time, member *int64) core.Transaction {
	return core.Transaction{
		ExternalID: &ext,
		PayerName:  "Joao Da Silva",
		MemberID:   member,
		Amount:     core.NewMoneyFromCents(cents),
		OccurredAt: at,
		Status:     core.StatusPending,
		Origin:     core.OriginElectronic,
	}
}

func manual(name string, cents int64, at time.Time, category core.Category) core.Transaction {
	return core.Transaction{
		PayerName:  name,
		Amount:     core.NewMoneyFromCents(cents),
		OccurredAt: at,
		Status:     core.StatusConfirmed,
		Origin:     core.OriginManual,
		Category:   &category,
	}
}

func at(year int, month time.Month, day, hour int) time.Time {
	return time.Date(year, month, day, hour, 0, 0, 0, Location)
}

func testInsertIfAbsentIsIdempotent(t *testing.T, l storage.Ledger) {
	ctx := context.Background()
	tx := electronic("pay_1", 10000, at(2025, time.March, 10, 9), nil)

	id, inserted, err := l.InsertTransactionIfAbsent(ctx, tx)
	if err != nil || !inserted || id == 0 {
		t.Fatalf("first insert: id=%d inserted=%v err=%v", id, inserted, err)
	}
	for i := 0; i < 3; i++ {
		_, inserted, err := l.InsertTransactionIfAbsent(ctx, tx)
		if err != nil {
			t.Fatalf("repeat insert: %v", err)
		}
		if inserted {
			t.Fatalf("repeat insert %d must be a no-op", i)
		}
	}

	all, err := l.ListTransactions(ctx, storage.TransactionFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(all))
	}
	got := all[0]
	if got.ID != id || got.ExternalID == nil || *got.ExternalID != "pay_1" {
		t.Fatalf("unexpected row %+v", got)
	}
	if got.Status != core.StatusPending || got.Origin != core.OriginElectronic || got.Category != nil {
		t.Fatalf("electronic row must be pending and unclassified: %+v", got)
	}
	if got.Amount.String() != "100.00" {
		t.Fatalf("amount = %s", got.Amount)
	}
	if !got.OccurredAt.Equal(tx.OccurredAt) {
		t.Fatalf("occurred_at = %v, want %v", got.OccurredAt, tx.OccurredAt)
	}
}

func testConcurrentDuplicateDeliveries(t *testing.T, l storage.Ledger) {
	ctx := context.Background()
	const deliveries = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		inserted int
		errs     []error
	)
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := l.InsertTransactionIfAbsent(ctx, electronic("pay_race", 5000, at(2025, time.March, 1, 12), nil))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
			}
			if ok {
				inserted++
			}
		}()
	}
	wg.Wait()

	if len(errs) > 0 {
		t.Fatalf("concurrent inserts failed: %v", errs)
	}
	if inserted != 1 {
		t.Fatalf("expected exactly 1 successful insert, got %d", inserted)
	}
	all, err := l.ListTransactions(ctx, storage.TransactionFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 row, got %d", len(all))
	}
}

func testConfirmIsOneWay(t *testing.T, l storage.Ledger) {
	ctx := context.Background()
	id, _, err := l.InsertTransactionIfAbsent(ctx, electronic("pay_c", 2500, at(2025, time.March, 5, 10), nil))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := l.ConfirmTransaction(ctx, id, core.CategoryOffering); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	got, err := l.GetTransaction(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != core.StatusConfirmed || got.Category == nil || *got.Category != core.CategoryOffering {
		t.Fatalf("unexpected row after confirm: %+v", got)
	}

	err = l.ConfirmTransaction(ctx, id, core.CategoryTithe)
	if !errors.Is(err, core.ErrAlreadyConfirmed) {
		t.Fatalf("second confirm: expected ErrAlreadyConfirmed, got %v", err)
	}
	got, err = l.GetTransaction(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != core.StatusConfirmed || *got.Category != core.CategoryOffering {
		t.Fatalf("second confirm must not change the row: %+v", got)
	}

	pending, err := l.ListTransactions(ctx, storage.TransactionFilter{Status: core.StatusPending})
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("confirmed transaction listed as pending: %+v", pending)
	}

	if err := l.ConfirmTransaction(ctx, id, core.Category("gift")); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("invalid category: expected validation error, got %v", err)
	}
}

func testConfirmUnknown(t *testing.T, l storage.Ledger) {
	ctx := context.Background()
	if err := l.ConfirmTransaction(ctx, 4242, core.CategoryTithe); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := l.GetTransaction(ctx, 4242); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testListConfirmedTransactionsInPeriod(t *testing.T, l storage.Ledger) {
	ctx := context.Background()
	march := core.Period{Year: 2025, Month: time.March}

	insertConfirmed := func(ext string, cents int64, when time.Time) {
		t.Helper()
		id, _, err := l.InsertTransactionIfAbsent(ctx, electronic(ext, cents, when, nil))
		if err != nil {
			t.Fatalf("insert %s: %v", ext, err)
		}
		if err := l.ConfirmTransaction(ctx, id, core.CategoryTithe); err != nil {
			t.Fatalf("confirm %s: %v", ext, err)
		}
	}

	insertConfirmed("first-instant", 100, time.Date(2025, time.March, 1, 0, 0, 0, 0, Location))
	insertConfirmed("mid", 200, at(2025, time.March, 15, 12))
	insertConfirmed("last-second", 300, time.Date(2025, time.March, 31, 23, 59, 59, 0, Location))
	insertConfirmed("next-month", 400, time.Date(2025, time.April, 1, 0, 0, 0, 0, Location))
	insertConfirmed("prev-month", 500, time.Date(2025, time.February, 28, 23, 59, 59, 0, Location))
	if _, _, err := l.InsertTransactionIfAbsent(ctx, electronic("pending", 600, at(2025, time.March, 20, 8), nil)); err != nil {
		t.Fatalf("insert pending: %v", err)
	}

	got, err := l.ListConfirmedTransactions(ctx, march)
	if err != nil {
		t.Fatalf("list confirmed: %v", err)
	}
	want := []string{"first-instant", "mid", "last-second"}
	if len(got) != len(want) {
		t.Fatalf("expected %d rows, got %d: %+v", len(want), len(got), got)
	}
	for i, ext := range want {
		if got[i].ExternalID == nil || *got[i].ExternalID != ext {
			t.Fatalf("row %d: expected %s, got %+v", i, ext, got[i])
		}
	}

	empty, err := l.ListConfirmedTransactions(ctx, core.Period{Year: 2024, Month: time.January})
	if err != nil {
		t.Fatalf("list empty period: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no rows, got %d", len(empty))
	}
}

func testManualTransactions(t *testing.T, l storage.Ledger) {
	ctx := context.Background()
	m, err := l.CreateMember(ctx, core.Member{Code: "M01", FullName: "Maria Souza"})
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	tx := manual("Maria Souza", 7500, at(2025, time.March, 9, 11), core.CategoryOffering)
	tx.MemberID = &m.ID

	id, err := l.CreateManualTransaction(ctx, tx)
	if err != nil {
		t.Fatalf("create manual: %v", err)
	}
	// Two manual entries never collide on the external id.
	if _, err := l.CreateManualTransaction(ctx, manual("Caixa", 1000, at(2025, time.March, 9, 12), core.CategoryTithe)); err != nil {
		t.Fatalf("second manual: %v", err)
	}

	got, err := l.GetTransaction(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Origin != core.OriginManual || got.Status != core.StatusConfirmed || got.ExternalID != nil {
		t.Fatalf("unexpected manual row %+v", got)
	}
	if got.MemberCode != "M01" || got.MemberName != "Maria Souza" {
		t.Fatalf("expected member join, got %+v", got)
	}

	if err := l.ConfirmTransaction(ctx, id, core.CategoryTithe); !errors.Is(err, core.ErrAlreadyConfirmed) {
		t.Fatalf("manual rows start confirmed: got %v", err)
	}

	confirmed, err := l.ListConfirmedTransactions(ctx, core.Period{Year: 2025, Month: time.March})
	if err != nil {
		t.Fatalf("list confirmed: %v", err)
	}
	if len(confirmed) != 2 {
		t.Fatalf("expected 2 confirmed rows, got %d", len(confirmed))
	}
}

func testUnknownMemberIsNotFound(t *testing.T, l storage.Ledger) {
	ctx := context.Background()
	unknown := int64(999)

	tx := manual("Maria Souza", 7500, at(2025, time.March, 9, 11), core.CategoryOffering)
	tx.MemberID = &unknown
	if _, err := l.CreateManualTransaction(ctx, tx); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("manual with unknown member: got %v, want ErrNotFound", err)
	}
	if _, _, err := l.InsertTransactionIfAbsent(ctx, electronic("pay_ghost", 5000, at(2025, time.March, 9, 12), &unknown)); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("electronic with unknown member: got %v, want ErrNotFound", err)
	}

	all, err := l.ListTransactions(ctx, storage.TransactionFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("rejected rows must not be stored, got %+v", all)
	}
}

func testListTransactionsNewestFirst(t *testing.T, l storage.Ledger) {
	ctx := context.Background()
	for i, day := range []int{3, 20, 11} {
		if _, _, err := l.InsertTransactionIfAbsent(ctx, electronic(fmt.Sprintf("p%d", i), 100, at(2025, time.May, day, 9), nil)); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	got, err := l.ListTransactions(ctx, storage.TransactionFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].OccurredAt.After(got[i-1].OccurredAt) {
			t.Fatalf("rows not newest first: %v after %v", got[i].OccurredAt, got[i-1].OccurredAt)
		}
	}

	limited, err := l.ListTransactions(ctx, storage.TransactionFilter{Limit: 2})
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(limited) != 2 || *limited[0].ExternalID != "p1" {
		t.Fatalf("unexpected limited list %+v", limited)
	}
}

func testMembers(t *testing.T, l storage.Ledger) {
	ctx := context.Background()
	birth := core.NewDate(1980, 5, 17)

	zeca, err := l.CreateMember(ctx, core.Member{Code: "Z1", FullName: "Zeca Pereira"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	ana, err := l.CreateMember(ctx, core.Member{Code: " A1 ", FullName: "Ana Lima", BirthDate: &birth})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if ana.Code != "A1" {
		t.Fatalf("code should be trimmed, got %q", ana.Code)
	}

	if _, err := l.CreateMember(ctx, core.Member{Code: "A1", FullName: "Outra Ana"}); !errors.Is(err, core.ErrMemberCodeTaken) {
		t.Fatalf("duplicate code: expected ErrMemberCodeTaken, got %v", err)
	}

	members, err := l.ListMembers(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(members) != 2 || members[0].FullName != "Ana Lima" || members[1].FullName != "Zeca Pereira" {
		t.Fatalf("members not ordered by name: %+v", members)
	}
	if members[0].BirthDate == nil || members[0].BirthDate.String() != "1980-05-17" {
		t.Fatalf("birth date not kept: %+v", members[0])
	}

	roster, err := l.Roster(ctx)
	if err != nil {
		t.Fatalf("roster: %v", err)
	}
	if len(roster) != 2 || roster[0].ID != zeca.ID || roster[1].ID != ana.ID {
		t.Fatalf("roster not ordered by id: %+v", roster)
	}
}

func testDeleteMemberUnlinksTransactions(t *testing.T, l storage.Ledger) {
	ctx := context.Background()
	m, err := l.CreateMember(ctx, core.Member{Code: "J1", FullName: "João da Silva"})
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	id, _, err := l.InsertTransactionIfAbsent(ctx, electronic("pay_link", 10000, at(2025, time.March, 2, 9), &m.ID))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := l.DeleteMember(ctx, m.ID); err != nil {
		t.Fatalf("delete member: %v", err)
	}
	got, err := l.GetTransaction(ctx, id)
	if err != nil {
		t.Fatalf("transaction must survive member deletion: %v", err)
	}
	if got.MemberID != nil || got.MemberCode != "" {
		t.Fatalf("member reference should be null, got %+v", got)
	}

	if err := l.DeleteMember(ctx, m.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}
}

func testExpenses(t *testing.T, l storage.Ledger) {
	ctx := context.Background()
	create := func(desc string, cents int64, d core.Date) core.Expense {
		t.Helper()
		e, err := l.CreateExpense(ctx, core.Expense{Description: desc, Category: "Contas", Amount: core.NewMoneyFromCents(cents), Date: d})
		if err != nil {
			t.Fatalf("create expense %s: %v", desc, err)
		}
		return e
	}
	light := create("Energia", 12000, core.NewDate(2025, 3, 31))
	create("Agua", 4000, core.NewDate(2025, 3, 1))
	create("Aluguel", 90000, core.NewDate(2025, 4, 1))

	march, err := l.ListExpensesInPeriod(ctx, core.Period{Year: 2025, Month: time.March})
	if err != nil {
		t.Fatalf("list period: %v", err)
	}
	if len(march) != 2 || march[0].Description != "Agua" || march[1].Description != "Energia" {
		t.Fatalf("unexpected march expenses %+v", march)
	}
	if march[1].Amount.String() != "120.00" || march[1].Date.String() != "2025-03-31" {
		t.Fatalf("unexpected expense fields %+v", march[1])
	}

	all, err := l.ListExpenses(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].Description != "Aluguel" {
		t.Fatalf("expenses not newest first: %+v", all)
	}

	if err := l.DeleteExpense(ctx, light.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := l.DeleteExpense(ctx, light.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}
	march, err = l.ListExpensesInPeriod(ctx, core.Period{Year: 2025, Month: time.March})
	if err != nil {
		t.Fatalf("list period: %v", err)
	}
	if len(march) != 1 {
		t.Fatalf("expected 1 expense after delete, got %d", len(march))
	}
}

func testRejectsInvalidRecords(t *testing.T, l storage.Ledger) {
	ctx := context.Background()
	if _, _, err := l.InsertTransactionIfAbsent(ctx, electronic("zero", 0, at(2025, time.March, 1, 9), nil)); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("zero amount: expected validation error, got %v", err)
	}
	noID := electronic("x", 100, at(2025, time.March, 1, 9), nil)
	noID.ExternalID = nil
	if _, _, err := l.InsertTransactionIfAbsent(ctx, noID); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("missing external id: expected validation error, got %v", err)
	}
	if _, err := l.CreateExpense(ctx, core.Expense{Description: "", Amount: core.NewMoneyFromCents(1), Date: core.NewDate(2025, 1, 1)}); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("empty description: expected validation error, got %v", err)
	}
	if _, err := l.CreateMember(ctx, core.Member{Code: "", FullName: "x"}); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("empty code: expected validation error, got %v", err)
	}

	all, err := l.ListTransactions(ctx, storage.TransactionFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("invalid records must not be persisted, got %d", len(all))
	}
}
