package storage

import (
	"context"

	"tesouraria/internal/core"
)

// Ports of the ledger store. Consumers depend on the narrowest one they need.
type (
	TransactionWriter interface {
		// InsertTransactionIfAbsent stores an electronic transaction unless one
		// with the same external id already exists. The check and the insert
		// are a single atomic statement; inserted is false for a duplicate.
		InsertTransactionIfAbsent(ctx context.Context, tx core.Transaction) (id int64, inserted bool, err error)
		CreateManualTransaction(ctx context.Context, tx core.Transaction) (int64, error)
		// ConfirmTransaction moves a pending transaction to confirmed and fixes
		// its category. It fails with core.ErrAlreadyConfirmed when the
		// transaction is not pending and core.ErrNotFound when it is unknown.
		ConfirmTransaction(ctx context.Context, id int64, category core.Category) error
	}

	TransactionReader interface {
		GetTransaction(ctx context.Context, id int64) (core.TransactionView, error)
		// ListTransactions returns transactions newest first.
		ListTransactions(ctx context.Context, filter TransactionFilter) ([]core.TransactionView, error)
		// ListConfirmedTransactions returns the confirmed transactions whose
		// timestamp falls in the period, oldest first.
		ListConfirmedTransactions(ctx context.Context, period core.Period) ([]core.TransactionView, error)
	}

	MemberStore interface {
		CreateMember(ctx context.Context, m core.Member) (core.Member, error)
		// ListMembers returns members ordered by full name.
		ListMembers(ctx context.Context) ([]core.Member, error)
		// Roster returns every member ordered by id.
		Roster(ctx context.Context) ([]core.RosterEntry, error)
		// DeleteMember removes the member and unlinks its transactions.
		DeleteMember(ctx context.Context, id int64) error
	}

	ExpenseStore interface {
		CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
		// ListExpenses returns expenses newest first.
		ListExpenses(ctx context.Context) ([]core.Expense, error)
		// ListExpensesInPeriod returns the expenses dated in the period, oldest first.
		ListExpensesInPeriod(ctx context.Context, period core.Period) ([]core.Expense, error)
		DeleteExpense(ctx context.Context, id int64) error
	}

	// Ledger is the full store surface implemented by every backend.
	Ledger interface {
		TransactionWriter
		TransactionReader
		MemberStore
		ExpenseStore
		Ping(ctx context.Context) error
		Close() error
	}
)

// TransactionFilter narrows ListTransactions. Zero values mean no filter.
type TransactionFilter struct {
	Status core.Status
	Limit  int
}
