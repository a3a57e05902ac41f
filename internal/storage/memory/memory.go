// Package memory is an in-process ledger store for tests and demos.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"tesouraria/internal/core"
	"tesouraria/internal/storage"
)

type Store struct {
	mu           sync.Mutex
	loc          *time.Location
	nextID       int64
	members      map[int64]core.Member
	transactions map[int64]core.Transaction
	byExternalID map[string]int64
	expenses     map[int64]core.Expense
}

var _ storage.Ledger = (*Store)(nil)

func New(loc *time.Location) *Store {
	if loc == nil {
		loc = time.UTC
	}
	return &Store{
		loc:          loc,
		members:      map[int64]core.Member{},
		transactions: map[int64]core.Transaction{},
		byExternalID: map[string]int64{},
		expenses:     map[int64]core.Expense{},
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) InsertTransactionIfAbsent(_ context.Context, tx core.Transaction) (int64, bool, error) {
	if err := tx.Validate(); err != nil {
		return 0, false, err
	}
	if tx.Origin != core.OriginElectronic {
		return 0, false, &core.ValidationError{Field: "origin", Reason: "only electronic transactions are deduplicated"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byExternalID[*tx.ExternalID]; ok {
		return 0, false, nil
	}
	if tx.MemberID != nil {
		if _, ok := s.members[*tx.MemberID]; !ok {
			return 0, false, fmt.Errorf("member %d: %w", *tx.MemberID, core.ErrNotFound)
		}
	}
	tx.ID = s.id()
	tx.OccurredAt = tx.OccurredAt.Truncate(time.Second).UTC()
	s.transactions[tx.ID] = tx
	s.byExternalID[*tx.ExternalID] = tx.ID
	return tx.ID, true, nil
}

func (s *Store) CreateManualTransaction(_ context.Context, tx core.Transaction) (int64, error) {
	if tx.Origin != core.OriginManual {
		return 0, &core.ValidationError{Field: "origin", Reason: "expected a manual transaction"}
	}
	if err := tx.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.MemberID != nil {
		if _, ok := s.members[*tx.MemberID]; !ok {
			return 0, fmt.Errorf("member %d: %w", *tx.MemberID, core.ErrNotFound)
		}
	}
	tx.ID = s.id()
	tx.ExternalID = nil
	tx.OccurredAt = tx.OccurredAt.Truncate(time.Second).UTC()
	s.transactions[tx.ID] = tx
	return tx.ID, nil
}

func (s *Store) ConfirmTransaction(_ context.Context, id int64, category core.Category) error {
	if !category.Valid() {
		return core.Invalid("category", core.ErrInvalidCategory)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[id]
	if !ok {
		return fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	if tx.Status != core.StatusPending {
		return fmt.Errorf("transaction %d: %w", id, core.ErrAlreadyConfirmed)
	}
	tx.Status = core.StatusConfirmed
	tx.Category = &category
	s.transactions[id] = tx
	return nil
}

func (s *Store) GetTransaction(_ context.Context, id int64) (core.TransactionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[id]
	if !ok {
		return core.TransactionView{}, fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	return s.view(tx), nil
}

func (s *Store) ListTransactions(_ context.Context, filter storage.TransactionFilter) ([]core.TransactionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.TransactionView
	for _, tx := range s.transactions {
		if filter.Status != "" && tx.Status != filter.Status {
			continue
		}
		out = append(out, s.view(tx))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].OccurredAt.After(out[j].OccurredAt)
		}
		return out[i].ID > out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Store) ListConfirmedTransactions(_ context.Context, period core.Period) ([]core.TransactionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.TransactionView
	for _, tx := range s.transactions {
		if tx.Status == core.StatusConfirmed && period.Contains(tx.OccurredAt, s.loc) {
			out = append(out, s.view(tx))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].OccurredAt.Before(out[j].OccurredAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// view must be called with s.mu held.
func (s *Store) view(tx core.Transaction) core.TransactionView {
	v := core.TransactionView{Transaction: tx}
	if tx.MemberID != nil {
		if m, ok := s.members[*tx.MemberID]; ok {
			v.MemberCode = m.Code
			v.MemberName = m.FullName
		}
	}
	return v
}

func (s *Store) CreateMember(_ context.Context, m core.Member) (core.Member, error) {
	m.Code = strings.TrimSpace(m.Code)
	m.FullName = strings.TrimSpace(m.FullName)
	if err := m.Validate(); err != nil {
		return core.Member{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.members {
		if existing.Code == m.Code {
			return core.Member{}, fmt.Errorf("member %q: %w", m.Code, core.ErrMemberCodeTaken)
		}
	}
	m.ID = s.id()
	s.members[m.ID] = m
	return m, nil
}

func (s *Store) ListMembers(_ context.Context) ([]core.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Member, 0, len(s.members))
	for _, m := range s.members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FullName != out[j].FullName {
			return out[i].FullName < out[j].FullName
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) Roster(_ context.Context) ([]core.RosterEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.RosterEntry, 0, len(s.members))
	for _, m := range s.members {
		out = append(out, core.RosterEntry{ID: m.ID, FullName: m.FullName})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) DeleteMember(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[id]; !ok {
		return fmt.Errorf("member %d: %w", id, core.ErrNotFound)
	}
	for txID, tx := range s.transactions {
		if tx.MemberID != nil && *tx.MemberID == id {
			tx.MemberID = nil
			s.transactions[txID] = tx
		}
	}
	delete(s.members, id)
	return nil
}

func (s *Store) CreateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	e.Description = strings.TrimSpace(e.Description)
	e.Category = strings.TrimSpace(e.Category)
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.id()
	s.expenses[e.ID] = e
	return e, nil
}

func (s *Store) ListExpenses(_ context.Context) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Expense, 0, len(s.expenses))
	for _, e := range s.expenses {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.After(out[j].Date.Time)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) ListExpensesInPeriod(_ context.Context, period core.Period) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Expense
	for _, e := range s.expenses {
		if period.ContainsDate(e.Date) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.Before(out[j].Date.Time)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) DeleteExpense(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.expenses[id]; !ok {
		return fmt.Errorf("expense %d: %w", id, core.ErrNotFound)
	}
	delete(s.expenses, id)
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
