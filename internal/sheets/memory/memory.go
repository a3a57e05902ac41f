// Package memory is a spreadsheet stand-in that keeps tabs in process.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tesouraria/internal/sheets"
	"tesouraria/internal/statement"
)

type Store struct {
	mu      sync.Mutex
	loc     *time.Location
	tabs    map[string][][]string
	journal [][]string
	seen    map[string]struct{}
}

var (
	_ sheets.StatementWriter = (*Store)(nil)
	_ sheets.JournalWriter   = (*Store)(nil)
)

func New(loc *time.Location) *Store {
	if loc == nil {
		loc = time.UTC
	}
	return &Store{loc: loc, tabs: map[string][][]string{}, seen: map[string]struct{}{}}
}

// ExportStatement replaces the period tab with the document grid.
func (s *Store) ExportStatement(_ context.Context, doc statement.Document) (string, error) {
	name := sheets.TabName(doc.Summary.Period)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tabs[name] = doc.Grid()
	return fmt.Sprintf("mem:%s", name), nil
}

// AppendJournal appends the entry once per event id.
func (s *Store) AppendJournal(_ context.Context, entry sheets.JournalEntry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.EventID != "" {
		if _, ok := s.seen[entry.EventID]; ok {
			return "", nil
		}
		s.seen[entry.EventID] = struct{}{}
	}
	s.journal = append(s.journal, entry.Values(s.loc))
	return fmt.Sprintf("mem:journal:%d", len(s.journal)), nil
}

// Tab returns a copy of the named tab.
func (s *Store) Tab(name string) ([][]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.tabs[name]
	if !ok {
		return nil, false
	}
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out, true
}

// Journal returns a copy of the journal rows.
func (s *Store) Journal() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, len(s.journal))
	for i, r := range s.journal {
		out[i] = append([]string(nil), r...)
	}
	return out
}
