// Package google writes statements and the ledger journal to a Google
// Sheets spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"tesouraria/internal/log"
	"tesouraria/internal/sheets"
	"tesouraria/internal/statement"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const DefaultJournalSheet = "Lancamentos"

// Config selects the spreadsheet and the service account used to reach it.
type Config struct {
	SpreadsheetID string
	// CredentialsJSON wins over CredentialsFile.
	CredentialsJSON string
	CredentialsFile string
	JournalSheet    string
	Location        *time.Location
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	journalSheet  string
	loc           *time.Location
	logger        *log.Logger

	mu    sync.Mutex
	known map[string]struct{}
}

// Ensure interface conformance
var (
	_ sheets.StatementWriter = (*Client)(nil)
	_ sheets.JournalWriter   = (*Client)(nil)
)

// New creates a Sheets client. With no extra options it authenticates with
// the configured service account.
func New(ctx context.Context, cfg Config, logger *log.Logger, opts ...goption.ClientOption) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentSheets)

	if len(opts) == 0 {
		creds, err := credentials(cfg)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	journal := strings.TrimSpace(cfg.JournalSheet)
	if journal == "" {
		journal = DefaultJournalSheet
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	logger.InfoContext(ctx, "Google Sheets service created", "journal_sheet", journal)

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		journalSheet:  journal,
		loc:           loc,
		logger:        logger,
		known:         map[string]struct{}{},
	}, nil
}

func credentials(cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		return []byte(cfg.CredentialsJSON), nil
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

// ExportStatement writes the document grid to the period's tab, replacing
// whatever it held.
func (c *Client) ExportStatement(ctx context.Context, doc statement.Document) (string, error) {
	tab := sheets.TabName(doc.Summary.Period)
	if _, err := c.ensureSheet(ctx, tab); err != nil {
		return "", err
	}

	rng := quote(tab)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("clear %s: %w", tab, err)
	}

	vr := &gsheet.ValueRange{Values: toValues(doc.Grid())}
	resp, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng+"!A1", vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("write %s: %w", tab, err)
	}

	c.logger.InfoContext(ctx, "Statement exported",
		log.FieldOperation, log.OpExport,
		"sheet", tab,
		"range", resp.UpdatedRange)
	return resp.UpdatedRange, nil
}

// AppendJournal appends one row to the journal tab, creating it with a
// header row on first use.
func (c *Client) AppendJournal(ctx context.Context, entry sheets.JournalEntry) (string, error) {
	created, err := c.ensureSheet(ctx, c.journalSheet)
	if err != nil {
		return "", err
	}
	rows := [][]string{entry.Values(c.loc)}
	if created {
		rows = append([][]string{sheets.JournalHeader}, rows...)
	}

	vr := &gsheet.ValueRange{Values: toValues(rows)}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, quote(c.journalSheet)+"!A:G", vr).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to %s: %w", c.journalSheet, err)
	}
	ref := ""
	if resp.Updates != nil {
		ref = resp.Updates.UpdatedRange
	}
	return ref, nil
}

// ensureSheet adds the tab when the spreadsheet lacks it and reports
// whether it did.
func (c *Client) ensureSheet(ctx context.Context, title string) (bool, error) {
	c.mu.Lock()
	_, ok := c.known[title]
	c.mu.Unlock()
	if ok {
		return false, nil
	}

	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return false, fmt.Errorf("read spreadsheet: %w", err)
	}
	exists := false
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == title {
			exists = true
			break
		}
	}

	if !exists {
		req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
		}}}
		if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
			return false, fmt.Errorf("add sheet %s: %w", title, err)
		}
		c.logger.InfoContext(ctx, "Sheet created", "sheet", title)
	}

	c.mu.Lock()
	c.known[title] = struct{}{}
	c.mu.Unlock()
	return !exists, nil
}

func quote(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

func toValues(rows [][]string) [][]any {
	out := make([][]any, len(rows))
	for i, row := range rows {
		vals := make([]any, len(row))
		for j, v := range row {
			vals[j] = v
		}
		out[i] = vals
	}
	return out
}
