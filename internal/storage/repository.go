package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tesouraria/internal/core"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// SQLRepository is the ledger store over SQLite or PostgreSQL.
type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
	loc     *time.Location
}

var _ Ledger = (*SQLRepository)(nil)

// NewSQLiteRepository opens (creating if needed) the SQLite database at
// dbPath and applies migrations.
func NewSQLiteRepository(dbPath string, loc *time.Location) (*SQLRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	return open(DialectSQLite, dbPath, loc)
}

// NewPostgresRepository connects to dsn and applies migrations.
func NewPostgresRepository(dsn string, loc *time.Location) (*SQLRepository, error) {
	return open(DialectPostgres, dsn, loc)
}

func open(d Dialect, dsn string, loc *time.Location) (*SQLRepository, error) {
	if loc == nil {
		loc = time.UTC
	}

	db, err := sql.Open(d.driverName(), d.dsn(dsn))
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", d, err)
	}
	if d == DialectSQLite {
		// One writer at a time; concurrent writers would only trade
		// SQLITE_BUSY errors.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(d, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLRepository{db: db, dialect: d, loc: loc}, nil
}

func (r *SQLRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLRepository) q(query string) string {
	return r.dialect.rebind(query)
}

const transactionColumns = `t.id, t.external_id, t.payer_name, t.member_id, t.amount_cents,
	t.occurred_at, t.status, t.origin, t.category,
	COALESCE(m.code, ''), COALESCE(m.full_name, '')`

const transactionFrom = ` FROM transactions t LEFT JOIN members m ON m.id = t.member_id`

func (r *SQLRepository) InsertTransactionIfAbsent(ctx context.Context, tx core.Transaction) (int64, bool, error) {
	if err := tx.Validate(); err != nil {
		return 0, false, err
	}
	if tx.Origin != core.OriginElectronic {
		return 0, false, &core.ValidationError{Field: "origin", Reason: "only electronic transactions are deduplicated"}
	}

	var id int64
	err := r.db.QueryRowContext(ctx, r.q(`
		INSERT INTO transactions (external_id, payer_name, member_id, amount_cents, occurred_at, status, origin, category)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (external_id) DO NOTHING
		RETURNING id`),
		*tx.ExternalID, tx.PayerName, nullInt64(tx.MemberID), tx.Amount.Cents(),
		tx.OccurredAt.Unix(), string(tx.Status), string(tx.Origin), nullCategory(tx.Category),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		slog.DebugContext(ctx, "Transaction already recorded", "external_id", *tx.ExternalID)
		return 0, false, nil
	}
	if err != nil {
		if missing := r.missingMember(ctx, tx.MemberID); missing != nil {
			return 0, false, missing
		}
		return 0, false, fmt.Errorf("insert transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", id,
		"external_id", *tx.ExternalID,
		"amount", tx.Amount.String(),
		"linked", tx.MemberID != nil)

	return id, true, nil
}

func (r *SQLRepository) CreateManualTransaction(ctx context.Context, tx core.Transaction) (int64, error) {
	if tx.Origin != core.OriginManual {
		return 0, &core.ValidationError{Field: "origin", Reason: "expected a manual transaction"}
	}
	if err := tx.Validate(); err != nil {
		return 0, err
	}

	var id int64
	err := r.db.QueryRowContext(ctx, r.q(`
		INSERT INTO transactions (external_id, payer_name, member_id, amount_cents, occurred_at, status, origin, category)
		VALUES (NULL, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`),
		tx.PayerName, nullInt64(tx.MemberID), tx.Amount.Cents(),
		tx.OccurredAt.Unix(), string(tx.Status), string(tx.Origin), nullCategory(tx.Category),
	).Scan(&id)
	if err != nil {
		if missing := r.missingMember(ctx, tx.MemberID); missing != nil {
			return 0, missing
		}
		return 0, fmt.Errorf("insert manual transaction: %w", err)
	}
	return id, nil
}

// missingMember reports a failed insert that referenced an unknown member as
// core.ErrNotFound. It returns nil when the member exists or none was named.
func (r *SQLRepository) missingMember(ctx context.Context, memberID *int64) error {
	if memberID == nil {
		return nil
	}
	var one int
	err := r.db.QueryRowContext(ctx, r.q(`SELECT 1 FROM members WHERE id = ?`), *memberID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("member %d: %w", *memberID, core.ErrNotFound)
	}
	return nil
}

func (r *SQLRepository) ConfirmTransaction(ctx context.Context, id int64, category core.Category) error {
	if !category.Valid() {
		return core.Invalid("category", core.ErrInvalidCategory)
	}

	res, err := r.db.ExecContext(ctx, r.q(
		`UPDATE transactions SET status = 'confirmed', category = ? WHERE id = ? AND status = 'pending'`),
		string(category), id)
	if err != nil {
		return fmt.Errorf("confirm transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("confirm transaction: %w", err)
	}
	if n == 1 {
		return nil
	}

	var status string
	err = r.db.QueryRowContext(ctx, r.q(`SELECT status FROM transactions WHERE id = ?`), id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("confirm transaction: %w", err)
	}
	return fmt.Errorf("transaction %d: %w", id, core.ErrAlreadyConfirmed)
}

func (r *SQLRepository) GetTransaction(ctx context.Context, id int64) (core.TransactionView, error) {
	row := r.db.QueryRowContext(ctx, r.q(`SELECT `+transactionColumns+transactionFrom+` WHERE t.id = ?`), id)
	v, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.TransactionView{}, fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.TransactionView{}, fmt.Errorf("get transaction: %w", err)
	}
	return v, nil
}

func (r *SQLRepository) ListTransactions(ctx context.Context, filter TransactionFilter) ([]core.TransactionView, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		where = append(where, "t.status = ?")
		args = append(args, string(filter.Status))
	}

	query := `SELECT ` + transactionColumns + transactionFrom
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY t.occurred_at DESC, t.id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	return r.queryTransactions(ctx, query, args...)
}

func (r *SQLRepository) ListConfirmedTransactions(ctx context.Context, period core.Period) ([]core.TransactionView, error) {
	start, end := period.Bounds(r.loc)
	return r.queryTransactions(ctx, `SELECT `+transactionColumns+transactionFrom+`
		WHERE t.status = 'confirmed' AND t.occurred_at >= ? AND t.occurred_at < ?
		ORDER BY t.occurred_at, t.id`, start.Unix(), end.Unix())
}

func (r *SQLRepository) queryTransactions(ctx context.Context, query string, args ...any) ([]core.TransactionView, error) {
	rows, err := r.db.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.TransactionView
	for rows.Next() {
		v, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return out, nil
}

func (r *SQLRepository) CreateMember(ctx context.Context, m core.Member) (core.Member, error) {
	m.Code = strings.TrimSpace(m.Code)
	m.FullName = strings.TrimSpace(m.FullName)
	if err := m.Validate(); err != nil {
		return core.Member{}, err
	}

	var birth sql.NullString
	if m.BirthDate != nil {
		birth = sql.NullString{String: m.BirthDate.String(), Valid: true}
	}

	err := r.db.QueryRowContext(ctx, r.q(`
		INSERT INTO members (code, full_name, birth_date) VALUES (?, ?, ?)
		ON CONFLICT (code) DO NOTHING
		RETURNING id`),
		m.Code, m.FullName, birth,
	).Scan(&m.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Member{}, fmt.Errorf("member %q: %w", m.Code, core.ErrMemberCodeTaken)
	}
	if err != nil {
		return core.Member{}, fmt.Errorf("create member: %w", err)
	}

	slog.InfoContext(ctx, "Member saved", "id", m.ID, "code", m.Code)
	return m, nil
}

func (r *SQLRepository) ListMembers(ctx context.Context) ([]core.Member, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, code, full_name, birth_date FROM members ORDER BY full_name, id`)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var out []core.Member
	for rows.Next() {
		var (
			m     core.Member
			birth sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.Code, &m.FullName, &birth); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		if birth.Valid {
			d, err := core.ParseDate(birth.String)
			if err != nil {
				return nil, fmt.Errorf("member %d birth date: %w", m.ID, err)
			}
			m.BirthDate = &d
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *SQLRepository) Roster(ctx context.Context) ([]core.RosterEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, full_name FROM members ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	defer rows.Close()

	var out []core.RosterEntry
	for rows.Next() {
		var e core.RosterEntry
		if err := rows.Scan(&e.ID, &e.FullName); err != nil {
			return nil, fmt.Errorf("scan roster entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLRepository) DeleteMember(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, r.q(`UPDATE transactions SET member_id = NULL WHERE member_id = ?`), id); err != nil {
		return fmt.Errorf("unlink transactions: %w", err)
	}
	res, err := tx.ExecContext(ctx, r.q(`DELETE FROM members WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("delete member: %w", err)
	} else if n == 0 {
		return fmt.Errorf("member %d: %w", id, core.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	slog.InfoContext(ctx, "Member deleted", "id", id)
	return nil
}

func (r *SQLRepository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	e.Description = strings.TrimSpace(e.Description)
	e.Category = strings.TrimSpace(e.Category)
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	err := r.db.QueryRowContext(ctx, r.q(`
		INSERT INTO expenses (description, category, amount_cents, expense_date) VALUES (?, ?, ?, ?)
		RETURNING id`),
		e.Description, e.Category, e.Amount.Cents(), e.Date.String(),
	).Scan(&e.ID)
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", e.ID,
		"description", e.Description,
		"amount", e.Amount.String(),
		"date", e.Date.String())

	return e, nil
}

func (r *SQLRepository) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	return r.queryExpenses(ctx, `SELECT id, description, category, amount_cents, expense_date
		FROM expenses ORDER BY expense_date DESC, id DESC`)
}

func (r *SQLRepository) ListExpensesInPeriod(ctx context.Context, period core.Period) ([]core.Expense, error) {
	start, end := period.DateBounds()
	return r.queryExpenses(ctx, `SELECT id, description, category, amount_cents, expense_date
		FROM expenses WHERE expense_date >= ? AND expense_date < ?
		ORDER BY expense_date, id`, start.String(), end.String())
}

func (r *SQLRepository) queryExpenses(ctx context.Context, query string, args ...any) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		var (
			e     core.Expense
			cents int64
			date  string
		)
		if err := rows.Scan(&e.ID, &e.Description, &e.Category, &cents, &date); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		d, err := core.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("expense %d date: %w", e.ID, err)
		}
		e.Amount = core.NewMoneyFromCents(cents)
		e.Date = d
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLRepository) DeleteExpense(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.q(`DELETE FROM expenses WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("expense %d: %w", id, core.ErrNotFound)
	}
	slog.InfoContext(ctx, "Expense deleted", "id", id)
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (core.TransactionView, error) {
	var (
		v          core.TransactionView
		externalID sql.NullString
		memberID   sql.NullInt64
		cents      int64
		occurredAt int64
		status     string
		origin     string
		category   sql.NullString
	)
	if err := s.Scan(&v.ID, &externalID, &v.PayerName, &memberID, &cents,
		&occurredAt, &status, &origin, &category, &v.MemberCode, &v.MemberName); err != nil {
		return core.TransactionView{}, err
	}
	if externalID.Valid {
		id := externalID.String
		v.ExternalID = &id
	}
	if memberID.Valid {
		id := memberID.Int64
		v.MemberID = &id
	}
	if category.Valid {
		c := core.Category(category.String)
		v.Category = &c
	}
	v.Amount = core.NewMoneyFromCents(cents)
	v.OccurredAt = time.Unix(occurredAt, 0).UTC()
	v.Status = core.Status(status)
	v.Origin = core.Origin(origin)
	return v, nil
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func nullCategory(c *core.Category) sql.NullString {
	if c == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*c), Valid: true}
}
