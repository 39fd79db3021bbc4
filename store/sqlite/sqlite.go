/*
Package sqlite provides a SQLite-backed implementation of ledger.TxStore.

PURPOSE:
  Default store for the service and the CLI. The PostgreSQL store in
  store/postgres mirrors it with dialect changes only.

KEY TABLES:
  account_types:   global chart-of-accounts categories
  accounts:        chart of accounts, unique (business_id, code)
  journal_entries: entry headers
  journal_details: entry lines, cascade-deleted with their entry

STORAGE FORMATS:
  Amounts are TEXT decimal strings (exact, never REAL).
  Dates are TEXT "YYYY-MM-DD" so range filters compare lexically.

CONNECTIONS:
  The pool is capped at one connection. SQLite serializes writers anyway,
  ":memory:" databases exist per connection, and WithTx then needs no
  extra locking. Result sets are always drained before the next query.

INTEGRITY:
  Foreign keys are enforced (_foreign_keys=on). Unique and foreign key
  violations surface as ledger.ErrConflict, e.g. deleting an account that
  journal lines still reference.

USAGE:
  store, err := sqlite.New("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := ledger.NewService(store)

SEE ALSO:
  - ledger/store.go: interface definitions
  - store/postgres/postgres.go: PostgreSQL variant
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/bookkeeping/ledger"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements ledger.Store on top of a querier.
type queries struct {
	q querier
}

// Store implements ledger.TxStore using SQLite.
type Store struct {
	queries
	db *sql.DB
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &Store{queries: queries{q: db}, db: db}
	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS account_types (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		report_position TEXT NOT NULL,
		normal_balance TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS accounts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		business_id INTEGER NOT NULL,
		code TEXT NOT NULL,
		name TEXT NOT NULL,
		account_type_id INTEGER NOT NULL REFERENCES account_types(id),
		initial_debit_balance TEXT NOT NULL DEFAULT '0',
		initial_credit_balance TEXT NOT NULL DEFAULT '0',
		UNIQUE (business_id, code)
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_type ON accounts(account_type_id);

	CREATE TABLE IF NOT EXISTS journal_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		business_id INTEGER NOT NULL,
		date TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT ''
	);

	-- Range scans for profit and loss / trial balance
	CREATE INDEX IF NOT EXISTS idx_journal_entries_business_date
		ON journal_entries(business_id, date);

	CREATE TABLE IF NOT EXISTS journal_details (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		journal_entry_id INTEGER NOT NULL REFERENCES journal_entries(id) ON DELETE CASCADE,
		account_id INTEGER NOT NULL REFERENCES accounts(id),
		debit TEXT NOT NULL DEFAULT '0',
		credit TEXT NOT NULL DEFAULT '0'
	);

	-- Hot path: every balance and movement query
	CREATE INDEX IF NOT EXISTS idx_journal_details_account
		ON journal_details(account_id, id);
	CREATE INDEX IF NOT EXISTS idx_journal_details_entry
		ON journal_details(journal_entry_id);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction. A failed rollback is
// reported as *ledger.RollbackError.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.Persistence("begin transaction", err)
	}

	if err := fn(&queries{q: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return &ledger.RollbackError{Err: err, RollbackErr: rbErr}
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return ledger.Persistence("commit transaction", err)
	}
	return nil
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	tables := []string{"journal_details", "journal_entries", "accounts", "account_types"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return ledger.Persistence("reset "+table, err)
		}
	}
	return nil
}

// =============================================================================
// ACCOUNT TYPES
// =============================================================================

func (s *queries) CreateAccountType(ctx context.Context, t *ledger.AccountType) error {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO account_types (name, report_position, normal_balance) VALUES (?, ?, ?)`,
		t.Name, string(t.ReportPosition), string(t.NormalBalance))
	if err != nil {
		return mapError("create account type", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return ledger.Persistence("create account type", err)
	}
	t.ID = ledger.AccountTypeID(id)
	return nil
}

func (s *queries) GetAccountType(ctx context.Context, id ledger.AccountTypeID) (ledger.AccountType, error) {
	var t ledger.AccountType
	var pos, normal string
	err := s.q.QueryRowContext(ctx,
		`SELECT id, name, report_position, normal_balance FROM account_types WHERE id = ?`, id,
	).Scan(&t.ID, &t.Name, &pos, &normal)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.AccountType{}, &ledger.NotFoundError{Entity: "account type", ID: int64(id)}
	}
	if err != nil {
		return ledger.AccountType{}, ledger.Persistence("get account type", err)
	}
	t.ReportPosition = ledger.ReportPosition(pos)
	t.NormalBalance = ledger.NormalBalance(normal)
	return t, nil
}

func (s *queries) ListAccountTypes(ctx context.Context) ([]ledger.AccountType, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, name, report_position, normal_balance FROM account_types ORDER BY id`)
	if err != nil {
		return nil, ledger.Persistence("list account types", err)
	}
	defer rows.Close()

	var out []ledger.AccountType
	for rows.Next() {
		var t ledger.AccountType
		var pos, normal string
		if err := rows.Scan(&t.ID, &t.Name, &pos, &normal); err != nil {
			return nil, ledger.Persistence("scan account type", err)
		}
		t.ReportPosition = ledger.ReportPosition(pos)
		t.NormalBalance = ledger.NormalBalance(normal)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, ledger.Persistence("list account types", err)
	}
	return out, nil
}

func (s *queries) UpdateAccountType(ctx context.Context, t ledger.AccountType) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE account_types SET name = ?, report_position = ?, normal_balance = ? WHERE id = ?`,
		t.Name, string(t.ReportPosition), string(t.NormalBalance), t.ID)
	if err != nil {
		return mapError("update account type", err)
	}
	return requireRow(res, "account type", int64(t.ID))
}

func (s *queries) DeleteAccountType(ctx context.Context, id ledger.AccountTypeID) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM account_types WHERE id = ?`, id)
	if err != nil {
		return mapError("delete account type", err)
	}
	return requireRow(res, "account type", int64(id))
}

func (s *queries) CountAccountsOfType(ctx context.Context, id ledger.AccountTypeID) (int, error) {
	var n int
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts WHERE account_type_id = ?`, id).Scan(&n); err != nil {
		return 0, ledger.Persistence("count accounts of type", err)
	}
	return n, nil
}

// =============================================================================
// ACCOUNTS
// =============================================================================

const accountColumns = `
	a.id, a.business_id, a.code, a.name, a.account_type_id,
	a.initial_debit_balance, a.initial_credit_balance,
	t.id, t.name, t.report_position, t.normal_balance`

const accountFrom = `
	FROM accounts a
	JOIN account_types t ON t.id = a.account_type_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (ledger.Account, error) {
	var a ledger.Account
	var initDebit, initCredit, pos, normal string
	if err := row.Scan(&a.ID, &a.BusinessID, &a.Code, &a.Name, &a.AccountTypeID,
		&initDebit, &initCredit,
		&a.Type.ID, &a.Type.Name, &pos, &normal); err != nil {
		return ledger.Account{}, err
	}
	var err error
	if a.InitialDebitBalance, err = decimal.NewFromString(initDebit); err != nil {
		return ledger.Account{}, fmt.Errorf("initial_debit_balance of account %d: %w", a.ID, err)
	}
	if a.InitialCreditBalance, err = decimal.NewFromString(initCredit); err != nil {
		return ledger.Account{}, fmt.Errorf("initial_credit_balance of account %d: %w", a.ID, err)
	}
	a.Type.ReportPosition = ledger.ReportPosition(pos)
	a.Type.NormalBalance = ledger.NormalBalance(normal)
	return a, nil
}

func (s *queries) CreateAccount(ctx context.Context, a *ledger.Account) error {
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO accounts (business_id, code, name, account_type_id, initial_debit_balance, initial_credit_balance)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.BusinessID, a.Code, a.Name, a.AccountTypeID,
		a.InitialDebitBalance.String(), a.InitialCreditBalance.String())
	if err != nil {
		return mapError("create account", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return ledger.Persistence("create account", err)
	}
	a.ID = ledger.AccountID(id)
	return nil
}

func (s *queries) GetAccount(ctx context.Context, businessID ledger.BusinessID, id ledger.AccountID) (ledger.Account, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+accountFrom+` WHERE a.id = ? AND a.business_id = ?`, id, businessID)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Account{}, &ledger.NotFoundError{Entity: "account", ID: int64(id)}
	}
	if err != nil {
		return ledger.Account{}, ledger.Persistence("get account", err)
	}
	return a, nil
}

func (s *queries) ListAccounts(ctx context.Context, businessID ledger.BusinessID) ([]ledger.Account, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+accountColumns+accountFrom+` WHERE a.business_id = ? ORDER BY a.code`, businessID)
	if err != nil {
		return nil, ledger.Persistence("list accounts", err)
	}
	defer rows.Close()

	var out []ledger.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, ledger.Persistence("scan account", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, ledger.Persistence("list accounts", err)
	}
	return out, nil
}

func (s *queries) UpdateAccount(ctx context.Context, a ledger.Account) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE accounts
		SET code = ?, name = ?, account_type_id = ?, initial_debit_balance = ?, initial_credit_balance = ?
		WHERE id = ? AND business_id = ?`,
		a.Code, a.Name, a.AccountTypeID,
		a.InitialDebitBalance.String(), a.InitialCreditBalance.String(),
		a.ID, a.BusinessID)
	if err != nil {
		return mapError("update account", err)
	}
	return requireRow(res, "account", int64(a.ID))
}

func (s *queries) DeleteAccount(ctx context.Context, businessID ledger.BusinessID, id ledger.AccountID) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM accounts WHERE id = ? AND business_id = ?`, id, businessID)
	if err != nil {
		return mapError("delete account", err)
	}
	return requireRow(res, "account", int64(id))
}

func (s *queries) CountLinesForAccount(ctx context.Context, businessID ledger.BusinessID, id ledger.AccountID) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM journal_details d
		JOIN journal_entries e ON e.id = d.journal_entry_id
		WHERE d.account_id = ? AND e.business_id = ?`, id, businessID).Scan(&n)
	if err != nil {
		return 0, ledger.Persistence("count lines for account", err)
	}
	return n, nil
}

// =============================================================================
// JOURNAL
// =============================================================================

func (s *queries) InsertEntry(ctx context.Context, e *ledger.JournalEntry) error {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO journal_entries (business_id, date, description) VALUES (?, ?, ?)`,
		e.BusinessID, e.Date.Format(ledger.DateLayout), e.Description)
	if err != nil {
		return mapError("insert journal entry", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return ledger.Persistence("insert journal entry", err)
	}
	e.ID = ledger.EntryID(id)
	return nil
}

func (s *queries) InsertLine(ctx context.Context, l *ledger.JournalLine) error {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO journal_details (journal_entry_id, account_id, debit, credit) VALUES (?, ?, ?, ?)`,
		l.EntryID, l.AccountID, l.Debit.String(), l.Credit.String())
	if err != nil {
		return mapError("insert journal line", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return ledger.Persistence("insert journal line", err)
	}
	l.ID = ledger.LineID(id)
	return nil
}

func scanEntry(row scanner) (ledger.JournalEntry, error) {
	var e ledger.JournalEntry
	var date string
	if err := row.Scan(&e.ID, &e.BusinessID, &date, &e.Description); err != nil {
		return ledger.JournalEntry{}, err
	}
	var err error
	if e.Date, err = time.Parse(ledger.DateLayout, date); err != nil {
		return ledger.JournalEntry{}, fmt.Errorf("date of journal entry %d: %w", e.ID, err)
	}
	return e, nil
}

func scanLine(row scanner) (ledger.JournalLine, error) {
	var l ledger.JournalLine
	var debit, credit string
	if err := row.Scan(&l.ID, &l.EntryID, &l.AccountID, &debit, &credit); err != nil {
		return ledger.JournalLine{}, err
	}
	var err error
	if l.Debit, err = decimal.NewFromString(debit); err != nil {
		return ledger.JournalLine{}, fmt.Errorf("debit of line %d: %w", l.ID, err)
	}
	if l.Credit, err = decimal.NewFromString(credit); err != nil {
		return ledger.JournalLine{}, fmt.Errorf("credit of line %d: %w", l.ID, err)
	}
	return l, nil
}

func (s *queries) queryLines(ctx context.Context, query string, args ...any) ([]ledger.JournalLine, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ledger.Persistence("query journal lines", err)
	}
	defer rows.Close()

	var out []ledger.JournalLine
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, ledger.Persistence("scan journal line", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, ledger.Persistence("query journal lines", err)
	}
	return out, nil
}

func (s *queries) GetEntry(ctx context.Context, businessID ledger.BusinessID, id ledger.EntryID) (ledger.JournalEntry, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT id, business_id, date, description FROM journal_entries WHERE id = ? AND business_id = ?`,
		id, businessID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.JournalEntry{}, &ledger.NotFoundError{Entity: "journal entry", ID: int64(id)}
	}
	if err != nil {
		return ledger.JournalEntry{}, ledger.Persistence("get journal entry", err)
	}

	e.Lines, err = s.queryLines(ctx, `
		SELECT id, journal_entry_id, account_id, debit, credit
		FROM journal_details WHERE journal_entry_id = ? ORDER BY id`, id)
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	return e, nil
}

func (s *queries) ListEntries(ctx context.Context, businessID ledger.BusinessID) ([]ledger.JournalEntry, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, business_id, date, description FROM journal_entries
		WHERE business_id = ? ORDER BY date DESC, id DESC`, businessID)
	if err != nil {
		return nil, ledger.Persistence("list journal entries", err)
	}
	var entries []ledger.JournalEntry
	index := make(map[ledger.EntryID]int)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			rows.Close()
			return nil, ledger.Persistence("scan journal entry", err)
		}
		index[e.ID] = len(entries)
		entries = append(entries, e)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, ledger.Persistence("list journal entries", err)
	}

	lines, err := s.queryLines(ctx, `
		SELECT d.id, d.journal_entry_id, d.account_id, d.debit, d.credit
		FROM journal_details d
		JOIN journal_entries e ON e.id = d.journal_entry_id
		WHERE e.business_id = ? ORDER BY d.id`, businessID)
	if err != nil {
		return nil, err
	}
	for _, l := range lines {
		if i, ok := index[l.EntryID]; ok {
			entries[i].Lines = append(entries[i].Lines, l)
		}
	}
	return entries, nil
}

func (s *queries) UpdateEntry(ctx context.Context, e ledger.JournalEntry) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE journal_entries SET date = ?, description = ? WHERE id = ? AND business_id = ?`,
		e.Date.Format(ledger.DateLayout), e.Description, e.ID, e.BusinessID)
	if err != nil {
		return mapError("update journal entry", err)
	}
	return requireRow(res, "journal entry", int64(e.ID))
}

func (s *queries) GetLine(ctx context.Context, businessID ledger.BusinessID, id ledger.LineID) (ledger.JournalLine, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT d.id, d.journal_entry_id, d.account_id, d.debit, d.credit
		FROM journal_details d
		JOIN journal_entries e ON e.id = d.journal_entry_id
		WHERE d.id = ? AND e.business_id = ?`, id, businessID)
	l, err := scanLine(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.JournalLine{}, &ledger.NotFoundError{Entity: "journal line", ID: int64(id)}
	}
	if err != nil {
		return ledger.JournalLine{}, ledger.Persistence("get journal line", err)
	}
	return l, nil
}

func (s *queries) UpdateLine(ctx context.Context, l ledger.JournalLine) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE journal_details SET account_id = ?, debit = ?, credit = ? WHERE id = ?`,
		l.AccountID, l.Debit.String(), l.Credit.String(), l.ID)
	if err != nil {
		return mapError("update journal line", err)
	}
	return requireRow(res, "journal line", int64(l.ID))
}

func (s *queries) DeleteLine(ctx context.Context, id ledger.LineID) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM journal_details WHERE id = ?`, id)
	if err != nil {
		return mapError("delete journal line", err)
	}
	return requireRow(res, "journal line", int64(id))
}

func (s *queries) DeleteLines(ctx context.Context, entryID ledger.EntryID) error {
	if _, err := s.q.ExecContext(ctx, `DELETE FROM journal_details WHERE journal_entry_id = ?`, entryID); err != nil {
		return mapError("delete journal lines", err)
	}
	return nil
}

func (s *queries) DeleteEntry(ctx context.Context, businessID ledger.BusinessID, id ledger.EntryID) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM journal_entries WHERE id = ? AND business_id = ?`, id, businessID)
	if err != nil {
		return mapError("delete journal entry", err)
	}
	return requireRow(res, "journal entry", int64(id))
}

// =============================================================================
// POSTINGS
// =============================================================================

const postingSelect = `
	SELECT d.id, e.id, e.date, e.description,
	       a.id, a.code, a.name, a.account_type_id,
	       d.debit, d.credit
	FROM journal_details d
	JOIN journal_entries e ON e.id = d.journal_entry_id
	JOIN accounts a ON a.id = d.account_id`

func (s *queries) queryPostings(ctx context.Context, query string, args ...any) ([]ledger.Posting, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ledger.Persistence("query postings", err)
	}
	defer rows.Close()

	var out []ledger.Posting
	for rows.Next() {
		var p ledger.Posting
		var date, debit, credit string
		if err := rows.Scan(&p.LineID, &p.EntryID, &date, &p.Description,
			&p.AccountID, &p.AccountCode, &p.AccountName, &p.AccountTypeID,
			&debit, &credit); err != nil {
			return nil, ledger.Persistence("scan posting", err)
		}
		if p.Date, err = time.Parse(ledger.DateLayout, date); err != nil {
			return nil, ledger.Persistence("parse posting date", err)
		}
		if p.Debit, err = decimal.NewFromString(debit); err != nil {
			return nil, ledger.Persistence("parse posting debit", err)
		}
		if p.Credit, err = decimal.NewFromString(credit); err != nil {
			return nil, ledger.Persistence("parse posting credit", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, ledger.Persistence("query postings", err)
	}
	return out, nil
}

func (s *queries) AccountPostings(ctx context.Context, businessID ledger.BusinessID, id ledger.AccountID) ([]ledger.Posting, error) {
	return s.queryPostings(ctx, postingSelect+`
		WHERE d.account_id = ? AND e.business_id = ?
		ORDER BY d.id`, id, businessID)
}

func (s *queries) PostingsInRange(ctx context.Context, businessID ledger.BusinessID, from, to time.Time) ([]ledger.Posting, error) {
	return s.queryPostings(ctx, postingSelect+`
		WHERE e.business_id = ? AND e.date >= ? AND e.date <= ?
		ORDER BY d.id`, businessID, from.Format(ledger.DateLayout), to.Format(ledger.DateLayout))
}

// =============================================================================
// HELPERS
// =============================================================================

// mapError turns constraint violations into ledger.ErrConflict and wraps
// everything else as a persistence failure.
func mapError(op string, err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%s: duplicate value: %w", op, ledger.ErrConflict)
		case sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("%s: referenced row missing or still in use: %w", op, ledger.ErrConflict)
		}
		return fmt.Errorf("%s: %v: %w", op, sqliteErr, ledger.ErrConflict)
	}
	return ledger.Persistence(op, err)
}

func requireRow(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return ledger.Persistence("rows affected", err)
	}
	if n == 0 {
		return &ledger.NotFoundError{Entity: entity, ID: id}
	}
	return nil
}
