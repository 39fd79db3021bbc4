/*
Package postgres provides a PostgreSQL-backed implementation of ledger.TxStore
using pgx connection pooling.

PURPOSE:
  Production store. Same schema and semantics as store/sqlite with native
  types: NUMERIC amounts, DATE entry dates and BIGSERIAL ids returned with
  RETURNING.

DECIMALS:
  Amounts are written as decimal strings and read back with ::text, so no
  value ever passes through float64.

ERRORS:
  23505 unique_violation and 23503 foreign_key_violation map to
  ledger.ErrConflict; pgx.ErrNoRows maps to *ledger.NotFoundError.

SEE ALSO:
  - store/sqlite/sqlite.go: default store, same layout
*/
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/warp/bookkeeping/ledger"
	"github.com/warp/bookkeeping/logger"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type queries struct {
	q querier
}

// Store implements ledger.TxStore on a pgx pool.
type Store struct {
	queries
	pool *pgxpool.Pool
}

// PoolOptions tunes the connection pool. Zero values keep pgx defaults.
type PoolOptions struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	ConnectRetries  int
}

// DefaultPoolOptions is sized for a single service instance.
var DefaultPoolOptions = PoolOptions{
	MaxConns:        20,
	MinConns:        2,
	MaxConnLifetime: time.Hour,
	MaxConnIdleTime: 5 * time.Minute,
	ConnectRetries:  5,
}

// New connects to databaseURL, retrying with exponential backoff, and
// migrates the schema.
func New(ctx context.Context, databaseURL string, opts PoolOptions) (*Store, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	if opts.MaxConns > 0 {
		config.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		config.MinConns = opts.MinConns
	}
	if opts.MaxConnLifetime > 0 {
		config.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.MaxConnIdleTime > 0 {
		config.MaxConnIdleTime = opts.MaxConnIdleTime
	}
	retries := opts.ConnectRetries
	if retries < 1 {
		retries = 1
	}

	log := logger.FromContext(ctx)
	delay := 2 * time.Second
	var pool *pgxpool.Pool
	for attempt := 1; attempt <= retries; attempt++ {
		pool, err = connect(ctx, config)
		if err == nil {
			break
		}
		log.Warn().Err(err).Int("attempt", attempt).Int("max_attempts", retries).Msg("database connection failed")
		if attempt == retries {
			return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", retries, err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	store := &Store{queries: queries{q: pool}, pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	log.Info().Int32("max_conns", config.MaxConns).Msg("connected to postgres")
	return store, nil
}

func connect(ctx context.Context, config *pgxpool.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping failed: %w", err)
	}
	return pool, nil
}

// Close releases every pooled connection.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS account_types (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		report_position TEXT NOT NULL,
		normal_balance TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS accounts (
		id BIGSERIAL PRIMARY KEY,
		business_id BIGINT NOT NULL,
		code TEXT NOT NULL,
		name TEXT NOT NULL,
		account_type_id BIGINT NOT NULL REFERENCES account_types(id),
		initial_debit_balance NUMERIC NOT NULL DEFAULT 0,
		initial_credit_balance NUMERIC NOT NULL DEFAULT 0,
		UNIQUE (business_id, code)
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_type ON accounts(account_type_id);

	CREATE TABLE IF NOT EXISTS journal_entries (
		id BIGSERIAL PRIMARY KEY,
		business_id BIGINT NOT NULL,
		date DATE NOT NULL,
		description TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_journal_entries_business_date
		ON journal_entries(business_id, date);

	CREATE TABLE IF NOT EXISTS journal_details (
		id BIGSERIAL PRIMARY KEY,
		journal_entry_id BIGINT NOT NULL REFERENCES journal_entries(id) ON DELETE CASCADE,
		account_id BIGINT NOT NULL REFERENCES accounts(id),
		debit NUMERIC NOT NULL DEFAULT 0 CHECK (debit >= 0),
		credit NUMERIC NOT NULL DEFAULT 0 CHECK (credit >= 0)
	);

	CREATE INDEX IF NOT EXISTS idx_journal_details_account
		ON journal_details(account_id, id);
	CREATE INDEX IF NOT EXISTS idx_journal_details_entry
		ON journal_details(journal_entry_id);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// WithTx executes fn within a database transaction. A failed rollback is
// reported as *ledger.RollbackError.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return ledger.Persistence("begin transaction", err)
	}

	if err := fn(&queries{q: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return &ledger.RollbackError{Err: err, RollbackErr: rbErr}
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return ledger.Persistence("commit transaction", err)
	}
	return nil
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx,
		`TRUNCATE journal_details, journal_entries, accounts, account_types RESTART IDENTITY`)
	if err != nil {
		return ledger.Persistence("reset", err)
	}
	return nil
}

// =============================================================================
// ACCOUNT TYPES
// =============================================================================

func (s *queries) CreateAccountType(ctx context.Context, t *ledger.AccountType) error {
	err := s.q.QueryRow(ctx,
		`INSERT INTO account_types (name, report_position, normal_balance) VALUES ($1, $2, $3) RETURNING id`,
		t.Name, string(t.ReportPosition), string(t.NormalBalance),
	).Scan(&t.ID)
	return mapError("create account type", err)
}

func (s *queries) GetAccountType(ctx context.Context, id ledger.AccountTypeID) (ledger.AccountType, error) {
	var t ledger.AccountType
	err := s.q.QueryRow(ctx,
		`SELECT id, name, report_position, normal_balance FROM account_types WHERE id = $1`, id,
	).Scan(&t.ID, &t.Name, &t.ReportPosition, &t.NormalBalance)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.AccountType{}, &ledger.NotFoundError{Entity: "account type", ID: int64(id)}
	}
	if err != nil {
		return ledger.AccountType{}, ledger.Persistence("get account type", err)
	}
	return t, nil
}

func (s *queries) ListAccountTypes(ctx context.Context) ([]ledger.AccountType, error) {
	rows, err := s.q.Query(ctx, `SELECT id, name, report_position, normal_balance FROM account_types ORDER BY id`)
	if err != nil {
		return nil, ledger.Persistence("list account types", err)
	}
	defer rows.Close()

	var out []ledger.AccountType
	for rows.Next() {
		var t ledger.AccountType
		if err := rows.Scan(&t.ID, &t.Name, &t.ReportPosition, &t.NormalBalance); err != nil {
			return nil, ledger.Persistence("scan account type", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, ledger.Persistence("list account types", err)
	}
	return out, nil
}

func (s *queries) UpdateAccountType(ctx context.Context, t ledger.AccountType) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE account_types SET name = $1, report_position = $2, normal_balance = $3 WHERE id = $4`,
		t.Name, string(t.ReportPosition), string(t.NormalBalance), t.ID)
	if err != nil {
		return mapError("update account type", err)
	}
	return requireRow(tag, "account type", int64(t.ID))
}

func (s *queries) DeleteAccountType(ctx context.Context, id ledger.AccountTypeID) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM account_types WHERE id = $1`, id)
	if err != nil {
		return mapError("delete account type", err)
	}
	return requireRow(tag, "account type", int64(id))
}

func (s *queries) CountAccountsOfType(ctx context.Context, id ledger.AccountTypeID) (int, error) {
	var n int
	if err := s.q.QueryRow(ctx, `SELECT COUNT(*) FROM accounts WHERE account_type_id = $1`, id).Scan(&n); err != nil {
		return 0, ledger.Persistence("count accounts of type", err)
	}
	return n, nil
}

// =============================================================================
// ACCOUNTS
// =============================================================================

const accountSelect = `
	SELECT a.id, a.business_id, a.code, a.name, a.account_type_id,
	       a.initial_debit_balance::text, a.initial_credit_balance::text,
	       t.id, t.name, t.report_position, t.normal_balance
	FROM accounts a
	JOIN account_types t ON t.id = a.account_type_id`

func scanAccount(row pgx.Row) (ledger.Account, error) {
	var a ledger.Account
	var initDebit, initCredit string
	if err := row.Scan(&a.ID, &a.BusinessID, &a.Code, &a.Name, &a.AccountTypeID,
		&initDebit, &initCredit,
		&a.Type.ID, &a.Type.Name, &a.Type.ReportPosition, &a.Type.NormalBalance); err != nil {
		return ledger.Account{}, err
	}
	var err error
	if a.InitialDebitBalance, err = decimal.NewFromString(initDebit); err != nil {
		return ledger.Account{}, err
	}
	if a.InitialCreditBalance, err = decimal.NewFromString(initCredit); err != nil {
		return ledger.Account{}, err
	}
	return a, nil
}

func (s *queries) CreateAccount(ctx context.Context, a *ledger.Account) error {
	err := s.q.QueryRow(ctx, `
		INSERT INTO accounts (business_id, code, name, account_type_id, initial_debit_balance, initial_credit_balance)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		a.BusinessID, a.Code, a.Name, a.AccountTypeID,
		a.InitialDebitBalance.String(), a.InitialCreditBalance.String(),
	).Scan(&a.ID)
	return mapError("create account", err)
}

func (s *queries) GetAccount(ctx context.Context, businessID ledger.BusinessID, id ledger.AccountID) (ledger.Account, error) {
	a, err := scanAccount(s.q.QueryRow(ctx, accountSelect+` WHERE a.id = $1 AND a.business_id = $2`, id, businessID))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Account{}, &ledger.NotFoundError{Entity: "account", ID: int64(id)}
	}
	if err != nil {
		return ledger.Account{}, ledger.Persistence("get account", err)
	}
	return a, nil
}

func (s *queries) ListAccounts(ctx context.Context, businessID ledger.BusinessID) ([]ledger.Account, error) {
	rows, err := s.q.Query(ctx, accountSelect+` WHERE a.business_id = $1 ORDER BY a.code`, businessID)
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
	tag, err := s.q.Exec(ctx, `
		UPDATE accounts
		SET code = $1, name = $2, account_type_id = $3, initial_debit_balance = $4, initial_credit_balance = $5
		WHERE id = $6 AND business_id = $7`,
		a.Code, a.Name, a.AccountTypeID,
		a.InitialDebitBalance.String(), a.InitialCreditBalance.String(),
		a.ID, a.BusinessID)
	if err != nil {
		return mapError("update account", err)
	}
	return requireRow(tag, "account", int64(a.ID))
}

func (s *queries) DeleteAccount(ctx context.Context, businessID ledger.BusinessID, id ledger.AccountID) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM accounts WHERE id = $1 AND business_id = $2`, id, businessID)
	if err != nil {
		return mapError("delete account", err)
	}
	return requireRow(tag, "account", int64(id))
}

func (s *queries) CountLinesForAccount(ctx context.Context, businessID ledger.BusinessID, id ledger.AccountID) (int, error) {
	var n int
	err := s.q.QueryRow(ctx, `
		SELECT COUNT(*) FROM journal_details d
		JOIN journal_entries e ON e.id = d.journal_entry_id
		WHERE d.account_id = $1 AND e.business_id = $2`, id, businessID).Scan(&n)
	if err != nil {
		return 0, ledger.Persistence("count lines for account", err)
	}
	return n, nil
}

// =============================================================================
// JOURNAL
// =============================================================================

func (s *queries) InsertEntry(ctx context.Context, e *ledger.JournalEntry) error {
	err := s.q.QueryRow(ctx,
		`INSERT INTO journal_entries (business_id, date, description) VALUES ($1, $2, $3) RETURNING id`,
		e.BusinessID, e.Date, e.Description,
	).Scan(&e.ID)
	return mapError("insert journal entry", err)
}

func (s *queries) InsertLine(ctx context.Context, l *ledger.JournalLine) error {
	err := s.q.QueryRow(ctx,
		`INSERT INTO journal_details (journal_entry_id, account_id, debit, credit) VALUES ($1, $2, $3, $4) RETURNING id`,
		l.EntryID, l.AccountID, l.Debit.String(), l.Credit.String(),
	).Scan(&l.ID)
	return mapError("insert journal line", err)
}

const lineSelect = `
	SELECT d.id, d.journal_entry_id, d.account_id, d.debit::text, d.credit::text
	FROM journal_details d
	JOIN journal_entries e ON e.id = d.journal_entry_id`

func scanLine(row pgx.Row) (ledger.JournalLine, error) {
	var l ledger.JournalLine
	var debit, credit string
	if err := row.Scan(&l.ID, &l.EntryID, &l.AccountID, &debit, &credit); err != nil {
		return ledger.JournalLine{}, err
	}
	var err error
	if l.Debit, err = decimal.NewFromString(debit); err != nil {
		return ledger.JournalLine{}, err
	}
	if l.Credit, err = decimal.NewFromString(credit); err != nil {
		return ledger.JournalLine{}, err
	}
	return l, nil
}

func (s *queries) queryLines(ctx context.Context, query string, args ...any) ([]ledger.JournalLine, error) {
	rows, err := s.q.Query(ctx, query, args...)
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
	var e ledger.JournalEntry
	err := s.q.QueryRow(ctx,
		`SELECT id, business_id, date, description FROM journal_entries WHERE id = $1 AND business_id = $2`,
		id, businessID,
	).Scan(&e.ID, &e.BusinessID, &e.Date, &e.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.JournalEntry{}, &ledger.NotFoundError{Entity: "journal entry", ID: int64(id)}
	}
	if err != nil {
		return ledger.JournalEntry{}, ledger.Persistence("get journal entry", err)
	}

	e.Lines, err = s.queryLines(ctx, lineSelect+` WHERE d.journal_entry_id = $1 ORDER BY d.id`, id)
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	return e, nil
}

func (s *queries) ListEntries(ctx context.Context, businessID ledger.BusinessID) ([]ledger.JournalEntry, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, business_id, date, description FROM journal_entries
		WHERE business_id = $1 ORDER BY date DESC, id DESC`, businessID)
	if err != nil {
		return nil, ledger.Persistence("list journal entries", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ledger.JournalEntry, error) {
		var e ledger.JournalEntry
		err := row.Scan(&e.ID, &e.BusinessID, &e.Date, &e.Description)
		return e, err
	})
	if err != nil {
		return nil, ledger.Persistence("scan journal entry", err)
	}

	lines, err := s.queryLines(ctx, lineSelect+` WHERE e.business_id = $1 ORDER BY d.id`, businessID)
	if err != nil {
		return nil, err
	}
	index := make(map[ledger.EntryID]int, len(entries))
	for i, e := range entries {
		index[e.ID] = i
	}
	for _, l := range lines {
		if i, ok := index[l.EntryID]; ok {
			entries[i].Lines = append(entries[i].Lines, l)
		}
	}
	return entries, nil
}

func (s *queries) UpdateEntry(ctx context.Context, e ledger.JournalEntry) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE journal_entries SET date = $1, description = $2 WHERE id = $3 AND business_id = $4`,
		e.Date, e.Description, e.ID, e.BusinessID)
	if err != nil {
		return mapError("update journal entry", err)
	}
	return requireRow(tag, "journal entry", int64(e.ID))
}

func (s *queries) GetLine(ctx context.Context, businessID ledger.BusinessID, id ledger.LineID) (ledger.JournalLine, error) {
	l, err := scanLine(s.q.QueryRow(ctx, lineSelect+` WHERE d.id = $1 AND e.business_id = $2`, id, businessID))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.JournalLine{}, &ledger.NotFoundError{Entity: "journal line", ID: int64(id)}
	}
	if err != nil {
		return ledger.JournalLine{}, ledger.Persistence("get journal line", err)
	}
	return l, nil
}

func (s *queries) UpdateLine(ctx context.Context, l ledger.JournalLine) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE journal_details SET account_id = $1, debit = $2, credit = $3 WHERE id = $4`,
		l.AccountID, l.Debit.String(), l.Credit.String(), l.ID)
	if err != nil {
		return mapError("update journal line", err)
	}
	return requireRow(tag, "journal line", int64(l.ID))
}

func (s *queries) DeleteLine(ctx context.Context, id ledger.LineID) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM journal_details WHERE id = $1`, id)
	if err != nil {
		return mapError("delete journal line", err)
	}
	return requireRow(tag, "journal line", int64(id))
}

func (s *queries) DeleteLines(ctx context.Context, entryID ledger.EntryID) error {
	if _, err := s.q.Exec(ctx, `DELETE FROM journal_details WHERE journal_entry_id = $1`, entryID); err != nil {
		return mapError("delete journal lines", err)
	}
	return nil
}

func (s *queries) DeleteEntry(ctx context.Context, businessID ledger.BusinessID, id ledger.EntryID) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM journal_entries WHERE id = $1 AND business_id = $2`, id, businessID)
	if err != nil {
		return mapError("delete journal entry", err)
	}
	return requireRow(tag, "journal entry", int64(id))
}

// =============================================================================
// POSTINGS
// =============================================================================

const postingSelect = `
	SELECT d.id, e.id, e.date, e.description,
	       a.id, a.code, a.name, a.account_type_id,
	       d.debit::text, d.credit::text
	FROM journal_details d
	JOIN journal_entries e ON e.id = d.journal_entry_id
	JOIN accounts a ON a.id = d.account_id`

func (s *queries) queryPostings(ctx context.Context, query string, args ...any) ([]ledger.Posting, error) {
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, ledger.Persistence("query postings", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ledger.Posting, error) {
		var p ledger.Posting
		var debit, credit string
		if err := row.Scan(&p.LineID, &p.EntryID, &p.Date, &p.Description,
			&p.AccountID, &p.AccountCode, &p.AccountName, &p.AccountTypeID,
			&debit, &credit); err != nil {
			return p, err
		}
		var err error
		if p.Debit, err = decimal.NewFromString(debit); err != nil {
			return p, err
		}
		p.Credit, err = decimal.NewFromString(credit)
		return p, err
	})
	if err != nil {
		return nil, ledger.Persistence("scan posting", err)
	}
	return out, nil
}

func (s *queries) AccountPostings(ctx context.Context, businessID ledger.BusinessID, id ledger.AccountID) ([]ledger.Posting, error) {
	return s.queryPostings(ctx, postingSelect+`
		WHERE d.account_id = $1 AND e.business_id = $2
		ORDER BY d.id`, id, businessID)
}

func (s *queries) PostingsInRange(ctx context.Context, businessID ledger.BusinessID, from, to time.Time) ([]ledger.Posting, error) {
	return s.queryPostings(ctx, postingSelect+`
		WHERE e.business_id = $1 AND e.date >= $2 AND e.date <= $3
		ORDER BY d.id`, businessID, from, to)
}

// =============================================================================
// HELPERS
// =============================================================================

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// mapError turns constraint violations into ledger.ErrConflict and wraps
// everything else as a persistence failure. A nil err stays nil.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%s: duplicate value (%s): %w", op, pgErr.ConstraintName, ledger.ErrConflict)
		case codeForeignKeyViolation:
			return fmt.Errorf("%s: referenced row missing or still in use (%s): %w", op, pgErr.ConstraintName, ledger.ErrConflict)
		}
	}
	return ledger.Persistence(op, err)
}

func requireRow(tag pgconn.CommandTag, entity string, id int64) error {
	if tag.RowsAffected() == 0 {
		return &ledger.NotFoundError{Entity: entity, ID: id}
	}
	return nil
}
