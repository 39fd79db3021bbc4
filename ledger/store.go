/*
store.go - Persistence interfaces for the chart of accounts and the journal

PURPOSE:
  Defines the interface between the ledger engine and the database.
  The engine never holds balances in memory between calls: every report
  reloads postings through these interfaces.

KEY INTERFACES:
  AccountTypeStore: account type CRUD (global, not business scoped)
  AccountStore:     chart of accounts CRUD (business scoped)
  JournalStore:     entry header + line persistence (business scoped)
  PostingStore:     read side used by reports
  TxStore:          Store + WithTx for atomic multi-step writes

TENANCY:
  Every business-scoped read takes a BusinessID and must filter on it.
  A row owned by another business is reported as ErrNotFound.

ERRORS:
  Implementations return *NotFoundError (ErrNotFound) for missing rows,
  ErrConflict for unique/foreign key violations and wrap everything else
  with Persistence().

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go:     SQLite (default)
  - store/postgres/postgres.go: PostgreSQL via pgx
  - ledger/store/memory.go:     In-memory for tests

SEE ALSO:
  - service.go: the only consumer
*/
package ledger

import (
	"context"
	"time"
)

// =============================================================================
// CHART OF ACCOUNTS
// =============================================================================

type AccountTypeStore interface {
	// CreateAccountType persists t and sets t.ID.
	CreateAccountType(ctx context.Context, t *AccountType) error
	GetAccountType(ctx context.Context, id AccountTypeID) (AccountType, error)
	ListAccountTypes(ctx context.Context) ([]AccountType, error)
	UpdateAccountType(ctx context.Context, t AccountType) error
	DeleteAccountType(ctx context.Context, id AccountTypeID) error

	// CountAccountsOfType counts accounts referencing the type across all businesses.
	CountAccountsOfType(ctx context.Context, id AccountTypeID) (int, error)
}

type AccountStore interface {
	// CreateAccount persists a and sets a.ID. Duplicate codes within a
	// business return ErrConflict.
	CreateAccount(ctx context.Context, a *Account) error

	// GetAccount returns the account with its Type populated.
	GetAccount(ctx context.Context, businessID BusinessID, id AccountID) (Account, error)

	// ListAccounts returns the business's accounts ordered by code.
	ListAccounts(ctx context.Context, businessID BusinessID) ([]Account, error)

	UpdateAccount(ctx context.Context, a Account) error
	DeleteAccount(ctx context.Context, businessID BusinessID, id AccountID) error

	// CountLinesForAccount counts journal lines referencing the account.
	CountLinesForAccount(ctx context.Context, businessID BusinessID, id AccountID) (int, error)
}

// =============================================================================
// JOURNAL
// =============================================================================

type JournalStore interface {
	// InsertEntry persists the header only and sets e.ID.
	InsertEntry(ctx context.Context, e *JournalEntry) error

	// InsertLine persists one line and sets l.ID. l.EntryID must be set.
	InsertLine(ctx context.Context, l *JournalLine) error

	// GetEntry returns the header with its lines ordered by line id.
	GetEntry(ctx context.Context, businessID BusinessID, id EntryID) (JournalEntry, error)

	// ListEntries returns entries (with lines) newest first.
	ListEntries(ctx context.Context, businessID BusinessID) ([]JournalEntry, error)

	// UpdateEntry updates date and description of the header.
	UpdateEntry(ctx context.Context, e JournalEntry) error

	// GetLine returns a line if its entry belongs to the business.
	GetLine(ctx context.Context, businessID BusinessID, id LineID) (JournalLine, error)

	UpdateLine(ctx context.Context, l JournalLine) error
	DeleteLine(ctx context.Context, id LineID) error

	// DeleteLines removes every line of an entry.
	DeleteLines(ctx context.Context, entryID EntryID) error

	// DeleteEntry removes the header and cascades to its lines.
	DeleteEntry(ctx context.Context, businessID BusinessID, id EntryID) error
}

// =============================================================================
// POSTINGS - Read side for reports
// =============================================================================

type PostingStore interface {
	// AccountPostings returns every line of the account ordered by line id.
	AccountPostings(ctx context.Context, businessID BusinessID, id AccountID) ([]Posting, error)

	// PostingsInRange returns every line whose entry date is in [from, to],
	// ordered by line id.
	PostingsInRange(ctx context.Context, businessID BusinessID, from, to time.Time) ([]Posting, error)
}

// Store is the full persistence surface used by Service.
type Store interface {
	AccountTypeStore
	AccountStore
	JournalStore
	PostingStore
}

// =============================================================================
// TRANSACTIONAL STORE - For atomic operations across multiple writes
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, the transaction is rolled back; a failed rollback
	// is reported as *RollbackError.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
