package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/bookkeeping/ledger"
)

func TestMapError(t *testing.T) {
	assert.NoError(t, mapError("op", nil))

	unique := &pgconn.PgError{Code: "23505", ConstraintName: "accounts_business_id_code_key"}
	assert.True(t, ledger.IsConflict(mapError("create account", unique)))

	fk := &pgconn.PgError{Code: "23503"}
	assert.True(t, ledger.IsConflict(mapError("delete account", fk)))

	other := errors.New("connection refused")
	err := mapError("list accounts", other)
	assert.True(t, errors.Is(err, ledger.ErrPersistence))
	assert.False(t, ledger.IsConflict(err))
}

func TestRequireRow(t *testing.T) {
	assert.True(t, ledger.IsNotFound(requireRow(pgconn.NewCommandTag("DELETE 0"), "account", 7)))
	assert.NoError(t, requireRow(pgconn.NewCommandTag("UPDATE 1"), "account", 7))
}

// The round trip needs a live server: set LEDGER_TEST_DATABASE_URL.
func TestStore_RoundTrip(t *testing.T) {
	url := os.Getenv("LEDGER_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("LEDGER_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	store, err := New(ctx, url, PoolOptions{MaxConns: 4, ConnectRetries: 1})
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Reset(ctx))

	svc := ledger.NewService(store)
	asset, err := svc.CreateAccountType(ctx, ledger.AccountType{Name: "Asset", ReportPosition: ledger.BalanceSheet, NormalBalance: ledger.NormalDebit})
	require.NoError(t, err)
	revenue, err := svc.CreateAccountType(ctx, ledger.AccountType{Name: "Revenue", ReportPosition: ledger.IncomeStatement, NormalBalance: ledger.NormalCredit})
	require.NoError(t, err)
	cash, err := svc.CreateAccount(ctx, ledger.Account{BusinessID: 1, Code: "1000", Name: "Cash", AccountTypeID: asset.ID})
	require.NoError(t, err)
	sales, err := svc.CreateAccount(ctx, ledger.Account{BusinessID: 1, Code: "4000", Name: "Sales", AccountTypeID: revenue.ID})
	require.NoError(t, err)

	e, err := svc.CreateJournal(ctx, ledger.JournalEntry{
		BusinessID: 1,
		Date:       ledger.Date(2025, time.June, 1),
		Lines: []ledger.JournalLine{
			{AccountID: cash.ID, Debit: decimal.RequireFromString("19.99")},
			{AccountID: sales.ID, Credit: decimal.RequireFromString("19.99")},
		},
	})
	require.NoError(t, err)

	got, err := svc.GetJournal(ctx, 1, e.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.Date(2025, time.June, 1), got.Date.UTC())
	require.Len(t, got.Lines, 2)
	assert.True(t, decimal.RequireFromString("19.99").Equal(got.Lines[0].Debit))

	assert.True(t, ledger.IsConflict(svc.DeleteAccount(ctx, 1, cash.ID)))

	pl, err := svc.ProfitAndLoss(ctx, 1, ledger.Date(2025, time.June, 1), ledger.Date(2025, time.June, 30))
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("19.99").Equal(pl.NetProfit))
}
