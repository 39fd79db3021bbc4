package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/bookkeeping/ledger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

type fixture struct {
	svc              *ledger.Service
	cash, sales, fee ledger.Account
}

func newFixture(t *testing.T, store *Store) fixture {
	t.Helper()
	ctx := context.Background()
	svc := ledger.NewService(store)

	asset, err := svc.CreateAccountType(ctx, ledger.AccountType{Name: "Asset", ReportPosition: ledger.BalanceSheet, NormalBalance: ledger.NormalDebit})
	require.NoError(t, err)
	revenue, err := svc.CreateAccountType(ctx, ledger.AccountType{Name: "Revenue", ReportPosition: ledger.IncomeStatement, NormalBalance: ledger.NormalCredit})
	require.NoError(t, err)
	expense, err := svc.CreateAccountType(ctx, ledger.AccountType{Name: "Expense", ReportPosition: ledger.IncomeStatement, NormalBalance: ledger.NormalDebit})
	require.NoError(t, err)

	mk := func(typ ledger.AccountType, code, name, opening string) ledger.Account {
		a, err := svc.CreateAccount(ctx, ledger.Account{
			BusinessID: 1, Code: code, Name: name, AccountTypeID: typ.ID,
			InitialDebitBalance: decimal.RequireFromString(opening),
		})
		require.NoError(t, err)
		return a
	}
	return fixture{
		svc:   svc,
		cash:  mk(asset, "1000", "Cash", "250.75"),
		sales: mk(revenue, "4000", "Sales", "0"),
		fee:   mk(expense, "6100", "Card Fees", "0"),
	}
}

func amt(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestStore_JournalRoundTrip(t *testing.T) {
	// GIVEN: A fresh database with a small chart
	store := newTestStore(t)
	f := newFixture(t, store)
	ctx := context.Background()

	// WHEN: A three-line entry with cents is written
	created, err := f.svc.CreateJournal(ctx, ledger.JournalEntry{
		BusinessID:  1,
		Date:        ledger.Date(2025, time.March, 14),
		Description: "card sale",
		Lines: []ledger.JournalLine{
			{AccountID: f.cash.ID, Debit: amt("97.10")},
			{AccountID: f.fee.ID, Debit: amt("2.90")},
			{AccountID: f.sales.ID, Credit: amt("100.00")},
		},
	})
	require.NoError(t, err)

	// THEN: It reads back exactly
	got, err := f.svc.GetJournal(ctx, 1, created.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.Date(2025, time.March, 14), got.Date)
	assert.Equal(t, "card sale", got.Description)
	require.Len(t, got.Lines, 3)
	assert.True(t, amt("97.1").Equal(got.Lines[0].Debit))
	assert.True(t, got.Lines[0].ID < got.Lines[1].ID)

	cash, err := f.svc.GetAccount(ctx, 1, f.cash.ID)
	require.NoError(t, err)
	assert.True(t, amt("250.75").Equal(cash.InitialDebitBalance))
	assert.Equal(t, ledger.NormalDebit, cash.Type.NormalBalance)

	list, err := f.svc.ListJournals(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Len(t, list[0].Lines, 3)
}

func TestStore_Reports(t *testing.T) {
	store := newTestStore(t)
	f := newFixture(t, store)
	ctx := context.Background()

	post := func(day int, lines ...ledger.JournalLine) {
		_, err := f.svc.CreateJournal(ctx, ledger.JournalEntry{BusinessID: 1, Date: ledger.Date(2025, time.April, day), Lines: lines})
		require.NoError(t, err)
	}
	post(1, ledger.JournalLine{AccountID: f.cash.ID, Debit: amt("100")}, ledger.JournalLine{AccountID: f.sales.ID, Credit: amt("100")})
	post(2, ledger.JournalLine{AccountID: f.fee.ID, Debit: amt("30")}, ledger.JournalLine{AccountID: f.cash.ID, Credit: amt("30")})
	post(30, ledger.JournalLine{AccountID: f.cash.ID, Debit: amt("5")}, ledger.JournalLine{AccountID: f.sales.ID, Credit: amt("5")})

	mv, err := f.svc.Movement(ctx, 1, f.cash.ID)
	require.NoError(t, err)
	require.Len(t, mv.Lines, 3)
	assert.True(t, amt("70").Equal(mv.Lines[1].Balance))
	assert.True(t, amt("325.75").Equal(mv.Closing))

	pl, err := f.svc.ProfitAndLoss(ctx, 1, ledger.Date(2025, time.April, 1), ledger.Date(2025, time.April, 2))
	require.NoError(t, err)
	assert.True(t, amt("100").Equal(pl.Revenue.Total))
	assert.True(t, amt("70").Equal(pl.NetProfit))

	tb, err := f.svc.TrialBalance(ctx, 1, ledger.Date(2025, time.April, 30))
	require.NoError(t, err)
	assert.True(t, amt("325.75").Equal(tb.Rows[0].Debit))
}

func TestStore_Conflicts(t *testing.T) {
	store := newTestStore(t)
	f := newFixture(t, store)
	ctx := context.Background()

	// Duplicate code in the same business
	dup := f.cash
	dup.ID = 0
	err := store.CreateAccount(ctx, &dup)
	assert.True(t, ledger.IsConflict(err))

	// Account referenced by a line cannot be deleted, even bypassing the service
	_, err = f.svc.CreateJournal(ctx, ledger.JournalEntry{
		BusinessID: 1, Date: ledger.Date(2025, time.May, 1),
		Lines: []ledger.JournalLine{{AccountID: f.cash.ID, Debit: amt("1")}, {AccountID: f.sales.ID, Credit: amt("1")}},
	})
	require.NoError(t, err)
	assert.True(t, ledger.IsConflict(store.DeleteAccount(ctx, 1, f.cash.ID)))
	assert.True(t, ledger.IsConflict(f.svc.DeleteAccount(ctx, 1, f.cash.ID)))

	// Missing rows
	_, err = store.GetAccount(ctx, 2, f.cash.ID)
	assert.True(t, ledger.IsNotFound(err))
	assert.True(t, ledger.IsNotFound(store.DeleteLine(ctx, 999)))
}

func TestStore_DeleteEntryCascades(t *testing.T) {
	store := newTestStore(t)
	f := newFixture(t, store)
	ctx := context.Background()

	e, err := f.svc.CreateJournal(ctx, ledger.JournalEntry{
		BusinessID: 1, Date: ledger.Date(2025, time.May, 1),
		Lines: []ledger.JournalLine{{AccountID: f.cash.ID, Debit: amt("1")}, {AccountID: f.sales.ID, Credit: amt("1")}},
	})
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteJournal(ctx, 1, e.ID))

	n, err := store.CountLinesForAccount(ctx, 1, f.cash.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, f.svc.DeleteAccount(ctx, 1, f.cash.ID))
}

func TestStore_WithTxRollsBack(t *testing.T) {
	store := newTestStore(t)
	f := newFixture(t, store)
	ctx := context.Background()

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(tx ledger.Store) error {
		e := &ledger.JournalEntry{BusinessID: 1, Date: ledger.Date(2025, time.May, 1)}
		require.NoError(t, tx.InsertEntry(ctx, e))
		require.NoError(t, tx.InsertLine(ctx, &ledger.JournalLine{EntryID: e.ID, AccountID: f.cash.ID, Debit: amt("9")}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	entries, err := store.ListEntries(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_InsertLineUnknownAccount(t *testing.T) {
	store := newTestStore(t)
	newFixture(t, store)
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx ledger.Store) error {
		e := &ledger.JournalEntry{BusinessID: 1, Date: ledger.Date(2025, time.May, 1)}
		if err := tx.InsertEntry(ctx, e); err != nil {
			return err
		}
		return tx.InsertLine(ctx, &ledger.JournalLine{EntryID: e.ID, AccountID: 404, Debit: amt("1")})
	})
	assert.True(t, ledger.IsConflict(err))
}

func TestStore_Reset(t *testing.T) {
	store := newTestStore(t)
	newFixture(t, store)
	ctx := context.Background()

	require.NoError(t, store.Reset(ctx))
	types, err := store.ListAccountTypes(ctx)
	require.NoError(t, err)
	assert.Empty(t, types)
}
