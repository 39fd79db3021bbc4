package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/bookkeeping/ledger"
)

func seed(t *testing.T, m *Memory) (ledger.Account, ledger.Account) {
	t.Helper()
	ctx := context.Background()
	typ := &ledger.AccountType{Name: "Asset", ReportPosition: ledger.BalanceSheet, NormalBalance: ledger.NormalDebit}
	require.NoError(t, m.CreateAccountType(ctx, typ))

	cash := &ledger.Account{BusinessID: 1, Code: "1000", Name: "Cash", AccountTypeID: typ.ID}
	bank := &ledger.Account{BusinessID: 1, Code: "1100", Name: "Bank", AccountTypeID: typ.ID}
	require.NoError(t, m.CreateAccount(ctx, cash))
	require.NoError(t, m.CreateAccount(ctx, bank))
	return *cash, *bank
}

func TestMemory_WithTxRestoresOnError(t *testing.T) {
	m := NewMemory()
	cash, bank := seed(t, m)
	ctx := context.Background()

	boom := errors.New("boom")
	err := m.WithTx(ctx, func(tx ledger.Store) error {
		e := &ledger.JournalEntry{BusinessID: 1, Date: ledger.Date(2025, 1, 1)}
		require.NoError(t, tx.InsertEntry(ctx, e))
		require.NoError(t, tx.InsertLine(ctx, &ledger.JournalLine{EntryID: e.ID, AccountID: cash.ID, Debit: decimal.NewFromInt(5)}))
		require.NoError(t, tx.InsertLine(ctx, &ledger.JournalLine{EntryID: e.ID, AccountID: bank.ID, Credit: decimal.NewFromInt(5)}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	entries, err := m.ListEntries(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// Ids handed out inside the failed tx are reused
	e := &ledger.JournalEntry{BusinessID: 1, Date: ledger.Date(2025, 1, 2)}
	require.NoError(t, m.InsertEntry(ctx, e))
	assert.Equal(t, ledger.EntryID(1), e.ID)
}

func TestMemory_PostingsInRange(t *testing.T) {
	m := NewMemory()
	cash, bank := seed(t, m)
	ctx := context.Background()

	for day := 1; day <= 3; day++ {
		e := &ledger.JournalEntry{BusinessID: 1, Date: ledger.Date(2025, 1, day), Description: "transfer"}
		require.NoError(t, m.InsertEntry(ctx, e))
		require.NoError(t, m.InsertLine(ctx, &ledger.JournalLine{EntryID: e.ID, AccountID: cash.ID, Debit: decimal.NewFromInt(1)}))
		require.NoError(t, m.InsertLine(ctx, &ledger.JournalLine{EntryID: e.ID, AccountID: bank.ID, Credit: decimal.NewFromInt(1)}))
	}

	ps, err := m.PostingsInRange(ctx, 1, ledger.Date(2025, 1, 2), ledger.Date(2025, 1, 3))
	require.NoError(t, err)
	require.Len(t, ps, 4)
	assert.Equal(t, "1000", ps[0].AccountCode)
	assert.True(t, ps[0].LineID < ps[1].LineID)

	none, err := m.PostingsInRange(ctx, 2, ledger.Date(2025, 1, 1), ledger.Date(2025, 1, 3))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemory_DeleteEntryCascades(t *testing.T) {
	m := NewMemory()
	cash, _ := seed(t, m)
	ctx := context.Background()

	e := &ledger.JournalEntry{BusinessID: 1, Date: ledger.Date(2025, 1, 1)}
	require.NoError(t, m.InsertEntry(ctx, e))
	require.NoError(t, m.InsertLine(ctx, &ledger.JournalLine{EntryID: e.ID, AccountID: cash.ID, Debit: decimal.NewFromInt(1)}))

	n, err := m.CountLinesForAccount(ctx, 1, cash.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, m.DeleteEntry(ctx, 1, e.ID))
	n, err = m.CountLinesForAccount(ctx, 1, cash.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemory_ConcurrentReads(t *testing.T) {
	m := NewMemory()
	seed(t, m)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			accounts, err := m.ListAccounts(ctx, 1)
			assert.NoError(t, err)
			assert.Len(t, accounts, 2)
		}()
	}
	wg.Wait()
}
