package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/warp/bookkeeping/ledger"
	"github.com/warp/bookkeeping/ledger/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	require.Truef(t, d(want).Equal(got), "want %s, got %s %v", want, got.String(), msgAndArgs)
}

func debit(acct ledger.Account, amount string) ledger.JournalLine {
	return ledger.JournalLine{AccountID: acct.ID, Debit: d(amount)}
}

func credit(acct ledger.Account, amount string) ledger.JournalLine {
	return ledger.JournalLine{AccountID: acct.ID, Credit: d(amount)}
}

// chart is a small retail chart of accounts for one business.
type chart struct {
	svc *ledger.Service
	biz ledger.BusinessID

	types map[string]ledger.AccountType

	cash, capital, payable ledger.Account

	sales, cogs, rent, interest, bankFees ledger.Account
}

func newTestService(ts ledger.TxStore) *ledger.Service {
	if ts == nil {
		ts = store.NewMemory()
	}
	return ledger.NewService(ts)
}

func createTypes(t *testing.T, svc *ledger.Service) map[string]ledger.AccountType {
	t.Helper()
	ctx := context.Background()
	defs := []ledger.AccountType{
		{Name: "Asset", ReportPosition: ledger.BalanceSheet, NormalBalance: ledger.NormalDebit},
		{Name: "Liability", ReportPosition: ledger.BalanceSheet, NormalBalance: ledger.NormalCredit},
		{Name: "Equity", ReportPosition: ledger.BalanceSheet, NormalBalance: ledger.NormalCredit},
		{Name: "Revenue", ReportPosition: ledger.IncomeStatement, NormalBalance: ledger.NormalCredit},
		{Name: "Cost of Revenue", ReportPosition: ledger.IncomeStatement, NormalBalance: ledger.NormalDebit},
		{Name: "Expense", ReportPosition: ledger.IncomeStatement, NormalBalance: ledger.NormalDebit},
		{Name: "Other Revenue", ReportPosition: ledger.IncomeStatement, NormalBalance: ledger.NormalCredit},
		{Name: "Other Expense", ReportPosition: ledger.IncomeStatement, NormalBalance: ledger.NormalDebit},
	}
	out := make(map[string]ledger.AccountType, len(defs))
	for _, s := range defs {
		created, err := svc.CreateAccountType(ctx, s)
		require.NoError(t, err)
		out[s.Name] = created
	}
	return out
}

func createAccount(t *testing.T, svc *ledger.Service, biz ledger.BusinessID, typ ledger.AccountType, code, name string) ledger.Account {
	t.Helper()
	a, err := svc.CreateAccount(context.Background(), ledger.Account{
		BusinessID:    biz,
		Code:          code,
		Name:          name,
		AccountTypeID: typ.ID,
	})
	require.NoError(t, err)
	return a
}

func newChart(t *testing.T, ts ledger.TxStore) *chart {
	t.Helper()
	svc := newTestService(ts)
	c := &chart{svc: svc, biz: 1, types: createTypes(t, svc)}
	c.cash = createAccount(t, svc, c.biz, c.types["Asset"], "1000", "Cash")
	c.payable = createAccount(t, svc, c.biz, c.types["Liability"], "2000", "Accounts Payable")
	c.capital = createAccount(t, svc, c.biz, c.types["Equity"], "3000", "Owner Capital")
	c.sales = createAccount(t, svc, c.biz, c.types["Revenue"], "4000", "Sales")
	c.cogs = createAccount(t, svc, c.biz, c.types["Cost of Revenue"], "5000", "Cost of Goods Sold")
	c.rent = createAccount(t, svc, c.biz, c.types["Expense"], "6000", "Rent")
	c.interest = createAccount(t, svc, c.biz, c.types["Other Revenue"], "7000", "Interest Income")
	c.bankFees = createAccount(t, svc, c.biz, c.types["Other Expense"], "8000", "Bank Fees")
	return c
}

func (c *chart) post(t *testing.T, date time.Time, desc string, lines ...ledger.JournalLine) ledger.JournalEntry {
	t.Helper()
	e, err := c.svc.CreateJournal(context.Background(), ledger.JournalEntry{
		BusinessID:  c.biz,
		Date:        date,
		Description: desc,
		Lines:       lines,
	})
	require.NoError(t, err)
	return e
}
