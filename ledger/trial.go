package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// TrialBalanceRow is one account's position as of a date. Exactly one of
// Debit/Credit is nonzero unless the account nets to zero.
type TrialBalanceRow struct {
	AccountID AccountID
	Code      string
	Name      string
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// TrialBalance lists every account with its net debit or credit position.
type TrialBalance struct {
	AsOf        time.Time
	Rows        []TrialBalanceRow
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
}

// Balanced reports whether the two columns agree.
func (tb TrialBalance) Balanced() bool {
	return tb.TotalDebit.Equal(tb.TotalCredit)
}

// BuildTrialBalance nets opening balances and postings dated on or before
// asOf per account. Accounts are listed by code, including those without
// activity.
func BuildTrialBalance(asOf time.Time, accounts []Account, postings []Posting) TrialBalance {
	asOf = truncateDay(asOf)

	net := make(map[AccountID]decimal.Decimal, len(accounts))
	for _, a := range accounts {
		net[a.ID] = a.InitialDebitBalance.Sub(a.InitialCreditBalance)
	}
	for _, p := range postings {
		if truncateDay(p.Date).After(asOf) {
			continue
		}
		if _, ok := net[p.AccountID]; !ok {
			continue
		}
		net[p.AccountID] = net[p.AccountID].Add(p.Debit).Sub(p.Credit)
	}

	tb := TrialBalance{AsOf: asOf, Rows: make([]TrialBalanceRow, 0, len(accounts))}
	for _, a := range accounts {
		row := TrialBalanceRow{AccountID: a.ID, Code: a.Code, Name: a.Name}
		if n := net[a.ID]; n.IsNegative() {
			row.Credit = n.Neg()
		} else {
			row.Debit = n
		}
		tb.TotalDebit = tb.TotalDebit.Add(row.Debit)
		tb.TotalCredit = tb.TotalCredit.Add(row.Credit)
		tb.Rows = append(tb.Rows, row)
	}
	sort.Slice(tb.Rows, func(i, j int) bool { return tb.Rows[i].Code < tb.Rows[j].Code })
	return tb
}
