/*
final.go - Final balance and per-account report figures

FORMULA:
  move = signed sum of every line (see balance.go)

  Debit-normal:  result = initialDebit  + move - initialCredit - totalCredit
  Credit-normal: result = initialCredit + move - initialDebit  - totalDebit

  The total term overlaps with move, so credits (or debits) are counted
  twice. This is the established figure consumers reconcile against; it is
  kept as is. Closing carries the plain opening + move figure alongside it.

ACCOUNT REPORT:
  The same arithmetic keyed on report position instead of normal balance:
    BalanceSheet:    initialDebit  + move - initialCredit - totalCredit
    IncomeStatement: initialCredit + move - initialDebit  - totalDebit
*/
package ledger

import "github.com/shopspring/decimal"

// FinalBalance is the result of ComputeFinalBalance.
type FinalBalance struct {
	AccountID     AccountID
	NormalBalance NormalBalance
	Result        decimal.Decimal
	Closing       decimal.Decimal
	Movement      decimal.Decimal
	TotalDebit    decimal.Decimal
	TotalCredit   decimal.Decimal
}

// ComputeFinalBalance applies the final balance formula to the account's postings.
func ComputeFinalBalance(account Account, postings []Posting) FinalBalance {
	normal := account.Type.NormalBalance
	move := Movement(postings, normal)
	totalDebit, totalCredit := postingTotals(postings)

	fb := FinalBalance{
		AccountID:     account.ID,
		NormalBalance: normal,
		Movement:      move,
		TotalDebit:    totalDebit,
		TotalCredit:   totalCredit,
		Closing:       OpeningBalance(account).Add(move),
	}
	switch normal {
	case NormalDebit:
		fb.Result = account.InitialDebitBalance.Add(move).Sub(account.InitialCreditBalance).Sub(totalCredit)
	case NormalCredit:
		fb.Result = account.InitialCreditBalance.Add(move).Sub(account.InitialDebitBalance).Sub(totalDebit)
	}
	return fb
}

// AccountReport is the per-account figure keyed on report position.
type AccountReport struct {
	AccountID      AccountID
	ReportPosition ReportPosition
	Result         decimal.Decimal
}

// ComputeAccountReport applies the report-position variant of the formula.
func ComputeAccountReport(account Account, postings []Posting) AccountReport {
	move := Movement(postings, account.Type.NormalBalance)
	totalDebit, totalCredit := postingTotals(postings)

	r := AccountReport{AccountID: account.ID, ReportPosition: account.Type.ReportPosition}
	switch account.Type.ReportPosition {
	case BalanceSheet:
		r.Result = account.InitialDebitBalance.Add(move).Sub(account.InitialCreditBalance).Sub(totalCredit)
	case IncomeStatement:
		r.Result = account.InitialCreditBalance.Add(move).Sub(account.InitialDebitBalance).Sub(totalDebit)
	}
	return r
}

func postingTotals(postings []Posting) (debit, credit decimal.Decimal) {
	for _, p := range postings {
		debit = debit.Add(p.Debit)
		credit = credit.Add(p.Credit)
	}
	return debit, credit
}
