/*
Package ledger provides the double-entry bookkeeping engine.

PURPOSE:
  This package owns the accounting rules: what makes a journal entry
  balanced, how an account's running balance is derived from its ordered
  journal lines, and how account balances roll up into reports (movement,
  final balance, profit and loss, trial balance). Persistence is behind the
  Store interfaces in store.go; HTTP lives in the api package.

KEY CONCEPTS IN THIS FILE (types.go):
  - AccountType: category label + report position + normal balance
  - Account: chart-of-accounts row with opening balances
  - JournalEntry / JournalLine: the double-entry records
  - Posting: a journal line joined with its entry header (report input)

DESIGN PRINCIPLES:
  1. Precision: every amount is decimal.Decimal, never float64
  2. Type Safety: distinct ID types so an account id can't be passed as a line id
  3. Tenancy: every account and entry carries its BusinessID

SEE ALSO:
  - balance.go: running balance fold
  - journal.go: journal writer and invariants
  - pnl.go: profit and loss aggregation
*/
package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire and storage format for entry dates.
const DateLayout = "2006-01-02"

// =============================================================================
// IDENTIFIERS
// =============================================================================

type BusinessID int64
type AccountID int64
type AccountTypeID int64
type EntryID int64
type LineID int64

// =============================================================================
// ENUMERATIONS
// =============================================================================

// NormalBalance is the side on which an account customarily increases.
type NormalBalance string

const (
	NormalDebit  NormalBalance = "Debit"
	NormalCredit NormalBalance = "Credit"
)

// ParseNormalBalance accepts the canonical names plus the "Debet"/"Kredit"
// labels used by older charts of accounts.
func ParseNormalBalance(s string) (NormalBalance, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debit", "debet":
		return NormalDebit, nil
	case "credit", "kredit":
		return NormalCredit, nil
	}
	return "", &ValidationError{Field: "normal_balance", Message: fmt.Sprintf("must be Debit or Credit, got %q", s)}
}

func (n NormalBalance) Valid() bool {
	return n == NormalDebit || n == NormalCredit
}

// ReportPosition says which financial statement an account type belongs to.
type ReportPosition string

const (
	BalanceSheet    ReportPosition = "BalanceSheet"
	IncomeStatement ReportPosition = "IncomeStatement"
)

// ParseReportPosition accepts the canonical names plus "Neraca"/"Laba Rugi".
func ParseReportPosition(s string) (ReportPosition, error) {
	key := strings.ToLower(strings.Join(strings.Fields(s), ""))
	switch key {
	case "balancesheet", "neraca":
		return BalanceSheet, nil
	case "incomestatement", "labarugi", "profitandloss":
		return IncomeStatement, nil
	}
	return "", &ValidationError{Field: "report_position", Message: fmt.Sprintf("must be BalanceSheet or IncomeStatement, got %q", s)}
}

func (p ReportPosition) Valid() bool {
	return p == BalanceSheet || p == IncomeStatement
}

// =============================================================================
// CHART OF ACCOUNTS
// =============================================================================

// AccountType classifies accounts. Name doubles as the P&L category label.
type AccountType struct {
	ID             AccountTypeID
	Name           string
	ReportPosition ReportPosition
	NormalBalance  NormalBalance
}

// Account is a chart-of-accounts row. Type is populated by store reads.
type Account struct {
	ID                   AccountID
	BusinessID           BusinessID
	Code                 string
	Name                 string
	AccountTypeID        AccountTypeID
	InitialDebitBalance  decimal.Decimal
	InitialCreditBalance decimal.Decimal
	Type                 AccountType
}

// =============================================================================
// JOURNAL
// =============================================================================

// JournalEntry is a dated, balanced set of lines.
type JournalEntry struct {
	ID          EntryID
	BusinessID  BusinessID
	Date        time.Time
	Description string
	Lines       []JournalLine
}

// JournalLine is one side of a double entry. Exactly one of Debit/Credit is nonzero.
type JournalLine struct {
	ID        LineID
	EntryID   EntryID
	AccountID AccountID
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// Totals returns the summed debits and credits of the entry's lines.
func (e JournalEntry) Totals() (debit, credit decimal.Decimal) {
	return lineTotals(e.Lines)
}

func lineTotals(lines []JournalLine) (debit, credit decimal.Decimal) {
	for _, l := range lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	return debit, credit
}

// Posting is a journal line joined with its entry header and account.
// It is the unit every report folds over.
type Posting struct {
	LineID        LineID
	EntryID       EntryID
	Date          time.Time
	Description   string
	AccountID     AccountID
	AccountCode   string
	AccountName   string
	AccountTypeID AccountTypeID
	Debit         decimal.Decimal
	Credit        decimal.Decimal
}

// =============================================================================
// DATES
// =============================================================================

// Date returns midnight UTC of the given day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return t, nil
}

// truncateDay drops any time-of-day component.
func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return Date(y, m, d)
}
