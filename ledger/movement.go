package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// MovementLine is one general-ledger row of an account.
type MovementLine struct {
	EntryID     EntryID
	LineID      LineID
	Date        time.Time
	Description string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Balance     decimal.Decimal
}

// AccountMovement is the general-ledger view of one account.
type AccountMovement struct {
	Account Account
	Lines   []MovementLine

	// Closing is the opening balance plus every line, signed by polarity.
	Closing decimal.Decimal
}

// BuildMovement assembles the ledger view from the account's postings.
// Rows are ordered by entry date then line id; each row carries the running
// balance at its own line id. An account without postings yields no rows.
func BuildMovement(account Account, postings []Posting) AccountMovement {
	normal := account.Type.NormalBalance
	running := RunningBalances(postings, normal)

	lines := make([]MovementLine, len(postings))
	for i, p := range postings {
		lines[i] = MovementLine{
			EntryID:     p.EntryID,
			LineID:      p.LineID,
			Date:        p.Date,
			Description: p.Description,
			Debit:       p.Debit,
			Credit:      p.Credit,
			Balance:     running[i],
		}
	}
	sort.SliceStable(lines, func(i, j int) bool {
		if !lines[i].Date.Equal(lines[j].Date) {
			return lines[i].Date.Before(lines[j].Date)
		}
		return lines[i].LineID < lines[j].LineID
	})

	return AccountMovement{
		Account: account,
		Lines:   lines,
		Closing: OpeningBalance(account).Add(Movement(postings, normal)),
	}
}

// OpeningBalance nets the initial balances on the account's normal side.
func OpeningBalance(account Account) decimal.Decimal {
	return SignedAmount(account.Type.NormalBalance, account.InitialDebitBalance, account.InitialCreditBalance)
}
