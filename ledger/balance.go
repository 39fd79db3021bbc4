/*
balance.go - Running balance calculation

PURPOSE:
  Derives an account's balance from its journal lines. Nothing is stored:
  the balance at any point is a fold over the lines up to that point.

POLARITY:
  The account type's normal balance picks the sign convention:
    Debit-normal  (assets, expenses):            + debit - credit
    Credit-normal (liabilities, equity, revenue): + credit - debit

ORDERING:
  Lines are ordered by line id, not by entry date. Several lines can share
  a date, and the id is the only total order the store guarantees.

SEE ALSO:
  - movement.go: running balance per row
  - final.go: final balance formula
*/
package ledger

import (
	"sort"

	"github.com/shopspring/decimal"
)

// SignedAmount returns the contribution of one line to a balance of the
// given polarity.
func SignedAmount(normal NormalBalance, debit, credit decimal.Decimal) decimal.Decimal {
	if normal == NormalCredit {
		return credit.Sub(debit)
	}
	return debit.Sub(credit)
}

// BalanceAt folds every posting with LineID <= asOf.
// An empty slice yields zero. Postings must all belong to one account.
func BalanceAt(postings []Posting, asOf LineID, normal NormalBalance) decimal.Decimal {
	balance := decimal.Zero
	for _, p := range postings {
		if p.LineID > asOf {
			continue
		}
		balance = balance.Add(SignedAmount(normal, p.Debit, p.Credit))
	}
	return balance
}

// RunningBalances returns, for each posting, the balance immediately after
// it in line-id order. The result is indexed like the input, which may be
// in any order.
func RunningBalances(postings []Posting, normal NormalBalance) []decimal.Decimal {
	order := make([]int, len(postings))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return postings[order[a]].LineID < postings[order[b]].LineID
	})

	out := make([]decimal.Decimal, len(postings))
	balance := decimal.Zero
	for _, i := range order {
		balance = balance.Add(SignedAmount(normal, postings[i].Debit, postings[i].Credit))
		out[i] = balance
	}
	return out
}

// Movement sums the signed contribution of every posting.
func Movement(postings []Posting, normal NormalBalance) decimal.Decimal {
	move := decimal.Zero
	for _, p := range postings {
		move = move.Add(SignedAmount(normal, p.Debit, p.Credit))
	}
	return move
}
