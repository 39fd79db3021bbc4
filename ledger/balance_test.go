package ledger_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/bookkeeping/ledger"
)

func postings(amounts ...[2]string) []ledger.Posting {
	out := make([]ledger.Posting, len(amounts))
	for i, a := range amounts {
		out[i] = ledger.Posting{
			LineID:  ledger.LineID(i + 1),
			EntryID: ledger.EntryID(i + 1),
			Date:    ledger.Date(2025, time.January, 1+i),
			Debit:   d(a[0]),
			Credit:  d(a[1]),
		}
	}
	return out
}

func TestSignedAmount_Polarity(t *testing.T) {
	requireDec(t, "70", ledger.SignedAmount(ledger.NormalDebit, d("100"), d("30")))
	requireDec(t, "-70", ledger.SignedAmount(ledger.NormalCredit, d("100"), d("30")))
}

func TestBalanceAt_Empty(t *testing.T) {
	requireDec(t, "0", ledger.BalanceAt(nil, 10, ledger.NormalDebit))
}

func TestBalanceAt_StopsAtLine(t *testing.T) {
	ps := postings([2]string{"100", "0"}, [2]string{"0", "30"}, [2]string{"5.25", "0"})

	requireDec(t, "100", ledger.BalanceAt(ps, 1, ledger.NormalDebit))
	requireDec(t, "70", ledger.BalanceAt(ps, 2, ledger.NormalDebit))
	requireDec(t, "75.25", ledger.BalanceAt(ps, 3, ledger.NormalDebit))
	requireDec(t, "-75.25", ledger.BalanceAt(ps, 3, ledger.NormalCredit))
}

func TestBalanceAt_IgnoresInputOrder(t *testing.T) {
	ps := postings([2]string{"100", "0"}, [2]string{"0", "30"}, [2]string{"10", "0"})
	reversed := []ledger.Posting{ps[2], ps[1], ps[0]}

	requireDec(t, "70", ledger.BalanceAt(reversed, 2, ledger.NormalDebit))
}

// Consecutive balances differ by exactly the signed amount of the later line.
func TestBalanceAt_DifferenceIsLineAmount(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for _, normal := range []ledger.NormalBalance{ledger.NormalDebit, ledger.NormalCredit} {
		ps := randomPostings(rng, 50)
		for i := 1; i < len(ps); i++ {
			prev := ledger.BalanceAt(ps, ps[i-1].LineID, normal)
			cur := ledger.BalanceAt(ps, ps[i].LineID, normal)
			want := ledger.SignedAmount(normal, ps[i].Debit, ps[i].Credit)
			require.Truef(t, cur.Sub(prev).Equal(want), "line %d: %s - %s != %s", ps[i].LineID, cur, prev, want)
		}
	}
}

func TestRunningBalances_MatchNaiveFold(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 20; round++ {
		ps := randomPostings(rng, 1+rng.Intn(40))
		rng.Shuffle(len(ps), func(i, j int) { ps[i], ps[j] = ps[j], ps[i] })

		running := ledger.RunningBalances(ps, ledger.NormalDebit)
		require.Len(t, running, len(ps))
		for i, p := range ps {
			naive := decimal.Zero
			for _, q := range ps {
				if q.LineID <= p.LineID {
					naive = naive.Add(q.Debit).Sub(q.Credit)
				}
			}
			require.Truef(t, naive.Equal(running[i]), "round %d line %d: naive %s, running %s", round, p.LineID, naive, running[i])
		}
	}
}

func TestMovement_SumsSignedAmounts(t *testing.T) {
	ps := postings([2]string{"100", "0"}, [2]string{"0", "30"})
	requireDec(t, "70", ledger.Movement(ps, ledger.NormalDebit))
	requireDec(t, "-70", ledger.Movement(ps, ledger.NormalCredit))
	assert.True(t, ledger.Movement(nil, ledger.NormalDebit).IsZero())
}

// randomPostings returns n one-sided postings with cent amounts, in line-id order.
func randomPostings(rng *rand.Rand, n int) []ledger.Posting {
	out := make([]ledger.Posting, n)
	for i := range out {
		amount := decimal.New(int64(1+rng.Intn(100000)), -2)
		p := ledger.Posting{
			LineID: ledger.LineID(i + 1),
			Date:   ledger.Date(2025, time.Month(1+rng.Intn(12)), 1+rng.Intn(28)),
		}
		if rng.Intn(2) == 0 {
			p.Debit = amount
		} else {
			p.Credit = amount
		}
		out[i] = p
	}
	return out
}
