/*
pnl.go - Profit and loss aggregation

PURPOSE:
  Rolls journal lines dated within [start, end] into the five income
  statement categories and composes the profit figures.

CATEGORIES (matched on account type name, case-insensitive):
  Revenue          credit - debit
  Cost of Revenue  debit - credit
  Expense          debit - credit
  Other Revenue    credit - debit
  Other Expense    debit - credit

COMPOSITION:
  grossProfit     = revenue - costOfRevenue
  operatingProfit = grossProfit - expense
  otherNet        = otherRevenue - otherExpense
  netProfit       = operatingProfit + otherNet

OMISSION:
  An account with no lines in range does not appear in its section. An
  account whose lines net to zero does (it had activity).

SEE ALSO:
  - service.go: ProfitAndLoss loads the postings and account types
*/
package ledger

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Category is an income statement section.
type Category string

const (
	CategoryRevenue       Category = "revenue"
	CategoryCostOfRevenue Category = "cost_of_revenue"
	CategoryExpense       Category = "expense"
	CategoryOtherRevenue  Category = "other_revenue"
	CategoryOtherExpense  Category = "other_expense"
)

// Categories lists the sections in statement order.
var Categories = []Category{
	CategoryRevenue,
	CategoryCostOfRevenue,
	CategoryExpense,
	CategoryOtherRevenue,
	CategoryOtherExpense,
}

var categoryLabels = map[Category]string{
	CategoryRevenue:       "Revenue",
	CategoryCostOfRevenue: "Cost of Revenue",
	CategoryExpense:       "Expense",
	CategoryOtherRevenue:  "Other Revenue",
	CategoryOtherExpense:  "Other Expense",
}

// account type names (normalized) -> category
var categoryAliases = map[string]Category{
	"revenue":               CategoryRevenue,
	"pendapatan":            CategoryRevenue,
	"cost of revenue":       CategoryCostOfRevenue,
	"cost of goods sold":    CategoryCostOfRevenue,
	"cogs":                  CategoryCostOfRevenue,
	"harga pokok penjualan": CategoryCostOfRevenue,
	"expense":               CategoryExpense,
	"beban":                 CategoryExpense,
	"other revenue":         CategoryOtherRevenue,
	"pendapatan lain":       CategoryOtherRevenue,
	"other expense":         CategoryOtherExpense,
	"beban lain":            CategoryOtherExpense,
}

// CategoryOf maps an account type name onto a P&L category.
func CategoryOf(typeName string) (Category, bool) {
	key := strings.ToLower(strings.Join(strings.Fields(strings.ReplaceAll(typeName, "-", " ")), " "))
	c, ok := categoryAliases[key]
	return c, ok
}

func (c Category) Label() string { return categoryLabels[c] }

func (c Category) revenueLike() bool {
	return c == CategoryRevenue || c == CategoryOtherRevenue
}

// signed returns the category's contribution of one line.
func (c Category) signed(debit, credit decimal.Decimal) decimal.Decimal {
	if c.revenueLike() {
		return credit.Sub(debit)
	}
	return debit.Sub(credit)
}

// PLAccount is one account's subtotal within a section.
type PLAccount struct {
	AccountID AccountID
	Code      string
	Name      string
	Subtotal  decimal.Decimal
}

// PLSection is one category's detail list and total.
type PLSection struct {
	Category Category
	Label    string
	Accounts []PLAccount
	Total    decimal.Decimal
}

// ProfitAndLoss is the full statement for a date range.
type ProfitAndLoss struct {
	Start time.Time
	End   time.Time

	Revenue       PLSection
	CostOfRevenue PLSection
	Expense       PLSection
	OtherRevenue  PLSection
	OtherExpense  PLSection

	GrossProfit     decimal.Decimal
	OperatingProfit decimal.Decimal
	OtherNet        decimal.Decimal
	NetProfit       decimal.Decimal
}

// Section returns the section for c.
func (p *ProfitAndLoss) Section(c Category) *PLSection {
	switch c {
	case CategoryRevenue:
		return &p.Revenue
	case CategoryCostOfRevenue:
		return &p.CostOfRevenue
	case CategoryExpense:
		return &p.Expense
	case CategoryOtherRevenue:
		return &p.OtherRevenue
	case CategoryOtherExpense:
		return &p.OtherExpense
	}
	return nil
}

// ValidateRange requires end to be strictly after start.
func ValidateRange(start, end time.Time) error {
	if !end.After(start) {
		return ErrInvalidRange
	}
	return nil
}

// BuildProfitAndLoss aggregates postings in a single pass. Postings outside
// [start, end] and postings of accounts whose type maps to no category are
// ignored.
func BuildProfitAndLoss(start, end time.Time, types []AccountType, postings []Posting) (ProfitAndLoss, error) {
	if err := ValidateRange(start, end); err != nil {
		return ProfitAndLoss{}, err
	}
	start, end = truncateDay(start), truncateDay(end)

	categoryOfType := make(map[AccountTypeID]Category, len(types))
	for _, t := range types {
		if c, ok := CategoryOf(t.Name); ok {
			categoryOfType[t.ID] = c
		}
	}

	pl := ProfitAndLoss{Start: start, End: end}
	for _, c := range Categories {
		*pl.Section(c) = PLSection{Category: c, Label: c.Label(), Accounts: []PLAccount{}}
	}

	type bucket struct {
		category Category
		row      PLAccount
	}
	buckets := make(map[AccountID]*bucket)
	for _, p := range postings {
		day := truncateDay(p.Date)
		if day.Before(start) || day.After(end) {
			continue
		}
		c, ok := categoryOfType[p.AccountTypeID]
		if !ok {
			continue
		}
		b, seen := buckets[p.AccountID]
		if !seen {
			b = &bucket{category: c, row: PLAccount{AccountID: p.AccountID, Code: p.AccountCode, Name: p.AccountName}}
			buckets[p.AccountID] = b
		}
		b.row.Subtotal = b.row.Subtotal.Add(c.signed(p.Debit, p.Credit))
	}

	for _, b := range buckets {
		s := pl.Section(b.category)
		s.Accounts = append(s.Accounts, b.row)
		s.Total = s.Total.Add(b.row.Subtotal)
	}
	for _, c := range Categories {
		s := pl.Section(c)
		sort.Slice(s.Accounts, func(i, j int) bool { return s.Accounts[i].Code < s.Accounts[j].Code })
	}

	pl.GrossProfit = pl.Revenue.Total.Sub(pl.CostOfRevenue.Total)
	pl.OperatingProfit = pl.GrossProfit.Sub(pl.Expense.Total)
	pl.OtherNet = pl.OtherRevenue.Total.Sub(pl.OtherExpense.Total)
	pl.NetProfit = pl.OperatingProfit.Add(pl.OtherNet)
	return pl, nil
}
