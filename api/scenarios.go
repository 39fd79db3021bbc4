/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Provides pre-built scenarios that populate the database with a chart of
  accounts and posted journals. Everything goes through ledger.Service, so
  seeded data obeys the same invariants as API writes.

AVAILABLE SCENARIOS:
  retail-shop:      One month of trading for a small shop, every P&L section used
  opening-balances: Accounts carried over with opening balances, few postings
  multi-business:   Two businesses sharing account types with clashing codes

HOW SCENARIOS WORK:
  1. Reset database (clear all data)
  2. Create the standard account types
  3. Create accounts per business
  4. Post balanced journals

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "retail-shop"}

NOTE:
  Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler and envelope helpers
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/bookkeeping/ledger"
	"github.com/warp/bookkeeping/logger"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ScenarioDTO
	load func(ctx context.Context, svc *ledger.Service) error
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "retail-shop",
			Name:        "Retail Shop",
			Description: "January trading for business 1: capital, stock, sales, rent, wages, interest and bank fees",
		},
		load: loadRetailShop,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "opening-balances",
			Name:        "Opening Balances",
			Description: "Business 1 migrated from another system with opening balances on its balance sheet accounts",
		},
		load: loadOpeningBalances,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "multi-business",
			Name:        "Multiple Businesses",
			Description: "Businesses 1 and 2 using the same account codes with separate books",
		},
		load: loadMultiBusiness,
	},
}

func findScenario(id string) (scenario, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return scenario{}, false
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		dtos[i] = s.ScenarioDTO
	}
	writeData(w, http.StatusOK, "Scenarios retrieved", dtos)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeData(w, http.StatusOK, "No scenario loaded", nil)
		return
	}
	s, _ := findScenario(current)
	writeData(w, http.StatusOK, "Current scenario", s.ScenarioDTO)
}

// LoadScenario resets the store and seeds a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	s, ok := findScenario(strings.TrimSpace(req.ScenarioID))
	if !ok {
		writeError(w, r, &ledger.ValidationError{Field: "scenario_id", Message: fmt.Sprintf("unknown scenario %q", req.ScenarioID)})
		return
	}

	ctx := r.Context()
	h.mu.Lock()
	defer h.mu.Unlock()

	h.currentScenario = ""
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, r, ledger.Persistence("reset store", err))
		return
	}
	if err := s.load(ctx, h.Ledger); err != nil {
		writeError(w, r, fmt.Errorf("load scenario %s: %w", s.ID, err))
		return
	}
	h.currentScenario = s.ID

	log := logger.FromContext(ctx)
	log.Info().Str("scenario", s.ID).Msg("scenario loaded")
	writeData(w, http.StatusOK, fmt.Sprintf("Scenario %q loaded", s.Name), s.ScenarioDTO)
}

// =============================================================================
// SEEDING
// =============================================================================

// seeder records the first error and turns later calls into no-ops, so
// loaders read as a flat list of postings.
type seeder struct {
	ctx      context.Context
	svc      *ledger.Service
	types    map[string]ledger.AccountType
	accounts map[ledger.BusinessID]map[string]ledger.AccountID
	err      error
}

func newSeeder(ctx context.Context, svc *ledger.Service) *seeder {
	s := &seeder{
		ctx:      ctx,
		svc:      svc,
		types:    make(map[string]ledger.AccountType),
		accounts: make(map[ledger.BusinessID]map[string]ledger.AccountID),
	}
	s.standardTypes()
	return s
}

func (s *seeder) standardTypes() {
	for _, t := range []ledger.AccountType{
		{Name: "Asset", ReportPosition: ledger.BalanceSheet, NormalBalance: ledger.NormalDebit},
		{Name: "Liability", ReportPosition: ledger.BalanceSheet, NormalBalance: ledger.NormalCredit},
		{Name: "Equity", ReportPosition: ledger.BalanceSheet, NormalBalance: ledger.NormalCredit},
		{Name: "Revenue", ReportPosition: ledger.IncomeStatement, NormalBalance: ledger.NormalCredit},
		{Name: "Cost of Revenue", ReportPosition: ledger.IncomeStatement, NormalBalance: ledger.NormalDebit},
		{Name: "Expense", ReportPosition: ledger.IncomeStatement, NormalBalance: ledger.NormalDebit},
		{Name: "Other Revenue", ReportPosition: ledger.IncomeStatement, NormalBalance: ledger.NormalCredit},
		{Name: "Other Expense", ReportPosition: ledger.IncomeStatement, NormalBalance: ledger.NormalDebit},
	} {
		if s.err != nil {
			return
		}
		created, err := s.svc.CreateAccountType(s.ctx, t)
		if err != nil {
			s.err = fmt.Errorf("account type %s: %w", t.Name, err)
			return
		}
		s.types[t.Name] = created
	}
}

// account creates an account; opening is a signed amount on the
// normal-balance side of its type.
func (s *seeder) account(biz ledger.BusinessID, code, name, typeName, opening string) {
	if s.err != nil {
		return
	}
	typ := s.types[typeName]
	a := ledger.Account{BusinessID: biz, Code: code, Name: name, AccountTypeID: typ.ID}
	if opening != "" {
		amt := decimal.RequireFromString(opening)
		if typ.NormalBalance == ledger.NormalCredit {
			a.InitialCreditBalance = amt
		} else {
			a.InitialDebitBalance = amt
		}
	}
	created, err := s.svc.CreateAccount(s.ctx, a)
	if err != nil {
		s.err = fmt.Errorf("account %s: %w", code, err)
		return
	}
	if s.accounts[biz] == nil {
		s.accounts[biz] = make(map[string]ledger.AccountID)
	}
	s.accounts[biz][code] = created.ID
}

type seedLine struct {
	code   string
	debit  string
	credit string
}

func dr(code, amt string) seedLine { return seedLine{code: code, debit: amt} }
func cr(code, amt string) seedLine { return seedLine{code: code, credit: amt} }

func (s *seeder) journal(biz ledger.BusinessID, date, desc string, lines ...seedLine) {
	if s.err != nil {
		return
	}
	d, err := ledger.ParseDate(date)
	if err != nil {
		s.err = err
		return
	}
	entry := ledger.JournalEntry{BusinessID: biz, Date: d, Description: desc}
	for _, l := range lines {
		line := ledger.JournalLine{AccountID: s.accounts[biz][l.code]}
		if l.debit != "" {
			line.Debit = decimal.RequireFromString(l.debit)
		}
		if l.credit != "" {
			line.Credit = decimal.RequireFromString(l.credit)
		}
		entry.Lines = append(entry.Lines, line)
	}
	if _, err := s.svc.CreateJournal(s.ctx, entry); err != nil {
		s.err = fmt.Errorf("journal %q: %w", desc, err)
	}
}

// =============================================================================
// LOADERS
// =============================================================================

func retailChart(s *seeder, biz ledger.BusinessID) {
	s.account(biz, "1000", "Cash", "Asset", "")
	s.account(biz, "1100", "Inventory", "Asset", "")
	s.account(biz, "2000", "Accounts Payable", "Liability", "")
	s.account(biz, "3000", "Owner Capital", "Equity", "")
	s.account(biz, "4000", "Sales", "Revenue", "")
	s.account(biz, "5000", "Cost of Goods Sold", "Cost of Revenue", "")
	s.account(biz, "6000", "Rent", "Expense", "")
	s.account(biz, "6100", "Wages", "Expense", "")
	s.account(biz, "7000", "Interest Income", "Other Revenue", "")
	s.account(biz, "8000", "Bank Fees", "Other Expense", "")
}

func loadRetailShop(ctx context.Context, svc *ledger.Service) error {
	s := newSeeder(ctx, svc)
	retailChart(s, 1)

	s.journal(1, "2025-01-02", "Owner investment", dr("1000", "10000"), cr("3000", "10000"))
	s.journal(1, "2025-01-05", "Stock purchased on credit", dr("1100", "4000"), cr("2000", "4000"))
	s.journal(1, "2025-01-10", "Cash sales",
		dr("1000", "2500"), cr("4000", "2500"),
		dr("5000", "1200"), cr("1100", "1200"))
	s.journal(1, "2025-01-15", "January rent", dr("6000", "800"), cr("1000", "800"))
	s.journal(1, "2025-01-20", "Part payment to supplier", dr("2000", "2000"), cr("1000", "2000"))
	s.journal(1, "2025-01-24", "Cash sales",
		dr("1000", "1850.50"), cr("4000", "1850.50"),
		dr("5000", "905.25"), cr("1100", "905.25"))
	s.journal(1, "2025-01-28", "Wages", dr("6100", "600"), cr("1000", "600"))
	s.journal(1, "2025-01-31", "Bank interest", dr("1000", "15.20"), cr("7000", "15.20"))
	s.journal(1, "2025-01-31", "Bank charges", dr("8000", "9.80"), cr("1000", "9.80"))
	return s.err
}

func loadOpeningBalances(ctx context.Context, svc *ledger.Service) error {
	s := newSeeder(ctx, svc)
	s.account(1, "1000", "Cash", "Asset", "5000")
	s.account(1, "1200", "Equipment", "Asset", "12000")
	s.account(1, "2100", "Bank Loan", "Liability", "7000")
	s.account(1, "3000", "Retained Earnings", "Equity", "10000")
	s.account(1, "4000", "Consulting Revenue", "Revenue", "")
	s.account(1, "6000", "Office Expense", "Expense", "")

	s.journal(1, "2025-02-03", "Consulting invoice paid", dr("1000", "3200"), cr("4000", "3200"))
	s.journal(1, "2025-02-10", "Office supplies", dr("6000", "145.60"), cr("1000", "145.60"))
	s.journal(1, "2025-02-28", "Loan repayment", dr("2100", "500"), cr("1000", "500"))
	return s.err
}

func loadMultiBusiness(ctx context.Context, svc *ledger.Service) error {
	s := newSeeder(ctx, svc)
	retailChart(s, 1)
	retailChart(s, 2)

	s.journal(1, "2025-03-01", "Owner investment", dr("1000", "5000"), cr("3000", "5000"))
	s.journal(1, "2025-03-12", "Cash sales", dr("1000", "750"), cr("4000", "750"))
	s.journal(2, "2025-03-01", "Owner investment", dr("1000", "20000"), cr("3000", "20000"))
	s.journal(2, "2025-03-05", "Rent", dr("6000", "1500"), cr("1000", "1500"))
	s.journal(2, "2025-03-20", "Cash sales", dr("1000", "4200"), cr("4000", "4200"))
	return s.err
}
