/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the ledger model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

AMOUNTS:
  decimal.Decimal marshals as a JSON string ("97.10" -> "97.1") and
  unmarshals from either a string or a number. Clients should send strings
  to avoid float rounding on their side.

DATES:
  "YYYY-MM-DD" strings in both directions.

ENVELOPE:
  Every response body is an Envelope:
    {"status": "success", "message": "...", "data": ...}
    {"status": "error",   "message": "...", "error": {"code": "...", "details": ...}}

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/bookkeeping/ledger"
)

// =============================================================================
// ENVELOPE
// =============================================================================

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Envelope wraps every response.
type Envelope struct {
	Status  string     `json:"status"`
	Message string     `json:"message"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// ErrorBody carries a machine-readable code and optional details.
type ErrorBody struct {
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CHART OF ACCOUNTS
// =============================================================================

type AccountTypeDTO struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	ReportPosition string `json:"report_position"`
	NormalBalance  string `json:"normal_balance"`
}

type AccountTypeRequest struct {
	Name           string `json:"name"`
	ReportPosition string `json:"report_position"`
	NormalBalance  string `json:"normal_balance"`
}

func (r AccountTypeRequest) toAccountType(id ledger.AccountTypeID) (ledger.AccountType, error) {
	pos, err := ledger.ParseReportPosition(r.ReportPosition)
	if err != nil {
		return ledger.AccountType{}, err
	}
	normal, err := ledger.ParseNormalBalance(r.NormalBalance)
	if err != nil {
		return ledger.AccountType{}, err
	}
	return ledger.AccountType{ID: id, Name: r.Name, ReportPosition: pos, NormalBalance: normal}, nil
}

type AccountDTO struct {
	ID                   int64           `json:"id"`
	BusinessID           int64           `json:"business_id"`
	Code                 string          `json:"code"`
	Name                 string          `json:"name"`
	AccountTypeID        int64           `json:"account_type_id"`
	AccountType          *AccountTypeDTO `json:"account_type,omitempty"`
	InitialDebitBalance  decimal.Decimal `json:"initial_debit_balance"`
	InitialCreditBalance decimal.Decimal `json:"initial_credit_balance"`
}

type AccountRequest struct {
	Code                 string          `json:"code"`
	Name                 string          `json:"name"`
	AccountTypeID        int64           `json:"account_type_id"`
	InitialDebitBalance  decimal.Decimal `json:"initial_debit_balance"`
	InitialCreditBalance decimal.Decimal `json:"initial_credit_balance"`
}

func (r AccountRequest) toAccount(businessID ledger.BusinessID, id ledger.AccountID) ledger.Account {
	return ledger.Account{
		ID:                   id,
		BusinessID:           businessID,
		Code:                 r.Code,
		Name:                 r.Name,
		AccountTypeID:        ledger.AccountTypeID(r.AccountTypeID),
		InitialDebitBalance:  r.InitialDebitBalance,
		InitialCreditBalance: r.InitialCreditBalance,
	}
}

// =============================================================================
// JOURNAL
// =============================================================================

type JournalLineDTO struct {
	ID             int64           `json:"id"`
	JournalEntryID int64           `json:"journal_entry_id"`
	AccountID      int64           `json:"account_id"`
	Debit          decimal.Decimal `json:"debit"`
	Credit         decimal.Decimal `json:"credit"`
}

type JournalDTO struct {
	ID          int64            `json:"id"`
	BusinessID  int64            `json:"business_id"`
	Date        string           `json:"date"`
	Description string           `json:"description"`
	TotalDebit  decimal.Decimal  `json:"total_debit"`
	TotalCredit decimal.Decimal  `json:"total_credit"`
	Lines       []JournalLineDTO `json:"lines"`
}

type JournalLineRequest struct {
	AccountID int64           `json:"account_id"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
}

func (r JournalLineRequest) toLine() ledger.JournalLine {
	return ledger.JournalLine{AccountID: ledger.AccountID(r.AccountID), Debit: r.Debit, Credit: r.Credit}
}

func toLines(reqs []JournalLineRequest) []ledger.JournalLine {
	lines := make([]ledger.JournalLine, len(reqs))
	for i, r := range reqs {
		lines[i] = r.toLine()
	}
	return lines
}

// CreateJournalRequest is the body of POST .../journals.
type CreateJournalRequest struct {
	Date        string               `json:"date"`
	Description string               `json:"description"`
	Lines       []JournalLineRequest `json:"lines"`
}

// UpdateJournalRequest is the body of PUT .../journals/{journalID}.
type UpdateJournalRequest struct {
	Date        string `json:"date"`
	Description string `json:"description"`
}

// ReplaceLinesRequest is the body of PUT .../journals/{journalID}/lines.
type ReplaceLinesRequest struct {
	Lines []JournalLineRequest `json:"lines"`
}

// =============================================================================
// REPORTS
// =============================================================================

type MovementLineDTO struct {
	JournalEntryID int64           `json:"journal_entry_id"`
	LineID         int64           `json:"line_id"`
	Date           string          `json:"date"`
	Description    string          `json:"description"`
	Debit          decimal.Decimal `json:"debit"`
	Credit         decimal.Decimal `json:"credit"`
	Balance        decimal.Decimal `json:"balance"`
}

type MovementDTO struct {
	Account        AccountDTO        `json:"account"`
	Lines          []MovementLineDTO `json:"lines"`
	ClosingBalance decimal.Decimal   `json:"closing_balance"`
}

// LedgerDTO is the plain general-ledger listing of one account.
type LedgerDTO struct {
	AccountID      int64             `json:"account_id"`
	Lines          []MovementLineDTO `json:"lines"`
	ClosingBalance decimal.Decimal   `json:"closing_balance"`
}

type FinalBalanceDTO struct {
	AccountID     int64           `json:"account_id"`
	NormalBalance string          `json:"normal_balance"`
	Result        decimal.Decimal `json:"result"`
	Closing       decimal.Decimal `json:"closing"`
	Movement      decimal.Decimal `json:"movement"`
	TotalDebit    decimal.Decimal `json:"total_debit"`
	TotalCredit   decimal.Decimal `json:"total_credit"`
}

type BalanceAtDTO struct {
	AccountID int64           `json:"account_id"`
	AsOfLine  int64           `json:"as_of_line"`
	Balance   decimal.Decimal `json:"balance"`
}

type AccountReportDTO struct {
	AccountID      int64           `json:"account_id"`
	ReportPosition string          `json:"report_position"`
	Result         decimal.Decimal `json:"result"`
}

type PLAccountDTO struct {
	AccountID int64           `json:"account_id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type PLSectionDTO struct {
	Label    string          `json:"label"`
	Accounts []PLAccountDTO  `json:"accounts"`
	Total    decimal.Decimal `json:"total"`
}

type ProfitAndLossDTO struct {
	StartDate       string          `json:"start_date"`
	EndDate         string          `json:"end_date"`
	Revenue         PLSectionDTO    `json:"revenue"`
	CostOfRevenue   PLSectionDTO    `json:"cost_of_revenue"`
	Expense         PLSectionDTO    `json:"expense"`
	OtherRevenue    PLSectionDTO    `json:"other_revenue"`
	OtherExpense    PLSectionDTO    `json:"other_expense"`
	GrossProfit     decimal.Decimal `json:"gross_profit"`
	OperatingProfit decimal.Decimal `json:"operating_profit"`
	OtherNet        decimal.Decimal `json:"other_net"`
	NetProfit       decimal.Decimal `json:"net_profit"`
}

type TrialBalanceRowDTO struct {
	AccountID int64           `json:"account_id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
}

type TrialBalanceDTO struct {
	AsOf        string               `json:"as_of"`
	Rows        []TrialBalanceRowDTO `json:"rows"`
	TotalDebit  decimal.Decimal      `json:"total_debit"`
	TotalCredit decimal.Decimal      `json:"total_credit"`
	Balanced    bool                 `json:"balanced"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the body of POST /api/scenarios/load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toAccountTypeDTO(t ledger.AccountType) AccountTypeDTO {
	return AccountTypeDTO{
		ID:             int64(t.ID),
		Name:           t.Name,
		ReportPosition: string(t.ReportPosition),
		NormalBalance:  string(t.NormalBalance),
	}
}

func toAccountDTO(a ledger.Account) AccountDTO {
	dto := AccountDTO{
		ID:                   int64(a.ID),
		BusinessID:           int64(a.BusinessID),
		Code:                 a.Code,
		Name:                 a.Name,
		AccountTypeID:        int64(a.AccountTypeID),
		InitialDebitBalance:  a.InitialDebitBalance,
		InitialCreditBalance: a.InitialCreditBalance,
	}
	if a.Type.ID != 0 {
		t := toAccountTypeDTO(a.Type)
		dto.AccountType = &t
	}
	return dto
}

func toJournalDTO(e ledger.JournalEntry) JournalDTO {
	debit, credit := e.Totals()
	dto := JournalDTO{
		ID:          int64(e.ID),
		BusinessID:  int64(e.BusinessID),
		Date:        e.Date.Format(ledger.DateLayout),
		Description: e.Description,
		TotalDebit:  debit,
		TotalCredit: credit,
		Lines:       make([]JournalLineDTO, len(e.Lines)),
	}
	for i, l := range e.Lines {
		dto.Lines[i] = JournalLineDTO{
			ID:             int64(l.ID),
			JournalEntryID: int64(l.EntryID),
			AccountID:      int64(l.AccountID),
			Debit:          l.Debit,
			Credit:         l.Credit,
		}
	}
	return dto
}

func toMovementLineDTOs(lines []ledger.MovementLine) []MovementLineDTO {
	out := make([]MovementLineDTO, len(lines))
	for i, l := range lines {
		out[i] = MovementLineDTO{
			JournalEntryID: int64(l.EntryID),
			LineID:         int64(l.LineID),
			Date:           l.Date.Format(ledger.DateLayout),
			Description:    l.Description,
			Debit:          l.Debit,
			Credit:         l.Credit,
			Balance:        l.Balance,
		}
	}
	return out
}

func toPLSectionDTO(s ledger.PLSection) PLSectionDTO {
	dto := PLSectionDTO{Label: s.Label, Total: s.Total, Accounts: make([]PLAccountDTO, len(s.Accounts))}
	for i, a := range s.Accounts {
		dto.Accounts[i] = PLAccountDTO{AccountID: int64(a.AccountID), Code: a.Code, Name: a.Name, Subtotal: a.Subtotal}
	}
	return dto
}

func toProfitAndLossDTO(pl ledger.ProfitAndLoss) ProfitAndLossDTO {
	return ProfitAndLossDTO{
		StartDate:       pl.Start.Format(ledger.DateLayout),
		EndDate:         pl.End.Format(ledger.DateLayout),
		Revenue:         toPLSectionDTO(pl.Revenue),
		CostOfRevenue:   toPLSectionDTO(pl.CostOfRevenue),
		Expense:         toPLSectionDTO(pl.Expense),
		OtherRevenue:    toPLSectionDTO(pl.OtherRevenue),
		OtherExpense:    toPLSectionDTO(pl.OtherExpense),
		GrossProfit:     pl.GrossProfit,
		OperatingProfit: pl.OperatingProfit,
		OtherNet:        pl.OtherNet,
		NetProfit:       pl.NetProfit,
	}
}

func toTrialBalanceDTO(tb ledger.TrialBalance) TrialBalanceDTO {
	dto := TrialBalanceDTO{
		AsOf:        tb.AsOf.Format(ledger.DateLayout),
		Rows:        make([]TrialBalanceRowDTO, len(tb.Rows)),
		TotalDebit:  tb.TotalDebit,
		TotalCredit: tb.TotalCredit,
		Balanced:    tb.Balanced(),
	}
	for i, r := range tb.Rows {
		dto.Rows[i] = TrialBalanceRowDTO{AccountID: int64(r.AccountID), Code: r.Code, Name: r.Name, Debit: r.Debit, Credit: r.Credit}
	}
	return dto
}

// parseDateField parses a required date and names the field on failure.
func parseDateField(field, value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, &ledger.ValidationError{Field: field, Message: "is required"}
	}
	t, err := ledger.ParseDate(value)
	if err != nil {
		return time.Time{}, &ledger.ValidationError{Field: field, Message: "must be YYYY-MM-DD"}
	}
	return t, nil
}
