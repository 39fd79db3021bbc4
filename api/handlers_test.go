/*
handlers_test.go - HTTP tests for the ledger API

Tests for:
- Envelope shape and status mapping (400, 404, 409, 422)
- Journal create/read/edit through the router
- Account movement, balance and P&L endpoints
- Panic recovery
*/
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/bookkeeping/ledger"
	"github.com/warp/bookkeeping/store/sqlite"
)

type response struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

type testServer struct {
	t      *testing.T
	h      *Handler
	router http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := NewHandler(store)
	return &testServer{t: t, h: h, router: NewRouter(h, RouterOptions{Log: zerolog.Nop()})}
}

func (s *testServer) do(method, path string, body any) (int, response) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var resp response
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec.Code, resp
}

// mustDo asserts the status and decodes data into out.
func (s *testServer) mustDo(method, path string, body any, wantStatus int, out any) {
	s.t.Helper()
	status, resp := s.do(method, path, body)
	require.Equal(s.t, wantStatus, status, resp.Message)
	require.Equal(s.t, statusSuccess, resp.Status)
	if out != nil {
		require.NoError(s.t, json.Unmarshal(resp.Data, out))
	}
}

// seedChart creates cash, capital, sales and rent accounts for business 1.
func (s *testServer) seedChart() map[string]int64 {
	s.t.Helper()
	types := map[string]AccountTypeRequest{
		"Asset":   {Name: "Asset", ReportPosition: "BalanceSheet", NormalBalance: "Debit"},
		"Equity":  {Name: "Equity", ReportPosition: "BalanceSheet", NormalBalance: "Credit"},
		"Revenue": {Name: "Revenue", ReportPosition: "IncomeStatement", NormalBalance: "Credit"},
		"Expense": {Name: "Expense", ReportPosition: "IncomeStatement", NormalBalance: "Debit"},
	}
	typeIDs := map[string]int64{}
	for name, req := range types {
		var dto AccountTypeDTO
		s.mustDo(http.MethodPost, "/api/account-types", req, http.StatusCreated, &dto)
		typeIDs[name] = dto.ID
	}

	accounts := []struct{ key, code, name, typ string }{
		{"cash", "1000", "Cash", "Asset"},
		{"capital", "3000", "Capital", "Equity"},
		{"sales", "4000", "Sales", "Revenue"},
		{"rent", "6000", "Rent", "Expense"},
	}
	ids := map[string]int64{}
	for _, a := range accounts {
		var dto AccountDTO
		s.mustDo(http.MethodPost, "/api/businesses/1/accounts",
			AccountRequest{Code: a.code, Name: a.name, AccountTypeID: typeIDs[a.typ]},
			http.StatusCreated, &dto)
		ids[a.key] = dto.ID
	}
	return ids
}

func line(account int64, debit, credit string) map[string]any {
	l := map[string]any{"account_id": account}
	if debit != "" {
		l["debit"] = debit
	}
	if credit != "" {
		l["credit"] = credit
	}
	return l
}

func journal(date, desc string, lines ...map[string]any) map[string]any {
	return map[string]any{"date": date, "description": desc, "lines": lines}
}

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

// =============================================================================
// ENVELOPE AND STATUS MAPPING
// =============================================================================

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	status, resp := s.do(http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "success", resp.Status)
}

func TestCreateJournal_Balanced(t *testing.T) {
	// GIVEN: A small chart of accounts
	s := newTestServer(t)
	ids := s.seedChart()

	// WHEN: A balanced entry is posted
	var created JournalDTO
	s.mustDo(http.MethodPost, "/api/businesses/1/journals",
		journal("2025-01-01", "Owner investment", line(ids["cash"], "1000.00", ""), line(ids["capital"], "", "1000.00")),
		http.StatusCreated, &created)

	// THEN: Ids are assigned and totals match
	assert.NotZero(t, created.ID)
	assert.Equal(t, "2025-01-01", created.Date)
	require.Len(t, created.Lines, 2)
	assert.NotZero(t, created.Lines[0].ID)
	assertDec(t, "1000", created.TotalDebit)
	assertDec(t, "1000", created.TotalCredit)

	var got JournalDTO
	s.mustDo(http.MethodGet, "/api/businesses/1/journals/"+itoa(created.ID), nil, http.StatusOK, &got)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "Owner investment", got.Description)
}

func TestCreateJournal_Unbalanced(t *testing.T) {
	// GIVEN: A chart of accounts
	s := newTestServer(t)
	ids := s.seedChart()

	// WHEN: Debits and credits differ
	status, resp := s.do(http.MethodPost, "/api/businesses/1/journals",
		journal("2025-01-01", "bad", line(ids["cash"], "100", ""), line(ids["sales"], "", "90")))

	// THEN: 422 with both totals, nothing persisted
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "imbalance", resp.Error.Code)
	assert.Equal(t, "100", resp.Error.Details["total_debit"])
	assert.Equal(t, "90", resp.Error.Details["total_credit"])

	var list []JournalDTO
	s.mustDo(http.MethodGet, "/api/businesses/1/journals", nil, http.StatusOK, &list)
	assert.Empty(t, list)
}

func TestCreateJournal_ClientErrors(t *testing.T) {
	s := newTestServer(t)
	ids := s.seedChart()

	tests := []struct {
		name     string
		body     any
		wantCode string
	}{
		{"no lines", journal("2025-01-01", "empty"), "missing_lines"},
		{"missing date", journal("", "x", line(ids["cash"], "1", ""), line(ids["sales"], "", "1")), "validation_error"},
		{"bad date", journal("01/02/2025", "x", line(ids["cash"], "1", ""), line(ids["sales"], "", "1")), "validation_error"},
		{"negative amount", journal("2025-01-01", "x", line(ids["cash"], "-1", ""), line(ids["sales"], "", "-1")), "validation_error"},
		{"unknown account", journal("2025-01-01", "x", line(999, "1", ""), line(ids["sales"], "", "1")), "validation_error"},
		{"malformed json", "{not json", "validation_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := s.do(http.MethodPost, "/api/businesses/1/journals", tt.body)
			assert.Equal(t, http.StatusBadRequest, status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestNotFoundAndConflict(t *testing.T) {
	s := newTestServer(t)
	ids := s.seedChart()

	status, resp := s.do(http.MethodGet, "/api/businesses/1/accounts/999", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", resp.Error.Code)

	// Another business cannot see business 1's account
	status, _ = s.do(http.MethodGet, "/api/businesses/2/accounts/"+itoa(ids["cash"]), nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = s.do(http.MethodGet, "/api/businesses/abc/accounts", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	// Duplicate code in the same business
	status, resp = s.do(http.MethodPost, "/api/businesses/1/accounts", AccountRequest{Code: "1000", Name: "Cash again", AccountTypeID: 1})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "conflict", resp.Error.Code)

	// Account referenced by a line
	s.mustDo(http.MethodPost, "/api/businesses/1/journals",
		journal("2025-01-01", "x", line(ids["cash"], "5", ""), line(ids["sales"], "", "5")), http.StatusCreated, nil)
	status, _ = s.do(http.MethodDelete, "/api/businesses/1/accounts/"+itoa(ids["cash"]), nil)
	assert.Equal(t, http.StatusConflict, status)

	status, resp = s.do(http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "error", resp.Status)
}

// =============================================================================
// JOURNAL EDITS
// =============================================================================

func TestJournalLineEdits(t *testing.T) {
	// GIVEN: A posted two-line entry
	s := newTestServer(t)
	ids := s.seedChart()
	var created JournalDTO
	s.mustDo(http.MethodPost, "/api/businesses/1/journals",
		journal("2025-01-03", "sale", line(ids["cash"], "50", ""), line(ids["sales"], "", "50")),
		http.StatusCreated, &created)
	debitLine := created.Lines[0].ID

	// WHEN: A line change would unbalance the entry
	status, resp := s.do(http.MethodPut, "/api/businesses/1/journal-lines/"+itoa(debitLine), line(ids["cash"], "60", ""))
	// THEN: It is rejected
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "imbalance", resp.Error.Code)

	// WHEN: The line moves to another account with the same amount
	var updated JournalDTO
	s.mustDo(http.MethodPut, "/api/businesses/1/journal-lines/"+itoa(debitLine), line(ids["rent"], "50", ""), http.StatusOK, &updated)
	// THEN: The entry still balances
	assert.Equal(t, ids["rent"], updated.Lines[0].AccountID)

	// Deleting one side of a balanced entry is refused
	status, _ = s.do(http.MethodDelete, "/api/businesses/1/journal-lines/"+itoa(debitLine), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	// Replacing all lines at once works
	var replaced JournalDTO
	s.mustDo(http.MethodPut, "/api/businesses/1/journals/"+itoa(created.ID)+"/lines",
		map[string]any{"lines": []map[string]any{line(ids["cash"], "75", ""), line(ids["sales"], "", "75")}},
		http.StatusOK, &replaced)
	require.Len(t, replaced.Lines, 2)
	assertDec(t, "75", replaced.TotalDebit)

	// Header update keeps lines
	var header JournalDTO
	s.mustDo(http.MethodPut, "/api/businesses/1/journals/"+itoa(created.ID),
		map[string]any{"date": "2025-01-04", "description": "corrected sale"}, http.StatusOK, &header)
	assert.Equal(t, "2025-01-04", header.Date)
	assert.Len(t, header.Lines, 2)

	s.mustDo(http.MethodDelete, "/api/businesses/1/journals/"+itoa(created.ID), nil, http.StatusOK, nil)
	status, _ = s.do(http.MethodGet, "/api/businesses/1/journals/"+itoa(created.ID), nil)
	assert.Equal(t, http.StatusNotFound, status)
}

// =============================================================================
// REPORTS
// =============================================================================

func TestAccountReports(t *testing.T) {
	// GIVEN: Cash receives 100 then pays 30
	s := newTestServer(t)
	ids := s.seedChart()
	var first JournalDTO
	s.mustDo(http.MethodPost, "/api/businesses/1/journals",
		journal("2025-01-01", "sale", line(ids["cash"], "100", ""), line(ids["sales"], "", "100")), http.StatusCreated, &first)
	s.mustDo(http.MethodPost, "/api/businesses/1/journals",
		journal("2025-01-02", "rent", line(ids["rent"], "30", ""), line(ids["cash"], "", "30")), http.StatusCreated, nil)

	// WHEN/THEN: Movement shows running balances
	var mv MovementDTO
	s.mustDo(http.MethodGet, "/api/businesses/1/accounts/"+itoa(ids["cash"])+"/movement", nil, http.StatusOK, &mv)
	require.Len(t, mv.Lines, 2)
	assertDec(t, "100", mv.Lines[0].Balance)
	assertDec(t, "70", mv.Lines[1].Balance)
	assertDec(t, "70", mv.ClosingBalance)
	assert.Equal(t, "Cash", mv.Account.Name)

	var gl LedgerDTO
	s.mustDo(http.MethodGet, "/api/businesses/1/accounts/"+itoa(ids["cash"])+"/ledger", nil, http.StatusOK, &gl)
	assert.Len(t, gl.Lines, 2)

	var fb FinalBalanceDTO
	s.mustDo(http.MethodGet, "/api/businesses/1/accounts/"+itoa(ids["cash"])+"/balance", nil, http.StatusOK, &fb)
	assertDec(t, "40", fb.Result)
	assertDec(t, "70", fb.Closing)
	assert.Equal(t, "Debit", fb.NormalBalance)

	var at BalanceAtDTO
	s.mustDo(http.MethodGet, "/api/businesses/1/accounts/"+itoa(ids["cash"])+"/balance?as_of_line="+itoa(first.Lines[0].ID), nil, http.StatusOK, &at)
	assertDec(t, "100", at.Balance)

	status, _ := s.do(http.MethodGet, "/api/businesses/1/accounts/"+itoa(ids["cash"])+"/balance?as_of_line=x", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	var rep AccountReportDTO
	s.mustDo(http.MethodGet, "/api/businesses/1/accounts/"+itoa(ids["sales"])+"/report", nil, http.StatusOK, &rep)
	assert.Equal(t, "IncomeStatement", rep.ReportPosition)
}

func TestProfitAndLoss(t *testing.T) {
	s := newTestServer(t)
	ids := s.seedChart()
	s.mustDo(http.MethodPost, "/api/businesses/1/journals",
		journal("2025-01-05", "sale", line(ids["cash"], "500", ""), line(ids["sales"], "", "500")), http.StatusCreated, nil)
	s.mustDo(http.MethodPost, "/api/businesses/1/journals",
		journal("2025-01-06", "rent", line(ids["rent"], "120.50", ""), line(ids["cash"], "", "120.50")), http.StatusCreated, nil)

	var pl ProfitAndLossDTO
	s.mustDo(http.MethodGet, "/api/businesses/1/reports/profit-and-loss?start=2025-01-01&end=2025-01-31", nil, http.StatusOK, &pl)
	assertDec(t, "500", pl.Revenue.Total)
	assertDec(t, "120.5", pl.Expense.Total)
	assertDec(t, "379.5", pl.NetProfit)
	assert.NotNil(t, pl.CostOfRevenue.Accounts)

	// Same-day range is invalid
	status, resp := s.do(http.MethodGet, "/api/businesses/1/reports/profit-and-loss?start=2025-01-01&end=2025-01-01", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_range", resp.Error.Code)

	status, resp = s.do(http.MethodGet, "/api/businesses/1/reports/profit-and-loss?start=2025-01-01", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "end", resp.Error.Details["field"])

	var tb TrialBalanceDTO
	s.mustDo(http.MethodGet, "/api/businesses/1/reports/trial-balance?as_of=2025-01-31", nil, http.StatusOK, &tb)
	assert.True(t, tb.Balanced)
	assertDec(t, "500", tb.TotalDebit)
}

func TestStatusFor(t *testing.T) {
	inner := &ledger.ValidationError{Field: "x", Message: "bad"}
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", inner, http.StatusBadRequest, "validation_error"},
		{"imbalance", &ledger.ImbalanceError{Debit: decimal.NewFromInt(2), Credit: decimal.NewFromInt(1)}, http.StatusUnprocessableEntity, "imbalance"},
		{"not found", &ledger.NotFoundError{Entity: "account", ID: 1}, http.StatusNotFound, "not_found"},
		{"conflict", fmt.Errorf("create account: %w", ledger.ErrConflict), http.StatusConflict, "conflict"},
		{"persistence", ledger.Persistence("list", errors.New("disk")), http.StatusInternalServerError, "internal_error"},
		{"partial write", &ledger.PartialWriteError{EntryID: 1, Stage: "lines", RolledBack: true, Err: ledger.ErrConflict}, http.StatusInternalServerError, "partial_write"},
		{"rollback failed", &ledger.RollbackError{Err: inner, RollbackErr: errors.New("conn reset")}, http.StatusInternalServerError, "data_integrity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := statusFor(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, body.Code)
		})
	}
}

func TestRecoverer(t *testing.T) {
	// GIVEN: A route that panics
	r := NewRouter(newTestServer(t).h, RouterOptions{Log: zerolog.Nop()})
	r.Get("/boom", func(w http.ResponseWriter, r *http.Request) { panic("boom") })

	// WHEN: It is called
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	// THEN: A 500 envelope comes back and the router keeps serving
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Internal server error", resp.Message)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
