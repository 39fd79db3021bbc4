/*
handlers.go - HTTP API handlers for the bookkeeping ledger

PURPOSE:
  Exposes the ledger engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to ledger.Service.

ENDPOINTS:
  Account types (global):
    GET    /api/account-types
    POST   /api/account-types
    GET    /api/account-types/{id}
    PUT    /api/account-types/{id}
    DELETE /api/account-types/{id}

  Accounts (per business):
    GET    /api/businesses/{businessID}/accounts
    POST   /api/businesses/{businessID}/accounts
    GET    .../accounts/{accountID}
    PUT    .../accounts/{accountID}
    DELETE .../accounts/{accountID}
    GET    .../accounts/{accountID}/movement
    GET    .../accounts/{accountID}/ledger
    GET    .../accounts/{accountID}/balance[?as_of_line=N]
    GET    .../accounts/{accountID}/report

  Journal (per business):
    GET    .../journals
    POST   .../journals
    GET    .../journals/{journalID}
    PUT    .../journals/{journalID}
    DELETE .../journals/{journalID}
    PUT    .../journals/{journalID}/lines
    PUT    .../journal-lines/{lineID}
    DELETE .../journal-lines/{lineID}

  Reports (per business):
    GET    .../reports/profit-and-loss?start=YYYY-MM-DD&end=YYYY-MM-DD
    GET    .../reports/trial-balance[?as_of=YYYY-MM-DD]

ERROR HANDLING:
  Errors are returned in the envelope with an HTTP status from statusFor:
  - 400: Validation errors, missing lines, invalid range
  - 404: Resource not found
  - 409: Conflict (duplicate code, entity still referenced)
  - 422: Unbalanced journal entry
  - 500: Store failures; details are logged, never returned

SECURITY NOTE:
  No authentication or authorization. The business id in the path is
  trusted as given.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/warp/bookkeeping/ledger"
	"github.com/warp/bookkeeping/logger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is what the API needs from a persistence backend. Both
// store/sqlite and store/postgres satisfy it.
type Store interface {
	ledger.TxStore
	Reset(ctx context.Context) error
	Ping(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store  Store
	Ledger *ledger.Service

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler with the given store.
func NewHandler(store Store) *Handler {
	return &Handler{
		Store:  store,
		Ledger: ledger.NewService(store),
	}
}

// =============================================================================
// HEALTH
// =============================================================================

// Health reports whether the store is reachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("health check failed")
		writeEnvelope(w, http.StatusServiceUnavailable, Envelope{
			Status:  statusError,
			Message: "Store unavailable",
			Error:   &ErrorBody{Code: "unavailable"},
		})
		return
	}
	writeData(w, http.StatusOK, "OK", map[string]string{"store": "ok"})
}

// =============================================================================
// ACCOUNT TYPES
// =============================================================================

func (h *Handler) ListAccountTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.Ledger.ListAccountTypes(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	dtos := make([]AccountTypeDTO, len(types))
	for i, t := range types {
		dtos[i] = toAccountTypeDTO(t)
	}
	writeData(w, http.StatusOK, "Account types retrieved", dtos)
}

func (h *Handler) GetAccountType(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := h.Ledger.GetAccountType(r.Context(), ledger.AccountTypeID(id))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Account type retrieved", toAccountTypeDTO(t))
}

func (h *Handler) CreateAccountType(w http.ResponseWriter, r *http.Request) {
	var req AccountTypeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := req.toAccountType(0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	created, err := h.Ledger.CreateAccountType(r.Context(), t)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "Account type created", toAccountTypeDTO(created))
}

func (h *Handler) UpdateAccountType(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req AccountTypeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := req.toAccountType(ledger.AccountTypeID(id))
	if err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := h.Ledger.UpdateAccountType(r.Context(), t)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Account type updated", toAccountTypeDTO(updated))
}

func (h *Handler) DeleteAccountType(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Ledger.DeleteAccountType(r.Context(), ledger.AccountTypeID(id)); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Account type deleted", nil)
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.Ledger.ListAccounts(r.Context(), businessFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	dtos := make([]AccountDTO, len(accounts))
	for i, a := range accounts {
		dtos[i] = toAccountDTO(a)
	}
	writeData(w, http.StatusOK, "Accounts retrieved", dtos)
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "accountID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.Ledger.GetAccount(r.Context(), businessFrom(r.Context()), ledger.AccountID(id))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Account retrieved", toAccountDTO(a))
}

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req AccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := h.Ledger.CreateAccount(r.Context(), req.toAccount(businessFrom(r.Context()), 0))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "Account created", toAccountDTO(created))
}

func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "accountID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req AccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := h.Ledger.UpdateAccount(r.Context(), req.toAccount(businessFrom(r.Context()), ledger.AccountID(id)))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Account updated", toAccountDTO(updated))
}

func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "accountID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Ledger.DeleteAccount(r.Context(), businessFrom(r.Context()), ledger.AccountID(id)); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Account deleted", nil)
}

// =============================================================================
// ACCOUNT REPORTS
// =============================================================================

// GetAccountMovement returns the account summary and its lines with running balances.
func (h *Handler) GetAccountMovement(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "accountID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	mv, err := h.Ledger.Movement(r.Context(), businessFrom(r.Context()), ledger.AccountID(id))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Account movement retrieved", MovementDTO{
		Account:        toAccountDTO(mv.Account),
		Lines:          toMovementLineDTOs(mv.Lines),
		ClosingBalance: mv.Closing,
	})
}

// GetLedger returns the general-ledger rows of one account without the summary.
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "accountID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	mv, err := h.Ledger.Movement(r.Context(), businessFrom(r.Context()), ledger.AccountID(id))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "General ledger retrieved", LedgerDTO{
		AccountID:      id,
		Lines:          toMovementLineDTOs(mv.Lines),
		ClosingBalance: mv.Closing,
	})
}

// GetBalance returns the final balance, or the running balance at a line
// when as_of_line is given.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "accountID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx := r.Context()
	biz := businessFrom(ctx)

	if raw := r.URL.Query().Get("as_of_line"); raw != "" {
		line, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || line <= 0 {
			writeError(w, r, &ledger.ValidationError{Field: "as_of_line", Message: "must be a positive integer"})
			return
		}
		bal, err := h.Ledger.BalanceAt(ctx, biz, ledger.AccountID(id), ledger.LineID(line))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, "Balance retrieved", BalanceAtDTO{AccountID: id, AsOfLine: line, Balance: bal})
		return
	}

	fb, err := h.Ledger.FinalBalance(ctx, biz, ledger.AccountID(id))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Final balance retrieved", FinalBalanceDTO{
		AccountID:     int64(fb.AccountID),
		NormalBalance: string(fb.NormalBalance),
		Result:        fb.Result,
		Closing:       fb.Closing,
		Movement:      fb.Movement,
		TotalDebit:    fb.TotalDebit,
		TotalCredit:   fb.TotalCredit,
	})
}

func (h *Handler) GetAccountReport(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "accountID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	rep, err := h.Ledger.AccountReport(r.Context(), businessFrom(r.Context()), ledger.AccountID(id))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Account report retrieved", AccountReportDTO{
		AccountID:      int64(rep.AccountID),
		ReportPosition: string(rep.ReportPosition),
		Result:         rep.Result,
	})
}

// =============================================================================
// JOURNAL
// =============================================================================

func (h *Handler) ListJournals(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Ledger.ListJournals(r.Context(), businessFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	dtos := make([]JournalDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toJournalDTO(e)
	}
	writeData(w, http.StatusOK, "Journals retrieved", dtos)
}

func (h *Handler) GetJournal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "journalID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	e, err := h.Ledger.GetJournal(r.Context(), businessFrom(r.Context()), ledger.EntryID(id))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Journal retrieved", toJournalDTO(e))
}

func (h *Handler) CreateJournal(w http.ResponseWriter, r *http.Request) {
	var req CreateJournalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	date, err := parseDateField("date", req.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}

	created, err := h.Ledger.CreateJournal(r.Context(), ledger.JournalEntry{
		BusinessID:  businessFrom(r.Context()),
		Date:        date,
		Description: strings.TrimSpace(req.Description),
		Lines:       toLines(req.Lines),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "Journal created", toJournalDTO(created))
}

func (h *Handler) UpdateJournal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "journalID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req UpdateJournalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	date, err := parseDateField("date", req.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := h.Ledger.UpdateJournalEntry(r.Context(), ledger.JournalEntry{
		ID:          ledger.EntryID(id),
		BusinessID:  businessFrom(r.Context()),
		Date:        date,
		Description: strings.TrimSpace(req.Description),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Journal updated", toJournalDTO(updated))
}

func (h *Handler) DeleteJournal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "journalID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Ledger.DeleteJournal(r.Context(), businessFrom(r.Context()), ledger.EntryID(id)); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Journal deleted", nil)
}

// ReplaceJournalLines swaps every line of an entry in one transaction.
func (h *Handler) ReplaceJournalLines(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "journalID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req ReplaceLinesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := h.Ledger.ReplaceJournalLines(r.Context(), businessFrom(r.Context()), ledger.EntryID(id), toLines(req.Lines))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Journal lines replaced", toJournalDTO(updated))
}

func (h *Handler) UpdateJournalLine(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "lineID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req JournalLineRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	line := req.toLine()
	line.ID = ledger.LineID(id)
	updated, err := h.Ledger.UpdateJournalLine(r.Context(), businessFrom(r.Context()), line)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Journal line updated", toJournalDTO(updated))
}

func (h *Handler) DeleteJournalLine(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "lineID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Ledger.DeleteJournalLine(r.Context(), businessFrom(r.Context()), ledger.LineID(id)); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Journal line deleted", nil)
}

// =============================================================================
// BUSINESS REPORTS
// =============================================================================

func (h *Handler) GetProfitAndLoss(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := parseDateField("start", q.Get("start"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	end, err := parseDateField("end", q.Get("end"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	pl, err := h.Ledger.ProfitAndLoss(r.Context(), businessFrom(r.Context()), start, end)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Profit and loss retrieved", toProfitAndLossDTO(pl))
}

// GetTrialBalance defaults as_of to today (UTC).
func (h *Handler) GetTrialBalance(w http.ResponseWriter, r *http.Request) {
	asOf := time.Now().UTC()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		var err error
		if asOf, err = parseDateField("as_of", raw); err != nil {
			writeError(w, r, err)
			return
		}
	}
	tb, err := h.Ledger.TrialBalance(r.Context(), businessFrom(r.Context()), asOf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Trial balance retrieved", toTrialBalanceDTO(tb))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeEnvelope(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env)
}

func writeData(w http.ResponseWriter, status int, message string, data any) {
	writeEnvelope(w, status, Envelope{Status: statusSuccess, Message: message, Data: data})
}

// writeError maps err onto a status and envelope. Server-side failures are
// logged with the request logger and answered with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := statusFor(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		log := logger.FromContext(r.Context())
		if errors.Is(err, ledger.ErrDataIntegrity) {
			log.Error().Err(err).Msg("data integrity failure; manual reconciliation required")
		} else {
			log.Error().Err(err).Msg("request failed")
		}
		message = "Internal server error"
	}
	writeEnvelope(w, status, Envelope{Status: statusError, Message: message, Error: &body})
}

// statusFor classifies an error returned by the ledger service. A failed
// rollback or partial write outranks whatever caused it.
func statusFor(err error) (int, ErrorBody) {
	var imb *ledger.ImbalanceError
	var ve *ledger.ValidationError

	switch {
	case errors.Is(err, ledger.ErrDataIntegrity):
		return http.StatusInternalServerError, ErrorBody{Code: "data_integrity"}
	case errors.Is(err, ledger.ErrPartialWrite):
		return http.StatusInternalServerError, ErrorBody{Code: "partial_write"}
	case errors.As(err, &imb):
		return http.StatusUnprocessableEntity, ErrorBody{
			Code:    "imbalance",
			Details: map[string]string{"total_debit": imb.Debit.String(), "total_credit": imb.Credit.String()},
		}
	case errors.As(err, &ve):
		return http.StatusBadRequest, ErrorBody{Code: "validation_error", Details: map[string]string{"field": ve.Field}}
	case errors.Is(err, ledger.ErrMissingLines):
		return http.StatusBadRequest, ErrorBody{Code: "missing_lines"}
	case errors.Is(err, ledger.ErrInvalidRange):
		return http.StatusBadRequest, ErrorBody{Code: "invalid_range"}
	case ledger.IsNotFound(err):
		return http.StatusNotFound, ErrorBody{Code: "not_found"}
	case ledger.IsConflict(err):
		return http.StatusConflict, ErrorBody{Code: "conflict"}
	}
	return http.StatusInternalServerError, ErrorBody{Code: "internal_error"}
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &ledger.ValidationError{Field: "body", Message: fmt.Sprintf("invalid JSON: %v", err)}
	}
	return nil
}

// pathID parses a positive integer URL parameter.
func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &ledger.ValidationError{Field: name, Message: fmt.Sprintf("invalid id %q", raw)}
	}
	return id, nil
}

type businessKey struct{}

// businessFrom returns the business id placed in ctx by businessScope.
func businessFrom(ctx context.Context) ledger.BusinessID {
	id, _ := ctx.Value(businessKey{}).(ledger.BusinessID)
	return id
}
