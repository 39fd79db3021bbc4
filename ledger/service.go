/*
service.go - Ledger service: the operations exposed to transports

PURPOSE:
  Service binds the pure engine functions (balance.go, movement.go,
  final.go, pnl.go, trial.go) to a TxStore. It holds no state besides the
  store handle: every report is recomputed from the store on each call.

OPERATIONS:
  Account types: Create/List/Get/Update/DeleteAccountType
  Accounts:      Create/List/Get/Update/DeleteAccount
  Journal:       see journal.go
  Reports:       BalanceAt, Movement, FinalBalance, AccountReport,
                 ProfitAndLoss, TrialBalance

DELETION POLICY:
  An account referenced by journal lines cannot be deleted (ErrConflict).
  An account type referenced by accounts cannot be deleted (ErrConflict).

SEE ALSO:
  - journal.go: journal writer
  - api/handlers.go: HTTP front
*/
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/bookkeeping/logger"
)

// Service is the ledger engine bound to a store.
type Service struct {
	store TxStore
}

// NewService creates a service over the given store.
func NewService(store TxStore) *Service {
	return &Service{store: store}
}

// withTx runs fn in a transaction and logs rollback failures.
func (s *Service) withTx(ctx context.Context, fn func(Store) error) error {
	err := s.store.WithTx(ctx, fn)
	var rb *RollbackError
	if errors.As(err, &rb) {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Msg("transaction rollback failed; ledger needs manual reconciliation")
	}
	return err
}

// =============================================================================
// ACCOUNT TYPES
// =============================================================================

func validateAccountType(t AccountType) error {
	if strings.TrimSpace(t.Name) == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}
	if !t.ReportPosition.Valid() {
		return &ValidationError{Field: "report_position", Message: "must be BalanceSheet or IncomeStatement"}
	}
	if !t.NormalBalance.Valid() {
		return &ValidationError{Field: "normal_balance", Message: "must be Debit or Credit"}
	}
	return nil
}

func (s *Service) CreateAccountType(ctx context.Context, t AccountType) (AccountType, error) {
	t.Name = strings.TrimSpace(t.Name)
	if err := validateAccountType(t); err != nil {
		return AccountType{}, err
	}
	t.ID = 0
	if err := s.withTx(ctx, func(tx Store) error { return tx.CreateAccountType(ctx, &t) }); err != nil {
		return AccountType{}, err
	}
	return t, nil
}

func (s *Service) ListAccountTypes(ctx context.Context) ([]AccountType, error) {
	return s.store.ListAccountTypes(ctx)
}

func (s *Service) GetAccountType(ctx context.Context, id AccountTypeID) (AccountType, error) {
	return s.store.GetAccountType(ctx, id)
}

func (s *Service) UpdateAccountType(ctx context.Context, t AccountType) (AccountType, error) {
	t.Name = strings.TrimSpace(t.Name)
	if err := validateAccountType(t); err != nil {
		return AccountType{}, err
	}
	if err := s.withTx(ctx, func(tx Store) error { return tx.UpdateAccountType(ctx, t) }); err != nil {
		return AccountType{}, err
	}
	return t, nil
}

func (s *Service) DeleteAccountType(ctx context.Context, id AccountTypeID) error {
	return s.withTx(ctx, func(tx Store) error {
		if _, err := tx.GetAccountType(ctx, id); err != nil {
			return err
		}
		n, err := tx.CountAccountsOfType(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("account type %d is used by %d account(s): %w", id, n, ErrConflict)
		}
		return tx.DeleteAccountType(ctx, id)
	})
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func validateAccount(a Account) error {
	if a.BusinessID <= 0 {
		return &ValidationError{Field: "business_id", Message: "is required"}
	}
	if strings.TrimSpace(a.Code) == "" {
		return &ValidationError{Field: "code", Message: "is required"}
	}
	if strings.TrimSpace(a.Name) == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}
	if a.AccountTypeID <= 0 {
		return &ValidationError{Field: "account_type_id", Message: "is required"}
	}
	if a.InitialDebitBalance.IsNegative() {
		return &ValidationError{Field: "initial_debit_balance", Message: "must not be negative"}
	}
	if a.InitialCreditBalance.IsNegative() {
		return &ValidationError{Field: "initial_credit_balance", Message: "must not be negative"}
	}
	return nil
}

// resolveType loads the account's type, reporting a missing type as a
// validation failure of the account rather than a missing resource.
func resolveType(ctx context.Context, st Store, id AccountTypeID) (AccountType, error) {
	t, err := st.GetAccountType(ctx, id)
	if IsNotFound(err) {
		return AccountType{}, &ValidationError{Field: "account_type_id", Message: fmt.Sprintf("account type %d does not exist", id)}
	}
	return t, err
}

func (s *Service) CreateAccount(ctx context.Context, a Account) (Account, error) {
	a.Code, a.Name = strings.TrimSpace(a.Code), strings.TrimSpace(a.Name)
	if err := validateAccount(a); err != nil {
		return Account{}, err
	}
	a.ID = 0
	err := s.withTx(ctx, func(tx Store) error {
		t, err := resolveType(ctx, tx, a.AccountTypeID)
		if err != nil {
			return err
		}
		a.Type = t
		return tx.CreateAccount(ctx, &a)
	})
	if err != nil {
		return Account{}, err
	}
	return a, nil
}

func (s *Service) ListAccounts(ctx context.Context, businessID BusinessID) ([]Account, error) {
	return s.store.ListAccounts(ctx, businessID)
}

func (s *Service) GetAccount(ctx context.Context, businessID BusinessID, id AccountID) (Account, error) {
	return s.store.GetAccount(ctx, businessID, id)
}

func (s *Service) UpdateAccount(ctx context.Context, a Account) (Account, error) {
	a.Code, a.Name = strings.TrimSpace(a.Code), strings.TrimSpace(a.Name)
	if err := validateAccount(a); err != nil {
		return Account{}, err
	}
	err := s.withTx(ctx, func(tx Store) error {
		if _, err := tx.GetAccount(ctx, a.BusinessID, a.ID); err != nil {
			return err
		}
		t, err := resolveType(ctx, tx, a.AccountTypeID)
		if err != nil {
			return err
		}
		a.Type = t
		return tx.UpdateAccount(ctx, a)
	})
	if err != nil {
		return Account{}, err
	}
	return a, nil
}

func (s *Service) DeleteAccount(ctx context.Context, businessID BusinessID, id AccountID) error {
	return s.withTx(ctx, func(tx Store) error {
		if _, err := tx.GetAccount(ctx, businessID, id); err != nil {
			return err
		}
		n, err := tx.CountLinesForAccount(ctx, businessID, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("account %d is referenced by %d journal line(s): %w", id, n, ErrConflict)
		}
		return tx.DeleteAccount(ctx, businessID, id)
	})
}

// =============================================================================
// REPORTS
// =============================================================================

func (s *Service) accountWithPostings(ctx context.Context, businessID BusinessID, id AccountID) (Account, []Posting, error) {
	account, err := s.store.GetAccount(ctx, businessID, id)
	if err != nil {
		return Account{}, nil, err
	}
	postings, err := s.store.AccountPostings(ctx, businessID, id)
	if err != nil {
		return Account{}, nil, err
	}
	return account, postings, nil
}

// BalanceAt returns the running balance of the account right after line asOf.
// asOf must be one of the account's own lines.
func (s *Service) BalanceAt(ctx context.Context, businessID BusinessID, id AccountID, asOf LineID) (decimal.Decimal, error) {
	account, postings, err := s.accountWithPostings(ctx, businessID, id)
	if err != nil {
		return decimal.Zero, err
	}
	for _, p := range postings {
		if p.LineID == asOf {
			return BalanceAt(postings, asOf, account.Type.NormalBalance), nil
		}
	}
	return decimal.Zero, &NotFoundError{Entity: fmt.Sprintf("journal line of account %d", id), ID: int64(asOf)}
}

// Movement returns the general-ledger view of an account. An account
// without lines yields an empty list, not an error.
func (s *Service) Movement(ctx context.Context, businessID BusinessID, id AccountID) (AccountMovement, error) {
	account, postings, err := s.accountWithPostings(ctx, businessID, id)
	if err != nil {
		return AccountMovement{}, err
	}
	return BuildMovement(account, postings), nil
}

func (s *Service) FinalBalance(ctx context.Context, businessID BusinessID, id AccountID) (FinalBalance, error) {
	account, postings, err := s.accountWithPostings(ctx, businessID, id)
	if err != nil {
		return FinalBalance{}, err
	}
	return ComputeFinalBalance(account, postings), nil
}

func (s *Service) AccountReport(ctx context.Context, businessID BusinessID, id AccountID) (AccountReport, error) {
	account, postings, err := s.accountWithPostings(ctx, businessID, id)
	if err != nil {
		return AccountReport{}, err
	}
	return ComputeAccountReport(account, postings), nil
}

// ProfitAndLoss builds the income statement for [start, end].
func (s *Service) ProfitAndLoss(ctx context.Context, businessID BusinessID, start, end time.Time) (ProfitAndLoss, error) {
	if err := ValidateRange(start, end); err != nil {
		return ProfitAndLoss{}, err
	}
	types, err := s.store.ListAccountTypes(ctx)
	if err != nil {
		return ProfitAndLoss{}, err
	}
	postings, err := s.store.PostingsInRange(ctx, businessID, truncateDay(start), truncateDay(end))
	if err != nil {
		return ProfitAndLoss{}, err
	}
	return BuildProfitAndLoss(start, end, types, postings)
}

// TrialBalance nets every account of the business as of the given day.
func (s *Service) TrialBalance(ctx context.Context, businessID BusinessID, asOf time.Time) (TrialBalance, error) {
	accounts, err := s.store.ListAccounts(ctx, businessID)
	if err != nil {
		return TrialBalance{}, err
	}
	postings, err := s.store.PostingsInRange(ctx, businessID, time.Time{}, truncateDay(asOf))
	if err != nil {
		return TrialBalance{}, err
	}
	return BuildTrialBalance(asOf, accounts, postings), nil
}
