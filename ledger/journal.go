/*
journal.go - Journal writer: validation and atomic commit of entries

PURPOSE:
  The only way lines reach the ledger. Every write path (create, update a
  line, replace lines, delete a line) re-validates the whole entry, so a
  committed entry is always balanced.

INVARIANTS (checked before any write):
  1. An entry has at least one line                (ErrMissingLines)
  2. Amounts are never negative                    (ValidationError)
  3. A line carries exactly one of debit or credit (ValidationError)
  4. Every line references an account of the same business (ValidationError)
  5. sum(debit) == sum(credit), exact decimal      (ImbalanceError)

COMMIT PROTOCOL:
  Header first (to obtain the entry id), then each line, inside one
  WithTx. A failure after the header is reported as PartialWriteError with
  RolledBack=true. If the rollback itself fails the error also matches
  ErrDataIntegrity and is logged at error level.

SEE ALSO:
  - store.go: TxStore.WithTx
  - errors.go: PartialWriteError, ImbalanceError
*/
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/warp/bookkeeping/logger"
)

const (
	stageValidate = "validate"
	stageHeader   = "header"
	stageLines    = "lines"
)

// ValidateLines checks line shape and the balance invariant.
func ValidateLines(lines []JournalLine) error {
	if len(lines) == 0 {
		return ErrMissingLines
	}
	for i, l := range lines {
		field := fmt.Sprintf("lines[%d]", i)
		if l.AccountID <= 0 {
			return &ValidationError{Field: field + ".account_id", Message: "is required"}
		}
		if l.Debit.IsNegative() || l.Credit.IsNegative() {
			return &ValidationError{Field: field, Message: "amounts must not be negative"}
		}
		hasDebit, hasCredit := !l.Debit.IsZero(), !l.Credit.IsZero()
		if hasDebit == hasCredit {
			if hasDebit {
				return &ValidationError{Field: field, Message: "line must carry only one of debit or credit"}
			}
			return &ValidationError{Field: field, Message: "line must carry a debit or a credit"}
		}
	}
	debit, credit := lineTotals(lines)
	if !debit.Equal(credit) {
		return &ImbalanceError{Debit: debit, Credit: credit}
	}
	return nil
}

func validateHeader(e JournalEntry) error {
	if e.BusinessID <= 0 {
		return &ValidationError{Field: "business_id", Message: "is required"}
	}
	if e.Date.IsZero() {
		return &ValidationError{Field: "date", Message: "is required"}
	}
	return nil
}

// checkAccounts verifies every referenced account exists in the business.
func checkAccounts(ctx context.Context, st Store, businessID BusinessID, lines []JournalLine) error {
	seen := make(map[AccountID]bool, len(lines))
	for i, l := range lines {
		if seen[l.AccountID] {
			continue
		}
		if _, err := st.GetAccount(ctx, businessID, l.AccountID); err != nil {
			if IsNotFound(err) {
				return &ValidationError{
					Field:   fmt.Sprintf("lines[%d].account_id", i),
					Message: fmt.Sprintf("account %d does not exist", l.AccountID),
				}
			}
			return err
		}
		seen[l.AccountID] = true
	}
	return nil
}

// =============================================================================
// WRITES
// =============================================================================

// CreateJournal validates and persists an entry with its lines.
// The returned entry carries the generated entry and line ids.
func (s *Service) CreateJournal(ctx context.Context, entry JournalEntry) (JournalEntry, error) {
	if err := validateHeader(entry); err != nil {
		return JournalEntry{}, err
	}
	if err := ValidateLines(entry.Lines); err != nil {
		return JournalEntry{}, err
	}
	entry.Date = truncateDay(entry.Date)
	lines := append([]JournalLine(nil), entry.Lines...)

	stage := stageValidate
	err := s.store.WithTx(ctx, func(tx Store) error {
		if err := checkAccounts(ctx, tx, entry.BusinessID, lines); err != nil {
			return err
		}

		stage = stageHeader
		header := JournalEntry{BusinessID: entry.BusinessID, Date: entry.Date, Description: entry.Description}
		if err := tx.InsertEntry(ctx, &header); err != nil {
			return err
		}
		entry.ID = header.ID

		stage = stageLines
		for i := range lines {
			lines[i].ID = 0
			lines[i].EntryID = entry.ID
			if err := tx.InsertLine(ctx, &lines[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return JournalEntry{}, s.commitFailure(ctx, entry.ID, stage, err)
	}

	entry.Lines = lines
	debit, _ := entry.Totals()
	log := logger.FromContext(ctx)
	log.Info().
		Int64("business_id", int64(entry.BusinessID)).
		Int64("entry_id", int64(entry.ID)).
		Int("lines", len(lines)).
		Str("amount", debit.String()).
		Msg("journal entry created")
	return entry, nil
}

// commitFailure classifies an error returned from the CreateJournal transaction.
func (s *Service) commitFailure(ctx context.Context, entryID EntryID, stage string, err error) error {
	var rb *RollbackError
	rolledBack := !errors.As(err, &rb)
	if rolledBack && stage != stageLines {
		return err
	}

	pw := &PartialWriteError{EntryID: entryID, Stage: stage, RolledBack: rolledBack, Err: err}
	log := logger.FromContext(ctx)
	if rolledBack {
		log.Warn().Err(err).Int64("entry_id", int64(entryID)).Str("stage", stage).Msg("journal write rolled back")
	} else {
		log.Error().Err(err).Int64("entry_id", int64(entryID)).Str("stage", stage).Msg("journal write could not be rolled back; ledger needs manual reconciliation")
	}
	return pw
}

// UpdateJournalEntry changes the date and description of an entry.
func (s *Service) UpdateJournalEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error) {
	if err := validateHeader(entry); err != nil {
		return JournalEntry{}, err
	}
	entry.Date = truncateDay(entry.Date)

	var out JournalEntry
	err := s.withTx(ctx, func(tx Store) error {
		current, err := tx.GetEntry(ctx, entry.BusinessID, entry.ID)
		if err != nil {
			return err
		}
		current.Date = entry.Date
		current.Description = entry.Description
		if err := tx.UpdateEntry(ctx, current); err != nil {
			return err
		}
		out = current
		return nil
	})
	return out, err
}

// UpdateJournalLine replaces one line's account and amounts. The parent
// entry must remain balanced, so in practice only account reassignment or
// a side-preserving amount swap is accepted.
func (s *Service) UpdateJournalLine(ctx context.Context, businessID BusinessID, line JournalLine) (JournalEntry, error) {
	var out JournalEntry
	err := s.withTx(ctx, func(tx Store) error {
		existing, err := tx.GetLine(ctx, businessID, line.ID)
		if err != nil {
			return err
		}
		entry, err := tx.GetEntry(ctx, businessID, existing.EntryID)
		if err != nil {
			return err
		}

		line.EntryID = existing.EntryID
		for i := range entry.Lines {
			if entry.Lines[i].ID == line.ID {
				entry.Lines[i] = line
			}
		}
		if err := ValidateLines(entry.Lines); err != nil {
			return err
		}
		if err := checkAccounts(ctx, tx, businessID, []JournalLine{line}); err != nil {
			return err
		}
		if err := tx.UpdateLine(ctx, line); err != nil {
			return err
		}
		out = entry
		return nil
	})
	return out, err
}

// ReplaceJournalLines swaps the full line set of an entry atomically.
func (s *Service) ReplaceJournalLines(ctx context.Context, businessID BusinessID, entryID EntryID, lines []JournalLine) (JournalEntry, error) {
	if err := ValidateLines(lines); err != nil {
		return JournalEntry{}, err
	}
	lines = append([]JournalLine(nil), lines...)

	var out JournalEntry
	err := s.withTx(ctx, func(tx Store) error {
		entry, err := tx.GetEntry(ctx, businessID, entryID)
		if err != nil {
			return err
		}
		if err := checkAccounts(ctx, tx, businessID, lines); err != nil {
			return err
		}
		if err := tx.DeleteLines(ctx, entryID); err != nil {
			return err
		}
		for i := range lines {
			lines[i].ID = 0
			lines[i].EntryID = entryID
			if err := tx.InsertLine(ctx, &lines[i]); err != nil {
				return err
			}
		}
		entry.Lines = lines
		out = entry
		return nil
	})
	return out, err
}

// DeleteJournalLine removes one line if the remaining lines still form a
// valid, balanced entry.
func (s *Service) DeleteJournalLine(ctx context.Context, businessID BusinessID, lineID LineID) error {
	return s.withTx(ctx, func(tx Store) error {
		existing, err := tx.GetLine(ctx, businessID, lineID)
		if err != nil {
			return err
		}
		entry, err := tx.GetEntry(ctx, businessID, existing.EntryID)
		if err != nil {
			return err
		}
		remaining := make([]JournalLine, 0, len(entry.Lines))
		for _, l := range entry.Lines {
			if l.ID != lineID {
				remaining = append(remaining, l)
			}
		}
		if err := ValidateLines(remaining); err != nil {
			return err
		}
		return tx.DeleteLine(ctx, lineID)
	})
}

// DeleteJournal removes an entry and its lines.
func (s *Service) DeleteJournal(ctx context.Context, businessID BusinessID, id EntryID) error {
	return s.withTx(ctx, func(tx Store) error {
		return tx.DeleteEntry(ctx, businessID, id)
	})
}

// =============================================================================
// READS
// =============================================================================

func (s *Service) GetJournal(ctx context.Context, businessID BusinessID, id EntryID) (JournalEntry, error) {
	return s.store.GetEntry(ctx, businessID, id)
}

func (s *Service) ListJournals(ctx context.Context, businessID BusinessID) ([]JournalEntry, error) {
	return s.store.ListEntries(ctx, businessID)
}
