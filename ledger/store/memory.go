// Package store provides an in-memory ledger.TxStore.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/warp/bookkeeping/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory is safe for concurrent use. WithTx holds the write lock for the
// whole function and restores a snapshot if it fails.
type Memory struct {
	mu sync.RWMutex
	s  *state
}

func NewMemory() *Memory {
	return &Memory{s: newState()}
}

// WithTx executes fn against the unlocked state while holding the lock.
func (m *Memory) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.s.clone()
	if err := fn(m.s); err != nil {
		m.s = snapshot
		return err
	}
	return nil
}

func (m *Memory) CreateAccountType(ctx context.Context, t *ledger.AccountType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.CreateAccountType(ctx, t)
}

func (m *Memory) GetAccountType(ctx context.Context, id ledger.AccountTypeID) (ledger.AccountType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.GetAccountType(ctx, id)
}

func (m *Memory) ListAccountTypes(ctx context.Context) ([]ledger.AccountType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.ListAccountTypes(ctx)
}

func (m *Memory) UpdateAccountType(ctx context.Context, t ledger.AccountType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.UpdateAccountType(ctx, t)
}

func (m *Memory) DeleteAccountType(ctx context.Context, id ledger.AccountTypeID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.DeleteAccountType(ctx, id)
}

func (m *Memory) CountAccountsOfType(ctx context.Context, id ledger.AccountTypeID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.CountAccountsOfType(ctx, id)
}

func (m *Memory) CreateAccount(ctx context.Context, a *ledger.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.CreateAccount(ctx, a)
}

func (m *Memory) GetAccount(ctx context.Context, b ledger.BusinessID, id ledger.AccountID) (ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.GetAccount(ctx, b, id)
}

func (m *Memory) ListAccounts(ctx context.Context, b ledger.BusinessID) ([]ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.ListAccounts(ctx, b)
}

func (m *Memory) UpdateAccount(ctx context.Context, a ledger.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.UpdateAccount(ctx, a)
}

func (m *Memory) DeleteAccount(ctx context.Context, b ledger.BusinessID, id ledger.AccountID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.DeleteAccount(ctx, b, id)
}

func (m *Memory) CountLinesForAccount(ctx context.Context, b ledger.BusinessID, id ledger.AccountID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.CountLinesForAccount(ctx, b, id)
}

func (m *Memory) InsertEntry(ctx context.Context, e *ledger.JournalEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.InsertEntry(ctx, e)
}

func (m *Memory) InsertLine(ctx context.Context, l *ledger.JournalLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.InsertLine(ctx, l)
}

func (m *Memory) GetEntry(ctx context.Context, b ledger.BusinessID, id ledger.EntryID) (ledger.JournalEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.GetEntry(ctx, b, id)
}

func (m *Memory) ListEntries(ctx context.Context, b ledger.BusinessID) ([]ledger.JournalEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.ListEntries(ctx, b)
}

func (m *Memory) UpdateEntry(ctx context.Context, e ledger.JournalEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.UpdateEntry(ctx, e)
}

func (m *Memory) GetLine(ctx context.Context, b ledger.BusinessID, id ledger.LineID) (ledger.JournalLine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.GetLine(ctx, b, id)
}

func (m *Memory) UpdateLine(ctx context.Context, l ledger.JournalLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.UpdateLine(ctx, l)
}

func (m *Memory) DeleteLine(ctx context.Context, id ledger.LineID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.DeleteLine(ctx, id)
}

func (m *Memory) DeleteLines(ctx context.Context, entryID ledger.EntryID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.DeleteLines(ctx, entryID)
}

func (m *Memory) DeleteEntry(ctx context.Context, b ledger.BusinessID, id ledger.EntryID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.DeleteEntry(ctx, b, id)
}

func (m *Memory) AccountPostings(ctx context.Context, b ledger.BusinessID, id ledger.AccountID) ([]ledger.Posting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.AccountPostings(ctx, b, id)
}

func (m *Memory) PostingsInRange(ctx context.Context, b ledger.BusinessID, from, to time.Time) ([]ledger.Posting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.PostingsInRange(ctx, b, from, to)
}

// =============================================================================
// STATE - unlocked tables, also the view handed to WithTx
// =============================================================================

type state struct {
	types    map[ledger.AccountTypeID]ledger.AccountType
	accounts map[ledger.AccountID]ledger.Account
	entries  map[ledger.EntryID]ledger.JournalEntry // headers only
	lines    map[ledger.LineID]ledger.JournalLine

	nextType    ledger.AccountTypeID
	nextAccount ledger.AccountID
	nextEntry   ledger.EntryID
	nextLine    ledger.LineID
}

func newState() *state {
	return &state{
		types:    make(map[ledger.AccountTypeID]ledger.AccountType),
		accounts: make(map[ledger.AccountID]ledger.Account),
		entries:  make(map[ledger.EntryID]ledger.JournalEntry),
		lines:    make(map[ledger.LineID]ledger.JournalLine),
	}
}

func (s *state) clone() *state {
	c := &state{
		types:       make(map[ledger.AccountTypeID]ledger.AccountType, len(s.types)),
		accounts:    make(map[ledger.AccountID]ledger.Account, len(s.accounts)),
		entries:     make(map[ledger.EntryID]ledger.JournalEntry, len(s.entries)),
		lines:       make(map[ledger.LineID]ledger.JournalLine, len(s.lines)),
		nextType:    s.nextType,
		nextAccount: s.nextAccount,
		nextEntry:   s.nextEntry,
		nextLine:    s.nextLine,
	}
	for k, v := range s.types {
		c.types[k] = v
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.entries {
		c.entries[k] = v
	}
	for k, v := range s.lines {
		c.lines[k] = v
	}
	return c
}

func notFound(entity string, id int64) error {
	return &ledger.NotFoundError{Entity: entity, ID: id}
}

// --- account types ---

func (s *state) CreateAccountType(_ context.Context, t *ledger.AccountType) error {
	s.nextType++
	t.ID = s.nextType
	s.types[t.ID] = *t
	return nil
}

func (s *state) GetAccountType(_ context.Context, id ledger.AccountTypeID) (ledger.AccountType, error) {
	t, ok := s.types[id]
	if !ok {
		return ledger.AccountType{}, notFound("account type", int64(id))
	}
	return t, nil
}

func (s *state) ListAccountTypes(_ context.Context) ([]ledger.AccountType, error) {
	out := make([]ledger.AccountType, 0, len(s.types))
	for _, t := range s.types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *state) UpdateAccountType(_ context.Context, t ledger.AccountType) error {
	if _, ok := s.types[t.ID]; !ok {
		return notFound("account type", int64(t.ID))
	}
	s.types[t.ID] = t
	return nil
}

func (s *state) DeleteAccountType(_ context.Context, id ledger.AccountTypeID) error {
	if _, ok := s.types[id]; !ok {
		return notFound("account type", int64(id))
	}
	delete(s.types, id)
	return nil
}

func (s *state) CountAccountsOfType(_ context.Context, id ledger.AccountTypeID) (int, error) {
	n := 0
	for _, a := range s.accounts {
		if a.AccountTypeID == id {
			n++
		}
	}
	return n, nil
}

// --- accounts ---

func (s *state) codeTaken(b ledger.BusinessID, code string, except ledger.AccountID) bool {
	for _, a := range s.accounts {
		if a.BusinessID == b && a.Code == code && a.ID != except {
			return true
		}
	}
	return false
}

func (s *state) CreateAccount(_ context.Context, a *ledger.Account) error {
	if _, ok := s.types[a.AccountTypeID]; !ok {
		return notFound("account type", int64(a.AccountTypeID))
	}
	if s.codeTaken(a.BusinessID, a.Code, 0) {
		return fmt.Errorf("account code %q already exists: %w", a.Code, ledger.ErrConflict)
	}
	s.nextAccount++
	a.ID = s.nextAccount
	stored := *a
	stored.Type = ledger.AccountType{}
	s.accounts[a.ID] = stored
	return nil
}

func (s *state) withType(a ledger.Account) ledger.Account {
	a.Type = s.types[a.AccountTypeID]
	return a
}

func (s *state) GetAccount(_ context.Context, b ledger.BusinessID, id ledger.AccountID) (ledger.Account, error) {
	a, ok := s.accounts[id]
	if !ok || a.BusinessID != b {
		return ledger.Account{}, notFound("account", int64(id))
	}
	return s.withType(a), nil
}

func (s *state) ListAccounts(_ context.Context, b ledger.BusinessID) ([]ledger.Account, error) {
	var out []ledger.Account
	for _, a := range s.accounts {
		if a.BusinessID == b {
			out = append(out, s.withType(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *state) UpdateAccount(_ context.Context, a ledger.Account) error {
	current, ok := s.accounts[a.ID]
	if !ok || current.BusinessID != a.BusinessID {
		return notFound("account", int64(a.ID))
	}
	if s.codeTaken(a.BusinessID, a.Code, a.ID) {
		return fmt.Errorf("account code %q already exists: %w", a.Code, ledger.ErrConflict)
	}
	a.Type = ledger.AccountType{}
	s.accounts[a.ID] = a
	return nil
}

func (s *state) DeleteAccount(_ context.Context, b ledger.BusinessID, id ledger.AccountID) error {
	a, ok := s.accounts[id]
	if !ok || a.BusinessID != b {
		return notFound("account", int64(id))
	}
	for _, l := range s.lines {
		if l.AccountID == id {
			return fmt.Errorf("account %d is referenced by journal lines: %w", id, ledger.ErrConflict)
		}
	}
	delete(s.accounts, id)
	return nil
}

func (s *state) CountLinesForAccount(_ context.Context, b ledger.BusinessID, id ledger.AccountID) (int, error) {
	n := 0
	for _, l := range s.lines {
		if l.AccountID == id && s.entries[l.EntryID].BusinessID == b {
			n++
		}
	}
	return n, nil
}

// --- journal ---

func (s *state) InsertEntry(_ context.Context, e *ledger.JournalEntry) error {
	s.nextEntry++
	e.ID = s.nextEntry
	header := *e
	header.Lines = nil
	s.entries[e.ID] = header
	return nil
}

func (s *state) InsertLine(_ context.Context, l *ledger.JournalLine) error {
	if _, ok := s.entries[l.EntryID]; !ok {
		return fmt.Errorf("journal entry %d does not exist: %w", l.EntryID, ledger.ErrConflict)
	}
	if _, ok := s.accounts[l.AccountID]; !ok {
		return fmt.Errorf("account %d does not exist: %w", l.AccountID, ledger.ErrConflict)
	}
	s.nextLine++
	l.ID = s.nextLine
	s.lines[l.ID] = *l
	return nil
}

func (s *state) linesOf(id ledger.EntryID) []ledger.JournalLine {
	var out []ledger.JournalLine
	for _, l := range s.lines {
		if l.EntryID == id {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *state) GetEntry(_ context.Context, b ledger.BusinessID, id ledger.EntryID) (ledger.JournalEntry, error) {
	e, ok := s.entries[id]
	if !ok || e.BusinessID != b {
		return ledger.JournalEntry{}, notFound("journal entry", int64(id))
	}
	e.Lines = s.linesOf(id)
	return e, nil
}

func (s *state) ListEntries(_ context.Context, b ledger.BusinessID) ([]ledger.JournalEntry, error) {
	var out []ledger.JournalEntry
	for _, e := range s.entries {
		if e.BusinessID == b {
			e.Lines = s.linesOf(e.ID)
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *state) UpdateEntry(_ context.Context, e ledger.JournalEntry) error {
	current, ok := s.entries[e.ID]
	if !ok || current.BusinessID != e.BusinessID {
		return notFound("journal entry", int64(e.ID))
	}
	current.Date = e.Date
	current.Description = e.Description
	s.entries[e.ID] = current
	return nil
}

func (s *state) GetLine(_ context.Context, b ledger.BusinessID, id ledger.LineID) (ledger.JournalLine, error) {
	l, ok := s.lines[id]
	if !ok || s.entries[l.EntryID].BusinessID != b {
		return ledger.JournalLine{}, notFound("journal line", int64(id))
	}
	return l, nil
}

func (s *state) UpdateLine(_ context.Context, l ledger.JournalLine) error {
	current, ok := s.lines[l.ID]
	if !ok {
		return notFound("journal line", int64(l.ID))
	}
	l.EntryID = current.EntryID
	s.lines[l.ID] = l
	return nil
}

func (s *state) DeleteLine(_ context.Context, id ledger.LineID) error {
	if _, ok := s.lines[id]; !ok {
		return notFound("journal line", int64(id))
	}
	delete(s.lines, id)
	return nil
}

func (s *state) DeleteLines(_ context.Context, entryID ledger.EntryID) error {
	for id, l := range s.lines {
		if l.EntryID == entryID {
			delete(s.lines, id)
		}
	}
	return nil
}

func (s *state) DeleteEntry(ctx context.Context, b ledger.BusinessID, id ledger.EntryID) error {
	e, ok := s.entries[id]
	if !ok || e.BusinessID != b {
		return notFound("journal entry", int64(id))
	}
	delete(s.entries, id)
	return s.DeleteLines(ctx, id)
}

// --- postings ---

func (s *state) posting(l ledger.JournalLine) ledger.Posting {
	e := s.entries[l.EntryID]
	a := s.accounts[l.AccountID]
	return ledger.Posting{
		LineID:        l.ID,
		EntryID:       l.EntryID,
		Date:          e.Date,
		Description:   e.Description,
		AccountID:     l.AccountID,
		AccountCode:   a.Code,
		AccountName:   a.Name,
		AccountTypeID: a.AccountTypeID,
		Debit:         l.Debit,
		Credit:        l.Credit,
	}
}

func (s *state) collect(keep func(ledger.JournalLine, ledger.JournalEntry) bool) []ledger.Posting {
	var out []ledger.Posting
	for _, l := range s.lines {
		if keep(l, s.entries[l.EntryID]) {
			out = append(out, s.posting(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LineID < out[j].LineID })
	return out
}

func (s *state) AccountPostings(_ context.Context, b ledger.BusinessID, id ledger.AccountID) ([]ledger.Posting, error) {
	return s.collect(func(l ledger.JournalLine, e ledger.JournalEntry) bool {
		return l.AccountID == id && e.BusinessID == b
	}), nil
}

func (s *state) PostingsInRange(_ context.Context, b ledger.BusinessID, from, to time.Time) ([]ledger.Posting, error) {
	return s.collect(func(l ledger.JournalLine, e ledger.JournalEntry) bool {
		return e.BusinessID == b && !e.Date.Before(from) && !e.Date.After(to)
	}), nil
}
