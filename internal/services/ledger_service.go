package services

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"budget/internal/core"
	"budget/internal/log"
)

// State of a session's edit lifecycle.
type State int

const (
	Idle State = iota
	Editing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Editing:
		return "editing"
	default:
		return "unknown"
	}
}

// LedgerService is the entry point of one presentation session. It owns the
// session's edit selection; the ledger itself is shared through Ledger.
type LedgerService struct {
	ledger *Ledger
	logger *log.Logger

	mu       sync.Mutex
	state    State
	selected core.Entry
	token    string
}

func NewLedgerService(ledger *Ledger) *LedgerService {
	return &LedgerService{
		ledger: ledger,
		logger: ledger.logger.WithComponent(log.ComponentSession),
	}
}

func (s *LedgerService) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Selection returns the entry staked for edit, as seeded by SelectForEdit.
func (s *LedgerService) Selection() (core.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Editing {
		return core.Entry{}, false
	}
	return s.selected, true
}

func (s *LedgerService) ListMethods(ctx context.Context) ([]core.PaymentMethod, error) {
	return s.ledger.ListMethods(ctx)
}

func (s *LedgerService) AddMethod(ctx context.Context, name string) (core.PaymentMethod, error) {
	return s.ledger.AddMethod(ctx, name)
}

func (s *LedgerService) Summary(ctx context.Context) (core.Summary, error) {
	return s.ledger.Summary(ctx)
}

func (s *LedgerService) List(ctx context.Context) ([]core.Entry, error) {
	return s.ledger.List(ctx)
}

func (s *LedgerService) AvailableBalance(ctx context.Context) (decimal.Decimal, error) {
	return s.ledger.AvailableBalance(ctx)
}

func (s *LedgerService) BreakdownByType(ctx context.Context) ([]core.TypeTotal, error) {
	return s.ledger.BreakdownByType(ctx)
}

func (s *LedgerService) BreakdownByDescription(ctx context.Context, t core.TransactionType) ([]core.DescriptionAmount, error) {
	return s.ledger.BreakdownByDescription(ctx, t)
}

// AddTransaction records a new transaction and returns the refreshed summary.
// The edit selection is left as it was.
func (s *LedgerService) AddTransaction(ctx context.Context, req TransactionRequest) (core.Summary, error) {
	if _, err := s.ledger.AddTransaction(ctx, req); err != nil {
		return core.Summary{}, err
	}
	return s.ledger.Summary(ctx)
}

// SelectForEdit stakes transaction id for update or delete. An unknown id
// leaves the session unchanged.
func (s *LedgerService) SelectForEdit(ctx context.Context, id int64) (core.Entry, error) {
	entry, err := s.ledger.Get(ctx, id)
	if err != nil {
		return core.Entry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Editing
	s.selected = entry
	s.token = ""

	s.logger.DebugContext(ctx, "Transaction selected", log.FieldTransactionID, id, log.FieldOperation, log.OpSelect)
	return entry, nil
}

func (s *LedgerService) CancelEdit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

// UpdateTransaction overwrites the selected transaction and returns to Idle.
// Funds are not re-checked, so an update may leave the balance negative.
func (s *LedgerService) UpdateTransaction(ctx context.Context, req TransactionRequest) (core.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Editing {
		return core.Summary{}, core.ErrNoSelection
	}

	if _, err := s.ledger.UpdateTransaction(ctx, s.selected.ID, req); err != nil {
		if errors.Is(err, core.ErrTransactionNotFound) {
			s.clearLocked()
		}
		return core.Summary{}, err
	}
	s.clearLocked()
	return s.ledger.Summary(ctx)
}

// RequestDelete issues the confirmation token DeleteTransaction requires.
func (s *LedgerService) RequestDelete(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Editing {
		return "", core.ErrNoSelection
	}
	s.token = uuid.NewString()
	s.logger.DebugContext(ctx, "Delete confirmation requested", log.FieldTransactionID, s.selected.ID)
	return s.token, nil
}

// DeleteTransaction removes the selected transaction once confirmed with the
// token from RequestDelete, then returns to Idle.
func (s *LedgerService) DeleteTransaction(ctx context.Context, token string) (core.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Editing {
		return core.Summary{}, core.ErrNoSelection
	}
	if token == "" || token != s.token {
		return core.Summary{}, core.ErrConfirmation
	}

	if err := s.ledger.DeleteTransaction(ctx, s.selected.ID); err != nil {
		if errors.Is(err, core.ErrTransactionNotFound) {
			s.clearLocked()
		}
		return core.Summary{}, err
	}
	s.clearLocked()
	return s.ledger.Summary(ctx)
}

func (s *LedgerService) clearLocked() {
	s.state = Idle
	s.selected = core.Entry{}
	s.token = ""
}
