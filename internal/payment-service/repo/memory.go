package repo

import (
	"context"
	"sync"
	"time"

	"github.com/chiearnhub/payment-bridge/internal/payment-service/deposit"
)

// Memory implementa deposit.Store em memória. Um único mutex serializa as
// escritas, o que dá à aprovação a mesma atomicidade da transação do banco.
// Usado em testes e com STORE_DRIVER=memory em ambiente local.
type Memory struct {
	mu       sync.Mutex
	deposits map[string]deposit.Deposit
	users    map[string]int64
}

func NewMemory() *Memory {
	return &Memory{
		deposits: make(map[string]deposit.Deposit),
		users:    make(map[string]int64),
	}
}

func (m *Memory) CreateDeposit(_ context.Context, d *deposit.Deposit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.deposits[d.ID]; ok && cur.Status == deposit.StatusApproved {
		return deposit.ErrAlreadyApproved
	}
	m.deposits[d.ID] = *d
	return nil
}

func (m *Memory) MarkPending(_ context.Context, depositID, paymentURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deposits[depositID]
	if !ok {
		return deposit.ErrDepositNotFound
	}
	if d.Status == deposit.StatusApproved {
		return deposit.ErrAlreadyApproved
	}
	d.Status = deposit.StatusPending
	d.PaymentURL = paymentURL
	m.deposits[depositID] = d
	return nil
}

func (m *Memory) GetDeposit(_ context.Context, depositID string) (*deposit.Deposit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deposits[depositID]
	if !ok {
		return nil, deposit.ErrDepositNotFound
	}
	return &d, nil
}

func (m *Memory) GetUser(_ context.Context, userID string) (*deposit.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bal, ok := m.users[userID]
	if !ok {
		return nil, deposit.ErrUserNotFound
	}
	return &deposit.User{ID: userID, Balance: bal}, nil
}

func (m *Memory) ApproveDeposit(_ context.Context, depositID string, paidAt time.Time) (*deposit.Approval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deposits[depositID]
	if !ok {
		return nil, deposit.ErrDepositNotFound
	}
	if d.Status == deposit.StatusApproved {
		return nil, deposit.ErrAlreadyApproved
	}

	bal := m.users[d.UserID] + d.Amount
	m.users[d.UserID] = bal

	d.Status = deposit.StatusApproved
	d.PaidAt = &paidAt
	m.deposits[depositID] = d

	return &deposit.Approval{Deposit: d, NewBalance: bal}, nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
