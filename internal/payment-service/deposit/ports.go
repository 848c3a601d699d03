package deposit

import (
	"context"
	"time"
)

// Store persiste depósitos e saldos. ApproveDeposit precisa ser atômico:
// leitura do saldo, soma, escrita e aprovação na mesma transação.
type Store interface {
	// CreateDeposit grava (ou sobrescreve) o depósito; nunca sobrescreve um aprovado.
	CreateDeposit(ctx context.Context, d *Deposit) error
	MarkPending(ctx context.Context, depositID, paymentURL string) error
	GetDeposit(ctx context.Context, depositID string) (*Deposit, error)
	GetUser(ctx context.Context, userID string) (*User, error)
	// ApproveDeposit credita o valor no saldo e marca approved. Usuário
	// ausente conta como saldo zero. Retorna ErrAlreadyApproved se outro
	// webhook já aprovou.
	ApproveDeposit(ctx context.Context, depositID string, paidAt time.Time) (*Approval, error)
	Ping(ctx context.Context) error
	Close() error
}

// SessionRequest é o que o gateway precisa para abrir a sessão de pagamento.
type SessionRequest struct {
	Amount    int64
	Email     string
	Reference string
	DepositID string
}

type Session struct {
	PaymentURL string
}

type Gateway interface {
	Initiate(ctx context.Context, req SessionRequest) (*Session, error)
}

// Notifier propaga mudanças de estado para fora (cache, pubsub, eventos).
// Falhas são tratadas internamente; nunca quebram o fluxo principal.
type Notifier interface {
	DepositInitiated(ctx context.Context, d Deposit)
	DepositApproved(ctx context.Context, a Approval)
	AlreadyProcessed(ctx context.Context, depositID string) bool
}

type nopNotifier struct{}

func (nopNotifier) DepositInitiated(context.Context, Deposit)     {}
func (nopNotifier) DepositApproved(context.Context, Approval)     {}
func (nopNotifier) AlreadyProcessed(context.Context, string) bool { return false }
