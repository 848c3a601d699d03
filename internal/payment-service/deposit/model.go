package deposit

import "time"

// Status do depósito; só avança: initiated -> pending -> approved.
type Status string

const (
	StatusInitiated Status = "initiated"
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
)

// MethodXixapay identifica o gateway no registro do depósito.
const MethodXixapay = "Xixapay"

// GatewaySuccessStatus é o status do webhook que indica pagamento concluído.
const GatewaySuccessStatus = "success"

// Deposit é uma tentativa de recarga, da criação ao crédito em saldo.
type Deposit struct {
	ID         string
	UserID     string
	Email      string
	Amount     int64 // unidades mínimas (kobo)
	Method     string
	Reference  string
	Status     Status
	PaymentURL string
	CreatedAt  time.Time
	PaidAt     *time.Time
}

// User guarda apenas o saldo; o resto do perfil pertence ao app cliente.
type User struct {
	ID      string
	Balance int64
}

// Approval é o resultado da transação de crédito.
type Approval struct {
	Deposit    Deposit
	NewBalance int64
}

// Outcome é a resposta textual do webhook.
type Outcome string

const (
	OutcomeOK               Outcome = "ok"
	OutcomeIgnored          Outcome = "ignored"
	OutcomeNoDepositID      Outcome = "no depositId"
	OutcomeNotFound         Outcome = "deposit not found"
	OutcomeAlreadyProcessed Outcome = "already processed"
	OutcomeError            Outcome = "error"
)

// WebhookEvent é a parte do payload do gateway que importa para a reconciliação.
type WebhookEvent struct {
	Status    string
	DepositID string
}

// InitInput é o pedido do cliente para abrir uma sessão de pagamento.
type InitInput struct {
	Amount    int64  `validate:"-"`
	Email     string `validate:"required"`
	DepositID string `validate:"required"`
	UserID    string `validate:"required"`
}
