package dto

// InitRequest é o corpo de POST /init-xixipay
type InitRequest struct {
	Amount    int64  `json:"amount"` // unidades mínimas, >= MIN_DEPOSIT
	Email     string `json:"email"`
	DepositID string `json:"depositId"`
	UserID    string `json:"userId"`
}

// WebhookPayload é o recorte do callback do Xixapay que o serviço lê.
// Demais campos do gateway são ignorados.
type WebhookPayload struct {
	Status   string          `json:"status"`
	Metadata WebhookMetadata `json:"metadata"`
}

type WebhookMetadata struct {
	DepositID string `json:"depositId"`
}
