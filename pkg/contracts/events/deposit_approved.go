package events

import "time"

// Evento emitido após o commit da reconciliação do webhook.
type DepositApproved struct {
	DepositID  string    `json:"deposit_id"`
	UserID     string    `json:"user_id"`
	Amount     int64     `json:"amount"`
	NewBalance int64     `json:"new_balance"`
	PaidAt     time.Time `json:"paid_at"`
}

// DepositUpdate é o payload do canal Redis consumido pelo feed websocket.
type DepositUpdate struct {
	DepositID string `json:"depositId"`
	UserID    string `json:"userId"`
	Status    string `json:"status"`
	Balance   *int64 `json:"balance,omitempty"`
}
