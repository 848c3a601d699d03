package dto

import (
	"encoding/json"
	"time"
)

type InitResponse struct {
	Success    bool            `json:"success"`
	PaymentURL string          `json:"paymentUrl,omitempty"`
	Message    string          `json:"message,omitempty"`
	Raw        json.RawMessage `json:"raw,omitempty"` // resposta do gateway em caso de falha
}

type DepositResponse struct {
	DepositID  string     `json:"depositId"`
	UserID     string     `json:"userId"`
	Amount     int64      `json:"amount"`
	Method     string     `json:"method"`
	Reference  string     `json:"reference"`
	Status     string     `json:"status"`
	PaymentURL string     `json:"paymentUrl,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	PaidAt     *time.Time `json:"paidAt,omitempty"`
}

type BalanceResponse struct {
	UserID  string `json:"userId"`
	Balance int64  `json:"balance"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
