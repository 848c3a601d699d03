package events

import "time"

// Evento publicado quando o gateway devolve a URL de pagamento.
type DepositInitiated struct {
	DepositID  string    `json:"deposit_id"`
	UserID     string    `json:"user_id"`
	Amount     int64     `json:"amount"`
	Reference  string    `json:"reference"`
	PaymentURL string    `json:"payment_url"`
	Ts         time.Time `json:"ts"`
}
