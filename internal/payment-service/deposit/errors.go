package deposit

import (
	"encoding/json"
	"errors"
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrMissingFields   = errors.New("missing parameters")
	ErrDepositNotFound = errors.New("deposit not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrAlreadyApproved = errors.New("deposit already approved")
)

// GatewayError indica que o gateway respondeu sem o flag de sucesso.
// Raw guarda a resposta original para diagnóstico.
type GatewayError struct {
	Message string
	Raw     json.RawMessage
}

func (e *GatewayError) Error() string {
	if e.Message == "" {
		return "gateway init failed"
	}
	return "gateway init failed: " + e.Message
}

// IsValidation reporta erros de entrada do cliente.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidAmount) || errors.Is(err, ErrMissingFields)
}
