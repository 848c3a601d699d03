package deposit

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateInit checa valor mínimo primeiro, depois campos obrigatórios.
func ValidateInit(in InitInput, minAmount int64) error {
	if err := validate.Var(in.Amount, fmt.Sprintf("required,gte=%d", minAmount)); err != nil {
		return ErrInvalidAmount
	}
	if err := validate.Struct(in); err != nil {
		return ErrMissingFields
	}
	return nil
}
