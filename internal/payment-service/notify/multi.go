package notify

import (
	"context"

	"github.com/chiearnhub/payment-bridge/internal/payment-service/deposit"
)

// Multi repassa cada evento para todos os notifiers na ordem dada.
type Multi []deposit.Notifier

func (m Multi) DepositInitiated(ctx context.Context, d deposit.Deposit) {
	for _, n := range m {
		n.DepositInitiated(ctx, d)
	}
}

func (m Multi) DepositApproved(ctx context.Context, a deposit.Approval) {
	for _, n := range m {
		n.DepositApproved(ctx, a)
	}
}

func (m Multi) AlreadyProcessed(ctx context.Context, depositID string) bool {
	for _, n := range m {
		if n.AlreadyProcessed(ctx, depositID) {
			return true
		}
	}
	return false
}
