package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/chiearnhub/payment-bridge/internal/payment-service/deposit"
	"github.com/chiearnhub/payment-bridge/pkg/contracts/events"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaPublisher publica deposit_initiated e deposit_approved, chave = depositId.
// Erro de publicação só é logado: o estado já está commitado no store.
type KafkaPublisher struct {
	log       *zap.Logger
	initiated messageWriter
	approved  messageWriter
	now       func() time.Time
}

func NewKafkaPublisher(log *zap.Logger, initiated, approved *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{log: log, initiated: initiated, approved: approved, now: time.Now}
}

func (p *KafkaPublisher) DepositInitiated(ctx context.Context, d deposit.Deposit) {
	p.publish(ctx, p.initiated, d.ID, events.DepositInitiated{
		DepositID:  d.ID,
		UserID:     d.UserID,
		Amount:     d.Amount,
		Reference:  d.Reference,
		PaymentURL: d.PaymentURL,
		Ts:         p.now().UTC(),
	})
}

func (p *KafkaPublisher) DepositApproved(ctx context.Context, a deposit.Approval) {
	e := events.DepositApproved{
		DepositID:  a.Deposit.ID,
		UserID:     a.Deposit.UserID,
		Amount:     a.Deposit.Amount,
		NewBalance: a.NewBalance,
	}
	if a.Deposit.PaidAt != nil {
		e.PaidAt = a.Deposit.PaidAt.UTC()
	}
	p.publish(ctx, p.approved, a.Deposit.ID, e)
}

func (p *KafkaPublisher) AlreadyProcessed(context.Context, string) bool { return false }

func (p *KafkaPublisher) publish(ctx context.Context, w messageWriter, key string, v any) {
	b, _ := json.Marshal(v)
	if err := w.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: b, Time: p.now()}); err != nil {
		p.log.Warn("kafka publish failed", zap.String("deposit_id", key), zap.Error(err))
	}
}
