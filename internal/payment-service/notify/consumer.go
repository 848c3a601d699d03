package notify

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// Consumer lê eventos de depósito de um tópico e repassa a Handle.
type Consumer struct {
	Log    *zap.Logger
	Reader messageReader
	Handle func(m kafka.Message) error

	OnError func(phase string) // métricas por fase
}

// Run bloqueia até ctx ser cancelado. Falha de leitura espera e tenta de novo;
// falha do handler é logada e a mensagem é descartada.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		m, err := c.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.Log.Warn("kafka read failed", zap.Error(err))
			c.fail("read")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}
		if err := c.Handle(m); err != nil {
			c.Log.Warn("event handler failed", zap.String("key", string(m.Key)), zap.Error(err))
			c.fail("handle")
		}
	}
}

func (c *Consumer) fail(phase string) {
	if c.OnError != nil {
		c.OnError(phase)
	}
}
