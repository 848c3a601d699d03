package main

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/spf13/cobra"

	"github.com/chiearnhub/payment-bridge/internal/payment-service/notify"
	"github.com/chiearnhub/payment-bridge/internal/shared/config"
	"github.com/chiearnhub/payment-bridge/internal/shared/kafka"
	"github.com/chiearnhub/payment-bridge/internal/shared/logger"
)

func eventsCmd() *cobra.Command {
	var topic, group string
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Acompanha os eventos de depósito no Kafka (uma linha JSON por evento)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cfg.KafkaBrokers == "" {
				return errors.New("KAFKA_BROKERS is required")
			}
			if topic == "" {
				topic = cfg.TopicDepositApproved
			}
			log, err := logger.New("payment-admin", cfg.Env)
			if err != nil {
				return err
			}
			defer log.Sync()

			reader := kafka.NewReader(cfg.KafkaBrokers, topic, group)
			defer reader.Close()

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			out := cmd.OutOrStdout()
			c := &notify.Consumer{
				Log:    log,
				Reader: reader,
				Handle: func(m kafkago.Message) error {
					_, err := fmt.Fprintln(out, string(m.Value))
					return err
				},
			}
			if err := c.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&topic, "topic", "t", "", "tópico (default: KAFKA_TOPIC_DEPOSIT_APPROVED)")
	cmd.Flags().StringVarP(&group, "group", "g", "", "consumer group (vazio: só mensagens novas)")
	return cmd
}
