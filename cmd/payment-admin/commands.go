package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chiearnhub/payment-bridge/internal/payment-service/deposit"
	"github.com/chiearnhub/payment-bridge/internal/payment-service/dto"
	"github.com/chiearnhub/payment-bridge/internal/payment-service/notify"
	"github.com/chiearnhub/payment-bridge/internal/payment-service/repo"
	"github.com/chiearnhub/payment-bridge/internal/shared/cache"
	"github.com/chiearnhub/payment-bridge/internal/shared/config"
	"github.com/chiearnhub/payment-bridge/internal/shared/kafka"
	"github.com/chiearnhub/payment-bridge/internal/shared/logger"
)

const cmdTimeout = 30 * time.Second

// env monta config, logger e store para um comando.
type env struct {
	cfg   config.Config
	log   *zap.Logger
	store deposit.Store
	close []func()
}

func openEnv(ctx context.Context) (*env, error) {
	cfg := config.Load()
	cfg.ServiceName = "payment-admin"
	if cfg.StoreDriver == "memory" {
		return nil, errors.New("payment-admin needs a persistent store (postgres or mongo)")
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		return nil, err
	}
	store, err := repo.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	e := &env{cfg: cfg, log: log, store: store}
	e.close = append(e.close, func() { _ = store.Close() }, func() { _ = log.Sync() })
	return e, nil
}

func (e *env) Close() {
	for i := len(e.close) - 1; i >= 0; i-- {
		e.close[i]()
	}
}

// notifiers replica o fan-out do serviço para que um crédito manual
// também grave o marcador, publique no feed e emita o evento.
func (e *env) notifiers() (notify.Multi, error) {
	var out notify.Multi
	if e.cfg.RedisAddr != "" {
		r, err := cache.ConnectRedis(e.cfg.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		e.close = append(e.close, func() { _ = r.Close() })
		out = append(out, notify.NewRedis(e.log, r, e.cfg.RedisUpdatesChannel, e.cfg.ProcessedMarkerTTL))
	}
	if e.cfg.KafkaBrokers != "" {
		ini := kafka.NewWriter(e.cfg.KafkaBrokers, e.cfg.TopicDepositInitiated)
		appr := kafka.NewWriter(e.cfg.KafkaBrokers, e.cfg.TopicDepositApproved)
		e.close = append(e.close, func() { _ = ini.Close() }, func() { _ = appr.Close() })
		out = append(out, notify.NewKafkaPublisher(e.log, ini, appr))
	}
	return out, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Aplica o schema (postgres) ou os índices (mongo)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), cmdTimeout)
			defer cancel()
			// repo.Open já migra
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "schema ready (%s)\n", e.cfg.StoreDriver)
			return nil
		},
	}
}

func depositCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deposit",
		Short: "Consulta depósitos",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show [depositId]",
		Short: "Mostra um depósito em JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), cmdTimeout)
			defer cancel()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			d, err := e.store.GetDeposit(ctx, args[0])
			if err != nil {
				return err
			}
			return printDeposit(cmd.OutOrStdout(), d)
		},
	})
	return cmd
}

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile [depositId]",
		Short: "Credita um depósito confirmado no painel do gateway",
		Long: `Aplica a mesma transação do webhook a um depósito.

Útil quando o gateway confirmou o pagamento mas o webhook nunca chegou.
Depósitos já aprovados não são creditados de novo.

Exemplo:
  payment-admin reconcile D1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), cmdTimeout)
			defer cancel()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			n, err := e.notifiers()
			if err != nil {
				return err
			}
			// gateway não participa da reconciliação
			svc := deposit.NewService(e.log, e.store, nil, n, e.cfg.MinDeposit)
			out, err := svc.ReconcileDeposit(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

func balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance [userId]",
		Short: "Mostra o saldo do usuário",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), cmdTimeout)
			defer cancel()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			var bal int64
			u, err := e.store.GetUser(ctx, args[0])
			switch {
			case errors.Is(err, deposit.ErrUserNotFound):
			case err != nil:
				return err
			default:
				bal = u.Balance
			}
			return writeJSON(cmd.OutOrStdout(), dto.BalanceResponse{UserID: args[0], Balance: bal})
		},
	}
}

func printDeposit(w io.Writer, d *deposit.Deposit) error {
	return writeJSON(w, dto.DepositResponse{
		DepositID:  d.ID,
		UserID:     d.UserID,
		Amount:     d.Amount,
		Method:     d.Method,
		Reference:  d.Reference,
		Status:     string(d.Status),
		PaymentURL: d.PaymentURL,
		CreatedAt:  d.CreatedAt,
		PaidAt:     d.PaidAt,
	})
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
