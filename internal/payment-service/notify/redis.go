package notify

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/chiearnhub/payment-bridge/internal/payment-service/deposit"
	"github.com/chiearnhub/payment-bridge/pkg/contracts/events"
)

const balanceTTL = 30 * time.Second

func keyProcessed(depositID string) string { return "processed:deposit:" + depositID }
func keyBalance(userID string) string      { return "balance:user:" + userID }

// Redis mantém o marcador de depósito processado, o cache de saldo e
// publica DepositUpdate no canal consumido pelo feed websocket.
type Redis struct {
	log       *zap.Logger
	R         *redis.Client
	Channel   string
	MarkerTTL time.Duration
}

func NewRedis(log *zap.Logger, r *redis.Client, channel string, markerTTL time.Duration) *Redis {
	return &Redis{log: log, R: r, Channel: channel, MarkerTTL: markerTTL}
}

func (n *Redis) DepositInitiated(ctx context.Context, d deposit.Deposit) {
	n.publish(ctx, events.DepositUpdate{DepositID: d.ID, UserID: d.UserID, Status: string(d.Status)})
}

// DepositApproved só roda depois do commit, então o marcador nunca
// esconde um crédito que falhou.
func (n *Redis) DepositApproved(ctx context.Context, a deposit.Approval) {
	if err := n.R.Set(ctx, keyProcessed(a.Deposit.ID), "1", n.MarkerTTL).Err(); err != nil {
		n.log.Warn("redis set processed marker failed", zap.String("deposit_id", a.Deposit.ID), zap.Error(err))
	}
	if err := n.R.Set(ctx, keyBalance(a.Deposit.UserID), a.NewBalance, balanceTTL).Err(); err != nil {
		n.log.Warn("redis set balance failed", zap.String("user_id", a.Deposit.UserID), zap.Error(err))
	}
	bal := a.NewBalance
	n.publish(ctx, events.DepositUpdate{
		DepositID: a.Deposit.ID,
		UserID:    a.Deposit.UserID,
		Status:    string(deposit.StatusApproved),
		Balance:   &bal,
	})
}

// AlreadyProcessed consulta o marcador. Redis fora do ar cai no caminho
// normal (store decide).
func (n *Redis) AlreadyProcessed(ctx context.Context, depositID string) bool {
	c, err := n.R.Exists(ctx, keyProcessed(depositID)).Result()
	if err != nil {
		n.log.Warn("redis exists failed", zap.String("deposit_id", depositID), zap.Error(err))
		return false
	}
	return c > 0
}

// GetBalance lê o saldo em cache; ok=false em miss.
func (n *Redis) GetBalance(ctx context.Context, userID string) (int64, bool, error) {
	s, err := n.R.Get(ctx, keyBalance(userID)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

// FillBalance preenche o cache após leitura do banco. SETNX: se uma
// aprovação já escreveu o saldo novo, a leitura antiga não sobrescreve.
func (n *Redis) FillBalance(ctx context.Context, userID string, balance int64) error {
	return n.R.SetNX(ctx, keyBalance(userID), balance, balanceTTL).Err()
}

func (n *Redis) publish(ctx context.Context, upd events.DepositUpdate) {
	b, _ := json.Marshal(upd)
	if err := n.R.Publish(ctx, n.Channel, b).Err(); err != nil {
		n.log.Warn("redis publish failed", zap.String("deposit_id", upd.DepositID), zap.Error(err))
	}
}
