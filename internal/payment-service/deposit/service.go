package deposit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Service implementa os dois fluxos: abertura de sessão no gateway e
// reconciliação do webhook em saldo.
type Service struct {
	log       *zap.Logger
	store     Store
	gateway   Gateway
	notifier  Notifier
	minAmount int64
	now       func() time.Time

	OnInit      func(result string)  // métricas
	OnReconcile func(outcome string) // métricas
	OnCredit    func(amount int64)   // métricas
}

func NewService(log *zap.Logger, store Store, gw Gateway, notifier Notifier, minAmount int64) *Service {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Service{
		log:       log,
		store:     store,
		gateway:   gw,
		notifier:  notifier,
		minAmount: minAmount,
		now:       time.Now,
	}
}

// MinAmount é o valor mínimo aceito por Initiate.
func (s *Service) MinAmount() int64 { return s.minAmount }

// Reference gera a referência enviada ao gateway: CH_<unix ms>_<depositId>.
func Reference(now time.Time, depositID string) string {
	return fmt.Sprintf("CH_%d_%s", now.UnixMilli(), depositID)
}

// Initiate valida o pedido, grava o depósito como initiated antes de chamar
// o gateway e, com sucesso, salva a URL de pagamento e passa para pending.
func (s *Service) Initiate(ctx context.Context, in InitInput) (string, error) {
	url, err := s.initiate(ctx, in)
	s.countInit(err)
	return url, err
}

func (s *Service) initiate(ctx context.Context, in InitInput) (string, error) {
	if err := ValidateInit(in, s.minAmount); err != nil {
		return "", err
	}

	now := s.now()
	d := &Deposit{
		ID:        in.DepositID,
		UserID:    in.UserID,
		Email:     in.Email,
		Amount:    in.Amount,
		Method:    MethodXixapay,
		Reference: Reference(now, in.DepositID),
		Status:    StatusInitiated,
		CreatedAt: now,
	}

	// registro existe mesmo se o gateway falhar (reconciliação manual)
	if err := s.store.CreateDeposit(ctx, d); err != nil {
		return "", fmt.Errorf("create deposit: %w", err)
	}

	sess, err := s.gateway.Initiate(ctx, SessionRequest{
		Amount:    d.Amount,
		Email:     d.Email,
		Reference: d.Reference,
		DepositID: d.ID,
	})
	if err != nil {
		var gwErr *GatewayError
		if errors.As(err, &gwErr) {
			s.log.Error("xixapay init failed",
				zap.String("deposit_id", d.ID),
				zap.String("reference", d.Reference),
				zap.ByteString("raw", gwErr.Raw),
			)
			return "", err
		}
		return "", fmt.Errorf("gateway initiate: %w", err)
	}

	if err := s.store.MarkPending(ctx, d.ID, sess.PaymentURL); err != nil {
		return "", fmt.Errorf("mark pending: %w", err)
	}
	d.Status = StatusPending
	d.PaymentURL = sess.PaymentURL

	s.log.Info("deposit initiated",
		zap.String("deposit_id", d.ID),
		zap.String("user_id", d.UserID),
		zap.Int64("amount", d.Amount),
		zap.String("reference", d.Reference),
	)
	s.notifier.DepositInitiated(ctx, *d)

	return sess.PaymentURL, nil
}

// Reconcile aplica um webhook do gateway. Desfechos não fatais voltam como
// Outcome com err nil; err != nil significa falha interna (gateway reenvia).
func (s *Service) Reconcile(ctx context.Context, ev WebhookEvent) (Outcome, error) {
	out, err := s.reconcile(ctx, ev)
	if err != nil {
		s.countReconcile(OutcomeError)
		return OutcomeError, err
	}
	s.countReconcile(out)
	return out, nil
}

func (s *Service) reconcile(ctx context.Context, ev WebhookEvent) (Outcome, error) {
	if ev.Status != GatewaySuccessStatus {
		return OutcomeIgnored, nil
	}
	if ev.DepositID == "" {
		return OutcomeNoDepositID, nil
	}

	d, err := s.store.GetDeposit(ctx, ev.DepositID)
	if errors.Is(err, ErrDepositNotFound) {
		s.log.Warn("webhook for unknown deposit", zap.String("deposit_id", ev.DepositID))
		return OutcomeNotFound, nil
	}
	if err != nil {
		return "", fmt.Errorf("get deposit: %w", err)
	}
	// marcador do cache evita abrir a transação em reenvios
	if d.Status == StatusApproved || s.notifier.AlreadyProcessed(ctx, d.ID) {
		return OutcomeAlreadyProcessed, nil
	}

	return s.approve(ctx, d.ID)
}

// ReconcileDeposit credita um depósito confirmado fora do webhook
// (ex.: pagamento conferido no painel do gateway). Mesmo caminho atômico.
func (s *Service) ReconcileDeposit(ctx context.Context, depositID string) (Outcome, error) {
	if depositID == "" {
		return OutcomeNoDepositID, nil
	}
	out, err := s.approve(ctx, depositID)
	if err != nil {
		return OutcomeError, err
	}
	return out, nil
}

func (s *Service) approve(ctx context.Context, depositID string) (Outcome, error) {
	a, err := s.store.ApproveDeposit(ctx, depositID, s.now())
	switch {
	case errors.Is(err, ErrAlreadyApproved):
		// outro webhook venceu a corrida
		return OutcomeAlreadyProcessed, nil
	case errors.Is(err, ErrDepositNotFound):
		return OutcomeNotFound, nil
	case err != nil:
		return "", fmt.Errorf("approve deposit: %w", err)
	}

	s.log.Info("deposit approved",
		zap.String("deposit_id", a.Deposit.ID),
		zap.String("user_id", a.Deposit.UserID),
		zap.Int64("amount", a.Deposit.Amount),
		zap.Int64("new_balance", a.NewBalance),
	)
	if s.OnCredit != nil {
		s.OnCredit(a.Deposit.Amount)
	}
	s.notifier.DepositApproved(ctx, *a)
	return OutcomeOK, nil
}

// GetDeposit e GetUser são leituras simples para a API de consulta.
func (s *Service) GetDeposit(ctx context.Context, depositID string) (*Deposit, error) {
	return s.store.GetDeposit(ctx, depositID)
}

func (s *Service) GetUser(ctx context.Context, userID string) (*User, error) {
	return s.store.GetUser(ctx, userID)
}

func (s *Service) countInit(err error) {
	if s.OnInit == nil {
		return
	}
	var gwErr *GatewayError
	switch {
	case err == nil:
		s.OnInit("ok")
	case IsValidation(err):
		s.OnInit("invalid")
	case errors.Is(err, ErrAlreadyApproved):
		s.OnInit("conflict")
	case errors.As(err, &gwErr):
		s.OnInit("gateway_error")
	default:
		s.OnInit("error")
	}
}

func (s *Service) countReconcile(out Outcome) {
	if s.OnReconcile != nil {
		s.OnReconcile(string(out))
	}
}
