package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/chiearnhub/payment-bridge/internal/payment-service/deposit"
	"github.com/chiearnhub/payment-bridge/internal/payment-service/dto"
)

const (
	healthMessage  = "Chiearnhub backend running ✅"
	maxWebhookBody = 1 << 20
)

// BalanceCache é o cache de saldo (Redis). Opcional.
// FillBalance só grava se a chave não existir: o valor escrito pela
// aprovação sempre vence uma leitura antiga do banco.
type BalanceCache interface {
	GetBalance(ctx context.Context, userID string) (int64, bool, error)
	FillBalance(ctx context.Context, userID string, balance int64) error
}

// Server expõe a API pública: init, webhook, consultas e feed websocket.
type Server struct {
	log *zap.Logger
	svc *deposit.Service

	Cache BalanceCache     // nil desliga o cache de saldo
	WS    http.HandlerFunc // nil desliga /ws/deposits
}

func NewServer(log *zap.Logger, svc *deposit.Service) *Server {
	return &Server{log: log, svc: svc}
}

// Router monta as rotas com chi
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, withCORS)

	r.Get("/", s.health)
	r.Post("/init-xixipay", s.initXixipay)         // abre sessão no gateway
	r.Post("/xixipay-webhook", s.xixipayWebhook)   // callback do gateway
	r.Get("/deposits/{depositId}", s.getDeposit)   // status do depósito
	r.Get("/users/{userId}/balance", s.getBalance) // saldo
	if s.WS != nil {
		r.Get("/ws/deposits", s.WS) // ?userId=...
	}
	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, healthMessage)
}

func (s *Server) initXixipay(w http.ResponseWriter, r *http.Request) {
	var req dto.InitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// campo com tipo errado fica zerado e cai na validação normal
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			writeJSON(w, http.StatusBadRequest, dto.InitResponse{Success: false, Message: "invalid json"})
			return
		}
		s.log.Debug("init request field type mismatch", zap.String("field", typeErr.Field), zap.Error(err))
	}

	url, err := s.svc.Initiate(r.Context(), deposit.InitInput{
		Amount:    req.Amount,
		Email:     req.Email,
		DepositID: req.DepositID,
		UserID:    req.UserID,
	})

	var gwErr *deposit.GatewayError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, dto.InitResponse{Success: true, PaymentURL: url})
	case errors.Is(err, deposit.ErrInvalidAmount):
		writeJSON(w, http.StatusOK, dto.InitResponse{
			Success: false,
			Message: fmt.Sprintf("Minimum deposit is ₦%d", s.svc.MinAmount()),
		})
	case errors.Is(err, deposit.ErrMissingFields):
		writeJSON(w, http.StatusOK, dto.InitResponse{Success: false, Message: "Missing parameters"})
	case errors.Is(err, deposit.ErrAlreadyApproved):
		writeJSON(w, http.StatusOK, dto.InitResponse{Success: false, Message: "Deposit already approved"})
	case errors.As(err, &gwErr):
		writeJSON(w, http.StatusOK, dto.InitResponse{Success: false, Message: "Xixapay init failed", Raw: gwErr.Raw})
	default:
		s.log.Error("init xixipay failed",
			zap.String("deposit_id", req.DepositID),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, dto.InitResponse{Success: false, Message: "internal error"})
	}
}

// xixipayWebhook responde texto puro; 500 faz o gateway reenviar.
func (s *Server) xixipayWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeText(w, http.StatusInternalServerError, string(deposit.OutcomeError))
		return
	}
	s.log.Info("xixapay webhook received", zap.ByteString("body", body))

	var p dto.WebhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		// payload ilegível não tem status de sucesso
		s.log.Warn("webhook payload not json", zap.Error(err))
		writeText(w, http.StatusOK, string(deposit.OutcomeIgnored))
		return
	}

	out, err := s.svc.Reconcile(r.Context(), deposit.WebhookEvent{
		Status:    p.Status,
		DepositID: p.Metadata.DepositID,
	})
	if err != nil {
		s.log.Error("webhook reconcile failed",
			zap.String("deposit_id", p.Metadata.DepositID),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeText(w, http.StatusInternalServerError, string(deposit.OutcomeError))
		return
	}
	writeText(w, http.StatusOK, string(out))
}

func (s *Server) getDeposit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "depositId")
	d, err := s.svc.GetDeposit(r.Context(), id)
	if errors.Is(err, deposit.ErrDepositNotFound) {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "not found"})
		return
	}
	if err != nil {
		s.log.Error("get deposit failed", zap.String("deposit_id", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, dto.DepositResponse{
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

// getBalance lê primeiro do cache. Usuário sem registro tem saldo zero.
func (s *Server) getBalance(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	if s.Cache != nil {
		if bal, ok, _ := s.Cache.GetBalance(r.Context(), userID); ok {
			writeJSON(w, http.StatusOK, dto.BalanceResponse{UserID: userID, Balance: bal})
			return
		}
	}

	u, err := s.svc.GetUser(r.Context(), userID)
	if errors.Is(err, deposit.ErrUserNotFound) {
		writeJSON(w, http.StatusOK, dto.BalanceResponse{UserID: userID, Balance: 0})
		return
	}
	if err != nil {
		s.log.Error("get balance failed", zap.String("user_id", userID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "internal error"})
		return
	}

	if s.Cache != nil {
		_ = s.Cache.FillBalance(r.Context(), userID, u.Balance)
	}
	writeJSON(w, http.StatusOK, dto.BalanceResponse{UserID: userID, Balance: u.Balance})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, msg)
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}
