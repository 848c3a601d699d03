package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/chiearnhub/payment-bridge/internal/payment-service/deposit"
)

const initiatePath = "/api/v1/payment/initiate"

// Client fala com a API do Xixapay. Implementa deposit.Gateway.
type Client struct {
	BaseURL     string
	APIKey      string
	BusinessID  string
	CallbackURL string
	RedirectURL string
	HTTP        *http.Client

	// Observe recebe status HTTP (ou "error") e latência de cada chamada
	Observe func(status string, d time.Duration)
}

func New(baseURL, apiKey, businessID, callbackURL, redirectURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL:     baseURL,
		APIKey:      apiKey,
		BusinessID:  businessID,
		CallbackURL: callbackURL,
		RedirectURL: redirectURL,
		HTTP:        &http.Client{Timeout: timeout},
	}
}

type initiateRequest struct {
	Amount      int64            `json:"amount"`
	Email       string           `json:"email"`
	Reference   string           `json:"reference"`
	CallbackURL string           `json:"callback_url"`
	RedirectURL string           `json:"redirect_url"`
	Metadata    initiateMetadata `json:"metadata"`
}

type initiateMetadata struct {
	DepositID string `json:"depositId"`
}

type initiateResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		PaymentURL string `json:"payment_url"`
	} `json:"data"`
}

// Initiate abre a sessão de pagamento. Resposta sem status=true (ou sem
// payment_url) vira *deposit.GatewayError com o corpo original.
func (c *Client) Initiate(ctx context.Context, in deposit.SessionRequest) (*deposit.Session, error) {
	body, err := json.Marshal(initiateRequest{
		Amount:      in.Amount,
		Email:       in.Email,
		Reference:   in.Reference,
		CallbackURL: c.CallbackURL,
		RedirectURL: c.RedirectURL,
		Metadata:    initiateMetadata{DepositID: in.DepositID},
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+initiatePath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("x-business-id", c.BusinessID)

	start := time.Now()
	res, err := c.HTTP.Do(req)
	if err != nil {
		c.observe("error", start)
		return nil, err
	}
	defer res.Body.Close()
	c.observe(strconv.Itoa(res.StatusCode), start)

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	var out initiateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("xixapay http %d: decode response: %w", res.StatusCode, err)
	}
	if !out.Status || out.Data.PaymentURL == "" {
		return nil, &deposit.GatewayError{Message: out.Message, Raw: raw}
	}
	return &deposit.Session{PaymentURL: out.Data.PaymentURL}, nil
}

func (c *Client) observe(status string, start time.Time) {
	if c.Observe != nil {
		c.Observe(status, time.Since(start))
	}
}
