package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/chiearnhub/payment-bridge/internal/payment-service/deposit"
	"github.com/chiearnhub/payment-bridge/internal/payment-service/dto"
	"github.com/chiearnhub/payment-bridge/internal/payment-service/repo"
)

type mockGateway struct {
	InitiateFn func(ctx context.Context, req deposit.SessionRequest) (*deposit.Session, error)
}

func (m *mockGateway) Initiate(ctx context.Context, req deposit.SessionRequest) (*deposit.Session, error) {
	return m.InitiateFn(ctx, req)
}

func payURL(req deposit.SessionRequest) string { return "https://pay.xixapay.com/" + req.DepositID }

func okGateway() *mockGateway {
	return &mockGateway{InitiateFn: func(_ context.Context, req deposit.SessionRequest) (*deposit.Session, error) {
		return &deposit.Session{PaymentURL: payURL(req)}, nil
	}}
}

type mockCache struct {
	mu   sync.Mutex
	vals map[string]int64
	sets int
}

func (c *mockCache) GetBalance(_ context.Context, userID string) (int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.vals[userID]
	return v, ok, nil
}

func (c *mockCache) FillBalance(_ context.Context, userID string, bal int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.vals[userID]; ok {
		return nil
	}
	c.vals[userID] = bal
	c.sets++
	return nil
}

// seedBalance credita amount por um depósito já aprovado
func seedBalance(t *testing.T, store *repo.Memory, userID string, amount int64) {
	t.Helper()
	ctx := context.Background()
	id := "seed-" + userID
	d := &deposit.Deposit{ID: id, UserID: userID, Amount: amount, Method: deposit.MethodXixapay, Status: deposit.StatusInitiated}
	if err := store.CreateDeposit(ctx, d); err != nil {
		t.Fatalf("seed create: %v", err)
	}
	if _, err := store.ApproveDeposit(ctx, id, time.Now()); err != nil {
		t.Fatalf("seed approve: %v", err)
	}
}

func newTestServer(store deposit.Store, gw deposit.Gateway) *Server {
	svc := deposit.NewService(zap.NewNop(), store, gw, nil, 100)
	return NewServer(zap.NewNop(), svc)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeInit(t *testing.T, rec *httptest.ResponseRecorder) dto.InitResponse {
	t.Helper()
	var out dto.InitResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func initBody(amount int64, depositID, userID string) string {
	b, _ := json.Marshal(dto.InitRequest{Amount: amount, Email: userID + "@mail.com", DepositID: depositID, UserID: userID})
	return string(b)
}

func webhookBody(status, depositID string) string {
	b, _ := json.Marshal(dto.WebhookPayload{Status: status, Metadata: dto.WebhookMetadata{DepositID: depositID}})
	return string(b)
}

func TestHealth(t *testing.T) {
	h := newTestServer(repo.NewMemory(), okGateway()).Router()
	rec := do(t, h, http.MethodGet, "/", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "Chiearnhub backend running ✅" {
		t.Fatalf("health = %d %q", rec.Code, rec.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(repo.NewMemory(), okGateway()).Router()
	rec := do(t, h, http.MethodOptions, "/init-xixipay", "")
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("preflight = %d headers=%v", rec.Code, rec.Header())
	}
}

// Cenário D1/U1: initiated antes do gateway, pending com URL depois.
func TestInitXixipaySuccess(t *testing.T) {
	store := repo.NewMemory()
	var statusDuringCall deposit.Status
	gw := &mockGateway{InitiateFn: func(ctx context.Context, req deposit.SessionRequest) (*deposit.Session, error) {
		d, err := store.GetDeposit(ctx, req.DepositID)
		if err == nil {
			statusDuringCall = d.Status
		}
		return &deposit.Session{PaymentURL: payURL(req)}, nil
	}}
	h := newTestServer(store, gw).Router()

	rec := do(t, h, http.MethodPost, "/init-xixipay", initBody(500, "D1", "U1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	out := decodeInit(t, rec)
	if !out.Success || out.PaymentURL != "https://pay.xixapay.com/D1" {
		t.Fatalf("response = %+v", out)
	}
	if statusDuringCall != deposit.StatusInitiated {
		t.Fatalf("status during gateway call = %q, want initiated", statusDuringCall)
	}
	d, _ := store.GetDeposit(context.Background(), "D1")
	if d.Status != deposit.StatusPending || d.PaymentURL != out.PaymentURL {
		t.Fatalf("deposit = %+v", d)
	}
}

func TestInitXixipayErrors(t *testing.T) {
	gwFail := &mockGateway{InitiateFn: func(context.Context, deposit.SessionRequest) (*deposit.Session, error) {
		return nil, &deposit.GatewayError{Message: "bad key", Raw: json.RawMessage(`{"status":false,"message":"bad key"}`)}
	}}
	gwDown := &mockGateway{InitiateFn: func(context.Context, deposit.SessionRequest) (*deposit.Session, error) {
		return nil, errors.New("connection refused")
	}}

	cases := []struct {
		name       string
		gw         deposit.Gateway
		body       string
		wantCode   int
		wantMsg    string
		wantRaw    bool
		wantStored bool
	}{
		{"below minimum", okGateway(), initBody(99, "D1", "U1"), http.StatusOK, "Minimum deposit is ₦100", false, false},
		{"missing fields", okGateway(), `{"amount":500,"email":"a@b.com"}`, http.StatusOK, "Missing parameters", false, false},
		{"amount as string", okGateway(), `{"amount":"500","email":"a@b.com","depositId":"D1","userId":"U1"}`, http.StatusOK, "Minimum deposit is ₦100", false, false},
		{"fractional amount", okGateway(), `{"amount":50.5,"email":"a@b.com","depositId":"D1","userId":"U1"}`, http.StatusOK, "Minimum deposit is ₦100", false, false},
		{"numeric deposit id", okGateway(), `{"amount":500,"email":"a@b.com","depositId":7,"userId":"U1"}`, http.StatusOK, "Missing parameters", false, false},
		{"bad json", okGateway(), `{"amount":`, http.StatusBadRequest, "invalid json", false, false},
		{"empty body", okGateway(), ``, http.StatusBadRequest, "invalid json", false, false},
		{"gateway refused", gwFail, initBody(500, "D1", "U1"), http.StatusOK, "Xixapay init failed", true, true},
		{"gateway down", gwDown, initBody(500, "D1", "U1"), http.StatusInternalServerError, "internal error", false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := repo.NewMemory()
			h := newTestServer(store, tc.gw).Router()

			rec := do(t, h, http.MethodPost, "/init-xixipay", tc.body)
			if rec.Code != tc.wantCode {
				t.Fatalf("code = %d, want %d", rec.Code, tc.wantCode)
			}
			out := decodeInit(t, rec)
			if out.Success || out.Message != tc.wantMsg {
				t.Fatalf("response = %+v", out)
			}
			if tc.wantRaw != (len(out.Raw) > 0) {
				t.Fatalf("raw = %s", out.Raw)
			}

			d, err := store.GetDeposit(context.Background(), "D1")
			if tc.wantStored {
				if err != nil || d.Status != deposit.StatusInitiated {
					t.Fatalf("expected initiated deposit, got %+v err=%v", d, err)
				}
			} else if !errors.Is(err, deposit.ErrDepositNotFound) {
				t.Fatalf("no deposit expected, got %+v", d)
			}
		})
	}
}

func TestWebhookFlow(t *testing.T) {
	store := repo.NewMemory()
	h := newTestServer(store, okGateway()).Router()
	do(t, h, http.MethodPost, "/init-xixipay", initBody(500, "D1", "U1"))

	steps := []struct {
		body string
		want string
	}{
		{webhookBody("failed", "D1"), "ignored"},
		{`{"status":"success","metadata":{}}`, "no depositId"},
		{webhookBody("success", "D404"), "deposit not found"},
		{webhookBody("success", "D1"), "ok"},
		{webhookBody("success", "D1"), "already processed"},
		{`not json`, "ignored"},
	}
	for _, st := range steps {
		rec := do(t, h, http.MethodPost, "/xixipay-webhook", st.body)
		if rec.Code != http.StatusOK || rec.Body.String() != st.want {
			t.Fatalf("body %s: got %d %q, want %q", st.body, rec.Code, rec.Body.String(), st.want)
		}
		if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain") {
			t.Fatalf("content-type = %q", rec.Header().Get("Content-Type"))
		}
	}

	u, _ := store.GetUser(context.Background(), "U1")
	d, _ := store.GetDeposit(context.Background(), "D1")
	if u.Balance != 500 || d.Status != deposit.StatusApproved || d.PaidAt == nil {
		t.Fatalf("balance=%d deposit=%+v", u.Balance, d)
	}
	if _, err := store.GetUser(context.Background(), "D404"); !errors.Is(err, deposit.ErrUserNotFound) {
		t.Fatal("unknown deposit must not create users")
	}
}

type brokenStore struct {
	*repo.Memory
}

func (brokenStore) ApproveDeposit(context.Context, string, time.Time) (*deposit.Approval, error) {
	return nil, errors.New("transaction aborted")
}

func TestWebhookInternalErrorIs500(t *testing.T) {
	mem := repo.NewMemory()
	h := newTestServer(brokenStore{mem}, okGateway()).Router()
	do(t, h, http.MethodPost, "/init-xixipay", initBody(500, "D1", "U1"))

	rec := do(t, h, http.MethodPost, "/xixipay-webhook", webhookBody("success", "D1"))
	if rec.Code != http.StatusInternalServerError || rec.Body.String() != "error" {
		t.Fatalf("got %d %q", rec.Code, rec.Body.String())
	}
	d, _ := mem.GetDeposit(context.Background(), "D1")
	if d.Status != deposit.StatusPending {
		t.Fatalf("status = %s, want pending", d.Status)
	}
}

func TestWebhookConcurrentDepositsSameUser(t *testing.T) {
	store := repo.NewMemory()
	seedBalance(t, store, "U1", 1000)
	h := newTestServer(store, okGateway()).Router()
	do(t, h, http.MethodPost, "/init-xixipay", initBody(500, "D1", "U1"))
	do(t, h, http.MethodPost, "/init-xixipay", initBody(700, "D2", "U1"))

	var wg sync.WaitGroup
	for _, id := range []string{"D1", "D2", "D1", "D2"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			rec := do(t, h, http.MethodPost, "/xixipay-webhook", webhookBody("success", id))
			if rec.Code != http.StatusOK {
				t.Errorf("webhook %s: %d", id, rec.Code)
			}
		}(id)
	}
	wg.Wait()

	u, _ := store.GetUser(context.Background(), "U1")
	if u.Balance != 2200 {
		t.Fatalf("balance = %d, want 2200", u.Balance)
	}
}

func TestGetDeposit(t *testing.T) {
	store := repo.NewMemory()
	h := newTestServer(store, okGateway()).Router()
	do(t, h, http.MethodPost, "/init-xixipay", initBody(500, "D1", "U1"))

	rec := do(t, h, http.MethodGet, "/deposits/D1", "")
	var out dto.DepositResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	if rec.Code != http.StatusOK || out.Status != "pending" || out.Amount != 500 || out.Method != "Xixapay" {
		t.Fatalf("got %d %+v", rec.Code, out)
	}

	if rec := do(t, h, http.MethodGet, "/deposits/nope", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing deposit = %d", rec.Code)
	}
}

func TestGetBalance(t *testing.T) {
	store := repo.NewMemory()
	seedBalance(t, store, "U1", 300)
	cache := &mockCache{vals: map[string]int64{"cached": 42}}
	s := newTestServer(store, okGateway())
	s.Cache = cache
	h := s.Router()

	cases := []struct {
		user string
		want int64
	}{
		{"U1", 300},
		{"cached", 42},
		{"ghost", 0},
	}
	for _, tc := range cases {
		rec := do(t, h, http.MethodGet, "/users/"+tc.user+"/balance", "")
		var out dto.BalanceResponse
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
		if rec.Code != http.StatusOK || out.Balance != tc.want || out.UserID != tc.user {
			t.Fatalf("%s: got %d %+v", tc.user, rec.Code, out)
		}
	}
	if cache.vals["U1"] != 300 || cache.sets != 1 {
		t.Fatalf("cache not filled: %+v sets=%d", cache.vals, cache.sets)
	}
}

func TestWSRouteOnlyWhenEnabled(t *testing.T) {
	s := newTestServer(repo.NewMemory(), okGateway())
	if rec := do(t, s.Router(), http.MethodGet, "/ws/deposits?userId=U1", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("ws disabled: %d", rec.Code)
	}

	called := false
	s.WS = func(w http.ResponseWriter, r *http.Request) { called = true }
	do(t, s.Router(), http.MethodGet, "/ws/deposits?userId=U1", "")
	if !called {
		t.Fatal("ws handler not mounted")
	}
}
