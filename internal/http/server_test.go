package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendguard/internal/auth"
	"spendguard/internal/budget"
	"spendguard/internal/core"
	"spendguard/internal/ledger"
	"spendguard/internal/ledger/memory"
	applog "spendguard/internal/log"
)

const testSecret = "test-secret-test-secret-test-secret!"

var fixedNow = time.Date(2025, 5, 15, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	srv      *Server
	store    *memory.Store
	verifier *auth.Verifier
}

func newTestEnv(t *testing.T, mutate func(*Options)) *testEnv {
	t.Helper()
	store := memory.New()
	svc := budget.NewService(store, budget.NopNotifier{}, budget.Options{
		Now:                 func() time.Time { return fixedNow },
		CrossOwnerInference: true,
	})
	verifier := auth.NewVerifier(testSecret, "", auth.NewMemoryRevocations())
	opts := Options{
		Budget:             svc,
		Verifier:           verifier,
		Alerts:             store,
		Logger:             applog.New(applog.Config{Output: io.Discard}),
		RateLimitPerMinute: 1000,
	}
	if mutate != nil {
		mutate(&opts)
	}
	srv := NewServer(":0", opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testEnv{srv: srv, store: store, verifier: verifier}
}

func (e *testEnv) token(t *testing.T, owner string) string {
	t.Helper()
	tok, err := e.verifier.Sign(owner, time.Hour)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := env.do(t, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusOK, rr.Code, path)
		assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	}

	down := newTestEnv(t, func(o *Options) {
		o.Ready = func(context.Context) error { return errors.New("db down") }
	})
	rr := down.do(t, http.MethodGet, "/readyz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.NotContains(t, rr.Body.String(), "db down")
}

func TestAPIRequiresToken(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodGet, "/api/limits", "", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("WWW-Authenticate"))

	rr = env.do(t, http.MethodGet, "/api/limits", "not-a-jwt", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	other := auth.NewVerifier("another-secret-another-secret-another", "", nil)
	forged, err := other.Sign("mallory", time.Hour)
	require.NoError(t, err)
	rr = env.do(t, http.MethodGet, "/api/limits", forged, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAdmissionFlow(t *testing.T) {
	env := newTestEnv(t, nil)
	tok := env.token(t, "u1")

	rr := env.do(t, http.MethodPut, "/api/limits", tok, `{"limits":[{"category":"food","cap":100}]}`)
	require.Equal(t, http.StatusNoContent, rr.Code, rr.Body.String())

	rr = env.do(t, http.MethodPost, "/api/transactions", tok,
		`{"category":"food","amount":60,"payee":"Market","redirect":"/home"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	body := decode(t, rr)
	assert.Equal(t, "admit", body["outcome"])
	assert.Equal(t, "/home", body["redirect"])
	assert.Nil(t, body["details"])

	rr = env.do(t, http.MethodPost, "/api/transactions", tok,
		`{"category":"food","amount":"50","payee":"Market","redirect":"/home"}`)
	require.Equal(t, http.StatusConflict, rr.Code, rr.Body.String())
	body = decode(t, rr)
	assert.Equal(t, "reject_over_limit", body["outcome"])
	details := body["details"].(map[string]any)
	assert.InDelta(t, 40.0, details["remaining"], 0.001)
	assert.InDelta(t, 10.0, details["exceed"], 0.001)
	assert.Contains(t, body["message"], "bypass")
	assert.Equal(t, 1, env.store.Len(), "rejection must not persist")

	rr = env.do(t, http.MethodPost, "/api/transactions", tok,
		`{"category":"food","amount":50,"payee":"Market","redirect":"/home","bypass":true}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	body = decode(t, rr)
	assert.Equal(t, "admit_override", body["outcome"])
	assert.Equal(t, true, body["transaction"].(map[string]any)["exceededLimit"])

	rr = env.do(t, http.MethodGet, "/api/transactions", tok, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode(t, rr)["transactions"], 2)

	rr = env.do(t, http.MethodGet, "/api/analytics", tok, "")
	require.Equal(t, http.StatusOK, rr.Code)
	report := decode(t, rr)
	assert.InDelta(t, 110.0, report["total"], 0.001)
	rows := report["perCategory"].([]any)
	require.Len(t, rows, 1)
	food := rows[0].(map[string]any)
	assert.Equal(t, true, food["overLimit"])
	assert.InDelta(t, -10.0, food["remaining"], 0.001)
}

func TestAdmissionValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	tok := env.token(t, "u1")

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"missing category", `{"amount":5,"payee":"p","redirect":"/"}`, "category"},
		{"category not text", `{"category":7,"amount":5,"payee":"p","redirect":"/"}`, "category"},
		{"amount not numeric", `{"category":"food","amount":"abc","payee":"p","redirect":"/"}`, "amount"},
		{"negative amount", `{"category":"food","amount":-5,"payee":"p","redirect":"/"}`, "amount"},
		{"zero amount", `{"category":"food","amount":0,"payee":"p","redirect":"/"}`, "amount"},
		{"missing payee", `{"category":"food","amount":5,"redirect":"/"}`, "payee"},
		{"missing redirect", `{"category":"food","amount":5,"payee":"p"}`, "redirect"},
		{"malformed json", `{"category":`, "body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, "/api/transactions", tok, tt.body)
			require.Equal(t, http.StatusUnprocessableEntity, rr.Code, rr.Body.String())
			assert.Equal(t, tt.field, decode(t, rr)["field"])
		})
	}
	assert.Zero(t, env.store.Len())
}

func TestAdmissionFromForm(t *testing.T) {
	env := newTestEnv(t, nil)
	form := url.Values{
		"category": {"books"},
		"amount":   {"12,50"},
		"payee":    {"Shop"},
		"redirect": {"/done"},
		"bypass":   {"on"},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+env.token(t, "u1"))
	rr := httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	tx := decode(t, rr)["transaction"].(map[string]any)
	assert.InDelta(t, 12.5, tx["amount"], 0.001)
}

func TestSetLimitsRejectsWholeBatch(t *testing.T) {
	env := newTestEnv(t, nil)
	tok := env.token(t, "u1")

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"cap as string", `{"limits":[{"category":"food","cap":10},{"category":"fun","cap":"10"}]}`, "limits[1].cap"},
		{"negative cap", `{"limits":[{"category":"food","cap":-1}]}`, "limits[0].cap"},
		{"empty category", `{"limits":[{"category":"food","cap":1},{"category":" ","cap":1}]}`, "limits[1].category"},
		{"category not text", `{"limits":[{"category":true,"cap":1}]}`, "limits[0].category"},
		{"not a list", `{"limits":{"category":"food"}}`, "limits"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPut, "/api/limits", tok, tt.body)
			require.Equal(t, http.StatusUnprocessableEntity, rr.Code, rr.Body.String())
			assert.Equal(t, tt.field, decode(t, rr)["field"])
		})
	}
	assert.Zero(t, env.store.LimitCount())

	rr := env.do(t, http.MethodPut, "/api/limits", tok, `{"limits":[{"category":"food","cap":0},{"category":"fun","cap":25.5}]}`)
	require.Equal(t, http.StatusNoContent, rr.Code, rr.Body.String())
	rr = env.do(t, http.MethodGet, "/api/limits", tok, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode(t, rr)["limits"], 2)
}

func TestInferCategory(t *testing.T) {
	env := newTestEnv(t, nil)
	require.NoError(t, env.store.InsertTransaction(context.Background(), core.Transaction{
		ID: "t1", Owner: "u2", Category: "groceries", Amount: core.Money{Cents: 100},
		Payee: "Market", Timestamp: fixedNow.Add(-time.Hour),
	}))
	tok := env.token(t, "u1")

	rr := env.do(t, http.MethodGet, "/api/categories/infer?payee=Market", tok, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "groceries", decode(t, rr)["category"])

	rr = env.do(t, http.MethodGet, "/api/categories/infer?payee=Nowhere", tok, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, core.UnknownCategory, decode(t, rr)["category"])

	rr = env.do(t, http.MethodGet, "/api/categories/infer", tok, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestAnalyticsCacheInvalidatedOnWrite(t *testing.T) {
	env := newTestEnv(t, nil)
	tok := env.token(t, "u1")

	rr := env.do(t, http.MethodGet, "/api/analytics?year=2025&month=5", tok, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "miss", rr.Header().Get("X-Cache"))

	rr = env.do(t, http.MethodGet, "/api/analytics?year=2025&month=5", tok, "")
	assert.Equal(t, "hit", rr.Header().Get("X-Cache"))

	rr = env.do(t, http.MethodPost, "/api/transactions", tok,
		`{"category":"food","amount":3,"payee":"Market","redirect":"/"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/analytics?year=2025&month=5", tok, "")
	assert.Equal(t, "miss", rr.Header().Get("X-Cache"))
	assert.InDelta(t, 3.0, decode(t, rr)["total"], 0.001)

	rr = env.do(t, http.MethodGet, "/api/analytics?month=abc", tok, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	rr = env.do(t, http.MethodGet, "/api/analytics?year=2025&month=13", tok, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	env := newTestEnv(t, nil)
	tok := env.token(t, "u1")

	rr := env.do(t, http.MethodPost, "/auth/logout", tok, "")
	require.Equal(t, http.StatusNoContent, rr.Code, rr.Body.String())

	rr = env.do(t, http.MethodGet, "/api/limits", tok, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/limits", env.token(t, "u1"), "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRateLimitOnWrites(t *testing.T) {
	env := newTestEnv(t, func(o *Options) { o.RateLimitPerMinute = 2 })
	tok := env.token(t, "u1")
	body := `{"category":"food","amount":1,"payee":"p","redirect":"/"}`

	for i := 0; i < 2; i++ {
		rr := env.do(t, http.MethodPost, "/api/transactions", tok, body)
		require.Equal(t, http.StatusCreated, rr.Code)
	}
	rr := env.do(t, http.MethodPost, "/api/transactions", tok, body)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))

	// Reads are not counted.
	rr = env.do(t, http.MethodGet, "/api/transactions", tok, "")
	assert.Equal(t, http.StatusOK, rr.Code)

	// Other owners have their own window.
	rr = env.do(t, http.MethodPost, "/api/transactions", env.token(t, "u2"), body)
	assert.Equal(t, http.StatusCreated, rr.Code)
}

type failingBudget struct{ BudgetService }

func (failingBudget) ListLimits(context.Context, string) ([]core.CategoryLimit, error) {
	return nil, ledger.Unavailable("list limits", errors.New("connection refused to 10.0.0.9"))
}

func TestStoreFailureIsGeneric(t *testing.T) {
	env := newTestEnv(t, func(o *Options) { o.Budget = failingBudget{} })

	rr := env.do(t, http.MethodGet, "/api/limits", env.token(t, "u1"), "")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.NotContains(t, rr.Body.String(), "10.0.0.9")
	assert.Equal(t, "store_unavailable", decode(t, rr)["error"])
}

type cancelledBudget struct{ BudgetService }

func (cancelledBudget) InferCategory(context.Context, string, string) (string, error) {
	return "", fmt.Errorf("find latest for payee: %w", context.Canceled)
}

func TestClientCancellationIsQuiet(t *testing.T) {
	var logs bytes.Buffer
	env := newTestEnv(t, func(o *Options) {
		o.Budget = cancelledBudget{}
		o.Logger = applog.New(applog.Config{Output: &logs})
	})

	rr := env.do(t, http.MethodGet, "/api/categories/infer?payee=Amazon", env.token(t, "u1"), "")
	assert.Equal(t, StatusClientClosedRequest, rr.Code)
	assert.Equal(t, "client_closed", decode(t, rr)["error"])
	assert.NotContains(t, logs.String(), "Request failed")
	assert.NotContains(t, logs.String(), "internal_error")
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t, nil)
	rr := env.do(t, http.MethodGet, "/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
}

func TestListAlerts(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	for i, owner := range []string{"alice", "bob", "alice"} {
		require.NoError(t, env.store.RecordAlert(ctx, ledger.AlertRecord{
			Owner:      owner,
			Category:   "food",
			Outcome:    "admit_override",
			Amount:     core.Money{Cents: 1500},
			Exceed:     core.Money{Cents: int64(100 * (i + 1))},
			OccurredAt: fixedNow.Add(time.Duration(i) * time.Minute),
		}))
	}
	tok := env.token(t, "alice")

	rr := env.do(t, http.MethodGet, "/api/alerts", tok, "")
	require.Equal(t, http.StatusOK, rr.Code)
	alerts := decode(t, rr)["alerts"].([]any)
	require.Len(t, alerts, 2)
	assert.Equal(t, 3.0, alerts[0].(map[string]any)["exceed"], "newest first")

	rr = env.do(t, http.MethodGet, "/api/alerts?limit=1", tok, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode(t, rr)["alerts"], 1)

	rr = env.do(t, http.MethodGet, "/api/alerts?limit=abc", tok, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "limit", decode(t, rr)["field"])
}

func TestAlertsRouteDisabledWithoutRecorder(t *testing.T) {
	env := newTestEnv(t, func(o *Options) { o.Alerts = nil })
	rr := env.do(t, http.MethodGet, "/api/alerts", env.token(t, "alice"), "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
