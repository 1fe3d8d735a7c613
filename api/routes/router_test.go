package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	checkoutsvc "github.com/posterloft/posterloft-backend/internal/checkout"
	"github.com/posterloft/posterloft-backend/internal/orders"
	"github.com/posterloft/posterloft-backend/internal/payments"
	pkgauth "github.com/posterloft/posterloft-backend/pkg/auth"
	"github.com/posterloft/posterloft-backend/pkg/config"
	"github.com/posterloft/posterloft-backend/pkg/db/models"
	"github.com/posterloft/posterloft-backend/pkg/enums"
	"github.com/posterloft/posterloft-backend/pkg/logger"
	"github.com/posterloft/posterloft-backend/pkg/metrics"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubCheckoutService struct {
	lastInput checkoutsvc.SessionInput
}

func (s *stubCheckoutService) CreateSession(ctx context.Context, input checkoutsvc.SessionInput) (*payments.CheckoutSession, error) {
	s.lastInput = input
	return &payments.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.test/c/cs_test_1"}, nil
}

type stubLifecycle struct{}

func (stubLifecycle) OnPaymentConfirmed(ctx context.Context, evt orders.PaymentConfirmed) (*models.Order, error) {
	return nil, nil
}

func (stubLifecycle) OnFulfillmentEvent(ctx context.Context, evt orders.FulfillmentStatusChanged) (orders.FulfillmentResult, error) {
	return orders.FulfillmentResult{}, nil
}

func (stubLifecycle) RetrySubmission(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return &models.Order{ID: orderID, Status: enums.OrderStatusSentToFulfillment}, nil
}

type testRouter struct {
	handler  http.Handler
	checkout *stubCheckoutService
	cfg      *config.Config
}

func testConfig() *config.Config {
	return &config.Config{
		App:          config.AppConfig{Env: "test"},
		Auth:         config.AuthConfig{JWTSecret: "router-secret", Issuer: "https://id.posterloft.test", AdminRole: "admin"},
		FeatureFlags: config.FeatureFlagsConfig{Metrics: true},
	}
}

func newTestRouter(t *testing.T) testRouter {
	t.Helper()
	cfg := testConfig()
	verifier, err := pkgauth.NewVerifier(cfg.Auth)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	registry := prometheus.NewRegistry()
	checkout := &stubCheckoutService{}
	logg := logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})

	handler := NewRouter(
		cfg,
		logg,
		stubPinger{},
		nil,
		registry,
		metrics.NewOrderMetrics(registry),
		verifier,
		checkout,
		stubLifecycle{},
		nil,
		nil,
		nil,
		nil,
	)
	return testRouter{handler: handler, checkout: checkout, cfg: cfg}
}

func (tr testRouter) do(method, path, body, token string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	tr.handler.ServeHTTP(resp, req)
	return resp
}

func buildToken(t *testing.T, cfg *config.Config, role string) string {
	t.Helper()
	token, err := pkgauth.SignIdentityToken(cfg.Auth, time.Now(), time.Hour, pkgauth.Identity{
		AccountID: uuid.NewString(),
		Email:     "someone@posterloft.test",
		Role:      role,
	})
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestHealthRoutes(t *testing.T) {
	router := newTestRouter(t)

	for _, path := range []string{"/health/live", "/health/ready"} {
		resp := router.do(http.MethodGet, path, "", "")
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200 for %s got %d", path, resp.Code)
		}
		if resp.Header().Get("X-Request-Id") == "" {
			t.Fatalf("expected request id header on %s", path)
		}
	}
}

func TestWebhookRoutesAndAliasesAreMounted(t *testing.T) {
	router := newTestRouter(t)

	// Services are not wired in this router, so each route answers 500 rather than 404/405.
	for _, path := range []string{"/webhooks/payment", "/api/v1/webhooks/stripe", "/webhooks/fulfillment", "/api/v1/webhooks/prodigi"} {
		resp := router.do(http.MethodPost, path, "{}", "")
		if resp.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500 from unwired %s got %d", path, resp.Code)
		}
	}

	resp := router.do(http.MethodGet, "/webhooks/payment", "", "")
	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET webhook got %d", resp.Code)
	}
}

func TestMetricsEndpointExportsWebhookCounters(t *testing.T) {
	router := newTestRouter(t)
	router.do(http.MethodPost, "/webhooks/fulfillment", "{}", "")

	resp := router.do(http.MethodGet, "/metrics", "", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for metrics got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `webhook_events_total{outcome="error",source="fulfillment"} 1`) {
		t.Fatalf("expected fulfillment webhook counter in metrics output:\n%s", resp.Body.String())
	}
}

func TestCheckoutAllowsGuestsAndAttachesAccount(t *testing.T) {
	router := newTestRouter(t)
	body := `{"catalog_item_id":"midnight-harbor","size":"18x24","paper":"standard"}`

	resp := router.do(http.MethodPost, "/api/v1/checkout/sessions", body, "")
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 for guest checkout got %d: %s", resp.Code, resp.Body.String())
	}
	if router.checkout.lastInput.AccountID != "" {
		t.Fatalf("expected guest checkout without account id")
	}

	resp = router.do(http.MethodPost, "/api/v1/checkout/sessions", body, buildToken(t, router.cfg, "authenticated"))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 for signed-in checkout got %d", resp.Code)
	}
	if router.checkout.lastInput.AccountID == "" {
		t.Fatalf("expected account id from bearer token")
	}
	if router.checkout.lastInput.CustomerEmail != "someone@posterloft.test" {
		t.Fatalf("expected email from bearer token, got %q", router.checkout.lastInput.CustomerEmail)
	}

	resp = router.do(http.MethodPost, "/api/v1/checkout/sessions", body, "not-a-token")
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected invalid bearer to fall back to guest got %d", resp.Code)
	}
}

func TestAdminRetryRequiresAdminRole(t *testing.T) {
	router := newTestRouter(t)
	path := "/api/admin/v1/orders/" + uuid.NewString() + "/retry-fulfillment"

	resp := router.do(http.MethodPost, path, "", "")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 when missing token got %d", resp.Code)
	}

	resp = router.do(http.MethodPost, path, "", buildToken(t, router.cfg, "authenticated"))
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin got %d", resp.Code)
	}

	resp = router.do(http.MethodPost, path, "", buildToken(t, router.cfg, "admin"))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin retry got %d: %s", resp.Code, resp.Body.String())
	}
}
