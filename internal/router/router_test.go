package router

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dujiao-next/donate/internal/authz"
	"github.com/dujiao-next/donate/internal/config"
	"github.com/dujiao-next/donate/internal/constants"
	"github.com/dujiao-next/donate/internal/models"
	"github.com/dujiao-next/donate/internal/payment/gateway"
	"github.com/dujiao-next/donate/internal/payment/stripe"
	"github.com/dujiao-next/donate/internal/provider"
	"github.com/dujiao-next/donate/internal/repository"
	"github.com/dujiao-next/donate/internal/service"
	"github.com/dujiao-next/donate/internal/tenant"
	"github.com/dujiao-next/donate/internal/vault"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type routerTestEnv struct {
	engine    *gin.Engine
	container *provider.Container
	alpha     *models.Tenant
	dormant   *models.Tenant
}

type envelope struct {
	StatusCode int             `json:"status_code"`
	Msg        string          `json:"msg"`
	Data       json.RawMessage `json:"data"`
}

func newFakeStripe(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/payment_intents":
			_, _ = io.WriteString(w, `{"id":"pi_router","object":"payment_intent","status":"requires_payment_method","amount":1000,"currency":"eur","client_secret":"pi_router_secret","metadata":{}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":{"type":"invalid_request_error","message":"unknown route"}}`)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func newRouterTestEnv(t *testing.T) *routerTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	previous := models.DB
	models.DB = db
	t.Cleanup(func() { models.DB = previous })

	cfg := &config.Config{}
	cfg.Server.Mode = "debug"
	cfg.UserJWT.SecretKey = "router-test-jwt-secret"
	cfg.UserJWT.ExpireHours = 1
	cfg.Tenant.DevHosts = []string{"localhost", "example.com"}
	cfg.Captcha.Provider = constants.CaptchaProviderNone

	v, err := vault.New("router-test-vault-secret-0123456789", 1000)
	if err != nil {
		t.Fatalf("new vault failed: %v", err)
	}
	fake := newFakeStripe(t)
	base := stripe.Config{APIBaseURL: fake.URL, RetryMax: 0}
	platformCfg := base
	platformCfg.SecretKey = "sk_test_platform"
	platformCfg.PublishableKey = "pk_test_platform"
	platform, err := stripe.NewClient(platformCfg, nil)
	if err != nil {
		t.Fatalf("new platform client failed: %v", err)
	}

	c := &provider.Container{
		Config:             cfg,
		Vault:              v,
		TenantRepo:         repository.NewTenantRepository(db),
		GatewayAccountRepo: repository.NewGatewayAccountRepository(db),
		DonationRepo:       repository.NewDonationRepository(db),
		CampaignRepo:       repository.NewCampaignRepository(db),
		UserRepo:           repository.NewUserRepository(db),
		WebhookEventRepo:   repository.NewWebhookEventRepository(db),
		ReceiptRepo:        repository.NewReceiptRepository(db),
		AuditLogRepo:       repository.NewAuditLogRepository(db),
	}
	c.Gateway = gateway.NewRouter(c.GatewayAccountRepo, v, gateway.Options{
		Platform:              platform,
		PlatformWebhookSecret: "whsec_router_platform",
		ClientConfig:          base,
		DefaultCurrency:       "EUR",
		MinAmount:             decimal.RequireFromString("1.00"),
		MaxAmount:             decimal.RequireFromString("1000.00"),
	})
	authzService, err := authz.NewService(db)
	if err != nil {
		t.Fatalf("new authz service failed: %v", err)
	}
	if err := authzService.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap roles failed: %v", err)
	}
	c.AuthzService = authzService
	c.TenantService = service.NewTenantService(c.TenantRepo, c.Gateway, time.Minute)
	c.GatewayService = service.NewGatewayService(c.GatewayAccountRepo, v, c.Gateway, service.GatewayServiceOptions{ClientConfig: base})
	c.CaptchaService = service.NewCaptchaService(cfg.Captcha)
	c.UserAuthService = service.NewUserAuthService(cfg, c.UserRepo)
	c.DonationService = service.NewDonationService(c.DonationRepo, c.CampaignRepo, c.UserRepo, c.Gateway, c.CaptchaService, nil)
	c.ReceiptService = service.NewReceiptService(c.ReceiptRepo, c.DonationRepo)
	c.AuditService = service.NewAuditService(c.AuditLogRepo)
	c.WebhookService = service.NewWebhookService(c.TenantService, c.Gateway, c.WebhookEventRepo, c.DonationService, c.GatewayService, 0)

	env := &routerTestEnv{container: c}
	env.alpha = env.createTenant(t, "alpha", constants.TenantStatusActive)
	env.dormant = env.createTenant(t, "dormant", constants.TenantStatusSuspended)
	scope, _ := tenant.NewScope(env.alpha.ID)
	if err := c.GatewayAccountRepo.Save(scope, &models.GatewayAccount{ConnectAccountID: "acct_alpha", IsActive: true}); err != nil {
		t.Fatalf("save gateway account failed: %v", err)
	}

	env.engine = gin.New()
	env.engine.Use(RequestIDMiddleware())
	registerAPIRoutes(env.engine, cfg, c, nil)
	return env
}

func (e *routerTestEnv) createTenant(t *testing.T, slug, status string) *models.Tenant {
	t.Helper()
	tn := &models.Tenant{Slug: slug, Name: strings.ToUpper(slug), Status: status, PaymentMode: constants.PaymentModePlatform, Currency: "EUR"}
	if err := e.container.TenantRepo.Create(tn); err != nil {
		t.Fatalf("create tenant failed: %v", err)
	}
	return tn
}

func (e *routerTestEnv) adminToken(t *testing.T, email string, tenantID uint, roles ...string) string {
	t.Helper()
	user := &models.User{Email: email, PasswordHash: "x", Kind: constants.UserKindRegistered, Status: constants.UserStatusActive}
	if err := e.container.UserRepo.Create(user); err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	if len(roles) > 0 {
		if err := e.container.AuthzService.SetUserRoles(user.ID, tenantID, roles); err != nil {
			t.Fatalf("set roles failed: %v", err)
		}
	}
	token, _, err := e.container.UserAuthService.GenerateUserJWT(user, 1)
	if err != nil {
		t.Fatalf("generate token failed: %v", err)
	}
	return token
}

func (e *routerTestEnv) do(t *testing.T, method, target, body string, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	var resp envelope
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal response failed: %v body=%s", err, w.Body.String())
		}
	}
	return w, resp
}

func TestTenantRoutesRequireTenant(t *testing.T) {
	env := newRouterTestEnv(t)
	_, resp := env.do(t, http.MethodGet, "/api/v1/campaigns", "", nil)
	if resp.StatusCode != 400 {
		t.Fatalf("missing tenant want 400 got %d", resp.StatusCode)
	}
}

func TestTenantResolutionSources(t *testing.T) {
	env := newRouterTestEnv(t)
	cases := []struct {
		name    string
		target  string
		headers map[string]string
		want    int
	}{
		{name: "header", target: "/api/v1/campaigns", headers: map[string]string{constants.TenantHeader: "alpha"}, want: 0},
		{name: "query", target: "/api/v1/campaigns?tenant=alpha", want: 0},
		{name: "path", target: "/api/v1/tenant/alpha/campaigns", want: 0},
		{name: "unknown", target: "/api/v1/campaigns?tenant=ghost", want: 404},
		{name: "suspended", target: "/api/v1/tenant/dormant/campaigns", want: 403},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, resp := env.do(t, http.MethodGet, tc.target, "", tc.headers)
			if resp.StatusCode != tc.want {
				t.Fatalf("status_code want %d got %d (%s)", tc.want, resp.StatusCode, resp.Msg)
			}
		})
	}
}

func TestGlobalTenantInfoIsExempt(t *testing.T) {
	env := newRouterTestEnv(t)
	_, resp := env.do(t, http.MethodGet, "/api/v1/global/tenants/alpha", "", nil)
	if resp.StatusCode != 0 {
		t.Fatalf("tenant info want 0 got %d", resp.StatusCode)
	}
	var view struct {
		Slug string `json:"slug"`
	}
	if err := json.Unmarshal(resp.Data, &view); err != nil || view.Slug != "alpha" {
		t.Fatalf("unexpected tenant info: %s", string(resp.Data))
	}
}

func TestCreateDonationThroughPathTenant(t *testing.T) {
	env := newRouterTestEnv(t)
	_, resp := env.do(t, http.MethodPost, "/api/v1/tenant/alpha/donations", `{"amount":"10.00","donor_email":"donor@example.com"}`, nil)
	if resp.StatusCode != 0 {
		t.Fatalf("create donation want 0 got %d (%s)", resp.StatusCode, resp.Msg)
	}
	var result struct {
		PaymentIntentID string `json:"payment_intent_id"`
		ClientSecret    string `json:"client_secret"`
		Donation        struct {
			TenantID uint   `json:"tenant_id"`
			Status   string `json:"status"`
		} `json:"donation"`
	}
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		t.Fatalf("unmarshal donation failed: %v", err)
	}
	if result.ClientSecret != "pi_router_secret" || result.Donation.TenantID != env.alpha.ID {
		t.Fatalf("unexpected create result: %+v", result)
	}
	if result.Donation.Status != constants.DonationStatusPending {
		t.Fatalf("new donation should be pending, got %s", result.Donation.Status)
	}
}

func TestCreateDonationRejectsOutOfRangeAmount(t *testing.T) {
	env := newRouterTestEnv(t)
	_, resp := env.do(t, http.MethodPost, "/api/v1/donations?tenant=alpha", `{"amount":"5000","donor_email":"donor@example.com"}`, nil)
	if resp.StatusCode != 400 {
		t.Fatalf("out of range amount want 400 got %d", resp.StatusCode)
	}
}

func TestCreateDonationRejectsBadToken(t *testing.T) {
	env := newRouterTestEnv(t)
	_, resp := env.do(t, http.MethodPost, "/api/v1/donations?tenant=alpha", `{"amount":"10","donor_email":"donor@example.com"}`,
		map[string]string{"Authorization": "Bearer not-a-token"})
	if resp.StatusCode != 401 {
		t.Fatalf("bad token want 401 got %d", resp.StatusCode)
	}
}

func TestAdminRoutesRequireAuth(t *testing.T) {
	env := newRouterTestEnv(t)
	_, resp := env.do(t, http.MethodGet, "/api/v1/admin/gateway", "", map[string]string{constants.TenantHeader: "alpha"})
	if resp.StatusCode != 401 {
		t.Fatalf("anonymous admin want 401 got %d", resp.StatusCode)
	}
}

func TestAdminRBACIsTenantScoped(t *testing.T) {
	env := newRouterTestEnv(t)
	viewer := env.adminToken(t, "viewer@example.com", env.alpha.ID, constants.TenantRoleViewer)
	owner := env.adminToken(t, "owner@example.com", env.alpha.ID, constants.TenantRoleOwner)
	headers := func(token string) map[string]string {
		return map[string]string{constants.TenantHeader: "alpha", "Authorization": "Bearer " + token}
	}

	if _, resp := env.do(t, http.MethodGet, "/api/v1/admin/donations", "", headers(viewer)); resp.StatusCode != 0 {
		t.Fatalf("viewer list donations want 0 got %d (%s)", resp.StatusCode, resp.Msg)
	}
	if _, resp := env.do(t, http.MethodGet, "/api/v1/admin/gateway", "", headers(viewer)); resp.StatusCode != 403 {
		t.Fatalf("viewer gateway want 403 got %d", resp.StatusCode)
	}
	if _, resp := env.do(t, http.MethodGet, "/api/v1/tenant/alpha/admin/gateway", "", map[string]string{"Authorization": "Bearer " + owner}); resp.StatusCode != 0 {
		t.Fatalf("owner gateway via path want 0 got %d (%s)", resp.StatusCode, resp.Msg)
	}

	// 角色只在授予的租户内生效
	env.createTenant(t, "other", constants.TenantStatusActive)
	if _, resp := env.do(t, http.MethodGet, "/api/v1/admin/donations", "", map[string]string{constants.TenantHeader: "other", "Authorization": "Bearer " + owner}); resp.StatusCode != 403 {
		t.Fatalf("owner of alpha in other tenant want 403 got %d", resp.StatusCode)
	}
}

func TestAdminGatewayUpdateShowsSpecificError(t *testing.T) {
	env := newRouterTestEnv(t)
	owner := env.adminToken(t, "owner@example.com", env.alpha.ID, constants.TenantRoleOwner)
	_, resp := env.do(t, http.MethodPut, "/api/v1/admin/gateway", `{"fee_percentage":"150"}`,
		map[string]string{constants.TenantHeader: "alpha", "Authorization": "Bearer " + owner})
	if resp.StatusCode != 400 {
		t.Fatalf("invalid fee want 400 got %d", resp.StatusCode)
	}
}

func TestWebhookBadSignatureReturnsHTTP400(t *testing.T) {
	env := newRouterTestEnv(t)
	body := `{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1"}}}`
	w, _ := env.do(t, http.MethodPost, "/api/v1/webhooks/platform", body, map[string]string{constants.StripeSignatureHeader: "t=1,v1=deadbeef"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad signature want HTTP 400 got %d", w.Code)
	}
	w, _ = env.do(t, http.MethodPost, "/api/v1/webhooks/tenant/ghost", body, map[string]string{constants.StripeSignatureHeader: "t=1,v1=deadbeef"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown tenant webhook want HTTP 400 got %d", w.Code)
	}
}

func TestMemberRoleChangeIsAudited(t *testing.T) {
	env := newRouterTestEnv(t)
	owner := env.adminToken(t, "owner@example.com", env.alpha.ID, constants.TenantRoleOwner)
	viewer := env.adminToken(t, "viewer@example.com", env.alpha.ID, constants.TenantRoleViewer)
	headers := map[string]string{constants.TenantHeader: "alpha", "Authorization": "Bearer " + owner}

	member, err := env.container.UserRepo.GetByEmail("viewer@example.com")
	if err != nil || member == nil {
		t.Fatalf("load member failed: %v", err)
	}
	target := fmt.Sprintf("/api/v1/admin/members/%d/roles", member.ID)
	if _, resp := env.do(t, http.MethodPut, target, `{"roles":["finance"]}`, headers); resp.StatusCode != 0 {
		t.Fatalf("set roles want 0 got %d (%s)", resp.StatusCode, resp.Msg)
	}

	_, resp := env.do(t, http.MethodGet, "/api/v1/admin/audit-logs?action=member_roles_set", "", headers)
	if resp.StatusCode != 0 {
		t.Fatalf("list audit logs want 0 got %d (%s)", resp.StatusCode, resp.Msg)
	}
	var logs []models.AuditLog
	if err := json.Unmarshal(resp.Data, &logs); err != nil {
		t.Fatalf("unmarshal audit logs failed: %v", err)
	}
	if len(logs) != 1 || logs[0].OperatorEmail != "owner@example.com" || logs[0].TargetUserID == nil || *logs[0].TargetUserID != member.ID {
		t.Fatalf("unexpected audit logs: %+v", logs)
	}

	// 审计日志仅 owner 可见
	if _, resp := env.do(t, http.MethodGet, "/api/v1/admin/audit-logs", "", map[string]string{constants.TenantHeader: "alpha", "Authorization": "Bearer " + viewer}); resp.StatusCode != 403 {
		t.Fatalf("finance audit logs want 403 got %d", resp.StatusCode)
	}
}
