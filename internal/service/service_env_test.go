package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dujiao-next/donate/internal/config"
	"github.com/dujiao-next/donate/internal/constants"
	"github.com/dujiao-next/donate/internal/models"
	"github.com/dujiao-next/donate/internal/payment/gateway"
	"github.com/dujiao-next/donate/internal/payment/stripe"
	"github.com/dujiao-next/donate/internal/queue"
	"github.com/dujiao-next/donate/internal/repository"
	"github.com/dujiao-next/donate/internal/tenant"
	"github.com/dujiao-next/donate/internal/vault"

	"github.com/glebarez/sqlite"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	testVaultSecret       = "test-vault-secret-0123456789abcdef"
	testPlatformWebhook   = "whsec_platform_test"
	testCustomWebhook     = "whsec_custom_test"
	testCustomSecretKey   = "sk_test_custom_tenant"
	testPlatformSecretKey = "sk_test_platform"
)

// fakeIntent 网关侧记录的支付意图
type fakeIntent struct {
	ID       string
	Status   string
	Amount   int64
	Currency string
	Auth     string
	Form     url.Values
}

// fakeGateway 有状态的网关模拟
type fakeGateway struct {
	mu         sync.Mutex
	intents    map[string]*fakeIntent
	order      []string
	retrieves  int
	rejectAuth map[string]bool
	server     *httptest.Server
}

func newFakeGateway(t *testing.T) *fakeGateway {
	t.Helper()
	g := &fakeGateway{intents: make(map[string]*fakeIntent), rejectAuth: make(map[string]bool)}
	g.server = httptest.NewServer(http.HandlerFunc(g.serve))
	t.Cleanup(g.server.Close)
	return g
}

func (g *fakeGateway) serve(w http.ResponseWriter, r *http.Request) {
	auth := r.Header.Get("Authorization")
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.rejectAuth[auth] {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"type":"invalid_request_error","message":"Invalid API Key provided"}}`)
		return
	}
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/v1/payment_intents":
		body, _ := io.ReadAll(r.Body)
		form, _ := url.ParseQuery(string(body))
		amount, _ := strconv.ParseInt(form.Get("amount"), 10, 64)
		id := fmt.Sprintf("pi_%d", len(g.order)+1)
		intent := &fakeIntent{ID: id, Status: stripe.IntentStatusRequiresPaymentMethod, Amount: amount, Currency: form.Get("currency"), Auth: auth, Form: form}
		g.intents[id] = intent
		g.order = append(g.order, id)
		writeIntent(w, intent)
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v1/payment_intents/"):
		g.retrieves++
		intent, ok := g.intents[strings.TrimPrefix(r.URL.Path, "/v1/payment_intents/")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":{"type":"invalid_request_error","code":"resource_missing","message":"No such payment_intent"}}`)
			return
		}
		writeIntent(w, intent)
	case r.Method == http.MethodGet && (r.URL.Path == "/v1/account" || strings.HasPrefix(r.URL.Path, "/v1/accounts/")):
		id := strings.TrimPrefix(r.URL.Path, "/v1/accounts/")
		if r.URL.Path == "/v1/account" {
			id = "acct_self"
		}
		_, _ = fmt.Fprintf(w, `{"id":%q,"object":"account","charges_enabled":true,"payouts_enabled":true,"details_submitted":true}`, id)
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"type":"invalid_request_error","message":"unknown route"}}`)
	}
}

func writeIntent(w http.ResponseWriter, intent *fakeIntent) {
	metadata := map[string]string{}
	for key, values := range intent.Form {
		if strings.HasPrefix(key, "metadata[") && len(values) > 0 {
			metadata[strings.TrimSuffix(strings.TrimPrefix(key, "metadata["), "]")] = values[0]
		}
	}
	body := map[string]interface{}{
		"id":             intent.ID,
		"object":         "payment_intent",
		"status":         intent.Status,
		"amount":         intent.Amount,
		"currency":       intent.Currency,
		"client_secret":  intent.ID + "_secret",
		"payment_method": map[string]interface{}{"id": "pm_1", "type": "card"},
		"metadata":       metadata,
	}
	_ = json.NewEncoder(w).Encode(body)
}

func (g *fakeGateway) setStatus(t *testing.T, id, status string) {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	intent, ok := g.intents[id]
	if !ok {
		t.Fatalf("unknown intent %s", id)
	}
	intent.Status = status
}

func (g *fakeGateway) intent(t *testing.T, id string) fakeIntent {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	intent, ok := g.intents[id]
	if !ok {
		t.Fatalf("unknown intent %s", id)
	}
	return *intent
}

func (g *fakeGateway) createdCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.order)
}

// recordingEnqueuer 记录收据任务
type recordingEnqueuer struct {
	mu       sync.Mutex
	payloads []queue.DonationReceiptPayload
	attempts int
	fail     error
}

func (r *recordingEnqueuer) EnqueueDonationReceipt(payload queue.DonationReceiptPayload, _ ...asynq.Option) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts++
	if r.fail != nil {
		return r.fail
	}
	r.payloads = append(r.payloads, payload)
	return nil
}

func (r *recordingEnqueuer) failWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail = err
}

func (r *recordingEnqueuer) attemptCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}

func (r *recordingEnqueuer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payloads)
}

type serviceTestEnv struct {
	db         *gorm.DB
	gateway    *fakeGateway
	vault      *vault.Vault
	router     *gateway.Router
	receipts   *recordingEnqueuer
	tenants    *TenantService
	gateways   *GatewayService
	donations  *DonationService
	webhooks   *WebhookService
	receiptSvc *ReceiptService

	tenantRepo   *repository.GormTenantRepository
	accountRepo  *repository.GormGatewayAccountRepository
	donationRepo *repository.GormDonationRepository
	campaignRepo *repository.GormCampaignRepository
	userRepo     *repository.GormUserRepository
	eventRepo    *repository.GormWebhookEventRepository
	receiptRepo  *repository.GormReceiptRepository

	platformTenant *models.Tenant
	customTenant   *models.Tenant
}

func newServiceTestEnv(t *testing.T, name string) *serviceTestEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
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

	v, err := vault.New(testVaultSecret, 1000)
	if err != nil {
		t.Fatalf("new vault failed: %v", err)
	}
	fake := newFakeGateway(t)

	env := &serviceTestEnv{
		db:           db,
		gateway:      fake,
		vault:        v,
		receipts:     &recordingEnqueuer{},
		tenantRepo:   repository.NewTenantRepository(db),
		accountRepo:  repository.NewGatewayAccountRepository(db),
		donationRepo: repository.NewDonationRepository(db),
		campaignRepo: repository.NewCampaignRepository(db),
		userRepo:     repository.NewUserRepository(db),
		eventRepo:    repository.NewWebhookEventRepository(db),
		receiptRepo:  repository.NewReceiptRepository(db),
	}

	base := stripe.Config{APIBaseURL: fake.server.URL, RetryMax: 1}
	platformCfg := base
	platformCfg.SecretKey = testPlatformSecretKey
	platformCfg.PublishableKey = "pk_test_platform"
	platform, err := stripe.NewClient(platformCfg, nil)
	if err != nil {
		t.Fatalf("new platform client failed: %v", err)
	}
	env.router = gateway.NewRouter(env.accountRepo, v, gateway.Options{
		Platform:              platform,
		PlatformWebhookSecret: testPlatformWebhook,
		ClientConfig:          base,
		DefaultCurrency:       "EUR",
		MinAmount:             decimal.RequireFromString("1.00"),
		MaxAmount:             decimal.RequireFromString("100000.00"),
	})
	env.tenants = NewTenantService(env.tenantRepo, env.router, time.Minute)
	env.gateways = NewGatewayService(env.accountRepo, v, env.router, GatewayServiceOptions{ClientConfig: base})
	captcha := NewCaptchaService(config.CaptchaConfig{Provider: constants.CaptchaProviderNone})
	env.donations = NewDonationService(env.donationRepo, env.campaignRepo, env.userRepo, env.router, captcha, env.receipts)
	env.webhooks = NewWebhookService(env.tenants, env.router, env.eventRepo, env.donations, env.gateways, 0)
	env.receiptSvc = NewReceiptService(env.receiptRepo, env.donationRepo)

	env.platformTenant = env.createTenant(t, "alpha", constants.PaymentModePlatform)
	env.customTenant = env.createTenant(t, "beta", constants.PaymentModeCustom)
	env.saveAccount(t, env.platformTenant, &models.GatewayAccount{
		ConnectAccountID: "acct_alpha",
		FeePercentage:    models.NewMoneyFromDecimal(decimal.RequireFromString("2.5")),
		IsActive:         true,
	})
	env.saveAccount(t, env.customTenant, &models.GatewayAccount{
		SecretKeyEnc:      env.encrypt(t, testCustomSecretKey),
		PublishableKeyEnc: env.encrypt(t, "pk_test_custom_tenant"),
		WebhookSecretEnc:  env.encrypt(t, testCustomWebhook),
		IsActive:          true,
	})
	return env
}

func (e *serviceTestEnv) createTenant(t *testing.T, slug, mode string) *models.Tenant {
	t.Helper()
	tn := &models.Tenant{Slug: slug, Name: strings.ToUpper(slug), Status: constants.TenantStatusActive, PaymentMode: mode, Currency: "EUR"}
	if err := e.tenantRepo.Create(tn); err != nil {
		t.Fatalf("create tenant failed: %v", err)
	}
	return tn
}

func (e *serviceTestEnv) saveAccount(t *testing.T, tn *models.Tenant, account *models.GatewayAccount) {
	t.Helper()
	scope, err := tenant.NewScope(tn.ID)
	if err != nil {
		t.Fatalf("new scope failed: %v", err)
	}
	if err := e.accountRepo.Save(scope, account); err != nil {
		t.Fatalf("save gateway account failed: %v", err)
	}
}

func (e *serviceTestEnv) encrypt(t *testing.T, plaintext string) string {
	t.Helper()
	blob, err := e.vault.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	return blob
}

func (e *serviceTestEnv) createCampaign(t *testing.T, tn *models.Tenant, slug string) *models.Campaign {
	t.Helper()
	scope, _ := tenant.NewScope(tn.ID)
	campaign := &models.Campaign{Slug: slug, Title: slug, Status: constants.CampaignStatusActive, Goal: models.NewMoneyFromDecimal(decimal.NewFromInt(1000))}
	if err := e.campaignRepo.Create(scope, campaign); err != nil {
		t.Fatalf("create campaign failed: %v", err)
	}
	return campaign
}

func (e *serviceTestEnv) campaignRaised(t *testing.T, tn *models.Tenant, id uint) string {
	t.Helper()
	scope, _ := tenant.NewScope(tn.ID)
	campaign, err := e.campaignRepo.GetByID(scope, id)
	if err != nil || campaign == nil {
		t.Fatalf("load campaign failed: %v", err)
	}
	return campaign.Raised.StringFixed(2)
}

func tenantCtx(tn *models.Tenant) context.Context {
	return tenant.WithTenant(context.Background(), tn)
}

func (e *serviceTestEnv) createDonation(t *testing.T, tn *models.Tenant, amount string, campaignID uint) *CreateDonationResult {
	t.Helper()
	result, err := e.donations.Create(CreateDonationInput{
		DonorEmail: "donor@example.com",
		Amount:     decimal.RequireFromString(amount),
		CampaignID: campaignID,
		Context:    tenantCtx(tn),
	})
	if err != nil {
		t.Fatalf("create donation failed: %v", err)
	}
	return result
}

func signWebhook(secret string, body []byte) string {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	h := hmac.New(sha256.New, []byte(secret))
	_, _ = h.Write([]byte(ts + "." + string(body)))
	return "t=" + ts + ",v1=" + hex.EncodeToString(h.Sum(nil))
}

func intentEventPayload(eventID, eventType, intentID, status string, metadata map[string]string) []byte {
	body := map[string]interface{}{
		"id":      eventID,
		"type":    eventType,
		"created": time.Now().Unix(),
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"object":         "payment_intent",
				"id":             intentID,
				"status":         status,
				"amount":         1000,
				"currency":       "eur",
				"payment_method": "pm_1",
				"metadata":       metadata,
			},
		},
	}
	payload, _ := json.Marshal(body)
	return payload
}

func defaultDonationFilter() repository.DonationListFilter {
	return repository.DonationListFilter{Page: 1, PageSize: 20}
}

func (g *fakeGateway) retrieveCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.retrieves
}
