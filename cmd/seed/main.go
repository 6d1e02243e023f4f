package main

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/dujiao-next/donate/internal/authz"
	"github.com/dujiao-next/donate/internal/config"
	"github.com/dujiao-next/donate/internal/constants"
	"github.com/dujiao-next/donate/internal/logger"
	"github.com/dujiao-next/donate/internal/models"
	"github.com/dujiao-next/donate/internal/repository"
	"github.com/dujiao-next/donate/internal/tenant"
	"github.com/dujiao-next/donate/internal/vault"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

const demoPassword = "demo-password-123"

type demoTenant struct {
	slug        string
	name        string
	paymentMode string
	currency    string
	connectID   string
	feePercent  string
	campaigns   []demoCampaign
}

type demoCampaign struct {
	slug  string
	title string
	goal  string
	days  int
}

type demoMember struct {
	email  string
	name   string
	tenant string
	role   string
}

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}, cfg.Database.LogLevel); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	authzService, err := authz.NewService(models.DB)
	if err != nil {
		stdLog.Fatalf("Failed to init authz: %v", err)
	}
	if err := authzService.BootstrapBuiltinRoles(); err != nil {
		stdLog.Fatalf("Failed to bootstrap roles: %v", err)
	}

	tenantRepo := repository.NewTenantRepository(models.DB)
	accountRepo := repository.NewGatewayAccountRepository(models.DB)
	campaignRepo := repository.NewCampaignRepository(models.DB)
	userRepo := repository.NewUserRepository(models.DB)

	tenants := []demoTenant{
		{
			slug:        "aurora",
			name:        "Aurora Animal Rescue",
			paymentMode: constants.PaymentModePlatform,
			currency:    "EUR",
			connectID:   "acct_demo_aurora",
			feePercent:  "2.50",
			campaigns: []demoCampaign{
				{slug: "winter-shelter", title: "Winter Shelter Heating", goal: "5000.00", days: 60},
				{slug: "vet-fund", title: "Emergency Vet Fund", goal: "12000.00"},
			},
		},
		{
			slug:        "harbor",
			name:        "Harbor Community Library",
			paymentMode: constants.PaymentModePlatform,
			currency:    "USD",
			connectID:   "acct_demo_harbor",
			campaigns: []demoCampaign{
				{slug: "new-books", title: "New Books for Kids", goal: "3000.00", days: 30},
			},
		},
		{
			// 自有网关：真实密钥需通过管理端配置
			slug:        "meridian",
			name:        "Meridian Open Source Fund",
			paymentMode: constants.PaymentModeCustom,
			currency:    "EUR",
		},
	}

	tenantIDs := map[string]uint{}
	for _, item := range tenants {
		existing, err := tenantRepo.GetBySlug(item.slug)
		if err != nil {
			stdLog.Printf("Failed to load tenant %s: %v", item.slug, err)
			continue
		}
		if existing != nil {
			stdLog.Printf("Tenant already exists: %s", item.slug)
			tenantIDs[item.slug] = existing.ID
			continue
		}
		t := &models.Tenant{
			Slug:        item.slug,
			Name:        item.name,
			Status:      constants.TenantStatusActive,
			PaymentMode: item.paymentMode,
			Currency:    item.currency,
		}
		if err := tenantRepo.Create(t); err != nil {
			stdLog.Printf("Failed to create tenant %s: %v", item.slug, err)
			continue
		}
		stdLog.Printf("Created tenant: %s", item.slug)
		tenantIDs[item.slug] = t.ID

		scope, err := tenant.NewScope(t.ID)
		if err != nil {
			stdLog.Printf("Invalid tenant scope %s: %v", item.slug, err)
			continue
		}
		seedGatewayAccount(stdLog, accountRepo, scope, item)
		seedCampaigns(stdLog, campaignRepo, scope, item.campaigns)
	}

	seedCustomCredentials(stdLog, cfg, accountRepo, tenantIDs["meridian"])

	members := []demoMember{
		{email: "owner@aurora.example", name: "Aurora Owner", tenant: "aurora", role: constants.TenantRoleOwner},
		{email: "finance@aurora.example", name: "Aurora Finance", tenant: "aurora", role: constants.TenantRoleFinance},
		{email: "viewer@aurora.example", name: "Aurora Viewer", tenant: "aurora", role: constants.TenantRoleViewer},
		{email: "owner@harbor.example", name: "Harbor Owner", tenant: "harbor", role: constants.TenantRoleOwner},
		{email: "owner@meridian.example", name: "Meridian Owner", tenant: "meridian", role: constants.TenantRoleOwner},
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(demoPassword), bcrypt.DefaultCost)
	if err != nil {
		stdLog.Fatalf("Failed to hash demo password: %v", err)
	}
	for _, member := range members {
		tenantID, ok := tenantIDs[member.tenant]
		if !ok {
			continue
		}
		user := &models.User{
			Email:        member.email,
			PasswordHash: string(hash),
			DisplayName:  member.name,
			Kind:         constants.UserKindRegistered,
			Status:       constants.UserStatusActive,
		}
		created, err := userRepo.CreateIfAbsent(user)
		if err != nil {
			stdLog.Printf("Failed to create user %s: %v", member.email, err)
			continue
		}
		if !created {
			existing, err := userRepo.GetByEmail(member.email)
			if err != nil || existing == nil {
				stdLog.Printf("Failed to load user %s: %v", member.email, err)
				continue
			}
			user = existing
		}
		if err := authzService.SetUserRoles(user.ID, tenantID, []string{member.role}); err != nil {
			stdLog.Printf("Failed to assign role %s to %s: %v", member.role, member.email, err)
			continue
		}
		stdLog.Printf("Member ready: %s (%s@%s)", member.email, member.role, member.tenant)
	}

	stdLog.Printf("Seed completed, demo password: %s", demoPassword)
}

func seedGatewayAccount(stdLog *log.Logger, repo *repository.GormGatewayAccountRepository, scope tenant.Scope, item demoTenant) {
	if item.connectID == "" {
		return
	}
	fee := decimal.Zero
	if item.feePercent != "" {
		fee = decimal.RequireFromString(item.feePercent)
	}
	account := &models.GatewayAccount{
		ConnectAccountID: item.connectID,
		FeePercentage:    models.NewMoneyFromDecimal(fee),
		IsActive:         true,
	}
	if err := repo.Save(scope, account); err != nil {
		stdLog.Printf("Failed to create gateway account for %s: %v", item.slug, err)
		return
	}
	stdLog.Printf("Created gateway account: %s -> %s", item.slug, item.connectID)
}

func seedCampaigns(stdLog *log.Logger, repo *repository.GormCampaignRepository, scope tenant.Scope, campaigns []demoCampaign) {
	for _, item := range campaigns {
		campaign := &models.Campaign{
			Slug:   item.slug,
			Title:  item.title,
			Goal:   models.NewMoneyFromDecimal(decimal.RequireFromString(item.goal)),
			Status: constants.CampaignStatusActive,
		}
		if item.days > 0 {
			endsAt := time.Now().AddDate(0, 0, item.days)
			campaign.EndsAt = &endsAt
		}
		if err := repo.Create(scope, campaign); err != nil {
			stdLog.Printf("Failed to create campaign %s: %v", item.slug, err)
			continue
		}
		stdLog.Printf("Created campaign: %s", item.slug)
	}
}

// seedCustomCredentials 从环境变量读取自有网关测试密钥，加密后写入
func seedCustomCredentials(stdLog *log.Logger, cfg *config.Config, repo *repository.GormGatewayAccountRepository, tenantID uint) {
	secretKey := strings.TrimSpace(os.Getenv("DN_SEED_CUSTOM_SECRET_KEY"))
	if tenantID == 0 || secretKey == "" {
		return
	}
	v, err := vault.New(cfg.Vault.Secret, cfg.Vault.Iterations)
	if err != nil {
		stdLog.Printf("Skip custom credentials, vault unavailable: %v", err)
		return
	}
	scope, err := tenant.NewScope(tenantID)
	if err != nil {
		return
	}
	existing, err := repo.GetByTenant(scope)
	if err != nil {
		stdLog.Printf("Failed to load gateway account: %v", err)
		return
	}
	if existing != nil && existing.HasSecretKey() {
		stdLog.Printf("Custom credentials already configured")
		return
	}

	account := existing
	if account == nil {
		account = &models.GatewayAccount{IsActive: true}
	}
	fields := map[*string]string{
		&account.SecretKeyEnc:      secretKey,
		&account.PublishableKeyEnc: os.Getenv("DN_SEED_CUSTOM_PUBLISHABLE_KEY"),
		&account.WebhookSecretEnc:  os.Getenv("DN_SEED_CUSTOM_WEBHOOK_SECRET"),
	}
	for target, plaintext := range fields {
		plaintext = strings.TrimSpace(plaintext)
		if plaintext == "" {
			continue
		}
		encrypted, err := v.Encrypt(plaintext)
		if err != nil {
			stdLog.Printf("Failed to encrypt custom credentials: %v", err)
			return
		}
		*target = encrypted
	}
	now := time.Now()
	account.CredentialsRotatedAt = &now
	if err := repo.Save(scope, account); err != nil {
		stdLog.Printf("Failed to save custom credentials: %v", err)
		return
	}
	stdLog.Printf("Custom credentials configured for tenant %d", tenantID)
}
