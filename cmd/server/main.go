package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"syscall"

	"github.com/dujiao-next/donate/internal/app"
	"github.com/dujiao-next/donate/internal/authz"
	"github.com/dujiao-next/donate/internal/config"
	"github.com/dujiao-next/donate/internal/constants"
	"github.com/dujiao-next/donate/internal/logger"
	"github.com/dujiao-next/donate/internal/models"

	"github.com/gin-gonic/gin"
)

const (
	ansiReset     = "\033[0m"
	ansiBold      = "\033[1m"
	ansiDim       = "\033[2m"
	ansiGreen     = "\033[32m"
	ansiBlue      = "\033[34m"
	ansiCyan      = "\033[36m"
	ansiBrightMag = "\033[95m"
)

func main() {
	printStartupBanner()

	// 加载配置
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()

	checkSecret(stdLog, cfg.Server.Mode, "user_jwt.secret", cfg.UserJWT.SecretKey)
	checkSecret(stdLog, cfg.Server.Mode, "vault.secret", cfg.Vault.Secret)

	// 初始化数据库
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}, cfg.Database.LogLevel); err != nil {
		stdLog.Fatalf("数据库初始化失败: %v", err)
	}

	// 自动迁移数据库表
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("数据库迁移失败: %v", err)
	}

	// 初始化默认租户与所有者账号
	defaultTenant := os.Getenv("DN_DEFAULT_TENANT_SLUG")
	defaultOwnerEmail := os.Getenv("DN_DEFAULT_OWNER_EMAIL")
	defaultOwnerPass := os.Getenv("DN_DEFAULT_OWNER_PASSWORD")
	if cfg.Server.Mode == "release" && defaultOwnerPass == "" {
		stdLog.Printf("警告: 未设置 DN_DEFAULT_OWNER_PASSWORD，已跳过默认租户初始化")
	} else if err := initDefaultOwner(defaultTenant, defaultOwnerEmail, defaultOwnerPass); err != nil {
		stdLog.Printf("警告: 初始化默认租户失败: %v", err)
	}

	// 设置 Gin 模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 解析命令行参数
	var mode string
	flag.StringVar(&mode, "mode", app.ModeAll, "启动模式: all (默认), api, worker")
	flag.Parse()

	if err := app.Run(app.Options{
		Config:  cfg,
		Logger:  logger.S(),
		Signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
		Mode:    mode,
	}); err != nil {
		stdLog.Fatalf("服务运行失败: %v", err)
	}
}

func printStartupBanner() {
	fmt.Println(ansiBrightMag + "╔══════════════════════════════════════════════════════════════════════╗" + ansiReset)
	fmt.Println(ansiBrightMag + "║                    🚀 Dujiao-Next Donate API 启动中                  ║" + ansiReset)
	fmt.Println(ansiBrightMag + "╚══════════════════════════════════════════════════════════════════════╝" + ansiReset)
	fmt.Println(ansiCyan + ansiBold + "multi-tenant donations · stripe connect · per-tenant rbac" + ansiReset)
	fmt.Println(ansiBlue + "• Health:  GET  /health" + ansiReset)
	fmt.Println(ansiBlue + "• Donate:  POST /api/v1/tenant/{slug}/donations" + ansiReset)
	fmt.Println(ansiBlue + "• Hooks:   POST /api/v1/webhooks/platform" + ansiReset)
	fmt.Println(ansiGreen + "• Modes:   -mode all | api | worker" + ansiReset)
	fmt.Println(ansiDim + "--------------------------------------------------------------" + ansiReset)
}

// checkSecret 生产环境拒绝弱密钥，开发环境仅提示
func checkSecret(stdLog *log.Logger, mode, name, secret string) {
	if !isWeakSecret(secret) {
		return
	}
	if mode == "release" {
		stdLog.Fatalf("%s 过弱或仍为默认值，请在生产环境中配置至少 32 位的随机密钥", name)
	}
	stdLog.Printf("警告: %s 过弱或仍为默认值，建议在生产环境中更换", name)
}

func initDefaultOwner(slug, email, password string) error {
	tenant, owner, err := models.InitDefaultTenant(slug, email, password)
	if err != nil {
		return err
	}
	authzService, err := authz.NewService(models.DB)
	if err != nil {
		return err
	}
	if err := authzService.BootstrapBuiltinRoles(); err != nil {
		return err
	}
	roles, err := authzService.GetUserRoles(owner.ID, tenant.ID)
	if err != nil {
		return err
	}
	if len(roles) > 0 {
		return nil
	}
	return authzService.SetUserRoles(owner.ID, tenant.ID, []string{constants.TenantRoleOwner})
}

func isWeakSecret(secret string) bool {
	if len(secret) < 32 {
		return true
	}
	normalized := strings.ToLower(secret)
	if strings.Contains(normalized, "change-me") ||
		strings.Contains(normalized, "change-in-production") ||
		strings.Contains(normalized, "your-secret-key") {
		return true
	}
	return false
}
