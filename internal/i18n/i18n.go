// Package i18n 提供接口错误消息的多语言查找。
package i18n

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
)

// 支持的语言
const (
	LocaleZhCN = "zh-CN"
	LocaleEn   = "en"
)

// DefaultLocale 无法识别时使用的语言
const DefaultLocale = LocaleZhCN

var messages = map[string]map[string]string{
	LocaleZhCN: {
		"error.bad_request":               "请求参数错误",
		"error.unauthorized":              "未授权",
		"error.forbidden":                 "无权限访问",
		"error.not_found":                 "资源不存在",
		"error.internal_error":            "服务器内部错误",
		"error.auth_header_missing":       "缺少 Authorization 请求头",
		"error.auth_header_invalid":       "Authorization 格式错误",
		"error.token_invalid":             "登录凭证无效",
		"error.user_disabled":             "账户已停用",
		"error.user_id_invalid":           "用户ID无效",
		"error.user_id_type_invalid":      "用户ID类型错误",
		"error.login_failed":              "邮箱或密码错误",
		"error.email_invalid":             "邮箱格式错误",
		"error.rate_limited":              "请求过于频繁，请在 %d 秒后重试",
		"error.tenant_required":           "缺少租户标识",
		"error.tenant_not_found":          "租户不存在",
		"error.tenant_inactive":           "租户已停用",
		"error.tenant_status_invalid":     "租户状态无效",
		"error.payment_mode_invalid":      "收款模式无效",
		"error.tenant_update_failed":      "租户更新失败",
		"error.payment_unavailable":       "支付暂时无法完成，请稍后重试",
		"error.gateway_not_configured":    "支付网关未配置",
		"error.gateway_credentials":       "网关凭据无效",
		"error.gateway_decrypt_failed":    "网关凭据无法解密，请重新配置",
		"error.gateway_request_failed":    "网关请求失败",
		"error.gateway_update_failed":     "网关配置保存失败",
		"error.fee_percentage_invalid":    "抽成比例需在 0 到 100 之间",
		"error.amount_out_of_range":       "捐赠金额超出允许范围",
		"error.donor_email_required":      "请填写捐赠人邮箱",
		"error.donor_unavailable":         "捐赠人账户不可用",
		"error.donation_source_invalid":   "捐赠来源无效",
		"error.donation_not_found":        "捐赠记录不存在",
		"error.donation_create_failed":    "捐赠创建失败",
		"error.donation_update_failed":    "捐赠更新失败",
		"error.payment_not_succeeded":     "支付尚未成功",
		"error.campaign_not_found":        "活动不存在",
		"error.campaign_inactive":         "活动未开放",
		"error.captcha_required":          "请完成验证码",
		"error.captcha_invalid":           "验证码错误",
		"error.captcha_config_invalid":    "验证码配置无效",
		"error.webhook_signature_invalid": "签名校验失败",
		"error.webhook_payload_invalid":   "事件内容无效",
	},
	LocaleEn: {
		"error.bad_request":               "Invalid request parameters",
		"error.unauthorized":              "Unauthorized",
		"error.forbidden":                 "Forbidden",
		"error.not_found":                 "Resource not found",
		"error.internal_error":            "Internal server error",
		"error.auth_header_missing":       "Missing Authorization header",
		"error.auth_header_invalid":       "Malformed Authorization header",
		"error.token_invalid":             "Invalid token",
		"error.user_disabled":             "Account disabled",
		"error.user_id_invalid":           "Invalid user id",
		"error.user_id_type_invalid":      "Invalid user id type",
		"error.login_failed":              "Invalid email or password",
		"error.email_invalid":             "Invalid email address",
		"error.rate_limited":              "Too many requests, retry in %d seconds",
		"error.tenant_required":           "Tenant identifier required",
		"error.tenant_not_found":          "Tenant not found",
		"error.tenant_inactive":           "Tenant is not active",
		"error.tenant_status_invalid":     "Invalid tenant status",
		"error.payment_mode_invalid":      "Invalid payment mode",
		"error.tenant_update_failed":      "Failed to update tenant",
		"error.payment_unavailable":       "The payment could not be completed, please try again later",
		"error.gateway_not_configured":    "Payment gateway is not configured",
		"error.gateway_credentials":       "Invalid gateway credentials",
		"error.gateway_decrypt_failed":    "Gateway credentials cannot be decrypted, please reconfigure",
		"error.gateway_request_failed":    "Gateway request failed",
		"error.gateway_update_failed":     "Failed to save gateway configuration",
		"error.fee_percentage_invalid":    "Fee percentage must be between 0 and 100",
		"error.amount_out_of_range":       "Donation amount is out of range",
		"error.donor_email_required":      "Donor email is required",
		"error.donor_unavailable":         "Donor account unavailable",
		"error.donation_source_invalid":   "Invalid donation source",
		"error.donation_not_found":        "Donation not found",
		"error.donation_create_failed":    "Failed to create donation",
		"error.donation_update_failed":    "Failed to update donation",
		"error.payment_not_succeeded":     "Payment has not succeeded",
		"error.campaign_not_found":        "Campaign not found",
		"error.campaign_inactive":         "Campaign is not accepting donations",
		"error.captcha_required":          "Captcha required",
		"error.captcha_invalid":           "Invalid captcha",
		"error.captcha_config_invalid":    "Captcha is misconfigured",
		"error.webhook_signature_invalid": "Signature verification failed",
		"error.webhook_payload_invalid":   "Invalid event payload",
	},
}

// T 查找消息，未命中时回退默认语言，再回退 key 本身
func T(locale, key string) string {
	if table, ok := messages[NormalizeLocale(locale)]; ok {
		if msg, ok := table[key]; ok {
			return msg
		}
	}
	if msg, ok := messages[DefaultLocale][key]; ok {
		return msg
	}
	return key
}

// Sprintf 查找消息并格式化
func Sprintf(locale, key string, args ...interface{}) string {
	return fmt.Sprintf(T(locale, key), args...)
}

// NormalizeLocale 归一化语言标识
func NormalizeLocale(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case value == "":
		return DefaultLocale
	case strings.HasPrefix(value, "en"):
		return LocaleEn
	case strings.HasPrefix(value, "zh"):
		return LocaleZhCN
	default:
		return DefaultLocale
	}
}

// ResolveLocale 从 ?lang= 或 Accept-Language 解析请求语言
func ResolveLocale(c *gin.Context) string {
	if c == nil || c.Request == nil {
		return DefaultLocale
	}
	if lang := strings.TrimSpace(c.Query("lang")); lang != "" {
		return NormalizeLocale(lang)
	}
	header := c.GetHeader("Accept-Language")
	if header == "" {
		return DefaultLocale
	}
	first := strings.Split(header, ",")[0]
	first = strings.Split(first, ";")[0]
	return NormalizeLocale(first)
}
