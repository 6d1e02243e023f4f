package public

import (
	"errors"

	"github.com/dujiao-next/donate/internal/http/response"
	"github.com/dujiao-next/donate/internal/service"

	"github.com/gin-gonic/gin"
)

// GetCaptchaConfig 验证码公开配置
func (h *Handler) GetCaptchaConfig(c *gin.Context) {
	if h.CaptchaService == nil {
		response.Success(c, gin.H{"provider": "none"})
		return
	}
	response.Success(c, h.CaptchaService.PublicSetting())
}

// GetImageCaptcha 获取图片验证码挑战
func (h *Handler) GetImageCaptcha(c *gin.Context) {
	if h.CaptchaService == nil {
		respondError(c, response.CodeInternal, "error.captcha_config_invalid", service.ErrCaptchaConfigInvalid)
		return
	}

	challenge, err := h.CaptchaService.GenerateImageChallenge()
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCaptchaConfigInvalid):
			respondError(c, response.CodeBadRequest, "error.captcha_config_invalid", nil)
		default:
			respondError(c, response.CodeInternal, "error.internal_error", err)
		}
		return
	}

	response.Success(c, gin.H{
		"captcha_id":   challenge.CaptchaID,
		"image_base64": challenge.ImageBase64,
	})
}
