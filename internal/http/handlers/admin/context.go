package admin

import (
	handlershared "github.com/dujiao-next/donate/internal/http/handlers/shared"
	"github.com/dujiao-next/donate/internal/models"

	"github.com/gin-gonic/gin"
)

func getUserID(c *gin.Context) (uint, bool) {
	return handlershared.GetUserID(c)
}

func currentTenant(c *gin.Context) (*models.Tenant, bool) {
	return handlershared.CurrentTenant(c)
}
