package models

import (
	"errors"
	"strings"

	"github.com/dujiao-next/donate/internal/constants"
	"github.com/dujiao-next/donate/internal/logger"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const defaultOwnerPassword = "owner123"

// InitDefaultTenant 初始化默认租户及其所有者账号，已存在时原样返回
func InitDefaultTenant(slug, ownerEmail, password string) (*Tenant, *User, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		slug = "default"
	}
	ownerEmail = strings.ToLower(strings.TrimSpace(ownerEmail))
	if ownerEmail == "" {
		ownerEmail = "owner@" + slug + ".local"
	}

	var tenant Tenant
	err := DB.Where("slug = ?", slug).First(&tenant).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		tenant = Tenant{Slug: slug, Name: slug, Status: constants.TenantStatusActive, PaymentMode: constants.PaymentModePlatform, Currency: constants.DefaultCurrency}
		if err := DB.Create(&tenant).Error; err != nil {
			return nil, nil, err
		}
		logger.Infow("default_tenant_created", "tenant_id", tenant.ID, "slug", slug)
	case err != nil:
		return nil, nil, err
	}

	var owner User
	err = DB.Where("email = ?", ownerEmail).First(&owner).Error
	if err == nil {
		return &tenant, &owner, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, err
	}

	if password == "" {
		password = defaultOwnerPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, err
	}
	owner = User{
		Email:        ownerEmail,
		PasswordHash: string(hash),
		DisplayName:  "Owner",
		Kind:         constants.UserKindRegistered,
		Status:       constants.UserStatusActive,
	}
	if err := DB.Create(&owner).Error; err != nil {
		return nil, nil, err
	}

	if password == defaultOwnerPassword {
		logger.Warnw("default_owner_created_with_default_password", "email", ownerEmail)
		logger.Warnw("default_owner_password_change_required", "email", ownerEmail)
	} else {
		logger.Warnw("default_owner_created", "email", ownerEmail, "password_hidden", true)
	}
	return &tenant, &owner, nil
}
