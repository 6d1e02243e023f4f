package service

import (
	"context"
	"errors"
	"testing"

	"github.com/dujiao-next/donate/internal/constants"
	"github.com/dujiao-next/donate/internal/models"
	"github.com/dujiao-next/donate/internal/payment/stripe"

	"github.com/shopspring/decimal"
)

func TestDonationCreatePlatformModeLocksFee(t *testing.T) {
	env := newServiceTestEnv(t, "donation_create_platform")

	result := env.createDonation(t, env.platformTenant, "100.00", 0)
	donation := result.Donation
	if donation.Status != constants.DonationStatusPending {
		t.Fatalf("expected pending donation, got %s", donation.Status)
	}
	if donation.TenantID != env.platformTenant.ID {
		t.Fatalf("unexpected tenant id: %d", donation.TenantID)
	}
	if donation.PlatformFee.StringFixed(2) != "2.50" {
		t.Fatalf("expected locked fee 2.50, got %s", donation.PlatformFee.StringFixed(2))
	}
	if result.ClientSecret == "" || result.PublishableKey != "pk_test_platform" {
		t.Fatalf("unexpected client payload: %+v", result)
	}

	intent := env.gateway.intent(t, result.PaymentIntentID)
	if intent.Auth != "Bearer "+testPlatformSecretKey {
		t.Fatalf("expected platform key, got %s", intent.Auth)
	}
	if intent.Form.Get("application_fee_amount") != "250" || intent.Form.Get("transfer_data[destination]") != "acct_alpha" {
		t.Fatalf("unexpected connect fields: %v", intent.Form)
	}
	if intent.Form.Get("metadata[tenant_id]") == "" {
		t.Fatalf("expected tenant metadata")
	}
}

func TestDonationCreateCustomModeUsesTenantKey(t *testing.T) {
	env := newServiceTestEnv(t, "donation_create_custom")

	result := env.createDonation(t, env.customTenant, "20.00", 0)
	if !result.Donation.PlatformFee.IsZero() {
		t.Fatalf("custom mode must not charge platform fee, got %s", result.Donation.PlatformFee.StringFixed(2))
	}
	intent := env.gateway.intent(t, result.PaymentIntentID)
	if intent.Auth != "Bearer "+testCustomSecretKey {
		t.Fatalf("expected tenant key, got %s", intent.Auth)
	}
	if intent.Form.Get("application_fee_amount") != "" {
		t.Fatalf("custom mode must not send fee: %v", intent.Form)
	}
	if result.PublishableKey != "pk_test_custom_tenant" {
		t.Fatalf("unexpected publishable key: %s", result.PublishableKey)
	}
}

func TestDonationCreateRejectsBeforeGateway(t *testing.T) {
	env := newServiceTestEnv(t, "donation_create_reject")
	ctx := tenantCtx(env.platformTenant)

	_, err := env.donations.Create(CreateDonationInput{DonorEmail: "a@example.com", Amount: decimal.RequireFromString("0.50"), Context: ctx})
	if !errors.Is(err, ErrAmountOutOfRange) {
		t.Fatalf("expected amount out of range, got %v", err)
	}
	_, err = env.donations.Create(CreateDonationInput{DonorEmail: "a@example.com", Amount: decimal.RequireFromString("10.005"), Context: ctx})
	if !errors.Is(err, ErrAmountOutOfRange) {
		t.Fatalf("expected sub-cent amount rejected, got %v", err)
	}
	_, err = env.donations.Create(CreateDonationInput{DonorEmail: "a@example.com", Amount: decimal.RequireFromString("500.5"), Currency: "jpy", Context: ctx})
	if !errors.Is(err, ErrAmountOutOfRange) {
		t.Fatalf("expected fractional yen rejected, got %v", err)
	}
	_, err = env.donations.Create(CreateDonationInput{Amount: decimal.RequireFromString("5.00"), Context: ctx})
	if !errors.Is(err, ErrDonorEmailRequired) {
		t.Fatalf("expected donor email required, got %v", err)
	}
	_, err = env.donations.Create(CreateDonationInput{DonorEmail: "a@example.com", Amount: decimal.RequireFromString("5.00"), CampaignID: 999, Context: ctx})
	if !errors.Is(err, ErrCampaignNotFound) {
		t.Fatalf("expected campaign not found, got %v", err)
	}
	_, err = env.donations.Create(CreateDonationInput{DonorEmail: "a@example.com", Amount: decimal.RequireFromString("5.00"), Context: context.Background()})
	if !errors.Is(err, ErrTenantRequired) {
		t.Fatalf("expected tenant required, got %v", err)
	}
	if env.gateway.createdCount() != 0 {
		t.Fatalf("gateway must not be called, got %d intents", env.gateway.createdCount())
	}
}

func TestDonationCreateCustomModeWithoutAccount(t *testing.T) {
	env := newServiceTestEnv(t, "donation_create_unconfigured")
	bare := env.createTenant(t, "gamma", constants.PaymentModeCustom)

	_, err := env.donations.Create(CreateDonationInput{DonorEmail: "a@example.com", Amount: decimal.RequireFromString("10.00"), Context: tenantCtx(bare)})
	if !errors.Is(err, ErrGatewayNotConfigured) {
		t.Fatalf("expected gateway not configured, got %v", err)
	}
	var count int64
	if err := env.db.Model(&models.Donation{}).Where("tenant_id = ?", bare.ID).Count(&count).Error; err != nil {
		t.Fatalf("count donations failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("no donation row should be persisted, got %d", count)
	}
	if env.gateway.createdCount() != 0 {
		t.Fatalf("gateway must not be called, got %d intents", env.gateway.createdCount())
	}
}

func TestDonationCreateReusesDonorAccount(t *testing.T) {
	env := newServiceTestEnv(t, "donation_create_donor")

	first := env.createDonation(t, env.platformTenant, "10.00", 0)
	second := env.createDonation(t, env.customTenant, "10.00", 0)
	if first.Donation.UserID == nil || second.Donation.UserID == nil || *first.Donation.UserID != *second.Donation.UserID {
		t.Fatalf("expected one global donor across tenants")
	}
	user, err := env.userRepo.GetByEmail("donor@example.com")
	if err != nil || user == nil {
		t.Fatalf("load donor failed: %v", err)
	}
	if user.Kind != constants.UserKindGuest {
		t.Fatalf("expected guest donor, got %s", user.Kind)
	}
}

func TestDonationConfirmCompletesOnce(t *testing.T) {
	env := newServiceTestEnv(t, "donation_confirm_once")
	campaign := env.createCampaign(t, env.platformTenant, "roof")
	result := env.createDonation(t, env.platformTenant, "100.00", campaign.ID)
	env.gateway.setStatus(t, result.PaymentIntentID, stripe.IntentStatusSucceeded)

	ctx := tenantCtx(env.platformTenant)
	for i := 0; i < 3; i++ {
		donation, err := env.donations.Confirm(ConfirmDonationInput{PaymentIntentID: result.PaymentIntentID, Context: ctx})
		if err != nil {
			t.Fatalf("confirm #%d failed: %v", i, err)
		}
		if donation.Status != constants.DonationStatusCompleted {
			t.Fatalf("expected completed, got %s", donation.Status)
		}
		if donation.PaymentMethod != "card" || donation.CompletedAt == nil {
			t.Fatalf("unexpected completion fields: %+v", donation)
		}
		if donation.PlatformFee.StringFixed(2) != "2.50" {
			t.Fatalf("fee must stay locked, got %s", donation.PlatformFee.StringFixed(2))
		}
	}
	if got := env.campaignRaised(t, env.platformTenant, campaign.ID); got != "100.00" {
		t.Fatalf("expected raised 100.00, got %s", got)
	}
	if env.receipts.count() != 1 {
		t.Fatalf("expected one receipt task, got %d", env.receipts.count())
	}
}

func TestDonationConfirmSurvivesReceiptEnqueueFailure(t *testing.T) {
	env := newServiceTestEnv(t, "donation_confirm_enqueue_down")
	env.receipts.failWith(errors.New("redis down"))
	campaign := env.createCampaign(t, env.platformTenant, "well")
	result := env.createDonation(t, env.platformTenant, "40.00", campaign.ID)
	env.gateway.setStatus(t, result.PaymentIntentID, stripe.IntentStatusSucceeded)

	ctx := tenantCtx(env.platformTenant)
	donation, err := env.donations.Confirm(ConfirmDonationInput{PaymentIntentID: result.PaymentIntentID, Context: ctx})
	if err != nil {
		t.Fatalf("confirm should not fail on enqueue error: %v", err)
	}
	if donation.Status != constants.DonationStatusCompleted {
		t.Fatalf("expected completed, got %s", donation.Status)
	}
	if env.receipts.attemptCount() != 1 || env.receipts.count() != 0 {
		t.Fatalf("expected one failed enqueue attempt, got attempts=%d queued=%d", env.receipts.attemptCount(), env.receipts.count())
	}
	stored, err := env.donations.Get(ctx, result.Donation.ID)
	if err != nil || stored == nil || stored.Status != constants.DonationStatusCompleted {
		t.Fatalf("stored donation must stay completed: %+v err=%v", stored, err)
	}
	if got := env.campaignRaised(t, env.platformTenant, campaign.ID); got != "40.00" {
		t.Fatalf("expected raised 40.00, got %s", got)
	}
}

func TestDonationConfirmRequiresSucceededIntent(t *testing.T) {
	env := newServiceTestEnv(t, "donation_confirm_pending")
	result := env.createDonation(t, env.platformTenant, "10.00", 0)
	ctx := tenantCtx(env.platformTenant)

	_, err := env.donations.Confirm(ConfirmDonationInput{PaymentIntentID: result.PaymentIntentID, Context: ctx})
	if !errors.Is(err, ErrPaymentNotSucceeded) {
		t.Fatalf("expected payment not succeeded, got %v", err)
	}
	donation, err := env.donations.Get(ctx, result.Donation.ID)
	if err != nil {
		t.Fatalf("get donation failed: %v", err)
	}
	if donation.Status != constants.DonationStatusPending {
		t.Fatalf("donation must stay pending, got %s", donation.Status)
	}
	if _, err := env.donations.Confirm(ConfirmDonationInput{PaymentIntentID: "pi_unknown", Context: ctx}); !errors.Is(err, ErrDonationNotFound) {
		t.Fatalf("expected donation not found, got %v", err)
	}
}

func TestDonationFailedNeverCompletes(t *testing.T) {
	env := newServiceTestEnv(t, "donation_failed_terminal")
	campaign := env.createCampaign(t, env.platformTenant, "school")
	result := env.createDonation(t, env.platformTenant, "30.00", campaign.ID)
	ctx := tenantCtx(env.platformTenant)

	failed, err := env.donations.Fail(FailDonationInput{PaymentIntentID: result.PaymentIntentID, Reason: "card_declined", Context: ctx})
	if err != nil {
		t.Fatalf("fail donation failed: %v", err)
	}
	if failed.Status != constants.DonationStatusFailed || failed.FailureReason != "card_declined" {
		t.Fatalf("unexpected failed donation: %+v", failed)
	}

	env.gateway.setStatus(t, result.PaymentIntentID, stripe.IntentStatusSucceeded)
	confirmed, err := env.donations.Confirm(ConfirmDonationInput{PaymentIntentID: result.PaymentIntentID, Context: ctx})
	if err != nil {
		t.Fatalf("confirm after failure should be a no-op, got %v", err)
	}
	if confirmed.Status != constants.DonationStatusFailed {
		t.Fatalf("failed donation must stay failed, got %s", confirmed.Status)
	}
	if got := env.campaignRaised(t, env.platformTenant, campaign.ID); got != "0.00" {
		t.Fatalf("raised must not change, got %s", got)
	}
	if env.receipts.count() != 0 {
		t.Fatalf("no receipt expected, got %d", env.receipts.count())
	}
}

func TestDonationCompletedIgnoresFail(t *testing.T) {
	env := newServiceTestEnv(t, "donation_completed_terminal")
	result := env.createDonation(t, env.platformTenant, "15.00", 0)
	env.gateway.setStatus(t, result.PaymentIntentID, stripe.IntentStatusSucceeded)
	ctx := tenantCtx(env.platformTenant)

	if _, err := env.donations.Confirm(ConfirmDonationInput{PaymentIntentID: result.PaymentIntentID, Context: ctx}); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	donation, err := env.donations.Fail(FailDonationInput{PaymentIntentID: result.PaymentIntentID, Reason: "late", Context: ctx})
	if err != nil {
		t.Fatalf("fail on completed should be a no-op, got %v", err)
	}
	if donation.Status != constants.DonationStatusCompleted || donation.FailureReason != "" {
		t.Fatalf("completed donation must not change: %+v", donation)
	}
}

func TestDonationTenantIsolation(t *testing.T) {
	env := newServiceTestEnv(t, "donation_isolation")
	result := env.createDonation(t, env.platformTenant, "10.00", 0)
	env.gateway.setStatus(t, result.PaymentIntentID, stripe.IntentStatusSucceeded)
	other := tenantCtx(env.customTenant)

	if _, err := env.donations.Get(other, result.Donation.ID); !errors.Is(err, ErrDonationNotFound) {
		t.Fatalf("expected not found across tenants, got %v", err)
	}
	if _, err := env.donations.Confirm(ConfirmDonationInput{PaymentIntentID: result.PaymentIntentID, Context: other}); !errors.Is(err, ErrDonationNotFound) {
		t.Fatalf("expected not found across tenants, got %v", err)
	}
	items, total, err := env.donations.List(other, defaultDonationFilter())
	if err != nil {
		t.Fatalf("list donations failed: %v", err)
	}
	if total != 0 || len(items) != 0 {
		t.Fatalf("expected empty list for other tenant, got %d", total)
	}
	items, total, err = env.donations.List(tenantCtx(env.platformTenant), defaultDonationFilter())
	if err != nil || total != 1 || len(items) != 1 {
		t.Fatalf("expected own donation listed, total=%d err=%v", total, err)
	}
}

func TestDonationCampaignClosed(t *testing.T) {
	env := newServiceTestEnv(t, "donation_campaign_closed")
	campaign := env.createCampaign(t, env.platformTenant, "closed")
	if err := env.db.Model(campaign).Update("status", constants.CampaignStatusClosed).Error; err != nil {
		t.Fatalf("close campaign failed: %v", err)
	}
	_, err := env.donations.Create(CreateDonationInput{
		DonorEmail: "donor@example.com",
		Amount:     decimal.RequireFromString("10.00"),
		CampaignID: campaign.ID,
		Context:    tenantCtx(env.platformTenant),
	})
	if !errors.Is(err, ErrCampaignInactive) {
		t.Fatalf("expected campaign inactive, got %v", err)
	}
	// 其他租户的活动等同于不存在
	_, err = env.donations.Create(CreateDonationInput{
		DonorEmail: "donor@example.com",
		Amount:     decimal.RequireFromString("10.00"),
		CampaignID: campaign.ID,
		Context:    tenantCtx(env.customTenant),
	})
	if !errors.Is(err, ErrCampaignNotFound) {
		t.Fatalf("expected campaign not found across tenants, got %v", err)
	}
}
