package authz

import (
	"fmt"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupAuthzServiceTest(t *testing.T) *Service {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	svc, err := NewService(db)
	if err != nil {
		t.Fatalf("new authz service failed: %v", err)
	}
	return svc
}

func TestEnforceUserIsScopedToTenant(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.GrantRolePolicy("finance", "/admin/gateway", "GET"); err != nil {
		t.Fatalf("grant role policy failed: %v", err)
	}
	if err := svc.SetUserRoles(1, 10, []string{"finance"}); err != nil {
		t.Fatalf("set user roles failed: %v", err)
	}

	allow, err := svc.EnforceUser(1, 10, "/api/v1/admin/gateway", "get")
	if err != nil {
		t.Fatalf("enforce allow failed: %v", err)
	}
	if !allow {
		t.Fatalf("expected allow in own tenant")
	}

	allow, err = svc.EnforceUser(1, 11, "/api/v1/admin/gateway", "GET")
	if err != nil {
		t.Fatalf("enforce other tenant failed: %v", err)
	}
	if allow {
		t.Fatalf("expected deny in other tenant")
	}

	allow, err = svc.EnforceUser(1, 10, "/api/v1/admin/gateway", "PUT")
	if err != nil {
		t.Fatalf("enforce deny failed: %v", err)
	}
	if allow {
		t.Fatalf("expected deny for write")
	}
}

func TestSetUserRolesOverride(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.SetUserRoles(2, 10, []string{"viewer"}); err != nil {
		t.Fatalf("set first role failed: %v", err)
	}
	if err := svc.SetUserRoles(2, 20, []string{"owner"}); err != nil {
		t.Fatalf("set role in second tenant failed: %v", err)
	}
	if err := svc.SetUserRoles(2, 10, []string{"finance"}); err != nil {
		t.Fatalf("override role failed: %v", err)
	}

	roles, err := svc.GetUserRoles(2, 10)
	if err != nil {
		t.Fatalf("get roles failed: %v", err)
	}
	if len(roles) != 1 || roles[0] != "role:finance" {
		t.Fatalf("roles want [role:finance], got=%v", roles)
	}
	roles, err = svc.GetUserRoles(2, 20)
	if err != nil {
		t.Fatalf("get roles failed: %v", err)
	}
	if len(roles) != 1 || roles[0] != "role:owner" {
		t.Fatalf("other tenant roles must be untouched, got=%v", roles)
	}
}

func TestNormalizeObject(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "/api/v1/admin/donations/:id", want: "/admin/donations/:id"},
		{in: "/api/v1/tenant/alpha/admin/gateway", want: "/admin/gateway"},
		{in: "/admin/gateway", want: "/admin/gateway"},
		{in: "admin/donations", want: "/admin/donations"},
		{in: "/api/v1", want: "/"},
		{in: "", want: "/"},
	}
	for _, item := range cases {
		got := NormalizeObject(item.in)
		if got != item.want {
			t.Fatalf("normalize object failed, in=%q want=%q got=%q", item.in, item.want, got)
		}
	}
}

func TestBootstrapBuiltinRoles(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap builtin roles failed: %v", err)
	}
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap must be repeatable: %v", err)
	}
	policies, err := svc.GetRolePolicies("finance")
	if err != nil {
		t.Fatalf("get finance policies failed: %v", err)
	}
	if len(policies) != 5 {
		t.Fatalf("expected finance to carry viewer policies, got %v", policies)
	}

	cases := []struct {
		role   string
		object string
		action string
		allow  bool
	}{
		{role: "viewer", object: "/api/v1/admin/donations", action: "GET", allow: true},
		{role: "viewer", object: "/api/v1/admin/gateway", action: "GET", allow: false},
		{role: "viewer", object: "/api/v1/tenant/:tenant/admin/donations/:id", action: "GET", allow: true},
		{role: "viewer", object: "/api/v1/admin/tenant", action: "PUT", allow: false},
		{role: "finance", object: "/api/v1/admin/gateway", action: "GET", allow: true},
		{role: "finance", object: "/api/v1/admin/gateway", action: "PUT", allow: false},
		{role: "finance", object: "/api/v1/admin/gateway/verify", action: "POST", allow: true},
		{role: "owner", object: "/api/v1/admin/gateway", action: "PUT", allow: true},
		{role: "owner", object: "/api/v1/admin/tenant", action: "PUT", allow: true},
	}
	for i, item := range cases {
		userID := uint(100 + i)
		if err := svc.SetUserRoles(userID, 5, []string{item.role}); err != nil {
			t.Fatalf("set roles failed: %v", err)
		}
		allow, err := svc.EnforceUser(userID, 5, item.object, item.action)
		if err != nil {
			t.Fatalf("enforce failed: %v", err)
		}
		if allow != item.allow {
			t.Fatalf("role=%s %s %s: want allow=%v got %v", item.role, item.action, item.object, item.allow, allow)
		}
	}
}
