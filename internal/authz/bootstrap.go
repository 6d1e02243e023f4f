package authz

import (
	"fmt"

	"github.com/dujiao-next/donate/internal/constants"
)

// RoleSeed 预置角色定义
type RoleSeed struct {
	Role     string
	Inherits []string
	Policies []Policy
}

// BuiltinRoleSeeds 租户管理员预置角色
func BuiltinRoleSeeds() []RoleSeed {
	return []RoleSeed{
		{
			Role: constants.TenantRoleViewer,
			Policies: []Policy{
				{Object: "/admin/donations", Action: "GET"},
				{Object: "/admin/donations/:id", Action: "GET"},
				{Object: "/admin/tenant", Action: "GET"},
			},
		},
		{
			Role:     constants.TenantRoleFinance,
			Inherits: []string{constants.TenantRoleViewer},
			Policies: []Policy{
				{Object: "/admin/gateway", Action: "GET"},
				{Object: "/admin/gateway/verify", Action: "POST"},
			},
		},
		{
			Role:     constants.TenantRoleOwner,
			Inherits: []string{constants.TenantRoleFinance},
			Policies: []Policy{
				{Object: "/admin/*", Action: "*"},
			},
		},
	}
}

// BootstrapBuiltinRoles 写入预置角色策略；继承关系在写入时展开，不依赖跨域角色链
func (s *Service) BootstrapBuiltinRoles() error {
	if s == nil || s.enforcer == nil {
		return fmt.Errorf("authz service unavailable")
	}
	seeds := BuiltinRoleSeeds()
	byRole := make(map[string]RoleSeed, len(seeds))
	for _, seed := range seeds {
		byRole[seed.Role] = seed
	}

	for _, seed := range seeds {
		role, err := NormalizeRole(seed.Role)
		if err != nil {
			return err
		}
		for _, policy := range expandSeedPolicies(seed, byRole, map[string]bool{}) {
			action := NormalizeAction(policy.Action)
			if action == "" {
				return fmt.Errorf("builtin policy action is required")
			}
			if _, err := s.enforcer.AddPolicy(role, NormalizeObject(policy.Object), action); err != nil {
				return fmt.Errorf("add builtin policy failed: %w", err)
			}
		}
	}
	return nil
}

func expandSeedPolicies(seed RoleSeed, byRole map[string]RoleSeed, visited map[string]bool) []Policy {
	if visited[seed.Role] {
		return nil
	}
	visited[seed.Role] = true
	policies := append([]Policy{}, seed.Policies...)
	for _, parent := range seed.Inherits {
		if parentSeed, ok := byRole[parent]; ok {
			policies = append(policies, expandSeedPolicies(parentSeed, byRole, visited)...)
		}
	}
	return policies
}
