package authz

import "fmt"

const sitePath = "/admin/sites/:site_id"

// RoleSeed 预置角色定义
type RoleSeed struct {
	Role     string
	Inherits []string
	Policies []Policy
}

// BuiltinRoleSeeds 预置角色矩阵：审计只读，成员管理与账务分离，站点管理员兼有二者
func BuiltinRoleSeeds() []RoleSeed {
	return []RoleSeed{
		{
			Role: "auditor",
			Policies: []Policy{
				{Object: "/admin/sites/*", Action: "GET"},
			},
		},
		{
			Role:     "member_admin",
			Inherits: []string{"auditor"},
			Policies: []Policy{
				{Object: sitePath + "/users", Action: "POST"},
				{Object: sitePath + "/users/:user_id", Action: "PUT"},
				{Object: sitePath + "/users/:user_id/deactivate", Action: "POST"},
				{Object: sitePath + "/cards/:card_id/owner", Action: "POST"},
				{Object: sitePath + "/users/:user_id/card", Action: "POST"},
				{Object: sitePath + "/card-orders", Action: "POST"},
				{Object: sitePath + "/card-orders/:order_id/*", Action: "POST"},
			},
		},
		{
			Role:     "accountant",
			Inherits: []string{"auditor"},
			Policies: []Policy{
				{Object: sitePath + "/months", Action: "POST"},
				{Object: sitePath + "/months/:month_id/*", Action: "POST"},
				{Object: sitePath + "/payments/:payment_id", Action: "PATCH"},
				{Object: sitePath + "/payments/:payment_id/*", Action: "POST"},
				{Object: sitePath + "/reconcile", Action: "POST"},
			},
		},
		{
			Role:     "site_admin",
			Inherits: []string{"member_admin", "accountant"},
			Policies: []Policy{
				{Object: sitePath, Action: "PUT"},
				{Object: sitePath + "/tiers", Action: "POST"},
				{Object: sitePath + "/tiers/:tier_id", Action: "PUT"},
			},
		},
	}
}

// BootstrapBuiltinRoles 初始化预置角色与默认策略，已存在的规则保持不变
func (s *Service) BootstrapBuiltinRoles() error {
	if err := s.ready(); err != nil {
		return err
	}
	for _, seed := range BuiltinRoleSeeds() {
		role, err := s.EnsureRole(seed.Role)
		if err != nil {
			return err
		}
		for _, parent := range seed.Inherits {
			parentRole, err := s.EnsureRole(parent)
			if err != nil {
				return err
			}
			if _, err := s.enforcer.AddNamedGroupingPolicy("g", role, parentRole); err != nil {
				return fmt.Errorf("link role inheritance failed: %w", err)
			}
		}
		for _, policy := range seed.Policies {
			if err := s.GrantRolePolicy(role, policy.Object, policy.Action); err != nil {
				return err
			}
		}
	}
	return nil
}
