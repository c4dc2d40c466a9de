package authz

import (
	"fmt"

	"github.com/storefront-next/internal/constants"
)

// RoleSeed 预置角色定义
type RoleSeed struct {
	Role     string
	Inherits []string
	Policies []Policy
}

// BuiltinRoleSeeds 系统预置角色矩阵
func BuiltinRoleSeeds() []RoleSeed {
	return []RoleSeed{
		{
			Role: constants.RoleUser,
			Policies: []Policy{
				{Object: ObjectOrder, Action: ActionReadOwn},
				{Object: ObjectOrder, Action: ActionCancel},
			},
		},
		{
			Role: constants.RoleGateway,
			Policies: []Policy{
				{Object: ObjectOrder, Action: ActionSettle},
			},
		},
		{
			Role:     constants.RoleAdmin,
			Inherits: []string{constants.RoleUser},
			Policies: []Policy{
				{Object: ObjectOrder, Action: ActionReadAny},
				{Object: ObjectOrder, Action: ActionOverride},
			},
		},
	}
}

// BootstrapBuiltinRoles 初始化预置角色与默认策略，可重复执行
func (s *Service) BootstrapBuiltinRoles() error {
	if s == nil || s.enforcer == nil {
		return fmt.Errorf("authz service unavailable")
	}

	changed := false
	for _, seed := range BuiltinRoleSeeds() {
		role, err := NormalizeRole(seed.Role)
		if err != nil {
			return err
		}

		for _, parent := range seed.Inherits {
			parentRole, err := NormalizeRole(parent)
			if err != nil {
				return err
			}
			added, err := s.enforcer.AddNamedGroupingPolicy("g", role, parentRole)
			if err != nil {
				return fmt.Errorf("link role inheritance failed: %w", err)
			}
			changed = changed || added
		}

		for _, policy := range seed.Policies {
			action := NormalizeAction(policy.Action)
			if action == "" {
				return fmt.Errorf("builtin policy action is required")
			}
			added, err := s.enforcer.AddPolicy(role, NormalizeObject(policy.Object), action)
			if err != nil {
				return fmt.Errorf("add builtin policy failed: %w", err)
			}
			changed = changed || added
		}
	}

	if changed {
		return s.saveAndReload()
	}
	return nil
}
