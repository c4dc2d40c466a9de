package service

import (
	"strings"

	"github.com/storefront-next/internal/constants"
)

// Actor 已认证的调用方（由认证边界给出，服务层完全信任）
type Actor struct {
	ID   uint
	Role string
}

// GatewayActor 支付网关回调使用的调用方
func GatewayActor() Actor {
	return Actor{Role: constants.RoleGateway}
}

// NormalizedRole 大写角色名
func (a Actor) NormalizedRole() string {
	return strings.ToUpper(strings.TrimSpace(a.Role))
}

// IsGateway 是否网关调用
func (a Actor) IsGateway() bool {
	return a.NormalizedRole() == constants.RoleGateway
}

func (a Actor) source() string {
	switch a.NormalizedRole() {
	case constants.RoleGateway:
		return constants.TransitionSourceGateway
	case constants.RoleAdmin:
		return constants.TransitionSourceAdmin
	default:
		return constants.TransitionSourceUser
	}
}
