package authz

import (
	"fmt"
	"strings"

	"github.com/casbin/casbin/v3"
	"github.com/casbin/casbin/v3/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"gorm.io/gorm"
)

const (
	casbinTableName = "casbin_rule"
	rolePrefix      = "role:"
)

// 受控资源与动作
const (
	ObjectOrder = "order"

	ActionReadOwn  = "read_own"
	ActionReadAny  = "read_any"
	ActionCancel   = "cancel"
	ActionOverride = "override"
	ActionSettle   = "settle"
)

const defaultRBACModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && (r.act == p.act || p.act == "*")
`

// Policy 角色在资源上的动作授权
type Policy struct {
	Object string
	Action string
}

// Service Casbin 授权服务
type Service struct {
	enforcer *casbin.SyncedEnforcer
}

// NewService 创建授权服务，策略持久化在 casbin_rule 表
func NewService(db *gorm.DB) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("authz db is nil")
	}

	adapter, err := gormadapter.NewAdapterByDBUseTableName(db, "", casbinTableName)
	if err != nil {
		return nil, fmt.Errorf("create authz adapter failed: %w", err)
	}

	m, err := model.NewModelFromString(defaultRBACModel)
	if err != nil {
		return nil, fmt.Errorf("load authz model failed: %w", err)
	}

	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("init authz enforcer failed: %w", err)
	}
	enforcer.EnableAutoSave(true)

	if err := enforcer.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("load authz policy failed: %w", err)
	}

	return &Service{enforcer: enforcer}, nil
}

// Can 判断角色是否拥有资源动作
func (s *Service) Can(role, obj, act string) (bool, error) {
	if s == nil || s.enforcer == nil {
		return false, fmt.Errorf("authz service unavailable")
	}
	subject, err := NormalizeRole(role)
	if err != nil {
		return false, nil
	}
	return s.enforcer.Enforce(subject, NormalizeObject(obj), NormalizeAction(act))
}

// NormalizeRole 角色转换为 casbin 主体，空角色返回错误
func NormalizeRole(role string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(role), rolePrefix)))
	if trimmed == "" {
		return "", fmt.Errorf("role is required")
	}
	return rolePrefix + trimmed, nil
}

// NormalizeObject 规范化资源名
func NormalizeObject(obj string) string {
	return strings.ToLower(strings.TrimSpace(obj))
}

// NormalizeAction 规范化动作名
func NormalizeAction(act string) string {
	return strings.ToLower(strings.TrimSpace(act))
}

func (s *Service) saveAndReload() error {
	if err := s.enforcer.SavePolicy(); err != nil {
		return fmt.Errorf("save authz policy failed: %w", err)
	}
	if err := s.enforcer.LoadPolicy(); err != nil {
		return fmt.Errorf("reload authz policy failed: %w", err)
	}
	return nil
}
