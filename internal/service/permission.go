package service

import (
	"assessment_engine/internal/model"
	"context"
	"sync"
)

// RolePermissions answers capability checks from a capability -> roles table.
// Admins are always allowed.
type RolePermissions struct {
	mu    sync.RWMutex
	table map[string]map[model.UserRole]bool
}

func NewRolePermissions(table map[string][]string) *RolePermissions {
	p := &RolePermissions{}
	p.Reload(table)
	return p
}

// Reload 整体替换权限表，配置热更新时调用
func (p *RolePermissions) Reload(table map[string][]string) {
	next := make(map[string]map[model.UserRole]bool, len(table))
	for capability, roles := range table {
		set := make(map[model.UserRole]bool, len(roles))
		for _, r := range roles {
			set[model.UserRole(r)] = true
		}
		next[capability] = set
	}
	p.mu.Lock()
	p.table = next
	p.mu.Unlock()
}

func (p *RolePermissions) Allowed(ctx context.Context, capability string, caller Caller) bool {
	if caller.UserID == 0 {
		return false
	}
	if caller.Role == model.Admin {
		return true
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.table[capability][caller.Role]
}
