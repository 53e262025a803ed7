// Package permission maps roles to the actions they may perform on each
// resource. The table is built once at startup and read concurrently.
package permission

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// Resources
const (
	ResourceUser    = "user"
	ResourceSession = "session"
	ResourceAudit   = "audit"
)

// Actions on ResourceUser
const (
	ActionCreate      = "create"
	ActionList        = "list"
	ActionSetRole     = "set-role"
	ActionBan         = "ban"
	ActionImpersonate = "impersonate"
	ActionDelete      = "delete"
	ActionSetPassword = "set-password"
	ActionGet         = "get"
	ActionUpdate      = "update"
	ActionRevoke      = "revoke"
)

// Statements lists every action that exists per resource
var Statements = map[string][]string{
	ResourceUser: {
		ActionCreate, ActionList, ActionSetRole, ActionBan, ActionImpersonate,
		ActionDelete, ActionSetPassword, ActionGet, ActionUpdate,
	},
	ResourceSession: {ActionList, ActionRevoke, ActionDelete},
	ResourceAudit:   {ActionList},
}

var (
	ErrFrozen          = errors.New("permission: role manager frozen")
	ErrRoleExists      = errors.New("permission: role already registered")
	ErrUnknownResource = errors.New("permission: unknown resource")
	ErrUnknownAction   = errors.New("permission: unknown action")
)

// RoleManager holds the role -> resource -> actions grants
type RoleManager struct {
	mu     sync.RWMutex
	roles  map[string]map[string][]string
	frozen bool
}

// NewRoleManager creates an empty manager
func NewRoleManager() *RoleManager {
	return &RoleManager{roles: make(map[string]map[string][]string)}
}

// Register adds a role. Every resource and action must appear in Statements.
func (rm *RoleManager) Register(role string, grants map[string][]string) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.frozen {
		return ErrFrozen
	}
	if role == "" {
		return errors.New("permission: role name empty")
	}
	if _, ok := rm.roles[role]; ok {
		return ErrRoleExists
	}

	copied := make(map[string][]string, len(grants))
	for resource, actions := range grants {
		known, ok := Statements[resource]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownResource, resource)
		}
		for _, action := range actions {
			if !slices.Contains(known, action) {
				return fmt.Errorf("%w: %s:%s", ErrUnknownAction, resource, action)
			}
		}
		copied[resource] = slices.Clone(actions)
	}
	rm.roles[role] = copied
	return nil
}

// Freeze rejects further registrations
func (rm *RoleManager) Freeze() {
	rm.mu.Lock()
	rm.frozen = true
	rm.mu.Unlock()
}

// Allows reports whether role holds every listed action on resource.
// Unknown roles, unknown resources and an empty action list are denied.
func (rm *RoleManager) Allows(role, resource string, actions ...string) bool {
	if len(actions) == 0 {
		return false
	}

	rm.mu.RLock()
	defer rm.mu.RUnlock()

	grants, ok := rm.roles[role]
	if !ok {
		return false
	}
	granted, ok := grants[resource]
	if !ok {
		return false
	}
	for _, action := range actions {
		if !slices.Contains(granted, action) {
			return false
		}
	}
	return true
}

// HasRole reports whether role is registered
func (rm *RoleManager) HasRole(role string) bool {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	_, ok := rm.roles[role]
	return ok
}

// Default returns the frozen built-in table: admin holds every statement,
// user holds none.
func Default() *RoleManager {
	rm := NewRoleManager()
	if err := rm.Register("admin", Statements); err != nil {
		panic(err)
	}
	if err := rm.Register("user", map[string][]string{}); err != nil {
		panic(err)
	}
	rm.Freeze()
	return rm
}
