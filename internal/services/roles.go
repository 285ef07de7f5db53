package services

import "fmt"

// Roles is the closed role set. Routing decisions are table lookups
// against it, never a default case.
var Roles = []string{RoleMonitor, RoleClient, RoleSupport, RoleAdmin}

// RoleHomes dispatches each role to its dashboard route.
var RoleHomes = map[string]string{
	RoleMonitor: "/app/monitor",
	RoleClient:  "/app/client",
	RoleSupport: "/app/support",
	RoleAdmin:   "/app/admin",
}

func ValidRole(role string) bool {
	for _, r := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HomeForRole resolves the dashboard route for a role. Roles outside the
// closed set are forbidden.
func HomeForRole(role string) (string, error) {
	home, ok := RoleHomes[role]
	if !ok {
		return "", NewForbiddenError("unknown role: " + role)
	}
	return home, nil
}

// ValidateRoleHomes confirms the dispatch table covers the closed role set
// exactly. Called at startup so a missing or stray entry fails the boot,
// not a request.
func ValidateRoleHomes() error {
	for _, r := range Roles {
		if _, ok := RoleHomes[r]; !ok {
			return fmt.Errorf("role %q has no dashboard route", r)
		}
	}
	if len(RoleHomes) != len(Roles) {
		return fmt.Errorf("role dispatch table has %d entries, want %d", len(RoleHomes), len(Roles))
	}
	return nil
}
