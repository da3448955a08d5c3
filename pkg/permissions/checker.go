// Package permissions provides utilities for checking JSONB array permissions
// against required permissions with support for wildcards.
//
// Permission Format:
//   - "*" - Full access (all permissions)
//   - "resource.*" - All actions on a resource (e.g., "payroll.*")
//   - "resource.action" - Specific action (e.g., "payroll.process")
//   - "resource.subresource.action" - Nested permission (e.g., "payroll.funding.confirm")
package permissions

import (
	"strings"
)

// HasPermission checks if the user's permissions include the required permission.
// Supports wildcard matching:
//   - "*" matches everything
//   - "payroll.*" matches "payroll.process", "payroll.approve", etc.
//   - Exact match for specific permissions
func HasPermission(userPerms []string, required string) bool {
	if required == "" {
		return true // No permission required
	}

	for _, p := range userPerms {
		if p == "*" {
			return true // Full admin access
		}
		if p == required {
			return true // Exact match
		}
		// Check wildcard patterns like "payroll.*"
		if strings.HasSuffix(p, ".*") {
			prefix := strings.TrimSuffix(p, ".*")
			if strings.HasPrefix(required, prefix+".") {
				return true
			}
		}
	}
	return false
}

// HasAnyPermission checks if the user has any of the required permissions.
func HasAnyPermission(userPerms []string, required []string) bool {
	for _, req := range required {
		if HasPermission(userPerms, req) {
			return true
		}
	}
	return false
}

// HasAllPermissions checks if the user has all of the required permissions.
func HasAllPermissions(userPerms []string, required []string) bool {
	for _, req := range required {
		if !HasPermission(userPerms, req) {
			return false
		}
	}
	return true
}

// FilterByPrefix returns all permissions that match a given prefix.
// Useful for getting all permissions in a category (e.g., "payroll").
func FilterByPrefix(perms []string, prefix string) []string {
	var matches []string
	for _, p := range perms {
		if strings.HasPrefix(p, prefix+".") || p == prefix {
			matches = append(matches, p)
		}
	}
	return matches
}

// MergePermissions merges multiple permission sets, removing duplicates.
// Useful for combining role permissions with permission overrides.
func MergePermissions(sets ...[]string) []string {
	seen := make(map[string]bool)
	var result []string

	for _, set := range sets {
		for _, p := range set {
			if !seen[p] {
				seen[p] = true
				result = append(result, p)
			}
		}
	}

	return result
}

// CommonPermissions is a list of standard permissions used in CrewFlow.
// This can be used for validation and autocomplete.
var CommonPermissions = []string{
	// Payroll permissions
	"payroll.read",
	"payroll.process",
	"payroll.approve",
	"payroll.funding.confirm",
	"payroll.payments.dispatch",
	"payroll.*",

	// Job permissions
	"jobs.read",
	"jobs.write",
	"jobs.delete",
	"jobs.*",

	// Inventory permissions
	"inventory.read",
	"inventory.write",
	"inventory.adjust",
	"inventory.*",

	// Estimate permissions
	"estimates.read",
	"estimates.write",
	"estimates.convert",
	"estimates.print",
	"estimates.*",

	// CRM permissions
	"crm.read",
	"crm.write",
	"crm.delete",
	"crm.*",

	// User permissions
	"users.read",
	"users.write",
	"users.roles.assign",
	"users.*",

	// Admin permissions
	"admin.settings",
	"admin.tenant.manage",
	"admin.*",

	// Full access
	"*",
}

// IsValidPermission checks if a permission string is in the known list.
// Allows wildcards and custom permissions not in the standard list.
func IsValidPermission(perm string) bool {
	// Allow wildcard
	if perm == "*" {
		return true
	}

	// Check against known permissions
	for _, p := range CommonPermissions {
		if p == perm {
			return true
		}
	}

	// Allow any permission that follows the pattern resource.action
	parts := strings.Split(perm, ".")
	return len(parts) >= 2
}
