package permissions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasPermission(t *testing.T) {
	perms := []string{"payroll.read", "payroll.process", "jobs.*"}

	assert.True(t, HasPermission(perms, "payroll.process"))
	assert.True(t, HasPermission(perms, "jobs.create"))
	assert.True(t, HasPermission(perms, "jobs.delete"))
	assert.False(t, HasPermission(perms, "payroll.approve"))
	assert.False(t, HasPermission(perms, "crm.read"))

	assert.True(t, HasPermission([]string{"*"}, "anything.at.all"))
	assert.False(t, HasPermission(nil, "payroll.read"))

	// Empty requirement means no permission needed
	assert.True(t, HasPermission(nil, ""))
}

func TestHasAnyAndAllPermissions(t *testing.T) {
	perms := []string{"estimates.read", "estimates.convert"}

	assert.True(t, HasAnyPermission(perms, []string{"estimates.convert", "payroll.process"}))
	assert.False(t, HasAnyPermission(perms, []string{"payroll.process", "crm.read"}))

	assert.True(t, HasAllPermissions(perms, []string{"estimates.read", "estimates.convert"}))
	assert.False(t, HasAllPermissions(perms, []string{"estimates.read", "estimates.delete"}))
}

func TestFilterByPrefix(t *testing.T) {
	perms := []string{"payroll.read", "payroll.process", "jobs.read"}
	assert.ElementsMatch(t, []string{"payroll.read", "payroll.process"}, FilterByPrefix(perms, "payroll"))
	assert.Empty(t, FilterByPrefix(perms, "crm"))
}

func TestMergePermissions(t *testing.T) {
	merged := MergePermissions([]string{"a.read", "b.read"}, []string{"b.read", "c.read"})
	assert.ElementsMatch(t, []string{"a.read", "b.read", "c.read"}, merged)
}

func TestIsValidPermission(t *testing.T) {
	assert.True(t, IsValidPermission("payroll.process"))
	assert.True(t, IsValidPermission("jobs.*"))
	assert.True(t, IsValidPermission("*"))
	assert.False(t, IsValidPermission(""))
	assert.False(t, IsValidPermission("no-dot"))
}
