package permissions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"identity-service/internal/model"
)

func TestTemplate(t *testing.T) {
	t.Run("known template returns grants", func(t *testing.T) {
		grants := Template(TemplateUserStandard)
		assert.NotEmpty(t, grants)
	})

	t.Run("unknown template returns empty", func(t *testing.T) {
		assert.Empty(t, Template("NOPE"))
	})

	t.Run("returned slice is a copy", func(t *testing.T) {
		grants := Template(TemplateUserReadOnly)
		require.NotEmpty(t, grants)
		grants[0].Resource = "mutated"
		assert.NotEqual(t, "mutated", Template(TemplateUserReadOnly)[0].Resource)
	})
}

func TestCombine(t *testing.T) {
	combined := Combine(TemplateUserStandard, TemplateSupport)

	seen := make(map[string]int)
	for _, g := range combined {
		seen[g.Resource+":"+g.Action]++
	}
	for key, count := range seen {
		assert.Equal(t, 1, count, "duplicate grant %s", key)
	}
	// profile:read appears in both templates and must survive exactly once.
	assert.Equal(t, 1, seen["profile:read"])
}

func TestAvailableTemplates(t *testing.T) {
	names := AvailableTemplates()
	assert.Contains(t, names, TemplateUserStandard)
	assert.Contains(t, names, TemplateAdmin)
	assert.IsIncreasing(t, names)
}

func TestFormatAccount(t *testing.T) {
	now := time.Now().UTC()

	t.Run("resolves role and permissions", func(t *testing.T) {
		acc := &model.Account{
			AccountID: "acc-1",
			Email:     "a@x.com",
			FullName:  "A",
			Status:    model.StatusActive,
			RoleID:    DefaultRoleID,
			CreatedAt: now,
		}
		f := FormatAccount(acc)
		require.NotNil(t, f)
		require.NotNil(t, f.Role)
		assert.Equal(t, "user", f.Role.RoleID)
		assert.NotEmpty(t, f.Permissions)
	})

	t.Run("unknown role formats without grants", func(t *testing.T) {
		acc := &model.Account{AccountID: "acc-2", RoleID: "ghost", CreatedAt: now}
		f := FormatAccount(acc)
		require.NotNil(t, f)
		assert.Nil(t, f.Role)
		assert.Empty(t, f.Permissions)
	})

	t.Run("nil account", func(t *testing.T) {
		assert.Nil(t, FormatAccount(nil))
	})
}
