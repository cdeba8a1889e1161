package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleOrdering(t *testing.T) {
	tcases := []struct {
		role     Role
		other    Role
		outranks bool
	}{
		{RoleOwner, RoleAdmin, true},
		{RoleAdmin, RoleManager, true},
		{RoleManager, RoleEmployee, true},
		{RoleAdmin, RoleAdmin, false},
		{RoleEmployee, RoleManager, false},
		{RoleEmployee, Role("member"), true},
	}

	for _, tc := range tcases {
		t.Run(string(tc.role)+">"+string(tc.other), func(t *testing.T) {
			assert.Equal(t, tc.outranks, tc.role.Outranks(tc.other))
		})
	}
}

func TestRoleValid(t *testing.T) {
	for _, r := range []Role{RoleOwner, RoleAdmin, RoleManager, RoleEmployee} {
		assert.True(t, r.Valid(), "expected %q to be valid", r)
	}
	assert.False(t, Role("member").Valid())
	assert.False(t, Role("").Valid())
	assert.True(t, RoleManager.In(RoleOwner, RoleManager))
	assert.False(t, RoleEmployee.In(RoleOwner, RoleManager))
}

func TestMessageTypeValid(t *testing.T) {
	assert.True(t, MessageBusiness.Valid())
	assert.True(t, MessageDirect.Valid())
	assert.True(t, MessageGroup.Valid())
	assert.False(t, MessageType("broadcast").Valid())
}
