package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequenceFor(t *testing.T) {
	tests := []struct {
		role Role
		want []Role
	}{
		{RoleMain, []Role{RoleMain, RoleFallback, RoleResearch}},
		{RoleResearch, []Role{RoleResearch, RoleFallback, RoleMain}},
		{RoleFallback, []Role{RoleFallback, RoleMain, RoleResearch}},
		{Role("unknown"), []Role{RoleMain, RoleFallback, RoleResearch}},
		{Role(""), []Role{RoleMain, RoleFallback, RoleResearch}},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			assert.Equal(t, tt.want, sequenceFor(tt.role))
		})
	}
}

func TestSequenceFor_ReturnsCopy(t *testing.T) {
	seq := sequenceFor(RoleMain)
	seq[0] = RoleResearch
	assert.Equal(t, []Role{RoleMain, RoleFallback, RoleResearch}, sequenceFor(RoleMain))
}

func TestRoleIsValid(t *testing.T) {
	assert.True(t, RoleMain.IsValid())
	assert.True(t, RoleResearch.IsValid())
	assert.True(t, RoleFallback.IsValid())
	assert.False(t, Role("primary").IsValid())
	assert.False(t, Role("").IsValid())
}
