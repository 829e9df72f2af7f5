package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIDIsValid(t *testing.T) {
	for i := 0; i < 50; i++ {
		id, err := NewID()
		require.NoError(t, err)
		assert.True(t, ValidID(id), id)
	}
}

func TestValidID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"V1StGXR8_Z5jdHi6B-myT", true},
		{"", false},
		{"short", false},
		{strings.Repeat("a", 22), false},
		{"V1StGXR8_Z5jdHi6B-my!", false},
		{"' OR 1=1 --xxxxxxxxxx", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidID(tt.id), tt.id)
	}
}

func TestBeforeCreateKeepsExistingID(t *testing.T) {
	m := Model{ID: "V1StGXR8_Z5jdHi6B-myT"}
	require.NoError(t, m.BeforeCreate(nil))
	assert.Equal(t, "V1StGXR8_Z5jdHi6B-myT", m.ID)

	var fresh Model
	require.NoError(t, fresh.BeforeCreate(nil))
	assert.True(t, ValidID(fresh.ID))
}

func TestUserPublicHidesSecrets(t *testing.T) {
	token := "verify"
	u := User{Email: "a@x.com", Password: "hash", VerifyToken: &token, Role: RoleClient}
	pub := u.Public()
	assert.Equal(t, "a@x.com", pub.Email)
	assert.False(t, u.IsAdmin())
}
