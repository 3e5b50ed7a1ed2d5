package auth

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ggeejehd-eng/mj36/store"
)

func newManager() (*Manager, *store.FakeStore) {
	fake := store.NewFakeStore()
	return NewManager(store.NewAdapter(fake)), fake
}

func TestRegisterAndLogin(t *testing.T) {
	m, _ := newManager()
	ctx := context.Background()

	user, token, err := m.Register(ctx, "jehad", "s3cret")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.NotEmpty(t, token)
	assert.NotEqual(t, "s3cret", user.PasswordHash)

	// The freshly issued token resolves to the user.
	got := m.CurrentUser(WithToken(ctx, token))
	require.NotNil(t, got)
	assert.Equal(t, user.Id, got.Id)

	// A fresh login works with the right password only.
	_, _, err = m.Login(ctx, "jehad", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	logged, token2, err := m.Login(ctx, "jehad", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, user.Id, logged.Id)
	assert.NotEqual(t, token, token2)
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	m, _ := newManager()
	ctx := context.Background()

	_, _, err := m.Register(ctx, "jehad", "one")
	require.NoError(t, err)

	_, _, err = m.Register(ctx, "jehad", "two")
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestLoginUnknownUser(t *testing.T) {
	m, _ := newManager()

	_, _, err := m.Login(context.Background(), "ghost", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogoutInvalidatesToken(t *testing.T) {
	m, _ := newManager()
	ctx := context.Background()

	_, token, err := m.Register(ctx, "jehad", "s3cret")
	require.NoError(t, err)

	m.Logout(token)
	assert.Nil(t, m.CurrentUser(WithToken(ctx, token)))
}

func TestCurrentUserWithoutToken(t *testing.T) {
	m, _ := newManager()
	assert.Nil(t, m.CurrentUser(context.Background()))
}

func TestVerifyAdminCode(t *testing.T) {
	m, _ := newManager()

	os.Unsetenv("ADMIN_CODE")
	assert.False(t, m.VerifyAdminCode(""))
	assert.False(t, m.VerifyAdminCode("1234"))

	os.Setenv("ADMIN_CODE", "1234")
	defer os.Unsetenv("ADMIN_CODE")
	assert.True(t, m.VerifyAdminCode("1234"))
	assert.False(t, m.VerifyAdminCode("4321"))
}
