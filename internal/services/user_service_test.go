package services

import (
	"testing"

	"github.com/adminboard/backend-api/internal/database"
	"github.com/adminboard/backend-api/internal/models"
	"github.com/adminboard/backend-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserService_UpdatePhone(t *testing.T) {
	users := database.NewUserRepository(testutil.NewSQLiteDB(t))
	svc := NewUserService(users)
	ctx := t.Context()

	email := "ana@example.com"
	user := &models.User{Username: "ana", Email: &email, Provider: models.ProviderPassword, Role: models.RoleViewer}
	require.NoError(t, users.Create(ctx, user))

	updated, err := svc.UpdatePhone(ctx, user.ID, " +855 12-345-678 ")
	require.NoError(t, err)
	assert.Equal(t, "+855 12-345-678", *updated.PhoneNumber)

	me, err := svc.Me(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "+855 12-345-678", *me.PhoneNumber)

	_, err = svc.UpdatePhone(ctx, user.ID, "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.UpdatePhone(ctx, user.ID, "call me maybe")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.UpdatePhone(ctx, "missing", "+85512345678")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestValidPhone(t *testing.T) {
	assert.True(t, validPhone("+85512345678"))
	assert.True(t, validPhone("(012) 345-678"))
	assert.False(t, validPhone("12+345678"))
	assert.False(t, validPhone("1234"))
	assert.False(t, validPhone("+1 234 567 890 123 456 789 012 345 678"))
}
