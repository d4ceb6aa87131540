package services

import (
	"context"
	"testing"

	"github.com/coffeepula/pos-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUserAndAuthenticate(t *testing.T) {
	users := NewUserService(setupTestDB(t))
	ctx := context.Background()

	user, err := users.CreateUser(ctx, UserInput{
		Email:    " Barista@Coffeepula.Local ",
		Name:     "Barista",
		Role:     models.RoleCashier,
		Password: "steamed-milk",
	})
	require.NoError(t, err)
	assert.Equal(t, "barista@coffeepula.local", user.Email)
	assert.NotEqual(t, "steamed-milk", user.Password)

	authed, err := users.Authenticate(ctx, "BARISTA@coffeepula.local", "steamed-milk")
	require.NoError(t, err)
	assert.Equal(t, user.ID, authed.ID)

	_, err = users.Authenticate(ctx, "barista@coffeepula.local", "wrong-password")
	var validation *ValidationError
	assert.ErrorAs(t, err, &validation)

	_, err = users.Authenticate(ctx, "nobody@coffeepula.local", "steamed-milk")
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestCreateUserValidation(t *testing.T) {
	users := NewUserService(setupTestDB(t))
	ctx := context.Background()
	_, err := users.CreateUser(ctx, UserInput{Email: "owner@coffeepula.local", Name: "Owner", Role: models.RoleManager, Password: "long-enough"})
	require.NoError(t, err)

	tests := []struct {
		name  string
		input UserInput
		field string
	}{
		{"bad email", UserInput{Email: "not-an-email", Name: "X", Role: models.RoleCashier, Password: "long-enough"}, "email"},
		{"unknown role", UserInput{Email: "x@coffeepula.local", Name: "X", Role: "admin", Password: "long-enough"}, "role"},
		{"short password", UserInput{Email: "x@coffeepula.local", Name: "X", Role: models.RoleCashier, Password: "short"}, "password"},
		{"duplicate email", UserInput{Email: "OWNER@coffeepula.local", Name: "X", Role: models.RoleCashier, Password: "long-enough"}, "email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := users.CreateUser(ctx, tt.input)
			var validation *ValidationError
			require.ErrorAs(t, err, &validation)
			assert.Equal(t, tt.field, validation.Field)
		})
	}
}

func TestClientLifecycle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	users := NewUserService(db)
	clients := NewClientService(db)

	cashier, err := users.CreateUser(ctx, UserInput{Email: "till@coffeepula.local", Name: "Till", Role: models.RoleCashier, Password: "long-enough"})
	require.NoError(t, err)

	client, secret, err := clients.CreateClient(ctx, cashier.ID, ClientInput{Name: "Front till"})
	require.NoError(t, err)
	assert.Len(t, secret, 64)
	assert.NotEqual(t, secret, client.Secret)
	assert.True(t, client.VerifyPassword(secret))
	assert.Equal(t, models.RoleCashier, client.Scopes)

	owned, err := clients.GetClientsByUserID(ctx, cashier.ID)
	require.NoError(t, err)
	assert.Len(t, owned, 1)

	var notFound *NotFoundError
	assert.ErrorAs(t, clients.DeleteClient(ctx, client.ID, cashier.ID+1), &notFound)
	require.NoError(t, clients.DeleteClient(ctx, client.ID, cashier.ID))
	_, err = clients.GetClientByID(ctx, client.ID)
	assert.ErrorAs(t, err, &notFound)

	_, _, err = clients.CreateClient(ctx, 999, ClientInput{Name: "Ghost"})
	assert.ErrorAs(t, err, &notFound)
}
