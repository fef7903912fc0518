package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"product_catalog/internal/apperr"
	"product_catalog/internal/model"
	"product_catalog/internal/repository"
	"product_catalog/internal/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key"

func newAuthService() AuthService {
	store := repository.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAuthService(store.Users(), utils.NewJWTUtil(testSecret, time.Hour), logger)
}

func register(t *testing.T, svc AuthService, email string) (*model.User, string) {
	t.Helper()
	user, token, err := svc.Register(context.Background(), model.RegisterRequest{
		Name: "Ann", Email: email, Password: "secret123",
	})
	require.NoError(t, err)
	return user, token
}

func principalOf(u *model.User) model.Principal {
	return model.Principal{ID: u.ID, Email: u.Email, Role: u.Role}
}

func TestAuthService_Register(t *testing.T) {
	svc := newAuthService()
	ctx := context.Background()

	user, token := register(t, svc, "ann@example.com")
	assert.Equal(t, model.RoleUser, user.Role)
	assert.NotEmpty(t, token)
	assert.NotEqual(t, "secret123", user.PasswordHash)

	_, _, err := svc.Register(ctx, model.RegisterRequest{Name: "Other", Email: "ann@example.com", Password: "secret123"})
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	admin, _, err := svc.Register(ctx, model.RegisterRequest{Name: "Root", Email: "root@example.com", Password: "secret123", Role: model.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, admin.Role)
}

func TestAuthService_RegisterValidation(t *testing.T) {
	svc := newAuthService()

	tests := []struct {
		name  string
		req   model.RegisterRequest
		field string
	}{
		{"short password", model.RegisterRequest{Name: "A", Email: "a@example.com", Password: "12345"}, "password"},
		{"bad email", model.RegisterRequest{Name: "A", Email: "nope", Password: "123456"}, "email"},
		{"blank name", model.RegisterRequest{Name: "  ", Email: "a@example.com", Password: "123456"}, "name"},
		{"unknown role", model.RegisterRequest{Name: "A", Email: "a@example.com", Password: "123456", Role: "root"}, "role"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Register(context.Background(), tt.req)
			e, ok := apperr.As(err)
			require.True(t, ok)
			assert.Equal(t, apperr.KindValidation, e.Kind)
			assert.Contains(t, e.Fields, tt.field)
		})
	}
}

func TestAuthService_Login(t *testing.T) {
	svc := newAuthService()
	ctx := context.Background()
	registered, _ := register(t, svc, "ann@example.com")

	user, token, err := svc.Login(ctx, "ann@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)

	principal, err := svc.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, principalOf(registered), principal)

	_, _, err = svc.Login(ctx, "ann@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "nobody@example.com", "secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_Authenticate_Failures(t *testing.T) {
	svc := newAuthService()
	ctx := context.Background()

	_, err := svc.Authenticate(ctx, "")
	assert.ErrorIs(t, err, ErrNoToken)

	_, err = svc.Authenticate(ctx, "not.a.token")
	assert.ErrorIs(t, err, ErrTokenMalformed)

	other := utils.NewJWTUtil("another-secret", time.Hour)
	forged, err := other.GenerateToken(utils.TokenSubject{UserID: uuid.NewString()})
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, forged)
	assert.ErrorIs(t, err, ErrTokenMalformed)

	expiredUtil := utils.NewJWTUtil(testSecret, -time.Minute)
	expired, err := expiredUtil.GenerateToken(utils.TokenSubject{UserID: uuid.NewString()})
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, expired)
	assert.ErrorIs(t, err, ErrTokenExpired)

	ghost, err := utils.NewJWTUtil(testSecret, time.Hour).GenerateToken(utils.TokenSubject{UserID: uuid.NewString()})
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, ghost)
	assert.ErrorIs(t, err, ErrPrincipalNotFound)

	notUUID, err := utils.NewJWTUtil(testSecret, time.Hour).GenerateToken(utils.TokenSubject{UserID: "42"})
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, notUUID)
	assert.ErrorIs(t, err, ErrTokenMalformed)

	for _, e := range []error{ErrNoToken, ErrTokenMalformed, ErrTokenExpired, ErrTokenRevoked, ErrPrincipalNotFound} {
		assert.Equal(t, apperr.KindAuthentication, apperr.KindOf(e))
	}
}

func TestAuthService_LogoutAllDevicesRevokesEarlierTokens(t *testing.T) {
	svc := newAuthService()
	ctx := context.Background()
	user, before := register(t, svc, "ann@example.com")

	_, err := svc.Authenticate(ctx, before)
	require.NoError(t, err)

	require.NoError(t, svc.LogoutAllDevices(ctx, principalOf(user)))

	_, err = svc.Authenticate(ctx, before)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	_, after, err := svc.Login(ctx, "ann@example.com", "secret123")
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, after)
	assert.NoError(t, err)
}

func TestAuthService_ChangePassword(t *testing.T) {
	svc := newAuthService()
	ctx := context.Background()
	user, before := register(t, svc, "ann@example.com")

	_, err := svc.ChangePassword(ctx, principalOf(user), "wrong", "newsecret")
	assert.ErrorIs(t, err, ErrIncorrectPassword)

	_, err = svc.ChangePassword(ctx, principalOf(user), "secret123", "123")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	fresh, err := svc.ChangePassword(ctx, principalOf(user), "secret123", "newsecret")
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, before)
	assert.ErrorIs(t, err, ErrTokenRevoked)
	_, err = svc.Authenticate(ctx, fresh)
	assert.NoError(t, err)

	_, _, err = svc.Login(ctx, "ann@example.com", "secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "ann@example.com", "newsecret")
	assert.NoError(t, err)
}

func TestAuthService_UpdateProfile(t *testing.T) {
	svc := newAuthService()
	ctx := context.Background()
	ann, annToken := register(t, svc, "ann@example.com")
	register(t, svc, "bob@example.com")

	updated, token, err := svc.UpdateProfile(ctx, principalOf(ann), model.UpdateProfileRequest{Name: ptr("Annie")})
	require.NoError(t, err)
	assert.Equal(t, "Annie", updated.Name)
	assert.Empty(t, token)

	_, _, err = svc.UpdateProfile(ctx, principalOf(ann), model.UpdateProfileRequest{Email: ptr("bob@example.com")})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, _, err = svc.UpdateProfile(ctx, principalOf(ann), model.UpdateProfileRequest{NewPassword: ptr("newsecret")})
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Contains(t, e.Fields, "currentPassword")

	_, _, err = svc.UpdateProfile(ctx, principalOf(ann), model.UpdateProfileRequest{
		CurrentPassword: ptr("wrong"), NewPassword: ptr("newsecret"),
	})
	assert.ErrorIs(t, err, ErrIncorrectPassword)

	_, token, err = svc.UpdateProfile(ctx, principalOf(ann), model.UpdateProfileRequest{
		CurrentPassword: ptr("secret123"), NewPassword: ptr("newsecret"),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	_, err = svc.Authenticate(ctx, annToken)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	profile, err := svc.GetProfile(ctx, principalOf(ann))
	require.NoError(t, err)
	assert.Equal(t, "Annie", profile.Name)
	assert.Equal(t, "ann@example.com", profile.Email)
}

func TestAuthService_GetProfile_Missing(t *testing.T) {
	svc := newAuthService()

	_, err := svc.GetProfile(context.Background(), model.Principal{ID: uuid.New()})
	assert.ErrorIs(t, err, ErrUserNotFound)
}
