package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telemed-server/internal/apperrors"
	"telemed-server/internal/config"
	"telemed-server/internal/models"
	"telemed-server/internal/store"
)

func newAuthService() (*AuthService, *store.MemoryStore) {
	st := store.NewMemoryStore()
	cfg := &config.Config{
		JWTSecret:                 "access-secret",
		JWTRefreshSecret:          "refresh-secret",
		JWTExpirationMinutes:      15,
		JWTRefreshExpirationHours: 24,
	}
	return NewAuthService(st, cfg, nopLogger()), st
}

func TestRegister(t *testing.T) {
	svc, _ := newAuthService()
	ctx := context.Background()

	patient, err := svc.Register(ctx, RegisterInput{FirstName: "Pat", Email: "  Pat@Example.com ", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, "pat@example.com", patient.Email)
	assert.Equal(t, models.RolePatient, patient.Role)
	assert.Equal(t, models.UserStatusActive, patient.Status)
	assert.NotEqual(t, "secret123", patient.Password)

	doctor, err := svc.Register(ctx, RegisterInput{FirstName: "Doc", Email: "doc@example.com", Password: "secret123", Role: "DOCTOR"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleDoctor, doctor.Role)
	assert.Equal(t, models.UserStatusPending, doctor.Status)

	_, err = svc.Register(ctx, RegisterInput{Email: "pat@example.com", Password: "other"})
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))

	_, err = svc.Register(ctx, RegisterInput{Email: "x@example.com", Password: "secret123", Role: "nurse"})
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
}

func TestLogin(t *testing.T) {
	svc, st := newAuthService()
	ctx := context.Background()
	user, err := svc.Register(ctx, RegisterInput{FirstName: "Pat", Email: "pat@example.com", Password: "secret123"})
	require.NoError(t, err)

	session, err := svc.Login(ctx, "PAT@example.com", "secret123")
	require.NoError(t, err)
	assert.NotEmpty(t, session.AccessToken)
	assert.NotEmpty(t, session.RefreshToken)
	assert.Equal(t, user.ID, session.User.ID)

	_, err = svc.Login(ctx, "pat@example.com", "wrong")
	assert.True(t, apperrors.Is(err, apperrors.KindUnauthorized))
	_, err = svc.Login(ctx, "nobody@example.com", "secret123")
	assert.True(t, apperrors.Is(err, apperrors.KindUnauthorized))

	user.Status = models.UserStatusBlocked
	require.NoError(t, st.SaveUser(ctx, user))
	_, err = svc.Login(ctx, "pat@example.com", "secret123")
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))
}

func TestRefreshRotatesToken(t *testing.T) {
	svc, _ := newAuthService()
	ctx := context.Background()
	_, err := svc.Register(ctx, RegisterInput{Email: "pat@example.com", Password: "secret123"})
	require.NoError(t, err)
	session, err := svc.Login(ctx, "pat@example.com", "secret123")
	require.NoError(t, err)

	rotated, err := svc.Refresh(ctx, session.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, session.RefreshToken, rotated.RefreshToken)

	_, err = svc.Refresh(ctx, session.RefreshToken)
	assert.True(t, apperrors.Is(err, apperrors.KindUnauthorized))

	_, err = svc.Refresh(ctx, "not-a-token")
	assert.True(t, apperrors.Is(err, apperrors.KindUnauthorized))

	_, err = svc.Refresh(ctx, rotated.AccessToken)
	assert.True(t, apperrors.Is(err, apperrors.KindUnauthorized))
}

func TestLogoutIsIdempotent(t *testing.T) {
	svc, _ := newAuthService()
	ctx := context.Background()
	_, err := svc.Register(ctx, RegisterInput{Email: "pat@example.com", Password: "secret123"})
	require.NoError(t, err)
	session, err := svc.Login(ctx, "pat@example.com", "secret123")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, session.RefreshToken))
	require.NoError(t, svc.Logout(ctx, session.RefreshToken))
	require.NoError(t, svc.Logout(ctx, "unknown"))

	_, err = svc.Refresh(ctx, session.RefreshToken)
	assert.True(t, apperrors.Is(err, apperrors.KindUnauthorized))
}
