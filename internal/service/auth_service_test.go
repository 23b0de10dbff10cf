package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/studyloop/lernplan-api/internal/dto"
	"github.com/studyloop/lernplan-api/internal/models"
	"github.com/studyloop/lernplan-api/pkg/config"
	appErrors "github.com/studyloop/lernplan-api/pkg/errors"
)

type stubUserFinder struct {
	user *models.User
}

func (s *stubUserFinder) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, sql.ErrNoRows
	}
	return s.user, nil
}

func (s *stubUserFinder) FindByID(_ context.Context, id string) (*models.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.user, nil
}

func newAuthService(t *testing.T, password string) (*AuthService, *models.User) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{
		ID:           "u-1",
		Email:        "jura@example.com",
		Name:         "Jura",
		PasswordHash: string(hash),
		IsActive:     true,
	}
	cfg := config.JWTConfig{Secret: "test_secret", Expiration: time.Hour}
	return NewAuthService(&stubUserFinder{user: user}, cfg, zap.NewNop()), user
}

func TestAuthServiceLoginAndValidate(t *testing.T) {
	svc, user := newAuthService(t, "geheim")

	resp, err := svc.Login(context.Background(), dto.LoginRequest{Email: user.Email, Password: "geheim"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, user.Email, claims.Email)
}

func TestAuthServiceRejectsBadCredentials(t *testing.T) {
	svc, user := newAuthService(t, "geheim")
	ctx := context.Background()

	_, err := svc.Login(ctx, dto.LoginRequest{Email: user.Email, Password: "falsch"})
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))

	_, err = svc.Login(ctx, dto.LoginRequest{Email: "wer@example.com", Password: "geheim"})
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))
}

func TestAuthServiceRejectsInactiveUser(t *testing.T) {
	svc, user := newAuthService(t, "geheim")
	user.IsActive = false

	_, err := svc.Login(context.Background(), dto.LoginRequest{Email: user.Email, Password: "geheim"})
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))
}

func TestAuthServiceRejectsTamperedToken(t *testing.T) {
	svc, user := newAuthService(t, "geheim")

	resp, err := svc.Login(context.Background(), dto.LoginRequest{Email: user.Email, Password: "geheim"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(resp.AccessToken + "x")
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))

	_, err = svc.ValidateToken("")
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}
