package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/cvm-platform/cvm-admin-api/internal/models"
	appErrors "github.com/cvm-platform/cvm-admin-api/pkg/errors"
)

type userRepoStub struct {
	users   map[string]*models.User
	tokens  map[string]*models.RefreshToken
	revoked []string
}

func newUserRepoStub(users ...*models.User) *userRepoStub {
	s := &userRepoStub{users: map[string]*models.User{}, tokens: map[string]*models.RefreshToken{}}
	for _, u := range users {
		s.users[u.Email] = u
	}
	return s
}

func (s *userRepoStub) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := s.users[email]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (s *userRepoStub) FindByID(ctx context.Context, id int64) (*models.User, error) {
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *userRepoStub) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	return nil
}

func (s *userRepoStub) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	s.tokens[token.Token] = token
	return nil
}

func (s *userRepoStub) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if t, ok := s.tokens[token]; ok {
		return t, nil
	}
	return nil, sql.ErrNoRows
}

func (s *userRepoStub) RevokeRefreshToken(ctx context.Context, id string, at time.Time) error {
	for _, t := range s.tokens {
		if t.ID == id {
			revokedAt := at
			t.RevokedAt = &revokedAt
		}
	}
	s.revoked = append(s.revoked, id)
	return nil
}

func (s *userRepoStub) RevokeUserRefreshTokens(ctx context.Context, userID int64, at time.Time) error {
	return nil
}

func testAuthConfig() AuthConfig {
	return AuthConfig{
		Secret:        "test-secret",
		AccessExpiry:  15 * time.Minute,
		RefreshExpiry: 24 * time.Hour,
		Issuer:        "cvm-admin-api",
	}
}

func activeUser(t *testing.T) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret!"), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.User{
		ID:           7,
		Email:        "marketer@example.com",
		PasswordHash: string(hash),
		FullName:     "Test Marketer",
		Role:         models.RoleMarketer,
		Active:       true,
	}
}

func TestAuthServiceLogin(t *testing.T) {
	repo := newUserRepoStub(activeUser(t))
	svc := NewAuthService(repo, nil, nil, nil, testAuthConfig())

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "marketer@example.com",
		Password: "s3cret!",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, int64(7), resp.User.ID)

	claims, err := svc.ParseToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.Equal(t, models.RoleMarketer, claims.Role)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	repo := newUserRepoStub(activeUser(t))
	svc := NewAuthService(repo, nil, nil, nil, testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "marketer@example.com",
		Password: "wrong",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	user := activeUser(t)
	user.Active = false
	svc := NewAuthService(newUserRepoStub(user), nil, nil, nil, testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "marketer@example.com",
		Password: "s3cret!",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRefreshRotatesToken(t *testing.T) {
	repo := newUserRepoStub(activeUser(t))
	svc := NewAuthService(repo, nil, nil, nil, testAuthConfig())

	login, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "marketer@example.com",
		Password: "s3cret!",
	})
	require.NoError(t, err)

	refreshed, err := svc.Refresh(context.Background(), models.RefreshRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// the used token is revoked and cannot be replayed
	_, err = svc.Refresh(context.Background(), models.RefreshRequest{RefreshToken: login.RefreshToken})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLogout(t *testing.T) {
	repo := newUserRepoStub(activeUser(t))
	svc := NewAuthService(repo, nil, nil, nil, testAuthConfig())

	login, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "marketer@example.com",
		Password: "s3cret!",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), 7, login.RefreshToken))
	assert.Error(t, svc.Logout(context.Background(), 99, login.RefreshToken))
}

func TestAuthServiceParseTokenRejectsTampered(t *testing.T) {
	svc := NewAuthService(newUserRepoStub(), nil, nil, nil, testAuthConfig())

	_, err := svc.ParseToken("not.a.token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
