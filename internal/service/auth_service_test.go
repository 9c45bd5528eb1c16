package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/placement-attendance-api/internal/models"
	appErrors "github.com/noah-isme/placement-attendance-api/pkg/errors"
)

func newTestAuthService() *AuthService {
	return NewAuthService(nil, zap.NewNop(), AuthConfig{
		AccessTokenSecret: "secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "placement",
		Audience:          []string{"attendance"},
	})
}

func TestAuthServiceIssueAndValidate(t *testing.T) {
	svc := newTestAuthService()
	token, expiresAt, err := svc.Issue(Identity{UserID: "stu-1", Role: models.RoleStudent, Email: "stu@example.edu"}, 0)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "stu-1", claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
}

func TestAuthServiceRejectsForeignTokens(t *testing.T) {
	svc := newTestAuthService()
	other := NewAuthService(nil, nil, AuthConfig{AccessTokenSecret: "other", Issuer: "placement", Audience: []string{"attendance"}})
	token, _, err := other.Issue(Identity{UserID: "adm-1", Role: models.RoleAdmin}, time.Minute)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestAuthServiceRejectsExpiredAndWrongAudience(t *testing.T) {
	svc := newTestAuthService()
	claims := &models.JWTClaims{
		UserID: "stu-1",
		Role:   models.RoleStudent,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "placement",
			Audience:  []string{"attendance"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = svc.ValidateToken(expired)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Minute))
	claims.Audience = []string{"elsewhere"}
	wrongAud, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = svc.ValidateToken(wrongAud)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestAuthServiceIssueValidatesIdentity(t *testing.T) {
	svc := newTestAuthService()
	_, _, err := svc.Issue(Identity{UserID: "x", Role: "TEACHER"}, time.Minute)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
