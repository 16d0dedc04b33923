package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/waste-contracts/internal/model"
)

func sign(t *testing.T, secret string, claims AccessClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func Test_Parse_ValidToken(t *testing.T) {
	userID, orgID := uuid.New(), uuid.New()
	token := sign(t, "secret", AccessClaims{
		OrgID: orgID.String(),
		Role:  "kgu_admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	principal, err := NewParser("secret").Parse(token)

	require.NoError(t, err)
	assert.Equal(t, userID, principal.UserID)
	assert.Equal(t, orgID, principal.OrgID)
	assert.Equal(t, model.UserRoleKguAdmin, principal.Role)
}

func Test_Parse_Rejects(t *testing.T) {
	valid := jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	expired := jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}

	cases := map[string]string{
		"empty":        "",
		"garbage":      "not-a-token",
		"wrong secret": sign(t, "other", AccessClaims{Role: "OPERATOR", RegisteredClaims: valid}),
		"expired":      sign(t, "secret", AccessClaims{Role: "OPERATOR", RegisteredClaims: expired}),
		"bad subject": sign(t, "secret", AccessClaims{Role: "OPERATOR", RegisteredClaims: jwt.RegisteredClaims{
			Subject: "user-1",
		}}),
		"bad org": sign(t, "secret", AccessClaims{OrgID: "org-1", Role: "OPERATOR", RegisteredClaims: valid}),
	}

	parser := NewParser("secret")
	for name, token := range cases {
		_, err := parser.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken, name)
	}
}
