package identity_test

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketchat/backend/internal/identity"
	"marketchat/backend/internal/models"
)

const testSecret = "test-secret"

func TestManager_IssueAndVerify(t *testing.T) {
	m := identity.NewManager(testSecret, time.Hour, nil)
	user := &models.User{ID: "u1", DisplayName: "Alice", Role: models.RoleUser}

	token, err := m.Issue(user)
	require.NoError(t, err)

	id, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", id.UserID)
	assert.Equal(t, "Alice", id.DisplayName)
	assert.Equal(t, models.RoleUser, id.Role)
}

func TestManager_RejectsTamperedToken(t *testing.T) {
	m := identity.NewManager(testSecret, time.Hour, nil)
	token, err := m.Issue(&models.User{ID: "u1", DisplayName: "Alice"})
	require.NoError(t, err)

	_, err = m.Verify(token + "x")
	assert.ErrorIs(t, err, identity.ErrUnauthenticated)

	_, err = m.Verify("not-a-token")
	assert.ErrorIs(t, err, identity.ErrUnauthenticated)
}

func TestManager_RejectsWrongSecret(t *testing.T) {
	other := identity.NewManager("other-secret", time.Hour, nil)
	token, err := other.Issue(&models.User{ID: "u1"})
	require.NoError(t, err)

	m := identity.NewManager(testSecret, time.Hour, nil)
	_, err = m.Verify(token)
	assert.ErrorIs(t, err, identity.ErrUnauthenticated)
}

func TestManager_RejectsExpiredToken(t *testing.T) {
	m := identity.NewManager(testSecret, -time.Minute, nil)
	token, err := m.Issue(&models.User{ID: "u1"})
	require.NoError(t, err)

	verifier := identity.NewManager(testSecret, time.Hour, nil)
	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, identity.ErrUnauthenticated)
}

func TestManager_RejectsNoneAlgorithm(t *testing.T) {
	claims := jwt.MapClaims{"sub": "u1", "exp": time.Now().Add(time.Hour).Unix()}
	token := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	m := identity.NewManager(testSecret, time.Hour, nil)
	_, err = m.Verify(signed)
	assert.ErrorIs(t, err, identity.ErrUnauthenticated)
}

func TestManager_DefaultsMissingRole(t *testing.T) {
	m := identity.NewManager(testSecret, time.Hour, nil)
	token, err := m.Issue(&models.User{ID: "u1", DisplayName: "Alice"})
	require.NoError(t, err)

	id, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, id.Role)
}
