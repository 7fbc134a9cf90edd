package userctx

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workflowkit/engine/pkg/models"
)

const testSecret = "test-secret-key-minimum-32-chars!"

func forgeToken(t *testing.T, secret, userID string, roles []string, expiry time.Duration) string {
	t.Helper()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiry)),
		},
		UserID: userID,
		Roles:  roles,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

// --- Decoder ---

func TestDecoder_Decode_ShouldReturnClaims_WhenTokenIsValid(t *testing.T) {
	// Arrange
	d := NewDecoder(testSecret)
	token := forgeToken(t, testSecret, "user-1", []string{"editor"}, time.Hour)

	// Act
	claims, err := d.Decode(token)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, []string{"editor"}, claims.Roles)
}

func TestDecoder_Decode_ShouldReturnInvalidToken_WhenSecretIsEmpty(t *testing.T) {
	// Arrange
	d := NewDecoder("")
	token := forgeToken(t, testSecret, "user-1", nil, time.Hour)

	// Act
	claims, err := d.Decode(token)

	// Assert
	assert.Nil(t, claims)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestDecoder_Decode_ShouldReturnInvalidToken_WhenSignedWithDifferentSecret(t *testing.T) {
	// Arrange
	d := NewDecoder(testSecret)
	token := forgeToken(t, "a-completely-different-secret-32", "user-1", nil, time.Hour)

	// Act
	claims, err := d.Decode(token)

	// Assert
	assert.Nil(t, claims)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestDecoder_Decode_ShouldReturnInvalidToken_WhenTokenIsExpired(t *testing.T) {
	// Arrange
	d := NewDecoder(testSecret)
	token := forgeToken(t, testSecret, "user-1", nil, -time.Hour)

	// Act
	claims, err := d.Decode(token)

	// Assert
	assert.Nil(t, claims)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestDecoder_Decode_ShouldReturnInvalidToken_WhenTokenIsMalformed(t *testing.T) {
	// Arrange
	d := NewDecoder(testSecret)

	// Act
	claims, err := d.Decode("not-a-jwt")

	// Assert
	assert.Nil(t, claims)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

// --- PermissionChecker ---

type fakeWorkflowLookup struct {
	workflows map[string]*models.Workflow
}

func (f *fakeWorkflowLookup) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	wf, ok := f.workflows[id]
	if !ok {
		return nil, models.ErrWorkflowNotFound
	}
	return wf, nil
}

func newLookup(wf *models.Workflow) *fakeWorkflowLookup {
	return &fakeWorkflowLookup{workflows: map[string]*models.Workflow{wf.ID: wf}}
}

func TestPermissionChecker_HasWorkflowPermission_ShouldAllow_WhenIdentityIsCreator(t *testing.T) {
	// Arrange
	wf := &models.Workflow{ID: "wf-1", CreatedBy: "user-1"}
	checker := NewPermissionChecker(NewDecoder(testSecret), newLookup(wf))

	// Act
	ok, err := checker.HasWorkflowPermission(context.Background(), "wf-1", "user-1", "execute")

	// Assert
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPermissionChecker_HasWorkflowPermission_ShouldAllow_WhenBareUserIDIsAllowedUser(t *testing.T) {
	// Arrange
	wf := &models.Workflow{
		ID:        "wf-1",
		CreatedBy: "owner",
		Permissions: models.WorkflowPermissions{
			AllowedUsers: []string{"user-2"},
		},
	}
	checker := NewPermissionChecker(NewDecoder(testSecret), newLookup(wf))

	// Act
	ok, err := checker.HasWorkflowPermission(context.Background(), "wf-1", "user-2", "execute")

	// Assert
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPermissionChecker_HasWorkflowPermission_ShouldAllow_WhenJWTRoleIsAllowedRole(t *testing.T) {
	// Arrange
	wf := &models.Workflow{
		ID:        "wf-1",
		CreatedBy: "owner",
		Permissions: models.WorkflowPermissions{
			AllowedRoles: []string{"ops"},
		},
	}
	checker := NewPermissionChecker(NewDecoder(testSecret), newLookup(wf))
	token := forgeToken(t, testSecret, "user-3", []string{"ops"}, time.Hour)

	// Act
	ok, err := checker.HasWorkflowPermission(context.Background(), "wf-1", token, "execute")

	// Assert
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPermissionChecker_HasWorkflowPermission_ShouldDeny_WhenIdentityMatchesNothing(t *testing.T) {
	// Arrange
	wf := &models.Workflow{ID: "wf-1", CreatedBy: "owner"}
	checker := NewPermissionChecker(NewDecoder(testSecret), newLookup(wf))

	// Act
	ok, err := checker.HasWorkflowPermission(context.Background(), "wf-1", "stranger", "execute")

	// Assert
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPermissionChecker_HasWorkflowPermission_ShouldFallBackToBareUserID_WhenTokenDoesNotVerify(t *testing.T) {
	// Arrange: identity looks like a JWT but was signed with an unknown secret,
	// so it should be treated as an opaque user id instead of failing outright.
	wf := &models.Workflow{ID: "wf-1", CreatedBy: "owner"}
	checker := NewPermissionChecker(NewDecoder(testSecret), newLookup(wf))
	foreignToken := forgeToken(t, "some-other-services-secret-key-32", "owner", nil, time.Hour)

	// Act
	ok, err := checker.HasWorkflowPermission(context.Background(), "wf-1", foreignToken, "execute")

	// Assert
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPermissionChecker_HasWorkflowPermission_ShouldPropagateError_WhenWorkflowLookupFails(t *testing.T) {
	// Arrange
	checker := NewPermissionChecker(NewDecoder(testSecret), newLookup(&models.Workflow{ID: "wf-1"}))

	// Act
	ok, err := checker.HasWorkflowPermission(context.Background(), "missing-wf", "user-1", "execute")

	// Assert
	assert.False(t, ok)
	assert.ErrorIs(t, err, models.ErrWorkflowNotFound)
}
