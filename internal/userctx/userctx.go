// Package userctx decodes the caller identity carried by
// ExecutionRequest.ExecutedBy for the Workflow Execution Engine's
// permission precheck (§6 "User Lookup" / "Permission Precheck"). This
// engine never issues tokens, only verifies ones minted by an external
// identity provider, grounded on the teacher's JWTService but narrowed to
// verification only.
package userctx

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/workflowkit/engine/pkg/models"
)

// ErrInvalidToken is returned when ExecutedBy does not parse as a token
// this service can verify.
var ErrInvalidToken = errors.New("userctx: invalid token")

// Claims is the subset of a caller's JWT this engine reads.
type Claims struct {
	jwt.RegisteredClaims
	UserID string   `json:"user_id"`
	Roles  []string `json:"roles"`
}

// Decoder verifies an HS256 JWT and extracts the caller's identity.
type Decoder struct {
	secret []byte
}

// NewDecoder builds a Decoder from a shared HMAC secret. An empty secret
// makes every token invalid, which is the correct default when no identity
// provider is configured — callers fall back to treating ExecutedBy as an
// opaque user id with no roles.
func NewDecoder(secret string) *Decoder {
	return &Decoder{secret: []byte(secret)}
}

// Decode verifies tokenString and returns its claims.
func (d *Decoder) Decode(tokenString string) (*Claims, error) {
	if len(d.secret) == 0 {
		return nil, ErrInvalidToken
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return d.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// WorkflowLookup resolves the workflow a permission check runs against.
type WorkflowLookup interface {
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
}

// PermissionChecker implements workflow.PermissionChecker: it decodes
// identity as a JWT when possible, falling back to treating it as a bare
// user id with no roles, then applies the same
// creator/AllowedUsers/AllowedRoles rule the validator uses when the engine
// has no permission checker.
type PermissionChecker struct {
	decoder   *Decoder
	workflows WorkflowLookup
}

// NewPermissionChecker builds a PermissionChecker.
func NewPermissionChecker(decoder *Decoder, workflows WorkflowLookup) *PermissionChecker {
	return &PermissionChecker{decoder: decoder, workflows: workflows}
}

// HasWorkflowPermission implements workflow.PermissionChecker.
func (c *PermissionChecker) HasWorkflowPermission(ctx context.Context, workflowID, identity, permission string) (bool, error) {
	wf, err := c.workflows.GetByID(ctx, workflowID)
	if err != nil {
		return false, err
	}

	userID, roles := identity, []string(nil)
	if claims, err := c.decoder.Decode(identity); err == nil {
		userID, roles = claims.UserID, claims.Roles
	}

	if userID != "" && wf.CreatedBy == userID {
		return true, nil
	}
	for _, u := range wf.Permissions.AllowedUsers {
		if u == userID {
			return true, nil
		}
	}
	for _, role := range roles {
		for _, allowed := range wf.Permissions.AllowedRoles {
			if role == allowed {
				return true, nil
			}
		}
	}
	return false, nil
}
