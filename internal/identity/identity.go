package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/swiftbook-app/swiftbook/internal/types"
)

const (
	userIdClaim   = "user-id"
	tenantIdClaim = "tenant-id"
	roleClaim     = "role"
	expClaim      = "exp"
)

// Identity is the authenticated principal behind a request or connection.
type Identity struct {
	UserId   string
	TenantId string
	Role     types.Role
}

type contextKey string

const identityKey contextKey = "identity"

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

type Authenticator struct {
	signingKey []byte
	now        func() time.Time
}

func NewAuthenticator(signingKey []byte) *Authenticator {
	return &Authenticator{
		signingKey: signingKey,
		now:        time.Now,
	}
}

// Issue signs a credential for id that expires after ttl.
func (a *Authenticator) Issue(id Identity, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		userIdClaim:   id.UserId,
		tenantIdClaim: id.TenantId,
		roleClaim:     string(id.Role),
		expClaim:      a.now().Add(ttl).Unix(),
	})

	return token.SignedString(a.signingKey)
}

// Authenticate decodes credential into an Identity. It performs no I/O.
func (a *Authenticator) Authenticate(credential string) (Identity, error) {
	if credential == "" {
		return Identity{}, types.ErrUnauthenticated
	}

	token, err := jwt.Parse(credential, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.signingKey, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("parse token: %w: %w", types.ErrInvalidCredential, err)
	}

	if !token.Valid {
		return Identity{}, types.ErrInvalidCredential
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, fmt.Errorf("invalid token claims: %w", types.ErrInvalidCredential)
	}

	// v3 treats a missing exp as valid
	if _, ok := claims[expClaim]; !ok {
		return Identity{}, fmt.Errorf("missing exp claim: %w", types.ErrInvalidCredential)
	}

	userId, _ := claims[userIdClaim].(string)
	tenantId, _ := claims[tenantIdClaim].(string)
	role, _ := claims[roleClaim].(string)
	if userId == "" || tenantId == "" {
		return Identity{}, fmt.Errorf("missing subject claims: %w", types.ErrInvalidCredential)
	}

	if !types.Role(role).Valid() {
		return Identity{}, fmt.Errorf("invalid role claim %q: %w", role, types.ErrInvalidCredential)
	}

	return Identity{
		UserId:   userId,
		TenantId: tenantId,
		Role:     types.Role(role),
	}, nil
}

// IsUnauthorized reports whether err should be answered with 401.
func IsUnauthorized(err error) bool {
	return errors.Is(err, types.ErrUnauthenticated) || errors.Is(err, types.ErrInvalidCredential)
}
