package auth

import (
	"context"

	domainErrors "github.com/gavelworks/auction-settlement-service/internal/domain/errors"
)

type Role string

const (
	// RoleIndividual sellers can list items but not buy.
	RoleIndividual Role = "individual"
	// RoleProfessional accounts are buyer-capable.
	RoleProfessional Role = "professional"
	RoleAdmin        Role = "admin"
)

// Identity is the resolved caller attached to every request. Token issuance
// and validation happen upstream; by the time a request reaches this service
// the identity is already trusted.
type Identity struct {
	ID   string
	Role Role
}

func (i Identity) CanBuy() bool {
	return i.Role == RoleProfessional || i.Role == RoleAdmin
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

type contextKey struct{}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, identity)
}

func FromContext(ctx context.Context) (Identity, error) {
	identity, ok := ctx.Value(contextKey{}).(Identity)
	if !ok || identity.ID == "" {
		return Identity{}, domainErrors.ErrUnauthorized
	}
	return identity, nil
}

func ValidRole(role string) bool {
	switch Role(role) {
	case RoleIndividual, RoleProfessional, RoleAdmin:
		return true
	default:
		return false
	}
}
