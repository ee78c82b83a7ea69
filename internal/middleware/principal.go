package middleware

import (
	"context"

	"github.com/baharkarakas/betsave-core/internal/auth"
	"github.com/baharkarakas/betsave-core/internal/models"
)

type partnerKey struct{}
type claimsKey struct{}

// WithPartner attaches the verified partner identity.
func WithPartner(ctx context.Context, p models.PartnerIdentity) context.Context {
	return context.WithValue(ctx, partnerKey{}, p)
}

func PartnerFrom(ctx context.Context) (models.PartnerIdentity, bool) {
	p, ok := ctx.Value(partnerKey{}).(models.PartnerIdentity)
	return p, ok
}

func WithClaims(ctx context.Context, c *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

func GetClaims(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*auth.Claims)
	return c, ok && c != nil
}
