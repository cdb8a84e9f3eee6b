// Package provider abstracts the external identity provider behind one
// capability: exchange authorization-callback data for a Principal. AuthSession
// never sees provider specifics, so alternate providers slot in without
// touching the gating logic.
package provider

import (
	"context"

	"warikan/internal/domain"
)

// Strategy is the pluggable identity-provider integration.
type Strategy interface {
	// AuthorizationURL builds the provider URL the login flow redirects to.
	// The state value is round-tripped and verified on callback.
	AuthorizationURL(state string) string
	// Exchange turns the callback's authorization code into a Principal
	// carrying the bearer token for the graph service.
	Exchange(ctx context.Context, code string) (domain.Principal, error)
}
