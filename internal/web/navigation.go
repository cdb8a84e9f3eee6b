// Package web is the route loader tree: nested URL segments, each with a
// loader that runs parent-to-child during one navigation. A parent loader
// fetches the group aggregate once; child loaders look ids up inside it
// instead of calling the graph service again. Ancestor results travel in an
// explicit NavContext threaded through the chain, never in shared state.
package web

import (
	"context"
	"net/http"

	"warikan/internal/domain"
	"warikan/internal/graph"
	"warikan/internal/graph/client"
)

// NavContext carries one navigation's resolved loader results. It is created
// per request and discarded with it; a fresh navigation starts empty and runs
// every loader in its chain again.
type NavContext struct {
	Principal domain.Principal
	Groups    []graph.GroupSummary
	Group     *domain.Group
	Payment   *domain.Payment

	gateway client.Gateway
}

// Gateway is bound by the session gate loader; loaders that run after the
// gate use it for their fetches.
func (n *NavContext) Gateway() client.Gateway {
	return n.gateway
}

// Loader resolves one route segment's data into the NavContext. It may
// instead abort the navigation with a redirect, or fail with a coded error
// (not-found, gateway failure). Loaders run in declaration order; the first
// redirect or error short-circuits everything below it.
type Loader func(ctx context.Context, r *http.Request, nav *NavContext) (*redirect, error)

type redirect struct {
	location string
}

func redirectTo(location string) (*redirect, error) {
	return &redirect{location: location}, nil
}
