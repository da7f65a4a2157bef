package odata

import (
	"context"
	"net/url"

	"github.com/Lscheinman/odata/api/schemas"
)

// Page is one page of raw records plus the continuation link, if the service
// reported one. An empty NextLink means the result set is exhausted.
type Page struct {
	Records  []schemas.Record
	NextLink string
}

// Transport is the collaborator that actually talks HTTP. The core only needs
// these three calls; authentication, session refresh, TLS and retry all live
// behind this interface. Failures are reported as *UpstreamError.
type Transport interface {
	// FetchPage issues one page read for an entity set path within a service.
	FetchPage(ctx context.Context, service, resourcePath string, params url.Values) (*Page, error)

	// FollowLink fetches the page behind a continuation link returned by a
	// previous FetchPage or FollowLink call.
	FollowLink(ctx context.Context, link string) (*Page, error)

	// FetchSchemaDocument returns the raw schema ($metadata) document for a
	// service.
	FetchSchemaDocument(ctx context.Context, service string) (string, error)
}
