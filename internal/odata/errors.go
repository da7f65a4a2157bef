package odata

import (
	"fmt"
	"strings"
)

// Error taxonomy for the query core. Everything here aborts the operation it
// occurred in and surfaces to the caller unchanged; truncation is deliberately
// not an error (see Result.Truncated).

// UpstreamError reports a non-success response from the remote service. The
// transport raises it and the core passes it through without retrying.
type UpstreamError struct {
	Status  int
	URL     string
	Message string
}

func (e *UpstreamError) Error() string {
	msg := e.Message
	if len(msg) > 1200 {
		msg = msg[:1200]
	}
	return fmt.Sprintf("upstream error %d for %s: %s", e.Status, e.URL, msg)
}

// SchemaUnavailableError means the schema document for a service could not be
// fetched or parsed. Queries can still proceed with field validation skipped;
// that escape hatch exists for draft-enabled entities whose metadata is
// unusable without special handling.
type SchemaUnavailableError struct {
	Service string
	Err     error
}

func (e *SchemaUnavailableError) Error() string {
	return fmt.Sprintf("schema unavailable for service %q: %v", e.Service, e.Err)
}

func (e *SchemaUnavailableError) Unwrap() error { return e.Err }

// NotFoundError reports that a requested identifier does not exist in the
// record set or on the service.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with id '%s' not found", e.Resource, e.Key)
}

// AmbiguousHierarchyError reports a cycle discovered while walking ancestor
// pointers. Unlike a cycle met during downward tree expansion, a cyclic
// ancestor chain means the source data is corrupt, so it is surfaced instead
// of being silently truncated.
type AmbiguousHierarchyError struct {
	NodeID      string
	ParentField string
	Cycle       []string
}

func (e *AmbiguousHierarchyError) Error() string {
	return fmt.Sprintf("ancestor cycle detected for '%s' via %s: %s",
		e.NodeID, e.ParentField, strings.Join(e.Cycle, " -> "))
}
