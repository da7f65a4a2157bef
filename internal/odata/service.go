package odata

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/Lscheinman/odata/api/schemas"
	"go.uber.org/zap"
)

// Limits bounds paging behavior. Zero values disable the corresponding bound.
type Limits struct {
	DefaultPageSize int // $top applied when a request sets none
	MaxPageSize     int // hard cap on $top
	DefaultMaxPages int // continuation pages followed when a request sets none
	MaxPagesCap     int // hard cap on pages followed
}

// Request describes one query against an entity set. Filter, OrderBy and
// Expand are passed through as raw protocol expressions; this layer does not
// provide a query language.
type Request struct {
	EntitySet      string
	Fields         []string
	Filter         string
	OrderBy        string
	Top            int
	Skip           int
	Expand         string
	MaxPages       int
	ValidateFields bool
	ExtraParams    map[string]string
}

// Result is the outcome of a Query. Truncated means the page bound was
// reached while the service still advertised a continuation link; the records
// returned up to that point are valid but incomplete.
type Result struct {
	Records       []schemas.Record
	Pages         int
	Truncated     bool
	UnknownFields []string
}

// Engine executes queries against one service through the transport
// collaborator. Page fetches are strictly sequential (each depends on the
// previous continuation link) and are never retried here; retry policy
// belongs to the transport.
type Engine struct {
	transport Transport
	schema    *SchemaCache
	service   string
	limits    Limits
	log       *zap.Logger
}

// NewEngine creates a query engine scoped to a single service.
func NewEngine(transport Transport, schema *SchemaCache, service string, limits Limits, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		transport: transport,
		schema:    schema,
		service:   service,
		limits:    limits,
		log:       logger.Named("engine").With(zap.String("service", service)),
	}
}

// Service returns the service name this engine is bound to.
func (e *Engine) Service() string { return e.service }

// EscapeLiteral escapes a string value for use inside a filter expression.
func EscapeLiteral(v string) string {
	return strings.ReplaceAll(v, "'", "''")
}

// Query builds protocol parameters from the request, fetches the first page
// and follows continuation links up to the page bound, concatenating records.
func (e *Engine) Query(ctx context.Context, req Request) (*Result, error) {
	if req.EntitySet == "" {
		return nil, fmt.Errorf("entity set is required")
	}

	res := &Result{}
	params, err := e.buildParams(ctx, req, res)
	if err != nil {
		return nil, err
	}

	maxPages := e.resolveMaxPages(req.MaxPages)

	page, err := e.transport.FetchPage(ctx, e.service, req.EntitySet, params)
	if err != nil {
		return nil, err
	}
	res.Records = append(res.Records, page.Records...)
	res.Pages = 1

	// Services have been seen re-issuing a continuation link they already
	// served; the seen-set stops that from looping forever.
	seen := map[string]struct{}{}
	next := page.NextLink
	for next != "" {
		// A repeated link means the service has nothing new to serve, so it
		// must not count as truncation even when the page bound is exhausted.
		if _, dup := seen[next]; dup {
			break
		}
		if maxPages > 0 && res.Pages >= maxPages {
			res.Truncated = true
			e.log.Warn("Page bound reached before continuation ended",
				zap.String("entity_set", req.EntitySet),
				zap.Int("pages", res.Pages),
				zap.Int("records", len(res.Records)))
			break
		}
		seen[next] = struct{}{}

		page, err = e.transport.FollowLink(ctx, next)
		if err != nil {
			return nil, err
		}
		res.Records = append(res.Records, page.Records...)
		res.Pages++
		next = page.NextLink
	}

	e.log.Debug("Query completed",
		zap.String("entity_set", req.EntitySet),
		zap.Int("records", len(res.Records)),
		zap.Int("pages", res.Pages),
		zap.Bool("truncated", res.Truncated))
	return res, nil
}

// ReadByKey fetches exactly one record keyed by its natural identifier.
func (e *Engine) ReadByKey(ctx context.Context, entitySet, keyField, key string) (schemas.Record, error) {
	params := url.Values{}
	params.Set("$filter", fmt.Sprintf("%s eq '%s'", keyField, EscapeLiteral(key)))
	params.Set("$top", "1")

	page, err := e.transport.FetchPage(ctx, e.service, entitySet, params)
	if err != nil {
		return nil, err
	}
	if len(page.Records) == 0 {
		return nil, &NotFoundError{Resource: entitySet, Key: key}
	}
	return page.Records[0], nil
}

// ListEntitySets returns the entity sets declared by the service schema.
func (e *Engine) ListEntitySets(ctx context.Context) ([]string, error) {
	schema, err := e.schema.Schema(ctx, e.service)
	if err != nil {
		return nil, err
	}
	return schema.EntitySets(), nil
}

// ListFields returns the declared fields of an entity set.
func (e *Engine) ListFields(ctx context.Context, entitySet string) ([]string, error) {
	schema, err := e.schema.Schema(ctx, e.service)
	if err != nil {
		return nil, err
	}
	return schema.Properties(entitySet), nil
}

func (e *Engine) buildParams(ctx context.Context, req Request, res *Result) (url.Values, error) {
	params := url.Values{}
	for k, v := range req.ExtraParams {
		params.Set(k, v)
	}

	if len(req.Fields) > 0 {
		fields := req.Fields
		if req.ValidateFields {
			valid, unknown, err := e.schema.ValidateFields(ctx, e.service, req.EntitySet, req.Fields)
			if err != nil {
				return nil, err
			}
			if len(unknown) > 0 {
				e.log.Warn("Dropping fields unknown to the schema",
					zap.String("entity_set", req.EntitySet),
					zap.Strings("unknown", unknown))
			}
			fields = valid
			res.UnknownFields = unknown
		}
		if len(fields) > 0 {
			params.Set("$select", joinCSV(fields))
		}
	}

	if req.Filter != "" {
		params.Set("$filter", req.Filter)
	}
	if req.OrderBy != "" {
		params.Set("$orderby", req.OrderBy)
	}
	if req.Expand != "" {
		params.Set("$expand", req.Expand)
	}

	top := req.Top
	if top <= 0 {
		top = e.limits.DefaultPageSize
	}
	if e.limits.MaxPageSize > 0 && top > e.limits.MaxPageSize {
		top = e.limits.MaxPageSize
	}
	if top > 0 {
		params.Set("$top", strconv.Itoa(top))
	}
	if req.Skip > 0 {
		params.Set("$skip", strconv.Itoa(req.Skip))
	}

	return params, nil
}

func (e *Engine) resolveMaxPages(requested int) int {
	pages := requested
	if pages <= 0 {
		pages = e.limits.DefaultMaxPages
	}
	if e.limits.MaxPagesCap > 0 && pages > e.limits.MaxPagesCap {
		pages = e.limits.MaxPagesCap
	}
	return pages
}

func joinCSV(items []string) string {
	kept := make([]string, 0, len(items))
	for _, s := range items {
		if t := strings.TrimSpace(s); t != "" {
			kept = append(kept, t)
		}
	}
	return strings.Join(kept, ",")
}
