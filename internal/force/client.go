package force

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Lscheinman/odata/api/schemas"
	"github.com/Lscheinman/odata/internal/odata"
	"go.uber.org/zap"
)

const (
	defaultChunkSize = 25
	edgePageSize     = 5000
)

// Client is the high-level force-element API. It drives the two query
// engines (org service and network-graph service) to fetch records and edges
// from the remote side, then hands the flat results to the in-memory builders
// in this package.
type Client struct {
	elements  *odata.Engine // DFS_FE_FRCELMNTORG_SRV
	network   *odata.Engine // DFS_FE_FRCELMNTORGNTWKGRAPH_SRV
	parents   map[string]string
	chunkSize int
	log       *zap.Logger

	hierarchy *Hierarchy
	graphs    *GraphBuilder
	readiness *Aggregator
}

// ClientOptions tunes a Client. Zero values fall back to defaults.
type ClientOptions struct {
	ParentFields    map[string]string
	ReadinessFields ReadinessFields
	ChunkSize       int
}

// NewClient wires a force-element client over the two service engines.
func NewClient(elements, network *odata.Engine, opts ClientOptions, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	parents := opts.ParentFields
	if len(parents) == 0 {
		parents = DefaultParentFields()
	}
	rf := opts.ReadinessFields
	if rf == (ReadinessFields{}) {
		rf = DefaultReadinessFields()
	}
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}

	log := logger.Named("force")
	return &Client{
		elements:  elements,
		network:   network,
		parents:   parents,
		chunkSize: chunkSize,
		log:       log,
		hierarchy: NewHierarchy(FieldID, log),
		graphs:    NewGraphBuilder(FieldID, log),
		readiness: NewAggregator(FieldID, rf, log),
	}
}

// ParentField resolves a hierarchy type name to its parent-pointer field.
func (c *Client) ParentField(hierarchyType string) (string, error) {
	field, ok := c.parents[strings.ToLower(strings.TrimSpace(hierarchyType))]
	if !ok {
		return "", fmt.Errorf("unknown hierarchy type %q", hierarchyType)
	}
	return field, nil
}

// Hierarchy exposes the tree builder for callers that already hold records.
func (c *Client) Hierarchy() *Hierarchy { return c.hierarchy }

// Graphs exposes the graph builder.
func (c *Client) Graphs() *GraphBuilder { return c.graphs }

// Aggregator exposes the readiness aggregator.
func (c *Client) Aggregator() *Aggregator { return c.readiness }

// Element reads a single force element by its identifier. The read carries
// the active-entity guard so the draft variant never shadows the stable
// record.
func (c *Client) Element(ctx context.Context, id string) (schemas.Record, error) {
	id = strings.TrimSpace(id)
	res, err := c.elements.Query(ctx, odata.Request{
		EntitySet: SetForceElementTP,
		Filter:    fmt.Sprintf("%s eq '%s' and %s", FieldID, odata.EscapeLiteral(id), activeEntityFilter),
		Top:       1,
	})
	if err != nil {
		return nil, err
	}
	if len(res.Records) == 0 {
		return nil, &odata.NotFoundError{Resource: SetForceElementTP, Key: id}
	}
	return res.Records[0], nil
}

// FetchEdges walks the relationship network outward from rootID with a
// frontier BFS, up to depth hops, returning deduplicated edges of every
// relationship type. Each frontier level is fetched in chunked OR-filter
// queries against the graph service.
func (c *Client) FetchEdges(ctx context.Context, rootID string, depth int) ([]schemas.GraphEdge, error) {
	rootID = strings.TrimSpace(rootID)

	discovered := map[string]struct{}{rootID: {}}
	frontier := []string{rootID}

	edgeSeen := make(map[schemas.GraphEdge]struct{})
	var edges []schemas.GraphEdge

	for level := 0; level < depth && len(frontier) > 0; level++ {
		var next []string
		for _, batch := range chunk(frontier, c.chunkSize) {
			res, err := c.network.Query(ctx, odata.Request{
				EntitySet: SetGraphEdge,
				Fields:    []string{FieldEdgeSource, FieldEdgeTarget, FieldEdgeRel},
				Filter:    orFilter(FieldEdgeSource, batch),
				Top:       edgePageSize,
			})
			if err != nil {
				return nil, fmt.Errorf("fetching edges for level %d: %w", level, err)
			}
			if res.Truncated {
				c.log.Warn("Edge query truncated by page bound",
					zap.String("root", rootID),
					zap.Int("level", level))
			}

			for _, rec := range res.Records {
				src := rec.String(FieldEdgeSource)
				dst := rec.String(FieldEdgeTarget)
				if src == "" || dst == "" {
					continue
				}
				edge := schemas.GraphEdge{Source: src, Target: dst, Rel: rec.String(FieldEdgeRel)}
				if _, dup := edgeSeen[edge]; !dup {
					edgeSeen[edge] = struct{}{}
					edges = append(edges, edge)
				}
				if _, ok := discovered[dst]; !ok {
					discovered[dst] = struct{}{}
					next = append(next, dst)
				}
			}
		}
		frontier = next
	}

	c.log.Info("Edge fetch completed",
		zap.String("root", rootID),
		zap.Int("depth", depth),
		zap.Int("edges", len(edges)))
	return edges, nil
}

// FetchNodes bulk-reads the base fields (identifier, name and every parent
// pointer) for a set of element IDs. A failed batch is logged and skipped so
// one bad chunk does not sink the whole read; upstream errors on every batch
// still leave the map simply sparse, which callers treat as missing nodes.
func (c *Client) FetchNodes(ctx context.Context, ids []string) (map[string]schemas.Record, error) {
	idList := normalizeIDs(ids)
	if len(idList) == 0 {
		return map[string]schemas.Record{}, nil
	}

	fields := []string{FieldID, FieldName}
	parentFields := make([]string, 0, len(c.parents))
	for _, pf := range c.parents {
		parentFields = append(parentFields, pf)
	}
	sort.Strings(parentFields)
	fields = append(fields, parentFields...)

	out := make(map[string]schemas.Record, len(idList))
	for _, batch := range chunk(idList, c.chunkSize) {
		filter := fmt.Sprintf("(%s) and %s", orFilter(FieldID, batch), activeEntityFilter)
		res, err := c.elements.Query(ctx, odata.Request{
			EntitySet: SetForceElementTP,
			Fields:    fields,
			Filter:    filter,
		})
		if err != nil {
			var upstream *odata.UpstreamError
			if errors.As(err, &upstream) {
				c.log.Warn("Node batch failed, skipping",
					zap.Int("status", upstream.Status),
					zap.Int("batch_size", len(batch)))
				continue
			}
			return nil, err
		}
		for _, rec := range res.Records {
			if id := rec.String(FieldID); id != "" {
				out[id] = rec
			}
		}
	}
	return out, nil
}

// FetchChildren reads the direct children of the given parents under one
// hierarchy type, using a chunked OR filter on the parent field.
func (c *Client) FetchChildren(ctx context.Context, parentIDs []string, hierarchyType string) ([]schemas.Record, error) {
	parentField, err := c.ParentField(hierarchyType)
	if err != nil {
		return nil, err
	}

	parents := normalizeIDs(parentIDs)
	if len(parents) == 0 {
		return nil, nil
	}

	var rows []schemas.Record
	for _, batch := range chunk(parents, c.chunkSize) {
		filter := fmt.Sprintf("(%s) and %s", orFilter(parentField, batch), activeEntityFilter)
		res, err := c.elements.Query(ctx, odata.Request{
			EntitySet: SetForceElementTP,
			Fields:    []string{FieldID, FieldName, parentField},
			Filter:    filter,
		})
		if err != nil {
			var upstream *odata.UpstreamError
			if errors.As(err, &upstream) {
				c.log.Warn("Children batch failed, skipping",
					zap.Int("status", upstream.Status),
					zap.String("hierarchy", hierarchyType))
				continue
			}
			return nil, err
		}
		rows = append(rows, res.Records...)
	}
	return rows, nil
}

// Traverse discovers the subtree below rootID level by level under one
// hierarchy type, to at most maxDepth levels, and returns every discovered
// record keyed by identifier.
func (c *Client) Traverse(ctx context.Context, rootID, hierarchyType string, maxDepth int) (map[string]schemas.Record, error) {
	roots, err := c.FetchNodes(ctx, []string{rootID})
	if err != nil {
		return nil, err
	}
	rootID = strings.TrimSpace(rootID)
	if _, ok := roots[rootID]; !ok {
		return nil, &odata.NotFoundError{Resource: SetForceElementTP, Key: rootID}
	}

	all := roots
	frontier := []string{rootID}
	for level := 0; level < maxDepth && len(frontier) > 0; level++ {
		children, err := c.FetchChildren(ctx, frontier, hierarchyType)
		if err != nil {
			return nil, err
		}
		var next []string
		for _, child := range children {
			id := child.String(FieldID)
			if id == "" {
				continue
			}
			if _, known := all[id]; !known {
				all[id] = child
				next = append(next, id)
			}
		}
		frontier = next
	}
	return all, nil
}

// BuildTree fetches the subtree below rootID for one hierarchy type and
// assembles it into a rooted tree.
func (c *Client) BuildTree(ctx context.Context, rootID, hierarchyType string, maxDepth int) (*schemas.TreeNode, *TreeStats, error) {
	parentField, err := c.ParentField(hierarchyType)
	if err != nil {
		return nil, nil, err
	}
	nodes, err := c.Traverse(ctx, rootID, hierarchyType, maxDepth)
	if err != nil {
		return nil, nil, err
	}
	records := make([]schemas.Record, 0, len(nodes))
	for _, rec := range nodes {
		records = append(records, rec)
	}
	return c.hierarchy.BuildTree(records, strings.TrimSpace(rootID), parentField, maxDepth)
}

// BuildGraph fetches the relationship network around rootID and assembles it
// into a graph, enriching nodes with their base records.
func (c *Client) BuildGraph(ctx context.Context, rootID string, depth int, relTypes []string) (*schemas.Graph, error) {
	edges, err := c.FetchEdges(ctx, rootID, depth)
	if err != nil {
		return nil, err
	}
	if len(relTypes) > 0 {
		edges = FilterEdgesByRel(edges, relTypes)
	}

	ids := map[string]struct{}{strings.TrimSpace(rootID): {}}
	for _, e := range edges {
		ids[e.Source] = struct{}{}
		ids[e.Target] = struct{}{}
	}
	idList := make([]string, 0, len(ids))
	for id := range ids {
		idList = append(idList, id)
	}

	nodes, err := c.FetchNodes(ctx, idList)
	if err != nil {
		return nil, err
	}

	g := &schemas.Graph{Edges: edges}
	for id := range ids {
		g.Nodes = append(g.Nodes, schemas.GraphNode{ID: id, Record: nodes[id]})
	}
	g.Sort()
	return g, nil
}

// FetchReadiness bulk-reads the KPI fields for the given IDs and computes
// their snapshots.
func (c *Client) FetchReadiness(ctx context.Context, ids []string) (map[string]schemas.ReadinessSnapshot, error) {
	idList := normalizeIDs(ids)
	if len(idList) == 0 {
		return map[string]schemas.ReadinessSnapshot{}, nil
	}

	fields := []string{FieldID, FieldReadinessMaterial, FieldReadinessPersonnel, FieldReadinessTraining}
	var rows []schemas.Record
	for _, batch := range chunk(idList, c.chunkSize) {
		res, err := c.elements.Query(ctx, odata.Request{
			EntitySet: SetForceElementTP,
			Fields:    fields,
			Filter:    orFilter(FieldID, batch),
		})
		if err != nil {
			var upstream *odata.UpstreamError
			if errors.As(err, &upstream) {
				c.log.Warn("Readiness batch failed, skipping",
					zap.Int("status", upstream.Status),
					zap.Int("batch_size", len(batch)))
				continue
			}
			return nil, err
		}
		rows = append(rows, res.Records...)
	}
	return c.readiness.ComputeBatch(rows), nil
}
