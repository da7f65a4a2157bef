package odata

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// EntitySetInfo describes one entity set declared in a service schema: its
// entity type binding and the ordered property names of that type.
type EntitySetInfo struct {
	Name       string
	EntityType string
	Properties []string
}

// Schema is the parsed form of one service's schema document. It is immutable
// once built; the cache replaces entries wholesale on refresh.
type Schema struct {
	Service string
	sets    map[string]EntitySetInfo
}

// EntitySets returns the entity set names, sorted.
func (s *Schema) EntitySets() []string {
	names := make([]string, 0, len(s.sets))
	for name := range s.sets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Properties returns the property names of an entity set, in declaration
// order. Unknown entity sets yield an empty list.
func (s *Schema) Properties(entitySet string) []string {
	info, ok := s.sets[entitySet]
	if !ok {
		return nil
	}
	out := make([]string, len(info.Properties))
	copy(out, info.Properties)
	return out
}

// EntitySet returns the full entry for one entity set.
func (s *Schema) EntitySet(name string) (EntitySetInfo, bool) {
	info, ok := s.sets[name]
	return info, ok
}

type cacheEntry struct {
	schema    *Schema
	fetchedAt time.Time
}

// SchemaCache fetches and caches parsed service schemas with a TTL. Reads and
// refreshes are guarded by a single RWMutex; a duplicate concurrent refresh
// is wasteful but harmless, so the lock is not held across the fetch.
type SchemaCache struct {
	transport Transport
	ttl       time.Duration
	log       *zap.Logger

	// now is swappable so TTL behavior can be tested without sleeping.
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// NewSchemaCache creates a cache over the given transport. A zero ttl means
// entries never expire.
func NewSchemaCache(transport Transport, ttl time.Duration, logger *zap.Logger) *SchemaCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchemaCache{
		transport: transport,
		ttl:       ttl,
		log:       logger.Named("schemacache"),
		now:       time.Now,
		entries:   make(map[string]cacheEntry),
	}
}

// Schema returns the parsed schema for a service, fetching it on first use
// and again once the cached copy is older than the TTL. A stale entry is
// never served without a refetch attempt; if that attempt fails the error
// surfaces as *SchemaUnavailableError.
func (c *SchemaCache) Schema(ctx context.Context, service string) (*Schema, error) {
	c.mu.RLock()
	entry, ok := c.entries[service]
	c.mu.RUnlock()

	if ok && !c.stale(entry) {
		return entry.schema, nil
	}

	doc, err := c.transport.FetchSchemaDocument(ctx, service)
	if err != nil {
		return nil, &SchemaUnavailableError{Service: service, Err: err}
	}

	schema, err := parseMetadata(service, doc)
	if err != nil {
		return nil, &SchemaUnavailableError{Service: service, Err: err}
	}

	c.mu.Lock()
	c.entries[service] = cacheEntry{schema: schema, fetchedAt: c.now()}
	c.mu.Unlock()

	c.log.Debug("Schema refreshed",
		zap.String("service", service),
		zap.Int("entity_sets", len(schema.sets)))
	return schema, nil
}

func (c *SchemaCache) stale(entry cacheEntry) bool {
	if c.ttl <= 0 {
		return false
	}
	return c.now().Sub(entry.fetchedAt) >= c.ttl
}

// ValidateFields partitions the requested fields into those declared on the
// entity set and those unknown to it. Matching is case sensitive. Validation
// is advisory: unknown fields are reported, never rejected here.
func (c *SchemaCache) ValidateFields(ctx context.Context, service, entitySet string, fields []string) (valid, unknown []string, err error) {
	schema, err := c.Schema(ctx, service)
	if err != nil {
		return nil, nil, err
	}

	known := make(map[string]struct{})
	for _, p := range schema.Properties(entitySet) {
		known[p] = struct{}{}
	}

	for _, f := range fields {
		if _, ok := known[f]; ok {
			valid = append(valid, f)
		} else {
			unknown = append(unknown, f)
		}
	}
	return valid, unknown, nil
}

// parseMetadata walks the schema XML with a token decoder, matching on local
// element names only. Service schemas come in both v2 and v4 namespace
// flavors, so pinning namespaces would just make this brittle.
func parseMetadata(service, doc string) (*Schema, error) {
	dec := xml.NewDecoder(strings.NewReader(doc))

	typeProps := make(map[string][]string)
	type setDecl struct{ name, entityType string }
	var setDecls []setDecl

	var currentType string
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("parsing schema document: %w", err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "EntityType":
				currentType = attr(el, "Name")
				if currentType != "" {
					// Register even property-less types.
					if _, ok := typeProps[currentType]; !ok {
						typeProps[currentType] = nil
					}
				}
			case "Property":
				if currentType != "" {
					if name := attr(el, "Name"); name != "" {
						typeProps[currentType] = append(typeProps[currentType], name)
					}
				}
			case "EntitySet":
				name := attr(el, "Name")
				entityType := attr(el, "EntityType")
				if name != "" && entityType != "" {
					setDecls = append(setDecls, setDecl{name: name, entityType: entityType})
				}
			}
		case xml.EndElement:
			if el.Name.Local == "EntityType" {
				currentType = ""
			}
		}
	}

	if len(setDecls) == 0 {
		return nil, fmt.Errorf("no entity sets declared in schema for %q", service)
	}

	sets := make(map[string]EntitySetInfo, len(setDecls))
	for _, d := range setDecls {
		// EntityType attributes are namespace qualified ("NS.TypeName").
		short := d.entityType
		if i := strings.LastIndex(short, "."); i >= 0 {
			short = short[i+1:]
		}
		sets[d.name] = EntitySetInfo{
			Name:       d.name,
			EntityType: d.entityType,
			Properties: typeProps[short],
		}
	}

	return &Schema{Service: service, sets: sets}, nil
}

func attr(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}
