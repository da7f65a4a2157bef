package odata

import (
	"context"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lscheinman/odata/api/schemas"
)

// pagedTransport serves a fixed sequence of pages: the first from FetchPage,
// the rest through continuation links. It records the params of the initial
// fetch so parameter building can be asserted on.
type pagedTransport struct {
	pages []*Page
	doc   string

	fetchParams url.Values
	fetchCalls  int
	followed    []string
}

func (p *pagedTransport) FetchPage(_ context.Context, _, _ string, params url.Values) (*Page, error) {
	p.fetchCalls++
	p.fetchParams = params
	if len(p.pages) == 0 {
		return &Page{}, nil
	}
	return p.pages[0], nil
}

func (p *pagedTransport) FollowLink(_ context.Context, link string) (*Page, error) {
	p.followed = append(p.followed, link)
	for i, page := range p.pages[:len(p.pages)-1] {
		if page.NextLink == link {
			return p.pages[i+1], nil
		}
	}
	return nil, fmt.Errorf("unknown link %q", link)
}

func (p *pagedTransport) FetchSchemaDocument(context.Context, string) (string, error) {
	if p.doc == "" {
		return "", fmt.Errorf("no schema available")
	}
	return p.doc, nil
}

func rec(id string) schemas.Record {
	return schemas.Record{"ForceElementOrgID": id}
}

func newTestEngine(transport Transport, limits Limits) *Engine {
	cache := NewSchemaCache(transport, time.Hour, nil)
	return NewEngine(transport, cache, "svc", limits, nil)
}

func TestQueryPaging(t *testing.T) {
	t.Parallel()

	t.Run("should concatenate records across continuation links", func(t *testing.T) {
		t.Parallel()
		transport := &pagedTransport{pages: []*Page{
			{Records: []schemas.Record{rec("1"), rec("2")}, NextLink: "p2"},
			{Records: []schemas.Record{rec("3")}, NextLink: "p3"},
			{Records: []schemas.Record{rec("4")}},
		}}
		engine := newTestEngine(transport, Limits{})

		res, err := engine.Query(context.Background(), Request{EntitySet: "Set"})
		require.NoError(t, err)

		assert.Len(t, res.Records, 4)
		assert.Equal(t, 3, res.Pages)
		assert.False(t, res.Truncated)
		assert.Equal(t, []string{"p2", "p3"}, transport.followed)
	})

	t.Run("should stop at the page bound and flag truncation", func(t *testing.T) {
		t.Parallel()
		transport := &pagedTransport{pages: []*Page{
			{Records: []schemas.Record{rec("1"), rec("2")}, NextLink: "p2"},
			{Records: []schemas.Record{rec("3"), rec("4")}, NextLink: "p3"},
			{Records: []schemas.Record{rec("5"), rec("6")}},
		}}
		engine := newTestEngine(transport, Limits{})

		res, err := engine.Query(context.Background(), Request{EntitySet: "Set", MaxPages: 2})
		require.NoError(t, err)

		assert.Len(t, res.Records, 4)
		assert.Equal(t, 2, res.Pages)
		assert.True(t, res.Truncated)
	})

	t.Run("should not flag truncation when the bound equals the page count", func(t *testing.T) {
		t.Parallel()
		transport := &pagedTransport{pages: []*Page{
			{Records: []schemas.Record{rec("1")}, NextLink: "p2"},
			{Records: []schemas.Record{rec("2")}},
		}}
		engine := newTestEngine(transport, Limits{})

		res, err := engine.Query(context.Background(), Request{EntitySet: "Set", MaxPages: 2})
		require.NoError(t, err)

		assert.Len(t, res.Records, 2)
		assert.Equal(t, 2, res.Pages)
		assert.False(t, res.Truncated)
	})

	t.Run("should not flag truncation when the only remaining link was already served", func(t *testing.T) {
		t.Parallel()
		transport := &pagedTransport{pages: []*Page{
			{Records: []schemas.Record{rec("1")}, NextLink: "p2"},
			{Records: []schemas.Record{rec("2")}, NextLink: "p2"},
		}}
		engine := newTestEngine(transport, Limits{})

		res, err := engine.Query(context.Background(), Request{EntitySet: "Set", MaxPages: 2})
		require.NoError(t, err)

		assert.Len(t, res.Records, 2)
		assert.Equal(t, 2, res.Pages)
		assert.False(t, res.Truncated, "a repeated link carries no further records")
	})

	t.Run("should break out of a repeated continuation link", func(t *testing.T) {
		t.Parallel()
		transport := &pagedTransport{pages: []*Page{
			{Records: []schemas.Record{rec("1")}, NextLink: "loop"},
			{Records: []schemas.Record{rec("2")}, NextLink: "loop"},
		}}
		engine := newTestEngine(transport, Limits{})

		res, err := engine.Query(context.Background(), Request{EntitySet: "Set", MaxPages: 50})
		require.NoError(t, err)

		assert.Len(t, res.Records, 2)
		assert.Equal(t, []string{"loop"}, transport.followed)
	})

	t.Run("should apply the configured default page bound", func(t *testing.T) {
		t.Parallel()
		transport := &pagedTransport{pages: []*Page{
			{Records: []schemas.Record{rec("1")}, NextLink: "p2"},
			{Records: []schemas.Record{rec("2")}, NextLink: "p3"},
			{Records: []schemas.Record{rec("3")}},
		}}
		engine := newTestEngine(transport, Limits{DefaultMaxPages: 1})

		res, err := engine.Query(context.Background(), Request{EntitySet: "Set"})
		require.NoError(t, err)

		assert.Equal(t, 1, res.Pages)
		assert.True(t, res.Truncated)
	})

	t.Run("should reject an empty entity set", func(t *testing.T) {
		t.Parallel()
		engine := newTestEngine(&pagedTransport{}, Limits{})
		_, err := engine.Query(context.Background(), Request{})
		require.Error(t, err)
	})
}

func TestQueryParams(t *testing.T) {
	t.Parallel()

	t.Run("should pass through filter, ordering and paging options", func(t *testing.T) {
		t.Parallel()
		transport := &pagedTransport{pages: []*Page{{}}}
		engine := newTestEngine(transport, Limits{})

		_, err := engine.Query(context.Background(), Request{
			EntitySet: "Set",
			Fields:    []string{"A", "B"},
			Filter:    "A eq '1'",
			OrderBy:   "A desc",
			Top:       50,
			Skip:      10,
			Expand:    "to_Parent",
		})
		require.NoError(t, err)

		params := transport.fetchParams
		assert.Equal(t, "A,B", params.Get("$select"))
		assert.Equal(t, "A eq '1'", params.Get("$filter"))
		assert.Equal(t, "A desc", params.Get("$orderby"))
		assert.Equal(t, "50", params.Get("$top"))
		assert.Equal(t, "10", params.Get("$skip"))
		assert.Equal(t, "to_Parent", params.Get("$expand"))
	})

	t.Run("should apply default and maximum page size", func(t *testing.T) {
		t.Parallel()
		transport := &pagedTransport{pages: []*Page{{}}}
		engine := newTestEngine(transport, Limits{DefaultPageSize: 100, MaxPageSize: 500})

		_, err := engine.Query(context.Background(), Request{EntitySet: "Set"})
		require.NoError(t, err)
		assert.Equal(t, "100", transport.fetchParams.Get("$top"))

		_, err = engine.Query(context.Background(), Request{EntitySet: "Set", Top: 9999})
		require.NoError(t, err)
		assert.Equal(t, "500", transport.fetchParams.Get("$top"))
	})

	t.Run("should omit skip and top when unset and unbounded", func(t *testing.T) {
		t.Parallel()
		transport := &pagedTransport{pages: []*Page{{}}}
		engine := newTestEngine(transport, Limits{})

		_, err := engine.Query(context.Background(), Request{EntitySet: "Set"})
		require.NoError(t, err)
		assert.Empty(t, transport.fetchParams.Get("$top"))
		assert.Empty(t, transport.fetchParams.Get("$skip"))
	})

	t.Run("should drop unknown fields from the selection when validating", func(t *testing.T) {
		t.Parallel()
		transport := &pagedTransport{pages: []*Page{{}}, doc: sampleMetadata}
		engine := newTestEngine(transport, Limits{})

		res, err := engine.Query(context.Background(), Request{
			EntitySet:      "C_FrcElmntOrgTP",
			Fields:         []string{"ForceElementOrgID", "Bogus"},
			ValidateFields: true,
		})
		require.NoError(t, err)

		assert.Equal(t, "ForceElementOrgID", transport.fetchParams.Get("$select"))
		assert.Equal(t, []string{"Bogus"}, res.UnknownFields)
	})

	t.Run("should fail validation when the schema is unavailable", func(t *testing.T) {
		t.Parallel()
		transport := &pagedTransport{pages: []*Page{{}}}
		engine := newTestEngine(transport, Limits{})

		_, err := engine.Query(context.Background(), Request{
			EntitySet:      "Set",
			Fields:         []string{"A"},
			ValidateFields: true,
		})
		var unavailable *SchemaUnavailableError
		require.ErrorAs(t, err, &unavailable)
	})

	t.Run("should keep extra params without clobbering structured ones", func(t *testing.T) {
		t.Parallel()
		transport := &pagedTransport{pages: []*Page{{}}}
		engine := newTestEngine(transport, Limits{})

		_, err := engine.Query(context.Background(), Request{
			EntitySet:   "Set",
			Filter:      "A eq '1'",
			ExtraParams: map[string]string{"search": "x", "$filter": "overridden"},
		})
		require.NoError(t, err)

		assert.Equal(t, "x", transport.fetchParams.Get("search"))
		assert.Equal(t, "A eq '1'", transport.fetchParams.Get("$filter"))
	})
}

func TestReadByKey(t *testing.T) {
	t.Parallel()

	t.Run("should return the single matching record", func(t *testing.T) {
		t.Parallel()
		transport := &pagedTransport{pages: []*Page{
			{Records: []schemas.Record{rec("A1")}},
		}}
		engine := newTestEngine(transport, Limits{})

		record, err := engine.ReadByKey(context.Background(), "Set", "ForceElementOrgID", "A1")
		require.NoError(t, err)
		assert.Equal(t, "A1", record.String("ForceElementOrgID"))
		assert.Equal(t, "ForceElementOrgID eq 'A1'", transport.fetchParams.Get("$filter"))
		assert.Equal(t, "1", transport.fetchParams.Get("$top"))
	})

	t.Run("should escape quotes in the key", func(t *testing.T) {
		t.Parallel()
		transport := &pagedTransport{pages: []*Page{
			{Records: []schemas.Record{rec("O'Brien")}},
		}}
		engine := newTestEngine(transport, Limits{})

		_, err := engine.ReadByKey(context.Background(), "Set", "Name", "O'Brien")
		require.NoError(t, err)
		assert.Equal(t, "Name eq 'O''Brien'", transport.fetchParams.Get("$filter"))
	})

	t.Run("should return NotFoundError on an empty result", func(t *testing.T) {
		t.Parallel()
		transport := &pagedTransport{pages: []*Page{{}}}
		engine := newTestEngine(transport, Limits{})

		_, err := engine.ReadByKey(context.Background(), "Set", "ForceElementOrgID", "missing")
		var notFound *NotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, "missing", notFound.Key)
	})
}

func TestEscapeLiteral(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "plain", EscapeLiteral("plain"))
	assert.Equal(t, "O''Brien", EscapeLiteral("O'Brien"))
	assert.Equal(t, "''''", EscapeLiteral("''"))
}

func TestResolveMaxPages(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(&pagedTransport{}, Limits{DefaultMaxPages: 10, MaxPagesCap: 20})
	assert.Equal(t, 10, engine.resolveMaxPages(0))
	assert.Equal(t, 5, engine.resolveMaxPages(5))
	assert.Equal(t, 20, engine.resolveMaxPages(99))
}
