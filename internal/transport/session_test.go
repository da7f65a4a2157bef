package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lscheinman/odata/internal/odata"
)

func basicConfig(baseURL string) Config {
	return Config{
		BaseURL:   baseURL,
		AuthKind:  AuthBasic,
		Username:  "svc-user",
		Password:  "secret",
		SAPClient: "100",
		Language:  "EN",
		UserAgent: "orbat-test/1",
	}
}

func newTestSession(t *testing.T, handler http.HandlerFunc) (*Session, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	session, err := NewSession(basicConfig(server.URL), server.Client(), nil)
	require.NoError(t, err)
	return session, server
}

func TestNewSession(t *testing.T) {
	t.Parallel()

	t.Run("should require a base URL", func(t *testing.T) {
		t.Parallel()
		_, err := NewSession(Config{AuthKind: AuthBasic, Username: "u"}, nil, nil)
		require.Error(t, err)
	})

	t.Run("should require a username for basic auth", func(t *testing.T) {
		t.Parallel()
		_, err := NewSession(Config{BaseURL: "http://x", AuthKind: AuthBasic}, nil, nil)
		require.Error(t, err)
	})

	t.Run("should require a token for bearer auth", func(t *testing.T) {
		t.Parallel()
		_, err := NewSession(Config{BaseURL: "http://x", AuthKind: AuthBearer}, nil, nil)
		require.Error(t, err)
	})

	t.Run("should reject unknown auth kinds", func(t *testing.T) {
		t.Parallel()
		_, err := NewSession(Config{BaseURL: "http://x", AuthKind: "ntlm"}, nil, nil)
		require.Error(t, err)
	})
}

func TestFetchPage(t *testing.T) {
	t.Parallel()

	t.Run("should decode a v2 payload and carry request scoping", func(t *testing.T) {
		t.Parallel()
		var captured *http.Request
		session, _ := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
			captured = r.Clone(context.Background())
			w.Write([]byte(`{"d":{"results":[{"ForceElementOrgID":"A"}],"__next":"http://next/page2"}}`))
		})

		page, err := session.FetchPage(context.Background(), "DFS_FE_FRCELMNTORG_SRV", "C_FrcElmntOrgTP", nil)
		require.NoError(t, err)

		require.Len(t, page.Records, 1)
		assert.Equal(t, "A", page.Records[0].String("ForceElementOrgID"))
		assert.Equal(t, "http://next/page2", page.NextLink)

		require.NotNil(t, captured)
		assert.Equal(t, "/DFS_FE_FRCELMNTORG_SRV/C_FrcElmntOrgTP", captured.URL.Path)
		query := captured.URL.Query()
		assert.Equal(t, "json", query.Get("$format"))
		assert.Equal(t, "100", query.Get("sap-client"))

		user, pass, ok := captured.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "svc-user", user)
		assert.Equal(t, "secret", pass)
		assert.Equal(t, "EN", captured.Header.Get("sap-language"))
		assert.NotEmpty(t, captured.Header.Get("X-Request-ID"))
	})

	t.Run("should decode a v4 payload", func(t *testing.T) {
		t.Parallel()
		session, _ := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"value":[{"ForceElementOrgID":"A"},{"ForceElementOrgID":"B"}],"@odata.nextLink":"http://next/p2"}`))
		})

		page, err := session.FetchPage(context.Background(), "svc", "Set", nil)
		require.NoError(t, err)
		assert.Len(t, page.Records, 2)
		assert.Equal(t, "http://next/p2", page.NextLink)
	})

	t.Run("should surface error envelopes as UpstreamError", func(t *testing.T) {
		t.Parallel()
		session, _ := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"code":"CX_ODATA","message":{"lang":"en","value":"Invalid filter"}}}`))
		})

		_, err := session.FetchPage(context.Background(), "svc", "Set", nil)
		var upstream *odata.UpstreamError
		require.ErrorAs(t, err, &upstream)
		assert.Equal(t, http.StatusBadRequest, upstream.Status)
		assert.Contains(t, upstream.Message, "CX_ODATA")
		assert.Contains(t, upstream.Message, "Invalid filter")
	})

	t.Run("should extract v4 plain string error messages", func(t *testing.T) {
		t.Parallel()
		session, _ := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":{"code":"404","message":"Resource not found"}}`))
		})

		_, err := session.FetchPage(context.Background(), "svc", "Set", nil)
		var upstream *odata.UpstreamError
		require.ErrorAs(t, err, &upstream)
		assert.Contains(t, upstream.Message, "Resource not found")
	})

	t.Run("should treat redirects as failures", func(t *testing.T) {
		t.Parallel()
		session, _ := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusFound)
			w.Write([]byte(`<html>login page</html>`))
		})

		_, err := session.FetchPage(context.Background(), "svc", "Set", nil)
		var upstream *odata.UpstreamError
		require.ErrorAs(t, err, &upstream)
		assert.Equal(t, http.StatusFound, upstream.Status)
	})

	t.Run("should reject undecodable success payloads", func(t *testing.T) {
		t.Parallel()
		session, _ := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html>definitely not json</html>`))
		})

		_, err := session.FetchPage(context.Background(), "svc", "Set", nil)
		var upstream *odata.UpstreamError
		require.ErrorAs(t, err, &upstream)
		assert.Contains(t, upstream.Message, "undecodable payload")
	})
}

func TestFollowLink(t *testing.T) {
	t.Parallel()

	t.Run("should use the continuation link verbatim", func(t *testing.T) {
		t.Parallel()
		var captured *http.Request
		session, server := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
			captured = r.Clone(context.Background())
			w.Write([]byte(`{"d":{"results":[]}}`))
		})

		link := server.URL + "/svc/Set?$skiptoken=abc&sap-client=100"
		_, err := session.FollowLink(context.Background(), link)
		require.NoError(t, err)

		require.NotNil(t, captured)
		assert.Equal(t, "abc", captured.URL.Query().Get("$skiptoken"))
		assert.Empty(t, captured.URL.Query().Get("$format"), "link is not rewritten")
	})
}

func TestFetchSchemaDocument(t *testing.T) {
	t.Parallel()

	t.Run("should request the metadata document as XML", func(t *testing.T) {
		t.Parallel()
		var captured *http.Request
		session, _ := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
			captured = r.Clone(context.Background())
			w.Write([]byte(`<edmx:Edmx/>`))
		})

		doc, err := session.FetchSchemaDocument(context.Background(), "DFS_FE_FRCELMNTORG_SRV")
		require.NoError(t, err)
		assert.Equal(t, `<edmx:Edmx/>`, doc)

		require.NotNil(t, captured)
		assert.Equal(t, "/DFS_FE_FRCELMNTORG_SRV/$metadata", captured.URL.Path)
		assert.Equal(t, "application/xml", captured.Header.Get("Accept"))
		assert.Equal(t, "100", captured.URL.Query().Get("sap-client"))
	})
}

func TestBearerAuth(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		w.Write([]byte(`{"value":[]}`))
	}))
	t.Cleanup(server.Close)

	session, err := NewSession(Config{
		BaseURL:  server.URL,
		AuthKind: AuthBearer,
		Token:    "tok-123",
	}, server.Client(), nil)
	require.NoError(t, err)

	_, err = session.FetchPage(context.Background(), "svc", "Set", nil)
	require.NoError(t, err)
}
