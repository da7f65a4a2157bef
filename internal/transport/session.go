// Package transport implements the HTTP collaborator behind the query core:
// one session per gateway, carrying credentials and client/language scoping
// on every request, unwrapping paged payloads in both the v2 (d/results,
// d/__next) and v4 (value, @odata.nextLink) shapes.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Lscheinman/odata/api/schemas"
	"github.com/Lscheinman/odata/internal/odata"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Auth kinds accepted by the session.
const (
	AuthBasic  = "basic"
	AuthBearer = "bearer"
)

const maxErrorBody = 64 << 10

// Config describes the connection to one gateway.
type Config struct {
	BaseURL   string
	AuthKind  string // "basic" or "bearer"
	Username  string
	Password  string
	Token     string
	SAPClient string
	Language  string
	UserAgent string
}

// Session is the concrete odata.Transport. It holds no mutable state beyond
// the http.Client, so one session is safe to share across goroutines.
type Session struct {
	cfg    Config
	base   string
	client *http.Client
	log    *zap.Logger
}

// Compile-time check that Session satisfies the core's collaborator contract.
var _ odata.Transport = (*Session)(nil)

// NewSession validates the config and builds a session over the given client.
// A nil client gets the default tuned one.
func NewSession(cfg Config, client *http.Client, logger *zap.Logger) (*Session, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("transport: base URL is required")
	}
	switch cfg.AuthKind {
	case AuthBasic:
		if cfg.Username == "" {
			return nil, fmt.Errorf("transport: basic auth requires a username")
		}
	case AuthBearer:
		if cfg.Token == "" {
			return nil, fmt.Errorf("transport: bearer auth requires a token")
		}
	default:
		return nil, fmt.Errorf("transport: auth kind must be %q or %q", AuthBasic, AuthBearer)
	}
	if cfg.Language == "" {
		cfg.Language = "EN"
	}
	if client == nil {
		client = NewHTTPClient(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		cfg:    cfg,
		base:   strings.TrimRight(cfg.BaseURL, "/") + "/",
		client: client,
		log:    logger.Named("transport"),
	}, nil
}

// FetchPage issues one page read against service/resourcePath.
func (s *Session) FetchPage(ctx context.Context, service, resourcePath string, params url.Values) (*odata.Page, error) {
	reqURL := s.resourceURL(service, resourcePath)

	q := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("$format", "json")
	if s.cfg.SAPClient != "" {
		q.Set("sap-client", s.cfg.SAPClient)
	}

	body, err := s.get(ctx, reqURL+"?"+q.Encode(), "application/json")
	if err != nil {
		return nil, err
	}
	return decodePage(body, reqURL)
}

// FollowLink fetches the page behind a continuation link. The link already
// carries the full query string, including client scoping, so it is used
// verbatim.
func (s *Session) FollowLink(ctx context.Context, link string) (*odata.Page, error) {
	body, err := s.get(ctx, link, "application/json")
	if err != nil {
		return nil, err
	}
	return decodePage(body, link)
}

// FetchSchemaDocument returns the raw $metadata XML for a service.
func (s *Session) FetchSchemaDocument(ctx context.Context, service string) (string, error) {
	reqURL := s.resourceURL(service, "$metadata")
	if s.cfg.SAPClient != "" {
		reqURL += "?sap-client=" + url.QueryEscape(s.cfg.SAPClient)
	}
	body, err := s.get(ctx, reqURL, "application/xml")
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (s *Session) resourceURL(service, path string) string {
	return s.base + strings.Trim(service, "/") + "/" + strings.TrimLeft(path, "/")
}

func (s *Session) get(ctx context.Context, reqURL, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", reqURL, err)
	}

	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", strings.ToLower(s.cfg.Language))
	req.Header.Set("sap-language", strings.ToUpper(s.cfg.Language))
	req.Header.Set("X-Request-ID", uuid.NewString())
	if s.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", s.cfg.UserAgent)
	}
	switch s.cfg.AuthKind {
	case AuthBasic:
		req.SetBasicAuth(s.cfg.Username, s.cfg.Password)
	case AuthBearer:
		req.Header.Set("Authorization", "Bearer "+s.cfg.Token)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &odata.UpstreamError{Status: 0, URL: reqURL, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, &odata.UpstreamError{Status: resp.StatusCode, URL: reqURL, Message: err.Error()}
	}

	s.log.Debug("GET",
		zap.String("url", reqURL),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	// Redirects usually mean the gateway bounced us to a login page; surface
	// them as failures instead of handing XML/HTML to the decoder.
	if resp.StatusCode >= 400 || (resp.StatusCode >= 300 && resp.StatusCode < 400) {
		return nil, &odata.UpstreamError{
			Status:  resp.StatusCode,
			URL:     reqURL,
			Message: extractErrorMessage(body),
		}
	}
	return body, nil
}

// extractErrorMessage digs the human-readable message out of an OData error
// envelope, falling back to the raw body.
func extractErrorMessage(body []byte) string {
	var envelope struct {
		Error struct {
			Code    string          `json:"code"`
			Message json.RawMessage `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Error.Code == "" && envelope.Error.Message == nil {
		return truncate(string(body), maxErrorBody)
	}

	msg := ""
	// v2 wraps the message as {"lang": ..., "value": ...}; v4 sends a string.
	var wrapped struct {
		Value string `json:"value"`
	}
	if json.Unmarshal(envelope.Error.Message, &wrapped) == nil && wrapped.Value != "" {
		msg = wrapped.Value
	} else {
		var plain string
		if json.Unmarshal(envelope.Error.Message, &plain) == nil {
			msg = plain
		}
	}

	parts := []string{}
	if envelope.Error.Code != "" {
		parts = append(parts, "code="+envelope.Error.Code)
	}
	if msg != "" {
		parts = append(parts, "message="+msg)
	}
	if len(parts) == 0 {
		return truncate(string(body), maxErrorBody)
	}
	return strings.Join(parts, " | ")
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// decodePage unwraps a paged payload in either protocol shape.
func decodePage(body []byte, reqURL string) (*odata.Page, error) {
	var payload struct {
		D *struct {
			Results []schemas.Record `json:"results"`
			Next    string           `json:"__next"`
		} `json:"d"`
		Value []schemas.Record `json:"value"`
		Next  string           `json:"@odata.nextLink"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &odata.UpstreamError{
			Status:  http.StatusOK,
			URL:     reqURL,
			Message: fmt.Sprintf("undecodable payload: %v", err),
		}
	}

	page := &odata.Page{}
	switch {
	case payload.D != nil:
		page.Records = payload.D.Results
		page.NextLink = payload.D.Next
	default:
		page.Records = payload.Value
		page.NextLink = payload.Next
	}
	return page, nil
}
