package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Lscheinman/odata/internal/config"
	"github.com/Lscheinman/odata/internal/force"
	"github.com/Lscheinman/odata/internal/observability"
	"github.com/Lscheinman/odata/internal/odata"
	"github.com/Lscheinman/odata/internal/store"
	"github.com/Lscheinman/odata/internal/transport"
)

// Components holds the wired services a command needs: the gateway session,
// the two query engines and the force-element client on top of them.
type Components struct {
	Session  *transport.Session
	Schemas  *odata.SchemaCache
	Elements *odata.Engine
	Network  *odata.Engine
	Force    *force.Client

	dbPool *pgxpool.Pool
}

// newComponents builds the full stack from the loaded configuration.
func newComponents(cfg *config.Config) (*Components, error) {
	logger := observability.GetLogger()

	httpClient := transport.NewHTTPClient(&transport.ClientConfig{
		RequestTimeout:        cfg.Gateway.Timeout,
		TLSHandshakeTimeout:   transport.DefaultTLSHandshakeTimeout,
		ResponseHeaderTimeout: transport.DefaultResponseHeaderTimeout,
		MaxIdleConns:          transport.DefaultMaxIdleConns,
		MaxIdleConnsPerHost:   transport.DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:       transport.DefaultIdleConnTimeout,
		IgnoreTLSErrors:       cfg.Gateway.IgnoreTLSErrors,
		ForceHTTP2:            true,
		Logger:                logger,
	})

	session, err := transport.NewSession(transport.Config{
		BaseURL:   cfg.Gateway.BaseURL,
		AuthKind:  cfg.Gateway.AuthKind,
		Username:  cfg.Gateway.Username,
		Password:  cfg.Gateway.Password,
		Token:     cfg.Gateway.Token,
		SAPClient: cfg.Gateway.SAPClient,
		Language:  cfg.Gateway.Language,
		UserAgent: cfg.Gateway.UserAgent,
	}, httpClient, logger)
	if err != nil {
		return nil, fmt.Errorf("building gateway session: %w", err)
	}

	schemas := odata.NewSchemaCache(session, cfg.Schema.TTL, logger)
	limits := odata.Limits{
		DefaultPageSize: cfg.Query.DefaultPageSize,
		MaxPageSize:     cfg.Query.MaxPageSize,
		DefaultMaxPages: cfg.Query.DefaultMaxPages,
		MaxPagesCap:     cfg.Query.MaxPagesCap,
	}

	elements := odata.NewEngine(session, schemas, force.ServiceForceElement, limits, logger)
	network := odata.NewEngine(session, schemas, force.ServiceGraph, limits, logger)

	forceClient := force.NewClient(elements, network, force.ClientOptions{
		ParentFields: cfg.Force.ParentFields,
		ChunkSize:    cfg.Force.ChunkSize,
	}, logger)

	return &Components{
		Session:  session,
		Schemas:  schemas,
		Elements: elements,
		Network:  network,
		Force:    forceClient,
	}, nil
}

// SnapshotStore connects the optional PostgreSQL snapshot store. It fails when
// postgres.url is not configured.
func (c *Components) SnapshotStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	if cfg.Postgres.URL == "" {
		return nil, fmt.Errorf("postgres.url is not configured")
	}
	pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	st, err := store.New(ctx, pool, observability.GetLogger())
	if err != nil {
		pool.Close()
		return nil, err
	}
	c.dbPool = pool
	return st, nil
}

// Shutdown releases held resources.
func (c *Components) Shutdown() {
	if c.dbPool != nil {
		c.dbPool.Close()
		c.dbPool = nil
	}
}

// printJSON writes the command result to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		observability.GetLogger().Error("Failed to encode output", zap.Error(err))
		return err
	}
	return nil
}
