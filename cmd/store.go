package main

import (
	"context"
	"os"

	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"

	"github.com/sells-group/funding-intake/internal/db"
	"github.com/sells-group/funding-intake/internal/sink"
	"github.com/sells-group/funding-intake/internal/store"
	"github.com/sells-group/funding-intake/pkg/notion"
	sfpkg "github.com/sells-group/funding-intake/pkg/salesforce"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "intake.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, db.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore opens and migrates the run store for the read-only commands.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func initSalesforce() (sfpkg.Client, error) {
	if cfg.Salesforce.ClientID == "" {
		return nil, eris.New("salesforce client ID is required (INTAKE_SALESFORCE_CLIENT_ID)")
	}

	pemData, err := os.ReadFile(cfg.Salesforce.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "read salesforce JWT private key")
	}

	sf, err := salesforce.Init(salesforce.Creds{
		Domain:         cfg.Salesforce.LoginURL,
		Username:       cfg.Salesforce.Username,
		ConsumerKey:    cfg.Salesforce.ClientID,
		ConsumerRSAPem: string(pemData),
	})
	if err != nil {
		return nil, eris.Wrap(err, "init salesforce")
	}

	return sfpkg.NewClient(sf, sfpkg.WithRateLimit(cfg.Salesforce.RateLimit)), nil
}

// initApprover registers the store sink plus every CRM sink that has
// credentials. An empty want connects Salesforce whenever a client ID is
// set; otherwise only when want names it.
func initApprover(st store.Store, want string) (*sink.Approver, error) {
	sinks := []sink.Sink{sink.NewStoreSink(st)}

	if cfg.Notion.Token != "" {
		client := notion.NewClient(cfg.Notion.Token, notion.WithRateLimit(cfg.Notion.RateLimit))
		sinks = append(sinks, sink.NewNotionSink(client, cfg.Notion.Databases))
	}

	if want == "salesforce" || (want == "" && cfg.Salesforce.ClientID != "") {
		client, err := initSalesforce()
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sink.NewSalesforceSink(client, cfg.Salesforce.Objects, nil))
	}

	return sink.NewApprover(st, sinks...), nil
}
