// Package app builds and holds the long-lived services used by the CLI commands.
package app

import (
	"bytes"
	"context"
	"fmt"
	"io"

	gpubsub "cloud.google.com/go/pubsub"
	gstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/people-email-enricher/internal/config"
	"github.com/JakeFAU/people-email-enricher/internal/enrich"
	collyfetcher "github.com/JakeFAU/people-email-enricher/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/people-email-enricher/internal/fetcher/headless"
	"github.com/JakeFAU/people-email-enricher/internal/id/uuid"
	"github.com/JakeFAU/people-email-enricher/internal/peoplesearch"
	"github.com/JakeFAU/people-email-enricher/internal/policy/ratelimit"
	"github.com/JakeFAU/people-email-enricher/internal/postal"
	"github.com/JakeFAU/people-email-enricher/internal/processor"
	pubsubpublisher "github.com/JakeFAU/people-email-enricher/internal/publisher/pubsub"
	"github.com/JakeFAU/people-email-enricher/internal/retry"
	"github.com/JakeFAU/people-email-enricher/internal/storage/gcs"
	"github.com/JakeFAU/people-email-enricher/internal/storage/postgres"
	"github.com/JakeFAU/people-email-enricher/internal/storage/xlsx"
)

type reportUploader interface {
	PutReport(ctx context.Context, runID string, r io.Reader) (string, error)
}

// App holds the shared services for one enricher run.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	runID     string
	store     enrich.Store
	uploader  reportUploader
	publisher processor.Publisher
	closers   []func()
}

// New creates the output store and the optional report upload and notification
// clients described by cfg.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	runID, err := uuid.New().NewID()
	if err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, runID: runID, logger: logger.With(zap.String("run_id", runID))}

	if err := a.initStore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initUploader(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initPublisher(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.logger.Info("application services initialized",
		zap.String("backend", cfg.Output.Backend),
		zap.Bool("report_upload", a.uploader != nil),
		zap.Bool("notifications", a.publisher != nil),
	)
	return a, nil
}

func (a *App) initStore(ctx context.Context) error {
	switch a.cfg.Output.Backend {
	case config.BackendPostgres:
		store, err := postgres.NewRowStore(ctx, postgres.Config{
			DSN:      a.cfg.DB.DSN,
			Table:    a.cfg.DB.Table,
			MaxConns: a.cfg.DB.MaxConns,
		})
		if err != nil {
			return fmt.Errorf("init postgres store: %w", err)
		}
		a.store = store
		a.closers = append(a.closers, store.Close)
	case config.BackendXLSX, "":
		store, err := xlsx.NewStore(a.cfg.Output.Path)
		if err != nil {
			return fmt.Errorf("init xlsx store: %w", err)
		}
		a.store = store
	default:
		return fmt.Errorf("unknown output backend %q", a.cfg.Output.Backend)
	}
	return nil
}

func (a *App) initUploader(ctx context.Context) error {
	if a.cfg.Storage.GCSBucket == "" {
		return nil
	}
	client, err := gstorage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("create storage client: %w", err)
	}
	a.closers = append(a.closers, func() {
		if err := client.Close(); err != nil {
			a.logger.Warn("close storage client failed", zap.Error(err))
		}
	})
	blobs, err := gcs.New(client, gcs.Config{Bucket: a.cfg.Storage.GCSBucket, Prefix: a.cfg.Storage.Prefix})
	if err != nil {
		return fmt.Errorf("init gcs blob store: %w", err)
	}
	a.uploader = blobs
	return nil
}

func (a *App) initPublisher(ctx context.Context) error {
	if a.cfg.PubSub.TopicName == "" {
		return nil
	}
	client, err := gpubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return fmt.Errorf("create pubsub client: %w", err)
	}
	a.closers = append(a.closers, func() {
		if err := client.Close(); err != nil {
			a.logger.Warn("close pubsub client failed", zap.Error(err))
		}
	})
	pub, err := pubsubpublisher.New(client, a.cfg.PubSub.TopicName)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, pub.Stop)
	a.publisher = pub
	return nil
}

// RunID returns the UUIDv7 identifying this run.
func (a *App) RunID() string {
	return a.runID
}

// Logger returns the run-scoped logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Store returns the configured output store.
func (a *App) Store() enrich.Store {
	return a.store
}

// NewProcessor wires the headless postal lookup and the proxied people search
// into a Processor writing to the configured store.
func (a *App) NewProcessor() (*processor.Processor, error) {
	if err := a.cfg.ValidateEnrich(); err != nil {
		return nil, err
	}
	policy := retry.Policy{MaxAttempts: a.cfg.Retry.MaxAttempts, Delay: a.cfg.Retry.Delay}

	browser, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
		FormURL:           a.cfg.Postal.URL,
		UserAgent:         a.cfg.Postal.UserAgent,
		NavigationTimeout: a.cfg.Postal.NavTimeout,
		WaitTimeout:       a.cfg.Postal.WaitTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("init headless browser: %w", err)
	}
	lookup, err := postal.NewLookup(browser, policy, a.logger.Named("postal"))
	if err != nil {
		return nil, err
	}

	limiter := ratelimit.New(ratelimit.Config{RPS: a.cfg.Proxy.RPS, Burst: a.cfg.Proxy.Burst})
	fetcher, err := collyfetcher.New(collyfetcher.Config{
		Endpoint: a.cfg.Proxy.Endpoint,
		APIKey:   a.cfg.Proxy.APIKey,
		Country:  a.cfg.Proxy.Country,
		Timeout:  a.cfg.Proxy.Timeout,
	}, limiter, a.logger.Named("proxy"))
	if err != nil {
		return nil, fmt.Errorf("init proxy fetcher: %w", err)
	}
	searcher, err := peoplesearch.New(peoplesearch.Config{
		BaseURL:        a.cfg.Search.BaseURL,
		AllowedDomains: a.cfg.Search.AllowedDomains,
	}, fetcher, policy, a.logger.Named("peoplesearch"))
	if err != nil {
		return nil, err
	}

	return processor.New(lookup, searcher, a.store, a.publisher,
		processor.Config{RunID: a.runID}, a.logger.Named("processor"))
}

// WriteReport renders the presented output table to output.report_path and,
// when a bucket is configured, uploads it. It returns the report locations.
func (a *App) WriteReport(ctx context.Context) ([]string, error) {
	rows, err := processor.LoadTable(ctx, a.store)
	if err != nil {
		return nil, err
	}
	var locations []string
	if a.cfg.Output.ReportPath != "" {
		if err := xlsx.SaveReport(a.cfg.Output.ReportPath, rows); err != nil {
			return nil, err
		}
		locations = append(locations, a.cfg.Output.ReportPath)
	}
	if a.uploader != nil {
		var buf bytes.Buffer
		if err := xlsx.WriteReport(&buf, rows); err != nil {
			return nil, err
		}
		uri, err := a.uploader.PutReport(ctx, a.runID, &buf)
		if err != nil {
			return nil, fmt.Errorf("upload report: %w", err)
		}
		locations = append(locations, uri)
	}
	a.logger.Info("report written", zap.Int("rows", len(rows)), zap.Strings("locations", locations))
	return locations, nil
}

// Close releases clients in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
}
