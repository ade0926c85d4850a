// Package app initializes and holds long-lived services for the CLI, acting
// as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	gcsclient "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/review-catalog/internal/bundle"
	pgsource "github.com/JakeFAU/review-catalog/internal/bundle/postgres"
	"github.com/JakeFAU/review-catalog/internal/clock/system"
	"github.com/JakeFAU/review-catalog/internal/config"
	collyfetcher "github.com/JakeFAU/review-catalog/internal/fetcher/colly"
	"github.com/JakeFAU/review-catalog/internal/hash/sha256"
	"github.com/JakeFAU/review-catalog/internal/id/uuid"
	"github.com/JakeFAU/review-catalog/internal/metrics"
	"github.com/JakeFAU/review-catalog/internal/placeholder"
	"github.com/JakeFAU/review-catalog/internal/policy/ratelimit"
	memorypublisher "github.com/JakeFAU/review-catalog/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/review-catalog/internal/publisher/pubsub"
	"github.com/JakeFAU/review-catalog/internal/render"
	"github.com/JakeFAU/review-catalog/internal/searchindex"
	"github.com/JakeFAU/review-catalog/internal/server"
	"github.com/JakeFAU/review-catalog/internal/site"
	"github.com/JakeFAU/review-catalog/internal/statelock"
	"github.com/JakeFAU/review-catalog/internal/storage"
	gcsstorage "github.com/JakeFAU/review-catalog/internal/storage/gcs"
	localstorage "github.com/JakeFAU/review-catalog/internal/storage/local"
	memorystorage "github.com/JakeFAU/review-catalog/internal/storage/memory"
)

// RecordStore loads and saves the record bundle.
type RecordStore interface {
	bundle.Source
	bundle.Saver
}

// Publisher announces builds and is closed with the app.
type Publisher interface {
	site.Publisher
	Close() error
}

// App holds the shared services built from one Config.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	clock  *system.Clock

	records   RecordStore
	pgSource  *pgsource.Source
	output    storage.BlobStore
	gcsClient *gcsclient.Client
	publisher Publisher
}

// Config returns the configuration the app was built from.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Records returns the record store.
func (a *App) Records() RecordStore { return a.records }

// Output returns the artifact store.
func (a *App) Output() storage.BlobStore { return a.output }

// New creates the App. It fails fast if any configured service cannot be
// initialized.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	a := &App{cfg: cfg, logger: logger, clock: system.New()}

	if err := a.setupRecords(ctx); err != nil {
		return nil, err
	}
	if err := a.setupOutput(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.setupPublisher(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.logger.Debug("application services initialized")
	return a, nil
}

func (a *App) setupRecords(ctx context.Context) error {
	switch a.cfg.Source.Kind {
	case config.SourcePostgres:
		src, err := pgsource.New(ctx, pgsource.Config{
			DSN:             a.cfg.Source.Postgres.DSN,
			Table:           a.cfg.Source.Postgres.Table,
			MaxConns:        a.cfg.Source.Postgres.MaxConns,
			MaxConnLifetime: a.cfg.Source.Postgres.MaxConnLifetime,
			Meta:            bundle.Meta{SiteName: a.cfg.Build.SiteName, SiteURL: a.cfg.Build.SiteURL},
		}, a.logger.Named("postgres"))
		if err != nil {
			return fmt.Errorf("postgres source init failed: %w", err)
		}
		a.pgSource = src
		a.records = src
		a.logger.Info("using postgres record source", zap.String("table", a.cfg.Source.Postgres.Table))
	default:
		a.records = bundle.NewDir(a.cfg.Data.Dir, a.clock, a.logger.Named("bundle"))
		a.logger.Debug("using bundle record source", zap.String("dir", a.cfg.Data.Dir))
	}
	return nil
}

func (a *App) setupOutput(ctx context.Context) error {
	local, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Output.Dir})
	if err != nil {
		return fmt.Errorf("local output init failed: %w", err)
	}
	if a.cfg.Output.GCSBucket == "" {
		a.output = local
		return nil
	}
	a.gcsClient, err = gcsclient.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("gcs client init failed: %w", err)
	}
	mirror, err := gcsstorage.New(a.gcsClient, gcsstorage.Config{
		Bucket: a.cfg.Output.GCSBucket,
		Prefix: a.cfg.Output.GCSPrefix,
	}, a.logger.Named("gcs"))
	if err != nil {
		return fmt.Errorf("gcs blob store init failed: %w", err)
	}
	a.output = storage.NewMulti(local, mirror)
	a.logger.Info("mirroring output to GCS",
		zap.String("bucket", a.cfg.Output.GCSBucket),
		zap.String("prefix", a.cfg.Output.GCSPrefix),
	)
	return nil
}

func (a *App) setupPublisher(ctx context.Context) error {
	if !a.cfg.Notify.Enabled() {
		a.logger.Debug("no Pub/Sub topic configured, using in-memory publisher")
		a.publisher = memorypublisher.New()
		return nil
	}
	p, err := gcppublisher.Connect(ctx, a.cfg.Notify.ProjectID, a.cfg.Notify.Topic)
	if err != nil {
		return fmt.Errorf("pubsub publisher init failed: %w", err)
	}
	a.publisher = p
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.Notify.ProjectID),
		zap.String("topic", a.cfg.Notify.Topic),
	)
	return nil
}

// BuildOptions controls a build run.
type BuildOptions struct {
	// DryRun renders into memory and publishes nothing.
	DryRun bool
}

// Build compiles the catalog into the output store.
func (a *App) Build(ctx context.Context, opts BuildOptions) (site.Report, error) {
	unlock, err := a.lock()
	if err != nil {
		return site.Report{}, err
	}
	defer unlock()

	renderer, err := render.New(a.cfg.Templates.Dir, a.logger.Named("render"))
	if err != nil {
		return site.Report{}, fmt.Errorf("load templates: %w", err)
	}
	compiler := searchindex.NewCompiler(searchindex.Config{
		ShardSize:   a.cfg.Build.SearchShardSize,
		PopularTags: a.cfg.Build.PopularTags,
	}, searchindex.NewCodec(a.cfg.Build.XORKey), a.clock, nil)

	var (
		output    storage.BlobStore = a.output
		publisher site.Publisher    = a.publisher
	)
	if opts.DryRun {
		output = memorystorage.NewBlobStore()
		publisher = memorypublisher.New()
		a.logger.Info("dry run: artifacts are rendered in memory only")
	}

	builder, err := site.New(site.Config{
		SiteName:     a.cfg.Build.SiteName,
		BaseURL:      a.cfg.Build.SiteURL,
		PerPage:      a.cfg.Build.PerPage,
		RelatedLimit: a.cfg.Build.RelatedLimit,
		FeedItems:    a.cfg.Build.FeedItems,
		AssetsDir:    a.cfg.Assets.Dir,
	}, site.Deps{
		Source:    a.records,
		Renderer:  renderer,
		Output:    output,
		Compiler:  compiler,
		Publisher: publisher,
		IDs:       uuid.New(),
		Clock:     a.clock,
		Env:       os.LookupEnv,
		Logger:    a.logger.Named("site"),
	})
	if err != nil {
		return site.Report{}, err
	}
	report, err := builder.Build(ctx)
	a.flushMetrics()
	return report, err
}

// ScrubOptions controls a scrub run.
type ScrubOptions struct {
	// Learn refreshes signatures from the known placeholder URLs and forces
	// network checks instead of cached verdicts.
	Learn bool
	// MaxCheck limits how many records are inspected; 0 means all.
	MaxCheck int
}

// ScrubReport summarizes a scrub run.
type ScrubReport struct {
	placeholder.ScrubResult
	Learned    int
	Signatures int
	CachedURLs int
	Saved      bool
}

// Scrub removes placeholder sample images from the record bundle and
// persists the detector state.
func (a *App) Scrub(ctx context.Context, opts ScrubOptions) (ScrubReport, error) {
	unlock, err := a.lock()
	if err != nil {
		return ScrubReport{}, err
	}
	defer unlock()

	store := placeholder.Load(a.cfg.Detector.SignatureFile, a.cfg.Detector.CacheFile, a.logger.Named("placeholder"))
	prober := ratelimit.Wrap(collyfetcher.New(collyfetcher.Config{
		UserAgent: a.cfg.Detector.UserAgent,
		Timeout:   a.cfg.Detector.Timeout,
	}), ratelimit.New(ratelimit.Config{
		DefaultRPS:   a.cfg.Detector.RatePerHost,
		DefaultBurst: a.cfg.Detector.Burst,
	}))
	det := placeholder.NewDetector(store, prober, sha256.NewLimited(a.cfg.Detector.PrefixBytes),
		placeholder.WithLearning(opts.Learn),
		placeholder.WithPrefixBytes(a.cfg.Detector.PrefixBytes),
		placeholder.WithLogger(a.logger.Named("detector")),
	)

	var report ScrubReport
	if opts.Learn {
		known := a.cfg.Detector.KnownURLs
		if len(known) == 0 {
			known = placeholder.KnownURLs
		}
		report.Learned = det.Learn(ctx, known)
	}

	b, err := a.records.Load(ctx)
	if err != nil {
		return ScrubReport{}, fmt.Errorf("load records: %w", err)
	}
	report.ScrubResult = placeholder.Scrub(ctx, det, b.Rows, opts.MaxCheck)
	if report.Changed > 0 {
		b.Meta.ChunkSize = a.cfg.Data.ShardSize
		if err := a.records.Save(ctx, b); err != nil {
			return ScrubReport{}, fmt.Errorf("save records: %w", err)
		}
		report.Saved = true
	}

	if err := store.Save(a.clock.Now()); err != nil {
		return ScrubReport{}, fmt.Errorf("save detector state: %w", err)
	}
	report.Signatures = len(store.Hashes())
	report.CachedURLs = store.CachedURLs()
	a.flushMetrics()
	a.logger.Info("scrub complete",
		zap.Int("checked", report.Checked),
		zap.Int("changed", report.Changed),
		zap.Int("removed", report.Removed),
		zap.Int("learned", report.Learned),
	)
	return report, nil
}

// Serve previews the local output directory until ctx is canceled.
func (a *App) Serve(ctx context.Context) error {
	return server.New(a.cfg.Output.Dir, a.cfg.Server.Port, a.logger.Named("server")).Run(ctx)
}

// lock guards the data directory for the duration of a run.
func (a *App) lock() (func(), error) {
	l := statelock.New(a.cfg.Data.Dir)
	if err := l.Acquire(); err != nil {
		if errors.Is(err, statelock.ErrLocked) {
			return nil, fmt.Errorf("another build or scrub is running: %w", err)
		}
		return nil, err
	}
	return func() {
		if err := l.Release(); err != nil {
			a.logger.Warn("failed to release state lock", zap.Error(err))
		}
	}, nil
}

func (a *App) flushMetrics() {
	if a.cfg.Metrics.Textfile == "" {
		return
	}
	if err := metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
		a.logger.Warn("metrics textfile write failed", zap.Error(err))
	}
}

// Close gracefully shuts down all services in the App container.
func (a *App) Close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("publisher close failed", zap.Error(err))
		}
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	a.pgSource.Close()
	_ = a.logger.Sync()
}
