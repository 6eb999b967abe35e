// Package app wires the crawl pipeline together and exposes the control
// operations shared by the CLI and the HTTP API.
package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/gallery-crawler/internal/clock/system"
	"github.com/JakeFAU/gallery-crawler/internal/config"
	"github.com/JakeFAU/gallery-crawler/internal/crawl"
	collyfetcher "github.com/JakeFAU/gallery-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/gallery-crawler/internal/gallery"
	"github.com/JakeFAU/gallery-crawler/internal/hash/sha256"
	"github.com/JakeFAU/gallery-crawler/internal/metrics"
	"github.com/JakeFAU/gallery-crawler/internal/pacing"
	"github.com/JakeFAU/gallery-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/gallery-crawler/internal/progress"
	"github.com/JakeFAU/gallery-crawler/internal/progress/sinks"
	"github.com/JakeFAU/gallery-crawler/internal/storage/local"
)

// ErrNoImage is returned by Save before any image has been downloaded.
var ErrNoImage = errors.New("no image downloaded yet")

// Saver persists a downloaded image. local.BlobStore satisfies it.
type Saver interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Hasher fingerprints image bytes.
type Hasher interface {
	Hash(data []byte) string
}

// Status is a point-in-time view of the crawl session.
type Status struct {
	SessionID       string    `json:"session_id"`
	AutoPlay        bool      `json:"auto_play"`
	IntervalSeconds float64   `json:"interval_seconds"`
	Running         bool      `json:"running"`
	Progress        float64   `json:"progress"`
	LastURL         string    `json:"last_url,omitempty"`
	LastSHA256      string    `json:"last_sha256,omitempty"`
	LastError       string    `json:"last_error,omitempty"`
	Images          int       `json:"images"`
	Failures        int       `json:"failures"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Deps are the collaborators NewWithDeps wires together. Nil Clock, Hasher,
// Registry and Metrics get production defaults.
type Deps struct {
	Client   crawl.Client
	Parser   crawl.Parser
	Saver    Saver
	Clock    pacing.Clock
	Hasher   Hasher
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Shuffle  crawl.ShuffleFunc
}

// App owns one crawl session and the goroutines that drive it.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	sessionID uuid.UUID
	clock     pacing.Clock

	signals   *pacing.Channel
	scheduler *pacing.Scheduler
	fetcher   *crawl.Fetcher
	hub       *progress.Hub
	saver     Saver
	hasher    Hasher
	registry  *prometheus.Registry
	metrics   *metrics.Metrics

	mu         sync.Mutex
	status     Status
	image      []byte
	cycleStart time.Time
}

// New builds an App with the colly client, goquery parser and local saver
// described by cfg.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(registry)
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	var waiter collyfetcher.Waiter
	if cfg.RateLimit.RPS > 0 {
		waiter = ratelimit.New(ratelimit.Config{
			RPS:   cfg.RateLimit.RPS,
			Burst: cfg.RateLimit.Burst,
		}, m.ObserveRateLimitDelay)
	}
	client := collyfetcher.New(collyfetcher.Config{
		UserAgent:    cfg.HTTP.UserAgent,
		ProxyEnabled: cfg.Proxy.Enabled,
		ProxyAddress: cfg.Proxy.Address,
		Timeout:      cfg.RequestTimeout(),
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
	}, waiter, logger.Named("http"))

	saver, err := local.New(local.Config{BaseDir: cfg.Storage.SaveDir})
	if err != nil {
		return nil, fmt.Errorf("init image store: %w", err)
	}

	return NewWithDeps(cfg, Deps{
		Client: m.InstrumentClient(client),
		Parser: gallery.NewParser(gallery.Config{
			ListingSelector: cfg.Site.ListingSelector,
			GalleryMarker:   cfg.Site.GalleryMarker,
		}, logger.Named("parser")),
		Saver:    saver,
		Registry: registry,
		Metrics:  m,
	}, logger)
}

// NewWithDeps builds an App around caller supplied collaborators.
func NewWithDeps(cfg config.Config, deps Deps, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Client == nil || deps.Parser == nil {
		return nil, errors.New("client and parser are required")
	}
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	if deps.Hasher == nil {
		deps.Hasher = sha256.New()
	}
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
	}
	if deps.Metrics == nil {
		m, err := metrics.New(deps.Registry)
		if err != nil {
			return nil, fmt.Errorf("init metrics: %w", err)
		}
		deps.Metrics = m
	}

	promSink, err := sinks.NewPrometheusSink(deps.Registry)
	if err != nil {
		return nil, fmt.Errorf("init progress metrics: %w", err)
	}
	hub := progress.NewHub(progress.Config{Logger: logger.Named("progress")},
		sinks.NewLogSink(logger.Named("progress")),
		promSink,
	)

	signals := pacing.NewChannel(logger.Named("pacing"))
	scheduler := pacing.NewScheduler(pacing.Config{
		AutoPlay:        cfg.Pacing.AutoPlay,
		IntervalSeconds: cfg.Pacing.IntervalSeconds,
	}, signals, deps.Clock, logger.Named("scheduler"))

	fetcher := crawl.New(crawl.Config{
		Pages:   gallery.ListingPages(cfg.Site.BaseURL, cfg.Site.TotalPages),
		Shuffle: deps.Shuffle,
	}, deps.Client, deps.Parser, logger.Named("fetcher"))

	sessionID := uuid.New()
	return &App{
		cfg:       cfg,
		logger:    logger,
		sessionID: sessionID,
		clock:     deps.Clock,
		signals:   signals,
		scheduler: scheduler,
		fetcher:   fetcher,
		hub:       hub,
		saver:     deps.Saver,
		hasher:    deps.Hasher,
		registry:  deps.Registry,
		metrics:   deps.Metrics,
		status:    Status{SessionID: sessionID.String(), UpdatedAt: deps.Clock.Now()},
	}, nil
}

// Registry returns the Prometheus registry holding the App's collectors.
func (a *App) Registry() *prometheus.Registry {
	return a.registry
}

// Metrics returns the HTTP and fetch collectors.
func (a *App) Metrics() *metrics.Metrics {
	return a.metrics
}

// Run drives the scheduler, the fetcher and the outcome consumer until ctx
// ends or one of them fails. It closes the pacing channel on return.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("starting crawl session",
		zap.String("session_id", a.sessionID.String()),
		zap.String("base_url", a.cfg.Site.BaseURL),
		zap.Int("pages", a.cfg.Site.TotalPages),
		zap.Bool("proxy", a.cfg.Proxy.Enabled),
		zap.Bool("auto_play", a.cfg.Pacing.AutoPlay),
	)
	defer a.signals.Close()

	outcomes := make(chan crawl.Outcome)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.scheduler.Run(ctx) //nolint:wrapcheck
	})
	g.Go(func() error {
		return a.fetcher.Run(ctx, observedGate{app: a}, outcomes) //nolint:wrapcheck
	})
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case outcome := <-outcomes:
				a.handle(outcome)
			}
		}
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("crawl session: %w", err)
	}
	return nil
}

// Close flushes progress events. Call it after Run returns.
func (a *App) Close(ctx context.Context) error {
	a.signals.Close()
	if err := a.hub.Close(ctx); err != nil {
		return fmt.Errorf("close progress hub: %w", err)
	}
	return nil
}

// observedGate records the start of each cycle before handing the signal to
// the fetcher.
type observedGate struct {
	app *App
}

func (g observedGate) Await(ctx context.Context) (pacing.Signal, error) {
	sig, err := g.app.signals.Await(ctx)
	if err != nil {
		return sig, err //nolint:wrapcheck
	}
	a := g.app
	now := a.clock.Now()
	a.mu.Lock()
	a.cycleStart = now
	a.status.Running = true
	a.status.Progress = 0
	a.status.UpdatedAt = now
	a.mu.Unlock()
	a.hub.Emit(progress.Event{
		SessionID: progress.UUIDToBytes(a.sessionID),
		TS:        now,
		Stage:     progress.StageSignal,
		Note:      sig.Source,
	})
	return sig, nil
}

func (a *App) handle(outcome crawl.Outcome) {
	now := a.clock.Now()
	pause := false
	var digest string
	if outcome.Kind == crawl.OutcomeCompleted {
		digest = a.hasher.Hash(outcome.Body)
	}

	a.mu.Lock()
	dur := now.Sub(a.cycleStart)
	if dur < 0 {
		dur = 0
	}
	a.status.UpdatedAt = now
	switch outcome.Kind {
	case crawl.OutcomeProgress:
		a.status.Progress = outcome.Percent
	case crawl.OutcomeCompleted:
		a.status.Running = false
		a.status.Progress = crawl.ProgressComplete
		a.status.LastURL = outcome.SourceURL
		a.status.LastSHA256 = digest
		a.status.LastError = ""
		a.status.Images++
		a.image = outcome.Body
	case crawl.OutcomeFailed:
		a.status.Running = false
		a.status.LastError = outcome.Message
		a.status.Failures++
		pause = a.cfg.Pacing.PauseOnError
	}
	a.mu.Unlock()

	a.hub.Emit(progress.FromOutcome(progress.UUIDToBytes(a.sessionID), now, outcome, dur))

	switch outcome.Kind {
	case crawl.OutcomeCompleted:
		a.logger.Info("image ready",
			zap.String("url", outcome.SourceURL),
			zap.Int("bytes", len(outcome.Body)),
			zap.String("sha256", digest),
			zap.Duration("cycle", dur),
		)
	case crawl.OutcomeFailed:
		a.logger.Warn("crawl cycle failed", zap.String("error", outcome.Message))
		if autoPlay, _ := a.scheduler.Settings(); pause && autoPlay {
			a.scheduler.SetAutoPlay(false)
			a.logger.Info("auto-play paused after failure; waiting for a manual advance")
		}
	}
}

// Next requests one manual advance.
func (a *App) Next() {
	a.scheduler.Next()
}

// SetAutoPlay toggles auto-play.
func (a *App) SetAutoPlay(enabled bool) {
	a.scheduler.SetAutoPlay(enabled)
	a.logger.Info("auto-play updated", zap.Bool("enabled", enabled))
}

// ToggleAutoPlay flips auto-play and returns the new setting.
func (a *App) ToggleAutoPlay() bool {
	enabled, _ := a.scheduler.Settings()
	a.SetAutoPlay(!enabled)
	return !enabled
}

// SetInterval changes the auto-play period in seconds.
func (a *App) SetInterval(seconds float64) error {
	if err := a.scheduler.SetInterval(seconds); err != nil {
		return fmt.Errorf("set interval: %w", err)
	}
	a.logger.Info("auto-play interval updated", zap.Float64("seconds", seconds))
	return nil
}

// Status returns a snapshot of the session.
func (a *App) Status() Status {
	autoPlay, interval := a.scheduler.Settings()
	a.mu.Lock()
	defer a.mu.Unlock()
	st := a.status
	st.AutoPlay = autoPlay
	st.IntervalSeconds = interval
	return st
}

// Save writes the most recent image under its URL basename and returns the
// stored location.
func (a *App) Save(ctx context.Context) (string, error) {
	a.mu.Lock()
	data := a.image
	sourceURL := a.status.LastURL
	a.mu.Unlock()

	if data == nil {
		return "", ErrNoImage
	}
	if a.saver == nil {
		return "", errors.New("image saving is not configured")
	}

	name := ImageName(sourceURL)
	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	uri, err := a.saver.PutObject(ctx, name, contentType, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("save image: %w", err)
	}
	a.logger.Info("image saved", zap.String("url", sourceURL), zap.String("location", uri))
	return uri, nil
}

// ImageName returns the last path segment of rawURL, or "image" when there
// is none.
func ImageName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "image"
	}
	name := path.Base(u.Path)
	switch name {
	case "", ".", "/", "..":
		return "image"
	}
	return name
}
