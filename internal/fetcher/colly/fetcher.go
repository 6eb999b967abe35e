// Package collyfetcher implements crawl.Client using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
	"golang.org/x/net/proxy"

	"github.com/JakeFAU/gallery-crawler/internal/crawl"
)

// DefaultUserAgent is sent with every request unless overridden.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.14; rv:68.0) Gecko/20100101 Firefox/68.0"

// Config controls the shared collector.
type Config struct {
	UserAgent string
	// ProxyEnabled routes every request through the SOCKS5 proxy at
	// ProxyAddress ("host:port").
	ProxyEnabled bool
	ProxyAddress string
	// Timeout bounds a single request. Zero means no timeout.
	Timeout time.Duration
	// MaxBodyBytes caps response bodies. Zero means unlimited.
	MaxBodyBytes int
}

// Waiter delays a request, typically for politeness rate limiting.
type Waiter interface {
	Wait(ctx context.Context, url string) error
}

// Fetcher implements crawl.Client on top of one lazily built colly
// collector. Every request shares its connection pool, cookie jar and proxy.
type Fetcher struct {
	cfg     Config
	limiter Waiter
	logger  *zap.Logger

	once    sync.Once
	base    *colly.Collector
	initErr error
}

// New builds a Fetcher. The collector is created on the first Get.
func New(cfg Config, limiter Waiter, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	return &Fetcher{
		cfg:     cfg,
		limiter: limiter,
		logger:  logger,
	}
}

// Get executes a single HTTP GET. HTTP error statuses are returned as a
// Response; only transport failures produce an error.
func (f *Fetcher) Get(ctx context.Context, url string) (crawl.Response, error) {
	base, err := f.collector()
	if err != nil {
		return crawl.Response{}, err
	}
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, url); err != nil {
			return crawl.Response{}, fmt.Errorf("wait for rate limiter: %w", err)
		}
	}

	var (
		result   crawl.Response
		fetchErr error
	)
	start := time.Now()
	c := base.Clone()
	f.configureHooks(c, start, &result, &fetchErr)
	if err := f.runCollector(ctx, c, url, &fetchErr); err != nil {
		return crawl.Response{}, err
	}
	return result, nil
}

func (f *Fetcher) collector() (*colly.Collector, error) {
	f.once.Do(func() {
		f.base, f.initErr = f.buildCollector()
	})
	return f.base, f.initErr
}

func (f *Fetcher) buildCollector() (*colly.Collector, error) {
	f.logger.Info("initializing http client",
		zap.Bool("proxy", f.cfg.ProxyEnabled),
		zap.String("proxy_address", f.cfg.ProxyAddress),
	)
	transport, err := newHTTPTransport(f.cfg)
	if err != nil {
		return nil, err
	}
	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
		colly.UserAgent(f.cfg.UserAgent),
		colly.MaxBodySize(f.cfg.MaxBodyBytes),
	)
	c.WithTransport(transport)
	c.SetRequestTimeout(f.cfg.Timeout)
	return c, nil
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

func (f *Fetcher) configureHooks(hooks collectorHooks, start time.Time, result *crawl.Response, fetchErr *error) {
	hooks.OnResponse(func(r *colly.Response) {
		*result = crawl.Response{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})
	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, c *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- c.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		return nil
	}
}

func newHTTPTransport(cfg Config) (*http.Transport, error) {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
	if !cfg.ProxyEnabled {
		return transport, nil
	}

	if cfg.ProxyAddress == "" {
		return nil, errors.New("proxy address is required when proxy is enabled")
	}
	socks, err := proxy.SOCKS5("tcp", cfg.ProxyAddress, nil, dialer)
	if err != nil {
		return nil, fmt.Errorf("create socks5 dialer: %w", err)
	}
	contextDialer, ok := socks.(proxy.ContextDialer)
	if !ok {
		return nil, errors.New("socks5 dialer does not support contexts")
	}
	transport.Proxy = nil
	transport.DialContext = contextDialer.DialContext
	return transport, nil
}
