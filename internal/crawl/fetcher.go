package crawl

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Config controls the Fetcher.
type Config struct {
	// Pages is the full listing page list in index order. Idle refills the
	// page queue from it whenever the queue is empty.
	Pages []string
	// Shuffle randomizes queue order on fill. Defaults to rand.Shuffle.
	Shuffle ShuffleFunc
}

// Fetcher owns one crawl session: the three work queues, the current stage
// and whether a gated cycle is in progress. It is not safe for concurrent
// use; Step and Run must be driven from a single goroutine.
type Fetcher struct {
	pages    *WorkQueue
	subPages *WorkQueue
	images   *WorkQueue
	stage    Stage
	running  bool

	listing []string
	shuffle ShuffleFunc
	client  Client
	parser  Parser
	logger  *zap.Logger
}

// New builds a Fetcher in StageIdle with empty queues.
func New(cfg Config, client Client, parser Parser, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	shuffle := cfg.Shuffle
	if shuffle == nil {
		shuffle = rand.Shuffle
	}
	return &Fetcher{
		pages:    newWorkQueue("pages"),
		subPages: newWorkQueue("sub_pages"),
		images:   newWorkQueue("images"),
		stage:    StageIdle,
		listing:  append([]string(nil), cfg.Pages...),
		shuffle:  shuffle,
		client:   client,
		parser:   parser,
		logger:   logger,
	}
}

// Step performs one unit of work for the current stage and returns its
// outcome. On failure the stage and all queues are left untouched so the
// next gated run retries the same work.
func (f *Fetcher) Step(ctx context.Context) Outcome {
	start := time.Now()
	outcome, err := f.step(ctx, start)
	if err != nil {
		failed := FailedFrom(err)
		f.logger.Warn("crawl step failed",
			zap.Stringer("stage", f.stage),
			zap.String("kind", string(failed.ErrKind)),
			zap.Error(err),
		)
		return failed
	}
	return outcome
}

func (f *Fetcher) step(ctx context.Context, start time.Time) (Outcome, error) {
	switch f.stage {
	case StageIdle:
		return f.stepIdle()
	case StagePage:
		return f.stepPage(ctx, start)
	case StageSubPage:
		return f.stepSubPage(ctx, start)
	case StageImage:
		return f.stepImage(ctx, start)
	default:
		return Outcome{}, fmt.Errorf("unknown stage %d", f.stage)
	}
}

func (f *Fetcher) stepIdle() (Outcome, error) {
	if f.pages.Len() == 0 {
		f.logger.Info("initializing listing pages", zap.Int("pages", len(f.listing)))
		if err := f.pages.Fill(f.listing, f.shuffle); err != nil {
			return Outcome{}, err
		}
	}
	f.stage = StagePage
	return Progress(ProgressIdle), nil
}

func (f *Fetcher) stepPage(ctx context.Context, start time.Time) (Outcome, error) {
	if f.subPages.Len() == 0 {
		page, err := f.pages.Peek()
		if err != nil {
			return Outcome{}, err
		}
		html, err := f.fetchDocument(ctx, page)
		if err != nil {
			return Outcome{}, err
		}
		links, err := f.parser.ListingLinks(html)
		if err != nil {
			return Outcome{}, &ParseError{URL: page, Err: err}
		}
		f.pages.drop()
		if err := f.subPages.Fill(links, f.shuffle); err != nil {
			return Outcome{}, err
		}
		f.logger.Info("listing page parsed",
			zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
			zap.Int("sub_pages", len(links)),
			zap.String("page", page),
		)
	}
	f.stage = StageSubPage
	return Progress(ProgressPage), nil
}

func (f *Fetcher) stepSubPage(ctx context.Context, start time.Time) (Outcome, error) {
	if f.images.Len() == 0 {
		subPage, err := f.subPages.Peek()
		if err != nil {
			return Outcome{}, err
		}
		html, err := f.fetchDocument(ctx, subPage)
		if err != nil {
			return Outcome{}, err
		}
		images, err := f.parser.GalleryImages(html)
		if err != nil {
			return Outcome{}, &ParseError{URL: subPage, Err: err}
		}
		f.subPages.drop()
		if err := f.images.Fill(images, f.shuffle); err != nil {
			return Outcome{}, err
		}
		f.logger.Info("gallery page parsed",
			zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
			zap.Int("images", len(images)),
			zap.String("sub_page", subPage),
		)
	}
	f.stage = StageImage
	return Progress(ProgressSubPage), nil
}

func (f *Fetcher) stepImage(ctx context.Context, start time.Time) (Outcome, error) {
	image, err := f.images.Peek()
	if err != nil {
		return Outcome{}, err
	}
	resp, err := f.client.Get(ctx, image)
	if err != nil {
		return Outcome{}, &NetworkError{URL: image, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return Outcome{}, &NetworkError{URL: image, StatusCode: resp.StatusCode}
	}
	f.images.drop()
	f.logger.Info("image downloaded",
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
		zap.Int("bytes", len(resp.Body)),
		zap.String("image", image),
	)
	f.stage = StageIdle
	return Completed(resp.Body, image), nil
}

// fetchDocument GETs an HTML page. Anything other than 200 is a failure:
// error pages carry no listing cards or gallery data.
func (f *Fetcher) fetchDocument(ctx context.Context, url string) (string, error) {
	resp, err := f.client.Get(ctx, url)
	if err != nil {
		return "", &NetworkError{URL: url, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &NetworkError{URL: url, StatusCode: resp.StatusCode}
	}
	return string(resp.Body), nil
}

// Run drives gated crawl cycles until ctx ends (nil) or the gate fails.
// While no cycle is running it blocks on gate; once a complete advance
// request arrives the stage resets to Idle and Step is called repeatedly,
// each outcome being sent to out. Completed or Failed ends the cycle.
func (f *Fetcher) Run(ctx context.Context, gate Gate, out chan<- Outcome) error {
	for {
		if !f.running {
			signal, err := gate.Await(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("await pacing signal: %w", err)
			}
			f.logger.Info("received command to download photo", zap.String("source", signal.Source))
			f.running = true
			f.stage = StageIdle
		}

		outcome := f.Step(ctx)
		if outcome.Terminal() {
			f.running = false
			f.logger.Info("crawl cycle finished",
				zap.Stringer("outcome", outcome.Kind),
				zap.Int("pages", f.pages.Len()),
				zap.Int("sub_pages", f.subPages.Len()),
				zap.Int("images", f.images.Len()),
			)
		}

		select {
		case out <- outcome:
		case <-ctx.Done():
			return nil
		}
	}
}
