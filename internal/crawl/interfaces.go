package crawl

import (
	"context"
	"time"

	"github.com/JakeFAU/gallery-crawler/internal/pacing"
)

// Response is what a Client returns for a GET.
type Response struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// Client issues GET requests. A single Client is shared by every stage so
// cookies and pooled connections survive across fetches.
type Client interface {
	Get(ctx context.Context, url string) (Response, error)
}

// Parser turns fetched HTML into the next stage's work.
type Parser interface {
	ListingLinks(html string) ([]string, error)
	GalleryImages(html string) ([]string, error)
}

// Gate blocks until a complete advance request arrives.
type Gate interface {
	Await(ctx context.Context) (pacing.Signal, error)
}
