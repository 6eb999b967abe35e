// Package crawl implements the gated four-stage crawl state machine.
//
// A Fetcher walks a paginated listing site one bounded unit of I/O at a time:
// listing pages yield sub-page links, sub-pages yield gallery image URLs and
// image URLs yield raw bytes. Each call to Step performs at most one network
// fetch and advances the stage in the cyclic order Idle, Page, SubPage,
// Image. Run wraps Step in a loop that only starts a cycle after a complete
// advance request has been received from a pacing Gate.
package crawl
