package gallery

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// Defaults matching the listing site's markup.
const (
	DefaultListingSelector = "div.main-column div.cards-content div.slot.type-post " +
		"article.post.card.type-post a.card-img-link[itemprop=image]"
	DefaultGalleryMarker = "CHIVE_GALLERY_ITEMS"
)

const (
	defaultItemHTML = "<figure />"
	defaultItemType = "attachment"
	gifItemType     = "gif"
	gifSrcAttr      = "data-gifsrc"
)

var (
	// ErrNoEmbeddedData means the gallery marker or its object is missing.
	ErrNoEmbeddedData = errors.New("no embedded gallery data found")
	// ErrMalformedData means the embedded object is not usable.
	ErrMalformedData = errors.New("malformed embedded gallery data")
)

// Config selects the markup the Parser looks for.
type Config struct {
	ListingSelector string
	GalleryMarker   string
}

// Parser implements crawl.Parser. It holds no state between calls.
type Parser struct {
	selector string
	marker   string
	logger   *zap.Logger
}

// NewParser builds a Parser, filling empty Config fields with defaults.
func NewParser(cfg Config, logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(cfg.ListingSelector) == "" {
		cfg.ListingSelector = DefaultListingSelector
	}
	if strings.TrimSpace(cfg.GalleryMarker) == "" {
		cfg.GalleryMarker = DefaultGalleryMarker
	}
	return &Parser{
		selector: cfg.ListingSelector,
		marker:   cfg.GalleryMarker,
		logger:   logger,
	}
}

// ListingLinks returns the href of every card link on a listing page, in
// document order. A page without cards yields an empty slice.
func (p *Parser) ListingLinks(html string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse listing document: %w", err)
	}
	links := []string{}
	doc.Find(p.selector).Each(func(_ int, sel *goquery.Selection) {
		if href, ok := sel.Attr("href"); ok {
			links = append(links, href)
		}
	})
	return links, nil
}

type galleryItem struct {
	HTML string
	Type string
}

// decodeItem reads an item field by field. A missing or non-string field
// falls back to its default without discarding the other.
func decodeItem(raw json.RawMessage) galleryItem {
	item := galleryItem{HTML: defaultItemHTML, Type: defaultItemType}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return item
	}
	stringField(fields, "html", &item.HTML)
	stringField(fields, "type", &item.Type)
	return item
}

func stringField(fields map[string]json.RawMessage, key string, dst *string) {
	raw, ok := fields[key]
	if !ok {
		return
	}
	v := *dst
	if err := json.Unmarshal(raw, &v); err == nil {
		*dst = v
	}
}

// GalleryImages returns the normalized image URLs of every item in the
// embedded gallery object.
func (p *Parser) GalleryImages(html string) ([]string, error) {
	blob, ok := FindBalancedJSON(html, p.marker)
	if !ok {
		p.logger.Warn("no embedded gallery data found",
			zap.String("marker", p.marker),
			zap.Int("html_bytes", len(html)),
		)
		return nil, ErrNoEmbeddedData
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(blob), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedData, err)
	}
	rawItems, ok := doc["items"]
	if !ok {
		return nil, fmt.Errorf("%w: no items key", ErrMalformedData)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(rawItems, &items); err != nil {
		return nil, fmt.Errorf("%w: items is not an array", ErrMalformedData)
	}

	images := []string{}
	for _, raw := range items {
		srcs, err := itemSources(decodeItem(raw))
		if err != nil {
			return nil, err
		}
		for _, src := range srcs {
			if normalized, ok := normalizeImageURL(src); ok {
				images = append(images, normalized)
			}
		}
	}
	return images, nil
}

func itemSources(item galleryItem) ([]string, error) {
	attr := "src"
	if item.Type == gifItemType {
		attr = gifSrcAttr
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(item.HTML))
	if err != nil {
		return nil, fmt.Errorf("parse gallery item fragment: %w", err)
	}
	var srcs []string
	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		if src, ok := sel.Attr(attr); ok {
			srcs = append(srcs, src)
		}
	})
	return srcs, nil
}

// normalizeImageURL keeps scheme, host name and path, dropping port, query
// and fragment. Relative or unparseable URLs are rejected.
func normalizeImageURL(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Hostname() == "" {
		return "", false
	}
	return u.Scheme + "://" + u.Hostname() + u.EscapedPath(), true
}
