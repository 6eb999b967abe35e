package gallery

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const listingHTML = `<html><body>
<div class="main-column"><div class="cards-content">
  <div class="slot type-post"><article class="post card type-post">
    <a class="card-img-link" itemprop="image" href="https://site.example/gallery-one/">one</a>
  </article></div>
  <div class="slot type-post"><article class="post card type-post">
    <a class="card-img-link" itemprop="image" href="https://site.example/gallery-two/">two</a>
  </article></div>
  <div class="slot type-post"><article class="post card type-post">
    <a class="card-img-link" itemprop="image" href="https://site.example/gallery-three/">three</a>
    <a class="title-link" href="https://site.example/not-a-card/">title</a>
  </article></div>
</div></div>
<aside><a class="card-img-link" itemprop="image" href="https://site.example/sidebar/">ad</a></aside>
</body></html>`

func TestListingLinks(t *testing.T) {
	t.Parallel()

	p := NewParser(Config{}, nil)
	links, err := p.ListingLinks(listingHTML)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"https://site.example/gallery-one/",
		"https://site.example/gallery-two/",
		"https://site.example/gallery-three/",
	}, links)
}

func TestListingLinksNoCards(t *testing.T) {
	t.Parallel()

	p := NewParser(Config{}, nil)
	links, err := p.ListingLinks(`<html><body><p>nothing here</p></body></html>`)
	require.NoError(t, err)
	assert.NotNil(t, links)
	assert.Empty(t, links)
}

func TestListingLinksCustomSelector(t *testing.T) {
	t.Parallel()

	p := NewParser(Config{ListingSelector: "aside a"}, nil)
	links, err := p.ListingLinks(listingHTML)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://site.example/sidebar/"}, links)
}

func galleryPage(t *testing.T, items ...map[string]any) string {
	t.Helper()
	blob, err := json.Marshal(map[string]any{"items": items, "title": "Gallery {1}"})
	require.NoError(t, err)
	return `<html><head><script>window.CHIVE_GALLERY_ITEMS = ` + string(blob) +
		`;</script></head><body></body></html>`
}

func TestGalleryImagesGifAndDefault(t *testing.T) {
	t.Parallel()

	html := galleryPage(t,
		map[string]any{
			"type": "gif",
			"html": `<figure><img src="https://cdn.example/still.jpg" data-gifsrc="https://cdn.example/anim.gif?w=640#top"></figure>`,
		},
		map[string]any{
			"html": `<figure><img src="https://cdn.example/photo.jpg?quality=85&strip=all" data-gifsrc="https://cdn.example/ignored.gif"></figure>`,
		},
	)

	p := NewParser(Config{}, nil)
	images, err := p.GalleryImages(html)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://cdn.example/anim.gif",
		"https://cdn.example/photo.jpg",
	}, images)
}

func TestGalleryImagesItemDefaults(t *testing.T) {
	t.Parallel()

	html := galleryPage(t,
		map[string]any{},
		map[string]any{"type": "attachment", "html": `<img src="/relative.jpg">`},
		map[string]any{"html": `<p><img src="https://cdn.example:8443/a.png"><img alt="no src"></p>`},
		map[string]any{"type": 5, "html": `<img src="https://cdn.example/b.jpg">`},
		map[string]any{"type": "gif", "html": []string{"not", "markup"}},
	)

	p := NewParser(Config{}, nil)
	images, err := p.GalleryImages(html)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://cdn.example/a.png", "https://cdn.example/b.jpg"}, images)
}

func TestGalleryImagesErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		html    string
		wantErr error
	}{
		{"NoMarker", `<html><body>plain</body></html>`, ErrNoEmbeddedData},
		{"Unterminated", `<script>CHIVE_GALLERY_ITEMS = {"items": [</script>`, ErrNoEmbeddedData},
		{"MissingItems", `<script>CHIVE_GALLERY_ITEMS = {"things": []};</script>`, ErrMalformedData},
		{"ItemsNotArray", `<script>CHIVE_GALLERY_ITEMS = {"items": {"a": 1}};</script>`, ErrMalformedData},
		{"InvalidJSON", `<script>CHIVE_GALLERY_ITEMS = {items: 1};</script>`, ErrMalformedData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := NewParser(Config{}, nil)
			_, err := p.GalleryImages(tt.html)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestGalleryImagesLogsMissingBlob(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	p := NewParser(Config{GalleryMarker: "MY_MARKER"}, zap.New(core))
	_, err := p.GalleryImages(`<html></html>`)
	require.ErrorIs(t, err, ErrNoEmbeddedData)

	entries := logs.FilterMessage("no embedded gallery data found").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "MY_MARKER", entries[0].ContextMap()["marker"])
}

func TestDecodeItemFallsBackPerField(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want galleryItem
	}{
		{"BothStrings", `{"type":"gif","html":"<img>"}`, galleryItem{HTML: "<img>", Type: "gif"}},
		{"NumericType", `{"type":5,"html":"<img>"}`, galleryItem{HTML: "<img>", Type: defaultItemType}},
		{"ObjectHTML", `{"type":"gif","html":{"a":1}}`, galleryItem{HTML: defaultItemHTML, Type: "gif"}},
		{"NullFields", `{"type":null,"html":null}`, galleryItem{HTML: defaultItemHTML, Type: defaultItemType}},
		{"NotAnObject", `42`, galleryItem{HTML: defaultItemHTML, Type: defaultItemType}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, decodeItem(json.RawMessage(tt.raw)))
		})
	}
}

func TestNormalizeImageURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw    string
		want   string
		wantOK bool
	}{
		{"https://a.example/x/y.jpg?w=1#f", "https://a.example/x/y.jpg", true},
		{"  http://a.example/z.png  ", "http://a.example/z.png", true},
		{"https://a.example/with space.jpg", "https://a.example/with%20space.jpg", true},
		{"https://cdn.example:8443/b.jpg", "https://cdn.example/b.jpg", true},
		{"/relative.jpg", "", false},
		{"://bad", "", false},
	}
	for _, tt := range tests {
		got, ok := normalizeImageURL(tt.raw)
		assert.Equal(t, tt.wantOK, ok, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}
