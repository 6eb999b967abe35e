package crawl

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) Get(ctx context.Context, url string) (Response, error) {
	args := m.Called(ctx, url)
	return args.Get(0).(Response), args.Error(1) //nolint:wrapcheck
}

type mockParser struct {
	mock.Mock
}

func (m *mockParser) ListingLinks(html string) ([]string, error) {
	args := m.Called(html)
	links, _ := args.Get(0).([]string)
	return links, args.Error(1) //nolint:wrapcheck
}

func (m *mockParser) GalleryImages(html string) ([]string, error) {
	args := m.Called(html)
	images, _ := args.Get(0).([]string)
	return images, args.Error(1) //nolint:wrapcheck
}

// keepOrder leaves queues in insertion order so tests can predict pops.
func keepOrder(int, func(i, j int)) {}

func ok(url, body string) Response {
	return Response{URL: url, StatusCode: 200, Body: []byte(body)}
}
