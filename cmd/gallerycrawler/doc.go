// Package main hosts the gallery crawler entrypoint.
//
// Architecture overview:
//   - Pacing: a scheduler turns manual "next" requests and, with auto-play on, a periodic timer into advance
//     requests delivered through a single-slot channel.
//   - Crawl: the fetcher blocks on that channel, then runs one gated cycle (listing page, gallery page, image)
//     through a shared colly client, optionally via a SOCKS5 proxy. Each step reports coarse progress; the cycle
//     ends with the downloaded image or a failure.
//   - Consumer: the app records the latest image and error, pauses auto-play after failures, and fans progress
//     events out to zap logs and Prometheus collectors.
//   - Control: stdin commands and, when enabled, the chi HTTP API (/v1/status, /v1/next, /v1/autoplay,
//     /v1/save, /metrics).
//
// Quick checklist:
//   - Start the SOCKS proxy (default 127.0.0.1:9150) or pass --no-proxy.
//   - Run locally: go run ./cmd/gallerycrawler run --autoplay --interval 5
//   - Configure via YAML (--config) or GALLERY_* env vars, e.g. GALLERY_PACING_INTERVAL_SECONDS=2.5.
package main
