// Package api hosts the control HTTP server for a running crawl session.
// Routes:
//   - GET /healthz for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/status for the session snapshot.
//   - POST /v1/next to request one advance.
//   - PUT /v1/autoplay to change auto-play and its interval.
//   - POST /v1/save to persist the current image.
package api
