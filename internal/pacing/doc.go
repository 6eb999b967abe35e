// Package pacing decides when the crawl may advance.
//
// A Scheduler turns manual "next" requests and, while auto-play is enabled, a
// periodic timer into advance Signals. Signals travel through a Channel with
// room for a single pending request; the crawl Fetcher blocks on
// Channel.Await and only resumes on a complete advance request. The
// Scheduler never touches crawl state and the Fetcher never decides when to
// run.
package pacing
