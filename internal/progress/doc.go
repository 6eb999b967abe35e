// Package progress turns crawl outcomes into events and fans them out to
// pluggable sinks. Emitting never blocks the caller: events are buffered and
// flushed in batches on a background goroutine.
package progress
