// Package gallery extracts crawl work from the listing site's HTML.
//
// Listing pages are searched with a CSS selector for the card links that lead
// to gallery sub-pages. Gallery sub-pages carry their items as a JSON object
// inlined in a script; it is located by a text marker and cut out by brace
// balancing, then each item's HTML fragment is searched for image sources.
package gallery
