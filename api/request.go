package api

import "net/url"

// Request describes one outbound call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any

	// SkipAuth marks unauthenticated routes. No bearer header is attached
	// and a 401 is surfaced directly instead of triggering renewal.
	SkipAuth bool
}
