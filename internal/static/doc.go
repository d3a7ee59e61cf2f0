// Package static serves the single-page web client from a directory.
//
// Only files whose extension is in the allowed list are served directly.
// Anything else, including a missing file, receives the index page with
// status 200 so that client-side routing works. The Content-Type is taken
// from a fixed extension table rather than sniffed.
package static
