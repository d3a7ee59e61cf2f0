// Package api implements the HTTP surface of Grapher Core.
//
// This package provides:
//   - /auth endpoints for registration, login, session validation and logout
//   - /api endpoints for listing, reading, creating, updating and deleting graphs
//   - /healthz for liveness and database reachability
//   - a static file fallback for the single-page client
//   - middleware (request ID, logging and request metrics, recovery, CORS, body limit)
//
// # Wire format
//
// Request bodies are "key: value" lines, parsed by package request. The
// session token travels in the "token" cookie. Successful writes answer with
// a short plain-text body; reads answer with JSON. Failures answer with an
// Error JSON object whose status mirrors the HTTP status.
//
// # Routing
//
// The first path segment picks the handler group. Inside a group every HTTP
// method is accepted, and an unknown second segment yields 404
// "Invalid route '<segment>'". Paths outside both groups are files.
package api
