// Package auth provides accounts, sessions and ownership checks for
// Grapher Core.
//
// Accounts registers users, verifies their password against the stored
// salted hash and opens an in-memory session whose token the client
// presents on every later request.
//
// Gate answers the single authorization question the server asks: does
// the session behind this token belong to the user that owns this row?
// The check runs against the database on every call, so a deleted graph
// stops being reachable immediately.
package auth
