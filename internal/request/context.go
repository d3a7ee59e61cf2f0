// Package request parses an incoming HTTP request into the pieces the
// handlers dispatch on: the path split into segments, a closed verb set,
// the session token cookie and the "key: value" line body.
package request

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// Verb is the closed set of HTTP methods the server distinguishes.
type Verb string

// Verbs.
const (
	GET    Verb = "GET"
	POST   Verb = "POST"
	PUT    Verb = "PUT"
	DELETE Verb = "DELETE"
	HEAD   Verb = "HEAD"
	OTHER  Verb = "OTHER"
)

// ParseVerb maps an HTTP method onto a Verb. Unknown methods become OTHER.
func ParseVerb(method string) Verb {
	switch v := Verb(strings.ToUpper(method)); v {
	case GET, POST, PUT, DELETE, HEAD:
		return v
	default:
		return OTHER
	}
}

// Fields is a parsed request body. A repeated key keeps its last value.
type Fields map[string]string

// Get returns the value for key and whether it was present.
func (f Fields) Get(key string) (string, bool) {
	v, ok := f[key]
	return v, ok
}

// Context is the per-request view handed to handlers. It is not safe to
// share across requests.
type Context struct {
	Path     string
	Segments []string
	Verb     Verb

	token    string
	hasToken bool

	body     io.Reader
	bodyOnce sync.Once
	fields   Fields
	bodyErr  error
}

// Parse builds a Context from r. The session token is read from the cookie
// named cookieName. The body is not read until Body is called.
func Parse(r *http.Request, cookieName string) *Context {
	c := &Context{
		Path:     r.URL.Path,
		Segments: SplitPath(r.URL.Path),
		Verb:     ParseVerb(r.Method),
		body:     r.Body,
	}
	if cookie, err := r.Cookie(cookieName); err == nil {
		c.token = cookie.Value
		c.hasToken = true
	}
	return c
}

// SplitPath splits a URL path on "/" and drops empty segments, so
// "/api//graphs/" yields ["api", "graphs"].
func SplitPath(path string) []string {
	parts := strings.Split(path, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Segment returns the i-th path segment, or "" when the path is shorter.
func (c *Context) Segment(i int) string {
	if i < 0 || i >= len(c.Segments) {
		return ""
	}
	return c.Segments[i]
}

// Token returns the session token cookie value, or "" when absent.
func (c *Context) Token() string { return c.token }

// HasToken reports whether the request carried a session cookie.
func (c *Context) HasToken() bool { return c.hasToken }

// Body reads and parses the request body on first call and returns the
// same result afterwards.
func (c *Context) Body() (Fields, error) {
	c.bodyOnce.Do(func() {
		if c.body == nil {
			c.fields = Fields{}
			return
		}
		raw, err := io.ReadAll(c.body)
		if err != nil {
			c.bodyErr = fmt.Errorf("reading request body: %w", err)
			return
		}
		c.fields = ParseFields(string(raw))
	})
	return c.fields, c.bodyErr
}

// ParseFields parses "key: value" lines. The key ends at the first ": ";
// lines without one are skipped. A trailing "\r" is trimmed from each line.
func ParseFields(body string) Fields {
	fields := Fields{}
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSuffix(line, "\r")
		key, value, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}
		fields[key] = value
	}
	return fields
}
