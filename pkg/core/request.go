package core

import "net/url"

// Request describes one HTTP call to an exchange. A fresh Request is
// built for every call and owns its own header set, so nothing mutable
// is shared between concurrent queries.
type Request struct {
	Method  string            `json:"method"`
	Path    string            `json:"path"`
	Query   url.Values        `json:"query,omitempty"`
	Body    string            `json:"body,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	// RequireAuth marks requests that must be signed before dispatch.
	RequireAuth bool `json:"require_auth"`
}

// NewRequest creates a Request for the given method and path. The path
// must not contain a query string; use SetQuery.
func NewRequest(method, path string) *Request {
	return &Request{
		Method:  method,
		Path:    path,
		Query:   make(url.Values),
		Headers: make(map[string]string),
	}
}

// SetQuery sets a query parameter and returns the request for chaining.
func (r *Request) SetQuery(key, value string) *Request {
	if r.Query == nil {
		r.Query = make(url.Values)
	}
	r.Query.Set(key, value)
	return r
}

// SetHeader sets a header and returns the request for chaining.
func (r *Request) SetHeader(key, value string) *Request {
	if r.Headers == nil {
		r.Headers = make(map[string]string)
	}
	r.Headers[key] = value
	return r
}

// SetBody sets the raw request body and returns the request for
// chaining. The body is kept as the exact bytes that will be signed and
// transmitted.
func (r *Request) SetBody(body string) *Request {
	r.Body = body
	return r
}

// SetRequireAuth marks the request as requiring a signature.
func (r *Request) SetRequireAuth(require bool) *Request {
	r.RequireAuth = require
	return r
}

// FullPath returns the path including the encoded query string. The
// same encoding is used for signing and for the wire, so the two can
// never diverge by accident.
func (r *Request) FullPath() string {
	if len(r.Query) == 0 {
		return r.Path
	}
	return r.Path + "?" + r.Query.Encode()
}
