package core

// Protocol defines the interface for exchange-specific wire protocol
// implementations: request building, authentication, and response
// decoding. A Protocol is stateless; everything per-call lives in the
// Request it builds.
type Protocol interface {
	// Name returns the exchange identifier (e.g. "bitmex").
	Name() string

	// Version returns the API version being used.
	Version() string

	// BaseURL returns the API base URL for the given environment.
	BaseURL(sandbox bool) string

	// BuildRequest constructs an HTTP request for the specified
	// operation. Passing an unsupported operation or one that would
	// need a disallowed HTTP verb is a programmer error and fails
	// immediately.
	BuildRequest(op Operation, params Params) (*Request, error)

	// SignRequest computes the authentication signature over the
	// request and the given expiry and attaches the auth headers. The
	// signature is deterministic for fixed inputs.
	SignRequest(req *Request, creds *Credentials, expires int64) error

	// ParseResponse checks the HTTP status against the protocol's
	// allow-list and decodes the body into a Document, surfacing
	// exchange-reported error envelopes as RemoteError.
	ParseResponse(status int, body []byte) (*Document, error)

	// SupportedOperations returns the operations this protocol supports.
	SupportedOperations() []Operation

	// RateLimits returns the rate limiting configuration for this exchange.
	RateLimits() RateLimitConfig
}
