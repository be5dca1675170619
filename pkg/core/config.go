package core

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
)

// RateLimitConfig defines rate limiting parameters for an exchange.
type RateLimitConfig struct {
	// RequestsPerMinute is the maximum requests per minute.
	RequestsPerMinute int `json:"requests_per_minute"`
	// Burst allows temporary exceeding of the rate limit.
	Burst int `json:"burst"`
}

// Credentials holds API authentication material for one exchange
// account. They are created at adapter construction and are immutable
// for the adapter's lifetime.
type Credentials struct {
	// APIKey is the public API key identifier.
	APIKey string `json:"api_key"`
	// Secret is the private key material used for signing requests.
	Secret []byte `json:"-"`
}

// String returns a masked rendering safe for logging.
func (c *Credentials) String() string {
	return "Credentials{APIKey:" + maskKey(c.APIKey) + "}"
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}

// Config contains all configuration options for an exchange adapter.
// Note the absence of retry settings: a failed call surfaces
// immediately as a RemoteError and retry policy belongs to the caller.
type Config struct {
	Exchange    string       `json:"exchange" validate:"required"`
	Sandbox     bool         `json:"sandbox"`
	Credentials *Credentials `json:"credentials,omitempty"`

	// Timeout bounds every HTTP request.
	Timeout time.Duration `json:"timeout" validate:"min=1ms"`

	RateLimitRequests int           `json:"rate_limit_requests" validate:"min=1"`
	RateLimitPeriod   time.Duration `json:"rate_limit_period" validate:"min=1ms"`

	CacheEnabled bool          `json:"cache_enabled"`
	CacheTTL     time.Duration `json:"cache_ttl" validate:"min=0"`

	CircuitBreakerEnabled          bool          `json:"circuit_breaker_enabled"`
	CircuitBreakerFailThreshold    int           `json:"circuit_breaker_fail_threshold"`
	CircuitBreakerSuccessThreshold int           `json:"circuit_breaker_success_threshold"`
	CircuitBreakerTimeout          time.Duration `json:"circuit_breaker_timeout"`

	LogLevel string `json:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// DefaultConfig returns a Config with sensible defaults for the given
// exchange: 10s timeout, 120 requests/minute, 30s result cache, and a
// circuit breaker at 5 failures / 2 successes / 30s.
func DefaultConfig(exchange string) *Config {
	return &Config{
		Exchange: exchange,
		Sandbox:  false,
		Timeout:  10 * time.Second,

		RateLimitRequests: 120,
		RateLimitPeriod:   time.Minute,

		CacheEnabled: true,
		CacheTTL:     30 * time.Second,

		CircuitBreakerEnabled:          true,
		CircuitBreakerFailThreshold:    5,
		CircuitBreakerSuccessThreshold: 2,
		CircuitBreakerTimeout:          30 * time.Second,

		LogLevel: "info",
	}
}

var validate = validator.New()

// Validate checks the config for consistency.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.CircuitBreakerEnabled {
		if c.CircuitBreakerFailThreshold <= 0 {
			return errors.New("CircuitBreakerFailThreshold must be positive when enabled")
		}
		if c.CircuitBreakerSuccessThreshold <= 0 {
			return errors.New("CircuitBreakerSuccessThreshold must be positive when enabled")
		}
		if c.CircuitBreakerTimeout <= 0 {
			return errors.New("CircuitBreakerTimeout must be positive when enabled")
		}
	}
	return nil
}

// WithCredentials sets the API credentials and returns the config for chaining.
func (c *Config) WithCredentials(apiKey string, secret []byte) *Config {
	c.Credentials = &Credentials{APIKey: apiKey, Secret: secret}
	return c
}

// WithSandbox enables or disables sandbox mode and returns the config for chaining.
func (c *Config) WithSandbox(sandbox bool) *Config {
	c.Sandbox = sandbox
	return c
}

// WithTimeout sets the request timeout and returns the config for chaining.
func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.Timeout = timeout
	return c
}

// WithRateLimit sets the rate limiting parameters and returns the config for chaining.
func (c *Config) WithRateLimit(requests int, period time.Duration) *Config {
	c.RateLimitRequests = requests
	c.RateLimitPeriod = period
	return c
}

// WithCache enables or disables result caching with the specified TTL
// and returns the config for chaining.
func (c *Config) WithCache(enabled bool, ttl time.Duration) *Config {
	c.CacheEnabled = enabled
	c.CacheTTL = ttl
	return c
}
