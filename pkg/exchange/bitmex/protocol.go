package bitmex

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tally/pkg/core"
)

const (
	// ProductionURL is the live BitMEX REST endpoint.
	ProductionURL = "https://www.bitmex.com"
	// SandboxURL is the BitMEX testnet REST endpoint.
	SandboxURL = "https://testnet.bitmex.com"

	apiPrefix = "/api/v1/"

	// signatureValidity is how long a computed signature stays
	// acceptable to the exchange.
	signatureValidity = 20 * time.Second

	// nativeSettlementSymbol is the exchange-native currency all
	// wallet amounts are denominated in.
	nativeSettlementSymbol = "XBt"
)

var _ core.Protocol = (*Protocol)(nil)

// Protocol implements core.Protocol for BitMEX: request construction,
// HMAC signing, and response decoding. The endpoint tables are owned by
// the instance so adapters can vary them independently.
type Protocol struct {
	// privateEndpoints require a signature.
	privateEndpoints map[string]struct{}
	// pathOnlySigned endpoints are signed over the bare path even when
	// the request itself carries a query string. BitMEX verifies
	// user/wallet this way; it is per-endpoint configuration, not a
	// bug.
	pathOnlySigned map[string]struct{}
}

// NewProtocol creates a Protocol with the standard BitMEX endpoint
// tables.
func NewProtocol() *Protocol {
	return &Protocol{
		privateEndpoints: map[string]struct{}{
			"user":               {},
			"user/wallet":        {},
			"user/walletHistory": {},
		},
		pathOnlySigned: map[string]struct{}{
			"user/wallet": {},
		},
	}
}

// Name returns the protocol identifier "bitmex".
func (p *Protocol) Name() string {
	return "bitmex"
}

// Version returns the BitMEX API version string.
func (p *Protocol) Version() string {
	return "1"
}

// BaseURL returns the REST base URL for the given environment.
func (p *Protocol) BaseURL(sandbox bool) string {
	if sandbox {
		return SandboxURL
	}
	return ProductionURL
}

// SupportedOperations returns the operations this protocol supports.
func (p *Protocol) SupportedOperations() []core.Operation {
	return []core.Operation{
		core.OpGetAccount,
		core.OpGetWalletBalance,
		core.OpGetWalletHistory,
	}
}

// RateLimits returns the BitMEX request budget for authenticated
// callers.
func (p *Protocol) RateLimits() core.RateLimitConfig {
	return core.RateLimitConfig{
		RequestsPerMinute: 120,
		Burst:             30,
	}
}

// BuildRequest constructs the HTTP request for the given operation.
func (p *Protocol) BuildRequest(op core.Operation, params core.Params) (*core.Request, error) {
	switch op {
	case core.OpGetAccount:
		return p.newEndpointRequest(http.MethodGet, "user")

	case core.OpGetWalletBalance:
		req, err := p.newEndpointRequest(http.MethodGet, "user/wallet")
		if err != nil {
			return nil, err
		}
		currency := params["currency"]
		if currency == "" {
			currency = nativeSettlementSymbol
		}
		req.SetQuery("currency", currency)
		return req, nil

	case core.OpGetWalletHistory:
		req, err := p.newEndpointRequest(http.MethodGet, "user/walletHistory")
		if err != nil {
			return nil, err
		}
		if count := params["count"]; count != "" {
			req.SetQuery("count", count)
		}
		return req, nil

	default:
		return nil, fmt.Errorf("unsupported operation: %s", op)
	}
}

// newEndpointRequest builds a request for the named endpoint,
// validating the verb. An unknown verb is adapter misconfiguration and
// fails immediately.
func (p *Protocol) newEndpointRequest(verb, endpoint string) (*core.Request, error) {
	switch verb {
	case http.MethodGet, http.MethodPost, http.MethodPut:
	default:
		return nil, fmt.Errorf("given verb %q is not an allowed HTTP verb", verb)
	}

	req := core.NewRequest(verb, apiPrefix+endpoint)
	if _, private := p.privateEndpoints[endpoint]; private {
		req.SetRequireAuth(true)
	}
	return req, nil
}

// SignRequest computes the request signature and attaches the BitMEX
// auth headers. The expiry is both transmitted and part of the signed
// material.
func (p *Protocol) SignRequest(req *core.Request, creds *core.Credentials, expires int64) error {
	if creds == nil || len(creds.Secret) == 0 {
		return core.ErrNoCredentials
	}

	endpoint := strings.TrimPrefix(req.Path, apiPrefix)
	if _, private := p.privateEndpoints[endpoint]; !private {
		return nil
	}

	signaturePath := req.FullPath()
	if _, pathOnly := p.pathOnlySigned[endpoint]; pathOnly {
		signaturePath = req.Path
	}

	req.SetHeader("api-key", creds.APIKey)
	req.SetHeader("api-signature", Sign(creds.Secret, req.Method, signaturePath, expires, req.Body))
	req.SetHeader("api-expires", strconv.FormatInt(expires, 10))

	if req.Body != "" {
		req.SetHeader("Content-Type", "application/json")
		req.SetHeader("Content-Length", strconv.Itoa(len(req.Body)))
	}
	return nil
}

// Sign computes the BitMEX request signature: hex HMAC-SHA256 over the
// uppercased verb, the path (query string included unless the endpoint
// is path-only signed), the expiry as decimal seconds since epoch, and
// the raw body. It is a pure function of its inputs.
func Sign(secret []byte, verb, path string, expires int64, body string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(strings.ToUpper(verb) + path + strconv.FormatInt(expires, 10) + body))
	return hex.EncodeToString(mac.Sum(nil))
}

// allowedStatuses are HTTP statuses whose bodies are worth decoding:
// 200 for success and 401 because BitMEX returns a structured error
// envelope with it.
var allowedStatuses = map[int]struct{}{
	http.StatusOK:           {},
	http.StatusUnauthorized: {},
}

// ParseResponse checks the status against the allow-list and decodes
// the body, surfacing exchange-reported errors as RemoteError.
func (p *Protocol) ParseResponse(status int, body []byte) (*core.Document, error) {
	if _, ok := allowedStatuses[status]; !ok {
		return nil, core.NewRemoteErrorWithStatus(
			p.Name(),
			status,
			fmt.Sprintf("API request failed with HTTP status code %d", status),
		)
	}
	return core.DecodeDocument(p.Name(), body)
}
