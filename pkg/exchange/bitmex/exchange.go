package bitmex

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/rs/zerolog"

	"tally/internal/circuitbreaker"
	httpclient "tally/internal/http"
	"tally/internal/ratelimit"
	"tally/pkg/asset"
	"tally/pkg/core"
	"tally/pkg/exchange"
	"tally/pkg/messages"
	"tally/pkg/price"
)

// decCtx is the arithmetic context for valuations.
var decCtx = apd.BaseContext.WithPrecision(34)

// HistoryFetcher retrieves the complete raw wallet history list.
// BitMEX returns one unpaginated list; paginated sources plug in a
// strategy that walks pages and concatenates.
type HistoryFetcher func(ctx context.Context) ([]any, error)

// BitmexExchange implements the exchange.Exchange interface for one
// BitMEX account. Credentials are fixed at construction; nothing
// per-request is stored on the instance, so the serialization wrapper
// in pkg/session is only needed for result caching, not correctness of
// header state.
type BitmexExchange struct {
	config         *core.Config
	httpClient     *httpclient.Client
	rateLimiter    *ratelimit.Limiter
	circuitBreaker *circuitbreaker.Breaker
	logger         zerolog.Logger
	protocol       *Protocol
	normalizer     *Normalizer
	oracle         price.Oracle
	messenger      *messages.Aggregator
	fetchHistory   HistoryFetcher
}

// Option is a functional option for configuring the BitmexExchange.
type Option func(*Options)

// Options holds construction options for the BitmexExchange.
type Options struct {
	Logger         zerolog.Logger
	Oracle         price.Oracle
	Registry       *asset.Registry
	Messenger      *messages.Aggregator
	HistoryFetcher HistoryFetcher
	BaseURL        string
}

// WithLogger sets the adapter logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithOracle sets the spot price oracle used to value balances.
func WithOracle(p price.Oracle) Option {
	return func(o *Options) { o.Oracle = p }
}

// WithRegistry sets the asset registry symbols are resolved against.
func WithRegistry(r *asset.Registry) Option {
	return func(o *Options) { o.Registry = r }
}

// WithMessenger sets the aggregator receiving soft-failure warnings.
func WithMessenger(m *messages.Aggregator) Option {
	return func(o *Options) { o.Messenger = m }
}

// WithHistoryFetcher replaces the raw history retrieval strategy.
func WithHistoryFetcher(f HistoryFetcher) Option {
	return func(o *Options) { o.HistoryFetcher = f }
}

// WithBaseURL overrides the REST endpoint, mainly for tests against a
// local server.
func WithBaseURL(url string) Option {
	return func(o *Options) { o.BaseURL = url }
}

// New creates a BitmexExchange for the given configuration.
func New(config *core.Config, opts ...Option) (*BitmexExchange, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	options := &Options{
		Logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.Oracle == nil {
		options.Oracle = price.NewStaticOracle()
	}
	if options.Registry == nil {
		options.Registry = asset.NewDefaultRegistry()
	}
	if options.Messenger == nil {
		options.Messenger = messages.New()
	}

	protocol := NewProtocol()

	baseURL := options.BaseURL
	if baseURL == "" {
		baseURL = protocol.BaseURL(config.Sandbox)
	}

	client, err := httpclient.NewClient(&httpclient.Config{
		BaseURL: baseURL,
		Timeout: config.Timeout,
	}, options.Logger)
	if err != nil {
		return nil, fmt.Errorf("create http client: %w", err)
	}

	var rl *ratelimit.Limiter
	if config.RateLimitRequests > 0 {
		rl = ratelimit.New(config.RateLimitRequests, config.RateLimitPeriod)
	}

	var cb *circuitbreaker.Breaker
	if config.CircuitBreakerEnabled {
		cb = circuitbreaker.New(circuitbreaker.Config{
			FailThreshold:    config.CircuitBreakerFailThreshold,
			SuccessThreshold: config.CircuitBreakerSuccessThreshold,
			Timeout:          config.CircuitBreakerTimeout,
		})
	}

	e := &BitmexExchange{
		config:         config,
		httpClient:     client,
		rateLimiter:    rl,
		circuitBreaker: cb,
		logger:         options.Logger,
		protocol:       protocol,
		normalizer:     NewNormalizer(options.Registry),
		oracle:         options.Oracle,
		messenger:      options.Messenger,
	}
	e.fetchHistory = options.HistoryFetcher
	if e.fetchHistory == nil {
		e.fetchHistory = e.fetchWalletHistory
	}
	return e, nil
}

// Name returns the exchange identifier "bitmex".
func (e *BitmexExchange) Name() string {
	return e.protocol.Name()
}

// Version returns the BitMEX API version.
func (e *BitmexExchange) Version() string {
	return e.protocol.Version()
}

// Close releases the adapter's resources.
func (e *BitmexExchange) Close() error {
	return e.httpClient.Close()
}

// doRequest signs and dispatches one request, classifying network
// failures as RemoteError. No retries happen here; a failed call
// surfaces immediately.
func (e *BitmexExchange) doRequest(ctx context.Context, req *core.Request) (int, []byte, error) {
	if e.rateLimiter != nil {
		if err := e.rateLimiter.Wait(ctx); err != nil {
			return 0, nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	if e.circuitBreaker != nil && !e.circuitBreaker.Allow() {
		return 0, nil, core.NewRemoteError(e.Name(), "circuit breaker open")
	}

	if req.RequireAuth {
		expires := time.Now().Add(signatureValidity).Unix()
		if err := e.protocol.SignRequest(req, e.config.Credentials, expires); err != nil {
			return 0, nil, err
		}
	}

	e.logger.Debug().
		Str("method", req.Method).
		Str("path", req.FullPath()).
		Msg("bitmex api query")

	resp, err := e.httpClient.Execute(ctx, req)
	if e.circuitBreaker != nil {
		e.circuitBreaker.Record(err == nil)
	}
	if err != nil {
		return 0, nil, core.WrapRemoteError(e.Name(), "API request failed", err)
	}

	return resp.StatusCode(), resp.Bytes(), nil
}

// query runs one operation end to end and returns the decoded document.
func (e *BitmexExchange) query(ctx context.Context, op core.Operation, params core.Params) (*core.Document, error) {
	req, err := e.protocol.BuildRequest(op, params)
	if err != nil {
		return nil, err
	}
	status, body, err := e.doRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	return e.protocol.ParseResponse(status, body)
}

// queryMapping runs an operation whose response must be a JSON object.
func (e *BitmexExchange) queryMapping(ctx context.Context, op core.Operation, params core.Params) (core.Mapping, error) {
	doc, err := e.query(ctx, op, params)
	if err != nil {
		return nil, err
	}
	return doc.Mapping()
}

// queryList runs an operation whose response must be a JSON array.
func (e *BitmexExchange) queryList(ctx context.Context, op core.Operation, params core.Params) ([]any, error) {
	doc, err := e.query(ctx, op, params)
	if err != nil {
		return nil, err
	}
	return doc.Sequence()
}

// fetchWalletHistory is the default HistoryFetcher: the full wallet
// ledger in one unpaginated list.
func (e *BitmexExchange) fetchWalletHistory(ctx context.Context) ([]any, error) {
	return e.queryList(ctx, core.OpGetWalletHistory, nil)
}

// ValidateAPIKey probes the account endpoint and classifies the two
// rejection modes BitMEX distinguishes in its error text.
func (e *BitmexExchange) ValidateAPIKey(ctx context.Context) (bool, string, error) {
	_, err := e.queryMapping(ctx, core.OpGetAccount, nil)
	if err != nil {
		var remoteErr *core.RemoteError
		if errors.As(err, &remoteErr) {
			if strings.Contains(remoteErr.Message, "Invalid API Key") {
				return false, "provided API key is invalid", nil
			}
			if strings.Contains(remoteErr.Message, "Signature not valid") {
				return false, "provided API secret is invalid", nil
			}
		}
		return false, "", err
	}
	return true, "", nil
}

// QueryBalances retrieves the wallet balance for the settlement asset
// and values it at the oracle spot price. Any failure is fatal to the
// call; there is nothing partial to salvage in a single balance.
func (e *BitmexExchange) QueryBalances(ctx context.Context) (map[string]core.Balance, error) {
	wallet, err := e.queryMapping(ctx, core.OpGetWalletBalance, core.Params{
		"currency": nativeSettlementSymbol,
	})
	if err != nil {
		return nil, err
	}

	raw, err := wallet.Decimal("amount")
	if err != nil {
		return nil, fmt.Errorf("deserialize wallet balance: %w", err)
	}

	settlementAsset, err := e.normalizer.ResolveAsset(nativeSettlementSymbol)
	if err != nil {
		return nil, err
	}
	amount := fromNativeUnits(settlementAsset, raw)

	spotPrice, err := e.oracle.FindPrice(ctx, settlementAsset.Symbol)
	if err != nil {
		return nil, err
	}

	var value apd.Decimal
	if _, err := decCtx.Mul(&value, amount, spotPrice); err != nil {
		return nil, fmt.Errorf("compute valuation: %w", err)
	}

	e.logger.Debug().
		Str("currency", settlementAsset.Symbol).
		Str("amount", amount.String()).
		Str("value", value.String()).
		Msg("bitmex balance query result")

	return map[string]core.Balance{
		settlementAsset.Symbol: {Amount: *amount, Value: value},
	}, nil
}

// QueryMarginHistory retrieves realized margin positions closed inside
// the window. Records without a timestamp are retained: BitMEX omits
// the ledger timestamp on some PNL lines and dropping them would lose
// real results.
func (e *BitmexExchange) QueryMarginHistory(ctx context.Context, window core.TimeWindow) ([]core.MarginPosition, error) {
	records, err := e.fetchHistory(ctx)
	if err != nil {
		return nil, err
	}
	e.logger.Debug().Int("results_num", len(records)).Msg("bitmex margin history query")

	positions := make([]core.MarginPosition, 0, len(records))
	for _, raw := range records {
		rec, ok := rawMapping(raw)
		if !ok {
			e.softFailure(core.NewBadValueError("record", "expected mapping"), nil, "margin position")
			continue
		}

		if transactType, _ := rec.OptionalString("transactType"); transactType != transactTypeRealisedPNL {
			continue
		}

		ts, err := recordTimestamp(rec, "timestamp")
		if err != nil {
			e.softFailure(err, rec, "margin position")
			continue
		}
		if !window.Admits(ts, core.IncludeNullTimestamps) {
			continue
		}

		position, err := e.normalizer.MarginPositionFromRecord(rec)
		if err != nil {
			e.softFailure(err, rec, "margin position")
			continue
		}
		positions = append(positions, *position)
	}
	return positions, nil
}

// QueryDepositsWithdrawals retrieves asset movements inside the window.
// Movements must carry a timestamp; one without it is a soft
// deserialization failure, not a silently retained record.
func (e *BitmexExchange) QueryDepositsWithdrawals(ctx context.Context, window core.TimeWindow) ([]core.AssetMovement, error) {
	records, err := e.fetchHistory(ctx)
	if err != nil {
		return nil, err
	}
	e.logger.Debug().Int("results_num", len(records)).Msg("bitmex deposit/withdrawals query")

	movements := make([]core.AssetMovement, 0, len(records))
	for _, raw := range records {
		rec, ok := rawMapping(raw)
		if !ok {
			e.softFailure(core.NewBadValueError("record", "expected mapping"), nil, "asset movement")
			continue
		}

		transactType, err := rec.String("transactType")
		if err != nil {
			e.softFailure(err, rec, "asset movement")
			continue
		}
		category, tracked := e.normalizer.MovementCategory(transactType)
		if !tracked {
			continue
		}

		ts, err := recordTimestamp(rec, "timestamp")
		if err != nil {
			e.softFailure(err, rec, "asset movement")
			continue
		}
		if ts == nil {
			e.softFailure(core.NewMissingKeyError("timestamp"), rec, "asset movement")
			continue
		}
		if !window.Admits(ts, core.DropNullTimestamps) {
			continue
		}

		movement, err := e.normalizer.MovementFromRecord(rec, category)
		if err != nil {
			e.softFailure(err, rec, "asset movement")
			continue
		}
		movements = append(movements, *movement)
	}
	return movements, nil
}

// softFailure folds one per-record failure into the warning side
// channel. Unknown assets get a symbol-specific warning; anything else
// gets a generic message pointing operators at the logs, where the full
// record is preserved.
func (e *BitmexExchange) softFailure(err error, rec core.Mapping, kind string) {
	var unknownAsset *core.UnknownAssetError
	if errors.As(err, &unknownAsset) {
		e.messenger.Warn(fmt.Sprintf(
			"Found bitmex %s with unknown asset %s. Ignoring it.",
			kind, unknownAsset.Symbol,
		))
		return
	}

	e.messenger.Error(fmt.Sprintf(
		"Unexpected data encountered during deserialization of a bitmex %s. Check logs for details and open a bug report.",
		kind,
	))
	e.logger.Error().
		Err(err).
		Interface("record", rec).
		Str("kind", kind).
		Msg("failed to deserialize bitmex wallet history record")
}

func rawMapping(raw any) (core.Mapping, bool) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, false
	}
	return core.Mapping(m), true
}

var _ exchange.Exchange = (*BitmexExchange)(nil)
