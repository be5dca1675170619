// Package session wraps an exchange adapter with per-adapter query
// serialization and time-bucketed result caching. Remote history
// queries are expensive and idempotent over short horizons, so repeated
// calls inside the TTL are answered from memory.
package session

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tally/pkg/core"
	"tally/pkg/exchange"
)

// State represents the lifecycle state of a Session.
type State int

const (
	// StateActive indicates a session that is ready to process requests.
	StateActive State = iota
	// StateClosed indicates a session that has been shut down.
	StateClosed
)

// String returns the string representation of the State.
func (s State) String() string {
	return [...]string{"ACTIVE", "CLOSED"}[s]
}

// Cache is a TTL keyed result cache. Safe for concurrent use.
type Cache struct {
	mu    sync.RWMutex
	items map[string]*cacheItem
	ttl   time.Duration
}

type cacheItem struct {
	value     any
	expiresAt time.Time
}

// NewCache creates a Cache with the given default TTL.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		items: make(map[string]*cacheItem),
		ttl:   ttl,
	}
}

// Get retrieves a cached value. ok is false for missing or expired
// entries.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, exists := c.items[key]
	if !exists || time.Now().After(item.expiresAt) {
		return nil, false
	}
	return item.value, true
}

// Set stores a value under key with the default TTL.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = &cacheItem{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Delete removes one entry.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*cacheItem)
}

// Session decorates an exchange adapter. All remote queries are
// serialized through one mutex so an adapter never has two requests in
// flight, and successful results are cached for the configured TTL.
// Validation probes are never cached.
type Session struct {
	inner  exchange.Exchange
	cache  *Cache
	logger zerolog.Logger

	// qmu serializes remote queries; smu guards the lifecycle state.
	qmu   sync.Mutex
	smu   sync.RWMutex
	state State
}

// Option is a functional option for configuring the Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// New wraps inner according to config. With caching disabled the
// session still serializes queries.
func New(inner exchange.Exchange, config *core.Config, opts ...Option) *Session {
	s := &Session{
		inner:  inner,
		logger: zerolog.Nop(),
		state:  StateActive,
	}
	if config.CacheEnabled && config.CacheTTL > 0 {
		s.cache = NewCache(config.CacheTTL)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the wrapped adapter's exchange identifier.
func (s *Session) Name() string {
	return s.inner.Name()
}

// Version returns the wrapped adapter's API version.
func (s *Session) Version() string {
	return s.inner.Version()
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.smu.RLock()
	defer s.smu.RUnlock()
	return s.state
}

func (s *Session) checkActive() error {
	s.smu.RLock()
	defer s.smu.RUnlock()
	if s.state != StateActive {
		return core.ErrClientClosed
	}
	return nil
}

// ValidateAPIKey probes the wrapped adapter. Probe results are never
// cached: a key can be revoked at any moment.
func (s *Session) ValidateAPIKey(ctx context.Context) (bool, string, error) {
	if err := s.checkActive(); err != nil {
		return false, "", err
	}
	s.qmu.Lock()
	defer s.qmu.Unlock()
	return s.inner.ValidateAPIKey(ctx)
}

// QueryBalances returns the wrapped adapter's balances, serving
// repeated calls inside the TTL from cache.
func (s *Session) QueryBalances(ctx context.Context) (map[string]core.Balance, error) {
	if err := s.checkActive(); err != nil {
		return nil, err
	}

	const key = "balances"
	if cached, ok := s.cacheGet(key); ok {
		return cached.(map[string]core.Balance), nil
	}

	s.qmu.Lock()
	defer s.qmu.Unlock()

	// a concurrent caller may have filled the cache while we waited
	if cached, ok := s.cacheGet(key); ok {
		return cached.(map[string]core.Balance), nil
	}

	balances, err := s.inner.QueryBalances(ctx)
	if err != nil {
		return nil, err
	}
	s.cacheSet(key, balances)
	return balances, nil
}

// QueryMarginHistory returns margin positions for the window, cached
// per window.
func (s *Session) QueryMarginHistory(ctx context.Context, window core.TimeWindow) ([]core.MarginPosition, error) {
	if err := s.checkActive(); err != nil {
		return nil, err
	}

	key := "margin:" + windowKey(window)
	if cached, ok := s.cacheGet(key); ok {
		return cached.([]core.MarginPosition), nil
	}

	s.qmu.Lock()
	defer s.qmu.Unlock()

	if cached, ok := s.cacheGet(key); ok {
		return cached.([]core.MarginPosition), nil
	}

	positions, err := s.inner.QueryMarginHistory(ctx, window)
	if err != nil {
		return nil, err
	}
	s.cacheSet(key, positions)
	return positions, nil
}

// QueryDepositsWithdrawals returns asset movements for the window,
// cached per window.
func (s *Session) QueryDepositsWithdrawals(ctx context.Context, window core.TimeWindow) ([]core.AssetMovement, error) {
	if err := s.checkActive(); err != nil {
		return nil, err
	}

	key := "movements:" + windowKey(window)
	if cached, ok := s.cacheGet(key); ok {
		return cached.([]core.AssetMovement), nil
	}

	s.qmu.Lock()
	defer s.qmu.Unlock()

	if cached, ok := s.cacheGet(key); ok {
		return cached.([]core.AssetMovement), nil
	}

	movements, err := s.inner.QueryDepositsWithdrawals(ctx, window)
	if err != nil {
		return nil, err
	}
	s.cacheSet(key, movements)
	return movements, nil
}

// Invalidate drops all cached results.
func (s *Session) Invalidate() {
	if s.cache != nil {
		s.cache.Clear()
	}
}

// Close shuts the session and the wrapped adapter down. Closing twice
// is a no-op.
func (s *Session) Close() error {
	s.smu.Lock()
	if s.state == StateClosed {
		s.smu.Unlock()
		return nil
	}
	s.state = StateClosed
	s.smu.Unlock()

	s.Invalidate()
	s.logger.Debug().Str("exchange", s.inner.Name()).Msg("session closed")
	return s.inner.Close()
}

func (s *Session) cacheGet(key string) (any, bool) {
	if s.cache == nil {
		return nil, false
	}
	v, ok := s.cache.Get(key)
	if ok {
		s.logger.Debug().Str("key", key).Msg("session cache hit")
	}
	return v, ok
}

func (s *Session) cacheSet(key string, value any) {
	if s.cache != nil {
		s.cache.Set(key, value)
	}
}

// windowKey renders a time window as a stable cache key fragment.
func windowKey(w core.TimeWindow) string {
	return strconv.FormatInt(w.Start.Unix(), 10) + "-" + strconv.FormatInt(w.End.Unix(), 10)
}

var _ exchange.Exchange = (*Session)(nil)
