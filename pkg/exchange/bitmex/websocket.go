package bitmex

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/apd/v3"
	"github.com/rs/zerolog"

	"tally/internal/ws"
)

const (
	// ProductionWSURL is the live realtime feed endpoint.
	ProductionWSURL = "wss://ws.bitmex.com/realtime"
	// SandboxWSURL is the testnet realtime feed endpoint.
	SandboxWSURL = "wss://ws.testnet.bitmex.com/realtime"

	tradeTable = "trade"
)

// TradeUpdate is one public trade delivered by the realtime feed.
type TradeUpdate struct {
	Symbol    string
	Side      string
	Price     apd.Decimal
	Size      apd.Decimal
	Timestamp time.Time
}

// TradeCallback receives trade updates for a subscribed symbol.
type TradeCallback func(TradeUpdate)

// wsEnvelope is the common shell of every feed message. Subscription
// acks carry Success/Subscribe, data pushes carry Table/Action.
type wsEnvelope struct {
	Table     string `json:"table"`
	Action    string `json:"action"`
	Success   bool   `json:"success"`
	Subscribe string `json:"subscribe"`
	Error     string `json:"error"`
}

type wsTradeMessage struct {
	Table  string        `json:"table"`
	Action string        `json:"action"`
	Data   []wsTradeItem `json:"data"`
}

type wsTradeItem struct {
	Timestamp string  `json:"timestamp"`
	Symbol    string  `json:"symbol"`
	Side      string  `json:"side"`
	Size      float64 `json:"size"`
	Price     float64 `json:"price"`
}

type wsCommand struct {
	Op   string   `json:"op"`
	Args []string `json:"args"`
}

// WSClient streams public trades from the BitMEX realtime feed. One
// callback per symbol; resubscription after a reconnect is the
// caller's responsibility.
type WSClient struct {
	conn   *ws.Client
	logger zerolog.Logger

	mu             sync.RWMutex
	tradeCallbacks map[string]TradeCallback

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewWSClient creates a realtime feed client.
func NewWSClient(sandbox bool, logger zerolog.Logger) *WSClient {
	url := ProductionWSURL
	if sandbox {
		url = SandboxWSURL
	}
	return &WSClient{
		conn: ws.NewClient(ws.Config{
			URL:              url,
			ReconnectEnabled: true,
		}, logger),
		logger:         logger,
		tradeCallbacks: make(map[string]TradeCallback),
		stopChan:       make(chan struct{}),
	}
}

// Connect establishes the feed connection and starts routing messages.
func (c *WSClient) Connect(ctx context.Context) error {
	if err := c.conn.Connect(ctx); err != nil {
		return err
	}

	c.wg.Go(c.readLoop)
	return nil
}

// SubscribeTrades registers the callback for symbol and subscribes to
// its trade topic.
func (c *WSClient) SubscribeTrades(symbol string, cb TradeCallback) error {
	c.mu.Lock()
	c.tradeCallbacks[symbol] = cb
	c.mu.Unlock()

	return c.conn.SendJSON(wsCommand{
		Op:   "subscribe",
		Args: []string{tradeTable + ":" + symbol},
	})
}

// UnsubscribeTrades removes the callback for symbol and unsubscribes
// from its trade topic.
func (c *WSClient) UnsubscribeTrades(symbol string) error {
	c.mu.Lock()
	delete(c.tradeCallbacks, symbol)
	c.mu.Unlock()

	return c.conn.SendJSON(wsCommand{
		Op:   "unsubscribe",
		Args: []string{tradeTable + ":" + symbol},
	})
}

// IsConnected reports whether the feed connection is up.
func (c *WSClient) IsConnected() bool {
	return c.conn.IsConnected()
}

// Close shuts the feed client down.
func (c *WSClient) Close() error {
	select {
	case <-c.stopChan:
	default:
		close(c.stopChan)
	}
	err := c.conn.Close()
	c.wg.Wait()
	return err
}

func (c *WSClient) readLoop() {
	for {
		select {
		case <-c.stopChan:
			return
		case frame, ok := <-c.conn.Messages():
			if !ok {
				return
			}
			c.routeMessage(frame)
		}
	}
}

// routeMessage parses the envelope first and only decodes the full
// payload for tables it handles.
func (c *WSClient) routeMessage(frame []byte) {
	var env wsEnvelope
	if err := sonic.Unmarshal(frame, &env); err != nil {
		c.logger.Warn().Err(err).Msg("unparseable feed frame")
		return
	}

	switch {
	case env.Error != "":
		c.logger.Error().Str("error", env.Error).Msg("feed error message")
	case env.Subscribe != "":
		c.logger.Debug().
			Str("topic", env.Subscribe).
			Bool("success", env.Success).
			Msg("subscription ack")
	case env.Table == tradeTable:
		c.handleTradeMessage(frame)
	}
}

func (c *WSClient) handleTradeMessage(frame []byte) {
	var msg wsTradeMessage
	if err := sonic.Unmarshal(frame, &msg); err != nil {
		c.logger.Warn().Err(err).Msg("unparseable trade message")
		return
	}
	if msg.Action != "insert" {
		return
	}

	for _, item := range msg.Data {
		c.mu.RLock()
		cb, ok := c.tradeCallbacks[item.Symbol]
		c.mu.RUnlock()
		if !ok {
			continue
		}

		update, err := tradeFromItem(item)
		if err != nil {
			c.logger.Warn().Err(err).Str("symbol", item.Symbol).Msg("bad trade item")
			continue
		}
		cb(update)
	}
}

func tradeFromItem(item wsTradeItem) (TradeUpdate, error) {
	ts, err := time.Parse(time.RFC3339, item.Timestamp)
	if err != nil {
		return TradeUpdate{}, fmt.Errorf("parse trade timestamp: %w", err)
	}

	var price, size apd.Decimal
	if _, _, err := price.SetString(strconv.FormatFloat(item.Price, 'f', -1, 64)); err != nil {
		return TradeUpdate{}, fmt.Errorf("parse trade price: %w", err)
	}
	if _, _, err := size.SetString(strconv.FormatFloat(item.Size, 'f', -1, 64)); err != nil {
		return TradeUpdate{}, fmt.Errorf("parse trade size: %w", err)
	}

	return TradeUpdate{
		Symbol:    item.Symbol,
		Side:      item.Side,
		Price:     price,
		Size:      size,
		Timestamp: ts.UTC(),
	}, nil
}
