package bitmex

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/pkg/core"
	"tally/pkg/messages"
	"tally/pkg/price"
)

type testFixture struct {
	exchange  *BitmexExchange
	messenger *messages.Aggregator
	oracle    *price.StaticOracle
}

func newTestExchange(t *testing.T, handler http.Handler) *testFixture {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	messenger := messages.New()
	oracle := price.NewStaticOracle()

	config := core.DefaultConfig("bitmex").
		WithCredentials("LAqUlngMIQkIUjXMUreyu3qn", []byte("chNOOS4KvNXR_Xq4k4c9qsfoKWvnDecLATCRlcBwyKDYnWgO"))

	e, err := New(config,
		WithBaseURL(server.URL),
		WithMessenger(messenger),
		WithOracle(oracle),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	return &testFixture{exchange: e, messenger: messenger, oracle: oracle}
}

func serveJSON(t *testing.T, w http.ResponseWriter, status int, body string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err := w.Write([]byte(body))
	require.NoError(t, err)
}

func TestQueryBalances(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/user/wallet", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "XBt", r.URL.Query().Get("currency"))
		assert.NotEmpty(t, r.Header.Get("api-key"))
		assert.NotEmpty(t, r.Header.Get("api-signature"))
		assert.NotEmpty(t, r.Header.Get("api-expires"))
		serveJSON(t, w, http.StatusOK, `{"currency": "XBt", "amount": 150000000}`)
	})

	f := newTestExchange(t, mux)
	require.NoError(t, f.oracle.SetString("BTC", "30000"))

	balances, err := f.exchange.QueryBalances(context.Background())
	require.NoError(t, err)
	require.Len(t, balances, 1)

	btc, ok := balances["BTC"]
	require.True(t, ok)
	assertDecimalEqual(t, "1.5", &btc.Amount)
	assertDecimalEqual(t, "45000", &btc.Value)
}

func TestQueryBalancesNoPrice(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/user/wallet", func(w http.ResponseWriter, r *http.Request) {
		serveJSON(t, w, http.StatusOK, `{"currency": "XBt", "amount": 150000000}`)
	})

	f := newTestExchange(t, mux)

	_, err := f.exchange.QueryBalances(context.Background())
	require.Error(t, err)
	assert.True(t, core.IsRemoteError(err))
}

func TestQueryBalancesRemoteFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/user/wallet", func(w http.ResponseWriter, r *http.Request) {
		serveJSON(t, w, http.StatusBadGateway, `upstream unavailable`)
	})

	f := newTestExchange(t, mux)

	_, err := f.exchange.QueryBalances(context.Background())
	require.Error(t, err)
	assert.True(t, core.IsRemoteError(err))
}

func TestValidateAPIKey(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantValid  bool
		wantReason string
	}{
		{
			name:      "valid key",
			status:    http.StatusOK,
			body:      `{"id": 66, "username": "troglodyte"}`,
			wantValid: true,
		},
		{
			name:       "invalid key",
			status:     http.StatusUnauthorized,
			body:       `{"error": {"message": "Invalid API Key.", "name": "HTTPError"}}`,
			wantValid:  false,
			wantReason: "provided API key is invalid",
		},
		{
			name:       "invalid secret",
			status:     http.StatusUnauthorized,
			body:       `{"error": {"message": "Signature not valid.", "name": "HTTPError"}}`,
			wantValid:  false,
			wantReason: "provided API secret is invalid",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/api/v1/user", func(w http.ResponseWriter, r *http.Request) {
				serveJSON(t, w, tc.status, tc.body)
			})

			f := newTestExchange(t, mux)

			valid, reason, err := f.exchange.ValidateAPIKey(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tc.wantValid, valid)
			assert.Equal(t, tc.wantReason, reason)
		})
	}
}

func TestValidateAPIKeyServerError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/user", func(w http.ResponseWriter, r *http.Request) {
		serveJSON(t, w, http.StatusServiceUnavailable, `maintenance`)
	})

	f := newTestExchange(t, mux)

	_, _, err := f.exchange.ValidateAPIKey(context.Background())
	require.Error(t, err)
	assert.True(t, core.IsRemoteError(err))
}

const walletHistoryBody = `[
	{
		"transactID": "mov-deposit",
		"transactType": "Deposit",
		"currency": "XBt",
		"amount": 100000000,
		"fee": null,
		"address": "3BMEXqGpG4FxBA1KWhRFufXfSTRgzfDBhJ",
		"tx": "aaff00",
		"timestamp": "2018-04-02T10:00:00.000Z"
	},
	{
		"transactID": "pnl-in-window",
		"transactType": "RealisedPNL",
		"currency": "XBt",
		"amount": -42000000,
		"fee": 1000,
		"address": "XBTUSD",
		"timestamp": "2018-04-03T00:00:00.000Z",
		"transactTime": "2018-04-03T00:00:00.000Z"
	},
	{
		"transactID": "pnl-null-ts",
		"transactType": "RealisedPNL",
		"currency": "XBt",
		"amount": 5000000,
		"fee": null,
		"timestamp": null,
		"transactTime": "2018-04-03T12:00:00.000Z"
	},
	{
		"transactID": "ignored-type",
		"transactType": "AffiliatePayout",
		"currency": "XBt",
		"amount": 12345,
		"timestamp": "2018-04-03T13:00:00.000Z"
	},
	{
		"transactID": "mov-bad-asset",
		"transactType": "Deposit",
		"currency": "BADCOIN",
		"amount": 100,
		"timestamp": "2018-04-03T14:00:00.000Z"
	},
	{
		"transactID": "mov-withdrawal",
		"transactType": "Withdrawal",
		"currency": "XBt",
		"amount": -50000000,
		"fee": 300,
		"timestamp": "2018-04-04T23:59:59.000Z"
	},
	{
		"transactID": "mov-outside-window",
		"transactType": "Deposit",
		"currency": "XBt",
		"amount": 100000000,
		"timestamp": "2018-05-01T00:00:00.000Z"
	}
]`

func historyFixture(t *testing.T) *testFixture {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/user/walletHistory", func(w http.ResponseWriter, r *http.Request) {
		serveJSON(t, w, http.StatusOK, walletHistoryBody)
	})
	return newTestExchange(t, mux)
}

func historyWindow() core.TimeWindow {
	return core.NewTimeWindow(
		time.Date(2018, 4, 2, 10, 0, 0, 0, time.UTC),
		time.Date(2018, 4, 4, 23, 59, 59, 0, time.UTC),
	)
}

func TestQueryDepositsWithdrawals(t *testing.T) {
	f := historyFixture(t)

	movements, err := f.exchange.QueryDepositsWithdrawals(context.Background(), historyWindow())
	require.NoError(t, err)
	require.Len(t, movements, 2)

	// ledger order is preserved
	assert.Equal(t, "mov-deposit", movements[0].Link)
	assert.Equal(t, core.CategoryDeposit, movements[0].Category)
	assertDecimalEqual(t, "1", &movements[0].Amount)

	// window bound hit exactly is still inside
	assert.Equal(t, "mov-withdrawal", movements[1].Link)
	assert.Equal(t, core.CategoryWithdrawal, movements[1].Category)
	assertDecimalEqual(t, "0.5", &movements[1].Amount)
	assertDecimalEqual(t, "0.000003", &movements[1].Fee)

	// one unknown-asset warning, no hard errors
	warnings := f.messenger.ConsumeWarnings()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "BADCOIN")
	assert.Empty(t, f.messenger.ConsumeErrors())
}

func TestQueryMarginHistory(t *testing.T) {
	f := historyFixture(t)

	positions, err := f.exchange.QueryMarginHistory(context.Background(), historyWindow())
	require.NoError(t, err)
	require.Len(t, positions, 2)

	assert.Equal(t, "pnl-in-window", positions[0].Link)
	assertDecimalEqual(t, "-0.42", &positions[0].ProfitLoss)
	assert.Equal(t, "XBTUSD", positions[0].Notes)

	// a PNL line without a ledger timestamp is retained, not dropped
	assert.Equal(t, "pnl-null-ts", positions[1].Link)
	assertDecimalEqual(t, "0.05", &positions[1].ProfitLoss)

	assert.Empty(t, f.messenger.ConsumeWarnings())
	assert.Empty(t, f.messenger.ConsumeErrors())
}

func TestQueryMarginHistoryIgnoresOtherTypes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/user/walletHistory", func(w http.ResponseWriter, r *http.Request) {
		serveJSON(t, w, http.StatusOK, `[
			{"transactID": "t1", "transactType": "UnknownTransactionType", "currency": "XBt", "amount": 1, "timestamp": "2018-04-03T00:00:00.000Z"}
		]`)
	})
	f := newTestExchange(t, mux)

	positions, err := f.exchange.QueryMarginHistory(context.Background(), historyWindow())
	require.NoError(t, err)
	assert.Empty(t, positions)
	assert.Zero(t, f.messenger.WarningCount())
	assert.Zero(t, f.messenger.ErrorCount())

	movements, err := f.exchange.QueryDepositsWithdrawals(context.Background(), historyWindow())
	require.NoError(t, err)
	assert.Empty(t, movements)
	assert.Zero(t, f.messenger.WarningCount())
	assert.Zero(t, f.messenger.ErrorCount())
}

func TestQueryDepositsWithdrawalsSoftFailures(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/user/walletHistory", func(w http.ResponseWriter, r *http.Request) {
		serveJSON(t, w, http.StatusOK, `[
			{"transactID": "good-1", "transactType": "Deposit", "currency": "XBt", "amount": 100000000, "timestamp": "2018-04-03T00:00:00.000Z"},
			{"transactType": "Deposit", "currency": "XBt", "amount": 100, "timestamp": "2018-04-03T01:00:00.000Z"},
			{"transactID": "no-ts", "transactType": "Withdrawal", "currency": "XBt", "amount": 100, "timestamp": null},
			{"transactID": "bad-amount", "transactType": "Deposit", "currency": "XBt", "amount": "not a number", "timestamp": "2018-04-03T02:00:00.000Z"},
			{"transactID": "good-2", "transactType": "Withdrawal", "currency": "XBt", "amount": 200000000, "timestamp": "2018-04-03T03:00:00.000Z"}
		]`)
	})
	f := newTestExchange(t, mux)

	movements, err := f.exchange.QueryDepositsWithdrawals(context.Background(), historyWindow())
	require.NoError(t, err, "per-record failures must not abort the batch")
	require.Len(t, movements, 2)
	assert.Equal(t, "good-1", movements[0].Link)
	assert.Equal(t, "good-2", movements[1].Link)

	errs := f.messenger.ConsumeErrors()
	require.Len(t, errs, 3)
	for _, msg := range errs {
		assert.Contains(t, msg, "deserialization")
	}
}

func TestQueryHistoryRemoteFailureIsFatal(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/user/walletHistory", func(w http.ResponseWriter, r *http.Request) {
		serveJSON(t, w, http.StatusForbidden, `{"error": {"message": "Access Denied", "name": "HTTPError"}}`)
	})
	f := newTestExchange(t, mux)

	_, err := f.exchange.QueryDepositsWithdrawals(context.Background(), historyWindow())
	require.Error(t, err)
	assert.True(t, core.IsRemoteError(err))

	_, err = f.exchange.QueryMarginHistory(context.Background(), historyWindow())
	require.Error(t, err)
	assert.True(t, core.IsRemoteError(err))
}

func TestQueryHistoryCustomFetcher(t *testing.T) {
	config := core.DefaultConfig("bitmex").
		WithCredentials("key", []byte("secret"))

	fetched := false
	e, err := New(config, WithHistoryFetcher(func(ctx context.Context) ([]any, error) {
		fetched = true
		return []any{
			map[string]any{
				"transactID":   "custom-1",
				"transactType": "Deposit",
				"currency":     "XBt",
				"amount":       float64(100000000),
				"timestamp":    "2018-04-03T00:00:00.000Z",
			},
		}, nil
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	movements, err := e.QueryDepositsWithdrawals(context.Background(), historyWindow())
	require.NoError(t, err)
	require.True(t, fetched)
	require.Len(t, movements, 1)
	assert.Equal(t, "custom-1", movements[0].Link)
}

func TestExchangeIdentity(t *testing.T) {
	f := historyFixture(t)

	assert.Equal(t, "bitmex", f.exchange.Name())
	assert.Equal(t, "1", f.exchange.Version())
}
