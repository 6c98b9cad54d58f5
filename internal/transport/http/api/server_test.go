package apihttp

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptomind/internal/alert"
	"cryptomind/internal/autotrade"
	"cryptomind/internal/config"
	"cryptomind/internal/journal"
	"cryptomind/internal/market"
	"cryptomind/internal/metrics"
	"cryptomind/internal/notify"
	"cryptomind/internal/oracle"
	"cryptomind/internal/trader"
)

type fixture struct {
	server *Server
	exec   *trader.Executor
	book   *market.QuoteBook
	hub    *notify.Hub
	auto   *autotrade.Scheduler
	alerts *alert.Book
}

func newFixture(t *testing.T, rate float64, burst int) *fixture {
	t.Helper()
	book := market.NewQuoteBook()
	book.Update([]market.Quote{
		{AssetID: "bitcoin", Symbol: "BTC", Name: "Bitcoin", Price: 100, MarketCap: 2000},
		{AssetID: "ethereum", Symbol: "ETH", Name: "Ethereum", Price: 10, MarketCap: 1000},
	})
	exec := trader.NewExecutor(book, 50000)
	hub := notify.NewHub(50)
	announcer := notify.NewTradeAnnouncer(hub, book)
	exec.AddObserver(announcer)
	exec.Start()
	t.Cleanup(exec.Stop)

	auto, err := autotrade.New(exec, book, oracle.NewRuleOracle(oracle.DefaultRuleConfig()),
		config.AutoTradeConfig{PeriodSeconds: 20, SampleSize: 20})
	require.NoError(t, err)
	alerts := alert.NewBook(hub)

	srv, err := NewServer(ServerConfig{
		Trader:             exec,
		Quotes:             book,
		AutoTrader:         auto,
		Alerts:             alerts,
		Notifications:      hub,
		Failures:           announcer,
		Metrics:            metrics.New(),
		TradeRatePerSecond: rate,
		TradeBurst:         burst,
	})
	require.NoError(t, err)
	return &fixture{server: srv, exec: exec, book: book, hub: hub, auto: auto, alerts: alerts}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestTrade_BuyThenSell(t *testing.T) {
	f := newFixture(t, 0, 10)

	rec := f.do(t, http.MethodPost, "/api/trades", jsonBody{"asset_id": "bitcoin", "side": "buy", "amount_usd": 10000})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	tx := decode[journal.Transaction](t, rec)
	assert.Equal(t, journal.SideBuy, tx.Side)
	assert.Equal(t, 100.0, tx.Quantity)
	assert.Equal(t, journal.OriginManual, tx.Origin)

	rec = f.do(t, http.MethodGet, "/api/networth", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	nw := decode[map[string]float64](t, rec)
	assert.Equal(t, 40000.0, nw["cash"])
	assert.Equal(t, 50000.0, nw["net_worth"])

	rec = f.do(t, http.MethodPost, "/api/trades", jsonBody{"asset_id": "bitcoin", "side": "SELL", "amount_usd": 5000})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/transactions?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Transactions []journal.Transaction `json:"transactions"`
	}](t, rec)
	require.Len(t, list.Transactions, 1)
	assert.Equal(t, journal.SideSell, list.Transactions[0].Side)

	rec = f.do(t, http.MethodGet, "/api/wallet", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"net_worth":50000`)
}

func TestTrade_ErrorStatusMapping(t *testing.T) {
	f := newFixture(t, 0, 10)
	cases := []struct {
		name   string
		body   jsonBody
		status int
		kind   trader.ErrorKind
	}{
		{"invalid amount", jsonBody{"asset_id": "bitcoin", "side": "BUY", "amount_usd": -5}, http.StatusBadRequest, trader.KindInvalidAmount},
		{"unknown asset", jsonBody{"asset_id": "dogecoin", "side": "BUY", "amount_usd": 5}, http.StatusNotFound, trader.KindQuoteUnavailable},
		{"insufficient funds", jsonBody{"asset_id": "bitcoin", "side": "BUY", "amount_usd": 60000}, http.StatusConflict, trader.KindInsufficientFunds},
		{"insufficient holdings", jsonBody{"asset_id": "ethereum", "side": "SELL", "amount_usd": 5}, http.StatusConflict, trader.KindInsufficientHoldings},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/trades", tc.body)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			body := decode[map[string]string](t, rec)
			assert.Equal(t, string(tc.kind), body["kind"])
		})
	}
	assert.Equal(t, 50000.0, f.exec.Wallet().Cash)

	rec := f.do(t, http.MethodPost, "/api/trades", jsonBody{"asset_id": "bitcoin", "side": "HODL", "amount_usd": 5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	recent := f.hub.Recent(0)
	require.NotEmpty(t, recent)
	assert.Equal(t, notify.LevelError, recent[0].Level)
}

func TestTransactions_OriginFilterAppliedBeforeLimit(t *testing.T) {
	f := newFixture(t, 0, 10)
	ctx := context.Background()
	for _, origin := range []journal.Origin{journal.OriginAuto, journal.OriginManual, journal.OriginAuto, journal.OriginManual, journal.OriginManual} {
		_, err := f.exec.Execute(ctx, trader.TradeRequest{AssetID: "bitcoin", Side: journal.SideBuy, AmountUSD: 10, Origin: origin})
		require.NoError(t, err)
	}

	rec := f.do(t, http.MethodGet, "/api/transactions?origin=auto&limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Transactions []journal.Transaction `json:"transactions"`
		Count        int                   `json:"count"`
	}](t, rec)
	require.Len(t, list.Transactions, 2)
	assert.Equal(t, 2, list.Count)
	for _, tx := range list.Transactions {
		assert.Equal(t, journal.OriginAuto, tx.Origin)
	}

	rec = f.do(t, http.MethodGet, "/api/transactions?origin=MANUAL&limit=1", nil)
	list = decode[struct {
		Transactions []journal.Transaction `json:"transactions"`
		Count        int                   `json:"count"`
	}](t, rec)
	require.Len(t, list.Transactions, 1)
	assert.Equal(t, journal.OriginManual, list.Transactions[0].Origin)
}

func TestTrade_RateLimited(t *testing.T) {
	f := newFixture(t, 0.001, 1)
	body := jsonBody{"asset_id": "bitcoin", "side": "BUY", "amount_usd": 10}
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/trades", body).Code)
	assert.Equal(t, http.StatusTooManyRequests, f.do(t, http.MethodPost, "/api/trades", body).Code)
}

func TestAutoTradeEndpoints(t *testing.T) {
	f := newFixture(t, 0, 10)

	rec := f.do(t, http.MethodGet, "/api/autotrade", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, autotrade.StateIdle, decode[autotrade.Status](t, rec).State)

	rec = f.do(t, http.MethodPost, "/api/autotrade/enable", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, autotrade.StateRunning, decode[autotrade.Status](t, rec).State)

	rec = f.do(t, http.MethodPost, "/api/autotrade/disable", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, autotrade.StateIdle, decode[autotrade.Status](t, rec).State)
}

func TestAlertsCRUD(t *testing.T) {
	f := newFixture(t, 0, 10)

	rec := f.do(t, http.MethodPost, "/api/alerts", jsonBody{"asset_id": "bitcoin", "target_price": 150, "condition": "above"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[alert.PriceAlert](t, rec)
	assert.Equal(t, "BTC", created.Symbol)

	rec = f.do(t, http.MethodPost, "/api/alerts", jsonBody{"asset_id": "bitcoin", "target_price": 150, "condition": "sideways"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(t, http.MethodPost, "/api/alerts", jsonBody{"asset_id": "nope", "target_price": 1, "condition": "below"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/alerts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), created.ID)

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/api/alerts/"+created.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodDelete, "/api/alerts/"+created.ID, nil).Code)
}

func TestQuotesAndHealth(t *testing.T) {
	f := newFixture(t, 0, 10)

	rec := f.do(t, http.MethodGet, "/api/quotes?q=eth", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Quotes []market.Quote `json:"quotes"`
	}](t, rec)
	require.Len(t, body.Quotes, 1)
	assert.Equal(t, "ethereum", body.Quotes[0].AssetID)
	assert.Equal(t, 2, f.book.Len())

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/quotes/nope", nil).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz", nil).Code)

	rec = f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cryptomind_http_requests_total")
}

func TestNotificationStream(t *testing.T) {
	f := newFixture(t, 0, 10)
	ts := httptest.NewServer(f.server.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws/notifications"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// 订阅在升级之后注册，重复发布直到收到为止
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	got := make(chan notify.Notification, 1)
	go func() {
		var n notify.Notification
		if err := conn.ReadJSON(&n); err == nil {
			got <- n
		}
	}()
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case n := <-got:
			assert.Equal(t, "hello", n.Message)
			return
		case <-ticker.C:
			f.hub.Publish(notify.Notification{Level: notify.LevelInfo, Message: "hello"})
		case <-ctx.Done():
			t.Fatal("no notification received")
		}
	}
}

type jsonBody = map[string]any
