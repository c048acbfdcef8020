package bybit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/igefined/orderbook-sampler/internal/config"
	"github.com/igefined/orderbook-sampler/internal/domain"
)

func respond(w http.ResponseWriter, result string) {
	fmt.Fprintf(w, `{"retCode":0,"retMsg":"OK","result":%s,"time":1709294400000}`, result)
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/v5/market/time", func(w http.ResponseWriter, r *http.Request) {
		respond(w, `{"timeSecond":"1709294400"}`)
	})
	mux.HandleFunc("/v5/market/instruments-info", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("cursor") == "" {
			respond(w, `{"list":[{"symbol":"BTCUSDT","baseCoin":"BTC","quoteCoin":"USDT","status":"Trading"},{"symbol":"OLDUSDT","baseCoin":"OLD","quoteCoin":"USDT","status":"Closed"}],"nextPageCursor":"page2"}`)
			return
		}
		respond(w, `{"list":[{"symbol":"ETHUSDC","status":"Trading"}],"nextPageCursor":""}`)
	})
	mux.HandleFunc("/v5/market/orderbook", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") != "BTCUSDT" {
			fmt.Fprint(w, `{"retCode":10001,"retMsg":"Not supported symbols","result":{}}`)
			return
		}
		respond(w, `{"s":"BTCUSDT","b":[["100","2"],["99","5"]],"a":[["101","3"],["102","1"]],"ts":1709294400123,"u":42}`)
	})
	mux.HandleFunc("/v5/market/recent-trade", func(w http.ResponseWriter, r *http.Request) {
		respond(w, `{"list":[{"execId":"a1","price":"100.5","size":"0.2","side":"Buy","time":"1709294400200"},{"execId":"a2","price":"100.4","size":"1","side":"Sell","time":"1709294400100"}]}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func connected(t *testing.T) *Provider {
	t.Helper()

	p := NewProvider(config.ByBitConfig{RestURL: newTestServer(t).URL, Depth: 2}, zap.NewNop())
	if err := p.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	return p
}

func TestProvider_Connect(t *testing.T) {
	p := NewProvider(config.ByBitConfig{RestURL: "http://127.0.0.1:1"}, zap.NewNop())
	if err := p.Connect(context.Background()); err == nil {
		t.Error("expected error for unreachable host")
	}

	if _, err := p.FetchOrderBook(context.Background(), "BTC_USDT"); !errors.Is(err, domain.ErrNotConnected) {
		t.Errorf("FetchOrderBook = %v, expected ErrNotConnected", err)
	}
}

func TestProvider_GetSupportedSymbols(t *testing.T) {
	p := connected(t)

	symbols, err := p.GetSupportedSymbols(context.Background())
	if err != nil {
		t.Fatalf("GetSupportedSymbols failed: %v", err)
	}

	expected := []string{"BTC_USDT", "ETH_USDC"}
	if len(symbols) != len(expected) {
		t.Fatalf("symbols = %v, expected %v", symbols, expected)
	}
	for i := range expected {
		if symbols[i] != expected[i] {
			t.Errorf("symbols[%d] = %q, expected %q", i, symbols[i], expected[i])
		}
	}
}

func TestProvider_FetchOrderBook(t *testing.T) {
	p := connected(t)

	ob, err := p.FetchOrderBook(context.Background(), "BTC_USDT")
	if err != nil {
		t.Fatalf("FetchOrderBook failed: %v", err)
	}
	if ob.Timestamp.UnixMilli() != 1709294400123 {
		t.Errorf("timestamp = %d, expected 1709294400123", ob.Timestamp.UnixMilli())
	}

	snap, err := domain.NewSnapshot(ob)
	if err != nil {
		t.Fatalf("NewSnapshot failed: %v", err)
	}
	expected := []float64{2, 100, 101, 3}
	for i, v := range snap.Vector() {
		if v != expected[i] {
			t.Errorf("Vector()[%d] = %v, expected %v", i, v, expected[i])
		}
	}

	_, err = p.FetchOrderBook(context.Background(), "DOGE_USDT")
	if err == nil || !strings.HasPrefix(err.Error(), "bybit: retCode 10001") {
		t.Errorf("FetchOrderBook error = %v, expected a bybit retCode error", err)
	}
}

func TestProvider_FetchTrades(t *testing.T) {
	p := connected(t)

	trades, err := p.FetchTrades(context.Background(), "BTC_USDT")
	if err != nil {
		t.Fatalf("FetchTrades failed: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("trades = %d, expected 2", len(trades))
	}
	if trades[0].Side != domain.SideBuy || trades[1].Side != domain.SideSell {
		t.Errorf("sides = %s/%s, expected buy/sell", trades[0].Side, trades[1].Side)
	}
	if trades[1].Timestamp.UnixMilli() != 1709294400100 || trades[1].Amount != 1 {
		t.Errorf("trade = %+v, unexpected", trades[1])
	}

	if err := p.Disconnect(); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}
	if _, err := p.FetchTrades(context.Background(), "BTC_USDT"); !errors.Is(err, domain.ErrNotConnected) {
		t.Errorf("FetchTrades after Disconnect = %v, expected ErrNotConnected", err)
	}
}
