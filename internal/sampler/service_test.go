package sampler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap/zaptest"

	"github.com/igefined/orderbook-sampler/internal/config"
	"github.com/igefined/orderbook-sampler/internal/domain"
	"github.com/igefined/orderbook-sampler/internal/sink"
)

type recordingSink struct {
	sink.Null

	mu      sync.Mutex
	batches []*sink.Batch
}

func (r *recordingSink) Write(ctx context.Context, batch *sink.Batch) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, batch)
	return nil
}

type fakeShutdowner struct {
	calls chan struct{}
}

func (f *fakeShutdowner) Shutdown(...fx.ShutdownOption) error {
	f.calls <- struct{}{}
	return nil
}

func newTestService(t *testing.T, cfg *config.Config, out *bytes.Buffer, fakes ...*fakeProvider) (*Service, *recordingSink, *fakeShutdowner) {
	rec := &recordingSink{}
	shutdowner := &fakeShutdowner{calls: make(chan struct{}, 1)}

	s := NewService(Params{
		Config:     cfg,
		Factories:  factoriesFor(fakes...),
		Sink:       rec,
		Logger:     zaptest.NewLogger(t),
		Shutdowner: shutdowner,
	})
	s.out = out
	return s, rec, shutdowner
}

func testConfig(exchanges ...string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Sampling.Symbol = "BTCUSDT"
	cfg.Sampling.Exchanges = exchanges
	cfg.Sampling.Verbose = 0
	cfg.Sampling.Stop = config.StopConfig{MinCount: 3}
	cfg.Sampling.Retry = config.RetryConfig{InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond, BackoffFactor: 2}
	return cfg
}

func TestService_RunNumeric(t *testing.T) {
	cfg := testConfig("gate", "bybit")
	cfg.Sampling.OutputFormat = config.OutputNumeric

	bybit := newFake("bybit")
	bybit.symbols = nil

	var out bytes.Buffer
	s, rec, _ := newTestService(t, cfg, &out, newFake("gate"), bybit)

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var doc struct {
		RunID    string                  `json:"run_id"`
		Symbol   string                  `json:"symbol"`
		Criteria string                  `json:"stop_criteria"`
		Pollers  map[string]PollerStats  `json:"pollers"`
		Data     map[string][]NumericRow `json:"data"`
	}
	if err := json.Unmarshal(out.Bytes(), &doc); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}

	if doc.Symbol != "BTC_USDT" || doc.Criteria != "min_count=3" || doc.RunID == "" {
		t.Errorf("header = %+v, unexpected", doc)
	}
	if rows, ok := doc.Data["bybit"]; !ok || len(rows) != 0 {
		t.Errorf("data[bybit] = %v, %v; expected present and empty", rows, ok)
	}
	if len(doc.Data["gate"]) < 3 {
		t.Fatalf("data[gate] = %d rows, expected at least 3", len(doc.Data["gate"]))
	}
	if v := doc.Data["gate"][0].Values; len(v) != 4 || v[0] != 2 || v[1] != 100 || v[2] != 101 || v[3] != 3 {
		t.Errorf("values = %v, expected [2 100 101 3]", v)
	}
	if doc.Pollers["bybit"].State != "failed" || doc.Pollers["bybit"].Reason == "" {
		t.Errorf("bybit poller = %+v, expected failed with a reason", doc.Pollers["bybit"])
	}

	if len(rec.batches) != 1 {
		t.Fatalf("sink received %d batches, expected 1", len(rec.batches))
	}
	batch := rec.batches[0]
	if batch.RunID != doc.RunID || batch.DataType != config.DataTypeOrderBooks {
		t.Errorf("batch = %s/%s, expected %s/orderbooks", batch.RunID, batch.DataType, doc.RunID)
	}
}

func TestService_RunRawTrades(t *testing.T) {
	cfg := testConfig("gate")
	cfg.Sampling.DataType = config.DataTypePublicTrades

	var out bytes.Buffer
	s, _, _ := newTestService(t, cfg, &out, newFake("gate"))

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var doc struct {
		Data map[string][]domain.Trade `json:"data"`
	}
	if err := json.Unmarshal(out.Bytes(), &doc); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if len(doc.Data["gate"]) < 3 {
		t.Errorf("data[gate] = %d trades, expected at least 3", len(doc.Data["gate"]))
	}
}

func TestService_RunRejectsUnknownExchange(t *testing.T) {
	var out bytes.Buffer
	s, rec, _ := newTestService(t, testConfig("gate", "kraken"), &out, newFake("gate"))

	err := s.Run(context.Background())
	var cfgErr *domain.InvalidConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Run error = %v, expected InvalidConfigurationError", err)
	}
	if out.Len() != 0 || len(rec.batches) != 0 {
		t.Error("nothing should be written for a rejected run")
	}
}

func TestService_StartStop(t *testing.T) {
	cfg := testConfig("gate")
	cfg.Sampling.Stop = config.StopConfig{Elapsed: time.Hour}

	gate := newFake("gate")
	gate.alwaysFail = true

	var out bytes.Buffer
	s, rec, shutdowner := newTestService(t, cfg, &out, gate)

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	select {
	case <-shutdowner.calls:
	default:
		t.Error("service did not request shutdown after the run")
	}
	if len(rec.batches) != 1 {
		t.Errorf("sink received %d batches, expected the partial result", len(rec.batches))
	}
}

func TestService_StartInvalidConfig(t *testing.T) {
	cfg := testConfig()

	var out bytes.Buffer
	s, _, _ := newTestService(t, cfg, &out)

	if err := s.Start(); err == nil {
		t.Error("expected Start to reject a config without exchanges")
	}
}

func TestToBatch(t *testing.T) {
	store := NewStore[domain.Snapshot]([]string{"gate", "bybit"})
	store.Series("gate").Put(domain.Snapshot{Timestamp: t0, Bid: 100, BidSize: 2, Ask: 101, AskSize: 3, Spread: 1})

	result := &Result[domain.Snapshot]{Symbol: "BTC_USDT", Store: store}
	batch := ToBatch(result, config.DataTypeOrderBooks)

	if len(batch.Exchanges) != 2 || len(batch.Records) != 1 {
		t.Fatalf("batch = %+v, unexpected", batch)
	}
	r := batch.Records[0]
	if r.Exchange != "gate" || !r.Timestamp.Equal(t0) || len(r.Values) != 4 {
		t.Errorf("record = %+v, unexpected", r)
	}
	if _, ok := r.Payload.(domain.Snapshot); !ok {
		t.Errorf("payload is %T, expected domain.Snapshot", r.Payload)
	}

	grouped := batch.ByExchange()
	if _, ok := grouped["bybit"]; !ok {
		t.Error("ByExchange dropped the empty exchange")
	}
}
