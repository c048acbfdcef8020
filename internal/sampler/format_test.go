package sampler

import (
	"testing"
	"time"

	"github.com/igefined/orderbook-sampler/internal/domain"
)

func TestRawAndNumeric(t *testing.T) {
	store := NewStore[domain.Snapshot]([]string{"gate", "bybit"})
	store.Series("gate").Put(domain.Snapshot{Timestamp: t0, Bid: 100, BidSize: 2, Ask: 101, AskSize: 3, Spread: 1})
	store.Series("gate").Put(domain.Snapshot{Timestamp: t0.Add(time.Second), Bid: 100.5, BidSize: 1, Ask: 101, AskSize: 1, Spread: 0.5})

	raw := Raw(store)
	if len(raw) != 2 {
		t.Fatalf("raw keys = %d, expected 2", len(raw))
	}
	if len(raw["gate"]) != 2 || raw["bybit"] == nil || len(raw["bybit"]) != 0 {
		t.Errorf("raw = %v, unexpected", raw)
	}

	numeric := Numeric(store)
	bybit, ok := numeric["bybit"]
	if !ok || bybit == nil || len(bybit) != 0 {
		t.Errorf("numeric[bybit] = %v, %v; expected present and empty", bybit, ok)
	}

	rows := numeric["gate"]
	if len(rows) != 2 {
		t.Fatalf("numeric[gate] = %d rows, expected 2", len(rows))
	}
	if !rows[0].Timestamp.Equal(t0) {
		t.Errorf("row timestamp = %v, expected %v", rows[0].Timestamp, t0)
	}
	expected := []float64{2, 100, 101, 3}
	for i := range expected {
		if rows[0].Values[i] != expected[i] {
			t.Errorf("Values[%d] = %v, expected %v", i, rows[0].Values[i], expected[i])
		}
	}
}
