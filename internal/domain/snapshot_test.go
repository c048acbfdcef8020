package domain

import (
	"errors"
	"testing"
	"time"
)

func TestSpread(t *testing.T) {
	tests := []struct {
		name     string
		ask      float64
		bid      float64
		expected float64
	}{
		{
			name:     "rounded to four decimals",
			ask:      101.23456,
			bid:      100.00001,
			expected: 1.2345,
		},
		{
			name:     "exact",
			ask:      101,
			bid:      100,
			expected: 1,
		},
		{
			name:     "crossed book is negative",
			ask:      99.5,
			bid:      100,
			expected: -0.5,
		},
		{
			name:     "locked book",
			ask:      42.1,
			bid:      42.1,
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Spread(tt.ask, tt.bid)
			if result != tt.expected {
				t.Errorf("Spread(%v, %v) = %v, expected %v", tt.ask, tt.bid, result, tt.expected)
			}
		})
	}
}

func TestNewSnapshot(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ob := &OrderBook{
		Exchange:  "gate",
		Symbol:    "BTC_USDT",
		Timestamp: ts,
		Bids:      []Order{{Price: 99, Volume: 5}, {Price: 100, Volume: 2}},
		Asks:      []Order{{Price: 101, Volume: 3}, {Price: 102, Volume: 1}},
	}

	snap, err := NewSnapshot(ob)
	if err != nil {
		t.Fatalf("NewSnapshot failed: %v", err)
	}

	if !snap.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, expected %v", snap.Timestamp, ts)
	}
	if snap.Bid != 100 || snap.BidSize != 2 {
		t.Errorf("best bid = %v@%v, expected 100@2", snap.Bid, snap.BidSize)
	}
	if snap.Ask != 101 || snap.AskSize != 3 {
		t.Errorf("best ask = %v@%v, expected 101@3", snap.Ask, snap.AskSize)
	}
	if snap.Spread != 1 {
		t.Errorf("Spread = %v, expected 1", snap.Spread)
	}
}

func TestNewSnapshot_EmptySide(t *testing.T) {
	ob := &OrderBook{Bids: []Order{{Price: 1, Volume: 1}}}

	if _, err := NewSnapshot(ob); !errors.Is(err, ErrEmptyOrderBook) {
		t.Errorf("NewSnapshot error = %v, expected ErrEmptyOrderBook", err)
	}
}

func TestSnapshotVector(t *testing.T) {
	snap := Snapshot{Bid: 100, BidSize: 2, Ask: 101, AskSize: 3}
	expected := []float64{2, 100, 101, 3}

	got := snap.Vector()
	if len(got) != len(expected) {
		t.Fatalf("Vector() len = %d, expected %d", len(got), len(expected))
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("Vector()[%d] = %v, expected %v", i, got[i], expected[i])
		}
	}
}

func TestTradeVector(t *testing.T) {
	tests := []struct {
		name     string
		trade    Trade
		expected []float64
	}{
		{
			name:     "buy",
			trade:    Trade{Side: SideBuy, Price: 10, Amount: 0.5},
			expected: []float64{10, 0.5, 1},
		},
		{
			name:     "sell",
			trade:    Trade{Side: SideSell, Price: 11, Amount: 2},
			expected: []float64{11, 2, -1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.trade.Vector()
			for i := range tt.expected {
				if got[i] != tt.expected[i] {
					t.Errorf("Vector()[%d] = %v, expected %v", i, got[i], tt.expected[i])
				}
			}
		})
	}
}

func TestSnapshotSummary(t *testing.T) {
	snap := Snapshot{Bid: 100.5, Ask: 101}
	if got := snap.Summary(); got != "100.5 101" {
		t.Errorf("Summary() = %q, expected %q", got, "100.5 101")
	}
}

func TestParseDecimal(t *testing.T) {
	got, err := ParseDecimal("0.00002451")
	if err != nil {
		t.Fatalf("ParseDecimal failed: %v", err)
	}
	if got != 0.00002451 {
		t.Errorf("ParseDecimal = %v, expected 0.00002451", got)
	}

	if _, err := ParseDecimal("abc"); err == nil {
		t.Error("expected error for non-numeric input")
	}
}

func TestParseLevels(t *testing.T) {
	orders, err := ParseLevels([][]string{{"100.5", "2"}, {"100", "0"}, {"99"}, {"98", "1.25", "extra"}})
	if err != nil {
		t.Fatalf("ParseLevels failed: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("len = %d, expected 2", len(orders))
	}
	if orders[0] != (Order{Price: 100.5, Volume: 2}) || orders[1] != (Order{Price: 98, Volume: 1.25}) {
		t.Errorf("orders = %+v, unexpected", orders)
	}

	if _, err := ParseLevels([][]string{{"x", "1"}}); err == nil {
		t.Error("expected error for bad price")
	}
}
