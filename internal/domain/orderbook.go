package domain

import (
	"time"
)

type OrderBook struct {
	Exchange  string    `json:"exchange"`
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	Bids      []Order   `json:"bids"`
	Asks      []Order   `json:"asks"`
}

type Order struct {
	Price  float64 `json:"price"`
	Volume float64 `json:"volume"`
}

// BestBid returns the highest priced bid level. Venues normally send bids
// sorted descending, but the ladder is scanned so an unsorted feed still
// yields the top of book.
func (ob *OrderBook) BestBid() (Order, bool) {
	if len(ob.Bids) == 0 {
		return Order{}, false
	}
	best := ob.Bids[0]
	for _, o := range ob.Bids[1:] {
		if o.Price > best.Price {
			best = o
		}
	}
	return best, true
}

// BestAsk returns the lowest priced ask level.
func (ob *OrderBook) BestAsk() (Order, bool) {
	if len(ob.Asks) == 0 {
		return Order{}, false
	}
	best := ob.Asks[0]
	for _, o := range ob.Asks[1:] {
		if o.Price < best.Price {
			best = o
		}
	}
	return best, true
}

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Trade is one public execution reported by a venue.
type Trade struct {
	ID        string    `json:"id"`
	Exchange  string    `json:"exchange"`
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	Side      Side      `json:"side"`
	Price     float64   `json:"price"`
	Amount    float64   `json:"amount"`
}

// ParseLevels converts a venue ladder of [price, size, ...] string tuples.
// Levels with a non-positive price or size are dropped.
func ParseLevels(levels [][]string) ([]Order, error) {
	orders := make([]Order, 0, len(levels))
	for _, level := range levels {
		if len(level) < 2 {
			continue
		}
		price, err := ParseDecimal(level[0])
		if err != nil {
			return nil, err
		}
		volume, err := ParseDecimal(level[1])
		if err != nil {
			return nil, err
		}
		if price > 0 && volume > 0 {
			orders = append(orders, Order{Price: price, Volume: volume})
		}
	}
	return orders, nil
}
