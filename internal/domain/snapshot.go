package domain

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// SpreadPrecision is the number of decimal digits kept in Snapshot.Spread.
const SpreadPrecision = 4

// Snapshot is the top of book of one exchange at one instant.
type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`
	Bid       float64   `json:"bid"`
	BidSize   float64   `json:"bid_size"`
	Ask       float64   `json:"ask"`
	AskSize   float64   `json:"ask_size"`
	Spread    float64   `json:"spread"`
}

// NewSnapshot reduces a full ladder to best bid and ask. A crossed book
// produces a negative spread; that is kept rather than rejected.
func NewSnapshot(ob *OrderBook) (Snapshot, error) {
	bid, okBid := ob.BestBid()
	ask, okAsk := ob.BestAsk()
	if !okBid || !okAsk {
		return Snapshot{}, ErrEmptyOrderBook
	}

	return Snapshot{
		Timestamp: ob.Timestamp,
		Bid:       bid.Price,
		BidSize:   bid.Volume,
		Ask:       ask.Price,
		AskSize:   ask.Volume,
		Spread:    Spread(ask.Price, bid.Price),
	}, nil
}

// Spread returns ask minus bid rounded to SpreadPrecision digits.
func Spread(ask, bid float64) float64 {
	return decimal.NewFromFloat(ask - bid).Round(SpreadPrecision).InexactFloat64()
}

func (s Snapshot) Time() time.Time { return s.Timestamp }

// Vector returns [bidSize, bidPrice, askPrice, askSize]. Downstream numeric
// consumers depend on this order.
func (s Snapshot) Vector() []float64 {
	return []float64{s.BidSize, s.Bid, s.Ask, s.AskSize}
}

func (s Snapshot) Summary() string {
	return formatFloat(s.Bid) + " " + formatFloat(s.Ask)
}

func (t Trade) Time() time.Time { return t.Timestamp }

// Vector returns [price, amount, side] with side +1 for buys and -1 for sells.
func (t Trade) Vector() []float64 {
	side := 1.0
	if t.Side == SideSell {
		side = -1.0
	}
	return []float64{t.Price, t.Amount, side}
}

func (t Trade) Summary() string {
	return fmt.Sprintf("%s %s %s", t.Side, formatFloat(t.Price), formatFloat(t.Amount))
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ParseDecimal parses a venue price or size string.
func ParseDecimal(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse decimal %q: %w", s, err)
	}
	return d.InexactFloat64(), nil
}
