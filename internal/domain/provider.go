package domain

import (
	"context"
)

// Provider is the connectivity to a single exchange. One Provider value
// backs exactly one poller, so implementations do not need to be safe for
// use by several pollers at once.
type Provider interface {
	Name() string
	Connect(ctx context.Context) error
	GetSupportedSymbols(ctx context.Context) ([]string, error)
	FetchOrderBook(ctx context.Context, symbol string) (*OrderBook, error)
	FetchTrades(ctx context.Context, symbol string) ([]Trade, error)
	Disconnect() error
}

// Factory builds fresh Provider values for one exchange. Provider modules
// register a Factory in the "providers" fx group.
type Factory struct {
	Name string
	New  func() Provider
}
