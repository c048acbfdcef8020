package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyOrderBook  = errors.New("order book has no bids or no asks")
	ErrNotConnected    = errors.New("provider is not connected")
	ErrUnknownExchange = errors.New("unknown exchange")
)

// ConnectionError means the adapter could not be initialised. Pollers retry it.
type ConnectionError struct {
	Exchange string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Exchange, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// SymbolUnsupportedError is fatal for the poller of that exchange only.
type SymbolUnsupportedError struct {
	Exchange string
	Symbol   string
}

func (e *SymbolUnsupportedError) Error() string {
	return fmt.Sprintf("%s does not support symbol %s", e.Exchange, e.Symbol)
}

// FetchError wraps a failed order book or trades request.
type FetchError struct {
	Exchange string
	Symbol   string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s %s: %v", e.Exchange, e.Symbol, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// InvalidConfigurationError is returned before any poller starts.
type InvalidConfigurationError struct {
	Reason string
}

func (e *InvalidConfigurationError) Error() string {
	return "invalid configuration: " + e.Reason
}
