package domain

import (
	"strings"
)

// quoteCurrencies is ordered so that longer codes sharing a suffix with a
// shorter one (FDUSD, BUSD, USDT) are tried before it (USD).
var quoteCurrencies = []string{"USDT", "USDC", "FDUSD", "BUSD", "EUR", "USD", "BTC", "ETH"}

// NormalizeSymbol converts venue or user spellings of a pair (BTC/USDT,
// btc-usdt, BTCUSDT) to the canonical BASE_QUOTE form. Concatenated
// symbols with an unknown quote currency are returned upper-cased.
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if s == "" {
		return ""
	}

	s = strings.NewReplacer("/", "_", "-", "_").Replace(s)
	if strings.Contains(s, "_") {
		return s
	}

	for _, quote := range quoteCurrencies {
		if len(s) > len(quote) && strings.HasSuffix(s, quote) {
			return s[:len(s)-len(quote)] + "_" + quote
		}
	}

	return s
}

// ToExchangeFormat renders a normalized symbol the way the named exchange
// spells it on the wire.
func ToExchangeFormat(normalizedSymbol, exchange string) string {
	switch strings.ToLower(exchange) {
	case "bybit":
		return strings.ReplaceAll(normalizedSymbol, "_", "")
	default:
		return normalizedSymbol
	}
}
