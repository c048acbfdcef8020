package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/igefined/orderbook-sampler/internal/config"
	"github.com/igefined/orderbook-sampler/internal/domain"
)

const (
	category     = "spot"
	tradesLimit  = 60
	defaultDepth = 50
)

// Provider polls the Bybit v5 public market REST API.
type Provider struct {
	config     config.ByBitConfig
	logger     *zap.Logger
	httpClient *http.Client

	mu        sync.RWMutex
	connected bool
}

func NewProvider(cfg config.ByBitConfig, logger *zap.Logger) *Provider {
	return &Provider{
		config:     cfg,
		logger:     logger.Named("bybit"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (p *Provider) Name() string {
	return moduleName
}

// Connect checks that the API answers. Bybit REST is stateless, so there is
// nothing else to set up.
func (p *Provider) Connect(ctx context.Context) error {
	p.logger.Info("Connecting to Bybit exchange")

	var serverTime struct {
		TimeSecond string `json:"timeSecond"`
	}
	if err := p.get(ctx, "/v5/market/time", nil, &serverTime); err != nil {
		return fmt.Errorf("failed to reach Bybit: %w", err)
	}

	p.mu.Lock()
	p.connected = true
	p.mu.Unlock()

	p.logger.Info("Connected to Bybit exchange", zap.String("server_time", serverTime.TimeSecond))
	return nil
}

func (p *Provider) Disconnect() error {
	p.logger.Info("Disconnecting from Bybit exchange")

	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
	return nil
}

type instrumentsResult struct {
	List []struct {
		Symbol    string `json:"symbol"`
		BaseCoin  string `json:"baseCoin"`
		QuoteCoin string `json:"quoteCoin"`
		Status    string `json:"status"`
	} `json:"list"`
	NextPageCursor string `json:"nextPageCursor"`
}

func (p *Provider) GetSupportedSymbols(ctx context.Context) ([]string, error) {
	var symbols []string
	cursor := ""

	for {
		q := url.Values{}
		q.Set("category", category)
		if cursor != "" {
			q.Set("cursor", cursor)
		}

		var result instrumentsResult
		if err := p.get(ctx, "/v5/market/instruments-info", q, &result); err != nil {
			return nil, err
		}

		for _, inst := range result.List {
			if inst.Status != "" && inst.Status != "Trading" {
				continue
			}
			if inst.BaseCoin != "" && inst.QuoteCoin != "" {
				symbols = append(symbols, inst.BaseCoin+"_"+inst.QuoteCoin)
			} else {
				symbols = append(symbols, domain.NormalizeSymbol(inst.Symbol))
			}
		}

		if result.NextPageCursor == "" || result.NextPageCursor == cursor {
			return symbols, nil
		}
		cursor = result.NextPageCursor
	}
}

type orderBookResult struct {
	Symbol   string     `json:"s"`
	Bids     [][]string `json:"b"`
	Asks     [][]string `json:"a"`
	Ts       int64      `json:"ts"`
	UpdateID int64      `json:"u"`
}

func (p *Provider) FetchOrderBook(ctx context.Context, symbol string) (*domain.OrderBook, error) {
	if !p.isConnected() {
		return nil, domain.ErrNotConnected
	}

	depth := p.config.Depth
	if depth <= 0 {
		depth = defaultDepth
	}

	q := url.Values{}
	q.Set("category", category)
	q.Set("symbol", domain.ToExchangeFormat(symbol, moduleName))
	q.Set("limit", strconv.Itoa(depth))

	var result orderBookResult
	if err := p.get(ctx, "/v5/market/orderbook", q, &result); err != nil {
		return nil, err
	}

	bids, err := domain.ParseLevels(result.Bids)
	if err != nil {
		return nil, err
	}
	asks, err := domain.ParseLevels(result.Asks)
	if err != nil {
		return nil, err
	}

	var ts time.Time
	if result.Ts > 0 {
		ts = time.UnixMilli(result.Ts).UTC()
	}

	p.logger.Debug("Fetched orderbook",
		zap.String("symbol", symbol),
		zap.Int64("update_id", result.UpdateID),
		zap.Int("bids", len(bids)),
		zap.Int("asks", len(asks)))

	return &domain.OrderBook{
		Exchange:  moduleName,
		Symbol:    symbol,
		Timestamp: ts,
		Bids:      bids,
		Asks:      asks,
	}, nil
}

type recentTradesResult struct {
	List []struct {
		ExecID string `json:"execId"`
		Price  string `json:"price"`
		Size   string `json:"size"`
		Side   string `json:"side"`
		Time   string `json:"time"`
	} `json:"list"`
}

func (p *Provider) FetchTrades(ctx context.Context, symbol string) ([]domain.Trade, error) {
	if !p.isConnected() {
		return nil, domain.ErrNotConnected
	}

	q := url.Values{}
	q.Set("category", category)
	q.Set("symbol", domain.ToExchangeFormat(symbol, moduleName))
	q.Set("limit", strconv.Itoa(tradesLimit))

	var result recentTradesResult
	if err := p.get(ctx, "/v5/market/recent-trade", q, &result); err != nil {
		return nil, err
	}

	trades := make([]domain.Trade, 0, len(result.List))
	for _, tr := range result.List {
		price, err := domain.ParseDecimal(tr.Price)
		if err != nil {
			return nil, err
		}
		size, err := domain.ParseDecimal(tr.Size)
		if err != nil {
			return nil, err
		}
		ms, err := strconv.ParseInt(tr.Time, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid trade time %q: %w", tr.Time, err)
		}

		side := domain.SideBuy
		if strings.EqualFold(tr.Side, "sell") {
			side = domain.SideSell
		}
		trades = append(trades, domain.Trade{
			ID:        tr.ExecID,
			Exchange:  moduleName,
			Symbol:    symbol,
			Timestamp: time.UnixMilli(ms).UTC(),
			Side:      side,
			Price:     price,
			Amount:    size,
		})
	}
	return trades, nil
}

func (p *Provider) isConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connected
}

type envelope struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
	Time    int64           `json:"time"`
}

func (p *Provider) get(ctx context.Context, path string, query url.Values, out any) error {
	u := strings.TrimRight(p.config.RestURL, "/") + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%s: creating request: %w", moduleName, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: executing request: %w", moduleName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %d from %s", moduleName, resp.StatusCode, path)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%s: decoding response: %w", moduleName, err)
	}
	if env.RetCode != 0 {
		return fmt.Errorf("%s: retCode %d: %s", moduleName, env.RetCode, env.RetMsg)
	}

	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("%s: decoding result: %w", moduleName, err)
	}
	return nil
}
