package gate

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/igefined/orderbook-sampler/internal/config"
	"github.com/igefined/orderbook-sampler/internal/domain"
)

const (
	orderBookChannel = "spot.order_book"
	bookInterval     = "100ms"
	pollInterval     = 20 * time.Millisecond
)

type cachedBook struct {
	updateID int64
	book     *domain.OrderBook
}

// Provider streams order book snapshots over the Gate v4 WebSocket and
// uses the REST API for the market catalog and public trades.
type Provider struct {
	config     config.GateConfig
	logger     *zap.Logger
	httpClient *http.Client

	conn    *websocket.Conn
	mu      sync.RWMutex
	writeMu sync.Mutex
	cancel  context.CancelFunc
	readErr error

	orderBookCache map[string]cachedBook
	lastServed     map[string]int64
	subscriptions  map[string]bool
}

func NewProvider(cfg config.GateConfig, logger *zap.Logger) *Provider {
	return &Provider{
		config:         cfg,
		logger:         logger.Named("gate"),
		httpClient:     &http.Client{Timeout: 15 * time.Second},
		orderBookCache: make(map[string]cachedBook),
		lastServed:     make(map[string]int64),
		subscriptions:  make(map[string]bool),
	}
}

func (p *Provider) Name() string {
	return moduleName
}

func (p *Provider) Connect(ctx context.Context) error {
	p.logger.Info("Connecting to Gate exchange")

	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, p.config.WsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to Gate websocket: %w", err)
	}

	readCtx, cancel := context.WithCancel(context.Background())

	p.mu.Lock()
	p.conn = conn
	p.cancel = cancel
	p.readErr = nil
	p.subscriptions = make(map[string]bool)
	p.mu.Unlock()

	go p.messageHandler(readCtx, conn)

	p.logger.Info("Connected to Gate exchange")
	return nil
}

func (p *Provider) Disconnect() error {
	p.logger.Info("Disconnecting from Gate exchange")

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	if p.conn != nil {
		err := p.conn.Close()
		p.conn = nil
		return err
	}

	return nil
}

type currencyPair struct {
	ID          string `json:"id"`
	TradeStatus string `json:"trade_status"`
}

func (p *Provider) GetSupportedSymbols(ctx context.Context) ([]string, error) {
	var pairs []currencyPair
	if err := p.getJSON(ctx, "/spot/currency_pairs", nil, &pairs); err != nil {
		return nil, err
	}

	symbols := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		if pair.TradeStatus == "" || pair.TradeStatus == "tradable" {
			symbols = append(symbols, domain.NormalizeSymbol(pair.ID))
		}
	}
	return symbols, nil
}

// FetchOrderBook returns the next snapshot pushed for symbol after the one
// handed out by the previous call.
func (p *Provider) FetchOrderBook(ctx context.Context, symbol string) (*domain.OrderBook, error) {
	pair := domain.ToExchangeFormat(symbol, moduleName)

	if err := p.subscribeToOrderbook(pair); err != nil {
		return nil, fmt.Errorf("failed to subscribe to orderbook: %w", err)
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		p.mu.RLock()
		cached, exists := p.orderBookCache[pair]
		readErr := p.readErr
		p.mu.RUnlock()

		if exists && cached.updateID > p.lastServed[pair] {
			p.lastServed[pair] = cached.updateID
			return cached.book, nil
		}
		if readErr != nil {
			return nil, fmt.Errorf("websocket closed: %w", readErr)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

type tradeResponse struct {
	ID           string `json:"id"`
	CreateTimeMs string `json:"create_time_ms"`
	Side         string `json:"side"`
	Amount       string `json:"amount"`
	Price        string `json:"price"`
}

func (p *Provider) FetchTrades(ctx context.Context, symbol string) ([]domain.Trade, error) {
	pair := domain.ToExchangeFormat(symbol, moduleName)

	q := url.Values{}
	q.Set("currency_pair", pair)
	q.Set("limit", "100")

	var resp []tradeResponse
	if err := p.getJSON(ctx, "/spot/trades", q, &resp); err != nil {
		return nil, err
	}

	trades := make([]domain.Trade, 0, len(resp))
	for _, tr := range resp {
		price, err := domain.ParseDecimal(tr.Price)
		if err != nil {
			return nil, err
		}
		amount, err := domain.ParseDecimal(tr.Amount)
		if err != nil {
			return nil, err
		}
		ms, err := domain.ParseDecimal(tr.CreateTimeMs)
		if err != nil {
			return nil, err
		}

		side := domain.SideBuy
		if tr.Side == "sell" {
			side = domain.SideSell
		}
		trades = append(trades, domain.Trade{
			ID:        tr.ID,
			Exchange:  moduleName,
			Symbol:    symbol,
			Timestamp: time.UnixMicro(int64(ms * 1000)).UTC(),
			Side:      side,
			Price:     price,
			Amount:    amount,
		})
	}
	return trades, nil
}

func (p *Provider) getJSON(ctx context.Context, path string, query url.Values, out any) error {
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

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decoding response: %w", moduleName, err)
	}
	return nil
}

func (p *Provider) genSign(channel, event string, timestamp int64) map[string]string {
	signatureString := fmt.Sprintf("channel=%s&event=%s&time=%d", channel, event, timestamp)

	h := hmac.New(sha512.New, []byte(p.config.APISecret))
	h.Write([]byte(signatureString))
	signature := hex.EncodeToString(h.Sum(nil))

	return map[string]string{
		"method": "api_key",
		"KEY":    p.config.APIKey,
		"SIGN":   signature,
	}
}

func (p *Provider) subscribeToOrderbook(pair string) error {
	p.mu.RLock()
	conn := p.conn
	alreadySubscribed := p.subscriptions[pair]
	p.mu.RUnlock()

	if conn == nil {
		return domain.ErrNotConnected
	}

	if alreadySubscribed {
		return nil
	}

	timestamp := time.Now().Unix()
	event := "subscribe"
	depth := p.config.Depth
	if depth <= 0 {
		depth = 10
	}
	payload := []string{pair, strconv.Itoa(depth), bookInterval}

	request := map[string]interface{}{
		"time":    timestamp,
		"channel": orderBookChannel,
		"event":   event,
		"payload": payload,
	}

	if p.config.APIKey != "" && p.config.APISecret != "" {
		request["auth"] = p.genSign(orderBookChannel, event, timestamp)
	}

	msg, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal subscription request: %w", err)
	}

	// Use write mutex to prevent concurrent writes to websocket
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	p.logger.Info("Subscribing to orderbook", zap.String("symbol", pair))
	if err = conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return fmt.Errorf("failed to send subscription request: %w", err)
	}

	p.mu.Lock()
	p.subscriptions[pair] = true
	p.mu.Unlock()

	return nil
}

type OrderBookResponse struct {
	Time    int64         `json:"time"`
	Channel string        `json:"channel"`
	Event   string        `json:"event"`
	Result  OrderbookData `json:"result"`
}

type OrderbookData struct {
	T            int64      `json:"t"`
	LastUpdateID int64      `json:"lastUpdateId"`
	S            string     `json:"s"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

func (p *Provider) messageHandler(ctx context.Context, conn *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				p.logger.Error("Failed to read message", zap.Error(err))
			}
			p.mu.Lock()
			if p.conn == conn {
				p.readErr = err
			}
			p.mu.Unlock()
			return
		}

		p.processMessage(message)
	}
}

func (p *Provider) processMessage(message []byte) {
	var genericResponse struct {
		Time    int64       `json:"time"`
		Channel string      `json:"channel"`
		Event   string      `json:"event"`
		Error   interface{} `json:"error"`
	}

	if err := json.Unmarshal(message, &genericResponse); err != nil {
		p.logger.Error("Failed to unmarshal message", zap.Error(err))
		return
	}

	if genericResponse.Error != nil {
		p.logger.Warn("WebSocket subscription error",
			zap.String("channel", genericResponse.Channel),
			zap.String("event", genericResponse.Event),
			zap.Any("error", genericResponse.Error))
		return
	}

	if genericResponse.Channel == orderBookChannel && genericResponse.Event == "update" {
		var response OrderBookResponse
		if err := json.Unmarshal(message, &response); err != nil {
			p.logger.Error("Failed to unmarshal orderbook response", zap.Error(err))
			return
		}
		p.processOrderBookUpdate(response)
	} else if genericResponse.Event == "subscribe" {
		p.logger.Debug("Subscription confirmed", zap.String("channel", genericResponse.Channel))
	}
}

func (p *Provider) processOrderBookUpdate(response OrderBookResponse) {
	symbol := response.Result.S

	bids, err := domain.ParseLevels(response.Result.Bids)
	if err != nil {
		p.logger.Warn("Dropping malformed orderbook update", zap.String("symbol", symbol), zap.Error(err))
		return
	}
	asks, err := domain.ParseLevels(response.Result.Asks)
	if err != nil {
		p.logger.Warn("Dropping malformed orderbook update", zap.String("symbol", symbol), zap.Error(err))
		return
	}

	ts := time.Now().UTC()
	if response.Result.T > 0 {
		ts = time.UnixMilli(response.Result.T).UTC()
	}

	orderBook := &domain.OrderBook{
		Exchange:  moduleName,
		Symbol:    domain.NormalizeSymbol(symbol),
		Timestamp: ts,
		Bids:      bids,
		Asks:      asks,
	}

	p.mu.Lock()
	p.orderBookCache[symbol] = cachedBook{updateID: response.Result.LastUpdateID, book: orderBook}
	p.mu.Unlock()

	p.logger.Debug("Updated orderbook",
		zap.String("symbol", symbol),
		zap.Int64("update_id", response.Result.LastUpdateID),
		zap.Int("bids", len(orderBook.Bids)),
		zap.Int("asks", len(orderBook.Asks)))
}
