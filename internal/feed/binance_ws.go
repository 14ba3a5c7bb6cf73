package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"sessiontrader/internal/types"
)

const (
	wsPingInterval = 30 * time.Second
	wsPongWait     = 75 * time.Second
	wsReconnectMin = time.Second
	wsReconnectMax = time.Minute
)

// DefaultStreamURL is the production combined-stream endpoint.
const DefaultStreamURL = "wss://stream.binance.com:9443"

// WSOptions configures a BinanceWS feed.
type WSOptions struct {
	BaseURL     string // stream endpoint, DefaultStreamURL when empty
	Symbol      string // e.g. BTCUSDT
	Interval    string // kline interval, e.g. 1m
	DepthLevels int    // partial depth levels (5, 10 or 20)
	CandleLimit int
	ListenKey   string // user data stream key; empty disables it
	Logger      *slog.Logger
}

// BinanceWS streams klines, partial depth and user data events into a
// snapshot buffer. Connections reconnect with backoff until the context
// is cancelled.
type BinanceWS struct {
	opts   WSOptions
	buf    *Buffer
	log    *slog.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// NewBinanceWS creates the feed. Call Start to connect.
func NewBinanceWS(opts WSOptions) *BinanceWS {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultStreamURL
	}
	if opts.DepthLevels == 0 {
		opts.DepthLevels = 5
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &BinanceWS{
		opts: opts,
		buf:  NewBuffer(opts.CandleLimit),
		log:  logger.With("component", "feed", "feed", "binance-ws"),
	}
}

// Start connects the market stream and, when a listen key is set, the
// user data stream. It returns immediately; reads run in background
// goroutines until ctx is cancelled or Close is called.
func (f *BinanceWS) Start(ctx context.Context) error {
	if f.opts.Symbol == "" || f.opts.Interval == "" {
		return fmt.Errorf("feed: %w: symbol and interval required", types.ErrInvalidConfig)
	}
	ctx, f.cancel = context.WithCancel(ctx)
	f.done = make(chan struct{})

	sym := strings.ToLower(f.opts.Symbol)
	marketURL := fmt.Sprintf("%s/stream?streams=%s@kline_%s/%s@depth%d@100ms",
		f.opts.BaseURL, sym, f.opts.Interval, sym, f.opts.DepthLevels)

	streams := 1
	go f.readLoop(ctx, marketURL, f.handleMarketMessage)
	if f.opts.ListenKey != "" {
		streams++
		userURL := fmt.Sprintf("%s/ws/%s", f.opts.BaseURL, f.opts.ListenKey)
		go f.readLoop(ctx, userURL, f.handleUserMessage)
	}

	go func() {
		defer close(f.done)
		<-ctx.Done()
	}()
	f.log.Info("feed started", "symbol", f.opts.Symbol, "streams", streams)
	return nil
}

// readLoop dials, pumps messages into handle, and reconnects with
// exponential backoff on any error.
func (f *BinanceWS) readLoop(ctx context.Context, url string, handle func([]byte)) {
	backoff := wsReconnectMin
	for {
		if ctx.Err() != nil {
			return
		}
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			f.log.Warn("dial failed", "error", err, "retry_in", backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = minDuration(backoff*2, wsReconnectMax)
			continue
		}
		backoff = wsReconnectMin

		if err := f.pump(ctx, conn, handle); err != nil && ctx.Err() == nil {
			f.log.Warn("stream closed", "error", err)
		}
		conn.Close()
	}
}

func (f *BinanceWS) pump(ctx context.Context, conn *websocket.Conn, handle func([]byte)) error {
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	pingCtx, stopPing := context.WithCancel(ctx)
	defer stopPing()
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pingCtx.Done():
				return
			case <-ticker.C:
				deadline := time.Now().Add(10 * time.Second)
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		handle(msg)
	}
}

// combinedMessage wraps payloads from the combined stream endpoint.
type combinedMessage struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type wsKlineEvent struct {
	Type  string `json:"e"`
	Kline struct {
		StartTime int64  `json:"t"`
		Open      string `json:"o"`
		High      string `json:"h"`
		Low       string `json:"l"`
		Close     string `json:"c"`
		Volume    string `json:"v"`
	} `json:"k"`
}

type wsDepthEvent struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

func (f *BinanceWS) handleMarketMessage(msg []byte) {
	var wrapped combinedMessage
	if err := json.Unmarshal(msg, &wrapped); err != nil || wrapped.Stream == "" {
		return
	}
	switch {
	case strings.Contains(wrapped.Stream, "@kline"):
		var ev wsKlineEvent
		if err := json.Unmarshal(wrapped.Data, &ev); err != nil {
			f.log.Debug("bad kline payload", "error", err)
			return
		}
		candle, err := candleFromKline(ev)
		if err != nil {
			f.log.Debug("bad kline values", "error", err)
			return
		}
		f.buf.PushCandle(candle)
	case strings.Contains(wrapped.Stream, "@depth"):
		var ev wsDepthEvent
		if err := json.Unmarshal(wrapped.Data, &ev); err != nil {
			f.log.Debug("bad depth payload", "error", err)
			return
		}
		depth, err := depthFromEvent(ev)
		if err != nil {
			f.log.Debug("bad depth values", "error", err)
			return
		}
		f.buf.SetDepth(depth)
	}
}

func candleFromKline(ev wsKlineEvent) (types.Candle, error) {
	var c types.Candle
	var err error
	c.OpenTime = time.UnixMilli(ev.Kline.StartTime)
	if c.Open, err = decimal.NewFromString(ev.Kline.Open); err != nil {
		return c, err
	}
	if c.High, err = decimal.NewFromString(ev.Kline.High); err != nil {
		return c, err
	}
	if c.Low, err = decimal.NewFromString(ev.Kline.Low); err != nil {
		return c, err
	}
	if c.Close, err = decimal.NewFromString(ev.Kline.Close); err != nil {
		return c, err
	}
	if c.Volume, err = decimal.NewFromString(ev.Kline.Volume); err != nil {
		return c, err
	}
	return c, nil
}

func depthFromEvent(ev wsDepthEvent) (types.Depth, error) {
	parse := func(raw [][]string) ([]types.PriceLevel, error) {
		out := make([]types.PriceLevel, 0, len(raw))
		for _, lvl := range raw {
			if len(lvl) < 2 {
				continue
			}
			price, err := decimal.NewFromString(lvl[0])
			if err != nil {
				return nil, err
			}
			qty, err := decimal.NewFromString(lvl[1])
			if err != nil {
				return nil, err
			}
			out = append(out, types.PriceLevel{Price: price, Quantity: qty})
		}
		return out, nil
	}
	var d types.Depth
	var err error
	if d.Bids, err = parse(ev.Bids); err != nil {
		return d, err
	}
	if d.Asks, err = parse(ev.Asks); err != nil {
		return d, err
	}
	return d, nil
}

type wsUserEvent struct {
	Type      string `json:"e"`
	EventTime int64  `json:"E"`

	// executionReport fields
	Symbol      string `json:"s"`
	Side        string `json:"S"`
	OrderID     int64  `json:"i"`
	Status      string `json:"X"`
	LastPrice   string `json:"L"`
	CumQuantity string `json:"z"`

	// outboundAccountPosition fields
	Balances []struct {
		Asset  string `json:"a"`
		Free   string `json:"f"`
		Locked string `json:"l"`
	} `json:"B"`
}

func (f *BinanceWS) handleUserMessage(msg []byte) {
	var ev wsUserEvent
	if err := json.Unmarshal(msg, &ev); err != nil {
		return
	}
	switch ev.Type {
	case "executionReport":
		report, err := reportFromEvent(ev)
		if err != nil {
			f.log.Debug("bad execution report", "error", err)
			return
		}
		f.buf.PushReport(report)
	case "outboundAccountPosition":
		update := types.AccountUpdate{
			EventTime: ev.EventTime,
			Balances:  map[string]types.Balance{},
		}
		for _, b := range ev.Balances {
			free, err := decimal.NewFromString(b.Free)
			if err != nil {
				continue
			}
			locked, err := decimal.NewFromString(b.Locked)
			if err != nil {
				continue
			}
			update.Balances[b.Asset] = types.Balance{Free: free, Locked: locked}
		}
		f.buf.SetAccount(update)
	}
}

func reportFromEvent(ev wsUserEvent) (types.ExecutionReport, error) {
	side := types.SideBuy
	if ev.Side == "SELL" {
		side = types.SideSell
	}
	price, err := decimal.NewFromString(ev.LastPrice)
	if err != nil {
		return types.ExecutionReport{}, err
	}
	qty, err := decimal.NewFromString(ev.CumQuantity)
	if err != nil {
		return types.ExecutionReport{}, err
	}
	return types.ExecutionReport{
		Symbol:    ev.Symbol,
		OrderID:   ev.OrderID,
		Side:      side,
		Status:    types.ReportStatus(ev.Status),
		LastPrice: price,
		Quantity:  qty,
		EventTime: ev.EventTime,
	}, nil
}

// Candles returns the candle window, most-recent first.
func (f *BinanceWS) Candles() ([]types.Candle, error) {
	candles := f.buf.Candles()
	if len(candles) == 0 {
		return nil, types.ErrDataUnavailable
	}
	return candles, nil
}

// Depth returns the current order book snapshot.
func (f *BinanceWS) Depth() (types.Depth, error) {
	d := f.buf.Depth()
	if len(d.Bids) == 0 && len(d.Asks) == 0 {
		return types.Depth{}, types.ErrDataUnavailable
	}
	return d, nil
}

// LastUpdate returns the time of the most recent market update.
func (f *BinanceWS) LastUpdate() time.Time { return f.buf.LastUpdate() }

// Reports drains the buffered execution reports.
func (f *BinanceWS) Reports() []types.ExecutionReport { return f.buf.Reports() }

// Account drains the latest wallet update.
func (f *BinanceWS) Account() (types.AccountUpdate, bool) { return f.buf.Account() }

// Close stops the read loops.
func (f *BinanceWS) Close() error {
	if f.cancel != nil {
		f.cancel()
		<-f.done
	}
	return nil
}

// Name returns the feed identifier.
func (f *BinanceWS) Name() string { return "binance-ws" }

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
