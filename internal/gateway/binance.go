package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"sessiontrader/internal/types"
)

// Binance places orders through the Binance REST API. All requests pass
// a shared rate limiter so bursts of session ticks stay inside the
// exchange request weight.
type Binance struct {
	client  *binance.Client
	limiter *rate.Limiter
	log     *slog.Logger
}

// BinanceOptions configures the gateway.
type BinanceOptions struct {
	APIKey             string
	APISecret          string
	Testnet            bool
	RateLimitPerSecond int
	RateLimitBurst     int
	Logger             *slog.Logger
}

// NewBinance creates the gateway.
func NewBinance(opts BinanceOptions) *Binance {
	if opts.RateLimitPerSecond <= 0 {
		opts.RateLimitPerSecond = 5
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = 10
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	binance.UseTestnet = opts.Testnet
	return &Binance{
		client:  binance.NewClient(opts.APIKey, opts.APISecret),
		limiter: rate.NewLimiter(rate.Limit(opts.RateLimitPerSecond), opts.RateLimitBurst),
		log:     logger.With("component", "gateway", "gateway", "binance"),
	}
}

// PlaceOrder submits an order. Business rejections (insufficient
// balance, unknown order) come back in Result.Code with a nil error.
func (g *Binance) PlaceOrder(ctx context.Context, req Request) (Result, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return Result{}, err
	}
	switch req.Type {
	case types.OrderTypeMarket, types.OrderTypeLimit, types.OrderTypeStopLossLimit:
		if req.Margin {
			return g.placeMargin(ctx, req)
		}
		return g.placeSpot(ctx, req)
	case types.OrderTypeOCOLimit:
		return g.placeOCO(ctx, req)
	default:
		return Result{}, fmt.Errorf("place order: unsupported order type %s", req.Type)
	}
}

func (g *Binance) placeSpot(ctx context.Context, req Request) (Result, error) {
	svc := g.client.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(sideOf(req.Side)).
		Type(typeOf(req.Type)).
		Quantity(req.Quantity.String())
	if req.Type != types.OrderTypeMarket {
		svc = svc.TimeInForce(binance.TimeInForceTypeGTC).Price(req.Price.String())
	}
	if req.Type == types.OrderTypeStopLossLimit {
		svc = svc.StopPrice(req.StopPrice.String())
	}

	resp, err := svc.Do(ctx)
	if err != nil {
		return mapAPIError(err)
	}
	res := Result{OrderID: resp.OrderID, Status: types.ReportStatus(resp.Status)}
	res.Price = avgFillPrice(resp.Fills)
	g.log.Info("order placed", "symbol", req.Symbol, "side", req.Side, "type", req.Type, "order_id", resp.OrderID)
	return res, nil
}

// avgFillPrice averages the fill prices weighted by quantity. Zero when
// nothing filled yet.
func avgFillPrice(fills []*binance.Fill) decimal.Decimal {
	total, qty := decimal.Zero, decimal.Zero
	for _, f := range fills {
		p, err := decimal.NewFromString(f.Price)
		if err != nil {
			continue
		}
		q, err := decimal.NewFromString(f.Quantity)
		if err != nil {
			continue
		}
		total = total.Add(p.Mul(q))
		qty = qty.Add(q)
	}
	if qty.IsZero() {
		return decimal.Zero
	}
	return total.Div(qty)
}

func (g *Binance) placeMargin(ctx context.Context, req Request) (Result, error) {
	svc := g.client.NewCreateMarginOrderService().
		Symbol(req.Symbol).
		Side(sideOf(req.Side)).
		Type(typeOf(req.Type)).
		Quantity(req.Quantity.String())
	if req.Type != types.OrderTypeMarket {
		svc = svc.TimeInForce(binance.TimeInForceTypeGTC).Price(req.Price.String())
	}
	if req.Type == types.OrderTypeStopLossLimit {
		svc = svc.StopPrice(req.StopPrice.String())
	}

	resp, err := svc.Do(ctx)
	if err != nil {
		return mapAPIError(err)
	}
	res := Result{OrderID: resp.OrderID, Status: types.ReportStatus(resp.Status)}
	res.Price = avgFillPrice(resp.Fills)
	g.log.Info("margin order placed", "symbol", req.Symbol, "side", req.Side, "type", req.Type, "order_id", resp.OrderID)
	return res, nil
}

func (g *Binance) placeOCO(ctx context.Context, req Request) (Result, error) {
	resp, err := g.client.NewCreateOCOService().
		Symbol(req.Symbol).
		Side(sideOf(req.Side)).
		Quantity(req.Quantity.String()).
		Price(req.Price.String()).
		StopPrice(req.StopPrice.String()).
		StopLimitPrice(req.StopLimitPrice.String()).
		StopLimitTimeInForce(binance.TimeInForceTypeGTC).
		Do(ctx)
	if err != nil {
		return mapAPIError(err)
	}
	res := Result{ListID: resp.OrderListID}
	if len(resp.Orders) > 0 {
		res.OrderID = resp.Orders[0].OrderID
	}
	g.log.Info("oco placed", "symbol", req.Symbol, "list_id", res.ListID, "order_id", res.OrderID)
	return res, nil
}

// CancelOrder cancels a resting order. An unknown-order rejection is
// reported through Result.Code.
func (g *Binance) CancelOrder(ctx context.Context, symbol string, orderID int64) (Result, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return Result{}, err
	}
	resp, err := g.client.NewCancelOrderService().
		Symbol(symbol).
		OrderID(orderID).
		Do(ctx)
	if err != nil {
		return mapAPIError(err)
	}
	g.log.Info("order cancelled", "symbol", symbol, "order_id", orderID)
	return Result{OrderID: resp.OrderID, Status: types.ReportStatus(resp.Status)}, nil
}

// CancelOCO cancels an OCO order list.
func (g *Binance) CancelOCO(ctx context.Context, symbol string, listID int64) (Result, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return Result{}, err
	}
	resp, err := g.client.NewCancelOCOService().
		Symbol(symbol).
		OrderListID(listID).
		Do(ctx)
	if err != nil {
		return mapAPIError(err)
	}
	g.log.Info("oco cancelled", "symbol", symbol, "list_id", resp.OrderListID)
	return Result{ListID: resp.OrderListID}, nil
}

// Borrow takes a margin loan and returns the transaction id.
func (g *Binance) Borrow(ctx context.Context, asset string, amount decimal.Decimal) (int64, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	resp, err := g.client.NewMarginLoanService().
		Asset(asset).
		Amount(amount.String()).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("margin borrow %s %s: %w", amount, asset, err)
	}
	g.log.Info("margin loan taken", "asset", asset, "amount", amount, "tran_id", resp.TranID)
	return resp.TranID, nil
}

// Repay settles a margin loan.
func (g *Binance) Repay(ctx context.Context, asset string, amount decimal.Decimal) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := g.client.NewMarginRepayService().
		Asset(asset).
		Amount(amount.String()).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("margin repay %s %s: %w", amount, asset, err)
	}
	g.log.Info("margin loan repaid", "asset", asset, "amount", amount)
	return nil
}

// ListenKey opens a user data stream.
func (g *Binance) ListenKey(ctx context.Context) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}
	key, err := g.client.NewStartUserStreamService().Do(ctx)
	if err != nil {
		return "", fmt.Errorf("start user stream: %w", err)
	}
	return key, nil
}

// KeepAlive extends a user data stream's lifetime.
func (g *Binance) KeepAlive(ctx context.Context, key string) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := g.client.NewKeepaliveUserStreamService().ListenKey(key).Do(ctx); err != nil {
		return fmt.Errorf("keepalive user stream: %w", err)
	}
	return nil
}

// Name returns the gateway identifier.
func (g *Binance) Name() string { return "binance" }

// mapAPIError turns known exchange business codes into Result.Code and
// leaves everything else as an error.
func mapAPIError(err error) (Result, error) {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case CodeInsufficientBalance, CodeUnknownOrder:
			return Result{Code: apiErr.Code}, nil
		}
	}
	return Result{}, fmt.Errorf("exchange request: %w", err)
}

func sideOf(s types.Side) binance.SideType {
	if s == types.SideSell {
		return binance.SideTypeSell
	}
	return binance.SideTypeBuy
}

func typeOf(t types.OrderType) binance.OrderType {
	switch t {
	case types.OrderTypeLimit:
		return binance.OrderTypeLimit
	case types.OrderTypeStopLossLimit:
		return binance.OrderTypeStopLossLimit
	default:
		return binance.OrderTypeMarket
	}
}
