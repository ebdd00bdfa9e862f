package api

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/newplayman/bingx-dashboard/internal/dashboard"
	gateway "github.com/newplayman/bingx-dashboard/internal/exchange"
)

type mockDashboard struct {
	mock.Mock
}

func (m *mockDashboard) Overview(ctx context.Context) (dashboard.Overview, error) {
	args := m.Called(ctx)
	return args.Get(0).(dashboard.Overview), args.Error(1)
}

func (m *mockDashboard) Balance(ctx context.Context) (gateway.Balance, error) {
	args := m.Called(ctx)
	return args.Get(0).(gateway.Balance), args.Error(1)
}

func (m *mockDashboard) Positions(ctx context.Context, symbol string) ([]dashboard.PositionView, error) {
	args := m.Called(ctx, symbol)
	v, _ := args.Get(0).([]dashboard.PositionView)
	return v, args.Error(1)
}

func (m *mockDashboard) OpenOrders(ctx context.Context, symbol string) ([]gateway.Order, error) {
	args := m.Called(ctx, symbol)
	v, _ := args.Get(0).([]gateway.Order)
	return v, args.Error(1)
}

func (m *mockDashboard) OrderHistory(ctx context.Context, q gateway.HistoryQuery) ([]gateway.Order, error) {
	args := m.Called(ctx, q)
	v, _ := args.Get(0).([]gateway.Order)
	return v, args.Error(1)
}

func (m *mockDashboard) Income(ctx context.Context, q gateway.HistoryQuery) ([]gateway.IncomeRecord, error) {
	args := m.Called(ctx, q)
	v, _ := args.Get(0).([]gateway.IncomeRecord)
	return v, args.Error(1)
}

func (m *mockDashboard) PnLSeries(ctx context.Context, days int) ([]dashboard.PnLPoint, error) {
	args := m.Called(ctx, days)
	v, _ := args.Get(0).([]dashboard.PnLPoint)
	return v, args.Error(1)
}

func (m *mockDashboard) Ticker(ctx context.Context, symbol string) (gateway.Ticker, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(gateway.Ticker), args.Error(1)
}

func (m *mockDashboard) Tickers(ctx context.Context) ([]gateway.Ticker, error) {
	args := m.Called(ctx)
	v, _ := args.Get(0).([]gateway.Ticker)
	return v, args.Error(1)
}

func (m *mockDashboard) Klines(ctx context.Context, symbol, interval string, limit int) ([]gateway.Kline, error) {
	args := m.Called(ctx, symbol, interval, limit)
	v, _ := args.Get(0).([]gateway.Kline)
	return v, args.Error(1)
}

func (m *mockDashboard) Contracts(ctx context.Context) ([]gateway.Contract, error) {
	args := m.Called(ctx)
	v, _ := args.Get(0).([]gateway.Contract)
	return v, args.Error(1)
}

func (m *mockDashboard) Snapshots(ctx context.Context, limit int) ([]dashboard.Snapshot, error) {
	args := m.Called(ctx, limit)
	v, _ := args.Get(0).([]dashboard.Snapshot)
	return v, args.Error(1)
}

func (m *mockDashboard) Watchlist(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	v, _ := args.Get(0).([]string)
	return v, args.Error(1)
}

func (m *mockDashboard) SetWatchlist(ctx context.Context, symbols []string) ([]string, error) {
	args := m.Called(ctx, symbols)
	v, _ := args.Get(0).([]string)
	return v, args.Error(1)
}

func (m *mockDashboard) PlaceOrder(ctx context.Context, r gateway.OrderRequest) (gateway.OrderResult, error) {
	args := m.Called(ctx, r)
	return args.Get(0).(gateway.OrderResult), args.Error(1)
}

func (m *mockDashboard) CancelOrder(ctx context.Context, symbol, orderID string) (gateway.OrderResult, error) {
	args := m.Called(ctx, symbol, orderID)
	return args.Get(0).(gateway.OrderResult), args.Error(1)
}

func (m *mockDashboard) CancelAll(ctx context.Context, symbol string) (gateway.BatchResult, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(gateway.BatchResult), args.Error(1)
}

func (m *mockDashboard) ClosePosition(ctx context.Context, symbol string) (gateway.BatchResult, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(gateway.BatchResult), args.Error(1)
}

func (m *mockDashboard) CloseAll(ctx context.Context) (gateway.BatchResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(gateway.BatchResult), args.Error(1)
}

func (m *mockDashboard) Leverage(ctx context.Context, symbol string) (gateway.Leverage, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(gateway.Leverage), args.Error(1)
}

func (m *mockDashboard) SetLeverage(ctx context.Context, symbol, side string, leverage int) error {
	return m.Called(ctx, symbol, side, leverage).Error(0)
}
