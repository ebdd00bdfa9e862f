package dashboard

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	gateway "github.com/newplayman/bingx-dashboard/internal/exchange"
	"github.com/newplayman/bingx-dashboard/internal/store"
)

type mockExchange struct {
	mock.Mock
}

func (m *mockExchange) Balance(ctx context.Context) (gateway.Balance, error) {
	args := m.Called(ctx)
	return args.Get(0).(gateway.Balance), args.Error(1)
}

func (m *mockExchange) Positions(ctx context.Context, symbol string) ([]gateway.Position, error) {
	args := m.Called(ctx, symbol)
	pos, _ := args.Get(0).([]gateway.Position)
	return pos, args.Error(1)
}

func (m *mockExchange) OpenOrders(ctx context.Context, symbol string) ([]gateway.Order, error) {
	args := m.Called(ctx, symbol)
	orders, _ := args.Get(0).([]gateway.Order)
	return orders, args.Error(1)
}

func (m *mockExchange) OrderHistory(ctx context.Context, q gateway.HistoryQuery) ([]gateway.Order, error) {
	args := m.Called(ctx, q)
	orders, _ := args.Get(0).([]gateway.Order)
	return orders, args.Error(1)
}

func (m *mockExchange) Income(ctx context.Context, q gateway.HistoryQuery) ([]gateway.IncomeRecord, error) {
	args := m.Called(ctx, q)
	recs, _ := args.Get(0).([]gateway.IncomeRecord)
	return recs, args.Error(1)
}

func (m *mockExchange) PlaceOrder(ctx context.Context, r gateway.OrderRequest) (gateway.OrderResult, error) {
	args := m.Called(ctx, r)
	return args.Get(0).(gateway.OrderResult), args.Error(1)
}

func (m *mockExchange) CancelOrder(ctx context.Context, symbol, orderID string) (gateway.OrderResult, error) {
	args := m.Called(ctx, symbol, orderID)
	return args.Get(0).(gateway.OrderResult), args.Error(1)
}

func (m *mockExchange) CancelAllOrders(ctx context.Context, symbol string) (gateway.BatchResult, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(gateway.BatchResult), args.Error(1)
}

func (m *mockExchange) CloseAllPositions(ctx context.Context, symbol string) (gateway.BatchResult, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(gateway.BatchResult), args.Error(1)
}

func (m *mockExchange) GetLeverage(ctx context.Context, symbol string) (gateway.Leverage, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(gateway.Leverage), args.Error(1)
}

func (m *mockExchange) SetLeverage(ctx context.Context, symbol, side string, leverage int) error {
	return m.Called(ctx, symbol, side, leverage).Error(0)
}

func (m *mockExchange) Ticker(ctx context.Context, symbol string) (gateway.Ticker, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(gateway.Ticker), args.Error(1)
}

func (m *mockExchange) Klines(ctx context.Context, symbol, interval string, limit int) ([]gateway.Kline, error) {
	args := m.Called(ctx, symbol, interval, limit)
	ks, _ := args.Get(0).([]gateway.Kline)
	return ks, args.Error(1)
}

func (m *mockExchange) Contracts(ctx context.Context) ([]gateway.Contract, error) {
	args := m.Called(ctx)
	cs, _ := args.Get(0).([]gateway.Contract)
	return cs, args.Error(1)
}

func newTestKV(t *testing.T) store.KV {
	t.Helper()
	kv, err := store.NewSQLite(filepath.Join(t.TempDir(), "dash.db"))
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	return kv
}
