package gormstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ballast/internal/risk"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	store, err := NewGormStore(filepath.Join(t.TempDir(), "ballast.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleResult(ts time.Time) *risk.Result {
	order := risk.NewOrder("AAPL", risk.SideBuy, decimal.NewFromInt(10), decimal.NewFromInt(150), 0.8, ts)
	return &risk.Result{
		Orders:     []risk.Order{order},
		StopLosses: map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(145)},
		Violations: map[string][]string{"max_position": {"AAPL: scaled from 20 to 10"}},
	}
}

func TestSaveAndLoadEvaluation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	signals := []risk.Signal{{Symbol: "AAPL", Direction: risk.DirectionLong, Strength: 0.8, Timestamp: ts}}
	id, err := store.SaveEvaluation(ctx, "default", decimal.NewFromInt(100000), signals, sampleResult(ts))
	require.NoError(t, err)
	require.Positive(t, id)

	rec, err := store.Evaluation(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "default", rec.Profile)
	assert.Equal(t, "100000", rec.Equity)
	assert.False(t, rec.Halted)
	require.Len(t, rec.Signals, 1)
	assert.Equal(t, "AAPL", rec.Signals[0].Symbol)
	require.NotNil(t, rec.Result)
	require.Len(t, rec.Result.Orders, 1)
	assert.Equal(t, "AAPL", rec.Result.Orders[0].Symbol)
	assert.True(t, rec.Result.Orders[0].Quantity.Equal(decimal.NewFromInt(10)))
	require.Contains(t, rec.Violations, "max_position")
}

func TestRecentEvaluationsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		_, err := store.SaveEvaluation(ctx, "default", decimal.NewFromInt(int64(100000+i)), nil, sampleResult(ts))
		require.NoError(t, err)
	}

	rows, err := store.RecentEvaluations(ctx, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Greater(t, rows[0].ID, rows[1].ID)
	assert.Equal(t, "100002", rows[0].Equity)
}

func TestOrdersBySymbol(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := store.SaveEvaluation(ctx, "default", decimal.NewFromInt(100000), nil, sampleResult(ts))
	require.NoError(t, err)
	_, err = store.SaveEvaluation(ctx, "default", decimal.NewFromInt(100000), nil, sampleResult(ts))
	require.NoError(t, err)

	rows, err := store.OrdersBySymbol(ctx, "aapl", 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "AAPL", rows[0].Symbol)
	assert.Equal(t, "10", rows[0].Quantity)

	none, err := store.OrdersBySymbol(ctx, "TSLA", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSaveEvaluationRejectsNilResult(t *testing.T) {
	store := newTestStore(t)
	_, err := store.SaveEvaluation(context.Background(), "default", decimal.Zero, nil, nil)
	require.Error(t, err)
}

func TestEvaluationNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Evaluation(context.Background(), 9999)
	require.Error(t, err)
}
