package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/smc_engine/internal/domain"
)

func newStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func closedPosition(id, mode string, closedAt time.Time) *domain.ClosedPosition {
	return &domain.ClosedPosition{
		Position: domain.Position{
			ID: id, Symbol: "BTCUSDT", Side: domain.SideLong, SizeBase: 0.01,
			EntryPrice: 50000, StopLoss: 49880, TakeProfit: 50200,
			OpenedAt: closedAt.Add(-time.Minute),
		},
		Mode:        mode,
		ExitPrice:   50200,
		QuoteCost:   500,
		RealizedPnL: 2,
		Equity:      1002,
		Reason:      domain.CloseTakeProfit,
		ClosedAt:    closedAt,
	}
}

func TestSQLiteStore_ClosedPositions(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveClosedPosition(ctx, closedPosition("a", "ALL", base)))
	require.NoError(t, store.SaveClosedPosition(ctx, closedPosition("b", "ALL", base.Add(time.Hour))))
	require.NoError(t, store.SaveClosedPosition(ctx, closedPosition("c", "CHALLENGE", base)))

	got, err := store.ListClosedPositions(ctx, "ALL", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "a", got[1].ID)

	want := closedPosition("a", "ALL", base)
	assert.Equal(t, want.Side, got[1].Side)
	assert.Equal(t, want.Reason, got[1].Reason)
	assert.Equal(t, want.ExitPrice, got[1].ExitPrice)
	assert.True(t, want.ClosedAt.Equal(got[1].ClosedAt))
	assert.True(t, want.OpenedAt.Equal(got[1].OpenedAt))

	got, err = store.ListClosedPositions(ctx, "ALL", 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = store.ListClosedPositions(ctx, "NONE", 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	assert.Error(t, store.SaveClosedPosition(ctx, closedPosition("a", "ALL", base)), "duplicate id")
}

func TestSQLiteStore_WebhookEvents(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	conf := 72.5

	require.NoError(t, store.SaveWebhookEvent(ctx, &domain.WebhookEvent{
		Time: time.Unix(1700000000, 0), Plan: "ALL", Signal: "KARNA", Side: "LONG", Symbol: "BTCUSDT", Timeframe: "15m", Confidence: &conf,
	}))
	require.NoError(t, store.SaveWebhookEvent(ctx, &domain.WebhookEvent{
		Time: time.Unix(1700000060, 0), Plan: "CHALLENGE", Signal: "KARNA", Side: "SHORT",
	}))

	got, err := store.ListWebhookEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "CHALLENGE", got[0].Plan)
	assert.Nil(t, got[0].Confidence)
	require.NotNil(t, got[1].Confidence)
	assert.Equal(t, 72.5, *got[1].Confidence)
	assert.Nil(t, got[1].Cost)
}

func TestSQLiteStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.SaveClosedPosition(context.Background(), closedPosition("a", "ALL", time.Now())))
	require.NoError(t, store.Close())

	store, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer store.Close()
	got, err := store.ListClosedPositions(context.Background(), "ALL", 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
