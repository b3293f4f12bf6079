package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaleTradeSweeper_RunNow(t *testing.T) {
	f := newFixture(t)
	f.asset(t, "a1", "alice", true)
	f.asset(t, "b1", "bob", true)
	ctx := context.Background()
	trade := f.propose(t, "alice", "bob", []string{"a1"}, []string{"b1"})

	_, err := f.library.SetAssetTradeable(ctx, "bob", "b1", false)
	require.NoError(t, err)

	sweeper := NewStaleTradeSweeper(f.trades, SweeperConfig{Interval: time.Hour, BatchSize: 10})
	purged, err := sweeper.RunNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	_, err = f.trades.GetTrade(ctx, trade.ID, "alice")
	assert.ErrorIs(t, err, ErrNotFound)

	stats := sweeper.Stats()
	assert.Equal(t, 1, stats["last_purge"])
	assert.Contains(t, stats, "last_run")
}

func TestStaleTradeSweeper_StartStop(t *testing.T) {
	f := newFixture(t)
	sweeper := NewStaleTradeSweeper(f.trades, SweeperConfig{Interval: 10 * time.Millisecond, InitialDelay: time.Millisecond})

	sweeper.Start()
	sweeper.Start()
	assert.Equal(t, true, sweeper.Stats()["running"])

	time.Sleep(30 * time.Millisecond)
	sweeper.Stop()
	sweeper.Stop()
	assert.Equal(t, false, sweeper.Stats()["running"])
	assert.Contains(t, sweeper.Stats(), "last_run")
}
