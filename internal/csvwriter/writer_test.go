package csvwriter

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func readAll(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestTradeLogAppend(t *testing.T) {
	dir := t.TempDir()
	log, err := NewTradeLog(dir, zap.NewNop())
	require.NoError(t, err)
	defer log.Close()

	ts := time.Date(2024, 3, 7, 10, 0, 0, 0, time.UTC)
	require.NoError(t, log.Append(Row{
		Time: ts, RunID: "run-1", Asset: "ETH", Units: 3.333, Price: 0.03, NAV: 0.8,
	}))
	require.NoError(t, log.Append(Row{
		Time: ts.Add(time.Minute), RunID: "run-1", Asset: "XRP", Units: -100, Price: 0.00001, NAV: 0.8,
	}))

	records := readAll(t, filepath.Join(dir, "trades-2024-03-07.csv"))
	require.Len(t, records, 3)
	assert.Equal(t, []string{"time", "run_id", "asset", "trade_units", "price", "nav"}, records[0])
	assert.Equal(t, "ETH", records[1][2])
	assert.Equal(t, "3.333", records[1][3])
	assert.Equal(t, "-100", records[2][3])
}

func TestTradeLogRollsAtDayBoundary(t *testing.T) {
	dir := t.TempDir()
	log, err := NewTradeLog(dir, zap.NewNop())
	require.NoError(t, err)
	defer log.Close()

	d1 := time.Date(2024, 3, 7, 23, 59, 0, 0, time.UTC)
	d2 := time.Date(2024, 3, 8, 0, 1, 0, 0, time.UTC)
	require.NoError(t, log.Append(Row{Time: d1, RunID: "a", Asset: "ETH", Units: 1, Price: 1, NAV: 1}))
	require.NoError(t, log.Append(Row{Time: d2, RunID: "b", Asset: "ETH", Units: 2, Price: 1, NAV: 1}))

	first := readAll(t, filepath.Join(dir, "trades-2024-03-07.csv"))
	second := readAll(t, filepath.Join(dir, "trades-2024-03-08.csv"))
	assert.Len(t, first, 2)
	assert.Len(t, second, 2)
}

func TestTradeLogAppendsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ts := time.Date(2024, 3, 7, 10, 0, 0, 0, time.UTC)

	log, err := NewTradeLog(dir, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, log.Append(Row{Time: ts, RunID: "a", Asset: "ETH", Units: 1, Price: 1, NAV: 1}))
	require.NoError(t, log.Close())

	// A second process on the same day must append, not truncate, and
	// must not repeat the header.
	log, err = NewTradeLog(dir, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, log.Append(Row{Time: ts.Add(time.Hour), RunID: "b", Asset: "ETH", Units: 2, Price: 1, NAV: 1}))
	require.NoError(t, log.Close())

	records := readAll(t, filepath.Join(dir, "trades-2024-03-07.csv"))
	require.Len(t, records, 3)
	assert.Equal(t, "a", records[1][1])
	assert.Equal(t, "b", records[2][1])
}
