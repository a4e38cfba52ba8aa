// Package csvwriter maintains the per-day append-only trade log.
package csvwriter

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

var header = []string{"time", "run_id", "asset", "trade_units", "price", "nav"}

// TradeLog appends executed rebalance rows to one CSV file per day. The
// file is never truncated; a header is written only on creation.
type TradeLog struct {
	dir    string
	logger *zap.Logger

	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
	day    string
}

// NewTradeLog creates a trade log rooted at dir, creating it if needed.
func NewTradeLog(dir string, logger *zap.Logger) (*TradeLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create trade log directory: %w", err)
	}
	return &TradeLog{dir: dir, logger: logger}, nil
}

// Row is one logged trade.
type Row struct {
	Time  time.Time
	RunID string
	Asset string
	Units float64
	Price float64
	NAV   float64
}

// Append writes a row to the current day's file, rolling to a new file at
// the UTC date boundary.
func (l *TradeLog) Append(row Row) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	day := row.Time.UTC().Format("2006-01-02")
	if l.file == nil || day != l.day {
		if err := l.rollLocked(day); err != nil {
			return err
		}
	}

	record := []string{
		row.Time.UTC().Format(time.RFC3339),
		row.RunID,
		row.Asset,
		strconv.FormatFloat(row.Units, 'f', -1, 64),
		strconv.FormatFloat(row.Price, 'f', -1, 64),
		strconv.FormatFloat(row.NAV, 'f', -1, 64),
	}
	if err := l.writer.Write(record); err != nil {
		return fmt.Errorf("failed to write trade log record: %w", err)
	}
	l.writer.Flush()
	return l.writer.Error()
}

func (l *TradeLog) rollLocked(day string) error {
	if l.file != nil {
		l.writer.Flush()
		if err := l.file.Close(); err != nil {
			l.logger.Warn("failed to close trade log file", zap.Error(err))
		}
	}

	path := filepath.Join(l.dir, "trades-"+day+".csv")
	info, statErr := os.Stat(path)
	fresh := statErr != nil || info.Size() == 0

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open trade log file: %w", err)
	}

	l.file = file
	l.writer = csv.NewWriter(file)
	l.day = day
	if fresh {
		if err := l.writer.Write(header); err != nil {
			return fmt.Errorf("failed to write trade log header: %w", err)
		}
		l.writer.Flush()
	}
	l.logger.Info("trade log rolled", zap.String("path", path))
	return l.writer.Error()
}

// Close flushes and closes the current file.
func (l *TradeLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	l.writer.Flush()
	return l.file.Close()
}
