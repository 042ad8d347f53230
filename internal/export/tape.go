package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/token-swap/internal/events"
)

// DefaultTapeFlushInterval is used when the tape is opened with a
// non-positive interval.
const DefaultTapeFlushInterval = time.Second

// Tape appends every committed swap to a CSV file. Unlike the journal it is
// unbounded and survives restarts. Rows are buffered and flushed periodically.
type Tape struct {
	mu       sync.Mutex
	writer   *csv.Writer
	file     *os.File
	ticker   *time.Ticker
	done     chan struct{}
	logger   *zap.Logger
	filePath string

	// Stats
	written uint64
	flushes uint64
}

var _ events.Handler = (*Tape)(nil)

// OpenTape opens (or creates) the tape at filePath. A header is written
// only into an empty file, so restarts keep appending to the same table.
func OpenTape(filePath string, flushInterval time.Duration, logger *zap.Logger) (*Tape, error) {
	if flushInterval <= 0 {
		flushInterval = DefaultTapeFlushInterval
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	t := &Tape{
		writer:   csv.NewWriter(file),
		file:     file,
		ticker:   time.NewTicker(flushInterval),
		done:     make(chan struct{}),
		logger:   logger.Named("tape"),
		filePath: filePath,
	}

	if stat.Size() == 0 {
		t.writer.Write(CSVHeaders())
		t.writer.Flush()
		if err := t.writer.Error(); err != nil {
			t.ticker.Stop()
			file.Close()
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}

	go t.periodicFlush()
	return t, nil
}

// Handle appends swap events and ignores everything else.
func (t *Tape) Handle(_ context.Context, event events.Event) error {
	e, ok := event.(*events.SwapExecutedEvent)
	if !ok {
		return nil
	}
	return t.Append(swapFromEvent(e))
}

func (t *Tape) Append(s Swap) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.writer.Write(s.toCSV()); err != nil {
		return fmt.Errorf("failed to write swap: %w", err)
	}
	t.written++
	return nil
}

// Flush forces buffered rows to disk.
func (t *Tape) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.flushLocked()
}

func (t *Tape) flushLocked() error {
	t.writer.Flush()
	if err := t.writer.Error(); err != nil {
		return fmt.Errorf("CSV writer error: %w", err)
	}
	if err := t.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync file: %w", err)
	}
	t.flushes++
	return nil
}

func (t *Tape) periodicFlush() {
	for {
		select {
		case <-t.ticker.C:
			if err := t.Flush(); err != nil {
				t.logger.Error("Periodic tape flush failed",
					zap.String("file", t.filePath),
					zap.Error(err))
			}
		case <-t.done:
			return
		}
	}
}

// Close flushes what is left and closes the file.
func (t *Tape) Close() error {
	close(t.done)
	t.ticker.Stop()

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.flushLocked(); err != nil {
		t.file.Close()
		return err
	}
	if err := t.file.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}

	t.logger.Info("Swap tape closed",
		zap.String("file", t.filePath),
		zap.Uint64("written", t.written),
		zap.Uint64("flushes", t.flushes))
	return nil
}

// Stats returns how many rows were appended and how many flushes ran.
func (t *Tape) Stats() (written, flushes uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.written, t.flushes
}
