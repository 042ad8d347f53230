package export

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/token-swap/internal/events"
)

func readTape(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open tape: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("Failed to read tape: %v", err)
	}
	return rows
}

func TestTapeConcurrentAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swaps", "tape.csv")
	tape, err := OpenTape(path, 20*time.Millisecond, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to open tape: %v", err)
	}

	swap := generateTestSwaps(solana.NewWallet().PublicKey())[0]
	numGoroutines := 5
	perGoroutine := 40

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				if err := tape.Append(swap); err != nil {
					t.Errorf("Failed to append: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	written, _ := tape.Stats()
	if written != uint64(numGoroutines*perGoroutine) {
		t.Errorf("Expected %d rows written, got %d", numGoroutines*perGoroutine, written)
	}
	if err := tape.Close(); err != nil {
		t.Fatalf("Failed to close tape: %v", err)
	}

	rows := readTape(t, path)
	if len(rows) != numGoroutines*perGoroutine+1 {
		t.Fatalf("Expected header plus %d rows, got %d", numGoroutines*perGoroutine, len(rows))
	}
	if rows[0][0] != "timestamp" || rows[1][5] != "19743160" {
		t.Errorf("Unexpected tape contents: %v %v", rows[0], rows[1])
	}
}

func TestTapeAppendsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tape.csv")
	pool := solana.NewWallet().PublicKey()
	swaps := generateTestSwaps(pool)

	for _, s := range swaps[:2] {
		tape, err := OpenTape(path, time.Hour, zap.NewNop())
		if err != nil {
			t.Fatalf("Failed to open tape: %v", err)
		}
		if err := tape.Append(s); err != nil {
			t.Fatal(err)
		}
		if err := tape.Close(); err != nil {
			t.Fatal(err)
		}
	}

	rows := readTape(t, path)
	if len(rows) != 3 {
		t.Fatalf("Expected a single header and 2 rows, got %d rows", len(rows))
	}
	if rows[2][3] != "b_to_a" {
		t.Errorf("Expected second swap to be b_to_a, got %s", rows[2][3])
	}
}

func TestTapePeriodicFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tape.csv")
	tape, err := OpenTape(path, 10*time.Millisecond, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to open tape: %v", err)
	}
	defer tape.Close()

	pool := solana.NewWallet().PublicKey()
	swap := &events.SwapExecutedEvent{
		BaseEvent: events.NewBase(events.SwapExecuted, pool),
		Owner:     solana.NewWallet().PublicKey(),
		Direction: "a_to_b",
		AmountIn:  7,
		AmountOut: 6,
	}
	other := &events.LiquidityAddedEvent{BaseEvent: events.NewBase(events.LiquidityAdded, pool)}
	if err := tape.Handle(context.Background(), other); err != nil {
		t.Fatal(err)
	}
	if err := tape.Handle(context.Background(), swap); err != nil {
		t.Fatal(err)
	}

	// без явного Flush строка должна попасть на диск по тикеру
	deadline := time.Now().Add(2 * time.Second)
	for {
		if len(readTape(t, path)) == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Row was not flushed by the ticker")
		}
		time.Sleep(10 * time.Millisecond)
	}

	written, flushes := tape.Stats()
	if written != 1 {
		t.Errorf("Expected 1 row, got %d", written)
	}
	if flushes == 0 {
		t.Error("Expected periodic flushes")
	}
}
