package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/token-swap/internal/events"
)

func generateTestSwaps(pool solana.PublicKey) []Swap {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	alice := solana.NewWallet().PublicKey()
	bob := solana.NewWallet().PublicKey()
	return []Swap{
		{Timestamp: base, Pool: pool, Owner: alice, Direction: "a_to_b", AmountIn: 10_000_000, AmountOut: 19_743_160, Fee: 30_000},
		{Timestamp: base.Add(time.Minute), Pool: pool, Owner: bob, Direction: "b_to_a", AmountIn: 5_000, AmountOut: 2_400, Fee: 15, ProtocolFee: 7},
		{Timestamp: base.Add(2 * time.Minute), Pool: pool, Owner: alice, Direction: "a_to_b", AmountIn: 1_000, AmountOut: 1_900, Fee: 3},
	}
}

func TestSwapExportCSV(t *testing.T) {
	exporter := NewSwapExporter(zap.NewNop())
	swaps := generateTestSwaps(solana.NewWallet().PublicKey())

	var buf bytes.Buffer
	if err := exporter.Export(&buf, swaps, ExportOptions{Format: FormatCSV}); err != nil {
		t.Fatalf("Failed to export swaps: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("Failed to read CSV back: %v", err)
	}
	if len(rows) != len(swaps)+1 {
		t.Fatalf("Expected %d rows, got %d", len(swaps)+1, len(rows))
	}
	if strings.Join(rows[0], ",") != strings.Join(CSVHeaders(), ",") {
		t.Errorf("Unexpected header: %v", rows[0])
	}
	if rows[1][4] != "10000000" || rows[1][5] != "19743160" {
		t.Errorf("Unexpected amounts in first row: %v", rows[1])
	}
}

func TestSwapExportJSON(t *testing.T) {
	exporter := NewSwapExporter(zap.NewNop())
	swaps := generateTestSwaps(solana.NewWallet().PublicKey())

	var buf bytes.Buffer
	if err := exporter.Export(&buf, swaps, ExportOptions{Format: FormatJSON}); err != nil {
		t.Fatalf("Failed to export swaps: %v", err)
	}

	var decoded struct {
		SwapCount int           `json:"swap_count"`
		Swaps     []Swap        `json:"swaps"`
		Summary   ExportSummary `json:"summary"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("Failed to decode JSON: %v", err)
	}
	if decoded.SwapCount != 3 || len(decoded.Swaps) != 3 {
		t.Errorf("Expected 3 swaps, got %d/%d", decoded.SwapCount, len(decoded.Swaps))
	}
	if decoded.Swaps[0].Owner != swaps[0].Owner {
		t.Errorf("Owner did not survive the round trip")
	}
}

func TestSwapExportFilters(t *testing.T) {
	swaps := generateTestSwaps(solana.NewWallet().PublicKey())

	tests := []struct {
		name    string
		options ExportOptions
		want    int
	}{
		{"no filter", ExportOptions{}, 3},
		{"direction", ExportOptions{DirectionFilter: "a_to_b"}, 2},
		{"owner", ExportOptions{OwnerFilter: swaps[1].Owner}, 1},
		{"start time", ExportOptions{StartTime: swaps[1].Timestamp}, 2},
		{"end time", ExportOptions{EndTime: swaps[0].Timestamp}, 1},
		{"window and direction", ExportOptions{StartTime: swaps[1].Timestamp, DirectionFilter: "b_to_a"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(filterSwaps(swaps, tt.options)); got != tt.want {
				t.Errorf("Expected %d swaps, got %d", tt.want, got)
			}
		})
	}
}

func TestExportSummaryCalculation(t *testing.T) {
	swaps := generateTestSwaps(solana.NewWallet().PublicKey())
	summary := CalculateSummary(swaps)

	if summary.TotalSwaps != 3 || summary.AToBCount != 2 || summary.BToACount != 1 {
		t.Errorf("Unexpected counts: %+v", summary)
	}
	if summary.UniqueOwners != 2 {
		t.Errorf("Expected 2 owners, got %d", summary.UniqueOwners)
	}
	if summary.VolumeInA != 10_001_000 || summary.VolumeInB != 5_000 {
		t.Errorf("Unexpected volumes: a=%d b=%d", summary.VolumeInA, summary.VolumeInB)
	}
	if summary.FeesA != 30_003 || summary.FeesB != 15 || summary.ProtocolFeesB != 7 {
		t.Errorf("Unexpected fees: %+v", summary)
	}
	if !summary.StartDate.Equal(swaps[0].Timestamp) || !summary.EndDate.Equal(swaps[2].Timestamp) {
		t.Errorf("Unexpected date range: %v - %v", summary.StartDate, summary.EndDate)
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]ExportFormat{"": FormatJSON, "json": FormatJSON, "csv": FormatCSV} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("Expected an error for xml")
	}
}

func TestJournalKeepsNewestSwaps(t *testing.T) {
	j := NewJournal(2)
	pool := solana.NewWallet().PublicKey()
	swaps := generateTestSwaps(pool)
	for _, s := range swaps {
		j.Add(s)
	}

	got := j.Swaps(pool)
	if len(got) != 2 {
		t.Fatalf("Expected 2 swaps, got %d", len(got))
	}
	if !got[0].Timestamp.Equal(swaps[1].Timestamp) || !got[1].Timestamp.Equal(swaps[2].Timestamp) {
		t.Errorf("Journal lost ordering: %v, %v", got[0].Timestamp, got[1].Timestamp)
	}
	if j.Swaps(solana.NewWallet().PublicKey()) != nil {
		t.Error("Unknown pool should have no swaps")
	}
}

func TestJournalHandlesSwapEvents(t *testing.T) {
	j := NewJournal(0)
	pool := solana.NewWallet().PublicKey()

	swap := &events.SwapExecutedEvent{
		BaseEvent: events.NewBase(events.SwapExecuted, pool),
		Owner:     solana.NewWallet().PublicKey(),
		Direction: "b_to_a",
		AmountIn:  42,
		AmountOut: 40,
		Fee:       1,
	}
	other := &events.LiquidityAddedEvent{BaseEvent: events.NewBase(events.LiquidityAdded, pool)}

	if err := j.Handle(context.Background(), other); err != nil {
		t.Fatal(err)
	}
	if err := j.Handle(context.Background(), swap); err != nil {
		t.Fatal(err)
	}

	got := j.Swaps(pool)
	if len(got) != 1 || got[0].AmountIn != 42 || got[0].Owner != swap.Owner {
		t.Errorf("Unexpected journal contents: %+v", got)
	}
}
