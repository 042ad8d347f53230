package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/token-swap/internal/program/types"
)

// ExportFormat represents the export file format
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
)

// ParseFormat defaults to JSON.
func ParseFormat(s string) (ExportFormat, error) {
	switch ExportFormat(s) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported format: %s", s)
	}
}

// ExportOptions configures the export behavior
type ExportOptions struct {
	Format          ExportFormat
	StartTime       time.Time
	EndTime         time.Time
	DirectionFilter string           // a_to_b | b_to_a, empty for both
	OwnerFilter     solana.PublicKey // zero for every trader
}

// SwapExporter writes journal contents as CSV or JSON
type SwapExporter struct {
	logger *zap.Logger
}

func NewSwapExporter(logger *zap.Logger) *SwapExporter {
	return &SwapExporter{logger: logger.Named("export")}
}

// Export filters swaps and writes them to w in the requested format.
func (se *SwapExporter) Export(w io.Writer, swaps []Swap, options ExportOptions) error {
	filtered := filterSwaps(swaps, options)

	var err error
	switch options.Format {
	case FormatCSV:
		err = exportToCSV(w, filtered)
	case FormatJSON:
		err = exportToJSON(w, filtered)
	default:
		err = fmt.Errorf("unsupported format: %s", options.Format)
	}
	if err != nil {
		return err
	}

	se.logger.Debug("Swaps exported",
		zap.Int("count", len(filtered)),
		zap.String("format", string(options.Format)))
	return nil
}

func filterSwaps(swaps []Swap, options ExportOptions) []Swap {
	var filtered []Swap
	for _, s := range swaps {
		if !options.StartTime.IsZero() && s.Timestamp.Before(options.StartTime) {
			continue
		}
		if !options.EndTime.IsZero() && s.Timestamp.After(options.EndTime) {
			continue
		}
		if options.DirectionFilter != "" && s.Direction != options.DirectionFilter {
			continue
		}
		if !options.OwnerFilter.IsZero() && !s.Owner.Equals(options.OwnerFilter) {
			continue
		}
		filtered = append(filtered, s)
	}
	return filtered
}

// CSVHeaders returns the column order of CSV exports.
func CSVHeaders() []string {
	return []string{
		"timestamp", "pool", "owner", "direction",
		"amount_in", "amount_out", "fee", "protocol_fee",
		"reserve_in", "reserve_out",
	}
}

func (s Swap) toCSV() []string {
	u := func(v uint64) string { return strconv.FormatUint(v, 10) }
	return []string{
		s.Timestamp.UTC().Format(time.RFC3339Nano),
		s.Pool.String(),
		s.Owner.String(),
		s.Direction,
		u(s.AmountIn), u(s.AmountOut), u(s.Fee), u(s.ProtocolFee),
		u(s.ReserveIn), u(s.ReserveOut),
	}
}

func exportToCSV(w io.Writer, swaps []Swap) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(CSVHeaders()); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, s := range swaps {
		if err := writer.Write(s.toCSV()); err != nil {
			return fmt.Errorf("failed to write swap: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func exportToJSON(w io.Writer, swaps []Swap) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if swaps == nil {
		swaps = []Swap{}
	}
	exportData := struct {
		ExportTime time.Time     `json:"export_time"`
		SwapCount  int           `json:"swap_count"`
		Swaps      []Swap        `json:"swaps"`
		Summary    ExportSummary `json:"summary"`
	}{
		ExportTime: time.Now().UTC(),
		SwapCount:  len(swaps),
		Swaps:      swaps,
		Summary:    CalculateSummary(swaps),
	}

	if err := encoder.Encode(exportData); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// ExportSummary contains summary statistics for exported swaps. Volumes are
// input amounts per side; fees include the protocol part.
type ExportSummary struct {
	TotalSwaps    int       `json:"total_swaps"`
	AToBCount     int       `json:"a_to_b_count"`
	BToACount     int       `json:"b_to_a_count"`
	UniqueOwners  int       `json:"unique_owners"`
	VolumeInA     uint64    `json:"volume_in_a"`
	VolumeInB     uint64    `json:"volume_in_b"`
	FeesA         uint64    `json:"fees_a"`
	FeesB         uint64    `json:"fees_b"`
	ProtocolFeesA uint64    `json:"protocol_fees_a"`
	ProtocolFeesB uint64    `json:"protocol_fees_b"`
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date"`
}

// CalculateSummary expects swaps oldest first.
func CalculateSummary(swaps []Swap) ExportSummary {
	summary := ExportSummary{TotalSwaps: len(swaps)}
	if len(swaps) == 0 {
		return summary
	}
	summary.StartDate = swaps[0].Timestamp
	summary.EndDate = swaps[len(swaps)-1].Timestamp

	owners := make(map[solana.PublicKey]struct{})
	for _, s := range swaps {
		owners[s.Owner] = struct{}{}
		if s.Direction == types.BToA.String() {
			summary.BToACount++
			summary.VolumeInB += s.AmountIn
			summary.FeesB += s.Fee
			summary.ProtocolFeesB += s.ProtocolFee
		} else {
			summary.AToBCount++
			summary.VolumeInA += s.AmountIn
			summary.FeesA += s.Fee
			summary.ProtocolFeesA += s.ProtocolFee
		}
	}
	summary.UniqueOwners = len(owners)
	return summary
}
