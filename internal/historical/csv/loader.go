// Package csv loads historical market-data bars from the CSV/CSV.gz
// format the backtest harness replays.
package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/abdoElHodaky/hft-core/internal/errs"
	"github.com/abdoElHodaky/hft-core/internal/historical"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"
)

// Load reads timestamp,symbol,open,high,low,close,volume,bid,ask rows
// from path (transparently gunzipped when path ends in .gz), sorts them
// chronologically, and fills missing bid/ask with a 0.1% synthetic
// spread around close. Unparseable rows are skipped with a warning rather
// than aborting the whole file.
func Load(path string, logger *zap.Logger) ([]historical.DataPoint, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("historical/csv: open %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("historical/csv: gzip %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("historical/csv: parse %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	points := make([]historical.DataPoint, 0, len(rows)-1)
	for i, row := range rows[1:] { // skip header line
		dp, err := parseRow(row)
		if err != nil {
			errs.Report(logger, errs.New(errs.Parse, "historical/csv",
				fmt.Errorf("line %d: %w", i+2, err)))
			continue
		}
		points = append(points, dp)
	}

	sort.Slice(points, func(i, j int) bool { return points[i].TimestampMs < points[j].TimestampMs })
	return points, nil
}

func parseRow(row []string) (historical.DataPoint, error) {
	if len(row) < 7 {
		return historical.DataPoint{}, fmt.Errorf("expected at least 7 fields, got %d", len(row))
	}

	ts, err := strconv.ParseUint(strings.TrimSpace(row[0]), 10, 64)
	if err != nil {
		return historical.DataPoint{}, fmt.Errorf("timestamp: %w", err)
	}
	symbol := strings.TrimSpace(row[1])

	open, err := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
	if err != nil {
		return historical.DataPoint{}, fmt.Errorf("open: %w", err)
	}
	high, err := strconv.ParseFloat(strings.TrimSpace(row[3]), 64)
	if err != nil {
		return historical.DataPoint{}, fmt.Errorf("high: %w", err)
	}
	low, err := strconv.ParseFloat(strings.TrimSpace(row[4]), 64)
	if err != nil {
		return historical.DataPoint{}, fmt.Errorf("low: %w", err)
	}
	closePx, err := strconv.ParseFloat(strings.TrimSpace(row[5]), 64)
	if err != nil {
		return historical.DataPoint{}, fmt.Errorf("close: %w", err)
	}
	volume, err := strconv.ParseUint(strings.TrimSpace(row[6]), 10, 64)
	if err != nil {
		return historical.DataPoint{}, fmt.Errorf("volume: %w", err)
	}

	bid := closePx * 0.999
	if len(row) > 7 {
		if v := strings.TrimSpace(row[7]); v != "" && v != "null" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				bid = parsed
			}
		}
	}
	ask := closePx * 1.001
	if len(row) > 8 {
		if v := strings.TrimSpace(row[8]); v != "" && v != "null" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				ask = parsed
			}
		}
	}

	return historical.DataPoint{
		TimestampMs: ts,
		Symbol:      symbol,
		OpenPrice:   open,
		HighPrice:   high,
		LowPrice:    low,
		LastPrice:   closePx,
		BidPrice:    bid,
		AskPrice:    ask,
		TotalVolume: volume,
	}, nil
}
