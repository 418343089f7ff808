package csv

import (
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `timestamp,symbol,open,high,low,close,volume,bid,ask
1000,AAPL,100.0,101.0,99.5,100.5,2000,100.4,100.6
2000,AAPL,100.5,102.0,100.0,101.5,1800,,
not-a-number,AAPL,1,1,1,1,1,1,1
3000,MSFT,400.0,405.0,399.0,402.0,3000,401.9,402.1
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadParsesRowsAndSkipsInvalid(t *testing.T) {
	path := writeFile(t, "data.csv", sampleCSV)
	points, err := Load(path, nil)
	require.NoError(t, err)
	require.Len(t, points, 3)

	assert.Equal(t, "AAPL", points[0].Symbol)
	assert.InDelta(t, 100.4, points[0].BidPrice, 1e-9)
	assert.InDelta(t, 100.6, points[0].AskPrice, 1e-9)
}

func TestLoadFillsSyntheticSpreadWhenMissing(t *testing.T) {
	path := writeFile(t, "data.csv", sampleCSV)
	points, err := Load(path, nil)
	require.NoError(t, err)

	require.Len(t, points, 3)
	second := points[1]
	assert.InDelta(t, second.LastPrice*0.999, second.BidPrice, 1e-9)
	assert.InDelta(t, second.LastPrice*1.001, second.AskPrice, 1e-9)
}

func TestLoadSortsChronologically(t *testing.T) {
	path := writeFile(t, "data.csv", sampleCSV)
	points, err := Load(path, nil)
	require.NoError(t, err)
	for i := 1; i < len(points); i++ {
		assert.LessOrEqual(t, points[i-1].TimestampMs, points[i].TimestampMs)
	}
}

func TestLoadGzip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte(sampleCSV))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	points, err := Load(path, nil)
	require.NoError(t, err)
	assert.Len(t, points, 3)
}
