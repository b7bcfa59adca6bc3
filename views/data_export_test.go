package views

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sensor-fdir/models"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVWriter_HeaderRowsAndFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName(models.ClassRate))
	w, err := NewCSVWriter(path, 0, true, SchemaColumns)
	require.NoError(t, err)

	rec := models.AxisRecord{TimestampNs: 1500, Values: models.Vec3{1, 2.5, -3}, Valid: true}
	require.NoError(t, w.WriteRow(rec.CSVRow()))
	require.NoError(t, w.WriteRow(models.AxisRecord{TimestampNs: 1600}.CSVRow()))
	require.NoError(t, w.Close())

	assert.Equal(t, uint64(2), w.Rows())
	assert.Equal(t, [][]string{
		{"timestamp_ns", "x", "y", "z", "valid"},
		{"1500", "1.000000", "2.500000", "-3.000000", "1"},
		{"1600", "0.000000", "0.000000", "0.000000", "0"},
	}, readCSV(t, path))
}

func TestCSVWriter_NoHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.csv")
	w, err := NewCSVWriter(path, 128, false, SchemaColumns)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Empty(t, readCSV(t, path))
}

func TestCSVWriter_BadPath(t *testing.T) {
	_, err := NewCSVWriter(filepath.Join(t.TempDir(), "missing", "x.csv"), 0, true, SchemaColumns)
	assert.Error(t, err)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "rate.csv", FileName(models.ClassRate))
	assert.Equal(t, "position.csv", FileName(models.ClassPosition))
}
