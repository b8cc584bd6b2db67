// Package export writes computed views to disk as CSV or JSON Lines.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dgnsrekt/bsdash/internal/dashboard"
	"github.com/dgnsrekt/bsdash/internal/payoff"
	"github.com/dgnsrekt/bsdash/internal/surface"
)

// Format is an output encoding.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatJSONL Format = "jsonl"
)

// ParseFormat accepts csv and jsonl.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatCSV, FormatJSONL:
		return Format(s), nil
	default:
		return "", fmt.Errorf("invalid export format %q (must be 'csv' or 'jsonl')", s)
	}
}

// WriteFile writes to a temp file next to path and renames it into place, so
// readers never observe a partial file. It returns the number of bytes
// written.
func WriteFile(path string, write func(io.Writer) error) (int64, error) {
	// Create parent directories
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return 0, fmt.Errorf("creating directories: %w", err)
	}

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}

	cw := &countingWriter{w: f}
	err = write(cw)
	if closeErr := f.Close(); closeErr != nil && err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("writing file: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("renaming temp file: %w", err)
	}

	return cw.n, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// JSONL writes one JSON document per line.
func JSONL[T any](w io.Writer, items []T) error {
	enc := json.NewEncoder(w)
	for i := range items {
		if err := enc.Encode(items[i]); err != nil {
			return fmt.Errorf("encoding item %d: %w", i, err)
		}
	}
	return nil
}

// SurfaceCSV writes the grid in long form, one row per cell.
func SurfaceCSV(w io.Writer, g surface.Grid) error {
	rows := make([][]string, 0, g.Cells()+1)
	rows = append(rows, []string{"volatility", "spot", "price"})
	for i, vol := range g.Volatilities {
		for j, spot := range g.Spots {
			rows = append(rows, []string{ftoa(vol), ftoa(spot), ftoa(g.At(i, j))})
		}
	}
	return writeCSV(w, rows)
}

// PayoffCSV writes the payoff diagram samples.
func PayoffCSV(w io.Writer, points []payoff.Point) error {
	rows := make([][]string, 0, len(points)+1)
	rows = append(rows, []string{"spot", "long", "short", "intrinsic"})
	for _, p := range points {
		rows = append(rows, []string{ftoa(p.Spot), ftoa(p.Long), ftoa(p.Short), ftoa(p.Intrinsic)})
	}
	return writeCSV(w, rows)
}

// SensitivityCSV writes a Greek curve with its driving parameter as the
// first column. Theta curves gain a days column.
func SensitivityCSV(w io.Writer, v dashboard.SensitivityView) error {
	header := []string{string(v.Parameter), string(v.Greek)}
	if v.XDays != nil {
		header = []string{string(v.Parameter), "days", string(v.Greek)}
	}

	rows := make([][]string, 0, len(v.X)+1)
	rows = append(rows, header)
	for i, x := range v.X {
		if v.XDays != nil {
			rows = append(rows, []string{ftoa(x), ftoa(v.XDays[i]), ftoa(v.Y[i])})
			continue
		}
		rows = append(rows, []string{ftoa(x), ftoa(v.Y[i])})
	}
	return writeCSV(w, rows)
}

func writeCSV(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("writing csv: %w", err)
	}
	return nil
}

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
