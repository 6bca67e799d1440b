package ecsmetrics

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// TimeLayout formats both ends of the TimeRange column (UTC)
const TimeLayout = "2006-01-02T15:04:05"

// Placeholder is written in the Value column when a metric has no data
const Placeholder = "n/a"

var header = []string{"Metric", "Value", "TimeRange"}

// FormatValue renders a sample value with the shortest representation that
// round-trips, or Placeholder.
func FormatValue(v *float64) string {
	if v == nil {
		return Placeholder
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// WriteCSV writes the header and one row per sample, in sample order.
// Records end in CRLF.
func WriteCSV(w io.Writer, samples []Sample) error {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true

	if err := cw.Write(header); err != nil {
		return err
	}
	for _, s := range samples {
		if err := cw.Write([]string{s.Metric.Name, FormatValue(s.Value), s.Window.String()}); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteFile truncates path and writes the report to it
func WriteFile(path string, samples []Sample) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()

	if err := WriteCSV(f, samples); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
