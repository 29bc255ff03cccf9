// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdiddy/scholar-harvest/pkg/types"
)

// CSVHeader is the first row of output.csv.
var CSVHeader = []string{"UUID", "URL", "DOI", "Reference"}

// CSVSink rewrites <dir>/output.csv on every Save.
type CSVSink struct {
	Path string
}

// NewCSVSink returns a sink writing dir/output.csv.
func NewCSVSink(dir string) *CSVSink {
	return &CSVSink{Path: filepath.Join(dir, csvFile)}
}

// Save writes one row per citation in slice order. Absent values are empty
// cells. The file is replaced atomically.
func (s *CSVSink) Save(ctx context.Context, citations []*types.Citation) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("creating csv directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.Path), ".output-*.csv")
	if err != nil {
		return fmt.Errorf("creating csv: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	w := csv.NewWriter(tmp)
	if err := w.Write(CSVHeader); err != nil {
		tmp.Close()
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, c := range citations {
		if err := ctx.Err(); err != nil {
			tmp.Close()
			return err
		}
		if err := w.Write([]string{c.ID, c.PublisherURL, c.DOI, c.Reference}); err != nil {
			tmp.Close()
			return fmt.Errorf("writing csv row %s: %w", c.ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flushing csv: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing csv: %w", err)
	}
	if err := os.Rename(tmpPath, s.Path); err != nil {
		return fmt.Errorf("renaming csv: %w", err)
	}
	return nil
}
