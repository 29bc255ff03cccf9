// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/scholar-harvest/pkg/types"
)

// MetadataSink writes one YAML file per citation under <dir>/metadata/.
type MetadataSink struct {
	Dir string
}

// NewMetadataSink returns a sink rooted at dir/metadata.
func NewMetadataSink(dir string) *MetadataSink {
	return &MetadataSink{Dir: filepath.Join(dir, metadataDir)}
}

// Save writes <id>.yaml for every citation. A citation that cannot be
// written does not stop the others.
func (s *MetadataSink) Save(ctx context.Context, citations []*types.Citation) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("creating metadata directory: %w", err)
	}
	var errs []error
	for _, c := range citations {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writeMetadata(c, s.path(c.ID)); err != nil {
			errs = append(errs, fmt.Errorf("metadata %s: %w", c.ID, err))
		}
	}
	return errors.Join(errs...)
}

// Load reads the metadata record for id.
func (s *MetadataSink) Load(id string) (*types.Citation, error) {
	return readMetadata(s.path(id))
}

// LoadAll reads every metadata record, sorted by ID. Unparseable files are
// skipped.
func (s *MetadataSink) LoadAll() ([]*types.Citation, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading metadata directory: %w", err)
	}
	var out []*types.Citation
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		c, err := readMetadata(filepath.Join(s.Dir, e.Name()))
		if err != nil {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MetadataSink) path(id string) string {
	return filepath.Join(s.Dir, id+".yaml")
}

func writeMetadata(c *types.Citation, path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func readMetadata(path string) (*types.Citation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c types.Citation
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
