// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists harvested citations: a CSV summary, one YAML
// metadata file per citation and a SQLite index for later listing.
package store

import (
	"context"
	"errors"

	"github.com/pdiddy/scholar-harvest/pkg/types"
)

const (
	csvFile     = "output.csv"
	metadataDir = "metadata"
	dbFile      = "citations.db"
)

// Sink receives the full citation list. Save replaces whatever the sink held
// for the same citation IDs.
type Sink interface {
	Save(ctx context.Context, citations []*types.Citation) error
}

type multi []Sink

// Multi returns a Sink that saves to every sink in order. All sinks are
// attempted; their errors are joined.
func Multi(sinks ...Sink) Sink {
	return multi(sinks)
}

func (m multi) Save(ctx context.Context, citations []*types.Citation) error {
	var errs []error
	for _, s := range m {
		if err := s.Save(ctx, citations); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
