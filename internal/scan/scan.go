// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package scan searches downloaded PDFs for museum collection catalog codes
// (CAN, CMN and NMC specimen numbers).
package scan

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"
)

// CollectionCode matches a single catalog code.
var CollectionCode = regexp.MustCompile(
	`\bCAN[ALM]?\s[0-9]{1,}\b` +
		`|\bCMN[ABCEFILMNPVY]{1,3}?\s[0-9]{1,}-?[0-9]{1,}?\b` +
		`|\bNMC\s[0-9]{1,}\b`)

// Finding lists the codes found in one PDF.
type Finding struct {
	ID           string   `yaml:"id" json:"id"`
	CatalogItems []string `yaml:"catalog_items" json:"catalog_items"`
}

// Codes returns the unique codes in text, in order of first appearance.
func Codes(text string) []string {
	return appendUnique(nil, CollectionCode.FindAllString(text, -1))
}

func appendUnique(dst, src []string) []string {
	for _, s := range src {
		found := false
		for _, d := range dst {
			if d == s {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, s)
		}
	}
	return dst
}

// Scan reads every *.pdf file directly in dir, sorted by name, and returns
// one Finding per readable PDF. The ID is the file name without extension.
// PDFs that cannot be opened are logged and skipped.
func Scan(ctx context.Context, dir string, logger *zap.Logger) ([]Finding, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading results directory %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var findings []Finding
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return findings, err
		}
		pages, err := PageTexts(filepath.Join(dir, name))
		if err != nil {
			logger.Warn("skipping unreadable pdf", zap.String("file", name), zap.Error(err))
			continue
		}
		var codes []string
		for _, text := range pages {
			codes = appendUnique(codes, CollectionCode.FindAllString(text, -1))
		}
		findings = append(findings, Finding{
			ID:           strings.TrimSuffix(name, filepath.Ext(name)),
			CatalogItems: codes,
		})
	}
	return findings, nil
}

// PageTexts returns the plain text of every page of the PDF at path. Pages
// whose text cannot be extracted are returned empty.
func PageTexts(path string) (pages []string, err error) {
	// The PDF reader panics on some malformed input.
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("parsing %s: %v", path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	n := r.NumPage()
	pages = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// WriteYAML writes findings as a YAML list.
func WriteYAML(w io.Writer, findings []Finding) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if findings == nil {
		findings = []Finding{}
	}
	if err := enc.Encode(findings); err != nil {
		return fmt.Errorf("encoding findings: %w", err)
	}
	return enc.Close()
}
