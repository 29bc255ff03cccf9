// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/scholar-harvest/pkg/types"
)

// timeLayout keeps every stored timestamp the same width so the TEXT
// columns sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore indexes citations in <dir>/citations.db so earlier runs can be
// listed and filtered.
type SQLiteStore struct {
	db *sql.DB
}

// DBPath returns the index database location under dir.
func DBPath(dir string) string {
	return filepath.Join(dir, dbFile)
}

// NewSQLiteStore opens or creates the index database under dir and creates
// the schema if it does not exist.
func NewSQLiteStore(dir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating results directory: %w", err)
	}

	db, err := sql.Open("sqlite3", DBPath(dir)+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS citations (
			id TEXT PRIMARY KEY,
			message_id TEXT,
			raw_link TEXT NOT NULL,
			publisher_url TEXT,
			doi TEXT,
			reference TEXT,
			download_status TEXT NOT NULL,
			source_url TEXT,
			pdf_path TEXT,
			failure TEXT,
			discovered_at TEXT,
			updated_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_citations_status ON citations(download_status)`,
		`CREATE INDEX IF NOT EXISTS idx_citations_doi ON citations(doi)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Save upserts every citation in a single transaction.
func (s *SQLiteStore) Save(ctx context.Context, citations []*types.Citation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO citations (id, message_id, raw_link, publisher_url, doi, reference,
			download_status, source_url, pdf_path, failure, discovered_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			message_id=excluded.message_id, raw_link=excluded.raw_link,
			publisher_url=excluded.publisher_url, doi=excluded.doi,
			reference=excluded.reference, download_status=excluded.download_status,
			source_url=excluded.source_url, pdf_path=excluded.pdf_path,
			failure=excluded.failure, updated_at=excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(timeLayout)
	for _, c := range citations {
		discovered := ""
		if !c.DiscoveredAt.IsZero() {
			discovered = c.DiscoveredAt.UTC().Format(timeLayout)
		}
		status := c.Status
		if status == "" {
			status = types.StatusPending
		}
		_, err := stmt.ExecContext(ctx,
			c.ID, c.MessageID, c.RawLink, c.PublisherURL, c.DOI, c.Reference,
			string(status), c.SourceURL, c.PDFPath, c.Failure, discovered, now,
		)
		if err != nil {
			return fmt.Errorf("upserting citation %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Status types.DownloadStatus
	// DOIPrefix matches citations whose DOI starts with the prefix, e.g. a
	// publisher registrant such as "10.1371".
	DOIPrefix string
	// WithReference keeps only citations that have a formatted reference.
	WithReference bool
	Limit         int
}

// List returns indexed citations ordered by discovery time, then ID.
func (s *SQLiteStore) List(ctx context.Context, f Filter) ([]*types.Citation, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "download_status = ?")
		args = append(args, string(f.Status))
	}
	if f.DOIPrefix != "" {
		where = append(where, "doi LIKE ? ESCAPE '\\'")
		args = append(args, escapeLike(f.DOIPrefix)+"%")
	}
	if f.WithReference {
		where = append(where, "reference IS NOT NULL AND reference != ''")
	}

	query := `SELECT id, message_id, raw_link, publisher_url, doi, reference,
		download_status, source_url, pdf_path, failure, discovered_at
		FROM citations`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY discovered_at, id"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying citations: %w", err)
	}
	defer rows.Close()

	var out []*types.Citation
	for rows.Next() {
		var c types.Citation
		var status, discovered string
		var msgID, pub, doi, ref, src, pdf, failure sql.NullString
		if err := rows.Scan(&c.ID, &msgID, &c.RawLink, &pub, &doi, &ref,
			&status, &src, &pdf, &failure, &discovered); err != nil {
			return nil, fmt.Errorf("scanning citation: %w", err)
		}
		c.MessageID = msgID.String
		c.PublisherURL = pub.String
		c.DOI = doi.String
		c.Reference = ref.String
		c.Status = types.DownloadStatus(status)
		c.SourceURL = src.String
		c.PDFPath = pdf.String
		c.Failure = failure.String
		if discovered != "" {
			if t, err := time.Parse(timeLayout, discovered); err == nil {
				c.DiscoveredAt = t
			}
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// Counts returns the number of indexed citations per download status.
func (s *SQLiteStore) Counts(ctx context.Context) (map[types.DownloadStatus]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT download_status, count(*) FROM citations GROUP BY download_status`)
	if err != nil {
		return nil, fmt.Errorf("counting citations: %w", err)
	}
	defer rows.Close()

	counts := make(map[types.DownloadStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning count: %w", err)
		}
		counts[types.DownloadStatus(status)] = n
	}
	return counts, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
