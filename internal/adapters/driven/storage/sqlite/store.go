package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/askdocs/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/askdocs/internal/adapters/driven/storage/vectors"
	"github.com/custodia-labs/askdocs/internal/core/domain"
	"github.com/custodia-labs/askdocs/internal/core/ports/driven"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

const (
	dbFileName    = "index.db"
	metaDimKey    = "dimension"
	metaMetricKey = "metric"
)

// VectorIndex is a persistent vector index stored in SQLite.
type VectorIndex struct {
	db        *sql.DB
	path      string
	dimension int
}

// NewVectorIndex opens or creates the index database in dataDir.
// If dataDir is empty, defaults to ~/.askdocs/data. A new database is
// created for vectors of the given dimension; an existing one keeps the
// dimension it was created with.
func NewVectorIndex(dataDir string, dimension int) (*VectorIndex, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", domain.ErrInvalidInput, dimension)
	}

	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".askdocs", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, dbFileName)

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	v := &VectorIndex{
		db:   db,
		path: dbPath,
	}

	if err := v.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	if err := v.initDimension(dimension); err != nil {
		db.Close()
		return nil, err
	}

	return v, nil
}

// Close closes the database connection.
func (v *VectorIndex) Close() error {
	return v.db.Close()
}

// Path returns the database file path.
func (v *VectorIndex) Path() string {
	return v.path
}

// migrate runs all pending migrations.
func (v *VectorIndex) migrate(fsys fs.FS) error {
	_, err := v.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := v.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if name := entry.Name(); strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_index.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := v.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := v.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// initDimension records dimension for a new database and loads the
// stored one otherwise.
func (v *VectorIndex) initDimension(dimension int) error {
	_, err := v.db.Exec(
		"INSERT OR IGNORE INTO index_meta (key, value) VALUES (?, ?), (?, ?)",
		metaDimKey, strconv.Itoa(dimension),
		metaMetricKey, domain.MetricCosine.String(),
	)
	if err != nil {
		return fmt.Errorf("recording index dimension: %w", err)
	}

	var stored string
	if err := v.db.QueryRow("SELECT value FROM index_meta WHERE key = ?", metaDimKey).Scan(&stored); err != nil {
		return fmt.Errorf("reading index dimension: %w", err)
	}
	v.dimension, err = strconv.Atoi(stored)
	if err != nil {
		return fmt.Errorf("parsing index dimension %q: %w", stored, err)
	}
	return nil
}

// Upsert inserts records in one transaction, replacing any with the same id.
func (v *VectorIndex) Upsert(ctx context.Context, records []domain.IndexRecord) error {
	for _, r := range records {
		if err := vectors.CheckDimension(r.Vector, v.dimension); err != nil {
			return err
		}
	}

	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return writeFailure("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (id, source_id, chunk_index, text, metadata, vector, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source_id = excluded.source_id,
			chunk_index = excluded.chunk_index,
			text = excluded.text,
			metadata = excluded.metadata,
			vector = excluded.vector,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return writeFailure("prepare upsert", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, r := range records {
		sourceID, index, ok := domain.ParseRecordID(r.ID)
		if !ok {
			sourceID, index = r.ID, 0
		}
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return writeFailure("marshalling metadata", err)
		}
		if _, err := stmt.ExecContext(ctx, r.ID, sourceID, index, r.Text, string(meta), vectors.Encode(r.Vector), now); err != nil {
			return writeFailure("upsert "+r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return writeFailure("commit", err)
	}
	return nil
}

// Query returns up to k records closest to vector, best first.
func (v *VectorIndex) Query(ctx context.Context, vector []float32, k int) ([]domain.RetrievalResult, error) {
	if err := vectors.CheckDimension(vector, v.dimension); err != nil {
		return nil, err
	}

	rows, err := v.db.QueryContext(ctx, "SELECT id, text, metadata, vector FROM records")
	if err != nil {
		return nil, queryFailure("select records", err)
	}
	defer func() { _ = rows.Close() }()

	top := vectors.NewTopK(k)
	for rows.Next() {
		var (
			r    domain.IndexRecord
			meta string
			blob []byte
		)
		if err := rows.Scan(&r.ID, &r.Text, &meta, &blob); err != nil {
			return nil, queryFailure("scan record", err)
		}
		if r.Vector, err = vectors.Decode(blob); err != nil {
			return nil, queryFailure("decode "+r.ID, err)
		}
		if err := json.Unmarshal([]byte(meta), &r.Metadata); err != nil {
			return nil, queryFailure("unmarshalling metadata of "+r.ID, err)
		}
		top.Add(domain.RetrievalResult{Record: r, Score: vectors.Cosine(vector, r.Vector)})
	}
	if err := rows.Err(); err != nil {
		return nil, queryFailure("iterate records", err)
	}

	return top.Results(), nil
}

// Describe reports the index dimension and record count.
func (v *VectorIndex) Describe(ctx context.Context) (domain.IndexDescription, error) {
	var count int
	if err := v.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records").Scan(&count); err != nil {
		return domain.IndexDescription{}, queryFailure("count records", err)
	}
	return domain.IndexDescription{
		Dimension: v.dimension,
		Metric:    domain.MetricCosine,
		Count:     count,
	}, nil
}

// DeleteSource removes the records of sourceID from fromIndex onwards.
func (v *VectorIndex) DeleteSource(ctx context.Context, sourceID string, fromIndex int) error {
	_, err := v.db.ExecContext(ctx,
		"DELETE FROM records WHERE source_id = ? AND chunk_index >= ?", sourceID, fromIndex)
	if err != nil {
		return writeFailure("delete "+sourceID, err)
	}
	return nil
}

func writeFailure(op string, err error) error {
	if errors.Is(err, domain.ErrIndexWriteFailure) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrIndexWriteFailure, op, err)
}

func queryFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrIndexQueryFailure, op, err)
}
