// Package pgvector provides a driven.VectorIndex backed by Postgres with
// the pgvector extension.
package pgvector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgv "github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/askdocs/internal/adapters/driven/storage/vectors"
	"github.com/custodia-labs/askdocs/internal/core/domain"
	"github.com/custodia-labs/askdocs/internal/core/ports/driven"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

// DefaultTable is the table records are stored in.
const DefaultTable = "askdocs_records"

// Option configures a VectorIndex.
type Option func(*VectorIndex)

// WithTable overrides the table name.
func WithTable(name string) Option {
	return func(v *VectorIndex) {
		if name != "" {
			v.name = name
		}
	}
}

// VectorIndex stores records in a Postgres table with a vector column and
// ranks them by cosine distance.
type VectorIndex struct {
	pool      *pgxpool.Pool
	name      string
	table     string
	dimension int
}

// NewVectorIndex connects to dsn and prepares the records table. A new
// table is created for vectors of the given dimension; an existing one
// keeps its column dimension.
func NewVectorIndex(ctx context.Context, dsn string, dimension int, opts ...Option) (*VectorIndex, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: postgres dsn is required", domain.ErrVectorIndexUnavailable)
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", domain.ErrInvalidInput, dimension)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrVectorIndexUnavailable, err)
	}

	v := &VectorIndex{
		pool: pool,
		name: DefaultTable,
	}
	for _, opt := range opts {
		opt(v)
	}
	v.table = pgx.Identifier{v.name}.Sanitize()

	if err := v.init(ctx, dimension); err != nil {
		pool.Close()
		return nil, err
	}
	return v, nil
}

func (v *VectorIndex) init(ctx context.Context, dimension int) error {
	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id          TEXT PRIMARY KEY,
			source_id   TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			text        TEXT NOT NULL,
			metadata    JSONB NOT NULL DEFAULT '{}'::jsonb,
			embedding   vector(%d) NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, v.table, dimension),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (source_id, chunk_index)",
			pgx.Identifier{v.name + "_source_idx"}.Sanitize(), v.table),
	}
	for _, stmt := range stmts {
		if _, err := v.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrVectorIndexUnavailable, err)
		}
	}

	// pgvector stores the dimension as the column type modifier.
	err := v.pool.QueryRow(ctx, `
		SELECT atttypmod FROM pg_attribute
		WHERE attrelid = $1::regclass AND attname = 'embedding'
	`, v.table).Scan(&v.dimension)
	if err != nil {
		return fmt.Errorf("%w: reading vector dimension: %w", domain.ErrVectorIndexUnavailable, err)
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

	query := fmt.Sprintf(`
		INSERT INTO %s (id, source_id, chunk_index, text, metadata, embedding, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			source_id = EXCLUDED.source_id,
			chunk_index = EXCLUDED.chunk_index,
			text = EXCLUDED.text,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding,
			updated_at = EXCLUDED.updated_at
	`, v.table)

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, r := range records {
		sourceID, index, ok := domain.ParseRecordID(r.ID)
		if !ok {
			sourceID, index = r.ID, 0
		}
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return writeFailure("marshalling metadata", err)
		}
		batch.Queue(query, r.ID, sourceID, index, r.Text, meta, pgv.NewVector(r.Vector), now)
	}

	err := pgx.BeginFunc(ctx, v.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return writeFailure("upsert", err)
	}
	return nil
}

// Query returns up to k records closest to vector, best first.
func (v *VectorIndex) Query(ctx context.Context, vector []float32, k int) ([]domain.RetrievalResult, error) {
	if err := vectors.CheckDimension(vector, v.dimension); err != nil {
		return nil, err
	}

	rows, err := v.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, text, metadata, embedding, 1 - (embedding <=> $1) AS score
		FROM %s
		ORDER BY embedding <=> $1, id
		LIMIT $2
	`, v.table), pgv.NewVector(vector), k)
	if err != nil {
		return nil, queryFailure(err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.RetrievalResult, error) {
		var (
			res  domain.RetrievalResult
			meta []byte
			emb  pgv.Vector
		)
		if err := row.Scan(&res.Record.ID, &res.Record.Text, &meta, &emb, &res.Score); err != nil {
			return res, err
		}
		if err := json.Unmarshal(meta, &res.Record.Metadata); err != nil {
			return res, err
		}
		res.Record.Vector = emb.Slice()
		return res, nil
	})
	if err != nil {
		return nil, queryFailure(err)
	}
	return results, nil
}

// Describe reports the index dimension and record count.
func (v *VectorIndex) Describe(ctx context.Context) (domain.IndexDescription, error) {
	var count int
	if err := v.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", v.table)).Scan(&count); err != nil {
		return domain.IndexDescription{}, queryFailure(err)
	}
	return domain.IndexDescription{
		Dimension: v.dimension,
		Metric:    domain.MetricCosine,
		Count:     count,
	}, nil
}

// DeleteSource removes the records of sourceID from fromIndex onwards.
func (v *VectorIndex) DeleteSource(ctx context.Context, sourceID string, fromIndex int) error {
	_, err := v.pool.Exec(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE source_id = $1 AND chunk_index >= $2", v.table),
		sourceID, fromIndex)
	if err != nil {
		return writeFailure("delete "+sourceID, err)
	}
	return nil
}

// Close releases the connection pool.
func (v *VectorIndex) Close() error {
	v.pool.Close()
	return nil
}

func writeFailure(op string, err error) error {
	if errors.Is(err, domain.ErrIndexWriteFailure) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrIndexWriteFailure, op, err)
}

func queryFailure(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrIndexQueryFailure, err)
}
