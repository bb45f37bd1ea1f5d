package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/veridoc/veridoc/internal/domain"
)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ChunkRepository persists document chunks and their embeddings and
// answers cosine nearest-neighbor queries over them.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

func NewChunkRepositoryWithTx(tx pgx.Tx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

// ReplaceDocument removes any previously ingested chunks for the source
// and inserts the new ones. Chunks and vectors correspond by position.
// When backed by a pool the delete and inserts run in one transaction,
// so a failed ingest never leaves the source half-replaced.
func (r *ChunkRepository) ReplaceDocument(ctx context.Context, source string, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d != %d", len(chunks), len(vectors))
	}

	if pool, ok := r.db.(*pgxpool.Pool); ok {
		return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			return replaceDocument(ctx, tx, source, chunks, vectors)
		})
	}
	return replaceDocument(ctx, r.db, source, chunks, vectors)
}

func replaceDocument(ctx context.Context, db dbtx, source string, chunks []domain.Chunk, vectors [][]float32) error {
	if _, err := db.Exec(ctx, `DELETE FROM chunks WHERE source = $1`, source); err != nil {
		return mapPgError(err)
	}

	for i, c := range chunks {
		_, err := db.Exec(ctx,
			`INSERT INTO chunks (doc_id, source, chunk_index, text, embedding)
			 VALUES ($1, $2, $3, $4, $5)`,
			c.DocID, c.Source, c.ChunkIndex, c.Text, pgvector.NewVector(vectors[i]),
		)
		if err != nil {
			return mapPgError(err)
		}
	}

	return nil
}

// Search returns up to topK chunks nearest to the query vector, most
// similar first. A non-empty sources slice restricts results to chunks
// whose source matches any of its entries.
func (r *ChunkRepository) Search(ctx context.Context, vector []float32, topK int, sources []string) ([]domain.Hit, error) {
	if topK <= 0 {
		topK = 5
	}

	vec := pgvector.NewVector(vector)

	var rows pgx.Rows
	var err error
	if len(sources) > 0 {
		rows, err = r.db.Query(ctx,
			`SELECT id, doc_id, source, chunk_index, text, 1 - (embedding <=> $1) AS score
			 FROM chunks
			 WHERE source = ANY($2)
			 ORDER BY embedding <=> $1
			 LIMIT $3`,
			vec, sources, topK,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT id, doc_id, source, chunk_index, text, 1 - (embedding <=> $1) AS score
			 FROM chunks
			 ORDER BY embedding <=> $1
			 LIMIT $2`,
			vec, topK,
		)
	}
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var hits []domain.Hit
	for rows.Next() {
		var h domain.Hit
		var docID, source *string
		var chunkIndex *int
		if err := rows.Scan(&h.ID, &docID, &source, &chunkIndex, &h.Text, &h.Score); err != nil {
			return nil, err
		}
		// Tolerate incomplete payloads rather than failing the run.
		h.Source = domain.UnknownSource
		if source != nil && *source != "" {
			h.Source = *source
		}
		if docID != nil {
			h.DocID = *docID
		}
		h.ChunkIndex = domain.UnknownChunkIndex
		if chunkIndex != nil {
			h.ChunkIndex = *chunkIndex
		}
		hits = append(hits, h)
	}

	return hits, rows.Err()
}

// Count returns the exact number of chunks in the collection.
func (r *ChunkRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count); err != nil {
		return 0, mapPgError(err)
	}
	return count, nil
}

// ListSources returns the distinct source names present in the
// collection, in name order.
func (r *ChunkRepository) ListSources(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT source FROM chunks ORDER BY source`)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var sources []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

// Clear removes every chunk in the collection.
func (r *ChunkRepository) Clear(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `DELETE FROM chunks`)
	return mapPgError(err)
}

// mapPgError converts an undefined-table error into the domain's
// collection-not-found condition.
func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "42P01" {
		return domain.ErrCollectionNotFound
	}
	return err
}
