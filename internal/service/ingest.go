package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/veridoc/veridoc/internal/domain"
)

// BatchEmbedder embeds a batch of chunk texts in one call.
type BatchEmbedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// DocumentStore is the write side of the vector index.
type DocumentStore interface {
	ReplaceDocument(ctx context.Context, source string, chunks []domain.Chunk, vectors [][]float32) error
	Count(ctx context.Context) (int, error)
	ListSources(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) error
}

// ArchiveStore keeps the raw ingested text alongside the index, so the
// original can be re-fetched after chunking has discarded structure.
type ArchiveStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// IngestResult describes one completed ingestion.
type IngestResult struct {
	DocID       string `json:"doc_id"`
	Source      string `json:"source"`
	ChunksAdded int    `json:"chunks_added"`
}

// CollectionStats summarizes the current index.
type CollectionStats struct {
	ChunkCount int      `json:"chunk_count"`
	Sources    []string `json:"sources"`
}

// IngestService chunks, embeds, and indexes documents. Re-ingesting a
// source replaces its previous version atomically.
type IngestService struct {
	embedder BatchEmbedder
	store    DocumentStore
	archive  ArchiveStore // nil when archiving is not configured
	chunking ChunkingConfig
}

func NewIngestService(embedder BatchEmbedder, store DocumentStore, archive ArchiveStore, chunking ChunkingConfig) *IngestService {
	return &IngestService{
		embedder: embedder,
		store:    store,
		archive:  archive,
		chunking: chunking,
	}
}

// Ingest indexes one document under its source name.
func (s *IngestService) Ingest(ctx context.Context, source, text string) (*IngestResult, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, domain.ErrEmptySource
	}
	texts := ChunkText(text, s.chunking)
	if len(texts) == 0 {
		return nil, domain.ErrEmptyDocument
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeUnavailable, "embedding document failed", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(texts))
	}

	docID := uuid.NewString()
	chunks := make([]domain.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = domain.Chunk{
			Text:       t,
			Source:     source,
			DocID:      docID,
			ChunkIndex: i,
		}
	}

	if err := s.store.ReplaceDocument(ctx, source, chunks, vectors); err != nil {
		return nil, err
	}

	// The archive is best effort: the index is the system of record.
	if s.archive != nil {
		if err := s.archive.Put(ctx, archiveKey(source), []byte(text), "text/plain; charset=utf-8"); err != nil {
			log.Printf("ingest: archiving %q failed: %v", source, err)
		}
	}

	return &IngestResult{DocID: docID, Source: source, ChunksAdded: len(chunks)}, nil
}

// Original returns the raw text archived for a source.
func (s *IngestService) Original(ctx context.Context, source string) ([]byte, error) {
	if s.archive == nil {
		return nil, domain.ErrArchiveNotFound
	}
	body, err := s.archive.Get(ctx, archiveKey(source))
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeNotFound, "no archived original for this source", err)
	}
	return body, nil
}

// Stats reports the collection's size and source names.
func (s *IngestService) Stats(ctx context.Context) (*CollectionStats, error) {
	count, err := s.store.Count(ctx)
	if err != nil {
		return nil, err
	}
	sources, err := s.store.ListSources(ctx)
	if err != nil {
		return nil, err
	}
	if sources == nil {
		sources = []string{}
	}
	return &CollectionStats{ChunkCount: count, Sources: sources}, nil
}

// Clear drops every indexed chunk.
func (s *IngestService) Clear(ctx context.Context) error {
	return s.store.Clear(ctx)
}

func archiveKey(source string) string {
	return "originals/" + source
}
