// Package repository is the sole owner of the relational store (spec §3
// "ownership in design terms"). Every write is an upsert keyed by the
// entity's primary key, batched and retried the way the teacher's
// fixture.ProcessPending batches fixture seeds across a worker pool
// (internal/fixture/scheduler.go) — generalized here from "N goroutines
// over N fixture groups" to "N goroutines over the batches of one upsert
// call", and from the teacher's single-row seed.UpsertTeam/UpsertPlayer
// (go/internal/seed/upsert.go) to multi-row batched statements.
package repository

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/albapepper/racesync/internal/raceerr"
)

// BatchSize is the row count per upsert batch (spec §4.C).
const BatchSize = 100

// retryPause is the short pause before retrying a failed batch once.
const retryPause = 2 * time.Second

// Repository wraps the connection pool with upsert and lookup operations.
// maxConcurrentTx bounds how many batches run at once across a single
// upsert call (spec §5's "default 4 concurrent transactions").
type Repository struct {
	pool            *pgxpool.Pool
	logger          *slog.Logger
	maxConcurrentTx int64
}

// New creates a Repository over an existing pool.
func New(pool *pgxpool.Pool, logger *slog.Logger, maxConcurrentTx int) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	if maxConcurrentTx < 1 {
		maxConcurrentTx = 4
	}
	return &Repository{pool: pool, logger: logger, maxConcurrentTx: int64(maxConcurrentTx)}
}

// batchBuilder appends one row's statement to a pgx.Batch.
type batchBuilder[T any] func(batch *pgx.Batch, row T)

// upsertInBatches splits rows into chunks of BatchSize and sends each chunk
// as one round trip via pgx.Batch, running up to maxConcurrentTx chunks
// concurrently. A chunk that fails is retried once after retryPause; if it
// still fails, the failure is logged and that chunk is skipped — the
// caller's overall error reflects that at least one chunk was dropped, so
// the Controller knows not to mark the owning checkpoint chunk complete.
func upsertInBatches[T any](ctx context.Context, r *Repository, label string, rows []T, build batchBuilder[T]) (written int, err error) {
	if len(rows) == 0 {
		return 0, nil
	}

	chunks := chunkRows(rows, BatchSize)
	sem := semaphore.NewWeighted(r.maxConcurrentTx)

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		totalOK  int
		firstErr error
	)

	for _, chunk := range chunks {
		chunk := chunk
		if err := sem.Acquire(ctx, 1); err != nil {
			return totalOK, fmt.Errorf("%s: acquire write slot: %w", label, err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			n, err := sendChunkWithRetry(ctx, r, label, chunk, build)
			mu.Lock()
			totalOK += n
			if err != nil && firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return totalOK, fmt.Errorf("%s: %w: %v", label, raceerr.WriteError, firstErr)
	}
	return totalOK, nil
}

func sendChunkWithRetry[T any](ctx context.Context, r *Repository, label string, chunk []T, build batchBuilder[T]) (int, error) {
	n, err := sendChunk(ctx, r, chunk, build)
	if err == nil {
		return n, nil
	}

	r.logger.Warn("batch failed, retrying once", "op", label, "rows", len(chunk), "error", err)
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-time.After(retryPause):
	}

	n, err = sendChunk(ctx, r, chunk, build)
	if err != nil {
		r.logger.Error("batch failed after retry, skipping", "op", label, "rows", len(chunk), "error", err)
		return 0, err
	}
	return n, nil
}

func sendChunk[T any](ctx context.Context, r *Repository, chunk []T, build batchBuilder[T]) (int, error) {
	batch := &pgx.Batch{}
	for _, row := range chunk {
		build(batch, row)
	}
	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return 0, fmt.Errorf("row %d: %w", i, err)
		}
	}
	return batch.Len(), nil
}

func chunkRows[T any](rows []T, size int) [][]T {
	var chunks [][]T
	for i := 0; i < len(rows); i += size {
		end := i + size
		if end > len(rows) {
			end = len(rows)
		}
		chunks = append(chunks, rows[i:end])
	}
	return chunks
}

// nilEmpty returns nil for an empty string so it stores as SQL NULL, the
// same helper the teacher's upsert.go uses.
func nilEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nilZeroInt(n int) interface{} {
	if n == 0 {
		return nil
	}
	return n
}
