package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"

	"codescope/internal/chunker"
	"codescope/internal/errs"
	"codescope/internal/provider"
	"codescope/internal/search"
	"codescope/internal/util"
	"codescope/internal/walker"
)

// Stats reports the outcome of one indexing run.
type Stats struct {
	OperationID  string
	FilesTotal   int
	FilesIndexed int
	FilesSkipped int
	FilesFailed  int
	ChunksTotal  int
}

// fileWork is a file whose content changed since the last run.
type fileWork struct {
	info walker.FileInfo
	hash string
	src  []byte
}

// chunkBatch is the chunks extracted from a single file.
type chunkBatch struct {
	work   fileWork
	chunks []chunker.Chunk
}

// embeddedBatch has chunks with their embeddings ready to insert.
type embeddedBatch struct {
	work       fileWork
	chunks     []chunker.Chunk
	embeddings [][]float32
}

// runPipeline runs the five-stage ingest: walk, hash-check, chunk, embed,
// insert. Per-file errors are counted and the run continues; fatal provider
// errors abort the whole operation. The stages keep draining their input
// channels after an abort so no goroutine is left blocked.
func (idx *Indexer) runPipeline(ctx context.Context, root, collection, opID string) (*Stats, error) {
	numWorkers := idx.opts.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}

	var (
		filesTotal atomic.Int64
		indexed    atomic.Int64
		skipped    atomic.Int64
		failed     atomic.Int64
		chunks     atomic.Int64
		aborted    atomic.Bool
	)
	progress := func(currentFile string) {
		processed := int(indexed.Load() + skipped.Load() + failed.Load())
		idx.tracker.Progress(opID, processed, int(failed.Load()), int(filesTotal.Load()), currentFile)
	}

	var sparse *search.SparseIndex
	if idx.engine != nil {
		sparse = idx.engine.Sparse(collection)
	}

	// Stage 1: walk.
	fileCh, walkErrCh := walker.Walk(root, walker.Options{
		AllowedExts:     idx.registry.Extensions(),
		ExcludePatterns: idx.opts.ExcludePatterns,
		MaxFileSize:     idx.opts.MaxFileSize,
	})

	// Stage 2: read and hash-check, N workers. Unchanged files are skipped.
	workCh := make(chan fileWork, numWorkers)
	var hashWg sync.WaitGroup
	for range numWorkers {
		hashWg.Add(1)
		go func() {
			defer hashWg.Done()
			for fi := range fileCh {
				filesTotal.Add(1)
				if aborted.Load() {
					continue
				}
				src, err := os.ReadFile(fi.Path)
				if err != nil {
					idx.log.Warn("read failed", "file", fi.RelPath, "error", err)
					failed.Add(1)
					progress(fi.RelPath)
					continue
				}
				h := sha256.Sum256(src)
				hash := hex.EncodeToString(h[:])

				existing, err := idx.catalog.FileHash(ctx, collection, fi.RelPath)
				if err == nil && existing == hash {
					skipped.Add(1)
					progress(fi.RelPath)
					continue
				}
				workCh <- fileWork{info: fi, hash: hash, src: src}
			}
		}()
	}
	go func() {
		hashWg.Wait()
		close(workCh)
	}()

	// Stage 3: chunk, N workers. Empty supported files are recorded in the
	// catalog so the next run skips them without rechunking.
	chunkCh := make(chan chunkBatch, numWorkers)
	var chunkWg sync.WaitGroup
	for range numWorkers {
		chunkWg.Add(1)
		go func() {
			defer chunkWg.Done()
			for w := range workCh {
				if aborted.Load() {
					continue
				}
				res, err := idx.chunk.Chunk(ctx, w.info.RelPath, w.src)
				if err != nil {
					idx.log.Warn("chunk failed", "file", w.info.RelPath, "error", err)
					failed.Add(1)
					progress(w.info.RelPath)
					continue
				}
				if res.Skipped() {
					skipped.Add(1)
					progress(w.info.RelPath)
					continue
				}
				if len(res.Chunks) == 0 {
					if err := idx.recordFile(ctx, collection, w, 0); err == nil {
						indexed.Add(1)
					} else {
						failed.Add(1)
					}
					progress(w.info.RelPath)
					continue
				}
				chunkCh <- chunkBatch{work: w, chunks: res.Chunks}
			}
		}()
	}
	go func() {
		chunkWg.Wait()
		close(chunkCh)
	}()

	// Stage 4: embed, single worker, sub-batches under the embed semaphore.
	// Retriable provider errors retry with backoff; fatal errors abort.
	embeddedCh := make(chan embeddedBatch, 4)
	var embedErr error
	var embedWg sync.WaitGroup
	embedWg.Add(1)
	go func() {
		defer embedWg.Done()
		defer close(embeddedCh)

		for batch := range chunkCh {
			if aborted.Load() {
				continue
			}
			if err := ctx.Err(); err != nil {
				embedErr = errs.Wrap(errs.KindCancelled, "index", err)
				aborted.Store(true)
				continue
			}

			texts := make([]string, len(batch.chunks))
			for i, c := range batch.chunks {
				texts[i] = c.Content
			}

			all := make([][]float32, 0, len(texts))
			for i := 0; i < len(texts) && !aborted.Load(); i += idx.opts.EmbedBatchSize {
				end := min(i+idx.opts.EmbedBatchSize, len(texts))
				vecs, err := idx.embedBatch(ctx, texts[i:end])
				if err != nil {
					embedErr = fmt.Errorf("embed %s: %w", batch.work.info.RelPath, err)
					aborted.Store(true)
					break
				}
				all = append(all, vecs...)
			}
			if aborted.Load() {
				continue
			}
			embeddedCh <- embeddedBatch{work: batch.work, chunks: batch.chunks, embeddings: all}
		}
	}()

	// Stage 5: insert, single worker. Insert failures count against the file;
	// dimension mismatches are fatal.
	var storeErr error
	var storeWg sync.WaitGroup
	storeWg.Add(1)
	go func() {
		defer storeWg.Done()
		for eb := range embeddedCh {
			if aborted.Load() {
				continue
			}
			ids, err := idx.insertFile(ctx, collection, eb)
			if err != nil {
				failed.Add(1)
				progress(eb.work.info.RelPath)
				if errs.IsKind(err, errs.KindInvalidArgument) {
					storeErr = err
					aborted.Store(true)
				} else {
					idx.log.Warn("insert failed", "file", eb.work.info.RelPath, "error", err)
				}
				continue
			}
			if sparse != nil {
				for i, id := range ids {
					sparse.Add(id, eb.chunks[i].Content)
				}
			}
			if err := idx.recordFile(ctx, collection, eb.work, len(eb.chunks)); err != nil {
				idx.log.Warn("catalog update failed", "file", eb.work.info.RelPath, "error", err)
			}
			indexed.Add(1)
			chunks.Add(int64(len(eb.chunks)))
			progress(eb.work.info.RelPath)
		}
	}()

	storeWg.Wait()
	embedWg.Wait()

	stats := &Stats{
		FilesTotal:   int(filesTotal.Load()),
		FilesIndexed: int(indexed.Load()),
		FilesSkipped: int(skipped.Load()),
		FilesFailed:  int(failed.Load()),
		ChunksTotal:  int(chunks.Load()),
	}

	if err := <-walkErrCh; err != nil {
		return stats, fmt.Errorf("walk %s: %w", root, err)
	}
	if embedErr != nil {
		return stats, embedErr
	}
	if storeErr != nil {
		return stats, storeErr
	}
	return stats, nil
}

// embedBatch embeds one sub-batch under a permit, retrying retriable errors.
func (idx *Indexer) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if idx.limits != nil {
		permit, err := idx.limits.Acquire(ctx, "embed")
		if err != nil {
			return nil, err
		}
		defer permit.Release()
	}
	var vecs [][]float32
	err := util.Retry(ctx, idx.opts.MaxRetries, idx.opts.RetryDelay, func() error {
		out, err := idx.embedder.Embed(ctx, texts)
		if err != nil {
			return err
		}
		vecs = out
		return nil
	})
	return vecs, err
}

// insertFile writes one file's chunks to the vector store in insert batches
// and returns the assigned ids.
func (idx *Indexer) insertFile(ctx context.Context, collection string, eb embeddedBatch) ([]string, error) {
	meta := make([]provider.Metadata, len(eb.chunks))
	for i, c := range eb.chunks {
		content := c.Content
		if len(content) > provider.MaxContentLen {
			content = content[:provider.MaxContentLen]
		}
		meta[i] = provider.Metadata{
			FilePath:  c.FilePath,
			StartLine: c.StartLine,
			Content:   content,
			Language:  c.Language,
		}
	}

	ids := make([]string, 0, len(meta))
	for i := 0; i < len(meta); i += idx.opts.InsertBatchSize {
		end := min(i+idx.opts.InsertBatchSize, len(meta))
		batchIDs, err := idx.store.InsertVectors(ctx, collection, eb.embeddings[i:end], meta[i:end])
		if err != nil {
			return nil, err
		}
		ids = append(ids, batchIDs...)
	}
	return ids, nil
}

func (idx *Indexer) recordFile(ctx context.Context, collection string, w fileWork, chunkCount int) error {
	return idx.catalog.UpsertFile(ctx, FileRecord{
		Collection: collection,
		Path:       w.info.RelPath,
		Hash:       w.hash,
		Language:   idx.registry.LanguageName(w.info.RelPath),
		SizeBytes:  w.info.Size,
		ChunkCount: chunkCount,
	})
}
