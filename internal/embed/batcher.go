package embed

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// Batcher fans an embedding request out over fixed-size batches on a
// bounded worker pool. Output order matches input order.
type Batcher struct {
	inner     Embedder
	batchSize int
	pool      *ants.Pool
}

// NewBatcher wraps inner with batching. concurrency bounds in-flight
// requests against the embedding backend.
func NewBatcher(inner Embedder, batchSize, concurrency int) (*Batcher, error) {
	if inner == nil {
		return nil, fmt.Errorf("embedder required")
	}
	if batchSize < 1 {
		batchSize = 32
	}
	if concurrency < 1 {
		concurrency = 4
	}
	pool, err := ants.NewPool(concurrency)
	if err != nil {
		return nil, err
	}
	return &Batcher{inner: inner, batchSize: batchSize, pool: pool}, nil
}

func (b *Batcher) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	for begin := 0; begin < len(texts); begin += b.batchSize {
		end := begin + b.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		wg.Add(1)
		submitErr := b.pool.Submit(func() {
			defer wg.Done()
			vecs, err := b.inner.Embed(ctx, texts[begin:end])
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			copy(out[begin:], vecs)
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			if firstErr == nil {
				firstErr = submitErr
			}
			mu.Unlock()
			break
		}
	}

	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// Release shuts down the worker pool. The Batcher is unusable afterwards.
func (b *Batcher) Release() {
	b.pool.Release()
}
