// Package index holds the in-process FAQ corpus and answers similarity queries.
package index

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cloo-solutions/leadbot/internal/domain"
	"github.com/cloo-solutions/leadbot/internal/embedding"
	"github.com/cloo-solutions/leadbot/internal/telemetry"
)

// DefaultTopK is the number of documents injected into a prompt.
const DefaultTopK = 3

// corpus is an immutable view of the indexed documents. docs[i] and
// vectors[i] always describe the same document.
type corpus struct {
	docs    []domain.Document
	vectors [][]float32
}

// Stats describes the current state of the index.
type Stats struct {
	Documents int  `json:"documents"`
	Vectors   int  `json:"vectors"`
	Dimension int  `json:"dimension"`
	Usable    bool `json:"usable"`
}

// Index is an append-only document index. Readers work on an atomically
// published corpus and never block; writers are serialised and publish a
// new corpus only after it has been persisted.
type Index struct {
	store    Store
	embedder embedding.Embedder

	mu      sync.Mutex
	current atomic.Pointer[corpus]
	usable  atomic.Bool
}

// Open loads the corpus from store, or creates and persists an empty one
// when nothing has been stored yet. If the stored corpus is inconsistent
// the returned index is non-nil but unusable, and the error wraps
// domain.ErrCorpusInconsistent or domain.ErrDimensionMismatch.
func Open(ctx context.Context, store Store, embedder embedding.Embedder) (*Index, error) {
	idx := &Index{
		store:    store,
		embedder: embedder,
	}
	idx.current.Store(&corpus{})

	snap, err := store.Load(ctx)
	if errors.Is(err, ErrSnapshotNotFound) {
		if err := store.Save(ctx, idx.snapshot(&corpus{})); err != nil {
			return nil, fmt.Errorf("failed to create empty index: %w", err)
		}
		idx.usable.Store(true)
		log.Printf("index: created empty corpus (dimension %d)", embedder.Dimensions())
		return idx, nil
	}
	if err != nil {
		if isConsistencyError(err) {
			return idx, err
		}
		return nil, fmt.Errorf("failed to load index: %w", err)
	}

	if err := snap.Validate(embedder.Dimensions()); err != nil {
		return idx, err
	}

	idx.current.Store(&corpus{docs: snap.Documents, vectors: snap.Vectors})
	idx.usable.Store(true)
	log.Printf("index: loaded %d documents", len(snap.Documents))
	return idx, nil
}

// AddDocuments embeds docs and appends them to the corpus in input order.
// The combined corpus is saved as one snapshot before it becomes visible;
// if saving fails nothing changes.
func (i *Index) AddDocuments(ctx context.Context, docs []domain.Document) error {
	if len(docs) == 0 {
		return nil
	}

	for n, d := range docs {
		if err := domain.ValidateDocument(d); err != nil {
			return fmt.Errorf("document %d: %w", n, err)
		}
	}

	ctx, span := telemetry.StartSpan(ctx, "Index.AddDocuments", telemetry.SpanAttributes{Operation: "index_add"})
	defer span.End()

	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.usable.Load() {
		return domain.ErrCorpusInconsistent
	}

	old := i.current.Load()
	next := &corpus{
		docs:    make([]domain.Document, 0, len(old.docs)+len(docs)),
		vectors: make([][]float32, 0, len(old.vectors)+len(docs)),
	}
	next.docs = append(next.docs, old.docs...)
	next.vectors = append(next.vectors, old.vectors...)
	for _, d := range docs {
		next.docs = append(next.docs, d)
		next.vectors = append(next.vectors, i.embedder.Embed(d.EmbeddingText()))
	}

	if err := i.store.Save(ctx, i.snapshot(next)); err != nil {
		span.SetError(err)
		return fmt.Errorf("failed to persist index: %w", err)
	}

	i.current.Store(next)
	return nil
}

// Search returns the topK documents with the highest inner-product score
// against query, best first. Equal scores keep insertion order. The result
// is empty when topK <= 0, the corpus is empty, or the index is unusable.
func (i *Index) Search(ctx context.Context, query string, topK int) []domain.SearchResult {
	results := []domain.SearchResult{}
	if topK <= 0 || !i.usable.Load() {
		return results
	}

	c := i.current.Load()
	if len(c.docs) == 0 {
		return results
	}

	_, span := telemetry.StartSpan(ctx, "Index.Search", telemetry.SpanAttributes{Operation: "index_search"})
	defer span.End()

	q := i.embedder.Embed(query)
	results = make([]domain.SearchResult, len(c.docs))
	for n, vec := range c.vectors {
		results[n] = domain.SearchResult{
			Document: c.docs[n],
			Position: n,
			Score:    embedding.Dot(q, vec),
		}
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Score > results[b].Score
	})

	if topK < len(results) {
		results = results[:topK]
	}
	return results
}

// GetContext formats the best matches for query as a numbered
// "title: content" block for prompt injection. It returns "" when nothing
// matches.
func (i *Index) GetContext(ctx context.Context, query string, topK int) string {
	results := i.Search(ctx, query, topK)
	if len(results) == 0 {
		return ""
	}

	parts := make([]string, len(results))
	for n, r := range results {
		title := r.Title
		if title == "" {
			title = "Untitled"
		}
		parts[n] = fmt.Sprintf("%d. %s: %s", n+1, title, r.Content)
	}
	return strings.Join(parts, "\n\n")
}

// Reset replaces the corpus with an empty one and persists it. It is the
// way back from an unusable index.
func (i *Index) Reset(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	empty := &corpus{}
	if err := i.store.Save(ctx, i.snapshot(empty)); err != nil {
		return fmt.Errorf("failed to reset index: %w", err)
	}

	i.current.Store(empty)
	i.usable.Store(true)
	return nil
}

// Stats reports document and vector counts of the published corpus.
func (i *Index) Stats() Stats {
	c := i.current.Load()
	return Stats{
		Documents: len(c.docs),
		Vectors:   len(c.vectors),
		Dimension: i.embedder.Dimensions(),
		Usable:    i.usable.Load(),
	}
}

// Documents returns a copy of the indexed documents in insertion order.
func (i *Index) Documents() []domain.Document {
	c := i.current.Load()
	out := make([]domain.Document, len(c.docs))
	copy(out, c.docs)
	return out
}

func (i *Index) snapshot(c *corpus) *Snapshot {
	return &Snapshot{
		Version:   SnapshotVersion,
		Dimension: i.embedder.Dimensions(),
		Documents: c.docs,
		Vectors:   c.vectors,
	}
}

func isConsistencyError(err error) bool {
	return errors.Is(err, domain.ErrCorpusInconsistent) || errors.Is(err, domain.ErrDimensionMismatch)
}
