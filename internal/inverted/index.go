// Index ties the pieces of this package together into the driver
// every fulltext/fulltext2 index-kind file opens: term postings
// persisted through internal/index/overflow (the same chain format
// internal/index/bitmap uses for its posting bitmaps), a staging
// BatchListMap for batch inserts, and the internal/index/vector
// document-ID vector for the document-length statistics
// NormalizedTfIdfScoreCalculator needs.
package inverted

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/doquedb/sydcore/internal/buffer"
	"github.com/doquedb/sydcore/internal/index/overflow"
	"github.com/doquedb/sydcore/internal/index/vector"
	"github.com/doquedb/sydcore/internal/vfile"
)

// TermOccurrence is one term's occurrence in a document being
// inserted, with every token position it appeared at.
type TermOccurrence struct {
	Term      string
	Positions []uint32
}

// Operator picks how Index.Search combines multiple terms.
type Operator int

const (
	OpAnd Operator = iota
	OpOr
)

// ScoredDocument is one search result. TermFrequencies is populated
// only when the index's FieldMask has FieldTf set.
type ScoredDocument struct {
	DocumentID      uint32
	Score           DocumentScore
	TermFrequencies map[string]uint32
}

// Index is one logical full-text index's open handle.
type Index struct {
	mu     sync.Mutex
	vf     *vfile.File
	vec    *vector.File
	dir    map[string]buffer.PageID
	pool   *BatchListMap
	fields *FieldMask
}

// SetFieldMask configures which optional fields Search attaches to
// each ScoredDocument. A nil or zero-value mask (the default) returns
// only DocumentID and Score.
func (idx *Index) SetFieldMask(fm *FieldMask) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.fields = fm
}

// Open mounts a full-text index: a term-postings file and the
// document vector it scores against. unitCount is forwarded to the
// document vector for unit-distributed indexes (0 for none).
func Open(postingsID, vectorID vfile.FileID, unitCount int, cancel vfile.CancelFunc, logger *zap.Logger) (*Index, error) {
	vf, err := vfile.Open(postingsID, vfile.OpenBatch, cancel, logger)
	if err != nil {
		return nil, fmt.Errorf("inverted: open postings: %w", err)
	}
	vec, err := vector.Open(vectorID, unitCount, cancel, logger)
	if err != nil {
		vf.Close()
		return nil, fmt.Errorf("inverted: open document vector: %w", err)
	}
	return &Index{
		vf:   vf,
		vec:  vec,
		dir:  make(map[string]buffer.PageID),
		pool: NewBatchListMap(),
	}, nil
}

// Close flushes pending inserts and releases both underlying files.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if err := idx.flushLocked(); err != nil {
		return err
	}
	if err := idx.vec.Close(); err != nil {
		return err
	}
	return idx.vf.Close()
}

// Insert stages docID's term occurrences and records it in the
// document vector. unit is the distribution unit (-1 for none).
func (idx *Index) Insert(docID uint32, unit int, rowID uint32, documentLength uint32, terms []TermOccurrence) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, t := range terms {
		idx.pool.Add(docID, rowID, t.Term, t.Positions)
	}
	return idx.vec.Insert(docID, unit, rowID, documentLength)
}

// Expunge removes docID from every term it was staged or persisted
// under, and from the document vector.
func (idx *Index) Expunge(docID uint32, unit int, terms []string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, term := range terms {
		idx.pool.Remove(docID, term)
		if err := idx.expungeFromDisk(term, docID); err != nil {
			return err
		}
	}
	_, err := idx.vec.Expunge(docID, unit)
	return err
}

func (idx *Index) expungeFromDisk(term string, docID uint32) error {
	head, ok := idx.dir[term]
	if !ok {
		return nil
	}
	pl, err := idx.loadDisk(term, head)
	if err != nil {
		return err
	}
	if !pl.Expunge(docID) {
		return nil
	}
	return idx.storeDisk(term, head, pl)
}

func (idx *Index) loadDisk(term string, head buffer.PageID) (*PostingList, error) {
	data, err := overflow.Read(idx.vf, head)
	if err != nil {
		return nil, fmt.Errorf("inverted: read postings for %q: %w", term, err)
	}
	return decodePostingList(term, data)
}

func (idx *Index) storeDisk(term string, oldHead buffer.PageID, pl *PostingList) error {
	if len(pl.Postings) == 0 {
		if oldHead != overflow.InvalidPageID {
			if err := overflow.Free(idx.vf, oldHead); err != nil {
				return err
			}
		}
		delete(idx.dir, term)
		return nil
	}
	newHead, err := overflow.Write(idx.vf, encodePostingList(pl))
	if err != nil {
		return fmt.Errorf("inverted: write postings for %q: %w", term, err)
	}
	if oldHead != overflow.InvalidPageID {
		if err := overflow.Free(idx.vf, oldHead); err != nil {
			return err
		}
	}
	idx.dir[term] = newHead
	return nil
}

// Flush merges every staged posting onto disk.
func (idx *Index) Flush() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.flushLocked()
}

func (idx *Index) flushLocked() error {
	for term, staged := range idx.pool.Terms() {
		head, had := idx.dir[term]
		base := &PostingList{Term: term}
		if had {
			var err error
			base, err = idx.loadDisk(term, head)
			if err != nil {
				return err
			}
		} else {
			head = overflow.InvalidPageID
		}
		merged := mergePostings(base, staged)
		if err := idx.storeDisk(term, head, merged); err != nil {
			return err
		}
	}
	idx.pool.Reset()
	return nil
}

// loadTerm returns term's full posting list, merging any staged
// postings that haven't been flushed to disk yet.
func (idx *Index) loadTerm(term string) (*PostingList, error) {
	head, ok := idx.dir[term]
	var base *PostingList
	if ok {
		var err error
		base, err = idx.loadDisk(term, head)
		if err != nil {
			return nil, err
		}
	} else {
		base = &PostingList{Term: term}
	}
	if staged, ok := idx.pool.Terms()[term]; ok {
		base = mergePostings(base, staged)
	}
	return base, nil
}

// ExpandedSearch runs the relevance-feedback pipeline: search the
// query terms, weight them against the seed documents, select
// expansion terms from the seed vocabulary, search the widened term
// set and merge the two result sets in rank space.
func (idx *Index) ExpandedSearch(queryTerms []string, seeds []SeedDocument, tp *TermProcessor, calc ScoreCalculator, combiner ScoreCombiner) ([]ScoredDocument, error) {
	initial, err := idx.Search(queryTerms, OpOr, calc, combiner)
	if err != nil {
		return nil, err
	}

	pool := NewTermPool(tp.Config.MaxTerm1)
	for _, term := range queryTerms {
		pool.InsertTerm(TermElement{String: term, OriginalString: term, Tf: 1, Tsv: 1, Twv: 1})
	}
	if err := idx.fillDocumentFrequency(pool); err != nil {
		return nil, err
	}

	m := NewTermMap()
	for i, seed := range seeds {
		if tp.Config.MaxSeed > 0 && i >= tp.Config.MaxSeed {
			break
		}
		tp.MapTerm(m, seed)
	}
	tp.WeightTerm(m, pool)

	candidate := NewTermPool(tp.Config.MaxCandidate)
	tp.PoolCandidate(m, candidate, nil)
	if err := idx.fillDocumentFrequency(candidate); err != nil {
		return nil, err
	}
	expandedPool := NewTermPool(tp.Config.MaxTerm2)
	tp.SelectTerm(m, candidate, expandedPool)

	terms := append([]string(nil), queryTerms...)
	for _, t := range expandedPool.Terms() {
		terms = append(terms, t.String)
	}
	expanded, err := idx.Search(terms, OpOr, calc, combiner)
	if err != nil {
		return nil, err
	}
	return tp.MergeRank(initial, expanded), nil
}

// fillDocumentFrequency sets each pooled term's collection document
// frequency from its posting list.
func (idx *Index) fillDocumentFrequency(pool *TermPool) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, t := range pool.Terms() {
		pl, err := idx.loadTerm(t.String)
		if err != nil {
			return err
		}
		t.Df = float64(pl.DocumentFrequency())
	}
	return nil
}

// Search evaluates terms combined by op, scoring matches with calc
// and combiner.
func (idx *Index) Search(terms []string, op Operator, calc ScoreCalculator, combiner ScoreCombiner) ([]ScoredDocument, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if len(terms) == 0 {
		return nil, nil
	}
	lists := make([]*PostingList, len(terms))
	leaves := make([]*SimpleLeaf, len(terms))
	iters := make([]ListIterator, len(terms))
	for i, term := range terms {
		pl, err := idx.loadTerm(term)
		if err != nil {
			return nil, err
		}
		lists[i] = pl
		leaves[i] = NewSimpleLeaf(pl)
		iters[i] = leaves[i]
	}

	var top ListIterator
	if op == OpAnd {
		top = NewAndLeaf(iters)
	} else {
		top = NewMultiListIterator(iters)
	}

	totalDocs := float64(idx.vec.DocumentCount())
	avgLen := idx.vec.AverageDocumentLength()

	var results []ScoredDocument
	doc, ok := top.Next(0)
	for ok {
		var scores []DocumentScore
		entry, found, err := idx.vec.Find(doc)
		if err != nil {
			return nil, err
		}
		docLen := float64(0)
		if found {
			docLen = float64(entry.Length)
		}
		wantTf := idx.fields != nil && idx.fields.Has(FieldTf)
		var tfs map[string]uint32
		for i := range terms {
			cur := leaves[i].Current()
			if cur.DocumentID != doc {
				continue
			}
			df := float64(lists[i].DocumentFrequency())
			scores = append(scores, Score(calc, float64(cur.TermFrequency), docLen, avgLen, df, totalDocs))
			if wantTf {
				if tfs == nil {
					tfs = make(map[string]uint32, len(terms))
				}
				tfs[terms[i]] = cur.TermFrequency
			}
		}
		results = append(results, ScoredDocument{DocumentID: doc, Score: combiner.Apply(scores), TermFrequencies: tfs})
		doc, ok = top.Next(doc + 1)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results, nil
}
