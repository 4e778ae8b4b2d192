// Package fulltext2 implements the FullText2 index kind: the
// current-generation full-text inverted file driver. It is a thin
// shell around internal/inverted.Index, exposed through the same
// vfile.File-style Open/Close lifecycle every other index kind uses —
// a driver-interface wrapper around the inverted package's list
// managers and score calculators rather than a new
// storage format.
package fulltext2

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/doquedb/sydcore/internal/inverted"
	"github.com/doquedb/sydcore/internal/vfile"
)

// File is one logical FullText2 file's open handle.
type File struct {
	idx *inverted.Index
}

// Open mounts a FullText2 file over a postings file and the document
// vector it scores against.
func Open(postingsID, vectorID vfile.FileID, unitCount int, cancel vfile.CancelFunc, logger *zap.Logger) (*File, error) {
	idx, err := inverted.Open(postingsID, vectorID, unitCount, cancel, logger)
	if err != nil {
		return nil, fmt.Errorf("fulltext2: open: %w", err)
	}
	return &File{idx: idx}, nil
}

// Close flushes and releases the underlying index.
func (f *File) Close() error { return f.idx.Close() }

// Insert indexes docID's term occurrences.
func (f *File) Insert(docID uint32, unit int, rowID uint32, documentLength uint32, terms []inverted.TermOccurrence) error {
	return f.idx.Insert(docID, unit, rowID, documentLength, terms)
}

// Expunge removes docID from every named term and from the document
// vector.
func (f *File) Expunge(docID uint32, unit int, terms []string) error {
	return f.idx.Expunge(docID, unit, terms)
}

// Flush merges staged inserts onto disk.
func (f *File) Flush() error { return f.idx.Flush() }

// Search evaluates terms combined by op, scored by calc/combiner.
func (f *File) Search(terms []string, op inverted.Operator, calc inverted.ScoreCalculator, combiner inverted.ScoreCombiner) ([]inverted.ScoredDocument, error) {
	return f.idx.Search(terms, op, calc, combiner)
}
