// Package fulltext implements the legacy FullText index kind, kept
// alongside FullText2 for on-disk compatibility with databases
// created before the FullText2 generation. The legacy driver stored
// its own vector file and null-value bitmap separately from the
// inverted-list file; here both generations share the same
// internal/inverted.Index core, since the distinction is a
// historical storage-format split rather than a difference in
// full-text semantics this module needs to preserve. File is a thin
// shell so the two index kinds remain independently addressable from
// a catalog that still names them separately.
package fulltext

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/doquedb/sydcore/internal/index/fulltext2"
	"github.com/doquedb/sydcore/internal/inverted"
	"github.com/doquedb/sydcore/internal/vfile"
)

// File is one logical legacy FullText file's open handle.
type File struct {
	inner *fulltext2.File
}

// Open mounts a FullText file over a postings file and the document
// vector it scores against.
func Open(postingsID, vectorID vfile.FileID, unitCount int, cancel vfile.CancelFunc, logger *zap.Logger) (*File, error) {
	inner, err := fulltext2.Open(postingsID, vectorID, unitCount, cancel, logger)
	if err != nil {
		return nil, fmt.Errorf("fulltext: open: %w", err)
	}
	return &File{inner: inner}, nil
}

// Close flushes and releases the underlying index.
func (f *File) Close() error { return f.inner.Close() }

// Insert indexes docID's term occurrences.
func (f *File) Insert(docID uint32, unit int, rowID uint32, documentLength uint32, terms []inverted.TermOccurrence) error {
	return f.inner.Insert(docID, unit, rowID, documentLength, terms)
}

// Expunge removes docID from every named term and from the document
// vector.
func (f *File) Expunge(docID uint32, unit int, terms []string) error {
	return f.inner.Expunge(docID, unit, terms)
}

// Flush merges staged inserts onto disk.
func (f *File) Flush() error { return f.inner.Flush() }

// Search evaluates terms combined by op, scored by calc/combiner.
func (f *File) Search(terms []string, op inverted.Operator, calc inverted.ScoreCalculator, combiner inverted.ScoreCombiner) ([]inverted.ScoredDocument, error) {
	return f.inner.Search(terms, op, calc, combiner)
}
