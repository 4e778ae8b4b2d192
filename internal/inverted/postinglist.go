package inverted

import "sort"

// Posting is one term's occurrence in one document: the document ID,
// how many times the term occurred (TermFrequency) and at which token
// positions (Locations, used by the proximity/"within" iterators).
type Posting struct {
	DocumentID    uint32
	TermFrequency uint32
	Locations     []uint32
}

// PostingList is a term's postings: a sorted run of (docID,
// frequency, locations) triples the list iterators merge and advance
// to evaluate a query. The stored shape is one list per term; the
// "short" (few documents) versus "normal" (many documents) split
// lives at the iterator level, not in the encoding.
type PostingList struct {
	Term     string
	Postings []Posting
}

// Insert adds or replaces docID's posting, keeping Postings sorted.
func (pl *PostingList) Insert(p Posting) {
	i := sort.Search(len(pl.Postings), func(i int) bool {
		return pl.Postings[i].DocumentID >= p.DocumentID
	})
	if i < len(pl.Postings) && pl.Postings[i].DocumentID == p.DocumentID {
		pl.Postings[i] = p
		return
	}
	pl.Postings = append(pl.Postings, Posting{})
	copy(pl.Postings[i+1:], pl.Postings[i:])
	pl.Postings[i] = p
}

// Expunge removes docID's posting, reporting whether it existed.
func (pl *PostingList) Expunge(docID uint32) bool {
	i := sort.Search(len(pl.Postings), func(i int) bool {
		return pl.Postings[i].DocumentID >= docID
	})
	if i >= len(pl.Postings) || pl.Postings[i].DocumentID != docID {
		return false
	}
	pl.Postings = append(pl.Postings[:i], pl.Postings[i+1:]...)
	return true
}

// DocumentFrequency is how many documents this term occurs in.
func (pl *PostingList) DocumentFrequency() int { return len(pl.Postings) }
