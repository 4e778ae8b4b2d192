package inverted

import (
	"container/heap"
	"fmt"
	"sort"
	"strings"
)

// TermType classifies a term by the pattern that produced it
// (noun, compound, unknown word, ...); zero means unclassified.
type TermType int

// TermElement is one search term and the attributes the feedback
// pipeline computes for it: surface and canonical string, position,
// language, the weighting attributes (weight, scale, tf, df, sdf,
// tsv, twv) and the per-term Okapi search parameters the formula
// generator emits.
type TermElement struct {
	String         string // canonical (normalized) form
	OriginalString string // surface form
	Type           TermType
	Position       uint32
	Language       string
	BiGram         bool

	Weight float64 // mixed collection/seed weight
	Scale  float64 // score scale for the formula
	Twv    float64 // type weight value from the term-type table
	Tf     float64 // occurrence frequency (average over seed docs after weighting)
	Df     float64 // collection document frequency
	Sdf    float64 // seed document frequency
	Tsv    float64 // term selection value

	ParamWeight    float64 // per-term Okapi k4
	ParamScore     float64 // per-term Okapi k1
	ParamLength    float64 // per-term document-length lambda
	ParamProximity int     // window width for bigrams, 0 for none
}

// termSeparator joins the two halves of a bigram's surface form.
const termSeparator = ' '

// NewBiGram pairs two terms into an adjacent-pair term.
func NewBiGram(left, right TermElement) TermElement {
	return TermElement{
		String:         left.String + string(termSeparator) + right.String,
		OriginalString: left.OriginalString + string(termSeparator) + right.OriginalString,
		Type:           left.Type,
		Position:       left.Position,
		Language:       left.Language,
		BiGram:         true,
		Twv:            left.Twv * right.Twv,
		Tf:             1,
		Tsv:            1,
	}
}

func formatNumber(v float64) string {
	neg := ""
	if v < 0 {
		neg = "-"
		v = -v
	}
	n1 := int(v)
	n2 := int(1000000 * (v - float64(n1)))
	return fmt.Sprintf("%s%d.%06d", neg, n1, n2)
}

var formulaEscaper = strings.NewReplacer(
	`\`, `\\`,
	`,`, `\,`,
	`)`, `\)`,
	`(`, `\(`,
	`]`, `\]`,
	`[`, `\[`,
	`#`, `\#`,
)

func matchModeLetter(m MatchMode) string {
	switch m {
	case ExactMatch:
		return "e"
	case SimpleMatch:
		return "s"
	case StringMatch:
		return "n"
	case ApproximateMatch:
		return "a"
	case MultiMatch:
		return "m"
	case HeadMatch:
		return "h"
	case TailMatch:
		return "t"
	}
	return "v"
}

// GetFormula renders the term as a score-operator expression, e.g.
// #scale[1.5](#window[1,10,o](#term[e,NormalizedOkapiTfIdf:1.0:0.2:0.25,en](pen),#term[e,...](sword))).
// The scale operator appears only for ranking searches with a non-unit scale, the window
// operator only for bigrams with a proximity parameter, and a
// proximity window splits the surface form at each separator into
// one #term per word. Without a window, a separator between two
// alphabetic or two digit characters is retained and every other
// separator is dropped.
func (t *TermElement) GetFormula(match MatchMode, calculator string, ranking bool) string {
	var b strings.Builder

	closers := 0
	if ranking {
		scale := t.Scale
		if scale == 0 {
			scale = 1
		}
		if calculator == "" {
			w := t.Weight
			if w == 0 {
				w = 1
			}
			scale *= w
		}
		if scale != 1 {
			b.WriteString("#scale[")
			b.WriteString(formatNumber(scale))
			b.WriteString("](")
			closers++
		}
	}
	if t.ParamProximity > 0 {
		fmt.Fprintf(&b, "#window[1,%d,o](", t.ParamProximity)
		closers++
	} else if t.ParamProximity < 0 {
		fmt.Fprintf(&b, "#window[1,%d,u](", -t.ParamProximity)
		closers++
	}

	var mode strings.Builder
	mode.WriteString("#term[")
	mode.WriteString(matchModeLetter(match))
	if ranking {
		mode.WriteByte(',')
		if calculator == "" {
			mode.WriteString("NormalizedOkapiTfIdf:")
			mode.WriteString(formatNumber(t.ParamScore))
			mode.WriteByte(':')
			mode.WriteString(formatNumber(t.ParamWeight))
			mode.WriteByte(':')
			mode.WriteString(formatNumber(t.ParamLength))
		} else {
			mode.WriteString(calculator)
		}
		mode.WriteByte(',')
	} else {
		mode.WriteString(",,")
	}
	mode.WriteString(t.Language)
	mode.WriteByte(']')
	term := mode.String()

	b.WriteString(term)
	b.WriteByte('(')
	runes := []rune(t.String)
	for i, r := range runes {
		if r != termSeparator {
			b.WriteString(formulaEscaper.Replace(string(r)))
			continue
		}
		if t.ParamProximity != 0 {
			// One #term ends, the next begins.
			b.WriteString("),")
			b.WriteString(term)
			b.WriteByte('(')
			continue
		}
		if i == 0 || i == len(runes)-1 {
			continue
		}
		prev, next := runes[i-1], runes[i+1]
		if (isAlphabet(prev) && isAlphabet(next)) || (isDigit(prev) && isDigit(next)) {
			b.WriteRune(r)
		}
	}
	b.WriteByte(')')
	for ; closers > 0; closers-- {
		b.WriteByte(')')
	}
	return b.String()
}

func isAlphabet(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

// TermPool is a bounded, ranked set of search terms. Until the pool
// fills it is a plain map-backed vector; on the first insert past
// maxSize the vector is heapified by ascending selection value so the
// minimum can be swapped out in O(log n).
type TermPool struct {
	maxSize    int
	m          map[string]*TermElement
	terms      []*TermElement
	isHeap     bool
	minTsv     float64
	numUniGram int
	numBiGram  int
}

// NewTermPool returns a pool bounded to maxSize terms.
func NewTermPool(maxSize int) *TermPool {
	return &TermPool{maxSize: maxSize, m: make(map[string]*TermElement)}
}

// Len is the number of pooled terms.
func (p *TermPool) Len() int { return len(p.terms) }

// MaxSize is the pool's current bound.
func (p *TermPool) MaxSize() int { return p.maxSize }

// NumUniGram is the number of single-word terms pooled.
func (p *TermPool) NumUniGram() int { return p.numUniGram }

// NumBiGram is the number of adjacent-pair terms pooled.
func (p *TermPool) NumBiGram() int { return p.numBiGram }

// Get returns the pooled term whose canonical String is s, or nil.
func (p *TermPool) Get(s string) *TermElement { return p.m[s] }

// Terms returns the pool's backing slice; order is unspecified
// unless SortByTsv ran last.
func (p *TermPool) Terms() []*TermElement { return p.terms }

// Resize rebounds the pool. Existing terms are kept even when the
// new bound is smaller; only future inserts see the new bound.
func (p *TermPool) Resize(maxSize int) {
	p.maxSize = maxSize
	p.isHeap = false
}

type termHeap []*TermElement

func (h termHeap) Len() int            { return len(h) }
func (h termHeap) Less(i, j int) bool  { return h[i].Tsv < h[j].Tsv }
func (h termHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *termHeap) Push(x any)         { *h = append(*h, x.(*TermElement)) }
func (h *termHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// InsertTerm registers e in the pool:
//
//   - already pooled: accumulate occurrence frequency and selection
//     value onto the pooled term;
//   - pool not full: insert;
//   - pool full and not yet heapified: heapify and capture the
//     minimum selection value;
//   - e below the minimum: discard;
//   - otherwise: pop the minimum, erase it from the map, insert e and
//     refresh the minimum.
func (p *TermPool) InsertTerm(e TermElement) {
	if p.maxSize == 0 {
		return
	}
	if t, ok := p.m[e.String]; ok {
		t.Tf += e.Tf
		t.Tsv += e.Tsv
		return
	}
	if len(p.terms) < p.maxSize {
		p.add(e)
		return
	}
	if !p.isHeap {
		heap.Init((*termHeap)(&p.terms))
		p.isHeap = true
		p.minTsv = p.terms[0].Tsv
	}
	if p.minTsv > e.Tsv {
		return
	}
	min := heap.Pop((*termHeap)(&p.terms)).(*TermElement)
	delete(p.m, min.String)
	p.countDown(min)
	t := e
	p.m[e.String] = &t
	if t.BiGram {
		p.numBiGram++
	} else {
		p.numUniGram++
	}
	heap.Push((*termHeap)(&p.terms), &t)
	p.minTsv = p.terms[0].Tsv
}

func (p *TermPool) add(e TermElement) *TermElement {
	t := e
	p.m[e.String] = &t
	p.terms = append(p.terms, &t)
	if t.BiGram {
		p.numBiGram++
	} else {
		p.numUniGram++
	}
	return &t
}

func (p *TermPool) countDown(t *TermElement) {
	if t.BiGram {
		p.numBiGram--
	} else {
		p.numUniGram--
	}
}

// SortByTsv orders the pool by descending selection value. The heap
// ordering is invalidated; the next overflowing insert re-heapifies.
func (p *TermPool) SortByTsv() {
	sort.SliceStable(p.terms, func(i, j int) bool { return p.terms[i].Tsv > p.terms[j].Tsv })
	p.isHeap = false
}

// EraseTerm removes every term whose selection value is at or below
// tsv. The pool is left sorted by descending selection value.
func (p *TermPool) EraseTerm(tsv float64) {
	p.SortByTsv()
	keep := p.terms[:0]
	for _, t := range p.terms {
		if t.Tsv <= tsv {
			delete(p.m, t.String)
			p.countDown(t)
			continue
		}
		keep = append(keep, t)
	}
	p.terms = keep
}

// TermPostingElement is one seed document's contribution to a term:
// the document ID and the term's frequency within it.
type TermPostingElement struct {
	DocID uint32
	Tf    float64
}

// TermPosting is a term plus its posting list over the seed
// documents.
type TermPosting struct {
	TermElement
	Posting []TermPostingElement
}

// TermMap maps each term seen in the seed documents to its seed
// posting list, the feedback pipeline's working set.
type TermMap struct {
	m          map[string]*TermPosting
	numDocs    int
	confidence float64
}

// NewTermMap returns an empty seed-document term map.
func NewTermMap() *TermMap {
	return &TermMap{m: make(map[string]*TermPosting)}
}

// InsertTerm appends docID's occurrence of term to the term's
// posting list, creating the list on first sight.
func (m *TermMap) InsertTerm(docID uint32, term TermElement) {
	e := TermPostingElement{DocID: docID, Tf: term.Tf}
	if p, ok := m.m[term.String]; ok {
		p.Posting = append(p.Posting, e)
		return
	}
	m.m[term.String] = &TermPosting{TermElement: term, Posting: []TermPostingElement{e}}
}

// FindTerm returns term's posting, or nil.
func (m *TermMap) FindTerm(s string) *TermPosting { return m.m[s] }

// Erase removes term's posting.
func (m *TermMap) Erase(s string) { delete(m.m, s) }

// Postings returns the term → posting map itself.
func (m *TermMap) Postings() map[string]*TermPosting { return m.m }

// AddDocument counts one mapped seed document.
func (m *TermMap) AddDocument() { m.numDocs++ }

// NumDocs is the number of seed documents mapped.
func (m *TermMap) NumDocs() int { return m.numDocs }

// Confidence is the feedback confidence set by the weighting pass:
// the average selection value of the initial terms.
func (m *TermMap) Confidence() float64 { return m.confidence }

// SetConfidence records the feedback confidence.
func (m *TermMap) SetConfidence(c float64) { m.confidence = c }

// TermTable records, for one or more documents laid out as a single
// occurrence list, where each term occurs, for context-word mining
// around target terms. width is how far a context reaches; the
// occurrence list is padded by width+1 dummies between documents so a
// context never crosses a document edge.
type TermTable struct {
	width    int
	nth      int
	termList []TermElement
	m        map[string][]occurrence
}

// occurrence is a term's start and end occurrence number in the
// table's occurrence list.
type occurrence struct {
	start, end int
}

// NewTermTable returns a table mining contexts width positions wide.
func NewTermTable(width int) *TermTable {
	t := &TermTable{width: width, nth: width + 1, m: make(map[string][]occurrence)}
	t.pad()
	return t
}

func (t *TermTable) pad() {
	for i := 0; i <= t.width; i++ {
		t.termList = append(t.termList, TermElement{})
	}
}

// SwitchDocument pads the occurrence list before the next document's
// terms are inserted.
func (t *TermTable) SwitchDocument() {
	t.nth += t.width + 1
	t.pad()
}

// InsertTerm records term's occurrence; length is the term's extent
// in occurrence positions (1 for a single word). Only single words
// advance the occurrence list; empty surface forms are padding and
// are not tabled.
func (t *TermTable) InsertTerm(term TermElement, length int) {
	occ := occurrence{start: t.nth - length + 1, end: t.nth}
	if length == 1 {
		t.termList = append(t.termList, term)
		t.nth++
	}
	if term.String == "" {
		return
	}
	t.m[term.String] = append(t.m[term.String], occ)
}

// MakeContext pools, for every occurrence of every target term, the
// single words up to width positions to its left and right.
func (t *TermTable) MakeContext(target, leftContext, rightContext *TermPool) {
	for _, tgt := range target.Terms() {
		for _, occ := range t.m[tgt.String] {
			for i := 1; i <= t.width; i++ {
				if w := t.termList[occ.start-i]; w.String != "" {
					leftContext.InsertTerm(w)
				}
				if occ.end+i >= len(t.termList) {
					continue
				}
				if w := t.termList[occ.end+i]; w.String != "" {
					rightContext.InsertTerm(w)
				}
			}
		}
	}
}
