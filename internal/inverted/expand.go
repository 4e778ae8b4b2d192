package inverted

import (
	"math"
	"sort"
)

// TermProcessorConfig carries the feedback pipeline's tunables.
type TermProcessorConfig struct {
	MaxTerm1     int // initial term pool bound
	MaxTerm2     int // expanded term pool upper bound
	MinTerm2     int // expanded term pool lower bound
	MaxCandidate int // expansion candidate pool bound
	MaxSeed      int // seed documents considered
	MaxText2     int // per-seed-document token bound, 0 for none

	UseUniGram2 bool // single words participate in feedback
	UseBiGram2  bool // adjacent pairs participate in feedback
	MinSeedDf2  int  // candidates at or below this seed frequency are dropped

	ParamScale1  float64 // initial scale denominator
	ParamWeight1 float64 // initial collection-weight alpha
	ParamScore1  float64 // initial Okapi k1
	ParamLength1 float64 // initial document-length lambda
	ParamMix1    float64 // initial collection/seed weight mix

	ParamScale2  float64 // expansion scale denominator
	ParamWeight2 float64 // expansion collection-weight alpha
	ParamScore2  float64 // expansion Okapi k1
	ParamLength2 float64 // expansion document-length lambda
	ParamMix2    float64 // expansion collection/seed weight mix

	MaxRank1     int     // initial results entering the rank merge
	MaxRank2     int     // expanded results entering the rank merge
	ParamMixRank float64 // expanded-rank share in the merged score
}

// DefaultTermProcessorConfig returns the standard operating points.
func DefaultTermProcessorConfig() TermProcessorConfig {
	return TermProcessorConfig{
		MaxTerm1:     10,
		MaxTerm2:     10,
		MinTerm2:     2,
		MaxCandidate: 500,
		MaxSeed:      10,
		MaxText2:     5000,
		UseUniGram2:  true,
		UseBiGram2:   false,
		MinSeedDf2:   1,
		ParamScale1:  0.5,
		ParamWeight1: 0.2,
		ParamScore1:  1.0,
		ParamLength1: 0.25,
		ParamMix1:    0.5,
		ParamScale2:  0.5,
		ParamWeight2: 0.2,
		ParamScore2:  1.0,
		ParamLength2: 0.25,
		ParamMix2:    0.5,
		MaxRank1:     100,
		MaxRank2:     100,
		ParamMixRank: 0.5,
	}
}

// TermProcessor runs the relevance-feedback pipeline: weight the
// initial terms against the seed documents, select expansion terms
// from the seed vocabulary, and merge the two result sets in rank
// space.
type TermProcessor struct {
	Config         TermProcessorConfig
	CollectionSize uint32  // registered document count (N)
	AverageLength  float64 // average registered document length
}

// SeedDocument is one feedback seed: a document ID plus its tokenized
// terms.
type SeedDocument struct {
	DocID uint32
	Terms []TermOccurrence
}

// MapTerm records one seed document's terms into the term map,
// truncating at MaxText2 tokens.
func (tp *TermProcessor) MapTerm(m *TermMap, seed SeedDocument) {
	limit := tp.Config.MaxText2
	count := 0
	for _, occ := range seed.Terms {
		tf := float64(len(occ.Positions))
		if tf == 0 {
			tf = 1
		}
		if limit > 0 {
			if count >= limit {
				break
			}
			count += int(tf)
		}
		m.InsertTerm(seed.DocID, TermElement{String: occ.Term, OriginalString: occ.Term, Tf: tf})
	}
	m.AddDocument()
}

// weightNormalizers returns the two normalization constants: the
// maximum collection weight log(alpha*N + 1) and the maximum seed
// weight log(((R+0.5)/0.5)/(0.5/N)).
func weightNormalizers(alpha float64, n uint32, r int) (float64, float64) {
	N := float64(n)
	R := float64(r)
	return math.Log(alpha*N + 1), math.Log(((R + 0.5) / 0.5) / (0.5 / N))
}

// collectionWeight is w1 = log((alpha*N)/n + 1) / maxW1, clamped at 0.
func collectionWeight(alpha, n, N, maxW1 float64) float64 {
	w := math.Log(alpha*N/n+1) / maxW1
	if w < 0 {
		return 0
	}
	return w
}

// seedWeight is the Robertson/Sparck-Jones seed weight
// w2 = log(((r+0.5)/(R-r+0.5))/((n-r+0.5)/(N-n-R+r+0.5))) / maxW2,
// clamped at 0. The two inner differences can go negative when seeds
// are drawn from outside the collection, and clamp at 0 first.
func seedWeight(r, R, n, N, maxW2 float64) float64 {
	t1 := n - r
	if t1 < 0 {
		t1 = 0
	}
	t2 := N - n - R + r
	if t2 < 0 {
		t2 = 0
	}
	w := math.Log(((r+0.5)/(R-r+0.5))/((t1+0.5)/(t2+0.5))) / maxW2
	if w < 0 {
		return 0
	}
	return w
}

// WeightTerm reweights every initial term against the seed feedback
// in the map: the seed document frequency (r) and average occurrence
// frequency come from the term's seed posting list, the mixed weight
// from the collection and seed weights, and the selection value from
// weight * (r/R - n/N), clamped at 0. Each processed term is erased
// from the map; the map's confidence is set to the average selection
// value.
func (tp *TermProcessor) WeightTerm(m *TermMap, pool *TermPool) {
	R := m.NumDocs()
	N := tp.CollectionSize
	if R == 0 || N == 0 {
		return
	}
	cfg := &tp.Config
	maxW1, maxW2 := weightNormalizers(cfg.ParamWeight1, N, R)
	if maxW1 <= 0 || maxW2 <= 0 {
		return
	}

	for _, t := range pool.Terms() {
		n := t.Df
		if n == 0 {
			t.Tsv = 0
			continue
		}
		t.ParamWeight = cfg.ParamWeight1
		t.ParamScore = cfg.ParamScore1
		t.ParamLength = cfg.ParamLength1

		r, tf := 0.5, 0.5
		if (t.BiGram && !cfg.UseBiGram2) || (!t.BiGram && !cfg.UseUniGram2) {
			// Not generated from the seeds; keep the initial
			// attributes and a token selection value.
			t.Tsv = 0.1
			continue
		}
		if p := m.FindTerm(t.String); p != nil {
			r = float64(len(p.Posting))
			for _, e := range p.Posting {
				tf += e.Tf
			}
			tf /= r
			m.Erase(t.String)
		}
		t.Sdf = r
		t.Tf = tf

		w1 := collectionWeight(cfg.ParamWeight1, n, float64(N), maxW1)
		w2 := seedWeight(r, float64(R), n, float64(N), maxW2)
		t.Weight = (1-cfg.ParamMix1)*w1 + cfg.ParamMix1*w2

		tsv := t.Weight * (r/float64(R) - n/float64(N))
		if tsv < 0 {
			tsv = 0
		}
		t.Tsv = tsv

		t.Scale = t.Twv * t.Tf / (t.Tf + cfg.ParamScale1)
	}

	var avg float64
	terms := pool.Terms()
	for _, t := range terms {
		avg += t.Tsv
	}
	if len(terms) != 0 {
		avg /= float64(len(terms))
	}
	m.SetConfidence(avg)
}

// PoolCandidate drains the term map (the terms the seed documents
// contributed that the initial query did not) into a candidate pool,
// setting each candidate's seed document frequency and average
// occurrence frequency. stop filters candidates out (nil for none).
func (tp *TermProcessor) PoolCandidate(m *TermMap, candidate *TermPool, stop func(*TermElement) bool) {
	for _, p := range m.Postings() {
		sdf := len(p.Posting)
		if sdf <= tp.Config.MinSeedDf2 {
			continue
		}
		t := p.TermElement
		if stop != nil && stop(&t) {
			continue
		}
		t.Sdf = float64(sdf)
		var tf float64
		for _, e := range p.Posting {
			tf += e.Tf
		}
		t.Tf = tf / float64(sdf)
		t.Tsv = 1
		candidate.InsertTerm(t)
	}
}

// SelectTerm scores every expansion candidate and pools the best into
// pool, bounded by minTerm2 + (maxTerm2-minTerm2) * confidence.
func (tp *TermProcessor) SelectTerm(m *TermMap, candidate, pool *TermPool) {
	R := m.NumDocs()
	N := tp.CollectionSize
	if R == 0 || N == 0 {
		return
	}
	cfg := &tp.Config
	if cfg.MaxTerm2 > cfg.MinTerm2 {
		n := cfg.MinTerm2 + int(float64(cfg.MaxTerm2-cfg.MinTerm2)*m.Confidence())
		pool.Resize(n)
	}
	maxW1, maxW2 := weightNormalizers(cfg.ParamWeight2, N, R)
	if maxW1 <= 0 || maxW2 <= 0 {
		return
	}

	for _, t := range candidate.Terms() {
		n := t.Df
		if n == 0 {
			t.Tsv = 0
			continue
		}
		r := t.Sdf
		w1 := collectionWeight(cfg.ParamWeight2, n, float64(N), maxW1)
		w2 := seedWeight(r, float64(R), n, float64(N), maxW2)
		t.Weight = (1-cfg.ParamMix2)*w1 + cfg.ParamMix2*w2

		tsv := t.Weight * (r/float64(R) - n/float64(N))
		if tsv < 0 {
			tsv = 0
		}
		t.Tsv = tsv
		pool.InsertTerm(*t)
	}

	for _, t := range pool.Terms() {
		t.ParamWeight = cfg.ParamWeight2
		t.ParamScore = cfg.ParamScore2
		t.ParamLength = cfg.ParamLength2
		t.Scale = t.Twv * t.Tf / (t.Tf + cfg.ParamScale2)
	}
	pool.SortByTsv()
}

// MergeRank merges the initial and expanded result sets in rank
// space: each of the top MaxRank1 initial documents carries its rank
// r1 (absentees rank MaxRank1+1), each of the top MaxRank2 expanded
// documents its rank r2, and the merged score is
// 1/(mix*r2 + (1-mix)*r1). The merged set is returned re-sorted by
// descending score.
func (tp *TermProcessor) MergeRank(initial, expanded []ScoredDocument) []ScoredDocument {
	cfg := &tp.Config
	if cfg.MaxRank1 == 0 {
		return expanded
	}
	rank1 := make(map[uint32]int, cfg.MaxRank1)
	for i, d := range initial {
		if i >= cfg.MaxRank1 {
			break
		}
		rank1[d.DocumentID] = i + 1
	}
	merged := make([]ScoredDocument, 0, len(expanded))
	for i, d := range expanded {
		if i >= cfg.MaxRank2 {
			break
		}
		r1 := cfg.MaxRank1 + 1
		if r, ok := rank1[d.DocumentID]; ok {
			r1 = r
		}
		r2 := i + 1
		d.Score = DocumentScore(1.0 / (cfg.ParamMixRank*float64(r2) + (1-cfg.ParamMixRank)*float64(r1)))
		merged = append(merged, d)
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	return merged
}
