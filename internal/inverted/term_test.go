package inverted

import (
	"math"
	"testing"
)

func TestTermPool_InsertAccumulatesExisting(t *testing.T) {
	p := NewTermPool(4)
	p.InsertTerm(TermElement{String: "db", Tf: 1, Tsv: 1})
	p.InsertTerm(TermElement{String: "db", Tf: 2, Tsv: 0.5})
	if p.Len() != 1 {
		t.Fatalf("len = %d, want 1", p.Len())
	}
	got := p.Get("db")
	if got.Tf != 3 || got.Tsv != 1.5 {
		t.Fatalf("tf = %v, tsv = %v, want 3, 1.5", got.Tf, got.Tsv)
	}
}

func TestTermPool_OverflowEvictsMinimumTsv(t *testing.T) {
	p := NewTermPool(2)
	p.InsertTerm(TermElement{String: "a", Tsv: 1})
	p.InsertTerm(TermElement{String: "b", Tsv: 2})

	// Below the pool minimum: discarded.
	p.InsertTerm(TermElement{String: "c", Tsv: 0.5})
	if p.Get("c") != nil {
		t.Fatal("low-tsv term should have been discarded")
	}

	// Above the minimum: replaces it.
	p.InsertTerm(TermElement{String: "d", Tsv: 3})
	if p.Get("a") != nil {
		t.Fatal("minimum-tsv term should have been evicted")
	}
	if p.Get("d") == nil || p.Get("b") == nil {
		t.Fatal("surviving terms missing")
	}
	if p.Len() != 2 {
		t.Fatalf("len = %d, want 2", p.Len())
	}
}

func TestTermPool_EraseTermDropsAtOrBelow(t *testing.T) {
	p := NewTermPool(4)
	p.InsertTerm(TermElement{String: "a", Tsv: 0})
	p.InsertTerm(TermElement{String: "b", Tsv: 0.2})
	p.InsertTerm(TermElement{String: "c", Tsv: 0.9})
	p.EraseTerm(0.2)
	if p.Len() != 1 || p.Get("c") == nil {
		t.Fatalf("len = %d, want only c to survive", p.Len())
	}
}

func TestTermPool_BiGramCounts(t *testing.T) {
	p := NewTermPool(4)
	left := TermElement{String: "full", Twv: 1}
	right := TermElement{String: "text", Twv: 1}
	p.InsertTerm(left)
	p.InsertTerm(right)
	p.InsertTerm(NewBiGram(left, right))
	if p.NumUniGram() != 2 || p.NumBiGram() != 1 {
		t.Fatalf("uni = %d, bi = %d, want 2, 1", p.NumUniGram(), p.NumBiGram())
	}
	if p.Get("full text") == nil {
		t.Fatal("bigram surface form not pooled")
	}
}

// The worked weighting example: N=1000 registered documents, R=5
// seeds, alpha=0.2; a term in n=10 documents overall and r=4 seeds.
func TestWeightFormulas(t *testing.T) {
	const (
		alpha = 0.2
		N     = 1000.0
		R     = 5.0
		n     = 10.0
		r     = 4.0
	)
	maxW1, maxW2 := weightNormalizers(alpha, 1000, 5)

	wantW1 := math.Log(21) / math.Log(201)
	if got := collectionWeight(alpha, n, N, maxW1); math.Abs(got-wantW1) > 1e-12 {
		t.Fatalf("w1 = %v, want %v", got, wantW1)
	}

	wantW2 := math.Log((4.5/1.5)/(6.5/989.5)) / math.Log((5.5/0.5)/(0.5/1000))
	if got := seedWeight(r, R, n, N, maxW2); math.Abs(got-wantW2) > 1e-12 {
		t.Fatalf("w2 = %v, want %v", got, wantW2)
	}
}

func TestWeightTerm_SetsSelectionValue(t *testing.T) {
	tp := &TermProcessor{Config: DefaultTermProcessorConfig(), CollectionSize: 1000, AverageLength: 100}
	tp.Config.ParamMix1 = 0.5

	pool := NewTermPool(10)
	pool.InsertTerm(TermElement{String: "engine", Tf: 1, Tsv: 1, Twv: 1, Df: 10})

	m := NewTermMap()
	for doc := uint32(1); doc <= 5; doc++ {
		terms := []TermOccurrence{}
		if doc <= 4 {
			terms = append(terms, TermOccurrence{Term: "engine", Positions: []uint32{1, 5}})
		}
		tp.MapTerm(m, SeedDocument{DocID: doc, Terms: terms})
	}
	tp.WeightTerm(m, pool)

	got := pool.Get("engine")
	if got.Sdf != 4 {
		t.Fatalf("sdf = %v, want 4", got.Sdf)
	}
	// Average seed frequency starts from 0.5 per the smoothing.
	if want := (0.5 + 8) / 4.0; math.Abs(got.Tf-want) > 1e-12 {
		t.Fatalf("tf = %v, want %v", got.Tf, want)
	}

	maxW1, maxW2 := weightNormalizers(tp.Config.ParamWeight1, 1000, 5)
	w1 := collectionWeight(tp.Config.ParamWeight1, 10, 1000, maxW1)
	w2 := seedWeight(4, 5, 10, 1000, maxW2)
	weight := 0.5*w1 + 0.5*w2
	wantTsv := weight * (4.0/5 - 10.0/1000)
	if math.Abs(got.Tsv-wantTsv) > 1e-12 {
		t.Fatalf("tsv = %v, want %v", got.Tsv, wantTsv)
	}
	// The term was consumed from the map.
	if m.FindTerm("engine") != nil {
		t.Fatal("weighted term should be erased from the map")
	}
	if m.Confidence() == 0 {
		t.Fatal("confidence not set")
	}
}

func TestSelectTerm_BoundsPoolByConfidence(t *testing.T) {
	tp := &TermProcessor{Config: DefaultTermProcessorConfig(), CollectionSize: 1000}
	tp.Config.MinTerm2 = 2
	tp.Config.MaxTerm2 = 10

	m := NewTermMap()
	for i := 0; i < 5; i++ {
		m.AddDocument()
	}
	m.SetConfidence(0.5) // 2 + (10-2)*0.5 = 6 expansion terms

	candidate := NewTermPool(100)
	for i := 0; i < 20; i++ {
		candidate.InsertTerm(TermElement{
			String: string(rune('a' + i)),
			Df:     float64(5 + i),
			Sdf:    3,
			Tf:     2,
			Twv:    1,
		})
	}
	pool := NewTermPool(100)
	tp.SelectTerm(m, candidate, pool)
	if pool.MaxSize() != 6 {
		t.Fatalf("pool bound = %d, want 6", pool.MaxSize())
	}
	if pool.Len() != 6 {
		t.Fatalf("selected = %d, want 6", pool.Len())
	}
	for _, sel := range pool.Terms() {
		if sel.Scale == 0 {
			t.Fatalf("term %q: scale not set", sel.String)
		}
	}
}

func TestMergeRank(t *testing.T) {
	tp := &TermProcessor{Config: DefaultTermProcessorConfig()}
	tp.Config.MaxRank1 = 10
	tp.Config.MaxRank2 = 10
	tp.Config.ParamMixRank = 0.5

	initial := []ScoredDocument{{DocumentID: 10}, {DocumentID: 20}}
	expanded := []ScoredDocument{{DocumentID: 20}, {DocumentID: 30}}
	got := tp.MergeRank(initial, expanded)
	if len(got) != 2 {
		t.Fatalf("merged = %d documents, want 2", len(got))
	}
	// doc 20: r1=2, r2=1 -> 1/1.5; doc 30: r1=11, r2=2 -> 1/6.5.
	if got[0].DocumentID != 20 || got[1].DocumentID != 30 {
		t.Fatalf("order = [%d %d], want [20 30]", got[0].DocumentID, got[1].DocumentID)
	}
	if math.Abs(float64(got[0].Score)-1/1.5) > 1e-12 {
		t.Fatalf("doc 20 score = %v, want %v", got[0].Score, 1/1.5)
	}
	if math.Abs(float64(got[1].Score)-1/6.5) > 1e-12 {
		t.Fatalf("doc 30 score = %v, want %v", got[1].Score, 1/6.5)
	}
}

func TestTermTable_MakeContext(t *testing.T) {
	table := NewTermTable(1)
	for _, w := range []string{"the", "storage", "engine", "core"} {
		table.InsertTerm(TermElement{String: w}, 1)
	}
	table.SwitchDocument()

	target := NewTermPool(4)
	target.InsertTerm(TermElement{String: "engine"})
	left := NewTermPool(4)
	right := NewTermPool(4)
	table.MakeContext(target, left, right)
	if left.Get("storage") == nil {
		t.Fatal("left context should hold the preceding word")
	}
	if right.Get("core") == nil {
		t.Fatal("right context should hold the following word")
	}
}
