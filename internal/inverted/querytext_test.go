package inverted

import (
	"errors"
	"math"
	"testing"
)

func TestParseQuery_Term(t *testing.T) {
	n, err := ParseQuery("#term[e,NormalizedOkapiTfIdf:1.0:1.0:0.25:0.25:0.2,ja](database)")
	if err != nil {
		t.Fatal(err)
	}
	term, ok := n.(*TermQueryNode)
	if !ok {
		t.Fatalf("node = %T, want *TermQueryNode", n)
	}
	if term.Match != ExactMatch || term.Language != "ja" || term.Word != "database" {
		t.Fatalf("parsed = %+v", term)
	}
	if _, err := ParseScoreCalculator(term.Calculator); err != nil {
		t.Fatalf("calculator %q: %v", term.Calculator, err)
	}
}

func TestParseQuery_WindowAndScale(t *testing.T) {
	n, err := ParseQuery("#scale[1.5](#window[1,10,o](#term[s,,](pen),#term[s,,](sword)))")
	if err != nil {
		t.Fatal(err)
	}
	scale, ok := n.(*ScaleQueryNode)
	if !ok || scale.Scale != 1.5 {
		t.Fatalf("node = %#v, want scale 1.5", n)
	}
	win, ok := scale.Child.(*WindowQueryNode)
	if !ok {
		t.Fatalf("child = %T, want *WindowQueryNode", scale.Child)
	}
	if win.Lower != 1 || win.Upper != 10 || !win.Ordered || len(win.Children) != 2 {
		t.Fatalf("window = %+v", win)
	}
	if w := win.Children[1].(*TermQueryNode).Word; w != "sword" {
		t.Fatalf("second word = %q, want sword", w)
	}
}

func TestParseQuery_Escapes(t *testing.T) {
	word := `a,b(c)#d\e[f]`
	el := &TermElement{String: word}
	formula := el.GetFormula(StringMatch, "", false)
	n, err := ParseQuery(formula)
	if err != nil {
		t.Fatalf("parse %q: %v", formula, err)
	}
	if got := n.(*TermQueryNode).Word; got != word {
		t.Fatalf("round trip = %q, want %q", got, word)
	}
}

func TestGetFormula_ProximitySplitsTerms(t *testing.T) {
	el := &TermElement{
		String:         "pen sword",
		BiGram:         true,
		ParamProximity: 10,
		Scale:          1,
		Weight:         1,
		ParamScore:     1,
		ParamWeight:    0.2,
		ParamLength:    0.25,
	}
	formula := el.GetFormula(ExactMatch, "", true)
	n, err := ParseQuery(formula)
	if err != nil {
		t.Fatalf("parse %q: %v", formula, err)
	}
	win, ok := n.(*WindowQueryNode)
	if !ok {
		t.Fatalf("node = %T, want *WindowQueryNode (formula %q)", n, formula)
	}
	if !win.Ordered || win.Upper != 10 || len(win.Children) != 2 {
		t.Fatalf("window = %+v", win)
	}
	if win.Children[0].(*TermQueryNode).Word != "pen" ||
		win.Children[1].(*TermQueryNode).Word != "sword" {
		t.Fatalf("split words wrong in %q", formula)
	}
}

func TestGetFormula_SeparatorRetainedBetweenAlphabetics(t *testing.T) {
	el := &TermElement{String: "new york"}
	formula := el.GetFormula(SimpleMatch, "", false)
	n, err := ParseQuery(formula)
	if err != nil {
		t.Fatal(err)
	}
	if got := n.(*TermQueryNode).Word; got != "new york" {
		t.Fatalf("word = %q, want the separator retained", got)
	}

	// A separator not between two alphabetics or two digits drops.
	el = &TermElement{String: "東京 タワー"}
	formula = el.GetFormula(SimpleMatch, "", false)
	n, err = ParseQuery(formula)
	if err != nil {
		t.Fatal(err)
	}
	if got := n.(*TermQueryNode).Word; got != "東京タワー" {
		t.Fatalf("word = %q, want the separator dropped", got)
	}
}

func TestParseScoreCalculator(t *testing.T) {
	c, err := ParseScoreCalculator("NormalizedOkapiTfIdf:1.0:1.0:0.25")
	if err != nil {
		t.Fatal(err)
	}
	idf := c.(*NormalizedTfIdfScoreCalculator)
	if idf.K1 != 1.0 || idf.K2 != 1.0 || idf.X != 0.25 {
		t.Fatalf("parsed = %+v", idf)
	}

	tf, err := ParseScoreCalculator("NormalizedOkapiTf:0.5:1.5")
	if err != nil {
		t.Fatal(err)
	}
	if tf.(*NormalizedOkapiTfScoreCalculator).SecondStep(10, 100) != 1 {
		t.Fatal("TF-only calculator should have a constant second step")
	}

	if _, err := ParseScoreCalculator("NormalizedOkapiTfIdf:1:2:3:4:5:6"); !errors.Is(err, ErrNotSupported) {
		t.Fatalf("surplus parameters: err = %v, want ErrNotSupported", err)
	}
	if _, err := ParseScoreCalculator("MysteryRanker:1"); !errors.Is(err, ErrNotSupported) {
		t.Fatalf("unknown calculator: err = %v, want ErrNotSupported", err)
	}
	if _, err := ParseScoreCalculator("NormalizedOkapiTf:abc"); err == nil {
		t.Fatal("malformed parameter should fail")
	}
}

func TestScoreCombinerExactValues(t *testing.T) {
	scores := []DocumentScore{0.3, 0.4, 0.5}
	if got := (ASumScoreCombiner{}).Apply(scores); math.Abs(float64(got)-0.79) > 1e-12 {
		t.Fatalf("asum = %v, want 0.79", got)
	}
	if got := (ProductScoreCombiner{}).Apply(scores); math.Abs(float64(got)-0.06) > 1e-12 {
		t.Fatalf("product = %v, want 0.06", got)
	}
	if got := (MinScoreCombiner{}).Apply(scores); got != 0.3 {
		t.Fatalf("min = %v, want 0.3", got)
	}
	if got := (SumScoreCombiner{}).Apply(scores); math.Abs(float64(got)-1.2) > 1e-12 {
		t.Fatalf("sum = %v, want 1.2", got)
	}
}

func TestTokenize_JapaneseBlocker3(t *testing.T) {
	toks := Tokenize(JapaneseBlocker3{}, "人々 rock 42")
	if len(toks) != 3 {
		t.Fatalf("tokens = %v, want 3", toks)
	}
	// 々 joins the kanji run instead of breaking it as a symbol.
	if toks[0].Surface != "人々" || toks[0].Block != BlockKanji {
		t.Fatalf("first token = %+v, want 人々 as one kanji token", toks[0])
	}
	if toks[1].Surface != "rock" || toks[1].Block != BlockAlphabet {
		t.Fatalf("second token = %+v", toks[1])
	}
	if toks[2].Surface != "42" || toks[2].Block != BlockDigit {
		t.Fatalf("third token = %+v", toks[2])
	}

	// The base blocker breaks at the iteration mark.
	base := Tokenize(JapaneseBlocker{}, "人々")
	if len(base) != 1 || base[0].Surface != "人" {
		t.Fatalf("base tokens = %v, want just 人", base)
	}
}

func TestTokenBoundaries(t *testing.T) {
	got := TokenBoundaries(JapaneseBlocker3{}, "go run")
	want := []uint32{1, 4, 7}
	if len(got) != len(want) {
		t.Fatalf("boundaries = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("boundaries = %v, want %v", got, want)
		}
	}
}
