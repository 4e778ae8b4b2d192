package inverted

import (
	"fmt"
	"strconv"
	"strings"
)

// The score-operator grammar:
//
//	#scale[v](NODE)
//	#window[lo,hi,{o|u}](NODE,NODE,...)
//	#term[{e|s|n|a|m|h|t|v},CALC,lang](word)
//
// with , ) ( ] [ # \ escaped by a backslash inside a word. The
// grammar is the one TermElement.GetFormula emits; ParseQuery is its
// inverse.

// QueryNode is a node of the parsed score-operator tree.
type QueryNode interface {
	queryNode()
}

// TermQueryNode is one #term operator: a match mode, a score
// calculator description (empty for boolean search), a language tag
// and the search word.
type TermQueryNode struct {
	Match      MatchMode
	Calculator string
	Language   string
	Word       string
}

// WindowQueryNode is one #window proximity operator over its
// children: matches where the children occur between Lower and Upper
// positions apart, in order when Ordered.
type WindowQueryNode struct {
	Lower    int
	Upper    int
	Ordered  bool
	Children []QueryNode
}

// ScaleQueryNode multiplies its child's score by Scale.
type ScaleQueryNode struct {
	Scale float64
	Child QueryNode
}

func (*TermQueryNode) queryNode()   {}
func (*WindowQueryNode) queryNode() {}
func (*ScaleQueryNode) queryNode()  {}

func matchModeOf(letter string) (MatchMode, error) {
	switch letter {
	case "e":
		return ExactMatch, nil
	case "s":
		return SimpleMatch, nil
	case "n":
		return StringMatch, nil
	case "a":
		return ApproximateMatch, nil
	case "m":
		return MultiMatch, nil
	case "h":
		return HeadMatch, nil
	case "t":
		return TailMatch, nil
	case "v":
		return VoidMatch, nil
	}
	return VoidMatch, fmt.Errorf("inverted: unknown match mode %q", letter)
}

type queryParser struct {
	s   []rune
	pos int
}

// ParseQuery parses one score-operator expression.
func ParseQuery(s string) (QueryNode, error) {
	p := &queryParser{s: []rune(s)}
	n, err := p.parseNode()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.s) {
		return nil, fmt.Errorf("inverted: trailing input at %d in %q", p.pos, s)
	}
	return n, nil
}

func (p *queryParser) parseNode() (QueryNode, error) {
	if err := p.expect('#'); err != nil {
		return nil, err
	}
	name := p.ident()
	args, err := p.bracketArgs()
	if err != nil {
		return nil, err
	}
	switch name {
	case "scale":
		if len(args) != 1 {
			return nil, fmt.Errorf("inverted: #scale takes one argument, got %d", len(args))
		}
		v, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return nil, fmt.Errorf("inverted: #scale argument: %w", err)
		}
		children, err := p.parenNodes()
		if err != nil {
			return nil, err
		}
		if len(children) != 1 {
			return nil, fmt.Errorf("inverted: #scale takes one child, got %d", len(children))
		}
		return &ScaleQueryNode{Scale: v, Child: children[0]}, nil
	case "window":
		if len(args) != 3 {
			return nil, fmt.Errorf("inverted: #window takes three arguments, got %d", len(args))
		}
		lo, err := strconv.Atoi(args[0])
		if err != nil {
			return nil, fmt.Errorf("inverted: #window lower bound: %w", err)
		}
		hi, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, fmt.Errorf("inverted: #window upper bound: %w", err)
		}
		var ordered bool
		switch args[2] {
		case "o":
			ordered = true
		case "u":
			ordered = false
		default:
			return nil, fmt.Errorf("inverted: #window order flag must be o or u, got %q", args[2])
		}
		children, err := p.parenNodes()
		if err != nil {
			return nil, err
		}
		return &WindowQueryNode{Lower: lo, Upper: hi, Ordered: ordered, Children: children}, nil
	case "term":
		if len(args) < 1 || len(args) > 3 {
			return nil, fmt.Errorf("inverted: #term takes one to three arguments, got %d", len(args))
		}
		match, err := matchModeOf(args[0])
		if err != nil {
			return nil, err
		}
		node := &TermQueryNode{Match: match}
		if len(args) > 1 {
			node.Calculator = args[1]
		}
		if len(args) > 2 {
			node.Language = args[2]
		}
		node.Word, err = p.parenWord()
		if err != nil {
			return nil, err
		}
		return node, nil
	}
	return nil, fmt.Errorf("inverted: unknown operator #%s", name)
}

func (p *queryParser) expect(r rune) error {
	if p.pos >= len(p.s) || p.s[p.pos] != r {
		return fmt.Errorf("inverted: expected %q at %d", r, p.pos)
	}
	p.pos++
	return nil
}

func (p *queryParser) ident() string {
	start := p.pos
	for p.pos < len(p.s) && p.s[p.pos] >= 'a' && p.s[p.pos] <= 'z' {
		p.pos++
	}
	return string(p.s[start:p.pos])
}

// bracketArgs parses "[a,b,c]" into its comma-separated parts.
// Calculator descriptions carry no escapable characters, so the
// bracket arguments need no unescaping.
func (p *queryParser) bracketArgs() ([]string, error) {
	if err := p.expect('['); err != nil {
		return nil, err
	}
	var args []string
	var cur strings.Builder
	for {
		if p.pos >= len(p.s) {
			return nil, fmt.Errorf("inverted: unterminated bracket at %d", p.pos)
		}
		switch r := p.s[p.pos]; r {
		case ']':
			p.pos++
			args = append(args, cur.String())
			return args, nil
		case ',':
			p.pos++
			args = append(args, cur.String())
			cur.Reset()
		default:
			p.pos++
			cur.WriteRune(r)
		}
	}
}

// parenNodes parses "(NODE,NODE,...)".
func (p *queryParser) parenNodes() ([]QueryNode, error) {
	if err := p.expect('('); err != nil {
		return nil, err
	}
	var out []QueryNode
	for {
		n, err := p.parseNode()
		if err != nil {
			return nil, err
		}
		out = append(out, n)
		if p.pos >= len(p.s) {
			return nil, fmt.Errorf("inverted: unterminated operator at %d", p.pos)
		}
		switch p.s[p.pos] {
		case ',':
			p.pos++
		case ')':
			p.pos++
			return out, nil
		default:
			return nil, fmt.Errorf("inverted: expected , or ) at %d", p.pos)
		}
	}
}

// parenWord parses "(word)" honoring backslash escapes.
func (p *queryParser) parenWord() (string, error) {
	if err := p.expect('('); err != nil {
		return "", err
	}
	var b strings.Builder
	for {
		if p.pos >= len(p.s) {
			return "", fmt.Errorf("inverted: unterminated word at %d", p.pos)
		}
		switch r := p.s[p.pos]; r {
		case '\\':
			p.pos++
			if p.pos >= len(p.s) {
				return "", fmt.Errorf("inverted: dangling escape at %d", p.pos)
			}
			b.WriteRune(p.s[p.pos])
			p.pos++
		case ')':
			p.pos++
			return b.String(), nil
		case '(', '[', ']', '#', ',':
			return "", fmt.Errorf("inverted: unescaped %q in word at %d", r, p.pos)
		default:
			b.WriteRune(r)
			p.pos++
		}
	}
}
