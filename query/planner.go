package query

import (
	"regexp"

	"github.com/RoaringBitmap/roaring"
	lru "github.com/hashicorp/golang-lru"

	tserr "github.com/ledgerwatch/tscore/errors"
	"github.com/ledgerwatch/tscore/labelindex"
)

const regexCacheSize = 256

// Planner evaluates selector Exprs against a label index, memoizing
// compiled regexes across queries the same way the teacher's bounded
// caches amortize repeated work (§4.6).
type Planner struct {
	idx        *labelindex.Index
	regexCache *lru.Cache
}

func NewPlanner(idx *labelindex.Index) *Planner {
	cache, err := lru.New(regexCacheSize)
	if err != nil {
		panic(err) // only fails for a non-positive size, which regexCacheSize never is
	}
	return &Planner{idx: idx, regexCache: cache}
}

func (p *Planner) compileRegex(pattern string) (*regexp.Regexp, error) {
	if v, ok := p.regexCache.Get(pattern); ok {
		return v.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return nil, tserr.Arg("selector", "invalid regex %q: %v", pattern, err)
	}
	p.regexCache.Add(pattern, re)
	return re, nil
}

// Eval validates and evaluates expr, returning the bitmap of matching
// series IDs.
func (p *Planner) Eval(expr Expr) (*roaring.Bitmap, error) {
	if !validate(expr) {
		return nil, tserr.New(tserr.InvalidSelector, "selector has no positive matcher")
	}
	return p.eval(expr)
}

// validate enforces §4.5's "at least one positive matcher" rule: an AND
// needs it on just one side (the other may be a pure filter), an OR
// needs it independently on both sides since each becomes its own
// unioned base set.
func validate(e Expr) bool {
	switch v := e.(type) {
	case SelectorExpr:
		return v.Selector.HasPositiveMatcher()
	case AndExpr:
		return validate(v.Left) || validate(v.Right)
	case OrExpr:
		return validate(v.Left) && validate(v.Right)
	default:
		return false
	}
}

func (p *Planner) eval(e Expr) (*roaring.Bitmap, error) {
	switch v := e.(type) {
	case SelectorExpr:
		return p.evalSelector(v.Selector)
	case AndExpr:
		left, err := p.eval(v.Left)
		if err != nil {
			return nil, err
		}
		if left.IsEmpty() {
			return left, nil // short-circuit empty AND leg (§4.6)
		}
		right, err := p.eval(v.Right)
		if err != nil {
			return nil, err
		}
		return roaring.And(left, right), nil
	case OrExpr:
		left, err := p.eval(v.Left)
		if err != nil {
			return nil, err
		}
		right, err := p.eval(v.Right)
		if err != nil {
			return nil, err
		}
		return roaring.Or(left, right), nil
	default:
		return nil, tserr.New(tserr.InvalidSelector, "unknown selector node")
	}
}

func (p *Planner) evalSelector(sel Selector) (*roaring.Bitmap, error) {
	var result *roaring.Bitmap
	intersect := func(bm *roaring.Bitmap) {
		if result == nil {
			result = bm
			return
		}
		result = roaring.And(result, bm)
	}

	for _, m := range sel.Matchers {
		bm, err := p.evalMatcher(m)
		if err != nil {
			return nil, err
		}
		intersect(bm)
		if result.IsEmpty() {
			return result, nil
		}
	}
	if result == nil {
		return roaring.New(), nil
	}
	return result, nil
}

func (p *Planner) evalMatcher(m Matcher) (*roaring.Bitmap, error) {
	postings := p.idx.Postings()
	switch m.Op {
	case OpEqual:
		if len(m.Values) > 0 {
			out := roaring.New()
			for _, v := range m.Values {
				out.Or(postings.Equals(m.Name, v))
			}
			return out, nil
		}
		if m.Value == "" {
			return roaring.AndNot(p.idx.AllIDs(), postings.HasName(m.Name)), nil
		}
		return postings.Equals(m.Name, m.Value), nil
	case OpNotEqual:
		if m.Value == "" {
			return postings.HasName(m.Name), nil
		}
		return roaring.AndNot(p.idx.AllIDs(), postings.Equals(m.Name, m.Value)), nil
	case OpRegexMatch:
		re, err := p.compileRegex(m.Value)
		if err != nil {
			return nil, err
		}
		return postings.MatchValues(m.Name, re.MatchString), nil
	case OpRegexNotMatch:
		re, err := p.compileRegex(m.Value)
		if err != nil {
			return nil, err
		}
		matching := postings.MatchValues(m.Name, re.MatchString)
		return roaring.AndNot(p.idx.AllIDs(), matching), nil
	default:
		return nil, tserr.New(tserr.InvalidSelector, "unknown matcher operator")
	}
}
