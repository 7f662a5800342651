package labelindex

import "github.com/petar/GoLLRB/llrb"

// stringItem adapts a plain string to llrb.Item, the same pattern the
// teacher's header downloader uses for its tip-limiter tree (Tip.Less),
// here ordering label names/values lexicographically instead of by
// cumulative difficulty.
type stringItem string

func (s stringItem) Less(than llrb.Item) bool { return s < than.(stringItem) }

// StringSet is a sorted set of unique strings, used to keep each label
// name's distinct values (and the set of distinct label names) in
// sorted order for LABELNAMES/LABELVALUES enumeration without a sort at
// query time (§4.5).
type StringSet struct {
	tree *llrb.LLRB
}

func NewStringSet() *StringSet { return &StringSet{tree: llrb.New()} }

func (s *StringSet) Add(v string) { s.tree.ReplaceOrInsert(stringItem(v)) }

func (s *StringSet) Remove(v string) { s.tree.Delete(stringItem(v)) }

func (s *StringSet) Has(v string) bool { return s.tree.Has(stringItem(v)) }

func (s *StringSet) Len() int { return s.tree.Len() }

// Items returns every member in ascending order.
func (s *StringSet) Items() []string {
	out := make([]string, 0, s.tree.Len())
	s.tree.AscendGreaterOrEqual(stringItem(""), func(i llrb.Item) bool {
		out = append(out, string(i.(stringItem)))
		return true
	})
	return out
}
