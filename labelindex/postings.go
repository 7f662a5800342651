// Package labelindex implements Component G: the inverted index from
// label (name,value) pairs to the set of series carrying them, plus the
// sorted by_name/by_value enumeration structures backing LABELNAMES and
// LABELVALUES (§3, §4.5).
//
// Postings lists are backed by github.com/RoaringBitmap/roaring, the
// same compressed-bitmap library the teacher's ethdb/bitmapdb package
// uses to track block numbers per address/topic; here the bitmap
// elements are series IDs instead of block numbers, and AND/OR/ANDNOT
// drive selector evaluation instead of log filtering.
package labelindex

import (
	"github.com/RoaringBitmap/roaring"
)

// SeriesID is a dense, index-assigned identifier for a series key. The
// index owns the key<->id mapping; callers never construct one.
type SeriesID uint32

type labelValue struct {
	name, value string
}

// Postings holds the inverted index: one roaring bitmap per (name,value)
// pair, plus a per-name union used by selectors that only constrain the
// label name (e.g. `{host!=""}`).
type Postings struct {
	byPair map[labelValue]*roaring.Bitmap
	byName map[string]*roaring.Bitmap
}

func NewPostings() *Postings {
	return &Postings{
		byPair: map[labelValue]*roaring.Bitmap{},
		byName: map[string]*roaring.Bitmap{},
	}
}

// Add records that series id carries label (name,value).
func (p *Postings) Add(id SeriesID, name, value string) {
	key := labelValue{name, value}
	bm, ok := p.byPair[key]
	if !ok {
		bm = roaring.New()
		p.byPair[key] = bm
	}
	bm.Add(uint32(id))

	nbm, ok := p.byName[name]
	if !ok {
		nbm = roaring.New()
		p.byName[name] = nbm
	}
	nbm.Add(uint32(id))
}

// Remove unwinds every (name,value) posting for id. labels is the full
// label set the series carried, as recorded at insertion time.
func (p *Postings) Remove(id SeriesID, labels map[string]string) {
	for name, value := range labels {
		if bm, ok := p.byPair[labelValue{name, value}]; ok {
			bm.Remove(uint32(id))
			if bm.IsEmpty() {
				delete(p.byPair, labelValue{name, value})
			}
		}
		if bm, ok := p.byName[name]; ok {
			bm.Remove(uint32(id))
			if bm.IsEmpty() {
				delete(p.byName, name)
			}
		}
	}
}

// Equals returns the bitmap of series carrying name=value, or an empty
// bitmap if no series does.
func (p *Postings) Equals(name, value string) *roaring.Bitmap {
	if bm, ok := p.byPair[labelValue{name, value}]; ok {
		return bm.Clone()
	}
	return roaring.New()
}

// HasName returns the bitmap of series carrying any value for name.
func (p *Postings) HasName(name string) *roaring.Bitmap {
	if bm, ok := p.byName[name]; ok {
		return bm.Clone()
	}
	return roaring.New()
}

// MatchValues returns the union of Equals(name, v) for every v in
// accept, used to evaluate a regex/set matcher once its candidate
// values have been resolved against ValuesForName.
func (p *Postings) MatchValues(name string, accept func(value string) bool) *roaring.Bitmap {
	out := roaring.New()
	for key, bm := range p.byPair {
		if key.name == name && accept(key.value) {
			out.Or(bm)
		}
	}
	return out
}

// ValuesForName lists every distinct value recorded for name.
func (p *Postings) ValuesForName(name string) []string {
	var out []string
	for key := range p.byPair {
		if key.name == name {
			out = append(out, key.value)
		}
	}
	return out
}

// Names lists every distinct label name recorded.
func (p *Postings) Names() []string {
	out := make([]string, 0, len(p.byName))
	for name := range p.byName {
		out = append(out, name)
	}
	return out
}

// Cardinality returns the number of distinct (name,value) pairs, used by
// TS.QUERYINDEX-adjacent introspection and tests.
func (p *Postings) Cardinality() int { return len(p.byPair) }
