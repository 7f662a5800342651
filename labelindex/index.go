package labelindex

import "github.com/RoaringBitmap/roaring"

// Index is the full label index of one logical database: key<->id
// mapping, postings, and sorted name/value enumeration (§3's "Global, in
// -process" index; §4.5's LABELNAMES/LABELVALUES/CARD).
type Index struct {
	postings *Postings
	names    *StringSet
	values   map[string]*StringSet

	idOf     map[string]SeriesID
	keyOf    map[SeriesID]string
	labelsOf map[SeriesID]map[string]string
	nextID   SeriesID
}

func NewIndex() *Index {
	return &Index{
		postings: NewPostings(),
		names:    NewStringSet(),
		values:   map[string]*StringSet{},
		idOf:     map[string]SeriesID{},
		keyOf:    map[SeriesID]string{},
		labelsOf: map[SeriesID]map[string]string{},
	}
}

// AddSeries indexes key under labels, assigning it a fresh SeriesID. It
// is an error to call this twice for the same key without RemoveSeries
// in between; callers (command.Database) own that invariant.
func (idx *Index) AddSeries(key string, labels map[string]string) SeriesID {
	id := idx.nextID
	idx.nextID++

	idx.idOf[key] = id
	idx.keyOf[id] = key
	stored := make(map[string]string, len(labels))
	for name, value := range labels {
		stored[name] = value
		idx.postings.Add(id, name, value)
		idx.names.Add(name)
		vs, ok := idx.values[name]
		if !ok {
			vs = NewStringSet()
			idx.values[name] = vs
		}
		vs.Add(value)
	}
	idx.labelsOf[id] = stored
	return id
}

// RemoveSeries unwinds all postings and enumeration entries for key,
// pruning a label value from its StringSet once no series carries it,
// and the label name itself once it has no values left.
func (idx *Index) RemoveSeries(key string) {
	id, ok := idx.idOf[key]
	if !ok {
		return
	}
	labels := idx.labelsOf[id]
	idx.postings.Remove(id, labels)
	for name, value := range labels {
		if bm := idx.postings.Equals(name, value); bm.IsEmpty() {
			if vs, ok := idx.values[name]; ok {
				vs.Remove(value)
				if vs.Len() == 0 {
					delete(idx.values, name)
					idx.names.Remove(name)
				}
			}
		}
	}
	delete(idx.idOf, key)
	delete(idx.keyOf, id)
	delete(idx.labelsOf, id)
}

func (idx *Index) KeyOf(id SeriesID) (string, bool) {
	k, ok := idx.keyOf[id]
	return k, ok
}

func (idx *Index) IDOf(key string) (SeriesID, bool) {
	id, ok := idx.idOf[key]
	return id, ok
}

func (idx *Index) LabelsOf(id SeriesID) map[string]string { return idx.labelsOf[id] }

// LabelNames returns every distinct label name across all indexed
// series, sorted.
func (idx *Index) LabelNames() []string { return idx.names.Items() }

// LabelValues returns every distinct value recorded for name, sorted.
func (idx *Index) LabelValues(name string) []string {
	vs, ok := idx.values[name]
	if !ok {
		return nil
	}
	return vs.Items()
}

// Postings exposes the underlying postings store for selector
// evaluation (Component H consumes this directly).
func (idx *Index) Postings() *Postings { return idx.postings }

// Cardinality returns the number of indexed series.
func (idx *Index) Cardinality() int { return len(idx.idOf) }

// AllIDs returns the bitmap of every indexed series, the universe
// negated matchers (!=, empty-equality, !~) subtract against.
func (idx *Index) AllIDs() *roaring.Bitmap {
	bm := roaring.New()
	for id := range idx.keyOf {
		bm.Add(uint32(id))
	}
	return bm
}
