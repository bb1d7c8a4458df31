package substrate

import (
	"math/bits"

	"github.com/blackwell-systems/fimine/internal/itemset"
	"github.com/blackwell-systems/fimine/internal/tract"
)

// Occurrences is the set of transactions containing an itemset.
type Occurrences interface {
	// Support returns the summed weight of the contained transactions.
	Support() int

	// Intersect returns the transactions present in both sets. Both sets
	// must share the same encoding.
	Intersect(o Occurrences) Occurrences
}

// Encoding selects the occurrence set layout.
type Encoding int

const (
	// TIDs stores sorted transaction index lists.
	TIDs Encoding = iota
	// Bits stores one bit per transaction.
	Bits
)

// TIDList is a sorted list of transaction indices.
type TIDList struct {
	tids    []int32
	supp    int
	weights []int
}

// Support implements Occurrences.
func (l *TIDList) Support() int {
	return l.supp
}

// Len returns the number of transaction indices.
func (l *TIDList) Len() int {
	return len(l.tids)
}

// TIDs returns the ascending transaction indices. The slice is shared and
// must not be modified.
func (l *TIDList) TIDs() []int32 {
	return l.tids
}

// Intersect implements Occurrences.
func (l *TIDList) Intersect(o Occurrences) Occurrences {
	r := o.(*TIDList)
	a, b := l.tids, r.tids
	if len(a) > len(b) {
		a, b = b, a
	}
	out := &TIDList{tids: make([]int32, 0, len(a)), weights: l.weights}
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			out.tids = append(out.tids, a[i])
			out.supp += l.weights[a[i]]
			i++
			j++
		}
	}
	return out
}

// BitSet marks the transactions of an occurrence set.
type BitSet struct {
	words   []uint64
	supp    int
	weights []int // nil when all weights are 1
}

// Support implements Occurrences.
func (s *BitSet) Support() int {
	return s.supp
}

// Intersect implements Occurrences.
func (s *BitSet) Intersect(o Occurrences) Occurrences {
	r := o.(*BitSet)
	out := &BitSet{words: make([]uint64, len(s.words)), weights: s.weights}
	for i := range s.words {
		out.words[i] = s.words[i] & r.words[i]
	}
	out.supp = out.count()
	return out
}

func (s *BitSet) count() int {
	n := 0
	if s.weights == nil {
		for _, w := range s.words {
			n += bits.OnesCount64(w)
		}
		return n
	}
	for i, w := range s.words {
		for w != 0 {
			b := bits.TrailingZeros64(w)
			n += s.weights[i*64+b]
			w &= w - 1
		}
	}
	return n
}

// Vertical maps every item to its occurrence set.
type Vertical struct {
	occ    []Occurrences
	weight int
}

// NewVertical builds the occurrence sets of every item of db.
func NewVertical(db *tract.Database, enc Encoding) *Vertical {
	tracts := db.Transactions()
	weights := make([]int, len(tracts))
	for i, t := range tracts {
		weights[i] = t.Weight
	}

	v := &Vertical{occ: make([]Occurrences, db.ItemCount()), weight: db.TotalWeight()}
	switch enc {
	case Bits:
		var bw []int
		if !db.Unweighted() {
			bw = weights
		}
		nw := (len(tracts) + 63) / 64
		sets := make([]*BitSet, db.ItemCount())
		for i := range sets {
			sets[i] = &BitSet{words: make([]uint64, nw), weights: bw}
		}
		for tid, t := range tracts {
			for _, it := range t.Items {
				sets[it].words[tid/64] |= 1 << (uint(tid) % 64)
				sets[it].supp += t.Weight
			}
		}
		for i, s := range sets {
			v.occ[i] = s
		}
	default:
		lists := make([]*TIDList, db.ItemCount())
		for i := range lists {
			lists[i] = &TIDList{tids: make([]int32, 0, db.Support(tract.Item(i))), weights: weights}
		}
		for tid, t := range tracts {
			for _, it := range t.Items {
				lists[it].tids = append(lists[it].tids, int32(tid))
				lists[it].supp += t.Weight
			}
		}
		for i, l := range lists {
			v.occ[i] = l
		}
	}
	return v
}

// Occurrences returns the occurrence set of item, or nil if the item does
// not occur in the represented transactions.
func (v *Vertical) Occurrences(item tract.Item) Occurrences {
	if int(item) < 0 || int(item) >= len(v.occ) {
		return nil
	}
	return v.occ[item]
}

// Support implements Representation.
func (v *Vertical) Support(items itemset.Set) int {
	if len(items) == 0 {
		return v.weight
	}
	acc := v.Occurrences(items[0])
	if acc == nil {
		return 0
	}
	for _, it := range items[1:] {
		o := v.Occurrences(it)
		if o == nil {
			return 0
		}
		acc = acc.Intersect(o)
		if acc.Support() == 0 {
			return 0
		}
	}
	return acc.Support()
}

// Project implements Representation.
func (v *Vertical) Project(item tract.Item) Representation {
	base := v.Occurrences(item)
	if base == nil {
		return &Vertical{occ: make([]Occurrences, len(v.occ))}
	}
	proj := &Vertical{occ: make([]Occurrences, len(v.occ)), weight: base.Support()}
	for i, o := range v.occ {
		if tract.Item(i) == item || o == nil {
			continue
		}
		proj.occ[i] = o.Intersect(base)
	}
	return proj
}

// Weight implements Representation.
func (v *Vertical) Weight() int {
	return v.weight
}
