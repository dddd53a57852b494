package walk

import (
	"fmt"

	"github.com/go-delve/memviz/pkg/proc"
	"github.com/go-delve/memviz/service/api"
)

// HashMapSpec names the members of a chained hash table.
type HashMapSpec struct {
	// Buckets is an array of buckets or a pointer to the first one.
	Buckets string
	// Size is the number of entries.
	Size string
	// Capacity is the number of buckets.
	Capacity string
	// MaxDepth bounds the depth of the model, bucket subtrees start at
	// depth 1.
	MaxDepth int
}

// DefaultHashMapSpec returns the member names used when none are given.
func DefaultHashMapSpec() HashMapSpec {
	return HashMapSpec{Buckets: "buckets", Size: "size", Capacity: "capacity", MaxDepth: DefaultMaxDepth}
}

func (spec HashMapSpec) withDefaults() HashMapSpec {
	def := DefaultHashMapSpec()
	if spec.Buckets == "" {
		spec.Buckets = def.Buckets
	}
	if spec.Size == "" {
		spec.Size = def.Size
	}
	if spec.Capacity == "" {
		spec.Capacity = def.Capacity
	}
	if spec.MaxDepth <= 0 {
		spec.MaxDepth = def.MaxDepth
	}
	return spec
}

// HashMap walks the hash table v, showing at most maxBuckets non empty
// buckets as "bucket[i]" children walked like Struct does. Empty (nil)
// buckets are skipped, at most MaxBucketScan slots are scanned.
//
// The root is labelled "HashMap(size=N, capacity=M)", or just "HashMap"
// if either member can not be read.
func (w *Walker) HashMap(v proc.Value, spec HashMapSpec, maxBuckets int) *api.Node {
	n, _ := w.hashMap(v, spec, maxBuckets)
	return n
}

func (w *Walker) hashMap(v proc.Value, spec HashMapSpec, maxBuckets int) (*api.Node, *VisitSet) {
	spec = spec.withDefaults()
	if maxBuckets <= 0 {
		maxBuckets = DefaultMaxBuckets
	}
	s := w.newStructWalk(spec.MaxDepth)

	m := w.nodeOf(v)
	if m.Addr.IsNull() {
		root := api.ConvertValue("HashMap", v)
		root.Append(nullLeaf(""))
		return root, s.visited
	}
	size, serr := w.readInt(m, spec.Size)
	capacity, cerr := w.readInt(m, spec.Capacity)
	label := "HashMap"
	if serr == nil && cerr == nil {
		label = fmt.Sprintf("HashMap(size=%d, capacity=%d)", size, capacity)
	}
	root := api.ConvertValue(label, m)
	if m.Addr.IsInvalid() {
		root.Append(invalidLeaf("error", m.Addr))
		return root, s.visited
	}

	buckets, err := w.oracle.Member(m, spec.Buckets)
	if err != nil {
		root.Append(errorLeaf("error", proc.Address{}, err))
		return root, s.visited
	}
	if cerr != nil {
		root.Append(errorLeaf("error", proc.Address{}, cerr))
		return root, s.visited
	}

	limit := capacity
	if limit > MaxBucketScan {
		limit = MaxBucketScan
	}
	shown := 0
	i := int64(0)
scan:
	for ; i < limit; i++ {
		label := fmt.Sprintf("bucket[%d]", i)
		b, err := w.oracle.Element(buckets, i)
		if err != nil {
			root.Append(errorLeaf(label, proc.Address{}, err))
			break
		}
		if w.oracle.DescribeType(b).Kind == proc.KindPointer {
			target, err := w.oracle.Dereference(b)
			switch {
			case err != nil:
				root.Append(errorLeaf(label, b.Addr, err))
				break scan
			case target.Addr.IsNull():
				continue
			}
		}
		if shown >= maxBuckets {
			root.Append(omittedLeaf(api.BoundBuckets, capacity-i, "slots"))
			break
		}
		shown++
		root.Append(s.walk(label, b, 1))
	}
	if i == limit && limit < capacity {
		root.Append(omittedLeaf(api.BoundBuckets, capacity-limit, "slots"))
	}
	w.log.Debugf("hash map at %s: %d buckets shown, %d slots scanned", m.Addr, shown, i)
	return root, s.visited
}
