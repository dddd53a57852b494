package walk

import (
	"fmt"

	"github.com/go-delve/memviz/pkg/proc"
	"github.com/go-delve/memviz/service/api"
)

// PointerChain follows the chain of pointers that starts at start for at
// most maxDepth hops. Each hop is a child of the returned node, the walk
// ends at a nil pointer, at an address visited before, at memory that can
// not be read, when a typed chain reaches a value that is not a pointer, or
// when maxDepth hops have been followed. The reason is recorded in the
// AnnotationEnd annotation of the root.
//
// Untyped memory is followed as a chain of pointer sized words.
func (w *Walker) PointerChain(start proc.Value, maxDepth int) *api.Node {
	n, _ := w.pointerChain(start, maxDepth, nil)
	return n
}

// PointerChainOffsets is like PointerChain but adds offsets[i] to the
// address of the i-th hop before following it, as when reading a value
// through a static chain of structure members. The chain has at most
// len(offsets) hops.
func (w *Walker) PointerChainOffsets(start proc.Value, offsets []int64) *api.Node {
	n, _ := w.pointerChain(start, len(offsets), offsets)
	return n
}

func (w *Walker) pointerChain(start proc.Value, maxDepth int, offsets []int64) (*api.Node, *VisitSet) {
	visited := NewVisitSet()
	root := api.ConvertValue("ptrchain", start)

	cur := start
	if start.IsImmediate() {
		// pointer constants do not live in memory, the chain starts where
		// they point
		cur = w.deref(start)
	}

	end := api.EndTruncated
	hops := 0
	for i := 0; ; i++ {
		label := fmt.Sprintf("[%d]", i)
		var stop *api.Node
		switch {
		case maxDepth <= 0:
			stop = depthLeaf(label)
		case cur.Addr.IsInvalid():
			stop = invalidLeaf(label, cur.Addr)
			end = api.EndInvalid
		case cur.Addr.IsNull():
			stop = nullLeaf(label)
			end = api.EndNull
		case visited.Contains(cur.Addr.Raw):
			stop = cycleLeaf(label, cur.Addr, "cycle detected")
			end = api.EndCycle
		case i >= maxDepth:
			stop = depthLeaf(label)
		}
		if stop != nil {
			root.Append(stop)
			break
		}

		visited.Insert(cur.Addr.Raw)
		hops++
		hop := api.ConvertValue(label, cur)
		root.Append(hop)

		typ := w.oracle.DescribeType(cur)
		if typ.Kind != proc.KindPointer && typ.Kind != proc.KindVoid {
			if leaf := w.leaf(label, cur); leaf.Kind == api.NodeValue {
				hop.Value = leaf.Value
			} else {
				root.Children[len(root.Children)-1] = leaf
			}
			end = api.EndValue
			break
		}

		at := cur
		if i < len(offsets) {
			at.Addr = at.Addr.Add(offsets[i])
			hop.Annotate("offset", fmt.Sprintf("%#x", offsets[i]))
		}
		cur = w.deref(at)
		if cur.Addr.Valid {
			hop.Value = cur.Addr.String()
		}
	}

	root.Annotate(api.AnnotationEnd, end)
	w.log.Debugf("pointer chain at %s: %d hops, end=%s", start.Addr, hops, end)
	return root, visited
}
