package walk

import (
	"fmt"

	"github.com/go-delve/memviz/pkg/proc"
	"github.com/go-delve/memviz/service/api"
)

// Struct walks the value v following its type: members of composites,
// elements of arrays (at most ArrayDisplayCap of them) and pointers, down
// to maxDepth levels below v.
//
// A pointer that was already followed during the walk is reported as
// "already visited" instead of being followed again. The target of a
// pointer is the only child of the pointer node, labelled "*".
func (w *Walker) Struct(v proc.Value, maxDepth int) *api.Node {
	n, _ := w.structWalk(v, maxDepth)
	return n
}

type structWalk struct {
	*Walker
	visited  *VisitSet
	maxDepth int
}

func (w *Walker) structWalk(v proc.Value, maxDepth int) (*api.Node, *VisitSet) {
	s := w.newStructWalk(maxDepth)
	if k := w.oracle.DescribeType(v).Kind; (k == proc.KindComposite || k == proc.KindArray) && v.Addr.Valid {
		s.visited.Insert(v.Addr.Raw)
	}
	n := s.walk("", v, 0)
	w.log.Debugf("struct at %s: %d pointers followed", v.Addr, s.visited.Size())
	return n, s.visited
}

func (w *Walker) newStructWalk(maxDepth int) *structWalk {
	return &structWalk{Walker: w, visited: NewVisitSet(), maxDepth: maxDepth}
}

func (s *structWalk) walk(label string, v proc.Value, depth int) *api.Node {
	if depth > s.maxDepth {
		return depthLeaf(label)
	}
	typ := s.oracle.DescribeType(v)
	switch typ.Kind {
	case proc.KindPointer:
		return s.pointer(label, v, depth)

	case proc.KindComposite:
		n := api.ConvertValue(label, v)
		for _, f := range typ.Fields {
			if f.Name == "" {
				continue
			}
			m, err := s.oracle.Member(v, f.Name)
			if err != nil {
				n.Append(errorLeaf(f.Name, v.Addr.Add(f.Offset), err))
				continue
			}
			n.Append(s.walk(f.Name, m, depth+1))
		}
		return n

	case proc.KindArray:
		n := api.ConvertValue(label, v)
		shown := typ.Count
		if shown > ArrayDisplayCap {
			shown = ArrayDisplayCap
		}
		for i := int64(0); i < shown; i++ {
			elabel := fmt.Sprintf("[%d]", i)
			e, err := s.oracle.Element(v, i)
			if err != nil {
				n.Append(errorLeaf(elabel, proc.Address{}, err))
				continue
			}
			n.Append(s.walk(elabel, e, depth+1))
		}
		if typ.Count > shown {
			n.Append(omittedLeaf(api.BoundElements, typ.Count-shown, "elements"))
		}
		return n

	case proc.KindVoid:
		n := api.ConvertValue(label, v)
		n.Type = typ.Name
		return n
	}
	return s.leaf(label, v)
}

func (s *structWalk) pointer(label string, v proc.Value, depth int) *api.Node {
	n := s.leaf(label, v)
	if n.Kind != api.NodeValue {
		return n
	}
	target, err := s.oracle.Dereference(v)
	switch {
	case err != nil:
		return errorLeaf(label, v.Addr, err)
	case target.Addr.IsNull():
		leaf := nullLeaf(label)
		leaf.Annotate(api.AnnotationType, n.Type)
		return leaf
	case s.visited.Contains(target.Addr.Raw):
		leaf := cycleLeaf(label, target.Addr, "already visited")
		leaf.Annotate(api.AnnotationType, n.Type)
		return leaf
	}
	if depth+1 > s.maxDepth {
		// only addresses that get rendered are marked as visited
		n.Append(depthLeaf("*"))
		return n
	}
	s.visited.Insert(target.Addr.Raw)
	n.Append(s.walk("*", target, depth+1))
	return n
}
