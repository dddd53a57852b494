package walk

import (
	"github.com/go-delve/memviz/pkg/proc"
	"github.com/go-delve/memviz/service/api"
)

// BinaryTree walks the binary tree rooted at root in pre-order, following
// the members left and right of each node, down to maxDepth levels below
// the root. Root can be a node or a pointer to one.
//
// Nodes are labelled "root", "L" or "R" and carry their path from the root
// in the AnnotationPath annotation. If key is not empty the value of that
// member is the value of the node, when it can not be read the node gets
// an AnnotationKey annotation instead.
//
// Nil and unreadable children are explicit leaves. Trees are expected to
// be acyclic: a node reached twice is reported as a structural anomaly
// instead of being walked again.
func (w *Walker) BinaryTree(root proc.Value, left, right string, maxDepth int, key string) *api.Node {
	n, _ := w.binaryTree(root, left, right, maxDepth, key)
	return n
}

type treeWalk struct {
	*Walker
	visited     *VisitSet
	left, right string
	key         string
	maxDepth    int
	nodes       int
}

func (w *Walker) binaryTree(root proc.Value, left, right string, maxDepth int, key string) (*api.Node, *VisitSet) {
	t := &treeWalk{Walker: w, visited: NewVisitSet(), left: left, right: right, key: key, maxDepth: maxDepth}
	n := t.node("root", "", w.nodeOf(root), 0)
	w.log.Debugf("tree at %s: %d nodes", root.Addr, t.nodes)
	return n, t.visited
}

func (t *treeWalk) node(label, path string, v proc.Value, depth int) *api.Node {
	if depth > t.maxDepth {
		return depthLeaf(label)
	}
	switch {
	case v.Addr.IsInvalid():
		return invalidLeaf(label, v.Addr)
	case v.Addr.IsNull():
		return nullLeaf(label)
	case t.visited.Contains(v.Addr.Raw):
		return cycleLeaf(label, v.Addr, "structural anomaly")
	}
	t.visited.Insert(v.Addr.Raw)
	t.nodes++

	n := api.ConvertValue(label, v)
	if path != "" {
		n.Annotate(api.AnnotationPath, path)
	}
	if t.key != "" {
		if kv, err := t.oracle.Member(v, t.key); err == nil {
			if s, err := t.oracle.FormatScalar(kv); err == nil {
				n.Value = s
			} else {
				n.Annotate(api.AnnotationKey, api.KeyUnreadable)
			}
		} else {
			n.Annotate(api.AnnotationKey, api.KeyUnreadable)
		}
	}

	n.Append(t.node("L", path+"L", t.link(v, t.left), depth+1))
	n.Append(t.node("R", path+"R", t.link(v, t.right), depth+1))
	return n
}
