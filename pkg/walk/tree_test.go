package walk

import (
	"strconv"
	"testing"

	"github.com/go-delve/memviz/service/api"
)

// tree writes a Tree node at addr.
func (f *fixture) tree(addr uint64, key int64, left, right uint64) {
	f.put(addr, uint64(key))
	f.put(addr+8, left)
	f.put(addr+16, right)
}

// completeTree writes a complete tree of the given height at base, node i
// has children 2i+1 and 2i+2 and key i. Returns the address of the root.
func (f *fixture) completeTree(base uint64, height int) uint64 {
	n := (1 << uint(height+1)) - 1
	addr := func(i int) uint64 {
		if i >= n {
			return 0
		}
		return base + uint64(i)*0x20
	}
	for i := 0; i < n; i++ {
		f.tree(addr(i), int64(i), addr(2*i+1), addr(2*i+2))
	}
	return base
}

func TestBinaryTree(t *testing.T) {
	f := newFixture(t)
	//      5
	//     / \
	//    3   8
	//   /
	//  1
	f.tree(0x2000, 5, 0x2020, 0x2040)
	f.tree(0x2020, 3, 0x2060, 0)
	f.tree(0x2040, 8, 0, 0)
	f.tree(0x2060, 1, 0, 0)
	f.put(0x1000, 0x2000)

	model := f.walker().BinaryTree(f.value(0x1000, "*Tree"), "left", "right", 5, "key")
	if model.Label != "root" || model.Value != "5" || model.Addr.Raw != 0x2000 {
		t.Fatalf("bad root %s", model.SinglelineString())
	}
	checks := []struct {
		path, key string
	}{
		{"L", "3"},
		{"R", "8"},
		{"LL", "1"},
	}
	nodes := map[string]*api.Node{}
	model.Visit(func(n *api.Node, _ int) bool {
		if p := n.Annotation(api.AnnotationPath); p != "" {
			nodes[p] = n
		}
		return true
	})
	for _, c := range checks {
		n := nodes[c.path]
		if n == nil || n.Value != c.key || n.Label != c.path[len(c.path)-1:] {
			t.Errorf("node %s: %v", c.path, n)
		}
	}
	// 4 nodes, 5 nil children
	if got := model.Count(api.NodeNull); got != 5 {
		t.Errorf("%d nil leaves, expected 5", got)
	}
	if lr := nodes["L"].Children[1]; lr.Kind != api.NodeNull || lr.Label != "R" {
		t.Errorf("L.right: %s", lr.SinglelineString())
	}
}

func TestBinaryTreeDepthBound(t *testing.T) {
	f := newFixture(t)
	root := f.completeTree(0x2000, 4)
	w := f.walker()
	for maxDepth := 0; maxDepth <= 6; maxDepth++ {
		model := w.BinaryTree(f.value(root, "Tree"), "left", "right", maxDepth, "key")
		if d := model.Depth(); d > maxDepth {
			t.Errorf("max=%d: depth %d", maxDepth, d)
		}
		if maxDepth < 4 && model.Count(api.NodeBound) != 1<<uint(maxDepth+1) {
			t.Errorf("max=%d: %d bound markers", maxDepth, model.Count(api.NodeBound))
		}
		if maxDepth > 4 && model.Count(api.NodeBound) != 0 {
			t.Errorf("max=%d: unexpected bound markers", maxDepth)
		}
	}
}

func TestBinaryTreeAnomaly(t *testing.T) {
	f := newFixture(t)
	f.tree(0x2000, 1, 0x2020, 0)
	f.tree(0x2020, 2, 0, 0x2000) // back edge to the root

	model := f.walker().BinaryTree(f.value(0x2000, "Tree"), "left", "right", 10, "key")
	if got := model.Count(api.NodeCycle); got != 1 {
		t.Fatalf("%d anomalies:\n%s", got, model.MultilineString(""))
	}
	lr := model.Children[0].Children[1]
	if lr.Kind != api.NodeCycle || lr.Addr.Raw != 0x2000 || lr.Value != "structural anomaly" {
		t.Errorf("L.right: %s", lr.SinglelineString())
	}
}

func TestBinaryTreeDegraded(t *testing.T) {
	f := newFixture(t)
	f.tree(0x2000, 1, unmapped, 0)

	model := f.walker().BinaryTree(f.value(0x2000, "Tree"), "left", "right", 3, "nokey")
	if model.Annotation(api.AnnotationKey) != api.KeyUnreadable || model.Value != "" {
		t.Errorf("root with unreadable key: %s", model.SinglelineString())
	}
	if model.Addr.Raw != 0x2000 {
		t.Errorf("root address %s", model.Addr)
	}
	// the left child is at an unmapped address: its key and its children
	// can not be read, the right child of the root is still walked
	l := model.Children[0]
	if l.Addr.Raw != unmapped || l.Annotation(api.AnnotationKey) != api.KeyUnreadable {
		t.Errorf("left: %s", l.SinglelineString())
	}
	for _, c := range l.Children {
		if c.Kind != api.NodeError {
			t.Errorf("child of unmapped node: %s", c.SinglelineString())
		}
	}
	if r := model.Children[1]; r.Kind != api.NodeNull {
		t.Errorf("right: %s", r.SinglelineString())
	}
}

func TestBinaryTreeKeys(t *testing.T) {
	f := newFixture(t)
	root := f.completeTree(0x2000, 2)
	model := f.walker().BinaryTree(f.value(root, "Tree"), "left", "right", 2, "key")
	var keys []string
	model.Visit(func(n *api.Node, _ int) bool {
		if n.Kind == api.NodeValue {
			keys = append(keys, n.Value)
		}
		return true
	})
	// pre-order
	want := []int{0, 1, 3, 4, 2, 5, 6}
	if len(keys) != len(want) {
		t.Fatalf("keys %v", keys)
	}
	for i := range want {
		if keys[i] != strconv.Itoa(want[i]) {
			t.Errorf("keys %v, expected pre-order %v", keys, want)
			break
		}
	}
}
