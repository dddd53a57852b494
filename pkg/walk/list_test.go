package walk

import (
	"strconv"
	"testing"

	"github.com/go-delve/memviz/service/api"
)

func TestLinkedListLengths(t *testing.T) {
	for n := 0; n <= 8; n++ {
		for maxNodes := 1; maxNodes <= 6; maxNodes++ {
			f := newFixture(t)
			addrs := nodeAddrs(0x2000, n)
			f.list(0, addrs...)
			head := uint64(0)
			if n > 0 {
				head = addrs[0]
			}
			f.put(0x1000, head)

			model, visited := f.walker().linkedList(f.value(0x1000, "*Node"), "next", []string{"value"}, maxNodes)

			want := n
			if want > maxNodes {
				want = maxNodes
			}
			if got := model.Annotation(api.AnnotationNodes); got != strconv.Itoa(want) {
				t.Errorf("n=%d max=%d: nodes=%s", n, maxNodes, got)
			}
			if got := childrenOfKind(model, api.NodeValue); got != want || visited.Size() != want {
				t.Errorf("n=%d max=%d: %d node children, %d visited", n, maxNodes, got, visited.Size())
			}
			truncated := model.Annotation(api.AnnotationEnd) == api.EndTruncated
			if truncated != (n > maxNodes) {
				t.Errorf("n=%d max=%d: end=%s", n, maxNodes, model.Annotation(api.AnnotationEnd))
			}
			if !truncated && model.Annotation(api.AnnotationEnd) != api.EndNull {
				t.Errorf("n=%d max=%d: end=%s", n, maxNodes, model.Annotation(api.AnnotationEnd))
			}
			for i, c := range model.Children[:want] {
				if v := c.Children[0]; v.Label != "value" || v.Value != strconv.Itoa(i+1) {
					t.Errorf("n=%d max=%d: node %d: %s", n, maxNodes, i, v.SinglelineString())
				}
			}
		}
	}
}

func TestLinkedListCycle(t *testing.T) {
	f := newFixture(t)
	addrs := nodeAddrs(0x2000, 3)
	f.list(addrs[0], addrs...) // A -> B -> C -> A

	model := f.walker().LinkedList(f.value(addrs[0], "Node"), "next", nil, 10)
	if got := model.Annotation(api.AnnotationNodes); got != "3" {
		t.Errorf("visited %s nodes, expected 3", got)
	}
	if end := model.Annotation(api.AnnotationEnd); end != api.EndCycle {
		t.Errorf("end=%s", end)
	}
	last := lastChild(t, model)
	if last.Kind != api.NodeCycle || last.Addr.Raw != addrs[0] {
		t.Errorf("expected cycle at %#x, got %s", addrs[0], last.SinglelineString())
	}
	if len(model.Children) != 4 {
		t.Errorf("%d children, expected three nodes and the cycle", len(model.Children))
	}
}

func TestLinkedListDegradedField(t *testing.T) {
	f := newFixture(t)
	addrs := nodeAddrs(0x2000, 2)
	f.list(0, addrs...)

	model := f.walker().LinkedList(f.value(addrs[0], "Node"), "next", []string{"missing", "value"}, 10)
	if got := model.Annotation(api.AnnotationNodes); got != "2" {
		t.Fatalf("visited %s nodes, expected 2", got)
	}
	for i, c := range model.Children[:2] {
		if c.Addr.Raw != addrs[i] || c.Type != "Node" {
			t.Errorf("node %d: %s", i, c.SinglelineString())
		}
		if len(c.Children) != 2 {
			t.Fatalf("node %d has %d fields", i, len(c.Children))
		}
		if m := c.Children[0]; m.Label != "missing" || m.Kind != api.NodeError {
			t.Errorf("node %d: expected error leaf for missing field, got %s", i, m.SinglelineString())
		}
		if v := c.Children[1]; v.Kind != api.NodeValue || v.Value != strconv.Itoa(i+1) {
			t.Errorf("node %d: value %s", i, v.SinglelineString())
		}
	}
	if end := model.Annotation(api.AnnotationEnd); end != api.EndNull {
		t.Errorf("end=%s", end)
	}
}

func TestLinkedListInvalidLink(t *testing.T) {
	f := newFixture(t)
	f.list(unmapped, 0x2000)

	model := f.walker().LinkedList(f.value(0x2000, "Node"), "next", []string{"value"}, 10)
	if end := model.Annotation(api.AnnotationEnd); end != api.EndInvalid {
		t.Fatalf("end=%s\n%s", end, model.MultilineString(""))
	}
	// the node at the unmapped address is visited, its fields are not
	// readable and its link can not be followed
	if got := model.Annotation(api.AnnotationNodes); got != "2" {
		t.Errorf("visited %s nodes, expected 2", got)
	}
	if c := model.Children[1].Children[0]; c.Kind != api.NodeError {
		t.Errorf("expected unreadable field, got %s", c.SinglelineString())
	}
	if c := lastChild(t, model); c.Kind != api.NodeError {
		t.Errorf("expected error leaf, got %s", c.SinglelineString())
	}
}

func TestLinkedListNullHead(t *testing.T) {
	f := newFixture(t)
	model := f.walker().LinkedList(f.value(0x1000, "*Node"), "next", nil, 10)
	if len(model.Children) != 1 || model.Children[0].Kind != api.NodeNull {
		t.Errorf("expected nil leaf:\n%s", model.MultilineString(""))
	}
	if got := model.Annotation(api.AnnotationNodes); got != "0" {
		t.Errorf("nodes=%s", got)
	}
}
