package walk

import (
	"testing"

	"github.com/go-delve/memviz/pkg/proc"
	"github.com/go-delve/memviz/service/api"
)

func TestPointerChainNull(t *testing.T) {
	f := newFixture(t)
	n, visited := f.walker().pointerChain(f.value(0, "void"), 5, nil)
	if len(n.Children) != 1 || n.Children[0].Kind != api.NodeNull {
		t.Fatalf("expected a single nil leaf, got %v", n.MultilineString(""))
	}
	if visited.Size() != 0 {
		t.Errorf("%d addresses visited", visited.Size())
	}
	if end := n.Annotation(api.AnnotationEnd); end != api.EndNull {
		t.Errorf("end=%s", end)
	}
}

func TestPointerChainCycle(t *testing.T) {
	for p := 1; p <= 6; p++ {
		for maxDepth := p; maxDepth <= 8; maxDepth++ {
			f := newFixture(t)
			addrs := nodeAddrs(0x2000, p)
			for k, addr := range addrs {
				f.put(addr, addrs[(k+1)%p])
			}
			n := f.walker().PointerChain(f.value(addrs[0], "void"), maxDepth)

			if end := n.Annotation(api.AnnotationEnd); end != api.EndCycle {
				t.Fatalf("p=%d max=%d: end=%s\n%s", p, maxDepth, end, n.MultilineString(""))
			}
			if hops := childrenOfKind(n, api.NodeValue); hops != p {
				t.Errorf("p=%d max=%d: %d hops", p, maxDepth, hops)
			}
			last := lastChild(t, n)
			if last.Kind != api.NodeCycle || last.Addr.Raw != addrs[0] {
				t.Errorf("p=%d max=%d: last node %s", p, maxDepth, last.SinglelineString())
			}
		}
	}
}

func TestPointerChainBound(t *testing.T) {
	f := newFixture(t)
	addrs := nodeAddrs(0x2000, 10)
	for k, addr := range addrs {
		next := uint64(0)
		if k+1 < len(addrs) {
			next = addrs[k+1]
		}
		f.put(addr, next)
	}
	w := f.walker()

	n := w.PointerChain(f.value(addrs[0], "void"), 4)
	if hops := childrenOfKind(n, api.NodeValue); hops != 4 {
		t.Errorf("%d hops, expected 4", hops)
	}
	if last := lastChild(t, n); last.Kind != api.NodeBound {
		t.Errorf("last node %s", last.SinglelineString())
	}
	if end := n.Annotation(api.AnnotationEnd); end != api.EndTruncated {
		t.Errorf("end=%s", end)
	}

	n = w.PointerChain(f.value(addrs[0], "void"), 20)
	if hops := childrenOfKind(n, api.NodeValue); hops != 10 {
		t.Errorf("%d hops, expected 10", hops)
	}
	if end := n.Annotation(api.AnnotationEnd); end != api.EndNull {
		t.Errorf("end=%s", end)
	}

	n = w.PointerChain(f.value(addrs[0], "void"), 0)
	if len(n.Children) != 1 || n.Children[0].Kind != api.NodeBound || n.Depth() != 0 {
		t.Errorf("zero depth chain:\n%s", n.MultilineString(""))
	}
}

func TestPointerChainTyped(t *testing.T) {
	f := newFixture(t)
	f.put(0x3000, 42)
	f.put(0x3008, 0x3000)
	f.put(0x3010, 0x3008)

	n := f.walker().PointerChain(f.value(0x3010, "**int64"), 10)
	want := []struct {
		addr     uint64
		typ, val string
	}{
		{0x3010, "**int64", "0x3008"},
		{0x3008, "*int64", "0x3000"},
		{0x3000, "int64", "42"},
	}
	if len(n.Children) != len(want) {
		t.Fatalf("wrong number of hops:\n%s", n.MultilineString(""))
	}
	for i, w := range want {
		c := n.Children[i]
		if c.Addr.Raw != w.addr || c.Type != w.typ || c.Value != w.val {
			t.Errorf("hop %d: %s", i, c.SinglelineString())
		}
	}
	if end := n.Annotation(api.AnnotationEnd); end != api.EndValue {
		t.Errorf("end=%s", end)
	}

	// a pointer constant starts where it points
	start := proc.Immediate(f.typ("*int64"), 0x3000)
	n = f.walker().PointerChain(start, 10)
	if len(n.Children) != 1 || n.Children[0].Value != "42" {
		t.Errorf("chain from pointer constant:\n%s", n.MultilineString(""))
	}
}

func TestPointerChainInvalid(t *testing.T) {
	f := newFixture(t)
	f.put(0x2000, unmapped)

	n := f.walker().PointerChain(f.value(0x2000, "void"), 10)
	if len(n.Children) != 3 {
		t.Fatalf("expected two hops and an error:\n%s", n.MultilineString(""))
	}
	if c := n.Children[1]; c.Kind != api.NodeValue || c.Addr.Raw != unmapped {
		t.Errorf("second hop %s", c.SinglelineString())
	}
	if c := n.Children[2]; c.Kind != api.NodeError || c.Value == "" {
		t.Errorf("expected error leaf, got %s", c.SinglelineString())
	}
	if end := n.Annotation(api.AnnotationEnd); end != api.EndInvalid {
		t.Errorf("end=%s", end)
	}
}

func TestPointerChainOffsets(t *testing.T) {
	f := newFixture(t)
	f.put(0x4018, 0x5000)
	f.put(0x5008, 0x6000)

	n := f.walker().PointerChainOffsets(f.value(0x4000, "void"), []int64{0x18, 0x8})
	if len(n.Children) != 3 {
		t.Fatalf("wrong chain:\n%s", n.MultilineString(""))
	}
	if c := n.Children[0]; c.Value != "0x5000" || c.Annotation("offset") != "0x18" {
		t.Errorf("first hop %s", c.SinglelineString())
	}
	if c := n.Children[1]; c.Addr.Raw != 0x5000 || c.Value != "0x6000" {
		t.Errorf("second hop %s", c.SinglelineString())
	}
	if c := n.Children[2]; c.Kind != api.NodeBound {
		t.Errorf("expected bound marker, got %s", c.SinglelineString())
	}
}
