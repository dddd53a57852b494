package api

import (
	"fmt"
	"sort"
)

// NodeKind distinguishes values that were read successfully from the
// markers a walker leaves where it stopped.
type NodeKind uint8

const (
	// NodeValue is a successfully read value.
	NodeValue NodeKind = iota
	// NodeNull is a nil pointer, the clean end of a branch.
	NodeNull
	// NodeCycle is an address that was already visited during the walk.
	NodeCycle
	// NodeError is memory that could not be read.
	NodeError
	// NodeBound marks where a depth or count bound stopped the walk.
	NodeBound
)

var nodeKindNames = [...]string{
	NodeValue: "value",
	NodeNull:  "null",
	NodeCycle: "cycle",
	NodeError: "error",
	NodeBound: "bound",
}

func (k NodeKind) String() string {
	if int(k) < len(nodeKindNames) {
		return nodeKindNames[k]
	}
	return fmt.Sprintf("NodeKind(%d)", uint8(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k NodeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *NodeKind) UnmarshalText(text []byte) error {
	for i, name := range nodeKindNames {
		if name == string(text) {
			*k = NodeKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown node kind %q", text)
}

// Address is a location in target memory. An address that is not Valid
// could not be resolved, it is distinct from nil (Raw == 0).
type Address struct {
	Raw   uint64 `json:"raw" yaml:"raw"`
	Valid bool   `json:"valid" yaml:"valid"`
}

func (a Address) String() string {
	switch {
	case !a.Valid:
		return "<invalid>"
	case a.Raw == 0:
		return "nil"
	}
	return fmt.Sprintf("%#x", a.Raw)
}

// Annotation keys.
const (
	// AnnotationEnd is set on the root of list and pointer chain walks, it
	// says how the walk ended (one of the End* constants).
	AnnotationEnd = "end"
	// AnnotationNodes is the number of nodes a list walk visited.
	AnnotationNodes = "nodes"
	// AnnotationPath is the branch path from the root of a tree walk, a
	// string of L and R.
	AnnotationPath = "path"
	// AnnotationType is the type of the value a node was built from when
	// the node itself is a marker.
	AnnotationType = "type"
	// AnnotationKey is set to KeyUnreadable on tree nodes whose key field
	// could not be read.
	AnnotationKey = "key"
	// AnnotationBound is set on NodeBound markers, one of the Bound*
	// constants.
	AnnotationBound = "bound"
	// AnnotationOmitted is the number of elements or slots a bound marker
	// stands for, if known.
	AnnotationOmitted = "omitted"
)

// Values of AnnotationEnd.
const (
	EndNull      = "null"
	EndCycle     = "cycle"
	EndInvalid   = "invalid"
	EndTruncated = "truncated"
	EndValue     = "value"
)

// Values of AnnotationBound.
const (
	BoundDepth    = "depth"
	BoundElements = "elements"
	BoundNodes    = "nodes"
	BoundBuckets  = "buckets"
)

// KeyUnreadable is the value of AnnotationKey for unreadable keys.
const KeyUnreadable = "unreadable"

// Node is the render model produced by a walk: a tree of labelled values
// and markers, independent of how it will be formatted.
type Node struct {
	Label       string            `json:"label" yaml:"label"`
	Kind        NodeKind          `json:"kind" yaml:"kind"`
	Addr        Address           `json:"addr" yaml:"addr"`
	Type        string            `json:"type,omitempty" yaml:"type,omitempty"`
	Value       string            `json:"value,omitempty" yaml:"value,omitempty"`
	Children    []*Node           `json:"children,omitempty" yaml:"children,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty" yaml:"annotations,omitempty"`
}

// Append adds children to n.
func (n *Node) Append(children ...*Node) {
	n.Children = append(n.Children, children...)
}

// Annotate sets annotation key of n to value.
func (n *Node) Annotate(key, value string) {
	if n.Annotations == nil {
		n.Annotations = make(map[string]string)
	}
	n.Annotations[key] = value
}

// Annotation returns the annotation called key, or the empty string.
func (n *Node) Annotation(key string) string {
	return n.Annotations[key]
}

// AnnotationKeys returns the annotation keys of n, sorted.
func (n *Node) AnnotationKeys() []string {
	keys := make([]string, 0, len(n.Annotations))
	for k := range n.Annotations {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Visit calls fn for n and all its descendants in pre-order, depth is 0 for
// n. If fn returns false the children of that node are skipped.
func (n *Node) Visit(fn func(n *Node, depth int) bool) {
	n.visit(fn, 0)
}

func (n *Node) visit(fn func(*Node, int) bool, depth int) {
	if !fn(n, depth) {
		return
	}
	for _, child := range n.Children {
		child.visit(fn, depth+1)
	}
}

// Depth returns the depth of the deepest node of n that is not a bound
// marker, n itself has depth 0.
func (n *Node) Depth() int {
	max := 0
	n.Visit(func(c *Node, depth int) bool {
		if c.Kind != NodeBound && depth > max {
			max = depth
		}
		return true
	})
	return max
}

// Count returns the number of nodes of kind k in n.
func (n *Node) Count(k NodeKind) int {
	r := 0
	n.Visit(func(c *Node, _ int) bool {
		if c.Kind == k {
			r++
		}
		return true
	})
	return r
}

// Find returns the first node, in pre-order, with the given label.
func (n *Node) Find(label string) *Node {
	var r *Node
	n.Visit(func(c *Node, _ int) bool {
		if r != nil {
			return false
		}
		if c.Label == label {
			r = c
			return false
		}
		return true
	})
	return r
}
