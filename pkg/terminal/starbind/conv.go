package starbind

import (
	"fmt"

	"go.starlark.net/starlark"

	"github.com/go-delve/memviz/pkg/proc"
	"github.com/go-delve/memviz/service/api"
)

// Keys of the dictionaries used to represent nodes of a model.
const (
	nodeLabelKey       = "label"
	nodeKindKey        = "kind"
	nodeAddrKey        = "addr"
	nodeValidKey       = "valid"
	nodeTypeKey        = "type"
	nodeValueKey       = "value"
	nodeChildrenKey    = "children"
	nodeAnnotationsKey = "annotations"
)

// nodeToStarlarkValue converts a node of a model, and all its descendants,
// to a starlark dictionary. Addresses are integers, kinds are strings.
func nodeToStarlarkValue(n *api.Node) *starlark.Dict {
	d := starlark.NewDict(8)
	set := func(k string, v starlark.Value) {
		_ = d.SetKey(starlark.String(k), v)
	}
	set(nodeLabelKey, starlark.String(n.Label))
	set(nodeKindKey, starlark.String(n.Kind.String()))
	set(nodeAddrKey, starlark.MakeUint64(n.Addr.Raw))
	set(nodeValidKey, starlark.Bool(n.Addr.Valid))
	set(nodeTypeKey, starlark.String(n.Type))
	set(nodeValueKey, starlark.String(n.Value))

	annotations := starlark.NewDict(len(n.Annotations))
	for _, k := range n.AnnotationKeys() {
		_ = annotations.SetKey(starlark.String(k), starlark.String(n.Annotations[k]))
	}
	set(nodeAnnotationsKey, annotations)

	children := make([]starlark.Value, len(n.Children))
	for i, child := range n.Children {
		children[i] = nodeToStarlarkValue(child)
	}
	set(nodeChildrenKey, starlark.NewList(children))
	return d
}

// starlarkValueToNode converts a dictionary built by nodeToStarlarkValue,
// possibly modified by a script, back to a node. Missing keys take their
// zero value, path is used in error messages.
func starlarkValueToNode(v starlark.Value, path string) (*api.Node, error) {
	d, ok := v.(*starlark.Dict)
	if !ok {
		return nil, fmt.Errorf("%s: expected dict, got %s", path, v.Type())
	}
	n := &api.Node{Addr: api.Address{Valid: true}}

	for _, item := range d.Items() {
		k, ok := item[0].(starlark.String)
		if !ok {
			return nil, fmt.Errorf("%s: key %s is not a string", path, item[0])
		}
		val := item[1]
		var err error
		switch string(k) {
		case nodeLabelKey:
			n.Label, err = unmarshalString(val)
		case nodeTypeKey:
			n.Type, err = unmarshalString(val)
		case nodeValueKey:
			n.Value, err = unmarshalString(val)
		case nodeKindKey:
			var s string
			s, err = unmarshalString(val)
			if err == nil {
				err = n.Kind.UnmarshalText([]byte(s))
			}
		case nodeAddrKey:
			if val != starlark.None {
				err = starlark.AsInt(val, &n.Addr.Raw)
			}
		case nodeValidKey:
			b, ok := val.(starlark.Bool)
			if !ok {
				err = fmt.Errorf("expected bool, got %s", val.Type())
			}
			n.Addr.Valid = bool(b)
		case nodeAnnotationsKey:
			n.Annotations, err = unmarshalAnnotations(val)
		case nodeChildrenKey:
			it, ok := val.(starlark.Iterable)
			if !ok {
				err = fmt.Errorf("expected list, got %s", val.Type())
				break
			}
			iter := it.Iterate()
			var child starlark.Value
			for i := 0; iter.Next(&child); i++ {
				c, cerr := starlarkValueToNode(child, fmt.Sprintf("%s.children[%d]", path, i))
				if cerr != nil {
					iter.Done()
					return nil, cerr
				}
				n.Append(c)
			}
			iter.Done()
		default:
			err = fmt.Errorf("unknown key")
		}
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %v", path, k, err)
		}
	}
	return n, nil
}

func unmarshalString(v starlark.Value) (string, error) {
	s, ok := starlark.AsString(v)
	if !ok {
		return "", fmt.Errorf("expected string, got %s", v.Type())
	}
	return s, nil
}

func unmarshalAnnotations(v starlark.Value) (map[string]string, error) {
	d, ok := v.(*starlark.Dict)
	if !ok {
		return nil, fmt.Errorf("expected dict, got %s", v.Type())
	}
	if d.Len() == 0 {
		return nil, nil
	}
	r := make(map[string]string, d.Len())
	for _, item := range d.Items() {
		k, err := unmarshalString(item[0])
		if err != nil {
			return nil, err
		}
		// Annotations are strings in the model, numbers written by scripts
		// are accepted.
		if s, ok := starlark.AsString(item[1]); ok {
			r[k] = s
		} else {
			r[k] = item[1].String()
		}
	}
	return r, nil
}

// valueToStarlarkValue converts v to a dictionary with keys addr, type and
// value. Addr is None if the value does not live in target memory, value
// is None for values that are not scalars or pointers.
func valueToStarlarkValue(o proc.Oracle, v proc.Value) *starlark.Dict {
	d := starlark.NewDict(3)
	var addr starlark.Value = starlark.None
	if v.Addr.Valid {
		addr = starlark.MakeUint64(v.Addr.Raw)
	}
	_ = d.SetKey(starlark.String(nodeAddrKey), addr)
	_ = d.SetKey(starlark.String(nodeTypeKey), starlark.String(o.DescribeType(v).Name))
	var val starlark.Value = starlark.None
	if s, err := o.FormatScalar(v); err == nil {
		val = starlark.String(s)
	}
	_ = d.SetKey(starlark.String(nodeValueKey), val)
	return d
}

// stringList converts a starlark list of strings, nil is an empty list.
func stringList(l *starlark.List) ([]string, error) {
	if l == nil {
		return nil, nil
	}
	r := make([]string, l.Len())
	for i := range r {
		s, ok := starlark.AsString(l.Index(i))
		if !ok {
			return nil, fmt.Errorf("element %d of the list is not a string", i)
		}
		r[i] = s
	}
	return r, nil
}
