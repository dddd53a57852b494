package api

import (
	"github.com/go-delve/memviz/pkg/proc"
)

// ConvertAddress converts an address of the proc package to an API Address.
func ConvertAddress(a proc.Address) Address {
	return Address{Raw: a.Raw, Valid: a.Valid}
}

// ConvertType returns the name of t as shown in the render model.
func ConvertType(t *proc.Type) string {
	if t == nil || t.Kind == proc.KindVoid {
		return ""
	}
	return t.Name
}

// ConvertValue returns a node for v with the given label. The node has no
// value, callers fill it in.
func ConvertValue(label string, v proc.Value) *Node {
	return &Node{
		Label: label,
		Kind:  NodeValue,
		Addr:  ConvertAddress(v.Addr),
		Type:  ConvertType(v.Type),
	}
}
