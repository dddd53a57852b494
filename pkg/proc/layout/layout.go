// Package layout reads type layout descriptions.
//
// A layout describes composite types as a list of members with their byte
// offsets, it stands in for the debug information of the target:
//
//	pointer-size: 8
//	byte-order: little
//	types:
//	  - name: Node
//	    size: 16
//	    fields:
//	      - {name: value, offset: 0, type: int64}
//	      - {name: next, offset: 8, type: "*Node"}
//
// Member types are written with Go syntax ("*Node", "[4]int32") and may
// refer to any type of the layout, regardless of declaration order.
package layout

import (
	"encoding/binary"
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/ioutil"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/go-delve/memviz/pkg/proc"
)

// File is a layout description.
type File struct {
	PointerSize int         `yaml:"pointer-size,omitempty"`
	ByteOrder   string      `yaml:"byte-order,omitempty"`
	Types       []TypeEntry `yaml:"types"`
}

// TypeEntry describes a composite type. If Size is zero it is computed
// from the end of the last member.
type TypeEntry struct {
	Name   string       `yaml:"name"`
	Size   int64        `yaml:"size,omitempty"`
	Fields []FieldEntry `yaml:"fields"`
}

// FieldEntry describes a member of a composite type.
type FieldEntry struct {
	Name   string `yaml:"name"`
	Offset int64  `yaml:"offset"`
	Type   string `yaml:"type"`
}

// Parse decodes a layout description.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("could not decode layout: %v", err)
	}
	return &f, nil
}

// LoadFile reads and decodes the layout description at path.
func LoadFile(path string) (*File, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", path, err)
	}
	return f, nil
}

// ParseByteOrder converts "little" or "big" to a byte order. The empty
// string is little endian.
func ParseByteOrder(name string) (binary.ByteOrder, error) {
	switch strings.ToLower(name) {
	case "", "little", "le":
		return binary.LittleEndian, nil
	case "big", "be":
		return binary.BigEndian, nil
	}
	return nil, fmt.Errorf("unknown byte order %q", name)
}

// NewTypes returns an empty registry with the pointer size and byte order
// of f.
func (f *File) NewTypes() (*proc.Types, error) {
	order, err := ParseByteOrder(f.ByteOrder)
	if err != nil {
		return nil, err
	}
	switch f.PointerSize {
	case 0, 4, 8:
	default:
		return nil, fmt.Errorf("unsupported pointer size %d", f.PointerSize)
	}
	return proc.NewTypes(int64(f.PointerSize), order), nil
}

// Define adds the types of f to ts.
//
// The sizes of the types without an explicit size are computed first, in
// the order in which they contain each other by value, so that arrays and
// members of a type declared later get their real size. A type that
// contains itself by value is an error.
func (f *File) Define(ts *proc.Types) error {
	declared := make([]*proc.Type, len(f.Types))
	for i, te := range f.Types {
		t, err := ts.Declare(te.Name, te.Size)
		if err != nil {
			return err
		}
		declared[i] = t
	}

	sz := &sizer{ts: ts, entries: make(map[string]*TypeEntry), sizes: make(map[string]int64), active: make(map[string]bool)}
	for i := range f.Types {
		sz.entries[f.Types[i].Name] = &f.Types[i]
	}
	for i, te := range f.Types {
		size, err := sz.size(te.Name)
		if err != nil {
			return err
		}
		declared[i].Size = size
	}

	for i, te := range f.Types {
		t := declared[i]
		t.Fields = make([]proc.Field, 0, len(te.Fields))
		for _, fe := range te.Fields {
			ft, err := ts.Parse(fe.Type)
			if err != nil {
				return fmt.Errorf("type %s, field %s: %v", te.Name, fe.Name, err)
			}
			if fe.Name != "" && t.Field(fe.Name) != nil {
				return fmt.Errorf("type %s: field %s declared twice", te.Name, fe.Name)
			}
			t.Fields = append(t.Fields, proc.Field{Name: fe.Name, Offset: fe.Offset, Type: ft})
			if end := fe.Offset + ft.Size; end > t.Size {
				return fmt.Errorf("type %s: fields extend past its size (%d > %d)", te.Name, end, t.Size)
			}
		}
	}
	return nil
}

// sizer computes the sizes of the types of a layout from their type
// expressions, without registering any derived type.
type sizer struct {
	ts      *proc.Types
	entries map[string]*TypeEntry
	sizes   map[string]int64
	active  map[string]bool
}

func (sz *sizer) size(name string) (int64, error) {
	te, ok := sz.entries[name]
	if !ok {
		t, ok := sz.ts.Lookup(name)
		if !ok {
			return 0, fmt.Errorf("unknown type %s", name)
		}
		return t.Size, nil
	}
	if size, ok := sz.sizes[name]; ok {
		return size, nil
	}
	if sz.active[name] {
		return 0, fmt.Errorf("type %s contains itself", name)
	}
	sz.active[name] = true
	defer delete(sz.active, name)

	var end int64
	for _, fe := range te.Fields {
		if fe.Offset < 0 {
			return 0, fmt.Errorf("type %s, field %s: negative offset", te.Name, fe.Name)
		}
		expr, err := parser.ParseExpr(fe.Type)
		if err != nil {
			return 0, fmt.Errorf("type %s, field %s: could not parse type %q: %v", te.Name, fe.Name, fe.Type, err)
		}
		fsize, err := sz.exprSize(expr)
		if err != nil {
			return 0, fmt.Errorf("type %s, field %s: %v", te.Name, fe.Name, err)
		}
		if e := fe.Offset + fsize; e > end {
			end = e
		}
	}
	size := te.Size
	if size == 0 {
		size = end
	}
	sz.sizes[name] = size
	return size, nil
}

func (sz *sizer) exprSize(expr ast.Expr) (int64, error) {
	switch node := expr.(type) {
	case *ast.Ident:
		return sz.size(node.Name)
	case *ast.ParenExpr:
		return sz.exprSize(node.X)
	case *ast.StarExpr:
		return sz.ts.PtrSize, nil
	case *ast.ArrayType:
		lit, ok := node.Len.(*ast.BasicLit)
		if !ok || lit.Kind != token.INT {
			return 0, errors.New("array types need a constant length")
		}
		n, err := strconv.ParseInt(lit.Value, 0, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid array length %s", lit.Value)
		}
		elem, err := sz.exprSize(node.Elt)
		if err != nil {
			return 0, err
		}
		return n * elem, nil
	}
	return 0, fmt.Errorf("expression %T is not a type", expr)
}
