package proc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"sort"
	"strconv"
)

// Kind is the shape of a type as far as traversal is concerned.
type Kind uint8

const (
	// KindVoid is memory of unknown type.
	KindVoid Kind = iota
	KindScalar
	KindPointer
	KindComposite
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindVoid:
		return "void"
	case KindScalar:
		return "scalar"
	case KindPointer:
		return "pointer"
	case KindComposite:
		return "composite"
	case KindArray:
		return "array"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Encoding describes how the bytes of a scalar are interpreted.
type Encoding uint8

const (
	EncodingSigned Encoding = iota
	EncodingUnsigned
	EncodingFloat
	EncodingBool
	EncodingChar
)

// A Type describes the layout of a value in target memory.
// Types are not necessarily canonical: compare them by name.
type Type struct {
	Name string
	Kind Kind
	Size int64

	// Fields only valid for a subset of kinds.
	Encoding Encoding // for kind == KindScalar
	Elem     *Type    // for kind == Kind{Pointer,Array}. Void for untyped pointers.
	Count    int64    // for kind == KindArray
	Fields   []Field  // for kind == KindComposite
}

// A Field represents a single member of a composite type.
// An empty Name marks an anonymous member.
type Field struct {
	Name   string
	Offset int64
	Type   *Type
}

func (t *Type) String() string {
	if t == nil {
		return "void"
	}
	return t.Name
}

// Field returns the member called name or nil.
func (t *Type) Field(name string) *Field {
	if t == nil || t.Kind != KindComposite || name == "" {
		return nil
	}
	for i := range t.Fields {
		if t.Fields[i].Name == name {
			return &t.Fields[i]
		}
	}
	return nil
}

// MemberNames returns the names of the members of a composite type, in
// declaration order. Anonymous members are returned as empty strings.
func (t *Type) MemberNames() []string {
	if t == nil || t.Kind != KindComposite {
		return nil
	}
	r := make([]string, len(t.Fields))
	for i := range t.Fields {
		r[i] = t.Fields[i].Name
	}
	return r
}

// Types is a registry of named types plus the derived pointer and array
// types built from them.
type Types struct {
	PtrSize   int64
	ByteOrder binary.ByteOrder

	named  map[string]*Type
	ptrs   map[*Type]*Type
	arrays map[arrayKey]*Type
	void   *Type
}

type arrayKey struct {
	elem  *Type
	count int64
}

// NewTypes returns a registry containing the builtin scalar types.
func NewTypes(ptrSize int64, order binary.ByteOrder) *Types {
	if ptrSize != 4 {
		ptrSize = 8
	}
	if order == nil {
		order = binary.LittleEndian
	}
	ts := &Types{
		PtrSize:   ptrSize,
		ByteOrder: order,
		named:     make(map[string]*Type),
		ptrs:      make(map[*Type]*Type),
		arrays:    make(map[arrayKey]*Type),
	}
	ts.void = &Type{Name: "void", Kind: KindVoid}
	ts.named["void"] = ts.void

	scalar := func(name string, size int64, enc Encoding) {
		ts.named[name] = &Type{Name: name, Kind: KindScalar, Size: size, Encoding: enc}
	}
	scalar("int8", 1, EncodingSigned)
	scalar("int16", 2, EncodingSigned)
	scalar("int32", 4, EncodingSigned)
	scalar("int64", 8, EncodingSigned)
	scalar("int", ptrSize, EncodingSigned)
	scalar("uint8", 1, EncodingUnsigned)
	scalar("byte", 1, EncodingUnsigned)
	scalar("uint16", 2, EncodingUnsigned)
	scalar("uint32", 4, EncodingUnsigned)
	scalar("uint64", 8, EncodingUnsigned)
	scalar("uint", ptrSize, EncodingUnsigned)
	scalar("uintptr", ptrSize, EncodingUnsigned)
	scalar("float32", 4, EncodingFloat)
	scalar("float64", 8, EncodingFloat)
	scalar("bool", 1, EncodingBool)
	scalar("char", 1, EncodingChar)
	return ts
}

// Void returns the type of untyped memory.
func (ts *Types) Void() *Type {
	return ts.void
}

// Lookup returns the type called name.
func (ts *Types) Lookup(name string) (*Type, bool) {
	t, ok := ts.named[name]
	return t, ok
}

// Names returns the sorted names of all registered types.
func (ts *Types) Names() []string {
	r := make([]string, 0, len(ts.named))
	for name := range ts.named {
		r = append(r, name)
	}
	sort.Strings(r)
	return r
}

// Declare registers an empty composite type called name so that other
// types can refer to it before its fields are known.
func (ts *Types) Declare(name string, size int64) (*Type, error) {
	if name == "" {
		return nil, errors.New("type declared without a name")
	}
	if _, exists := ts.named[name]; exists {
		return nil, fmt.Errorf("type %s declared twice", name)
	}
	t := &Type{Name: name, Kind: KindComposite, Size: size}
	ts.named[name] = t
	return t, nil
}

// PointerTo returns the pointer type with element t.
func (ts *Types) PointerTo(t *Type) *Type {
	if t == nil {
		t = ts.void
	}
	if p, ok := ts.ptrs[t]; ok {
		return p
	}
	p := &Type{Name: "*" + t.Name, Kind: KindPointer, Size: ts.PtrSize, Elem: t}
	ts.ptrs[t] = p
	return p
}

// ArrayOf returns the array type of count elements of type t.
func (ts *Types) ArrayOf(t *Type, count int64) *Type {
	k := arrayKey{t, count}
	if a, ok := ts.arrays[k]; ok {
		return a
	}
	a := &Type{Name: fmt.Sprintf("[%d]%s", count, t.Name), Kind: KindArray, Size: count * t.Size, Elem: t, Count: count}
	ts.arrays[k] = a
	return a
}

// Parse parses a type expression such as "*Node" or "[4]int32".
func (ts *Types) Parse(expr string) (*Type, error) {
	t, err := parser.ParseExpr(expr)
	if err != nil {
		return nil, fmt.Errorf("could not parse type %q: %v", expr, err)
	}
	return ts.parseAST(t)
}

func (ts *Types) parseAST(t ast.Expr) (*Type, error) {
	switch node := t.(type) {
	case *ast.Ident:
		if typ, ok := ts.named[node.Name]; ok {
			return typ, nil
		}
		return nil, fmt.Errorf("unknown type %s", node.Name)
	case *ast.ParenExpr:
		return ts.parseAST(node.X)
	case *ast.StarExpr:
		elem, err := ts.parseAST(node.X)
		if err != nil {
			return nil, err
		}
		return ts.PointerTo(elem), nil
	case *ast.ArrayType:
		lit, ok := node.Len.(*ast.BasicLit)
		if !ok || lit.Kind != token.INT {
			return nil, errors.New("array types need a constant length")
		}
		n, err := strconv.ParseInt(lit.Value, 0, 64)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid array length %s", lit.Value)
		}
		elem, err := ts.parseAST(node.Elt)
		if err != nil {
			return nil, err
		}
		return ts.ArrayOf(elem, n), nil
	}
	return nil, fmt.Errorf("expression %T is not a type", t)
}
