package proc

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/go-delve/memviz/pkg/logflags"
)

// Symbol is a named location in target memory.
type Symbol struct {
	Name string
	Addr uint64
	Type *Type
}

// Target is an Oracle over a MemoryReader whose types are described by a
// Types registry.
type Target struct {
	mem     MemoryReader
	types   *Types
	symbols map[string]Symbol

	log logflags.Logger
}

var _ Oracle = (*Target)(nil)

// NewTarget returns a new Target. Symbols with a nil type are untyped.
func NewTarget(mem MemoryReader, types *Types, symbols []Symbol) *Target {
	t := &Target{
		mem:     mem,
		types:   types,
		symbols: make(map[string]Symbol, len(symbols)),
		log:     logflags.OracleLogger(),
	}
	for _, sym := range symbols {
		if sym.Type == nil {
			sym.Type = types.Void()
		}
		t.symbols[sym.Name] = sym
	}
	return t
}

// Session returns a view of t whose memory reads go through a fresh page
// cache. Sessions are meant to last for a single command, the cache is
// discarded with them.
func (t *Target) Session() *Target {
	r := *t
	r.mem = cacheMemory(t.mem)
	return &r
}

// Types returns the type registry of t.
func (t *Target) Types() *Types {
	return t.types
}

// Symbols returns all symbols sorted by name.
func (t *Target) Symbols() []Symbol {
	r := make([]Symbol, 0, len(t.symbols))
	for _, sym := range t.symbols {
		r = append(r, sym)
	}
	sort.Slice(r, func(i, j int) bool { return r[i].Name < r[j].Name })
	return r
}

// ReadBytes implements Oracle.
func (t *Target) ReadBytes(addr uint64, n int) ([]byte, error) {
	if n < 0 {
		return nil, &AccessError{Addr: addr, Len: n, Err: errors.New("negative length")}
	}
	buf := make([]byte, n)
	if n == 0 {
		return buf, nil
	}
	read, err := t.mem.ReadMemory(buf, addr)
	if err == nil && read != n {
		err = fmt.Errorf("short read (%d bytes)", read)
	}
	if err != nil {
		var aerr *AccessError
		if errors.As(err, &aerr) {
			return nil, aerr
		}
		return nil, &AccessError{Addr: addr, Len: n, Err: err}
	}
	return buf, nil
}

func (t *Target) readUint(addr uint64, size int64) (uint64, error) {
	buf, err := t.ReadBytes(addr, int(size))
	if err != nil {
		return 0, err
	}
	switch size {
	case 1:
		return uint64(buf[0]), nil
	case 2:
		return uint64(t.types.ByteOrder.Uint16(buf)), nil
	case 4:
		return uint64(t.types.ByteOrder.Uint32(buf)), nil
	case 8:
		return t.types.ByteOrder.Uint64(buf), nil
	}
	return 0, fmt.Errorf("unsupported integer size %d", size)
}

// pointerValue returns the address a pointer value holds.
func (t *Target) pointerValue(v Value) (uint64, error) {
	if v.imm {
		return v.immVal, nil
	}
	if v.Addr.IsInvalid() {
		if v.Addr.Err != nil {
			return 0, v.Addr.Err
		}
		return 0, errors.New("invalid address")
	}
	return t.readUint(v.Addr.Raw, t.types.PtrSize)
}

// DescribeType implements Oracle.
func (t *Target) DescribeType(v Value) *Type {
	if v.Type == nil {
		return t.types.Void()
	}
	return v.Type
}

// Dereference implements Oracle.
func (t *Target) Dereference(v Value) (Value, error) {
	typ := t.DescribeType(v)
	var elem *Type
	switch typ.Kind {
	case KindPointer:
		elem = typ.Elem
	case KindVoid:
		elem = t.types.Void()
	default:
		return Value{}, &DereferenceError{Addr: v.Addr, Type: typ, Err: errors.New("not a pointer")}
	}
	if elem == nil {
		elem = t.types.Void()
	}
	raw, err := t.pointerValue(v)
	if err != nil {
		t.log.Debugf("dereference of %s at %s failed: %v", typ, v.Addr, err)
		return Value{}, &DereferenceError{Addr: v.Addr, Type: typ, Err: err}
	}
	return Value{Addr: ValidAddress(raw), Type: elem}, nil
}

// Member implements Oracle.
func (t *Target) Member(v Value, name string) (Value, error) {
	typ := t.DescribeType(v)
	if typ.Kind == KindPointer && typ.Elem != nil && typ.Elem.Kind == KindComposite {
		pv, err := t.Dereference(v)
		if err != nil {
			return Value{}, &FieldError{Type: typ, Name: name, Err: err}
		}
		if pv.Addr.IsNull() {
			return Value{}, &FieldError{Type: typ, Name: name, Err: errNilDeref}
		}
		v, typ = pv, pv.Type
	}
	if typ.Kind != KindComposite {
		return Value{}, &FieldError{Type: typ, Name: name, Err: fmt.Errorf("%s is not a composite type", typ.Kind)}
	}
	f := typ.Field(name)
	if f == nil {
		return Value{}, &FieldError{Type: typ, Name: name, Err: fmt.Errorf("%s has no member %s", typ, name)}
	}
	if v.Addr.IsInvalid() {
		return Value{}, &FieldError{Type: typ, Name: name, Err: v.Addr.Err}
	}
	return Value{Addr: v.Addr.Add(f.Offset), Type: f.Type}, nil
}

// Element implements Oracle.
func (t *Target) Element(v Value, i int64) (Value, error) {
	typ := t.DescribeType(v)
	switch typ.Kind {
	case KindArray:
		if i < 0 || i >= typ.Count {
			return Value{}, &IndexError{Type: typ, Index: i, Err: fmt.Errorf("index out of bounds [0, %d)", typ.Count)}
		}
		if v.Addr.IsInvalid() {
			return Value{}, &IndexError{Type: typ, Index: i, Err: v.Addr.Err}
		}
		return Value{Addr: v.Addr.Add(i * typ.Elem.Size), Type: typ.Elem}, nil
	case KindPointer:
		if typ.Elem == nil || typ.Elem.Kind == KindVoid || typ.Elem.Size <= 0 {
			return Value{}, &IndexError{Type: typ, Index: i, Err: errors.New("can not index a pointer to untyped memory")}
		}
		pv, err := t.Dereference(v)
		if err != nil {
			return Value{}, &IndexError{Type: typ, Index: i, Err: err}
		}
		if pv.Addr.IsNull() {
			return Value{}, &IndexError{Type: typ, Index: i, Err: errNilDeref}
		}
		return Value{Addr: pv.Addr.Add(i * typ.Elem.Size), Type: typ.Elem}, nil
	}
	return Value{}, &IndexError{Type: typ, Index: i, Err: fmt.Errorf("%s is not an array", typ)}
}

// FormatScalar implements Oracle.
func (t *Target) FormatScalar(v Value) (string, error) {
	typ := t.DescribeType(v)
	switch typ.Kind {
	case KindPointer:
		raw, err := t.pointerValue(v)
		if err != nil {
			return "", err
		}
		if raw == 0 {
			return "nil", nil
		}
		return fmt.Sprintf("%#x", raw), nil
	case KindScalar:
		// handled below
	default:
		return "", fmt.Errorf("%s is not a scalar type", typ)
	}
	if v.Addr.IsInvalid() {
		return "", v.Addr.Err
	}
	n, err := t.readUint(v.Addr.Raw, typ.Size)
	if err != nil {
		return "", err
	}
	switch typ.Encoding {
	case EncodingSigned:
		shift := 64 - 8*uint(typ.Size)
		return strconv.FormatInt(int64(n<<shift)>>shift, 10), nil
	case EncodingUnsigned:
		return strconv.FormatUint(n, 10), nil
	case EncodingFloat:
		if typ.Size == 4 {
			return strconv.FormatFloat(float64(math.Float32frombits(uint32(n))), 'g', -1, 32), nil
		}
		return strconv.FormatFloat(math.Float64frombits(n), 'g', -1, 64), nil
	case EncodingBool:
		return strconv.FormatBool(n != 0), nil
	case EncodingChar:
		return strconv.QuoteRune(rune(n)), nil
	}
	return "", fmt.Errorf("unknown encoding for %s", typ)
}
