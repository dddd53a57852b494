package proc

// Value is a typed value in target memory.
type Value struct {
	// Addr is where the value lives. Pointer constants produced by the
	// evaluator (for example "&x" or "(*T)(0x1000)") do not live in target
	// memory, see IsImmediate.
	Addr Address
	Type *Type

	imm    bool
	immVal uint64
}

// Immediate returns a pointer constant of type t holding raw.
func Immediate(t *Type, raw uint64) Value {
	return Value{Addr: InvalidAddress(errNotAddressable), Type: t, imm: true, immVal: raw}
}

// IsImmediate returns true if v is a pointer constant that does not live in
// target memory.
func (v Value) IsImmediate() bool {
	return v.imm
}

// Oracle is the capability the walkers need over target memory: reads,
// dereferences, member and element access and type description.
// Every method is synchronous and read-only.
type Oracle interface {
	// ReadBytes reads n bytes at addr. Fails with *AccessError.
	ReadBytes(addr uint64, n int) ([]byte, error)
	// Evaluate resolves an expression to a value. Fails with
	// *EvaluationError.
	Evaluate(expr string) (Value, error)
	// Dereference follows a pointer. Dereferencing untyped memory reads a
	// pointer sized word and returns untyped memory at that address.
	// Following a nil pointer is not an error, the result has a nil
	// address. Fails with *DereferenceError.
	Dereference(v Value) (Value, error)
	// Member returns the member called name of a composite value, a
	// pointer to a composite is followed once. Fails with *FieldError.
	Member(v Value, name string) (Value, error)
	// Element returns the i-th element of an array, or of the memory a
	// pointer points to. Fails with *IndexError.
	Element(v Value, i int64) (Value, error)
	// DescribeType returns the type of v, never nil.
	DescribeType(v Value) *Type
	// FormatScalar reads and formats a scalar or pointer value.
	FormatScalar(v Value) (string, error)
}
