package proc

import (
	"errors"
	"fmt"
)

var (
	errNotAddressable = errors.New("value is not addressable")
	errNilDeref       = errors.New("nil pointer dereference")
)

// AccessError is returned when target memory can not be read.
type AccessError struct {
	Addr uint64
	Len  int
	Err  error
}

func (err *AccessError) Error() string {
	if err.Err == nil {
		return fmt.Sprintf("could not read %d bytes at %#x", err.Len, err.Addr)
	}
	return fmt.Sprintf("could not read %d bytes at %#x: %v", err.Len, err.Addr, err.Err)
}

func (err *AccessError) Unwrap() error { return err.Err }

// EvaluationError is returned when an expression can not be evaluated.
type EvaluationError struct {
	Expr string
	Err  error
}

func (err *EvaluationError) Error() string {
	return fmt.Sprintf("could not evaluate %q: %v", err.Expr, err.Err)
}

func (err *EvaluationError) Unwrap() error { return err.Err }

// DereferenceError is returned when a pointer can not be followed.
type DereferenceError struct {
	Addr Address
	Type *Type
	Err  error
}

func (err *DereferenceError) Error() string {
	return fmt.Sprintf("could not dereference %s at %s: %v", err.Type, err.Addr, err.Err)
}

func (err *DereferenceError) Unwrap() error { return err.Err }

// FieldError is returned when a member of a composite can not be accessed.
type FieldError struct {
	Type *Type
	Name string
	Err  error
}

func (err *FieldError) Error() string {
	return fmt.Sprintf("field %s of %s: %v", err.Name, err.Type, err.Err)
}

func (err *FieldError) Unwrap() error { return err.Err }

// IndexError is returned when an element of an array can not be accessed.
type IndexError struct {
	Type  *Type
	Index int64
	Err   error
}

func (err *IndexError) Error() string {
	return fmt.Sprintf("index %d of %s: %v", err.Index, err.Type, err.Err)
}

func (err *IndexError) Unwrap() error { return err.Err }
