package proc

import "fmt"

// An Address is a location in the inferior's address space together with
// whether it could be resolved at all.
// An invalid address is not the same thing as a nil pointer: nil is
// Valid with Raw == 0.
type Address struct {
	Raw   uint64
	Valid bool
	// Err is the reason the address could not be resolved, if Valid is
	// false. May be nil.
	Err error
}

// ValidAddress returns a resolved address.
func ValidAddress(raw uint64) Address {
	return Address{Raw: raw, Valid: true}
}

// InvalidAddress returns an unresolved address, err is the reason.
func InvalidAddress(err error) Address {
	return Address{Err: err}
}

// IsNull returns true if a is a resolved nil pointer.
func (a Address) IsNull() bool {
	return a.Valid && a.Raw == 0
}

// IsInvalid returns true if a could not be resolved.
func (a Address) IsInvalid() bool {
	return !a.Valid
}

// Add adds x to address a. Invalid addresses stay invalid.
func (a Address) Add(x int64) Address {
	if !a.Valid {
		return a
	}
	a.Raw += uint64(x)
	return a
}

func (a Address) String() string {
	switch {
	case !a.Valid:
		if a.Err != nil {
			return fmt.Sprintf("<invalid: %v>", a.Err)
		}
		return "<invalid>"
	case a.Raw == 0:
		return "nil"
	}
	return fmt.Sprintf("%#x", a.Raw)
}
