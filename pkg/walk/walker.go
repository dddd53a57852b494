// Package walk implements bounded traversals of data structures in target
// memory: pointer chains, singly linked lists, binary trees, hash tables and
// arbitrary nested records and arrays.
//
// A walk reads memory through a proc.Oracle and produces an *api.Node. Only
// a start that can not be resolved is an error, everything that goes wrong
// during the walk (unreadable memory, cycles, bounds) is recorded in the
// model as a marker node and the walk carries on with the other branches.
//
// Walks are synchronous and keep no state between calls: every call uses a
// fresh VisitSet. Termination is guaranteed by the depth and count bounds
// alone.
package walk

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/go-delve/memviz/pkg/logflags"
	"github.com/go-delve/memviz/pkg/proc"
	"github.com/go-delve/memviz/service/api"
)

const (
	// ArrayDisplayCap is the number of elements shown for an array, the
	// rest are summarized by a single marker.
	ArrayDisplayCap = 10
	// MaxBucketScan is the maximum number of hash table slots scanned.
	MaxBucketScan = 4096
)

// Default bounds.
const (
	DefaultMaxDepth   = 5
	DefaultMaxNodes   = 20
	DefaultMaxBuckets = 20
)

// Config holds the bounds used by the command surfaces.
type Config struct {
	MaxDepth   int
	MaxNodes   int
	MaxBuckets int
}

// DefaultConfig returns the default bounds.
func DefaultConfig() Config {
	return Config{MaxDepth: DefaultMaxDepth, MaxNodes: DefaultMaxNodes, MaxBuckets: DefaultMaxBuckets}
}

// WithDefaults returns c with zero or negative fields replaced by their
// defaults.
func (c Config) WithDefaults() Config {
	if c.MaxDepth <= 0 {
		c.MaxDepth = DefaultMaxDepth
	}
	if c.MaxNodes <= 0 {
		c.MaxNodes = DefaultMaxNodes
	}
	if c.MaxBuckets <= 0 {
		c.MaxBuckets = DefaultMaxBuckets
	}
	return c
}

// StartError is returned when the start of a walk can not be resolved.
type StartError struct {
	Expr string
	Err  error
}

func (err *StartError) Error() string {
	return fmt.Sprintf("could not resolve %s: %v", err.Expr, err.Err)
}

func (err *StartError) Unwrap() error { return err.Err }

// Walker walks data structures in the memory of a target.
type Walker struct {
	oracle proc.Oracle
	log    logflags.Logger
}

// New returns a Walker reading memory through oracle.
func New(oracle proc.Oracle) *Walker {
	return &Walker{oracle: oracle, log: logflags.WalkerLogger()}
}

// Oracle returns the oracle of w.
func (w *Walker) Oracle() proc.Oracle {
	return w.oracle
}

// Resolve evaluates the start of a walk.
func (w *Walker) Resolve(expr string) (proc.Value, error) {
	v, err := w.oracle.Evaluate(expr)
	if err != nil {
		return proc.Value{}, &StartError{Expr: expr, Err: err}
	}
	if v.Addr.IsInvalid() && !v.IsImmediate() {
		err := v.Addr.Err
		if err == nil {
			err = errors.New("invalid address")
		}
		return proc.Value{}, &StartError{Expr: expr, Err: err}
	}
	return v, nil
}

func invalidValue(err error) proc.Value {
	return proc.Value{Addr: proc.InvalidAddress(err)}
}

// deref follows the pointer v, failures are returned as an invalid value.
func (w *Walker) deref(v proc.Value) proc.Value {
	r, err := w.oracle.Dereference(v)
	if err != nil {
		return invalidValue(err)
	}
	return r
}

// nodeOf returns the object a walk starts from: pointers are followed
// once, anything else is used as is.
func (w *Walker) nodeOf(v proc.Value) proc.Value {
	if w.oracle.DescribeType(v).Kind == proc.KindPointer || v.IsImmediate() {
		return w.deref(v)
	}
	return v
}

// link reads the pointer member field of v and follows it. Untyped
// targets take the type of v, as for "void *next" members.
func (w *Walker) link(v proc.Value, field string) proc.Value {
	m, err := w.oracle.Member(v, field)
	if err != nil {
		return invalidValue(err)
	}
	next := w.deref(m)
	if next.Addr.Valid && w.oracle.DescribeType(next).Kind == proc.KindVoid {
		next.Type = v.Type
	}
	return next
}

// leaf returns a node for v without recursing into it. Scalars and
// pointers are formatted, failures produce an error node.
func (w *Walker) leaf(label string, v proc.Value) *api.Node {
	n := api.ConvertValue(label, v)
	switch w.oracle.DescribeType(v).Kind {
	case proc.KindScalar, proc.KindPointer:
		s, err := w.oracle.FormatScalar(v)
		if err != nil {
			return errorLeaf(label, v.Addr, err)
		}
		n.Value = s
	}
	return n
}

func errorLeaf(label string, addr proc.Address, err error) *api.Node {
	if err == nil {
		err = errors.New("invalid address")
	}
	return &api.Node{Label: label, Kind: api.NodeError, Addr: api.ConvertAddress(addr), Value: err.Error()}
}

// invalidLeaf returns the error node for an unresolved address.
func invalidLeaf(label string, addr proc.Address) *api.Node {
	return errorLeaf(label, proc.Address{}, addr.Err)
}

func nullLeaf(label string) *api.Node {
	return &api.Node{Label: label, Kind: api.NodeNull, Addr: api.Address{Raw: 0, Valid: true}}
}

func cycleLeaf(label string, addr proc.Address, what string) *api.Node {
	return &api.Node{Label: label, Kind: api.NodeCycle, Addr: api.ConvertAddress(addr), Value: what}
}

func boundLeaf(label, bound, desc string) *api.Node {
	n := &api.Node{Label: label, Kind: api.NodeBound, Value: desc}
	n.Annotate(api.AnnotationBound, bound)
	return n
}

func depthLeaf(label string) *api.Node {
	return boundLeaf(label, api.BoundDepth, "max depth reached")
}

func omittedLeaf(bound string, omitted int64, what string) *api.Node {
	n := boundLeaf("", bound, fmt.Sprintf("%d more %s", omitted, what))
	n.Annotate(api.AnnotationOmitted, strconv.FormatInt(omitted, 10))
	return n
}

// readInt reads the integer member field of v.
func (w *Walker) readInt(v proc.Value, field string) (int64, error) {
	m, err := w.oracle.Member(v, field)
	if err != nil {
		return 0, err
	}
	if k := w.oracle.DescribeType(m).Kind; k != proc.KindScalar {
		return 0, fmt.Errorf("%s is not an integer", field)
	}
	s, err := w.oracle.FormatScalar(m)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(s, 10, 64)
}
