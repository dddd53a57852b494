package proc

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"
)

// Evaluate implements Oracle.
//
// Supported expressions are symbol names, integer literals (untyped memory
// at that address), *e, &e, e.field, e[i], parenthesized expressions and
// conversions T(e): converting to a pointer type produces a pointer
// constant, converting to any other type reinterprets the memory e
// designates.
func (t *Target) Evaluate(expr string) (Value, error) {
	node, err := parser.ParseExpr(expr)
	if err != nil {
		return Value{}, &EvaluationError{Expr: expr, Err: err}
	}
	v, err := t.evalAST(node)
	if err != nil {
		t.log.Debugf("evaluating %q: %v", expr, err)
		return Value{}, &EvaluationError{Expr: expr, Err: err}
	}
	return v, nil
}

func (t *Target) evalAST(node ast.Expr) (Value, error) {
	switch node := node.(type) {
	case *ast.Ident:
		sym, ok := t.symbols[node.Name]
		if !ok {
			return Value{}, fmt.Errorf("could not find symbol value for %s", node.Name)
		}
		return Value{Addr: ValidAddress(sym.Addr), Type: sym.Type}, nil

	case *ast.BasicLit:
		n, err := evalIntLit(node)
		if err != nil {
			return Value{}, err
		}
		return Value{Addr: ValidAddress(n), Type: t.types.Void()}, nil

	case *ast.ParenExpr:
		return t.evalAST(node.X)

	case *ast.StarExpr:
		x, err := t.evalAST(node.X)
		if err != nil {
			return Value{}, err
		}
		v, err := t.Dereference(x)
		if err != nil {
			return Value{}, err
		}
		if v.Addr.IsNull() {
			return Value{}, errNilDeref
		}
		return v, nil

	case *ast.UnaryExpr:
		if node.Op != token.AND {
			return Value{}, fmt.Errorf("operator %s not supported", node.Op)
		}
		x, err := t.evalAST(node.X)
		if err != nil {
			return Value{}, err
		}
		if x.imm || x.Addr.IsInvalid() {
			return Value{}, errNotAddressable
		}
		return Immediate(t.types.PointerTo(x.Type), x.Addr.Raw), nil

	case *ast.SelectorExpr:
		x, err := t.evalAST(node.X)
		if err != nil {
			return Value{}, err
		}
		return t.Member(x, node.Sel.Name)

	case *ast.IndexExpr:
		x, err := t.evalAST(node.X)
		if err != nil {
			return Value{}, err
		}
		lit, ok := node.Index.(*ast.BasicLit)
		if !ok {
			return Value{}, errors.New("index must be an integer constant")
		}
		i, err := evalIntLit(lit)
		if err != nil {
			return Value{}, err
		}
		return t.Element(x, int64(i))

	case *ast.CallExpr:
		if len(node.Args) != 1 {
			return Value{}, errors.New("function calls are not supported")
		}
		typ, err := t.types.parseAST(node.Fun)
		if err != nil {
			return Value{}, err
		}
		return t.convert(typ, node.Args[0])
	}
	return Value{}, fmt.Errorf("expression %T not supported", node)
}

func (t *Target) convert(typ *Type, arg ast.Expr) (Value, error) {
	if lit, ok := arg.(*ast.BasicLit); ok {
		n, err := evalIntLit(lit)
		if err != nil {
			return Value{}, err
		}
		if typ.Kind == KindPointer {
			return Immediate(typ, n), nil
		}
		return Value{Addr: ValidAddress(n), Type: typ}, nil
	}
	x, err := t.evalAST(arg)
	if err != nil {
		return Value{}, err
	}
	if typ.Kind != KindPointer {
		if x.imm {
			return Value{Addr: ValidAddress(x.immVal), Type: typ}, nil
		}
		return Value{Addr: x.Addr, Type: typ}, nil
	}
	xtyp := t.DescribeType(x)
	switch {
	case x.imm:
		return Immediate(typ, x.immVal), nil
	case xtyp.Kind == KindPointer || (xtyp.Kind == KindScalar && xtyp.Size == t.types.PtrSize):
		raw, err := t.readUint(x.Addr.Raw, t.types.PtrSize)
		if err != nil {
			return Value{}, err
		}
		return Immediate(typ, raw), nil
	case xtyp.Kind == KindVoid:
		return Immediate(typ, x.Addr.Raw), nil
	}
	return Value{}, fmt.Errorf("can not convert %s to %s", xtyp, typ)
}

func evalIntLit(lit *ast.BasicLit) (uint64, error) {
	if lit.Kind != token.INT {
		return 0, fmt.Errorf("literal %s is not an integer", lit.Value)
	}
	n, err := strconv.ParseUint(lit.Value, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer literal %s: %v", lit.Value, err)
	}
	return n, nil
}
