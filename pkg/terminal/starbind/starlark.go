package starbind

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"

	startime "go.starlark.net/lib/time"
	"go.starlark.net/resolve"
	"go.starlark.net/starlark"

	"github.com/go-delve/memviz/pkg/logflags"
	"github.com/go-delve/memviz/pkg/proc"
	"github.com/go-delve/memviz/pkg/walk"
	"github.com/go-delve/memviz/service/api"
)

const (
	memvizCommandBuiltinName = "memviz_command"
	evalBuiltinName          = "eval"
	readBytesBuiltinName     = "read_bytes"
	ptrchainBuiltinName      = "ptrchain"
	walkListBuiltinName      = "walk_list"
	walkTreeBuiltinName      = "walk_tree"
	walkStructBuiltinName    = "walk_struct"
	walkHashMapBuiltinName   = "walk_hashmap"
	formatModelBuiltinName   = "format_model"
	readFileBuiltinName      = "read_file"
	writeFileBuiltinName     = "write_file"
	helpBuiltinName          = "help"
	commandPrefix            = "command_"
	memvizContextName        = "memviz_context"
)

func init() {
	resolve.AllowNestedDef = true
	resolve.AllowLambda = true
	resolve.AllowFloat = true
	resolve.AllowSet = true
	resolve.AllowBitwise = true
	resolve.AllowRecursion = true
	resolve.AllowGlobalReassign = true
}

// Context is the context in which starlark scripts are evaluated.
// It gives access to the target memory and to the terminal commands.
type Context interface {
	// Walker returns a walker over a new session of the target.
	Walker() (*walk.Walker, error)
	// Bounds returns the configured walk bounds.
	Bounds() walk.Config
	RegisterCommand(name, helpMsg string, cmdfn func(args string) error)
	CallCommand(cmdstr string) error
}

// Env is the environment used to evaluate starlark scripts.
type Env struct {
	env       starlark.StringDict
	contextMu sync.Mutex
	thread    *starlark.Thread
	cancelfn  context.CancelFunc

	ctx Context
	out EchoWriter
	log logflags.Logger
}

// New creates a new starlark binding environment.
func New(ctx Context, out EchoWriter) *Env {
	env := &Env{}

	env.ctx = ctx
	env.out = out
	env.log = logflags.StarlarkLogger()

	// Make the "time" module available to Starlark scripts.
	starlark.Universe["time"] = startime.Module

	env.env = starlark.StringDict{}
	doc := map[string]string{}

	builtin := func(name, args, descr string, fn func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error)) {
		env.env[name] = starlark.NewBuiltin(name, fn)
		doc[name] = name + args + "\n\n" + name + " " + descr
	}

	builtin(memvizCommandBuiltinName, "(Command)", "runs a memviz command, its output goes to the terminal.", func(thread *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if err := isCancelled(thread); err != nil {
			return starlark.None, err
		}
		argstrs := make([]string, len(args))
		for i := range args {
			a, ok := args[i].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("argument of %s is not a string", memvizCommandBuiltinName)
			}
			argstrs[i] = string(a)
		}
		err := env.ctx.CallCommand(strings.Join(argstrs, " "))
		return starlark.None, decorateError(thread, err)
	})

	builtin(evalBuiltinName, "(Expr)", "evaluates an expression, the result is a dict with keys addr, type and value.", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var expr string
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "expr", &expr); err != nil {
			return nil, err
		}
		w, err := env.walker(thread)
		if err != nil {
			return nil, err
		}
		v, err := w.Resolve(expr)
		if err != nil {
			return nil, decorateError(thread, err)
		}
		return valueToStarlarkValue(w.Oracle(), v), nil
	})

	builtin(readBytesBuiltinName, "(Addr, Count)", "reads Count bytes of target memory at Addr.", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var addr uint64
		var count int
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "addr", &addr, "count", &count); err != nil {
			return nil, err
		}
		w, err := env.walker(thread)
		if err != nil {
			return nil, err
		}
		buf, err := w.Oracle().ReadBytes(addr, count)
		if err != nil {
			return nil, decorateError(thread, err)
		}
		return starlark.Bytes(buf), nil
	})

	builtin(ptrchainBuiltinName, "(Expr, max_depth, offsets)", "follows a chain of pointers and returns the model of the walk.", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var expr string
		depth := env.ctx.Bounds().MaxDepth
		var offsets *starlark.List
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "expr", &expr, "max_depth?", &depth, "offsets?", &offsets); err != nil {
			return nil, err
		}
		w, start, err := env.resolve(thread, expr)
		if err != nil {
			return nil, err
		}
		if offsets == nil {
			return nodeToStarlarkValue(w.PointerChain(start, depth)), nil
		}
		offs := make([]int64, offsets.Len())
		for i := range offs {
			if err := starlark.AsInt(offsets.Index(i), &offs[i]); err != nil {
				return nil, decorateError(thread, fmt.Errorf("offset %d: %v", i, err))
			}
		}
		return nodeToStarlarkValue(w.PointerChainOffsets(start, offs)), nil
	})

	builtin(walkListBuiltinName, "(Expr, link=\"next\", fields=[], max_nodes)", "walks a singly linked list and returns the model of the walk.", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var expr string
		link := "next"
		var fields *starlark.List
		maxNodes := env.ctx.Bounds().MaxNodes
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "expr", &expr, "link?", &link, "fields?", &fields, "max_nodes?", &maxNodes); err != nil {
			return nil, err
		}
		names, err := stringList(fields)
		if err != nil {
			return nil, decorateError(thread, err)
		}
		w, head, err := env.resolve(thread, expr)
		if err != nil {
			return nil, err
		}
		return nodeToStarlarkValue(w.LinkedList(head, link, names, maxNodes)), nil
	})

	builtin(walkTreeBuiltinName, "(Expr, left=\"left\", right=\"right\", key=\"key\", max_depth)", "walks a binary tree and returns the model of the walk.", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var expr string
		left, right, key := "left", "right", "key"
		depth := env.ctx.Bounds().MaxDepth
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "expr", &expr, "left?", &left, "right?", &right, "key?", &key, "max_depth?", &depth); err != nil {
			return nil, err
		}
		w, root, err := env.resolve(thread, expr)
		if err != nil {
			return nil, err
		}
		return nodeToStarlarkValue(w.BinaryTree(root, left, right, depth, key)), nil
	})

	builtin(walkStructBuiltinName, "(Expr, max_depth)", "walks a value and everything reachable from it and returns the model of the walk.", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var expr string
		depth := env.ctx.Bounds().MaxDepth
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "expr", &expr, "max_depth?", &depth); err != nil {
			return nil, err
		}
		w, v, err := env.resolve(thread, expr)
		if err != nil {
			return nil, err
		}
		return nodeToStarlarkValue(w.Struct(v, depth)), nil
	})

	builtin(walkHashMapBuiltinName, "(Expr, buckets=\"buckets\", size=\"size\", capacity=\"capacity\", max_buckets)", "walks the buckets of a hash table and returns the model of the walk.", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var expr string
		spec := walk.DefaultHashMapSpec()
		maxBuckets := env.ctx.Bounds().MaxBuckets
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "expr", &expr, "buckets?", &spec.Buckets, "size?", &spec.Size, "capacity?", &spec.Capacity, "max_buckets?", &maxBuckets); err != nil {
			return nil, err
		}
		w, v, err := env.resolve(thread, expr)
		if err != nil {
			return nil, err
		}
		return nodeToStarlarkValue(w.HashMap(v, spec, maxBuckets)), nil
	})

	builtin(formatModelBuiltinName, "(Model, format=\"text\")", "renders a model returned by one of the walk builtins as a string.", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var model starlark.Value
		format := "text"
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "model", &model, "format?", &format); err != nil {
			return nil, err
		}
		n, err := starlarkValueToNode(model, "model")
		if err != nil {
			return nil, decorateError(thread, err)
		}
		f, err := api.FormatterByName(format)
		if err != nil {
			return nil, decorateError(thread, err)
		}
		lines, err := f.Format(n)
		if err != nil {
			return nil, decorateError(thread, err)
		}
		return starlark.String(strings.Join(lines, "\n")), nil
	})

	builtin(readFileBuiltinName, "(Path)", "reads a file.", func(thread *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if len(args) != 1 {
			return nil, decorateError(thread, fmt.Errorf("wrong number of arguments"))
		}
		path, ok := args[0].(starlark.String)
		if !ok {
			return nil, decorateError(thread, fmt.Errorf("argument of read_file was not a string"))
		}
		buf, err := os.ReadFile(string(path))
		if err != nil {
			return nil, decorateError(thread, err)
		}
		return starlark.String(string(buf)), nil
	})

	builtin(writeFileBuiltinName, "(Path, Text)", "writes text to the specified file.", func(thread *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if len(args) != 2 {
			return nil, decorateError(thread, fmt.Errorf("wrong number of arguments"))
		}
		path, ok := args[0].(starlark.String)
		if !ok {
			return nil, decorateError(thread, fmt.Errorf("first argument of write_file was not a string"))
		}
		text := args[1].String()
		if s, ok := args[1].(starlark.String); ok {
			text = string(s)
		}
		err := os.WriteFile(string(path), []byte(text), 0640)
		return starlark.None, decorateError(thread, err)
	})

	builtin(helpBuiltinName, "(Object)", "prints help for Object.", func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		switch len(args) {
		case 0:
			fmt.Fprintln(env.out, "Available builtins:")
			bins := make([]string, 0, len(env.env))
			for name, value := range env.env {
				switch value.(type) {
				case *starlark.Builtin:
					bins = append(bins, name)
				}
			}
			sort.Strings(bins)
			for _, bin := range bins {
				fmt.Fprintf(env.out, "\t%s\n", bin)
			}
		case 1:
			switch x := args[0].(type) {
			case *starlark.Builtin:
				if doc[x.Name()] != "" {
					fmt.Fprintf(env.out, "%s\n", doc[x.Name()])
				} else {
					fmt.Fprintf(env.out, "no help for builtin %s\n", x.Name())
				}
			case *starlark.Function:
				fmt.Fprintf(env.out, "user defined function %s\n", x.Name())
				if doc := x.Doc(); doc != "" {
					fmt.Fprintln(env.out, doc)
				}
			default:
				fmt.Fprintf(env.out, "no help for object of type %T\n", args[0])
			}
		default:
			fmt.Fprintln(env.out, "wrong number of arguments ", len(args))
		}
		return starlark.None, nil
	})

	return env
}

func (env *Env) walker(thread *starlark.Thread) (*walk.Walker, error) {
	if err := isCancelled(thread); err != nil {
		return nil, err
	}
	w, err := env.ctx.Walker()
	if err != nil {
		return nil, decorateError(thread, err)
	}
	return w, nil
}

// resolve returns a walker and the start of a walk.
func (env *Env) resolve(thread *starlark.Thread, expr string) (*walk.Walker, proc.Value, error) {
	w, err := env.walker(thread)
	if err != nil {
		return nil, proc.Value{}, err
	}
	v, err := w.Resolve(expr)
	if err != nil {
		return nil, proc.Value{}, decorateError(thread, err)
	}
	env.log.Debugf("walk from %s", expr)
	return w, v, nil
}

// Redirect redirects starlark output to out.
func (env *Env) Redirect(out EchoWriter) {
	env.out = out
	if env.thread != nil {
		env.thread.Print = env.printFunc()
	}
}

func (env *Env) printFunc() func(_ *starlark.Thread, msg string) {
	return func(_ *starlark.Thread, msg string) { fmt.Fprintln(env.out, msg) }
}

// Execute executes a script. Path is the name of the file to execute and
// source is the source code to execute.
// Source can be either a []byte, a string or a io.Reader. If source is nil
// Execute will execute the file specified by 'path'.
// After the file is executed if a function named mainFnName exists it will be called, passing args to it.
func (env *Env) Execute(path string, source interface{}, mainFnName string, args []starlark.Value) (_ starlark.Value, _err error) {
	defer func() {
		err := recover()
		if err == nil {
			return
		}
		_err = fmt.Errorf("panic executing starlark script: %v", err)
		fmt.Fprintf(env.out, "panic executing starlark script: %v\n", err)
		for i := 0; ; i++ {
			pc, file, line, ok := runtime.Caller(i)
			if !ok {
				break
			}
			fname := "<unknown>"
			fn := runtime.FuncForPC(pc)
			if fn != nil {
				fname = fn.Name()
			}
			fmt.Fprintf(env.out, "%s\n\tin %s:%d\n", fname, file, line)
		}
	}()

	env.log.Debugf("executing %s", path)
	thread := env.newThread()
	globals, err := starlark.ExecFile(thread, path, source, env.env)
	if err != nil {
		return starlark.None, err
	}

	err = env.exportGlobals(globals)
	if err != nil {
		return starlark.None, err
	}

	return env.callMain(thread, globals, mainFnName, args)
}

// exportGlobals saves globals with a name starting with a capital letter
// into the environment and creates commands from globals with a name
// starting with "command_"
func (env *Env) exportGlobals(globals starlark.StringDict) error {
	for name, val := range globals {
		switch {
		case strings.HasPrefix(name, commandPrefix):
			err := env.createCommand(name, val)
			if err != nil {
				return err
			}
		case name[0] >= 'A' && name[0] <= 'Z':
			env.env[name] = val
		}
	}
	return nil
}

// Cancel cancels the execution of a currently running script or function.
func (env *Env) Cancel() {
	if env == nil {
		return
	}
	env.contextMu.Lock()
	if env.cancelfn != nil {
		env.cancelfn()
		env.cancelfn = nil
	}
	if env.thread != nil {
		env.thread.Cancel("user interrupt")
	}
	env.contextMu.Unlock()
}

func (env *Env) newThread() *starlark.Thread {
	thread := &starlark.Thread{
		Print: env.printFunc(),
		Load:  env.load(),
	}
	env.contextMu.Lock()
	var ctx context.Context
	ctx, env.cancelfn = context.WithCancel(context.Background())
	env.thread = thread
	env.contextMu.Unlock()
	thread.SetLocal(memvizContextName, ctx)
	return thread
}

func (env *Env) createCommand(name string, val starlark.Value) error {
	fnval, ok := val.(*starlark.Function)
	if !ok {
		return nil
	}

	name = name[len(commandPrefix):]

	helpMsg := fnval.Doc()
	if helpMsg == "" {
		helpMsg = "user defined"
	}

	if fnval.NumParams() == 1 {
		if p0, _ := fnval.Param(0); p0 == "args" {
			env.ctx.RegisterCommand(name, helpMsg, func(args string) error {
				_, err := starlark.Call(env.newThread(), fnval, starlark.Tuple{starlark.String(args)}, nil)
				return err
			})
			return nil
		}
	}

	env.ctx.RegisterCommand(name, helpMsg, func(args string) error {
		thread := env.newThread()
		argval, err := starlark.Eval(thread, "<input>", "("+args+")", env.env)
		if err != nil {
			return err
		}
		argtuple, ok := argval.(starlark.Tuple)
		if !ok {
			argtuple = starlark.Tuple{argval}
		}
		_, err = starlark.Call(thread, fnval, argtuple, nil)
		return err
	})
	return nil
}

// callMain calls the main function in globals, if one was defined.
func (env *Env) callMain(thread *starlark.Thread, globals starlark.StringDict, mainFnName string, args []starlark.Value) (starlark.Value, error) {
	if mainFnName == "" {
		return starlark.None, nil
	}
	mainval := globals[mainFnName]
	if mainval == nil {
		return starlark.None, nil
	}
	mainfn, ok := mainval.(*starlark.Function)
	if !ok {
		return starlark.None, fmt.Errorf("%s is not a function", mainFnName)
	}
	if mainfn.NumParams() != len(args) {
		return starlark.None, fmt.Errorf("wrong number of arguments for %s", mainFnName)
	}
	return starlark.Call(thread, mainfn, starlark.Tuple(args), nil)
}

func isCancelled(thread *starlark.Thread) error {
	if ctx, ok := thread.Local(memvizContextName).(context.Context); ok {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	return nil
}

func decorateError(thread *starlark.Thread, err error) error {
	if err == nil {
		return nil
	}
	pos := thread.CallFrame(1).Pos
	if pos.Col > 0 {
		return fmt.Errorf("%s:%d:%d: %v", pos.Filename(), pos.Line, pos.Col, err)
	}
	return fmt.Errorf("%s:%d: %v", pos.Filename(), pos.Line, err)
}

// EchoWriter is the output of the starlark environment. Echo writes only
// to the transcript, if one is active.
type EchoWriter interface {
	io.Writer
	Echo(string)
	Flush()
}
