package starbind

// Code in this file is derived from go.starlark.net/repl/repl.go
// Which is licensed under the following copyright:
//
// Copyright (c) 2017 The Bazel Authors.  All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are
// met:
//
// 1. Redistributions of source code must retain the above copyright
//    notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
//    notice, this list of conditions and the following disclaimer in the
//    documentation and/or other materials provided with the
//    distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
//    contributors may be used to endorse or promote products derived
//    from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS
// "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT
// LIMITED TO, THE IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR
// A PARTICULAR PURPOSE ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT
// HOLDER OR CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT
// LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR SERVICES; LOSS OF USE,
// DATA, OR PROFITS; OR BUSINESS INTERRUPTION) HOWEVER CAUSED AND ON ANY
// THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT
// (INCLUDING NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH DAMAGE.

import (
	"fmt"
	"io"
	"path/filepath"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/go-delve/liner"
)

const (
	normalPrompt = ">>> "
	extraPrompt  = "... "

	exitCommand = "exit"
)

// REPL executes a read, eval, print loop. Globals defined in the loop are
// exported to the environment when it ends.
func (env *Env) REPL() error {
	thread := env.newThread()
	globals := starlark.StringDict{}
	for k, v := range env.env {
		globals[k] = v
	}

	rl := liner.NewLiner()
	defer rl.Close()
	for {
		if err := isCancelled(thread); err != nil {
			return err
		}
		if err := env.rep(rl, thread, globals); err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
	}
	fmt.Fprintln(env.out)
	return env.exportGlobals(globals)
}

// rep reads, evaluates, and prints one item.
//
// It returns an error only if reading the line failed, starlark errors are
// printed.
func (env *Env) rep(rl *liner.State, thread *starlark.Thread, globals starlark.StringDict) error {
	out := env.out
	defer out.Flush()
	eof := false

	prompt := normalPrompt
	readline := func() ([]byte, error) {
		line, err := rl.Prompt(prompt)
		out.Echo(prompt + line)
		if line == exitCommand {
			eof = true
			return nil, io.EOF
		}
		rl.AppendHistory(line)
		prompt = extraPrompt
		if err != nil {
			if err == io.EOF {
				eof = true
			}
			return nil, err
		}
		return []byte(line + "\n"), nil
	}

	f, err := syntax.ParseCompoundStmt("<stdin>", readline)
	if err != nil {
		if eof {
			return io.EOF
		}
		env.printError(err)
		return nil
	}

	if expr := soleExpr(f); expr != nil {
		v, err := starlark.EvalExpr(thread, expr, globals)
		if err != nil {
			env.printError(err)
			return nil
		}
		if v != starlark.None {
			fmt.Fprintln(out, v)
		}
		return nil
	}

	prog, err := starlark.FileProgram(f, globals.Has)
	if err != nil {
		env.printError(err)
		return nil
	}

	// Globals are not frozen, the names defined by this statement are
	// predeclared for the next one. If execution failed some of them may be
	// undefined.
	res, err := prog.Init(thread, globals)
	if err != nil {
		env.printError(err)
	}
	for k, v := range res {
		globals[k] = v
	}
	return nil
}

func soleExpr(f *syntax.File) syntax.Expr {
	if len(f.Stmts) == 1 {
		if stmt, ok := f.Stmts[0].(*syntax.ExprStmt); ok {
			return stmt.X
		}
	}
	return nil
}

// printError prints err, or its backtrace if it is an evaluation error.
func (env *Env) printError(err error) {
	if evalErr, ok := err.(*starlark.EvalError); ok {
		fmt.Fprintln(env.out, evalErr.Backtrace())
	} else {
		fmt.Fprintln(env.out, err)
	}
}

// load returns the module loader of the environment. Modules see the
// builtins of the environment, relative paths are resolved against the
// directory of the loading file. Every module is executed at most once.
func (env *Env) load() func(thread *starlark.Thread, module string) (starlark.StringDict, error) {
	type entry struct {
		globals starlark.StringDict
		err     error
	}

	cache := make(map[string]*entry)

	var load func(thread *starlark.Thread, module string) (starlark.StringDict, error)
	load = func(thread *starlark.Thread, module string) (starlark.StringDict, error) {
		if !filepath.IsAbs(module) && thread.CallStackDepth() > 0 {
			if from := thread.CallFrame(0).Pos.Filename(); from != "" && from != "<stdin>" && from != "<input>" {
				module = filepath.Join(filepath.Dir(from), module)
			}
		}
		e, ok := cache[module]
		if e == nil {
			if ok {
				return nil, fmt.Errorf("cycle in load graph")
			}
			cache[module] = nil

			env.log.Debugf("loading %s", module)
			lthread := &starlark.Thread{Name: "exec " + module, Load: load, Print: thread.Print}
			if ctx := thread.Local(memvizContextName); ctx != nil {
				lthread.SetLocal(memvizContextName, ctx)
			}
			globals, err := starlark.ExecFile(lthread, module, nil, env.env)
			e = &entry{globals, err}
			cache[module] = e
		}
		return e.globals, e.err
	}
	return load
}
