package terminal

import (
	"github.com/go-delve/memviz/pkg/terminal/starbind"
	"github.com/go-delve/memviz/pkg/walk"
)

type starlarkContext struct {
	term *Term
}

var _ starbind.Context = starlarkContext{}

func (ctx starlarkContext) Walker() (*walk.Walker, error) {
	return ctx.term.walker()
}

func (ctx starlarkContext) Bounds() walk.Config {
	return ctx.term.bounds()
}

func (ctx starlarkContext) RegisterCommand(name, helpMsg string, fn func(args string) error) {
	cmdfn := func(t *Term, args string) error {
		return fn(args)
	}
	ctx.term.cmds.Register(name, cmdfn, helpMsg)
}

func (ctx starlarkContext) CallCommand(cmdstr string) error {
	return ctx.term.cmds.Call(cmdstr, ctx.term)
}
