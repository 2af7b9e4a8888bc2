package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"unicode"

	"github.com/hupe1980/cmdmesh/core"
	"github.com/hupe1980/cmdmesh/cursor"
	"github.com/hupe1980/cmdmesh/decoder"
	"github.com/hupe1980/cmdmesh/logging"
	"github.com/hupe1980/cmdmesh/node"
)

// binding is one link of an immutable argument chain. Extending the chain
// on a speculative branch never affects the parent, so abandoned branches
// drop their bindings without cleanup.
type binding struct {
	arg  core.Argument
	prev *binding
}

func (b *binding) with(arg core.Argument) *binding {
	return &binding{arg: arg, prev: b}
}

func (b *binding) list() []core.Argument {
	var out []core.Argument
	for l := b; l != nil; l = l.prev {
		out = append(out, l.arg)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// invocation is the per-call state of one dispatch.
type invocation struct {
	d      *Dispatcher
	ctx    context.Context
	id     string
	src    core.Source
	logger logging.Logger

	cur     *cursor.Cursor
	invalid *core.InvalidInputError
}

// walk tries each root against the full input. The first executor reached
// ends the walk.
func (inv *invocation) walk() (res Result, err error) {
	defer inv.containPanic(&res, &err)

	text := inv.src.Text()
	for _, root := range inv.d.tree.Roots() {
		inv.cur = cursor.New(text)
		inv.cur.SkipSpace()
		r, fired, walkErr := inv.try(root, nil, nil)
		if walkErr != nil {
			return Result{}, walkErr
		}
		if fired {
			return r, nil
		}
	}
	if inv.invalid != nil {
		return inv.invalidResult(), nil
	}
	return Result{Status: StatusUnhandled}, nil
}

// containPanic turns a panic raised while matching (typically a faulty
// decoder) into a contained fault.
func (inv *invocation) containPanic(res *Result, err *error) {
	if r := recover(); r != nil {
		*res = inv.fault("", &core.PanicError{Value: r}, debug.Stack())
		*err = nil
	}
}

// try matches n at the cursor and, on success, its children against the
// remainder. The cursor is restored unless an executor fired.
func (inv *invocation) try(n *node.Node, path []string, chain *binding) (Result, bool, error) {
	if err := inv.ctx.Err(); err != nil {
		return Result{}, false, err
	}

	scope := inv.cur.Begin()
	defer scope.Close()

	chain, ok := inv.match(n, chain)
	if !ok {
		return Result{}, false, nil
	}
	if n.Kind() == node.KindLiteral {
		path = append(path[:len(path):len(path)], n.Name())
	}
	inv.cur.SkipSpace()

	for _, child := range n.Children() {
		res, fired, err := inv.try(child, path, chain)
		if err != nil || fired {
			scope.Commit()
			return res, fired, err
		}
	}

	exec := n.Executor()
	if exec == nil || !inv.cur.Blank() {
		return Result{}, false, nil
	}
	scope.Commit()
	return inv.execute(exec, strings.Join(path, " "), chain.list()), true, nil
}

// match applies the matching rule of n's kind. It reports false for a
// structural non-match; the caller's scope restores the cursor.
func (inv *invocation) match(n *node.Node, chain *binding) (*binding, bool) {
	cur := inv.cur
	start := cur.Pos()

	switch n.Kind() {
	case node.KindLiteral:
		tok, ok := cur.Token(false)
		if !ok || !n.MatchesKeyword(tok) {
			return chain, false
		}
		return chain, true

	case node.KindString:
		tok, ok := cur.Token(true)
		if !ok {
			return chain, false
		}
		return chain.with(inv.argument(n.Name(), tok, start)), true

	case node.KindGreedy:
		rest := cur.Rest()
		if strings.TrimSpace(rest) == "" {
			return chain, false
		}
		cur.Seek(len(cur.Text()))
		return chain.with(inv.argument(n.Name(), rest, start)), true

	case node.KindList:
		matched := false
		for {
			cur.SkipSpace()
			from := cur.Pos()
			tok, ok := cur.Token(true)
			if !ok {
				break
			}
			chain = chain.with(inv.argument(n.Name(), tok, from))
			matched = true
		}
		return chain, matched

	case node.KindTyped, node.KindAttachment:
		v, err := n.Decoder().Decode(cur, inv.src)
		if err != nil {
			inv.recordInvalid(n.Name(), err)
			return chain, false
		}
		return chain.with(inv.argument(n.Name(), v, start)), true

	default:
		panic(fmt.Sprintf("dispatch: unknown node kind %v", n.Kind()))
	}
}

func (inv *invocation) argument(name string, value any, start int) core.Argument {
	end := inv.cur.Pos()
	raw := strings.TrimRightFunc(inv.cur.Text()[start:end], unicode.IsSpace)
	return core.Argument{Name: name, Value: value, Start: start, End: start + len(raw), Raw: raw}
}

// recordInvalid keeps the first InvalidInput seen during the walk.
func (inv *invocation) recordInvalid(name string, err error) {
	if inv.invalid != nil || !decoder.IsInvalid(err) {
		return
	}
	rec := &core.InvalidInputError{Name: name, Err: err}
	var typed *core.InvalidInputError
	if errors.As(err, &typed) {
		rec.Token = typed.Token
		rec.Err = typed.Err
	}
	inv.invalid = rec
	inv.logger.Debug("dispatch.invalid_input", "argument", name, "token", rec.Token)
}
