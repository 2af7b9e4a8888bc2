package dispatch

import (
	"fmt"
	"strings"

	"github.com/hupe1980/cmdmesh/core"
	"github.com/hupe1980/cmdmesh/cursor"
	"github.com/hupe1980/cmdmesh/decoder"
	"github.com/hupe1980/cmdmesh/node"
)

// structured follows path through literal nodes, then descends through the
// argument children present in args and runs the deepest executor reached.
func (inv *invocation) structured(path []string, args map[string]any) (res Result, err error) {
	defer inv.containPanic(&res, &err)

	if len(path) == 0 {
		return Result{Status: StatusUnhandled}, nil
	}

	var (
		current *node.Node
		names   []string
	)
	for i, kw := range path {
		if err := inv.ctx.Err(); err != nil {
			return Result{}, err
		}
		var next *node.Node
		if i == 0 {
			for _, r := range inv.d.tree.Roots() {
				if r.MatchesKeyword(kw) {
					next = r
					break
				}
			}
		} else {
			next = current.Child(kw)
		}
		if next == nil {
			return Result{Status: StatusUnhandled}, nil
		}
		current = next
		names = append(names, next.Name())
	}

	var chain *binding
	for {
		if err := inv.ctx.Err(); err != nil {
			return Result{}, err
		}
		next, extended, ok := inv.descend(current, chain, args)
		if !ok {
			return inv.invalidResult(), nil
		}
		if next == nil {
			break
		}
		current, chain = next, extended
	}

	exec := current.Executor()
	if exec == nil {
		return Result{Status: StatusUnhandled}, nil
	}
	return inv.execute(exec, strings.Join(names, " "), chain.list()), nil
}

// descend picks the first argument child of n that can be satisfied from
// args or the source attachment. ok is false when a supplied value failed to
// decode; next is nil when no child applies.
func (inv *invocation) descend(n *node.Node, chain *binding, args map[string]any) (next *node.Node, extended *binding, ok bool) {
	for _, child := range n.Children() {
		if !child.Kind().IsArgument() {
			continue
		}
		v, supplied := args[child.Name()]
		if !supplied {
			if child.Kind() != node.KindAttachment {
				continue
			}
			a, err := child.Decoder().Decode(cursor.New(""), inv.src)
			if err != nil {
				continue
			}
			return child, chain.with(core.Argument{Name: child.Name(), Value: a}), true
		}

		values, err := decodeStructured(child, v)
		if err != nil {
			inv.recordStructuredInvalid(child.Name(), v, err)
			return nil, nil, false
		}
		for _, value := range values {
			chain = chain.with(core.Argument{Name: child.Name(), Value: value, Raw: fmt.Sprint(value)})
		}
		return child, chain, true
	}
	return nil, chain, true
}

func decodeStructured(n *node.Node, v any) ([]any, error) {
	switch n.Kind() {
	case node.KindString, node.KindGreedy:
		s, err := decoder.Text{}.DecodeStructured(v)
		if err != nil {
			return nil, err
		}
		if n.Kind() == node.KindGreedy && strings.TrimSpace(s) == "" {
			return nil, &core.InvalidInputError{Token: s, Err: core.ErrNoMatch}
		}
		return []any{s}, nil

	case node.KindList:
		return decodeList(v)

	case node.KindTyped, node.KindAttachment:
		out, err := n.Decoder().DecodeStructured(v)
		if err != nil {
			return nil, err
		}
		return []any{out}, nil

	default:
		panic(fmt.Sprintf("dispatch: unknown node kind %v", n.Kind()))
	}
}

// decodeList accepts a slice of values or a single string split the same
// way textual input is.
func decodeList(v any) ([]any, error) {
	var out []any
	switch x := v.(type) {
	case string:
		cur := cursor.New(x)
		for {
			cur.SkipSpace()
			tok, ok := cur.Token(true)
			if !ok {
				break
			}
			out = append(out, tok)
		}
	case []string:
		for _, s := range x {
			out = append(out, s)
		}
	case []any:
		for _, item := range x {
			s, err := decoder.Text{}.DecodeStructured(item)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
	default:
		return nil, &core.InvalidInputError{Token: fmt.Sprint(v), Err: fmt.Errorf("unsupported list type %T", v)}
	}
	if len(out) == 0 {
		return nil, &core.InvalidInputError{Token: fmt.Sprint(v), Err: core.ErrNoMatch}
	}
	return out, nil
}

func (inv *invocation) recordStructuredInvalid(name string, v any, err error) {
	if decoder.IsInvalid(err) {
		inv.recordInvalid(name, err)
	}
	if inv.invalid == nil {
		inv.invalid = &core.InvalidInputError{Name: name, Token: fmt.Sprint(v), Err: err}
	}
}
