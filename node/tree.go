package node

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNilRoot is returned when a nil node is registered.
	ErrNilRoot = errors.New("node: nil root")
	// ErrEmptyName is returned for literals without keywords and arguments
	// without a name.
	ErrEmptyName = errors.New("node: empty name")
	// ErrLeafChildren is returned when a greedy or list node has children.
	ErrLeafChildren = errors.New("node: greedy and list nodes cannot have children")
	// ErrMissingDecoder is returned for a typed node without a decoder.
	ErrMissingDecoder = errors.New("node: typed node without decoder")
	// ErrCycle is returned when a node is its own ancestor.
	ErrCycle = errors.New("node: cycle in grammar")
)

// Builder collects root nodes and validates them into a Tree.
type Builder struct {
	roots []*Node
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Register appends roots in declaration order.
func (b *Builder) Register(roots ...*Node) *Builder {
	b.roots = append(b.roots, roots...)
	return b
}

// Build validates every registered node, orders children for matching and
// freezes the grammar. Nodes must not be registered with another builder
// afterwards.
func (b *Builder) Build() (*Tree, error) {
	for i, r := range b.roots {
		if r == nil {
			return nil, fmt.Errorf("root %d: %w", i, ErrNilRoot)
		}
		if err := validate(r, nil, map[*Node]bool{}); err != nil {
			return nil, err
		}
	}
	for _, r := range b.roots {
		freeze(r)
	}
	return &Tree{roots: ordered(b.roots)}, nil
}

// MustBuild is Build that panics on an invalid grammar.
func (b *Builder) MustBuild() *Tree {
	t, err := b.Build()
	if err != nil {
		panic(err)
	}
	return t
}

func validate(n *Node, path []string, onPath map[*Node]bool) error {
	if onPath[n] {
		return fmt.Errorf("%s: %w", strings.Join(path, " "), ErrCycle)
	}
	onPath[n] = true
	defer delete(onPath, n)

	path = append(path, n.Label())
	where := strings.Join(path, " ")

	if len(n.names) == 0 {
		return fmt.Errorf("%s: %w", where, ErrEmptyName)
	}
	for _, name := range n.names {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%s: %w", where, ErrEmptyName)
		}
	}
	switch n.kind {
	case KindGreedy, KindList:
		if len(n.children) > 0 {
			return fmt.Errorf("%s: %w", where, ErrLeafChildren)
		}
	case KindTyped, KindAttachment:
		if n.decoder == nil {
			return fmt.Errorf("%s: %w", where, ErrMissingDecoder)
		}
	}
	for _, c := range n.children {
		if c == nil {
			return fmt.Errorf("%s: %w", where, ErrNilRoot)
		}
		if err := validate(c, path, onPath); err != nil {
			return err
		}
	}
	return nil
}

func freeze(n *Node) {
	if n.frozen {
		return
	}
	n.children = ordered(n.children)
	n.frozen = true
	for _, c := range n.children {
		freeze(c)
	}
}

// Tree is a built, immutable grammar. It is safe for concurrent use.
type Tree struct {
	roots []*Node
}

// Roots returns the roots in try-order.
func (t *Tree) Roots() []*Node { return t.roots }

// Find follows literal keywords from the roots and returns the node reached,
// or nil.
func (t *Tree) Find(path ...string) *Node {
	if len(path) == 0 {
		return nil
	}
	var cur *Node
	for _, r := range t.roots {
		if r.MatchesKeyword(path[0]) {
			cur = r
			break
		}
	}
	for _, kw := range path[1:] {
		if cur == nil {
			return nil
		}
		cur = cur.Child(kw)
	}
	return cur
}

// Usage renders one line per executable path, for example
// "switch|sw move <time...>". A description, when set, follows after " - ".
func (t *Tree) Usage() []string {
	var lines []string
	var walk func(n *Node, prefix []string)
	walk = func(n *Node, prefix []string) {
		prefix = append(prefix, n.Label())
		if n.executor != nil {
			line := strings.Join(prefix, " ")
			if n.description != "" {
				line += " - " + n.description
			}
			lines = append(lines, line)
		}
		for _, c := range n.children {
			walk(c, prefix)
		}
	}
	for _, r := range t.roots {
		walk(r, nil)
	}
	return lines
}
