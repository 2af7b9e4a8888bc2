package node

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hupe1980/cmdmesh/core"
	"github.com/hupe1980/cmdmesh/decoder"
	"github.com/hupe1980/cmdmesh/internal/util"
)

// ErrFrozen is the panic value raised when a node is mutated after its tree
// was built.
var ErrFrozen = errors.New("node: tree is frozen")

// Kind is the matching strategy of a node.
type Kind int

const (
	// KindLiteral matches one of a fixed set of case-insensitive keywords.
	KindLiteral Kind = iota
	// KindString matches a single quoted or bare token.
	KindString
	// KindGreedy matches the whole non-blank remainder.
	KindGreedy
	// KindList matches the remainder as a list of tokens.
	KindList
	// KindTyped delegates to a decoder.
	KindTyped
	// KindAttachment resolves the source attachment without consuming input.
	KindAttachment
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindLiteral:
		return "literal"
	case KindString:
		return "string"
	case KindGreedy:
		return "greedy"
	case KindList:
		return "list"
	case KindTyped:
		return "typed"
	case KindAttachment:
		return "attachment"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Priority classes order siblings. Lower classes are tried first.
type Priority int

const (
	Static Priority = iota
	SemiStatic
	Dynamic
)

// String returns the priority name.
func (p Priority) String() string {
	switch p {
	case Static:
		return "STATIC"
	case SemiStatic:
		return "SEMI_STATIC"
	default:
		return "DYNAMIC"
	}
}

// Priority returns the class of k.
func (k Kind) Priority() Priority {
	switch k {
	case KindLiteral:
		return Static
	case KindTyped, KindAttachment:
		return SemiStatic
	default:
		return Dynamic
	}
}

// IsArgument reports whether nodes of kind k bind a named value.
func (k Kind) IsArgument() bool { return k != KindLiteral }

// Node is one element of the command grammar. Nodes are built with the
// builder methods below and become immutable once their tree is built.
type Node struct {
	kind        Kind
	names       []string
	folded      []string
	decoder     decoder.Erased
	children    []*Node
	executor    core.Executor
	description string
	frozen      bool
}

// Literal creates a root literal node matching any of names.
func Literal(names ...string) *Node {
	return newLiteral(names)
}

func newLiteral(names []string) *Node {
	n := &Node{kind: KindLiteral, names: append([]string(nil), names...)}
	n.folded = make([]string, len(names))
	for i, name := range names {
		n.folded[i] = util.Fold(name)
	}
	return n
}

func newArgument(kind Kind, name string, d decoder.Erased) *Node {
	return &Node{kind: kind, names: []string{name}, decoder: d}
}

func (n *Node) mustMutable() {
	if n.frozen {
		panic(ErrFrozen)
	}
}

func (n *Node) add(child *Node) *Node {
	n.mustMutable()
	n.children = append(n.children, child)
	return child
}

// Literal adds a literal child and returns it.
func (n *Node) Literal(names ...string) *Node {
	return n.add(newLiteral(names))
}

// String adds a single-token argument child and returns it.
func (n *Node) String(name string) *Node {
	return n.add(newArgument(KindString, name, nil))
}

// Greedy adds a rest-of-input argument child and returns it.
func (n *Node) Greedy(name string) *Node {
	return n.add(newArgument(KindGreedy, name, nil))
}

// List adds a token-list argument child and returns it.
func (n *Node) List(name string) *Node {
	return n.add(newArgument(KindList, name, nil))
}

// Attachment adds a child bound to the source attachment and returns it.
func (n *Node) Attachment(name string) *Node {
	return n.add(newArgument(KindAttachment, name, decoder.Erase[*core.Attachment](decoder.AttachmentDecoder{})))
}

// Typed adds a child argument decoded by d and returns it.
func Typed[T any](parent *Node, name string, d decoder.Decoder[T]) *Node {
	var erased decoder.Erased
	if d != nil {
		erased = decoder.Erase(d)
	}
	return parent.add(newArgument(KindTyped, name, erased))
}

// Executes sets the executor run when input ends at this node.
func (n *Node) Executes(fn core.Executor) *Node {
	n.mustMutable()
	n.executor = fn
	return n
}

// Describe sets a short help text shown by usage listings.
func (n *Node) Describe(text string) *Node {
	n.mustMutable()
	n.description = text
	return n
}

// Then calls fn with n so nested grammar reads as a block, and returns n.
func (n *Node) Then(fn func(n *Node)) *Node {
	n.mustMutable()
	fn(n)
	return n
}

// Kind returns the matching strategy.
func (n *Node) Kind() Kind { return n.kind }

// Name returns the primary name: the first keyword of a literal or the
// argument name.
func (n *Node) Name() string {
	if len(n.names) == 0 {
		return ""
	}
	return n.names[0]
}

// Names returns all keywords of a literal, or the argument name.
func (n *Node) Names() []string { return append([]string(nil), n.names...) }

// MatchesKeyword reports whether tok equals one of the literal keywords,
// ignoring case.
func (n *Node) MatchesKeyword(tok string) bool {
	if n.kind != KindLiteral {
		return false
	}
	f := util.Fold(tok)
	for _, k := range n.folded {
		if k == f {
			return true
		}
	}
	return false
}

// Decoder returns the decoder of a Typed or Attachment node.
func (n *Node) Decoder() decoder.Erased { return n.decoder }

// Executor returns the node's executor, or nil.
func (n *Node) Executor() core.Executor { return n.executor }

// Description returns the help text.
func (n *Node) Description() string { return n.description }

// Frozen reports whether the node belongs to a built tree.
func (n *Node) Frozen() bool { return n.frozen }

// Children returns the children in try-order: by priority class, then by
// declaration order.
func (n *Node) Children() []*Node {
	if n.frozen {
		return n.children
	}
	return ordered(n.children)
}

// Child returns the first literal child matching keyword.
func (n *Node) Child(keyword string) *Node {
	for _, c := range n.Children() {
		if c.MatchesKeyword(keyword) {
			return c
		}
	}
	return nil
}

func ordered(nodes []*Node) []*Node {
	out := append([]*Node(nil), nodes...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].kind.Priority() < out[j].kind.Priority()
	})
	return out
}

// Label renders the node as it appears in a usage line.
func (n *Node) Label() string {
	switch n.kind {
	case KindLiteral:
		return strings.Join(n.names, "|")
	case KindGreedy, KindList:
		return "<" + n.Name() + "...>"
	case KindAttachment:
		return "[" + n.Name() + "]"
	default:
		return "<" + n.Name() + ">"
	}
}
