// Package node declares the command grammar.
//
// A grammar is a forest of nodes. Each node has a Kind that decides how it
// matches input, optional children and an optional executor:
//
//	sw := node.Literal("switch", "sw")
//	sw.Literal("out", "o").Executes(switchOut)
//	sw.Literal("move", "mv", "m").Greedy("time").Executes(moveSwitch)
//	sw.List("members").Executes(switchMembers)
//
//	tree, err := node.NewBuilder().Register(sw).Build()
//
// Siblings are tried by priority class (literals, then typed and attachment
// arguments, then string, greedy and list arguments) and by declaration
// order within a class. Build validates and freezes the grammar; any later
// mutation panics with ErrFrozen. Matching itself lives in package dispatch.
package node
