// Package scope finds the Python function or class that encloses a line.
//
// It parses source with tree-sitter and walks from the module node down
// through the definitions that contain the line, so nested methods are
// reported with their owning class.
package scope

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// Kinds of definitions reported in a Scope.
const (
	KindFunction = "function"
	KindClass    = "class"
)

// Definition is one def or class on the path to a line.
type Definition struct {
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}

// Scope lists the definitions enclosing a line, outermost first.
type Scope struct {
	Chain []Definition `json:"chain"`
}

// Innermost returns the closest enclosing definition.
func (s Scope) Innermost() (Definition, bool) {
	if len(s.Chain) == 0 {
		return Definition{}, false
	}
	return s.Chain[len(s.Chain)-1], true
}

// Qualified returns the dotted name, e.g. "TestCalc.test_add".
func (s Scope) Qualified() string {
	names := make([]string, len(s.Chain))
	for i, d := range s.Chain {
		names[i] = d.Name
	}
	return strings.Join(names, ".")
}

// Enclosing returns the chain of definitions containing the 1-based line.
// The boolean is false when the line is at module level or src does not
// parse.
func Enclosing(ctx context.Context, src []byte, line int) (Scope, bool, error) {
	if line < 1 || len(src) == 0 {
		return Scope{}, false, nil
	}

	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return Scope{}, false, fmt.Errorf("scope: parse: %w", err)
	}
	defer tree.Close()

	row := uint32(line - 1)
	var chain []Definition
	node := tree.RootNode()
	for node != nil {
		next := containingChild(node, row)
		if next == nil {
			break
		}
		if def, ok := definition(next, src); ok {
			chain = append(chain, def)
		}
		node = next
	}

	if len(chain) == 0 {
		return Scope{}, false, nil
	}
	return Scope{Chain: chain}, true, nil
}

// containingChild returns the named child of n whose rows cover row.
func containingChild(n *sitter.Node, row uint32) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c == nil {
			continue
		}
		if c.StartPoint().Row <= row && row <= c.EndPoint().Row {
			return c
		}
	}
	return nil
}

func definition(n *sitter.Node, src []byte) (Definition, bool) {
	var kind string
	switch n.Type() {
	case "function_definition":
		kind = KindFunction
	case "class_definition":
		kind = KindClass
	default:
		return Definition{}, false
	}
	name := n.ChildByFieldName("name")
	if name == nil {
		return Definition{}, false
	}
	return Definition{
		Kind:      kind,
		Name:      name.Content(src),
		StartLine: int(n.StartPoint().Row) + 1,
		EndLine:   int(n.EndPoint().Row) + 1,
	}, true
}
