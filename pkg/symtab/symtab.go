// Package symtab resolves TosLang names. The resulting Table answers the
// scope questions the instruction selector asks while lowering.
package symtab

import (
	"fmt"
	"sort"

	"github.com/toslang/tosc/pkg/ast"
	"github.com/toslang/tosc/pkg/token"
	"github.com/toslang/tosc/pkg/util"
)

type symbolType int

const (
	symVar symbolType = iota
	symParam
	symFunc
)

type symbol struct {
	Name   string
	Type   symbolType
	Global bool
	Node   *ast.Node
	Next   *symbol
}

type scope struct {
	Symbols *symbol
	Parent  *scope
}

func newScope(parent *scope) *scope { return &scope{Parent: parent} }

// Error is a positioned resolution failure
type Error struct {
	Tok token.Token
	Msg string
}

func (e *Error) Error() string { return util.FormatLocation(e.Tok) + ": " + e.Msg }

// Table is the outcome of resolving one program
type Table struct {
	funcs   map[string]*ast.Node
	globals map[string]*ast.Node
	order   []string
}

type resolver struct {
	table        *Table
	currentScope *scope
	err          *Error
}

func (r *resolver) enterScope() { r.currentScope = newScope(r.currentScope) }
func (r *resolver) exitScope() {
	if r.currentScope.Parent != nil {
		r.currentScope = r.currentScope.Parent
	}
}

func (r *resolver) findSymbol(name string) *symbol {
	for s := r.currentScope; s != nil; s = s.Parent {
		for sym := s.Symbols; sym != nil; sym = sym.Next {
			if sym.Name == name {
				return sym
			}
		}
	}
	return nil
}

func (r *resolver) findSymbolInCurrentScope(name string) *symbol {
	for sym := r.currentScope.Symbols; sym != nil; sym = sym.Next {
		if sym.Name == name {
			return sym
		}
	}
	return nil
}

func (r *resolver) fail(tok token.Token, format string, args ...interface{}) {
	if r.err == nil {
		r.err = &Error{Tok: tok, Msg: fmt.Sprintf(format, args...)}
	}
}

func (r *resolver) addSymbol(name string, symType symbolType, node *ast.Node) {
	if prev := r.findSymbolInCurrentScope(name); prev != nil {
		r.fail(node.Tok, "redeclaration of '%s'", name)
		return
	}
	sym := &symbol{
		Name: name, Type: symType, Global: r.currentScope.Parent == nil,
		Node: node, Next: r.currentScope.Symbols,
	}
	r.currentScope.Symbols = sym
}

// Build resolves every identifier in root against its declaration and binds
// it with ast.Bind. Functions are visible from anywhere in the program;
// variables only after their declaration, although a global's name is
// reserved for the whole program.
func Build(root *ast.Node) (*Table, error) {
	if root == nil || root.Type != ast.Program {
		return nil, fmt.Errorf("symtab: expected a program node")
	}
	prog, ok := root.Data.(ast.ProgramNode)
	if !ok {
		return nil, fmt.Errorf("symtab: program node carries %T", root.Data)
	}
	r := &resolver{
		table: &Table{funcs: make(map[string]*ast.Node), globals: make(map[string]*ast.Node)},
	}
	r.enterScope()

	decls := prog.Decls
	for _, d := range decls {
		switch d.Type {
		case ast.FunctionDecl:
			name := ast.DeclName(d)
			r.addSymbol(name, symFunc, d)
			r.table.funcs[name] = d
		case ast.VarDecl:
			// Known up front so a function declared earlier cannot reuse the name.
			name := ast.DeclName(d)
			if _, ok := r.table.globals[name]; !ok {
				r.table.globals[name] = d
				r.table.order = append(r.table.order, name)
			}
		}
	}
	for _, d := range decls {
		r.resolve(d)
	}
	if r.err != nil {
		return nil, r.err
	}
	return r.table, nil
}

func (r *resolver) resolve(node *ast.Node) {
	if node == nil || r.err != nil {
		return
	}
	switch d := node.Data.(type) {
	case ast.FunctionDeclNode:
		r.enterScope()
		for _, p := range d.Params {
			r.addSymbol(ast.DeclName(p), symParam, p)
		}
		// Parameters and the outermost locals share a scope.
		if d.Body != nil {
			for _, s := range d.Body.Data.(ast.CompoundStmtNode).Stmts {
				r.resolve(s)
			}
		}
		r.exitScope()

	case ast.VarDeclNode:
		r.resolve(d.Init)
		// Global routing is decided by name, so a local may not reuse one.
		if _, ok := r.table.globals[d.Name]; ok && r.currentScope.Parent != nil {
			r.fail(node.Tok, "local '%s' shadows a global variable", d.Name)
			return
		}
		r.addSymbol(d.Name, symVar, node)

	case ast.IdentifierExprNode:
		sym := r.findSymbol(d.Name)
		switch {
		case sym == nil:
			r.fail(node.Tok, "use of undeclared identifier '%s'", d.Name)
		case sym.Type == symFunc:
			r.fail(node.Tok, "function '%s' used as a value", d.Name)
		default:
			ast.Bind(node, sym.Node)
		}

	case ast.CallExprNode:
		sym := r.findSymbol(d.Callee)
		if sym == nil || sym.Type != symFunc {
			r.fail(node.Tok, "call to undeclared function '%s'", d.Callee)
			return
		}
		for _, a := range d.Args {
			r.resolve(a)
		}

	case ast.CompoundStmtNode:
		r.enterScope()
		for _, s := range d.Stmts {
			r.resolve(s)
		}
		r.exitScope()

	default:
		for _, c := range ast.Children(node) {
			r.resolve(c)
		}
	}
}

// IsGlobalVariable reports whether name is a variable declared at program scope
func (t *Table) IsGlobalVariable(name string) bool {
	_, ok := t.globals[name]
	return ok
}

func (t *Table) IsFunction(name string) bool {
	_, ok := t.funcs[name]
	return ok
}

// Globals lists global variable names in declaration order
func (t *Table) Globals() []string { return t.order }

// Functions lists function names sorted alphabetically
func (t *Table) Functions() []string {
	names := make([]string, 0, len(t.funcs))
	for name := range t.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
