// Package ast defines the types used to represent the TosLang syntax tree
// consumed by the instruction selector
package ast

import (
	"fmt"

	"github.com/toslang/tosc/pkg/token"
)

// NodeType defines the kind of a node in the tree
type NodeType int

// Node types enum
const (
	// Declarations
	Program NodeType = iota
	FunctionDecl
	ParamVarDecl
	VarDecl

	// Expressions
	BinaryExpr
	BooleanExpr
	CallExpr
	IdentifierExpr
	NumberExpr
	StringExpr

	// Statements
	CompoundStmt
	IfStmt
	PrintStmt
	ReturnStmt
	ScanStmt
	WhileStmt
)

var nodeTypeNames = [...]string{
	Program:        "Program",
	FunctionDecl:   "FunctionDecl",
	ParamVarDecl:   "ParamVarDecl",
	VarDecl:        "VarDecl",
	BinaryExpr:     "BinaryExpr",
	BooleanExpr:    "BooleanExpr",
	CallExpr:       "CallExpr",
	IdentifierExpr: "IdentifierExpr",
	NumberExpr:     "NumberExpr",
	StringExpr:     "StringExpr",
	CompoundStmt:   "CompoundStmt",
	IfStmt:         "IfStmt",
	PrintStmt:      "PrintStmt",
	ReturnStmt:     "ReturnStmt",
	ScanStmt:       "ScanStmt",
	WhileStmt:      "WhileStmt",
}

func (t NodeType) String() string {
	if t >= 0 && int(t) < len(nodeTypeNames) {
		return nodeTypeNames[t]
	}
	return fmt.Sprintf("NodeType(%d)", int(t))
}

// IsExpr reports whether nodes of this kind produce a value
func (t NodeType) IsExpr() bool { return t >= BinaryExpr && t <= StringExpr }

// IsDecl reports whether nodes of this kind introduce a name
func (t NodeType) IsDecl() bool { return t >= FunctionDecl && t <= VarDecl }

// Node represents a node in the syntax tree
type Node struct {
	Type   NodeType
	Tok    token.Token
	Parent *Node
	Data   interface{}
}

// TosType is the static type of a TosLang value
type TosType int

const (
	TypeUnknown TosType = iota
	TypeInt
	TypeBool
	TypeString
	TypeVoid
)

func (t TosType) String() string {
	switch t {
	case TypeInt:
		return "Int"
	case TypeBool:
		return "Bool"
	case TypeString:
		return "String"
	case TypeVoid:
		return "Void"
	}
	return "unknown"
}

// ParseType maps a type keyword to its TosType
func ParseType(name string) (TosType, bool) {
	switch name {
	case "Int":
		return TypeInt, true
	case "Bool":
		return TypeBool, true
	case "String":
		return TypeString, true
	case "Void":
		return TypeVoid, true
	}
	return TypeUnknown, false
}

// --- Node Data Structs ---
type ProgramNode struct{ Decls []*Node }
type FunctionDeclNode struct {
	Name       string
	Params     []*Node
	ReturnType TosType
	Body       *Node
}
type ParamVarDeclNode struct{ Name string; Type TosType }
type VarDeclNode struct {
	Name string
	Type TosType
	Init *Node
}
type BinaryExprNode struct{ Op token.Type; Left, Right *Node }
type BooleanExprNode struct{ Value bool }
type CallExprNode struct{ Callee string; Args []*Node }

// IdentifierExprNode references a declaration. Decl is bound by symbol
// resolution and points at the VarDecl or ParamVarDecl node.
type IdentifierExprNode struct {
	Name string
	Decl *Node
}
type NumberExprNode struct{ Value int64 }
type StringExprNode struct{ Value string }
type CompoundStmtNode struct{ Stmts []*Node }
type IfStmtNode struct{ Cond, Body *Node }
type PrintStmtNode struct{ Expr *Node }
type ReturnStmtNode struct{ Expr *Node }
type ScanStmtNode struct{ Target *Node }
type WhileStmtNode struct{ Cond, Body *Node }

// --- Node Constructors ---

func newNode(tok token.Token, nodeType NodeType, data interface{}, children ...*Node) *Node {
	node := &Node{Type: nodeType, Tok: tok, Data: data}
	for _, child := range children {
		if child != nil {
			child.Parent = node
		}
	}
	return node
}

func NewProgram(tok token.Token, decls []*Node) *Node {
	return newNode(tok, Program, ProgramNode{Decls: decls}, decls...)
}
func NewFunctionDecl(tok token.Token, name string, params []*Node, returnType TosType, body *Node) *Node {
	node := newNode(tok, FunctionDecl, FunctionDeclNode{
		Name: name, Params: params, ReturnType: returnType, Body: body,
	}, body)
	for _, p := range params {
		p.Parent = node
	}
	return node
}
func NewParamVarDecl(tok token.Token, name string, typ TosType) *Node {
	return newNode(tok, ParamVarDecl, ParamVarDeclNode{Name: name, Type: typ})
}
func NewVarDecl(tok token.Token, name string, typ TosType, init *Node) *Node {
	return newNode(tok, VarDecl, VarDeclNode{Name: name, Type: typ, Init: init}, init)
}
func NewBinaryExpr(tok token.Token, op token.Type, left, right *Node) *Node {
	return newNode(tok, BinaryExpr, BinaryExprNode{Op: op, Left: left, Right: right}, left, right)
}
func NewBooleanExpr(tok token.Token, value bool) *Node {
	return newNode(tok, BooleanExpr, BooleanExprNode{Value: value})
}
func NewCallExpr(tok token.Token, callee string, args []*Node) *Node {
	return newNode(tok, CallExpr, CallExprNode{Callee: callee, Args: args}, args...)
}
func NewIdentifierExpr(tok token.Token, name string) *Node {
	return newNode(tok, IdentifierExpr, IdentifierExprNode{Name: name})
}
func NewNumberExpr(tok token.Token, value int64) *Node {
	return newNode(tok, NumberExpr, NumberExprNode{Value: value})
}
func NewStringExpr(tok token.Token, value string) *Node {
	return newNode(tok, StringExpr, StringExprNode{Value: value})
}
func NewCompoundStmt(tok token.Token, stmts []*Node) *Node {
	return newNode(tok, CompoundStmt, CompoundStmtNode{Stmts: stmts}, stmts...)
}
func NewIfStmt(tok token.Token, cond, body *Node) *Node {
	return newNode(tok, IfStmt, IfStmtNode{Cond: cond, Body: body}, cond, body)
}
func NewPrintStmt(tok token.Token, expr *Node) *Node {
	return newNode(tok, PrintStmt, PrintStmtNode{Expr: expr}, expr)
}
func NewReturnStmt(tok token.Token, expr *Node) *Node {
	return newNode(tok, ReturnStmt, ReturnStmtNode{Expr: expr}, expr)
}
func NewScanStmt(tok token.Token, target *Node) *Node {
	return newNode(tok, ScanStmt, ScanStmtNode{Target: target}, target)
}
func NewWhileStmt(tok token.Token, cond, body *Node) *Node {
	return newNode(tok, WhileStmt, WhileStmtNode{Cond: cond, Body: body}, cond, body)
}

// Bind records the declaration an identifier refers to
func Bind(ident, decl *Node) {
	d := ident.Data.(IdentifierExprNode)
	d.Decl = decl
	ident.Data = d
}

// DeclName returns the name introduced by a declaration node, or referenced
// by an identifier or call
func DeclName(node *Node) string {
	switch d := node.Data.(type) {
	case FunctionDeclNode:
		return d.Name
	case ParamVarDeclNode:
		return d.Name
	case VarDeclNode:
		return d.Name
	case IdentifierExprNode:
		return d.Name
	case CallExprNode:
		return d.Callee
	}
	return ""
}

// Children returns the direct children of node in source order
func Children(node *Node) []*Node {
	if node == nil {
		return nil
	}
	var kids []*Node
	add := func(nodes ...*Node) {
		for _, n := range nodes {
			if n != nil {
				kids = append(kids, n)
			}
		}
	}
	switch d := node.Data.(type) {
	case ProgramNode:
		add(d.Decls...)
	case FunctionDeclNode:
		add(d.Params...)
		add(d.Body)
	case VarDeclNode:
		add(d.Init)
	case BinaryExprNode:
		add(d.Left, d.Right)
	case CallExprNode:
		add(d.Args...)
	case CompoundStmtNode:
		add(d.Stmts...)
	case IfStmtNode:
		add(d.Cond, d.Body)
	case PrintStmtNode:
		add(d.Expr)
	case ReturnStmtNode:
		add(d.Expr)
	case ScanStmtNode:
		add(d.Target)
	case WhileStmtNode:
		add(d.Cond, d.Body)
	}
	return kids
}

// Walk visits node and its descendants in pre-order. Returning false from
// visit skips the node's children.
func Walk(node *Node, visit func(*Node) bool) {
	if node == nil || !visit(node) {
		return
	}
	for _, child := range Children(node) {
		Walk(child, visit)
	}
}
