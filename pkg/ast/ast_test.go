package ast

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/toslang/tosc/pkg/token"
)

var tok = token.Token{Line: 1, Column: 1}

func sampleProgram() (*Node, *Node, *Node) {
	x := NewVarDecl(tok, "x", TypeInt, NewNumberExpr(tok, 1))
	ref := NewIdentifierExpr(tok, "x")
	cond := NewBinaryExpr(tok, token.Lt, ref, NewNumberExpr(tok, 10))
	body := NewCompoundStmt(tok, []*Node{NewPrintStmt(tok, NewStringExpr(tok, "hi"))})
	loop := NewWhileStmt(tok, cond, body)
	fn := NewFunctionDecl(tok, "main", []*Node{NewParamVarDecl(tok, "argc", TypeInt)}, TypeVoid,
		NewCompoundStmt(tok, []*Node{loop, NewReturnStmt(tok, nil)}))
	return NewProgram(tok, []*Node{x, fn}), x, ref
}

func TestWalkOrder(t *testing.T) {
	prog, _, _ := sampleProgram()
	var got []string
	Walk(prog, func(n *Node) bool {
		got = append(got, n.Type.String())
		return true
	})
	want := []string{
		"Program", "VarDecl", "NumberExpr",
		"FunctionDecl", "ParamVarDecl", "CompoundStmt",
		"WhileStmt", "BinaryExpr", "IdentifierExpr", "NumberExpr",
		"CompoundStmt", "PrintStmt", "StringExpr", "ReturnStmt",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("walk order mismatch (-want +got):\n%s", diff)
	}
}

func TestWalkSkipsChildren(t *testing.T) {
	prog, _, _ := sampleProgram()
	count := 0
	Walk(prog, func(n *Node) bool {
		count++
		return n.Type != FunctionDecl
	})
	if count != 4 {
		t.Errorf("visited %d nodes, want 4", count)
	}
}

func TestParentLinks(t *testing.T) {
	prog, _, _ := sampleProgram()
	Walk(prog, func(n *Node) bool {
		for _, c := range Children(n) {
			if c.Parent != n {
				t.Errorf("%s child %s has parent %v", n.Type, c.Type, c.Parent)
			}
		}
		return true
	})
	if prog.Parent != nil {
		t.Error("program must be the root")
	}
}

func TestBindAndNames(t *testing.T) {
	_, x, ref := sampleProgram()
	Bind(ref, x)
	if ref.Data.(IdentifierExprNode).Decl != x {
		t.Error("Bind did not record the declaration")
	}
	if DeclName(ref) != "x" || DeclName(x) != "x" || DeclName(NewCallExpr(tok, "f", nil)) != "f" {
		t.Error("DeclName returned the wrong name")
	}
	if DeclName(NewNumberExpr(tok, 1)) != "" {
		t.Error("literals have no name")
	}
}

func TestClassification(t *testing.T) {
	for nt := Program; nt <= WhileStmt; nt++ {
		wantExpr := nt >= BinaryExpr && nt <= StringExpr
		if nt.IsExpr() != wantExpr {
			t.Errorf("%s.IsExpr() = %v", nt, nt.IsExpr())
		}
	}
	if !VarDecl.IsDecl() || Program.IsDecl() || CallExpr.IsDecl() {
		t.Error("IsDecl misclassifies")
	}
	if NodeType(99).String() != "NodeType(99)" {
		t.Errorf("unknown kind prints %q", NodeType(99).String())
	}
}

func TestParseType(t *testing.T) {
	for _, typ := range []TosType{TypeInt, TypeBool, TypeString, TypeVoid} {
		got, ok := ParseType(typ.String())
		if !ok || got != typ {
			t.Errorf("ParseType(%q) = %v, %v", typ.String(), got, ok)
		}
	}
	if _, ok := ParseType("Float"); ok {
		t.Error("Float is not a TosLang type")
	}
}
