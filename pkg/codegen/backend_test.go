package codegen

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/toslang/tosc/pkg/ast"
	"github.com/toslang/tosc/pkg/config"
	"github.com/toslang/tosc/pkg/ir"
	"github.com/toslang/tosc/pkg/isa"
	"github.com/toslang/tosc/pkg/token"
)

func ifProgram() []*ast.Node {
	return []*ast.Node{fn("main", ast.NewIfStmt(tk, ast.NewBooleanExpr(tk, true), body(varDecl("y", num(1)))))}
}

func TestListingBackend(t *testing.T) {
	cfg := config.NewConfig()
	mod, _ := mustCompile(t, cfg, ifProgram()...)
	buf, err := NewListingBackend().Generate(mod, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(mod.String(), buf.String()); diff != "" {
		t.Errorf("listing backend mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodedBackend(t *testing.T) {
	cfg := config.NewConfig()
	mod, _ := mustCompile(t, cfg, ifProgram()...)
	buf, err := NewEncodedBackend().Generate(mod, cfg)
	if err != nil {
		t.Fatal(err)
	}
	words, err := isa.ReadWords(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	want := []isa.Word{
		0,
		7,
		0x20000001, // LOAD_IMM s0, #1
		0x74000001, // TST s0, #1
		0x10000002,
		0x10000003,
		0x20010001,
		0x24020100, // MOV s2, s1
		0x10000003,
	}
	if diff := cmp.Diff(want, words); diff != "" {
		t.Errorf("encoded words mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodedBackendCallsAcrossFunctions(t *testing.T) {
	cfg := config.NewConfig()
	mod, _ := mustCompile(t, cfg,
		fn("f", ast.NewReturnStmt(tk, nil)),
		fn("main", ast.NewCallExpr(tk, "f", nil), ast.NewCallExpr(tk, "main", nil)),
	)
	buf, err := NewEncodedBackend().Generate(mod, cfg)
	if err != nil {
		t.Fatal(err)
	}
	words, _ := isa.ReadWords(buf.Bytes())
	// globals, f (RET), main (CALL f entry, CALL main entry)
	want := []isa.Word{0, 1, 0x15000000, 2, 0x14000000, 0x14000002}
	if diff := cmp.Diff(want, words); diff != "" {
		t.Errorf("encoded words mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodedBackendRejectsWideImmediate(t *testing.T) {
	cfg := config.NewConfig()
	cfg.SetWarning(config.WarnImmRange, false)
	mod, _ := mustCompile(t, cfg, varDecl("big", num(70000)))
	_, err := NewEncodedBackend().Generate(mod, cfg)
	if !errors.Is(err, ir.ErrImmRange) || !strings.HasPrefix(err.Error(), "globals: ") {
		t.Errorf("error = %v, want a globals section ErrImmRange", err)
	}
}

func qbeIR(t *testing.T, cfg *config.Config, mod *ir.Module) string {
	t.Helper()
	il, err := NewQBEBackend().(*qbeBackend).GenerateIR(mod, cfg)
	if err != nil {
		t.Fatalf("GenerateIR: %v", err)
	}
	return il
}

func TestQBEBranches(t *testing.T) {
	cfg := config.NewConfig()
	mod, _ := mustCompile(t, cfg, ifProgram()...)

	want := strings.Join([]string{
		"",
		"export function l $main() {",
		"@Block0",
		"@Block1",
		"\t%s0 =l copy 1",
		"\t%t0 =l and %s0, 1",
		"\tjnz %t0, @Block2, @Block3",
		"@Block2",
		"\t%s1 =l copy 1",
		"\t%s2 =l copy %s1",
		"\tjmp @Block3",
		"@Block3",
		"\tret 0",
		"}",
		"",
	}, "\n")
	if diff := cmp.Diff(want, qbeIR(t, cfg, mod)); diff != "" {
		t.Errorf("QBE IL mismatch (-want +got):\n%s", diff)
	}
}

func TestQBEGlobalsAndLiterals(t *testing.T) {
	cfg := config.NewConfig()
	mod, _ := mustCompile(t, cfg,
		varDecl("X", binary(token.Plus, num(2), num(3))),
		ast.NewVarDecl(tk, "greeting", ast.TypeString, ast.NewStringExpr(tk, "hi")),
		fn("main", varDecl("y", binary(token.Gt, ident("X"), num(1))), ast.NewReturnStmt(tk, nil)),
	)
	got := qbeIR(t, cfg, mod)

	for _, line := range []string{
		"data $str0 = { b \"hi\", b 0 }",
		"data $g3 = align 8 { l 0 }",
		"export function l $__tos_init() {",
		"@start",
		"\tstorel %s3, $g3",
		"\t%s4 =l copy $str0",
		"export function l $main() {",
		"\t%s3 =l loadl $g3",
		"\t%s7 =l copy %s3",
		"\t%s6 =l csgtl %s7, %s8",
	} {
		if !strings.Contains(got, line+"\n") {
			t.Errorf("QBE IL lacks %q:\n%s", line, got)
		}
	}
	if strings.Count(got, "\tret 0\n") != 2 {
		t.Errorf("want one ret per function:\n%s", got)
	}
}

func TestQBELiteralBytes(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "b 0"},
		{"hi", `b "hi", b 0`},
		{"a\"b\n", `b "a", b 34, b "b", b 10, b 0`},
		{`x\y`, `b "x", b 92, b "y", b 0`},
		{"\u2028!", `b 226, b 128, b 168, b "!", b 0`},
	}
	for _, tt := range tests {
		if got := dataItems([]byte(tt.in)); got != tt.want {
			t.Errorf("dataItems(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	cfg := config.NewConfig()
	mod, _ := mustCompile(t, cfg, ast.NewVarDecl(tk, "s", ast.TypeString, ast.NewStringExpr(tk, "tab\there")))
	if got := qbeIR(t, cfg, mod); !strings.Contains(got, "data $str0 = { b \"tab\", b 9, b \"here\", b 0 }\n") {
		t.Errorf("literal data not spelled as bytes:\n%s", got)
	}
}

func TestQBECallsAndDeadCode(t *testing.T) {
	cfg := config.NewConfig()
	cfg.SetWarning(config.WarnUnreachableCode, false)
	mod, _ := mustCompile(t, cfg,
		fn("helper"),
		fn("main", ast.NewCallExpr(tk, "helper", nil), ast.NewReturnStmt(tk, nil), varDecl("dead", num(9))),
	)
	got := qbeIR(t, cfg, mod)
	if !strings.Contains(got, "\tcall $helper()\n") {
		t.Errorf("missing call:\n%s", got)
	}
	if strings.Contains(got, "copy 9") {
		t.Errorf("code after ret was kept:\n%s", got)
	}
}

func TestQBEWordType(t *testing.T) {
	cfg := config.NewConfig()
	cfg.SetTarget("linux", "riscv", "rv32")
	mod, _ := mustCompile(t, cfg,
		varDecl("g", num(4)),
		fn("main", varDecl("r", binary(token.Lt, num(1), num(2)))),
	)
	got := qbeIR(t, cfg, mod)
	for _, line := range []string{
		"data $g1 = align 4 { w 0 }",
		"export function w $main() {",
		"\t%s2 =w csltw %s3, %s4",
	} {
		if !strings.Contains(got, line+"\n") {
			t.Errorf("QBE IL lacks %q:\n%s", line, got)
		}
	}
}

func TestQBERejectsStackOps(t *testing.T) {
	cfg := config.NewConfig()
	cfg.SetFeature(config.FeatStackConvention, true)
	mod, _ := mustCompile(t, cfg, ast.NewFunctionDecl(tk, "id", []*ast.Node{ast.NewParamVarDecl(tk, "a", ast.TypeInt)}, ast.TypeVoid, body()))
	if _, err := NewQBEBackend().(*qbeBackend).GenerateIR(mod, cfg); err == nil || !strings.Contains(err.Error(), "no QBE lowering for POP s0") {
		t.Errorf("error = %v", err)
	}
}
