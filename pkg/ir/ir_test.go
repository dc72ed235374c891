package ir

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/toslang/tosc/pkg/isa"
)

func blockNames(blocks []*BasicBlock) []string {
	names := make([]string, len(blocks))
	for i, b := range blocks {
		names[i] = b.Name()
	}
	return names
}

func TestBlockNamingPerModule(t *testing.T) {
	for run := 0; run < 2; run++ {
		m := NewModule()
		f, g := m.NewCFG(), m.NewCFG()
		f.CreateNewBlock()
		g.CreateNewBlock()
		f.CreateNewBlock()
		named := g.CreateNamedBlock("exit")
		g.CreateNewBlock()

		got := append(blockNames(f.Blocks()), blockNames(g.Blocks())...)
		want := []string{"Block0", "Block2", "Block1", "exit", "Block3"}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("run %d: names mismatch (-want +got):\n%s", run, diff)
		}
		if named.Index() != 1 || named.CFG() != g {
			t.Errorf("named block index/cfg = %d/%p", named.Index(), named.CFG())
		}
		if m.Namer().Count() != 4 {
			t.Errorf("namer count = %d, want 4", m.Namer().Count())
		}
	}
}

func TestCFGEntryAndBlocks(t *testing.T) {
	g := NewCFG(nil)
	if g.Entry() != nil {
		t.Fatal("empty graph must have no entry")
	}
	load := NewInstruction(isa.LOAD_IMM, Slot(0), Imm(1))
	entry := g.CreateNewBlock(load)
	second := g.CreateNewBlock()
	if g.Entry() != entry || g.Block(1) != second || g.Block(2) != nil || g.Block(-1) != nil {
		t.Error("block lookup by handle is wrong")
	}
	if g.Len() != 2 || g.InstructionCount() != 1 {
		t.Errorf("Len/InstructionCount = %d/%d", g.Len(), g.InstructionCount())
	}
	if entry.Instructions()[0] != load {
		t.Error("initial instructions were not kept")
	}
}

func TestBranchesAreDescriptive(t *testing.T) {
	g := NewCFG(nil)
	a, b := g.CreateNewBlock(), g.CreateNewBlock()
	a.InsertBranch(b)
	b.InsertBranch(a)
	b.InsertBranch(a)

	if len(a.Instructions()) != 0 {
		t.Error("InsertBranch must not emit instructions")
	}
	if len(b.Successors()) != 2 || !b.HasSuccessor(a) || a.HasSuccessor(a) {
		t.Errorf("successors of b = %v", blockNames(b.Successors()))
	}
	if a.Terminated() {
		t.Error("empty block is not terminated")
	}
	b.InsertInstruction(NewInstruction(isa.JUMP, Target{a}))
	if !b.Terminated() {
		t.Error("block ending in JUMP is terminated")
	}
}

func TestInstructionDefUse(t *testing.T) {
	tests := []struct {
		inst *Instruction
		def  int
		uses []Slot
	}{
		{NewInstruction(isa.LOAD_IMM, Slot(3), Imm(7)), 3, nil},
		{NewInstruction(isa.MOV, Slot(4), Slot(3)), 4, []Slot{3}},
		{NewInstruction(isa.ADD, Slot(5), Slot(1), Slot(2)), 5, []Slot{1, 2}},
		{NewInstruction(isa.ADD_IMM, Slot(5), Imm(1)), 5, []Slot{5}},
		{NewInstruction(isa.TST, Slot(6), Imm(1)), -1, []Slot{6}},
		{NewInstruction(isa.RET), -1, nil},
	}
	for _, tt := range tests {
		def, ok := tt.inst.Def()
		if (tt.def >= 0) != ok || (ok && int(def) != tt.def) {
			t.Errorf("%s: Def() = %v, %v; want %d", tt.inst, def, ok, tt.def)
		}
		if diff := cmp.Diff(tt.uses, tt.inst.Uses()); diff != "" {
			t.Errorf("%s: Uses mismatch (-want +got):\n%s", tt.inst, diff)
		}
	}
}

func TestInstructionString(t *testing.T) {
	g := NewCFG(nil)
	b := g.CreateNewBlock()
	tests := map[string]*Instruction{
		"ADD s2, s0, s1":   NewInstruction(isa.ADD, Slot(2), Slot(0), Slot(1)),
		"LOAD_IMM s0, #-3": NewInstruction(isa.LOAD_IMM, Slot(0), Imm(-3)),
		"LOAD_IMM s1, m0":  NewInstruction(isa.LOAD_IMM, Slot(1), MemSlot(0)),
		"JUMP Block0":      NewInstruction(isa.JUMP, Target{b}),
		"RET":              NewInstruction(isa.RET),
	}
	for want, inst := range tests {
		if got := inst.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}

func TestModuleFunctions(t *testing.T) {
	m := NewModule()
	mainCFG, helperCFG := m.NewCFG(), m.NewCFG()
	mainCFG.CreateNewBlock()
	helperCFG.CreateNewBlock()

	if err := m.InsertFunction("main", mainCFG); err != nil {
		t.Fatal(err)
	}
	if err := m.InsertFunction("helper", helperCFG); err != nil {
		t.Fatal(err)
	}
	if err := m.InsertFunction("main", m.NewCFG()); !errors.Is(err, ErrDuplicateFunction) {
		t.Errorf("duplicate insert error = %v, want ErrDuplicateFunction", err)
	}

	if got, ok := m.GetFunction("helper"); !ok || got != helperCFG {
		t.Error("GetFunction(helper) failed")
	}
	if _, ok := m.GetFunction("missing"); ok {
		t.Error("GetFunction(missing) should fail")
	}
	var names []string
	for _, f := range m.Functions() {
		names = append(names, f.Name)
	}
	if diff := cmp.Diff([]string{"main", "helper"}, names); diff != "" {
		t.Errorf("function order mismatch (-want +got):\n%s", diff)
	}
	if f, ok := m.FunctionOfEntry(helperCFG.Entry()); !ok || f.Name != "helper" {
		t.Error("FunctionOfEntry(helper entry) failed")
	}
}

func TestLiteralTable(t *testing.T) {
	m := NewModule()
	a := m.InsertArrayVariable("str0", []byte("hello"))
	b := m.InsertArrayVariable("str1", []byte("hello"))
	if a == b {
		t.Error("InsertArrayVariable must always register a new slot")
	}
	c := m.InternArrayVariable("str2", []byte("hello"))
	if c != a {
		t.Errorf("InternArrayVariable = %s, want the first slot %s", c, a)
	}
	d := m.InternArrayVariable("str3", []byte("world"))
	if d != 2 {
		t.Errorf("new interned literal slot = %s, want m2", d)
	}

	data := []byte("mutable")
	e := m.InsertArrayVariable("str4", data)
	data[0] = 'M'
	if lit, _ := m.Literal(e); string(lit.Data) != "mutable" {
		t.Errorf("literal data aliases the caller's buffer: %q", lit.Data)
	}
	if _, ok := m.Literal(99); ok {
		t.Error("Literal(99) should not exist")
	}
}

func TestListingAndFingerprint(t *testing.T) {
	build := func() *Module {
		m := NewModule()
		slot := m.InsertArrayVariable("str0", []byte("hi"))
		m.InsertGlobalVar(NewInstruction(isa.LOAD_IMM, Slot(0), MemSlot(slot)))
		g := m.NewCFG()
		entry := g.CreateNewBlock()
		body := g.CreateNewBlock(NewInstruction(isa.RET))
		entry.InsertBranch(body)
		m.InsertFunction("main", g)
		return m
	}

	want := strings.Join([]string{
		"literals:",
		`    m0 str0 = "hi"`,
		"globals:",
		"    LOAD_IMM s0, m0",
		"fn main:",
		"  Block0: -> Block1",
		"  Block1:",
		"    RET",
		"",
	}, "\n")
	m := build()
	if diff := cmp.Diff(want, m.String()); diff != "" {
		t.Errorf("listing mismatch (-want +got):\n%s", diff)
	}
	if m.Fingerprint() != build().Fingerprint() {
		t.Error("fingerprint is not reproducible across runs")
	}
	m.InsertGlobalVar(NewInstruction(isa.RET))
	if m.Fingerprint() == build().Fingerprint() {
		t.Error("fingerprint did not change with the module")
	}
}

func TestReachableAndDot(t *testing.T) {
	m := NewModule()
	callee := m.NewCFG()
	callee.CreateNewBlock(NewInstruction(isa.RET))

	g := m.NewCFG()
	entry := g.CreateNewBlock()
	body := g.CreateNewBlock(NewInstruction(isa.CALL, Target{callee.Entry()}), NewInstruction(isa.RET))
	orphan := g.CreateNewBlock(NewInstruction(isa.RET))
	entry.InsertBranch(body)

	reach := g.Reachable()
	if !reach[entry] || !reach[body] || reach[orphan] || reach[callee.Entry()] {
		t.Errorf("reachable set wrong: %v", reach)
	}

	var buf bytes.Buffer
	if err := g.WriteDot(&buf, "main"); err != nil {
		t.Fatal(err)
	}
	dot := buf.String()
	for _, frag := range []string{`digraph "main"`, `"Block1" -> "Block2";`, `"Block2" -> "Block0" [style=dashed];`} {
		if !strings.Contains(dot, frag) {
			t.Errorf("dot output lacks %q:\n%s", frag, dot)
		}
	}
}

func TestEncodeInstruction(t *testing.T) {
	g := NewCFG(nil)
	b0, b1 := g.CreateNewBlock(), g.CreateNewBlock()
	resolve := func(b *BasicBlock) (uint16, bool) { return uint16(b.Index() * 16), b.CFG() == g }

	tests := []struct {
		inst *Instruction
		want isa.Word
	}{
		{NewInstruction(isa.ADD, Slot(3), Slot(1), Slot(2)), 0x52030102},
		{NewInstruction(isa.LOAD_IMM, Slot(1), Imm(-1)), 0x2001FFFF},
		{NewInstruction(isa.LOAD_IMM, Slot(2), MemSlot(5)), 0x20020005},
		{NewInstruction(isa.TST, Slot(4), Imm(1)), 0x74040001},
		{NewInstruction(isa.JUMP, Target{b1}), 0x10000010},
		{NewInstruction(isa.CALL, Target{b0}), 0x14000000},
		{NewInstruction(isa.RET), 0x15000000},
	}
	for _, tt := range tests {
		got, err := tt.inst.Encode(resolve)
		if err != nil {
			t.Errorf("%s: %v", tt.inst, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s encodes to %s, want %s", tt.inst, got, tt.want)
		}
	}
}

func TestEncodeErrors(t *testing.T) {
	g := NewCFG(nil)
	b := g.CreateNewBlock()
	tests := []struct {
		inst    *Instruction
		resolve Resolver
		want    error
	}{
		{NewInstruction(isa.JUMP, Target{b}), nil, ErrUnresolvedTarget},
		{NewInstruction(isa.JUMP, Target{b}), func(*BasicBlock) (uint16, bool) { return 0, false }, ErrUnresolvedTarget},
		{NewInstruction(isa.MOV, Slot(256), Slot(0)), nil, ErrSlotRange},
		{NewInstruction(isa.LOAD_IMM, Slot(0), Imm(70000)), nil, ErrImmRange},
		{NewInstruction(isa.ADD, Slot(0), Slot(1)), nil, ErrOperandMismatch},
		{NewInstruction(isa.RET, Slot(0)), nil, ErrOperandMismatch},
		{NewInstruction(isa.UNKNOWN), nil, isa.ErrUnknownOpcode},
	}
	for _, tt := range tests {
		if _, err := tt.inst.Encode(tt.resolve); !errors.Is(err, tt.want) {
			t.Errorf("%s: error = %v, want %v", tt.inst, err, tt.want)
		}
	}
}
