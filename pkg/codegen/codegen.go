package codegen

import (
	"fmt"

	"github.com/toslang/tosc/pkg/ast"
	"github.com/toslang/tosc/pkg/config"
	"github.com/toslang/tosc/pkg/ir"
	"github.com/toslang/tosc/pkg/isa"
	"github.com/toslang/tosc/pkg/token"
	"github.com/toslang/tosc/pkg/util"
)

// SymbolOracle answers the scope questions the selector cannot answer from
// the tree alone. *symtab.Table implements it.
type SymbolOracle interface {
	IsGlobalVariable(name string) bool
}

// Context is the instruction selector. One Context may run many times; each
// Run starts from a clean state.
type Context struct {
	cfg        *config.Config
	convention Convention
	io         IOLowering

	oracle       SymbolOracle
	mod          *ir.Module
	slots        *SlotAllocator
	currentCFG   *ir.CFG
	currentBlock *ir.BasicBlock
	signatures   map[string]*ast.Node
}

func NewContext(cfg *config.Config) *Context {
	ctx := &Context{cfg: cfg, convention: noConvention{}, io: noIO{}}
	if cfg.IsFeatureEnabled(config.FeatStackConvention) {
		ctx.convention = StackConvention{}
	}
	return ctx
}

// SetConvention replaces the argument passing convention.
func (ctx *Context) SetConvention(c Convention) { ctx.convention = c }

// SetIO installs the lowering used for print and scan statements.
func (ctx *Context) SetIO(io IOLowering) { ctx.io = io }

// Slots exposes the allocator of the last run.
func (ctx *Context) Slots() *SlotAllocator { return ctx.slots }

// Run lowers a symbol-resolved program into a fresh module. The tree is
// assumed to be type-correct; a broken invariant aborts the run with an
// ErrInternal diagnostic and no module.
func (ctx *Context) Run(root *ast.Node, oracle SymbolOracle) (mod *ir.Module, err error) {
	ctx.oracle = oracle
	ctx.mod = ir.NewModule()
	ctx.slots = NewSlotAllocator()
	ctx.currentCFG, ctx.currentBlock = nil, nil
	ctx.signatures = make(map[string]*ast.Node)

	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			mod, err = nil, b.diag
			ctx.currentCFG, ctx.currentBlock = nil, nil
		}
	}()

	if root == nil {
		ctx.internal(token.Token{FileIndex: -1}, "no program to lower")
	}
	if root.Type != ast.Program {
		ctx.internal(root.Tok, "expected Program at the root, got %s", root.Type)
	}
	decls := nodeData[ast.ProgramNode](ctx, root).Decls

	if ctx.cfg.IsFeatureEnabled(config.FeatForwardCalls) {
		for _, d := range decls {
			if d.Type == ast.FunctionDecl {
				ctx.declareFunction(d)
			}
		}
	}

	for _, d := range decls {
		switch d.Type {
		case ast.FunctionDecl:
			ctx.lowerFunction(d)
		case ast.VarDecl:
			ctx.lowerVarDecl(d)
		default:
			ctx.internal(d.Tok, "top-level %s is not a declaration", d.Type)
		}
	}
	return ctx.mod, nil
}

// nodeData returns the payload of node, failing the run when it does not
// match the node's kind.
func nodeData[T any](ctx *Context, node *ast.Node) T {
	d, ok := node.Data.(T)
	if !ok {
		ctx.internal(node.Tok, "%s node carries %T", node.Type, node.Data)
	}
	return d
}

// Emit appends inst at the insertion point.
func (ctx *Context) Emit(inst *ir.Instruction) {
	if ctx.currentBlock == nil {
		ctx.mod.InsertGlobalVar(inst)
		return
	}
	ctx.currentBlock.InsertInstruction(inst)
}

func (ctx *Context) emit(op isa.Opcode, args ...ir.Operand) {
	ctx.Emit(ir.NewInstruction(op, args...))
}

func (ctx *Context) allocate(node *ast.Node) ir.Slot {
	s, err := ctx.slots.Allocate(node)
	ctx.check(node.Tok, err)
	return s
}

func (ctx *Context) lookup(tok token.Token, node *ast.Node) ir.Slot {
	s, err := ctx.slots.Lookup(node)
	ctx.check(tok, err)
	return s
}

// newCurrentBlock opens a block in the current CFG and makes it current.
// The previous block gets a fallthrough edge unless it already ends in a
// RET or JUMP.
func (ctx *Context) newCurrentBlock(tok token.Token) *ir.BasicBlock {
	if ctx.currentCFG == nil {
		ctx.internal(tok, "block outside of a function")
	}
	b := ctx.currentCFG.CreateNewBlock()
	if ctx.currentBlock != nil && !ctx.currentBlock.Terminated() {
		ctx.currentBlock.InsertBranch(b)
	}
	ctx.currentBlock = b
	return b
}

// jump emits an explicit JUMP from -> to and keeps the successor list in
// step with it. A JUMP behind a RET is dead and adds no edge.
func jump(from, to *ir.BasicBlock) {
	insts := from.Instructions()
	dead := len(insts) > 0 && insts[len(insts)-1].Op == isa.RET
	from.InsertInstruction(ir.NewInstruction(isa.JUMP, ir.Target{Block: to}))
	if !dead && !from.HasSuccessor(to) {
		from.InsertBranch(to)
	}
}

// declareFunction creates the CFG and entry block of a function and
// registers it in the module.
func (ctx *Context) declareFunction(node *ast.Node) *ir.CFG {
	d := nodeData[ast.FunctionDeclNode](ctx, node)
	g := ctx.mod.NewCFG()
	g.CreateNewBlock()
	ctx.check(node.Tok, ctx.mod.InsertFunction(d.Name, g))
	ctx.signatures[d.Name] = node
	return g
}

func (ctx *Context) lowerFunction(node *ast.Node) {
	d := nodeData[ast.FunctionDeclNode](ctx, node)

	g, ok := ctx.mod.GetFunction(d.Name)
	if !ok || ctx.signatures[d.Name] != node {
		g = ctx.declareFunction(node)
	}
	ctx.currentCFG, ctx.currentBlock = g, g.Entry()

	if len(d.Params) > 0 {
		params := make([]ir.Slot, len(d.Params))
		for i, p := range d.Params {
			if p.Type != ast.ParamVarDecl {
				ctx.internal(p.Tok, "parameter of '%s' is a %s", d.Name, p.Type)
			}
			params[i] = ctx.allocate(p)
		}
		ctx.check(node.Tok, ctx.convention.FetchParams(ctx, params))
	}

	if d.Body == nil || d.Body.Type != ast.CompoundStmt {
		ctx.internal(node.Tok, "function '%s' has no body", d.Name)
	}
	ctx.lowerCompound(d.Body)
	ctx.currentCFG, ctx.currentBlock = nil, nil
}

func (ctx *Context) lowerVarDecl(node *ast.Node) {
	d := nodeData[ast.VarDeclNode](ctx, node)
	if d.Init == nil {
		return
	}

	src := ctx.lowerExpr(d.Init)
	dst := ctx.allocate(node)
	inst := ir.NewInstruction(isa.MOV, dst, src)

	if ctx.oracle.IsGlobalVariable(d.Name) {
		ctx.mod.InsertGlobalVar(inst)
		return
	}
	if ctx.currentBlock == nil {
		ctx.internal(node.Tok, "local variable '%s' outside of a function", d.Name)
	}
	ctx.currentBlock.InsertInstruction(inst)
}

// lowerCompound opens a new current block for the statements and returns it.
func (ctx *Context) lowerCompound(node *ast.Node) *ir.BasicBlock {
	if node.Type != ast.CompoundStmt {
		ctx.internal(node.Tok, "expected CompoundStmt, got %s", node.Type)
	}
	entry := ctx.newCurrentBlock(node.Tok)

	returned := false
	for _, stmt := range nodeData[ast.CompoundStmtNode](ctx, node).Stmts {
		if returned {
			util.Warn(ctx.cfg, config.WarnUnreachableCode, stmt.Tok, "Statement is unreachable after return.")
			returned = false
		}
		ctx.lowerStmt(stmt)
		if stmt.Type == ast.ReturnStmt {
			returned = true
		}
	}
	return entry
}

func (ctx *Context) lowerStmt(node *ast.Node) {
	switch d := node.Data.(type) {
	case ast.VarDeclNode:
		ctx.lowerVarDecl(node)

	case ast.CompoundStmtNode:
		ctx.lowerCompound(node)

	case ast.IfStmtNode:
		ctx.lowerExpr(d.Cond)
		cond := ctx.currentBlock
		thenBegin := ctx.lowerCompound(d.Body)
		thenEnd := ctx.currentBlock
		exit := ctx.newCurrentBlock(node.Tok)

		cond.InsertInstruction(ir.NewInstruction(isa.TST, ctx.lookup(node.Tok, d.Cond), ir.Imm(1)))
		jump(cond, thenBegin)
		jump(cond, exit)
		jump(thenEnd, exit)

	case ast.WhileStmtNode:
		header := ctx.newCurrentBlock(node.Tok)
		ctx.lowerExpr(d.Cond)
		bodyBegin := ctx.lowerCompound(d.Body)
		jump(ctx.currentBlock, header)
		exit := ctx.newCurrentBlock(node.Tok)

		header.InsertInstruction(ir.NewInstruction(isa.TST, ctx.lookup(node.Tok, d.Cond), ir.Imm(1)))
		jump(header, bodyBegin)
		jump(header, exit)

	case ast.ReturnStmtNode:
		if ctx.currentBlock == nil {
			ctx.internal(node.Tok, "return outside of a function")
		}
		if d.Expr != nil {
			value := ctx.lowerExpr(d.Expr)
			ctx.check(node.Tok, ctx.convention.ReturnValue(ctx, value))
		}
		ctx.emit(isa.RET)

	case ast.PrintStmtNode:
		value := ctx.lowerExpr(d.Expr)
		ctx.check(node.Tok, ctx.io.Print(ctx, value))

	case ast.ScanStmtNode:
		ctx.check(node.Tok, ctx.io.Scan(ctx, ctx.scanTarget(node, d.Target)))

	default:
		if !node.Type.IsExpr() {
			ctx.internal(node.Tok, "%s is not a statement", node.Type)
		}
		if node.Type != ast.CallExpr {
			util.Warn(ctx.cfg, config.WarnPedantic, node.Tok, "Expression result unused.")
		}
		ctx.lowerExpr(node)
	}
}

// scanTarget returns the slot of the variable a scan writes to. A variable
// declared without an initializer gets its slot here.
func (ctx *Context) scanTarget(stmt, target *ast.Node) ir.Slot {
	if target == nil || target.Type != ast.IdentifierExpr {
		ctx.internal(stmt.Tok, "scan target is not a variable")
	}
	decl := nodeData[ast.IdentifierExprNode](ctx, target).Decl
	if decl == nil {
		ctx.internal(target.Tok, "identifier '%s' is not bound to a declaration", ast.DeclName(target))
	}
	if s, err := ctx.slots.Lookup(decl); err == nil {
		return s
	}
	return ctx.allocate(decl)
}

// lowerExpr allocates the node's own slot before lowering any operand and
// returns it.
func (ctx *Context) lowerExpr(node *ast.Node) ir.Slot {
	if node == nil {
		ctx.internal(token.Token{FileIndex: -1}, "missing expression")
	}
	if !node.Type.IsExpr() {
		ctx.internal(node.Tok, "%s is not an expression", node.Type)
	}
	slot := ctx.allocate(node)

	switch d := node.Data.(type) {
	case ast.NumberExprNode:
		if !ir.FitsImmediate(d.Value) {
			util.Warn(ctx.cfg, config.WarnImmRange, node.Tok, "Literal %d does not fit a 16-bit immediate.", d.Value)
		}
		ctx.emit(isa.LOAD_IMM, slot, ir.Imm(d.Value))

	case ast.BooleanExprNode:
		var v ir.Imm
		if d.Value {
			v = 1
		}
		ctx.emit(isa.LOAD_IMM, slot, v)

	case ast.IdentifierExprNode:
		if d.Decl == nil {
			ctx.internal(node.Tok, "identifier '%s' is not bound to a declaration", d.Name)
		}
		ctx.emit(isa.MOV, slot, ctx.lookup(node.Tok, d.Decl))

	case ast.StringExprNode:
		ctx.emit(isa.LOAD_IMM, slot, ctx.addLiteral(d.Value))

	case ast.BinaryExprNode:
		lhs := ctx.lowerExpr(d.Left)
		rhs := ctx.lowerExpr(d.Right)
		ctx.emit(ctx.binaryOpcode(node.Tok, d.Op), slot, lhs, rhs)

	case ast.CallExprNode:
		ctx.lowerCall(node, d, slot)

	default:
		ctx.internal(node.Tok, "no lowering for %s", node.Type)
	}
	return slot
}

func (ctx *Context) lowerCall(node *ast.Node, d ast.CallExprNode, slot ir.Slot) {
	callee, ok := ctx.mod.GetFunction(d.Callee)
	if !ok {
		ctx.internal(node.Tok, "call to '%s' before it was lowered", d.Callee)
	}

	if len(d.Args) > 0 {
		args := make([]ir.Slot, len(d.Args))
		for i, a := range d.Args {
			args[i] = ctx.lowerExpr(a)
		}
		ctx.check(node.Tok, ctx.convention.PassArgs(ctx, args))
	}

	ctx.emit(isa.CALL, ir.Target{Block: callee.Entry()})

	if sig, ok := ctx.signatures[d.Callee]; ok && nodeData[ast.FunctionDeclNode](ctx, sig).ReturnType != ast.TypeVoid {
		ctx.check(node.Tok, ctx.convention.CallResult(ctx, slot))
	}
}

// addLiteral registers s in the literal table. Identical literals share a
// slot unless dedup-literals is off.
func (ctx *Context) addLiteral(s string) ir.MemSlot {
	name := fmt.Sprintf("str%d", len(ctx.mod.Literals()))
	if ctx.cfg.IsFeatureEnabled(config.FeatDedupLiterals) {
		return ctx.mod.InternArrayVariable(name, []byte(s))
	}
	return ctx.mod.InsertArrayVariable(name, []byte(s))
}

var binaryOpcodes = map[token.Type]isa.Opcode{
	token.Plus:    isa.ADD,
	token.Minus:   isa.SUB,
	token.Star:    isa.MUL,
	token.Slash:   isa.DIV,
	token.Rem:     isa.MOD,
	token.AndInt:  isa.AND,
	token.AndBool: isa.AND,
	token.OrInt:   isa.OR,
	token.OrBool:  isa.OR,
	token.Xor:     isa.XOR,
	token.Shl:     isa.SHIFT,
	token.Shr:     isa.SHIFT_R,
	token.Lt:      isa.CMP,
	token.Gt:      isa.CMP_GT,
}

func (ctx *Context) binaryOpcode(tok token.Token, op token.Type) isa.Opcode {
	opcode, ok := binaryOpcodes[op]
	if !ok {
		ctx.internal(tok, "unknown binary operator %s", op)
	}
	switch op {
	case token.Lt, token.Gt, token.Shl, token.Shr:
		if ctx.cfg.IsFeatureEnabled(config.FeatDirectionalOps) {
			break
		}
		util.Warn(ctx.cfg, config.WarnAmbiguousOp, tok, "'%s' shares its opcode with the opposite direction.", op)
		if opcode == isa.SHIFT_R {
			opcode = isa.SHIFT
		} else if opcode == isa.CMP_GT {
			opcode = isa.CMP
		}
	}
	return opcode
}
