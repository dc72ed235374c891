package codegen

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/toslang/tosc/pkg/config"
	"github.com/toslang/tosc/pkg/ir"
	"github.com/toslang/tosc/pkg/isa"
)

// InitFunction is the QBE function running the global sequence.
const InitFunction = "__tos_init"

type qbeBackend struct {
	out         *strings.Builder
	mod         *ir.Module
	wordType    string
	wordSize    int
	globalSlots map[ir.Slot]bool
	tempCount   int
}

// NewQBEBackend lowers the module to QBE IL. Slots become temporaries,
// slots defined by the global sequence live in data cells so functions can
// read them, and the global sequence itself becomes $__tos_init.
func NewQBEBackend() Backend { return &qbeBackend{} }

// GenerateIR returns the QBE IL text for mod without assembling it.
func (b *qbeBackend) GenerateIR(mod *ir.Module, cfg *config.Config) (string, error) {
	var qbeIRBuilder strings.Builder
	b.out = &qbeIRBuilder
	b.mod = mod
	b.wordType = cfg.WordType
	if b.wordType == "" {
		b.wordType = "l"
	}
	b.wordSize = cfg.WordSize
	if b.wordSize <= 0 {
		b.wordSize = 8
	}
	b.tempCount = 0

	b.globalSlots = make(map[ir.Slot]bool)
	for _, inst := range mod.Globals() {
		if s, ok := inst.Def(); ok {
			b.globalSlots[s] = true
		}
	}

	if err := b.gen(); err != nil {
		return "", err
	}
	return qbeIRBuilder.String(), nil
}

func (b *qbeBackend) gen() error {
	for _, lit := range b.mod.Literals() {
		fmt.Fprintf(b.out, "data $%s = { %s }\n", lit.Name, dataItems(lit.Data))
	}

	slots := make([]ir.Slot, 0, len(b.globalSlots))
	for s := range b.globalSlots {
		slots = append(slots, s)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
	for _, s := range slots {
		fmt.Fprintf(b.out, "data %s = align %d { %s 0 }\n", b.cell(s), b.wordSize, b.wordType)
	}

	if globals := b.mod.Globals(); len(globals) > 0 {
		if err := b.genFunc(InitFunction, []blockCode{{name: "start", insts: globals}}); err != nil {
			return err
		}
	}

	for _, f := range b.mod.Functions() {
		blocks := make([]blockCode, len(f.CFG.Blocks()))
		for i, blk := range f.CFG.Blocks() {
			blocks[i] = blockCode{name: blk.Name(), insts: blk.Instructions()}
		}
		if err := b.genFunc(f.Name, blocks); err != nil {
			return err
		}
	}
	return nil
}

type blockCode struct {
	name  string
	insts []*ir.Instruction
}

func (b *qbeBackend) genFunc(name string, blocks []blockCode) error {
	fmt.Fprintf(b.out, "\nexport function %s $%s() {\n", b.wordType, name)

	defined := make(map[ir.Slot]bool)
	var used []ir.Slot
	seen := make(map[ir.Slot]bool)
	for _, blk := range blocks {
		for _, inst := range blk.insts {
			if s, ok := inst.Def(); ok {
				defined[s] = true
			}
			for _, s := range inst.Uses() {
				if !seen[s] {
					seen[s] = true
					used = append(used, s)
				}
			}
		}
	}

	for i, blk := range blocks {
		fmt.Fprintf(b.out, "@%s\n", blk.name)
		if i == 0 {
			for _, s := range used {
				if !defined[s] && !b.globalSlots[s] {
					fmt.Fprintf(b.out, "\t%s =%s copy 0\n", b.temp(s), b.wordType)
				}
			}
		}
		terminated, err := b.genBlock(name, blk.insts)
		if err != nil {
			return err
		}
		if !terminated && i == len(blocks)-1 {
			b.out.WriteString("\tret 0\n")
		}
	}
	b.out.WriteString("}\n")
	return nil
}

// genBlock writes the instructions of one block and reports whether it ended
// with a jump or return. Anything after the terminator is dropped.
func (b *qbeBackend) genBlock(fn string, insts []*ir.Instruction) (bool, error) {
	for i := 0; i < len(insts); i++ {
		inst := insts[i]
		b.loadGlobals(inst)

		switch inst.Op {
		case isa.NO_OP:
		case isa.TST:
			if i+2 >= len(insts) || insts[i+1].Op != isa.JUMP || insts[i+2].Op != isa.JUMP {
				return false, fmt.Errorf("%s: TST must be followed by two jumps", fn)
			}
			imm, ok := inst.Args[1].(ir.Imm)
			if !ok {
				return false, fmt.Errorf("%s: %s has no immediate", fn, inst)
			}
			flag := b.newTemp()
			fmt.Fprintf(b.out, "\t%s =%s and %s, %d\n", flag, b.wordType, b.operand(inst.Args[0]), int64(imm))
			fmt.Fprintf(b.out, "\tjnz %s, %s, %s\n", flag, b.label(insts[i+1]), b.label(insts[i+2]))
			return true, nil
		case isa.JUMP:
			fmt.Fprintf(b.out, "\tjmp %s\n", b.label(inst))
			return true, nil
		case isa.RET:
			b.out.WriteString("\tret 0\n")
			return true, nil
		case isa.CALL:
			target, _ := inst.Target()
			callee, ok := b.mod.FunctionOfEntry(target)
			if !ok {
				return false, fmt.Errorf("%s: call target %s is not a function entry", fn, target)
			}
			fmt.Fprintf(b.out, "\tcall $%s()\n", callee.Name)
		default:
			if err := b.genValue(fn, inst); err != nil {
				return false, err
			}
		}
		b.storeGlobal(inst)
	}
	return false, nil
}

func (b *qbeBackend) genValue(fn string, inst *ir.Instruction) error {
	dst, ok := inst.Def()
	if !ok {
		return fmt.Errorf("%s: no QBE lowering for %s", fn, inst)
	}
	res := fmt.Sprintf("\t%s =%s ", b.temp(dst), b.wordType)

	switch inst.Op {
	case isa.LOAD_IMM, isa.MOV:
		fmt.Fprintf(b.out, "%scopy %s\n", res, b.operand(inst.Args[1]))
		return nil
	case isa.NOT:
		fmt.Fprintf(b.out, "%sxor %s, -1\n", res, b.operand(inst.Args[1]))
		return nil
	case isa.NEG:
		fmt.Fprintf(b.out, "%sneg %s\n", res, b.operand(inst.Args[1]))
		return nil
	}

	op, ok := b.formatOp(inst.Op)
	if !ok {
		return fmt.Errorf("%s: no QBE lowering for %s", fn, inst)
	}
	if inst.Op.IsInplace() {
		fmt.Fprintf(b.out, "%s%s %s, %s\n", res, op, b.temp(dst), b.operand(inst.Args[1]))
		return nil
	}
	fmt.Fprintf(b.out, "%s%s %s, %s\n", res, op, b.operand(inst.Args[1]), b.operand(inst.Args[2]))
	return nil
}

func (b *qbeBackend) formatOp(op isa.Opcode) (string, bool) {
	switch op {
	case isa.ADD, isa.ADD_IMM: return "add", true
	case isa.SUB, isa.SUB_IMM: return "sub", true
	case isa.MUL, isa.MUL_IMM: return "mul", true
	case isa.DIV, isa.DIV_IMM: return "div", true
	case isa.MOD, isa.MOD_IMM: return "rem", true
	case isa.AND, isa.AND_IMM: return "and", true
	case isa.OR, isa.OR_IMM: return "or", true
	case isa.XOR, isa.XOR_IMM: return "xor", true
	case isa.SHIFT: return "shl", true
	case isa.SHIFT_R: return "sar", true
	case isa.CMP, isa.CMP_IMM: return "cslt" + b.wordType, true
	case isa.CMP_GT: return "csgt" + b.wordType, true
	default: return "", false
	}
}

// loadGlobals refreshes every global slot read by inst from its data cell.
func (b *qbeBackend) loadGlobals(inst *ir.Instruction) {
	for _, s := range inst.Uses() {
		if b.globalSlots[s] {
			fmt.Fprintf(b.out, "\t%s =%s load%s %s\n", b.temp(s), b.wordType, b.wordType, b.cell(s))
		}
	}
}

func (b *qbeBackend) storeGlobal(inst *ir.Instruction) {
	if s, ok := inst.Def(); ok && b.globalSlots[s] {
		fmt.Fprintf(b.out, "\tstore%s %s, %s\n", b.wordType, b.temp(s), b.cell(s))
	}
}

// dataItems spells bytes as QBE data items with a trailing NUL. Printable
// ASCII goes into quoted strings; every other byte, quotes and backslashes
// included, is a numeric b item.
func dataItems(data []byte) string {
	var items []string
	var run strings.Builder
	flush := func() {
		if run.Len() > 0 {
			items = append(items, "b \""+run.String()+"\"")
			run.Reset()
		}
	}
	for _, c := range data {
		if c >= 0x20 && c < 0x7f && c != '"' && c != '\\' {
			run.WriteByte(c)
			continue
		}
		flush()
		items = append(items, "b "+strconv.Itoa(int(c)))
	}
	flush()
	return strings.Join(append(items, "b 0"), ", ")
}

func (b *qbeBackend) operand(arg ir.Operand) string {
	switch v := arg.(type) {
	case ir.Slot:
		return b.temp(v)
	case ir.Imm:
		return strconv.FormatInt(int64(v), 10)
	case ir.MemSlot:
		if lit, ok := b.mod.Literal(v); ok {
			return "$" + lit.Name
		}
	}
	return arg.String()
}

func (b *qbeBackend) label(inst *ir.Instruction) string {
	target, _ := inst.Target()
	return "@" + target.Name()
}

func (b *qbeBackend) temp(s ir.Slot) string { return "%s" + strconv.FormatUint(uint64(s), 10) }
func (b *qbeBackend) cell(s ir.Slot) string { return "$g" + strconv.FormatUint(uint64(s), 10) }

func (b *qbeBackend) newTemp() string {
	t := fmt.Sprintf("%%t%d", b.tempCount)
	b.tempCount++
	return t
}
