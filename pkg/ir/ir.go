package ir

import (
	"fmt"
	"strings"

	"github.com/toslang/tosc/pkg/isa"
)

// Slot is the symbolic storage location assigned to one value-producing node.
// Physical registers are assigned by a later pass.
type Slot uint32

// Imm is a constant embedded in the instruction.
type Imm int64

// MemSlot indexes the module's literal-data table.
type MemSlot uint32

// Target references a basic block as a jump or call destination.
type Target struct{ Block *BasicBlock }

type Operand interface {
	isOperand()
	String() string
}

func (Slot) isOperand()    {}
func (Imm) isOperand()     {}
func (MemSlot) isOperand() {}
func (Target) isOperand()  {}

func (s Slot) String() string    { return fmt.Sprintf("s%d", uint32(s)) }
func (i Imm) String() string     { return fmt.Sprintf("#%d", int64(i)) }
func (m MemSlot) String() string { return fmt.Sprintf("m%d", uint32(m)) }
func (t Target) String() string {
	if t.Block == nil {
		return "<nil>"
	}
	return t.Block.Name()
}

// Instruction is a virtual instruction: an opcode with symbolic operands.
type Instruction struct {
	Op   isa.Opcode
	Args []Operand
}

func NewInstruction(op isa.Opcode, args ...Operand) *Instruction {
	return &Instruction{Op: op, Args: args}
}

// Def returns the slot written by the instruction, if any.
func (inst *Instruction) Def() (Slot, bool) {
	if !inst.Op.DefinesFirst() || len(inst.Args) == 0 {
		return 0, false
	}
	s, ok := inst.Args[0].(Slot)
	return s, ok
}

// Uses returns the slots read by the instruction, in operand order.
func (inst *Instruction) Uses() []Slot {
	var uses []Slot
	for i, arg := range inst.Args {
		s, ok := arg.(Slot)
		if !ok {
			continue
		}
		if i == 0 && inst.Op.DefinesFirst() && !inst.Op.IsInplace() {
			continue
		}
		uses = append(uses, s)
	}
	return uses
}

// Target returns the block referenced by a JUMP or CALL.
func (inst *Instruction) Target() (*BasicBlock, bool) {
	for _, arg := range inst.Args {
		if t, ok := arg.(Target); ok {
			return t.Block, t.Block != nil
		}
	}
	return nil, false
}

// IsTerminator reports whether control never falls past the instruction.
func (inst *Instruction) IsTerminator() bool { return inst.Op == isa.RET || inst.Op == isa.JUMP }

func (inst *Instruction) String() string {
	if len(inst.Args) == 0 {
		return inst.Op.String()
	}
	parts := make([]string, len(inst.Args))
	for i, a := range inst.Args {
		parts[i] = a.String()
	}
	return inst.Op.String() + " " + strings.Join(parts, ", ")
}
