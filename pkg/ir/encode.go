package ir

import (
	"errors"
	"fmt"

	"github.com/toslang/tosc/pkg/isa"
)

var (
	ErrUnresolvedTarget = errors.New("unresolved block target")
	ErrSlotRange        = errors.New("slot does not fit a register field")
	ErrImmRange         = errors.New("immediate does not fit 16 bits")
	ErrOperandMismatch  = errors.New("operands do not match opcode form")
)

// Resolver maps a block to its address. Address assignment belongs to the
// linker; the encoder only consumes the result.
type Resolver func(b *BasicBlock) (uint16, bool)

// FitsImmediate reports whether v can be packed into a 16-bit immediate,
// either as a signed or an unsigned value.
func FitsImmediate(v int64) bool { return v >= -0x8000 && v <= 0xFFFF }

// Fields converts the instruction into word fields. Slots must already fit
// an 8-bit register field.
func (inst *Instruction) Fields(resolve Resolver) (isa.Fields, error) {
	info, ok := isa.Lookup(inst.Op)
	if !ok {
		return isa.Fields{}, fmt.Errorf("%w: 0x%02X", isa.ErrUnknownOpcode, uint8(inst.Op))
	}
	f := isa.Fields{Op: inst.Op}

	switch info.Form {
	case isa.FormNone:
		if len(inst.Args) != 0 {
			return f, fmt.Errorf("%w: %s", ErrOperandMismatch, inst)
		}
	case isa.FormReg:
		if len(inst.Args) != info.Operands {
			return f, fmt.Errorf("%w: %s wants %d register(s)", ErrOperandMismatch, inst, info.Operands)
		}
		regs := make([]uint8, 3)
		for i, arg := range inst.Args {
			r, err := register(arg)
			if err != nil {
				return f, fmt.Errorf("%s: %w", inst, err)
			}
			regs[i] = r
		}
		f.A, f.B, f.C = regs[0], regs[1], regs[2]
	case isa.FormRegImm:
		if len(inst.Args) != 2 {
			return f, fmt.Errorf("%w: %s wants a register and an immediate", ErrOperandMismatch, inst)
		}
		r, err := register(inst.Args[0])
		if err != nil {
			return f, fmt.Errorf("%s: %w", inst, err)
		}
		f.A = r
		switch v := inst.Args[1].(type) {
		case Imm:
			if !FitsImmediate(int64(v)) {
				return f, fmt.Errorf("%s: %w", inst, ErrImmRange)
			}
			f.Imm = uint16(int64(v))
		case MemSlot:
			if uint32(v) > 0xFFFF {
				return f, fmt.Errorf("%s: %w", inst, ErrImmRange)
			}
			f.Imm = uint16(v)
		default:
			return f, fmt.Errorf("%w: %s", ErrOperandMismatch, inst)
		}
	case isa.FormAddr:
		target, ok := inst.Target()
		if !ok || len(inst.Args) != 1 {
			return f, fmt.Errorf("%w: %s wants one block target", ErrOperandMismatch, inst)
		}
		if resolve == nil {
			return f, fmt.Errorf("%w: %s", ErrUnresolvedTarget, target.Name())
		}
		addr, ok := resolve(target)
		if !ok {
			return f, fmt.Errorf("%w: %s", ErrUnresolvedTarget, target.Name())
		}
		f.Imm = addr
	}
	return f, nil
}

func (inst *Instruction) Encode(resolve Resolver) (isa.Word, error) {
	f, err := inst.Fields(resolve)
	if err != nil {
		return 0, err
	}
	return isa.Encode(f)
}

func register(arg Operand) (uint8, error) {
	s, ok := arg.(Slot)
	if !ok {
		return 0, fmt.Errorf("%w: %s is not a slot", ErrOperandMismatch, arg)
	}
	if s > 0xFF {
		return 0, fmt.Errorf("%w: %s", ErrSlotRange, s)
	}
	return uint8(s), nil
}
