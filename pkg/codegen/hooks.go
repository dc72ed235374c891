package codegen

import (
	"fmt"

	"github.com/toslang/tosc/pkg/ir"
	"github.com/toslang/tosc/pkg/isa"
)

// Emitter appends instructions at the selector's insertion point: the
// current block, or the global sequence outside of any function.
type Emitter interface {
	Emit(inst *ir.Instruction)
}

// Convention moves values across a call boundary. Each method runs with the
// insertion point where the values live: params at the callee's entry, args
// right before the CALL, the result right after it and the return value
// right before the RET.
type Convention interface {
	FetchParams(e Emitter, params []ir.Slot) error
	PassArgs(e Emitter, args []ir.Slot) error
	CallResult(e Emitter, dst ir.Slot) error
	ReturnValue(e Emitter, value ir.Slot) error
}

// IOLowering lowers the print and scan statements. The machine has no I/O
// opcode, so there is nothing to fall back on.
type IOLowering interface {
	Print(e Emitter, value ir.Slot) error
	Scan(e Emitter, target ir.Slot) error
}

type noConvention struct{}

func (noConvention) FetchParams(Emitter, []ir.Slot) error {
	return fmt.Errorf("%w: function parameters", ErrUnsupported)
}
func (noConvention) PassArgs(Emitter, []ir.Slot) error {
	return fmt.Errorf("%w: call arguments", ErrUnsupported)
}
func (noConvention) CallResult(Emitter, ir.Slot) error {
	return fmt.Errorf("%w: call result", ErrUnsupported)
}
func (noConvention) ReturnValue(Emitter, ir.Slot) error {
	return fmt.Errorf("%w: return value", ErrUnsupported)
}

type noIO struct{}

func (noIO) Print(Emitter, ir.Slot) error { return fmt.Errorf("%w: print statement", ErrUnsupported) }
func (noIO) Scan(Emitter, ir.Slot) error  { return fmt.Errorf("%w: scan statement", ErrUnsupported) }

// StackConvention passes every value on the machine stack. The caller pushes
// arguments left to right and the callee pops them in reverse; a returned
// value is pushed before RET and popped by the caller after CALL.
type StackConvention struct{}

func (StackConvention) FetchParams(e Emitter, params []ir.Slot) error {
	for i := len(params) - 1; i >= 0; i-- {
		e.Emit(ir.NewInstruction(isa.POP, params[i]))
	}
	return nil
}

func (StackConvention) PassArgs(e Emitter, args []ir.Slot) error {
	for _, a := range args {
		e.Emit(ir.NewInstruction(isa.PUSH, a))
	}
	return nil
}

func (StackConvention) CallResult(e Emitter, dst ir.Slot) error {
	e.Emit(ir.NewInstruction(isa.POP, dst))
	return nil
}

func (StackConvention) ReturnValue(e Emitter, value ir.Slot) error {
	e.Emit(ir.NewInstruction(isa.PUSH, value))
	return nil
}
