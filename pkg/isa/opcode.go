// Package isa describes the 32-bit instruction word executed by the Tostitos
// machine: the opcode set, the per-opcode classification table and the
// packing of operand fields.
package isa

import "fmt"

// Opcode is the most-significant byte of an instruction word.
type Opcode uint8

const (
	NO_OP    Opcode = 0x00
	JUMP     Opcode = 0x10
	CALL     Opcode = 0x14
	RET      Opcode = 0x15
	LOAD_IMM Opcode = 0x20
	MOV      Opcode = 0x24
	STORE    Opcode = 0x30
	PUSH     Opcode = 0x40
	POP      Opcode = 0x41
	PUSHALL  Opcode = 0x42
	POPALL   Opcode = 0x43
	ADD_IMM  Opcode = 0x50
	ADD      Opcode = 0x52
	SUB_IMM  Opcode = 0x60
	SUB      Opcode = 0x62
	CMP_IMM  Opcode = 0x63
	CMP      Opcode = 0x64
	CMP_GT   Opcode = 0x65
	AND_IMM  Opcode = 0x70
	AND      Opcode = 0x72
	TST      Opcode = 0x74
	OR_IMM   Opcode = 0x80
	OR       Opcode = 0x82
	XOR_IMM  Opcode = 0x90
	XOR      Opcode = 0x92
	MUL_IMM  Opcode = 0xA0
	MUL      Opcode = 0xA2
	DIV_IMM  Opcode = 0xB0
	DIV      Opcode = 0xB2
	SHIFT    Opcode = 0xC0
	SHIFT_R  Opcode = 0xC1
	MOD_IMM  Opcode = 0xD0
	MOD      Opcode = 0xD2
	NOT_IMM  Opcode = 0xE0
	NOT      Opcode = 0xE2
	NEG_IMM  Opcode = 0xF0
	NEG      Opcode = 0xF2
	UNKNOWN  Opcode = 0xFF
)

// Form is the layout of the three bytes following the opcode.
type Form uint8

const (
	// FormNone: all operand bytes are zero.
	FormNone Form = iota
	// FormReg: up to three 8-bit register fields.
	FormReg
	// FormRegImm: one 8-bit register field and a 16-bit immediate.
	FormRegImm
	// FormAddr: a 16-bit address in the immediate position, no register.
	FormAddr
)

func (f Form) String() string {
	switch f {
	case FormNone:
		return "none"
	case FormReg:
		return "reg"
	case FormRegImm:
		return "reg-imm"
	case FormAddr:
		return "addr"
	}
	return fmt.Sprintf("Form(%d)", uint8(f))
}

// Info is the static classification of one opcode.
type Info struct {
	Name string
	Form Form
	// Operands counts the register fields in use.
	Operands int
	// Arith marks ALU operations.
	Arith bool
	// Inplace marks operations whose first register is both source and destination.
	Inplace bool
	// Defines marks operations that write their first register.
	Defines bool
}

var opcodeTable = map[Opcode]Info{
	NO_OP:    {Name: "NO_OP", Form: FormNone},
	JUMP:     {Name: "JUMP", Form: FormAddr},
	CALL:     {Name: "CALL", Form: FormAddr},
	RET:      {Name: "RET", Form: FormNone},
	LOAD_IMM: {Name: "LOAD_IMM", Form: FormRegImm, Operands: 1, Defines: true},
	MOV:      {Name: "MOV", Form: FormReg, Operands: 2, Defines: true},
	STORE:    {Name: "STORE", Form: FormReg, Operands: 2},
	PUSH:     {Name: "PUSH", Form: FormReg, Operands: 1},
	POP:      {Name: "POP", Form: FormReg, Operands: 1, Defines: true},
	PUSHALL:  {Name: "PUSHALL", Form: FormNone},
	POPALL:   {Name: "POPALL", Form: FormNone},

	ADD_IMM: {Name: "ADD_IMM", Form: FormRegImm, Operands: 1, Arith: true, Inplace: true, Defines: true},
	ADD:     {Name: "ADD", Form: FormReg, Operands: 3, Arith: true, Defines: true},
	SUB_IMM: {Name: "SUB_IMM", Form: FormRegImm, Operands: 1, Arith: true, Inplace: true, Defines: true},
	SUB:     {Name: "SUB", Form: FormReg, Operands: 3, Arith: true, Defines: true},
	CMP_IMM: {Name: "CMP_IMM", Form: FormRegImm, Operands: 1, Arith: true, Inplace: true, Defines: true},
	CMP:     {Name: "CMP", Form: FormReg, Operands: 3, Arith: true, Defines: true},
	CMP_GT:  {Name: "CMP_GT", Form: FormReg, Operands: 3, Arith: true, Defines: true},
	AND_IMM: {Name: "AND_IMM", Form: FormRegImm, Operands: 1, Arith: true, Inplace: true, Defines: true},
	AND:     {Name: "AND", Form: FormReg, Operands: 3, Arith: true, Defines: true},
	TST:     {Name: "TST", Form: FormRegImm, Operands: 1},
	OR_IMM:  {Name: "OR_IMM", Form: FormRegImm, Operands: 1, Arith: true, Inplace: true, Defines: true},
	OR:      {Name: "OR", Form: FormReg, Operands: 3, Arith: true, Defines: true},
	XOR_IMM: {Name: "XOR_IMM", Form: FormRegImm, Operands: 1, Arith: true, Inplace: true, Defines: true},
	XOR:     {Name: "XOR", Form: FormReg, Operands: 3, Arith: true, Defines: true},
	MUL_IMM: {Name: "MUL_IMM", Form: FormRegImm, Operands: 1, Arith: true, Inplace: true, Defines: true},
	MUL:     {Name: "MUL", Form: FormReg, Operands: 3, Arith: true, Defines: true},
	DIV_IMM: {Name: "DIV_IMM", Form: FormRegImm, Operands: 1, Arith: true, Inplace: true, Defines: true},
	DIV:     {Name: "DIV", Form: FormReg, Operands: 3, Arith: true, Defines: true},
	SHIFT:   {Name: "SHIFT", Form: FormReg, Operands: 3, Arith: true, Defines: true},
	SHIFT_R: {Name: "SHIFT_R", Form: FormReg, Operands: 3, Arith: true, Defines: true},
	MOD_IMM: {Name: "MOD_IMM", Form: FormRegImm, Operands: 1, Arith: true, Inplace: true, Defines: true},
	MOD:     {Name: "MOD", Form: FormReg, Operands: 3, Arith: true, Defines: true},
	NOT_IMM: {Name: "NOT_IMM", Form: FormRegImm, Operands: 1, Arith: true, Defines: true},
	NOT:     {Name: "NOT", Form: FormReg, Operands: 2, Arith: true, Defines: true},
	NEG_IMM: {Name: "NEG_IMM", Form: FormRegImm, Operands: 1, Arith: true, Defines: true},
	NEG:     {Name: "NEG", Form: FormReg, Operands: 2, Arith: true, Defines: true},
}

var opcodeByName = make(map[string]Opcode, len(opcodeTable))

func init() {
	for op, info := range opcodeTable {
		opcodeByName[info.Name] = op
	}
}

// Lookup returns the classification of op. UNKNOWN and unassigned values report false.
func Lookup(op Opcode) (Info, bool) {
	info, ok := opcodeTable[op]
	return info, ok
}

// ParseOpcode maps a mnemonic such as "ADD_IMM" back to its opcode.
func ParseOpcode(name string) (Opcode, bool) {
	op, ok := opcodeByName[name]
	return op, ok
}

// Opcodes returns every assigned opcode in ascending numeric order.
func Opcodes() []Opcode {
	ops := make([]Opcode, 0, len(opcodeTable))
	for v := 0; v < 256; v++ {
		if _, ok := opcodeTable[Opcode(v)]; ok {
			ops = append(ops, Opcode(v))
		}
	}
	return ops
}

func (op Opcode) Valid() bool {
	_, ok := opcodeTable[op]
	return ok
}

func (op Opcode) UsesImmediate() bool {
	f := opcodeTable[op].Form
	return f == FormRegImm || f == FormAddr
}

func (op Opcode) OperandCount() int  { return opcodeTable[op].Operands }
func (op Opcode) IsArithmetic() bool { return opcodeTable[op].Arith }
func (op Opcode) IsInplace() bool    { return opcodeTable[op].Inplace }
func (op Opcode) DefinesFirst() bool { return opcodeTable[op].Defines }
func (op Opcode) Form() Form         { return opcodeTable[op].Form }

// IsBranch reports whether op transfers control to a block target.
func (op Opcode) IsBranch() bool { return op == JUMP || op == CALL }

func (op Opcode) String() string {
	if info, ok := opcodeTable[op]; ok {
		return info.Name
	}
	if op == UNKNOWN {
		return "UNKNOWN"
	}
	return fmt.Sprintf("Opcode(0x%02X)", uint8(op))
}
