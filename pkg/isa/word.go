package isa

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var (
	ErrUnknownOpcode = errors.New("unknown opcode")
	ErrOperandRange  = errors.New("operand out of range")
)

// Word is one packed 32-bit instruction:
//
//	register form:  [op:8][a:8][b:8][c:8]
//	immediate form: [op:8][a:8][imm:16]
//	address form:   [op:8][0:8][addr:16]
type Word uint32

func (w Word) Opcode() Opcode { return Opcode(w >> 24) }
func (w Word) A() uint8       { return uint8(w >> 16) }
func (w Word) B() uint8       { return uint8(w >> 8) }
func (w Word) C() uint8       { return uint8(w) }
func (w Word) Imm() uint16    { return uint16(w) }

func (w Word) String() string { return fmt.Sprintf("%08X", uint32(w)) }

// Fields are the decoded parts of a word. Only the fields used by the
// opcode's form are meaningful.
type Fields struct {
	Op      Opcode
	A, B, C uint8
	Imm     uint16
}

func (f Fields) String() string {
	switch f.Op.Form() {
	case FormReg:
		regs := []uint8{f.A, f.B, f.C}[:f.Op.OperandCount()]
		s := f.Op.String()
		for i, r := range regs {
			if i == 0 {
				s += " "
			} else {
				s += ", "
			}
			s += fmt.Sprintf("r%d", r)
		}
		return s
	case FormRegImm:
		return fmt.Sprintf("%s r%d, #%d", f.Op, f.A, f.Imm)
	case FormAddr:
		return fmt.Sprintf("%s 0x%04X", f.Op, f.Imm)
	}
	return f.Op.String()
}

// Encode packs f into a word. Register fields beyond the opcode's operand
// count and an immediate on a register-form opcode are rejected so that
// Decode(Encode(f)) always returns f.
func Encode(f Fields) (Word, error) {
	info, ok := Lookup(f.Op)
	if !ok {
		return 0, fmt.Errorf("%w: 0x%02X", ErrUnknownOpcode, uint8(f.Op))
	}

	regs := [3]uint8{f.A, f.B, f.C}
	switch info.Form {
	case FormNone:
		if f.A|f.B|f.C != 0 || f.Imm != 0 {
			return 0, fmt.Errorf("%w: %s takes no operands", ErrOperandRange, info.Name)
		}
		return Word(uint32(f.Op) << 24), nil
	case FormReg:
		for i := info.Operands; i < 3; i++ {
			if regs[i] != 0 {
				return 0, fmt.Errorf("%w: %s uses %d register(s)", ErrOperandRange, info.Name, info.Operands)
			}
		}
		if f.Imm != 0 {
			return 0, fmt.Errorf("%w: %s has no immediate field", ErrOperandRange, info.Name)
		}
		return Word(uint32(f.Op)<<24 | uint32(f.A)<<16 | uint32(f.B)<<8 | uint32(f.C)), nil
	case FormRegImm, FormAddr:
		if f.B|f.C != 0 || (info.Form == FormAddr && f.A != 0) {
			return 0, fmt.Errorf("%w: %s packs a 16-bit immediate", ErrOperandRange, info.Name)
		}
		return Word(uint32(f.Op)<<24 | uint32(f.A)<<16 | uint32(f.Imm)), nil
	}
	return 0, fmt.Errorf("%w: 0x%02X", ErrUnknownOpcode, uint8(f.Op))
}

// MustEncode is Encode for statically known operands.
func MustEncode(f Fields) Word {
	w, err := Encode(f)
	if err != nil {
		panic(err)
	}
	return w
}

// Decode splits w according to the form of its opcode.
func Decode(w Word) (Fields, error) {
	op := w.Opcode()
	info, ok := Lookup(op)
	if !ok {
		return Fields{}, fmt.Errorf("%w: 0x%02X in word %s", ErrUnknownOpcode, uint8(op), w)
	}

	f := Fields{Op: op}
	switch info.Form {
	case FormReg:
		if info.Operands > 0 {
			f.A = w.A()
		}
		if info.Operands > 1 {
			f.B = w.B()
		}
		if info.Operands > 2 {
			f.C = w.C()
		}
	case FormRegImm:
		f.A, f.Imm = w.A(), w.Imm()
	case FormAddr:
		f.Imm = w.Imm()
	}
	return f, nil
}

// WriteWords writes words to w in big-endian order, opcode byte first.
func WriteWords(w io.Writer, words []Word) error {
	buf := make([]byte, 4*len(words))
	for i, word := range words {
		binary.BigEndian.PutUint32(buf[i*4:], uint32(word))
	}
	_, err := w.Write(buf)
	return err
}

// ReadWords is the inverse of WriteWords.
func ReadWords(data []byte) ([]Word, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("instruction stream length %d is not a multiple of 4", len(data))
	}
	words := make([]Word, len(data)/4)
	for i := range words {
		words[i] = Word(binary.BigEndian.Uint32(data[i*4:]))
	}
	return words, nil
}
