package ir

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

var ErrDuplicateFunction = errors.New("duplicate function")

type Function struct {
	Name string
	CFG  *CFG
}

// Literal is one entry of the static literal-data table.
type Literal struct {
	Slot MemSlot
	Name string
	Data []byte
}

// Module is the unit handed to the loader: every function's CFG, the
// global-initialization sequence (run once before any function) and the
// literal-data table.
type Module struct {
	funcs    []*Function
	byName   map[string]*Function
	globals  []*Instruction
	literals []*Literal
	interned map[uint64][]MemSlot
	namer    *Namer
}

func NewModule() *Module {
	return &Module{
		byName:   make(map[string]*Function),
		interned: make(map[uint64][]MemSlot),
		namer:    NewNamer(),
	}
}

// NewCFG returns an empty graph sharing the module's block naming context.
func (m *Module) NewCFG() *CFG { return NewCFG(m.namer) }

func (m *Module) Namer() *Namer { return m.namer }

func (m *Module) InsertFunction(name string, cfg *CFG) error {
	if _, ok := m.byName[name]; ok {
		return fmt.Errorf("%w '%s'", ErrDuplicateFunction, name)
	}
	f := &Function{Name: name, CFG: cfg}
	m.funcs = append(m.funcs, f)
	m.byName[name] = f
	return nil
}

func (m *Module) GetFunction(name string) (*CFG, bool) {
	f, ok := m.byName[name]
	if !ok {
		return nil, false
	}
	return f.CFG, true
}

// Functions lists functions in insertion order.
func (m *Module) Functions() []*Function { return m.funcs }

// FunctionOfEntry returns the function whose entry block is b.
func (m *Module) FunctionOfEntry(b *BasicBlock) (*Function, bool) {
	for _, f := range m.funcs {
		if f.CFG.Entry() == b {
			return f, true
		}
	}
	return nil, false
}

func (m *Module) InsertGlobalVar(inst *Instruction) { m.globals = append(m.globals, inst) }

func (m *Module) Globals() []*Instruction { return m.globals }

// InsertArrayVariable registers literal data and returns its slot.
func (m *Module) InsertArrayVariable(name string, data []byte) MemSlot {
	slot := MemSlot(len(m.literals))
	buf := make([]byte, len(data))
	copy(buf, data)
	m.literals = append(m.literals, &Literal{Slot: slot, Name: name, Data: buf})
	h := xxhash.Sum64(buf)
	m.interned[h] = append(m.interned[h], slot)
	return slot
}

// InternArrayVariable returns the slot of an existing literal with identical
// content, registering a new one under name otherwise.
func (m *Module) InternArrayVariable(name string, data []byte) MemSlot {
	for _, slot := range m.interned[xxhash.Sum64(data)] {
		if bytes.Equal(m.literals[slot].Data, data) {
			return slot
		}
	}
	return m.InsertArrayVariable(name, data)
}

func (m *Module) Literals() []*Literal { return m.literals }

func (m *Module) Literal(slot MemSlot) (*Literal, bool) {
	if int(slot) >= len(m.literals) {
		return nil, false
	}
	return m.literals[slot], true
}

// Fingerprint hashes the module listing. Two runs over the same tree produce
// the same fingerprint.
func (m *Module) Fingerprint() uint64 {
	var buf bytes.Buffer
	Fprint(&buf, m)
	return xxhash.Sum64(buf.Bytes())
}

func (m *Module) String() string {
	var buf bytes.Buffer
	Fprint(&buf, m)
	return buf.String()
}
