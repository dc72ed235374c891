package ir

import (
	"fmt"
	"io"
	"strconv"
)

// Namer hands out "Block<N>" names. One Namer serves one compilation, so
// names are reproducible across runs.
type Namer struct{ next int }

func NewNamer() *Namer { return &Namer{} }

func (n *Namer) Next() string {
	name := "Block" + strconv.Itoa(n.next)
	n.next++
	return name
}

// Count reports how many names were handed out.
func (n *Namer) Count() int { return n.next }

// BasicBlock is a straight-line instruction sequence. Once entered, every
// instruction runs in order until a terminating RET or JUMP. The successor
// list is descriptive only; control transfer is always an explicit
// instruction, except that an unterminated block falls through to the block
// created right after it.
type BasicBlock struct {
	name         string
	index        int
	instructions []*Instruction
	successors   []*BasicBlock
	cfg          *CFG
}

func (b *BasicBlock) Name() string { return b.name }

// Index is the block's position within its CFG.
func (b *BasicBlock) Index() int { return b.index }

func (b *BasicBlock) CFG() *CFG { return b.cfg }

func (b *BasicBlock) Instructions() []*Instruction { return b.instructions }

func (b *BasicBlock) Successors() []*BasicBlock { return b.successors }

func (b *BasicBlock) InsertInstruction(inst *Instruction) {
	b.instructions = append(b.instructions, inst)
}

// InsertBranch records an outgoing edge. It does not emit any instruction.
func (b *BasicBlock) InsertBranch(target *BasicBlock) {
	b.successors = append(b.successors, target)
}

func (b *BasicBlock) HasSuccessor(target *BasicBlock) bool {
	for _, s := range b.successors {
		if s == target {
			return true
		}
	}
	return false
}

// Terminated reports whether the last instruction is a RET or JUMP.
func (b *BasicBlock) Terminated() bool {
	n := len(b.instructions)
	return n > 0 && b.instructions[n-1].IsTerminator()
}

func (b *BasicBlock) String() string { return b.name }

// CFG owns the blocks of one function. Blocks are never removed; the first
// block created is the entry.
type CFG struct {
	blocks []*BasicBlock
	namer  *Namer
}

// NewCFG creates an empty graph drawing block names from namer.
func NewCFG(namer *Namer) *CFG {
	if namer == nil {
		namer = NewNamer()
	}
	return &CFG{namer: namer}
}

func (g *CFG) CreateNewBlock(insts ...*Instruction) *BasicBlock {
	return g.CreateNamedBlock("", insts...)
}

// CreateNamedBlock is CreateNewBlock with an explicit name; an empty name
// draws the next generated one.
func (g *CFG) CreateNamedBlock(name string, insts ...*Instruction) *BasicBlock {
	if name == "" {
		name = g.namer.Next()
	}
	b := &BasicBlock{name: name, index: len(g.blocks), cfg: g}
	b.instructions = append(b.instructions, insts...)
	g.blocks = append(g.blocks, b)
	return b
}

func (g *CFG) Entry() *BasicBlock {
	if len(g.blocks) == 0 {
		return nil
	}
	return g.blocks[0]
}

func (g *CFG) Blocks() []*BasicBlock { return g.blocks }

func (g *CFG) Block(i int) *BasicBlock {
	if i < 0 || i >= len(g.blocks) {
		return nil
	}
	return g.blocks[i]
}

func (g *CFG) Len() int { return len(g.blocks) }

// InstructionCount sums the instructions of all blocks.
func (g *CFG) InstructionCount() int {
	n := 0
	for _, b := range g.blocks {
		n += len(b.instructions)
	}
	return n
}

// Reachable returns the blocks reachable from the entry through recorded
// successor edges, jump/call targets inside the same graph, and fallthrough.
func (g *CFG) Reachable() map[*BasicBlock]bool {
	seen := make(map[*BasicBlock]bool)
	var visit func(b *BasicBlock)
	visit = func(b *BasicBlock) {
		if b == nil || b.cfg != g || seen[b] {
			return
		}
		seen[b] = true
		for _, s := range b.successors {
			visit(s)
		}
		for _, inst := range b.instructions {
			if t, ok := inst.Target(); ok && inst.Op.IsBranch() {
				visit(t)
			}
		}
		if !b.Terminated() {
			visit(g.Block(b.index + 1))
		}
	}
	visit(g.Entry())
	return seen
}

// WriteDot renders the graph in Graphviz format. Solid edges are successor
// edges, dashed edges are calls into other graphs.
func (g *CFG) WriteDot(w io.Writer, name string) error {
	if _, err := fmt.Fprintf(w, "digraph %q {\n\tnode [shape=box fontname=monospace];\n", name); err != nil {
		return err
	}
	for _, b := range g.blocks {
		label := b.name + "\\l"
		for _, inst := range b.instructions {
			label += inst.String() + "\\l"
		}
		fmt.Fprintf(w, "\t%q [label=\"%s\"];\n", b.name, label)
	}
	for _, b := range g.blocks {
		for _, s := range b.successors {
			fmt.Fprintf(w, "\t%q -> %q;\n", b.name, s.name)
		}
		for _, inst := range b.instructions {
			if t, ok := inst.Target(); ok && t.cfg != g {
				fmt.Fprintf(w, "\t%q -> %q [style=dashed];\n", b.name, t.name)
			}
		}
	}
	_, err := fmt.Fprintln(w, "}")
	return err
}
