package ir

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// Fprint writes a textual listing of m: literals, the global sequence, then
// each function's blocks in creation order.
func Fprint(w io.Writer, m *Module) error {
	bw := bufio.NewWriter(w)

	if len(m.literals) > 0 {
		bw.WriteString("literals:\n")
		for _, lit := range m.literals {
			bw.WriteString("    " + lit.Slot.String() + " " + lit.Name + " = " + strconv.Quote(string(lit.Data)) + "\n")
		}
	}

	if len(m.globals) > 0 {
		bw.WriteString("globals:\n")
		for _, inst := range m.globals {
			bw.WriteString("    " + inst.String() + "\n")
		}
	}

	for _, f := range m.funcs {
		bw.WriteString("fn " + f.Name + ":\n")
		for _, b := range f.CFG.Blocks() {
			writeBlock(bw, b)
		}
	}
	return bw.Flush()
}

func writeBlock(bw *bufio.Writer, b *BasicBlock) {
	bw.WriteString("  " + b.Name() + ":")
	if len(b.successors) > 0 {
		names := make([]string, len(b.successors))
		for i, s := range b.successors {
			names[i] = s.Name()
		}
		bw.WriteString(" -> " + strings.Join(names, ", "))
	}
	bw.WriteString("\n")
	for _, inst := range b.instructions {
		bw.WriteString("    " + inst.String() + "\n")
	}
}
