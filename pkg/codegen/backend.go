package codegen

import (
	"bytes"
	"fmt"

	"github.com/toslang/tosc/pkg/config"
	"github.com/toslang/tosc/pkg/ir"
	"github.com/toslang/tosc/pkg/isa"
)

// Backend is the interface that all code generation backends must implement.
type Backend interface {
	// Generate takes a lowered module and a configuration, and produces the
	// target representation as a byte buffer.
	Generate(mod *ir.Module, cfg *config.Config) (*bytes.Buffer, error)
}

type listingBackend struct{}

// NewListingBackend prints the module as text, the same listing ir.Fprint
// produces.
func NewListingBackend() Backend { return listingBackend{} }

func (listingBackend) Generate(mod *ir.Module, cfg *config.Config) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	if err := ir.Fprint(&buf, mod); err != nil {
		return nil, err
	}
	return &buf, nil
}

type encodedBackend struct{}

// NewEncodedBackend packs the module into 32-bit words. The stream is a
// sequence of sections, the global sequence first and then one per function
// in module order, each preceded by a word holding its length.
//
// Targets are not linked: a jump or call encodes the target's block number,
// counting every block of the module in function order.
func NewEncodedBackend() Backend { return encodedBackend{} }

func (encodedBackend) Generate(mod *ir.Module, cfg *config.Config) (*bytes.Buffer, error) {
	blockNumber := make(map[*ir.BasicBlock]int)
	for _, f := range mod.Functions() {
		for _, b := range f.CFG.Blocks() {
			blockNumber[b] = len(blockNumber)
		}
	}
	resolve := func(b *ir.BasicBlock) (uint16, bool) {
		n, ok := blockNumber[b]
		if !ok || n > 0xFFFF {
			return 0, false
		}
		return uint16(n), true
	}

	var buf bytes.Buffer
	section := func(name string, insts []*ir.Instruction) error {
		words := make([]isa.Word, 0, len(insts)+1)
		words = append(words, isa.Word(len(insts)))
		for _, inst := range insts {
			w, err := inst.Encode(resolve)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			words = append(words, w)
		}
		return isa.WriteWords(&buf, words)
	}

	if err := section("globals", mod.Globals()); err != nil {
		return nil, err
	}
	for _, f := range mod.Functions() {
		var insts []*ir.Instruction
		for _, b := range f.CFG.Blocks() {
			insts = append(insts, b.Instructions()...)
		}
		if err := section(f.Name, insts); err != nil {
			return nil, err
		}
	}
	return &buf, nil
}
