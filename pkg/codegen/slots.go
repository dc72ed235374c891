package codegen

import (
	"fmt"

	"github.com/toslang/tosc/pkg/ast"
	"github.com/toslang/tosc/pkg/ir"
)

// SlotAllocator hands out value slots, one per value-producing node, in
// allocation order starting at 0.
type SlotAllocator struct {
	next  ir.Slot
	slots map[*ast.Node]ir.Slot
}

func NewSlotAllocator() *SlotAllocator {
	return &SlotAllocator{slots: make(map[*ast.Node]ir.Slot)}
}

func (a *SlotAllocator) Allocate(node *ast.Node) (ir.Slot, error) {
	if s, ok := a.slots[node]; ok {
		return 0, fmt.Errorf("%w: %s already holds slot %s", ErrInternal, node.Type, s)
	}
	s := a.next
	a.next++
	a.slots[node] = s
	return s, nil
}

func (a *SlotAllocator) Lookup(node *ast.Node) (ir.Slot, error) {
	s, ok := a.slots[node]
	if !ok {
		return 0, fmt.Errorf("%w: %s '%s' was used before it was lowered", ErrInternal, node.Type, ast.DeclName(node))
	}
	return s, nil
}

// Count reports how many slots were handed out.
func (a *SlotAllocator) Count() int { return int(a.next) }
