package cache

import (
	"fmt"
	"sync/atomic"

	"github.com/hupe1980/blockstream/volume"
)

// ContentState describes what a slot currently holds.
type ContentState uint32

const (
	// Empty slots were never filled.
	Empty ContentState = iota
	// Loading slots have a fill task in flight.
	Loading
	// Complete slots hold every voxel of their block.
	Complete
	// Incomplete slots were filled while some covering cells were missing.
	Incomplete
)

func (s ContentState) String() string {
	switch s {
	case Empty:
		return "empty"
	case Loading:
		return "loading"
	case Complete:
		return "complete"
	case Incomplete:
		return "incomplete"
	default:
		return fmt.Sprintf("ContentState(%d)", uint32(s))
	}
}

// Key identifies one block of one resolution level of one stack.
type Key struct {
	Stack volume.StackID
	Level int
	Pos   [3]int64
}

func (k Key) String() string {
	return fmt.Sprintf("%s/L%d/%v", k.Stack, k.Level, k.Pos)
}

// Slot is one cell of the cache texture grid.
type Slot struct {
	pos   [3]int
	key   Key
	state atomic.Uint32
}

// GridPos returns the slot position in the cache block grid.
func (s *Slot) GridPos() [3]int { return s.pos }

// Origin returns the texel origin of the slot for blocks of the given padded
// size.
func (s *Slot) Origin(padded [3]int) [3]int {
	return [3]int{s.pos[0] * padded[0], s.pos[1] * padded[1], s.pos[2] * padded[2]}
}

// Key returns the key bound to the slot.
func (s *Slot) Key() Key { return s.key }

// State returns the content state.
func (s *Slot) State() ContentState { return ContentState(s.state.Load()) }

// SetState records the content state.
func (s *Slot) SetState(st ContentState) { s.state.Store(uint32(st)) }

func (s *Slot) String() string {
	return fmt.Sprintf("Slot{%v %s %s}", s.pos, s.key, s.State())
}
