package kanban

import (
	"fmt"
	"sync/atomic"
)

// Kind selects an independent id sequence.
type Kind int

const (
	KindBoard Kind = iota
	KindColumn
	KindTask
	KindSubtask
	numKinds
)

func (k Kind) String() string {
	switch k {
	case KindBoard:
		return "board"
	case KindColumn:
		return "column"
	case KindTask:
		return "task"
	case KindSubtask:
		return "subtask"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Assigner hands out ids per entity kind. Each kind starts at 1 and only
// moves forward. The zero value is ready to use.
type Assigner struct {
	last [numKinds]atomic.Int64
}

func NewAssigner() *Assigner { return &Assigner{} }

// Next returns an id that this assigner has never returned before.
func (a *Assigner) Next(k Kind) int64 {
	return a.last[k].Add(1)
}

// Observe makes every later Next(k) greater than id.
func (a *Assigner) Observe(k Kind, id int64) {
	c := &a.last[k]
	for {
		cur := c.Load()
		if id <= cur || c.CompareAndSwap(cur, id) {
			return
		}
	}
}

// Last returns the most recent id issued or observed for k, 0 if none.
func (a *Assigner) Last(k Kind) int64 { return a.last[k].Load() }
