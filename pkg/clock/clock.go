package clock

import (
	"sync/atomic"

	"github.com/jnidzwetzki/pg-debug-scan/pkg/types"
)

// XidClock hands out monotonically increasing transaction ids. There is no
// wraparound handling: the id space is assumed large enough for a single run.
type XidClock struct {
	last atomic.Uint64
}

// New returns a clock that assigns ids strictly above last.
func New(last types.TxID) *XidClock {
	c := &XidClock{}
	c.last.Store(uint64(last))
	return c
}

// Last returns the most recently assigned id.
func (c *XidClock) Last() types.TxID { return types.TxID(c.last.Load()) }

// Next assigns and returns the next transaction id.
func (c *XidClock) Next() types.TxID { return types.TxID(c.last.Add(1)) }

// NextUnassigned returns the id the next transaction would receive, without
// assigning it. This is the xmax of the current snapshot.
func (c *XidClock) NextUnassigned() types.TxID { return types.TxID(c.last.Load() + 1) }

// Advance moves the clock forward so that ids at or below x count as
// assigned. Used while replaying the journal; never moves backwards.
func (c *XidClock) Advance(x types.TxID) {
	for {
		cur := c.last.Load()
		if uint64(x) <= cur || c.last.CompareAndSwap(cur, uint64(x)) {
			return
		}
	}
}
