package visibility

import (
	"github.com/jnidzwetzki/pg-debug-scan/pkg/snapshot"
	"github.com/jnidzwetzki/pg-debug-scan/pkg/types"
)

// Status is the commit-log verdict for one transaction id.
type Status uint8

const (
	// StatusUnknown covers ids the commit log cannot resolve, e.g. ids that
	// were never assigned. Callers must treat it as not committed.
	StatusUnknown Status = iota
	StatusInProgress
	StatusCommitted
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusInProgress:
		return "in-progress"
	case StatusCommitted:
		return "committed"
	case StatusAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// StatusFunc resolves a transaction id to its commit status. Implementations
// never fail; ids they cannot resolve map to StatusUnknown.
type StatusFunc func(types.TxID) Status

// Visible decides whether one physical row version would be seen by a reader
// holding the given snapshot. The rules are applied in order and the first
// match decides:
//
//  1. creator not committed (and not frozen)        -> invisible
//  2. creator >= xmax, or in the snapshot's xip     -> invisible
//  3. no deleter recorded                           -> visible
//  4. deleter not committed                         -> visible
//  5. deleter >= xmax, or in the snapshot's xip     -> visible
//  6. deleter committed before the snapshot         -> invisible
//
// A version inserted and deleted by the same transaction runs through the
// same sequence with no shortcut. Unresolved statuses fall into the
// conservative branch; Visible itself never fails.
func Visible(v types.RowVersion, snap snapshot.Snapshot, statusOf StatusFunc) bool {
	if v.Xmin != types.FrozenTxID {
		if statusOf(v.Xmin) != StatusCommitted {
			return false
		}
		if v.Xmin >= snap.Xmax() || snap.InProgress(v.Xmin) {
			return false
		}
	}

	if v.Xmax == types.InvalidTxID {
		return true
	}
	if statusOf(v.Xmax) != StatusCommitted {
		return true
	}
	if v.Xmax >= snap.Xmax() || snap.InProgress(v.Xmax) {
		return true
	}

	return false
}
