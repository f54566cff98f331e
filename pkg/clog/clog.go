package clog

import (
	"fmt"

	"github.com/zhangyunhao116/skipmap"

	"github.com/jnidzwetzki/pg-debug-scan/pkg/dberrors"
	"github.com/jnidzwetzki/pg-debug-scan/pkg/types"
	"github.com/jnidzwetzki/pg-debug-scan/pkg/visibility"
)

// Log records the outcome of every transaction the engine has seen. It is
// the concrete side of the visibility engine's status oracle: given a
// transaction id, answer committed/aborted/in-progress/unknown.
//
// Status lookups vastly outnumber state transitions during a scan, so the
// statuses live in a lock-free ordered map.
type Log struct {
	statuses *skipmap.FuncMap[types.TxID, visibility.Status]
}

func New() *Log {
	return &Log{
		statuses: skipmap.NewFunc[types.TxID, visibility.Status](func(a, b types.TxID) bool {
			return a < b
		}),
	}
}

// Begin records x as in progress.
func (l *Log) Begin(x types.TxID) {
	l.statuses.Store(x, visibility.StatusInProgress)
}

// Commit marks x committed. The transaction must be in progress.
func (l *Log) Commit(x types.TxID) error {
	return l.finish(x, visibility.StatusCommitted)
}

// Abort marks x aborted. The transaction must be in progress.
func (l *Log) Abort(x types.TxID) error {
	return l.finish(x, visibility.StatusAborted)
}

func (l *Log) finish(x types.TxID, outcome visibility.Status) error {
	st, ok := l.statuses.Load(x)
	if !ok {
		return fmt.Errorf("%w: %d", dberrors.ErrUnknownTxn, x)
	}
	if st != visibility.StatusInProgress {
		return fmt.Errorf("%w: %d is %s", dberrors.ErrTxnFinished, x, st)
	}
	l.statuses.Store(x, outcome)
	return nil
}

// StatusOf resolves x to its recorded status. Bootstrap and frozen ids are
// always committed; ids the log has never seen resolve to StatusUnknown.
// StatusOf never fails and satisfies visibility.StatusFunc.
func (l *Log) StatusOf(x types.TxID) visibility.Status {
	if x == types.BootstrapTxID || x == types.FrozenTxID {
		return visibility.StatusCommitted
	}
	if st, ok := l.statuses.Load(x); ok {
		return st
	}
	return visibility.StatusUnknown
}

// InProgress returns the ids currently marked in progress, ascending.
func (l *Log) InProgress() []types.TxID {
	var ids []types.TxID
	l.statuses.Range(func(x types.TxID, st visibility.Status) bool {
		if st == visibility.StatusInProgress {
			ids = append(ids, x)
		}
		return true
	})
	return ids
}
