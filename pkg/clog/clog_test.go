package clog

import (
	"errors"
	"testing"

	"github.com/jnidzwetzki/pg-debug-scan/pkg/dberrors"
	"github.com/jnidzwetzki/pg-debug-scan/pkg/types"
	"github.com/jnidzwetzki/pg-debug-scan/pkg/visibility"
)

func TestLog_Lifecycle(t *testing.T) {
	l := New()

	l.Begin(10)
	if st := l.StatusOf(10); st != visibility.StatusInProgress {
		t.Fatalf("StatusOf(10) = %s, want in-progress", st)
	}

	if err := l.Commit(10); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if st := l.StatusOf(10); st != visibility.StatusCommitted {
		t.Fatalf("StatusOf(10) = %s, want committed", st)
	}

	l.Begin(11)
	if err := l.Abort(11); err != nil {
		t.Fatalf("Abort failed: %v", err)
	}
	if st := l.StatusOf(11); st != visibility.StatusAborted {
		t.Fatalf("StatusOf(11) = %s, want aborted", st)
	}
}

func TestLog_UnknownAndSpecialIDs(t *testing.T) {
	l := New()

	if st := l.StatusOf(999); st != visibility.StatusUnknown {
		t.Fatalf("StatusOf(999) = %s, want unknown", st)
	}
	if st := l.StatusOf(types.BootstrapTxID); st != visibility.StatusCommitted {
		t.Fatalf("bootstrap id = %s, want committed", st)
	}
	if st := l.StatusOf(types.FrozenTxID); st != visibility.StatusCommitted {
		t.Fatalf("frozen id = %s, want committed", st)
	}
}

func TestLog_FinishErrors(t *testing.T) {
	l := New()

	if err := l.Commit(5); !errors.Is(err, dberrors.ErrUnknownTxn) {
		t.Fatalf("Commit of unknown txn: got %v, want ErrUnknownTxn", err)
	}

	l.Begin(5)
	if err := l.Commit(5); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if err := l.Commit(5); !errors.Is(err, dberrors.ErrTxnFinished) {
		t.Fatalf("double Commit: got %v, want ErrTxnFinished", err)
	}
	if err := l.Abort(5); !errors.Is(err, dberrors.ErrTxnFinished) {
		t.Fatalf("Abort after Commit: got %v, want ErrTxnFinished", err)
	}
}

func TestLog_InProgress(t *testing.T) {
	l := New()

	l.Begin(7)
	l.Begin(3)
	l.Begin(5)
	if err := l.Commit(5); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	ids := l.InProgress()
	if len(ids) != 2 || ids[0] != 3 || ids[1] != 7 {
		t.Fatalf("InProgress() = %v, want [3 7]", ids)
	}
}
