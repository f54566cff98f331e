package scan

import (
	"github.com/jnidzwetzki/pg-debug-scan/pkg/snapshot"
	"github.com/jnidzwetzki/pg-debug-scan/pkg/types"
	"github.com/jnidzwetzki/pg-debug-scan/pkg/visibility"
)

// VersionIterator produces every physical row version of a table,
// irrespective of any live snapshot, terminating when exhausted.
type VersionIterator interface {
	Next() (types.RowVersion, bool)
}

type iCollector interface {
	IncCounter(name string, delta uint64)
}

// OutputRow is one visible version projected for display: the diagnostic
// transaction-id columns plus the payload as JSON text. Xmax of 0 means the
// version carries no deleter.
type OutputRow struct {
	Xmin types.TxID `json:"xmin"`
	Xmax types.TxID `json:"xmax"`
	Data string     `json:"data"`
}

// Scanner lazily filters a version iterator through the visibility engine,
// preserving the iterator's physical emission order. A Scanner is good for
// exactly one pass; results are never cached between scans because the
// underlying data and transaction statuses may change.
type Scanner struct {
	it       VersionIterator
	snap     snapshot.Snapshot
	statusOf visibility.StatusFunc
	coll     iCollector

	examined int
	visible  int
}

// New builds a scanner. The collector may be nil.
func New(it VersionIterator, snap snapshot.Snapshot, statusOf visibility.StatusFunc, coll iCollector) *Scanner {
	return &Scanner{it: it, snap: snap, statusOf: statusOf, coll: coll}
}

// Snapshot returns the snapshot the scan evaluates against.
func (s *Scanner) Snapshot() snapshot.Snapshot { return s.snap }

// Next returns the next visible version in physical order, or false when
// the heap is exhausted.
func (s *Scanner) Next() (OutputRow, bool) {
	for {
		v, ok := s.it.Next()
		if !ok {
			return OutputRow{}, false
		}
		s.examined++
		if s.coll != nil {
			s.coll.IncCounter("scan_versions_examined_total", 1)
		}

		if !visibility.Visible(v, s.snap, s.statusOf) {
			continue
		}
		s.visible++
		if s.coll != nil {
			s.coll.IncCounter("scan_versions_visible_total", 1)
		}
		return OutputRow{Xmin: v.Xmin, Xmax: v.Xmax, Data: v.Payload.JSON()}, true
	}
}

// All drains the scanner and returns the remaining visible rows.
func (s *Scanner) All() []OutputRow {
	rows := []OutputRow{}
	for {
		row, ok := s.Next()
		if !ok {
			return rows
		}
		rows = append(rows, row)
	}
}

// Stats reports how many versions were examined and how many were visible
// so far.
func (s *Scanner) Stats() (examined, visible int) {
	return s.examined, s.visible
}
