package heap

import (
	"fmt"
	"sync"

	"github.com/jnidzwetzki/pg-debug-scan/pkg/dberrors"
	"github.com/jnidzwetzki/pg-debug-scan/pkg/types"
)

// Table is a minimal versioned heap: an append-only sequence of physical row
// versions. Inserts append, deletes stamp a deleting xid on the newest
// version of a row, updates do both. Nothing is ever removed, which is
// exactly what a raw visibility scan needs to see.
//
// The heap knows nothing about transaction outcomes; callers decide whether
// a recorded deleter still counts.
type Table struct {
	name    string
	columns []string

	mu       sync.RWMutex
	versions []slot
	nextRow  types.RowID
}

// slot pairs a physical version with the logical row it belongs to.
type slot struct {
	row types.RowID
	v   types.RowVersion
}

func NewTable(name string, columns []string) *Table {
	cols := append([]string(nil), columns...)
	return &Table{name: name, columns: cols, nextRow: 1}
}

func (t *Table) Name() string { return t.name }

// Columns returns the column names in declaration order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

func (t *Table) payload(values []string) (types.Payload, error) {
	if len(values) != len(t.columns) {
		return nil, fmt.Errorf("%w: table %s has %d columns, got %d values",
			dberrors.ErrInvalidArgument, t.name, len(t.columns), len(values))
	}
	p := make(types.Payload, len(values))
	for i, v := range values {
		p[i] = types.Column{Name: t.columns[i], Value: v}
	}
	return p, nil
}

// Insert appends a new row version created by x and returns its row id.
func (t *Table) Insert(x types.TxID, values []string) (types.RowID, error) {
	p, err := t.payload(values)
	if err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	row := t.nextRow
	t.nextRow++
	t.versions = append(t.versions, slot{row: row, v: types.RowVersion{Xmin: x, Payload: p}})
	return row, nil
}

// latestLocked returns the index of the newest physical version of row, or
// -1 when the row never existed. Callers hold t.mu.
func (t *Table) latestLocked(row types.RowID) int {
	for i := len(t.versions) - 1; i >= 0; i-- {
		if t.versions[i].row == row {
			return i
		}
	}
	return -1
}

// Latest returns the newest physical version of a logical row.
func (t *Table) Latest(row types.RowID) (types.RowVersion, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	i := t.latestLocked(row)
	if i < 0 {
		return types.RowVersion{}, false
	}
	return t.versions[i].v, true
}

// Delete stamps x as the deleter of the newest version of row. Any deleter
// already recorded is overwritten; gating on the previous deleter's commit
// status is the caller's job.
func (t *Table) Delete(row types.RowID, x types.TxID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	i := t.latestLocked(row)
	if i < 0 {
		return fmt.Errorf("%w: table %s row %d", dberrors.ErrUnknownRow, t.name, row)
	}
	t.versions[i].v.Xmax = x
	return nil
}

// Update stamps x as the deleter of the newest version of row and appends a
// fresh version with the same row id created by x.
func (t *Table) Update(row types.RowID, x types.TxID, values []string) error {
	p, err := t.payload(values)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	i := t.latestLocked(row)
	if i < 0 {
		return fmt.Errorf("%w: table %s row %d", dberrors.ErrUnknownRow, t.name, row)
	}
	t.versions[i].v.Xmax = x
	t.versions = append(t.versions, slot{row: row, v: types.RowVersion{Xmin: x, Payload: p}})
	return nil
}

// VersionCount returns the number of physical versions in the heap,
// including deleted and superseded ones.
func (t *Table) VersionCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.versions)
}
