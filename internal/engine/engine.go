package engine

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/jnidzwetzki/pg-debug-scan/internal/config"
	"github.com/jnidzwetzki/pg-debug-scan/pkg/clock"
	"github.com/jnidzwetzki/pg-debug-scan/pkg/clog"
	"github.com/jnidzwetzki/pg-debug-scan/pkg/dberrors"
	"github.com/jnidzwetzki/pg-debug-scan/pkg/heap"
	"github.com/jnidzwetzki/pg-debug-scan/pkg/metrics"
	"github.com/jnidzwetzki/pg-debug-scan/pkg/rowcodec"
	"github.com/jnidzwetzki/pg-debug-scan/pkg/scan"
	"github.com/jnidzwetzki/pg-debug-scan/pkg/snapshot"
	"github.com/jnidzwetzki/pg-debug-scan/pkg/types"
	"github.com/jnidzwetzki/pg-debug-scan/pkg/visibility"
	"github.com/jnidzwetzki/pg-debug-scan/pkg/wal"
)

// Engine is a minimal transactional row-store wired to the visibility
// engine: tables of physical row versions, a commit log, an xid clock and a
// journal for durability. Its reason to exist is DebugScan: replaying an
// arbitrary snapshot descriptor against every physical version of a table.
type Engine struct {
	mu      sync.RWMutex
	tables  map[string]*heap.Table
	log     *clog.Log
	xids    *clock.XidClock
	journal *wal.WAL
	coll    metrics.Collector
	closed  bool
}

// Open starts the engine, replaying the journal to rebuild tables and the
// commit log. The collector may be nil.
func Open(cfg config.StorageConfig, coll metrics.Collector) (*Engine, error) {
	journal, err := wal.Open(wal.Options{
		Dir:             cfg.WALDir(),
		SegmentBytes:    cfg.WALSegmentBytes,
		CompressRotated: cfg.CompressRotated,
	})
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	e := &Engine{
		tables:  make(map[string]*heap.Table),
		log:     clog.New(),
		xids:    clock.New(types.FrozenTxID),
		journal: journal,
		coll:    coll,
	}

	if err := e.restore(); err != nil {
		journal.Close()
		return nil, err
	}

	slog.Info("engine started", "tables", len(e.tables), "last_xid", e.xids.Last())
	return e, nil
}

// restore replays the journal. Records were written in execution order, so
// reapplying them reproduces the exact physical version layout, including
// row ids.
func (e *Engine) restore() error {
	return e.journal.Replay(func(rec wal.Record) error {
		e.xids.Advance(rec.Xid)

		switch rec.Type {
		case wal.RecordBegin:
			e.log.Begin(rec.Xid)
			return nil
		case wal.RecordCommit:
			return e.log.Commit(rec.Xid)
		case wal.RecordAbort:
			return e.log.Abort(rec.Xid)
		case wal.RecordCreateTable:
			columns, err := rowcodec.DecodeStrings(rec.Payload)
			if err != nil {
				return err
			}
			e.tables[rec.Table] = heap.NewTable(rec.Table, columns)
			return nil
		case wal.RecordInsert:
			tbl, values, err := e.replayTarget(rec)
			if err != nil {
				return err
			}
			row, err := tbl.Insert(rec.Xid, values)
			if err != nil {
				return err
			}
			if row != rec.Row {
				return fmt.Errorf("journal out of order: expected row %d, got %d", rec.Row, row)
			}
			return nil
		case wal.RecordUpdate:
			tbl, values, err := e.replayTarget(rec)
			if err != nil {
				return err
			}
			return tbl.Update(rec.Row, rec.Xid, values)
		case wal.RecordDelete:
			tbl, ok := e.tables[rec.Table]
			if !ok {
				return fmt.Errorf("%w: %s", dberrors.ErrUnknownTable, rec.Table)
			}
			return tbl.Delete(rec.Row, rec.Xid)
		default:
			return fmt.Errorf("%w: journal record type %d", dberrors.ErrInvalidArgument, rec.Type)
		}
	})
}

func (e *Engine) replayTarget(rec wal.Record) (*heap.Table, []string, error) {
	tbl, ok := e.tables[rec.Table]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", dberrors.ErrUnknownTable, rec.Table)
	}
	payload, err := rowcodec.DecodePayload(rec.Payload)
	if err != nil {
		return nil, nil, err
	}
	values := make([]string, len(payload))
	for i, col := range payload {
		values[i] = col.Value
	}
	return tbl, values, nil
}

// CreateTable registers a new heap table.
func (e *Engine) CreateTable(name string, columns []string) error {
	if name == "" || len(columns) == 0 {
		return fmt.Errorf("%w: table needs a name and at least one column", dberrors.ErrInvalidArgument)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return dberrors.ErrClosed
	}
	if _, ok := e.tables[name]; ok {
		return fmt.Errorf("%w: %s", dberrors.ErrDuplicateTable, name)
	}

	rec := wal.Record{Type: wal.RecordCreateTable, Table: name, Payload: rowcodec.EncodeStrings(columns)}
	if err := e.journal.Append(rec); err != nil {
		return err
	}
	e.tables[name] = heap.NewTable(name, columns)
	slog.Info("table created", "table", name, "columns", len(columns))
	return nil
}

// Begin starts a new transaction and returns its id.
func (e *Engine) Begin() (types.TxID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return types.InvalidTxID, dberrors.ErrClosed
	}
	return e.beginLocked()
}

func (e *Engine) beginLocked() (types.TxID, error) {
	x := e.xids.Next()
	if err := e.journal.Append(wal.Record{Type: wal.RecordBegin, Xid: x}); err != nil {
		return types.InvalidTxID, err
	}
	e.log.Begin(x)
	return x, nil
}

// Commit records x as committed.
func (e *Engine) Commit(x types.TxID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return dberrors.ErrClosed
	}
	return e.commitLocked(x)
}

func (e *Engine) commitLocked(x types.TxID) error {
	if st := e.log.StatusOf(x); st != visibility.StatusInProgress {
		return finishError(x, st)
	}
	if err := e.journal.Append(wal.Record{Type: wal.RecordCommit, Xid: x}); err != nil {
		return err
	}
	return e.log.Commit(x)
}

// Abort records x as aborted.
func (e *Engine) Abort(x types.TxID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return dberrors.ErrClosed
	}
	return e.abortLocked(x)
}

func (e *Engine) abortLocked(x types.TxID) error {
	if st := e.log.StatusOf(x); st != visibility.StatusInProgress {
		return finishError(x, st)
	}
	if err := e.journal.Append(wal.Record{Type: wal.RecordAbort, Xid: x}); err != nil {
		return err
	}
	return e.log.Abort(x)
}

func finishError(x types.TxID, st visibility.Status) error {
	if st == visibility.StatusUnknown {
		return fmt.Errorf("%w: %d", dberrors.ErrUnknownTxn, x)
	}
	return fmt.Errorf("%w: %d is %s", dberrors.ErrTxnFinished, x, st)
}

// Insert adds a row to a table. With x == InvalidTxID the insert runs in
// its own single-statement transaction.
func (e *Engine) Insert(table string, x types.TxID, values []string) (types.RowID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, dberrors.ErrClosed
	}

	autocommit := x == types.InvalidTxID
	if autocommit {
		var err error
		if x, err = e.beginLocked(); err != nil {
			return 0, err
		}
	} else if st := e.log.StatusOf(x); st != visibility.StatusInProgress {
		return 0, finishError(x, st)
	}

	row, err := e.insertLocked(table, x, values)
	if err != nil {
		if autocommit {
			_ = e.abortLocked(x)
		}
		return 0, err
	}
	if autocommit {
		if err := e.commitLocked(x); err != nil {
			return 0, err
		}
	}
	return row, nil
}

func (e *Engine) insertLocked(table string, x types.TxID, values []string) (types.RowID, error) {
	tbl, ok := e.tables[table]
	if !ok {
		return 0, fmt.Errorf("%w: %s", dberrors.ErrUnknownTable, table)
	}

	payload := make(types.Payload, 0, len(values))
	columns := tbl.Columns()
	if len(values) != len(columns) {
		return 0, fmt.Errorf("%w: table %s has %d columns, got %d values",
			dberrors.ErrInvalidArgument, table, len(columns), len(values))
	}
	for i, v := range values {
		payload = append(payload, types.Column{Name: columns[i], Value: v})
	}

	// the heap assigns the row id, so apply before journaling; replay
	// reproduces the same ids because records land in append order
	row, err := tbl.Insert(x, values)
	if err != nil {
		return 0, err
	}
	rec := wal.Record{Type: wal.RecordInsert, Xid: x, Table: table, Row: row, Payload: rowcodec.EncodePayload(payload)}
	if err := e.journal.Append(rec); err != nil {
		return 0, err
	}
	return row, nil
}

// Delete marks the newest version of a row as deleted by x. A row whose
// recorded deleter committed or is still running cannot be deleted again;
// an aborted deleter is overwritten. With x == InvalidTxID the delete runs
// in its own transaction.
func (e *Engine) Delete(table string, row types.RowID, x types.TxID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return dberrors.ErrClosed
	}

	autocommit := x == types.InvalidTxID
	if autocommit {
		var err error
		if x, err = e.beginLocked(); err != nil {
			return err
		}
	} else if st := e.log.StatusOf(x); st != visibility.StatusInProgress {
		return finishError(x, st)
	}

	err := e.deleteLocked(table, row, x)
	if autocommit {
		if err != nil {
			_ = e.abortLocked(x)
			return err
		}
		return e.commitLocked(x)
	}
	return err
}

func (e *Engine) deleteLocked(table string, row types.RowID, x types.TxID) error {
	tbl, ok := e.tables[table]
	if !ok {
		return fmt.Errorf("%w: %s", dberrors.ErrUnknownTable, table)
	}

	latest, ok := tbl.Latest(row)
	if !ok {
		return fmt.Errorf("%w: table %s row %d", dberrors.ErrUnknownRow, table, row)
	}
	if latest.Deleted() && e.log.StatusOf(latest.Xmax) != visibility.StatusAborted {
		return fmt.Errorf("%w: table %s row %d deleted by %d", dberrors.ErrRowDeleted, table, row, latest.Xmax)
	}

	rec := wal.Record{Type: wal.RecordDelete, Xid: x, Table: table, Row: row}
	if err := e.journal.Append(rec); err != nil {
		return err
	}
	return tbl.Delete(row, x)
}

// Update replaces the newest version of a row: the old version is stamped
// deleted by x and a new version created by x is appended.
func (e *Engine) Update(table string, row types.RowID, x types.TxID, values []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return dberrors.ErrClosed
	}

	autocommit := x == types.InvalidTxID
	if autocommit {
		var err error
		if x, err = e.beginLocked(); err != nil {
			return err
		}
	} else if st := e.log.StatusOf(x); st != visibility.StatusInProgress {
		return finishError(x, st)
	}

	err := e.updateLocked(table, row, x, values)
	if autocommit {
		if err != nil {
			_ = e.abortLocked(x)
			return err
		}
		return e.commitLocked(x)
	}
	return err
}

func (e *Engine) updateLocked(table string, row types.RowID, x types.TxID, values []string) error {
	tbl, ok := e.tables[table]
	if !ok {
		return fmt.Errorf("%w: %s", dberrors.ErrUnknownTable, table)
	}

	latest, ok := tbl.Latest(row)
	if !ok {
		return fmt.Errorf("%w: table %s row %d", dberrors.ErrUnknownRow, table, row)
	}
	if latest.Deleted() && e.log.StatusOf(latest.Xmax) != visibility.StatusAborted {
		return fmt.Errorf("%w: table %s row %d deleted by %d", dberrors.ErrRowDeleted, table, row, latest.Xmax)
	}

	columns := tbl.Columns()
	if len(values) != len(columns) {
		return fmt.Errorf("%w: table %s has %d columns, got %d values",
			dberrors.ErrInvalidArgument, table, len(columns), len(values))
	}
	payload := make(types.Payload, len(values))
	for i, v := range values {
		payload[i] = types.Column{Name: columns[i], Value: v}
	}

	rec := wal.Record{Type: wal.RecordUpdate, Xid: x, Table: table, Row: row, Payload: rowcodec.EncodePayload(payload)}
	if err := e.journal.Append(rec); err != nil {
		return err
	}
	return tbl.Update(row, x, values)
}

// CurrentSnapshot synthesizes the snapshot an ordinary reader would hold
// right now: xmax is the next unassigned id, xmin the oldest running
// transaction (or xmax when none run), xip the running set.
func (e *Engine) CurrentSnapshot() snapshot.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	xip := e.log.InProgress()
	xmax := e.xids.NextUnassigned()
	xmin := xmax
	if len(xip) > 0 {
		xmin = xip[0]
	}
	snap, err := snapshot.New(xmin, xmax, xip)
	if err != nil {
		// in-progress ids are always assigned below xmax
		panic(fmt.Sprintf("engine produced invalid snapshot: %v", err))
	}
	return snap
}

// DebugScan evaluates a snapshot descriptor against every physical version
// of a table. An empty descriptor uses the current snapshot, mirroring a
// plain read. Errors are reported here, before any row is produced; the
// returned scanner itself cannot fail.
func (e *Engine) DebugScan(table, snapshotSpec string) (*scan.Scanner, error) {
	var snap snapshot.Snapshot
	var err error
	if snapshotSpec == "" {
		snap = e.CurrentSnapshot()
	} else if snap, err = snapshot.Parse(snapshotSpec); err != nil {
		return nil, err
	}

	e.mu.RLock()
	tbl, ok := e.tables[table]
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, dberrors.ErrClosed
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", dberrors.ErrUnknownTable, table)
	}

	scanID := uuid.NewString()
	slog.Info("starting debug scan",
		"scan_id", scanID,
		"table", table,
		"snapshot", snap.Format(),
		"versions", tbl.VersionCount(),
	)
	if e.coll != nil {
		e.coll.IncCounter("scans_total", 1)
	}

	return scan.New(tbl.AllVersions(), snap, e.log.StatusOf, e.coll), nil
}

// Tables returns the known table names.
func (e *Engine) Tables() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.tables))
	for name := range e.tables {
		names = append(names, name)
	}
	return names
}

// Close flushes and closes the journal. Further calls fail with ErrClosed.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.journal.Close()
}
