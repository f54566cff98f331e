package heap

import (
	"errors"
	"testing"

	"github.com/jnidzwetzki/pg-debug-scan/pkg/dberrors"
	"github.com/jnidzwetzki/pg-debug-scan/pkg/types"
)

func TestTable_InsertAndIterate(t *testing.T) {
	tbl := NewTable("temperature", []string{"time", "value"})

	r1, err := tbl.Insert(10, []string{"12:00", "1"})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	r2, err := tbl.Insert(11, []string{"13:00", "2"})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if r1 == r2 {
		t.Fatalf("row ids collide: %d", r1)
	}

	it := tbl.AllVersions()
	v, ok := it.Next()
	if !ok || v.Xmin != 10 || v.Deleted() {
		t.Fatalf("first version = %+v, want xmin=10 not deleted", v)
	}
	v, ok = it.Next()
	if !ok || v.Xmin != 11 {
		t.Fatalf("second version = %+v, want xmin=11", v)
	}
	if _, ok := it.Next(); ok {
		t.Fatal("iterator did not terminate")
	}
}

func TestTable_InsertWrongArity(t *testing.T) {
	tbl := NewTable("temperature", []string{"time", "value"})

	if _, err := tbl.Insert(10, []string{"only-one"}); !errors.Is(err, dberrors.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestTable_Delete(t *testing.T) {
	tbl := NewTable("temperature", []string{"time", "value"})

	row, err := tbl.Insert(10, []string{"12:00", "1"})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := tbl.Delete(row, 12); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	v, ok := tbl.Latest(row)
	if !ok || v.Xmax != 12 {
		t.Fatalf("Latest = %+v, want xmax=12", v)
	}

	if err := tbl.Delete(999, 12); !errors.Is(err, dberrors.ErrUnknownRow) {
		t.Fatalf("Delete of unknown row: got %v, want ErrUnknownRow", err)
	}
}

func TestTable_UpdateKeepsOldVersion(t *testing.T) {
	tbl := NewTable("temperature", []string{"time", "value"})

	row, err := tbl.Insert(10, []string{"12:00", "1"})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := tbl.Update(row, 11, []string{"12:00", "2"}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if n := tbl.VersionCount(); n != 2 {
		t.Fatalf("VersionCount = %d, want 2", n)
	}

	it := tbl.AllVersions()
	old, _ := it.Next()
	if old.Xmin != 10 || old.Xmax != 11 {
		t.Fatalf("old version = %+v, want xmin=10 xmax=11", old)
	}
	cur, _ := it.Next()
	if cur.Xmin != 11 || cur.Deleted() {
		t.Fatalf("new version = %+v, want xmin=11 not deleted", cur)
	}
	if cur.Payload.JSON() != `{"time":"12:00","value":"2"}` {
		t.Fatalf("new payload = %s", cur.Payload.JSON())
	}
}

func TestIterator_StableAgainstLaterWrites(t *testing.T) {
	tbl := NewTable("t", []string{"v"})

	row, _ := tbl.Insert(10, []string{"a"})
	it := tbl.AllVersions()

	// mutate after the iterator was created
	if err := tbl.Delete(row, 11); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := tbl.Insert(12, []string{"b"}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	v, ok := it.Next()
	if !ok || v.Xmax != types.InvalidTxID {
		t.Fatalf("iterator saw later delete: %+v", v)
	}
	if _, ok := it.Next(); ok {
		t.Fatal("iterator saw later insert")
	}
}
