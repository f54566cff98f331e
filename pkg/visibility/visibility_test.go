package visibility

import (
	"testing"

	"github.com/jnidzwetzki/pg-debug-scan/pkg/snapshot"
	"github.com/jnidzwetzki/pg-debug-scan/pkg/types"
)

// oracle builds a StatusFunc from a fixed table; everything else resolves to
// StatusUnknown.
func oracle(m map[types.TxID]Status) StatusFunc {
	return func(x types.TxID) Status {
		if st, ok := m[x]; ok {
			return st
		}
		return StatusUnknown
	}
}

func mustSnapshot(t *testing.T, text string) snapshot.Snapshot {
	t.Helper()
	snap, err := snapshot.Parse(text)
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", text, err)
	}
	return snap
}

func TestVisible_Rules(t *testing.T) {
	statusOf := oracle(map[types.TxID]Status{
		10: StatusCommitted,
		11: StatusCommitted,
		12: StatusCommitted,
		20: StatusAborted,
		21: StatusInProgress,
	})

	tests := []struct {
		name string
		v    types.RowVersion
		snap string
		want bool
	}{
		{"aborted creator", types.RowVersion{Xmin: 20}, "30:30:", false},
		{"unknown creator", types.RowVersion{Xmin: 99}, "100:100:", false},
		{"in-progress creator", types.RowVersion{Xmin: 21}, "30:30:", false},
		{"committed creator, not deleted", types.RowVersion{Xmin: 10}, "30:30:", true},
		{"creator at xmax", types.RowVersion{Xmin: 10}, "10:10:", false},
		{"creator beyond xmax", types.RowVersion{Xmin: 12}, "11:11:", false},
		{"creator in snapshot xip", types.RowVersion{Xmin: 11}, "10:30:11", false},
		{"frozen creator, minimal snapshot", types.RowVersion{Xmin: types.FrozenTxID}, "0:0:", true},
		{"frozen creator deleted long ago", types.RowVersion{Xmin: types.FrozenTxID, Xmax: 10}, "30:30:", false},
		{"deleter aborted", types.RowVersion{Xmin: 10, Xmax: 20}, "30:30:", true},
		{"deleter unknown", types.RowVersion{Xmin: 10, Xmax: 99}, "30:30:", true},
		{"deleter still running", types.RowVersion{Xmin: 10, Xmax: 21}, "30:30:", true},
		{"deleter at xmax", types.RowVersion{Xmin: 10, Xmax: 11}, "11:11:", true},
		{"deleter in snapshot xip", types.RowVersion{Xmin: 10, Xmax: 11}, "10:30:11", true},
		{"deleter committed before snapshot", types.RowVersion{Xmin: 10, Xmax: 11}, "30:30:", false},
		{"self insert and delete, committed", types.RowVersion{Xmin: 12, Xmax: 12}, "30:30:", false},
		{"self insert and delete, snapshot holder", types.RowVersion{Xmin: 12, Xmax: 12}, "10:30:12", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			snap := mustSnapshot(t, tc.snap)
			if got := Visible(tc.v, snap, statusOf); got != tc.want {
				t.Fatalf("Visible(%+v, %q) = %v, want %v", tc.v, tc.snap, got, tc.want)
			}
		})
	}
}

func TestVisible_Deterministic(t *testing.T) {
	statusOf := oracle(map[types.TxID]Status{10: StatusCommitted, 11: StatusCommitted})
	snap := mustSnapshot(t, "12:12:")
	v := types.RowVersion{Xmin: 10, Xmax: 11}

	first := Visible(v, snap, statusOf)
	for i := 0; i < 100; i++ {
		if Visible(v, snap, statusOf) != first {
			t.Fatal("verdict changed between evaluations")
		}
	}
}

func TestVisible_UnresolvableCreatorNeverVisible(t *testing.T) {
	statusOf := oracle(nil) // everything unknown
	snaps := []string{"0:0:", "5:10:7", "100:100:"}

	for _, s := range snaps {
		snap := mustSnapshot(t, s)
		for creator := types.TxID(3); creator < 15; creator++ {
			v := types.RowVersion{Xmin: creator}
			if Visible(v, snap, statusOf) {
				t.Fatalf("version with unresolvable creator %d visible under %q", creator, s)
			}
		}
	}
}

func idsIn(lo, hi types.TxID) []types.TxID {
	var ids []types.TxID
	for x := lo; x < hi; x++ {
		ids = append(ids, x)
	}
	return ids
}

func subsets(ids []types.TxID) [][]types.TxID {
	out := [][]types.TxID{nil}
	for _, id := range ids {
		for _, prev := range out[:len(out):len(out)] {
			next := append(append([]types.TxID{}, prev...), id)
			out = append(out, next)
		}
	}
	return out
}

// Shrinking xmax moves the snapshot back in time and can only hide more:
// with equal xmin and xip, a version visible under the earlier snapshot and
// created before its xmax stays visible under the later one unless its
// deleter commits inside the widened window.
func TestVisible_SnapshotMonotonicity(t *testing.T) {
	statuses := map[types.TxID]Status{}
	for x := types.TxID(3); x <= 12; x++ {
		statuses[x] = StatusCommitted
	}
	statuses[7] = StatusAborted
	statuses[8] = StatusInProgress
	statusOf := oracle(statuses)

	const xmin = types.TxID(5)
	for xmax1 := xmin; xmax1 <= 10; xmax1++ {
		for xmax2 := xmax1; xmax2 <= 10; xmax2++ {
			for _, xip1 := range subsets(idsIn(xmin, xmax1)) {
				s1, err := snapshot.New(xmin, xmax1, xip1)
				if err != nil {
					t.Fatalf("snapshot.New failed: %v", err)
				}
				// the later snapshot may only add ids from the widened window
				for _, extra := range subsets(idsIn(xmax1, xmax2)) {
					ids := append(append([]types.TxID{}, xip1...), extra...)
					s2, err := snapshot.New(xmin, xmax2, ids)
					if err != nil {
						t.Fatalf("snapshot.New failed: %v", err)
					}

					for creator := types.TxID(3); creator <= 9; creator++ {
						for deleter := types.TxID(0); deleter <= 12; deleter++ {
							v := types.RowVersion{Xmin: creator, Xmax: deleter}
							if creator >= xmax1 || !Visible(v, s1, statusOf) {
								continue
							}
							if Visible(v, s2, statusOf) {
								continue
							}
							newlyDeleted := statusOf(deleter) == StatusCommitted &&
								deleter >= xmax1 && deleter < xmax2 && !s2.InProgress(deleter)
							if !newlyDeleted {
								t.Fatalf("version %+v visible under %q but hidden under %q", v, s1.Format(), s2.Format())
							}
						}
					}
				}
			}
		}
	}
}
