package snapshot

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jnidzwetzki/pg-debug-scan/pkg/dberrors"
	"github.com/jnidzwetzki/pg-debug-scan/pkg/types"
)

// Snapshot is a point-in-time visibility boundary: every transaction below
// xmin is completed, every transaction at or above xmax has not started yet,
// and the ids in xip are treated as in progress no matter what the commit
// log says about them.
//
// The textual form matches what PostgreSQL exposes through
// pg_current_snapshot(): "xmin:xmax:xip1,xip2,...".
type Snapshot struct {
	xmin types.TxID
	xmax types.TxID
	xip  map[types.TxID]struct{}
}

// New builds a snapshot and validates its invariants: xmin <= xmax and every
// in-progress id inside [xmin, xmax). Duplicate in-progress ids collapse to
// one; order is irrelevant to evaluation.
func New(xmin, xmax types.TxID, inProgress []types.TxID) (Snapshot, error) {
	if xmin > xmax {
		return Snapshot{}, fmt.Errorf("%w: xmin %d greater than xmax %d", dberrors.ErrMalformedSnapshot, xmin, xmax)
	}
	xip := make(map[types.TxID]struct{}, len(inProgress))
	for _, id := range inProgress {
		if id < xmin || id >= xmax {
			return Snapshot{}, fmt.Errorf("%w: in-progress id %d outside [%d, %d)", dberrors.ErrMalformedSnapshot, id, xmin, xmax)
		}
		xip[id] = struct{}{}
	}
	return Snapshot{xmin: xmin, xmax: xmax, xip: xip}, nil
}

// Parse reads a textual snapshot descriptor. The xip list may be empty:
// "775:775:" denotes xmin=775, xmax=775 with no in-progress transactions.
func Parse(text string) (Snapshot, error) {
	parts := strings.Split(text, ":")
	if len(parts) != 3 {
		return Snapshot{}, fmt.Errorf("%w: expected xmin:xmax:xip_list, got %q", dberrors.ErrMalformedSnapshot, text)
	}

	xmin, err := parseTxID(parts[0])
	if err != nil {
		return Snapshot{}, err
	}
	xmax, err := parseTxID(parts[1])
	if err != nil {
		return Snapshot{}, err
	}

	var xip []types.TxID
	if parts[2] != "" {
		for _, field := range strings.Split(parts[2], ",") {
			id, err := parseTxID(field)
			if err != nil {
				return Snapshot{}, err
			}
			xip = append(xip, id)
		}
	}

	return New(xmin, xmax, xip)
}

func parseTxID(s string) (types.TxID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid transaction id %q", dberrors.ErrMalformedSnapshot, s)
	}
	return types.TxID(v), nil
}

// Xmin returns the lower visibility boundary.
func (s Snapshot) Xmin() types.TxID { return s.xmin }

// Xmax returns the upper (exclusive) visibility boundary.
func (s Snapshot) Xmax() types.TxID { return s.xmax }

// InProgress reports whether the snapshot explicitly treats x as still
// running.
func (s Snapshot) InProgress(x types.TxID) bool {
	_, ok := s.xip[x]
	return ok
}

// InProgressIDs returns the in-progress set in ascending order.
func (s Snapshot) InProgressIDs() []types.TxID {
	ids := make([]types.TxID, 0, len(s.xip))
	for id := range s.xip {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Format renders the descriptor text. Round-tripping through Parse yields an
// equal snapshot; the byte form is normalized (ids ascending), not
// necessarily identical to the input.
func (s Snapshot) Format() string {
	ids := s.InProgressIDs()
	fields := make([]string, len(ids))
	for i, id := range ids {
		fields[i] = strconv.FormatUint(uint64(id), 10)
	}
	return fmt.Sprintf("%d:%d:%s", s.xmin, s.xmax, strings.Join(fields, ","))
}

// Equal reports semantic equality of two snapshots.
func (s Snapshot) Equal(o Snapshot) bool {
	if s.xmin != o.xmin || s.xmax != o.xmax || len(s.xip) != len(o.xip) {
		return false
	}
	for id := range s.xip {
		if _, ok := o.xip[id]; !ok {
			return false
		}
	}
	return true
}
