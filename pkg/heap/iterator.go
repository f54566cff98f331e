package heap

import "github.com/jnidzwetzki/pg-debug-scan/pkg/types"

// Iterator walks every physical version of a table in storage order,
// including versions no ordinary reader would surface. Each iterator owns an
// independent cursor over a stable copy of the version list taken at
// creation time; no cursor state is shared between concurrent scans.
type Iterator struct {
	versions []types.RowVersion
	pos      int
}

// AllVersions returns a one-pass iterator over the table's physical
// versions. The copy is taken under the read lock, so a scan observes a
// coherent state even while writers keep appending.
func (t *Table) AllVersions() *Iterator {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]types.RowVersion, len(t.versions))
	for i, s := range t.versions {
		out[i] = s.v
	}
	return &Iterator{versions: out}
}

// Next returns the next physical version, or false when exhausted.
func (it *Iterator) Next() (types.RowVersion, bool) {
	if it.pos >= len(it.versions) {
		return types.RowVersion{}, false
	}
	v := it.versions[it.pos]
	it.pos++
	return v, true
}
