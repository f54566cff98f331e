package types

import (
	"bytes"
	"encoding/json"
)

// TxID is a transaction identifier. IDs are unsigned and assigned
// monotonically within a run; wraparound/epoch handling is out of scope.
type TxID uint64

const (
	// InvalidTxID in the Xmax slot of a row version means "not deleted".
	InvalidTxID TxID = 0

	// BootstrapTxID owns state created before user transactions exist.
	BootstrapTxID TxID = 1

	// FrozenTxID marks a row version as visible to every snapshot.
	FrozenTxID TxID = 2

	// FirstNormalTxID is the first id handed out to user transactions.
	FirstNormalTxID TxID = 3
)

// RowID identifies a logical row inside one table. All physical versions of
// the same row share a RowID.
type RowID uint64

// Column is one named value inside a row payload.
type Column struct {
	Name  string
	Value string
}

// Payload is the ordered column set of one row version. The visibility
// engine never looks inside it.
type Payload []Column

// RowVersion is one physical version of one logical row as stored: the
// transaction that created it, the transaction that deleted or superseded it
// (InvalidTxID if none), and the raw column data.
type RowVersion struct {
	Xmin    TxID
	Xmax    TxID
	Payload Payload
}

// Deleted reports whether a deleting transaction is recorded on the version.
// It says nothing about whether that deletion is visible to any snapshot.
func (v RowVersion) Deleted() bool { return v.Xmax != InvalidTxID }

// JSON renders the payload as a JSON object. Column order is preserved,
// which encoding/json's map marshalling would not do.
func (p Payload) JSON() string {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, _ := json.Marshal(col.Name)
		value, _ := json.Marshal(col.Value)
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.String()
}
