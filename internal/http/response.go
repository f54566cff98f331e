package http

import "github.com/jnidzwetzki/pg-debug-scan/pkg/scan"

type Status string

const (
	// StatusOK is used for health-check responses.
	StatusOK Status = "OK"

	// StatusSuccess indicates an operation completed successfully.
	StatusSuccess Status = "success"

	// StatusError indicates an operation failed.
	StatusError Status = "error"
)

// Response represents the standard API response format.
type Response struct {
	Status   Status           `json:"status,omitempty"`
	Xid      uint64           `json:"xid,omitempty"`
	Row      uint64           `json:"row,omitempty"`
	Snapshot string           `json:"snapshot,omitempty"`
	Rows     []scan.OutputRow `json:"rows,omitempty"`
	Examined int              `json:"examined,omitempty"`
	Visible  int              `json:"visible,omitempty"`
	Error    string           `json:"error,omitempty"`
}

func NewOKResponse() Response {
	return Response{Status: StatusOK}
}

func NewSuccessResponse() Response {
	return Response{Status: StatusSuccess}
}

func NewXidResponse(xid uint64) Response {
	return Response{Status: StatusSuccess, Xid: xid}
}

func NewRowResponse(row uint64) Response {
	return Response{Status: StatusSuccess, Row: row}
}

func NewSnapshotResponse(snapshot string) Response {
	return Response{Status: StatusSuccess, Snapshot: snapshot}
}

func NewErrorResponse(err string) Response {
	return Response{Status: StatusError, Error: err}
}
