package storage

// JSON protocol for the blob daemon over a Unix domain socket.
// Requests and responses are newline-delimited JSON values; a connection may
// carry any number of request/response pairs.

const (
	opGet    = "get"
	opPut    = "put"
	opDelete = "delete"
)

type Request struct {
	Op   string `json:"op"` // "get" | "put" | "delete"
	Name string `json:"name"`
	Data []byte `json:"data,omitempty"`
}

type Response struct {
	OK    bool   `json:"ok"`
	Data  []byte `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
	// Code is the error code of a failed request, so NOT_FOUND survives the
	// round trip.
	Code string `json:"code,omitempty"`
}
