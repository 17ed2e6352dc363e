package executor

import (
	"encoding/json"

	"github.com/MasterOfBinary/malbatch/sample"
)

// request asks a worker process to apply a transform to one sample. Requests
// and responses are exchanged as one JSON object per line.
type request struct {
	ID        uint64         `json:"id"`
	Provider  string         `json:"provider"`
	Transform string         `json:"transform"`
	Sample    *sample.Sample `json:"sample"`
}

// response carries the JSON encoded result of a request, or the error the
// transform failed with.
type response struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// RemoteError is a transform failure reported by a worker process. Only the
// message survives the process boundary.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// Named is implemented by transforms that can be looked up by name in a
// worker process. ProcessPool sends the name instead of the transform.
type Named interface {
	TransformName() string
}
