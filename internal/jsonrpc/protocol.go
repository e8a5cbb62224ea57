package jsonrpc

import (
	"encoding/json"
	"strings"
)

// Version is the JSON-RPC protocol version sent on every request.
const Version = "1.1"

// Request is a JSON-RPC 1.1 request body.
type Request struct {
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	Version string `json:"version"`
	ID      string `json:"id"`
}

// Response is a JSON-RPC 1.1 response body.
type Response struct {
	Version string          `json:"version,omitempty"`
	ID      string          `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
}

// ErrorObject is the error member of a JSON-RPC response.
type ErrorObject struct {
	Name    string          `json:"name,omitempty"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"` // server-side traceback
}

// IsSystemMethod reports whether method is a service introspection call.
func IsSystemMethod(method string) bool {
	return strings.HasPrefix(method, "system.")
}

func hasResultField(body []byte) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return false
	}
	_, ok := fields["result"]
	return ok
}
