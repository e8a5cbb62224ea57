package jsonrpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Kind identifies which class of failure an error belongs to.
type Kind int

const (
	KindNone Kind = iota
	KindArgument
	KindProtocol
	KindTransport
	KindIncompatible
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindArgument:
		return "argument"
	case KindProtocol:
		return "protocol"
	case KindTransport:
		return "transport"
	case KindIncompatible:
		return "incompatible"
	default:
		return "unknown"
	}
}

// KindOf classifies err. A nil error is KindNone.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}

	var argErr *ArgumentValidationError
	var rpcErr *JSONRPCError
	var httpErr *HTTPError
	var incErr *IncompatibleError
	switch {
	case errors.As(err, &argErr):
		return KindArgument
	case errors.As(err, &rpcErr):
		return KindProtocol
	case errors.As(err, &httpErr):
		return KindTransport
	case errors.As(err, &incErr):
		return KindIncompatible
	default:
		return KindUnknown
	}
}

// ArgumentValidationError reports a call rejected locally, before any request
// was sent.
type ArgumentValidationError struct {
	Function string
	Count    int
	Reason   string
}

func (e *ArgumentValidationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s (received %d arguments)", e.Function, e.Reason, e.Count)
	}
	return fmt.Sprintf("%s takes exactly 1 argument (%d given)", e.Function, e.Count)
}

// JSONRPCError is an error object returned by the server.
type JSONRPCError struct {
	Method  string
	Name    string
	Code    int
	Message string
	Data    json.RawMessage
	Detail  string // server traceback, when the server sends one
}

func newJSONRPCError(method string, obj *ErrorObject) *JSONRPCError {
	return &JSONRPCError{
		Method:  method,
		Name:    obj.Name,
		Code:    obj.Code,
		Message: obj.Message,
		Data:    append(json.RawMessage(nil), obj.Data...),
		Detail:  obj.Error,
	}
}

func (e *JSONRPCError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "json-rpc error %d", e.Code)
	if e.Name != "" {
		fmt.Fprintf(&b, " (%s)", e.Name)
	}
	if e.Method != "" {
		fmt.Fprintf(&b, " calling %s", e.Method)
	}
	fmt.Fprintf(&b, ": %s", e.Message)
	if len(e.Data) > 0 {
		fmt.Fprintf(&b, "; data: %s", e.Data)
	}
	return b.String()
}

// Unwrap exposes the standard JSON-RPC error sentinels for errors.Is.
func (e *JSONRPCError) Unwrap() error {
	switch e.Code {
	case -32700:
		return mcp.ErrParseError
	case -32601:
		return mcp.ErrMethodNotFound
	case -32602:
		return mcp.ErrInvalidParams
	default:
		return nil
	}
}

// HTTPError is a transport failure: either no response at all, or a response
// that carried no parseable error object.
type HTTPError struct {
	Method     string
	StatusCode int
	Status     string
	Body       string
	Err        error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("calling %s: %v", e.Method, e.Err)
	}
	if e.Body != "" {
		return fmt.Sprintf("calling %s: http %s: %s", e.Method, e.Status, e.Body)
	}
	return fmt.Sprintf("calling %s: http %s", e.Method, e.Status)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// IncompatibleError is returned by CheckCompatibility when client and server
// versions cannot interoperate.
type IncompatibleError struct {
	ClientVersion string
	ServerVersion string
	Reason        string
}

func (e *IncompatibleError) Error() string {
	return fmt.Sprintf("client version %s is incompatible with server version %s: %s",
		e.ClientVersion, e.ServerVersion, e.Reason)
}
