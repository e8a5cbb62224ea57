package cli

import (
	"errors"
	"fmt"

	"github.com/lydakis/coex/internal/auth"
	"github.com/lydakis/coex/internal/jsonrpc"
	"github.com/mark3labs/mcp-go/mcp"
)

// Exit codes.
const (
	ExitOK           = 0
	ExitServerErr    = 1 // the service answered with an error object
	ExitUsageErr     = 2
	ExitInternal     = 3 // transport failures and local faults
	ExitIncompatible = 4
)

// usageError marks mistakes in how coex was invoked.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usageErrorf(format string, a ...any) error {
	return &usageError{err: fmt.Errorf(format, a...)}
}

func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var uerr *usageError
	if errors.As(err, &uerr) || errors.Is(err, auth.ErrNoToken) {
		return ExitUsageErr
	}

	switch jsonrpc.KindOf(err) {
	case jsonrpc.KindArgument:
		return ExitUsageErr
	case jsonrpc.KindProtocol:
		if errors.Is(err, mcp.ErrInvalidParams) || errors.Is(err, mcp.ErrMethodNotFound) {
			return ExitUsageErr
		}
		return ExitServerErr
	case jsonrpc.KindIncompatible:
		return ExitIncompatible
	default:
		return ExitInternal
	}
}
