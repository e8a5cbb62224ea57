// Package coexpression is the client for the gene co-expression service.
//
// Both domain operations enqueue server-side jobs and return job ids; the
// network construction and clustering run remotely. Every call is a single
// authenticated JSON-RPC 1.1 round trip with no retries.
package coexpression

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lydakis/coex/internal/auth"
	"github.com/lydakis/coex/internal/jsonrpc"
)

const (
	// ServiceName prefixes every method sent on the wire.
	ServiceName = "CoExpression"
	// ClientVersion is the API version this client was generated against.
	ClientVersion = "0.1.0"
	// DefaultTimeout bounds a call when no override is configured.
	DefaultTimeout = 30 * time.Minute
)

// Operation names as sent on the wire, without the service prefix.
const (
	OpFilterGenes       = "filter_genes"
	OpConstCoexNetClust = "const_coex_net_clust"
	OpVersion           = "version"
)

// Options configures New.
type Options struct {
	URL          string
	Token        string
	Timeout      time.Duration
	Headers      map[string]string
	HTTPClient   jsonrpc.Doer
	CheckVersion bool
	Warn         func(msg string)
}

// Client calls the co-expression service. It is immutable after New and safe
// for concurrent use.
type Client struct {
	rpc *jsonrpc.Client
}

// New builds an authenticated client. It fails without returning a client
// when no token is supplied, and, with CheckVersion set, when the server
// version is incompatible.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, errors.New("service URL is required")
	}
	if strings.TrimSpace(opts.Token) == "" {
		return nil, auth.ErrNoToken
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	var rpcOpts []jsonrpc.Option
	if opts.HTTPClient != nil {
		rpcOpts = append(rpcOpts, jsonrpc.WithDoer(opts.HTTPClient))
	}
	c := &Client{
		rpc: jsonrpc.NewClient(jsonrpc.Endpoint{
			URL:           strings.TrimSpace(opts.URL),
			Timeout:       timeout,
			Authorization: auth.HeaderValue(opts.Token),
			Headers:       opts.Headers,
		}, rpcOpts...),
	}

	if opts.CheckVersion {
		warnings, err := c.CheckCompatibility(ctx)
		if err != nil {
			return nil, err
		}
		if opts.Warn != nil {
			for _, w := range warnings {
				opts.Warn(w)
			}
		}
	}
	return c, nil
}

// Endpoint returns the target the client was built for.
func (c *Client) Endpoint() jsonrpc.Endpoint {
	return c.rpc.Endpoint()
}

// FilterGenes enqueues gene filtering and returns the job ids. It takes
// exactly one parameter map: Params, map[string]string, map[string]any with
// string values, or a ParamsEncoder such as FilterGenesRequest.
func (c *Client) FilterGenes(ctx context.Context, args ...any) ([]string, error) {
	return c.submit(ctx, OpFilterGenes, args)
}

// ConstCoexNetClust enqueues co-expression network construction and
// clustering and returns the job ids. Arguments follow FilterGenes.
func (c *Client) ConstCoexNetClust(ctx context.Context, args ...any) ([]string, error) {
	return c.submit(ctx, OpConstCoexNetClust, args)
}

// Submit dispatches a domain operation by its wire name.
func (c *Client) Submit(ctx context.Context, op string, args ...any) ([]string, error) {
	switch op {
	case OpFilterGenes, OpConstCoexNetClust:
		return c.submit(ctx, op, args)
	default:
		return nil, &jsonrpc.ArgumentValidationError{
			Function: op,
			Count:    len(args),
			Reason:   "unknown operation",
		}
	}
}

func (c *Client) submit(ctx context.Context, op string, args []any) ([]string, error) {
	params, err := paramsFromArgs(op, args)
	if err != nil {
		return nil, err
	}

	var jobIDs []string
	if err := c.rpc.Call(ctx, ServiceName+"."+op, []any{params}, &jobIDs); err != nil {
		return nil, err
	}
	return jobIDs, nil
}

// Version returns the semantic version reported by the server.
func (c *Client) Version(ctx context.Context) (string, error) {
	var raw json.RawMessage
	if err := c.rpc.Call(ctx, ServiceName+"."+OpVersion, []any{}, &raw); err != nil {
		return "", err
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list[0], nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return single, nil
	}
	return "", &jsonrpc.JSONRPCError{
		Method:  ServiceName + "." + OpVersion,
		Name:    "Unknown",
		Message: fmt.Sprintf("unexpected version result %s", raw),
	}
}

// CheckCompatibility fetches the server version and compares it with
// ClientVersion.
func (c *Client) CheckCompatibility(ctx context.Context) ([]string, error) {
	serverVersion, err := c.Version(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching server version: %w", err)
	}
	return jsonrpc.CheckCompatibility(ClientVersion, serverVersion)
}
