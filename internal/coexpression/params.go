package coexpression

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/lydakis/coex/internal/jsonrpc"
	"github.com/spf13/cast"
)

// Parameter field names shared by the service operations.
const (
	FieldWorkspaceID = "ws_id"
	FieldInputID     = "inobj_id"
	FieldOutputID    = "outobj_id"
	FieldPValue      = "p_value"
	FieldMethod      = "method"
	FieldNumGenes    = "num_genes"
	FieldCutOff      = "cut_off"
	FieldNetMethod   = "net_method"
	FieldClustMethod = "clust_method"
	FieldNumModules  = "num_modules"
)

// Field sets expected by each operation, in wire documentation order.
var (
	FilterGenesFields = []string{
		FieldWorkspaceID, FieldInputID, FieldOutputID, FieldPValue, FieldMethod, FieldNumGenes,
	}
	ConstCoexNetClustFields = []string{
		FieldWorkspaceID, FieldInputID, FieldOutputID, FieldCutOff, FieldNetMethod, FieldClustMethod, FieldNumModules,
	}
)

// Params is the single argument of every domain operation. Values are always
// strings, numeric thresholds included, so the wire form is exact.
type Params map[string]string

// ParamsEncoder is implemented by typed request builders.
type ParamsEncoder interface {
	Params() (Params, error)
}

// Clone returns an independent copy of p.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Missing returns the names in fields that p lacks or leaves empty, sorted.
func (p Params) Missing(fields ...string) []string {
	var missing []string
	for _, f := range fields {
		if p[f] == "" {
			missing = append(missing, f)
		}
	}
	sort.Strings(missing)
	return missing
}

// FieldsFor returns the expected field set of a domain operation.
func FieldsFor(op string) ([]string, bool) {
	switch op {
	case OpFilterGenes:
		return append([]string(nil), FilterGenesFields...), true
	case OpConstCoexNetClust:
		return append([]string(nil), ConstCoexNetClustFields...), true
	default:
		return nil, false
	}
}

// paramsFromArgs enforces the single-map-argument contract without touching
// the network. The caller's map is copied, never mutated.
func paramsFromArgs(op string, args []any) (Params, error) {
	if len(args) != 1 {
		return nil, &jsonrpc.ArgumentValidationError{Function: op, Count: len(args)}
	}

	invalid := func(format string, a ...any) error {
		return &jsonrpc.ArgumentValidationError{Function: op, Count: 1, Reason: fmt.Sprintf(format, a...)}
	}

	switch v := args[0].(type) {
	case nil:
		return nil, invalid("argument must be a parameter map, got nil")
	case Params:
		if v == nil {
			return nil, invalid("argument must be a parameter map, got nil map")
		}
		return v.Clone(), nil
	case map[string]string:
		if v == nil {
			return nil, invalid("argument must be a parameter map, got nil map")
		}
		return Params(v).Clone(), nil
	case map[string]any:
		if v == nil {
			return nil, invalid("argument must be a parameter map, got nil map")
		}
		out := make(Params, len(v))
		for key, raw := range v {
			s, ok := raw.(string)
			if !ok {
				return nil, invalid("parameter %q must be a string, got %T", key, raw)
			}
			out[key] = s
		}
		return out, nil
	case ParamsEncoder:
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
			return nil, invalid("argument must be a parameter map, got nil %T", v)
		}
		p, err := v.Params()
		if err != nil {
			return nil, invalid("%v", err)
		}
		return p, nil
	default:
		return nil, invalid("argument must be a parameter map, got %T", args[0])
	}
}

// CoerceParams renders decoded JSON values (numbers, booleans, strings) in
// their string wire form. Decode with UseNumber to keep number text exact.
// Nil values are dropped; objects and arrays are rejected.
func CoerceParams(values map[string]any) (Params, error) {
	params := make(Params, len(values))
	for key, raw := range values {
		if raw == nil {
			continue
		}
		switch raw.(type) {
		case map[string]any, []any:
			return nil, fmt.Errorf("%s must be a scalar, got %T", key, raw)
		}
		s, err := cast.ToStringE(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		params[key] = s
	}
	return params, nil
}
