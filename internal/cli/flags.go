package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/lydakis/coex/internal/coexpression"
	"github.com/lydakis/coex/internal/httpheaders"
)

// submitInput collects the raw pieces of a submission before they are merged
// into one parameter map. Later sources win: JSON object, then --param, then
// typed flags.
type submitInput struct {
	positional []string
	params     []string
	typed      coexpression.Params
	stdin      io.Reader
	stdinIsTTY bool
}

func (in submitInput) merge() (coexpression.Params, error) {
	if len(in.positional) > 1 {
		return nil, usageErrorf("multiple positional arguments are not supported")
	}

	out := make(coexpression.Params)
	var rawJSON string
	switch {
	case len(in.positional) == 1:
		rawJSON = in.positional[0]
	case len(in.params) == 0 && len(in.typed) == 0 && !in.stdinIsTTY && in.stdin != nil:
		data, err := io.ReadAll(in.stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		rawJSON = strings.TrimSpace(string(data))
	}

	if rawJSON != "" {
		obj, err := parseJSONObject(rawJSON)
		if err != nil {
			return nil, usageErrorf("%v", err)
		}
		coerced, err := coexpression.CoerceParams(obj)
		if err != nil {
			return nil, usageErrorf("invalid JSON arguments: %v", err)
		}
		for k, v := range coerced {
			out[k] = v
		}
	}

	for _, raw := range in.params {
		key, value, err := parseKeyValue("--param", raw)
		if err != nil {
			return nil, err
		}
		out[key] = value
	}

	for k, v := range in.typed {
		out[k] = v
	}
	return out, nil
}

// parseJSONObject keeps numbers as json.Number so their text reaches the
// wire unchanged.
func parseJSONObject(raw string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		return nil, fmt.Errorf("invalid JSON arguments: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("invalid JSON arguments: trailing data after object")
	}

	obj, ok := decoded.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("JSON arguments must be an object")
	}
	return obj, nil
}

// parseKeyValue splits a key=value flag value. The value may contain further
// '=' characters.
func parseKeyValue(flag, raw string) (string, string, error) {
	eq := strings.Index(raw, "=")
	if eq < 0 {
		return "", "", usageErrorf("invalid %s %q: want key=value", flag, raw)
	}
	key := strings.TrimSpace(raw[:eq])
	if key == "" {
		return "", "", usageErrorf("invalid %s %q: empty key", flag, raw)
	}
	return key, raw[eq+1:], nil
}

// parseHeaders collects repeated --header values. Later values win.
func parseHeaders(raw []string) (map[string]string, error) {
	var headers map[string]string
	for _, h := range raw {
		name, value, err := parseKeyValue("--header", h)
		if err != nil {
			return nil, err
		}
		headers = httpheaders.Set(headers, name, strings.TrimSpace(value))
	}
	return headers, nil
}

// flagName maps a wire field to its command-line flag.
func flagName(field string) string {
	return strings.ReplaceAll(field, "_", "-")
}

func stdinIsTTY(r io.Reader) bool {
	file, ok := r.(*os.File)
	if !ok {
		return false
	}
	info, err := file.Stat()
	if err != nil {
		return true
	}
	return info.Mode()&fs.ModeCharDevice != 0
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
