// Package auth resolves and stores the bearer token sent to the service.
package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/lydakis/coex/internal/paths"
)

// EnvToken is the environment variable consulted for a token.
const EnvToken = "KB_AUTH_TOKEN"

// ErrNoToken is returned when no credential source yields a token.
var ErrNoToken = errors.New("no auth token available: pass --token, set " + EnvToken + ", or run `coex login`")

// Source lists the places a token may come from, in precedence order.
type Source struct {
	Token     string // explicit token, wins over everything else
	TokenFile string // defaults to paths.TokenFile()
	LookupEnv func(string) (string, bool)
}

// Resolve returns the first non-empty token from src.
func Resolve(src Source) (string, error) {
	if tok := strings.TrimSpace(src.Token); tok != "" {
		return tok, nil
	}

	lookup := src.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if tok, ok := lookup(EnvToken); ok && strings.TrimSpace(tok) != "" {
		return strings.TrimSpace(tok), nil
	}

	path := src.TokenFile
	if path == "" {
		path = paths.TokenFile()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoToken
		}
		return "", fmt.Errorf("reading token file: %w", err)
	}
	if tok := strings.TrimSpace(string(data)); tok != "" {
		return tok, nil
	}
	return "", ErrNoToken
}

// HeaderValue formats token for the Authorization header. Tokens that already
// carry a scheme are sent as-is.
func HeaderValue(token string) string {
	token = strings.TrimSpace(token)
	if token == "" {
		return ""
	}
	if strings.ContainsAny(token, " \t") {
		return token
	}
	return "Bearer " + token
}

// SaveToken writes token to path atomically with owner-only permissions.
func SaveToken(path, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("refusing to save empty token")
	}
	if path == "" {
		path = paths.TokenFile()
	}
	if err := paths.WriteFileAtomic(path, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}
	return nil
}
