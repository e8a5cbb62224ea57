package jsonrpc

import (
	"fmt"
	"strconv"
	"strings"
)

type semver struct {
	major, minor, patch int
}

func parseSemver(raw string) (semver, error) {
	s := strings.TrimPrefix(strings.TrimSpace(raw), "v")
	if i := strings.IndexAny(s, "-+"); i >= 0 {
		s = s[:i]
	}
	parts := strings.Split(s, ".")
	if len(parts) < 2 || len(parts) > 3 {
		return semver{}, fmt.Errorf("invalid semantic version %q", raw)
	}

	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return semver{}, fmt.Errorf("invalid semantic version %q", raw)
		}
		nums[i] = n
	}
	return semver{major: nums[0], minor: nums[1], patch: nums[2]}, nil
}

// CheckCompatibility compares the client's version with the version the
// server reports. A non-nil error is always an *IncompatibleError; warnings
// are advisory.
func CheckCompatibility(clientVersion, serverVersion string) ([]string, error) {
	client, err := parseSemver(clientVersion)
	if err != nil {
		return nil, &IncompatibleError{ClientVersion: clientVersion, ServerVersion: serverVersion, Reason: err.Error()}
	}
	server, err := parseSemver(serverVersion)
	if err != nil {
		return nil, &IncompatibleError{ClientVersion: clientVersion, ServerVersion: serverVersion, Reason: err.Error()}
	}

	if client.major != server.major {
		return nil, &IncompatibleError{
			ClientVersion: clientVersion,
			ServerVersion: serverVersion,
			Reason:        fmt.Sprintf("major versions differ (client %d, server %d)", client.major, server.major),
		}
	}
	if server.minor < client.minor {
		return nil, &IncompatibleError{
			ClientVersion: clientVersion,
			ServerVersion: serverVersion,
			Reason:        fmt.Sprintf("server minor version %d is older than client minor version %d", server.minor, client.minor),
		}
	}

	var warnings []string
	if server.minor > client.minor {
		warnings = append(warnings, fmt.Sprintf(
			"server version %s is newer than client version %s; upgrade the client to use new server features",
			serverVersion, clientVersion))
	}
	if server.major == 0 {
		warnings = append(warnings, fmt.Sprintf(
			"server API version %s is pre-release (major version 0) and may change without notice",
			serverVersion))
	}
	return warnings, nil
}
