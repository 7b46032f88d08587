// Package lookup provides the handlers that fetch the detail record of an IP
// address: the ipinfo.io HTTP API and local MaxMind / IP2Location databases.
package lookup

import (
	"context"
	"fmt"
	"strings"

	"github.com/imnitish-dev/ipenrich/details"
)

// Handler fetches the detail record for a single address.
type Handler interface {
	FetchDetails(ctx context.Context, ip string) (*details.Record, error)
}

// Factory builds a handler authenticated with token.
type Factory func(token string) (Handler, error)

// Provider names a lookup backend.
type Provider string

const (
	IPInfoProvider      Provider = "ipinfo"
	MaxMindProvider     Provider = "maxmind"
	IP2LocationProvider Provider = "ip2location"
)

// ParseProvider resolves a case-insensitive provider name.
func ParseProvider(name string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(name))); p {
	case IPInfoProvider, MaxMindProvider, IP2LocationProvider:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidProvider, name)
	}
}

// Local reports whether the provider reads from a database file on disk.
func (p Provider) Local() bool {
	return p == MaxMindProvider || p == IP2LocationProvider
}
