package lookup

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"

	"github.com/imnitish-dev/ipenrich/details"
	"github.com/ip2location/ip2location-go/v9"
	"github.com/oschwald/geoip2-golang"
)

// Database is a Handler backed by a local MaxMind or IP2Location file. The
// records it builds use the same field names as the ipinfo API so the rest of
// the pipeline does not care where a record came from.
type Database struct {
	maxmindDB *geoip2.Reader
	ip2locDB  *ip2location.DB
	provider  Provider
	mu        sync.RWMutex
}

// OpenDatabase opens the database file at dbPath for provider.
func OpenDatabase(provider Provider, dbPath string) (*Database, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path is empty")
	}

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrDatabaseNotFound, dbPath)
	}

	d := &Database{
		provider: provider,
	}

	var err error
	switch provider {
	case MaxMindProvider:
		d.maxmindDB, err = geoip2.Open(dbPath)
	case IP2LocationProvider:
		d.ip2locDB, err = ip2location.OpenDB(dbPath)
	default:
		return nil, ErrInvalidProvider
	}

	if err != nil {
		return nil, err
	}

	return d, nil
}

// Provider returns the backend the database was opened for.
func (d *Database) Provider() Provider { return d.provider }

// Close releases the reader; later lookups fail with ErrDatabaseNotFound.
func (d *Database) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.maxmindDB != nil {
		d.maxmindDB.Close()
		d.maxmindDB = nil
	}
	if d.ip2locDB != nil {
		d.ip2locDB.Close()
		d.ip2locDB = nil
	}
}

// Factory hands out d regardless of the token: local files need no credential.
func (d *Database) Factory() Factory {
	return func(string) (Handler, error) { return d, nil }
}

// FetchDetails looks ipStr up in the local file.
func (d *Database) FetchDetails(ctx context.Context, ipStr string) (*details.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	ip := net.ParseIP(ipStr)
	if ip == nil {
		return nil, ErrInvalidIP
	}

	switch d.provider {
	case MaxMindProvider:
		if d.maxmindDB == nil {
			return nil, ErrDatabaseNotFound
		}
		return d.lookupMaxMind(ip)
	case IP2LocationProvider:
		if d.ip2locDB == nil {
			return nil, ErrDatabaseNotFound
		}
		return d.lookupIP2Location(ip)
	default:
		return nil, ErrInvalidProvider
	}
}

func setString(rec *details.Record, key, value string) {
	if value != "" {
		rec.Set(key, details.StringValue(value))
	}
}

// formatLoc renders coordinates the way ipinfo does: "lat,lon" with four
// decimals.
func formatLoc(lat, lon float64) string {
	return strconv.FormatFloat(lat, 'f', 4, 64) + "," + strconv.FormatFloat(lon, 'f', 4, 64)
}
