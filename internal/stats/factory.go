package stats

import (
	"fmt"
	"strings"
)

// Supported STATS_DRIVER values.
const (
	DriverNone     = "none"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// NewService builds the backend named by driver. An empty driver means none.
func NewService(driver, dsn string) (Service, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverNone:
		return NewNoop(), nil
	case DriverSQLite:
		return NewSQLiteStore(dsn)
	case DriverPostgres, "postgresql":
		return NewPostgresStore(dsn)
	default:
		return nil, fmt.Errorf("invalid STATS_DRIVER %q (supported: %s, %s, %s)",
			driver, DriverNone, DriverSQLite, DriverPostgres)
	}
}
