package store

import (
	"context"
	"fmt"
)

// Driver names accepted by OpenBackend.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Backend bundles the repositories the engine persists through.
type Backend struct {
	Log       Log
	Snapshots SnapshotRepo
	Events    EventRepo // nil when the driver has no audit table

	closeFn func() error
}

// Close releases the backend's resources.
func (b *Backend) Close() error {
	if b.closeFn == nil {
		return nil
	}
	return b.closeFn()
}

// OpenBackend opens the persistence layer for driver. For sqlite an empty
// dsn resolves to DefaultDBPath. Postgres keeps snapshots in memory and
// relies on full replay at startup.
func OpenBackend(ctx context.Context, driver, dsn string) (*Backend, error) {
	switch driver {
	case "", DriverMemory:
		return &Backend{Log: NewMemoryLog(), Snapshots: NewMemorySnapshotRepo()}, nil

	case DriverSQLite:
		if dsn == "" {
			p, err := DefaultDBPath()
			if err != nil {
				return nil, err
			}
			dsn = p
		}
		s, err := Open(dsn)
		if err != nil {
			return nil, err
		}
		return &Backend{Log: s.Log(), Snapshots: s.SnapshotRepo(), Events: s.EventRepo(), closeFn: s.Close}, nil

	case DriverPostgres:
		l, err := OpenPostgres(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return &Backend{Log: l, Snapshots: NewMemorySnapshotRepo(), closeFn: l.Close}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
