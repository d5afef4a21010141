package config

import (
	"fmt"

	"countryfilter/internal/database"
	"countryfilter/internal/database/boltstore"
	"countryfilter/internal/database/sqlitestore"
)

// OpenStore opens the configured storage backend at DBPath.
func (c *Config) OpenStore() (database.Store, error) {
	switch c.Store {
	case StoreBolt, "":
		return boltstore.Open(boltstore.Options{Path: c.DBPath})
	case StoreSQLite:
		return sqlitestore.Open(c.DBPath)
	default:
		return nil, fmt.Errorf("unknown store backend %q", c.Store)
	}
}
