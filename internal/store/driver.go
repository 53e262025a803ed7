package store

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// dialects keyed by canonical driver name
var dialects = map[string]func(dsn string) gorm.Dialector{
	"sqlite":   sqlite.Open,
	"postgres": postgres.Open,
}

var driverAliases = map[string]string{
	"sqlite3":    "sqlite",
	"postgresql": "postgres",
	"pgx":        "postgres",
}

// canonicalDriver folds case and common aliases (sqlite3, postgresql, pgx)
func canonicalDriver(driver string) string {
	driver = strings.ToLower(strings.TrimSpace(driver))
	if alias, ok := driverAliases[driver]; ok {
		return alias
	}
	return driver
}

// GetDialector returns a GORM dialector for DATABASE_DRIVER and its DSN
func GetDialector(driver, dsn string) (gorm.Dialector, error) {
	open, ok := dialects[canonicalDriver(driver)]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q (want sqlite or postgres)", driver)
	}
	if dsn == "" {
		return nil, fmt.Errorf("database DSN is empty for driver %q", driver)
	}
	return open(dsn), nil
}
