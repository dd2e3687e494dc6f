package pool

import (
	"database/sql"
	"os"
	"path"

	"github.com/mattn/go-sqlite3"
)

// init registers a sqlite3 driver variant with the SpatiaLite extension
// preloaded, the same way gokoala's geopackage backend does it: the
// extension path defaults to the system library directory and can be
// overridden with SPATIALITE_LIBRARY_PATH for non-standard installs.
func init() {
	driver := &sqlite3.SQLiteDriver{
		Extensions: []string{
			path.Join(os.Getenv("SPATIALITE_LIBRARY_PATH"), "mod_spatialite"),
		},
	}
	sql.Register("sqlite3_with_extensions", driver)
}
