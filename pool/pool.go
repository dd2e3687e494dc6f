// Package pool shares one *sql.DB per canonical database path across
// layers, reference-counting so the last release closes the handle
// (§4.E). Mutation of the pool is serialized by a mutex so an embedding
// multi-threaded host doesn't need to provide its own lock around
// Open/Close (§5).
package pool

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/vectorlayer/spatialite/internal/log"
)

// sanityQuery is run against every freshly opened database; a row back
// confirms the file really is a spatial-metadata-bearing database rather
// than an arbitrary SQLite file (§3 Connection record, §7 DbOpenFailed).
const sanityQuery = `SELECT name FROM sqlite_master WHERE type='table' AND name='spatial_ref_sys' LIMIT 1`

// ErrDBOpenFailed wraps the underlying driver error when a database
// fails to open or fails the sanity query.
type ErrDBOpenFailed struct {
	Path string
	Err  error
}

func (e ErrDBOpenFailed) Error() string {
	return fmt.Sprintf("pool: opening %q failed: %v", e.Path, e.Err)
}

func (e ErrDBOpenFailed) Unwrap() error { return e.Err }

// Backend resolves a URI's database-file segment to a local path a
// sql.Open call can use, downloading it first if it names a remote
// object. Grounded on gokoala's local/cloud GeoPackage backend split —
// this module generalizes it to any Backend rather than hard-coding two
// switch cases.
type Backend interface {
	// LocalPath returns a filesystem path the sqlite3 driver can open
	// directly, fetching the file into a local cache first if needed.
	LocalPath(ctx context.Context) (string, error)
}

type handle struct {
	db       *sql.DB
	refCount int
	path     string
}

// Pool is a reference-counted registry of open database handles, keyed
// by canonical (backend-resolved) path.
type Pool struct {
	mu      sync.Mutex
	handles map[string]*handle
}

// New returns an empty pool. The zero value is also usable; New exists
// for symmetry with the rest of this module's constructors.
func New() *Pool {
	return &Pool{handles: make(map[string]*handle)}
}

// Handle is the reference a layer holds into the pool. Release must be
// called exactly once.
type Handle struct {
	pool *Pool
	key  string
	db   *sql.DB
}

// DB returns the shared *sql.DB this handle references.
func (h *Handle) DB() *sql.DB { return h.db }

// Key returns the handle's pool key: the absolute path backing this
// handle's connection, used by callers that cache per-database state
// alongside the connection itself.
func (h *Handle) Key() string { return h.key }

// Open resolves localPath (already downloaded/verified by the caller's
// Backend) to a shared handle, opening and sanity-checking the
// database only if no other layer currently references it.
func (p *Pool) Open(localPath string) (*Handle, error) {
	key, err := filepath.Abs(localPath)
	if err != nil {
		key = localPath
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.handles == nil {
		p.handles = make(map[string]*handle)
	}

	if h, ok := p.handles[key]; ok {
		h.refCount++
		log.Debugf("pool: reusing handle for %s (refcount now %d)", key, h.refCount)
		return &Handle{pool: p, key: key, db: h.db}, nil
	}

	db, err := sql.Open("sqlite3_with_extensions", key)
	if err != nil {
		return nil, ErrDBOpenFailed{Path: key, Err: err}
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, ErrDBOpenFailed{Path: key, Err: errors.Wrap(err, "enabling foreign_keys")}
	}
	row := db.QueryRow(sanityQuery)
	var name string
	if err := row.Scan(&name); err != nil {
		db.Close()
		return nil, ErrDBOpenFailed{Path: key, Err: errors.Wrap(err, "sanity query found no spatial_ref_sys table")}
	}

	p.handles[key] = &handle{db: db, refCount: 1, path: key}
	log.Debugf("pool: opened new handle for %s", key)
	return &Handle{pool: p, key: key, db: db}, nil
}

// Release decrements the handle's reference count, closing the
// underlying *sql.DB only when the count reaches zero.
func (h *Handle) Release() error {
	p := h.pool
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.handles[h.key]
	if !ok {
		return nil
	}
	entry.refCount--
	if entry.refCount > 0 {
		return nil
	}
	delete(p.handles, h.key)
	log.Debugf("pool: closing handle for %s", h.key)
	return entry.db.Close()
}

// RefCount reports the current reference count for path, for tests and
// diagnostics. Returns 0 if the path has no open handle.
func (p *Pool) RefCount(localPath string) int {
	key, err := filepath.Abs(localPath)
	if err != nil {
		key = localPath
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if h, ok := p.handles[key]; ok {
		return h.refCount
	}
	return 0
}

// OpenBackend resolves b to a local path and opens it through Open,
// so callers needn't special-case local vs. cloud-backed databases.
func (p *Pool) OpenBackend(ctx context.Context, b Backend) (*Handle, error) {
	local, err := b.LocalPath(ctx)
	if err != nil {
		return nil, ErrDBOpenFailed{Err: err}
	}
	return p.Open(local)
}

// statFile is a small seam kept separate so backend_local.go's existence
// check is table-testable without touching the real filesystem.
var statFile = os.Stat
