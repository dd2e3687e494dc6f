package providertest

import (
	"context"
	"os"

	"github.com/vectorlayer/spatialite/internal/dict"
	"github.com/vectorlayer/spatialite/layer"
	"github.com/vectorlayer/spatialite/pool"
	"github.com/vectorlayer/spatialite/provider"
)

// Name is the driver name this test provider registers under.
const Name = "providertest"

// Count tracks how many times NewProvider has been called, mirroring
// the teacher's emptycollection test provider's instrumentation.
var Count int

func init() {
	if err := provider.Register(Name, NewProvider, Cleanup); err != nil {
		panic(err)
	}
}

// Cleanup resets Count and removes every fixture file this provider has
// created.
func Cleanup() {
	Count = 0
	for _, path := range liveFixturePaths {
		os.Remove(path)
	}
	liveFixturePaths = nil
}

var liveFixturePaths []string

// TestProvider is a registry-driven provider over a disposable,
// bootstrapped SpatiaLite fixture database — unlike Fixture (above),
// which a test builds directly, this is reachable through
// provider.For(providertest.Name, cfg), exercising the same config path
// a production-registered provider would.
type TestProvider struct {
	pool    *pool.Pool
	backend pool.Backend
}

// NewProvider implements provider.InitFunc: it bootstraps a fresh
// fixture database (ignoring config, since there are no test-provider
// options) and returns a Provider over it.
func NewProvider(config dict.Dicter) (provider.Provider, error) {
	Count++
	path, err := tempFixturePath()
	if err != nil {
		return nil, err
	}
	p, backend, _, err := bootstrap(path)
	if err != nil {
		os.Remove(path)
		return nil, err
	}
	liveFixturePaths = append(liveFixturePaths, path)
	return &TestProvider{pool: p, backend: backend}, nil
}

// ClassFactory opens the layer named by rawURI's table and
// geometrycolumn segments in the fixture database. rawURI's database-file
// segment must be non-empty but is otherwise ignored: the backend always
// resolves to the fixture file, whose only seeded layer is
// "fixture_points".
func (tp *TestProvider) ClassFactory(rawURI string) (*layer.Layer, error) {
	return layer.Open(context.Background(), tp.pool, tp.backend, rawURI)
}

// ProviderKey identifies this provider to the registry.
func (tp *TestProvider) ProviderKey() string { return Name }

// Description is a human-readable summary of this provider.
func (tp *TestProvider) Description() string {
	return "disposable temp-file SpatiaLite fixture, for tests"
}

// IsProvider always reports true.
func (tp *TestProvider) IsProvider() bool { return true }
