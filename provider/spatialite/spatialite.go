// Package spatialite registers this module's production provider: a
// config-driven spatialite layer source backed by the pool, catalog,
// cursor, mutate, and layer packages. Config reading is grounded on the
// teacher's provider/postgis.CreateProvider (same
// required-then-optional-with-default field ordering, same
// dict.Dicter.String call shape).
package spatialite

import (
	"context"
	"fmt"
	"sync"

	"github.com/vectorlayer/spatialite/internal/dict"
	"github.com/vectorlayer/spatialite/layer"
	"github.com/vectorlayer/spatialite/pool"
	"github.com/vectorlayer/spatialite/provider"
)

// Name is the driver name this provider registers under (§6:
// providerKey() → "spatialite").
const Name = "spatialite"

// Config keys this provider reads from its dict.Dicter.
const (
	ConfigKeyFilePath  = "filepath"
	ConfigKeyBackend   = "backend" // "local" (default), "s3", or "azure"
	ConfigKeyBucket    = "bucket"
	ConfigKeyKey       = "key"
	ConfigKeyRegion    = "region"
	ConfigKeyCacheDir  = "cachedir"
	ConfigKeyAccount   = "account"
	ConfigKeyAccessKey = "accesskey"
	ConfigKeyContainer = "container"
	ConfigKeyBlob      = "blob"
)

func init() {
	if err := provider.Register(Name, NewProvider, Cleanup); err != nil {
		panic(err)
	}
}

var (
	mu        sync.Mutex
	instances []*Provider
)

// Cleanup forgets every Provider this process has created through
// NewProvider, called once at shutdown. It does not close any pooled
// connection; each layer releases its own handle through Layer.Close.
func Cleanup() {
	mu.Lock()
	defer mu.Unlock()
	instances = nil
}

// Provider is the registered, configured spatialite provider: a pool
// and the backend every ClassFactory call against it resolves through.
type Provider struct {
	pool    *pool.Pool
	backend pool.Backend
}

// NewProvider implements provider.InitFunc. The config keys it reads:
//
//	filepath (string): [*Required, local backend only] path to the database file.
//	backend (string): [Optional] "local" (default), "s3", or "azure".
//	bucket, key, region, cachedir (string): [*Required for the s3 backend]
//	account, accesskey, container, blob, cachedir (string): [*Required for the azure backend]
func NewProvider(config dict.Dicter) (provider.Provider, error) {
	defaultBackend := "local"
	backendKind, err := config.String(ConfigKeyBackend, &defaultBackend)
	if err != nil {
		return nil, err
	}

	var backend pool.Backend
	switch backendKind {
	case "local":
		path, err := config.String(ConfigKeyFilePath, nil)
		if err != nil {
			return nil, err
		}
		backend = &pool.LocalBackend{Path: path}

	case "s3":
		bucket, err := config.String(ConfigKeyBucket, nil)
		if err != nil {
			return nil, err
		}
		key, err := config.String(ConfigKeyKey, nil)
		if err != nil {
			return nil, err
		}
		region, err := config.String(ConfigKeyRegion, nil)
		if err != nil {
			return nil, err
		}
		cacheDir, err := config.String(ConfigKeyCacheDir, nil)
		if err != nil {
			return nil, err
		}
		backend = &pool.S3Backend{Bucket: bucket, Key: key, Region: region, CacheDir: cacheDir}

	case "azure":
		account, err := config.String(ConfigKeyAccount, nil)
		if err != nil {
			return nil, err
		}
		accessKey, err := config.String(ConfigKeyAccessKey, nil)
		if err != nil {
			return nil, err
		}
		container, err := config.String(ConfigKeyContainer, nil)
		if err != nil {
			return nil, err
		}
		blob, err := config.String(ConfigKeyBlob, nil)
		if err != nil {
			return nil, err
		}
		cacheDir, err := config.String(ConfigKeyCacheDir, nil)
		if err != nil {
			return nil, err
		}
		backend = &pool.AzureBackend{AccountName: account, AccountKey: accessKey, ContainerName: container, BlobName: blob, CacheDir: cacheDir}

	default:
		return nil, fmt.Errorf("spatialite: unknown backend %q", backendKind)
	}

	p := &Provider{pool: pool.New(), backend: backend}

	mu.Lock()
	instances = append(instances, p)
	mu.Unlock()

	return p, nil
}

// ClassFactory opens and classifies the layer named by rawURI.
func (p *Provider) ClassFactory(rawURI string) (*layer.Layer, error) {
	return layer.Open(context.Background(), p.pool, p.backend, rawURI)
}

// ProviderKey identifies this provider to the registry.
func (p *Provider) ProviderKey() string { return Name }

// Description is a human-readable summary of this provider.
func (p *Provider) Description() string {
	return "SQLite/SpatiaLite layer source, with local, S3, and Azure blob backends"
}

// IsProvider always reports true.
func (p *Provider) IsProvider() bool { return true }
