// Package provider is the plugin registry this module's layer engine is
// exposed through: a concrete provider registers an InitFunc under a
// name; callers look the provider up by name and configure it with a
// dict.Dicter, getting back the four-hook surface §6 exposes —
// ClassFactory, ProviderKey, Description, IsProvider.
package provider

import (
	"fmt"

	"github.com/vectorlayer/spatialite/internal/dict"
	"github.com/vectorlayer/spatialite/internal/log"
	"github.com/vectorlayer/spatialite/layer"
)

// ErrNilInitFunc is returned by Register when init is nil.
var ErrNilInitFunc = fmt.Errorf("provider: init function cannot be nil")

// ErrUnknownProvider is returned by For when name names no registered
// provider.
type ErrUnknownProvider struct {
	Name           string
	KnownProviders []string
}

func (e ErrUnknownProvider) Error() string {
	return fmt.Sprintf("provider: unknown provider %q, known providers: %v", e.Name, e.KnownProviders)
}

// Provider is the plugin surface a registered, configured provider
// exposes (§6).
type Provider interface {
	// ClassFactory opens and classifies the layer named by rawURI,
	// returning its handle.
	ClassFactory(rawURI string) (*layer.Layer, error)
	// ProviderKey identifies this provider, e.g. "spatialite".
	ProviderKey() string
	// Description is a human-readable summary of this provider.
	Description() string
	// IsProvider always reports true for a concrete, registered
	// provider; it lets a Provider value be distinguished from a bare
	// interface{} at call sites that accept either.
	IsProvider() bool
}

// InitFunc configures and returns a Provider from a config map. It
// should validate the config and report any errors; it is called by
// For.
type InitFunc func(config dict.Dicter) (Provider, error)

// CleanupFunc is called when the system shuts down, letting a provider
// release pooled resources (open database handles, cloud-backend
// caches).
type CleanupFunc func()

type pfns struct {
	init    InitFunc
	cleanup CleanupFunc
}

var providers map[string]pfns

// Register registers a provider's InitFunc under name; generally called
// from the registering package's init function. cleanup may be nil.
func Register(name string, init InitFunc, cleanup CleanupFunc) error {
	if init == nil {
		return ErrNilInitFunc
	}
	if providers == nil {
		providers = make(map[string]pfns)
	}
	if _, ok := providers[name]; ok {
		return fmt.Errorf("provider: %q already registered", name)
	}
	providers[name] = pfns{init: init, cleanup: cleanup}
	return nil
}

// Drivers returns the names of every registered provider.
func Drivers() []string {
	l := make([]string, 0, len(providers))
	for k := range providers {
		l = append(l, k)
	}
	return l
}

// For returns a configured provider of the given name.
func For(name string, config dict.Dicter) (Provider, error) {
	p, ok := providers[name]
	if !ok {
		return nil, ErrUnknownProvider{Name: name, KnownProviders: Drivers()}
	}
	return p.init(config)
}

// Cleanup calls every registered provider's cleanup function, if it has
// one. Called once at shutdown.
func Cleanup() {
	log.Info("provider: cleaning up registered providers")
	for name, p := range providers {
		if p.cleanup != nil {
			log.Debugf("provider: cleaning up %q", name)
			p.cleanup()
		}
	}
}
