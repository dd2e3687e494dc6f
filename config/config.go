// Package config loads this module's TOML configuration file: the set
// of layer providers callers want registered, and the webserver
// settings httpapi listens on. Decoding is handled by
// github.com/BurntSushi/toml; an fsnotify watch lets a long-running
// process pick up edits without restarting.
package config

import (
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"regexp"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"

	"github.com/vectorlayer/spatialite/internal/dict"
	"github.com/vectorlayer/spatialite/internal/log"
)

// Webserver holds the settings httpapi's server is started with.
type Webserver struct {
	HostName string `toml:"hostname"`
	Port     string `toml:"port"`
}

// Provider is a single [[providers]] table: a name, a driver key
// matching a provider.Register'd name, and a nested [providers.params]
// table of driver-specific key/values passed through as a dict.Dict.
type Provider struct {
	Name   string                 `toml:"name"`
	Type   string                 `toml:"type"`
	Params map[string]interface{} `toml:"params"`
}

// AsDict returns the provider's driver-specific parameters, ready to
// hand to provider.For.
func (p Provider) AsDict() dict.Dict {
	d := make(dict.Dict, len(p.Params))
	for k, v := range p.Params {
		d[k] = v
	}
	return d
}

// Config is the top-level shape a TOML config file decodes into.
type Config struct {
	Webserver Webserver  `toml:"webserver"`
	Providers []Provider `toml:"providers"`

	path string
}

// envVarPattern matches a $ followed by a shell-style identifier:
// letters, digits, underscore, starting with a letter or underscore.
// A bare "$" not followed by such an identifier (e.g. "$32.78") is
// left untouched.
var envVarPattern = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)

// replaceEnvVars substitutes every $IDENT token in rdr with the value
// of the matching environment variable, using an empty string when
// the variable is unset. Tokens that aren't valid identifiers (e.g. a
// dollar amount like $32.78) are left alone.
func replaceEnvVars(rdr io.Reader) (io.Reader, error) {
	raw, err := ioutil.ReadAll(rdr)
	if err != nil {
		return nil, err
	}
	replaced := envVarPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		name := envVarPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(name)))
	})
	return bytes.NewReader(replaced), nil
}

// Load reads and decodes the TOML config file at path, substituting
// environment variables before handing the result to the TOML
// decoder.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: opening %s: %w", path, err)
	}
	defer f.Close()

	substituted, err := replaceEnvVars(f)
	if err != nil {
		return nil, fmt.Errorf("config: substituting environment variables in %s: %w", path, err)
	}

	var cfg Config
	if _, err := toml.DecodeReader(substituted, &cfg); err != nil {
		return nil, fmt.Errorf("config: decoding %s: %w", path, err)
	}
	cfg.path = path
	return &cfg, nil
}

// Validate checks the decoded config for the minimum shape httpapi
// and the provider registry need before startup: every provider needs
// a name and a type, and names must be unique.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Providers))
	for _, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("config: provider missing required \"name\"")
		}
		if p.Type == "" {
			return fmt.Errorf("config: provider %q missing required \"type\"", p.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("config: duplicate provider name %q", p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

// Watcher reloads a Config from disk whenever its backing file
// changes, handing the new value to OnReload.
type Watcher struct {
	OnReload func(*Config, error)

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// Watch starts watching path for writes, calling w.OnReload with
// every reload attempt (including ones that fail to parse, so the
// caller can decide whether to keep running on the last-good config).
// Callers must call Close when done.
func Watch(path string, onReload func(*Config, error)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: starting watcher: %w", err)
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, fmt.Errorf("config: watching %s: %w", path, err)
	}

	w := &Watcher{
		OnReload: onReload,
		watcher:  fw,
		done:     make(chan struct{}),
	}
	go w.loop(path)
	return w, nil
}

func (w *Watcher) loop(path string) {
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(path)
			if err == nil {
				err = cfg.Validate()
			}
			if err != nil {
				log.Errorf("config: reload of %s failed: %v", path, err)
			} else {
				log.Infof("config: reloaded %s", path)
			}
			w.OnReload(cfg, err)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Errorf("config: watcher error on %s: %v", path, err)
		case <-w.done:
			return
		}
	}
}

// Close stops the watch goroutine and releases the underlying
// fsnotify watcher.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	select {
	case <-w.done:
		return nil
	default:
		close(w.done)
	}
	return w.watcher.Close()
}
