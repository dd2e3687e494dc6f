// Command spatialite runs the layer HTTP API against a TOML config
// file of registered providers.
package main

import (
	"fmt"
	"os"

	"github.com/go-spatial/cobra"
	_ "github.com/theckman/goconstraint/go1.9/gte"

	"github.com/vectorlayer/spatialite/config"
	"github.com/vectorlayer/spatialite/httpapi"
	"github.com/vectorlayer/spatialite/internal/log"
	"github.com/vectorlayer/spatialite/provider"

	_ "github.com/vectorlayer/spatialite/provider/spatialite"
)

var (
	cfgFile  string
	logLevel string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "spatialite",
	Short: "spatialite serves SpatiaLite layers over HTTP",
	Long: `spatialite reads a TOML config file describing one or more
layer providers and exposes them over HTTP: bounding-box feature
selection, inserts, deletes, geometry and attribute updates, and
schema changes, plus a Prometheus metrics endpoint.`,
	RunE: runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "start the HTTP server",
	RunE:  runServe,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "load and validate the config file without starting the server",
	RunE:  runValidate,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.toml", "path to the TOML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, error)")
	rootCmd.AddCommand(serveCmd, validateCmd)
}

func loadConfig() (*config.Config, error) {
	log.SetLevel(logLevel)
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", cfgFile, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating %s: %w", cfgFile, err)
	}
	return cfg, nil
}

func runValidate(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log.Infof("config %s is valid: %d provider(s) configured", cfgFile, len(cfg.Providers))
	return nil
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	srv := httpapi.NewServer("spatialite")
	for _, pc := range cfg.Providers {
		drv, err := provider.For(pc.Type, pc.AsDict())
		if err != nil {
			return fmt.Errorf("initializing provider %q: %w", pc.Name, err)
		}
		l, err := drv.ClassFactory(pc.Name)
		if err != nil {
			log.Errorf("skipping layer %q: %v", pc.Name, err)
			continue
		}
		srv.Register(pc.Name, l)
		log.Infof("registered layer %q via provider %q", pc.Name, drv.ProviderKey())
	}

	watcher, err := config.Watch(cfgFile, func(newCfg *config.Config, err error) {
		if err != nil {
			log.Errorf("config watch: ignoring invalid reload of %s: %v", cfgFile, err)
			return
		}
		log.Infof("config watch: %s changed; restart the process to pick up provider changes", cfgFile)
		_ = newCfg
	})
	if err != nil {
		log.Errorf("config watch: disabled for %s: %v", cfgFile, err)
	} else {
		defer watcher.Close()
	}

	addr := cfg.Webserver.HostName + cfg.Webserver.Port
	if cfg.Webserver.Port == "" {
		addr = cfg.Webserver.HostName + ":8080"
	}
	return srv.ListenAndServe(addr)
}
