// Command lambda runs the layer HTTP API inside an AWS Lambda function,
// fronted by API Gateway, using the same config file and provider
// registry the standalone spatialite binary uses.
package main

import (
	"os"

	"github.com/akrylysov/algnhsa"

	"github.com/vectorlayer/spatialite/config"
	"github.com/vectorlayer/spatialite/httpapi"
	"github.com/vectorlayer/spatialite/internal/log"
	"github.com/vectorlayer/spatialite/provider"

	_ "github.com/vectorlayer/spatialite/provider/spatialite"
)

func main() {
	cfgFile := os.Getenv("SPATIALITE_CONFIG")
	if cfgFile == "" {
		cfgFile = "config.toml"
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		log.Fatalf("loading %s: %v", cfgFile, err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("validating %s: %v", cfgFile, err)
	}

	srv := httpapi.NewServer("spatialite")
	for _, pc := range cfg.Providers {
		drv, err := provider.For(pc.Type, pc.AsDict())
		if err != nil {
			log.Fatalf("initializing provider %q: %v", pc.Name, err)
		}
		l, err := drv.ClassFactory(pc.Name)
		if err != nil {
			log.Errorf("skipping layer %q: %v", pc.Name, err)
			continue
		}
		srv.Register(pc.Name, l)
	}

	algnhsa.ListenAndServe(srv.Handler(), nil)
}
