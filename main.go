package main

import (
	"embed"
	"flag"
	"io/fs"
	"log"

	"video-transcriber/internal/bootstrap"
)

//go:embed frontend/index.html frontend/assets
var appAssets embed.FS

func main() {
	configFile := flag.String("config", "", "path to a YAML config file")
	envFile := flag.String("env", "", "path to a .env file")
	flag.Parse()

	assets, err := fs.Sub(appAssets, "frontend")
	if err != nil {
		log.Fatalf("mount frontend: %v", err)
	}

	app, err := bootstrap.NewWithOptions(bootstrap.Options{
		ConfigFile: *configFile,
		EnvFile:    *envFile,
		Assets:     assets,
	})
	if err != nil {
		log.Fatalf("bootstrap app: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Fatalf("run app: %v", err)
	}
}
