// Command app runs the transcriber serving ./frontend from disk, for frontend work.
package main

import (
	"flag"
	"log"

	"video-transcriber/internal/bootstrap"
)

func main() {
	configFile := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	app, err := bootstrap.NewWithOptions(bootstrap.Options{ConfigFile: *configFile})
	if err != nil {
		log.Fatalf("bootstrap app: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Fatalf("run app: %v", err)
	}
}
