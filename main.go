package main

import (
	"log"

	"solar-impact-insights/app"
	"solar-impact-insights/config"
)

func main() {
	// Load config from .env file
	cfg := config.LoadFromEnv()

	// Create and start app
	application, err := app.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	if err := application.Start(); err != nil {
		log.Fatal(err)
	}
}
