package main

import (
	"log"

	"github.com/joho/godotenv"

	"vidgen-pipeline/config"
	"vidgen-pipeline/server"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	srv := server.New(cfg)
	if err := srv.Run(); err != nil {
		log.Fatalf("Server exited: %v", err)
	}
}
