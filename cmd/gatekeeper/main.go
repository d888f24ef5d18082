package main

import (
	"log"

	"gatekeeper/internal/config"
	"gatekeeper/internal/infra/db"
	httpinfra "gatekeeper/internal/infra/http"
)

func main() {
	cfg := config.FromEnv()

	store, err := db.NewStore(cfg)
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}

	srv, err := httpinfra.NewServer(cfg, store)
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}
	if err := srv.Run(); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
