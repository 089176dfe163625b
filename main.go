package main

import (
	"log"

	"github.com/stevenxxzgs/omnilaze-universal/internal/api"
	"github.com/stevenxxzgs/omnilaze-universal/internal/store"
)

func main() {
	// Minimal development entry point: in-memory store, codes echoed in
	// API responses. Use cmd/omnilaze for the configurable server.
	st := store.NewInMemoryStore()
	defer st.Close()

	err := api.Run(
		api.WithStore(st),
		api.WithEnvironment(api.EnvDevelopment),
		api.WithJWTSecret([]byte("dev-secret")),
	)
	if err != nil {
		log.Fatalf("Failed to run API server: %v", err)
	}
}
